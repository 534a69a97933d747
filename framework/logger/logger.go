// Package logger builds slog loggers from configuration and provides
// attribute helpers shared by the framework.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/km-arc/go-kernel/framework/config"
)

type options struct {
	level  slog.Level
	json   bool
	output io.Writer
	attrs  []slog.Attr
}

// Option configures New.
type Option func(*options)

// WithLevel sets the minimum level.
func WithLevel(l slog.Level) Option { return func(o *options) { o.level = l } }

// WithJSONFormatter switches to the JSON handler.
func WithJSONFormatter() Option { return func(o *options) { o.json = true } }

// WithOutput sets the destination, stdout by default.
func WithOutput(w io.Writer) Option { return func(o *options) { o.output = w } }

// WithAttr adds attributes to every record.
func WithAttr(attrs ...slog.Attr) Option {
	return func(o *options) { o.attrs = append(o.attrs, attrs...) }
}

// New creates a logger. The default is a text handler at info level.
//
//	log := logger.New(logger.WithJSONFormatter(), logger.WithLevel(slog.LevelDebug))
func New(opts ...Option) *slog.Logger {
	o := &options{level: slog.LevelInfo, output: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}

	hopts := &slog.HandlerOptions{Level: o.level}
	var h slog.Handler
	if o.json {
		h = slog.NewJSONHandler(o.output, hopts)
	} else {
		h = slog.NewTextHandler(o.output, hopts)
	}
	if len(o.attrs) > 0 {
		h = h.WithAttrs(o.attrs)
	}
	return slog.New(h)
}

// FromConfig maps the LOG_* settings onto New and tags records with the
// application name and environment.
func FromConfig(cfg *config.Config, opts ...Option) *slog.Logger {
	base := []Option{
		WithLevel(ParseLevel(cfg.Log.Level)),
		WithAttr(slog.String("app", cfg.App.Name), slog.String("env", cfg.App.Env)),
	}
	if strings.EqualFold(cfg.Log.Format, "json") {
		base = append(base, WithJSONFormatter())
	}
	return New(append(base, opts...)...)
}

// ParseLevel maps debug, info, warn and error to slog levels; anything else
// is info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
