package http

import (
	"bytes"
	"encoding/json"
	"html/template"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/km-arc/go-kernel/framework/http/validation"
)

// ── Response ─────────────────────────────────────────────────────────────────

// Response is a fully buffered response value. Handlers and middleware
// return it; the transport adapter writes it once the chain has finished.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Upgraded is the sentinel returned once a handler has taken over the
// connection (e.g. for a WebSocket). The dispatcher stops the chain and the
// adapter writes nothing.
var Upgraded = &Response{Status: http.StatusSwitchingProtocols}

// IsUpgraded reports whether res is the upgrade sentinel.
func IsUpgraded(res *Response) bool { return res == Upgraded }

// NewResponse builds a response with an empty header set.
func NewResponse(status int, body []byte) *Response {
	return &Response{Status: status, Header: make(http.Header), Body: body}
}

// WithHeader sets a header and returns res for chaining.
func (res *Response) WithHeader(key, value string) *Response {
	if res.Header == nil {
		res.Header = make(http.Header)
	}
	res.Header.Set(key, value)
	return res
}

// WriteTo writes the response to w.
func (res *Response) WriteTo(w http.ResponseWriter) error {
	h := w.Header()
	for k, vs := range res.Header {
		h[k] = vs
	}
	if len(res.Body) > 0 && h.Get("Content-Length") == "" {
		h.Set("Content-Length", strconv.Itoa(len(res.Body)))
	}
	status := res.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(res.Body) == 0 {
		return nil
	}
	_, err := w.Write(res.Body)
	return err
}

// ── JSON responses ────────────────────────────────────────────────────────────

// JSON encodes data as the body. A value that cannot be encoded yields a
// plain 500.
//
//	return gohttp.JSON(http.StatusOK, map[string]any{"message": "ok"}), nil
func JSON(status int, data any) *Response {
	b, err := json.Marshal(data)
	if err != nil {
		return Text(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
	return NewResponse(status, append(b, '\n')).WithHeader("Content-Type", "application/json")
}

// Success is 200 JSON: {"data": v}
func Success(v any) *Response {
	return JSON(http.StatusOK, envelope{"data": v})
}

// Created is 201 JSON: {"data": v}
func Created(v any) *Response {
	return JSON(http.StatusCreated, envelope{"data": v})
}

// NoContent is 204 with no body.
func NoContent() *Response {
	return NewResponse(http.StatusNoContent, nil)
}

// Text is a plain-text response.
func Text(status int, body string) *Response {
	return NewResponse(status, []byte(body)).WithHeader("Content-Type", "text/plain; charset=utf-8")
}

// Error is a JSON error response: {"message": message}
//
//	return gohttp.Error(http.StatusNotFound, "Resource not found"), nil
func Error(status int, message string) *Response {
	return JSON(status, envelope{"message": message})
}

// Unauthorized is 401.
func Unauthorized(message ...string) *Response {
	return Error(http.StatusUnauthorized, first(message, "Unauthenticated."))
}

// Forbidden is 403.
func Forbidden(message ...string) *Response {
	return Error(http.StatusForbidden, first(message, "This action is unauthorized."))
}

// NotFound is 404.
func NotFound(message ...string) *Response {
	return Error(http.StatusNotFound, first(message, "Not found."))
}

// ServerError is 500.
func ServerError(message ...string) *Response {
	return Error(http.StatusInternalServerError, first(message, "Server Error."))
}

// ValidationError is 422 with the standard Laravel error bag.
//
//	if v.Fails() {
//	    return gohttp.ValidationError(v.Errors()), nil
//	}
func ValidationError(errors *validation.Errors) *Response {
	return JSON(http.StatusUnprocessableEntity, errors)
}

// ── Redirects ────────────────────────────────────────────────────────────────

// Redirect answers with status and a Location header.
//
//	return gohttp.Redirect(http.StatusFound, "/dashboard"), nil
func Redirect(status int, url string) *Response {
	return NewResponse(status, nil).WithHeader("Location", url)
}

// RedirectTo is a 302 redirect.
func RedirectTo(url string) *Response {
	return Redirect(http.StatusFound, url)
}

// RedirectBack redirects to the Referer header, or to fallback.
func RedirectBack(req *Request, fallback string) *Response {
	return RedirectTo(or(req.raw.Referer(), []string{fallback}))
}

// ── Views ────────────────────────────────────────────────────────────────────

// ViewEngine renders html/template files into responses.
type ViewEngine struct {
	dir string
	ext string
}

// NewViewEngine creates a ViewEngine.
// dir is the templates directory (e.g. "./views"), ext is the file extension (e.g. ".html").
func NewViewEngine(dir, ext string) *ViewEngine {
	return &ViewEngine{dir: dir, ext: ext}
}

// View renders a template file with data.
//
//	return views.View("home", map[string]any{"title": "Home"})
func (ve *ViewEngine) View(name string, data any) (*Response, error) {
	tmpl, err := template.ParseFiles(filepath.Join(ve.dir, name+ve.ext))
	if err != nil {
		return nil, err
	}
	return render(tmpl, name+ve.ext, data)
}

// ViewWithLayout renders a template inside a base layout.
func (ve *ViewEngine) ViewWithLayout(layout, name string, data any) (*Response, error) {
	tmpl, err := template.ParseFiles(
		filepath.Join(ve.dir, layout+ve.ext),
		filepath.Join(ve.dir, name+ve.ext),
	)
	if err != nil {
		return nil, err
	}
	return render(tmpl, layout+ve.ext, data)
}

func render(tmpl *template.Template, name string, data any) (*Response, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, filepath.Base(name), data); err != nil {
		return nil, err
	}
	return NewResponse(http.StatusOK, buf.Bytes()).WithHeader("Content-Type", "text/html; charset=utf-8"), nil
}

// ── Helpers ──────────────────────────────────────────────────────────────────

type envelope map[string]any

func first(ss []string, fallback string) string {
	if len(ss) > 0 && ss[0] != "" {
		return ss[0]
	}
	return fallback
}
