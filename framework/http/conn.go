package http

import (
	"bufio"
	"net"
	"net/http"
	"sync/atomic"
)

// Conn is the transport handle of one request. Handlers only need it to take
// over the connection; ordinary responses are returned as values.
type Conn struct {
	w        http.ResponseWriter
	r        *http.Request
	hijacked atomic.Bool
}

// NewConn wraps the writer and request of one exchange.
func NewConn(w http.ResponseWriter, r *http.Request) *Conn {
	return &Conn{w: w, r: r}
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string { return c.r.RemoteAddr }

// Hijack takes over the underlying connection. After a successful call the
// handler must return Upgraded.
func (c *Conn) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	nc, rw, err := http.NewResponseController(c.w).Hijack()
	if err == nil {
		c.hijacked.Store(true)
	}
	return nc, rw, err
}

// Hijacked reports whether the connection has been taken over.
func (c *Conn) Hijacked() bool { return c.hijacked.Load() }
