package http

import (
	"context"
	"net/http"
)

// Dispatcher turns a request into a response value, or Upgraded.
type Dispatcher interface {
	Handle(ctx context.Context, conn *Conn, req *Request) *Response
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, conn *Conn, req *Request) *Response

// Handle implements Dispatcher.
func (f DispatcherFunc) Handle(ctx context.Context, conn *Conn, req *Request) *Response {
	return f(ctx, conn, req)
}

// Handler adapts a Dispatcher to net/http.
//
//	srv := &http.Server{Handler: gohttp.Handler(k)}
func Handler(d Dispatcher) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := NewRequest(r)
		conn := NewConn(w, r)

		res := d.Handle(r.Context(), conn, req)
		if IsUpgraded(res) || conn.Hijacked() {
			return
		}
		if res == nil {
			res = ServerError()
		}
		w.Header().Set(RequestIDHeader, req.ID())
		_ = res.WriteTo(w)
	})
}
