package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/km-arc/go-kernel/framework/container"
)

// UpgradeWebSocket upgrades the current request and runs fn on its own
// goroutine with the connection, closing it when fn returns. fn gets a
// context that outlives the request. The caller returns what this returns:
//
//	func Echo(ctx context.Context, s *container.Scope) (*gohttp.Response, error) {
//	    return gohttp.UpgradeWebSocket(ctx, s, upgrader, func(ctx context.Context, ws *websocket.Conn) {
//	        for {
//	            mt, msg, err := ws.ReadMessage()
//	            if err != nil {
//	                return
//	            }
//	            _ = ws.WriteMessage(mt, msg)
//	        }
//	    })
//	}
//
// A failed handshake is returned as an *HTTPError and nothing is written,
// so the error handler renders it like any other failure.
func UpgradeWebSocket(ctx context.Context, src container.Source, up *websocket.Upgrader, fn func(context.Context, *websocket.Conn)) (*Response, error) {
	conn, err := container.Get(ctx, src, ConnKey)
	if err != nil {
		return nil, err
	}

	var failed *HTTPError
	u := *up
	u.Error = func(_ http.ResponseWriter, _ *http.Request, status int, reason error) {
		failed = &HTTPError{Status: status, Message: http.StatusText(status), Err: reason}
	}

	ws, err := u.Upgrade(conn.w, conn.r, nil)
	if err != nil {
		if failed != nil {
			return nil, failed
		}
		return nil, fmt.Errorf("http: websocket upgrade: %w", err)
	}
	conn.hijacked.Store(true)

	wctx := context.WithoutCancel(ctx)
	go func() {
		defer ws.Close()
		fn(wctx, ws)
	}()
	return Upgraded, nil
}
