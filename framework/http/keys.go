package http

import "github.com/km-arc/go-kernel/framework/container"

// Keys the dispatcher seeds, immutably, into every request container.
var (
	RequestKey = container.NewKey[*Request]("http.request")
	ConnKey    = container.NewKey[*Conn]("http.conn")
)
