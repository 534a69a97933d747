// Package http provides Laravel-style request and response helpers and the
// net/http adapter of the kernel. Import it as gohttp.
//
// # Request
//
// Request wraps *http.Request with a fluent API mirroring Laravel's
// Illuminate\Http\Request. The kernel seeds it into every request container
// under RequestKey.
//
//	req, err := container.Get(ctx, s, gohttp.RequestKey)
//
//	// Bind JSON / form body into a struct
//	var payload struct {
//	    Name string `json:"name"`
//	}
//	if err := req.Bind(&payload); err != nil { ... }
//
//	name  := req.Input("name", "default")
//	page  := req.Query("page", "1")
//	all   := req.All()          // map[string]string
//	token := req.BearerToken()
//	id    := req.ID()           // X-Request-ID or a fresh UUID
//
// Route parameters live in the container, see routing.Param.
//
// # Response
//
// Responses are values returned from handlers and middleware:
//
//	return gohttp.Success(data), nil            // 200 {"data": ...}
//	return gohttp.Created(data), nil            // 201 {"data": ...}
//	return gohttp.NoContent(), nil              // 204
//	return gohttp.Error(400, "bad input"), nil  // {"message": "bad input"}
//	return gohttp.NotFound(), nil               // 404 {"message": "Not found."}
//	return gohttp.ValidationError(errs), nil    // 422 {"errors": {"field": ["msg"]}}
//	return gohttp.RedirectTo("/dashboard"), nil // 302
//
// Returning an error instead hands it to the kernel's error handler; an
// *HTTPError keeps its status and message.
//
// # Upgrades
//
// A handler that takes over the connection returns Upgraded. For WebSockets
// UpgradeWebSocket does the handshake and returns it.
package http
