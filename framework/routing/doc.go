// Package routing maps method and path to actions.
//
// Rules are compiled into one segment trie per method. Literal segments are
// tried before parametric ones; parametric segments are ranked by the number
// of {placeholders} they hold, then by their literal characters, and matching
// backtracks when a candidate leads nowhere.
//
//	r := routing.New()
//	r.Get("/users/me", me)
//	r.Get("/users/{id}", show, routing.Named("users.show"),
//	    routing.Where(validation.Rules{"id": "integer"}))
//	r.Get("/files/{name}.{ext}", download)
//
//	api := r.Prefix("/api").Name("api.").Use(Auth)
//	routing.Resource(api, "/photos", "photos", PhotoControllerType)
//	api.Fallback("/", apiNotFound)
//
//	m, err := r.Resolve("GET", "/users/42")  // m.Params.Get("id") == "42"
//	url, _ := r.Generate("users.show", map[string]string{"id": "42"})
//
// Paths with a trailing slash are never served directly: Resolve answers
// them with a *RedirectError pointing at the stripped path.
package routing
