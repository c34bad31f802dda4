package obs

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// UnmatchedRoute labels requests that no route accepted, which keeps metric
// cardinality bounded when clients request random paths.
const UnmatchedRoute = "unmatched"

// Route returns the chi pattern that served r, for example
// "/api/v1/cart/items/{lineId}". chi fills the pattern in while routing, so
// middleware must read it after calling the next handler.
func Route(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return UnmatchedRoute
}
