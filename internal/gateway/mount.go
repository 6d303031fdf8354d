package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Mount registers every route on r, one handler per method.
func Mount(r chi.Router, f *Forwarder, routes []Route) {
	for _, route := range routes {
		h := f.Handler(route)
		for _, method := range route.Methods {
			r.Method(method, route.Pattern, h)
		}
	}
}

// NotFound answers paths outside the route table.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found"})
}

// MethodNotAllowed answers known paths called with an unsupported method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "Method not allowed"})
}
