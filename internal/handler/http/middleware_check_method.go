// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// CheckHTTPMethod returns the router's MethodNotAllowed handler. A request
// whose path exists but whose method is not registered gets the same 404 as
// an unknown path, so callers cannot probe the API surface through 405
// answers. The Allow header lists the methods the path does accept.
//
// Usage:
//
//	router := chi.NewRouter()
//	// ... register routes ...
//	router.MethodNotAllowed(CheckHTTPMethod(router))
func CheckHTTPMethod(router *chi.Mux) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var allowed []string
		for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete} {
			if router.Match(chi.NewRouteContext(), method, r.URL.Path) {
				allowed = append(allowed, method)
			}
		}
		for _, method := range allowed {
			w.Header().Add("Allow", method)
		}

		writeError(w, r, "CheckHTTPMethod", errRouteNotFound)
	}
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, "notFound", errRouteNotFound)
}
