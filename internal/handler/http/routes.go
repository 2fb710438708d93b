package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(h.withTraceID, h.withLogging, middleware.Recoverer)

	if h.deps.Metrics != nil {
		router.Method("GET", "/metrics", h.deps.Metrics)
	}

	router.Route("/api", func(r chi.Router) {
		r.Use(withGZip)

		r.Get("/version", h.getVersion)
		r.Get("/notifications", h.listNotifications)
		r.Get("/connectivity", h.getConnectivity)
		r.Put("/connectivity", h.setConnectivity)
		r.Post("/sync", h.syncAll)

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", h.listProjects)
			r.Post("/", h.createProject)

			r.Route("/{projectID}", func(r chi.Router) {
				r.Get("/", h.getProject)
				r.Post("/register", h.registerProject)
				r.Get("/submissions", h.listSubmissions)
				r.Post("/submissions", h.createSubmission)
				r.Get("/queue", h.listQueue)
				r.Post("/queue/drain", h.drainQueue)
				r.Post("/sync", h.syncProject)
				r.Post("/transfer/export", h.exportPayload)
				r.Post("/transfer/import", h.importPayload)
				r.Post("/transfer/confirm", h.confirmHandoff)
			})
		})

		r.Route("/submissions/{id}", func(r chi.Router) {
			r.Get("/", h.getSubmission)
			r.Put("/", h.updateSubmission)
			r.Delete("/", h.deleteSubmission)
			r.Post("/seal", h.sealSubmission)
			r.Post("/review", h.reviewSubmission)
			r.Post("/resolve", h.resolveSubmission)
		})
	})

	router.NotFound(notFound)
	router.MethodNotAllowed(CheckHTTPMethod(router))

	return router
}
