package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, health *HealthChecker, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("X-Server-Binary", "cmd/server")
			next.ServeHTTP(w, req)
		})
	})

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if health != nil {
		r.Get("/health", health.HandleHealth)
		r.Get("/health/live", health.HandleLiveness)
		r.Get("/health/ready", health.HandleReadiness)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/objects", h.HandleListObjects)
		r.Post("/export", h.HandleExport)
		r.Get("/jobs", h.HandleListJobs)
		r.Get("/jobs/{jobId}", h.HandleGetJob)

		r.Post("/sessions", h.HandleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGetSession)
			r.Delete("/", h.HandleDiscardSession)
			r.Post("/reset", h.HandleReset)
			r.Put("/target", h.HandleSelectTarget)

			// Per-row field selection
			r.Put("/cells/field", h.HandleSelectField)
			r.Put("/cells/lookup-fields", h.HandleSelectLookupFields)
			r.Put("/cells/where", h.HandleSetWhereClause)
			r.Put("/cells/extra-csv-field", h.HandleSetExtraCSVField)
			r.Put("/cells/parts", h.HandleSetCompositePart)

			r.Post("/mappings", h.HandleAddMapping)
			r.Delete("/mappings", h.HandleDeleteMapping)

			// Composite keys
			r.Post("/sections", h.HandleAddSection)
			r.Put("/sections/{sid}/columns", h.HandleToggleSectionColumn)
			r.Post("/sections/{sid}/composite", h.HandleCreateComposite)
			r.Delete("/sections/{sid}", h.HandleDeleteSection)
			r.Delete("/composites/{cid}", h.HandleDeleteComposite)

			// Unique key
			r.Put("/unique-key/mode", h.HandleSetUniqueKeyMode)
			r.Put("/unique-key/columns", h.HandleToggleUniqueKeyColumn)
			r.Post("/unique-key", h.HandleCreateUniqueKey)
			r.Delete("/unique-key", h.HandleClearUniqueKey)

			r.Post("/configuration", h.HandleSaveConfiguration)
			r.Post("/upload", h.HandleStartUpload)
			r.Get("/progress", h.HandleProgress)
		})
	})

	return r
}
