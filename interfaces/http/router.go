package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/groundgraph/engine/application/mediator"
)

// Handlers bundles every interfaces/http handler wired into the router.
// Grounded on backend's cmd/api main.go route-registration block, adapted
// to this module's smaller, admin-heavy query surface (spec.md §6.2).
type Handlers struct {
	Concepts  *ConceptsHandler
	Sources   *SourcesHandler
	Polarity  *PolarityHandler
	Admin     *AdminHandler
}

// NewRouter builds the full chi.Mux: request-ID + recover middleware, a
// permissive CORS policy suitable for a same-origin SPA client, and the
// routes grouped by resource.
func NewRouter(h Handlers, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(zapRequestLogger(logger))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Route("/concepts", func(r chi.Router) {
		r.Post("/", h.Concepts.UpsertConcept)
		r.Get("/", h.Concepts.SearchConcepts)
		r.Get("/{id}", h.Concepts.GetConceptDetails)
		r.Get("/{id}/related", h.Concepts.FindRelated)
	})
	r.Post("/edges", h.Concepts.AddEdge)
	r.Get("/path", h.Concepts.FindPath)

	r.Route("/sources", func(r chi.Router) {
		r.Post("/ingest", h.Sources.IngestDocument)
		r.Get("/", h.Sources.SearchSources)
	})

	r.Post("/polarity/analyze", h.Polarity.AnalyzeAxis)

	r.Route("/jobs/{id}", func(r chi.Router) {
		r.Post("/approve", h.Admin.ApproveJob)
		r.Post("/cancel", h.Admin.CancelJob)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/vocab/consolidate", h.Admin.ConsolidateVocabulary)
		r.Post("/annealing/run", h.Admin.RunAnnealing)
		r.Get("/embedding/verify", h.Admin.VerifyEmbeddings)
		r.Post("/embedding/regenerate", h.Admin.RegenerateEmbeddings)
		r.Post("/embedding/activate", h.Admin.ActivateEmbeddingConfig)
	})

	return r
}

func zapRequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Debug("request", zap.String("method", r.Method), zap.String("path", r.URL.Path))
			next.ServeHTTP(w, r)
		})
	}
}

// IMediator re-exported for handler constructors that only need the
// dispatch surface, avoiding an import cycle back through application.
type IMediator = mediator.IMediator
