package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"server/internal/http/handlers"
	mw "server/internal/middleware"
)

func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	r.Use(
		mw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		mw.CORS(app.Config.CORSOrigins),
		mw.Logger(app.Logger),
		mw.RateLimit(app.Config.RateLimitPerMin, time.Minute),
	)

	// Health stays public for load balancer probes.
	r.Get("/v1/healthz", app.Health)

	r.Group(func(r chi.Router) {
		r.Use(mw.AuthJWT(app.Config.JWTSecret))

		r.Post("/sketch-to-image/shoe", app.SketchToShoe)

		r.Route("/workflows", func(r chi.Router) {
			r.Post("/", app.CreateWorkflow)
			r.Get("/", app.ListWorkflows)
			r.Get("/latest-generation", app.LatestGenerations)
			r.Get("/download-url/*", app.DownloadURL)
			r.Get("/{id}", app.GetWorkflow)
			r.Patch("/{id}/close", app.CloseWorkflow)
		})

		r.Route("/storage", func(r chi.Router) {
			r.Post("/save", app.LibrarySave)
			r.Get("/list", app.LibraryList)
		})
	})

	return r
}
