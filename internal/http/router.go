package httpapi

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"storybot/internal/http/handlers"
	"storybot/internal/middleware"
)

func NewRouter(app *handlers.App, logger zerolog.Logger, staticDir string) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimw.RealIP, chimw.Recoverer, middleware.Logger(logger))

	r.Get("/v1/healthz", app.Health)
	r.Handle("/metrics", promhttp.Handler())
	if staticDir != "" {
		r.Handle("/static/*", stdhttp.StripPrefix("/static/", stdhttp.FileServer(stdhttp.Dir(staticDir))))
	}

	r.Post("/webhook/telegram", app.TelegramWebhook)

	r.Route("/queue", func(r chi.Router) {
		r.Post("/", app.EnqueueItem)
		r.Get("/stats", app.QueueStats)
		r.Get("/{id}", app.GetItem)
	})

	r.Route("/pipeline", func(r chi.Router) {
		r.Post("/process", app.ProcessNext)
		r.Post("/process-all", app.ProcessAll)
	})

	r.Post("/reaper/run", app.RunReaper)

	r.Route("/settings", func(r chi.Router) {
		r.Get("/{key}", app.GetSetting)
		r.Put("/{key}", app.PutSetting)
	})

	return r
}
