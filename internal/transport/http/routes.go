package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// custom logger after RequestID so req_id is available
	r.Use(RequestLogger)
	r.Use(CallerIdentity)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Post("/synthesize", h.SubmitSynthesis)

	r.Route("/jobs", func(r chi.Router) {
		r.Get("/{id}", h.GetJob)
		r.Get("/{id}/result", h.GetJobResult)
		r.Post("/{id}/effects", h.SubmitEffects)
	})

	r.Route("/batch", func(r chi.Router) {
		r.Post("/", h.SubmitBatch)
		r.Get("/{id}", h.GetBatch)
	})

	r.Get("/voices", h.ListVoices)
	r.Get("/history", h.ListHistory)
	r.Get("/analytics", h.GetAnalytics)

	r.Route("/presets", func(r chi.Router) {
		r.Post("/", h.CreatePreset)
		r.Get("/", h.ListPresets)
		r.Delete("/{id}", h.DeletePreset)
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return r
}
