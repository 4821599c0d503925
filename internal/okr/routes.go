package okr

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Route("/objectives", func(r chi.Router) {
		r.Post("/", h.CreateObjective)
		r.Get("/", h.ListObjectives)
		r.Get("/{id}", h.GetObjective)
		r.Delete("/{id}", h.DeleteObjective)
		r.Patch("/{id}/status", h.UpdateObjectiveStatus)
		r.Post("/{id}/key-results", h.AddKeyResult)
	})

	r.Route("/key-results", func(r chi.Router) {
		r.Patch("/{id}", h.UpdateKeyResult)
		r.Delete("/{id}", h.DeleteKeyResult)
		r.Post("/{id}/progress", h.RecordProgress)
		r.Get("/{id}/progress", h.ProgressHistory)
	})

	r.Delete("/progress-updates/{id}", h.DeleteProgressUpdate)

	return r
}
