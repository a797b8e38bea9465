package roomserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func SetupRoutes(h *Hub) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/room/{roomID}", WSHandler(h))
	return r
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
