package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cwrk-planet/mesh-service/internal/mesh"
	"github.com/cwrk-planet/mesh-service/internal/transport/ws"
)

func NewRouter(h *Handler, session *mesh.Session, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(MiddlewareRequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", HeaderRequestID},
	}))

	// WS endpoints — вне logging-группы: обёртка writer-а ломает hijack
	r.Get("/ws/spaces/{id}", wsServer.HandleSpace)
	r.Get("/ws/dm/{peer}", wsServer.HandleDirect)

	r.Group(func(pr chi.Router) {
		pr.Use(MiddlewareLogging)
		pr.Use(middlewareChi.Timeout(30 * time.Second))

		pr.Route("/spaces/{id}", func(sr chi.Router) {
			sr.Get("/messages", h.GetSpaceMessages)
			sr.Post("/messages", h.PostSpaceMessage)
		})
		pr.Route("/dm/{user}/{peer}", func(dr chi.Router) {
			dr.Get("/messages", h.GetDirectMessages)
			dr.Post("/messages", h.PostDirectMessage)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if session.State() != mesh.StateConnected {
			http.Error(w, session.State().String(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
