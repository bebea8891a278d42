package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter assembles the dev server's full HTTP surface: hub, store,
// middleware stack, CORS and routes. Used by the binary and by tests.
func NewRouter(corsOrigins []string) (http.Handler, *Hub, *Store) {
	store := NewStore()
	hub := NewHub(store)
	go hub.Run()

	handler := NewHandler(hub, store)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/api/login", handler.HandleLogin)
	r.Get("/ws", handler.ServeWS)
	r.Get("/files/*", handler.HandleFile)

	return r, hub, store
}
