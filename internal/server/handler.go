package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/rdesai/chatsync/internal/auth"
)

// upgrader upgrades HTTP connections to WebSocket
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow connections from any origin (CORS handled by middleware)
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler handles the dev server's HTTP surface: login, the websocket
// endpoint and uploaded file retrieval.
type Handler struct {
	hub   *Hub
	store *Store
}

// NewHandler creates a new Handler.
func NewHandler(hub *Hub, store *Store) *Handler {
	return &Handler{hub: hub, store: store}
}

// HandleLogin handles POST /api/login. The dev server accepts any
// credentials and provisions users on first sight.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Username == "" {
		http.Error(w, "username is required", http.StatusBadRequest)
		return
	}

	token, user := h.store.Login(req.Username)
	log.Printf("[Server] issued token for %s", req.Username)
	writeJSON(w, http.StatusOK, auth.LoginResponse{Token: token, User: user})
}

// ServeWS handles websocket upgrade requests at /ws?token=<token>.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "token required", http.StatusUnauthorized)
		return
	}
	user := h.store.UserByToken(token)
	if user == nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Server] upgrade failed: %v", err)
		return
	}

	client := NewClient(h.hub, conn, user)
	h.hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}

// HandleFile serves uploaded file bytes back at their stored path.
func (h *Handler) HandleFile(w http.ResponseWriter, r *http.Request) {
	data, ok := h.store.File(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Server] failed to encode response: %v", err)
	}
}
