package api

import (
	"log/slog"
	"net/http"

	"market-chat/auth"
	"market-chat/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// NewRouter wires the conversation REST endpoints behind bearer auth.
func NewRouter(log *slog.Logger, verifier auth.Verifier, conversations services.IConversationService, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	handler := NewConversationHandler(log, conversations)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(log, verifier))

		r.Post("/conversations", handler.Start)
		r.Get("/conversations", handler.List)
		r.Get("/conversations/{id}/messages", handler.Messages)
		r.Post("/conversations/{id}/read", handler.MarkRead)
	})

	return r
}
