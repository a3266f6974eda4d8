package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"dm-chat/internal/chat"
	myMiddleware "dm-chat/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type healthCheck struct {
	name string
	ping func(ctx context.Context) error
}

func newRouter(chatHandler *chat.Handler, validator myMiddleware.TokenValidator, checks []healthCheck) http.Handler {
	authMiddleware := myMiddleware.NewAuthMiddleware(validator)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Public Routes
	r.Get("/healthz", healthHandler(checks))
	r.Handle("/metrics", promhttp.Handler())

	// Protected Routes (Require JWT)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)

		// WebSocket (Real-time)
		r.Get("/ws", chatHandler.ServeWs)

		// Conversation history with one peer
		r.Get("/api/messages/{peerID}", chatHandler.GetChatHistory)
	})

	return r
}

func healthHandler(checks []healthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		report := map[string]string{}
		for _, c := range checks {
			if err := c.ping(ctx); err != nil {
				status = http.StatusServiceUnavailable
				report[c.name] = err.Error()
				continue
			}
			report[c.name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(report)
	}
}
