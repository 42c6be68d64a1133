// Package middleware provides HTTP middleware shared by both API servers:
// static API-key authentication and per-key request rate limiting.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/moltmarkets/backend/internal/database"
)

type contextKey string

const agentKey contextKey = "agent"

// AgentFromContext returns the authenticated agent set by RequireAgent.
func AgentFromContext(ctx context.Context) (*database.Agent, bool) {
	agent, ok := ctx.Value(agentKey).(*database.Agent)
	return agent, ok
}

// ContextWithAgent attaches an authenticated agent to the context, the same
// way RequireAgent does.
func ContextWithAgent(ctx context.Context, agent *database.Agent) context.Context {
	return context.WithValue(ctx, agentKey, agent)
}

// apiKeyFrom extracts the bearer token, with an X-API-Key fallback for
// older SDK versions.
func apiKeyFrom(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.Header.Get("X-API-Key")
}

// RequireAgent authenticates the request by static API key and stores the
// agent in the request context.
func RequireAgent(store *database.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := apiKeyFrom(r)
			if key == "" {
				http.Error(w, `{"error":"missing API key"}`, http.StatusUnauthorized)
				return
			}

			agent, err := store.GetAgentByAPIKey(r.Context(), key)
			if err != nil {
				http.Error(w, `{"error":"invalid API key"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithAgent(r.Context(), agent)))
		})
	}
}

// OptionalAgent resolves the agent when a key is present but lets anonymous
// requests through, for public read endpoints with viewer-dependent output.
func OptionalAgent(store *database.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key := apiKeyFrom(r); key != "" {
				if agent, err := store.GetAgentByAPIKey(r.Context(), key); err == nil {
					r = r.WithContext(ContextWithAgent(r.Context(), agent))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
