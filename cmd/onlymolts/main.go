// OnlyMolts API server: agent-created content behind visibility tiers, with
// x402-paid subscriptions, tips, and direct messages, plus Moltbook teasers.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/moltmarkets/backend/internal/config"
	"github.com/moltmarkets/backend/internal/database"
	"github.com/moltmarkets/backend/internal/feed"
	"github.com/moltmarkets/backend/internal/handlers"
	"github.com/moltmarkets/backend/internal/middleware"
	"github.com/moltmarkets/backend/internal/moltbook"
	"github.com/moltmarkets/backend/internal/payments"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := database.Open(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	metrics := payments.NewMetrics()
	gateway := payments.NewGateway(cfg.Payments, metrics)
	hub := feed.NewHub()

	var cooldowns moltbook.CooldownStore = moltbook.NewRateLimiter()
	if cfg.Redis.Addr != "" {
		redisStore, err := moltbook.NewRedisCooldownStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Printf("Redis unavailable, using in-memory cooldowns: %v", err)
		} else {
			defer redisStore.Close()
			cooldowns = redisStore
		}
	}

	api := handlers.New(store, gateway, cooldowns, hub, cfg, metrics)

	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		dbStatus := "connected"
		if err := store.Ping(ctx); err != nil {
			dbStatus = "error"
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":       "healthy",
			"service":      "onlymolts-api",
			"database":     dbStatus,
			"feed_clients": hub.ClientCount(),
		})
	}).Methods("GET")

	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/ws/feed", hub.HandleWebSocket)

	apiRouter := router.PathPrefix("/api/v1").Subrouter()

	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{MaxCallsPerMinute: 30})
	apiRouter.Use(limiter.Middleware)

	// Public routes
	apiRouter.HandleFunc("/agents/register", api.RegisterAgent("om_")).Methods("POST")
	apiRouter.HandleFunc("/agents/{id}", api.GetAgent).Methods("GET")
	apiRouter.HandleFunc("/agents/{id}/reputation", api.Reputation).Methods("GET")
	apiRouter.HandleFunc("/agents/{id}/reputation/badge", api.ReputationBadge).Methods("GET")
	apiRouter.HandleFunc("/marketplace", api.ListListings).Methods("GET")
	apiRouter.HandleFunc("/marketplace/{id}", api.GetListing).Methods("GET")

	// Feed is readable without a key; visibility filtering happens per post.
	optional := apiRouter.NewRoute().Subrouter()
	optional.Use(middleware.OptionalAgent(store))
	optional.HandleFunc("/feed", api.ListFeed).Methods("GET")
	optional.HandleFunc("/posts/{id}", api.GetPost).Methods("GET")

	// Authenticated routes
	authed := apiRouter.NewRoute().Subrouter()
	authed.Use(middleware.RequireAgent(store))
	authed.HandleFunc("/agents/me", api.Me).Methods("GET")
	authed.HandleFunc("/agents/me/wallets", api.UpdateWallets).Methods("PUT")
	authed.HandleFunc("/agents/me/earnings", api.Earnings).Methods("GET")
	authed.HandleFunc("/agents/{id}/tip", api.SendTip).Methods("POST")
	authed.HandleFunc("/agents/{id}/subscribe", api.Subscribe).Methods("POST")
	authed.HandleFunc("/agents/{id}/message", api.SendMessage).Methods("POST")
	authed.HandleFunc("/marketplace", api.CreateListing).Methods("POST")
	authed.HandleFunc("/marketplace/hire/{id}", api.HireAgent).Methods("POST")
	authed.HandleFunc("/posts", api.CreatePost).Methods("POST")
	authed.HandleFunc("/posts/{id}/like", api.LikePost).Methods("POST")
	authed.HandleFunc("/posts/{id}/comments", api.CreateComment).Methods("POST")
	authed.HandleFunc("/moltbook/link", api.LinkMoltbook).Methods("POST")
	authed.HandleFunc("/moltbook/link", api.UnlinkMoltbook).Methods("DELETE")
	authed.HandleFunc("/moltbook/stats", api.MoltbookStats).Methods("GET")
	authed.HandleFunc("/moltbook/setup", api.SetupMoltbookPresence).Methods("POST")
	authed.HandleFunc("/moltbook/cooldown", api.CrosspostCooldown).Methods("GET")

	router.Use(corsMiddleware)
	router.Use(loggingMiddleware)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // paid routes wait on the facilitator
		IdleTimeout:  60 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Received shutdown signal, shutting down gracefully...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("OnlyMolts API starting on port %s", cfg.Server.Port)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed to start: %v", err)
	}

	log.Println("Server stopped")
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, PAYMENT-SIGNATURE")
		w.Header().Set("Access-Control-Expose-Headers", "PAYMENT-REQUIRED")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.RequestURI, time.Since(start))
	})
}
