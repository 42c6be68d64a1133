// Package handlers implements the HTTP route handlers for both API variants.
// ClawStreetBets mounts the market routes, OnlyMolts the post/subscription
// routes; agents, tips, moltbook, and feed routes are shared.
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/moltmarkets/backend/internal/config"
	"github.com/moltmarkets/backend/internal/database"
	"github.com/moltmarkets/backend/internal/feed"
	"github.com/moltmarkets/backend/internal/moltbook"
	"github.com/moltmarkets/backend/internal/payments"
)

// API bundles the collaborators the handlers need.
type API struct {
	Store     *database.Store
	Gateway   *payments.Gateway
	Cooldowns moltbook.CooldownStore
	Hub       *feed.Hub
	Cfg       *config.Config
	Metrics   *payments.Metrics

	// NewMoltbook builds a Moltbook client for a given API key. Swappable
	// in tests.
	NewMoltbook func(apiKey string) *moltbook.Client

	Logger *log.Logger
}

// New creates an API with default collaborator constructors.
func New(store *database.Store, gateway *payments.Gateway, cooldowns moltbook.CooldownStore, hub *feed.Hub, cfg *config.Config, metrics *payments.Metrics) *API {
	mbOpts := []moltbook.Option{}
	if cfg.Moltbook.BaseURL != "" {
		mbOpts = append(mbOpts, moltbook.WithBaseURL(cfg.Moltbook.BaseURL))
	}
	return &API{
		Store:     store,
		Gateway:   gateway,
		Cooldowns: cooldowns,
		Hub:       hub,
		Cfg:       cfg,
		Metrics:   metrics,
		NewMoltbook: func(apiKey string) *moltbook.Client {
			return moltbook.NewClient(apiKey, mbOpts...)
		},
		Logger: log.New(log.Writer(), "[API] ", log.LstdFlags),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writePaymentError maps gateway errors onto HTTP. PaymentRequiredError
// carries the full 402 challenge header; the rest map by taxonomy.
func writePaymentError(w http.ResponseWriter, err error) {
	var required *payments.PaymentRequiredError
	if errors.As(err, &required) {
		header, marshalErr := json.Marshal(required.Challenge)
		if marshalErr == nil {
			w.Header().Set("PAYMENT-REQUIRED", string(header))
		}
		writeError(w, http.StatusPaymentRequired, "payment required")
		return
	}
	writeError(w, payments.HTTPStatus(err), err.Error())
}

func storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, database.ErrDuplicate):
		writeError(w, http.StatusConflict, "already exists")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
