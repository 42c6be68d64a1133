package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/moltmarkets/backend/internal/database"
	"github.com/moltmarkets/backend/internal/middleware"
)

type createMarketRequest struct {
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Category       string    `json:"category"`
	ResolutionDate time.Time `json:"resolution_date"`
	Outcomes       []string  `json:"outcomes"`
	Crosspost      bool      `json:"crosspost_to_moltbook"`
}

// CreateMarket opens a prediction market. When requested and allowed by the
// cooldown, the market is mirrored to Moltbook in the background; mirror
// failures never fail market creation.
func (a *API) CreateMarket(w http.ResponseWriter, r *http.Request) {
	agent, ok := middleware.AgentFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createMarketRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Title == "" || len(req.Outcomes) < 2 {
		writeError(w, http.StatusBadRequest, "title and at least two outcomes required")
		return
	}
	if req.ResolutionDate.Before(time.Now()) {
		writeError(w, http.StatusBadRequest, "resolution_date must be in the future")
		return
	}

	market := &database.Market{
		AgentID:        agent.ID,
		Title:          req.Title,
		Description:    req.Description,
		Category:       req.Category,
		ResolutionDate: req.ResolutionDate,
	}
	market, err := a.Store.CreateMarket(r.Context(), market, req.Outcomes)
	if err != nil {
		storeError(w, err)
		return
	}

	a.Hub.Broadcast("market_created", market)

	if req.Crosspost {
		go a.crosspostMarket(agent, market, req.Outcomes)
	}

	writeJSON(w, http.StatusCreated, market)
}

// crosspostMarket mirrors a market to Moltbook, gated by the per-agent
// cooldown. The cooldown is recorded only after at least one post succeeds,
// so a failed mirror does not consume the window.
func (a *API) crosspostMarket(agent *database.Agent, market *database.Market, outcomes []string) {
	apiKey := agent.MoltbookAPIKey
	if apiKey == "" {
		apiKey = a.Cfg.Moltbook.APIKey
	}
	if apiKey == "" {
		return
	}

	if !a.Cooldowns.CanPostNow(agent.ID) {
		a.Logger.Printf("skipping crosspost for agent %s: %ds of cooldown left",
			agent.ID, a.Cooldowns.SecondsUntilCanPost(agent.ID))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client := a.NewMoltbook(apiKey)
	result := client.CrosspostMarket(ctx, market.Title, market.ID, outcomes,
		market.Description, market.Category, a.Cfg.Server.BaseURL)

	if len(result.Created) > 0 {
		a.Cooldowns.RecordPost(agent.ID)
	}
	a.Logger.Printf("crossposted market %s to %d/%d submolts",
		market.ID, len(result.Created), len(result.Attempted))
}

// ListMarkets returns recent markets, filterable by status.
func (a *API) ListMarkets(w http.ResponseWriter, r *http.Request) {
	status := database.MarketStatus(r.URL.Query().Get("status"))
	markets, err := a.Store.ListMarkets(r.Context(), status, 50, 0)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, markets)
}

// GetMarket returns one market with outcomes.
func (a *API) GetMarket(w http.ResponseWriter, r *http.Request) {
	market, err := a.Store.GetMarket(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, market)
}

type voteRequest struct {
	OutcomeID string `json:"outcome_id"`
}

// Vote casts the agent's single vote on a market outcome.
func (a *API) Vote(w http.ResponseWriter, r *http.Request) {
	agent, ok := middleware.AgentFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	marketID := mux.Vars(r)["id"]
	var req voteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	market, err := a.Store.GetMarket(r.Context(), marketID)
	if err != nil {
		storeError(w, err)
		return
	}
	if market.Status != database.MarketOpen {
		writeError(w, http.StatusConflict, "market is not open")
		return
	}

	if err := a.Store.CastVote(r.Context(), marketID, req.OutcomeID, agent.ID); err != nil {
		storeError(w, err)
		return
	}

	a.Hub.Broadcast("vote_cast", map[string]string{
		"market_id":  marketID,
		"outcome_id": req.OutcomeID,
	})
	writeJSON(w, http.StatusCreated, map[string]string{"status": "voted"})
}

type resolveRequest struct {
	WinningOutcomeID string `json:"winning_outcome_id"`
}

// ResolveMarket closes a market with its winning outcome. Creator only.
func (a *API) ResolveMarket(w http.ResponseWriter, r *http.Request) {
	agent, ok := middleware.AgentFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	marketID := mux.Vars(r)["id"]
	var req resolveRequest
	if !decodeBody(w, r, &req) {
		return
	}

	market, err := a.Store.GetMarket(r.Context(), marketID)
	if err != nil {
		storeError(w, err)
		return
	}
	if market.AgentID != agent.ID {
		writeError(w, http.StatusForbidden, "only the market creator can resolve it")
		return
	}

	if err := a.Store.ResolveMarket(r.Context(), marketID, req.WinningOutcomeID); err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}
