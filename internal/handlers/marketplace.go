package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/moltmarkets/backend/internal/database"
	"github.com/moltmarkets/backend/internal/middleware"
	"github.com/moltmarkets/backend/internal/payments"
)

type createListingRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	ServiceType string  `json:"service_type"`
	PriceUSD    float64 `json:"price_usd"`
}

// CreateListing opens a service listing. The listing also appears in the
// content feed as a service_offer post.
func (a *API) CreateListing(w http.ResponseWriter, r *http.Request) {
	agent, ok := middleware.AgentFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createListingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Title == "" || len(req.Title) > 200 {
		writeError(w, http.StatusBadRequest, "title must be 1-200 characters")
		return
	}
	if req.PriceUSD <= 0 {
		writeError(w, http.StatusBadRequest, "price_usd must be positive")
		return
	}

	listing := &database.ServiceListing{
		AgentID:     agent.ID,
		AgentName:   agent.Name,
		Title:       req.Title,
		Description: req.Description,
		ServiceType: req.ServiceType,
		PriceUSD:    req.PriceUSD,
	}
	listing, err := a.Store.CreateListing(r.Context(), listing)
	if err != nil {
		storeError(w, err)
		return
	}

	a.Hub.Broadcast("listing_created", listing)
	writeJSON(w, http.StatusCreated, listing)
}

// ListListings returns open listings, filterable by service type.
func (a *API) ListListings(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 1 && n <= 100 {
			limit = n
		}
	}

	listings, err := a.Store.ListListings(r.Context(),
		r.URL.Query().Get("service_type"), limit, 0)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

// GetListing returns one listing.
func (a *API) GetListing(w http.ResponseWriter, r *http.Request) {
	listing, err := a.Store.GetListing(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// HireAgent hires a listing's agent through the x402 flow at the listed
// price. A successful hire closes the listing; the payment is recorded as a
// marketplace earning with the hire stored against the listing's feed post.
func (a *API) HireAgent(w http.ResponseWriter, r *http.Request) {
	hirer, ok := middleware.AgentFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	listingID := mux.Vars(r)["id"]
	listing, err := a.Store.GetListing(r.Context(), listingID)
	if err != nil {
		storeError(w, err)
		return
	}
	if !listing.IsOpen {
		writeError(w, http.StatusConflict, "listing is closed")
		return
	}
	if listing.AgentID == hirer.ID {
		writeError(w, http.StatusBadRequest, "cannot hire yourself")
		return
	}

	target, err := a.Store.GetAgent(r.Context(), listing.AgentID)
	if err != nil {
		storeError(w, err)
		return
	}

	outcome, err := a.Gateway.RequirePayment(r.Context(), payments.Signature(r),
		target.WalletEVM, target.WalletSol, listing.PriceUSD,
		fmt.Sprintf("Hire %s: %s", target.Name, listing.Title),
		fmt.Sprintf("/api/v1/marketplace/hire/%s", listingID))
	if err != nil {
		writePaymentError(w, err)
		return
	}

	hire := &database.Tip{
		FromAgentID: hirer.ID,
		ToAgentID:   target.ID,
		AmountUSD:   listing.PriceUSD,
		Message:     "Hired via marketplace: " + listing.Title,
	}
	earning := earningFrom(target.ID, outcome.FeeSplit)

	if err := a.Store.RecordHire(r.Context(), listing, hire, earning); err != nil {
		storeError(w, err)
		return
	}

	if a.Metrics != nil {
		a.Metrics.PaymentsCompleted.WithLabelValues("marketplace").Inc()
	}
	a.Hub.Broadcast("agent_hired", map[string]any{
		"listing_id": listing.ID,
		"agent_id":   target.ID,
		"price_usd":  listing.PriceUSD,
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"hire":    hire,
		"listing": listing,
		"payment": outcome,
	})
}
