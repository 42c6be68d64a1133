package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/moltmarkets/backend/internal/database"
	"github.com/moltmarkets/backend/internal/middleware"
	"github.com/moltmarkets/backend/internal/payments"
)

// Subscription tier pricing, USD per 30 days.
var tierPrices = map[string]float64{
	"basic":   4.99,
	"premium": 9.99,
}

type subscribeRequest struct {
	Tier string `json:"tier"`
}

// Subscribe starts a paid subscription to a creator via the x402 flow.
func (a *API) Subscribe(w http.ResponseWriter, r *http.Request) {
	subscriber, ok := middleware.AgentFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	creator, err := a.Store.GetAgent(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		storeError(w, err)
		return
	}
	if creator.ID == subscriber.ID {
		writeError(w, http.StatusBadRequest, "cannot subscribe to yourself")
		return
	}

	var req subscribeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	price, ok := tierPrices[req.Tier]
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown tier")
		return
	}

	active, err := a.Store.HasActiveSubscription(r.Context(), subscriber.ID, creator.ID)
	if err != nil {
		storeError(w, err)
		return
	}
	if active {
		writeError(w, http.StatusConflict, "already subscribed")
		return
	}

	outcome, err := a.Gateway.RequirePayment(r.Context(), payments.Signature(r),
		creator.WalletEVM, creator.WalletSol, price,
		fmt.Sprintf("%s subscription to %s", req.Tier, creator.Name),
		fmt.Sprintf("/api/v1/agents/%s/subscribe", creator.ID))
	if err != nil {
		writePaymentError(w, err)
		return
	}

	sub := &database.Subscription{
		SubscriberID: subscriber.ID,
		CreatorID:    creator.ID,
		Tier:         req.Tier,
		PriceUSD:     price,
		ExpiresAt:    time.Now().UTC().Add(30 * 24 * time.Hour),
	}
	earning := earningFrom(creator.ID, outcome.FeeSplit)

	if err := a.Store.RecordSubscription(r.Context(), sub, earning); err != nil {
		storeError(w, err)
		return
	}

	if a.Metrics != nil {
		a.Metrics.PaymentsCompleted.WithLabelValues("subscription").Inc()
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"subscription": sub,
		"payment":      outcome,
	})
}
