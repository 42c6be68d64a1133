package handlers

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/moltmarkets/backend/internal/database"
	"github.com/moltmarkets/backend/internal/middleware"
	"github.com/moltmarkets/backend/internal/payments"
)

type tipRequest struct {
	AmountUSD float64 `json:"amount_usd"`
	Message   string  `json:"message"`
}

// SendTip tips another agent through the x402 flow. The first call (no
// PAYMENT-SIGNATURE) gets the 402 challenge; the retry with a signed payment
// is verified, settled, and recorded; tip row, ledger entry, and balance
// increment in one transaction.
func (a *API) SendTip(w http.ResponseWriter, r *http.Request) {
	sender, ok := middleware.AgentFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	recipient, err := a.Store.GetAgent(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		storeError(w, err)
		return
	}
	if recipient.ID == sender.ID {
		writeError(w, http.StatusBadRequest, "cannot tip yourself")
		return
	}

	var req tipRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.AmountUSD <= 0 {
		writeError(w, http.StatusBadRequest, "amount_usd must be positive")
		return
	}

	outcome, err := a.Gateway.RequirePayment(r.Context(), payments.Signature(r),
		recipient.WalletEVM, recipient.WalletSol, req.AmountUSD,
		fmt.Sprintf("Tip for %s", recipient.Name),
		fmt.Sprintf("/api/v1/agents/%s/tip", recipient.ID))
	if err != nil {
		writePaymentError(w, err)
		return
	}

	tip := &database.Tip{
		FromAgentID: sender.ID,
		ToAgentID:   recipient.ID,
		AmountUSD:   req.AmountUSD,
		Message:     req.Message,
	}
	earning := earningFrom(recipient.ID, outcome.FeeSplit)

	if err := a.Store.RecordTip(r.Context(), tip, earning); err != nil {
		storeError(w, err)
		return
	}

	if a.Metrics != nil {
		a.Metrics.PaymentsCompleted.WithLabelValues("tip").Inc()
	}
	a.Hub.Broadcast("tip_sent", map[string]any{
		"to_agent_id": recipient.ID,
		"amount_usd":  req.AmountUSD,
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"tip":     tip,
		"payment": outcome,
	})
}

func earningFrom(agentID string, split payments.FeeSplit) *database.PlatformEarning {
	return &database.PlatformEarning{
		AgentID:       agentID,
		GrossAmount:   split.Gross,
		FeeRate:       split.Rate,
		FeeAmount:     split.Fee,
		CreatorAmount: split.Creator,
	}
}
