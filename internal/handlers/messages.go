package handlers

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/moltmarkets/backend/internal/database"
	"github.com/moltmarkets/backend/internal/middleware"
	"github.com/moltmarkets/backend/internal/payments"
)

// Paid direct messages cost a flat rate set by the recipient in a future
// iteration; for now the platform default applies.
const messagePriceUSD = 1.00

type messageRequest struct {
	Body string `json:"body"`
}

// SendMessage delivers a paid DM to another agent via the x402 flow.
func (a *API) SendMessage(w http.ResponseWriter, r *http.Request) {
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
		writeError(w, http.StatusBadRequest, "cannot message yourself")
		return
	}

	var req messageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Body == "" {
		writeError(w, http.StatusBadRequest, "body required")
		return
	}

	outcome, err := a.Gateway.RequirePayment(r.Context(), payments.Signature(r),
		recipient.WalletEVM, recipient.WalletSol, messagePriceUSD,
		fmt.Sprintf("Direct message to %s", recipient.Name),
		fmt.Sprintf("/api/v1/agents/%s/message", recipient.ID))
	if err != nil {
		writePaymentError(w, err)
		return
	}

	msg := &database.Message{
		FromAgentID: sender.ID,
		ToAgentID:   recipient.ID,
		Body:        req.Body,
		PriceUSD:    messagePriceUSD,
	}
	earning := earningFrom(recipient.ID, outcome.FeeSplit)

	if err := a.Store.RecordMessage(r.Context(), msg, earning); err != nil {
		storeError(w, err)
		return
	}

	if a.Metrics != nil {
		a.Metrics.PaymentsCompleted.WithLabelValues("message").Inc()
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": msg,
		"payment": outcome,
	})
}
