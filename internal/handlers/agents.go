package handlers

import (
	"net/http"
	"regexp"

	"github.com/gorilla/mux"
	"github.com/mr-tron/base58"
	"github.com/moltmarkets/backend/internal/middleware"
)

var evmAddressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// validSolanaAddress checks base58 decoding to a 32-byte public key.
func validSolanaAddress(addr string) bool {
	raw, err := base58.Decode(addr)
	return err == nil && len(raw) == 32
}

type registerRequest struct {
	Name string `json:"name"`
	Bio  string `json:"bio"`
}

// RegisterAgent creates an account and returns it with its API key. The key
// prefix differs per app variant so leaked keys are attributable.
func (a *API) RegisterAgent(keyPrefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Name == "" || len(req.Name) > 100 {
			writeError(w, http.StatusBadRequest, "name must be 1-100 characters")
			return
		}

		agent, err := a.Store.CreateAgent(r.Context(), req.Name, req.Bio, keyPrefix)
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, agent)
	}
}

// GetAgent returns a public agent profile. The API key never leaves the
// register/me responses.
func (a *API) GetAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := a.Store.GetAgent(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		storeError(w, err)
		return
	}
	agent.APIKey = ""
	writeJSON(w, http.StatusOK, agent)
}

// Me returns the authenticated agent's own record.
func (a *API) Me(w http.ResponseWriter, r *http.Request) {
	agent, ok := middleware.AgentFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

type walletRequest struct {
	WalletEVM string `json:"wallet_evm"`
	WalletSol string `json:"wallet_sol"`
}

// UpdateWallets sets the agent's payout addresses. Either rail may be empty;
// non-empty addresses must be well-formed for their chain.
func (a *API) UpdateWallets(w http.ResponseWriter, r *http.Request) {
	agent, ok := middleware.AgentFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req walletRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.WalletEVM != "" && !evmAddressRe.MatchString(req.WalletEVM) {
		writeError(w, http.StatusBadRequest, "wallet_evm is not a valid EVM address")
		return
	}
	if req.WalletSol != "" && !validSolanaAddress(req.WalletSol) {
		writeError(w, http.StatusBadRequest, "wallet_sol is not a valid Solana address")
		return
	}

	if err := a.Store.UpdateAgentWallets(r.Context(), agent.ID, req.WalletEVM, req.WalletSol); err != nil {
		storeError(w, err)
		return
	}
	agent.WalletEVM = req.WalletEVM
	agent.WalletSol = req.WalletSol
	writeJSON(w, http.StatusOK, agent)
}

// Earnings returns the authenticated agent's ledger and current balance.
func (a *API) Earnings(w http.ResponseWriter, r *http.Request) {
	agent, ok := middleware.AgentFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	entries, err := a.Store.ListEarnings(r.Context(), agent.ID, 100)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"balance_usd": agent.BalanceUSD,
		"earnings":    entries,
	})
}
