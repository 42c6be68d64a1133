// Package payments implements the server side of the x402 payment protocol.
//
// Flow: a route handler calls Gateway.RequirePayment before performing a paid
// action. Without a PAYMENT-SIGNATURE header the caller gets a 402 challenge;
// with one, the signature is verified against the facilitator, settled, and
// the fee split returned for the caller to persist.
//
// Callers MUST persist the resulting earning ledger entry and the creator
// balance delta atomically with the business record (tip, message, hire);
// database.Store.RecordEarning provides that as a single transaction.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/moltmarkets/backend/internal/config"
)

const (
	verifyTimeout = 30 * time.Second
	// Settlement waits on chain finality, so it gets twice the verify timeout.
	settleTimeout = 60 * time.Second
)

// FeeSplit is the division of a gross payment into platform fee and creator
// amount. Fee and Creator are each rounded to 4 decimals independently, so
// Fee+Creator may drift from Gross by up to 0.0001. That drift is documented
// behavior inherited from the fee contract, not something to correct here.
type FeeSplit struct {
	Gross   float64 `json:"gross"`
	Fee     float64 `json:"fee"`
	Creator float64 `json:"creator"`
	Rate    float64 `json:"rate"`
}

// PaymentOption is one payable destination in an x402 challenge.
type PaymentOption struct {
	Scheme   string `json:"scheme"`
	Network  string `json:"network"`
	PayTo    string `json:"pay_to"`
	Price    string `json:"price"`
	Currency string `json:"currency"`
}

// Challenge is the JSON payload carried by the PAYMENT-REQUIRED header.
type Challenge struct {
	Accepts     []PaymentOption `json:"accepts"`
	Description string          `json:"description"`
	Resource    string          `json:"resource"`
	Scheme      string          `json:"scheme"`
	MimeType    string          `json:"mimeType"`
}

// FeeBreakdown is the human-readable split shown in 402 response bodies.
// All values are display strings ($X.YY).
type FeeBreakdown struct {
	Total           string `json:"total"`
	CreatorReceives string `json:"creator_receives"`
	PlatformFee     string `json:"platform_fee"`
	FeeRate         string `json:"fee_rate"`
}

// RequiredResponse is a fully built 402 response: header value plus body.
type RequiredResponse struct {
	Header string
	Body   RequiredBody
}

// RequiredBody is the JSON body of a 402 response.
type RequiredBody struct {
	Error          string          `json:"error"`
	Message        string          `json:"message"`
	PaymentOptions []PaymentOption `json:"payment_options"`
	Description    string          `json:"description"`
	FeeBreakdown   FeeBreakdown    `json:"fee_breakdown"`
}

// Outcome is the result of a successful RequirePayment call. Verification
// and Settlement are the facilitator's payloads, passed through opaque.
type Outcome struct {
	Verified     bool           `json:"verified"`
	Verification map[string]any `json:"verification"`
	Settlement   map[string]any `json:"settlement"`
	FeeSplit     FeeSplit       `json:"fee_split"`
}

// Gateway implements the x402 challenge/verify/settle protocol against a
// facilitator service.
type Gateway struct {
	cfg     config.PaymentsConfig
	client  *http.Client
	logger  *log.Logger
	metrics *Metrics
}

// NewGateway creates a Gateway. A nil metrics disables instrumentation
// (useful in tests to avoid duplicate prometheus registration).
func NewGateway(cfg config.PaymentsConfig, metrics *Metrics) *Gateway {
	return &Gateway{
		cfg:     cfg,
		client:  &http.Client{},
		logger:  log.New(log.Writer(), "[Payments] ", log.LstdFlags),
		metrics: metrics,
	}
}

// ComputeFeeSplit splits a gross USD amount by the configured platform rate.
func (g *Gateway) ComputeFeeSplit(gross float64) FeeSplit {
	fee := round4(gross * g.cfg.FeeRate)
	creator := round4(gross - fee)
	return FeeSplit{Gross: gross, Fee: fee, Creator: creator, Rate: g.cfg.FeeRate}
}

// BuildPaymentOptions returns one option per rail that has a payable wallet,
// falling back to the platform default wallet when the per-transaction wallet
// is empty. EVM comes before Solana; clients display options in order.
func (g *Gateway) BuildPaymentOptions(payToEVM, payToSol, priceUSD string) []PaymentOption {
	var options []PaymentOption

	evmWallet := payToEVM
	if evmWallet == "" {
		evmWallet = g.cfg.WalletEVM
	}
	solWallet := payToSol
	if solWallet == "" {
		solWallet = g.cfg.WalletSol
	}

	if evmWallet != "" {
		options = append(options, PaymentOption{
			Scheme:   "exact",
			Network:  g.cfg.NetworkID("evm"),
			PayTo:    evmWallet,
			Price:    priceUSD,
			Currency: "USDC",
		})
	}

	if solWallet != "" {
		options = append(options, PaymentOption{
			Scheme:   "exact",
			Network:  g.cfg.NetworkID("solana"),
			PayTo:    solWallet,
			Price:    priceUSD,
			Currency: "USDC",
		})
	}

	return options
}

func (g *Gateway) buildChallenge(payToEVM, payToSol string, amountUSD float64, description, resource string) (Challenge, error) {
	options := g.BuildPaymentOptions(payToEVM, payToSol, fmt.Sprintf("$%.4f", amountUSD))
	if len(options) == 0 {
		return Challenge{}, &ConfigurationError{
			Reason: "no payment wallets configured; agent must set a wallet address",
		}
	}
	return Challenge{
		Accepts:     options,
		Description: description,
		Resource:    resource,
		Scheme:      "exact",
		MimeType:    "application/json",
	}, nil
}

// PaymentRequiredResponse builds a complete 402 response for a paid resource.
// Fails with *ConfigurationError when no rail has a payable destination.
func (g *Gateway) PaymentRequiredResponse(payToEVM, payToSol string, amountUSD float64, description, resource string) (*RequiredResponse, error) {
	challenge, err := g.buildChallenge(payToEVM, payToSol, amountUSD, description, resource)
	if err != nil {
		return nil, err
	}

	header, err := json.Marshal(challenge)
	if err != nil {
		return nil, err
	}

	split := g.ComputeFeeSplit(amountUSD)

	return &RequiredResponse{
		Header: string(header),
		Body: RequiredBody{
			Error:          "payment_required",
			Message:        fmt.Sprintf("Payment of $%.2f USDC required: %s", amountUSD, description),
			PaymentOptions: challenge.Accepts,
			Description:    description,
			FeeBreakdown: FeeBreakdown{
				Total:           fmt.Sprintf("$%.2f", split.Gross),
				CreatorReceives: fmt.Sprintf("$%.2f", split.Creator),
				PlatformFee:     fmt.Sprintf("$%.2f", split.Fee),
				FeeRate:         fmt.Sprintf("%.0f%%", split.Rate*100),
			},
		},
	}, nil
}

// Write emits the 402 response with its PAYMENT-REQUIRED header.
func (r *RequiredResponse) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("PAYMENT-REQUIRED", r.Header)
	w.WriteHeader(http.StatusPaymentRequired)
	json.NewEncoder(w).Encode(r.Body)
}

// Signature extracts the payment signature from a request. Header lookup is
// case-insensitive per the x402 convention.
func Signature(r *http.Request) string {
	if sig := r.Header.Get("PAYMENT-SIGNATURE"); sig != "" {
		return sig
	}
	return r.Header.Get("payment-signature")
}

type verifyRequest struct {
	Payment        string `json:"payment"`
	ExpectedAmount string `json:"expected_amount"`
}

type settleRequest struct {
	Payment string `json:"payment"`
}

// VerifyPayment checks a payment signature against the facilitator's /verify
// endpoint. An empty signature returns (nil, nil): payment not yet provided,
// which is not an error. A facilitator rejection fails with
// *VerificationError carrying the response body; a network failure fails with
// *FacilitatorError. Exactly one attempt is made; see FacilitatorError.
func (g *Gateway) VerifyPayment(ctx context.Context, signature string, expectedAmount float64) (map[string]any, error) {
	if signature == "" {
		return nil, nil
	}

	start := time.Now()
	status, body, err := g.postFacilitator(ctx, "/verify", verifyRequest{
		Payment:        signature,
		ExpectedAmount: fmt.Sprintf("$%.4f", expectedAmount),
	}, verifyTimeout)
	g.observe("verify", start, status, err)

	if err != nil {
		return nil, &FacilitatorError{Err: err}
	}
	if status != http.StatusOK {
		return nil, &VerificationError{Detail: string(body)}
	}

	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &VerificationError{Detail: fmt.Sprintf("facilitator returned invalid JSON (HTTP %d)", status)}
	}
	return result, nil
}

// SettlePayment settles a verified payment via the facilitator's /settle
// endpoint. Settlement never fails the caller: on a non-200 or a network
// error it returns a settlement_pending result so the already-verified action
// can proceed and be reconciled later. The facilitator being slow is not the
// same as the payment being wrong.
func (g *Gateway) SettlePayment(ctx context.Context, signature string) map[string]any {
	start := time.Now()
	status, body, err := g.postFacilitator(ctx, "/settle", settleRequest{Payment: signature}, settleTimeout)
	g.observe("settle", start, status, err)

	if err != nil {
		g.logger.Printf("settlement deferred, facilitator unreachable: %v", err)
		return map[string]any{
			"status": "settlement_pending",
			"note":   "facilitator unreachable, settlement will retry",
		}
	}
	if status != http.StatusOK {
		g.logger.Printf("settlement deferred, facilitator returned HTTP %d", status)
		return map[string]any{
			"status": "settlement_pending",
			"raw":    string(body),
		}
	}

	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		return map[string]any{
			"status": "settlement_pending",
			"raw":    string(body),
		}
	}
	return result
}

// RequirePayment is the single entry point for paid routes.
//
// No signature present → *PaymentRequiredError carrying the challenge.
// Signature present → verify (hard fail on rejection or facilitator outage),
// then settle (never fails), then return the outcome with the fee split the
// caller must persist.
func (g *Gateway) RequirePayment(ctx context.Context, signature, payToEVM, payToSol string, amountUSD float64, description, resource string) (*Outcome, error) {
	if signature == "" {
		challenge, err := g.buildChallenge(payToEVM, payToSol, amountUSD, description, resource)
		if err != nil {
			return nil, err
		}
		return nil, &PaymentRequiredError{Challenge: challenge}
	}

	verification, err := g.VerifyPayment(ctx, signature, amountUSD)
	if err != nil {
		return nil, err
	}

	settlement := g.SettlePayment(ctx, signature)

	return &Outcome{
		Verified:     true,
		Verification: verification,
		Settlement:   settlement,
		FeeSplit:     g.ComputeFeeSplit(amountUSD),
	}, nil
}

func (g *Gateway) postFacilitator(ctx context.Context, path string, payload any, timeout time.Duration) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.FacilitatorURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, raw, nil
}

func (g *Gateway) observe(endpoint string, start time.Time, status int, err error) {
	if g.metrics == nil {
		return
	}
	result := "ok"
	switch {
	case err != nil:
		result = "unreachable"
	case status != http.StatusOK:
		result = "rejected"
	}
	g.metrics.FacilitatorRequests.WithLabelValues(endpoint, result).Inc()
	g.metrics.FacilitatorDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
