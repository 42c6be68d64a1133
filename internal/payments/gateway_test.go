package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moltmarkets/backend/internal/config"
)

func testGateway(cfg config.PaymentsConfig) *Gateway {
	// nil metrics: avoids duplicate prometheus registration across tests
	return NewGateway(cfg, nil)
}

func TestComputeFeeSplit(t *testing.T) {
	g := testGateway(config.PaymentsConfig{FeeRate: 0.10})

	split := g.ComputeFeeSplit(10.00)
	assert.Equal(t, 10.00, split.Gross)
	assert.Equal(t, 1.00, split.Fee)
	assert.Equal(t, 9.00, split.Creator)
	assert.Equal(t, 0.10, split.Rate)
}

func TestComputeFeeSplitRoundingDrift(t *testing.T) {
	g := testGateway(config.PaymentsConfig{FeeRate: 0.10})

	// Fee and creator round independently, so the recombined total may drift
	// from gross, but never by more than one unit in the fourth decimal.
	amounts := []float64{0.01, 0.0333, 1.11115, 4.99, 9.99, 123.4567, 0.00005}
	for _, gross := range amounts {
		split := g.ComputeFeeSplit(gross)
		drift := math.Abs(split.Fee + split.Creator - split.Gross)
		assert.LessOrEqual(t, drift, 0.0001, "gross %v drifted by %v", gross, drift)
		assert.Equal(t, round4(split.Fee), split.Fee, "fee not 4-decimal for gross %v", gross)
		assert.Equal(t, round4(split.Creator), split.Creator, "creator not 4-decimal for gross %v", gross)
	}
}

func TestBuildPaymentOptionsOrderAndFallback(t *testing.T) {
	g := testGateway(config.PaymentsConfig{
		WalletEVM: "0xPLATFORM",
		WalletSol: "PlatformSol",
		Network:   "mainnet",
	})

	options := g.BuildPaymentOptions("0xCREATOR", "", "$5.0000")
	require.Len(t, options, 2)

	// EVM first, always.
	assert.Equal(t, "base", options[0].Network)
	assert.Equal(t, "0xCREATOR", options[0].PayTo)
	assert.Equal(t, "exact", options[0].Scheme)
	assert.Equal(t, "USDC", options[0].Currency)

	// Missing per-transaction wallet falls back to the platform default.
	assert.Equal(t, "solana", options[1].Network)
	assert.Equal(t, "PlatformSol", options[1].PayTo)
}

func TestBuildPaymentOptionsSingleRail(t *testing.T) {
	g := testGateway(config.PaymentsConfig{WalletEVM: "0xONLY", Network: "testnet"})

	options := g.BuildPaymentOptions("", "", "$1.0000")
	require.Len(t, options, 1)
	assert.Equal(t, "base-sepolia", options[0].Network)
}

func TestPaymentRequiredResponseNoWallets(t *testing.T) {
	g := testGateway(config.PaymentsConfig{FeeRate: 0.10})

	_, err := g.PaymentRequiredResponse("", "", 5.00, "Tip", "/api/v1/agents/a1/tip")
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(err))
}

func TestPaymentRequiredResponseShape(t *testing.T) {
	g := testGateway(config.PaymentsConfig{
		FeeRate:   0.10,
		WalletEVM: "0xPLATFORM",
		Network:   "mainnet",
	})

	resp, err := g.PaymentRequiredResponse("", "", 5.00, "Tip for alice", "/api/v1/agents/a1/tip")
	require.NoError(t, err)

	var challenge Challenge
	require.NoError(t, json.Unmarshal([]byte(resp.Header), &challenge))
	assert.Equal(t, "/api/v1/agents/a1/tip", challenge.Resource)
	assert.Equal(t, "exact", challenge.Scheme)
	assert.Equal(t, "application/json", challenge.MimeType)
	require.Len(t, challenge.Accepts, 1)
	assert.Equal(t, "$5.0000", challenge.Accepts[0].Price)

	// Body uses display precision, header keeps settlement precision.
	assert.Equal(t, "payment_required", resp.Body.Error)
	assert.Contains(t, resp.Body.Message, "$5.00")
	assert.Equal(t, "$5.00", resp.Body.FeeBreakdown.Total)
	assert.Equal(t, "$4.50", resp.Body.FeeBreakdown.CreatorReceives)
	assert.Equal(t, "$0.50", resp.Body.FeeBreakdown.PlatformFee)
	assert.Equal(t, "10%", resp.Body.FeeBreakdown.FeeRate)

	rec := httptest.NewRecorder()
	resp.Write(rec)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, resp.Header, rec.Header().Get("PAYMENT-REQUIRED"))
}

func TestSignatureCaseInsensitive(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	assert.Empty(t, Signature(r))

	r.Header.Set("Payment-Signature", "sig123")
	assert.Equal(t, "sig123", Signature(r))
}

func TestRequirePaymentWithoutSignature(t *testing.T) {
	g := testGateway(config.PaymentsConfig{FeeRate: 0.10, WalletEVM: "0xP"})

	outcome, err := g.RequirePayment(context.Background(), "", "", "", 2.50, "DM", "/api/v1/agents/a1/message")
	assert.Nil(t, outcome)

	var payErr *PaymentRequiredError
	require.ErrorAs(t, err, &payErr)
	assert.Equal(t, "/api/v1/agents/a1/message", payErr.Challenge.Resource)
	assert.Equal(t, http.StatusPaymentRequired, HTTPStatus(err))
}

func TestVerifyPaymentEmptySignature(t *testing.T) {
	g := testGateway(config.PaymentsConfig{})

	result, err := g.VerifyPayment(context.Background(), "", 1.00)
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestVerifyPaymentSuccess(t *testing.T) {
	var gotBody verifyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/verify", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{"valid": true, "payer": "0xABC"})
	}))
	defer srv.Close()

	g := testGateway(config.PaymentsConfig{FacilitatorURL: srv.URL})

	result, err := g.VerifyPayment(context.Background(), "sig", 5.00)
	require.NoError(t, err)
	assert.Equal(t, true, result["valid"])
	assert.Equal(t, "sig", gotBody.Payment)
	assert.Equal(t, "$5.0000", gotBody.ExpectedAmount)
}

func TestVerifyPaymentRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"signature expired"}`)
	}))
	defer srv.Close()

	g := testGateway(config.PaymentsConfig{FacilitatorURL: srv.URL})

	_, err := g.VerifyPayment(context.Background(), "sig", 5.00)
	var verErr *VerificationError
	require.ErrorAs(t, err, &verErr)
	assert.Contains(t, verErr.Detail, "signature expired")
	assert.Equal(t, http.StatusPaymentRequired, HTTPStatus(err))
}

func TestVerifyPaymentFacilitatorUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	g := testGateway(config.PaymentsConfig{FacilitatorURL: srv.URL})

	_, err := g.VerifyPayment(context.Background(), "sig", 5.00)
	var facErr *FacilitatorError
	require.ErrorAs(t, err, &facErr)
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(err))
	assert.Error(t, errors.Unwrap(facErr))
}

func TestSettlePaymentSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/settle", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"status": "settled", "tx": "0xdeadbeef"})
	}))
	defer srv.Close()

	g := testGateway(config.PaymentsConfig{FacilitatorURL: srv.URL})

	result := g.SettlePayment(context.Background(), "sig")
	assert.Equal(t, "settled", result["status"])
}

func TestSettlePaymentNeverFails(t *testing.T) {
	t.Run("http error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		g := testGateway(config.PaymentsConfig{FacilitatorURL: srv.URL})
		result := g.SettlePayment(context.Background(), "sig")
		assert.Equal(t, "settlement_pending", result["status"])
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		g := testGateway(config.PaymentsConfig{FacilitatorURL: srv.URL})
		result := g.SettlePayment(context.Background(), "sig")
		assert.Equal(t, "settlement_pending", result["status"])
	})
}

func TestRequirePaymentFullFlow(t *testing.T) {
	settleCalled := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/verify":
			json.NewEncoder(w).Encode(map[string]any{"valid": true})
		case "/settle":
			settleCalled = true
			json.NewEncoder(w).Encode(map[string]any{"status": "settled"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	g := testGateway(config.PaymentsConfig{
		FacilitatorURL: srv.URL,
		FeeRate:        0.10,
		WalletEVM:      "0xP",
	})

	outcome, err := g.RequirePayment(context.Background(), "sig", "", "", 10.00, "Tip", "/tip")
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.True(t, outcome.Verified)
	assert.True(t, settleCalled)
	assert.Equal(t, 1.00, outcome.FeeSplit.Fee)
	assert.Equal(t, 9.00, outcome.FeeSplit.Creator)
}

func TestRequirePaymentVerificationStopsSettlement(t *testing.T) {
	settleCalled := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/verify":
			w.WriteHeader(http.StatusForbidden)
		case "/settle":
			settleCalled = true
		}
	}))
	defer srv.Close()

	g := testGateway(config.PaymentsConfig{FacilitatorURL: srv.URL, WalletEVM: "0xP"})

	_, err := g.RequirePayment(context.Background(), "sig", "", "", 10.00, "Tip", "/tip")
	var verErr *VerificationError
	require.ErrorAs(t, err, &verErr)
	assert.False(t, settleCalled)
}
