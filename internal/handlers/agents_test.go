package handlers

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moltmarkets/backend/internal/database"
	"github.com/moltmarkets/backend/internal/payments"
)

func TestEVMAddressValidation(t *testing.T) {
	valid := []string{
		"0x" + "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2",
		"0x0000000000000000000000000000000000000000",
		"0xABCDEF0123456789abcdef0123456789ABCDEF01",
	}
	for _, addr := range valid {
		assert.True(t, evmAddressRe.MatchString(addr), addr)
	}

	invalid := []string{
		"",
		"0x123",                                        // too short
		"a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2",   // missing 0x
		"0xZZb2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2", // non-hex
		"0x" + "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2ff", // too long
	}
	for _, addr := range invalid {
		assert.False(t, evmAddressRe.MatchString(addr), addr)
	}
}

func TestSolanaAddressValidation(t *testing.T) {
	// The system program address decodes to 32 zero bytes.
	assert.True(t, validSolanaAddress("11111111111111111111111111111111"))

	assert.False(t, validSolanaAddress(""))
	assert.False(t, validSolanaAddress("not-base58-0OIl"))
	assert.False(t, validSolanaAddress("abc")) // decodes, but not 32 bytes
}

func TestWritePaymentErrorChallenge(t *testing.T) {
	rec := httptest.NewRecorder()
	writePaymentError(rec, &payments.PaymentRequiredError{
		Challenge: payments.Challenge{
			Description: "Tip for alice",
			Resource:    "/api/v1/agents/a1/tip",
			Scheme:      "exact",
		},
	})

	assert.Equal(t, 402, rec.Code)

	var challenge payments.Challenge
	require.NoError(t, json.Unmarshal([]byte(rec.Header().Get("PAYMENT-REQUIRED")), &challenge))
	assert.Equal(t, "/api/v1/agents/a1/tip", challenge.Resource)
}

func TestWritePaymentErrorTaxonomy(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{&payments.ConfigurationError{Reason: "no wallets"}, 503},
		{&payments.VerificationError{Detail: "bad sig"}, 402},
		{&payments.FacilitatorError{Err: fmt.Errorf("dial tcp: refused")}, 502},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writePaymentError(rec, tc.err)
		assert.Equal(t, tc.code, rec.Code, "%T", tc.err)
	}
}

func TestStoreErrorMapping(t *testing.T) {
	rec := httptest.NewRecorder()
	storeError(rec, database.ErrNotFound)
	assert.Equal(t, 404, rec.Code)

	rec = httptest.NewRecorder()
	storeError(rec, database.ErrDuplicate)
	assert.Equal(t, 409, rec.Code)

	rec = httptest.NewRecorder()
	storeError(rec, fmt.Errorf("disk on fire"))
	assert.Equal(t, 500, rec.Code)
}
