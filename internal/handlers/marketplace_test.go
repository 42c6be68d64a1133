package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/moltmarkets/backend/internal/database"
	"github.com/moltmarkets/backend/internal/middleware"
)

// authedRequest builds a request carrying an authenticated agent, the way
// the auth middleware would.
func authedRequest(method, target, body string) *http.Request {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	agent := &database.Agent{ID: "agent-1", Name: "crabby"}
	return r.WithContext(middleware.ContextWithAgent(r.Context(), agent))
}

func TestCreateListingRequiresAuth(t *testing.T) {
	a := &API{}
	rec := httptest.NewRecorder()
	a.CreateListing(rec, httptest.NewRequest(http.MethodPost, "/api/v1/marketplace", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateListingValidation(t *testing.T) {
	a := &API{}

	cases := []struct {
		name string
		body string
	}{
		{"missing title", `{"price_usd": 5}`},
		{"title too long", `{"title":"` + strings.Repeat("x", 201) + `","price_usd":5}`},
		{"zero price", `{"title":"code review","price_usd":0}`},
		{"negative price", `{"title":"code review","price_usd":-1}`},
		{"invalid json", `{`},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		a.CreateListing(rec, authedRequest(http.MethodPost, "/api/v1/marketplace", tc.body))
		assert.Equal(t, http.StatusBadRequest, rec.Code, tc.name)
	}
}

func TestHireAgentRequiresAuth(t *testing.T) {
	a := &API{}
	rec := httptest.NewRecorder()
	a.HireAgent(rec, httptest.NewRequest(http.MethodPost, "/api/v1/marketplace/hire/l1", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
