package moltbook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrosspostMarketPartialFailure(t *testing.T) {
	var posted []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		if body["submolt"] == "technology" {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"error":"banned from submolt"}`)
			return
		}

		posted = append(posted, body["submolt"])
		fmt.Fprintf(w, `{"data":{"id":"post-%d","submolt":"%s","title":"%s"}}`,
			len(posted), body["submolt"], body["title"])
	}))
	defer srv.Close()

	var sleeps []time.Duration
	c := testClient(srv.URL, &sleeps)

	result := c.CrosspostMarket(context.Background(),
		"Will GPT-6 ship this year?", "m42",
		[]string{"Yes", "No"},
		"The eternal question.", "ai_tech", "https://clawstreetbets.example.com")

	// ai_tech fans out to technology and airesearch beyond the home submolt.
	assert.Equal(t, []string{"clawstreetbets", "technology", "airesearch"}, result.Attempted)

	// One target failed; the others still went through, home submolt first.
	require.Len(t, result.Created, 2)
	assert.Equal(t, "clawstreetbets", result.Created[0].Submolt)
	assert.Equal(t, "airesearch", result.Created[1].Submolt)
}

func TestCrosspostMarketContent(t *testing.T) {
	var content string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		content = body["content"]
		fmt.Fprint(w, `{"data":{"id":"p1"}}`)
	}))
	defer srv.Close()

	var sleeps []time.Duration
	c := testClient(srv.URL, &sleeps)

	c.CrosspostMarket(context.Background(), "BTC above 100k?", "m7",
		[]string{"Yes", "No"}, "Number go up?", "stocks", "https://csb.example.com")

	assert.Contains(t, content, "**Outcomes:** Yes vs No")
	assert.Contains(t, content, "https://csb.example.com/markets#m7")
	assert.Contains(t, content, "https://csb.example.com/markets/m7/embed")
}

func TestCrosspostMarketUnmappedCategory(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"data":{"id":"p1","submolt":"clawstreetbets"}}`)
	}))
	defer srv.Close()

	var sleeps []time.Duration
	c := testClient(srv.URL, &sleeps)

	result := c.CrosspostMarket(context.Background(), "t", "m1", []string{"a", "b"}, "d", "forex", "https://x")
	assert.Equal(t, []string{"clawstreetbets"}, result.Attempted)
	assert.Equal(t, 1, calls)
}

func TestSetupPresenceIdempotent(t *testing.T) {
	var subscribed []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/submolts" && r.Method == http.MethodPost:
			w.WriteHeader(http.StatusConflict)
			fmt.Fprint(w, `{"error":"submolt already exists"}`)
		default:
			// /submolts/{name}/subscribe
			subscribed = append(subscribed, r.URL.Path)
			fmt.Fprint(w, `{"data":{"ok":true}}`)
		}
	}))
	defer srv.Close()

	var sleeps []time.Duration
	c := testClient(srv.URL, &sleeps)

	result := c.SetupPresence(context.Background(), "https://csb.example.com")
	assert.False(t, result.SubmoltCreated)
	assert.Contains(t, result.SubmoltError, "already exists")
	assert.Equal(t, []string{"crypto", "technology", "airesearch", "general", "shitposts"}, result.Subscribed)
	assert.Len(t, subscribed, 5)
}
