package moltbook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sleepless returns a client option stack pointing at srv that records
// backoff sleeps instead of performing them.
func testClient(baseURL string, sleeps *[]time.Duration) *Client {
	return NewClient("mb_test_key",
		WithBaseURL(baseURL),
		WithSleep(func(d time.Duration) { *sleeps = append(*sleeps, d) }),
	)
}

func TestRequestSendsAuthHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer mb_test_key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		fmt.Fprint(w, `{"data":{"id":"a1","name":"claw","username":"claw_bot","karma":42}}`)
	}))
	defer srv.Close()

	var sleeps []time.Duration
	c := testClient(srv.URL, &sleeps)

	agent, err := c.GetProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "claw_bot", agent.Username)
	assert.Equal(t, 42, agent.Karma)
	assert.Empty(t, sleeps)
}

func TestRequestUnwrapsDataEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"id":"p1","submolt":"crypto","title":"hello"}}`)
	}))
	defer srv.Close()

	var sleeps []time.Duration
	c := testClient(srv.URL, &sleeps)

	post, err := c.CreatePost(context.Background(), "crypto", "hello", "body")
	require.NoError(t, err)
	assert.Equal(t, "p1", post.ID)
	assert.Equal(t, "crypto", post.Submolt)
}

func TestRequestTopLevelArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"name":"crypto","subscribers":120},{"name":"general"}]`)
	}))
	defer srv.Close()

	var sleeps []time.Duration
	c := testClient(srv.URL, &sleeps)

	submolts, err := c.ListSubmolts(context.Background())
	require.NoError(t, err)
	require.Len(t, submolts, 2)
	assert.Equal(t, 120, submolts[0].Subscribers)
}

func TestAPIErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":"submolt does not exist","hint":"create it first"}`)
	}))
	defer srv.Close()

	var sleeps []time.Duration
	c := testClient(srv.URL, &sleeps)

	_, err := c.GetProfile(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "submolt does not exist", apiErr.Message)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "create it first", apiErr.Hint)

	// Application errors recur identically on retry, so exactly one attempt.
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, sleeps)
}

func TestInvalidJSONNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `<html>gateway error</html>`)
	}))
	defer srv.Close()

	var sleeps []time.Duration
	c := testClient(srv.URL, &sleeps)

	_, err := c.GetProfile(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Message, "invalid JSON")
	assert.Equal(t, int32(1), calls.Load())
}

func TestTransportErrorRetriedWithBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse all connections

	var sleeps []time.Duration
	c := testClient(srv.URL, &sleeps)

	_, err := c.GetProfile(context.Background())
	var unreachable *UnreachableError
	require.ErrorAs(t, err, &unreachable)

	// Three attempts, sleeping base*2^attempt between them: 2s then 4s.
	require.Len(t, sleeps, 2)
	assert.Equal(t, 2*time.Second, sleeps[0])
	assert.Equal(t, 4*time.Second, sleeps[1])
}

func TestTransportErrorRecoversMidRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			// Kill the connection without a response.
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		fmt.Fprint(w, `{"data":{"id":"a1","username":"claw_bot"}}`)
	}))
	defer srv.Close()

	var sleeps []time.Duration
	c := testClient(srv.URL, &sleeps)

	agent, err := c.GetProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "claw_bot", agent.Username)
	require.Len(t, sleeps, 1)
	assert.Equal(t, 2*time.Second, sleeps[0])
}

func TestSearchFailsFast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	var sleeps []time.Duration
	c := testClient(srv.URL, &sleeps)

	_, err := c.Search(context.Background(), "prediction", "posts", 10)
	var unreachable *UnreachableError
	require.ErrorAs(t, err, &unreachable)

	// Single attempt, no backoff sleeps.
	assert.Empty(t, sleeps)
}

func TestSearchQueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "prediction markets", r.URL.Query().Get("q"))
		assert.Equal(t, "posts", r.URL.Query().Get("type"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer srv.Close()

	var sleeps []time.Duration
	c := testClient(srv.URL, &sleeps)

	raw, err := c.Search(context.Background(), "prediction markets", "posts", 5)
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage("[]"), raw)
}

func TestRegisterReturnsAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ClawBot", body["name"])
		fmt.Fprint(w, `{"data":{"id":"a9","name":"ClawBot","api_key":"mb_fresh","claim_url":"https://www.moltbook.com/claim/x"}}`)
	}))
	defer srv.Close()

	var sleeps []time.Duration
	c := testClient(srv.URL, &sleeps)

	agent, err := c.Register(context.Background(), "ClawBot", "a betting agent")
	require.NoError(t, err)
	assert.Equal(t, "mb_fresh", agent.APIKey)
	assert.NotEmpty(t, agent.ClaimURL)
}
