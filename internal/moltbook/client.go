// Package moltbook is the outbound integration with the Moltbook platform:
// a retrying HTTP client for its v1 API, crosspost choreography, a per-agent
// post cooldown, and teaser building for mirrored content.
package moltbook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// DefaultBaseURL is the versioned Moltbook API root.
	DefaultBaseURL = "https://www.moltbook.com/api/v1"
	// SiteURL is used for profile deep links.
	SiteURL = "https://www.moltbook.com"

	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultBackoff    = 2 * time.Second
)

var requestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "moltbook_requests_total",
		Help: "Moltbook API calls by method and result",
	},
	[]string{"method", "result"}, // result: ok, api_error, unreachable
)

// Client is an HTTP client for the Moltbook API with bounded
// exponential-backoff retries on transport failures.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
	sleep      func(time.Duration)
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root (tests, staging).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithTimeout sets the per-attempt HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSleep overrides the backoff sleep function (tests).
func WithSleep(fn func(time.Duration)) Option {
	return func(c *Client) { c.sleep = fn }
}

// NewClient creates a Moltbook client authenticated with the given API key.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     log.New(log.Writer(), "[Moltbook] ", log.LstdFlags),
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is Moltbook's response wrapper: success payloads may sit under
// "data", errors arrive as {"error": "...", "hint": "..."}.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
	Hint  string          `json:"hint"`
}

type requestSpec struct {
	retries int
	backoff time.Duration
}

func defaultSpec() requestSpec {
	return requestSpec{retries: DefaultMaxRetries, backoff: DefaultBackoff}
}

// readOnlySpec fails fast: search and listings are latency-sensitive and
// safe to retry at a higher level.
func readOnlySpec() requestSpec {
	return requestSpec{retries: 1, backoff: DefaultBackoff}
}

// request performs one API call with the retry policy in spec.
//
// Transport failures are retried with backoff × 2^attempt sleeps between
// attempts and surface as *UnreachableError after exhaustion. HTTP >= 400
// and unparseable bodies surface immediately as *APIError: an application
// level failure recurs identically on retry. On success the "data" envelope
// field is unwrapped when present, else the raw body is returned.
func (c *Client) request(ctx context.Context, method, path string, jsonBody any, params url.Values, spec requestSpec) (json.RawMessage, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var payload []byte
	if jsonBody != nil {
		var err error
		payload, err = json.Marshal(jsonBody)
		if err != nil {
			return nil, err
		}
	}

	var lastErr error
	for attempt := 0; attempt < spec.retries; attempt++ {
		var body *bytes.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		} else {
			body = bytes.NewReader(nil)
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if attempt < spec.retries-1 {
				wait := spec.backoff * (1 << attempt)
				c.logger.Printf("%s %s attempt %d failed, retrying in %s: %v",
					method, path, attempt+1, wait, err)
				c.sleep(wait)
			}
			continue
		}

		raw, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			if attempt < spec.retries-1 {
				wait := spec.backoff * (1 << attempt)
				c.logger.Printf("%s %s attempt %d failed mid-body, retrying in %s: %v",
					method, path, attempt+1, wait, readErr)
				c.sleep(wait)
			}
			continue
		}

		var probe any
		if json.Unmarshal(raw, &probe) != nil {
			requestsTotal.WithLabelValues(method, "api_error").Inc()
			return nil, &APIError{
				Message:    fmt.Sprintf("moltbook returned invalid JSON (HTTP %d)", resp.StatusCode),
				StatusCode: resp.StatusCode,
			}
		}

		// Envelope decode fails harmlessly for top-level arrays.
		var env envelope
		_ = json.Unmarshal(raw, &env)

		if resp.StatusCode >= 400 {
			msg := env.Error
			if msg == "" {
				msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
			}
			requestsTotal.WithLabelValues(method, "api_error").Inc()
			return nil, &APIError{
				Message:    msg,
				StatusCode: resp.StatusCode,
				Hint:       env.Hint,
			}
		}

		requestsTotal.WithLabelValues(method, "ok").Inc()
		if len(env.Data) > 0 {
			return env.Data, nil
		}
		return raw, nil
	}

	requestsTotal.WithLabelValues(method, "unreachable").Inc()
	return nil, &UnreachableError{Err: lastErr}
}

// ---- Agent endpoints ----

// Agent is a Moltbook agent account as returned by registration or profile
// lookups.
type Agent struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Username         string `json:"username"`
	Karma            int    `json:"karma"`
	ClaimURL         string `json:"claim_url"`
	VerificationCode string `json:"verification_code"`
	APIKey           string `json:"api_key"`
}

// Register creates a new agent account. Moltbook may return the API key
// immediately in the response.
func (c *Client) Register(ctx context.Context, name, bio string) (*Agent, error) {
	raw, err := c.request(ctx, http.MethodPost, "/agents/register", map[string]string{
		"name": name,
		"bio":  bio,
	}, nil, defaultSpec())
	if err != nil {
		return nil, err
	}
	var agent Agent
	if err := json.Unmarshal(raw, &agent); err != nil {
		return nil, &APIError{Message: "unexpected register payload: " + err.Error()}
	}
	return &agent, nil
}

// GetProfile returns the authenticated agent's own profile.
func (c *Client) GetProfile(ctx context.Context) (*Agent, error) {
	raw, err := c.request(ctx, http.MethodGet, "/agents/me", nil, nil, defaultSpec())
	if err != nil {
		return nil, err
	}
	var agent Agent
	if err := json.Unmarshal(raw, &agent); err != nil {
		return nil, &APIError{Message: "unexpected profile payload: " + err.Error()}
	}
	return &agent, nil
}

// Follow follows another agent by name.
func (c *Client) Follow(ctx context.Context, agentName string) error {
	_, err := c.request(ctx, http.MethodPost, "/agents/"+agentName+"/follow", nil, nil, defaultSpec())
	return err
}

// ---- Submolt endpoints ----

// Submolt is a Moltbook sub-community.
type Submolt struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Subscribers int    `json:"subscribers"`
}

// ListSubmolts lists available submolts. Read-only, fails fast.
func (c *Client) ListSubmolts(ctx context.Context) ([]Submolt, error) {
	raw, err := c.request(ctx, http.MethodGet, "/submolts", nil, nil, readOnlySpec())
	if err != nil {
		return nil, err
	}
	var submolts []Submolt
	if err := json.Unmarshal(raw, &submolts); err != nil {
		return nil, &APIError{Message: "unexpected submolt listing: " + err.Error()}
	}
	return submolts, nil
}

// SubscribeSubmolt subscribes the agent to a submolt.
func (c *Client) SubscribeSubmolt(ctx context.Context, name string) error {
	_, err := c.request(ctx, http.MethodPost, "/submolts/"+name+"/subscribe", nil, nil, defaultSpec())
	return err
}

// CreateSubmolt creates a new submolt.
func (c *Client) CreateSubmolt(ctx context.Context, name, displayName, description string) error {
	_, err := c.request(ctx, http.MethodPost, "/submolts", map[string]string{
		"name":         name,
		"display_name": displayName,
		"description":  description,
	}, nil, defaultSpec())
	return err
}

// ---- Post endpoints ----

// Post is a created Moltbook post.
type Post struct {
	ID      string `json:"id"`
	Submolt string `json:"submolt"`
	Title   string `json:"title"`
	URL     string `json:"url"`
}

// CreatePost creates a text post in a submolt.
func (c *Client) CreatePost(ctx context.Context, submolt, title, content string) (*Post, error) {
	raw, err := c.request(ctx, http.MethodPost, "/posts", map[string]string{
		"submolt": submolt,
		"title":   title,
		"content": content,
	}, nil, defaultSpec())
	if err != nil {
		return nil, err
	}
	var post Post
	if err := json.Unmarshal(raw, &post); err != nil {
		return nil, &APIError{Message: "unexpected post payload: " + err.Error()}
	}
	return &post, nil
}

// CreateLinkPost creates a link post in a submolt.
func (c *Client) CreateLinkPost(ctx context.Context, submolt, title, linkURL string) (*Post, error) {
	raw, err := c.request(ctx, http.MethodPost, "/posts", map[string]string{
		"submolt": submolt,
		"title":   title,
		"url":     linkURL,
		"type":    "link",
	}, nil, defaultSpec())
	if err != nil {
		return nil, err
	}
	var post Post
	if err := json.Unmarshal(raw, &post); err != nil {
		return nil, &APIError{Message: "unexpected post payload: " + err.Error()}
	}
	return &post, nil
}

// ---- Comment and vote endpoints ----

// CreateComment comments on a post.
func (c *Client) CreateComment(ctx context.Context, postID, content string) error {
	_, err := c.request(ctx, http.MethodPost, "/posts/"+postID+"/comments", map[string]string{
		"content": content,
	}, nil, defaultSpec())
	return err
}

// UpvotePost upvotes a post.
func (c *Client) UpvotePost(ctx context.Context, postID string) error {
	_, err := c.request(ctx, http.MethodPost, "/posts/"+postID+"/upvote", nil, nil, defaultSpec())
	return err
}

// ---- Search ----

// Search queries Moltbook. Read-only, fails fast.
func (c *Client) Search(ctx context.Context, query, kind string, limit int) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("type", kind)
	params.Set("limit", fmt.Sprintf("%d", limit))
	return c.request(ctx, http.MethodGet, "/search", nil, params, readOnlySpec())
}
