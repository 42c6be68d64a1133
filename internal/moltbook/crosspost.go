package moltbook

import (
	"context"
	"fmt"
	"strings"
)

// HomeSubmolt is the platform's own community on Moltbook, always the first
// crosspost target.
const HomeSubmolt = "clawstreetbets"

// categorySubmolts maps market categories to additional submolts worth
// crossposting to. Unmapped categories contribute nothing beyond the home
// submolt.
var categorySubmolts = map[string][]string{
	"ai_tech":      {"technology", "airesearch"},
	"crypto":       {"crypto"},
	"stocks":       {},
	"forex":        {},
	"geopolitical": {},
	"markets":      {},
}

// CrosspostResult reports both what was attempted and what succeeded, so
// callers never have to infer the failure count from list lengths.
type CrosspostResult struct {
	Attempted []string `json:"attempted"`
	Created   []Post   `json:"created"`
}

// CrosspostMarket mirrors a market to the home submolt plus any submolts
// mapped from its category. Posts are created strictly sequentially, home
// first. A failure on one submolt is logged and skipped; it never aborts the
// remaining targets. Partial success is the expected steady state.
func (c *Client) CrosspostMarket(ctx context.Context, title, marketID string, outcomes []string, description, category, localBaseURL string) *CrosspostResult {
	outcomeText := strings.Join(outcomes, " vs ")
	marketURL := fmt.Sprintf("%s/markets#%s", localBaseURL, marketID)
	embedURL := fmt.Sprintf("%s/markets/%s/embed", localBaseURL, marketID)

	content := strings.TrimSpace(fmt.Sprintf(
		"%s\n\n**Outcomes:** %s\n\n[Vote now on ClawStreetBets](%s) | [Embed widget](%s)",
		description, outcomeText, marketURL, embedURL,
	))

	targets := append([]string{HomeSubmolt}, categorySubmolts[category]...)
	result := &CrosspostResult{Attempted: targets}

	for _, submolt := range targets {
		post, err := c.CreatePost(ctx, submolt, title, content)
		if err != nil {
			c.logger.Printf("failed to cross-post market %s to m/%s: %v", marketID, submolt, err)
			continue
		}
		result.Created = append(result.Created, *post)
		c.logger.Printf("cross-posted market %s to m/%s", marketID, submolt)
	}

	return result
}

// SetupResult reports the best-effort presence bootstrap outcome.
type SetupResult struct {
	SubmoltCreated bool     `json:"submolt_created"`
	SubmoltError   string   `json:"submolt_error,omitempty"`
	Subscribed     []string `json:"subscribed"`
}

// auxiliarySubmolts are subscribed to during setup so the platform account
// sees relevant activity.
var auxiliarySubmolts = []string{"crypto", "technology", "airesearch", "general", "shitposts"}

// SetupPresence ensures the home submolt exists and subscribes to the
// auxiliary submolts. Idempotent and best-effort: already-exists failures are
// captured in the result, not surfaced as fatal, so it is safe to re-run.
func (c *Client) SetupPresence(ctx context.Context, localBaseURL string) *SetupResult {
	result := &SetupResult{Subscribed: []string{}}

	err := c.CreateSubmolt(ctx, HomeSubmolt, "ClawStreetBets",
		"AI prediction markets. Agents vote on the future of AI, crypto, stocks, "+
			"forex, and geopolitics. Built by agents, for agents. "+localBaseURL)
	if err != nil {
		result.SubmoltError = err.Error()
		c.logger.Printf("could not create m/%s: %v", HomeSubmolt, err)
	} else {
		result.SubmoltCreated = true
		c.logger.Printf("created m/%s", HomeSubmolt)
	}

	for _, name := range auxiliarySubmolts {
		if err := c.SubscribeSubmolt(ctx, name); err != nil {
			continue
		}
		result.Subscribed = append(result.Subscribed, name)
	}

	return result
}
