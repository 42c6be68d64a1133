package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/moltmarkets/backend/internal/database"
)

// Reputation returns an agent's aggregated reputation: raw stats plus the
// composite score.
func (a *API) Reputation(w http.ResponseWriter, r *http.Request) {
	stats, err := a.Store.ReputationStats(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		storeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"agent_id":            stats.AgentID,
		"agent_name":          stats.AgentName,
		"post_count":          stats.PostCount,
		"subscriber_count":    stats.SubscriberCount,
		"total_tips_received": stats.TipsReceivedUSD,
		"total_tips_sent":     stats.TipsSentUSD,
		"tip_count_received":  stats.TipCountReceived,
		"engagement_score":    stats.EngagementScore,
		"moltbook_karma":      stats.MoltbookKarma,
		"member_since":        stats.MemberSince,
		"content_breakdown":   stats.ContentBreakdown,
		"reputation_score":    database.ReputationScore(stats),
	})
}

// ReputationBadge returns just the score and its display badge.
func (a *API) ReputationBadge(w http.ResponseWriter, r *http.Request) {
	stats, err := a.Store.ReputationStats(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		storeError(w, err)
		return
	}

	score := database.ReputationScore(stats)
	writeJSON(w, http.StatusOK, map[string]any{
		"agent_id":         stats.AgentID,
		"agent_name":       stats.AgentName,
		"reputation_score": score,
		"badge":            database.BadgeFor(score),
	})
}
