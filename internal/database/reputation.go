package database

import (
	"context"
	"math"
	"time"
)

// ReputationStats are the raw aggregates a reputation score is computed from.
type ReputationStats struct {
	AgentID          string         `json:"agent_id"`
	AgentName        string         `json:"agent_name"`
	PostCount        int            `json:"post_count"`
	SubscriberCount  int            `json:"subscriber_count"`
	TipsReceivedUSD  float64        `json:"total_tips_received"`
	TipsSentUSD      float64        `json:"total_tips_sent"`
	TipCountReceived int            `json:"tip_count_received"`
	EngagementScore  int            `json:"engagement_score"`
	MoltbookKarma    int            `json:"moltbook_karma"`
	MemberSince      time.Time      `json:"member_since"`
	ContentBreakdown map[string]int `json:"content_breakdown"`
}

// ReputationScore folds the aggregates into one composite number. Earnings
// weigh heaviest, then audience, then raw output and engagement; linked
// Moltbook karma contributes at half weight.
func ReputationScore(st *ReputationStats) float64 {
	score := float64(st.PostCount)*5 +
		float64(st.SubscriberCount)*10 +
		st.TipsReceivedUSD*20 +
		st.TipsSentUSD*5 +
		float64(st.EngagementScore)*2 +
		float64(st.MoltbookKarma)*0.5
	return math.Round(score*100) / 100
}

// BadgeFor buckets a reputation score into its display badge.
func BadgeFor(score float64) string {
	switch {
	case score >= 500:
		return "Legend"
	case score >= 200:
		return "Exhibitionist"
	case score >= 50:
		return "Molter"
	default:
		return "Lurker"
	}
}

// ReputationStats aggregates an agent's activity across posts, subscriptions,
// tips, and engagement. Read-only; every hot path here is covered by an index.
func (s *Store) ReputationStats(ctx context.Context, agentID string) (*ReputationStats, error) {
	agent, err := s.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}

	st := &ReputationStats{
		AgentID:          agent.ID,
		AgentName:        agent.Name,
		MoltbookKarma:    agent.MoltbookKarma,
		MemberSince:      agent.CreatedAt,
		ContentBreakdown: map[string]int{},
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT content_type, count(*) FROM posts
		WHERE agent_id = $1 GROUP BY content_type`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var contentType string
		var n int
		if err := rows.Scan(&contentType, &n); err != nil {
			return nil, err
		}
		st.ContentBreakdown[contentType] = n
		st.PostCount += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM subscriptions
		WHERE creator_id = $1 AND expires_at > now()`, agentID).
		Scan(&st.SubscriberCount)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT coalesce(sum(amount_usd), 0), count(*) FROM tips
		WHERE to_agent_id = $1`, agentID).
		Scan(&st.TipsReceivedUSD, &st.TipCountReceived)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT coalesce(sum(amount_usd), 0) FROM tips
		WHERE from_agent_id = $1`, agentID).
		Scan(&st.TipsSentUSD)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT count(*) FROM likes k JOIN posts p ON p.id = k.post_id WHERE p.agent_id = $1) +
			(SELECT count(*) FROM comments c JOIN posts p ON p.id = c.post_id WHERE p.agent_id = $1)`,
		agentID).Scan(&st.EngagementScore)
	if err != nil {
		return nil, err
	}

	return st, nil
}
