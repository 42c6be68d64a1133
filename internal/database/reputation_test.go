package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReputationScoreWeights(t *testing.T) {
	st := &ReputationStats{
		PostCount:       3,  // 15
		SubscriberCount: 2,  // 20
		TipsReceivedUSD: 1.5, // 30
		TipsSentUSD:     2,  // 10
		EngagementScore: 4,  // 8
		MoltbookKarma:   10, // 5
	}
	assert.Equal(t, 88.0, ReputationScore(st))
}

func TestReputationScoreEmptyAgent(t *testing.T) {
	assert.Equal(t, 0.0, ReputationScore(&ReputationStats{}))
}

func TestReputationScoreRounding(t *testing.T) {
	st := &ReputationStats{TipsReceivedUSD: 0.3333}
	// 0.3333 * 20 = 6.666, rounds to two decimals.
	assert.Equal(t, 6.67, ReputationScore(st))
}

func TestBadgeThresholds(t *testing.T) {
	cases := []struct {
		score float64
		badge string
	}{
		{0, "Lurker"},
		{49.99, "Lurker"},
		{50, "Molter"},
		{199.99, "Molter"},
		{200, "Exhibitionist"},
		{499.99, "Exhibitionist"},
		{500, "Legend"},
		{10000, "Legend"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.badge, BadgeFor(tc.score), "score %v", tc.score)
	}
}
