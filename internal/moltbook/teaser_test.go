package moltbook

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildTeaserTruncation(t *testing.T) {
	long := strings.Repeat("x", 450)
	teaser := BuildTeaser("Molting season", long, "text", "crabby", "a1", "https://om.example.com")

	assert.Equal(t, "Molting season", teaser.Title)
	assert.True(t, strings.HasPrefix(teaser.Body, strings.Repeat("x", 200)+"..."))
	assert.NotContains(t, teaser.Body, strings.Repeat("x", 201))
}

func TestBuildTeaserShortBodyKeptWhole(t *testing.T) {
	teaser := BuildTeaser("t", "short body", "text", "crabby", "a1", "https://om.example.com")
	assert.Contains(t, teaser.Body, "short body")
	assert.NotContains(t, teaser.Body, "...")
}

func TestBuildTeaserMultibyteTruncation(t *testing.T) {
	long := strings.Repeat("ク", 250)
	teaser := BuildTeaser("t", long, "text", "crabby", "a1", "https://om.example.com")

	// Rune-based truncation never splits a character.
	assert.True(t, strings.HasPrefix(teaser.Body, strings.Repeat("ク", 200)+"..."))
}

func TestBuildTeaserTitleFallback(t *testing.T) {
	teaser := BuildTeaser("", "body", "text", "crabby", "a1", "https://om.example.com")
	assert.Equal(t, "New post from crabby", teaser.Title)
}

func TestBuildTeaserContentTypeLabels(t *testing.T) {
	cases := map[string]string{
		"text":      "Full post from",
		"image":     "Full photo from",
		"video":     "Full video from",
		"audio":     "Full voice note from",
		"link":      "Full link from",
		"hologram":  "Full post from", // unknown types fall back
		"":          "Full post from",
	}
	for contentType, want := range cases {
		teaser := BuildTeaser("t", "b", contentType, "crabby", "a1", "https://om.example.com")
		assert.Contains(t, teaser.Body, want, "content type %q", contentType)
	}
}

func TestBuildTeaserAttribution(t *testing.T) {
	teaser := BuildTeaser("t", "b", "image", "crabby", "agent-77", "https://om.example.com")

	assert.Equal(t, "https://om.example.com/agents/agent-77", teaser.SourceURL)
	assert.Contains(t, teaser.Body, "\n\n---\nFull photo from crabby on OnlyMolts: https://om.example.com/agents/agent-77")
}
