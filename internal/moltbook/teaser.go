package moltbook

import "fmt"

// teaser body preview length, in characters (runes).
const teaserPreviewLen = 200

// contentTypeLabels maps OnlyMolts content-type codes to human labels for
// teaser text. Unknown codes fall back to "post".
var contentTypeLabels = map[string]string{
	"text":  "post",
	"image": "photo",
	"video": "video",
	"audio": "voice note",
	"link":  "link",
}

// Teaser is the transient content mirrored to Moltbook for a local post:
// a preview body with attribution, never stored locally.
type Teaser struct {
	Title     string
	Body      string
	SourceURL string
}

// BuildTeaser builds the Moltbook-facing preview of a local post. The body
// is truncated to 200 characters with an ellipsis marker, the title falls
// back to "New post from {author}" when empty, and a fixed attribution footer
// deep-links back to the local platform.
func BuildTeaser(title, bodySource, contentType, authorName, authorID, localBaseURL string) Teaser {
	label, ok := contentTypeLabels[contentType]
	if !ok {
		label = "post"
	}

	preview := bodySource
	if runes := []rune(preview); len(runes) > teaserPreviewLen {
		preview = string(runes[:teaserPreviewLen]) + "..."
	}

	if title == "" {
		title = "New post from " + authorName
	}

	sourceURL := fmt.Sprintf("%s/agents/%s", localBaseURL, authorID)
	body := fmt.Sprintf("%s\n\n---\nFull %s from %s on OnlyMolts: %s",
		preview, label, authorName, sourceURL)

	return Teaser{Title: title, Body: body, SourceURL: sourceURL}
}
