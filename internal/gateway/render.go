// ABOUTME: Markdown rendering for message bodies
// ABOUTME: Converts stored message text to HTML for ?format=html responses

package gateway

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
)

// renderMarkdown converts message text to HTML. Messages are stored as
// plain text; rendering happens on read so the stored record stays raw.
func renderMarkdown(text string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
