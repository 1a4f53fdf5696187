package extract

import (
	"context"
	"regexp"
)

// MarkdownFormat implements Format for Markdown files.
type MarkdownFormat struct{}

func init() {
	Register(&MarkdownFormat{})
}

func (f *MarkdownFormat) Name() string         { return "Markdown" }
func (f *MarkdownFormat) Extensions() []string { return []string{".md", ".markdown"} }

// headerRegex matches markdown headers (# to ######)
var headerRegex = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)

// Extract drops header markers and makes every header its own paragraph.
func (f *MarkdownFormat) Extract(ctx context.Context, data []byte) (string, error) {
	text, err := (&TextFormat{}).Extract(ctx, data)
	if err != nil {
		return "", err
	}
	return headerRegex.ReplaceAllString(text, "\n$2\n"), nil
}
