package extract

import (
	"regexp"
	"strings"

	"github.com/metcalfc/prr/internal/layout"
)

var (
	hyphenWrap = regexp.MustCompile(`(\w+)-\n(\w+)`)
	blankLines = regexp.MustCompile(`\n\s*\n`)
)

// Normalize rejoins hyphenated line wraps, splits paragraphs on existing
// layout.PageBreak markers and then on blank lines, collapses whitespace
// inside each paragraph and joins the non-empty paragraphs with
// layout.PageBreak.
func Normalize(raw string) string {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var paragraphs []string
	for _, segment := range strings.Split(text, layout.PageBreak) {
		segment = hyphenWrap.ReplaceAllString(segment, "$1$2")
		for _, p := range blankLines.Split(segment, -1) {
			if p = strings.Join(strings.Fields(p), " "); p != "" {
				paragraphs = append(paragraphs, p)
			}
		}
	}
	return strings.Join(paragraphs, layout.PageBreak)
}
