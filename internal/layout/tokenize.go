// Package layout turns extracted text into words, paragraphs and pages
// bounded by a fixed viewport, and maps global word numbers back to
// their paragraph and page.
package layout

import "strings"

// PageBreak separates paragraphs in extracted text.
const PageBreak = "\n%%PAGE_BREAK%%\n"

// Paragraph is one sentinel-delimited block of the source text.
type Paragraph struct {
	Words []string
}

// Text returns the paragraph words joined by single spaces.
func (p Paragraph) Text() string { return strings.Join(p.Words, " ") }

// WordCount returns the number of words in the paragraph.
func (p Paragraph) WordCount() int { return len(p.Words) }

// Tokens is the tokenizer output.
type Tokens struct {
	Words      []string
	Paragraphs []Paragraph
}

// Tokenize splits text on PageBreak and into whitespace-separated words.
// The global word sequence is the concatenation of every paragraph's
// words, so the sentinel itself never yields a word.
func Tokenize(text string) Tokens {
	var t Tokens
	for _, segment := range strings.Split(text, PageBreak) {
		words := strings.Fields(segment)
		if len(words) == 0 {
			continue
		}
		t.Paragraphs = append(t.Paragraphs, Paragraph{Words: words})
		t.Words = append(t.Words, words...)
	}
	return t
}
