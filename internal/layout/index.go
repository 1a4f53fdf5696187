package layout

import (
	"errors"
	"fmt"
	"sort"
)

// ErrOutOfRange is returned when a global word number is outside the document.
var ErrOutOfRange = errors.New("word number out of range")

// WordIndex maps each paragraph, in document order, to the global index
// of its first word. Offsets are strictly increasing.
type WordIndex struct {
	offsets []int
	total   int
}

// Offsets returns a copy of the paragraph offset table.
func (ix WordIndex) Offsets() []int {
	return append([]int(nil), ix.offsets...)
}

// Len returns the number of paragraphs indexed.
func (ix WordIndex) Len() int { return len(ix.offsets) }

// Total returns the number of words indexed.
func (ix WordIndex) Total() int { return ix.total }

// Paragraph returns the greatest paragraph whose offset is <= n.
func (ix WordIndex) Paragraph(n int) (int, error) {
	if n < 0 || n >= ix.total {
		return 0, fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, n, ix.total)
	}
	i := sort.Search(len(ix.offsets), func(i int) bool { return ix.offsets[i] > n })
	return i - 1, nil
}

// Position is a resolved global word.
type Position struct {
	Word            int
	Paragraph       int
	WordInParagraph int
	Page            int
}

// Layout is the full reflow result for one document and viewport.
type Layout struct {
	Words      []string
	Paragraphs []Paragraph
	Pages      []Page
	Index      WordIndex
	Viewport   Viewport

	wrap Wrapper
}

// Build tokenizes text and paginates it for the viewport.
func Build(text string, vp Viewport, m Measurer) *Layout {
	t := Tokenize(text)
	pages, index := Paginate(t.Paragraphs, vp, m)
	return &Layout{
		Words:      t.Words,
		Paragraphs: t.Paragraphs,
		Pages:      pages,
		Index:      index,
		Viewport:   vp,
		wrap:       Wrapper{Measurer: m, MaxWidth: vp.Width},
	}
}

// Empty reports whether the document has no words.
func (l *Layout) Empty() bool { return len(l.Words) == 0 }

// PageCount returns the number of pages.
func (l *Layout) PageCount() int { return len(l.Pages) }

// Page returns the 1-based page n.
func (l *Layout) Page(n int) (Page, bool) {
	if n < 1 || n > len(l.Pages) {
		return Page{}, false
	}
	return l.Pages[n-1], true
}

// Locate resolves global word n to its paragraph and page. The page is
// found by the word's own range, so words inside a force-split
// paragraph resolve to the sub-page that actually shows them.
func (l *Layout) Locate(n int) (Position, error) {
	para, err := l.Index.Paragraph(n)
	if err != nil {
		return Position{}, err
	}
	i := sort.Search(len(l.Pages), func(i int) bool {
		return l.Pages[i].FirstWord+l.Pages[i].WordCount > n
	})
	return Position{
		Word:            n,
		Paragraph:       para,
		WordInParagraph: n - l.Index.offsets[para],
		Page:            i + 1,
	}, nil
}

// Row is one rendered line of a page.
type Row struct {
	FirstWord int
	Words     []string
}

// Rows wraps the lines of page n into rendered rows using the same
// measurement that sized the page.
func (l *Layout) Rows(n int) []Row {
	page, ok := l.Page(n)
	if !ok {
		return nil
	}
	var rows []Row
	for _, line := range page.Lines {
		if line.Fragment {
			rows = append(rows, Row{FirstWord: line.FirstWord, Words: line.Words})
			continue
		}
		next := line.FirstWord
		for _, words := range l.wrap.Lines(line.Words) {
			rows = append(rows, Row{FirstWord: next, Words: words})
			next += len(words)
		}
	}
	return rows
}
