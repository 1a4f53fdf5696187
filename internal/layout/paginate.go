package layout

import (
	"fmt"
	"math"
	"strings"
)

// Viewport is the fixed display area a layout is built for. Width is in
// Measurer units, Height and LineHeight share their own unit.
type Viewport struct {
	Width      float64
	Height     float64
	LineHeight float64
}

// Validate reports whether the viewport can hold at least one line.
func (v Viewport) Validate() error {
	switch {
	case v.Width <= 0:
		return fmt.Errorf("viewport width must be positive, got %v", v.Width)
	case v.LineHeight <= 0:
		return fmt.Errorf("viewport line height must be positive, got %v", v.LineHeight)
	case v.Height < v.LineHeight:
		return fmt.Errorf("viewport height %v is smaller than one line (%v)", v.Height, v.LineHeight)
	}
	return nil
}

// LinesPerPage is the line cap of a forced sub-page.
func (v Viewport) LinesPerPage() int {
	n := int(math.Floor(v.Height / v.LineHeight))
	if n < 1 {
		return 1
	}
	return n
}

// Line is one display unit of a page: either a whole paragraph or a
// wrapped fragment of a paragraph too tall for a single page.
type Line struct {
	Paragraph int
	FirstWord int
	Words     []string
	Fragment  bool
}

// Text returns the line words joined by single spaces.
func (l Line) Text() string { return strings.Join(l.Words, " ") }

// WordCount returns the number of words on the line.
func (l Line) WordCount() int { return len(l.Words) }

// Page is a 1-based group of lines fitting the viewport height.
// FirstWord and WordCount give the global word range shown on the page.
type Page struct {
	Number    int
	Lines     []Line
	FirstWord int
	WordCount int
}

// Contains reports whether global word n is shown on the page.
func (p Page) Contains(n int) bool {
	return n >= p.FirstWord && n < p.FirstWord+p.WordCount
}

type paginator struct {
	vp      Viewport
	wrap    Wrapper
	pages   []Page
	current []Line
	height  float64
}

// Paginate packs paragraphs into pages bounded by the viewport and builds
// the paragraph word-offset table alongside.
func Paginate(paragraphs []Paragraph, vp Viewport, m Measurer) ([]Page, WordIndex) {
	p := &paginator{vp: vp, wrap: Wrapper{Measurer: m, MaxWidth: vp.Width}}
	offsets := make([]int, 0, len(paragraphs))
	words := 0

	for i, para := range paragraphs {
		offsets = append(offsets, words)
		line := Line{Paragraph: i, FirstWord: words, Words: para.Words}
		words += para.WordCount()

		needed := float64(p.wrap.countWords(para.Words)) * vp.LineHeight
		if p.height+needed <= vp.Height {
			p.add(line, needed)
			continue
		}
		p.flush()
		if needed > vp.Height {
			p.split(line)
			continue
		}
		p.add(line, needed)
	}
	p.flush()

	return p.pages, WordIndex{offsets: offsets, total: words}
}

func (p *paginator) add(l Line, height float64) {
	p.current = append(p.current, l)
	p.height += height
}

func (p *paginator) flush() {
	if len(p.current) == 0 {
		return
	}
	p.emit(p.current)
	p.current = nil
	p.height = 0
}

func (p *paginator) emit(lines []Line) {
	page := Page{Number: len(p.pages) + 1, Lines: lines, FirstWord: lines[0].FirstWord}
	for _, l := range lines {
		page.WordCount += l.WordCount()
	}
	p.pages = append(p.pages, page)
}

// split re-wraps an oversized paragraph into physical lines and emits
// them directly as forced sub-pages.
func (p *paginator) split(l Line) {
	perPage := p.vp.LinesPerPage()
	next := l.FirstWord
	var batch []Line
	for _, words := range p.wrap.Lines(l.Words) {
		batch = append(batch, Line{Paragraph: l.Paragraph, FirstWord: next, Words: words, Fragment: true})
		next += len(words)
		if len(batch) == perPage {
			p.emit(batch)
			batch = nil
		}
	}
	if len(batch) > 0 {
		p.emit(batch)
	}
}
