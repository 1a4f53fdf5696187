// Package navigate resolves explicit word and page requests into
// validated positions and applies them to playback.
package navigate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/metcalfc/prr/internal/layout"
)

var (
	// ErrInvalidRange is returned for a word target outside [0, N-1].
	ErrInvalidRange = errors.New("invalid range")
	// ErrMalformedInput is returned for non-numeric word input.
	ErrMalformedInput = errors.New("malformed numeric input")
)

// Player is the playback surface navigation drives.
type Player interface {
	Position() (word, page int)
	Seek(word, page int)
	SetPage(page int)
}

// Navigator moves the reading position of one loaded layout.
type Navigator struct {
	layout    *layout.Layout
	player    Player
	sentences []int

	wordInput string
	pageInput string
}

// New returns a Navigator for l driving p.
func New(l *layout.Layout, p Player) *Navigator {
	return &Navigator{
		layout:    l,
		player:    p,
		sentences: SentenceStarts(l.Words),
		pageInput: "1",
	}
}

// GoToWord positions playback at global word n.
func (n *Navigator) GoToWord(word int) (layout.Position, error) {
	pos, err := n.layout.Locate(word)
	if err != nil {
		return layout.Position{}, fmt.Errorf("%w: word %d not in [0, %d]: %w",
			ErrInvalidRange, word, len(n.layout.Words)-1, err)
	}
	n.player.Seek(pos.Word, pos.Page)
	n.pageInput = strconv.Itoa(pos.Page)
	return pos, nil
}

// GoToPage shows page p clamped into [1, pageCount] and returns it.
func (n *Navigator) GoToPage(p int) int {
	p = clamp(p, 1, n.layout.PageCount())
	n.player.SetPage(p)
	n.pageInput = strconv.Itoa(p)
	return p
}

// GoToPageInput parses raw as a page number. Non-numeric input falls
// back to the current page.
func (n *Navigator) GoToPageInput(raw string) int {
	p, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		_, p = n.player.Position()
	}
	return n.GoToPage(p)
}

// GoToWordInput parses raw as a word number. The position is unchanged
// when raw is not a number.
func (n *Navigator) GoToWordInput(raw string) (layout.Position, error) {
	w, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return layout.Position{}, fmt.Errorf("%w: %q", ErrMalformedInput, raw)
	}
	return n.GoToWord(w)
}

// WordInput returns the pending word entry.
func (n *Navigator) WordInput() string { return n.wordInput }

// PageInput returns the pending page entry.
func (n *Navigator) PageInput() string { return n.pageInput }

// SetWordInput replaces the pending word entry. Only digits are accepted.
func (n *Navigator) SetWordInput(raw string) bool {
	if !digits(raw) {
		return false
	}
	n.wordInput = raw
	return true
}

// SetPageInput replaces the pending page entry. Only digits are accepted.
func (n *Navigator) SetPageInput(raw string) bool {
	if !digits(raw) {
		return false
	}
	n.pageInput = raw
	return true
}

// StepWordInput moves the pending word entry by delta, starting from the
// current word when the entry is empty. Nothing is committed.
func (n *Navigator) StepWordInput(delta int) string {
	word, _ := n.player.Position()
	n.wordInput = strconv.Itoa(step(n.wordInput, word, delta, 0, len(n.layout.Words)-1))
	return n.wordInput
}

// StepPageInput moves the pending page entry by delta. Nothing is committed.
func (n *Navigator) StepPageInput(delta int) string {
	_, page := n.player.Position()
	n.pageInput = strconv.Itoa(step(n.pageInput, page, delta, 1, n.layout.PageCount()))
	return n.pageInput
}

// CommitWordInput jumps to the pending word entry and clears it.
func (n *Navigator) CommitWordInput() (layout.Position, error) {
	pos, err := n.GoToWordInput(n.wordInput)
	if err != nil {
		return pos, err
	}
	n.wordInput = ""
	return pos, nil
}

// CommitPageInput shows the pending page entry.
func (n *Navigator) CommitPageInput() int {
	return n.GoToPageInput(n.pageInput)
}

// PrevSentence jumps to the start of the sentence before the current word.
func (n *Navigator) PrevSentence() (layout.Position, error) {
	word, _ := n.player.Position()
	target := 0
	for i := len(n.sentences) - 1; i >= 0; i-- {
		if n.sentences[i] < word {
			target = n.sentences[i]
			break
		}
	}
	return n.GoToWord(target)
}

// NextSentence jumps to the start of the next sentence, or the last word.
func (n *Navigator) NextSentence() (layout.Position, error) {
	word, _ := n.player.Position()
	target := len(n.layout.Words) - 1
	for _, s := range n.sentences {
		if s > word {
			target = s
			break
		}
	}
	return n.GoToWord(target)
}

// SentenceStarts returns the indices of words that start sentences.
func SentenceStarts(words []string) []int {
	if len(words) == 0 {
		return nil
	}
	starts := []int{0}
	for i, word := range words {
		if i+1 >= len(words) {
			break
		}
		switch word[len(word)-1] {
		case '.', '!', '?':
			starts = append(starts, i+1)
		}
	}
	return starts
}

func step(raw string, fallback, delta, lo, hi int) int {
	v := fallback
	if raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			v = parsed
		}
	}
	return clamp(v+delta, lo, hi)
}

func clamp(v, lo, hi int) int {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
