package layout

import "strings"

// Wrapper greedily wraps words into lines no wider than MaxWidth.
// Count and Lines share one pass so estimated and rendered line counts
// cannot drift apart.
type Wrapper struct {
	Measurer Measurer
	MaxWidth float64
}

// Lines returns the wrapped lines of words. A word wider than MaxWidth
// on its own still gets a line of its own.
func (w Wrapper) Lines(words []string) [][]string {
	var (
		lines [][]string
		start int
		line  string
	)
	for i, word := range words {
		if line == "" {
			line = word
			continue
		}
		candidate := line + " " + word
		if w.Measurer.Measure(candidate) > w.MaxWidth {
			lines = append(lines, words[start:i:i])
			start = i
			line = word
			continue
		}
		line = candidate
	}
	if start < len(words) {
		lines = append(lines, words[start:len(words):len(words)])
	}
	return lines
}

// Count returns how many lines text occupies; never less than 1.
func (w Wrapper) Count(text string) int {
	return w.countWords(strings.Fields(text))
}

func (w Wrapper) countWords(words []string) int {
	if n := len(w.Lines(words)); n > 1 {
		return n
	}
	return 1
}
