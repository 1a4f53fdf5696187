package extract

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"rsc.io/pdf"
)

// PDFFormat implements Format for PDF documents.
type PDFFormat struct{}

func init() {
	Register(&PDFFormat{})
}

func (f *PDFFormat) Name() string         { return "PDF" }
func (f *PDFFormat) Extensions() []string { return []string{".pdf"} }

// Sniff reports whether data starts with the PDF magic.
func (f *PDFFormat) Sniff(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

// Extract returns the text of every page. Each page ends a paragraph.
func (f *PDFFormat) Extract(ctx context.Context, data []byte) (text string, err error) {
	// rsc.io/pdf panics on some malformed streams.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var out strings.Builder
	for i := 1; i <= doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p := doc.Page(i)
		if p.V.IsNull() {
			continue
		}
		content := p.Content()
		runs := make([]textRun, 0, len(content.Text))
		for _, t := range content.Text {
			runs = append(runs, textRun{X: t.X, Y: t.Y, W: t.W, Size: t.FontSize, S: t.S})
		}
		out.WriteString(joinRuns(runs))
		out.WriteString("\n\n")
	}
	return out.String(), nil
}

// textRun is one positioned string drawn on a page.
type textRun struct {
	X, Y, W, Size float64
	S             string
}

type textLine struct {
	y    float64
	text strings.Builder
	end  float64
	size float64
}

// joinRuns rebuilds lines from positioned runs. Runs sharing a baseline
// form one line; a gap in X wider than a fraction of the font size is a
// space. Lines separated by more than 1.5 times the usual line pitch
// start a new paragraph.
func joinRuns(runs []textRun) string {
	var lines []*textLine
	var cur *textLine
	for _, r := range runs {
		if r.S == "" {
			continue
		}
		size := math.Max(r.Size, 1)
		if cur == nil || math.Abs(r.Y-cur.y) > size/2 {
			cur = &textLine{y: r.Y, size: size}
			lines = append(lines, cur)
		} else if r.X-cur.end > size*0.2 && !strings.HasSuffix(cur.text.String(), " ") {
			cur.text.WriteByte(' ')
		}
		cur.text.WriteString(r.S)
		cur.end = r.X + r.W
	}
	if len(lines) == 0 {
		return ""
	}

	var gaps []float64
	for i := 1; i < len(lines); i++ {
		if g := lines[i-1].y - lines[i].y; g > 0 {
			gaps = append(gaps, g)
		}
	}
	pitch := 0.0
	if len(gaps) > 0 {
		slices.Sort(gaps)
		pitch = gaps[len(gaps)/2]
	}

	var out strings.Builder
	for i, l := range lines {
		if i > 0 {
			out.WriteByte('\n')
			if g := lines[i-1].y - l.y; pitch > 0 && g > pitch*1.5 {
				out.WriteByte('\n')
			}
		}
		out.WriteString(strings.TrimSpace(l.text.String()))
	}
	return out.String()
}
