package layout

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Measurer reports the rendered width of a string for one fixed font.
// Width units must match the Viewport the layout is built for.
type Measurer interface {
	Measure(s string) float64
}

// MeasureFunc adapts a plain function to the Measurer interface.
type MeasureFunc func(s string) float64

func (f MeasureFunc) Measure(s string) float64 { return f(s) }

// Monospace measures every rune as the same advance.
func Monospace(advance float64) Measurer {
	return MeasureFunc(func(s string) float64 {
		return float64(utf8.RuneCountInString(s)) * advance
	})
}

// FaceMeasurer measures text in pixels with an OpenType face.
// font.Face is not safe for concurrent use, so calls are serialized.
type FaceMeasurer struct {
	mu   sync.Mutex
	face font.Face
}

// NewFaceMeasurer loads the Go Regular font at the given pixel size.
func NewFaceMeasurer(size float64) (*FaceMeasurer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("font size must be positive, got %v", size)
	}
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("create face: %w", err)
	}
	return &FaceMeasurer{face: face}, nil
}

// Measure returns the advance width of s in pixels.
func (m *FaceMeasurer) Measure(s string) float64 {
	if s == "" {
		return 0
	}
	m.mu.Lock()
	adv := font.MeasureString(m.face, s)
	m.mu.Unlock()
	// 26.6 fixed point
	return float64(adv) / 64
}

// Close releases the underlying face.
func (m *FaceMeasurer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.face.Close()
}
