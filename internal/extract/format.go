// Package extract converts uploaded document bytes into normalized text
// whose paragraphs are joined by layout.PageBreak.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var (
	// ErrExtraction wraps every failure to turn bytes into text.
	ErrExtraction = errors.New("extraction failed")
	// ErrUnsupported is returned for data no format can read.
	ErrUnsupported = errors.New("unsupported document")
)

// Format reads one document format into raw text. Paragraphs in the raw
// text are separated by blank lines.
type Format interface {
	Name() string
	Extensions() []string
	Extract(ctx context.Context, data []byte) (string, error)
}

// Sniffer is implemented by formats that recognize their data by content.
type Sniffer interface {
	Sniff(data []byte) bool
}

// Extractor is the upstream extraction collaborator.
type Extractor interface {
	Extract(ctx context.Context, name string, data []byte) (string, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, name string, data []byte) (string, error)

func (f ExtractorFunc) Extract(ctx context.Context, name string, data []byte) (string, error) {
	return f(ctx, name, data)
}

// Default extracts with the registered formats.
var Default Extractor = ExtractorFunc(Extract)

var registry []Format

// Register adds a format reader to the registry.
func Register(f Format) {
	registry = append(registry, f)
}

// Lookup returns the format for a file name, falling back to content
// sniffing and then plain text.
func Lookup(name string, data []byte) Format {
	ext := strings.ToLower(filepath.Ext(name))
	for _, f := range registry {
		for _, e := range f.Extensions() {
			if ext == e {
				return f
			}
		}
	}
	for _, f := range registry {
		if s, ok := f.(Sniffer); ok && s.Sniff(data) {
			return f
		}
	}
	return &TextFormat{}
}

// Extract reads data with the format chosen for name and normalizes it.
func Extract(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f := Lookup(name, data)
	raw, err := f.Extract(ctx, data)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrExtraction, f.Name(), err)
	}
	return Normalize(raw), nil
}

// SupportedFormats returns registered format names with their extensions.
func SupportedFormats() []string {
	var out []string
	for _, f := range registry {
		out = append(out, f.Name()+" ("+strings.Join(f.Extensions(), ", ")+")")
	}
	return out
}

// TextFormat reads UTF-8 plain text.
type TextFormat struct{}

func init() {
	Register(&TextFormat{})
}

func (f *TextFormat) Name() string         { return "Text" }
func (f *TextFormat) Extensions() []string { return []string{".txt", ".text"} }

func (f *TextFormat) Extract(_ context.Context, data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: not UTF-8 text", ErrUnsupported)
	}
	return string(data), nil
}
