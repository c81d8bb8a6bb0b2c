// Package ocr is the boundary between guest-book photos and text. Engines
// turn one image into recognized lines; everything after that is plain text
// handled by the ledger parser.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrEmptyImage = errors.New("empty image")
	ErrNoEngine   = errors.New("no ocr engine configured")
)

// Image is one uploaded photo.
type Image struct {
	ID          string
	Name        string
	ContentType string
	Data        []byte
}

// Bounds is a pixel rectangle with the origin at the top-left corner.
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// MidY is the vertical centre, used to decide which lines share a row.
func (b Bounds) MidY() int { return b.Y + b.Height/2 }

// Line is one recognized line of text.
type Line struct {
	Text       string  `json:"text"`
	Bounds     Bounds  `json:"bounds"`
	Confidence float64 `json:"confidence"` // 0..1
}

// Recognition is an engine's output for one image.
type Recognition struct {
	ImageID    string  `json:"imageId"`
	Engine     string  `json:"engine"`
	Text       string  `json:"text"`
	Lines      []Line  `json:"lines,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Engine recognizes text in a single image.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img Image) (Recognition, error)
}

// rowTolerance is how far apart, in pixels, two line centres may be and
// still count as the same row.
const rowTolerance = 12

// OrderedLines returns the line texts in reading order: rows top to bottom,
// and left to right within a row. Without line boxes it falls back to
// splitting Text.
func (r Recognition) OrderedLines() []string {
	if len(r.Lines) == 0 {
		return strings.Split(r.Text, "\n")
	}

	lines := make([]Line, len(r.Lines))
	copy(lines, r.Lines)
	sort.SliceStable(lines, func(i, j int) bool {
		a, b := lines[i].Bounds, lines[j].Bounds
		if a.MidY() != b.MidY() {
			return a.MidY() < b.MidY()
		}
		return a.X < b.X
	})

	// A row starts at its topmost line and takes every line whose centre is
	// within rowTolerance of it.
	for start := 0; start < len(lines); {
		top := lines[start].Bounds.MidY()
		end := start + 1
		for end < len(lines) && lines[end].Bounds.MidY()-top <= rowTolerance {
			end++
		}
		row := lines[start:end]
		sort.SliceStable(row, func(i, j int) bool {
			return row[i].Bounds.X < row[j].Bounds.X
		})
		start = end
	}

	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.Text)
	}
	return out
}

// LowConfidence returns the lines below threshold, for review hints.
func (r Recognition) LowConfidence(threshold float64) []Line {
	var out []Line
	for _, l := range r.Lines {
		if l.Confidence < threshold {
			out = append(out, l)
		}
	}
	return out
}

// Fallback tries engines in order and returns the first result with text.
// The last error is returned when every engine fails.
type Fallback struct {
	Engines []Engine
}

func (f *Fallback) Name() string {
	names := make([]string, len(f.Engines))
	for i, e := range f.Engines {
		names[i] = e.Name()
	}
	return strings.Join(names, ">")
}

func (f *Fallback) Recognize(ctx context.Context, img Image) (Recognition, error) {
	if len(f.Engines) == 0 {
		return Recognition{}, ErrNoEngine
	}

	var (
		lastErr   error
		empty     Recognition
		haveEmpty bool
	)
	for _, e := range f.Engines {
		if err := ctx.Err(); err != nil {
			return Recognition{}, err
		}
		rec, err := e.Recognize(ctx, img)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", e.Name(), err)
			continue
		}
		if strings.TrimSpace(rec.Text) != "" {
			return rec, nil
		}
		empty, haveEmpty = rec, true
	}
	if !haveEmpty {
		return Recognition{}, lastErr
	}
	return empty, nil
}
