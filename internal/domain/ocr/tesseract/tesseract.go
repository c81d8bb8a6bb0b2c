// Package tesseract provides the gosseract-backed OCR engine. It needs cgo
// and the Tesseract/Leptonica libraries with the kor traineddata installed.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/FACorreiaa/gift-ledger/internal/domain/ocr"
)

// Config selects languages and layout handling.
type Config struct {
	Languages   []string
	PageSegMode int
	// TessdataPrefix overrides TESSDATA_PREFIX when set.
	TessdataPrefix string
}

// DefaultConfig reads Korean with English fallback as one uniform block,
// which suits a single guest-book page.
func DefaultConfig() Config {
	return Config{
		Languages:   []string{"kor", "eng"},
		PageSegMode: int(gosseract.PSM_SINGLE_BLOCK),
	}
}

// Engine implements ocr.Engine with one gosseract client per call, so it is
// safe for concurrent use.
type Engine struct {
	cfg           Config
	clientFactory func() *gosseract.Client
}

func New(cfg Config) *Engine {
	if len(cfg.Languages) == 0 {
		cfg.Languages = DefaultConfig().Languages
	}
	return &Engine{cfg: cfg, clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return "tesseract" }

func (e *Engine) Recognize(ctx context.Context, img ocr.Image) (ocr.Recognition, error) {
	if len(img.Data) == 0 {
		return ocr.Recognition{}, ocr.ErrEmptyImage
	}
	if err := ctx.Err(); err != nil {
		return ocr.Recognition{}, err
	}

	c := e.clientFactory()
	defer c.Close()

	if e.cfg.TessdataPrefix != "" {
		if err := c.SetTessdataPrefix(e.cfg.TessdataPrefix); err != nil {
			return ocr.Recognition{}, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if err := c.SetLanguage(e.cfg.Languages...); err != nil {
		return ocr.Recognition{}, fmt.Errorf("set languages: %w", err)
	}
	if err := c.SetPageSegMode(gosseract.PageSegMode(e.cfg.PageSegMode)); err != nil {
		return ocr.Recognition{}, fmt.Errorf("set page seg mode: %w", err)
	}
	if err := c.SetImageFromBytes(img.Data); err != nil {
		return ocr.Recognition{}, fmt.Errorf("set image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return ocr.Recognition{}, fmt.Errorf("recognize text: %w", err)
	}

	lines, conf := extractLines(c)
	return ocr.Recognition{
		ImageID:    img.ID,
		Engine:     e.Name(),
		Text:       strings.TrimSpace(text),
		Lines:      lines,
		Confidence: conf,
	}, nil
}

func extractLines(c *gosseract.Client) ([]ocr.Line, float64) {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil || len(boxes) == 0 {
		return nil, 0
	}
	lines := make([]ocr.Line, 0, len(boxes))
	var sum float64
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		conf := b.Confidence / 100.0
		sum += conf
		lines = append(lines, ocr.Line{
			Text:       text,
			Bounds:     ocr.Bounds{X: b.Box.Min.X, Y: b.Box.Min.Y, Width: b.Box.Dx(), Height: b.Box.Dy()},
			Confidence: conf,
		})
	}
	if len(lines) == 0 {
		return nil, 0
	}
	return lines, sum / float64(len(lines))
}
