package ocr

import (
	"bytes"
	"context"
	"fmt"

	"github.com/disintegration/imaging"
)

// PreprocessConfig tunes the clean-up applied before recognition.
type PreprocessConfig struct {
	MinWidth     int     // upscale narrower photos to this width
	MaxWidth     int     // downscale wider photos to this width
	BlurSigma    float64 // light denoise; 0 disables
	Contrast     float64 // percentage, -100..100
	SharpenSigma float64 // 0 disables
}

// DefaultPreprocessConfig matches handwriting on lined guest-book paper.
func DefaultPreprocessConfig() PreprocessConfig {
	return PreprocessConfig{
		MinWidth:     1200,
		MaxWidth:     3000,
		BlurSigma:    0.6,
		Contrast:     30,
		SharpenSigma: 1.2,
	}
}

// Preprocess decodes a photo, fixes EXIF orientation, converts to grayscale,
// normalizes width, denoises, boosts contrast and sharpens. The result is a
// PNG ready for the engine.
func Preprocess(data []byte, cfg PreprocessConfig) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	out := imaging.Grayscale(img)

	w := out.Bounds().Dx()
	switch {
	case cfg.MinWidth > 0 && w < cfg.MinWidth:
		out = imaging.Resize(out, cfg.MinWidth, 0, imaging.Lanczos)
	case cfg.MaxWidth > 0 && w > cfg.MaxWidth:
		out = imaging.Resize(out, cfg.MaxWidth, 0, imaging.Lanczos)
	}

	if cfg.BlurSigma > 0 {
		out = imaging.Blur(out, cfg.BlurSigma)
	}
	if cfg.Contrast != 0 {
		out = imaging.AdjustContrast(out, cfg.Contrast)
	}
	if cfg.SharpenSigma > 0 {
		out = imaging.Sharpen(out, cfg.SharpenSigma)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// Preprocessed wraps an engine so every image is cleaned up first.
type Preprocessed struct {
	Engine Engine
	Config PreprocessConfig
}

func (p *Preprocessed) Name() string { return p.Engine.Name() }

func (p *Preprocessed) Recognize(ctx context.Context, img Image) (Recognition, error) {
	cleaned, err := Preprocess(img.Data, p.Config)
	if err != nil {
		return Recognition{}, err
	}
	img.Data = cleaned
	img.ContentType = "image/png"
	return p.Engine.Recognize(ctx, img)
}
