package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEngine struct {
	name string
	rec  Recognition
	err  error
	got  []Image
}

func (s *stubEngine) Name() string { return s.name }

func (s *stubEngine) Recognize(_ context.Context, img Image) (Recognition, error) {
	s.got = append(s.got, img)
	return s.rec, s.err
}

func TestOrderedLines(t *testing.T) {
	t.Run("sorts rows top to bottom then left to right", func(t *testing.T) {
		rec := Recognition{Lines: []Line{
			{Text: "third", Bounds: Bounds{X: 10, Y: 200, Height: 20}},
			{Text: "first-right", Bounds: Bounds{X: 300, Y: 12, Height: 20}},
			{Text: "second", Bounds: Bounds{X: 10, Y: 100, Height: 20}},
			{Text: "first-left", Bounds: Bounds{X: 10, Y: 10, Height: 20}},
		}}

		assert.Equal(t, []string{"first-left", "first-right", "second", "third"}, rec.OrderedLines())
		assert.Equal(t, "third", rec.Lines[0].Text, "input not reordered")
	})

	t.Run("same order for every input permutation", func(t *testing.T) {
		a := Line{Text: "a", Bounds: Bounds{X: 30, Y: 0, Height: 0}}
		b := Line{Text: "b", Bounds: Bounds{X: 20, Y: 10, Height: 0}}
		c := Line{Text: "c", Bounds: Bounds{X: 10, Y: 20, Height: 0}}
		perms := [][]Line{
			{a, b, c}, {a, c, b}, {b, a, c},
			{b, c, a}, {c, a, b}, {c, b, a},
		}

		want := Recognition{Lines: perms[0]}.OrderedLines()
		assert.Equal(t, []string{"b", "a", "c"}, want)
		for _, p := range perms[1:] {
			assert.Equal(t, want, Recognition{Lines: p}.OrderedLines())
		}
	})

	t.Run("falls back to text", func(t *testing.T) {
		rec := Recognition{Text: "a\nb"}
		assert.Equal(t, []string{"a", "b"}, rec.OrderedLines())
	})
}

func TestLowConfidence(t *testing.T) {
	rec := Recognition{Lines: []Line{
		{Text: "ok", Confidence: 0.9},
		{Text: "bad", Confidence: 0.3},
	}}
	low := rec.LowConfidence(0.6)
	require.Len(t, low, 1)
	assert.Equal(t, "bad", low[0].Text)
}

func TestFallback(t *testing.T) {
	ctx := context.Background()

	t.Run("first engine with text wins", func(t *testing.T) {
		failing := &stubEngine{name: "paddle", err: errors.New("down")}
		empty := &stubEngine{name: "blank", rec: Recognition{Engine: "blank", Text: "  "}}
		good := &stubEngine{name: "tesseract", rec: Recognition{Engine: "tesseract", Text: "홍길동"}}
		f := &Fallback{Engines: []Engine{failing, empty, good}}

		rec, err := f.Recognize(ctx, Image{ID: "1"})
		require.NoError(t, err)
		assert.Equal(t, "tesseract", rec.Engine)
		assert.Equal(t, "paddle>blank>tesseract", f.Name())
	})

	t.Run("empty result beats an error", func(t *testing.T) {
		f := &Fallback{Engines: []Engine{
			&stubEngine{name: "a", rec: Recognition{}},
			&stubEngine{name: "b", err: errors.New("boom")},
		}}
		rec, err := f.Recognize(ctx, Image{})
		require.NoError(t, err)
		assert.Empty(t, rec.Text)
	})

	t.Run("all failing returns the last error", func(t *testing.T) {
		f := &Fallback{Engines: []Engine{
			&stubEngine{name: "a", err: errors.New("one")},
			&stubEngine{name: "b", err: errors.New("two")},
		}}
		_, err := f.Recognize(ctx, Image{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "b: two")
	})

	t.Run("no engines", func(t *testing.T) {
		_, err := (&Fallback{}).Recognize(ctx, Image{})
		assert.ErrorIs(t, err, ErrNoEngine)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := (&Fallback{Engines: []Engine{&stubEngine{name: "a"}}}).Recognize(cctx, Image{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPreprocess(t *testing.T) {
	t.Run("upscales narrow photos", func(t *testing.T) {
		out, err := Preprocess(testPNG(t, 100, 50), DefaultPreprocessConfig())
		require.NoError(t, err)

		img, err := imaging.Decode(bytes.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, 1200, img.Bounds().Dx())
		assert.Equal(t, 600, img.Bounds().Dy())
	})

	t.Run("downscales huge photos", func(t *testing.T) {
		cfg := DefaultPreprocessConfig()
		cfg.MinWidth, cfg.MaxWidth = 0, 40
		out, err := Preprocess(testPNG(t, 80, 80), cfg)
		require.NoError(t, err)

		img, err := imaging.Decode(bytes.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, 40, img.Bounds().Dx())
	})

	t.Run("output is grayscale", func(t *testing.T) {
		cfg := PreprocessConfig{}
		out, err := Preprocess(testPNG(t, 8, 8), cfg)
		require.NoError(t, err)

		img, err := imaging.Decode(bytes.NewReader(out))
		require.NoError(t, err)
		r, g, b, _ := img.At(3, 5).RGBA()
		assert.Equal(t, r, g)
		assert.Equal(t, g, b)
	})

	t.Run("rejects empty and garbage input", func(t *testing.T) {
		_, err := Preprocess(nil, DefaultPreprocessConfig())
		assert.ErrorIs(t, err, ErrEmptyImage)

		_, err = Preprocess([]byte("not an image"), DefaultPreprocessConfig())
		assert.Error(t, err)
	})
}

func TestPreprocessedEngine(t *testing.T) {
	inner := &stubEngine{name: "inner", rec: Recognition{Text: "x"}}
	p := &Preprocessed{Engine: inner, Config: PreprocessConfig{}}

	_, err := p.Recognize(context.Background(), Image{ID: "a", ContentType: "image/jpeg", Data: testPNG(t, 4, 4)})
	require.NoError(t, err)
	require.Len(t, inner.got, 1)
	assert.Equal(t, "image/png", inner.got[0].ContentType)
	assert.Equal(t, "inner", p.Name())
}
