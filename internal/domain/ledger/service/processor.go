package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger/parser"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ocr"
	"github.com/FACorreiaa/gift-ledger/pkg/metrics"
)

const tracerName = "github.com/FACorreiaa/gift-ledger/internal/domain/ledger/service"

// ProcessorConfig bounds the OCR fan-out.
type ProcessorConfig struct {
	Concurrency int
	// Timeout applies to each image; zero disables it.
	Timeout time.Duration
	// RatePerSecond throttles calls into the engine; zero disables it.
	RatePerSecond float64
	RateBurst     int
}

// DefaultProcessorConfig suits a local Tesseract engine.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{Concurrency: 2, Timeout: 60 * time.Second}
}

// ImageResult is the outcome for one image, at its upload position.
type ImageResult struct {
	Index      int
	ImageID    string
	Name       string
	Records    []ledger.Record
	Confidence float64
	Err        error
}

// Processor recognizes a batch of images concurrently and parses each one.
type Processor struct {
	engine  ocr.Engine
	cfg     ProcessorConfig
	limiter *rate.Limiter
	metrics *metrics.Metrics
	tracer  trace.Tracer
	logger  *slog.Logger
}

func NewProcessor(engine ocr.Engine, cfg ProcessorConfig, m *metrics.Metrics, logger *slog.Logger) *Processor {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	p := &Processor{
		engine:  engine,
		cfg:     cfg,
		metrics: m,
		tracer:  otel.Tracer(tracerName),
		logger:  logger,
	}
	if cfg.RatePerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), max(cfg.RateBurst, 1))
	}
	return p
}

// Process returns one result per image in input order, and the records of
// every successful image concatenated in that same order and renumbered.
// A failed image contributes no records; its error is kept in its result.
func (p *Processor) Process(ctx context.Context, strategy parser.Strategy, images []ocr.Image) ([]ImageResult, []ledger.Record) {
	ctx, span := p.tracer.Start(ctx, "ledger.Process", trace.WithAttributes(
		attribute.Int("images", len(images)),
		attribute.String("strategy", string(strategy.Name())),
		attribute.String("engine", p.engine.Name()),
	))
	defer span.End()

	results := make([]ImageResult, len(images))

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)
	for i, img := range images {
		g.Go(func() error {
			results[i] = p.processOne(ctx, strategy, i, img)
			return nil
		})
	}
	_ = g.Wait()

	var all []ledger.Record
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			continue
		}
		all = append(all, r.Records...)
	}
	all = ledger.Renumber(all)

	span.SetAttributes(attribute.Int("records", len(all)), attribute.Int("failed", failed))
	if failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d of %d images failed", failed, len(images)))
	}
	return results, all
}

func (p *Processor) processOne(ctx context.Context, strategy parser.Strategy, idx int, img ocr.Image) ImageResult {
	res := ImageResult{Index: idx, ImageID: img.ID, Name: img.Name}

	ctx, span := p.tracer.Start(ctx, "ledger.RecognizeImage", trace.WithAttributes(
		attribute.Int("image.index", idx),
		attribute.String("image.id", img.ID),
	))
	defer span.End()

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			res.Err = fmt.Errorf("rate limit: %w", err)
			return p.fail(span, res)
		}
	}

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	rec, err := p.engine.Recognize(ctx, img)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		res.Err = err
		p.metrics.ObserveImage(p.engine.Name(), "error", elapsed)
		return p.fail(span, res)
	}
	p.metrics.ObserveImage(p.engine.Name(), "ok", elapsed)

	res.Confidence = rec.Confidence
	res.Records = strategy.ParseLines(rec.OrderedLines())
	p.metrics.AddRecords(string(strategy.Name()), len(res.Records))

	span.SetAttributes(attribute.Int("records", len(res.Records)))
	p.logger.Debug("image recognized",
		slog.Int("index", idx),
		slog.String("image_id", img.ID),
		slog.Int("records", len(res.Records)),
		slog.Float64("confidence", rec.Confidence),
	)
	return res
}

func (p *Processor) fail(span trace.Span, res ImageResult) ImageResult {
	span.RecordError(res.Err)
	span.SetStatus(codes.Error, res.Err.Error())
	p.logger.Warn("image recognition failed",
		slog.Int("index", res.Index),
		slog.String("image_id", res.ImageID),
		slog.Any("error", res.Err),
	)
	return res
}
