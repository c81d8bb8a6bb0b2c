// Command ledgerctl builds a gift ledger offline from OCR text dumps or
// guest-book photos and writes it as CSV, XLSX, JSON or a share link.
//
//	ledgerctl -strategy whole-block -format xlsx -o wedding.xlsx page1.jpg page2.jpg
//	ledgerctl -format share dump.txt
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger/export"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger/normalizer"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger/service"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger/state"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ocr"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ocr/tesseract"
)

type options struct {
	strategy     string
	format       string
	dialect      string
	output       string
	title        string
	shareBase    string
	rosterPath   string
	languages    string
	psm          int
	concurrency  int
	noPreprocess bool
	verbose      bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, nil); err != nil {
		fmt.Fprintln(os.Stderr, "ledgerctl:", err)
		os.Exit(1)
	}
}

// run executes one invocation. engine overrides the Tesseract engine when
// non-nil.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, engine ocr.Engine) error {
	var o options
	fs := flag.NewFlagSet("ledgerctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.strategy, "strategy", "per-line", "parsing strategy: per-line or whole-block")
	fs.StringVar(&o.format, "format", "csv", "output format: csv, xlsx, json or share")
	fs.StringVar(&o.dialect, "dialect", "raw", "csv dialect: raw or quoted")
	fs.StringVar(&o.output, "o", "", "output file (default stdout; xlsx defaults to the dated file name)")
	fs.StringVar(&o.title, "title", "", "ledger title for xlsx and json output")
	fs.StringVar(&o.shareBase, "share-base", "http://localhost:8080/", "base URL for share links")
	fs.StringVar(&o.rosterPath, "roster", "", "guest roster file, one name per line, for name suggestions")
	fs.StringVar(&o.languages, "lang", "kor+eng", "tesseract languages")
	fs.IntVar(&o.psm, "psm", 6, "tesseract page segmentation mode")
	fs.IntVar(&o.concurrency, "concurrency", 2, "images recognized at once")
	fs.BoolVar(&o.noPreprocess, "no-preprocess", false, "skip image clean-up before OCR")
	fs.BoolVar(&o.verbose, "v", false, "log progress to stderr")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: ledgerctl [flags] <file.txt|image.jpg|image.png>...")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("no input files")
	}

	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	svc, err := service.NewLedgerService(o.strategy, o.shareBase, logger)
	if err != nil {
		return err
	}

	if engine == nil {
		engine = tesseract.New(tesseract.Config{Languages: splitLanguages(o.languages), PageSegMode: o.psm})
		if !o.noPreprocess {
			engine = &ocr.Preprocessed{Engine: engine, Config: ocr.DefaultPreprocessConfig()}
		}
	}
	svc.WithProcessor(service.NewProcessor(engine, service.ProcessorConfig{Concurrency: o.concurrency}, nil, logger))

	records, err := collect(ctx, svc, o.strategy, fs.Args(), stderr)
	if err != nil {
		return err
	}

	if o.rosterPath != "" {
		roster, err := normalizer.LoadRosterFile(o.rosterPath)
		if err != nil {
			return err
		}
		svc.WithSuggester(normalizer.NewSuggester(roster, nil, normalizer.DefaultThreshold, logger))
		for _, s := range svc.Suggest(ctx, records) {
			fmt.Fprintf(stderr, "#%d %s -> %s (%s, %d)\n", s.Number, s.Original, s.Suggested, s.Method, s.Score)
		}
	}

	if err := write(svc, o, records, stdout); err != nil {
		return err
	}
	fmt.Fprintln(stderr, export.TotalLabel(records))
	return nil
}

// collect reads inputs in argument order. Consecutive images go to the OCR
// processor as one batch; text files are parsed directly.
func collect(ctx context.Context, svc *service.LedgerService, strategy string, paths []string, stderr io.Writer) ([]ledger.Record, error) {
	st := state.New()
	var batch []service.Upload

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		out, err := svc.Recognize(ctx, strategy, batch)
		batch = nil
		if err != nil {
			return err
		}
		for _, img := range out.Images {
			if img.Error != "" {
				fmt.Fprintf(stderr, "%s: %s\n", img.Name, img.Error)
			}
		}
		st = st.AppendRecords(out.Records...)
		return nil
	}

	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(p)))
		if strings.HasPrefix(ct, "image/") {
			batch = append(batch, service.Upload{Name: filepath.Base(p), ContentType: ct, Data: data})
			continue
		}
		if err := flush(); err != nil {
			return nil, err
		}
		out, err := svc.Parse(ctx, service.ParseInput{Text: string(data), Strategy: strategy})
		if err != nil {
			return nil, err
		}
		st = st.AppendRecords(out.Records...)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return st.Records, nil
}

func write(svc *service.LedgerService, o options, records []ledger.Record, stdout io.Writer) error {
	var data []byte
	switch o.format {
	case "csv":
		f, err := svc.ExportCSV(records, o.dialect)
		if err != nil {
			return err
		}
		data = f.Data
	case "xlsx":
		f, err := svc.ExportXLSX(o.title, records)
		if err != nil {
			return err
		}
		if o.output == "" {
			o.output = f.Name
		}
		data = f.Data
	case "json":
		b, err := json.MarshalIndent(struct {
			Title   string          `json:"title,omitempty"`
			Records []ledger.Record `json:"records"`
			Summary ledger.Summary  `json:"summary"`
		}{o.title, records, ledger.Summarize(records)}, "", "  ")
		if err != nil {
			return err
		}
		data = append(b, '\n')
	case "share":
		link, err := svc.Share(records)
		if err != nil {
			return err
		}
		data = []byte(link.URL + "\n")
	default:
		return fmt.Errorf("unknown format %q", o.format)
	}

	if o.output == "" {
		_, err := stdout.Write(data)
		return err
	}
	return os.WriteFile(o.output, data, 0o644)
}

func splitLanguages(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == '+' || r == ',' })
}
