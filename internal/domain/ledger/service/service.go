// Package service ties parsing, recognition, export, sharing, suggestions
// and persistence together behind one API for the HTTP layer and the CLI.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger/export"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger/normalizer"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger/parser"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger/repository"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger/search"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger/share"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger/state"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ocr"
	"github.com/FACorreiaa/gift-ledger/pkg/mail"
	"github.com/FACorreiaa/gift-ledger/pkg/metrics"
	"github.com/FACorreiaa/gift-ledger/pkg/storage"
)

var (
	ErrNoImages           = errors.New("no accepted images")
	ErrOCRUnavailable     = errors.New("ocr is not configured")
	ErrStorageDisabled    = errors.New("saved ledgers are not configured")
	ErrSearchDisabled     = errors.New("guest search is not configured")
	ErrCorrectionsOffline = errors.New("name corrections are not configured")
)

// CorrectionStore is the persistence the service needs for name corrections.
type CorrectionStore interface {
	normalizer.CorrectionFinder
	Save(ctx context.Context, c normalizer.Correction) (*normalizer.Correction, error)
	List(ctx context.Context) ([]normalizer.Correction, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// LedgerService is the application API. Optional collaborators are attached
// with the With* methods; operations needing a missing one return a
// sentinel error.
type LedgerService struct {
	defaultStrategy parser.StrategyName
	shareBaseURL    string
	logger          *slog.Logger
	now             func() time.Time

	processor   *Processor
	suggester   *normalizer.Suggester
	corrections CorrectionStore
	repo        repository.LedgerRepository
	index       *search.Index
	uploads     storage.Storage
	mailer      *mail.Mailer
	metrics     *metrics.Metrics
}

// NewLedgerService validates the default strategy and returns a service that
// can parse, export and share. Everything else is opt-in.
func NewLedgerService(defaultStrategy string, shareBaseURL string, logger *slog.Logger) (*LedgerService, error) {
	s, err := parser.New(parser.StrategyName(defaultStrategy))
	if err != nil {
		return nil, err
	}
	return &LedgerService{
		defaultStrategy: s.Name(),
		shareBaseURL:    shareBaseURL,
		logger:          logger,
		now:             time.Now,
		suggester:       normalizer.NewSuggester(nil, nil, 0, logger),
	}, nil
}

func (s *LedgerService) WithProcessor(p *Processor) *LedgerService { s.processor = p; return s }

func (s *LedgerService) WithSuggester(sg *normalizer.Suggester) *LedgerService {
	s.suggester = sg
	return s
}

func (s *LedgerService) WithCorrections(c CorrectionStore) *LedgerService {
	s.corrections = c
	return s
}

func (s *LedgerService) WithRepository(r repository.LedgerRepository) *LedgerService {
	s.repo = r
	return s
}

func (s *LedgerService) WithSearchIndex(i *search.Index) *LedgerService { s.index = i; return s }

func (s *LedgerService) WithUploads(st storage.Storage) *LedgerService { s.uploads = st; return s }

func (s *LedgerService) WithMailer(m *mail.Mailer) *LedgerService { s.mailer = m; return s }

func (s *LedgerService) WithMetrics(m *metrics.Metrics) *LedgerService { s.metrics = m; return s }

// Strategy resolves a requested strategy name, falling back to the default.
func (s *LedgerService) Strategy(name string) (parser.Strategy, error) {
	if strings.TrimSpace(name) == "" {
		return parser.New(s.defaultStrategy)
	}
	return parser.New(parser.StrategyName(strings.TrimSpace(name)))
}

// ParseInput is text already recognized elsewhere.
type ParseInput struct {
	Text     string   `json:"text"`
	Lines    []string `json:"lines"`
	Strategy string   `json:"strategy"`
}

// LedgerOutput is a table with its totals.
type LedgerOutput struct {
	Strategy parser.StrategyName `json:"strategy,omitempty"`
	Records  []ledger.Record     `json:"records"`
	Summary  ledger.Summary      `json:"summary"`
}

func (s *LedgerService) output(strategy parser.StrategyName, records []ledger.Record) *LedgerOutput {
	if records == nil {
		records = []ledger.Record{}
	}
	return &LedgerOutput{Strategy: strategy, Records: records, Summary: ledger.Summarize(records)}
}

// Parse runs a strategy over text. Lines take precedence over Text.
func (s *LedgerService) Parse(ctx context.Context, in ParseInput) (*LedgerOutput, error) {
	strategy, err := s.Strategy(in.Strategy)
	if err != nil {
		return nil, err
	}

	var records []ledger.Record
	if len(in.Lines) > 0 {
		records = strategy.ParseLines(in.Lines)
	} else {
		records = strategy.ParseText(in.Text)
	}
	s.metrics.AddRecords(string(strategy.Name()), len(records))
	return s.output(strategy.Name(), records), nil
}

// Upload is one image received from a client.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// ImageOutcome reports how one upload went.
type ImageOutcome struct {
	Index      int     `json:"index"`
	Name       string  `json:"name"`
	Records    int     `json:"records"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error,omitempty"`
}

// RecognizeOutput is the merged table plus per-image outcomes.
type RecognizeOutput struct {
	LedgerOutput
	BatchID  string         `json:"batchId"`
	Images   []ImageOutcome `json:"images"`
	Rejected int            `json:"rejected"`
	Failed   int            `json:"failed"`
}

// Recognize filters uploads to the accepted image types, keeps a copy of each
// in upload storage when configured, runs OCR and appends every image's
// records in upload order.
func (s *LedgerService) Recognize(ctx context.Context, strategyName string, uploads []Upload) (*RecognizeOutput, error) {
	if s.processor == nil {
		return nil, ErrOCRUnavailable
	}
	strategy, err := s.Strategy(strategyName)
	if err != nil {
		return nil, err
	}

	batchID := uuid.New()
	st := state.New()
	var images []ocr.Image
	rejected := 0
	for i, u := range uploads {
		f := state.File{ID: fmt.Sprintf("%d", i), Name: u.Name, ContentType: u.ContentType, Size: int64(len(u.Data))}
		var n int
		st, n = st.AddFiles(f)
		if n > 0 {
			rejected += n
			continue
		}
		images = append(images, ocr.Image{ID: f.ID, Name: u.Name, ContentType: u.ContentType, Data: u.Data})
	}
	if len(images) == 0 {
		return nil, ErrNoImages
	}

	s.keepUploads(ctx, batchID, images)

	results, _ := s.processor.Process(ctx, strategy, images)

	out := &RecognizeOutput{BatchID: batchID.String(), Rejected: rejected}
	for _, r := range results {
		o := ImageOutcome{Index: r.Index, Name: r.Name, Records: len(r.Records), Confidence: r.Confidence}
		if r.Err != nil {
			o.Error = r.Err.Error()
			out.Failed++
		} else {
			st = st.AppendRecords(r.Records...)
		}
		out.Images = append(out.Images, o)
	}
	out.LedgerOutput = *s.output(strategy.Name(), st.Records)

	s.logger.Info("batch recognized",
		slog.String("batch_id", out.BatchID),
		slog.Int("images", len(images)),
		slog.Int("rejected", rejected),
		slog.Int("failed", out.Failed),
		slog.Int("records", len(out.Records)),
	)
	return out, nil
}

func (s *LedgerService) keepUploads(ctx context.Context, batchID uuid.UUID, images []ocr.Image) {
	if s.uploads == nil {
		return
	}
	for _, img := range images {
		if _, err := s.uploads.Upload(ctx, batchID, img.Name, img.ContentType, bytes.NewReader(img.Data)); err != nil {
			s.logger.Warn("failed to store upload",
				slog.String("batch_id", batchID.String()),
				slog.String("name", img.Name),
				slog.Any("error", err),
			)
		}
	}
}

// File is a generated download.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// ExportCSV renders records in the requested dialect with a BOM.
func (s *LedgerService) ExportCSV(records []ledger.Record, dialect string) (*File, error) {
	if err := ledger.Validate(records); err != nil {
		return nil, err
	}
	d, err := export.ParseDialect(dialect)
	if err != nil {
		return nil, err
	}
	data, err := export.CSV(ledger.Renumber(records), export.CSVOptions{Dialect: d, BOM: true})
	if err != nil {
		return nil, err
	}
	return &File{Name: export.Filename(s.now(), "csv"), ContentType: "text/csv; charset=utf-8", Data: data}, nil
}

// ExportXLSX renders records as a workbook.
func (s *LedgerService) ExportXLSX(title string, records []ledger.Record) (*File, error) {
	if err := ledger.Validate(records); err != nil {
		return nil, err
	}
	data, err := export.XLSX(title, ledger.Renumber(records))
	if err != nil {
		return nil, err
	}
	return &File{
		Name:        export.Filename(s.now(), "xlsx"),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:        data,
	}, nil
}

// ImportOutput is an imported table plus row problems.
type ImportOutput struct {
	LedgerOutput
	Errors  []export.ImportError `json:"errors,omitempty"`
	Skipped int                  `json:"skipped"`
}

// ImportCSV reads an edited CSV back into records.
func (s *LedgerService) ImportCSV(data []byte) (*ImportOutput, error) {
	res, err := export.ImportCSV(data)
	if err != nil {
		return nil, err
	}
	return &ImportOutput{
		LedgerOutput: *s.output("", res.Records),
		Errors:       res.Errors,
		Skipped:      res.SkippedRows,
	}, nil
}

// ShareOutput is a share link and its bare payload.
type ShareOutput struct {
	URL  string `json:"url"`
	Data string `json:"data"`
}

func (s *LedgerService) Share(records []ledger.Record) (*ShareOutput, error) {
	if err := ledger.Validate(records); err != nil {
		return nil, err
	}
	records = ledger.Renumber(records)
	data, err := share.Encode(records)
	if err != nil {
		return nil, err
	}
	link, err := share.BuildURL(s.shareBaseURL, records)
	if err != nil {
		return nil, err
	}
	return &ShareOutput{URL: link, Data: data}, nil
}

// SharedOutput is the session state a share link opens.
type SharedOutput struct {
	Records []ledger.Record `json:"records"`
	Summary ledger.Summary  `json:"summary"`
	Shared  bool            `json:"shared"`
}

// OpenShared decodes a share payload. A malformed payload opens an empty,
// unshared table.
func (s *LedgerService) OpenShared(data string) *SharedOutput {
	records, ok := share.Decode(data, s.logger)
	if !ok {
		records = nil
	}
	st := state.FromShared(records)
	return &SharedOutput{Records: st.Records, Summary: st.Summary(), Shared: st.Shared}
}

// Suggest proposes name fixes without changing records.
func (s *LedgerService) Suggest(ctx context.Context, records []ledger.Record) []normalizer.Suggestion {
	out := s.suggester.Suggest(ctx, records)
	if out == nil {
		out = []normalizer.Suggestion{}
	}
	return out
}

func (s *LedgerService) SaveCorrection(ctx context.Context, c normalizer.Correction) (*normalizer.Correction, error) {
	if s.corrections == nil {
		return nil, ErrCorrectionsOffline
	}
	return s.corrections.Save(ctx, c)
}

func (s *LedgerService) ListCorrections(ctx context.Context) ([]normalizer.Correction, error) {
	if s.corrections == nil {
		return nil, ErrCorrectionsOffline
	}
	return s.corrections.List(ctx)
}

func (s *LedgerService) DeleteCorrection(ctx context.Context, id uuid.UUID) error {
	if s.corrections == nil {
		return ErrCorrectionsOffline
	}
	return s.corrections.Delete(ctx, id)
}

// SaveInput creates or replaces a saved ledger.
type SaveInput struct {
	Title    string          `json:"title"`
	Strategy string          `json:"strategy"`
	Records  []ledger.Record `json:"records"`
}

func (s *LedgerService) CreateLedger(ctx context.Context, in SaveInput) (*repository.Ledger, error) {
	if s.repo == nil {
		return nil, ErrStorageDisabled
	}
	strategy, err := s.Strategy(in.Strategy)
	if err != nil {
		return nil, err
	}
	l := &repository.Ledger{Title: strings.TrimSpace(in.Title), Strategy: string(strategy.Name()), Records: in.Records}
	if err := s.repo.Create(ctx, l); err != nil {
		return nil, fmt.Errorf("failed to create ledger: %w", err)
	}
	s.indexLedger(l)
	return l, nil
}

func (s *LedgerService) GetLedger(ctx context.Context, id uuid.UUID) (*repository.Ledger, error) {
	if s.repo == nil {
		return nil, ErrStorageDisabled
	}
	return s.repo.Get(ctx, id)
}

func (s *LedgerService) ListLedgers(ctx context.Context, limit, offset int) ([]*repository.Ledger, error) {
	if s.repo == nil {
		return nil, ErrStorageDisabled
	}
	return s.repo.List(ctx, limit, offset)
}

func (s *LedgerService) UpdateLedger(ctx context.Context, id uuid.UUID, in SaveInput) (*repository.Ledger, error) {
	if s.repo == nil {
		return nil, ErrStorageDisabled
	}
	strategy, err := s.Strategy(in.Strategy)
	if err != nil {
		return nil, err
	}
	l := &repository.Ledger{ID: id, Title: strings.TrimSpace(in.Title), Strategy: string(strategy.Name()), Records: in.Records}
	if err := s.repo.Update(ctx, l); err != nil {
		return nil, fmt.Errorf("failed to update ledger: %w", err)
	}
	s.indexLedger(l)
	return l, nil
}

func (s *LedgerService) indexLedger(l *repository.Ledger) {
	if s.index == nil {
		return
	}
	if err := s.index.IndexLedger(l.ID.String(), l.Title, l.UpdatedAt, l.Records); err != nil {
		s.logger.Warn("failed to index ledger", slog.String("ledger_id", l.ID.String()), slog.Any("error", err))
	}
}

// ReindexGuests rebuilds the search index from every saved ledger.
func (s *LedgerService) ReindexGuests(ctx context.Context) (int, error) {
	if s.repo == nil || s.index == nil {
		return 0, nil
	}
	rows, err := s.repo.AllGuests(ctx)
	if err != nil {
		return 0, err
	}

	type group struct {
		title   string
		savedAt time.Time
		records []ledger.Record
	}
	var order []uuid.UUID
	groups := map[uuid.UUID]*group{}
	for _, r := range rows {
		g, ok := groups[r.LedgerID]
		if !ok {
			g = &group{title: r.LedgerTitle, savedAt: r.SavedAt}
			groups[r.LedgerID] = g
			order = append(order, r.LedgerID)
		}
		g.records = append(g.records, r.Record)
	}
	for _, id := range order {
		g := groups[id]
		if err := s.index.IndexLedger(id.String(), g.title, g.savedAt, g.records); err != nil {
			return 0, err
		}
	}
	s.logger.Info("guest index rebuilt", slog.Int("ledgers", len(order)), slog.Int("guests", len(rows)))
	return len(rows), nil
}

func (s *LedgerService) SearchGuests(q string, limit int) ([]search.Hit, error) {
	if s.index == nil {
		return nil, ErrSearchDisabled
	}
	return s.index.Search(q, 1, limit)
}
