// Package search indexes saved ledger records so a guest can be looked up
// across events by (approximate) name.
package search

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger"
)

const (
	defaultLimit = 20
	maxFuzziness = 2
)

// Guest is one indexed record.
type Guest struct {
	ID          string `json:"id"`
	LedgerID    string `json:"ledgerId"`
	LedgerTitle string `json:"ledgerTitle"`
	SavedAt     string `json:"savedAt"`
	Number      int    `json:"number"`
	Name        string `json:"name"`
	Amount      int64  `json:"amount"`
	Notes       string `json:"notes"`
}

// Hit is a search result.
type Hit struct {
	Guest
	Score float64 `json:"score"`
}

// Index wraps a bleve index of guests.
type Index struct {
	index bleve.Index
	mu    sync.RWMutex
}

// NewIndex opens the index at path, creating it when missing. An empty path
// creates an in-memory index.
func NewIndex(path string) (*Index, error) {
	m := buildMapping()

	var (
		idx bleve.Index
		err error
	)
	switch {
	case path == "":
		idx, err = bleve.NewMemOnly(m)
	default:
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
				return nil, fmt.Errorf("failed to create index directory: %w", mkErr)
			}
			idx, err = bleve.New(path, m)
		} else {
			idx, err = bleve.Open(path)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open guest index: %w", err)
	}
	return &Index{index: idx}, nil
}

func buildMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = simple.Name

	kw := bleve.NewTextFieldMapping()
	kw.Analyzer = keyword.Name

	num := bleve.NewNumericFieldMapping()

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("name", text)
	doc.AddFieldMappingsAt("ledgerTitle", text)
	doc.AddFieldMappingsAt("notes", text)
	doc.AddFieldMappingsAt("ledgerId", kw)
	doc.AddFieldMappingsAt("savedAt", kw)
	doc.AddFieldMappingsAt("number", num)
	doc.AddFieldMappingsAt("amount", num)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = simple.Name
	return m
}

// IndexLedger replaces every document of one ledger with its current records.
func (i *Index) IndexLedger(ledgerID, title string, savedAt time.Time, records []ledger.Record) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.deleteLedgerLocked(ledgerID); err != nil {
		return err
	}

	batch := i.index.NewBatch()
	for _, r := range records {
		g := Guest{
			ID:          fmt.Sprintf("%s_%d", ledgerID, r.Number),
			LedgerID:    ledgerID,
			LedgerTitle: title,
			SavedAt:     savedAt.UTC().Format(time.RFC3339),
			Number:      r.Number,
			Name:        r.Name,
			Amount:      r.Amount,
			Notes:       r.Notes,
		}
		if err := batch.Index(g.ID, g); err != nil {
			return fmt.Errorf("failed to index guest %s: %w", g.ID, err)
		}
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch index: %w", err)
	}
	return nil
}

// DeleteLedger drops every document of a ledger.
func (i *Index) DeleteLedger(ledgerID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.deleteLedgerLocked(ledgerID)
}

func (i *Index) deleteLedgerLocked(ledgerID string) error {
	q := bleve.NewTermQuery(ledgerID)
	q.SetField("ledgerId")
	req := bleve.NewSearchRequest(q)
	req.Size = 10000

	res, err := i.index.Search(req)
	if err != nil {
		return fmt.Errorf("failed to list ledger documents: %w", err)
	}
	if len(res.Hits) == 0 {
		return nil
	}
	batch := i.index.NewBatch()
	for _, h := range res.Hits {
		batch.Delete(h.ID)
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete ledger documents: %w", err)
	}
	return nil
}

// Search finds guests whose name matches q within an edit distance of
// fuzziness, or starts with q.
func (i *Index) Search(q string, fuzziness, limit int) ([]Hit, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	q = strings.TrimSpace(q)
	if q == "" {
		return []Hit{}, nil
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	fuzziness = min(max(fuzziness, 0), maxFuzziness)

	match := bleve.NewMatchQuery(q)
	match.SetField("name")
	match.SetFuzziness(fuzziness)

	prefix := bleve.NewPrefixQuery(strings.ToLower(q))
	prefix.SetField("name")

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(match, prefix))
	req.Size = limit
	req.Fields = []string{"*"}

	res, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("guest search failed: %w", err)
	}
	return convert(res), nil
}

func convert(res *bleve.SearchResult) []Hit {
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		g := Guest{ID: h.ID}
		if v, ok := h.Fields["ledgerId"].(string); ok {
			g.LedgerID = v
		}
		if v, ok := h.Fields["ledgerTitle"].(string); ok {
			g.LedgerTitle = v
		}
		if v, ok := h.Fields["savedAt"].(string); ok {
			g.SavedAt = v
		}
		if v, ok := h.Fields["name"].(string); ok {
			g.Name = v
		}
		if v, ok := h.Fields["notes"].(string); ok {
			g.Notes = v
		}
		if v, ok := h.Fields["number"].(float64); ok {
			g.Number = int(v)
		}
		if v, ok := h.Fields["amount"].(float64); ok {
			g.Amount = int64(v)
		}
		hits = append(hits, Hit{Guest: g, Score: h.Score})
	}
	return hits
}

// DocCount returns the number of indexed guests.
func (i *Index) DocCount() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index.DocCount()
}

func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.index.Close()
}
