package normalizer

import (
	"context"
	"log/slog"

	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger"
)

// SuggestionSource names where a suggested name came from.
type SuggestionSource string

const (
	SourceCorrection SuggestionSource = "correction"
	SourceRoster     SuggestionSource = "roster"
)

// Suggestion proposes a replacement name for one record.
type Suggestion struct {
	Index        int              `json:"index"`
	Number       int              `json:"number"`
	Original     string           `json:"original"`
	Suggested    string           `json:"suggested"`
	Source       SuggestionSource `json:"source"`
	Method       MatchMethod      `json:"method,omitempty"`
	Score        int              `json:"score"`
	Alternatives []string         `json:"alternatives,omitempty"`
}

// CorrectionFinder looks up a stored correction for an OCR name.
type CorrectionFinder interface {
	FindMatching(ctx context.Context, raw string) (*Correction, error)
}

// Suggester combines stored corrections and the roster.
type Suggester struct {
	roster      *Roster
	corrections CorrectionFinder
	threshold   int
	logger      *slog.Logger
}

// NewSuggester wires the sources. Either source may be nil.
func NewSuggester(roster *Roster, corrections CorrectionFinder, threshold int, logger *slog.Logger) *Suggester {
	if roster == nil {
		roster = NewRoster(nil)
	}
	if threshold <= 0 || threshold > 100 {
		threshold = DefaultThreshold
	}
	return &Suggester{roster: roster, corrections: corrections, threshold: threshold, logger: logger}
}

// Roster exposes the roster so it can be rebuilt at runtime.
func (s *Suggester) Roster() *Roster { return s.roster }

const maxAlternatives = 3

// Suggest returns one suggestion per record whose name differs from what a
// correction or the roster says. Records are not modified. A failing
// correction lookup degrades to roster-only suggestions.
func (s *Suggester) Suggest(ctx context.Context, records []ledger.Record) []Suggestion {
	var out []Suggestion
	correctionsUp := s.corrections != nil

	for i, r := range records {
		if r.Name == "" || r.Name == ledger.NameNeedsReview {
			continue
		}

		if correctionsUp {
			c, err := s.corrections.FindMatching(ctx, r.Name)
			if err != nil {
				s.logger.Warn("correction lookup failed, using roster only", slog.Any("error", err))
				correctionsUp = false
			} else if c != nil && c.CorrectedName != r.Name {
				out = append(out, Suggestion{
					Index:     i,
					Number:    r.Number,
					Original:  r.Name,
					Suggested: c.CorrectedName,
					Source:    SourceCorrection,
					Score:     100,
				})
				continue
			}
		}

		m, ok := s.roster.Best(r.Name, s.threshold)
		if !ok || m.Name == r.Name {
			continue
		}
		out = append(out, Suggestion{
			Index:        i,
			Number:       r.Number,
			Original:     r.Name,
			Suggested:    m.Name,
			Source:       SourceRoster,
			Method:       m.Method,
			Score:        m.Score,
			Alternatives: s.alternatives(r.Name, m.Name),
		})
	}
	return out
}

func (s *Suggester) alternatives(name, chosen string) []string {
	var out []string
	for _, c := range s.roster.Candidates(name, maxAlternatives+1) {
		if c != chosen && len(out) < maxAlternatives {
			out = append(out, c)
		}
	}
	return out
}
