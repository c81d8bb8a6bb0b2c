package normalizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/gift-ledger/pkg/db"
)

// CorrectionMatchType controls how a stored pattern is compared to an OCR name.
type CorrectionMatchType string

const (
	CorrectionExact    CorrectionMatchType = "exact"
	CorrectionContains CorrectionMatchType = "contains"
)

var (
	ErrCorrectionNotFound = errors.New("name correction not found")
	ErrInvalidCorrection  = errors.New("invalid name correction")
)

// Correction maps a name the OCR keeps misreading to the name it should be.
type Correction struct {
	ID            uuid.UUID           `json:"id"`
	MatchPattern  string              `json:"matchPattern"`
	MatchType     CorrectionMatchType `json:"matchType"`
	CorrectedName string              `json:"correctedName"`
	MatchCount    int                 `json:"matchCount"`
	LastMatchedAt *time.Time          `json:"lastMatchedAt,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

// Matches reports whether raw is covered by this correction.
func (c Correction) Matches(raw string) bool {
	key, pattern := compact(raw), compact(c.MatchPattern)
	if key == "" || pattern == "" {
		return false
	}
	switch c.MatchType {
	case CorrectionContains:
		return strings.Contains(key, pattern)
	default:
		return key == pattern
	}
}

// CorrectionStore persists name corrections in Postgres.
type CorrectionStore struct {
	db     db.DBTX
	logger *slog.Logger
}

func NewCorrectionStore(dbtx db.DBTX, logger *slog.Logger) *CorrectionStore {
	return &CorrectionStore{db: dbtx, logger: logger}
}

const correctionColumns = `id, match_pattern, match_type, corrected_name, match_count,
	last_matched_at, created_at, updated_at`

// Save creates a correction or replaces the one stored for the same pattern.
func (s *CorrectionStore) Save(ctx context.Context, c Correction) (*Correction, error) {
	c.MatchPattern = strings.TrimSpace(c.MatchPattern)
	c.CorrectedName = strings.TrimSpace(c.CorrectedName)
	if c.MatchType == "" {
		c.MatchType = CorrectionExact
	}
	if c.MatchPattern == "" || c.CorrectedName == "" {
		return nil, fmt.Errorf("%w: pattern and corrected name are required", ErrInvalidCorrection)
	}
	if c.MatchType != CorrectionExact && c.MatchType != CorrectionContains {
		return nil, fmt.Errorf("%w: match type %q", ErrInvalidCorrection, c.MatchType)
	}

	query := `
		INSERT INTO name_corrections (match_pattern, match_type, corrected_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (match_pattern) DO UPDATE SET
			match_type = EXCLUDED.match_type,
			corrected_name = EXCLUDED.corrected_name,
			updated_at = now()
		RETURNING ` + correctionColumns

	var out Correction
	err := s.db.QueryRow(ctx, query, c.MatchPattern, c.MatchType, c.CorrectedName).Scan(
		&out.ID, &out.MatchPattern, &out.MatchType, &out.CorrectedName, &out.MatchCount,
		&out.LastMatchedAt, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("save correction: %w", err)
	}
	return &out, nil
}

// List returns every correction, most used first.
func (s *CorrectionStore) List(ctx context.Context) ([]Correction, error) {
	query := `SELECT ` + correctionColumns + `
		FROM name_corrections
		ORDER BY match_count DESC, updated_at DESC`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list corrections: %w", err)
	}
	defer rows.Close()

	var out []Correction
	for rows.Next() {
		var c Correction
		if err := rows.Scan(
			&c.ID, &c.MatchPattern, &c.MatchType, &c.CorrectedName, &c.MatchCount,
			&c.LastMatchedAt, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan correction: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// FindMatching returns the first correction covering raw, or nil. Exact
// corrections win over contains corrections.
func (s *CorrectionStore) FindMatching(ctx context.Context, raw string) (*Correction, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	c := firstMatch(all, raw)
	if c == nil {
		return nil, nil
	}
	s.incrementMatchCount(ctx, c.ID)
	return c, nil
}

func firstMatch(all []Correction, raw string) *Correction {
	var contains *Correction
	for i := range all {
		c := &all[i]
		if !c.Matches(raw) {
			continue
		}
		if c.MatchType != CorrectionContains {
			return c
		}
		if contains == nil {
			contains = c
		}
	}
	return contains
}

func (s *CorrectionStore) incrementMatchCount(ctx context.Context, id uuid.UUID) {
	query := `
		UPDATE name_corrections
		SET match_count = match_count + 1, last_matched_at = now()
		WHERE id = $1`
	if _, err := s.db.Exec(ctx, query, id); err != nil {
		s.logger.Warn("failed to bump correction match count",
			slog.String("correction_id", id.String()),
			slog.Any("error", err),
		)
	}
}

// Delete removes a correction.
func (s *CorrectionStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.Exec(ctx, `DELETE FROM name_corrections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete correction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrCorrectionNotFound
	}
	return nil
}
