// Package parser turns OCR text from a guest-book page into ledger records.
//
// Two conventions exist for the text a page produces, and they disagree on
// what an amount means, so they are separate strategies the caller picks by
// name:
//
//   - per-line: one guest per line, amounts written as "원50,-" meaning
//     50 thousand Won, meal tickets as "大2" / "小1".
//   - whole-block: the page is one free-text block holding a single guest,
//     the first digit run is the literal amount, tickets as "대인 2" / "소인 1".
//
// Parsing never fails. Fields that cannot be found fall back to defaults
// (empty name or the review placeholder, zero amount, empty notes) so a
// person can correct them afterwards.
package parser

import (
	"errors"
	"fmt"

	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger"
)

// StrategyName identifies a parsing strategy in config and requests.
type StrategyName string

const (
	PerLine    StrategyName = "per-line"
	WholeBlock StrategyName = "whole-block"
)

// DefaultStrategy is used when nothing is configured.
const DefaultStrategy = PerLine

var ErrUnknownStrategy = errors.New("unknown parsing strategy")

// Strategy converts recognized text into records numbered from 1.
type Strategy interface {
	Name() StrategyName
	// ParseText parses one block of text; line breaks may be \n, \r\n or \r.
	ParseText(raw string) []ledger.Record
	// ParseLines parses text the OCR engine already split into lines.
	ParseLines(lines []string) []ledger.Record
}

// New returns the strategy registered under name. An empty name selects
// DefaultStrategy.
func New(name StrategyName) (Strategy, error) {
	switch name {
	case "":
		return New(DefaultStrategy)
	case PerLine:
		return NewPerLineStrict(), nil
	case WholeBlock:
		return NewWholeBlockHeuristic(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// Names lists every selectable strategy.
func Names() []StrategyName {
	return []StrategyName{PerLine, WholeBlock}
}
