// Package money provides Won arithmetic and display helpers for gift ledgers.
// Amounts are whole Won held in int64; go-money carries the KRW currency
// metadata and shopspring/decimal is used for parsing free-form amount text.
package money

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// KRW is the only currency a ledger deals in.
const KRW = money.KRW

// WonSuffix is appended to every displayed amount.
const WonSuffix = "원"

// rePlainInteger is an optional sign followed by ASCII digits only.
var rePlainInteger = regexp.MustCompile(`^[+-]?[0-9]+$`)

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrNegativeAmount = errors.New("amount must not be negative")
	ErrAmountOverflow = errors.New("amount out of range")
)

// groupFormatter renders 1234567 as "1,234,567".
var groupFormatter = money.NewFormatter(0, ".", ",", "", "1")

// wonFormatter renders 1234567 as "1,234,567원".
var wonFormatter = money.NewFormatter(0, ".", ",", WonSuffix, "1$")

// Won is a monetary value in Korean Won. KRW has no minor unit, so the
// amount is the face value.
type Won struct {
	m *money.Money
}

// NewWon creates a Won value from a whole amount.
func NewWon(amount int64) *Won {
	return &Won{m: money.New(amount, KRW)}
}

// ZeroWon returns a zero Won value.
func ZeroWon() *Won {
	return NewWon(0)
}

// ParseWon parses free-form amount text such as "100000", "100,000" or
// " 50 000 ". Fractions, exponents, negatives and values beyond int64 are
// rejected.
func ParseWon(raw string) (*Won, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, WonSuffix)
	s = strings.NewReplacer(",", "", " ", "", "₩", "").Replace(s)
	if s == "" {
		return nil, ErrInvalidAmount
	}
	if !rePlainInteger.MatchString(s) {
		return nil, fmt.Errorf("%w: %q is not a plain integer", ErrInvalidAmount, raw)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if d.IsNegative() {
		return nil, ErrNegativeAmount
	}
	if d.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return nil, ErrAmountOverflow
	}

	return NewWon(d.IntPart()), nil
}

// ScaleThousands multiplies a count of thousands by 1000, reporting false
// when the product does not fit in int64.
func ScaleThousands(thousands int64) (int64, bool) {
	if thousands < 0 || thousands > math.MaxInt64/1000 {
		return 0, false
	}
	return thousands * 1000, true
}

// Amount returns the face value in Won.
func (w *Won) Amount() int64 {
	if w == nil || w.m == nil {
		return 0
	}
	return w.m.Amount()
}

// IsZero returns true if the amount is zero
func (w *Won) IsZero() bool {
	return w == nil || w.m == nil || w.m.IsZero()
}

// Add returns w + other. Both operands are KRW so the currency check in
// go-money cannot fail.
func (w *Won) Add(other *Won) *Won {
	if w == nil || w.m == nil {
		if other == nil {
			return ZeroWon()
		}
		return other
	}
	if other == nil || other.m == nil {
		return w
	}
	sum, err := w.m.Add(other.m)
	if err != nil {
		return w
	}
	return &Won{m: sum}
}

// Display returns the grouped amount with the Won suffix, e.g. "1,200,000원".
func (w *Won) Display() string {
	return wonFormatter.Format(w.Amount())
}

// Korean returns the 억/만 reading of the amount, e.g. "120만원".
func (w *Won) Korean() string {
	return KoreanMagnitude(w.Amount())
}

// String returns the plain integer amount.
func (w *Won) String() string {
	return fmt.Sprintf("%d", w.Amount())
}

// SumWon adds up whole-Won amounts.
func SumWon(amounts ...int64) *Won {
	total := ZeroWon()
	for _, a := range amounts {
		total = total.Add(NewWon(a))
	}
	return total
}

// GroupThousands inserts a comma every three digits, e.g. 1234567 -> "1,234,567".
func GroupThousands(n int64) string {
	return groupFormatter.Format(n)
}
