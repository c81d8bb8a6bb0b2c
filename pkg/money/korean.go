package money

import (
	"strconv"
	"strings"
)

const (
	man = 10_000
	eok = 100_000_000
)

// KoreanMagnitude renders an amount with the 억 (10^8) and 만 (10^4) units,
// the way totals are read aloud on a guest book. Anything below 만 is
// dropped once the amount reaches 만; amounts under 만 are printed as-is.
//
//	5000      -> "5000원"
//	150000    -> "15만원"
//	300000000 -> "3억원"
//	320000000 -> "3억 2000만원"
//	312000000 -> "3억 1200만원"
func KoreanMagnitude(amount int64) string {
	if amount < 0 {
		amount = 0
	}
	if amount < man {
		return strconv.FormatInt(amount, 10) + WonSuffix
	}

	e := amount / eok
	m := (amount % eok) / man

	var b strings.Builder
	if e > 0 {
		b.WriteString(strconv.FormatInt(e, 10))
		b.WriteString("억")
	}
	if m > 0 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatInt(m, 10))
		b.WriteString("만")
	}
	b.WriteString(WonSuffix)
	return b.String()
}
