package parser

import (
	"regexp"
	"strconv"

	"github.com/FACorreiaa/gift-ledger/pkg/money"
)

// reThousandsAmount matches the handwritten "원50,-" convention where the
// digits count thousands of Won.
var reThousandsAmount = regexp.MustCompile(`원(\d+),-`)

// NormalizeAmount converts free-form amount text into Won. "원50,-" means
// 50,000; otherwise commas are stripped and the rest parsed as an integer.
// Anything unparseable, negative or out of range is 0.
func NormalizeAmount(raw string) int64 {
	if m := reThousandsAmount.FindStringSubmatch(raw); m != nil {
		return thousandsToWon(m[1])
	}

	w, err := money.ParseWon(raw)
	if err != nil {
		return 0
	}
	return w.Amount()
}

func thousandsToWon(digits string) int64 {
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0
	}
	won, ok := money.ScaleThousands(n)
	if !ok {
		return 0
	}
	return won
}

// literalAmount parses a bare digit run, 0 when it overflows.
func literalAmount(digits string) int64 {
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
