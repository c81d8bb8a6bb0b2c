package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger"
)

var (
	reAdultTickets = regexp.MustCompile(`대인\s*(\d+)`)
	reChildTickets = regexp.MustCompile(`소인\s*(\d+)`)
	reNameRun      = regexp.MustCompile(`[가-힣A-Za-z\s]+`)
	reDigitRun     = regexp.MustCompile(`\d+`)
)

// WholeBlockHeuristic treats the whole recognized text as one guest. It is
// meant for engines that return a single merged block per photo.
type WholeBlockHeuristic struct {
	// Placeholder is the name used when no letters were found.
	Placeholder string
}

func NewWholeBlockHeuristic() *WholeBlockHeuristic {
	return &WholeBlockHeuristic{Placeholder: ledger.NameNeedsReview}
}

func (w *WholeBlockHeuristic) Name() StrategyName { return WholeBlock }

func (w *WholeBlockHeuristic) ParseText(raw string) []ledger.Record {
	block := NormalizeText(raw)
	if strings.TrimSpace(block) == "" {
		return []ledger.Record{}
	}

	r := w.parseBlock(block)
	r.Number = 1
	return []ledger.Record{r}
}

func (w *WholeBlockHeuristic) ParseLines(lines []string) []ledger.Record {
	return w.ParseText(strings.Join(lines, "\n"))
}

func (w *WholeBlockHeuristic) parseBlock(block string) ledger.Record {
	var r ledger.Record
	var notes []string

	if m := reAdultTickets.FindStringSubmatch(block); m != nil {
		r.AdultTickets, _ = strconv.Atoi(m[1])
		notes = append(notes, "대인"+m[1])
		block = strings.Replace(block, m[0], " ", 1)
	}
	if m := reChildTickets.FindStringSubmatch(block); m != nil {
		r.ChildTickets, _ = strconv.Atoi(m[1])
		notes = append(notes, "소인"+m[1])
		block = strings.Replace(block, m[0], " ", 1)
	}
	r.Notes = strings.Join(notes, " ")

	r.Name = w.Placeholder
	for _, run := range reNameRun.FindAllString(block, -1) {
		if name := strings.TrimSpace(run); name != "" {
			r.Name = collapseSpaces(name)
			break
		}
	}

	if digits := reDigitRun.FindString(block); digits != "" {
		r.Amount = literalAmount(digits)
	}

	return r
}

// collapseSpaces joins a name split over several lines: "홍\n길동" -> "홍 길동".
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
