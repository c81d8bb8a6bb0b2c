package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger"
)

// reTicketMark matches "大2" (adult) or "小1" (child) meal-ticket marks.
var reTicketMark = regexp.MustCompile(`([大小])(\d+)`)

// PerLineStrict reads one guest per line: "<name> 원<thousands>,- [大|小]<n>".
type PerLineStrict struct{}

func NewPerLineStrict() *PerLineStrict {
	return &PerLineStrict{}
}

func (p *PerLineStrict) Name() StrategyName { return PerLine }

func (p *PerLineStrict) ParseText(raw string) []ledger.Record {
	return p.parse(SplitLines(raw))
}

func (p *PerLineStrict) ParseLines(lines []string) []ledger.Record {
	return p.parse(flattenLines(lines))
}

func (p *PerLineStrict) parse(lines []string) []ledger.Record {
	records := make([]ledger.Record, 0, len(lines))
	for _, line := range lines {
		r := ParseLine(line)
		r.Number = len(records) + 1
		records = append(records, r)
	}
	return records
}

// ParseLine extracts one record from a single trimmed line. Number is left
// zero for the caller to assign.
//
// The name is whatever remains after the first amount match and the first
// ticket mark are cut out, so "김철수 원50,- 大2" yields "김철수". A line
// holding only an amount yields an empty name.
func ParseLine(line string) ledger.Record {
	var r ledger.Record
	name := line

	if m := reThousandsAmount.FindStringSubmatch(line); m != nil {
		r.Amount = thousandsToWon(m[1])
		name = strings.Replace(name, m[0], "", 1)
	}

	if m := reTicketMark.FindStringSubmatch(line); m != nil {
		r.Notes = m[0]
		n, _ := strconv.Atoi(m[2])
		if m[1] == "大" {
			r.AdultTickets = n
		} else {
			r.ChildTickets = n
		}
		name = strings.Replace(name, m[0], "", 1)
	}

	r.Name = strings.TrimSpace(name)
	return r
}
