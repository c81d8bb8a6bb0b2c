package money

import (
	"fmt"

	"github.com/brianvoe/gofakeit/v6"
)

// TestDataGenerator generates realistic guest-book test data using gofakeit.
type TestDataGenerator struct {
	faker *gofakeit.Faker
}

// NewTestDataGenerator creates a new test data generator with a random seed.
func NewTestDataGenerator() *TestDataGenerator {
	return &TestDataGenerator{
		faker: gofakeit.New(0), // Random seed
	}
}

// NewTestDataGeneratorWithSeed creates a generator with a specific seed for reproducibility.
func NewTestDataGeneratorWithSeed(seed int64) *TestDataGenerator {
	return &TestDataGenerator{
		faker: gofakeit.New(seed),
	}
}

var (
	familyNames = []string{"김", "이", "박", "최", "정", "강", "조", "윤", "장", "임", "한", "오", "서", "신", "권"}
	givenNames  = []string{
		"민준", "서연", "도윤", "하은", "시우", "지우", "주원", "수아", "예준", "지호",
		"영희", "철수", "미숙", "정호", "순자", "현우", "은지", "성민", "혜진", "동현",
	}
	// Typical gift amounts in thousands of Won.
	giftThousands = []int64{30, 50, 50, 50, 70, 100, 100, 100, 150, 200, 300, 500}
)

// GuestEntry is one generated guest-book line.
type GuestEntry struct {
	Name         string
	Amount       int64
	AdultTickets int
	ChildTickets int
}

// Line renders the entry the way a per-line OCR result reads,
// e.g. "김민준 원100,- 大2".
func (e GuestEntry) Line() string {
	line := fmt.Sprintf("%s 원%d,-", e.Name, e.Amount/1000)
	if e.AdultTickets > 0 {
		line += fmt.Sprintf(" 大%d", e.AdultTickets)
	} else if e.ChildTickets > 0 {
		line += fmt.Sprintf(" 小%d", e.ChildTickets)
	}
	return line
}

// KoreanName returns a random family + given name.
func (g *TestDataGenerator) KoreanName() string {
	return g.faker.RandomString(familyNames) + g.faker.RandomString(givenNames)
}

// GiftAmount returns a typical gift amount in Won, always a multiple of 1000.
func (g *TestDataGenerator) GiftAmount() int64 {
	return giftThousands[g.faker.IntRange(0, len(giftThousands)-1)] * 1000
}

// RandomAmount returns a random amount between min and max Won.
func (g *TestDataGenerator) RandomAmount(min, max int64) *Won {
	return NewWon(int64(g.faker.IntRange(int(min), int(max))))
}

// GuestEntry generates a single guest. Roughly a third bring meal tickets.
func (g *TestDataGenerator) GuestEntry() GuestEntry {
	e := GuestEntry{
		Name:   g.KoreanName(),
		Amount: g.GiftAmount(),
	}
	switch g.faker.IntRange(0, 5) {
	case 0:
		e.AdultTickets = g.faker.IntRange(1, 4)
	case 1:
		e.ChildTickets = g.faker.IntRange(1, 3)
	}
	return e
}

// GuestEntries generates count guests.
func (g *TestDataGenerator) GuestEntries(count int) []GuestEntry {
	entries := make([]GuestEntry, count)
	for i := 0; i < count; i++ {
		entries[i] = g.GuestEntry()
	}
	return entries
}

// EventTitle returns a plausible ledger title such as "김민준 결혼식".
func (g *TestDataGenerator) EventTitle() string {
	kinds := []string{"결혼식", "돌잔치", "장례식", "칠순잔치"}
	return g.KoreanName() + " " + g.faker.RandomString(kinds)
}
