package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(t *testing.T, raw string) time.Time {
	t.Helper()
	d, err := ParseDay(raw)
	require.NoError(t, err)
	return d
}

func TestParseDay(t *testing.T) {
	assert.Equal(t, "2026-03-10", FormatDay(day(t, " 2026-03-10 ")))
	assert.Equal(t, "2026-03-10", FormatDay(day(t, "2026-03-10T23:30:00-03:00").AddDate(0, 0, -1)))

	_, err := ParseDay("10/03/2026")
	assert.Error(t, err)
}

func TestAddMonthsClamped(t *testing.T) {
	cases := []struct {
		from string
		n    int
		want string
	}{
		{"2026-01-31", 1, "2026-02-28"},
		{"2028-01-31", 1, "2028-02-29"},
		{"2026-01-31", 2, "2026-03-31"},
		{"2026-11-15", 3, "2027-02-15"},
		{"2026-03-31", 12, "2027-03-31"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FormatDay(AddMonthsClamped(day(t, c.from), c.n)), "%s + %d", c.from, c.n)
	}
}

func TestNextOccurrence(t *testing.T) {
	start := day(t, "2026-01-31")
	assert.Equal(t, "2026-02-07", FormatDay(NextOccurrence(start, start, RecurrenceWeekly)))
	assert.Equal(t, "2026-02-28", FormatDay(NextOccurrence(start, start, RecurrenceMonthly)))

	leap := day(t, "2028-02-29")
	assert.Equal(t, "2029-02-28", FormatDay(NextOccurrence(leap, leap, RecurrenceYearly)))
	assert.Equal(t, "2032-02-29", FormatDay(NextOccurrence(leap, day(t, "2031-02-28"), RecurrenceYearly)))
}

func TestNextOccurrenceKeepsAnchorDayAfterShortMonth(t *testing.T) {
	anchor := day(t, "2025-12-31")
	want := []string{"2026-01-31", "2026-02-28", "2026-03-31", "2026-04-30", "2026-05-31"}

	prev := anchor
	for _, w := range want {
		prev = NextOccurrence(anchor, prev, RecurrenceMonthly)
		assert.Equal(t, w, FormatDay(prev))
	}
}

func TestCanonicalMethod(t *testing.T) {
	assert.Equal(t, MethodCash, CanonicalMethod("Dinheiro"))
	assert.Equal(t, MethodDebitCard, CanonicalMethod("cartão  de débito"))
	assert.Equal(t, MethodOnCredit, CanonicalMethod("Fiado"))
	assert.Equal(t, "Boleto", CanonicalMethod(" Boleto "))

	assert.True(t, IsCashEquivalent("pix"))
	assert.False(t, IsCashEquivalent("Boleto"))
	assert.True(t, IsOnCredit("Crediário"))
}

func TestRecomputeStatus(t *testing.T) {
	p := Product{Quantity: 2, Status: ProductAvailable}
	p.ReservedQuantity = 2
	p.RecomputeStatus()
	assert.Equal(t, ProductReserved, p.Status)
	assert.Equal(t, 0, p.Sellable())

	p.ReservedQuantity = 1
	p.RecomputeStatus()
	assert.Equal(t, ProductAvailable, p.Status)
	assert.Equal(t, 1, p.Sellable())

	p.Quantity, p.ReservedQuantity = 0, 0
	p.RecomputeStatus()
	assert.Equal(t, ProductSold, p.Status)

	p.Status = ProductInactive
	p.Quantity = 5
	p.RecomputeStatus()
	assert.Equal(t, ProductInactive, p.Status)
}

func TestAppendNote(t *testing.T) {
	at := time.Date(2026, 3, 15, 12, 5, 0, 0, time.UTC)
	var p Product
	p.AppendNote(at, "", "reserved %d for %s", 1, "Ana")
	p.AppendNote(at, "maria", "released")
	assert.Equal(t, "[2026-03-15 12:05] system: reserved 1 for Ana\n[2026-03-15 12:05] maria: released", p.Notes)
}
