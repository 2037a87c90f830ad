package calculator

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"QuoteKeeper/internal/model"
)

var half = decimal.RequireFromString("0.5")

// Closes returns the parsable closing prices of quotes in time order.
func Closes(quotes map[time.Time]model.Quote) []decimal.Decimal {
	ts := make([]time.Time, 0, len(quotes))
	for t := range quotes {
		ts = append(ts, t)
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })

	out := make([]decimal.Decimal, 0, len(ts))
	for _, t := range ts {
		if d, err := quotes[t].CloseDecimal(); err == nil {
			out = append(out, d)
		}
	}
	return out
}

// Range returns the highest and lowest close. The store keeps a year of
// quotes, so over a full series this is the 52-week range.
func Range(closes []decimal.Decimal) (high, low decimal.Decimal, err error) {
	if len(closes) == 0 {
		return decimal.Zero, decimal.Zero, errors.New("no closes provided")
	}
	return decimal.Max(closes[0], closes[1:]...), decimal.Min(closes[0], closes[1:]...), nil
}

// Position returns where current sits within the range (0.0~1.0).
func Position(current, high, low decimal.Decimal) (decimal.Decimal, error) {
	if high.Equal(low) {
		return half, nil
	}
	if high.LessThan(low) {
		return decimal.Zero, errors.New("high must be >= low")
	}
	pos := current.Sub(low).Div(high.Sub(low))
	if pos.IsNegative() {
		pos = decimal.Zero
	}
	if pos.GreaterThan(decimal.NewFromInt(1)) {
		pos = decimal.NewFromInt(1)
	}
	return pos, nil
}
