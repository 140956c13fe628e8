package model

import (
	"fmt"
	"time"

	"github.com/cockroachdb/apd/v3"
)

// secondsExp is the decimal exponent of the canonical relative time column.
const secondsExp = -3

func decimalContext() *apd.Context {
	ctx := apd.BaseContext.WithPrecision(34)
	ctx.Rounding = apd.RoundHalfEven
	return ctx
}

// FormatSeconds renders d as seconds with exactly three decimals, e.g.
// 40.0005s -> "40.000" and 12.5s -> "12.500". The conversion is exact
// decimal arithmetic on the nanosecond count, rounding half to even.
func FormatSeconds(d time.Duration) string {
	ns := apd.New(int64(d), -9)
	var out apd.Decimal
	if _, err := decimalContext().Quantize(&out, ns, secondsExp); err != nil {
		// Durations fit in 19 digits, well inside the context precision.
		return fmt.Sprintf("%.3f", d.Seconds())
	}
	if out.IsZero() {
		out.Negative = false
	}
	return out.Text('f')
}

// ParseSeconds parses a decimal seconds value such as "40.000" back into a
// duration, rounding to the nearest nanosecond.
func ParseSeconds(s string) (time.Duration, error) {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse seconds %q: %w", s, err)
	}
	ctx := decimalContext()
	var ns apd.Decimal
	if _, err := ctx.Mul(&ns, d, apd.New(1, 9)); err != nil {
		return 0, fmt.Errorf("parse seconds %q: %w", s, err)
	}
	if _, err := ctx.Quantize(&ns, &ns, 0); err != nil {
		return 0, fmt.Errorf("parse seconds %q: %w", s, err)
	}
	n, err := ns.Int64()
	if err != nil {
		return 0, fmt.Errorf("parse seconds %q: %w", s, err)
	}
	return time.Duration(n), nil
}

// RoundSeconds rounds d to the millisecond precision of the relative time
// column, the same way FormatSeconds does.
func RoundSeconds(d time.Duration) time.Duration {
	r, err := ParseSeconds(FormatSeconds(d))
	if err != nil {
		return d
	}
	return r
}
