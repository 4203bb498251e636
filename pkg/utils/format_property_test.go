package utils

import (
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: FormatCNY produces a parseable amount with correct grouping.
//
// For any amount, FormatCNY should:
// 1. Start with ¥ (or -¥ for negative amounts)
// 2. Have exactly 2 decimal places
// 3. Group the integer part in threes
// 4. Preserve the numeric value when parsed back
func TestCNYFormattingProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("FormatCNY produces valid grouped format", prop.ForAll(
		func(amount float64) bool {
			if math.IsNaN(amount) || math.IsInf(amount, 0) {
				return true
			}
			if math.Abs(amount) > 1e15 {
				return true
			}

			formatted := FormatCNY(amount)

			if amount >= 0 {
				if !strings.HasPrefix(formatted, "¥") {
					t.Logf("expected ¥ prefix for %f, got %s", amount, formatted)
					return false
				}
			} else if !strings.HasPrefix(formatted, "-¥") {
				t.Logf("expected -¥ prefix for %f, got %s", amount, formatted)
				return false
			}

			parts := strings.Split(formatted, ".")
			if len(parts) != 2 || len(parts[1]) != 2 {
				t.Logf("expected 2 decimal places for %f, got %s", amount, formatted)
				return false
			}

			// Every comma-separated group after the first has width 3.
			intPart := strings.TrimPrefix(strings.TrimPrefix(parts[0], "-"), "¥")
			groups := strings.Split(intPart, ",")
			if len(groups[0]) == 0 || len(groups[0]) > 3 {
				t.Logf("bad leading group in %s", formatted)
				return false
			}
			for _, g := range groups[1:] {
				if len(g) != 3 {
					t.Logf("bad group %q in %s", g, formatted)
					return false
				}
			}

			// Round trip.
			parsed, err := strconv.ParseFloat(strings.ReplaceAll(intPart, ",", "")+"."+parts[1], 64)
			if err != nil {
				t.Logf("unparseable %s: %v", formatted, err)
				return false
			}
			want := math.Abs(amount)
			if math.Abs(parsed-want) > 0.005+want*1e-12 {
				t.Logf("value drifted: %f -> %s -> %f", amount, formatted, parsed)
				return false
			}
			return true
		},
		gen.Float64Range(-1e12, 1e12),
	))

	properties.Property("FormatVolume round-trips share counts", prop.ForAll(
		func(volume int64) bool {
			formatted := FormatVolume(volume)
			parsed, err := strconv.ParseInt(strings.ReplaceAll(formatted, ",", ""), 10, 64)
			if err != nil {
				t.Logf("unparseable %s: %v", formatted, err)
				return false
			}
			return parsed == volume
		},
		gen.Int64Range(-1e12, 1e12),
	))

	properties.TestingRun(t)
}

func TestFormatCNYExamples(t *testing.T) {
	tests := []struct {
		amount float64
		want   string
	}{
		{0, "¥0.00"},
		{999.5, "¥999.50"},
		{1234.5, "¥1,234.50"},
		{1234567.89, "¥1,234,567.89"},
		{-98765.4, "-¥98,765.40"},
	}
	for _, tt := range tests {
		if got := FormatCNY(tt.amount); got != tt.want {
			t.Errorf("FormatCNY(%v) = %s, want %s", tt.amount, got, tt.want)
		}
	}
}

func TestFormatCompact(t *testing.T) {
	tests := []struct {
		amount float64
		want   string
	}{
		{1234.0, "1234.00"},
		{56780.0, "5.68万"},
		{250000000.0, "2.50亿"},
	}
	for _, tt := range tests {
		if got := FormatCompact(tt.amount); got != tt.want {
			t.Errorf("FormatCompact(%v) = %s, want %s", tt.amount, got, tt.want)
		}
	}
}
