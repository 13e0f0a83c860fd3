package feed

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	leadingFloat = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)
	leadingInt   = regexp.MustCompile(`^[+-]?\d+`)
	embeddedNum  = regexp.MustCompile(`\d+(\.\d+)?`)
	priceChars   = regexp.MustCompile(`[^0-9.,-]`)
)

// ParseFloatOrZero reads the leading number of s, like a lenient float parse.
// Anything unreadable is 0.
func ParseFloatOrZero(s string) float64 {
	m := leadingFloat.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// ParseIntOrZero reads the leading integer of s. Anything unreadable is 0.
func ParseIntOrZero(s string) int {
	m := leadingInt.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// ParseStock coerces the many ways distributors express availability into a
// non-negative quantity:
//
//	"10", "7.0"          -> the number (integer part)
//	"yes", "y", "true"   -> 1
//	"no", "n", "false"   -> 0
//	"15 units", ">20"    -> the first number in the text
//	"In Stock"           -> 1
//	anything else        -> 0
func ParseStock(s string) int {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return 0
	}

	if f, err := strconv.ParseFloat(v, 64); err == nil {
		if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return clampInt(f)
	}

	switch v {
	case "yes", "y", "true":
		return 1
	case "no", "n", "false":
		return 0
	}

	if m := embeddedNum.FindString(v); m != "" {
		if f, err := strconv.ParseFloat(m, 64); err == nil {
			return clampInt(f)
		}
	}

	if strings.Contains(v, "in stock") && !strings.Contains(v, "not in stock") {
		return 1
	}
	return 0
}

func clampInt(f float64) int {
	if f >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}

// ParsePrice reads a price written with optional currency symbols, spaces
// and thousands separators: "1299.00", "R 1 299,00", "$1,299.00",
// "1.299,00". Unreadable or negative prices are zero.
func ParsePrice(s string) decimal.Decimal {
	v := priceChars.ReplaceAllString(strings.TrimSpace(s), "")
	if v == "" || strings.Contains(v[1:], "-") {
		return decimal.Zero
	}

	lastComma := strings.LastIndex(v, ",")
	lastDot := strings.LastIndex(v, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// 1.299,00
			v = strings.ReplaceAll(v, ".", "")
			v = strings.Replace(v, ",", ".", 1)
		} else {
			// 1,299.00
			v = strings.ReplaceAll(v, ",", "")
		}
	case lastComma >= 0:
		// a single comma followed by one or two digits is a decimal comma
		if strings.Count(v, ",") == 1 && len(v)-lastComma-1 <= 2 {
			v = strings.Replace(v, ",", ".", 1)
		} else {
			v = strings.ReplaceAll(v, ",", "")
		}
	case strings.Count(v, ".") > 1:
		// 1.299.000
		v = strings.ReplaceAll(v, ".", "")
	}

	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}
