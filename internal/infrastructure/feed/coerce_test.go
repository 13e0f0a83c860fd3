package feed

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseStock(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"10", 10},
		{"7.0", 7},
		{"0", 0},
		{"-4", 0},
		{"Yes", 1},
		{"y", 1},
		{"TRUE", 1},
		{"No", 0},
		{"false", 0},
		{"15 units", 15},
		{">20", 20},
		{"In Stock", 1},
		{"Not in stock", 0},
		{"call for availability", 0},
		{"", 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseStock(tt.in))
		})
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"123.45", "123.45"},
		{"R 1 299,00", "1299"},
		{"$1,299.00", "1299"},
		{"1.299,00", "1299"},
		{"1,299", "1299"},
		{"12,5", "12.5"},
		{"1.299.000", "1299000"},
		{"-5", "0"},
		{"n/a", "0"},
		{"", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParsePrice(tt.in)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestParseFloatOrZero(t *testing.T) {
	assert.Equal(t, 899.5, ParseFloatOrZero("899.50"))
	assert.Equal(t, 12.0, ParseFloatOrZero(" 12abc"))
	assert.Equal(t, 0.0, ParseFloatOrZero("abc"))
	assert.Equal(t, 1000.0, ParseFloatOrZero("1e3"))
	assert.Equal(t, 0.25, ParseFloatOrZero("2.5E-1 ZAR"))
	assert.Equal(t, 7.0, ParseFloatOrZero("7e"), "a bare exponent marker is not part of the number")
	assert.Equal(t, 0.0, ParseFloatOrZero("1e400"))
}

func TestParseIntOrZero(t *testing.T) {
	assert.Equal(t, 12, ParseIntOrZero("12"))
	assert.Equal(t, 3, ParseIntOrZero("3.9"))
	assert.Equal(t, 0, ParseIntOrZero("none"))
}
