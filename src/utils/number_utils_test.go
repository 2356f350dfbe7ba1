package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecimal(t *testing.T) {
	cases := map[string]string{
		"100":          "100",
		"1,234.50":     "1234.50",
		"$1,234.50":    "1234.50",
		"€ 99,00":      "9900", // comma is a thousands separator here, not decimal
		"£12":          "12",
		"-42.5":        "-42.5",
		"+7":           "7",
		"(1200)":       "-1200",
		"($1,200.00)":  "-1200.00",
		"  15.25  ":    "15.25",
		"0":            "0",
		"10.123456789": "10.123456789",
	}
	for input, want := range cases {
		got, ok := ParseDecimal(input)
		require.True(t, ok, "input %q", input)
		expected, err := decimal.NewFromString(want)
		require.NoError(t, err)
		assert.True(t, got.Equal(expected), "input %q: got %s, want %s", input, got, expected)
	}
}

func TestParseDecimalRejectsNonNumeric(t *testing.T) {
	for _, input := range []string{"", "   ", "-", "+", "$", "()", "N/A", "1.2.3"} {
		_, ok := ParseDecimal(input)
		assert.False(t, ok, "input %q", input)
	}
}

func TestParseDecimalKeepsSignForDirectionInference(t *testing.T) {
	got, ok := ParseDecimal("-$500.00")
	require.True(t, ok)
	assert.True(t, got.IsNegative())
}
