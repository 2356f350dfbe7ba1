package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

var numericReplacer = strings.NewReplacer(
	"$", "",
	"€", "",
	"£", "",
	",", "",
	" ", "",
)

// ParseDecimal parses a numeric cell from a brokerage export. Currency
// symbols and thousands separators are stripped; an accounting-style
// parenthesised value is treated as negative. The sign is otherwise preserved
// because it may encode trade direction.
func ParseDecimal(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = numericReplacer.Replace(s)
	if s == "" || s == "-" || s == "+" {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}
