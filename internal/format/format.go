// Package format renders money and percentages the way the back office shows
// them (pt-BR).
package format

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const DefaultCurrency = "BRL"

var currencySymbols = map[string]string{
	"BRL": "R$",
	"USD": "US$",
	"EUR": "€",
}

// Currency formats v with two decimals, "." thousands and "," decimal
// separators, rounding half away from zero.
func Currency(v float64, code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = DefaultCurrency
	}
	symbol, ok := currencySymbols[code]
	if !ok {
		symbol = code
	}
	return symbol + " " + Decimal(v, 2)
}

// Percent formats v as a percentage with two decimals.
func Percent(v float64) string {
	return Decimal(v, 2) + "%"
}

// Decimal formats v with the given number of places using pt-BR separators.
// Non-finite values render as "--".
func Decimal(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "--"
	}
	d := decimal.NewFromFloat(v).Round(places)

	negative := d.IsNegative()
	if negative {
		d = d.Neg()
	}

	raw := d.StringFixed(places)
	intPart, fracPart, _ := strings.Cut(raw, ".")

	var b strings.Builder
	if negative {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if places > 0 {
		b.WriteByte(',')
		b.WriteString(fracPart)
	}
	return b.String()
}
