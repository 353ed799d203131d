package model

import "github.com/shopspring/decimal"

// Records store money as JSON numbers. Quoted amounts still decode.
func init() { decimal.MarshalJSONWithoutQuotes = true }

// DefaultTaxRate is the sales tax applied to the subtotal.
var DefaultTaxRate = decimal.RequireFromString("0.08")

// RoundCents rounds half away from zero to two places, which is half-up for
// the non-negative amounts used here.
func RoundCents(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// Tax returns round(subtotal * rate, 2).
func Tax(subtotal, rate decimal.Decimal) decimal.Decimal {
	return RoundCents(subtotal.Mul(rate))
}

// FormatMoney renders an amount as $0.00.
func FormatMoney(d decimal.Decimal) string { return "$" + RoundCents(d).StringFixed(2) }
