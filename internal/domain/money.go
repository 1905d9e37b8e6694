package domain

import "github.com/shopspring/decimal"

// MoneyScale number of fractional digits stored for amounts (NUMERIC(12,2))
const MoneyScale = 2

// AmountTolerance is the allowed difference when matching split amounts to the outstanding amount
var AmountTolerance = decimal.New(1, -MoneyScale)

// RoundMoney rounds an amount to the stored scale
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// ComputeVAT returns base * rate rounded to the stored scale
func ComputeVAT(base, rate decimal.Decimal) decimal.Decimal {
	return RoundMoney(base.Mul(rate))
}

// WithinTolerance reports whether |a - b| <= AmountTolerance
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(AmountTolerance)
}
