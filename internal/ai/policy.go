package ai

import "github.com/shopspring/decimal"

// Policy holds the weights and thresholds of the risk and term heuristics.
type Policy struct {
	DelayWeight  float64
	AmountWeight float64
	AmountScale  float64

	LargeAmount     decimal.Decimal
	LongDelayDays   int
	MediumDelayDays int

	LongTermDays   int
	MediumTermDays int
	ShortTermDays  int
}

func DefaultPolicy() Policy {
	return Policy{
		DelayWeight:     0.7,
		AmountWeight:    0.3,
		AmountScale:     1_000_000,
		LargeAmount:     decimal.NewFromInt(1_000_000),
		LongDelayDays:   30,
		MediumDelayDays: 15,
		LongTermDays:    60,
		MediumTermDays:  30,
		ShortTermDays:   15,
	}
}

// RiskScore weighs the predicted delay against the amount in millions.
func (p Policy) RiskScore(amount decimal.Decimal, delayDays int) float64 {
	scaled := amount.InexactFloat64() / p.AmountScale
	return float64(delayDays)*p.DelayWeight + scaled*p.AmountWeight
}

func (p Policy) SuggestTerm(amount decimal.Decimal, delayDays int) int {
	switch {
	case amount.GreaterThan(p.LargeAmount) && delayDays > p.LongDelayDays:
		return p.LongTermDays
	case delayDays > p.MediumDelayDays:
		return p.MediumTermDays
	default:
		return p.ShortTermDays
	}
}
