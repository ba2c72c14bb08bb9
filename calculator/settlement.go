package calculator

import "github.com/shopspring/decimal"

// SettlementTotals reconciles charges due against deposits received for one period.
type SettlementTotals struct {
	TotalDue      decimal.Decimal
	TotalReceived decimal.Decimal
	PeriodBalance decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
}

// Sum adds amounts, returning zero for an empty slice.
func Sum(amounts []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// ComputeSettlement applies periodBalance = received - due and balanceAfter = before + periodBalance.
func ComputeSettlement(balanceBefore decimal.Decimal, due, received []decimal.Decimal) SettlementTotals {
	totalDue := Sum(due)
	totalReceived := Sum(received)
	periodBalance := totalReceived.Sub(totalDue)
	return SettlementTotals{
		TotalDue:      totalDue,
		TotalReceived: totalReceived,
		PeriodBalance: periodBalance,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceBefore.Add(periodBalance),
	}
}
