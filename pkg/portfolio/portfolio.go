// Package portfolio aggregates totals across saved loan scenarios.
package portfolio

import (
	"github.com/ajdev/loanbook/pkg/models"
	"github.com/ajdev/loanbook/pkg/schedule"
	"github.com/shopspring/decimal"
)

// Totals holds cross-scenario sums over the active scenario set.
type Totals struct {
	TotalPrincipal decimal.Decimal `json:"total_principal"`
	TotalRemaining decimal.Decimal `json:"total_remaining"`
}

// Aggregate sums principal and remaining balance across the given scenarios.
// Soft-deleted scenarios are skipped. A scenario's remaining balance is what
// is still owed at its first month not marked Paid, replaying the months
// before it in sequence.
func Aggregate(scenarios []*models.Scenario) Totals {
	totals := Totals{TotalPrincipal: decimal.Zero, TotalRemaining: decimal.Zero}
	for _, scenario := range scenarios {
		if scenario.DeletedAt != nil {
			continue
		}
		totals.TotalPrincipal = totals.TotalPrincipal.Add(scenario.Terms.Principal)
		totals.TotalRemaining = totals.TotalRemaining.Add(remaining(scenario.Terms, scenario.Overrides))
	}
	return totals
}

// remaining walks the balance forward over consecutive Paid months and stops
// at the first gap. If every month is marked Paid but the balance never
// reached zero, the residual still counts; dropping it would understate the
// portfolio on inconsistent data.
func remaining(terms models.LoanTerms, overrides models.Overrides) decimal.Decimal {
	rate := schedule.MonthlyRate(terms.AnnualRatePercent)
	installment := schedule.ScheduledInstallment(terms.Principal, rate, terms.TermMonths)

	balance := terms.Principal
	for month := 1; month <= terms.TermMonths; month++ {
		if overrides.StatusFor(month) != models.StatusPaid {
			return balance
		}
		paid := installment
		if override, ok := overrides.PaymentFor(month); ok {
			paid = override
		}
		interest := balance.Mul(rate)
		principalPaid := decimal.Max(decimal.Zero, paid.Sub(interest))
		balance = decimal.Max(decimal.Zero, balance.Sub(principalPaid))
		if balance.Cmp(decimal.Zero) <= 0 {
			return decimal.Zero
		}
	}
	return balance
}
