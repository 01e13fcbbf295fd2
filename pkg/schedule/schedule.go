// Package schedule derives loan amortization schedules.
package schedule

import (
	"math"

	"github.com/ajdev/loanbook/pkg/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	monthsPerYear = decimal.NewFromInt(12)
	hundred       = decimal.NewFromInt(100)
)

// MonthlyRate converts a nominal annual percentage rate, compounded monthly,
// to the per-month rate.
func MonthlyRate(annualRatePercent decimal.Decimal) decimal.Decimal {
	return annualRatePercent.Div(monthsPerYear).Div(hundred)
}

// ScheduledInstallment computes the fixed monthly installment (EMI) via the
// standard annuity formula. A zero principal or term yields zero; a zero rate
// falls back to straight-line repayment.
func ScheduledInstallment(principal, monthlyRate decimal.Decimal, termMonths int) decimal.Decimal {
	if termMonths <= 0 || principal.IsZero() {
		return decimal.Zero
	}
	months := decimal.NewFromInt(int64(termMonths))
	if monthlyRate.IsZero() {
		return principal.Div(months)
	}
	// The compounding factor is evaluated in float64; the error it carries is
	// far below the whole-unit rounding applied at emission. A rate below
	// float64 resolution collapses the factor to 1 and an absurdly large one
	// overflows it; both degrade to straight-line repayment rather than a
	// zero or infinite divisor.
	rate, _ := monthlyRate.Float64()
	factor := math.Pow(1+rate, float64(termMonths))
	if factor <= 1 || math.IsInf(factor, 0) {
		return principal.Div(months)
	}
	numerator := principal.Mul(monthlyRate).Mul(decimal.NewFromFloat(factor))
	return numerator.Div(decimal.NewFromFloat(factor - 1))
}

// Generator produces amortization schedules.
type Generator struct {
	logger *zap.Logger
}

// NewGenerator creates a Generator. A nil logger is replaced with a no-op.
func NewGenerator(logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{logger: logger}
}

// Generate walks the balance forward one installment at a time and emits one
// row per month, in order. Each month's payment is the user override when one
// was entered, otherwise the scheduled installment. Interest is capped at
// what accrued for the period; any remainder reduces principal, and the
// balance floors at zero so overpayment beyond the remaining balance is
// absorbed. Once the balance reaches zero the walk stops, so the returned
// sequence may be shorter than the term.
//
// The accumulator stays unrounded throughout; rounding would compound error
// across periods. Display fields are rounded to whole units at emission only.
func (g *Generator) Generate(terms models.LoanTerms, overrides models.Overrides) []models.ScheduleRow {
	if terms.Principal.Cmp(decimal.Zero) <= 0 || terms.TermMonths <= 0 {
		return nil
	}

	rate := MonthlyRate(terms.AnnualRatePercent)
	installment := ScheduledInstallment(terms.Principal, rate, terms.TermMonths)

	rows := make([]models.ScheduleRow, 0, terms.TermMonths)
	balance := terms.Principal
	for month := 1; month <= terms.TermMonths; month++ {
		interest := balance.Mul(rate)
		requiredFinal := balance.Add(interest)

		override, hasOverride := overrides.PaymentFor(month)
		rawPaid := installment
		if hasOverride {
			rawPaid = override
		}
		interestPaid := decimal.Min(rawPaid, interest)
		principalPaid := decimal.Max(decimal.Zero, rawPaid.Sub(interestPaid))

		row := models.ScheduleRow{
			Month:                month,
			Date:                 terms.StartDate.AddDate(0, month-1, 0),
			BeginningBalance:     balance.Round(0),
			InterestPortion:      interestPaid.Round(0),
			PrincipalPortion:     principalPaid.Round(0),
			ScheduledInstallment: installment.Round(0),
			RequiredFinalPayment: requiredFinal.Round(0),
			ActualPaidRaw:        rawPaid,
			Status:               overrides.StatusFor(month),
		}
		if hasOverride {
			entered := override.Round(0)
			row.ActualPaid = &entered
		}
		rows = append(rows, row)

		balance = decimal.Max(decimal.Zero, balance.Sub(principalPaid))
		if balance.Cmp(decimal.Zero) <= 0 {
			if month < terms.TermMonths {
				g.logger.Debug("loan paid off before end of term",
					zap.Int("month", month),
					zap.Int("term_months", terms.TermMonths),
				)
			}
			break
		}
	}
	return rows
}
