package portfolio

import (
	"testing"
	"time"

	"github.com/ajdev/loanbook/pkg/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func scenario(principal, annualRate float64, termMonths int, overrides models.Overrides) *models.Scenario {
	return &models.Scenario{
		ID:      uuid.New(),
		UserKey: "user1",
		Name:    "test loan",
		Terms: models.LoanTerms{
			Principal:         decimal.NewFromFloat(principal),
			AnnualRatePercent: decimal.NewFromFloat(annualRate),
			TermMonths:        termMonths,
			StartDate:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		Overrides: overrides,
	}
}

func paidMonths(months ...int) models.Overrides {
	statuses := make(map[int]models.PaymentStatus, len(months))
	for _, month := range months {
		statuses[month] = models.StatusPaid
	}
	return models.Overrides{Statuses: statuses}
}

func TestAggregateNoPaidMonths(t *testing.T) {
	totals := Aggregate([]*models.Scenario{scenario(1000, 0, 4, models.Overrides{})})

	if !totals.TotalPrincipal.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Expected total principal 1000, got %s", totals.TotalPrincipal)
	}
	// Nothing paid: the whole principal is still owed.
	if !totals.TotalRemaining.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Expected total remaining 1000, got %s", totals.TotalRemaining)
	}
}

func TestAggregateStopsAtFirstGap(t *testing.T) {
	// Two of four zero-rate installments paid, then a gap.
	totals := Aggregate([]*models.Scenario{scenario(1000, 0, 4, paidMonths(1, 2))})

	if !totals.TotalRemaining.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Expected remaining 500 at the first unpaid month, got %s", totals.TotalRemaining)
	}

	// Paid months after the gap must not count.
	totals = Aggregate([]*models.Scenario{scenario(1000, 0, 4, paidMonths(1, 3, 4))})
	if !totals.TotalRemaining.Equal(decimal.NewFromInt(750)) {
		t.Errorf("Expected remaining 750 ignoring paid months past the gap, got %s", totals.TotalRemaining)
	}
}

func TestAggregateFullyPaidScenario(t *testing.T) {
	totals := Aggregate([]*models.Scenario{scenario(1000, 0, 4, paidMonths(1, 2, 3, 4))})

	if !totals.TotalRemaining.IsZero() {
		t.Errorf("Expected zero remaining for a fully paid scenario, got %s", totals.TotalRemaining)
	}
}

func TestAggregateSkipsDeletedScenarios(t *testing.T) {
	deleted := scenario(5000, 10, 12, models.Overrides{})
	deletedAt := time.Now()
	deleted.DeletedAt = &deletedAt

	totals := Aggregate([]*models.Scenario{
		scenario(1000, 0, 4, models.Overrides{}),
		deleted,
	})

	if !totals.TotalPrincipal.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Expected deleted scenario excluded from principal, got %s", totals.TotalPrincipal)
	}
	if !totals.TotalRemaining.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Expected deleted scenario excluded from remaining, got %s", totals.TotalRemaining)
	}
}

// Payment overrides take precedence over the scheduled installment when
// replaying paid months.
func TestAggregateHonorsPaymentOverrides(t *testing.T) {
	overrides := paidMonths(1)
	overrides.ActualPayments = map[int]decimal.Decimal{1: decimal.NewFromInt(600)}
	totals := Aggregate([]*models.Scenario{scenario(1000, 0, 4, overrides)})

	if !totals.TotalRemaining.Equal(decimal.NewFromInt(400)) {
		t.Errorf("Expected remaining 400 after a 600 override, got %s", totals.TotalRemaining)
	}
}

// All months marked Paid but underpaid: the residual balance still counts.
func TestAggregateResidualOnInconsistentData(t *testing.T) {
	overrides := paidMonths(1, 2)
	overrides.ActualPayments = map[int]decimal.Decimal{
		1: decimal.NewFromInt(100),
		2: decimal.NewFromInt(100),
	}
	totals := Aggregate([]*models.Scenario{scenario(1000, 0, 2, overrides)})

	if !totals.TotalRemaining.Equal(decimal.NewFromInt(800)) {
		t.Errorf("Expected residual 800 counted toward remaining, got %s", totals.TotalRemaining)
	}
}

func TestAggregateSumsAcrossScenarios(t *testing.T) {
	totals := Aggregate([]*models.Scenario{
		scenario(1000, 0, 4, models.Overrides{}),
		scenario(2000, 0, 4, paidMonths(1)),
	})

	if !totals.TotalPrincipal.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("Expected total principal 3000, got %s", totals.TotalPrincipal)
	}
	// 1000 untouched plus 1500 left on the second scenario.
	if !totals.TotalRemaining.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("Expected total remaining 2500, got %s", totals.TotalRemaining)
	}
}
