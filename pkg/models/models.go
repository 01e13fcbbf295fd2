package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the wire and export format for calendar dates.
const DateLayout = "2006-01-02"

// PaymentStatus marks whether an installment has been settled.
type PaymentStatus string

const (
	StatusPaid    PaymentStatus = "Paid"
	StatusPending PaymentStatus = "Pending"
)

// LoanTerms holds the parameters that define a loan.
type LoanTerms struct {
	Principal         decimal.Decimal `json:"principal"`
	AnnualRatePercent decimal.Decimal `json:"annual_rate_percent"`
	TermMonths        int             `json:"term_months"`
	StartDate         time.Time       `json:"start_date"` // due date of installment 1
}

// Overrides carries the user-entered per-month adjustments. Both maps are
// sparse and keyed by 1-based month number; an absent key means "use the
// scheduled default". The engine treats Overrides as read-only input.
type Overrides struct {
	ActualPayments map[int]decimal.Decimal `json:"actual_payments,omitempty"`
	Statuses       map[int]PaymentStatus   `json:"statuses,omitempty"`
}

// PaymentFor returns the user-entered payment for a month, if one exists.
// Presence is distinct from a zero amount.
func (o Overrides) PaymentFor(month int) (decimal.Decimal, bool) {
	amount, ok := o.ActualPayments[month]
	return amount, ok
}

// StatusFor returns the recorded status for a month, defaulting to Pending.
// Anything other than an explicit Paid marker counts as Pending.
func (o Overrides) StatusFor(month int) PaymentStatus {
	if status, ok := o.Statuses[month]; ok && status == StatusPaid {
		return StatusPaid
	}
	return StatusPending
}

// ScheduleRow is one installment of a derived amortization schedule. Display
// amounts are rounded to whole currency units; ActualPaidRaw keeps the
// unrounded amount the balance walk actually applied.
type ScheduleRow struct {
	Month                int              `json:"month"`
	Date                 time.Time        `json:"date"`
	BeginningBalance     decimal.Decimal  `json:"beginning_balance"`
	InterestPortion      decimal.Decimal  `json:"interest_portion"`
	PrincipalPortion     decimal.Decimal  `json:"principal_portion"`
	ScheduledInstallment decimal.Decimal  `json:"scheduled_installment"`
	RequiredFinalPayment decimal.Decimal  `json:"required_final_payment"`
	ActualPaid           *decimal.Decimal `json:"actual_paid,omitempty"` // nil: no override entered
	ActualPaidRaw        decimal.Decimal  `json:"actual_paid_raw"`
	Status               PaymentStatus    `json:"status"`
}

// Scenario is a saved snapshot of loan terms plus overrides, owned by one
// user. A non-nil DeletedAt marks it soft-deleted; such scenarios are hidden
// from active listings and excluded from portfolio totals until restored or
// purged.
type Scenario struct {
	ID        uuid.UUID  `json:"id"`
	UserKey   string     `json:"user_key"`
	Name      string     `json:"name"`
	Terms     LoanTerms  `json:"terms"`
	Overrides Overrides  `json:"overrides"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}
