// Package planner is the business layer over scenario storage: saving and
// loading named loan scenarios, the recycle-bin lifecycle, and portfolio
// totals.
package planner

import (
	"errors"
	"fmt"
	"time"

	"github.com/ajdev/loanbook/pkg/models"
	"github.com/ajdev/loanbook/pkg/portfolio"
	"github.com/ajdev/loanbook/pkg/schedule"
	"github.com/ajdev/loanbook/pkg/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RetentionWindow is how long a soft-deleted scenario survives before it is
// purged for good.
const RetentionWindow = 29 * 24 * time.Hour

const defaultScenarioName = "Loan Amortization - Untitled"

// ErrScenarioDeleted is returned for operations that require an active
// scenario when the target sits in the recycle bin.
var ErrScenarioDeleted = errors.New("scenario is deleted")

// Planner handles the business logic for saved loan scenarios.
type Planner struct {
	storage   store.Storage
	generator *schedule.Generator
	logger    *zap.Logger
	now       func() time.Time
}

// NewPlanner creates a Planner over the given Storage implementation. A nil
// logger is replaced with a no-op.
func NewPlanner(s store.Storage, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{
		storage:   s,
		generator: schedule.NewGenerator(logger),
		logger:    logger,
		now:       time.Now,
	}
}

// SaveScenario persists a new named scenario for a user.
func (p *Planner) SaveScenario(userKey, name string, terms models.LoanTerms, overrides models.Overrides) (*models.Scenario, error) {
	if name == "" {
		name = defaultScenarioName
	}
	now := p.now()
	scenario := &models.Scenario{
		ID:        uuid.New(),
		UserKey:   userKey,
		Name:      name,
		Terms:     terms,
		Overrides: overrides,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.storage.CreateScenario(scenario); err != nil {
		return nil, fmt.Errorf("failed to store scenario: %w", err)
	}
	p.logger.Info("scenario saved",
		zap.String("scenario_id", scenario.ID.String()),
		zap.String("name", scenario.Name),
	)
	return scenario, nil
}

// UpdateScenario replaces the terms and overrides of an active scenario and
// bumps its updated timestamp.
func (p *Planner) UpdateScenario(id uuid.UUID, terms models.LoanTerms, overrides models.Overrides) (*models.Scenario, error) {
	scenario, err := p.requireActive(id)
	if err != nil {
		return nil, err
	}
	scenario.Terms = terms
	scenario.Overrides = overrides
	scenario.UpdatedAt = p.now()
	if err := p.storage.UpdateScenario(scenario); err != nil {
		return nil, fmt.Errorf("failed to update scenario: %w", err)
	}
	return scenario, nil
}

// RenameScenario changes a scenario's display name.
func (p *Planner) RenameScenario(id uuid.UUID, name string) (*models.Scenario, error) {
	scenario, err := p.requireActive(id)
	if err != nil {
		return nil, err
	}
	scenario.Name = name
	scenario.UpdatedAt = p.now()
	if err := p.storage.UpdateScenario(scenario); err != nil {
		return nil, fmt.Errorf("failed to rename scenario: %w", err)
	}
	return scenario, nil
}

// GetScenario retrieves a scenario by its ID, deleted or not.
func (p *Planner) GetScenario(id uuid.UUID) (*models.Scenario, error) {
	return p.storage.GetScenario(id)
}

// ListScenarios returns a user's active scenarios or its recycle bin. The
// retention purge runs first so expired entries never surface.
func (p *Planner) ListScenarios(userKey string, deleted bool) ([]*models.Scenario, error) {
	p.purgeExpired()
	return p.storage.ListScenarios(userKey, deleted)
}

// SoftDelete moves an active scenario to the recycle bin.
func (p *Planner) SoftDelete(id uuid.UUID) error {
	return p.storage.SoftDeleteScenario(id, p.now())
}

// Restore brings a soft-deleted scenario back to the active set.
func (p *Planner) Restore(id uuid.UUID) error {
	return p.storage.RestoreScenario(id)
}

// PurgeForever permanently removes a scenario, bypassing the recycle bin.
func (p *Planner) PurgeForever(id uuid.UUID) error {
	return p.storage.PurgeScenario(id)
}

// Schedule recomputes the amortization schedule of an active scenario.
func (p *Planner) Schedule(id uuid.UUID) (*models.Scenario, []models.ScheduleRow, error) {
	scenario, err := p.requireActive(id)
	if err != nil {
		return nil, nil, err
	}
	return scenario, p.generator.Generate(scenario.Terms, scenario.Overrides), nil
}

// Totals aggregates principal and remaining balance over a user's active
// scenarios.
func (p *Planner) Totals(userKey string) (portfolio.Totals, error) {
	scenarios, err := p.ListScenarios(userKey, false)
	if err != nil {
		return portfolio.Totals{}, err
	}
	return portfolio.Aggregate(scenarios), nil
}

func (p *Planner) requireActive(id uuid.UUID) (*models.Scenario, error) {
	scenario, err := p.storage.GetScenario(id)
	if err != nil {
		return nil, err
	}
	if scenario.DeletedAt != nil {
		return nil, ErrScenarioDeleted
	}
	return scenario, nil
}

// purgeExpired drops recycle-bin entries older than the retention window. It
// is a best-effort pass on list access, not a scheduled job; failures are
// logged and the listing proceeds.
func (p *Planner) purgeExpired() {
	cutoff := p.now().Add(-RetentionWindow)
	purged, err := p.storage.PurgeExpired(cutoff)
	if err != nil {
		p.logger.Error("failed to purge expired scenarios", zap.Error(err))
		return
	}
	if purged > 0 {
		p.logger.Info("purged expired scenarios", zap.Int64("count", purged))
	}
}
