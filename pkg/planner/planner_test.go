package planner

import (
	"errors"
	"testing"
	"time"

	"github.com/ajdev/loanbook/pkg/models"
	"github.com/ajdev/loanbook/pkg/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MockStore is a simple in-memory implementation of the Storage interface for testing.
type MockStore struct {
	scenarios map[uuid.UUID]*models.Scenario
}

func NewMockStore() *MockStore {
	return &MockStore{scenarios: make(map[uuid.UUID]*models.Scenario)}
}

func (m *MockStore) CreateScenario(scenario *models.Scenario) error {
	m.scenarios[scenario.ID] = scenario
	return nil
}

func (m *MockStore) GetScenario(id uuid.UUID) (*models.Scenario, error) {
	scenario, ok := m.scenarios[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return scenario, nil
}

func (m *MockStore) UpdateScenario(scenario *models.Scenario) error {
	if _, ok := m.scenarios[scenario.ID]; !ok {
		return store.ErrNotFound
	}
	m.scenarios[scenario.ID] = scenario
	return nil
}

func (m *MockStore) ListScenarios(userKey string, deleted bool) ([]*models.Scenario, error) {
	scenarios := []*models.Scenario{}
	for _, scenario := range m.scenarios {
		if scenario.UserKey != userKey {
			continue
		}
		if deleted == (scenario.DeletedAt != nil) {
			scenarios = append(scenarios, scenario)
		}
	}
	return scenarios, nil
}

func (m *MockStore) SoftDeleteScenario(id uuid.UUID, at time.Time) error {
	scenario, ok := m.scenarios[id]
	if !ok || scenario.DeletedAt != nil {
		return store.ErrNotFound
	}
	scenario.DeletedAt = &at
	return nil
}

func (m *MockStore) RestoreScenario(id uuid.UUID) error {
	scenario, ok := m.scenarios[id]
	if !ok || scenario.DeletedAt == nil {
		return store.ErrNotFound
	}
	scenario.DeletedAt = nil
	return nil
}

func (m *MockStore) PurgeScenario(id uuid.UUID) error {
	if _, ok := m.scenarios[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.scenarios, id)
	return nil
}

func (m *MockStore) PurgeExpired(before time.Time) (int64, error) {
	var purged int64
	for id, scenario := range m.scenarios {
		if scenario.DeletedAt != nil && scenario.DeletedAt.Before(before) {
			delete(m.scenarios, id)
			purged++
		}
	}
	return purged, nil
}

func (m *MockStore) Close() error {
	return nil
}

func testTerms() models.LoanTerms {
	return models.LoanTerms{
		Principal:         decimal.NewFromInt(1000),
		AnnualRatePercent: decimal.Zero,
		TermMonths:        4,
		StartDate:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestSaveScenario(t *testing.T) {
	mock := NewMockStore()
	p := NewPlanner(mock, nil)

	scenario, err := p.SaveScenario("user1", "My Loan", testTerms(), models.Overrides{})
	if err != nil {
		t.Fatalf("Failed to save scenario: %v", err)
	}

	if scenario.Name != "My Loan" {
		t.Errorf("Expected name 'My Loan', got %q", scenario.Name)
	}
	if scenario.CreatedAt.IsZero() || scenario.UpdatedAt.IsZero() {
		t.Error("Expected timestamps to be set on save")
	}
	if len(mock.scenarios) != 1 {
		t.Errorf("Expected 1 stored scenario, got %d", len(mock.scenarios))
	}
}

func TestSaveScenarioDefaultName(t *testing.T) {
	mock := NewMockStore()
	p := NewPlanner(mock, nil)

	scenario, err := p.SaveScenario("user1", "", testTerms(), models.Overrides{})
	if err != nil {
		t.Fatalf("Failed to save scenario: %v", err)
	}
	if scenario.Name != "Loan Amortization - Untitled" {
		t.Errorf("Expected default name, got %q", scenario.Name)
	}
}

func TestUpdateScenarioBumpsTimestamp(t *testing.T) {
	mock := NewMockStore()
	p := NewPlanner(mock, nil)

	scenario, _ := p.SaveScenario("user1", "My Loan", testTerms(), models.Overrides{})
	savedAt := scenario.UpdatedAt

	later := savedAt.Add(time.Hour)
	p.now = func() time.Time { return later }

	updatedTerms := testTerms()
	updatedTerms.Principal = decimal.NewFromInt(2000)
	updated, err := p.UpdateScenario(scenario.ID, updatedTerms, models.Overrides{})
	if err != nil {
		t.Fatalf("Failed to update scenario: %v", err)
	}

	if !updated.Terms.Principal.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("Expected principal 2000 after update, got %s", updated.Terms.Principal)
	}
	if !updated.UpdatedAt.Equal(later) {
		t.Errorf("Expected updated timestamp %s, got %s", later, updated.UpdatedAt)
	}
}

func TestUpdateRejectsDeletedScenario(t *testing.T) {
	mock := NewMockStore()
	p := NewPlanner(mock, nil)

	scenario, _ := p.SaveScenario("user1", "My Loan", testTerms(), models.Overrides{})
	if err := p.SoftDelete(scenario.ID); err != nil {
		t.Fatalf("Failed to soft-delete scenario: %v", err)
	}

	_, err := p.UpdateScenario(scenario.ID, testTerms(), models.Overrides{})
	if !errors.Is(err, ErrScenarioDeleted) {
		t.Errorf("Expected ErrScenarioDeleted, got %v", err)
	}
}

func TestRenameScenario(t *testing.T) {
	mock := NewMockStore()
	p := NewPlanner(mock, nil)

	scenario, _ := p.SaveScenario("user1", "My Loan", testTerms(), models.Overrides{})
	renamed, err := p.RenameScenario(scenario.ID, "House Loan")
	if err != nil {
		t.Fatalf("Failed to rename scenario: %v", err)
	}
	if renamed.Name != "House Loan" {
		t.Errorf("Expected renamed scenario, got %q", renamed.Name)
	}
}

func TestListScenariosPurgesExpired(t *testing.T) {
	mock := NewMockStore()
	p := NewPlanner(mock, nil)

	kept, _ := p.SaveScenario("user1", "kept", testTerms(), models.Overrides{})
	expired, _ := p.SaveScenario("user1", "expired", testTerms(), models.Overrides{})

	recentDelete := time.Now().Add(-time.Hour)
	oldDelete := time.Now().Add(-RetentionWindow - time.Hour)
	mock.scenarios[kept.ID].DeletedAt = &recentDelete
	mock.scenarios[expired.ID].DeletedAt = &oldDelete

	deleted, err := p.ListScenarios("user1", true)
	if err != nil {
		t.Fatalf("Failed to list scenarios: %v", err)
	}

	if len(deleted) != 1 || deleted[0].ID != kept.ID {
		t.Errorf("Expected only the recently deleted scenario, got %d entries", len(deleted))
	}
	if _, ok := mock.scenarios[expired.ID]; ok {
		t.Error("Expected expired scenario to be purged from storage")
	}
}

func TestSoftDeleteAndRestore(t *testing.T) {
	mock := NewMockStore()
	p := NewPlanner(mock, nil)

	scenario, _ := p.SaveScenario("user1", "My Loan", testTerms(), models.Overrides{})

	if err := p.SoftDelete(scenario.ID); err != nil {
		t.Fatalf("Failed to soft-delete: %v", err)
	}
	active, _ := p.ListScenarios("user1", false)
	if len(active) != 0 {
		t.Errorf("Expected no active scenarios after soft delete, got %d", len(active))
	}

	if err := p.Restore(scenario.ID); err != nil {
		t.Fatalf("Failed to restore: %v", err)
	}
	active, _ = p.ListScenarios("user1", false)
	if len(active) != 1 {
		t.Errorf("Expected 1 active scenario after restore, got %d", len(active))
	}
	if mock.scenarios[scenario.ID].DeletedAt != nil {
		t.Error("Expected deletion stamp cleared after restore")
	}
}

func TestScheduleForScenario(t *testing.T) {
	mock := NewMockStore()
	p := NewPlanner(mock, nil)

	scenario, _ := p.SaveScenario("user1", "My Loan", testTerms(), models.Overrides{})
	got, rows, err := p.Schedule(scenario.ID)
	if err != nil {
		t.Fatalf("Failed to compute schedule: %v", err)
	}
	if got.ID != scenario.ID {
		t.Errorf("Expected scenario %s, got %s", scenario.ID, got.ID)
	}
	if len(rows) != 4 {
		t.Errorf("Expected 4 schedule rows, got %d", len(rows))
	}

	if err := p.SoftDelete(scenario.ID); err != nil {
		t.Fatalf("Failed to soft-delete: %v", err)
	}
	if _, _, err := p.Schedule(scenario.ID); !errors.Is(err, ErrScenarioDeleted) {
		t.Errorf("Expected ErrScenarioDeleted for a trashed scenario, got %v", err)
	}
}

func TestTotals(t *testing.T) {
	mock := NewMockStore()
	p := NewPlanner(mock, nil)

	if _, err := p.SaveScenario("user1", "untouched", testTerms(), models.Overrides{}); err != nil {
		t.Fatalf("Failed to save scenario: %v", err)
	}
	if _, err := p.SaveScenario("user1", "partly paid", testTerms(), models.Overrides{
		Statuses: map[int]models.PaymentStatus{1: models.StatusPaid},
	}); err != nil {
		t.Fatalf("Failed to save scenario: %v", err)
	}
	trashed, _ := p.SaveScenario("user1", "trashed", testTerms(), models.Overrides{})
	if err := p.SoftDelete(trashed.ID); err != nil {
		t.Fatalf("Failed to soft-delete: %v", err)
	}

	totals, err := p.Totals("user1")
	if err != nil {
		t.Fatalf("Failed to aggregate totals: %v", err)
	}

	if !totals.TotalPrincipal.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("Expected total principal 2000, got %s", totals.TotalPrincipal)
	}
	// 1000 untouched plus 750 left after one paid installment.
	if !totals.TotalRemaining.Equal(decimal.NewFromInt(1750)) {
		t.Errorf("Expected total remaining 1750, got %s", totals.TotalRemaining)
	}
}
