package store

import (
	"errors"
	"time"

	"github.com/ajdev/loanbook/pkg/models"
	"github.com/google/uuid"
)

// ErrNotFound is returned when no scenario matches the requested identity.
var ErrNotFound = errors.New("scenario not found")

// Storage defines the persistence operations for saved loan scenarios.
type Storage interface {
	CreateScenario(scenario *models.Scenario) error
	GetScenario(id uuid.UUID) (*models.Scenario, error)
	UpdateScenario(scenario *models.Scenario) error
	// ListScenarios returns a user's scenarios, either the active set or the
	// soft-deleted set, most recently updated first.
	ListScenarios(userKey string, deleted bool) ([]*models.Scenario, error)

	SoftDeleteScenario(id uuid.UUID, at time.Time) error
	RestoreScenario(id uuid.UUID) error
	PurgeScenario(id uuid.UUID) error
	// PurgeExpired permanently removes scenarios soft-deleted before the
	// cutoff and reports how many were removed.
	PurgeExpired(before time.Time) (int64, error)

	Close() error
}
