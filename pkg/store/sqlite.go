package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ajdev/loanbook/pkg/models"
	"github.com/google/uuid"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore and initializes the database.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	if _, err = db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	return s, nil
}

// initSchema creates the database tables if they don't already exist.
// Decimal fields use TEXT columns so no precision is lost.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS scenarios (
		id TEXT PRIMARY KEY,
		user_key TEXT NOT NULL,
		name TEXT NOT NULL,
		principal TEXT NOT NULL,
		annual_rate_percent TEXT NOT NULL,
		term_months INTEGER NOT NULL,
		start_date DATETIME NOT NULL,
		actual_payments TEXT NOT NULL DEFAULT '{}',
		statuses TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		deleted_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_scenarios_user_key ON scenarios(user_key);
	`
	_, err := s.db.Exec(schema)
	return err
}

const scenarioColumns = `id, user_key, name, principal, annual_rate_percent, term_months, start_date, actual_payments, statuses, created_at, updated_at, deleted_at`

// CreateScenario inserts a new scenario into the database.
func (s *SQLiteStore) CreateScenario(scenario *models.Scenario) error {
	payments, statuses, err := encodeOverrides(scenario.Overrides)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO scenarios (`+scenarioColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		scenario.ID.String(), scenario.UserKey, scenario.Name,
		scenario.Terms.Principal, scenario.Terms.AnnualRatePercent, scenario.Terms.TermMonths, scenario.Terms.StartDate,
		payments, statuses, scenario.CreatedAt, scenario.UpdatedAt, scenario.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create scenario: %w", err)
	}
	return nil
}

// GetScenario retrieves a scenario by its ID.
func (s *SQLiteStore) GetScenario(id uuid.UUID) (*models.Scenario, error) {
	row := s.db.QueryRow(`SELECT `+scenarioColumns+` FROM scenarios WHERE id = ?`, id.String())
	scenario, err := scanScenario(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get scenario: %w", err)
	}
	return scenario, nil
}

// UpdateScenario replaces a scenario's name, terms and overrides.
func (s *SQLiteStore) UpdateScenario(scenario *models.Scenario) error {
	payments, statuses, err := encodeOverrides(scenario.Overrides)
	if err != nil {
		return err
	}
	result, err := s.db.Exec(
		`UPDATE scenarios SET name = ?, principal = ?, annual_rate_percent = ?, term_months = ?, start_date = ?,
			actual_payments = ?, statuses = ?, updated_at = ? WHERE id = ?`,
		scenario.Name,
		scenario.Terms.Principal, scenario.Terms.AnnualRatePercent, scenario.Terms.TermMonths, scenario.Terms.StartDate,
		payments, statuses, scenario.UpdatedAt, scenario.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update scenario: %w", err)
	}
	return requireRow(result)
}

// ListScenarios retrieves a user's scenarios, either the active or the
// soft-deleted set.
func (s *SQLiteStore) ListScenarios(userKey string, deleted bool) ([]*models.Scenario, error) {
	condition := "deleted_at IS NULL"
	if deleted {
		condition = "deleted_at IS NOT NULL"
	}
	rows, err := s.db.Query(
		`SELECT `+scenarioColumns+` FROM scenarios WHERE user_key = ? AND `+condition+` ORDER BY updated_at DESC`,
		userKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	defer rows.Close()

	var scenarios []*models.Scenario
	for rows.Next() {
		scenario, err := scanScenario(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scenario row: %w", err)
		}
		scenarios = append(scenarios, scenario)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return scenarios, nil
}

// SoftDeleteScenario stamps an active scenario as deleted.
func (s *SQLiteStore) SoftDeleteScenario(id uuid.UUID, at time.Time) error {
	result, err := s.db.Exec(
		`UPDATE scenarios SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		at, id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to soft-delete scenario: %w", err)
	}
	return requireRow(result)
}

// RestoreScenario clears the deletion stamp on a soft-deleted scenario.
func (s *SQLiteStore) RestoreScenario(id uuid.UUID) error {
	result, err := s.db.Exec(
		`UPDATE scenarios SET deleted_at = NULL WHERE id = ? AND deleted_at IS NOT NULL`,
		id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to restore scenario: %w", err)
	}
	return requireRow(result)
}

// PurgeScenario permanently removes a scenario.
func (s *SQLiteStore) PurgeScenario(id uuid.UUID) error {
	result, err := s.db.Exec(`DELETE FROM scenarios WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to purge scenario: %w", err)
	}
	return requireRow(result)
}

// PurgeExpired permanently removes scenarios soft-deleted before the cutoff.
func (s *SQLiteStore) PurgeExpired(before time.Time) (int64, error) {
	result, err := s.db.Exec(
		`DELETE FROM scenarios WHERE deleted_at IS NOT NULL AND deleted_at < ?`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired scenarios: %w", err)
	}
	purged, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return purged, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// requireRow maps a zero-row write to ErrNotFound.
func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanScenario(row scanner) (*models.Scenario, error) {
	var scenario models.Scenario
	var idStr, payments, statuses string
	var created, updated time.Time
	var deleted sql.NullTime

	err := row.Scan(
		&idStr, &scenario.UserKey, &scenario.Name,
		&scenario.Terms.Principal, &scenario.Terms.AnnualRatePercent, &scenario.Terms.TermMonths, &scenario.Terms.StartDate,
		&payments, &statuses, &created, &updated, &deleted,
	)
	if err != nil {
		return nil, err
	}
	scenario.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid scenario id %q: %w", idStr, err)
	}
	scenario.CreatedAt = created
	scenario.UpdatedAt = updated
	if deleted.Valid {
		scenario.DeletedAt = &deleted.Time
	}
	scenario.Overrides, err = decodeOverrides(payments, statuses)
	if err != nil {
		return nil, err
	}
	return &scenario, nil
}

// Override maps persist as JSON objects keyed by month number.
func encodeOverrides(overrides models.Overrides) (string, string, error) {
	payments, err := json.Marshal(overrides.ActualPayments)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode actual payments: %w", err)
	}
	statuses, err := json.Marshal(overrides.Statuses)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode statuses: %w", err)
	}
	return string(payments), string(statuses), nil
}

func decodeOverrides(payments, statuses string) (models.Overrides, error) {
	var overrides models.Overrides
	if err := json.Unmarshal([]byte(payments), &overrides.ActualPayments); err != nil {
		return overrides, fmt.Errorf("failed to decode actual payments: %w", err)
	}
	if err := json.Unmarshal([]byte(statuses), &overrides.Statuses); err != nil {
		return overrides, fmt.Errorf("failed to decode statuses: %w", err)
	}
	return overrides, nil
}
