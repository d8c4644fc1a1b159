package bulb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/noolite-core/internal/infrastructure/database"
)

// idCounter is the counters row holding the last issued bulb id.
const idCounter = "bulb_id"

// SQLiteStore implements Store on the bulbs and counters tables.
// Channel uniqueness is enforced by UNIQUE(channel).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store on an open, migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetAll returns every record ordered by id.
func (s *SQLiteStore) GetAll(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, data FROM bulbs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying bulbs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Data); err != nil {
			return nil, fmt.Errorf("scanning bulb row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bulbs: %w", err)
	}
	return records, nil
}

// Get returns the record body for id.
func (s *SQLiteStore) Get(ctx context.Context, id uint64) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM bulbs WHERE id = ?`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying bulb %d: %w", id, err)
	}
	return data, nil
}

// Put replaces the record body for an existing id.
func (s *SQLiteStore) Put(ctx context.Context, id uint64, data []byte) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE bulbs SET data = ?, updated_at = ? WHERE id = ?`,
		data, now(), id,
	)
	if err != nil {
		return fmt.Errorf("updating bulb %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating bulb %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Create inserts a record. The UNIQUE constraint on channel makes the
// reservation atomic across processes sharing the database file.
func (s *SQLiteStore) Create(ctx context.Context, id uint64, channel int, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bulbs (id, channel, data, updated_at) VALUES (?, ?, ?, ?)`,
		id, channel, data, now(),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			if strings.Contains(err.Error(), "bulbs.channel") {
				return fmt.Errorf("channel %d: %w", channel, ErrChannelTaken)
			}
			return fmt.Errorf("bulb %d: %w", id, ErrExists)
		}
		return fmt.Errorf("inserting bulb %d: %w", id, err)
	}
	return nil
}

// Delete removes the record for id.
func (s *SQLiteStore) Delete(ctx context.Context, id uint64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM bulbs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting bulb %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting bulb %d: %w", id, err)
	}
	return n > 0, nil
}

// DeleteAll removes every record and the id counter in one transaction.
func (s *SQLiteStore) DeleteAll(ctx context.Context) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	result, err := tx.ExecContext(ctx, `DELETE FROM bulbs`)
	if err != nil {
		return false, fmt.Errorf("deleting bulbs: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting bulbs: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM counters WHERE name = ?`, idCounter); err != nil {
		return false, fmt.Errorf("resetting id counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing delete: %w", err)
	}
	return n > 0, nil
}

// NextID increments the id counter with an upsert.
func (s *SQLiteStore) NextID(ctx context.Context) (uint64, error) {
	var id uint64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO counters (name, value) VALUES (?, 1)
		 ON CONFLICT(name) DO UPDATE SET value = value + 1
		 RETURNING value`,
		idCounter,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("incrementing id counter: %w", err)
	}
	return id, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
