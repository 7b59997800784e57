package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kvance/estate/internal/game/event"
)

// ErrSaveNotFound is returned when a save lookup yields no results.
var ErrSaveNotFound = errors.New("save not found")

// ErrSaveExists is returned when attempting to create a duplicate save name.
var ErrSaveExists = errors.New("save already exists")

// Save is a named playthrough: the story event log plus bookkeeping.
// The world itself is never stored; it is rebuilt by replaying Events
// over the immutable original content.
type Save struct {
	ID        uuid.UUID
	Name      string
	Events    []*event.StoryEvent
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SaveRepository provides save-slot persistence operations.
type SaveRepository struct {
	db *pgxpool.Pool
}

// NewSaveRepository creates a SaveRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewSaveRepository(db *pgxpool.Pool) *SaveRepository {
	return &SaveRepository{db: db}
}

// Create inserts a new save with the given name and event log.
//
// Precondition: name must be non-empty.
// Postcondition: Returns the created Save with ID and timestamps set,
// or ErrSaveExists if the name is taken.
func (r *SaveRepository) Create(ctx context.Context, name string, events []*event.StoryEvent) (Save, error) {
	payload, err := marshalEvents(events)
	if err != nil {
		return Save{}, err
	}

	save := Save{Events: events}
	err = r.db.QueryRow(ctx,
		`INSERT INTO saves (id, name, events)
		 VALUES ($1, $2, $3)
		 RETURNING id, name, created_at, updated_at`,
		uuid.New(), name, payload,
	).Scan(&save.ID, &save.Name, &save.CreatedAt, &save.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return Save{}, ErrSaveExists
		}
		return Save{}, fmt.Errorf("inserting save: %w", err)
	}

	return save, nil
}

// Update replaces the event log of an existing save.
//
// Postcondition: The save's events and updated_at are replaced, or
// ErrSaveNotFound is returned.
func (r *SaveRepository) Update(ctx context.Context, id uuid.UUID, events []*event.StoryEvent) error {
	payload, err := marshalEvents(events)
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE saves SET events = $1, updated_at = now() WHERE id = $2`,
		payload, id,
	)
	if err != nil {
		return fmt.Errorf("updating save: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSaveNotFound
	}
	return nil
}

// Get retrieves a save by ID, including its full event log.
//
// Postcondition: Returns the Save or ErrSaveNotFound.
func (r *SaveRepository) Get(ctx context.Context, id uuid.UUID) (Save, error) {
	var (
		save    Save
		payload []byte
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, name, events, created_at, updated_at
		 FROM saves WHERE id = $1`,
		id,
	).Scan(&save.ID, &save.Name, &payload, &save.CreatedAt, &save.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Save{}, ErrSaveNotFound
		}
		return Save{}, fmt.Errorf("querying save: %w", err)
	}

	if err := json.Unmarshal(payload, &save.Events); err != nil {
		return Save{}, fmt.Errorf("decoding save events: %w", err)
	}
	return save, nil
}

// GetByName retrieves a save by its unique name.
//
// Postcondition: Returns the Save or ErrSaveNotFound.
func (r *SaveRepository) GetByName(ctx context.Context, name string) (Save, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx,
		`SELECT id FROM saves WHERE name = $1`, name,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Save{}, ErrSaveNotFound
		}
		return Save{}, fmt.Errorf("querying save: %w", err)
	}
	return r.Get(ctx, id)
}

// List returns all saves newest-first, without event logs.
//
// Postcondition: Returns a possibly empty slice; Events is nil on each entry.
func (r *SaveRepository) List(ctx context.Context) ([]Save, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, created_at, updated_at
		 FROM saves ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing saves: %w", err)
	}
	defer rows.Close()

	var saves []Save
	for rows.Next() {
		var save Save
		if err := rows.Scan(&save.ID, &save.Name, &save.CreatedAt, &save.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning save row: %w", err)
		}
		saves = append(saves, save)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating save rows: %w", err)
	}
	return saves, nil
}

// Delete removes a save by ID.
//
// Postcondition: The save is gone, or ErrSaveNotFound is returned.
func (r *SaveRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM saves WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting save: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSaveNotFound
	}
	return nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	// pgx wraps PostgreSQL errors; check for SQLSTATE 23505 (unique_violation)
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}

func marshalEvents(events []*event.StoryEvent) ([]byte, error) {
	if events == nil {
		events = []*event.StoryEvent{}
	}
	payload, err := json.Marshal(events)
	if err != nil {
		return nil, fmt.Errorf("encoding save events: %w", err)
	}
	return payload, nil
}
