package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ObjectType names the kind of a persisted object.
type ObjectType string

// Object types.
const (
	ObjectTrack    ObjectType = "track"
	ObjectStreet   ObjectType = "street"
	ObjectDevice   ObjectType = "device"
	ObjectFeedback ObjectType = "feedback"
	ObjectLoco     ObjectType = "loco"
)

// Object is one persisted entity.
type Object struct {
	Type     ObjectType
	ID       uint32
	Name     string
	Settings *Record
}

// Repository defines persistence of layout objects and their ordered relations.
type Repository interface {
	// SaveObject inserts or updates an object. Existing relations are kept.
	SaveObject(ctx context.Context, obj Object) error

	// DeleteObject removes an object and its relations.
	// Returns ErrNotFound if the object does not exist.
	DeleteObject(ctx context.Context, t ObjectType, id uint32) error

	// ObjectsOfType lists all objects of a type ordered by ID.
	ObjectsOfType(ctx context.Context, t ObjectType) ([]Object, error)

	// SaveRelations replaces the ordered relations of an object.
	SaveRelations(ctx context.Context, t ObjectType, id uint32, relations []*Record) error

	// RelationsOf returns the relations of an object in saved order.
	RelationsOf(ctx context.Context, t ObjectType, id uint32) ([]*Record, error)
}

// SQLiteRepository implements Repository on the objects/relations tables.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// SaveObject implements Repository.
func (r *SQLiteRepository) SaveObject(ctx context.Context, obj Object) error {
	settings := ""
	if obj.Settings != nil {
		settings = obj.Settings.Encode()
	}

	// ON CONFLICT DO UPDATE keeps the row, so relations are not cascaded away.
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO objects (object_type, object_id, name, settings)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (object_type, object_id) DO UPDATE SET
			name = excluded.name,
			settings = excluded.settings,
			updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')`,
		string(obj.Type), obj.ID, obj.Name, settings,
	)
	if err != nil {
		return fmt.Errorf("saving %s %d: %w", obj.Type, obj.ID, err)
	}
	return nil
}

// DeleteObject implements Repository.
func (r *SQLiteRepository) DeleteObject(ctx context.Context, t ObjectType, id uint32) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM objects WHERE object_type = ? AND object_id = ?",
		string(t), id,
	)
	if err != nil {
		return fmt.Errorf("deleting %s %d: %w", t, id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ObjectsOfType implements Repository.
func (r *SQLiteRepository) ObjectsOfType(ctx context.Context, t ObjectType) ([]Object, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT object_id, name, settings FROM objects WHERE object_type = ? ORDER BY object_id",
		string(t),
	)
	if err != nil {
		return nil, fmt.Errorf("querying %s objects: %w", t, err)
	}
	defer rows.Close()

	var out []Object
	for rows.Next() {
		obj := Object{Type: t}
		var settings string
		if err := rows.Scan(&obj.ID, &obj.Name, &settings); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", t, err)
		}
		obj.Settings, err = ParseRecord(settings)
		if err != nil {
			return nil, fmt.Errorf("%s %d: %w", t, obj.ID, err)
		}
		out = append(out, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s rows: %w", t, err)
	}
	return out, nil
}

// SaveRelations implements Repository.
func (r *SQLiteRepository) SaveRelations(ctx context.Context, t ObjectType, id uint32, relations []*Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM objects WHERE object_type = ? AND object_id = ?", string(t), id,
	).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking %s %d: %w", t, id, err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM relations WHERE object_type = ? AND object_id = ?", string(t), id,
	); err != nil {
		return fmt.Errorf("clearing relations of %s %d: %w", t, id, err)
	}

	for pos, rel := range relations {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO relations (object_type, object_id, position, settings) VALUES (?, ?, ?, ?)",
			string(t), id, pos, rel.Encode(),
		); err != nil {
			return fmt.Errorf("inserting relation %d of %s %d: %w", pos, t, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing relations: %w", err)
	}
	return nil
}

// RelationsOf implements Repository.
func (r *SQLiteRepository) RelationsOf(ctx context.Context, t ObjectType, id uint32) ([]*Record, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT settings FROM relations WHERE object_type = ? AND object_id = ? ORDER BY position",
		string(t), id,
	)
	if err != nil {
		return nil, fmt.Errorf("querying relations of %s %d: %w", t, id, err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var settings string
		if err := rows.Scan(&settings); err != nil {
			return nil, fmt.Errorf("scanning relation: %w", err)
		}
		rec, err := ParseRecord(settings)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating relations: %w", err)
	}
	return out, nil
}
