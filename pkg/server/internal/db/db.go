package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB persists game documents in a sqlite database. Each game is stored as a
// single JSON document keyed by its ID; the engine owns the document shape,
// this layer only moves bytes.
type DB struct {
	*sql.DB
}

// NewDB opens (creating if needed) the sqlite database at dbPath.
func NewDB(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db}, nil
}

// createTables creates the necessary database tables
func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS games (
			id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

// SaveGame upserts a game document.
func (db *DB) SaveGame(ctx context.Context, id string, state []byte) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO games (id, state, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at
	`, id, string(state), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save game %s: %w", id, err)
	}
	return nil
}

// LoadGame returns the stored document, or sql.ErrNoRows when absent.
func (db *DB) LoadGame(ctx context.Context, id string) ([]byte, error) {
	var state string
	err := db.QueryRowContext(ctx, "SELECT state FROM games WHERE id = ?", id).Scan(&state)
	if err != nil {
		return nil, err
	}
	return []byte(state), nil
}

// DeleteGame removes a game document.
func (db *DB) DeleteGame(ctx context.Context, id string) error {
	_, err := db.ExecContext(ctx, "DELETE FROM games WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete game %s: %w", id, err)
	}
	return nil
}

// ListGameIDs returns every stored game ID, oldest first.
func (db *DB) ListGameIDs(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT id FROM games ORDER BY updated_at ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
