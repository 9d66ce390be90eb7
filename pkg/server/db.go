package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cardroom/cardroom/pkg/poker"
	"github.com/cardroom/cardroom/pkg/server/internal/db"
)

// ErrGameNotFound is returned when the store holds no document for an ID.
var ErrGameNotFound = errors.New("game not found")

// GameStore defines the interface for game persistence. The store holds the
// whole game as one document; the per-game lock serializes writers, so the
// store itself needs no compare-and-swap.
type GameStore interface {
	// SaveGame persists the full game document.
	SaveGame(ctx context.Context, g *poker.Game) error
	// LoadGame restores a game, returning ErrGameNotFound when absent.
	LoadGame(ctx context.Context, id string) (*poker.Game, error)
	// DeleteGame removes a game document.
	DeleteGame(ctx context.Context, id string) error
	// ListGameIDs returns every stored game ID.
	ListGameIDs(ctx context.Context) ([]string, error)

	// Close closes the underlying connection.
	Close() error
}

// sqliteStore backs GameStore with the sqlite document table.
type sqliteStore struct {
	db *db.DB
}

// NewStore opens a sqlite-backed game store at dbPath, creating the
// directory if needed.
func NewStore(dbPath string) (GameStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	d, err := db.NewDB(dbPath)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{db: d}, nil
}

func (s *sqliteStore) SaveGame(ctx context.Context, g *poker.Game) error {
	raw, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to marshal game %s: %w", g.ID, err)
	}
	return s.db.SaveGame(ctx, g.ID, raw)
}

func (s *sqliteStore) LoadGame(ctx context.Context, id string) (*poker.Game, error) {
	raw, err := s.db.LoadGame(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load game %s: %w", id, err)
	}

	var g poker.Game
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game %s: %w", id, err)
	}
	return &g, nil
}

func (s *sqliteStore) DeleteGame(ctx context.Context, id string) error {
	return s.db.DeleteGame(ctx, id)
}

func (s *sqliteStore) ListGameIDs(ctx context.Context) ([]string, error) {
	return s.db.ListGameIDs(ctx)
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
