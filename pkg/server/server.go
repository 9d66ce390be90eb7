package server

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/google/uuid"

	"github.com/cardroom/cardroom/pkg/poker"
)

// Config holds the room defaults applied to new games.
type Config struct {
	MaxPlayers    int
	StartingChips int64
	TurnTimeout   time.Duration
	LockTimeout   time.Duration
	// Seed makes shuffles reproducible when non-zero. Leave zero in
	// production.
	Seed int64
}

// Server is the API-facing game controller. It owns no live game objects:
// every operation loads the game document, mutates it under the per-game
// guard, persists it, and broadcasts the resulting events. That keeps the
// store the single source of truth and lets several operations on different
// games run in parallel.
type Server struct {
	log    slog.Logger
	cfg    Config
	store  GameStore
	locks  *GameLocks
	hub    *Hub
	events *EventProcessor

	// now is replaceable in tests; the passive turn timer only ever sees
	// time through it.
	now func() time.Time

	mu   sync.Mutex
	seed *rand.Rand
}

// NewServer creates a controller on top of the given store.
func NewServer(log slog.Logger, cfg Config, store GameStore) *Server {
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 5 * time.Second
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	hub := NewHub(log)
	return &Server{
		log:    log,
		cfg:    cfg,
		store:  store,
		locks:  NewGameLocks(),
		hub:    hub,
		events: NewEventProcessor(log, hub, 256, 4),
		now:    time.Now,
		seed:   rand.New(rand.NewSource(seed)),
	}
}

// Start begins event delivery.
func (s *Server) Start() {
	s.events.Start()
}

// Stop shuts down event delivery, disconnects watchers and closes the store.
func (s *Server) Stop() {
	s.events.Stop()
	s.hub.Close()
	if err := s.store.Close(); err != nil {
		s.log.Errorf("Failed to close game store: %v", err)
	}
}

// Hub exposes the watcher hub for the HTTP layer.
func (s *Server) Hub() *Hub {
	return s.hub
}

// newRNG derives an independent shuffler. The seed source is guarded so
// concurrent deals on different games never share rand state.
func (s *Server) newRNG() *rand.Rand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return rand.New(rand.NewSource(s.seed.Int63()))
}

func (s *Server) publish(t GameEventType, gameID string, payload any) {
	s.events.Publish(&GameEvent{
		Type:      t,
		GameID:    gameID,
		Payload:   payload,
		Timestamp: s.now(),
	})
}

// publishExpiry broadcasts the consequences of a timed-out turn.
func (s *Server) publishExpiry(g *poker.Game, res *poker.Settlement) {
	s.publish(GameEventTypeStateUpdate, g.ID, newStateUpdate(g))
	if res != nil {
		s.publish(GameEventTypeRoundComplete, g.ID, newRoundComplete(g, res))
	}
}

// withGame runs fn on the loaded game under its guard and persists the
// result. Before fn sees the game, any expired turn is resolved with its
// default action; that mutation is persisted even when fn itself fails, so
// a rejected request still moves a stuck game forward.
func (s *Server) withGame(ctx context.Context, gameID string, fn func(g *poker.Game, now time.Time) error) (*poker.Game, error) {
	var out *poker.Game
	err := s.locks.WithGameLock(ctx, gameID, s.cfg.LockTimeout, func() error {
		g, err := s.store.LoadGame(ctx, gameID)
		if err != nil {
			return err
		}
		now := s.now()

		expired := false
		if res, acted := g.ExpireTurn(now); acted {
			expired = true
			s.log.Debugf("Turn timer expired in game %s, applied default action", gameID)
			defer s.publishExpiry(g, res)
		}

		if opErr := fn(g, now); opErr != nil {
			if expired {
				g.UpdatedAt = now
				if err := s.store.SaveGame(ctx, g); err != nil {
					s.log.Errorf("Failed to persist expired turn for game %s: %v", gameID, err)
				}
			}
			return opErr
		}

		g.UpdatedAt = now
		if err := s.store.SaveGame(ctx, g); err != nil {
			return fmt.Errorf("failed to persist game %s: %w", gameID, err)
		}
		out = g
		return nil
	})
	return out, err
}

// CreateGame creates a game with the caller seated as its first player.
func (s *Server) CreateGame(ctx context.Context, hostID, hostName string) (*poker.Game, error) {
	g := poker.NewGame(poker.GameConfig{
		ID:            uuid.NewString(),
		MaxPlayers:    s.cfg.MaxPlayers,
		StartingChips: s.cfg.StartingChips,
		TurnTimeout:   s.cfg.TurnTimeout,
	}, s.newRNG(), s.now())

	if _, err := g.AddPlayer(hostID, hostName); err != nil {
		return nil, err
	}
	if err := s.store.SaveGame(ctx, g); err != nil {
		return nil, fmt.Errorf("failed to persist game %s: %w", g.ID, err)
	}

	s.log.Infof("Created game %s for player %s", g.ID, hostID)
	s.publish(GameEventTypeGameCreated, g.ID, newStateUpdate(g))
	return g, nil
}

// JoinGame seats a player in an existing game.
func (s *Server) JoinGame(ctx context.Context, gameID, playerID, username string) (*poker.Game, error) {
	g, err := s.withGame(ctx, gameID, func(g *poker.Game, _ time.Time) error {
		_, err := g.AddPlayer(playerID, username)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Infof("Player %s joined game %s", playerID, gameID)
	s.publish(GameEventTypeStateUpdate, gameID, newStateUpdate(g))
	return g, nil
}

// LeaveGame removes a player. Departing mid-hand counts as a fold; committed
// chips stay in the pot.
func (s *Server) LeaveGame(ctx context.Context, gameID, playerID string) (*poker.Game, error) {
	var settled *poker.Settlement
	g, err := s.withGame(ctx, gameID, func(g *poker.Game, now time.Time) error {
		res, err := g.RemovePlayer(playerID, now)
		settled = res
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Infof("Player %s left game %s", playerID, gameID)
	s.publish(GameEventTypeStateUpdate, gameID, newStateUpdate(g))
	if settled != nil {
		s.publish(GameEventTypeRoundComplete, gameID, newRoundComplete(g, settled))
	}
	return g, nil
}

// DealHand starts a new hand. The requester must be seated.
func (s *Server) DealHand(ctx context.Context, gameID, playerID string) (*poker.Game, error) {
	g, err := s.withGame(ctx, gameID, func(g *poker.Game, now time.Time) error {
		if g.PlayerByID(playerID) == nil {
			return poker.ErrPlayerNotFound
		}
		return g.Deal(s.newRNG(), now)
	})
	if err != nil {
		return nil, err
	}

	s.log.Infof("Dealt hand %d in game %s", g.HandNum, gameID)
	s.publish(GameEventTypeCardsDealt, gameID, newCardsDealt(g))
	return g, nil
}

// RestartGame deals the next hand after a settled one, preserving stacks.
func (s *Server) RestartGame(ctx context.Context, gameID, playerID string) (*poker.Game, error) {
	g, err := s.withGame(ctx, gameID, func(g *poker.Game, now time.Time) error {
		if g.PlayerByID(playerID) == nil {
			return poker.ErrPlayerNotFound
		}
		return g.Restart(s.newRNG(), now)
	})
	if err != nil {
		return nil, err
	}

	s.log.Infof("Restarted game %s at hand %d", gameID, g.HandNum)
	s.publish(GameEventTypeCardsDealt, gameID, newCardsDealt(g))
	return g, nil
}

// PlaceAction applies one betting action for the player.
func (s *Server) PlaceAction(ctx context.Context, gameID, playerID string, a poker.Action) (*poker.Game, error) {
	var settled *poker.Settlement
	var stageBefore poker.Stage
	g, err := s.withGame(ctx, gameID, func(g *poker.Game, now time.Time) error {
		stageBefore = g.Stage
		res, err := g.HandleAction(playerID, a, now)
		settled = res
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Debugf("Player %s %s in game %s (pot=%d)", playerID, a.Kind, gameID, g.Pot())
	s.publish(GameEventTypeBetPlaced, gameID, newBetPlaced(g, playerID, a))
	if g.Playing && g.Stage != stageBefore {
		s.publish(GameEventTypeCardsDealt, gameID, newCardsDealt(g))
	}
	if settled != nil {
		s.publish(GameEventTypeRoundComplete, gameID, newRoundComplete(g, settled))
	}
	return g, nil
}

// Tick resolves an expired turn timer, if any. Clients poll it; a cron or a
// watcher can call it as well, which is the whole passive-timer contract:
// nothing fires on its own, any request moves time forward.
func (s *Server) Tick(ctx context.Context, gameID string) (*poker.Game, bool, error) {
	var out *poker.Game
	acted := false
	err := s.locks.WithGameLock(ctx, gameID, s.cfg.LockTimeout, func() error {
		g, err := s.store.LoadGame(ctx, gameID)
		if err != nil {
			return err
		}

		now := s.now()
		res, a := g.ExpireTurn(now)
		if a {
			acted = true
			g.UpdatedAt = now
			if err := s.store.SaveGame(ctx, g); err != nil {
				return fmt.Errorf("failed to persist game %s: %w", gameID, err)
			}
			s.publishExpiry(g, res)
		}
		out = g
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, acted, nil
}

// GetGame returns the current game document.
func (s *Server) GetGame(ctx context.Context, gameID string) (*poker.Game, error) {
	return s.store.LoadGame(ctx, gameID)
}

// ListGames returns every stored game.
func (s *Server) ListGames(ctx context.Context) ([]*poker.Game, error) {
	ids, err := s.store.ListGameIDs(ctx)
	if err != nil {
		return nil, err
	}

	games := make([]*poker.Game, 0, len(ids))
	for _, id := range ids {
		g, err := s.store.LoadGame(ctx, id)
		if err != nil {
			// A game deleted between listing and loading is not an error.
			s.log.Warnf("Failed to load game %s while listing: %v", id, err)
			continue
		}
		games = append(games, g)
	}
	return games, nil
}

// GetUserCurrentGame returns the game the player is seated in, preferring a
// game with a hand running and breaking ties by most recent activity, or
// ErrGameNotFound.
func (s *Server) GetUserCurrentGame(ctx context.Context, playerID string) (*poker.Game, error) {
	games, err := s.ListGames(ctx)
	if err != nil {
		return nil, err
	}

	var best *poker.Game
	for _, g := range games {
		p := g.PlayerByID(playerID)
		if p == nil || p.Left {
			continue
		}
		switch {
		case best == nil:
			best = g
		case g.Playing && !best.Playing:
			best = g
		case g.Playing == best.Playing && g.UpdatedAt.After(best.UpdatedAt):
			best = g
		}
	}
	if best == nil {
		return nil, ErrGameNotFound
	}
	return best, nil
}

// DeleteGame tears a game down and notifies its watchers.
func (s *Server) DeleteGame(ctx context.Context, gameID string) error {
	err := s.locks.WithGameLock(ctx, gameID, s.cfg.LockTimeout, func() error {
		if _, err := s.store.LoadGame(ctx, gameID); err != nil {
			return err
		}
		return s.store.DeleteGame(ctx, gameID)
	})
	if err != nil {
		return err
	}

	s.log.Infof("Deleted game %s", gameID)
	s.publish(GameEventTypeGameDeleted, gameID, GameDeleted{GameID: gameID})
	return nil
}
