package server

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/decred/slog"
	"github.com/stretchr/testify/require"

	"github.com/cardroom/cardroom/pkg/poker"
)

// fakeClock drives the passive turn timer without real waiting.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestServer(t *testing.T) (*Server, *fakeClock) {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "games.db"))
	require.NoError(t, err)

	s := NewServer(slog.Disabled, Config{
		MaxPlayers:    4,
		StartingChips: 100,
		TurnTimeout:   30 * time.Second,
		LockTimeout:   2 * time.Second,
		Seed:          11,
	}, store)

	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	s.now = clock.Now
	s.Start()
	t.Cleanup(s.Stop)
	return s, clock
}

// dealtGame creates a two-player game (alice seat 0, bob seat 1) with the
// first hand dealt. Bob acts first.
func dealtGame(t *testing.T, s *Server) string {
	t.Helper()
	ctx := context.Background()

	g, err := s.CreateGame(ctx, "alice", "alice")
	require.NoError(t, err)
	_, err = s.JoinGame(ctx, g.ID, "bob", "bob")
	require.NoError(t, err)
	_, err = s.DealHand(ctx, g.ID, "alice")
	require.NoError(t, err)
	return g.ID
}

func TestCreateAndJoin(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	g, err := s.CreateGame(ctx, "alice", "alice")
	require.NoError(t, err)
	require.NotEmpty(t, g.ID)
	require.Len(t, g.Players, 1)
	require.Equal(t, 4, g.MaxPlayers)
	require.Equal(t, int64(100), g.Players[0].Chips)

	_, err = s.JoinGame(ctx, g.ID, "bob", "bob")
	require.NoError(t, err)
	_, err = s.JoinGame(ctx, g.ID, "bob", "bob")
	require.ErrorIs(t, err, poker.ErrAlreadySeated)

	// The join was persisted, not just applied in memory.
	loaded, err := s.GetGame(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Players, 2)
}

func TestDealAndActFlow(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()
	gameID := dealtGame(t, s)

	g, err := s.GetGame(ctx, gameID)
	require.NoError(t, err)
	require.True(t, g.Playing)
	require.Equal(t, 1, g.CurrentPlayer)
	for _, p := range g.Players {
		require.Len(t, p.Hand, 2)
	}

	_, err = s.PlaceAction(ctx, gameID, "bob", poker.Action{Kind: poker.ActionBet, Amount: 20})
	require.NoError(t, err)
	g, err = s.PlaceAction(ctx, gameID, "alice", poker.Action{Kind: poker.ActionCall})
	require.NoError(t, err)

	require.Equal(t, poker.StageFlop, g.Stage)
	require.Equal(t, int64(40), g.Pot())
	require.Len(t, g.CommunalCards, 3)

	// Reload from the store: the document is the source of truth.
	loaded, err := s.GetGame(ctx, gameID)
	require.NoError(t, err)
	require.Equal(t, poker.StageFlop, loaded.Stage)
	require.Equal(t, int64(40), loaded.Pot())
}

func TestOutOfTurnNotPersisted(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()
	gameID := dealtGame(t, s)

	_, err := s.PlaceAction(ctx, gameID, "alice", poker.Action{Kind: poker.ActionBet, Amount: 20})
	require.ErrorIs(t, err, poker.ErrNotYourTurn)

	g, err := s.GetGame(ctx, gameID)
	require.NoError(t, err)
	require.Zero(t, g.Pot())
	require.Equal(t, 1, g.CurrentPlayer)
}

func TestTickExpiresTurn(t *testing.T) {
	s, clock := newTestServer(t)
	ctx := context.Background()
	gameID := dealtGame(t, s)

	_, expired, err := s.Tick(ctx, gameID)
	require.NoError(t, err)
	require.False(t, expired, "timer must not expire before the timeout")

	clock.Advance(31 * time.Second)
	g, expired, err := s.Tick(ctx, gameID)
	require.NoError(t, err)
	require.True(t, expired)

	// Nothing was owed, so the default action is a check and the turn moves
	// to alice.
	require.Equal(t, 0, g.CurrentPlayer)
	require.False(t, g.Players[1].HasFolded)

	loaded, err := s.GetGame(ctx, gameID)
	require.NoError(t, err)
	require.Equal(t, 0, loaded.CurrentPlayer)
}

func TestExpiryResolvedBeforeNextAction(t *testing.T) {
	s, clock := newTestServer(t)
	ctx := context.Background()
	gameID := dealtGame(t, s)

	// Bob stalls past the timeout. Alice's request first resolves bob's
	// expired turn (auto-check), then applies her own action: no Tick call
	// needed.
	clock.Advance(31 * time.Second)
	g, err := s.PlaceAction(ctx, gameID, "alice", poker.Action{Kind: poker.ActionCheck})
	require.NoError(t, err)

	require.Equal(t, poker.StageFlop, g.Stage, "both checks close the street")
	require.False(t, g.Players[1].HasFolded)
}

func TestExpiryFoldPersistsWhenActionFails(t *testing.T) {
	s, clock := newTestServer(t)
	ctx := context.Background()
	gameID := dealtGame(t, s)

	_, err := s.PlaceAction(ctx, gameID, "bob", poker.Action{Kind: poker.ActionBet, Amount: 20})
	require.NoError(t, err)

	// Alice times out owing 20, so the pre-step folds her and settles the
	// hand. Bob's invalid follow-up is rejected, but the fold must stick.
	clock.Advance(31 * time.Second)
	_, err = s.PlaceAction(ctx, gameID, "bob", poker.Action{Kind: poker.ActionCheck})
	require.ErrorIs(t, err, poker.ErrNoHandInProgress)

	g, err := s.GetGame(ctx, gameID)
	require.NoError(t, err)
	require.False(t, g.Playing)
	require.True(t, g.Players[0].HasFolded)
	require.Equal(t, []string{"bob"}, g.LastResult.Winners)
}

func TestLeaveMidHandSettles(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()
	gameID := dealtGame(t, s)

	g, err := s.LeaveGame(ctx, gameID, "alice")
	require.NoError(t, err)

	require.False(t, g.Playing)
	require.NotNil(t, g.LastResult)
	require.Equal(t, []string{"bob"}, g.LastResult.Winners)
	require.Len(t, g.Players, 1)
}

func TestRestartAfterSettledHand(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()
	gameID := dealtGame(t, s)

	_, err := s.PlaceAction(ctx, gameID, "bob", poker.Action{Kind: poker.ActionBet, Amount: 20})
	require.NoError(t, err)
	g, err := s.PlaceAction(ctx, gameID, "alice", poker.Action{Kind: poker.ActionFold})
	require.NoError(t, err)
	require.False(t, g.Playing)

	g, err = s.RestartGame(ctx, gameID, "alice")
	require.NoError(t, err)
	require.True(t, g.Playing)
	require.Equal(t, 2, g.HandNum)
	require.Nil(t, g.LastResult)
}

func TestGetUserCurrentGame(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()
	gameID := dealtGame(t, s)

	g, err := s.GetUserCurrentGame(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, gameID, g.ID)

	_, err = s.GetUserCurrentGame(ctx, "carol")
	require.ErrorIs(t, err, ErrGameNotFound)
}

func TestGetUserCurrentGamePrefersActive(t *testing.T) {
	s, clock := newTestServer(t)
	ctx := context.Background()

	// Alice sits in an older idle game and a newer one with a hand running.
	idle, err := s.CreateGame(ctx, "alice", "alice")
	require.NoError(t, err)

	clock.Advance(time.Minute)
	active, err := s.CreateGame(ctx, "alice", "alice")
	require.NoError(t, err)
	_, err = s.JoinGame(ctx, active.ID, "bob", "bob")
	require.NoError(t, err)
	_, err = s.DealHand(ctx, active.ID, "alice")
	require.NoError(t, err)

	got, err := s.GetUserCurrentGame(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, active.ID, got.ID, "the game with a hand running wins")

	// Settle the hand: with nothing playing anywhere, the most recently
	// touched game wins over the older one.
	_, err = s.PlaceAction(ctx, active.ID, "bob", poker.Action{Kind: poker.ActionBet, Amount: 20})
	require.NoError(t, err)
	_, err = s.PlaceAction(ctx, active.ID, "alice", poker.Action{Kind: poker.ActionFold})
	require.NoError(t, err)

	got, err = s.GetUserCurrentGame(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, active.ID, got.ID)
	require.NotEqual(t, idle.ID, got.ID)
}

func TestDeleteGame(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()
	gameID := dealtGame(t, s)

	require.NoError(t, s.DeleteGame(ctx, gameID))

	_, err := s.GetGame(ctx, gameID)
	require.ErrorIs(t, err, ErrGameNotFound)
	require.ErrorIs(t, s.DeleteGame(ctx, gameID), ErrGameNotFound)
}

func TestListGames(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	g1, err := s.CreateGame(ctx, "alice", "alice")
	require.NoError(t, err)
	g2, err := s.CreateGame(ctx, "bob", "bob")
	require.NoError(t, err)

	games, err := s.ListGames(ctx)
	require.NoError(t, err)
	require.Len(t, games, 2)

	ids := []string{games[0].ID, games[1].ID}
	require.ElementsMatch(t, []string{g1.ID, g2.ID}, ids)
}
