package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/decred/slog"

	"github.com/cardroom/cardroom/pkg/poker"
)

// GameEventType represents the type of game event
type GameEventType string

const (
	GameEventTypeGameCreated   GameEventType = "game_created"
	GameEventTypeStateUpdate   GameEventType = "state_update"
	GameEventTypeBetPlaced     GameEventType = "bet_placed"
	GameEventTypeCardsDealt    GameEventType = "cards_dealt"
	GameEventTypeRoundComplete GameEventType = "round_complete"
	GameEventTypeGameDeleted   GameEventType = "game_deleted"
)

// GameEvent is an immutable snapshot broadcast to every watcher of a game.
// Payloads carry copies taken while the game guard was held, so workers can
// process them without touching live state.
type GameEvent struct {
	Type      GameEventType `json:"type"`
	GameID    string        `json:"gameId"`
	Payload   any           `json:"payload"`
	Timestamp time.Time     `json:"timestamp"`
}

// PlayerState is the public view of one seat. Hole cards are never included;
// players fetch their own hand through the personal game view.
type PlayerState struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Seat      int    `json:"seat"`
	ChipCount int64  `json:"chipCount"`
	IsAllIn   bool   `json:"isAllIn"`
	IsFolded  bool   `json:"isFolded"`
}

// StateUpdate is the full public game snapshot.
type StateUpdate struct {
	GameID             string        `json:"gameId"`
	Stage              string        `json:"stage"`
	Playing            bool          `json:"playing"`
	CommunalCards      []poker.Card  `json:"communalCards"`
	Pot                int64         `json:"pot"`
	Players            []PlayerState `json:"players"`
	CurrentPlayerIndex int           `json:"currentPlayerIndex"`
}

// BetPlaced reports a betting action and the table state it produced.
type BetPlaced struct {
	GameID             string        `json:"gameId"`
	PlayerID           string        `json:"playerId"`
	Action             string        `json:"action"`
	Pot                int64         `json:"pot"`
	PlayerBets         []int64       `json:"playerBets"`
	CurrentPlayerIndex int           `json:"currentPlayerIndex"`
	Players            []PlayerState `json:"players"`
}

// CardsDealt reports a new hand or newly revealed communal cards.
type CardsDealt struct {
	GameID        string        `json:"gameId"`
	Stage         string        `json:"stage"`
	HandNum       int           `json:"handNum"`
	CommunalCards []poker.Card  `json:"communalCards"`
	Players       []PlayerState `json:"players"`
}

// RoundComplete reports a settled hand.
type RoundComplete struct {
	GameID   string           `json:"gameId"`
	Winners  []string         `json:"winners"`
	Awards   map[string]int64 `json:"awards"`
	Returned map[string]int64 `json:"returned,omitempty"`
	Pot      int64            `json:"pot"`
	Players  []PlayerState    `json:"players"`
}

// GameDeleted reports that a game was torn down.
type GameDeleted struct {
	GameID string `json:"gameId"`
}

// snapshotPlayers copies the public per-seat state.
func snapshotPlayers(g *poker.Game) []PlayerState {
	players := make([]PlayerState, 0, len(g.Players))
	for _, p := range g.Players {
		players = append(players, PlayerState{
			ID:        p.ID,
			Username:  p.Username,
			Seat:      p.Seat,
			ChipCount: p.Chips,
			IsAllIn:   p.IsAllIn,
			IsFolded:  p.HasFolded,
		})
	}
	return players
}

// newStateUpdate snapshots the public game state for broadcast.
func newStateUpdate(g *poker.Game) StateUpdate {
	return StateUpdate{
		GameID:             g.ID,
		Stage:              g.Stage.String(),
		Playing:            g.Playing,
		CommunalCards:      append([]poker.Card(nil), g.CommunalCards...),
		Pot:                g.Pot(),
		Players:            snapshotPlayers(g),
		CurrentPlayerIndex: g.CurrentPlayer,
	}
}

func newBetPlaced(g *poker.Game, playerID string, a poker.Action) BetPlaced {
	return BetPlaced{
		GameID:             g.ID,
		PlayerID:           playerID,
		Action:             a.Kind.String(),
		Pot:                g.Pot(),
		PlayerBets:         g.PlayerBets(),
		CurrentPlayerIndex: g.CurrentPlayer,
		Players:            snapshotPlayers(g),
	}
}

func newCardsDealt(g *poker.Game) CardsDealt {
	return CardsDealt{
		GameID:        g.ID,
		Stage:         g.Stage.String(),
		HandNum:       g.HandNum,
		CommunalCards: append([]poker.Card(nil), g.CommunalCards...),
		Players:       snapshotPlayers(g),
	}
}

func newRoundComplete(g *poker.Game, res *poker.Settlement) RoundComplete {
	return RoundComplete{
		GameID:   g.ID,
		Winners:  res.Winners,
		Awards:   res.Awards,
		Returned: res.Returned,
		Pot:      res.Pot,
		Players:  snapshotPlayers(g),
	}
}

// Broadcaster delivers a serialized event to every watcher of a game.
type Broadcaster interface {
	Broadcast(gameID string, message []byte)
}

// EventProcessor fans game events out to watchers from a worker pool, so
// slow consumers never stall the request path.
type EventProcessor struct {
	log      slog.Logger
	sink     Broadcaster
	queue    chan *GameEvent
	stopChan chan struct{}
	wg       sync.WaitGroup
	workers  int
	started  bool
	mu       sync.Mutex
}

// NewEventProcessor creates a new event processor
func NewEventProcessor(log slog.Logger, sink Broadcaster, queueSize, workerCount int) *EventProcessor {
	if queueSize <= 0 {
		queueSize = 256
	}
	if workerCount <= 0 {
		workerCount = 4
	}
	return &EventProcessor{
		log:      log,
		sink:     sink,
		queue:    make(chan *GameEvent, queueSize),
		stopChan: make(chan struct{}),
		workers:  workerCount,
	}
}

// Start begins processing events
func (ep *EventProcessor) Start() {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	if ep.started {
		return
	}
	ep.started = true
	ep.log.Infof("Starting event processor with %d workers", ep.workers)

	for i := 0; i < ep.workers; i++ {
		ep.wg.Add(1)
		go ep.run(i)
	}
}

// Stop gracefully stops the event processor
func (ep *EventProcessor) Stop() {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	if !ep.started {
		return
	}

	close(ep.stopChan)
	ep.wg.Wait()
	ep.started = false
	ep.log.Infof("Event processor stopped")
}

// Publish queues an event for broadcast. Events are dropped rather than
// blocking the request path when the queue is full.
func (ep *EventProcessor) Publish(event *GameEvent) {
	ep.mu.Lock()
	started := ep.started
	ep.mu.Unlock()

	if !started {
		ep.log.Warnf("Event processor not started, dropping event: %s", event.Type)
		return
	}

	select {
	case ep.queue <- event:
		ep.log.Debugf("Published event: %s for game %s", event.Type, event.GameID)
	default:
		ep.log.Errorf("Event queue full, dropping event: %s for game %s", event.Type, event.GameID)
	}
}

// run executes the worker loop
func (ep *EventProcessor) run(id int) {
	defer ep.wg.Done()
	ep.log.Debugf("Event worker %d started", id)

	for {
		select {
		case <-ep.stopChan:
			ep.log.Debugf("Event worker %d stopping", id)
			return

		case event := <-ep.queue:
			if event == nil {
				continue
			}
			raw, err := json.Marshal(event)
			if err != nil {
				ep.log.Errorf("Failed to marshal event %s for game %s: %v", event.Type, event.GameID, err)
				continue
			}
			ep.sink.Broadcast(event.GameID, raw)
		}
	}
}
