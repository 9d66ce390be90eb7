package poker

import "errors"

// Domain errors surfaced to the controller boundary. The server layer maps
// these onto client-visible status codes.
var (
	// ErrEmptyDeck is returned when a draw is attempted from an exhausted deck.
	ErrEmptyDeck = errors.New("poker: deck is empty")

	// ErrGameFull is returned when a join would exceed the seat limit.
	ErrGameFull = errors.New("poker: game is full")

	// ErrAlreadySeated is returned when a player joins a game twice.
	ErrAlreadySeated = errors.New("poker: player already seated")

	// ErrGameInProgress is returned for operations that require no hand to be
	// running, such as joining or re-dealing mid-hand.
	ErrGameInProgress = errors.New("poker: hand in progress")

	// ErrNoHandInProgress is returned for actions submitted between hands.
	ErrNoHandInProgress = errors.New("poker: no hand in progress")

	// ErrNotEnoughPlayers is returned when a deal is attempted with fewer
	// than two seated players.
	ErrNotEnoughPlayers = errors.New("poker: not enough players")

	// ErrNotYourTurn is returned when a player acts out of turn. State is
	// never mutated in this case.
	ErrNotYourTurn = errors.New("poker: not your turn to act")

	// ErrInvalidAction is returned when the action is illegal for the current
	// betting context (check facing a bet, bet over an existing bet, ...).
	ErrInvalidAction = errors.New("poker: invalid action")

	// ErrPlayerNotFound is returned when the acting player is not seated.
	ErrPlayerNotFound = errors.New("poker: player not found")
)
