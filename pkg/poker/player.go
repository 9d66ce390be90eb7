package poker

import "fmt"

// Player is a seat in a game. Seat order is turn order. Game-level fields
// (hand, bets, flags) reset between hands; Chips persist across hands.
type Player struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Seat     int    `json:"seat"`

	Hand      []Card `json:"hand"`
	Chips     int64  `json:"chips"`
	StreetBet int64  `json:"streetBet"`
	TotalBet  int64  `json:"totalBet"`

	HasFolded bool `json:"hasFolded"`
	IsAllIn   bool `json:"isAllIn"`

	// HasActed is true once the player has acted since the street opened or
	// since the last raise. Street closure requires every actionable player
	// to have acted at the matched amount.
	HasActed bool `json:"hasActed"`

	// Left marks a player who departed mid-hand; the seat is purged when the
	// hand settles.
	Left bool `json:"left,omitempty"`

	// HandValue is recomputed at showdown, never persisted.
	HandValue *HandValue `json:"-"`
}

// NewPlayer creates a player with a starting chip stack.
func NewPlayer(id, username string, seat int, chips int64) *Player {
	return &Player{
		ID:       id,
		Username: username,
		Seat:     seat,
		Chips:    chips,
		Hand:     make([]Card, 0, 2),
	}
}

// ResetForNewHand clears game-level state while preserving the chip stack.
func (p *Player) ResetForNewHand() {
	p.Hand = make([]Card, 0, 2)
	p.StreetBet = 0
	p.TotalBet = 0
	p.HasFolded = false
	p.IsAllIn = false
	p.HasActed = false
	p.HandValue = nil
}

// CanAct reports whether the player may still take betting actions.
func (p *Player) CanAct() bool {
	return !p.HasFolded && !p.IsAllIn
}

// HandString returns the player's hole cards for logging.
func (p *Player) HandString() string {
	if len(p.Hand) == 0 {
		return "no cards"
	}
	s := ""
	for i, c := range p.Hand {
		if i > 0 {
			s += " "
		}
		s += c.String()
	}
	return s
}

func (p *Player) String() string {
	return fmt.Sprintf("%s (seat %d, %d chips)", p.Username, p.Seat, p.Chips)
}
