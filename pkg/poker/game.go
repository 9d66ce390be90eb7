package poker

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/cardroom/cardroom/pkg/statemachine"
)

// Stage is the discrete phase of a hand, driving how many communal cards
// are visible.
type Stage int

const (
	StageCards Stage = iota // hole cards dealt, first betting street
	StageFlop               // 3 communal cards
	StageTurn               // 4 communal cards
	StageRiver              // 5 communal cards
	StageShowdown           // terminal until the next deal
)

func (s Stage) String() string {
	switch s {
	case StageCards:
		return "cards"
	case StageFlop:
		return "flop"
	case StageTurn:
		return "turn"
	case StageRiver:
		return "river"
	case StageShowdown:
		return "showdown"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// GameConfig holds configuration for a new game.
type GameConfig struct {
	ID            string
	MaxPlayers    int
	StartingChips int64
	TurnTimeout   time.Duration
}

// Game is the aggregate root: it exclusively owns its players, deck, ledger
// and timer. The struct is plain data plus methods and carries no lock; the
// server serializes every mutation through the per-game guard, and the
// document store is the source of truth between requests.
type Game struct {
	ID            string        `json:"id"`
	MaxPlayers    int           `json:"maxPlayers"`
	StartingChips int64         `json:"startingChips"`
	TurnTimeout   time.Duration `json:"turnTimeout"`

	Players       []*Player `json:"players"` // seat order = turn order
	Deck          *Deck     `json:"deck"`
	CommunalCards []Card    `json:"communalCards"`
	Ledger        *Ledger   `json:"ledger"`

	Stage         Stage     `json:"stage"`
	Playing       bool      `json:"playing"`
	CurrentPlayer int       `json:"currentPlayer"` // seat index, -1 between hands
	CurrentBet    int64     `json:"currentBet"`    // matched amount for the street
	Dealer        int       `json:"dealer"`
	HandNum       int       `json:"handNum"`
	Timer         TurnTimer `json:"timer"`

	// LastResult is the settlement of the most recently finished hand.
	LastResult *Settlement `json:"lastResult,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// pendingRefunds carries uncalled-bet refunds from street close to
	// settlement within a single operation.
	pendingRefunds map[string]int64
}

// GameStateFn is a hand-flow state function.
type GameStateFn = statemachine.StateFn[Game]

// NewGame creates a game waiting for players, with a fresh shuffled deck.
func NewGame(cfg GameConfig, rng *rand.Rand, now time.Time) *Game {
	if cfg.MaxPlayers <= 0 {
		cfg.MaxPlayers = 6
	}
	if cfg.StartingChips <= 0 {
		cfg.StartingChips = 1000
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = 30 * time.Second
	}
	return &Game{
		ID:            cfg.ID,
		MaxPlayers:    cfg.MaxPlayers,
		StartingChips: cfg.StartingChips,
		TurnTimeout:   cfg.TurnTimeout,
		Players:       make([]*Player, 0, cfg.MaxPlayers),
		Deck:          NewDeck(rng),
		Ledger:        NewLedger(),
		CurrentPlayer: -1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// PlayerByID returns the seated player with the given ID, or nil.
func (g *Game) PlayerByID(id string) *Player {
	for _, p := range g.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Pot returns the total chips committed this hand.
func (g *Game) Pot() int64 {
	return g.Ledger.Total()
}

// PlayerBets returns the per-seat committed amounts for the current street.
func (g *Game) PlayerBets() []int64 {
	return g.Ledger.SeatBets(len(g.Players))
}

// AddPlayer seats a new player. Joining is rejected while a hand is running.
func (g *Game) AddPlayer(id, username string) (*Player, error) {
	if g.Playing {
		return nil, ErrGameInProgress
	}
	if len(g.Players) >= g.MaxPlayers {
		return nil, ErrGameFull
	}
	if g.PlayerByID(id) != nil {
		return nil, ErrAlreadySeated
	}
	p := NewPlayer(id, username, len(g.Players), g.StartingChips)
	g.Players = append(g.Players, p)
	return p, nil
}

// RemovePlayer removes a seat. Mid-hand the departure counts as an
// immediate fold; if that leaves a single contender the hand settles and
// the returned settlement is non-nil. Seats of departed players are purged
// once no hand is running.
func (g *Game) RemovePlayer(id string, now time.Time) (*Settlement, error) {
	p := g.PlayerByID(id)
	if p == nil {
		return nil, ErrPlayerNotFound
	}

	if !g.Playing {
		p.Left = true
		g.purgeLeft()
		return nil, nil
	}

	if p.Seat == g.CurrentPlayer && p.CanAct() {
		// Their turn: play the fold through the normal action path so the
		// turn advances and the timer resets.
		res, err := g.HandleAction(id, Action{Kind: ActionFold}, now)
		if err != nil {
			return nil, err
		}
		p.Left = true
		if !g.Playing {
			g.purgeLeft()
		}
		return res, nil
	}

	p.HasFolded = true
	p.Left = true

	if g.contenders() == 1 {
		res := g.settleFoldWin()
		g.purgeLeft()
		return res, nil
	}
	if g.streetClosed() {
		res := g.advanceStreets(now)
		if !g.Playing {
			g.purgeLeft()
		}
		return res, nil
	}
	return nil, nil
}

// Deal starts a new hand: fresh shuffled deck, two hole cards per player,
// cleared communal cards and pot, timer running for the first player.
// Chip stacks carry over from the previous hand.
func (g *Game) Deal(rng *rand.Rand, now time.Time) error {
	if g.Playing {
		return ErrGameInProgress
	}
	g.purgeLeft()
	n := len(g.Players)
	if n < 2 {
		return ErrNotEnoughPlayers
	}

	g.Deck = NewDeck(rng)
	for _, p := range g.Players {
		p.ResetForNewHand()
	}
	g.CommunalCards = nil
	g.Ledger = NewLedger()
	g.CurrentBet = 0
	g.LastResult = nil
	g.pendingRefunds = nil

	g.HandNum++
	if g.HandNum > 1 {
		g.Dealer = (g.Dealer + 1) % n
	}

	// Two passes, one card at a time, the way a live dealer would.
	for i := 0; i < 2; i++ {
		for _, p := range g.Players {
			card, err := g.Deck.Draw()
			if err != nil {
				return fmt.Errorf("dealing to %s: %w", p.ID, err)
			}
			p.Hand = append(p.Hand, card)
		}
	}

	g.Stage = StageCards
	g.Playing = true
	g.CurrentPlayer = g.nextCanAct(g.Dealer)
	g.Timer.Start(g.TurnTimeout, now)
	return nil
}

// Restart re-deals after a completed hand, preserving chip stacks.
func (g *Game) Restart(rng *rand.Rand, now time.Time) error {
	return g.Deal(rng, now)
}

// HandleAction validates and applies one betting action for the acting
// player. Invalid actions and out-of-turn attempts leave the game
// unmodified. A non-nil settlement means the hand ended.
func (g *Game) HandleAction(playerID string, a Action, now time.Time) (*Settlement, error) {
	if !g.Playing {
		return nil, ErrNoHandInProgress
	}
	p := g.PlayerByID(playerID)
	if p == nil {
		return nil, ErrPlayerNotFound
	}
	if p.Seat != g.CurrentPlayer {
		return nil, ErrNotYourTurn
	}

	owed := g.CurrentBet - p.StreetBet

	switch a.Kind {
	case ActionFold:
		p.HasFolded = true

	case ActionCheck:
		if owed > 0 {
			return nil, fmt.Errorf("%w: cannot check facing a bet of %d", ErrInvalidAction, g.CurrentBet)
		}

	case ActionCall:
		if owed <= 0 {
			return nil, fmt.Errorf("%w: nothing to call", ErrInvalidAction)
		}
		g.commit(p, owed)

	case ActionBet:
		if g.CurrentBet > 0 {
			return nil, fmt.Errorf("%w: a bet was already made this street, raise instead", ErrInvalidAction)
		}
		if a.Amount <= 0 {
			return nil, fmt.Errorf("%w: bet requires a positive amount", ErrInvalidAction)
		}
		g.commit(p, a.Amount)
		g.CurrentBet = p.StreetBet
		g.reopenBetting(p)

	case ActionRaise:
		if g.CurrentBet == 0 {
			return nil, fmt.Errorf("%w: no bet to raise, bet instead", ErrInvalidAction)
		}
		if a.Amount <= 0 {
			return nil, fmt.Errorf("%w: raise requires a positive amount", ErrInvalidAction)
		}
		// Amount is the street total the raiser wants to reach. A target at
		// or below the current bet is only legal when it commits the whole
		// stack: an all-in for less. Anything short of that is an illegal
		// under-raise.
		if a.Amount <= g.CurrentBet && a.Amount < p.StreetBet+p.Chips {
			return nil, fmt.Errorf("%w: raise must exceed the current bet of %d", ErrInvalidAction, g.CurrentBet)
		}
		need := a.Amount - p.StreetBet
		if need <= 0 {
			return nil, fmt.Errorf("%w: already committed %d this street", ErrInvalidAction, p.StreetBet)
		}
		g.commit(p, need)
		if p.StreetBet > g.CurrentBet {
			g.CurrentBet = p.StreetBet
			g.reopenBetting(p)
		}

	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidAction, a.Kind)
	}

	p.HasActed = true
	g.Timer.Clear()

	if g.contenders() == 1 {
		return g.settleFoldWin(), nil
	}
	if g.streetClosed() {
		return g.advanceStreets(now), nil
	}

	g.CurrentPlayer = g.nextCanAct(g.CurrentPlayer)
	g.Timer.Start(g.TurnTimeout, now)
	return nil, nil
}

// ExpireTurn applies the timed-out player's default action: fold when a bet
// is owed, check otherwise. It reports whether anything happened, so the
// caller can persist only real expiries. Safe to call on every request.
func (g *Game) ExpireTurn(now time.Time) (*Settlement, bool) {
	if !g.Playing || g.CurrentPlayer < 0 || g.CurrentPlayer >= len(g.Players) {
		return nil, false
	}
	if !g.Timer.CheckExpire(now) {
		return nil, false
	}

	p := g.Players[g.CurrentPlayer]
	a := Action{Kind: ActionCheck}
	if g.CurrentBet-p.StreetBet > 0 {
		a.Kind = ActionFold
	}
	// The default action is always legal for the current player, so this
	// cannot fail.
	res, _ := g.HandleAction(p.ID, a, now)
	return res, true
}

// commit moves chips from the player's stack into the pot, clamping at the
// stack total: betting more than you have is an all-in, never an error.
func (g *Game) commit(p *Player, amount int64) int64 {
	if amount >= p.Chips {
		amount = p.Chips
		p.IsAllIn = true
	}
	p.Chips -= amount
	p.StreetBet += amount
	p.TotalBet += amount
	g.Ledger.Commit(p.Seat, amount)
	return amount
}

// reopenBetting requires everyone else who can act to respond to a raise.
func (g *Game) reopenBetting(aggressor *Player) {
	for _, p := range g.Players {
		if p != aggressor && p.CanAct() {
			p.HasActed = false
		}
	}
}

// contenders counts players still eligible to win the hand.
func (g *Game) contenders() int {
	n := 0
	for _, p := range g.Players {
		if !p.HasFolded {
			n++
		}
	}
	return n
}

// canActCount counts players who may still take betting actions.
func (g *Game) canActCount() int {
	n := 0
	for _, p := range g.Players {
		if p.CanAct() {
			n++
		}
	}
	return n
}

// streetClosed reports whether every player who can act has acted at the
// matched amount. Vacuously true when nobody can act (all folded or all-in).
func (g *Game) streetClosed() bool {
	for _, p := range g.Players {
		if !p.CanAct() {
			continue
		}
		if !p.HasActed || p.StreetBet != g.CurrentBet {
			return false
		}
	}
	return true
}

// nextCanAct returns the first seat after from (wrapping) that can act.
func (g *Game) nextCanAct(from int) int {
	n := len(g.Players)
	for i := 1; i <= n; i++ {
		idx := (from + i) % n
		if g.Players[idx].CanAct() {
			return idx
		}
	}
	return -1
}

// Hand-flow state functions. Each reveals its tranche of communal cards and
// hands off to the next street; showdown settles and terminates the chain.

func stateFlop(g *Game) GameStateFn {
	for i := 0; i < 3; i++ {
		if !g.revealCard() {
			return stateShowdown
		}
	}
	g.beginStreet(StageFlop)
	return stateTurn
}

func stateTurn(g *Game) GameStateFn {
	if !g.revealCard() {
		return stateShowdown
	}
	g.beginStreet(StageTurn)
	return stateRiver
}

func stateRiver(g *Game) GameStateFn {
	if !g.revealCard() {
		return stateShowdown
	}
	g.beginStreet(StageRiver)
	return stateShowdown
}

func stateShowdown(g *Game) GameStateFn {
	g.settleShowdown()
	return nil
}

// nextStreetState maps the current stage to the state function that opens
// the following street.
func (g *Game) nextStreetState() GameStateFn {
	switch g.Stage {
	case StageCards:
		return stateFlop
	case StageFlop:
		return stateTurn
	case StageTurn:
		return stateRiver
	default:
		return stateShowdown
	}
}

// advanceStreets runs the hand-flow machine after a street closes. It stops
// as soon as a street opens on which more than one player can still act;
// with one or zero actionable players it runs the board out to showdown.
func (g *Game) advanceStreets(now time.Time) *Settlement {
	g.pendingRefunds = g.Ledger.ReturnUncalled(g.Players)

	m := statemachine.New(g, g.nextStreetState())
	if m.Step() && g.canActCount() <= 1 {
		// Street states never change who can act, so with at most one
		// actionable player the board runs out to showdown.
		m.Run()
	}

	if g.Playing {
		g.CurrentPlayer = g.nextCanAct(g.Dealer)
		g.Timer.Start(g.TurnTimeout, now)
		return nil
	}
	res := g.LastResult
	return res
}

// revealCard moves the top of the deck onto the communal cards.
func (g *Game) revealCard() bool {
	card, err := g.Deck.Draw()
	if err != nil {
		return false
	}
	g.CommunalCards = append(g.CommunalCards, card)
	return true
}

// beginStreet resets per-street betting state for a newly revealed stage.
func (g *Game) beginStreet(stage Stage) {
	g.Stage = stage
	g.CurrentBet = 0
	g.Ledger.ResetStreet()
	for _, p := range g.Players {
		p.StreetBet = 0
		p.HasActed = false
	}
}

// settleShowdown compares the remaining hands and pays out every pot.
func (g *Game) settleShowdown() {
	for _, p := range g.Players {
		if !p.HasFolded {
			hv := EvaluateHand(p.Hand, g.CommunalCards)
			p.HandValue = &hv
		}
	}

	res := g.Ledger.Settle(g.Players)
	res.Returned = g.pendingRefunds
	g.finishHand(res)
}

// settleFoldWin awards the whole pot to the last contender without dealing
// further cards.
func (g *Game) settleFoldWin() *Settlement {
	refunds := g.Ledger.ReturnUncalled(g.Players)

	var winner *Player
	for _, p := range g.Players {
		if !p.HasFolded {
			winner = p
			break
		}
	}
	total := g.Ledger.Total()
	winner.Chips += total

	res := &Settlement{
		Winners:  []string{winner.ID},
		Awards:   map[string]int64{winner.ID: total},
		Returned: refunds,
		Pot:      total,
	}
	g.finishHand(res)
	return res
}

// finishHand records the settlement and parks the game at the terminal
// stage until the next deal.
func (g *Game) finishHand(res *Settlement) {
	g.LastResult = res
	g.pendingRefunds = nil
	g.Playing = false
	g.Stage = StageShowdown
	g.CurrentPlayer = -1
	g.Timer.Clear()
}

// purgeLeft drops departed players and renumbers the remaining seats. Only
// called between hands, when the ledger holds no seat-keyed state.
func (g *Game) purgeLeft() {
	kept := g.Players[:0]
	for _, p := range g.Players {
		if !p.Left {
			kept = append(kept, p)
		}
	}
	g.Players = kept
	for i, p := range g.Players {
		p.Seat = i
	}
	if n := len(g.Players); n > 0 {
		g.Dealer %= n
	} else {
		g.Dealer = 0
	}
}
