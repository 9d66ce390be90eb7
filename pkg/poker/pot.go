package poker

// Ledger tracks the chips committed to the pot: per-seat bets for the
// current street and cumulative bets for the whole hand. Chips only move
// between player stacks and the ledger, so the sum of stacks plus the ledger
// total is constant within a hand.
type Ledger struct {
	StreetBets map[int]int64 `json:"streetBets"`
	HandBets   map[int]int64 `json:"handBets"`
}

// NewLedger creates an empty ledger for a new hand.
func NewLedger() *Ledger {
	return &Ledger{
		StreetBets: make(map[int]int64),
		HandBets:   make(map[int]int64),
	}
}

// Commit records chips moved from a seat's stack into the pot.
func (l *Ledger) Commit(seat int, amount int64) {
	l.StreetBets[seat] += amount
	l.HandBets[seat] += amount
}

// ResetStreet clears per-street bets when a new street opens.
func (l *Ledger) ResetStreet() {
	l.StreetBets = make(map[int]int64)
}

// StreetBet returns the seat's committed amount for the current street.
func (l *Ledger) StreetBet(seat int) int64 {
	return l.StreetBets[seat]
}

// HandBet returns the seat's cumulative committed amount for the hand.
func (l *Ledger) HandBet(seat int) int64 {
	return l.HandBets[seat]
}

// Total returns the whole pot: every chip committed this hand.
func (l *Ledger) Total() int64 {
	var total int64
	for _, b := range l.HandBets {
		total += b
	}
	return total
}

// SeatBets returns street bets as a seat-indexed slice for event payloads.
func (l *Ledger) SeatBets(numSeats int) []int64 {
	bets := make([]int64, numSeats)
	for seat, b := range l.StreetBets {
		if seat >= 0 && seat < numSeats {
			bets[seat] = b
		}
	}
	return bets
}

// ReturnUncalled refunds the portion of the highest street bet that no other
// player matched. The excess goes back to the bettor's stack before pots are
// built, so an all-in can never win chips nobody contested. Returns the
// refunds by player ID.
func (l *Ledger) ReturnUncalled(players []*Player) map[string]int64 {
	var hi, second int64
	hiSeat := -1
	for seat, bet := range l.StreetBets {
		if bet > hi {
			second = hi
			hi = bet
			hiSeat = seat
		} else if bet > second {
			second = bet
		}
	}

	refunds := make(map[string]int64)
	if hiSeat < 0 || hi <= second {
		return refunds
	}

	uncalled := hi - second
	for _, p := range players {
		if p.Seat != hiSeat {
			continue
		}
		p.Chips += uncalled
		p.StreetBet -= uncalled
		p.TotalBet -= uncalled
		l.StreetBets[hiSeat] -= uncalled
		l.HandBets[hiSeat] -= uncalled
		refunds[p.ID] = uncalled
		break
	}
	return refunds
}

// pot is a main or side pot with a seat-aligned eligibility mask.
type pot struct {
	amount   int64
	eligible []bool
}

// buildPots splits the hand's committed chips into a main pot and side pots
// at each distinct all-in level. A seat is eligible for a pot when it has
// not folded and contributed at least that pot's level.
func (l *Ledger) buildPots(players []*Player) []*pot {
	n := len(players)

	seen := map[int64]bool{}
	for _, p := range players {
		if b := l.HandBets[p.Seat]; b > 0 {
			seen[b] = true
		}
	}
	if len(seen) == 0 {
		return nil
	}

	levels := make([]int64, 0, len(seen))
	for b := range seen {
		levels = append(levels, b)
	}
	for i := 0; i < len(levels); i++ {
		for j := i + 1; j < len(levels); j++ {
			if levels[i] > levels[j] {
				levels[i], levels[j] = levels[j], levels[i]
			}
		}
	}

	pots := make([]*pot, 0, len(levels))
	prev := int64(0)
	for _, lvl := range levels {
		p := &pot{eligible: make([]bool, n)}
		for i, pl := range players {
			if !pl.HasFolded && !pl.Left && l.HandBets[pl.Seat] >= lvl {
				p.eligible[i] = true
			}
			tb := l.HandBets[pl.Seat]
			if tb > prev {
				c := tb
				if c > lvl {
					c = lvl
				}
				p.amount += c - prev
			}
		}
		pots = append(pots, p)
		prev = lvl
	}
	return pots
}

// Settlement describes how a finished hand paid out.
type Settlement struct {
	// Winners holds the main-pot winners in seat order.
	Winners []string `json:"winners"`
	// Awards maps player ID to total chips awarded across all pots.
	Awards map[string]int64 `json:"awards"`
	// Returned maps player ID to uncalled chips refunded before settlement.
	Returned map[string]int64 `json:"returned,omitempty"`
	// Pot is the total amount distributed.
	Pot int64 `json:"pot"`
}

// Settle distributes every pot to its winners and credits their stacks.
// Contenders must have HandValue populated unless a pot has a single
// eligible player. Ties split evenly; the remainder chip goes to the first
// tied winner in seat order, which keeps payouts deterministic.
func (l *Ledger) Settle(players []*Player) *Settlement {
	result := &Settlement{Awards: make(map[string]int64)}

	pots := l.buildPots(players)
	if len(pots) == 0 {
		// Nothing was committed (a checked-down hand): name the winners
		// anyway so the round result is still meaningful.
		var best *HandValue
		var winners []string
		for _, p := range players {
			if p.HasFolded || p.Left || p.HandValue == nil {
				continue
			}
			switch {
			case best == nil || CompareHands(*p.HandValue, *best) > 0:
				best = p.HandValue
				winners = []string{p.ID}
			case CompareHands(*p.HandValue, *best) == 0:
				winners = append(winners, p.ID)
			}
		}
		result.Winners = winners
		return result
	}

	for pi, pt := range pots {
		var alive []int
		for i, elig := range pt.eligible {
			if elig && !players[i].HasFolded && !players[i].Left {
				alive = append(alive, i)
			}
		}
		if len(alive) == 0 || pt.amount == 0 {
			continue
		}

		var winners []int
		if len(alive) == 1 {
			winners = alive
		} else {
			var best *HandValue
			for _, idx := range alive {
				hv := players[idx].HandValue
				if hv == nil {
					continue
				}
				switch {
				case best == nil || CompareHands(*hv, *best) > 0:
					best = hv
					winners = []int{idx}
				case CompareHands(*hv, *best) == 0:
					winners = append(winners, idx)
				}
			}
		}
		if len(winners) == 0 {
			continue
		}

		share := pt.amount / int64(len(winners))
		rem := pt.amount % int64(len(winners))
		for i, idx := range winners {
			add := share
			if i == 0 {
				add += rem
			}
			players[idx].Chips += add
			result.Awards[players[idx].ID] += add
		}
		result.Pot += pt.amount

		if pi == 0 {
			for _, idx := range winners {
				result.Winners = append(result.Winners, players[idx].ID)
			}
		}
	}
	return result
}
