package poker

import (
	evalpoker "github.com/chehsunliu/poker"
)

// HandRank represents the category of a poker hand, weakest first. Suit
// never breaks ties between hands of the same rank.
type HandRank int

const (
	HighCard HandRank = iota
	Pair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
)

func (r HandRank) String() string {
	switch r {
	case HighCard:
		return "High Card"
	case Pair:
		return "Pair"
	case TwoPair:
		return "Two Pair"
	case ThreeOfAKind:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case FourOfAKind:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	default:
		return "Unknown"
	}
}

// HandValue is a complete evaluation of a player's best five-card hand. The
// score is the chehsunliu/poker rank, where lower is better; it encodes all
// kicker comparisons, making the ordering total and deterministic.
type HandValue struct {
	Rank  HandRank
	Score int32
	Desc  string
}

// evalCard converts a Card to the chehsunliu/poker representation.
func evalCard(c Card) evalpoker.Card {
	var rank byte
	switch c.Value {
	case Ten:
		rank = 'T'
	default:
		rank = c.Value[0]
	}

	var suit byte
	switch c.Suit {
	case Spades:
		suit = 's'
	case Hearts:
		suit = 'h'
	case Diamonds:
		suit = 'd'
	case Clubs:
		suit = 'c'
	}

	return evalpoker.NewCard(string([]byte{rank, suit}))
}

// rankClassToHandRank maps the chehsunliu rank class onto HandRank.
func rankClassToHandRank(class int32) HandRank {
	switch class {
	case 1:
		return StraightFlush
	case 2:
		return FourOfAKind
	case 3:
		return FullHouse
	case 4:
		return Flush
	case 5:
		return Straight
	case 6:
		return ThreeOfAKind
	case 7:
		return TwoPair
	case 8:
		return Pair
	default:
		return HighCard
	}
}

// EvaluateHand evaluates the best five-card hand from hole cards plus the
// communal cards (5 to 7 cards total).
func EvaluateHand(hole, communal []Card) HandValue {
	all := make([]evalpoker.Card, 0, len(hole)+len(communal))
	for _, c := range hole {
		all = append(all, evalCard(c))
	}
	for _, c := range communal {
		all = append(all, evalCard(c))
	}

	score := evalpoker.Evaluate(all)
	return HandValue{
		Rank:  rankClassToHandRank(evalpoker.RankClass(score)),
		Score: score,
		Desc:  evalpoker.RankString(score),
	}
}

// CompareHands returns 1 when a beats b, -1 when b beats a, and 0 on a tie.
// Lower chehsunliu scores are better, hence the reversed comparison.
func CompareHands(a, b HandValue) int {
	switch {
	case a.Score < b.Score:
		return 1
	case a.Score > b.Score:
		return -1
	default:
		return 0
	}
}
