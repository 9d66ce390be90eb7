package poker

import (
	"encoding/json"
	"fmt"
	"math/rand"
)

// Suit represents a card suit.
type Suit string

const (
	Spades   Suit = "♠"
	Hearts   Suit = "♥"
	Diamonds Suit = "♦"
	Clubs    Suit = "♣"
)

// Value represents a card value.
type Value string

const (
	Ace   Value = "A"
	Two   Value = "2"
	Three Value = "3"
	Four  Value = "4"
	Five  Value = "5"
	Six   Value = "6"
	Seven Value = "7"
	Eight Value = "8"
	Nine  Value = "9"
	Ten   Value = "10"
	Jack  Value = "J"
	Queen Value = "Q"
	King  Value = "K"
)

var suits = []Suit{Spades, Hearts, Diamonds, Clubs}

var values = []Value{Ace, Two, Three, Four, Five, Six, Seven, Eight, Nine, Ten, Jack, Queen, King}

// Card is a playing card. Cards are immutable once created.
type Card struct {
	Suit  Suit  `json:"suit"`
	Value Value `json:"value"`
}

// String returns a short representation such as "A♠".
func (c Card) String() string {
	return string(c.Value) + string(c.Suit)
}

// UnmarshalJSON validates the suit and value on the way in; persisted game
// documents are the only expected source.
func (c *Card) UnmarshalJSON(data []byte) error {
	var raw struct {
		Suit  string `json:"suit"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch Suit(raw.Suit) {
	case Spades, Hearts, Diamonds, Clubs:
		c.Suit = Suit(raw.Suit)
	default:
		return fmt.Errorf("invalid suit: %q", raw.Suit)
	}

	valid := false
	for _, v := range values {
		if Value(raw.Value) == v {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid value: %q", raw.Value)
	}
	c.Value = Value(raw.Value)
	return nil
}

// Deck is an ordered sequence of undealt cards. Dealing removes from the
// deck, so no card can be dealt twice within a hand by construction.
type Deck struct {
	cards []Card
}

// NewDeck creates a full 52-card deck shuffled with the given RNG. The
// shuffle is rand.Shuffle, a uniform Fisher-Yates permutation.
func NewDeck(rng *rand.Rand) *Deck {
	d := &Deck{cards: make([]Card, 0, 52)}
	for _, s := range suits {
		for _, v := range values {
			d.cards = append(d.cards, Card{Suit: s, Value: v})
		}
	}
	rng.Shuffle(len(d.cards), func(i, j int) {
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	})
	return d
}

// NewDeckFromCards rebuilds a deck from persisted remaining cards.
func NewDeckFromCards(cards []Card) *Deck {
	d := &Deck{cards: make([]Card, len(cards))}
	copy(d.cards, cards)
	return d
}

// Draw removes and returns the top card.
func (d *Deck) Draw() (Card, error) {
	if len(d.cards) == 0 {
		return Card{}, ErrEmptyDeck
	}
	card := d.cards[0]
	d.cards = d.cards[1:]
	return card, nil
}

// Size returns the number of undealt cards.
func (d *Deck) Size() int {
	return len(d.cards)
}

// Cards returns a copy of the remaining cards.
func (d *Deck) Cards() []Card {
	out := make([]Card, len(d.cards))
	copy(out, d.cards)
	return out
}

// MarshalJSON persists the deck as its remaining cards.
func (d *Deck) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.cards)
}

// UnmarshalJSON restores the deck from persisted remaining cards.
func (d *Deck) UnmarshalJSON(data []byte) error {
	var cards []Card
	if err := json.Unmarshal(data, &cards); err != nil {
		return err
	}
	d.cards = cards
	return nil
}
