package poker

import "fmt"

// ActionKind enumerates the closed set of betting actions. Modeling it as a
// typed constant (rather than raw strings) keeps validation in the state
// machine exhaustive.
type ActionKind int

const (
	ActionFold ActionKind = iota
	ActionCheck
	ActionCall
	ActionBet
	ActionRaise
)

// Action is a player's move: a kind plus an amount for bet/raise. For raises
// the amount is the total street bet the raiser wants to reach.
type Action struct {
	Kind   ActionKind
	Amount int64
}

// String returns the wire name of the action kind.
func (k ActionKind) String() string {
	switch k {
	case ActionFold:
		return "fold"
	case ActionCheck:
		return "check"
	case ActionCall:
		return "call"
	case ActionBet:
		return "bet"
	case ActionRaise:
		return "raise"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ParseActionKind converts a wire string into an ActionKind.
func ParseActionKind(s string) (ActionKind, error) {
	switch s {
	case "fold":
		return ActionFold, nil
	case "check":
		return ActionCheck, nil
	case "call":
		return ActionCall, nil
	case "bet":
		return ActionBet, nil
	case "raise":
		return ActionRaise, nil
	default:
		return 0, fmt.Errorf("%w: unknown action %q", ErrInvalidAction, s)
	}
}

// RequiresAmount reports whether the action kind carries a chip amount.
func (k ActionKind) RequiresAmount() bool {
	return k == ActionBet || k == ActionRaise
}
