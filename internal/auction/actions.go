package auction

import (
	"context"
	"sync"
)

// ActionType enumerates the decisions a captain can make on their turn.
type ActionType string

const (
	ActionBid        ActionType = "bid"
	ActionPass       ActionType = "pass"
	ActionPause      ActionType = "pause"
	ActionUnpause    ActionType = "unpause"
	ActionNoInterest ActionType = "no_interest"
	// ActionTimeout is synthesized when a captain lets the turn clock run
	// out. It behaves exactly like a pass.
	ActionTimeout ActionType = "timeout"
	// ActionForceUnsold aborts the candidate in progress (admin use).
	ActionForceUnsold ActionType = "force_unsold"
)

// Action is one captain decision.
type Action struct {
	Type   ActionType
	Amount int // bid amount, meaningful for ActionBid only
}

// Turn describes a pending decision request for one captain.
type Turn struct {
	// Seq increases with every request, so callers can tell consecutive
	// turns of the same captain apart.
	Seq           int
	CandidateNick string
	CaptainNick   string
	TopBid        int
	TopBidder     string
	Remaining     int
	MinBid        int
	Step          int
}

// ActionSource supplies the captain's decision for a turn. The context
// carries the turn timeout; implementations should return when it expires.
type ActionSource interface {
	Request(ctx context.Context, turn Turn) (Action, error)
}

// Announcer is a one-way notification sink for auction progress. The chat
// layer implements it; a nil announcer drops everything.
type Announcer interface {
	Announce(ctx context.Context, msg string)
}

// turnInbox is the default ActionSource: the orchestrator parks a turn
// here and SubmitAction delivers the matching captain's decision.
type turnInbox struct {
	mu   sync.Mutex
	seq  int
	turn *Turn
	ch   chan Action
}

// Request publishes the turn and blocks until a decision is delivered or
// the context expires.
func (in *turnInbox) Request(ctx context.Context, turn Turn) (Action, error) {
	in.mu.Lock()
	in.seq++
	turn.Seq = in.seq
	slot := &turn
	in.turn = slot
	ch := make(chan Action, 1)
	in.ch = ch
	in.mu.Unlock()

	defer func() {
		in.mu.Lock()
		if in.turn == slot {
			in.turn = nil
			in.ch = nil
		}
		in.mu.Unlock()
	}()

	select {
	case act := <-ch:
		return act, nil
	case <-ctx.Done():
		return Action{Type: ActionTimeout}, ctx.Err()
	}
}

// deliver hands an action to the waiting request if the captain matches
// the published turn.
func (in *turnInbox) deliver(captain string, act Action) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.turn == nil || in.turn.CaptainNick != captain {
		return ErrNotYourTurn
	}
	select {
	case in.ch <- act:
		in.turn = nil
		in.ch = nil
		return nil
	default:
		return ErrNotYourTurn
	}
}

// force delivers an action regardless of whose turn it is.
func (in *turnInbox) force(act Action) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.turn == nil || in.ch == nil {
		return ErrNoCandidate
	}
	select {
	case in.ch <- act:
		in.turn = nil
		in.ch = nil
		return nil
	default:
		return ErrNoCandidate
	}
}

// current returns the published turn, if any.
func (in *turnInbox) current() (Turn, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.turn == nil {
		return Turn{}, false
	}
	return *in.turn, true
}
