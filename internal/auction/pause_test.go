package auction

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jensholdgaard/discord-auction-bot/internal/event"
)

// waitTurn polls until a turn newer than afterSeq is published.
func waitTurn(t *testing.T, svc *Service, afterSeq int) Turn {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if turn, ok := svc.CurrentTurn(); ok && turn.Seq > afterSeq {
			return turn
		}
		select {
		case <-deadline:
			t.Fatal("no turn published in time")
		default:
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func lockState(svc *Service) (owner string, held bool) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.state.PauseOwner, svc.state.PausedUntil != nil
}

func TestPause_ContractRejections(t *testing.T) {
	rules := testRules()
	rules.TurnTimeout = 5 * time.Second
	rules.PauseDuration = time.Minute
	svc, journal, _ := newTestService(rules)
	startAuction(t, svc, []string{"alpha", "bravo"}, []string{"x"}, 1000)

	done := make(chan error, 1)
	go func() { done <- svc.Run(context.Background()) }()

	turn := waitTurn(t, svc, 0)
	if turn.CaptainNick != "alpha" {
		t.Fatalf("first turn went to %s, want alpha", turn.CaptainNick)
	}
	ctx := context.Background()

	// A stranger and the off-turn captain cannot pause, and there is
	// nothing to release yet.
	if err := svc.RequestPause(ctx, Identity{UserID: "user-zz", Username: "zz"}); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("stranger RequestPause = %v, want ErrNotAuthorized", err)
	}
	if err := svc.RequestPause(ctx, identityOf("bravo")); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("off-turn RequestPause = %v, want ErrNotAuthorized", err)
	}
	if err := svc.ReleasePause(ctx, identityOf("alpha")); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("ReleasePause without a lock = %v, want ErrNotAuthorized", err)
	}
	if owner, held := lockState(svc); owner != "" || held {
		t.Fatalf("rejected requests mutated the lock: owner=%q held=%v", owner, held)
	}

	if err := svc.RequestPause(ctx, identityOf("alpha")); err != nil {
		t.Fatalf("RequestPause: %v", err)
	}
	if owner, held := lockState(svc); owner != "alpha" || !held {
		t.Fatalf("lock = owner=%q held=%v, want alpha's active lock", owner, held)
	}

	// Unpause runs on lock ownership alone: the pending turn was consumed
	// when the pause began, so only the holder qualifies.
	if err := svc.SubmitAction(ctx, identityOf("bravo"), Action{Type: ActionUnpause}); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("non-owner unpause = %v, want ErrNotAuthorized", err)
	}
	if owner, _ := lockState(svc); owner != "alpha" {
		t.Fatalf("non-owner unpause mutated the lock: owner=%q", owner)
	}
	if err := svc.SubmitAction(ctx, identityOf("alpha"), Action{Type: ActionUnpause}); err != nil {
		t.Fatalf("owner unpause: %v", err)
	}
	if owner, held := lockState(svc); owner != "" || held {
		t.Fatalf("lock survived the release: owner=%q held=%v", owner, held)
	}

	// The quota is one, so the re-published turn cannot pause again.
	turn = waitTurn(t, svc, turn.Seq)
	if err := svc.RequestPause(ctx, identityOf(turn.CaptainNick)); !errors.Is(err, ErrQuotaExhausted) {
		t.Errorf("second RequestPause = %v, want ErrQuotaExhausted", err)
	}
	if owner, held := lockState(svc); owner != "" || held {
		t.Fatalf("quota rejection mutated the lock: owner=%q held=%v", owner, held)
	}

	ended, err := journal.LoadByType(ctx, event.PauseEnded)
	if err != nil {
		t.Fatalf("LoadByType: %v", err)
	}
	if len(ended) != 1 || !strings.Contains(string(ended[0].Data), `"released"`) {
		t.Errorf("pause.ended events = %v, want one release", ended)
	}

	svc.Reset(ctx)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after reset")
	}
}

func TestPause_QuotaZeroLeavesTurnPending(t *testing.T) {
	rules := testRules()
	rules.TurnTimeout = 5 * time.Second
	rules.PauseMaxUses = 0
	svc, journal, _ := newTestService(rules)
	startAuction(t, svc, []string{"alpha", "bravo"}, []string{"x"}, 1000)

	done := make(chan error, 1)
	go func() { done <- svc.Run(context.Background()) }()

	ctx := context.Background()
	turn := waitTurn(t, svc, 0)
	if err := svc.RequestPause(ctx, identityOf(turn.CaptainNick)); !errors.Is(err, ErrQuotaExhausted) {
		t.Errorf("RequestPause = %v, want ErrQuotaExhausted", err)
	}
	if owner, held := lockState(svc); owner != "" || held {
		t.Errorf("quota rejection mutated the lock: owner=%q held=%v", owner, held)
	}
	started, err := journal.LoadByType(ctx, event.PauseStarted)
	if err != nil {
		t.Fatalf("LoadByType: %v", err)
	}
	if len(started) != 0 {
		t.Errorf("journal has %d pause.started events, want 0", len(started))
	}

	// The rejection never consumed the turn.
	if cur, ok := svc.CurrentTurn(); !ok || cur.Seq != turn.Seq {
		t.Errorf("turn after rejection = (%+v, %v), want the original one pending", cur, ok)
	}

	svc.Reset(ctx)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after reset")
	}
}

func TestAcquirePause_HeldByAnotherCaptain(t *testing.T) {
	svc, _, _ := newTestService(testRules())
	registerCrew(t, svc, []string{"alpha", "bravo"}, nil)

	until := time.Now().Add(time.Minute)
	svc.mu.Lock()
	svc.state.PauseOwner = "bravo"
	svc.state.PausedUntil = &until
	err := svc.acquirePauseLocked(context.Background(), "alpha")
	used := svc.state.Captains["alpha"].PauseUsed
	owner := svc.state.PauseOwner
	svc.mu.Unlock()

	if !errors.Is(err, ErrAlreadyLocked) {
		t.Errorf("acquire against a held lock = %v, want ErrAlreadyLocked", err)
	}
	if used != 0 || owner != "bravo" {
		t.Errorf("rejection mutated state: uses=%d owner=%q", used, owner)
	}
}
