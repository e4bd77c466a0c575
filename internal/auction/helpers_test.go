package auction

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/jensholdgaard/discord-auction-bot/internal/clock"
	"github.com/jensholdgaard/discord-auction-bot/internal/config"
	"github.com/jensholdgaard/discord-auction-bot/internal/store/memstore"
)

// recordingAnnouncer collects announcements for assertions.
type recordingAnnouncer struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recordingAnnouncer) Announce(_ context.Context, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recordingAnnouncer) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

// testRules returns bidding rules with timings short enough for tests that
// exercise the turn timeout.
func testRules() config.AuctionConfig {
	return config.AuctionConfig{
		BaseBid:              100,
		BidStep:              10,
		TurnTimeout:          150 * time.Millisecond,
		NextDelay:            time.Millisecond,
		PreviewDelay:         0,
		PauseMaxUses:         1,
		PauseDuration:        120 * time.Millisecond,
		StrategyBreak:        time.Millisecond,
		TeamLimit:            5,
		EnforceSingleChannel: true,
	}
}

func newTestService(rules config.AuctionConfig) (*Service, *memstore.EventStore, *recordingAnnouncer) {
	journal := memstore.NewEventStore(clock.Real{})
	ann := &recordingAnnouncer{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(rules, journal, ann, logger, noop.NewTracerProvider(), clock.Real{})
	return svc, journal, ann
}

// registerCrew registers captains and candidates with filled-in profiles.
func registerCrew(t *testing.T, svc *Service, captains, candidates []string) {
	t.Helper()
	ctx := context.Background()
	for _, nick := range captains {
		if err := svc.RegisterCaptain(ctx, "Team "+nick, "Real "+nick, nick, "gold", "top", "mid", []string{"pick"}); err != nil {
			t.Fatalf("RegisterCaptain(%s): %v", nick, err)
		}
	}
	for _, nick := range candidates {
		if err := svc.RegisterCandidate(ctx, "Player "+nick, nick, "silver", "jungle", "support", []string{"pick"}); err != nil {
			t.Fatalf("RegisterCandidate(%s): %v", nick, err)
		}
	}
}

// setOrders pins the shuffled orders so scripted tests are deterministic.
func setOrders(svc *Service, captains, candidates []string) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.state.CaptainOrder = append([]string(nil), captains...)
	svc.state.CandidateOrder = append([]string(nil), candidates...)
	svc.state.CandidateIdx = -1
}

func identityOf(nick string) Identity {
	return Identity{UserID: "user-" + nick, Username: nick}
}

// runScripted drives a started auction to completion, answering each turn
// from the per-captain move queues. Each queue entry is the ordered list
// of submissions for one turn; a captain with an empty queue lets the
// turn time out.
func runScripted(t *testing.T, svc *Service, moves map[string][][]Action) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	driverDone := make(chan struct{})
	go func() {
		defer close(driverDone)
		lastSeq := 0
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			turn, ok := svc.CurrentTurn()
			if ok && turn.Seq != lastSeq {
				lastSeq = turn.Seq
				if q := moves[turn.CaptainNick]; len(q) > 0 {
					acts := q[0]
					moves[turn.CaptainNick] = q[1:]
					for _, act := range acts {
						_ = svc.SubmitAction(ctx, identityOf(turn.CaptainNick), act)
					}
				}
			}
			time.Sleep(2 * time.Millisecond)
		}
	}()

	select {
	case err := <-done:
		cancel()
		<-driverDone
		return err
	case <-time.After(15 * time.Second):
		t.Fatal("auction did not finish in time")
		return nil
	}
}
