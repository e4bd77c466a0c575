package auction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jensholdgaard/discord-auction-bot/internal/event"
)

// pausePollInterval bounds how stale an expired pause lock can go
// unnoticed while the drive loop is suspended.
const pausePollInterval = time.Second

// Run drives the started auction to completion: the main pass over the
// shuffled candidate queue, then a single re-auction pass over unsold
// candidates, then the completion notice. It blocks until the auction
// finishes, the state is reset, or ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "Service.Run")
	defer span.End()

	s.mu.Lock()
	if !s.state.Started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("%w: drive loop already running", ErrAlreadyStarted)
	}
	s.running = true
	st := s.state
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.announce(ctx, fmt.Sprintf("Bidding order: %s. Starting in %s...",
		strings.Join(st.CaptainOrder, ", "), s.rules.PreviewDelay))
	if err := sleepCtx(ctx, s.rules.PreviewDelay); err != nil {
		return err
	}

	if err := s.runPass(ctx, st, false); err != nil {
		return err
	}

	// Re-auction pass: unsold candidates get exactly one more shot, in a
	// freshly randomized order, if anyone can still recruit.
	s.mu.Lock()
	if st != s.state {
		s.mu.Unlock()
		return nil
	}
	var unsold []string
	for _, nick := range st.CandidateOrder {
		if c := st.Candidates[nick]; c != nil && c.Status == StatusUnsold {
			unsold = append(unsold, nick)
		}
	}
	rerun := len(unsold) > 0 && st.AnyTeamCanAdd()
	if rerun {
		for _, nick := range unsold {
			st.Candidates[nick].Status = StatusWaiting
		}
		shuffleStrings(unsold)
		st.CandidateOrder = unsold
		st.CandidateIdx = -1
		st.ResetRound()
	}
	s.mu.Unlock()

	if rerun {
		s.announce(ctx, "🔁 Re-auction round for unsold candidates.")
		if err := s.runPass(ctx, st, true); err != nil {
			return err
		}
	}

	s.mu.Lock()
	if st == s.state {
		s.recordLocked(ctx, event.AuctionCompleted, struct{}{})
	}
	s.mu.Unlock()

	s.announce(ctx, "✅ Auction complete. Use /export for the results file.")
	s.logger.InfoContext(ctx, "auction complete")
	return nil
}

// runPass auctions every waiting candidate in the current queue order.
func (s *Service) runPass(ctx context.Context, st *State, reauction bool) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.mu.Lock()
		if st != s.state {
			s.mu.Unlock()
			return nil
		}
		if st.CandidateIdx+1 >= len(st.CandidateOrder) {
			s.mu.Unlock()
			return nil
		}
		st.CandidateIdx++
		cand := st.Candidates[st.CandidateOrder[st.CandidateIdx]]
		if cand == nil || cand.Status != StatusWaiting {
			s.mu.Unlock()
			continue
		}

		// With every team full there is nothing to bid for.
		if !st.AnyTeamCanAdd() {
			cand.Status = StatusUnsold
			s.recordLocked(ctx, event.CandidateUnsold, event.CandidateUnsoldData{CandidateNick: cand.Nick, Final: reauction})
			s.mu.Unlock()
			s.announce(ctx, fmt.Sprintf("⚪ Every team is full, %s goes unsold automatically.", cand.Nick))
			continue
		}

		st.ResetRound()
		cand.Status = StatusInProgress
		line := candidateLine(cand)
		s.mu.Unlock()

		s.announce(ctx, fmt.Sprintf("Next up!\n%s\nBidding: minimum %dP, steps of %dP.", line, s.rules.BaseBid, s.rules.BidStep))

		if err := s.runBidding(ctx, st, cand, reauction); err != nil {
			return err
		}

		// One-time strategy break once every captain has recruited.
		s.mu.Lock()
		fire := st == s.state && !st.StrategyFired && st.EveryTeamHasMember()
		if fire {
			st.StrategyFired = true
		}
		s.mu.Unlock()
		if fire {
			s.announce(ctx, fmt.Sprintf("📣 Every team has at least one member! Strategy break for %s.", s.rules.StrategyBreak))
			if err := sleepCtx(ctx, s.rules.StrategyBreak); err != nil {
				return err
			}
			s.announce(ctx, "Strategy break over, auction resumes!")
		}

		if err := sleepCtx(ctx, s.rules.NextDelay); err != nil {
			return err
		}
	}
}

// runBidding resolves one candidate: turns cycle through the captain
// order until the round terminates in a sale or a no-sale.
func (s *Service) runBidding(ctx context.Context, st *State, cand *Candidate, reauction bool) error {
	s.mu.Lock()
	sched := NewScheduler(st.CaptainOrder, func(nick string) bool {
		t := st.Teams[nick]
		return t != nil && t.CanAdd()
	})
	s.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.mu.Lock()
		if st != s.state {
			s.mu.Unlock()
			return nil
		}

		// Round termination is evaluated before every turn, so a winner
		// never has to act again once everyone else has passed.
		switch sched.Outcome(st.TopBidder) {
		case OutcomeSale:
			msg := s.settleLocked(ctx, st, cand)
			s.mu.Unlock()
			s.announce(ctx, msg)
			return nil
		case OutcomeNoSale:
			cand.Status = StatusUnsold
			s.recordLocked(ctx, event.CandidateUnsold, event.CandidateUnsoldData{CandidateNick: cand.Nick, Final: reauction})
			s.mu.Unlock()
			s.announce(ctx, fmt.Sprintf("⚪ %s goes unsold.", cand.Nick))
			return nil
		}

		// Pause gate: while the lock is held the scheduler does not
		// advance and nobody is asked to act.
		if st.PausedUntil != nil {
			if st.PauseActive(s.clock.Now()) {
				s.mu.Unlock()
				if err := sleepCtx(ctx, pausePollInterval); err != nil {
					return err
				}
				continue
			}
			if s.expirePauseLocked(ctx) {
				s.mu.Unlock()
				s.announce(ctx, "⏱️ Pause expired, auction resumes.")
				continue
			}
		}

		capNick, skipped, ok := sched.Next()
		st.CaptainIdx = sched.Index()
		if !ok {
			// Nobody left who could act; outcome above should have
			// settled, but never spin.
			cand.Status = StatusUnsold
			s.recordLocked(ctx, event.CandidateUnsold, event.CandidateUnsoldData{CandidateNick: cand.Nick, Final: reauction})
			s.mu.Unlock()
			s.announce(ctx, fmt.Sprintf("⚪ %s goes unsold.", cand.Nick))
			return nil
		}
		captain := st.Captains[capNick]
		turn := Turn{
			CandidateNick: cand.Nick,
			CaptainNick:   capNick,
			TopBid:        st.TopBid,
			TopBidder:     st.TopBidder,
			Remaining:     captain.RemainingPts(),
			MinBid:        s.rules.BaseBid,
			Step:          s.rules.BidStep,
		}
		s.mu.Unlock()

		for _, skip := range skipped {
			s.announce(ctx, fmt.Sprintf("%s's team is full and sits this candidate out.", skip))
		}
		s.announce(ctx, fmt.Sprintf("Your turn, **%s** (%dP left) — bid, pass or pause within %s.",
			capNick, turn.Remaining, s.rules.TurnTimeout))

		tctx, cancel := context.WithTimeout(ctx, s.rules.TurnTimeout)
		act, err := s.source.Request(tctx, turn)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			act = Action{Type: ActionTimeout}
		}

		s.mu.Lock()
		if st != s.state {
			s.mu.Unlock()
			return nil
		}

		switch act.Type {
		case ActionBid:
			if verr := ValidateBid(act.Amount, st.TopBid, s.rules.BaseBid, s.rules.BidStep, captain.RemainingPts()); verr != nil {
				s.mu.Unlock()
				s.announce(ctx, fmt.Sprintf("Bid rejected for %s: %s. Try again.", capNick, verr))
				continue // same captain, turn not consumed
			}
			st.TopBid = act.Amount
			st.TopBidder = capNick
			sched.ClearPassed()
			sched.Advance()
			st.CaptainIdx = sched.Index()
			s.recordLocked(ctx, event.BidAccepted, event.BidAcceptedData{
				CandidateNick: cand.Nick, CaptainNick: capNick, Amount: act.Amount,
			})
			s.logger.InfoContext(ctx, "bid accepted",
				slog.String("captain", capNick),
				slog.String("candidate", cand.Nick),
				slog.Int("amount", act.Amount),
			)
			s.mu.Unlock()
			s.announce(ctx, fmt.Sprintf("🟢 %s bids **%dP**!", capNick, act.Amount))

		case ActionTimeout:
			if st.PauseActive(s.clock.Now()) {
				// The captain paused while their request was pending;
				// the lapse is not a pass.
				s.mu.Unlock()
				continue
			}
			sched.MarkPassed(capNick)
			sched.Advance()
			st.CaptainIdx = sched.Index()
			s.mu.Unlock()
			s.announce(ctx, fmt.Sprintf("⏱️ %s ran out of time, automatic pass.", capNick))

		case ActionPass:
			sched.MarkPassed(capNick)
			sched.Advance()
			st.CaptainIdx = sched.Index()
			s.mu.Unlock()
			s.announce(ctx, fmt.Sprintf("🔵 %s passes.", capNick))

		case ActionNoInterest:
			sched.MarkNoInterest(capNick)
			sched.Advance()
			st.CaptainIdx = sched.Index()
			s.mu.Unlock()
			s.announce(ctx, fmt.Sprintf("🔵 %s is out for this candidate.", capNick))

		case ActionForceUnsold:
			cand.Status = StatusUnsold
			s.recordLocked(ctx, event.CandidateUnsold, event.CandidateUnsoldData{CandidateNick: cand.Nick, Final: reauction})
			s.mu.Unlock()
			s.announce(ctx, fmt.Sprintf("⚪ %s withdrawn, marked unsold.", cand.Nick))
			return nil

		default:
			// Pause and unpause are applied at submission time and never
			// reach the inbox; anything else is ignored.
			s.mu.Unlock()
		}
	}
}

// settleLocked applies a sale as one atomic unit: budget debit, roster
// append and candidate status all change under the same mutex hold. The
// caller holds the mutex; the returned message is announced after release.
func (s *Service) settleLocked(ctx context.Context, st *State, cand *Candidate) string {
	winner := st.TopBidder
	captain := st.Captains[winner]
	team := st.Teams[winner]
	price := st.TopBid

	captain.UsedPts += price
	team.Members = append(team.Members, cand.Nick)
	teamName := captain.TeamName
	cand.Status = StatusSold
	cand.WonTeam = &teamName
	cand.WonPrice = &price

	s.recordLocked(ctx, event.CandidateSold, event.CandidateSoldData{
		CandidateNick: cand.Nick, TeamName: teamName, Price: price,
	})
	s.logger.InfoContext(ctx, "candidate sold",
		slog.String("candidate", cand.Nick),
		slog.String("team", teamName),
		slog.Int("price", price),
	)
	return fmt.Sprintf("🎉 **%s** sold! Team **%s**, price **%dP**.", cand.Nick, teamName, price)
}

// candidateLine formats the announcement line for a candidate going up.
func candidateLine(c *Candidate) string {
	mosts := "-"
	if len(c.Mosts) > 0 {
		mosts = strings.Join(c.Mosts, ", ")
	}
	return fmt.Sprintf("**%s** (%s) | tier %s | main %s / sub %s | mosts: %s",
		c.Nick, c.Name, c.Tier, c.MainPos, c.SubPos, mosts)
}

// sleepCtx waits for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
