package auction

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jensholdgaard/discord-auction-bot/internal/event"
)

// acquirePauseLocked grants the exclusive pause lock to nick. The caller
// holds the service mutex. Another captain's active lock, or an exhausted
// quota, rejects the request with no mutation.
func (s *Service) acquirePauseLocked(ctx context.Context, nick string) error {
	st := s.state
	if st.PauseOwner != "" && st.PauseOwner != nick {
		return ErrAlreadyLocked
	}
	captain, ok := st.Captains[nick]
	if !ok {
		return ErrNotAuthorized
	}
	if captain.PauseUsed >= s.rules.PauseMaxUses {
		return ErrQuotaExhausted
	}

	captain.PauseUsed++
	until := s.clock.Now().Add(s.rules.PauseDuration)
	st.PauseOwner = nick
	st.PausedUntil = &until

	s.recordLocked(ctx, event.PauseStarted, event.PauseData{CaptainNick: nick, Reason: "requested"})
	s.logger.InfoContext(ctx, "pause acquired",
		slog.String("captain", nick),
		slog.Int("uses", captain.PauseUsed),
		slog.Time("until", until),
	)
	return nil
}

// releasePauseLocked clears the lock early. Only the holding captain may
// release it. The caller holds the service mutex.
func (s *Service) releasePauseLocked(ctx context.Context, nick string) error {
	st := s.state
	if st.PauseOwner == "" || st.PauseOwner != nick {
		return ErrNotAuthorized
	}
	st.ClearPause()
	s.recordLocked(ctx, event.PauseEnded, event.PauseData{CaptainNick: nick, Reason: "released"})
	s.logger.InfoContext(ctx, "pause released", slog.String("captain", nick))
	return nil
}

// expirePauseLocked lazily clears an expired lock. Returns true when a
// lock was cleared. The caller holds the service mutex.
func (s *Service) expirePauseLocked(ctx context.Context) bool {
	st := s.state
	if st.PausedUntil == nil || s.clock.Now().Before(*st.PausedUntil) {
		return false
	}
	owner := st.PauseOwner
	st.ClearPause()
	s.recordLocked(ctx, event.PauseEnded, event.PauseData{CaptainNick: owner, Reason: "expired"})
	s.logger.InfoContext(ctx, "pause expired", slog.String("captain", owner))
	return true
}

// RequestPause lets the captain whose turn it is suspend the auction.
func (s *Service) RequestPause(ctx context.Context, id Identity) error {
	s.mu.Lock()
	nick, ok := resolveCaptain(s.matchers, s.state, id)
	if !ok || !s.state.Started {
		s.mu.Unlock()
		return ErrNotAuthorized
	}
	turn, active := s.inbox.current()
	if !active || turn.CaptainNick != nick {
		s.mu.Unlock()
		return ErrNotAuthorized
	}
	if err := s.acquirePauseLocked(ctx, nick); err != nil {
		s.mu.Unlock()
		return err
	}
	remaining := s.rules.PauseDuration
	s.mu.Unlock()

	// Wake the pending request so the drive loop suspends promptly.
	_ = s.inbox.force(Action{Type: ActionPause})
	s.announce(ctx, fmt.Sprintf("⏸️ %s paused the auction for up to %s. Release early with /unpause.", nick, remaining))
	return nil
}

// ReleasePause ends a pause before its natural expiry. Authorization runs
// the same matcher chain as turn actions; only the lock holder qualifies.
func (s *Service) ReleasePause(ctx context.Context, id Identity) error {
	s.mu.Lock()
	nick, ok := resolveCaptain(s.matchers, s.state, id)
	if !ok {
		s.mu.Unlock()
		return ErrNotAuthorized
	}
	if err := s.releasePauseLocked(ctx, nick); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.announce(ctx, fmt.Sprintf("▶️ %s released the pause, auction resumes.", nick))
	return nil
}
