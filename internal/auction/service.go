package auction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/discord-auction-bot/internal/clock"
	"github.com/jensholdgaard/discord-auction-bot/internal/config"
	"github.com/jensholdgaard/discord-auction-bot/internal/event"
)

// Service owns the single live auction and exposes the external contract:
// registration, identity binding, start, turn actions, pause control,
// reset and export. All state access is serialized through its mutex.
type Service struct {
	mu    sync.Mutex
	state *State

	rules    config.AuctionConfig
	journal  event.Store
	notifier Announcer
	logger   *slog.Logger
	tracer   trace.Tracer
	clock    clock.Clock
	matchers []Matcher

	inbox  *turnInbox
	source ActionSource

	auctionID string
	version   int
	running   bool
}

// NewService creates a Service around a fresh, not-started auction.
func NewService(rules config.AuctionConfig, journal event.Store, notifier Announcer, logger *slog.Logger, tp trace.TracerProvider, clk clock.Clock) *Service {
	inbox := &turnInbox{}
	return &Service{
		state:    NewState(),
		rules:    rules,
		journal:  journal,
		notifier: notifier,
		logger:   logger,
		tracer:   tp.Tracer("github.com/jensholdgaard/discord-auction-bot/internal/auction"),
		clock:    clk,
		matchers: defaultMatchers(),
		inbox:    inbox,
		source:   inbox,
	}
}

// SetNotifier installs the notification sink. Must be called before the
// auction starts; announce reads the field without locking.
func (s *Service) SetNotifier(n Announcer) {
	s.notifier = n
}

// normOptional trims an attribute value; empty and null-ish markers become
// the empty string.
func normOptional(s string) string {
	v := strings.TrimSpace(s)
	switch strings.ToLower(v) {
	case "", "null", "none":
		return ""
	}
	return v
}

// normMosts drops empty entries and caps the list at three.
func normMosts(mosts []string) []string {
	out := make([]string, 0, 3)
	for _, m := range mosts {
		if v := normOptional(m); v != "" {
			out = append(out, v)
		}
		if len(out) == 3 {
			break
		}
	}
	return out
}

// RegisterCaptain adds a captain and their empty team. Registration closes
// once the auction starts. Re-registering the same nick with identical
// data is a no-op; conflicting data is rejected.
func (s *Service) RegisterCaptain(ctx context.Context, teamName, realName, nick, tier, mainPos, subPos string, mosts []string) error {
	ctx, span := s.tracer.Start(ctx, "Service.RegisterCaptain",
		trace.WithAttributes(attribute.String("nick", nick), attribute.String("team", teamName)),
	)
	defer span.End()

	c := &Captain{
		TeamName: normOptional(teamName),
		RealName: normOptional(realName),
		Nick:     normOptional(nick),
		Tier:     normOptional(tier),
		MainPos:  normOptional(mainPos),
		SubPos:   normOptional(subPos),
		Mosts:    normMosts(mosts),
	}
	if c.TeamName == "" || c.RealName == "" || c.Nick == "" || c.Tier == "" ||
		c.MainPos == "" || c.SubPos == "" || len(c.Mosts) == 0 {
		return fmt.Errorf("%w: captain requires team, name, nick, tier, both positions and at least one most", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Started {
		return ErrAlreadyStarted
	}
	if existing, ok := s.state.Captains[c.Nick]; ok {
		if !sameCaptain(existing, c) {
			return fmt.Errorf("%w: nick %q already registered with different data", ErrValidation, c.Nick)
		}
		return nil
	}

	s.state.Captains[c.Nick] = c
	s.state.Teams[c.Nick] = &Team{CaptainNick: c.Nick, Limit: s.rules.TeamLimit}

	s.recordEntityLocked(ctx, c.Nick, event.CaptainRegistered, event.RegisteredData{Nick: c.Nick, TeamName: c.TeamName})
	s.logger.InfoContext(ctx, "captain registered",
		slog.String("nick", c.Nick),
		slog.String("team", c.TeamName),
	)
	return nil
}

// RegisterCandidate adds a candidate to the waiting pool.
func (s *Service) RegisterCandidate(ctx context.Context, name, nick, tier, mainPos, subPos string, mosts []string) error {
	ctx, span := s.tracer.Start(ctx, "Service.RegisterCandidate",
		trace.WithAttributes(attribute.String("nick", nick)),
	)
	defer span.End()

	c := &Candidate{
		Name:    normOptional(name),
		Nick:    normOptional(nick),
		Tier:    normOptional(tier),
		MainPos: normOptional(mainPos),
		SubPos:  normOptional(subPos),
		Mosts:   normMosts(mosts),
		Status:  StatusWaiting,
	}
	if c.Name == "" || c.Nick == "" || c.Tier == "" || c.MainPos == "" || c.SubPos == "" || len(c.Mosts) == 0 {
		return fmt.Errorf("%w: candidate requires name, nick, tier, both positions and at least one most", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Started {
		return ErrAlreadyStarted
	}
	if existing, ok := s.state.Candidates[c.Nick]; ok {
		if !sameCandidate(existing, c) {
			return fmt.Errorf("%w: nick %q already registered with different data", ErrValidation, c.Nick)
		}
		return nil
	}
	s.state.Candidates[c.Nick] = c

	s.recordEntityLocked(ctx, c.Nick, event.CandidateRegistered, event.RegisteredData{Nick: c.Nick})
	s.logger.InfoContext(ctx, "candidate registered", slog.String("nick", c.Nick))
	return nil
}

// BindIdentity maps an external user to a captain nickname. Re-binding
// overwrites; one identity maps to at most one captain.
func (s *Service) BindIdentity(ctx context.Context, userID, captainNick string) error {
	_, span := s.tracer.Start(ctx, "Service.BindIdentity",
		trace.WithAttributes(attribute.String("captain", captainNick)),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.Captains[captainNick]; !ok {
		return fmt.Errorf("%w: captain %q", ErrNotFound, captainNick)
	}
	s.state.Bindings[userID] = captainNick
	s.logger.InfoContext(ctx, "identity bound",
		slog.String("user_id", userID),
		slog.String("captain", captainNick),
	)
	return nil
}

// Start transitions the auction to started exactly once: budgets are
// initialized and both orders are shuffled. The captain order then stays
// fixed for the auction's lifetime.
func (s *Service) Start(ctx context.Context, channelID string, totalTeams, initialPoints int) error {
	ctx, span := s.tracer.Start(ctx, "Service.Start",
		trace.WithAttributes(
			attribute.Int("total_teams", totalTeams),
			attribute.Int("initial_points", initialPoints),
		),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state
	if st.Started {
		return ErrAlreadyStarted
	}
	if totalTeams < 0 || initialPoints <= 0 {
		return fmt.Errorf("%w: teams and points must be positive", ErrInvalidParameters)
	}
	if len(st.Captains) == 0 || len(st.Candidates) == 0 {
		return fmt.Errorf("%w: need at least one captain and one candidate", ErrInvalidParameters)
	}
	if totalTeams == 0 {
		totalTeams = len(st.Captains)
	}
	if s.rules.EnforceSingleChannel && st.ChannelID != "" && st.ChannelID != channelID {
		return ErrLocationConflict
	}

	st.ChannelID = channelID
	st.TotalTeams = totalTeams
	st.Started = true

	for _, c := range st.Captains {
		c.TotalPts = initialPoints
		c.UsedPts = 0
		c.PauseUsed = 0
	}

	st.CaptainOrder = shuffledKeys(st.Captains)
	st.CandidateOrder = nil
	for _, nick := range shuffledKeys(st.Candidates) {
		if st.Candidates[nick].Status == StatusWaiting {
			st.CandidateOrder = append(st.CandidateOrder, nick)
		}
	}
	st.CandidateIdx = -1
	st.ResetRound()

	s.auctionID = fmt.Sprintf("auction-%d", s.clock.Now().UnixNano())
	s.version = 0
	s.recordLocked(ctx, event.AuctionStarted, event.AuctionStartedData{
		ChannelID:     channelID,
		TotalTeams:    totalTeams,
		InitialPoints: initialPoints,
		Captains:      len(st.Captains),
		Candidates:    len(st.CandidateOrder),
	})
	s.logger.InfoContext(ctx, "auction started",
		slog.String("auction_id", s.auctionID),
		slog.Int("captains", len(st.Captains)),
		slog.Int("candidates", len(st.CandidateOrder)),
	)
	return nil
}

// SubmitAction authorizes and applies a captain decision for the current
// turn. Bids are validated here so the caller gets the rejection reason
// synchronously; a rejected bid does not consume the turn.
func (s *Service) SubmitAction(ctx context.Context, id Identity, act Action) error {
	ctx, span := s.tracer.Start(ctx, "Service.SubmitAction",
		trace.WithAttributes(attribute.String("action", string(act.Type))),
	)
	defer span.End()

	s.mu.Lock()
	nick, ok := resolveCaptain(s.matchers, s.state, id)
	if !ok {
		s.mu.Unlock()
		return ErrNotYourTurn
	}

	// Unpause is authorized by lock ownership, not by holding the turn;
	// the pending turn was consumed when the pause began.
	if act.Type == ActionUnpause {
		err := s.releasePauseLocked(ctx, nick)
		s.mu.Unlock()
		if err == nil {
			s.announce(ctx, fmt.Sprintf("▶️ %s released the pause, auction resumes.", nick))
		}
		return err
	}

	turn, active := s.inbox.current()
	if !active || turn.CaptainNick != nick {
		s.mu.Unlock()
		return ErrNotYourTurn
	}

	switch act.Type {
	case ActionBid:
		captain := s.state.Captains[nick]
		if err := ValidateBid(act.Amount, s.state.TopBid, s.rules.BaseBid, s.rules.BidStep, captain.RemainingPts()); err != nil {
			s.mu.Unlock()
			return err
		}
	case ActionPass, ActionNoInterest:
		// forwarded as-is
	case ActionPause:
		err := s.acquirePauseLocked(ctx, nick)
		s.mu.Unlock()
		if err == nil {
			// Wake the pending request so the drive loop suspends right
			// away instead of waiting out the turn timeout.
			_ = s.inbox.force(Action{Type: ActionPause})
			s.announce(ctx, fmt.Sprintf("⏸️ %s paused the auction for up to %s.", nick, s.rules.PauseDuration))
		}
		return err
	default:
		s.mu.Unlock()
		return fmt.Errorf("%w: unsupported action %q", ErrValidation, act.Type)
	}
	s.mu.Unlock()

	return s.inbox.deliver(nick, act)
}

// ForceUnsold aborts the candidate currently in progress. Authorization is
// the caller's concern (admin-gated in the command layer).
func (s *Service) ForceUnsold(ctx context.Context) error {
	_, span := s.tracer.Start(ctx, "Service.ForceUnsold")
	defer span.End()
	return s.inbox.force(Action{Type: ActionForceUnsold})
}

// CurrentTurn exposes the pending decision request, if any.
func (s *Service) CurrentTurn() (Turn, bool) {
	return s.inbox.current()
}

// Reset discards every piece of auction state, registrations included. The
// State instance is replaced wholesale so no stale references linger.
// Calling it twice yields the same empty state as once.
func (s *Service) Reset(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "Service.Reset")
	defer span.End()

	s.mu.Lock()
	old := s.auctionID
	s.state = NewState()
	if old != "" {
		s.recordLocked(ctx, event.AuctionReset, struct{}{})
	}
	s.auctionID = ""
	s.version = 0
	s.mu.Unlock()

	// Unblock a waiting drive loop; it notices the state swap and exits.
	_ = s.inbox.force(Action{Type: ActionForceUnsold})

	s.logger.InfoContext(ctx, "auction reset", slog.String("previous_auction_id", old))
}

// sameCaptain compares registration data, ignoring budget fields.
func sameCaptain(a, b *Captain) bool {
	return a.TeamName == b.TeamName && a.RealName == b.RealName &&
		a.Tier == b.Tier && a.MainPos == b.MainPos && a.SubPos == b.SubPos &&
		slices.Equal(a.Mosts, b.Mosts)
}

func sameCandidate(a, b *Candidate) bool {
	return a.Name == b.Name && a.Tier == b.Tier &&
		a.MainPos == b.MainPos && a.SubPos == b.SubPos &&
		slices.Equal(a.Mosts, b.Mosts)
}

// shuffleStrings shuffles in place.
func shuffleStrings(ss []string) {
	rand.Shuffle(len(ss), func(i, j int) { ss[i], ss[j] = ss[j], ss[i] })
}

// shuffledKeys returns the map keys in random order.
func shuffledKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	rand.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	return keys
}

// announce drops a message into the notification sink. Never called with
// the mutex held: the sink may be a network hop.
func (s *Service) announce(ctx context.Context, msg string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Announce(ctx, msg)
}

// recordLocked appends an auction-scoped event to the journal,
// best-effort. The caller holds the mutex.
func (s *Service) recordLocked(ctx context.Context, t event.Type, payload any) {
	data, _ := json.Marshal(payload)
	s.version++
	agg := s.auctionID
	if agg == "" {
		agg = "auction"
	}
	e := event.Event{AggregateID: agg, Type: t, Data: data, Version: s.version}
	if err := s.journal.Append(ctx, e); err != nil {
		s.logger.ErrorContext(ctx, "failed to append journal event",
			slog.String("type", string(t)),
			slog.Any("error", err),
		)
	}
}

// recordEntityLocked journals a registration event under the entity's own
// aggregate.
func (s *Service) recordEntityLocked(ctx context.Context, aggregateID string, t event.Type, payload any) {
	data, _ := json.Marshal(payload)
	e := event.Event{AggregateID: aggregateID, Type: t, Data: data, Version: 1}
	if err := s.journal.Append(ctx, e); err != nil {
		s.logger.ErrorContext(ctx, "failed to append journal event",
			slog.String("type", string(t)),
			slog.Any("error", err),
		)
	}
}
