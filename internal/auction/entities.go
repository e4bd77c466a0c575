package auction

import "time"

// Status tracks where a candidate is in the auction lifecycle.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusSold       Status = "sold"
	StatusUnsold     Status = "unsold"
)

// Candidate is a person being auctioned onto a team.
type Candidate struct {
	Name    string
	Nick    string // unique key
	Tier    string
	MainPos string
	SubPos  string
	Mosts   []string

	Status   Status
	WonTeam  *string
	WonPrice *int
}

// Captain represents a team captain with a bidding budget.
type Captain struct {
	TeamName string
	RealName string
	Nick     string // identity key
	Tier     string
	MainPos  string
	SubPos   string
	Mosts    []string

	TotalPts  int
	UsedPts   int
	PauseUsed int
}

// RemainingPts is the budget the captain can still bid.
func (c *Captain) RemainingPts() int { return c.TotalPts - c.UsedPts }

// Team is the roster owned by one captain. The captain counts toward the
// limit.
type Team struct {
	CaptainNick string
	Members     []string
	Limit       int
}

// CanAdd reports whether the team has room for another member.
func (t *Team) CanAdd() bool { return len(t.Members)+1 < t.Limit }

// State is the single live auction. All access is serialized through the
// owning Service; State itself does no locking.
type State struct {
	TotalTeams    int
	Started       bool
	StrategyFired bool
	ChannelID     string // empty until bound

	Candidates map[string]*Candidate
	Captains   map[string]*Captain
	Teams      map[string]*Team
	Bindings   map[string]string // user ID -> captain nick

	CandidateOrder []string
	CaptainOrder   []string
	CandidateIdx   int
	CaptainIdx     int

	TopBid    int
	TopBidder string // empty = no bid yet

	PauseOwner  string
	PausedUntil *time.Time
}

// NewState returns an empty, not-started auction.
func NewState() *State {
	return &State{
		Candidates:   make(map[string]*Candidate),
		Captains:     make(map[string]*Captain),
		Teams:        make(map[string]*Team),
		Bindings:     make(map[string]string),
		CandidateIdx: -1,
	}
}

// ResetRound clears the per-candidate bidding state.
func (s *State) ResetRound() {
	s.TopBid = 0
	s.TopBidder = ""
	s.CaptainIdx = 0
	s.PauseOwner = ""
	s.PausedUntil = nil
}

// AnyTeamCanAdd reports whether at least one team still has room.
func (s *State) AnyTeamCanAdd() bool {
	for _, t := range s.Teams {
		if t.CanAdd() {
			return true
		}
	}
	return false
}

// EveryTeamHasMember reports whether all captains have recruited at least
// one member. Used to trigger the one-time strategy break.
func (s *State) EveryTeamHasMember() bool {
	for nick := range s.Captains {
		t, ok := s.Teams[nick]
		if !ok || len(t.Members) == 0 {
			return false
		}
	}
	return true
}

// PauseActive reports whether a pause lock is held and unexpired at now.
func (s *State) PauseActive(now time.Time) bool {
	return s.PausedUntil != nil && now.Before(*s.PausedUntil)
}

// ClearPause drops the pause lock. Owner and expiry are cleared together,
// never individually.
func (s *State) ClearPause() {
	s.PauseOwner = ""
	s.PausedUntil = nil
}
