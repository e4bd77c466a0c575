package auction

import (
	"sort"
	"strings"
)

// Channel returns the channel the auction is bound to, if any.
func (s *Service) Channel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ChannelID
}

// Started reports whether the auction has been started.
func (s *Service) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Started
}

// EnsureChannel binds the auction to channelID on first use and reports
// whether channelID is the bound location. Always true when single-channel
// enforcement is off.
func (s *Service) EnsureChannel(channelID string) bool {
	if !s.rules.EnforceSingleChannel {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.ChannelID == "" {
		s.state.ChannelID = channelID
	}
	return s.state.ChannelID == channelID
}

// CandidateInfo is a read-only snapshot of one candidate.
type CandidateInfo struct {
	Name     string
	Nick     string
	Tier     string
	MainPos  string
	SubPos   string
	Mosts    []string
	Status   Status
	WonTeam  string // empty unless sold
	WonPrice int    // zero unless sold
}

func snapshotCandidate(c *Candidate) CandidateInfo {
	info := CandidateInfo{
		Name:    c.Name,
		Nick:    c.Nick,
		Tier:    c.Tier,
		MainPos: c.MainPos,
		SubPos:  c.SubPos,
		Mosts:   append([]string(nil), c.Mosts...),
		Status:  c.Status,
	}
	if c.WonTeam != nil {
		info.WonTeam = *c.WonTeam
	}
	if c.WonPrice != nil {
		info.WonPrice = *c.WonPrice
	}
	return info
}

// CaptainInfo is a read-only snapshot of one captain.
type CaptainInfo struct {
	TeamName  string
	RealName  string
	Nick      string
	TotalPts  int
	UsedPts   int
	RemainPts int
}

func snapshotCaptain(c *Captain) CaptainInfo {
	return CaptainInfo{
		TeamName:  c.TeamName,
		RealName:  c.RealName,
		Nick:      c.Nick,
		TotalPts:  c.TotalPts,
		UsedPts:   c.UsedPts,
		RemainPts: c.RemainingPts(),
	}
}

// LookupCandidate returns the candidate registered under nick.
func (s *Service) LookupCandidate(nick string) (CandidateInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.state.Candidates[nick]
	if !ok {
		return CandidateInfo{}, false
	}
	return snapshotCandidate(c), true
}

// TeamPoints returns the points summary for the team with the given name.
func (s *Service) TeamPoints(teamName string) (CaptainInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.state.Captains {
		if c.TeamName == teamName {
			return snapshotCaptain(c), true
		}
	}
	return CaptainInfo{}, false
}

// RosterEntry is one recruited member with their final price.
type RosterEntry struct {
	Nick  string
	Name  string
	Price int
}

// TeamRoster returns the members of the named team in recruitment order.
// The name is matched against team names first, captain nicks second.
func (s *Service) TeamRoster(teamName string) ([]RosterEntry, bool) {
	norm := func(v string) string { return strings.ToLower(strings.ReplaceAll(v, " ", "")) }
	target := norm(teamName)

	s.mu.Lock()
	defer s.mu.Unlock()

	var captainKey string
	for nick, c := range s.state.Captains {
		if norm(c.TeamName) == target {
			captainKey = nick
			break
		}
	}
	if captainKey == "" {
		if _, ok := s.state.Teams[teamName]; ok {
			captainKey = teamName
		}
	}
	team, ok := s.state.Teams[captainKey]
	if !ok {
		return nil, false
	}

	entries := make([]RosterEntry, 0, len(team.Members))
	for _, nick := range team.Members {
		e := RosterEntry{Nick: nick}
		if c, ok := s.state.Candidates[nick]; ok {
			e.Name = c.Name
			if c.WonPrice != nil {
				e.Price = *c.WonPrice
			}
		}
		entries = append(entries, e)
	}
	return entries, true
}

// UnsoldCandidates lists candidates currently marked unsold, sorted by
// nick for stable output.
func (s *Service) UnsoldCandidates() []CandidateInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []CandidateInfo
	for _, c := range s.state.Candidates {
		if c.Status == StatusUnsold {
			out = append(out, snapshotCandidate(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nick < out[j].Nick })
	return out
}

// AuctionOrder returns the candidate queue with statuses, in queue order.
func (s *Service) AuctionOrder() []CandidateInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]CandidateInfo, 0, len(s.state.CandidateOrder))
	for _, nick := range s.state.CandidateOrder {
		if c, ok := s.state.Candidates[nick]; ok {
			out = append(out, snapshotCandidate(c))
		}
	}
	return out
}

// FindParticipants looks a query string up against candidates and
// captains: exact nick match first, exact name second, partial matches
// last (capped at five per kind).
func (s *Service) FindParticipants(query string) (candidates []CandidateInfo, captains []CaptainInfo) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var exactCand, nameCand *Candidate
	var partialCand []*Candidate
	for _, c := range s.state.Candidates {
		nick := strings.ToLower(c.Nick)
		name := strings.ToLower(c.Name)
		switch {
		case nick == q:
			exactCand = c
		case name == q && nameCand == nil:
			nameCand = c
		case strings.Contains(nick, q) || strings.Contains(name, q):
			partialCand = append(partialCand, c)
		}
	}

	var exactCap, nameCap *Captain
	var partialCap []*Captain
	for _, c := range s.state.Captains {
		nick := strings.ToLower(c.Nick)
		name := strings.ToLower(c.RealName)
		team := strings.ToLower(c.TeamName)
		switch {
		case nick == q:
			exactCap = c
		case name == q && nameCap == nil:
			nameCap = c
		case strings.Contains(nick, q) || strings.Contains(name, q) || strings.Contains(team, q):
			partialCap = append(partialCap, c)
		}
	}

	switch {
	case exactCand != nil:
		candidates = append(candidates, snapshotCandidate(exactCand))
	case nameCand != nil:
		candidates = append(candidates, snapshotCandidate(nameCand))
	default:
		sort.Slice(partialCand, func(i, j int) bool { return partialCand[i].Nick < partialCand[j].Nick })
		for _, c := range partialCand {
			candidates = append(candidates, snapshotCandidate(c))
			if len(candidates) == 5 {
				break
			}
		}
	}

	switch {
	case exactCap != nil:
		captains = append(captains, snapshotCaptain(exactCap))
	case nameCap != nil:
		captains = append(captains, snapshotCaptain(nameCap))
	default:
		sort.Slice(partialCap, func(i, j int) bool { return partialCap[i].Nick < partialCap[j].Nick })
		for _, c := range partialCap {
			captains = append(captains, snapshotCaptain(c))
			if len(captains) == 5 {
				break
			}
		}
	}
	return candidates, captains
}
