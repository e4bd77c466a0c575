package auction

// Outcome is the round-termination verdict for one candidate's bidding.
type Outcome int

const (
	// OutcomeOpen means bidding continues.
	OutcomeOpen Outcome = iota
	// OutcomeSale means the top bidder wins the candidate.
	OutcomeSale
	// OutcomeNoSale means every captain declined and the candidate goes
	// unsold.
	OutcomeNoSale
)

// Scheduler advances a circular index over the captain order for one
// candidate's bidding round and decides when the round terminates.
//
// Captains whose team is full are ineligible and are skipped without
// counting toward pass accounting. Captains who declared no interest keep
// their place in the order but are treated as permanently passed for the
// remainder of the candidate.
type Scheduler struct {
	order    []string
	idx      int
	eligible map[string]bool
	passed   map[string]bool
	noAsk    map[string]bool
}

// NewScheduler builds a scheduler over the fixed captain order. Eligibility
// is evaluated once: team capacity cannot change mid-candidate.
func NewScheduler(order []string, eligible func(nick string) bool) *Scheduler {
	el := make(map[string]bool, len(order))
	for _, nick := range order {
		el[nick] = eligible(nick)
	}
	return &Scheduler{
		order:    order,
		eligible: el,
		passed:   make(map[string]bool),
		noAsk:    make(map[string]bool),
	}
}

// Current returns the captain at the cursor without skipping.
func (sc *Scheduler) Current() string { return sc.order[sc.idx] }

// Advance moves the cursor to the next captain in the circular order.
func (sc *Scheduler) Advance() { sc.idx = (sc.idx + 1) % len(sc.order) }

// Index returns the current cursor position.
func (sc *Scheduler) Index() int { return sc.idx }

// Next returns the next captain who should actually be asked to act,
// advancing past ineligible and no-interest captains. The skipped slice
// holds capacity-skipped captains for notification. ok is false when no
// captain in the order can be asked.
func (sc *Scheduler) Next() (nick string, skipped []string, ok bool) {
	for range sc.order {
		cur := sc.order[sc.idx]
		if !sc.eligible[cur] {
			skipped = append(skipped, cur)
			sc.Advance()
			continue
		}
		if sc.noAsk[cur] {
			sc.Advance()
			continue
		}
		return cur, skipped, true
	}
	return "", skipped, false
}

// MarkPassed records an explicit pass or a turn timeout.
func (sc *Scheduler) MarkPassed(nick string) { sc.passed[nick] = true }

// MarkNoInterest records that the captain is out for this candidate and
// must not be asked again.
func (sc *Scheduler) MarkNoInterest(nick string) {
	sc.noAsk[nick] = true
	sc.passed[nick] = true
}

// ClearPassed reopens the round after an accepted bid. Every captain may
// act again, except no-interest captains, who stay auto-passed.
func (sc *Scheduler) ClearPassed() {
	sc.passed = make(map[string]bool)
	for nick := range sc.noAsk {
		sc.passed[nick] = true
	}
}

// Passed reports whether the captain currently counts as passed.
func (sc *Scheduler) Passed(nick string) bool { return sc.passed[nick] }

// Outcome evaluates the round-termination predicates. topBidder is empty
// when no bid has been accepted. Only eligible captains are counted: a
// captain who can never act cannot be required to pass.
func (sc *Scheduler) Outcome(topBidder string) Outcome {
	for _, nick := range sc.order {
		if !sc.eligible[nick] || nick == topBidder {
			continue
		}
		if !sc.passed[nick] {
			return OutcomeOpen
		}
	}
	if topBidder == "" {
		return OutcomeNoSale
	}
	return OutcomeSale
}
