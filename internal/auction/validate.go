package auction

import "errors"

// Errors returned when a proposed bid is rejected. A rejected bid never
// consumes the captain's turn.
var (
	ErrBidBelowMinimum = errors.New("bid is below the minimum")
	ErrBidStep         = errors.New("bid is not a multiple of the step")
	ErrBidNotHigher    = errors.New("bid does not exceed the current top bid")
	ErrBidOverBudget   = errors.New("bid exceeds remaining points")
)

// ValidateBid checks a proposed amount against the bidding rules. It is a
// pure function; the caller applies the side effects of an accepted bid.
func ValidateBid(amount, topBid, minBid, step, remaining int) error {
	if amount < minBid {
		return ErrBidBelowMinimum
	}
	if amount%step != 0 {
		return ErrBidStep
	}
	if amount <= topBid {
		return ErrBidNotHigher
	}
	if amount > remaining {
		return ErrBidOverBudget
	}
	return nil
}
