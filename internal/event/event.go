package event

import (
	"encoding/json"
	"time"
)

// Type identifies an event kind.
type Type string

const (
	AuctionStarted   Type = "auction.started"
	AuctionCompleted Type = "auction.completed"
	AuctionReset     Type = "auction.reset"

	CaptainRegistered   Type = "captain.registered"
	CandidateRegistered Type = "candidate.registered"

	BidAccepted     Type = "bid.accepted"
	CandidateSold   Type = "candidate.sold"
	CandidateUnsold Type = "candidate.unsold"

	PauseStarted Type = "pause.started"
	PauseEnded   Type = "pause.ended"
)

// Event represents a single domain event in the auction audit journal.
type Event struct {
	ID          string          `json:"id" db:"id"`
	AggregateID string          `json:"aggregate_id" db:"aggregate_id"`
	Type        Type            `json:"type" db:"type"`
	Data        json.RawMessage `json:"data" db:"data"`
	Version     int             `json:"version" db:"version"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// AuctionStartedData is the payload for AuctionStarted events.
type AuctionStartedData struct {
	ChannelID     string `json:"channel_id"`
	TotalTeams    int    `json:"total_teams"`
	InitialPoints int    `json:"initial_points"`
	Captains      int    `json:"captains"`
	Candidates    int    `json:"candidates"`
}

// BidAcceptedData is the payload for BidAccepted events.
type BidAcceptedData struct {
	CandidateNick string `json:"candidate_nick"`
	CaptainNick   string `json:"captain_nick"`
	Amount        int    `json:"amount"`
}

// CandidateSoldData is the payload for CandidateSold events.
type CandidateSoldData struct {
	CandidateNick string `json:"candidate_nick"`
	TeamName      string `json:"team_name"`
	Price         int    `json:"price"`
}

// CandidateUnsoldData is the payload for CandidateUnsold events.
type CandidateUnsoldData struct {
	CandidateNick string `json:"candidate_nick"`
	// Final is set once the re-auction pass has also failed to place the
	// candidate.
	Final bool `json:"final"`
}

// PauseData is the payload for PauseStarted and PauseEnded events.
type PauseData struct {
	CaptainNick string `json:"captain_nick"`
	Reason      string `json:"reason"` // "requested", "released" or "expired"
}

// RegisteredData is the payload for registration events.
type RegisteredData struct {
	Nick     string `json:"nick"`
	TeamName string `json:"team_name,omitempty"`
}
