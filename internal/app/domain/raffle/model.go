// Package raffle defines raffle rounds and tickets. Draw execution runs
// outside the platform; results are recorded, not produced, here.
package raffle

import "time"

// RoundStatus is the lifecycle state of a raffle round.
type RoundStatus string

const (
	RoundActive RoundStatus = "ACTIVE"
	RoundClosed RoundStatus = "CLOSED"
	RoundDrawn  RoundStatus = "DRAWN"
)

// Round is one raffle drawing round.
type Round struct {
	ID              string
	Name            string
	TicketPricePts  int64
	PrizePoolPts    int64
	TicketCount     int64
	Status          RoundStatus
	WinningTicketID *string
	WinnerUserID    *string
	OpensAt         time.Time
	ClosesAt        time.Time
	DrawnAt         *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Ticket is one purchased raffle entry.
type Ticket struct {
	ID          string
	RoundID     string
	UserID      string
	Number      int64
	PurchasedAt time.Time
}
