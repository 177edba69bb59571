// Package points defines the ledger backing the points and totem economy.
package points

import "time"

// Kind classifies a ledger movement.
type Kind string

const (
	KindEarn       Kind = "EARN"
	KindSpend      Kind = "SPEND"
	KindTotemAward Kind = "TOTEM_AWARD"
	KindAdReward   Kind = "AD_REWARD"
	KindAdjust     Kind = "ADJUST"
)

// LedgerEntry is one immutable points movement. Balance records the user's
// balance after the movement was applied.
type LedgerEntry struct {
	ID        string
	UserID    string
	Kind      Kind
	Amount    int64
	Balance   int64
	Reference string
	CreatedAt time.Time
}

// AdClaim is one rewarded ad claim, kept for rate-capping claim history.
type AdClaim struct {
	UserID    string
	ClaimedAt time.Time
}
