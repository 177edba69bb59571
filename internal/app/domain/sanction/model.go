// Package sanction defines fines levied on ancestor users after a
// no-children vacancy expropriation, governed by a per-rank rule table.
package sanction

import (
	"time"

	"github.com/yigicoin/platform/internal/app/domain/user"
)

// Status is the lifecycle state of a sanction.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusExpired   Status = "EXPIRED"
	StatusRecovered Status = "RECOVERED"
	StatusWaived    Status = "WAIVED"
)

// AccountSanction is a fine owed by a user, created inside the expropriation
// transaction that triggered it.
type AccountSanction struct {
	ID                  string
	UserID              string
	SlotID              string
	RankAtExpropriation user.Rank
	FineUSD             float64
	GraceHours          int
	DeadlineAt          time.Time
	Status              Status
	Reason              string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Rule sets the fine terms applied to a rank.
type Rule struct {
	FineUSD    float64
	GraceHours int
	CanRecover bool
}

// rules is the per-rank sanction table. Grace matches the 48 hour
// counter-credit granted alongside the fine.
var rules = map[user.Rank]Rule{
	user.RankRegistro: {FineUSD: 5, GraceHours: 48, CanRecover: true},
	user.RankInvitado: {FineUSD: 10, GraceHours: 48, CanRecover: true},
	user.RankMiembro:  {FineUSD: 25, GraceHours: 48, CanRecover: true},
	user.RankVIP:      {FineUSD: 50, GraceHours: 48, CanRecover: true},
	user.RankPremium:  {FineUSD: 100, GraceHours: 48, CanRecover: false},
	user.RankElite:    {FineUSD: 250, GraceHours: 48, CanRecover: false},
}

// RuleFor returns the sanction terms for a rank. Unknown ranks get the
// registro terms.
func RuleFor(r user.Rank) Rule {
	if rule, ok := rules[r]; ok {
		return rule
	}
	return rules[user.RankRegistro]
}
