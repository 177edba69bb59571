// Package user defines the platform member model and the rank ladder.
package user

import (
	"strings"
	"time"
)

// Rank is a user's progression level. Ranks mirror the payment tiers.
type Rank string

const (
	RankRegistro Rank = "registro"
	RankInvitado Rank = "invitado"
	RankMiembro  Rank = "miembro"
	RankVIP      Rank = "vip"
	RankPremium  Rank = "premium"
	RankElite    Rank = "elite"
)

// rankOrder positions each rank on the ladder.
var rankOrder = map[Rank]int{
	RankRegistro: 0,
	RankInvitado: 1,
	RankMiembro:  2,
	RankVIP:      3,
	RankPremium:  4,
	RankElite:    5,
}

// Valid reports whether the rank is a known ladder position.
func (r Rank) Valid() bool {
	_, ok := rankOrder[r]
	return ok
}

// AtLeast reports whether r is the same or a higher rank than other.
func (r Rank) AtLeast(other Rank) bool {
	return rankOrder[r] >= rankOrder[other]
}

// ParseRank normalizes a rank string; unknown input maps to registro.
func ParseRank(s string) Rank {
	r := Rank(strings.ToLower(strings.TrimSpace(s)))
	if r.Valid() {
		return r
	}
	return RankRegistro
}

// User is a platform member. CounterExpiresAt drives the re-invite window
// extended by expropriation case 4; Points is the materialised ledger
// balance.
type User struct {
	ID               string
	Email            string
	Username         string
	Rank             Rank
	Points           int64
	CounterExpiresAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CounterExpired reports whether the re-invite counter has lapsed at now.
func (u User) CounterExpired(now time.Time) bool {
	return u.CounterExpiresAt == nil || !u.CounterExpiresAt.After(now)
}
