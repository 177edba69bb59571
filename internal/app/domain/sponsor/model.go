// Package sponsor defines payment tiers and the result of resolving which
// entity receives a tier payment.
package sponsor

import "strings"

// Tier is a named payment level.
type Tier string

const (
	TierRegistro Tier = "registro"
	TierInvitado Tier = "invitado"
	TierMiembro  Tier = "miembro"
	TierVIP      Tier = "vip"
	TierPremium  Tier = "premium"
	TierElite    Tier = "elite"
)

// Tiers lists the six standard tiers in ascending order.
var Tiers = []Tier{TierRegistro, TierInvitado, TierMiembro, TierVIP, TierPremium, TierElite}

// distance is the number of parent-levels to ascend from the payer's slot.
var distance = map[Tier]int{
	TierRegistro: 1,
	TierInvitado: 2,
	TierMiembro:  3,
	TierVIP:      4,
	TierPremium:  5,
	TierElite:    6,
}

// priceUSD is the static per-tier price table.
var priceUSD = map[Tier]float64{
	TierRegistro: 10,
	TierInvitado: 25,
	TierMiembro:  50,
	TierVIP:      100,
	TierPremium:  250,
	TierElite:    500,
}

// Parse normalizes a tier string. The second return is false for unmapped
// tiers.
func Parse(s string) (Tier, bool) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	_, ok := distance[t]
	return t, ok
}

// Distance returns the ancestor distance for a tier.
func (t Tier) Distance() int {
	return distance[t]
}

// PriceUSD returns the static price for a tier.
func (t Tier) PriceUSD() float64 {
	return priceUSD[t]
}

// ReceiverType identifies who collects a payment.
type ReceiverType string

const (
	ReceiverPlatform ReceiverType = "platform"
	ReceiverUser     ReceiverType = "user"
)

// Resolution is the outcome of resolving a payer and tier to a receiver.
type Resolution struct {
	Tier           Tier         `json:"tier"`
	AmountUSD      float64      `json:"amount_usd"`
	LevelsAscended int          `json:"levels_ascended"`
	PayerUserID    string       `json:"payer_user_id"`
	PayerEmail     string       `json:"payer_email"`
	PayerSlotID    string       `json:"payer_slot_id,omitempty"`
	ReceiverType   ReceiverType `json:"receiver_type"`
	ReceiverSlotID string       `json:"receiver_slot_id"`
	ReceiverLabel  string       `json:"receiver_label,omitempty"`
	ReceiverUserID string       `json:"receiver_user_id,omitempty"`
}
