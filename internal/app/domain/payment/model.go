// Package payment defines recorded tier payments and their resolved
// receivers. Provider SDK calls happen outside the platform; ProviderRef is
// an opaque handle into that system.
package payment

import (
	"time"

	"github.com/yigicoin/platform/internal/app/domain/sponsor"
)

// Provider identifies the external payment channel.
type Provider string

const (
	ProviderPayPal   Provider = "PAYPAL"
	ProviderMetaMask Provider = "METAMASK"
	ProviderManual   Provider = "MANUAL"
)

// Status is the settlement state of a recorded payment.
type Status string

const (
	StatusRecorded Status = "RECORDED"
	StatusSettled  Status = "SETTLED"
	StatusRefunded Status = "REFUNDED"
)

// Payment is one recorded tier payment with the sponsor decision taken at
// payment time.
type Payment struct {
	ID             string
	UserID         string
	Tier           sponsor.Tier
	AmountUSD      float64
	Provider       Provider
	ProviderRef    string
	ReceiverType   sponsor.ReceiverType
	ReceiverSlotID string
	ReceiverUserID *string
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
