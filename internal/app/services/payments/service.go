// Package payments records tier payments with the sponsor decision taken at
// payment time. Provider SDK calls stay outside; ProviderRef is opaque.
package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/yigicoin/platform/internal/app/domain/payment"
	"github.com/yigicoin/platform/internal/app/domain/sponsor"
	"github.com/yigicoin/platform/internal/app/domain/user"
	"github.com/yigicoin/platform/internal/app/services/sponsors"
	"github.com/yigicoin/platform/internal/app/storage"
	"github.com/yigicoin/platform/internal/apperr"
	"github.com/yigicoin/platform/pkg/logger"
)

// tierRank maps each paid tier onto the rank it unlocks.
var tierRank = map[sponsor.Tier]user.Rank{
	sponsor.TierRegistro: user.RankRegistro,
	sponsor.TierInvitado: user.RankInvitado,
	sponsor.TierMiembro:  user.RankMiembro,
	sponsor.TierVIP:      user.RankVIP,
	sponsor.TierPremium:  user.RankPremium,
	sponsor.TierElite:    user.RankElite,
}

// Service records tier payments.
type Service struct {
	users    storage.UserStore
	store    storage.PaymentStore
	resolver *sponsors.Service
	log      *logger.Logger
}

// New constructs a payment service.
func New(users storage.UserStore, store storage.PaymentStore, resolver *sponsors.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("payments")
	}
	return &Service{users: users, store: store, resolver: resolver, log: log}
}

// Record resolves the sponsor for a tier payment, persists the receiver
// decision and upgrades the payer's rank when the tier outranks it.
func (s *Service) Record(ctx context.Context, email, rawTier string, provider payment.Provider, providerRef string) (payment.Payment, error) {
	switch provider {
	case payment.ProviderPayPal, payment.ProviderMetaMask, payment.ProviderManual:
	default:
		return payment.Payment{}, fmt.Errorf("unknown provider %q", provider)
	}

	res, err := s.resolver.Resolve(ctx, email, rawTier)
	if err != nil {
		return payment.Payment{}, err
	}

	p := payment.Payment{
		UserID:         res.PayerUserID,
		Tier:           res.Tier,
		AmountUSD:      res.AmountUSD,
		Provider:       provider,
		ProviderRef:    providerRef,
		ReceiverType:   res.ReceiverType,
		ReceiverSlotID: res.ReceiverSlotID,
	}
	if res.ReceiverUserID != "" {
		id := res.ReceiverUserID
		p.ReceiverUserID = &id
	}

	created, err := s.store.CreatePayment(ctx, p)
	if err != nil {
		return payment.Payment{}, err
	}

	if err := s.upgradeRank(ctx, res.PayerUserID, res.Tier); err != nil {
		return payment.Payment{}, err
	}

	s.log.WithField("tier", string(res.Tier)).Infof("payment %s recorded for user %s", created.ID, res.PayerUserID)
	return created, nil
}

// upgradeRank lifts the payer to the tier's rank when it is higher.
func (s *Service) upgradeRank(ctx context.Context, userID string, tier sponsor.Tier) error {
	rank, ok := tierRank[tier]
	if !ok {
		return nil
	}
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if u.Rank.AtLeast(rank) {
		return nil
	}
	u.Rank = rank
	_, err = s.users.UpdateUser(ctx, u)
	return err
}

// Settle marks a recorded payment settled.
func (s *Service) Settle(ctx context.Context, id, providerRef string) (payment.Payment, error) {
	return s.transition(ctx, id, providerRef, payment.StatusRecorded, payment.StatusSettled)
}

// Refund marks a settled payment refunded.
func (s *Service) Refund(ctx context.Context, id string) (payment.Payment, error) {
	return s.transition(ctx, id, "", payment.StatusSettled, payment.StatusRefunded)
}

func (s *Service) transition(ctx context.Context, id, providerRef string, from, to payment.Status) (payment.Payment, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return payment.Payment{}, err
	}
	if p.Status != from {
		return payment.Payment{}, apperr.New(apperr.CodeConflict, "payment %s is %s, not %s", id, p.Status, from)
	}
	p.Status = to
	if providerRef != "" {
		p.ProviderRef = providerRef
	}
	return s.store.UpdatePayment(ctx, p)
}

// Get retrieves a payment.
func (s *Service) Get(ctx context.Context, id string) (payment.Payment, error) {
	p, err := s.store.GetPayment(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return payment.Payment{}, apperr.New(apperr.CodeConflict, "payment %s not found", id)
	}
	return p, err
}

// List returns a user's payments.
func (s *Service) List(ctx context.Context, userID string) ([]payment.Payment, error) {
	return s.store.ListPayments(ctx, userID)
}
