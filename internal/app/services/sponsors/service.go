// Package sponsors resolves which entity receives a tier payment by walking
// ancestor levels up from the payer's slot.
package sponsors

import (
	"context"
	"errors"

	"github.com/yigicoin/platform/internal/app/domain/slot"
	"github.com/yigicoin/platform/internal/app/domain/sponsor"
	"github.com/yigicoin/platform/internal/app/storage"
	"github.com/yigicoin/platform/internal/apperr"
	"github.com/yigicoin/platform/pkg/logger"
)

// Service resolves payment receivers.
type Service struct {
	users storage.UserStore
	store storage.SlotStore
	log   *logger.Logger
}

// New constructs a sponsor resolver service.
func New(users storage.UserStore, store storage.SlotStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("sponsors")
	}
	return &Service{users: users, store: store, log: log}
}

// Resolve determines the receiver of a tier payment by the given payer.
func (s *Service) Resolve(ctx context.Context, email string, rawTier string) (sponsor.Resolution, error) {
	tier, ok := sponsor.Parse(rawTier)
	if !ok {
		return sponsor.Resolution{}, apperr.New(apperr.CodeUnknownTier, "tier %q is not mapped", rawTier)
	}

	payer, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return sponsor.Resolution{}, apperr.New(apperr.CodeUserNotFound, "user %s not found", email)
		}
		return sponsor.Resolution{}, err
	}

	root, err := s.store.FindRoot(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return sponsor.Resolution{}, apperr.New(apperr.CodeTreeNotInitialized, "no root slot exists")
		}
		return sponsor.Resolution{}, err
	}

	res := sponsor.Resolution{
		Tier:        tier,
		AmountUSD:   tier.PriceUSD(),
		PayerUserID: payer.ID,
		PayerEmail:  payer.Email,
	}

	payerSlot, err := s.store.FindOwnedSlot(ctx, payer.ID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return sponsor.Resolution{}, err
		}
		// Payer outside the tree pays the platform at the root.
		res.ReceiverType = sponsor.ReceiverPlatform
		res.ReceiverSlotID = root.ID
		res.ReceiverLabel = root.Label
		return res, nil
	}
	res.PayerSlotID = payerSlot.ID

	reached, ascended, err := s.ascend(ctx, payerSlot, tier.Distance(), root)
	if err != nil {
		return sponsor.Resolution{}, err
	}
	res.LevelsAscended = ascended
	res.ReceiverSlotID = reached.ID
	res.ReceiverLabel = reached.Label

	if reached.UserOwned() {
		if receiver, err := s.users.GetUser(ctx, *reached.OwnerUserID); err == nil {
			res.ReceiverType = sponsor.ReceiverUser
			res.ReceiverUserID = receiver.ID
			return res, nil
		} else if !errors.Is(err, storage.ErrNotFound) {
			return sponsor.Resolution{}, err
		}
		// Broken USER reference falls back to platform at this slot.
	}
	res.ReceiverType = sponsor.ReceiverPlatform
	return res, nil
}

// ascend walks up to levels parents from start. A missing parent reference
// at any step short-circuits to the root.
func (s *Service) ascend(ctx context.Context, start slot.Slot, levels int, root slot.Slot) (slot.Slot, int, error) {
	current := start
	for i := 0; i < levels; i++ {
		if current.ParentID == nil {
			return current, i, nil
		}
		parent, err := s.store.GetSlot(ctx, *current.ParentID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return root, i, nil
			}
			return slot.Slot{}, 0, err
		}
		current = parent
	}
	return current, levels, nil
}

// Preview resolves all six standard tiers for one payer.
func (s *Service) Preview(ctx context.Context, email string) ([]sponsor.Resolution, error) {
	results := make([]sponsor.Resolution, 0, len(sponsor.Tiers))
	for _, tier := range sponsor.Tiers {
		res, err := s.Resolve(ctx, email, string(tier))
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}
