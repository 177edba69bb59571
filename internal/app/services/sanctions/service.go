// Package sanctions manages account fines and the background sweep that
// expires them past their deadline.
package sanctions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yigicoin/platform/internal/app/domain/sanction"
	"github.com/yigicoin/platform/internal/app/domain/user"
	"github.com/yigicoin/platform/internal/app/storage"
	"github.com/yigicoin/platform/internal/apperr"
	"github.com/yigicoin/platform/pkg/logger"
)

// Service manages account sanctions.
type Service struct {
	store storage.SanctionStore
	log   *logger.Logger
	now   func() time.Time
}

// New constructs a sanction service.
func New(store storage.SanctionStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("sanctions")
	}
	return &Service{store: store, log: log, now: time.Now}
}

// Create fines a user per their rank's rule.
func (s *Service) Create(ctx context.Context, userID, slotID string, rank user.Rank, reason string) (sanction.AccountSanction, error) {
	if userID == "" {
		return sanction.AccountSanction{}, fmt.Errorf("user id is required")
	}
	rule := sanction.RuleFor(rank)
	created, err := s.store.CreateSanction(ctx, sanction.AccountSanction{
		UserID:              userID,
		SlotID:              slotID,
		RankAtExpropriation: rank,
		FineUSD:             rule.FineUSD,
		GraceHours:          rule.GraceHours,
		DeadlineAt:          s.now().UTC().Add(time.Duration(rule.GraceHours) * time.Hour),
		Reason:              reason,
	})
	if err != nil {
		return sanction.AccountSanction{}, err
	}
	s.log.Infof("sanction %s created for user %s", created.ID, userID)
	return created, nil
}

// Get retrieves a sanction.
func (s *Service) Get(ctx context.Context, id string) (sanction.AccountSanction, error) {
	sn, err := s.store.GetSanction(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return sanction.AccountSanction{}, apperr.New(apperr.CodeConflict, "sanction %s not found", id)
	}
	return sn, err
}

// List returns a user's sanctions.
func (s *Service) List(ctx context.Context, userID string) ([]sanction.AccountSanction, error) {
	return s.store.ListSanctions(ctx, userID)
}

// Recover settles a pending sanction. Sanctions at ranks whose rule forbids
// recovery stay pending until they expire.
func (s *Service) Recover(ctx context.Context, id string) (sanction.AccountSanction, error) {
	sn, err := s.Get(ctx, id)
	if err != nil {
		return sanction.AccountSanction{}, err
	}
	if sn.Status != sanction.StatusPending {
		return sanction.AccountSanction{}, apperr.New(apperr.CodeConflict, "sanction %s is %s", id, sn.Status)
	}
	if !sanction.RuleFor(sn.RankAtExpropriation).CanRecover {
		return sanction.AccountSanction{}, apperr.New(apperr.CodeConflict, "sanctions at rank %s are not recoverable", sn.RankAtExpropriation)
	}
	sn.Status = sanction.StatusRecovered
	return s.store.UpdateSanction(ctx, sn)
}

// Waive cancels a pending sanction administratively.
func (s *Service) Waive(ctx context.Context, id string) (sanction.AccountSanction, error) {
	sn, err := s.Get(ctx, id)
	if err != nil {
		return sanction.AccountSanction{}, err
	}
	if sn.Status != sanction.StatusPending {
		return sanction.AccountSanction{}, apperr.New(apperr.CodeConflict, "sanction %s is %s", id, sn.Status)
	}
	sn.Status = sanction.StatusWaived
	return s.store.UpdateSanction(ctx, sn)
}

// SweepExpired marks pending sanctions past their deadline as expired and
// returns how many were flipped.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	due, err := s.store.ListDueSanctions(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, sn := range due {
		sn.Status = sanction.StatusExpired
		if _, err := s.store.UpdateSanction(ctx, sn); err != nil {
			return expired, err
		}
		expired++
	}
	if expired > 0 {
		s.log.Infof("expired %d sanctions", expired)
	}
	return expired, nil
}
