// Package expropriation resolves the loss of a user's slot: case-based
// promotion or replacement, audit logging and the ancestor-side effects of a
// no-children vacancy.
package expropriation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yigicoin/platform/internal/app/domain/sanction"
	"github.com/yigicoin/platform/internal/app/domain/slot"
	"github.com/yigicoin/platform/internal/app/storage"
	"github.com/yigicoin/platform/internal/apperr"
	"github.com/yigicoin/platform/pkg/logger"
)

// creditHours is added to the grandparent owner's re-invite counter when a
// no-children vacancy leaves their subtree open.
const creditHours = 48

// Result reports what an expropriation applied.
type Result struct {
	Case         slot.LossCase      `json:"case"`
	SlotID       string             `json:"slot_id"`
	SlotLabel    string             `json:"slot_label"`
	Entries      []slot.TransferLog `json:"entries"`
	NotifyUserID string             `json:"notify_user_id,omitempty"`
	AddHours     int                `json:"add_hours,omitempty"`
	SanctionID   string             `json:"sanction_id,omitempty"`
}

// Service runs expropriations.
type Service struct {
	users storage.UserStore
	store storage.SlotStore
	log   *logger.Logger
	now   func() time.Time
}

// New constructs an expropriation service.
func New(users storage.UserStore, store storage.SlotStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("expropriation")
	}
	return &Service{users: users, store: store, log: log, now: time.Now}
}

// Expropriate takes the slot owned by the user with the given email and
// resolves the consequence atomically.
func (s *Service) Expropriate(ctx context.Context, email string) (Result, error) {
	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Result{}, apperr.New(apperr.CodeUserNotFound, "user %s not found", email)
		}
		return Result{}, err
	}

	owned, err := s.store.FindOwnedSlot(ctx, u.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Result{}, apperr.New(apperr.CodeSlotNotFound, "user %s owns no slot", email)
		}
		return Result{}, err
	}

	var result Result
	err = s.store.Transact(ctx, func(tx storage.SlotTx) error {
		// Re-read inside the transaction; the slot may have moved since
		// the precondition check.
		lost, err := tx.GetSlot(ctx, owned.ID)
		if err != nil {
			return err
		}
		if !lost.UserOwned() || *lost.OwnerUserID != u.ID {
			return apperr.New(apperr.CodeSlotNotFound, "user %s owns no slot", email)
		}

		children, err := tx.ListChildren(ctx, lost.ID)
		if err != nil {
			return err
		}

		cls := slot.Classify(lost, children)
		result = Result{Case: cls.Case, SlotID: lost.ID, SlotLabel: lost.Label}

		switch cls.Case {
		case slot.CasePlatformReplaces:
			return s.moveOwner(ctx, tx, &result, lost, slot.OwnerPlatform, nil, "case 1: platform replaces parent")

		case slot.CaseSinglePromotes:
			promoting := *cls.PromotingChild
			// The child slot is vacated before its owner takes the parent
			// slot, or the one-slot-per-user index would reject the move.
			// The audit trail follows the write order, so the vacate entry
			// comes first.
			if err := s.moveOwner(ctx, tx, &result, promoting, slot.OwnerVacant, nil, "case 2: promoted child slot vacated"); err != nil {
				return err
			}
			return s.moveOwner(ctx, tx, &result, lost, slot.OwnerUser, promoting.OwnerUserID, "case 2: single child promotes")

		case slot.CaseNoChildrenVacant:
			if err := s.moveOwner(ctx, tx, &result, lost, slot.OwnerVacant, nil, "case 4: no children, slot vacated"); err != nil {
				return err
			}
			return s.creditGrandparent(ctx, tx, &result, lost)

		default:
			return apperr.New(apperr.CodeUnsupportedCase, "slot %s matched no loss case", lost.Label)
		}
	})
	if err != nil {
		return Result{}, err
	}

	s.log.WithField("case", int(result.Case)).Infof("slot %s expropriated from user %s", result.SlotLabel, u.ID)
	return result, nil
}

// moveOwner rewrites one slot's ownership and appends its paired audit row.
func (s *Service) moveOwner(ctx context.Context, tx storage.SlotTx, result *Result, sl slot.Slot, to slot.OwnerType, toUser *string, reason string) error {
	updated, err := tx.UpdateSlotOwner(ctx, sl.ID, sl.Version, to, toUser)
	if err != nil {
		if errors.Is(err, storage.ErrVersionConflict) {
			return apperr.New(apperr.CodeConflict, "slot %s changed concurrently", sl.Label)
		}
		return err
	}

	entry, err := tx.AppendTransfer(ctx, slot.TransferLog{
		SlotID:          updated.ID,
		SlotLabel:       updated.Label,
		FromOwnerType:   sl.OwnerType,
		FromOwnerUserID: sl.OwnerUserID,
		ToOwnerType:     to,
		ToOwnerUserID:   toUser,
		Reason:          reason,
	})
	if err != nil {
		return err
	}
	result.Entries = append(result.Entries, entry)
	return nil
}

// creditGrandparent extends the grandparent owner's re-invite counter and
// fines them per their rank when the vacated slot's grandparent is
// user-owned. Platform and vacant grandparents leave no side effects.
func (s *Service) creditGrandparent(ctx context.Context, tx storage.SlotTx, result *Result, lost slot.Slot) error {
	if lost.ParentID == nil {
		return nil
	}
	grandparent, err := tx.GetSlot(ctx, *lost.ParentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	if !grandparent.UserOwned() {
		return nil
	}

	owner, err := tx.GetUser(ctx, *grandparent.OwnerUserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}

	now := s.now().UTC()
	base := now
	if !owner.CounterExpired(now) {
		base = *owner.CounterExpiresAt
	}
	if _, err := tx.UpdateUserCounter(ctx, owner.ID, base.Add(creditHours*time.Hour)); err != nil {
		return err
	}

	rule := sanction.RuleFor(owner.Rank)
	sn, err := tx.CreateSanction(ctx, sanction.AccountSanction{
		UserID:              owner.ID,
		SlotID:              lost.ID,
		RankAtExpropriation: owner.Rank,
		FineUSD:             rule.FineUSD,
		GraceHours:          rule.GraceHours,
		DeadlineAt:          now.Add(time.Duration(rule.GraceHours) * time.Hour),
		Reason:              fmt.Sprintf("subtree under %s left vacant", lost.Label),
	})
	if err != nil {
		return err
	}

	result.NotifyUserID = owner.ID
	result.AddHours = creditHours
	result.SanctionID = sn.ID
	return nil
}
