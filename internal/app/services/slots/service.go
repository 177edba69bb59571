// Package slots administers the referral tree: seeding, assignment, owner
// resets, tree projection and integrity checking.
package slots

import (
	"context"
	"errors"
	"math/bits"
	"sort"

	"github.com/yigicoin/platform/internal/app/domain/slot"
	"github.com/yigicoin/platform/internal/app/domain/user"
	"github.com/yigicoin/platform/internal/app/storage"
	"github.com/yigicoin/platform/internal/apperr"
	"github.com/yigicoin/platform/pkg/logger"
)

// seedLabels is the fixed seed tree in BFS order; index i hangs under
// index (i-1)/2.
var seedLabels = []string{
	slot.RootLabel,
	"A", "B", "C", "D", "E", "F", "G", "H",
	"I", "J", "K", "L", "M", "N", "O", "P", "Q",
}

// Service administers the slot tree.
type Service struct {
	users storage.UserStore
	store storage.SlotStore
	log   *logger.Logger
}

// New constructs a slot administration service.
func New(users storage.UserStore, store storage.SlotStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("slots")
	}
	return &Service{users: users, store: store, log: log}
}

// Seed creates the fixed seed tree. It is a no-op when slots already exist.
func (s *Service) Seed(ctx context.Context) error {
	existing, err := s.store.ListSlots(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	ids := make([]string, len(seedLabels))
	for i, label := range seedLabels {
		sl := slot.Slot{
			Label: label,
			// BFS index i sits at depth floor(log2(i+1)).
			Level:     bits.Len(uint(i+1)) - 1,
			Position:  i,
			OwnerType: slot.OwnerPlatform,
		}
		if i > 0 {
			parentID := ids[(i-1)/2]
			sl.ParentID = &parentID
		}
		created, err := s.store.CreateSlot(ctx, sl)
		if err != nil {
			return err
		}
		ids[i] = created.ID
	}
	s.log.Infof("seeded %d slots", len(seedLabels))
	return nil
}

// Assign gives a non-root slot to a user. The slot must not already be
// user-owned and the user must not already own a slot.
func (s *Service) Assign(ctx context.Context, email, slotLabel string) (slot.Slot, error) {
	if slotLabel == slot.RootLabel {
		return slot.Slot{}, apperr.New(apperr.CodeCannotAssignRoot, "the root slot cannot be assigned")
	}

	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return slot.Slot{}, apperr.New(apperr.CodeUserNotFound, "user %s not found", email)
		}
		return slot.Slot{}, err
	}

	target, err := s.store.GetSlotByLabel(ctx, slotLabel)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return slot.Slot{}, apperr.New(apperr.CodeSlotNotFound, "slot %s not found", slotLabel)
		}
		return slot.Slot{}, err
	}
	if target.IsRoot() {
		return slot.Slot{}, apperr.New(apperr.CodeCannotAssignRoot, "the root slot cannot be assigned")
	}
	if target.UserOwned() {
		return slot.Slot{}, apperr.New(apperr.CodeSlotAlreadyOwned, "slot %s is already owned", slotLabel)
	}
	if _, err := s.store.FindOwnedSlot(ctx, u.ID); err == nil {
		return slot.Slot{}, apperr.New(apperr.CodeSlotAlreadyOwned, "user %s already owns a slot", email)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return slot.Slot{}, err
	}

	updated, err := s.store.UpdateSlotOwner(ctx, target.ID, target.Version, slot.OwnerUser, &u.ID)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrAlreadyExists):
			return slot.Slot{}, apperr.New(apperr.CodeSlotAlreadyOwned, "user %s already owns a slot", email)
		case errors.Is(err, storage.ErrVersionConflict):
			return slot.Slot{}, apperr.New(apperr.CodeConflict, "slot %s changed concurrently", slotLabel)
		}
		return slot.Slot{}, err
	}

	if _, err := s.store.AppendTransfer(ctx, slot.TransferLog{
		SlotID:          updated.ID,
		SlotLabel:       updated.Label,
		FromOwnerType:   target.OwnerType,
		FromOwnerUserID: target.OwnerUserID,
		ToOwnerType:     slot.OwnerUser,
		ToOwnerUserID:   &u.ID,
		Reason:          "admin assignment",
	}); err != nil {
		return slot.Slot{}, err
	}

	s.log.Infof("slot %s assigned to user %s", slotLabel, u.ID)
	return updated, nil
}

// TreeNode is a slot with its owning-user projection.
type TreeNode struct {
	Slot  slot.Slot  `json:"slot"`
	Owner *user.User `json:"owner,omitempty"`
}

// TreeView returns the tree ordered by level then position. maxLevel < 0
// disables depth filtering.
func (s *Service) TreeView(ctx context.Context, maxLevel int) ([]TreeNode, error) {
	all, err := s.store.ListSlots(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Level != all[j].Level {
			return all[i].Level < all[j].Level
		}
		return all[i].Position < all[j].Position
	})

	nodes := make([]TreeNode, 0, len(all))
	for _, sl := range all {
		if maxLevel >= 0 && sl.Level > maxLevel {
			continue
		}
		node := TreeNode{Slot: sl}
		if sl.UserOwned() {
			if owner, err := s.users.GetUser(ctx, *sl.OwnerUserID); err == nil {
				o := owner
				node.Owner = &o
			}
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// ResetOwners returns every non-root slot to platform ownership, writing an
// audit row per changed slot.
func (s *Service) ResetOwners(ctx context.Context) (int, error) {
	all, err := s.store.ListSlots(ctx)
	if err != nil {
		return 0, err
	}

	reset := 0
	for _, sl := range all {
		if sl.IsRoot() {
			continue
		}
		if sl.OwnerType == slot.OwnerPlatform && sl.OwnerUserID == nil {
			continue
		}
		updated, err := s.store.UpdateSlotOwner(ctx, sl.ID, sl.Version, slot.OwnerPlatform, nil)
		if err != nil {
			return reset, err
		}
		if _, err := s.store.AppendTransfer(ctx, slot.TransferLog{
			SlotID:          updated.ID,
			SlotLabel:       updated.Label,
			FromOwnerType:   sl.OwnerType,
			FromOwnerUserID: sl.OwnerUserID,
			ToOwnerType:     slot.OwnerPlatform,
			Reason:          "owner reset",
		}); err != nil {
			return reset, err
		}
		reset++
	}
	s.log.Infof("reset %d slot owners", reset)
	return reset, nil
}

// Transfers returns the audit trail, optionally filtered to one slot.
func (s *Service) Transfers(ctx context.Context, slotID string) ([]slot.TransferLog, error) {
	return s.store.ListTransfers(ctx, slotID)
}

// CheckTree audits the whole slot table without mutating it.
func (s *Service) CheckTree(ctx context.Context) (slot.TreeReport, error) {
	all, err := s.store.ListSlots(ctx)
	if err != nil {
		return slot.TreeReport{}, err
	}

	byID := make(map[string]slot.Slot, len(all))
	for _, sl := range all {
		byID[sl.ID] = sl
	}

	childCount := make(map[string]int)
	var issues []slot.Issue
	for _, sl := range all {
		if sl.ParentID == nil {
			continue
		}
		childCount[*sl.ParentID]++
		if _, ok := byID[*sl.ParentID]; !ok {
			issues = append(issues, slot.Issue{
				Code:      slot.IssueMissingParent,
				SlotID:    sl.ID,
				Label:     sl.Label,
				MissingID: sl.ParentID,
			})
		}
	}

	maxChildren := 0
	for parentID, count := range childCount {
		if count > maxChildren {
			maxChildren = count
		}
		if count > 2 {
			parent := byID[parentID]
			issues = append(issues, slot.Issue{
				Code:     slot.IssueTooManyChildren,
				ParentID: parentID,
				Label:    parent.Label,
				Count:    count,
			})
		}
	}

	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Code != issues[j].Code {
			return issues[i].Code < issues[j].Code
		}
		return issues[i].ParentID+issues[i].SlotID < issues[j].ParentID+issues[j].SlotID
	})

	return slot.TreeReport{
		Valid:       len(issues) == 0,
		SlotCount:   len(all),
		MaxChildren: maxChildren,
		Issues:      issues,
	}, nil
}
