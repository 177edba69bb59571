package slots

import (
	"context"
	"testing"

	"github.com/yigicoin/platform/internal/app/domain/slot"
	"github.com/yigicoin/platform/internal/app/domain/user"
	"github.com/yigicoin/platform/internal/app/storage/memory"
	"github.com/yigicoin/platform/internal/apperr"
)

func TestService_Seed(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)
	ctx := context.Background()

	if err := svc.Seed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}

	all, err := store.ListSlots(ctx)
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	if len(all) != 18 {
		t.Fatalf("expected 18 slots, got %d", len(all))
	}

	root, err := store.FindRoot(ctx)
	if err != nil {
		t.Fatalf("find root: %v", err)
	}
	if root.Label != slot.RootLabel || root.Level != 0 || root.OwnerType != slot.OwnerPlatform {
		t.Fatalf("unexpected root: %+v", root)
	}

	// Every non-root slot hangs under the slot at BFS index (i-1)/2.
	byPosition := make(map[int]slot.Slot, len(all))
	for _, sl := range all {
		byPosition[sl.Position] = sl
	}
	for _, sl := range all {
		if sl.Position == 0 {
			continue
		}
		if sl.ParentID == nil {
			t.Fatalf("slot %s has no parent", sl.Label)
		}
		want := byPosition[(sl.Position-1)/2]
		if *sl.ParentID != want.ID {
			t.Fatalf("slot %s parent %s, want %s", sl.Label, *sl.ParentID, want.ID)
		}
	}

	// Seeding again is a no-op.
	if err := svc.Seed(ctx); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	all, _ = store.ListSlots(ctx)
	if len(all) != 18 {
		t.Fatalf("reseed grew the tree to %d slots", len(all))
	}
}

func TestService_Assign(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)
	ctx := context.Background()

	if err := svc.Seed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	u1, err := store.CreateUser(ctx, user.User{Email: "u1@example.com", Username: "u1"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	u2, _ := store.CreateUser(ctx, user.User{Email: "u2@example.com", Username: "u2"})

	assigned, err := svc.Assign(ctx, u1.Email, "A")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if !assigned.UserOwned() || *assigned.OwnerUserID != u1.ID {
		t.Fatalf("slot not assigned to u1: %+v", assigned)
	}

	logs, err := store.ListTransfers(ctx, assigned.ID)
	if err != nil {
		t.Fatalf("list transfers: %v", err)
	}
	if len(logs) != 1 || logs[0].ToOwnerType != slot.OwnerUser {
		t.Fatalf("expected one audit row, got %+v", logs)
	}

	if _, err := svc.Assign(ctx, u2.Email, slot.RootLabel); !apperr.IsCode(err, apperr.CodeCannotAssignRoot) {
		t.Fatalf("expected CANNOT_ASSIGN_ROOT, got %v", err)
	}
	if _, err := svc.Assign(ctx, u2.Email, "A"); !apperr.IsCode(err, apperr.CodeSlotAlreadyOwned) {
		t.Fatalf("expected SLOT_ALREADY_OWNED for owned slot, got %v", err)
	}
	if _, err := svc.Assign(ctx, u1.Email, "B"); !apperr.IsCode(err, apperr.CodeSlotAlreadyOwned) {
		t.Fatalf("expected SLOT_ALREADY_OWNED for second slot, got %v", err)
	}
	if _, err := svc.Assign(ctx, "ghost@example.com", "B"); !apperr.IsCode(err, apperr.CodeUserNotFound) {
		t.Fatalf("expected USER_NOT_FOUND, got %v", err)
	}
	if _, err := svc.Assign(ctx, u2.Email, "ZZ"); !apperr.IsCode(err, apperr.CodeSlotNotFound) {
		t.Fatalf("expected SLOT_NOT_FOUND, got %v", err)
	}
}

func TestService_ResetOwners(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)
	ctx := context.Background()

	if err := svc.Seed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	u, _ := store.CreateUser(ctx, user.User{Email: "u@example.com", Username: "u"})
	if _, err := svc.Assign(ctx, u.Email, "C"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	reset, err := svc.ResetOwners(ctx)
	if err != nil {
		t.Fatalf("reset owners: %v", err)
	}
	if reset != 1 {
		t.Fatalf("expected 1 reset, got %d", reset)
	}

	all, _ := store.ListSlots(ctx)
	for _, sl := range all {
		if sl.OwnerType != slot.OwnerPlatform || sl.OwnerUserID != nil {
			t.Fatalf("slot %s not reset: %+v", sl.Label, sl)
		}
	}
}

func TestService_TreeView(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)
	ctx := context.Background()

	if err := svc.Seed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	u, _ := store.CreateUser(ctx, user.User{Email: "u@example.com", Username: "u"})
	if _, err := svc.Assign(ctx, u.Email, "A"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	nodes, err := svc.TreeView(ctx, 1)
	if err != nil {
		t.Fatalf("tree view: %v", err)
	}
	if len(nodes) != 3 {
		t.Fatalf("expected root plus two children, got %d nodes", len(nodes))
	}
	if nodes[0].Slot.Label != slot.RootLabel {
		t.Fatalf("root not first: %+v", nodes[0].Slot)
	}
	if nodes[1].Owner == nil || nodes[1].Owner.ID != u.ID {
		t.Fatalf("owner projection missing on %+v", nodes[1])
	}

	all, err := svc.TreeView(ctx, -1)
	if err != nil {
		t.Fatalf("unfiltered tree view: %v", err)
	}
	if len(all) != 18 {
		t.Fatalf("expected 18 nodes unfiltered, got %d", len(all))
	}
}

func TestService_CheckTree(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)
	ctx := context.Background()

	if err := svc.Seed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}

	report, err := svc.CheckTree(ctx)
	if err != nil {
		t.Fatalf("check tree: %v", err)
	}
	if !report.Valid || report.SlotCount != 18 || report.MaxChildren != 2 || len(report.Issues) != 0 {
		t.Fatalf("seed tree should be valid: %+v", report)
	}

	again, err := svc.CheckTree(ctx)
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if again.Valid != report.Valid || again.SlotCount != report.SlotCount || again.MaxChildren != report.MaxChildren {
		t.Fatalf("integrity check not idempotent: %+v vs %+v", report, again)
	}

	// A third child under the root and a dangling parent reference must
	// both be flagged.
	root, _ := store.FindRoot(ctx)
	if _, err := store.CreateSlot(ctx, slot.Slot{Label: "X1", Level: 1, Position: 99, ParentID: &root.ID, OwnerType: slot.OwnerPlatform}); err != nil {
		t.Fatalf("create extra child: %v", err)
	}
	ghost := "no-such-slot"
	if _, err := store.CreateSlot(ctx, slot.Slot{Label: "X2", Level: 9, Position: 100, ParentID: &ghost, OwnerType: slot.OwnerPlatform}); err != nil {
		t.Fatalf("create dangling slot: %v", err)
	}

	report, err = svc.CheckTree(ctx)
	if err != nil {
		t.Fatalf("check broken tree: %v", err)
	}
	if report.Valid {
		t.Fatal("broken tree reported valid")
	}
	if report.MaxChildren != 3 {
		t.Fatalf("expected max branching 3, got %d", report.MaxChildren)
	}

	var tooMany, missing bool
	for _, issue := range report.Issues {
		switch issue.Code {
		case slot.IssueTooManyChildren:
			tooMany = issue.ParentID == root.ID && issue.Count == 3
		case slot.IssueMissingParent:
			missing = issue.MissingID != nil && *issue.MissingID == ghost
		}
	}
	if !tooMany || !missing {
		t.Fatalf("expected both issue kinds, got %+v", report.Issues)
	}
}
