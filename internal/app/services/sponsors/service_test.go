package sponsors

import (
	"context"
	"testing"

	"github.com/yigicoin/platform/internal/app/domain/slot"
	"github.com/yigicoin/platform/internal/app/domain/sponsor"
	"github.com/yigicoin/platform/internal/app/domain/user"
	"github.com/yigicoin/platform/internal/app/storage/memory"
	"github.com/yigicoin/platform/internal/apperr"
)

// chain builds root -> A -> B -> C and returns the created slots in order.
func chain(t *testing.T, store *memory.Store, owners []*string) []slot.Slot {
	t.Helper()
	labels := []string{slot.RootLabel, "A", "B", "C"}
	slots := make([]slot.Slot, 0, len(labels))
	var parentID *string
	for i, label := range labels {
		ownerType := slot.OwnerPlatform
		var ownerID *string
		if i < len(owners) && owners[i] != nil {
			ownerType = slot.OwnerUser
			ownerID = owners[i]
		}
		sl, err := store.CreateSlot(context.Background(), slot.Slot{
			Label:       label,
			Level:       i,
			Position:    i,
			ParentID:    parentID,
			OwnerType:   ownerType,
			OwnerUserID: ownerID,
		})
		if err != nil {
			t.Fatalf("create slot %s: %v", label, err)
		}
		slots = append(slots, sl)
		id := sl.ID
		parentID = &id
	}
	return slots
}

func TestResolve_UserReceiver(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	payer, _ := store.CreateUser(ctx, user.User{Email: "payer@example.com", Username: "payer"})
	upline, _ := store.CreateUser(ctx, user.User{Email: "upline@example.com", Username: "upline"})

	// root(platform) -> A(upline) -> B(payer) -> C(platform)
	slots := chain(t, store, []*string{nil, &upline.ID, &payer.ID, nil})

	svc := New(store, store, nil)
	res, err := svc.Resolve(ctx, payer.Email, "registro")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.ReceiverType != sponsor.ReceiverUser || res.ReceiverUserID != upline.ID {
		t.Fatalf("expected upline receiver, got %+v", res)
	}
	if res.ReceiverSlotID != slots[1].ID || res.LevelsAscended != 1 {
		t.Fatalf("unexpected ascent: %+v", res)
	}
	if res.AmountUSD != 10 {
		t.Fatalf("registro price should be 10, got %v", res.AmountUSD)
	}
}

func TestResolve_PlatformSlotReached(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	payer, _ := store.CreateUser(ctx, user.User{Email: "payer@example.com", Username: "payer"})

	// root(platform) -> A(platform) -> B(payer); invitado ascends two
	// levels onto the platform-owned root.
	slots := chain(t, store, []*string{nil, nil, &payer.ID})

	svc := New(store, store, nil)
	res, err := svc.Resolve(ctx, payer.Email, "invitado")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.ReceiverType != sponsor.ReceiverPlatform || res.ReceiverSlotID != slots[0].ID {
		t.Fatalf("expected platform at root, got %+v", res)
	}
	if res.LevelsAscended != 2 {
		t.Fatalf("expected 2 levels ascended, got %d", res.LevelsAscended)
	}
}

func TestResolve_AscentExceedsTreeHeight(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	payer, _ := store.CreateUser(ctx, user.User{Email: "payer@example.com", Username: "payer"})
	slots := chain(t, store, []*string{nil, &payer.ID})

	svc := New(store, store, nil)
	res, err := svc.Resolve(ctx, payer.Email, "elite")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.ReceiverType != sponsor.ReceiverPlatform || res.ReceiverSlotID != slots[0].ID {
		t.Fatalf("ascent past the root must stop at the root: %+v", res)
	}
	if res.LevelsAscended != 1 {
		t.Fatalf("expected ascent to stop after 1 level, got %d", res.LevelsAscended)
	}
}

func TestResolve_PayerWithoutSlot(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	payer, _ := store.CreateUser(ctx, user.User{Email: "payer@example.com", Username: "payer"})
	slots := chain(t, store, nil)

	svc := New(store, store, nil)
	results, err := svc.Preview(ctx, payer.Email)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if len(results) != 6 {
		t.Fatalf("expected six tiers, got %d", len(results))
	}
	for _, res := range results {
		if res.ReceiverType != sponsor.ReceiverPlatform || res.ReceiverSlotID != slots[0].ID {
			t.Fatalf("slotless payer must pay platform at root for tier %s: %+v", res.Tier, res)
		}
	}
}

func TestResolve_Errors(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	svc := New(store, store, nil)

	payer, _ := store.CreateUser(ctx, user.User{Email: "payer@example.com", Username: "payer"})

	if _, err := svc.Resolve(ctx, payer.Email, "platinum"); !apperr.IsCode(err, apperr.CodeUnknownTier) {
		t.Fatalf("expected UNKNOWN_TIER, got %v", err)
	}
	if _, err := svc.Resolve(ctx, "ghost@example.com", "registro"); !apperr.IsCode(err, apperr.CodeUserNotFound) {
		t.Fatalf("expected USER_NOT_FOUND, got %v", err)
	}
	if _, err := svc.Resolve(ctx, payer.Email, "registro"); !apperr.IsCode(err, apperr.CodeTreeNotInitialized) {
		t.Fatalf("expected TREE_NOT_INITIALIZED, got %v", err)
	}
}
