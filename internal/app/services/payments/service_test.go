package payments

import (
	"context"
	"testing"

	"github.com/yigicoin/platform/internal/app/domain/payment"
	"github.com/yigicoin/platform/internal/app/domain/slot"
	"github.com/yigicoin/platform/internal/app/domain/sponsor"
	"github.com/yigicoin/platform/internal/app/domain/user"
	"github.com/yigicoin/platform/internal/app/services/sponsors"
	"github.com/yigicoin/platform/internal/app/storage/memory"
	"github.com/yigicoin/platform/internal/apperr"
)

func setup(t *testing.T) (*memory.Store, *Service, user.User, user.User) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	payer, err := store.CreateUser(ctx, user.User{Email: "payer@example.com", Username: "payer"})
	if err != nil {
		t.Fatalf("create payer: %v", err)
	}
	upline, err := store.CreateUser(ctx, user.User{Email: "upline@example.com", Username: "upline"})
	if err != nil {
		t.Fatalf("create upline: %v", err)
	}

	// root(platform) -> A(upline) -> C(payer)
	root, err := store.CreateSlot(ctx, slot.Slot{Label: slot.RootLabel, Level: 0, Position: 0, OwnerType: slot.OwnerPlatform})
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	a, err := store.CreateSlot(ctx, slot.Slot{Label: "A", Level: 1, Position: 1, ParentID: &root.ID, OwnerType: slot.OwnerUser, OwnerUserID: &upline.ID})
	if err != nil {
		t.Fatalf("create A: %v", err)
	}
	if _, err := store.CreateSlot(ctx, slot.Slot{Label: "C", Level: 2, Position: 3, ParentID: &a.ID, OwnerType: slot.OwnerUser, OwnerUserID: &payer.ID}); err != nil {
		t.Fatalf("create C: %v", err)
	}

	resolver := sponsors.New(store, store, nil)
	svc := New(store, store, resolver, nil)
	return store, svc, payer, upline
}

func TestService_RecordResolvesSponsor(t *testing.T) {
	store, svc, payer, upline := setup(t)
	ctx := context.Background()

	p, err := svc.Record(ctx, payer.Email, "registro", payment.ProviderPayPal, "pp-1")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if p.Tier != sponsor.TierRegistro || p.AmountUSD != 10 {
		t.Fatalf("tier pricing wrong: %+v", p)
	}
	if p.ReceiverType != sponsor.ReceiverUser || p.ReceiverUserID == nil || *p.ReceiverUserID != upline.ID {
		t.Fatalf("sponsor decision not persisted: %+v", p)
	}
	if p.Status != payment.StatusRecorded {
		t.Fatalf("new payment should be recorded: %s", p.Status)
	}

	listed, err := svc.List(ctx, payer.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected one payment, got %d", len(listed))
	}

	// Paying the registro tier leaves the payer at registro.
	after, _ := store.GetUser(ctx, payer.ID)
	if after.Rank != user.RankRegistro {
		t.Fatalf("unexpected rank: %s", after.Rank)
	}
}

func TestService_RecordUpgradesRank(t *testing.T) {
	store, svc, payer, _ := setup(t)
	ctx := context.Background()

	if _, err := svc.Record(ctx, payer.Email, "vip", payment.ProviderMetaMask, "0xabc"); err != nil {
		t.Fatalf("record: %v", err)
	}
	after, _ := store.GetUser(ctx, payer.ID)
	if after.Rank != user.RankVIP {
		t.Fatalf("payer not upgraded to vip: %s", after.Rank)
	}

	// A lower tier never demotes.
	if _, err := svc.Record(ctx, payer.Email, "invitado", payment.ProviderManual, ""); err != nil {
		t.Fatalf("record lower tier: %v", err)
	}
	after, _ = store.GetUser(ctx, payer.ID)
	if after.Rank != user.RankVIP {
		t.Fatalf("lower tier demoted payer to %s", after.Rank)
	}
}

func TestService_Transitions(t *testing.T) {
	_, svc, payer, _ := setup(t)
	ctx := context.Background()

	p, err := svc.Record(ctx, payer.Email, "miembro", payment.ProviderPayPal, "pp-2")
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	if _, err := svc.Refund(ctx, p.ID); !apperr.IsCode(err, apperr.CodeConflict) {
		t.Fatalf("refund before settlement must conflict, got %v", err)
	}

	settled, err := svc.Settle(ctx, p.ID, "pp-2-settled")
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if settled.Status != payment.StatusSettled || settled.ProviderRef != "pp-2-settled" {
		t.Fatalf("settlement not applied: %+v", settled)
	}

	refunded, err := svc.Refund(ctx, p.ID)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if refunded.Status != payment.StatusRefunded {
		t.Fatalf("refund not applied: %+v", refunded)
	}
}

func TestService_RecordErrors(t *testing.T) {
	_, svc, payer, _ := setup(t)
	ctx := context.Background()

	if _, err := svc.Record(ctx, payer.Email, "platinum", payment.ProviderPayPal, ""); !apperr.IsCode(err, apperr.CodeUnknownTier) {
		t.Fatalf("expected UNKNOWN_TIER, got %v", err)
	}
	if _, err := svc.Record(ctx, "ghost@example.com", "registro", payment.ProviderPayPal, ""); !apperr.IsCode(err, apperr.CodeUserNotFound) {
		t.Fatalf("expected USER_NOT_FOUND, got %v", err)
	}
	if _, err := svc.Record(ctx, payer.Email, "registro", payment.Provider("VENMO"), ""); err == nil {
		t.Fatal("unknown provider accepted")
	}
}
