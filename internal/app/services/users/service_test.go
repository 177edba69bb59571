package users

import (
	"context"
	"testing"

	"github.com/yigicoin/platform/internal/app/domain/user"
	"github.com/yigicoin/platform/internal/app/storage/memory"
	"github.com/yigicoin/platform/internal/apperr"
)

func TestService_Register(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	u, err := svc.Register(ctx, " Alice@Example.COM ", "alice")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Fatalf("email not normalised: %s", u.Email)
	}
	if u.Rank != user.RankRegistro {
		t.Fatalf("new users start at registro: %s", u.Rank)
	}

	if _, err := svc.Register(ctx, "alice@example.com", "alice2"); !apperr.IsCode(err, apperr.CodeConflict) {
		t.Fatalf("duplicate email must conflict, got %v", err)
	}
	if _, err := svc.Register(ctx, "", "nobody"); err == nil {
		t.Fatal("empty email accepted")
	}

	found, err := svc.GetByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if found.ID != u.ID {
		t.Fatalf("lookup returned wrong user: %s", found.ID)
	}
	if _, err := svc.GetByEmail(ctx, "ghost@example.com"); !apperr.IsCode(err, apperr.CodeUserNotFound) {
		t.Fatalf("expected USER_NOT_FOUND, got %v", err)
	}
}

func TestService_SetRank(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	u, err := svc.Register(ctx, "bob@example.com", "bob")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	updated, err := svc.SetRank(ctx, u.ID, user.RankPremium)
	if err != nil {
		t.Fatalf("set rank: %v", err)
	}
	if updated.Rank != user.RankPremium {
		t.Fatalf("rank not updated: %s", updated.Rank)
	}

	if _, err := svc.SetRank(ctx, u.ID, user.Rank("baron")); err == nil {
		t.Fatal("unknown rank accepted")
	}
	if _, err := svc.SetRank(ctx, "ghost", user.RankVIP); !apperr.IsCode(err, apperr.CodeUserNotFound) {
		t.Fatalf("expected USER_NOT_FOUND, got %v", err)
	}
}
