// Package storage declares the persistence interfaces consumed by the
// platform services. Nil stores default to the in-memory implementation.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/yigicoin/platform/internal/app/domain/payment"
	"github.com/yigicoin/platform/internal/app/domain/points"
	"github.com/yigicoin/platform/internal/app/domain/raffle"
	"github.com/yigicoin/platform/internal/app/domain/sanction"
	"github.com/yigicoin/platform/internal/app/domain/slot"
	"github.com/yigicoin/platform/internal/app/domain/user"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrVersionConflict is returned when an ownership write loses an optimistic
// concurrency check.
var ErrVersionConflict = errors.New("slot version conflict")

// ErrAlreadyExists is returned on unique constraint violations, including
// the one-slot-per-user rule.
var ErrAlreadyExists = errors.New("record already exists")

// UserStore persists platform members.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
}

// SlotReader is the read surface shared by SlotStore and SlotTx.
type SlotReader interface {
	GetSlot(ctx context.Context, id string) (slot.Slot, error)
	GetSlotByLabel(ctx context.Context, label string) (slot.Slot, error)
	ListSlots(ctx context.Context) ([]slot.Slot, error)
	ListChildren(ctx context.Context, parentID string) ([]slot.Slot, error)
	FindRoot(ctx context.Context) (slot.Slot, error)
	// FindOwnedSlot returns the user's slot, taking the lowest level then
	// position when several match.
	FindOwnedSlot(ctx context.Context, userID string) (slot.Slot, error)
}

// SlotStore persists the referral tree and its audit trail.
type SlotStore interface {
	SlotReader
	CreateSlot(ctx context.Context, s slot.Slot) (slot.Slot, error)
	// UpdateSlotOwner rewrites ownership iff the stored version matches
	// expectVersion; the stored version is incremented on success.
	UpdateSlotOwner(ctx context.Context, slotID string, expectVersion int64, ownerType slot.OwnerType, ownerUserID *string) (slot.Slot, error)
	AppendTransfer(ctx context.Context, log slot.TransferLog) (slot.TransferLog, error)
	ListTransfers(ctx context.Context, slotID string) ([]slot.TransferLog, error)
	// Transact runs fn inside one all-or-nothing transaction over slots,
	// users and sanctions.
	Transact(ctx context.Context, fn func(tx SlotTx) error) error
}

// SlotTx is the mutation surface available inside a slot transaction. All
// reads observe the transaction's snapshot.
type SlotTx interface {
	SlotReader
	UpdateSlotOwner(ctx context.Context, slotID string, expectVersion int64, ownerType slot.OwnerType, ownerUserID *string) (slot.Slot, error)
	AppendTransfer(ctx context.Context, log slot.TransferLog) (slot.TransferLog, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	UpdateUserCounter(ctx context.Context, userID string, expiresAt time.Time) (user.User, error)
	CreateSanction(ctx context.Context, s sanction.AccountSanction) (sanction.AccountSanction, error)
}

// SanctionStore persists account sanctions outside the expropriation
// transaction.
type SanctionStore interface {
	CreateSanction(ctx context.Context, s sanction.AccountSanction) (sanction.AccountSanction, error)
	UpdateSanction(ctx context.Context, s sanction.AccountSanction) (sanction.AccountSanction, error)
	GetSanction(ctx context.Context, id string) (sanction.AccountSanction, error)
	ListSanctions(ctx context.Context, userID string) ([]sanction.AccountSanction, error)
	ListDueSanctions(ctx context.Context, now time.Time) ([]sanction.AccountSanction, error)
}

// PointsStore persists the points ledger.
type PointsStore interface {
	AppendLedger(ctx context.Context, entry points.LedgerEntry) (points.LedgerEntry, error)
	ListLedger(ctx context.Context, userID string) ([]points.LedgerEntry, error)
}

// PaymentStore persists recorded tier payments.
type PaymentStore interface {
	CreatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error)
	UpdatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error)
	GetPayment(ctx context.Context, id string) (payment.Payment, error)
	ListPayments(ctx context.Context, userID string) ([]payment.Payment, error)
}

// RaffleStore persists raffle rounds and tickets.
type RaffleStore interface {
	CreateRound(ctx context.Context, r raffle.Round) (raffle.Round, error)
	UpdateRound(ctx context.Context, r raffle.Round) (raffle.Round, error)
	GetRound(ctx context.Context, id string) (raffle.Round, error)
	ListRounds(ctx context.Context) ([]raffle.Round, error)
	CreateTicket(ctx context.Context, t raffle.Ticket) (raffle.Ticket, error)
	ListTickets(ctx context.Context, roundID string) ([]raffle.Ticket, error)
}

// AdClaimStore keeps rewarded ad claim history for rate capping. The memory
// implementation backs tests; Redis serves production.
type AdClaimStore interface {
	RecordClaim(ctx context.Context, userID string, at time.Time) error
	ClaimsSince(ctx context.Context, userID string, since time.Time) (int, error)
}
