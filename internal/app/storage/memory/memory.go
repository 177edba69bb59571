// Package memory is an in-memory implementation of the storage interfaces.
// It is safe for concurrent use and is primarily intended for tests and
// local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yigicoin/platform/internal/app/domain/payment"
	"github.com/yigicoin/platform/internal/app/domain/points"
	"github.com/yigicoin/platform/internal/app/domain/raffle"
	"github.com/yigicoin/platform/internal/app/domain/sanction"
	"github.com/yigicoin/platform/internal/app/domain/slot"
	"github.com/yigicoin/platform/internal/app/domain/user"
	"github.com/yigicoin/platform/internal/app/storage"
)

// Store is the in-memory backing store. A single mutex guards all tables so
// Transact observes and publishes a consistent snapshot.
type Store struct {
	mu           sync.RWMutex
	nextID       int64
	users        map[string]user.User
	usersByEmail map[string]string
	slots        map[string]slot.Slot
	transfers    []slot.TransferLog
	sanctions    map[string]sanction.AccountSanction
	ledger       map[string][]points.LedgerEntry
	payments     map[string]payment.Payment
	rounds       map[string]raffle.Round
	tickets      map[string][]raffle.Ticket
	adClaims     map[string][]time.Time
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.SlotStore = (*Store)(nil)
var _ storage.SanctionStore = (*Store)(nil)
var _ storage.PointsStore = (*Store)(nil)
var _ storage.PaymentStore = (*Store)(nil)
var _ storage.RaffleStore = (*Store)(nil)
var _ storage.AdClaimStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:       1,
		users:        make(map[string]user.User),
		usersByEmail: make(map[string]string),
		slots:        make(map[string]slot.Slot),
		sanctions:    make(map[string]sanction.AccountSanction),
		ledger:       make(map[string][]points.LedgerEntry),
		payments:     make(map[string]payment.Payment),
		rounds:       make(map[string]raffle.Round),
		tickets:      make(map[string][]raffle.Ticket),
		adClaims:     make(map[string][]time.Time),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(u.Email))
	if email == "" {
		return user.User{}, fmt.Errorf("email is required")
	}
	if _, exists := s.usersByEmail[email]; exists {
		return user.User{}, storage.ErrAlreadyExists
	}
	if u.ID == "" {
		u.ID = s.nextIDLocked()
	} else if _, exists := s.users[u.ID]; exists {
		return user.User{}, storage.ErrAlreadyExists
	}

	now := time.Now().UTC()
	u.Email = email
	u.CreatedAt = now
	u.UpdatedAt = now
	u.CounterExpiresAt = cloneTime(u.CounterExpiresAt)

	s.users[u.ID] = u
	s.usersByEmail[email] = u.ID
	return cloneUser(u), nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateUserLocked(u)
}

func (s *Store) updateUserLocked(u user.User) (user.User, error) {
	original, ok := s.users[u.ID]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}

	u.Email = original.Email
	u.CreatedAt = original.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	u.CounterExpiresAt = cloneTime(u.CounterExpiresAt)

	s.users[u.ID] = u
	return cloneUser(u), nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return cloneUser(s.users[id]), nil
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		result = append(result, cloneUser(u))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// SlotStore implementation ----------------------------------------------------

func (s *Store) CreateSlot(_ context.Context, sl slot.Slot) (slot.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sl.ID == "" {
		sl.ID = s.nextIDLocked()
	} else if _, exists := s.slots[sl.ID]; exists {
		return slot.Slot{}, storage.ErrAlreadyExists
	}
	if sl.Label != "" {
		for _, other := range s.slots {
			if other.Label == sl.Label {
				return slot.Slot{}, storage.ErrAlreadyExists
			}
		}
	}

	now := time.Now().UTC()
	sl.Version = 1
	sl.CreatedAt = now
	sl.UpdatedAt = now
	sl.ParentID = cloneString(sl.ParentID)
	sl.OwnerUserID = cloneString(sl.OwnerUserID)

	s.slots[sl.ID] = sl
	return cloneSlot(sl), nil
}

func (s *Store) GetSlot(_ context.Context, id string) (slot.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getSlotLocked(id)
}

func (s *Store) getSlotLocked(id string) (slot.Slot, error) {
	sl, ok := s.slots[id]
	if !ok {
		return slot.Slot{}, storage.ErrNotFound
	}
	return cloneSlot(sl), nil
}

func (s *Store) GetSlotByLabel(_ context.Context, label string) (slot.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sl := range s.slots {
		if sl.Label == label {
			return cloneSlot(sl), nil
		}
	}
	return slot.Slot{}, storage.ErrNotFound
}

func (s *Store) ListSlots(_ context.Context) ([]slot.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listSlotsLocked(), nil
}

func (s *Store) listSlotsLocked() []slot.Slot {
	result := make([]slot.Slot, 0, len(s.slots))
	for _, sl := range s.slots {
		result = append(result, cloneSlot(sl))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Level != result[j].Level {
			return result[i].Level < result[j].Level
		}
		return result[i].Position < result[j].Position
	})
	return result
}

func (s *Store) ListChildren(_ context.Context, parentID string) ([]slot.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listChildrenLocked(parentID), nil
}

func (s *Store) listChildrenLocked(parentID string) []slot.Slot {
	var result []slot.Slot
	for _, sl := range s.slots {
		if sl.ParentID != nil && *sl.ParentID == parentID {
			result = append(result, cloneSlot(sl))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Position < result[j].Position })
	return result
}

func (s *Store) FindRoot(_ context.Context) (slot.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findRootLocked()
}

func (s *Store) findRootLocked() (slot.Slot, error) {
	var roots []slot.Slot
	for _, sl := range s.slots {
		if sl.ParentID == nil {
			roots = append(roots, cloneSlot(sl))
		}
	}
	if len(roots) == 0 {
		return slot.Slot{}, storage.ErrNotFound
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].Position < roots[j].Position })
	return roots[0], nil
}

func (s *Store) FindOwnedSlot(_ context.Context, userID string) (slot.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findOwnedSlotLocked(userID)
}

func (s *Store) findOwnedSlotLocked(userID string) (slot.Slot, error) {
	var owned []slot.Slot
	for _, sl := range s.slots {
		if sl.OwnerType == slot.OwnerUser && sl.OwnerUserID != nil && *sl.OwnerUserID == userID {
			owned = append(owned, cloneSlot(sl))
		}
	}
	if len(owned) == 0 {
		return slot.Slot{}, storage.ErrNotFound
	}
	sort.Slice(owned, func(i, j int) bool {
		if owned[i].Level != owned[j].Level {
			return owned[i].Level < owned[j].Level
		}
		return owned[i].Position < owned[j].Position
	})
	return owned[0], nil
}

func (s *Store) UpdateSlotOwner(_ context.Context, slotID string, expectVersion int64, ownerType slot.OwnerType, ownerUserID *string) (slot.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateSlotOwnerLocked(slotID, expectVersion, ownerType, ownerUserID)
}

func (s *Store) updateSlotOwnerLocked(slotID string, expectVersion int64, ownerType slot.OwnerType, ownerUserID *string) (slot.Slot, error) {
	sl, ok := s.slots[slotID]
	if !ok {
		return slot.Slot{}, storage.ErrNotFound
	}
	if sl.Version != expectVersion {
		return slot.Slot{}, storage.ErrVersionConflict
	}
	if ownerType == slot.OwnerUser && ownerUserID != nil {
		for _, other := range s.slots {
			if other.ID != slotID && other.OwnerType == slot.OwnerUser &&
				other.OwnerUserID != nil && *other.OwnerUserID == *ownerUserID {
				return slot.Slot{}, storage.ErrAlreadyExists
			}
		}
	}

	sl.OwnerType = ownerType
	sl.OwnerUserID = cloneString(ownerUserID)
	sl.Version++
	sl.UpdatedAt = time.Now().UTC()

	s.slots[slotID] = sl
	return cloneSlot(sl), nil
}

func (s *Store) AppendTransfer(_ context.Context, log slot.TransferLog) (slot.TransferLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendTransferLocked(log), nil
}

func (s *Store) appendTransferLocked(log slot.TransferLog) slot.TransferLog {
	if log.ID == "" {
		log.ID = s.nextIDLocked()
	}
	log.CreatedAt = time.Now().UTC()
	log.FromOwnerUserID = cloneString(log.FromOwnerUserID)
	log.ToOwnerUserID = cloneString(log.ToOwnerUserID)
	s.transfers = append(s.transfers, log)
	return cloneTransfer(log)
}

func (s *Store) ListTransfers(_ context.Context, slotID string) ([]slot.TransferLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []slot.TransferLog
	for _, log := range s.transfers {
		if slotID == "" || log.SlotID == slotID {
			result = append(result, cloneTransfer(log))
		}
	}
	return result, nil
}

// Transact runs fn under the store's write lock, staging all writes and
// publishing them only when fn succeeds.
func (s *Store) Transact(ctx context.Context, fn func(tx storage.SlotTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Stage against copies so a failed fn leaves the store untouched.
	backupSlots := make(map[string]slot.Slot, len(s.slots))
	for id, sl := range s.slots {
		backupSlots[id] = cloneSlot(sl)
	}
	backupUsers := make(map[string]user.User, len(s.users))
	for id, u := range s.users {
		backupUsers[id] = cloneUser(u)
	}
	backupTransfers := len(s.transfers)
	backupSanctions := make(map[string]sanction.AccountSanction, len(s.sanctions))
	for id, sn := range s.sanctions {
		backupSanctions[id] = sn
	}
	backupNextID := s.nextID

	if err := fn(&memTx{store: s}); err != nil {
		s.slots = backupSlots
		s.users = backupUsers
		s.transfers = s.transfers[:backupTransfers]
		s.sanctions = backupSanctions
		s.nextID = backupNextID
		return err
	}
	return nil
}

// memTx exposes the locked store as a SlotTx. The caller already holds the
// write lock for the whole transaction.
type memTx struct {
	store *Store
}

var _ storage.SlotTx = (*memTx)(nil)

func (t *memTx) GetSlot(_ context.Context, id string) (slot.Slot, error) {
	return t.store.getSlotLocked(id)
}

func (t *memTx) GetSlotByLabel(_ context.Context, label string) (slot.Slot, error) {
	for _, sl := range t.store.slots {
		if sl.Label == label {
			return cloneSlot(sl), nil
		}
	}
	return slot.Slot{}, storage.ErrNotFound
}

func (t *memTx) ListSlots(_ context.Context) ([]slot.Slot, error) {
	return t.store.listSlotsLocked(), nil
}

func (t *memTx) ListChildren(_ context.Context, parentID string) ([]slot.Slot, error) {
	return t.store.listChildrenLocked(parentID), nil
}

func (t *memTx) FindRoot(_ context.Context) (slot.Slot, error) {
	return t.store.findRootLocked()
}

func (t *memTx) FindOwnedSlot(_ context.Context, userID string) (slot.Slot, error) {
	return t.store.findOwnedSlotLocked(userID)
}

func (t *memTx) UpdateSlotOwner(_ context.Context, slotID string, expectVersion int64, ownerType slot.OwnerType, ownerUserID *string) (slot.Slot, error) {
	return t.store.updateSlotOwnerLocked(slotID, expectVersion, ownerType, ownerUserID)
}

func (t *memTx) AppendTransfer(_ context.Context, log slot.TransferLog) (slot.TransferLog, error) {
	return t.store.appendTransferLocked(log), nil
}

func (t *memTx) GetUser(_ context.Context, id string) (user.User, error) {
	u, ok := t.store.users[id]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return cloneUser(u), nil
}

func (t *memTx) UpdateUserCounter(_ context.Context, userID string, expiresAt time.Time) (user.User, error) {
	u, ok := t.store.users[userID]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	expires := expiresAt.UTC()
	u.CounterExpiresAt = &expires
	u.UpdatedAt = time.Now().UTC()
	t.store.users[userID] = u
	return cloneUser(u), nil
}

func (t *memTx) CreateSanction(_ context.Context, sn sanction.AccountSanction) (sanction.AccountSanction, error) {
	return t.store.createSanctionLocked(sn)
}

// SanctionStore implementation ------------------------------------------------

func (s *Store) CreateSanction(_ context.Context, sn sanction.AccountSanction) (sanction.AccountSanction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createSanctionLocked(sn)
}

func (s *Store) createSanctionLocked(sn sanction.AccountSanction) (sanction.AccountSanction, error) {
	if sn.ID == "" {
		sn.ID = s.nextIDLocked()
	} else if _, exists := s.sanctions[sn.ID]; exists {
		return sanction.AccountSanction{}, storage.ErrAlreadyExists
	}

	now := time.Now().UTC()
	sn.CreatedAt = now
	sn.UpdatedAt = now
	if sn.Status == "" {
		sn.Status = sanction.StatusPending
	}

	s.sanctions[sn.ID] = sn
	return sn, nil
}

func (s *Store) UpdateSanction(_ context.Context, sn sanction.AccountSanction) (sanction.AccountSanction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.sanctions[sn.ID]
	if !ok {
		return sanction.AccountSanction{}, storage.ErrNotFound
	}
	sn.CreatedAt = original.CreatedAt
	sn.UpdatedAt = time.Now().UTC()
	s.sanctions[sn.ID] = sn
	return sn, nil
}

func (s *Store) GetSanction(_ context.Context, id string) (sanction.AccountSanction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sn, ok := s.sanctions[id]
	if !ok {
		return sanction.AccountSanction{}, storage.ErrNotFound
	}
	return sn, nil
}

func (s *Store) ListSanctions(_ context.Context, userID string) ([]sanction.AccountSanction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []sanction.AccountSanction
	for _, sn := range s.sanctions {
		if userID == "" || sn.UserID == userID {
			result = append(result, sn)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) ListDueSanctions(_ context.Context, now time.Time) ([]sanction.AccountSanction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []sanction.AccountSanction
	for _, sn := range s.sanctions {
		if sn.Status == sanction.StatusPending && !sn.DeadlineAt.After(now) {
			result = append(result, sn)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// PointsStore implementation --------------------------------------------------

func (s *Store) AppendLedger(_ context.Context, entry points.LedgerEntry) (points.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = s.nextIDLocked()
	}
	entry.CreatedAt = time.Now().UTC()
	s.ledger[entry.UserID] = append(s.ledger[entry.UserID], entry)
	return entry, nil
}

func (s *Store) ListLedger(_ context.Context, userID string) ([]points.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.ledger[userID]
	result := make([]points.LedgerEntry, len(entries))
	copy(result, entries)
	return result, nil
}

// PaymentStore implementation -------------------------------------------------

func (s *Store) CreatePayment(_ context.Context, p payment.Payment) (payment.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = s.nextIDLocked()
	} else if _, exists := s.payments[p.ID]; exists {
		return payment.Payment{}, storage.ErrAlreadyExists
	}

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.ReceiverUserID = cloneString(p.ReceiverUserID)
	s.payments[p.ID] = p
	return p, nil
}

func (s *Store) UpdatePayment(_ context.Context, p payment.Payment) (payment.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.payments[p.ID]
	if !ok {
		return payment.Payment{}, storage.ErrNotFound
	}
	p.CreatedAt = original.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	p.ReceiverUserID = cloneString(p.ReceiverUserID)
	s.payments[p.ID] = p
	return p, nil
}

func (s *Store) GetPayment(_ context.Context, id string) (payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.payments[id]
	if !ok {
		return payment.Payment{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) ListPayments(_ context.Context, userID string) ([]payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []payment.Payment
	for _, p := range s.payments {
		if userID == "" || p.UserID == userID {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// RaffleStore implementation --------------------------------------------------

func (s *Store) CreateRound(_ context.Context, r raffle.Round) (raffle.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = s.nextIDLocked()
	} else if _, exists := s.rounds[r.ID]; exists {
		return raffle.Round{}, storage.ErrAlreadyExists
	}

	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	s.rounds[r.ID] = r
	return r, nil
}

func (s *Store) UpdateRound(_ context.Context, r raffle.Round) (raffle.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.rounds[r.ID]
	if !ok {
		return raffle.Round{}, storage.ErrNotFound
	}
	r.CreatedAt = original.CreatedAt
	r.UpdatedAt = time.Now().UTC()
	s.rounds[r.ID] = r
	return r, nil
}

func (s *Store) GetRound(_ context.Context, id string) (raffle.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rounds[id]
	if !ok {
		return raffle.Round{}, storage.ErrNotFound
	}
	return r, nil
}

func (s *Store) ListRounds(_ context.Context) ([]raffle.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]raffle.Round, 0, len(s.rounds))
	for _, r := range s.rounds {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) CreateTicket(_ context.Context, t raffle.Ticket) (raffle.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = s.nextIDLocked()
	}
	t.PurchasedAt = time.Now().UTC()
	s.tickets[t.RoundID] = append(s.tickets[t.RoundID], t)
	return t, nil
}

func (s *Store) ListTickets(_ context.Context, roundID string) ([]raffle.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tickets := s.tickets[roundID]
	result := make([]raffle.Ticket, len(tickets))
	copy(result, tickets)
	return result, nil
}

// AdClaimStore implementation -------------------------------------------------

func (s *Store) RecordClaim(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.adClaims[userID] = append(s.adClaims[userID], at.UTC())
	return nil
}

func (s *Store) ClaimsSince(_ context.Context, userID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, at := range s.adClaims[userID] {
		if !at.Before(since) {
			count++
		}
	}
	return count, nil
}

// clone helpers ---------------------------------------------------------------

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneUser(u user.User) user.User {
	u.CounterExpiresAt = cloneTime(u.CounterExpiresAt)
	return u
}

func cloneSlot(sl slot.Slot) slot.Slot {
	sl.ParentID = cloneString(sl.ParentID)
	sl.OwnerUserID = cloneString(sl.OwnerUserID)
	return sl
}

func cloneTransfer(log slot.TransferLog) slot.TransferLog {
	log.FromOwnerUserID = cloneString(log.FromOwnerUserID)
	log.ToOwnerUserID = cloneString(log.ToOwnerUserID)
	return log
}
