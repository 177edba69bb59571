// Package points runs the points and totem economy: an append-only ledger
// with the balance materialised on the user record, plus rate-capped
// rewarded ad claims.
package points

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yigicoin/platform/internal/app/domain/points"
	"github.com/yigicoin/platform/internal/app/domain/user"
	"github.com/yigicoin/platform/internal/app/storage"
	"github.com/yigicoin/platform/internal/apperr"
	"github.com/yigicoin/platform/pkg/logger"
)

const (
	// adRewardPoints is credited per rewarded ad claim.
	adRewardPoints = 10
	// adClaimDailyCap bounds claims per rolling 24h window.
	adClaimDailyCap = 5
)

// Service manages user point balances.
type Service struct {
	users  storage.UserStore
	store  storage.PointsStore
	claims storage.AdClaimStore
	log    *logger.Logger
	now    func() time.Time
}

// New constructs a points service.
func New(users storage.UserStore, store storage.PointsStore, claims storage.AdClaimStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("points")
	}
	return &Service{users: users, store: store, claims: claims, log: log, now: time.Now}
}

// Credit adds points to a user's balance. The amount must be positive.
func (s *Service) Credit(ctx context.Context, userID string, amount int64, reference string) (points.LedgerEntry, error) {
	if amount <= 0 {
		return points.LedgerEntry{}, fmt.Errorf("credit amount must be positive, got %d", amount)
	}
	return s.apply(ctx, userID, points.KindEarn, amount, reference)
}

// Debit removes points from a user's balance, guarding against overdraw.
// The amount must be positive.
func (s *Service) Debit(ctx context.Context, userID string, amount int64, reference string) (points.LedgerEntry, error) {
	if amount <= 0 {
		return points.LedgerEntry{}, fmt.Errorf("debit amount must be positive, got %d", amount)
	}
	return s.apply(ctx, userID, points.KindSpend, -amount, reference)
}

// AwardTotem credits a totem bonus. The amount must be positive.
func (s *Service) AwardTotem(ctx context.Context, userID string, amount int64, reference string) (points.LedgerEntry, error) {
	if amount <= 0 {
		return points.LedgerEntry{}, fmt.Errorf("totem award must be positive, got %d", amount)
	}
	return s.apply(ctx, userID, points.KindTotemAward, amount, reference)
}

// Adjust applies an administrative correction, positive or negative.
func (s *Service) Adjust(ctx context.Context, userID string, amount int64, reference string) (points.LedgerEntry, error) {
	return s.apply(ctx, userID, points.KindAdjust, amount, reference)
}

// ClaimAdReward credits the rewarded-ad bonus, capped per rolling day.
func (s *Service) ClaimAdReward(ctx context.Context, userID string) (points.LedgerEntry, error) {
	now := s.now().UTC()
	count, err := s.claims.ClaimsSince(ctx, userID, now.Add(-24*time.Hour))
	if err != nil {
		return points.LedgerEntry{}, err
	}
	if count >= adClaimDailyCap {
		return points.LedgerEntry{}, apperr.New(apperr.CodeClaimLimitReached, "user %s reached the daily ad claim limit", userID)
	}

	entry, err := s.apply(ctx, userID, points.KindAdReward, adRewardPoints, "rewarded ad")
	if err != nil {
		return points.LedgerEntry{}, err
	}
	if err := s.claims.RecordClaim(ctx, userID, now); err != nil {
		return points.LedgerEntry{}, err
	}
	return entry, nil
}

// Balance returns the materialised balance.
func (s *Service) Balance(ctx context.Context, userID string) (int64, error) {
	u, err := s.getUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return u.Points, nil
}

// History returns a user's ledger.
func (s *Service) History(ctx context.Context, userID string) ([]points.LedgerEntry, error) {
	return s.store.ListLedger(ctx, userID)
}

func (s *Service) getUser(ctx context.Context, userID string) (user.User, error) {
	u, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return user.User{}, apperr.New(apperr.CodeUserNotFound, "user %s not found", userID)
	}
	return u, err
}

// apply writes one ledger movement and materialises the new balance on the
// user record.
func (s *Service) apply(ctx context.Context, userID string, kind points.Kind, amount int64, reference string) (points.LedgerEntry, error) {
	if amount == 0 {
		return points.LedgerEntry{}, fmt.Errorf("amount must be non-zero")
	}

	u, err := s.getUser(ctx, userID)
	if err != nil {
		return points.LedgerEntry{}, err
	}

	balance := u.Points + amount
	if balance < 0 {
		return points.LedgerEntry{}, apperr.New(apperr.CodeInsufficientPoints, "user %s has %d points, needs %d", userID, u.Points, -amount)
	}

	entry, err := s.store.AppendLedger(ctx, points.LedgerEntry{
		UserID:    userID,
		Kind:      kind,
		Amount:    amount,
		Balance:   balance,
		Reference: reference,
	})
	if err != nil {
		return points.LedgerEntry{}, err
	}

	u.Points = balance
	if _, err := s.users.UpdateUser(ctx, u); err != nil {
		return points.LedgerEntry{}, err
	}

	s.log.WithField("kind", string(kind)).Infof("user %s balance now %d", userID, balance)
	return entry, nil
}
