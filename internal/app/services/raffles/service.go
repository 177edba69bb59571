// Package raffles manages raffle rounds and ticket sales. Draws are executed
// externally; this service only records their results.
package raffles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yigicoin/platform/internal/app/domain/raffle"
	pointssvc "github.com/yigicoin/platform/internal/app/services/points"
	"github.com/yigicoin/platform/internal/app/storage"
	"github.com/yigicoin/platform/internal/apperr"
	"github.com/yigicoin/platform/pkg/logger"
)

// Service manages raffle rounds.
type Service struct {
	store  storage.RaffleStore
	points *pointssvc.Service
	log    *logger.Logger
	now    func() time.Time
}

// New constructs a raffle service.
func New(store storage.RaffleStore, points *pointssvc.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("raffles")
	}
	return &Service{store: store, points: points, log: log, now: time.Now}
}

// CreateRound opens a new round.
func (s *Service) CreateRound(ctx context.Context, name string, ticketPricePts int64, opensAt, closesAt time.Time) (raffle.Round, error) {
	if name == "" {
		return raffle.Round{}, fmt.Errorf("name is required")
	}
	if ticketPricePts <= 0 {
		return raffle.Round{}, fmt.Errorf("ticket price must be positive")
	}
	if !closesAt.After(opensAt) {
		return raffle.Round{}, fmt.Errorf("closes_at must be after opens_at")
	}

	created, err := s.store.CreateRound(ctx, raffle.Round{
		Name:           name,
		TicketPricePts: ticketPricePts,
		Status:         raffle.RoundActive,
		OpensAt:        opensAt,
		ClosesAt:       closesAt,
	})
	if err != nil {
		return raffle.Round{}, err
	}
	s.log.Infof("raffle round %s created", created.ID)
	return created, nil
}

// BuyTicket debits the ticket price from the buyer and grows the prize pool.
func (s *Service) BuyTicket(ctx context.Context, roundID, userID string) (raffle.Ticket, error) {
	round, err := s.GetRound(ctx, roundID)
	if err != nil {
		return raffle.Ticket{}, err
	}
	now := s.now().UTC()
	if round.Status != raffle.RoundActive || now.Before(round.OpensAt) || now.After(round.ClosesAt) {
		return raffle.Ticket{}, apperr.New(apperr.CodeRoundNotActive, "round %s is not open for ticket sales", roundID)
	}

	if _, err := s.points.Debit(ctx, userID, round.TicketPricePts, "raffle ticket "+roundID); err != nil {
		return raffle.Ticket{}, err
	}

	// The raffle store has no transaction seam, so a failed write after the
	// debit refunds the buyer instead of leaving the charge dangling.
	refund := func(cause error) error {
		if _, rerr := s.points.Credit(ctx, userID, round.TicketPricePts, "raffle ticket refund "+roundID); rerr != nil {
			s.log.WithError(rerr).Errorf("refund failed for user %s on round %s", userID, roundID)
			return fmt.Errorf("%w (refund also failed: %v)", cause, rerr)
		}
		return cause
	}

	ticket, err := s.store.CreateTicket(ctx, raffle.Ticket{
		RoundID: roundID,
		UserID:  userID,
		Number:  round.TicketCount + 1,
	})
	if err != nil {
		return raffle.Ticket{}, refund(err)
	}

	round.TicketCount++
	round.PrizePoolPts += round.TicketPricePts
	if _, err := s.store.UpdateRound(ctx, round); err != nil {
		return raffle.Ticket{}, refund(err)
	}
	return ticket, nil
}

// CloseRound stops ticket sales.
func (s *Service) CloseRound(ctx context.Context, roundID string) (raffle.Round, error) {
	round, err := s.GetRound(ctx, roundID)
	if err != nil {
		return raffle.Round{}, err
	}
	if round.Status != raffle.RoundActive {
		return raffle.Round{}, apperr.New(apperr.CodeRoundNotActive, "round %s is %s", roundID, round.Status)
	}
	round.Status = raffle.RoundClosed
	return s.store.UpdateRound(ctx, round)
}

// RecordDrawResult stores an externally produced draw: the winning ticket's
// holder is credited the prize pool.
func (s *Service) RecordDrawResult(ctx context.Context, roundID, winningTicketID string) (raffle.Round, error) {
	round, err := s.GetRound(ctx, roundID)
	if err != nil {
		return raffle.Round{}, err
	}
	if round.Status != raffle.RoundClosed {
		return raffle.Round{}, apperr.New(apperr.CodeRoundNotActive, "round %s must be closed before a draw is recorded", roundID)
	}

	tickets, err := s.store.ListTickets(ctx, roundID)
	if err != nil {
		return raffle.Round{}, err
	}
	var winner *raffle.Ticket
	for i := range tickets {
		if tickets[i].ID == winningTicketID {
			winner = &tickets[i]
			break
		}
	}
	if winner == nil {
		return raffle.Round{}, fmt.Errorf("ticket %s does not belong to round %s", winningTicketID, roundID)
	}

	if round.PrizePoolPts > 0 {
		if _, err := s.points.Credit(ctx, winner.UserID, round.PrizePoolPts, "raffle prize "+roundID); err != nil {
			return raffle.Round{}, err
		}
	}

	now := s.now().UTC()
	round.Status = raffle.RoundDrawn
	round.WinningTicketID = &winner.ID
	round.WinnerUserID = &winner.UserID
	round.DrawnAt = &now

	updated, err := s.store.UpdateRound(ctx, round)
	if err != nil {
		return raffle.Round{}, err
	}
	s.log.Infof("round %s drawn, winner %s", roundID, winner.UserID)
	return updated, nil
}

// GetRound retrieves a round.
func (s *Service) GetRound(ctx context.Context, id string) (raffle.Round, error) {
	round, err := s.store.GetRound(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return raffle.Round{}, apperr.New(apperr.CodeRoundNotActive, "round %s not found", id)
	}
	return round, err
}

// ListRounds returns all rounds.
func (s *Service) ListRounds(ctx context.Context) ([]raffle.Round, error) {
	return s.store.ListRounds(ctx)
}

// ListTickets returns a round's tickets.
func (s *Service) ListTickets(ctx context.Context, roundID string) ([]raffle.Ticket, error) {
	return s.store.ListTickets(ctx, roundID)
}
