package app

import (
	"context"
	"fmt"

	"github.com/yigicoin/platform/internal/app/services/expropriation"
	"github.com/yigicoin/platform/internal/app/services/payments"
	pointssvc "github.com/yigicoin/platform/internal/app/services/points"
	"github.com/yigicoin/platform/internal/app/services/raffles"
	"github.com/yigicoin/platform/internal/app/services/sanctions"
	"github.com/yigicoin/platform/internal/app/services/slots"
	"github.com/yigicoin/platform/internal/app/services/sponsors"
	"github.com/yigicoin/platform/internal/app/services/users"
	"github.com/yigicoin/platform/internal/app/storage"
	"github.com/yigicoin/platform/internal/app/storage/memory"
	"github.com/yigicoin/platform/internal/app/system"
	"github.com/yigicoin/platform/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users     storage.UserStore
	Slots     storage.SlotStore
	Sanctions storage.SanctionStore
	Points    storage.PointsStore
	Payments  storage.PaymentStore
	Raffles   storage.RaffleStore
	AdClaims  storage.AdClaimStore
}

// Options tune application construction.
type Options struct {
	// SweepSchedule overrides the sanction sweeper cadence (cron spec).
	SweepSchedule string
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Users         *users.Service
	Slots         *slots.Service
	Expropriation *expropriation.Service
	Sponsors      *sponsors.Service
	Sanctions     *sanctions.Service
	Points        *pointssvc.Service
	Payments      *payments.Service
	Raffles       *raffles.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Slots == nil {
		stores.Slots = mem
	}
	if stores.Sanctions == nil {
		stores.Sanctions = mem
	}
	if stores.Points == nil {
		stores.Points = mem
	}
	if stores.Payments == nil {
		stores.Payments = mem
	}
	if stores.Raffles == nil {
		stores.Raffles = mem
	}
	if stores.AdClaims == nil {
		stores.AdClaims = mem
	}

	manager := system.NewManager()

	userService := users.New(stores.Users, log)
	slotService := slots.New(stores.Users, stores.Slots, log)
	expropriationService := expropriation.New(stores.Users, stores.Slots, log)
	sponsorService := sponsors.New(stores.Users, stores.Slots, log)
	sanctionService := sanctions.New(stores.Sanctions, log)
	pointService := pointssvc.New(stores.Users, stores.Points, stores.AdClaims, log)
	paymentService := payments.New(stores.Users, stores.Payments, sponsorService, log)
	raffleService := raffles.New(stores.Raffles, pointService, log)

	for _, name := range []string{"users", "slots", "expropriation", "sponsors"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	sweeper := sanctions.NewSweeper(sanctionService, opts.SweepSchedule, log)
	if err := manager.Register(sweeper); err != nil {
		return nil, fmt.Errorf("register %s: %w", sweeper.Name(), err)
	}

	return &Application{
		manager:       manager,
		log:           log,
		Users:         userService,
		Slots:         slotService,
		Expropriation: expropriationService,
		Sponsors:      sponsorService,
		Sanctions:     sanctionService,
		Points:        pointService,
		Payments:      paymentService,
		Raffles:       raffleService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
