// Package service реализует бизнес-логику лотерейного сервиса: склад билетов,
// жизненный цикл тиражей, розыгрыш, выплату призов и кошельки пользователей.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/lotto-system/internal/lotto"
	"github.com/mmeshcher/lotto-system/internal/model"
	"github.com/mmeshcher/lotto-system/internal/repository"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	Ping(ctx context.Context) error
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	CreateUser(ctx context.Context, u *model.User) (int64, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	AddToWallet(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error)
	SubtractFromWallet(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error)
	DeleteNonAdminUser(ctx context.Context, id int64) error
	DeleteUsersByRole(ctx context.Context, role model.Role) (int64, error)

	LockPeriods(ctx context.Context) error
	LatestPeriodID(ctx context.Context) (int64, error)
	GetPeriod(ctx context.Context, id int64, lock repository.LockMode) (*model.RewardPeriod, error)
	PeriodDateExists(ctx context.Context, date time.Time) (bool, error)
	InsertPeriod(ctx context.Context, date time.Time, tiers model.Tiers) (int64, error)
	UpdatePeriodTiers(ctx context.Context, id, version int64, tiers model.Tiers) error

	InsertTicket(ctx context.Context, t *model.Ticket) (int64, error)
	TicketNumbers(ctx context.Context, periodID int64) ([]string, error)
	ListTickets(ctx context.Context, periodID int64) ([]model.Ticket, error)
	SearchTickets(ctx context.Context, periodID int64, pattern string) ([]model.Ticket, error)
	RandomUnsoldTicket(ctx context.Context, periodID int64) (*model.Ticket, error)
	GetTicket(ctx context.Context, id int64, lock repository.LockMode) (*model.Ticket, error)
	MarkTicketSold(ctx context.Context, id int64) error
	PickNumbers(ctx context.Context, periodID int64, soldOnly bool, limit int) ([]string, error)
	DeleteAllTickets(ctx context.Context) (int64, error)

	InsertOrder(ctx context.Context, o *model.Order) error
	GetOrder(ctx context.Context, id int64, lock repository.LockMode) (*model.OrderDetail, error)
	OrdersByUser(ctx context.Context, userID int64) ([]model.OrderDetail, error)
	MarkOrderRedeemed(ctx context.Context, id int64) error
	DeleteOrdersByUser(ctx context.Context, userID int64) (int64, error)
	DeleteAllOrders(ctx context.Context) (int64, error)
}

// Options задают политику сервиса.
type Options struct {
	// SingleActivePeriod запрещает создавать тираж, пока последний не разыгран.
	SingleActivePeriod bool
	// RandomAttempts задаёт число попыток выборки на каждый запрошенный случайный билет.
	RandomAttempts int
	// Location задаёт часовой пояс, в котором определяется «сегодня».
	Location *time.Location
}

const defaultRandomAttempts = 1000

// Service содержит бизнес-логику лотерейного сервиса.
type Service struct {
	repo   Repository
	logger *zap.Logger
	opts   Options
	now    func() time.Time
	rand   lotto.Source
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RandomAttempts <= 0 {
		opts.RandomAttempts = defaultRandomAttempts
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	return &Service{
		repo:   repo,
		logger: logger,
		opts:   opts,
		now:    time.Now,
		rand:   lotto.DefaultSource,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Health проверяет доступность хранилища.
func (s *Service) Health(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *Service) today() time.Time {
	y, m, d := s.now().In(s.opts.Location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// requireRole загружает пользователя и проверяет его роль.
func (s *Service) requireRole(ctx context.Context, userID int64, role model.Role) (*model.User, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Role != role {
		return nil, wrap(ErrForbidden, "user %d has role %q, need %q", userID, u.Role, role)
	}
	return u, nil
}

// activePeriod возвращает последний тираж; lock задаёт блокировку его строки.
func (s *Service) activePeriod(ctx context.Context, lock repository.LockMode) (*model.RewardPeriod, error) {
	id, err := s.repo.LatestPeriodID(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPeriodNotFound
		}
		return nil, fmt.Errorf("latest period: %w", err)
	}
	return s.period(ctx, id, lock)
}

func (s *Service) period(ctx context.Context, id int64, lock repository.LockMode) (*model.RewardPeriod, error) {
	p, err := s.repo.GetPeriod(ctx, id, lock)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, wrap(ErrPeriodNotFound, "period %d", id)
		case errors.Is(err, model.ErrMalformedTiers):
			s.logger.Error("stored reward data is invalid", zap.Int64("periodID", id), zap.Error(err))
			return nil, wrap(ErrDataCorruption, "period %d", id)
		}
		return nil, fmt.Errorf("get period %d: %w", id, err)
	}
	return p, nil
}
