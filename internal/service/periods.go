package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/lotto-system/internal/lotto"
	"github.com/mmeshcher/lotto-system/internal/metrics"
	"github.com/mmeshcher/lotto-system/internal/model"
	"github.com/mmeshcher/lotto-system/internal/repository"
)

// LatestPeriod возвращает активный тираж, то есть тираж с максимальным идентификатором.
func (s *Service) LatestPeriod(ctx context.Context) (*model.RewardPeriod, error) {
	return s.activePeriod(ctx, repository.LockNone)
}

// CreatePeriod создаёт новый тираж на первую свободную дату начиная с сегодняшней.
func (s *Service) CreatePeriod(ctx context.Context, callerID int64) (*model.RewardPeriod, error) {
	if _, err := s.requireRole(ctx, callerID, model.RoleAdmin); err != nil {
		return nil, err
	}

	var created *model.RewardPeriod
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.LockPeriods(ctx); err != nil {
			return err
		}

		if s.opts.SingleActivePeriod {
			latest, err := s.activePeriod(ctx, repository.LockNone)
			switch {
			case errors.Is(err, ErrPeriodNotFound):
			case err != nil:
				return err
			case !latest.Drawn():
				return wrap(ErrActivePeriodOpen, "period %d", latest.ID)
			}
		}

		p, err := s.insertPeriod(ctx)
		if err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PeriodCreated()
	s.logger.Info("reward period created",
		zap.Int64("periodID", created.ID),
		zap.String("date", created.Date.Format("2006-01-02")),
		zap.Int64("adminID", callerID),
	)
	return created, nil
}

// ResetAll удаляет все заказы, билеты и обычных пользователей и открывает новый тираж.
// Все шаги выполняются в одной транзакции.
func (s *Service) ResetAll(ctx context.Context, callerID int64) (*model.ResetCounts, *model.RewardPeriod, error) {
	if _, err := s.requireRole(ctx, callerID, model.RoleAdmin); err != nil {
		return nil, nil, err
	}

	var (
		counts model.ResetCounts
		period *model.RewardPeriod
	)
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.LockPeriods(ctx); err != nil {
			return err
		}

		// FOR UPDATE ждёт покупок и выпуска билетов, держащих FOR SHARE на тираже,
		// и не пускает новые до конца сброса.
		_, err := s.activePeriod(ctx, repository.LockUpdate)
		if err != nil && !errors.Is(err, ErrPeriodNotFound) && !errors.Is(err, ErrDataCorruption) {
			return err
		}

		if counts.Orders, err = s.repo.DeleteAllOrders(ctx); err != nil {
			return err
		}
		if counts.Tickets, err = s.repo.DeleteAllTickets(ctx); err != nil {
			return err
		}
		if counts.Users, err = s.repo.DeleteUsersByRole(ctx, model.RoleUser); err != nil {
			return err
		}

		period, err = s.insertPeriod(ctx)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	metrics.PeriodCreated()
	s.logger.Info("lotto system reset",
		zap.Int64("orders", counts.Orders),
		zap.Int64("tickets", counts.Tickets),
		zap.Int64("users", counts.Users),
		zap.Int64("periodID", period.ID),
		zap.Int64("adminID", callerID),
	)
	return &counts, period, nil
}

// insertPeriod перебирает даты начиная с сегодняшней, пока не найдёт свободную.
// Вызывается под блокировкой LockPeriods; ErrDuplicate от вставки означает,
// что дату заняли в обход блокировки, и перебор продолжается.
func (s *Service) insertPeriod(ctx context.Context) (*model.RewardPeriod, error) {
	tiers := lotto.Template()

	for date := s.today(); ; date = date.AddDate(0, 0, 1) {
		taken, err := s.repo.PeriodDateExists(ctx, date)
		if err != nil {
			return nil, err
		}
		if taken {
			continue
		}

		id, err := s.repo.InsertPeriod(ctx, date, tiers)
		if errors.Is(err, repository.ErrDuplicate) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("insert period: %w", err)
		}

		return &model.RewardPeriod{ID: id, Date: date, Tiers: tiers}, nil
	}
}
