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
	"github.com/mmeshcher/lotto-system/internal/validation"
)

// CreateTicket добавляет непроданный билет с указанным номером в активный тираж.
func (s *Service) CreateTicket(ctx context.Context, callerID int64, number string) (*model.Ticket, error) {
	if !validation.IsTicketNumber(number) {
		return nil, wrap(ErrInvalidInput, "lotto number %q", number)
	}
	if _, err := s.requireRole(ctx, callerID, model.RoleAdmin); err != nil {
		return nil, err
	}

	var ticket *model.Ticket
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		// FOR SHARE на строке тиража не даёт розыгрышу завершиться до коммита.
		p, err := s.activePeriod(ctx, repository.LockShare)
		if err != nil {
			return err
		}
		if p.Drawn() {
			return wrap(ErrPeriodClosed, "period %d", p.ID)
		}

		t := &model.Ticket{
			PeriodID: p.ID,
			Number:   number,
			Price:    lotto.TicketPrice,
			Status:   model.TicketUnsold,
		}
		t.ID, err = s.repo.InsertTicket(ctx, t)
		if err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return wrap(ErrDuplicateNumber, "number %s in period %d", number, p.ID)
			}
			return err
		}

		ticket = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.TicketsMinted(1)
	return ticket, nil
}

// CreateRandomTickets добавляет в активный тираж count билетов со случайными
// номерами, которых ещё нет в тираже. Номера выбираются выборкой с отклонением;
// на каждый билет отводится Options.RandomAttempts попыток, после чего
// возвращается ErrExhaustedSpace.
func (s *Service) CreateRandomTickets(ctx context.Context, callerID int64, count int) (int64, []string, error) {
	if count <= 0 {
		return 0, nil, wrap(ErrInvalidInput, "randomCount %d", count)
	}
	if count > lotto.NumberSpace {
		return 0, nil, wrap(ErrExhaustedSpace, "randomCount %d", count)
	}
	if _, err := s.requireRole(ctx, callerID, model.RoleAdmin); err != nil {
		return 0, nil, err
	}

	var (
		periodID   int64
		inserted   []string
		collisions int
	)
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		inserted, collisions = nil, 0

		p, err := s.activePeriod(ctx, repository.LockShare)
		if err != nil {
			return err
		}
		if p.Drawn() {
			return wrap(ErrPeriodClosed, "period %d", p.ID)
		}
		periodID = p.ID

		existing, err := s.repo.TicketNumbers(ctx, p.ID)
		if err != nil {
			return err
		}
		if free := lotto.NumberSpace - len(existing); count > free {
			return wrap(ErrExhaustedSpace, "period %d has %d free numbers, requested %d", p.ID, free, count)
		}

		taken := make(map[string]struct{}, len(existing)+count)
		for _, n := range existing {
			taken[n] = struct{}{}
		}

		attempts := count * s.opts.RandomAttempts
		for len(inserted) < count {
			if attempts == 0 {
				return wrap(ErrExhaustedSpace, "period %d: %d of %d numbers generated", p.ID, len(inserted), count)
			}
			attempts--

			number := lotto.RandomNumber(s.rand)
			if _, ok := taken[number]; ok {
				collisions++
				continue
			}
			taken[number] = struct{}{}

			_, err := s.repo.InsertTicket(ctx, &model.Ticket{
				PeriodID: p.ID,
				Number:   number,
				Price:    lotto.TicketPrice,
				Status:   model.TicketUnsold,
			})
			if errors.Is(err, repository.ErrDuplicate) {
				// Номер вставлен параллельным запросом после чтения TicketNumbers.
				collisions++
				continue
			}
			if err != nil {
				return err
			}

			inserted = append(inserted, number)
		}

		return nil
	})
	if err != nil {
		return 0, nil, err
	}

	metrics.TicketsMinted(len(inserted))
	metrics.RandomCollisions(collisions)
	s.logger.Info("random lotto inserted",
		zap.Int64("periodID", periodID),
		zap.Int("count", len(inserted)),
		zap.Int("collisions", collisions),
	)
	return periodID, inserted, nil
}

// ListAvailable возвращает билеты активного тиража по возрастанию номера.
func (s *Service) ListAvailable(ctx context.Context) (int64, []model.Ticket, error) {
	p, err := s.activePeriod(ctx, repository.LockNone)
	if err != nil {
		return 0, nil, err
	}

	tickets, err := s.repo.ListTickets(ctx, p.ID)
	if err != nil {
		return 0, nil, fmt.Errorf("list tickets: %w", err)
	}
	return p.ID, tickets, nil
}

// SearchByPattern ищет непроданные билеты активного тиража, номер которых содержит pattern.
func (s *Service) SearchByPattern(ctx context.Context, pattern string) (int64, []model.Ticket, error) {
	if !validation.IsSearchPattern(pattern) {
		return 0, nil, wrap(ErrInvalidInput, "search pattern %q", pattern)
	}

	p, err := s.activePeriod(ctx, repository.LockNone)
	if err != nil {
		return 0, nil, err
	}

	tickets, err := s.repo.SearchTickets(ctx, p.ID, pattern)
	if err != nil {
		return 0, nil, fmt.Errorf("search tickets: %w", err)
	}
	return p.ID, tickets, nil
}

// RandomAvailable возвращает случайный непроданный билет активного тиража.
func (s *Service) RandomAvailable(ctx context.Context) (*model.Ticket, error) {
	p, err := s.activePeriod(ctx, repository.LockNone)
	if err != nil {
		return nil, err
	}

	t, err := s.repo.RandomUnsoldTicket(ctx, p.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, wrap(ErrSoldOut, "period %d", p.ID)
		}
		return nil, fmt.Errorf("random ticket: %w", err)
	}
	return t, nil
}

// Purchase продаёт билет активного тиража пользователю. Перевод билета в
// проданные и создание заказа выполняются в одной транзакции.
func (s *Service) Purchase(ctx context.Context, userID, ticketID int64) (*model.Order, *model.Ticket, error) {
	if _, err := s.requireRole(ctx, userID, model.RoleUser); err != nil {
		return nil, nil, err
	}

	var (
		order  *model.Order
		ticket *model.Ticket
	)
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		p, err := s.activePeriod(ctx, repository.LockShare)
		if err != nil {
			return err
		}
		if p.Drawn() {
			return wrap(ErrNotAvailable, "period %d already drawn", p.ID)
		}

		t, err := s.repo.GetTicket(ctx, ticketID, repository.LockUpdate)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return wrap(ErrNotAvailable, "lotto %d", ticketID)
			}
			return err
		}
		if t.PeriodID != p.ID || t.Status != model.TicketUnsold {
			return wrap(ErrNotAvailable, "lotto %d", ticketID)
		}

		if err := s.repo.MarkTicketSold(ctx, t.ID); err != nil {
			if errors.Is(err, repository.ErrStale) {
				return wrap(ErrNotAvailable, "lotto %d", ticketID)
			}
			return err
		}

		o := &model.Order{
			TicketID: t.ID,
			PeriodID: p.ID,
			UserID:   userID,
			Status:   model.OrderPending,
		}
		if err := s.repo.InsertOrder(ctx, o); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return wrap(ErrNotAvailable, "lotto %d", ticketID)
			}
			return err
		}

		t.Status = model.TicketSold
		order, ticket = o, t
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	metrics.TicketSold()
	return order, ticket, nil
}
