package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/lotto-system/internal/lotto"
	"github.com/mmeshcher/lotto-system/internal/metrics"
	"github.com/mmeshcher/lotto-system/internal/model"
	"github.com/mmeshcher/lotto-system/internal/repository"
)

// CheckResult описывает результат проверки заказа.
type CheckResult struct {
	OrderID int64
	Number  string
	Status  model.OrderStatus
	// Drawn ложно, пока по тиражу заказа не объявлены выигрышные номера.
	Drawn bool
	Win   bool
	Tier  int
	Prize decimal.Decimal
}

// RedeemResult описывает результат выплаты приза.
type RedeemResult struct {
	OrderID int64
	UserID  int64
	Number  string
	Tier    int
	Prize   decimal.Decimal
	Wallet  decimal.Decimal
}

// CheckOrder сверяет номер билета заказа с выигрышными номерами его тиража.
// Ничего не изменяет.
func (s *Service) CheckOrder(ctx context.Context, orderID int64) (*CheckResult, error) {
	o, err := s.order(ctx, orderID, repository.LockNone)
	if err != nil {
		return nil, err
	}

	p, err := s.period(ctx, o.PeriodID, repository.LockNone)
	if err != nil {
		return nil, err
	}

	res := &CheckResult{
		OrderID: o.ID,
		Number:  o.Number,
		Status:  o.Status,
		Drawn:   p.Drawn(),
		Prize:   decimal.Zero,
	}
	if !res.Drawn {
		return res, nil
	}

	if tier, ok := lotto.Match(p.Tiers, o.Number); ok {
		res.Win = true
		res.Tier = tier.Tier
		res.Prize = decimal.NewFromInt(tier.Amount)
	}
	return res, nil
}

// Redeem выплачивает приз по выигравшему заказу. Строка заказа блокируется до
// конца транзакции, перевод в статус redeemed и зачисление на кошелёк
// фиксируются вместе.
func (s *Service) Redeem(ctx context.Context, orderID int64) (*RedeemResult, error) {
	var res *RedeemResult
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		o, err := s.order(ctx, orderID, repository.LockUpdate)
		if err != nil {
			return err
		}
		if o.Status == model.OrderRedeemed {
			return wrap(ErrAlreadyRedeemed, "order %d", orderID)
		}

		p, err := s.period(ctx, o.PeriodID, repository.LockNone)
		if err != nil {
			return err
		}

		tier, ok := lotto.Match(p.Tiers, o.Number)
		if !ok {
			return wrap(ErrNoPrize, "order %d", orderID)
		}

		if err := s.repo.MarkOrderRedeemed(ctx, o.ID); err != nil {
			if errors.Is(err, repository.ErrStale) {
				return wrap(ErrAlreadyRedeemed, "order %d", orderID)
			}
			return err
		}

		prize := decimal.NewFromInt(tier.Amount)
		wallet, err := s.creditPrize(ctx, o.UserID, prize)
		if err != nil {
			return err
		}

		res = &RedeemResult{
			OrderID: o.ID,
			UserID:  o.UserID,
			Number:  o.Number,
			Tier:    tier.Tier,
			Prize:   prize,
			Wallet:  wallet,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PrizePaid(res.Tier, res.Prize.InexactFloat64())
	s.logger.Info("prize redeemed",
		zap.Int64("orderID", res.OrderID),
		zap.Int64("userID", res.UserID),
		zap.Int("tier", res.Tier),
		zap.String("prize", res.Prize.String()),
	)
	return res, nil
}

func (s *Service) order(ctx context.Context, id int64, lock repository.LockMode) (*model.OrderDetail, error) {
	o, err := s.repo.GetOrder(ctx, id, lock)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, wrap(ErrOrderNotFound, "order %d", id)
		}
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}
	return o, nil
}
