package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mmeshcher/lotto-system/internal/lotto"
	"github.com/mmeshcher/lotto-system/internal/metrics"
	"github.com/mmeshcher/lotto-system/internal/model"
	"github.com/mmeshcher/lotto-system/internal/repository"
)

// DrawResult описывает итог розыгрыша.
type DrawResult struct {
	Period *model.RewardPeriod
	Mode   model.DrawMode
	Picked []string
}

// Draw разыгрывает тираж periodID (ноль означает активный тираж): выбирает до
// четырёх различных номеров среди билетов тиража и записывает выигрышные номера
// всех пяти категорий. Тираж, в котором уже есть хотя бы один выигрышный номер,
// повторно не разыгрывается.
func (s *Service) Draw(ctx context.Context, callerID, periodID int64, mode model.DrawMode) (*DrawResult, error) {
	if _, err := s.requireRole(ctx, callerID, model.RoleAdmin); err != nil {
		return nil, err
	}
	if mode != model.DrawAll {
		mode = model.DrawSold
	}

	var res *DrawResult
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		var (
			p   *model.RewardPeriod
			err error
		)
		if periodID == 0 {
			p, err = s.activePeriod(ctx, repository.LockUpdate)
		} else {
			p, err = s.period(ctx, periodID, repository.LockUpdate)
		}
		if err != nil {
			return err
		}
		if p.Drawn() {
			return wrap(ErrAlreadyDrawn, "period %d", p.ID)
		}

		picked, err := s.repo.PickNumbers(ctx, p.ID, mode == model.DrawSold, lotto.PickCount)
		if err != nil {
			return err
		}
		if len(picked) == 0 {
			return wrap(ErrNoDrawCandidates, "period %d mode %s", p.ID, mode)
		}
		picked = lotto.PadPicks(picked)

		tiers, err := lotto.Assign(p.Tiers, picked)
		if err != nil {
			return err
		}

		if err := s.repo.UpdatePeriodTiers(ctx, p.ID, p.Version, tiers); err != nil {
			if errors.Is(err, repository.ErrStale) {
				return wrap(ErrAlreadyDrawn, "period %d changed concurrently", p.ID)
			}
			return err
		}

		p.Tiers = tiers
		p.Version++
		res = &DrawResult{Period: p, Mode: mode, Picked: picked}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.DrawCompleted(string(mode))
	s.logger.Info("reward period drawn",
		zap.Int64("periodID", res.Period.ID),
		zap.String("mode", string(mode)),
		zap.Strings("picked", res.Picked),
		zap.Int64("adminID", callerID),
	)
	return res, nil
}
