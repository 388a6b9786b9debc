package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/lotto-system/internal/model"
)

// periodLockKey используется как ключ advisory-блокировки жизненного цикла тиражей.
const periodLockKey int64 = 0x6c6f74746f

const dateLayout = "2006-01-02"

// LockPeriods сериализует создание и сброс тиражей до конца текущей транзакции.
func (r *PostgresRepository) LockPeriods(ctx context.Context) error {
	if _, err := r.conn(ctx).Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, periodLockKey); err != nil {
		return fmt.Errorf("lock periods: %w", err)
	}
	return nil
}

// LatestPeriodID возвращает идентификатор последнего тиража.
func (r *PostgresRepository) LatestPeriodID(ctx context.Context) (int64, error) {
	var id *int64
	if err := r.conn(ctx).QueryRow(ctx, `SELECT MAX(id) FROM reward_periods`).Scan(&id); err != nil {
		return 0, fmt.Errorf("select latest period: %w", err)
	}
	if id == nil {
		return 0, ErrNotFound
	}
	return *id, nil
}

// GetPeriod возвращает тираж и проверяет форму сохранённого списка призов.
func (r *PostgresRepository) GetPeriod(ctx context.Context, id int64, lock LockMode) (*model.RewardPeriod, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT id, period_date, tiers::text, version FROM reward_periods WHERE id = $1`+lock.clause(""),
		id,
	)

	var (
		p     model.RewardPeriod
		tiers string
	)
	if err := row.Scan(&p.ID, &p.Date, &tiers, &p.Version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get period: %w", err)
	}

	parsed, err := model.ParseTiers([]byte(tiers))
	if err != nil {
		return nil, fmt.Errorf("period %d: %w", id, err)
	}
	p.Tiers = parsed

	return &p, nil
}

// PeriodDateExists сообщает, занята ли дата существующим тиражом.
func (r *PostgresRepository) PeriodDateExists(ctx context.Context, date time.Time) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM reward_periods WHERE period_date = $1::date)`,
		date.Format(dateLayout),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check period date: %w", err)
	}
	return exists, nil
}

// InsertPeriod создаёт тираж на указанную дату. Занятая дата даёт ErrDuplicate.
func (r *PostgresRepository) InsertPeriod(ctx context.Context, date time.Time, tiers model.Tiers) (int64, error) {
	data, err := tiers.Marshal()
	if err != nil {
		return 0, err
	}

	var id int64
	err = r.conn(ctx).QueryRow(ctx,
		`INSERT INTO reward_periods (period_date, tiers) VALUES ($1::date, $2::jsonb)
		 ON CONFLICT (period_date) DO NOTHING
		 RETURNING id`,
		date.Format(dateLayout), string(data),
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: period date %s", ErrDuplicate, date.Format(dateLayout))
		}
		return 0, fmt.Errorf("insert period: %w", err)
	}
	return id, nil
}

// UpdatePeriodTiers записывает список призов, если версия тиража не изменилась.
func (r *PostgresRepository) UpdatePeriodTiers(ctx context.Context, id, version int64, tiers model.Tiers) error {
	data, err := tiers.Marshal()
	if err != nil {
		return err
	}

	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE reward_periods SET tiers = $3::jsonb, version = version + 1
		 WHERE id = $1 AND version = $2`,
		id, version, string(data),
	)
	if err != nil {
		return fmt.Errorf("update period tiers: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStale
	}
	return nil
}
