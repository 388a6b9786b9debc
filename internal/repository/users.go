package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/lotto-system/internal/model"
)

// CreateUser создаёт учётную запись и возвращает её идентификатор.
func (r *PostgresRepository) CreateUser(ctx context.Context, u *model.User) (int64, error) {
	var email *string
	if u.Email != "" {
		email = &u.Email
	}

	var id int64
	err := r.conn(ctx).QueryRow(ctx,
		`INSERT INTO users (email, password, name, role, phone, birthday, wallet)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::numeric) RETURNING id`,
		email, u.Password, u.Name, string(u.Role), u.Phone, u.Birthday, u.Wallet.String(),
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: email %s", ErrDuplicate, u.Email)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUser возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUser(ctx context.Context, id int64) (*model.User, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT id, COALESCE(email, ''), COALESCE(name, ''), role, COALESCE(phone, ''), birthday, wallet::text
		 FROM users WHERE id = $1`,
		id,
	)

	var (
		u      model.User
		role   string
		wallet string
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &role, &u.Phone, &u.Birthday, &wallet)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	u.Role = model.Role(role)
	if u.Wallet, err = decimal.NewFromString(wallet); err != nil {
		return nil, fmt.Errorf("parse wallet: %w", err)
	}

	return &u, nil
}

// AddToWallet увеличивает баланс кошелька и возвращает новое значение.
func (r *PostgresRepository) AddToWallet(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	var wallet string
	err := r.conn(ctx).QueryRow(ctx,
		`UPDATE users SET wallet = wallet + $2::numeric WHERE id = $1 RETURNING wallet::text`,
		userID, amount.String(),
	).Scan(&wallet)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrNotFound
		}
		return decimal.Zero, fmt.Errorf("add to wallet: %w", err)
	}

	return decimal.NewFromString(wallet)
}

// SubtractFromWallet уменьшает баланс одним условным обновлением, поэтому
// параллельные списания не могут увести его в минус.
func (r *PostgresRepository) SubtractFromWallet(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	var wallet string
	err := r.conn(ctx).QueryRow(ctx,
		`UPDATE users SET wallet = wallet - $2::numeric
		 WHERE id = $1 AND wallet >= $2::numeric
		 RETURNING wallet::text`,
		userID, amount.String(),
	).Scan(&wallet)
	if err == nil {
		return decimal.NewFromString(wallet)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("subtract from wallet: %w", err)
	}

	var exists bool
	err = r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	if err != nil {
		return decimal.Zero, fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return decimal.Zero, ErrNotFound
	}
	return decimal.Zero, ErrInsufficientFunds
}

// DeleteNonAdminUser удаляет пользователя, если он не администратор.
func (r *PostgresRepository) DeleteNonAdminUser(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM users WHERE id = $1 AND role <> $2`,
		id, string(model.RoleAdmin),
	)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUsersByRole удаляет всех пользователей с указанной ролью.
func (r *PostgresRepository) DeleteUsersByRole(ctx context.Context, role model.Role) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM users WHERE role = $1`, string(role))
	if err != nil {
		return 0, fmt.Errorf("delete users: %w", err)
	}
	return tag.RowsAffected(), nil
}
