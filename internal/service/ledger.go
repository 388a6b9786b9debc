package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/lotto-system/internal/model"
	"github.com/mmeshcher/lotto-system/internal/repository"
	"github.com/mmeshcher/lotto-system/internal/validation"
)

// Registration содержит данные новой учётной записи.
type Registration struct {
	Email    string
	Password string
	Name     string
	Role     model.Role
	Phone    string
	Birthday *time.Time
	Wallet   decimal.Decimal
}

// RegisterUser создаёт учётную запись. Пустая роль означает обычного пользователя.
func (s *Service) RegisterUser(ctx context.Context, reg Registration) (int64, error) {
	if reg.Role == "" {
		reg.Role = model.RoleUser
	}
	if !reg.Role.Valid() {
		return 0, wrap(ErrInvalidInput, "role %q", reg.Role)
	}
	if reg.Wallet.IsNegative() {
		return 0, wrap(ErrInvalidInput, "wallet %s", reg.Wallet)
	}

	u := &model.User{
		Email:    reg.Email,
		Name:     reg.Name,
		Role:     reg.Role,
		Phone:    reg.Phone,
		Birthday: reg.Birthday,
		Wallet:   reg.Wallet,
	}
	if reg.Password != "" {
		u.Password = hex.EncodeToString(hashPassword(reg.Email, reg.Password))
	}

	id, err := s.repo.CreateUser(ctx, u)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return 0, wrap(ErrDuplicateEmail, "email %s", reg.Email)
		}
		return 0, err
	}
	return id, nil
}

func hashPassword(login, password string) []byte {
	sum := sha256.Sum256([]byte(login + ":" + password))
	return sum[:]
}

// DeleteUser удаляет обычного пользователя вместе с его заказами.
// Администраторы не удаляются.
func (s *Service) DeleteUser(ctx context.Context, userID int64) (int64, error) {
	var orders int64
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		var err error
		if orders, err = s.repo.DeleteOrdersByUser(ctx, userID); err != nil {
			return err
		}
		if err := s.repo.DeleteNonAdminUser(ctx, userID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return wrap(ErrUserNotFound, "user %d not found or is admin", userID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("user deleted", zap.Int64("userID", userID), zap.Int64("orders", orders))
	return orders, nil
}

// UserOrders возвращает заказы пользователя, новые первыми.
func (s *Service) UserOrders(ctx context.Context, userID int64) ([]model.OrderDetail, error) {
	if _, err := s.user(ctx, userID); err != nil {
		return nil, err
	}

	orders, err := s.repo.OrdersByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("orders of user %d: %w", userID, err)
	}
	return orders, nil
}

// Deposit пополняет кошелёк и возвращает пользователя с новым балансом.
func (s *Service) Deposit(ctx context.Context, userID int64, amount decimal.Decimal) (*model.User, error) {
	if !validation.IsMoneyAmount(amount) {
		return nil, wrap(ErrInvalidAmount, "deposit %s", amount)
	}

	wallet, err := s.repo.AddToWallet(ctx, userID, amount)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, wrap(ErrUserNotFound, "user %d", userID)
		}
		return nil, fmt.Errorf("deposit: %w", err)
	}

	return s.userWithWallet(ctx, userID, wallet)
}

// Withdraw списывает сумму с кошелька. Проверка баланса и списание выполняются
// одним условным обновлением, поэтому баланс не становится отрицательным.
func (s *Service) Withdraw(ctx context.Context, userID int64, amount decimal.Decimal) (*model.User, error) {
	if !validation.IsMoneyAmount(amount) {
		return nil, wrap(ErrInvalidAmount, "withdraw %s", amount)
	}

	wallet, err := s.repo.SubtractFromWallet(ctx, userID, amount)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, wrap(ErrUserNotFound, "user %d", userID)
		case errors.Is(err, repository.ErrInsufficientFunds):
			return nil, wrap(ErrInsufficientFunds, "user %d withdraw %s", userID, amount)
		}
		return nil, fmt.Errorf("withdraw: %w", err)
	}

	return s.userWithWallet(ctx, userID, wallet)
}

// creditPrize зачисляет приз на кошелёк. Сумма берётся только из таблицы призов.
func (s *Service) creditPrize(ctx context.Context, userID int64, prize decimal.Decimal) (decimal.Decimal, error) {
	wallet, err := s.repo.AddToWallet(ctx, userID, prize)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return decimal.Zero, wrap(ErrUserNotFound, "order owner %d", userID)
		}
		return decimal.Zero, fmt.Errorf("credit prize: %w", err)
	}
	return wallet, nil
}

func (s *Service) user(ctx context.Context, userID int64) (*model.User, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, wrap(ErrUserNotFound, "user %d", userID)
		}
		return nil, fmt.Errorf("get user %d: %w", userID, err)
	}
	return u, nil
}

func (s *Service) userWithWallet(ctx context.Context, userID int64, wallet decimal.Decimal) (*model.User, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.Wallet = wallet
	return u, nil
}
