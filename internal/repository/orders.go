package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/lotto-system/internal/model"
)

const orderDetailQuery = `SELECT o.id, o.ticket_id, o.period_id, o.user_id, o.created_on, o.status,
		t.number, t.price::text, t.status, p.period_date
	 FROM orders o
	 JOIN tickets t ON t.id = o.ticket_id
	 JOIN reward_periods p ON p.id = o.period_id`

// InsertOrder создаёт заказ и заполняет его идентификатор и дату.
func (r *PostgresRepository) InsertOrder(ctx context.Context, o *model.Order) error {
	err := r.conn(ctx).QueryRow(ctx,
		`INSERT INTO orders (ticket_id, period_id, user_id, status) VALUES ($1, $2, $3, $4)
		 RETURNING id, created_on`,
		o.TicketID, o.PeriodID, o.UserID, string(o.Status),
	).Scan(&o.ID, &o.CreatedOn)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: order for ticket %d", ErrDuplicate, o.TicketID)
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetOrder возвращает заказ вместе с билетом и датой тиража.
// Блокировка, если указана, берётся только на строку заказа.
func (r *PostgresRepository) GetOrder(ctx context.Context, id int64, lock LockMode) (*model.OrderDetail, error) {
	orders, err := r.queryOrders(ctx, orderDetailQuery+` WHERE o.id = $1`+lock.clause("o"), id)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, ErrNotFound
	}
	return &orders[0], nil
}

// OrdersByUser возвращает заказы пользователя, новые первыми.
func (r *PostgresRepository) OrdersByUser(ctx context.Context, userID int64) ([]model.OrderDetail, error) {
	return r.queryOrders(ctx, orderDetailQuery+` WHERE o.user_id = $1 ORDER BY o.created_on DESC, o.id DESC`, userID)
}

// MarkOrderRedeemed переводит заказ из ожидания в статус выплаченного.
func (r *PostgresRepository) MarkOrderRedeemed(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE orders SET status = $2 WHERE id = $1 AND status = $3`,
		id, string(model.OrderRedeemed), string(model.OrderPending),
	)
	if err != nil {
		return fmt.Errorf("mark order redeemed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStale
	}
	return nil
}

// DeleteOrdersByUser удаляет все заказы пользователя.
func (r *PostgresRepository) DeleteOrdersByUser(ctx context.Context, userID int64) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM orders WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete user orders: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteAllOrders удаляет все заказы.
func (r *PostgresRepository) DeleteAllOrders(ctx context.Context) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM orders`)
	if err != nil {
		return 0, fmt.Errorf("delete orders: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) queryOrders(ctx context.Context, query string, args ...any) ([]model.OrderDetail, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.OrderDetail
	for rows.Next() {
		var (
			o            model.OrderDetail
			status       string
			price        string
			ticketStatus string
		)
		err := rows.Scan(&o.ID, &o.TicketID, &o.PeriodID, &o.UserID, &o.CreatedOn, &status,
			&o.Number, &price, &ticketStatus, &o.PeriodDate)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}

		if o.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse ticket price: %w", err)
		}
		o.Status = model.OrderStatus(status)
		o.TicketStatus = model.TicketStatus(ticketStatus)

		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}
