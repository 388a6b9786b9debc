package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/lotto-system/internal/model"
)

const ticketColumns = `id, period_id, number, price::text, status`

// InsertTicket добавляет билет в тираж. Номер, уже существующий в тираже, даёт ErrDuplicate.
func (r *PostgresRepository) InsertTicket(ctx context.Context, t *model.Ticket) (int64, error) {
	var id int64
	err := r.conn(ctx).QueryRow(ctx,
		`INSERT INTO tickets (period_id, number, price, status) VALUES ($1, $2, $3::numeric, $4)
		 ON CONFLICT (period_id, number) DO NOTHING
		 RETURNING id`,
		t.PeriodID, t.Number, t.Price.String(), string(t.Status),
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: ticket %s", ErrDuplicate, t.Number)
		}
		return 0, fmt.Errorf("insert ticket: %w", err)
	}
	return id, nil
}

// TicketNumbers возвращает все номера билетов тиража.
func (r *PostgresRepository) TicketNumbers(ctx context.Context, periodID int64) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT number FROM tickets WHERE period_id = $1`, periodID)
	if err != nil {
		return nil, fmt.Errorf("select ticket numbers: %w", err)
	}

	numbers, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect ticket numbers: %w", err)
	}
	return numbers, nil
}

// ListTickets возвращает билеты тиража по возрастанию номера.
func (r *PostgresRepository) ListTickets(ctx context.Context, periodID int64) ([]model.Ticket, error) {
	return r.queryTickets(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE period_id = $1 ORDER BY number ASC`,
		periodID,
	)
}

// SearchTickets возвращает непроданные билеты тиража, номер которых содержит pattern.
func (r *PostgresRepository) SearchTickets(ctx context.Context, periodID int64, pattern string) ([]model.Ticket, error) {
	return r.queryTickets(ctx,
		`SELECT `+ticketColumns+` FROM tickets
		 WHERE period_id = $1 AND status = $2 AND number LIKE '%' || $3 || '%'
		 ORDER BY number ASC`,
		periodID, string(model.TicketUnsold), pattern,
	)
}

// RandomUnsoldTicket возвращает случайный непроданный билет тиража.
func (r *PostgresRepository) RandomUnsoldTicket(ctx context.Context, periodID int64) (*model.Ticket, error) {
	tickets, err := r.queryTickets(ctx,
		`SELECT `+ticketColumns+` FROM tickets
		 WHERE period_id = $1 AND status = $2
		 ORDER BY random() LIMIT 1`,
		periodID, string(model.TicketUnsold),
	)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, ErrNotFound
	}
	return &tickets[0], nil
}

// GetTicket возвращает билет по идентификатору.
func (r *PostgresRepository) GetTicket(ctx context.Context, id int64, lock LockMode) (*model.Ticket, error) {
	tickets, err := r.queryTickets(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1`+lock.clause(""),
		id,
	)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, ErrNotFound
	}
	return &tickets[0], nil
}

// MarkTicketSold переводит непроданный билет в статус проданного.
func (r *PostgresRepository) MarkTicketSold(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE tickets SET status = $2 WHERE id = $1 AND status = $3`,
		id, string(model.TicketSold), string(model.TicketUnsold),
	)
	if err != nil {
		return fmt.Errorf("mark ticket sold: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStale
	}
	return nil
}

// PickNumbers выбирает до limit различных номеров тиража в случайном порядке.
func (r *PostgresRepository) PickNumbers(ctx context.Context, periodID int64, soldOnly bool, limit int) ([]string, error) {
	query := `SELECT number FROM (SELECT DISTINCT number FROM tickets WHERE period_id = $1) t
		 ORDER BY random() LIMIT $2`
	args := []any{periodID, limit}
	if soldOnly {
		query = `SELECT number FROM (SELECT DISTINCT number FROM tickets WHERE period_id = $1 AND status = $3) t
		 ORDER BY random() LIMIT $2`
		args = append(args, string(model.TicketSold))
	}

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pick numbers: %w", err)
	}

	numbers, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect picked numbers: %w", err)
	}
	return numbers, nil
}

// DeleteAllTickets удаляет все билеты.
func (r *PostgresRepository) DeleteAllTickets(ctx context.Context) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM tickets`)
	if err != nil {
		return 0, fmt.Errorf("delete tickets: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) queryTickets(ctx context.Context, query string, args ...any) ([]model.Ticket, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select tickets: %w", err)
	}
	defer rows.Close()

	var tickets []model.Ticket
	for rows.Next() {
		var (
			t      model.Ticket
			price  string
			status string
		)
		if err := rows.Scan(&t.ID, &t.PeriodID, &t.Number, &price, &status); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}

		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse ticket price: %w", err)
		}
		t.Status = model.TicketStatus(status)

		tickets = append(tickets, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return tickets, nil
}
