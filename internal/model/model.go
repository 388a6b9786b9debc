// Package model содержит доменные сущности лотерейного сервиса.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role описывает роль учётной записи.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid сообщает, является ли роль одной из известных.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User представляет учётную запись с балансом кошелька.
type User struct {
	ID       int64           `json:"user_id"`
	Email    string          `json:"email,omitempty"`
	Password string          `json:"-"`
	Name     string          `json:"name,omitempty"`
	Role     Role            `json:"role"`
	Phone    string          `json:"phone,omitempty"`
	Birthday *time.Time      `json:"birthday,omitempty"`
	Wallet   decimal.Decimal `json:"wallet"`
}

// RewardPeriod описывает один тираж (งวด) с пятью призовыми категориями.
type RewardPeriod struct {
	ID      int64     `json:"reward_id"`
	Date    time.Time `json:"date"`
	Tiers   Tiers     `json:"rewards"`
	Version int64     `json:"-"`
}

// Drawn сообщает, что по тиражу уже объявлены выигрышные номера.
func (p *RewardPeriod) Drawn() bool {
	return p.Tiers.Drawn()
}

// TicketStatus описывает статус лотерейного билета.
type TicketStatus string

const (
	TicketUnsold TicketStatus = "unsold"
	TicketSold   TicketStatus = "sold"
)

// Ticket представляет лотерейный билет конкретного тиража.
type Ticket struct {
	ID       int64           `json:"lotto_id"`
	PeriodID int64           `json:"reward_id"`
	Number   string          `json:"number"`
	Price    decimal.Decimal `json:"price"`
	Status   TicketStatus    `json:"status"`
}

// OrderStatus описывает статус заказа.
type OrderStatus string

const (
	OrderPending  OrderStatus = "pending"
	OrderRedeemed OrderStatus = "redeemed"
)

// Order описывает покупку билета пользователем.
type Order struct {
	ID        int64       `json:"order_id"`
	TicketID  int64       `json:"lotto_id"`
	PeriodID  int64       `json:"reward_id"`
	UserID    int64       `json:"user_id"`
	CreatedOn time.Time   `json:"date"`
	Status    OrderStatus `json:"status"`
}

// OrderDetail объединяет заказ с данными билета и тиража.
type OrderDetail struct {
	Order
	Number       string          `json:"number"`
	Price        decimal.Decimal `json:"price"`
	TicketStatus TicketStatus    `json:"lotto_status"`
	PeriodDate   time.Time       `json:"reward_date"`
}

// ResetCounts содержит количество удалённых записей при сбросе.
type ResetCounts struct {
	Orders  int64 `json:"orders"`
	Tickets int64 `json:"lotto"`
	Users   int64 `json:"users_role_user"`
}

// DrawMode определяет, из каких билетов выбираются выигрышные номера.
type DrawMode string

const (
	DrawSold DrawMode = "sold"
	DrawAll  DrawMode = "all"
)
