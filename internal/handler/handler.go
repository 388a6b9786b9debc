// Package handler содержит HTTP-обработчики API лотерейного сервиса.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/lotto-system/internal/lotto"
	"github.com/mmeshcher/lotto-system/internal/middleware"
	"github.com/mmeshcher/lotto-system/internal/model"
	"github.com/mmeshcher/lotto-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Health(ctx context.Context) error

	LatestPeriod(ctx context.Context) (*model.RewardPeriod, error)
	CreatePeriod(ctx context.Context, callerID int64) (*model.RewardPeriod, error)
	ResetAll(ctx context.Context, callerID int64) (*model.ResetCounts, *model.RewardPeriod, error)
	Draw(ctx context.Context, callerID, periodID int64, mode model.DrawMode) (*service.DrawResult, error)

	CreateTicket(ctx context.Context, callerID int64, number string) (*model.Ticket, error)
	CreateRandomTickets(ctx context.Context, callerID int64, count int) (int64, []string, error)
	ListAvailable(ctx context.Context) (int64, []model.Ticket, error)
	SearchByPattern(ctx context.Context, pattern string) (int64, []model.Ticket, error)
	RandomAvailable(ctx context.Context) (*model.Ticket, error)
	Purchase(ctx context.Context, userID, ticketID int64) (*model.Order, *model.Ticket, error)

	CheckOrder(ctx context.Context, orderID int64) (*service.CheckResult, error)
	Redeem(ctx context.Context, orderID int64) (*service.RedeemResult, error)

	Deposit(ctx context.Context, userID int64, amount decimal.Decimal) (*model.User, error)
	Withdraw(ctx context.Context, userID int64, amount decimal.Decimal) (*model.User, error)
	RegisterUser(ctx context.Context, reg service.Registration) (int64, error)
	DeleteUser(ctx context.Context, userID int64) (int64, error)
	UserOrders(ctx context.Context, userID int64) ([]model.OrderDetail, error)
}

// Handler реализует HTTP-обработчики API лотерейного сервиса.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
	}
}

type callerRequest struct {
	ID int64 `json:"id"`
}

type drawRequest struct {
	ID         int64  `json:"id"`
	StatusType string `json:"statusType"`
}

type ticketRequest struct {
	ID     int64  `json:"id"`
	Number string `json:"number"`
}

type randomTicketsRequest struct {
	ID          int64 `json:"id"`
	RandomCount int   `json:"randomCount"`
}

type searchRequest struct {
	Number string `json:"number"`
}

type purchaseRequest struct {
	UserID   int64 `json:"user_id"`
	TicketID int64 `json:"lotto_id"`
}

type redeemRequest struct {
	OrderID int64 `json:"order_id"`
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type registerRequest struct {
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Name     string          `json:"name"`
	Role     string          `json:"role"`
	Phone    string          `json:"phone"`
	Birthday string          `json:"birthday"`
	Wallet   decimal.Decimal `json:"wallet"`
}

type periodResponse struct {
	ID      int64       `json:"reward_id"`
	Date    string      `json:"date"`
	Drawn   bool        `json:"drawn"`
	Rewards model.Tiers `json:"rewards"`
}

func newPeriodResponse(p *model.RewardPeriod) periodResponse {
	return periodResponse{
		ID:      p.ID,
		Date:    p.Date.Format(time.DateOnly),
		Drawn:   p.Drawn(),
		Rewards: p.Tiers,
	}
}

type walletResponse struct {
	ID     int64           `json:"user_id"`
	Name   string          `json:"name"`
	Wallet decimal.Decimal `json:"wallet"`
}

// Health проверяет доступность базы данных.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Health(r.Context()); err != nil {
		h.logger.Error("db check error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "database unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "database ok"})
}

// LatestPeriod возвращает активный тираж.
func (h *Handler) LatestPeriod(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.LatestPeriod(r.Context())
	if err != nil {
		h.fail(w, r, "latest period", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "latest reward period",
		"reward":  newPeriodResponse(p),
	})
}

// CreatePeriod открывает новый тираж.
func (h *Handler) CreatePeriod(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if !h.decode(w, r, &req) || !requireID(w, req.ID, "id") {
		return
	}

	p, err := h.service.CreatePeriod(r.Context(), req.ID)
	if err != nil {
		h.fail(w, r, "create period", err, zap.Int64("callerID", req.ID))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "reward period created",
		"reward":  newPeriodResponse(p),
	})
}

// Draw разыгрывает активный тираж.
func (h *Handler) Draw(w http.ResponseWriter, r *http.Request) {
	var req drawRequest
	if !h.decode(w, r, &req) || !requireID(w, req.ID, "id") {
		return
	}

	res, err := h.service.Draw(r.Context(), req.ID, 0, lotto.ParseMode(req.StatusType))
	if err != nil {
		h.fail(w, r, "draw", err, zap.Int64("callerID", req.ID))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "reward drawn",
		"mode":        res.Mode,
		"reward_id":   res.Period.ID,
		"picked":      res.Picked,
		"reward_data": res.Period.Tiers,
	})
}

// Reset удаляет заказы, билеты и обычных пользователей и открывает новый тираж.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if !h.decode(w, r, &req) || !requireID(w, req.ID, "id") {
		return
	}

	counts, p, err := h.service.ResetAll(r.Context(), req.ID)
	if err != nil {
		h.fail(w, r, "reset", err, zap.Int64("callerID", req.ID))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "system reset",
		"deleted": counts,
		"reward":  newPeriodResponse(p),
	})
}

// CreateTicket добавляет билет с указанным номером в активный тираж.
func (h *Handler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	var req ticketRequest
	if !h.decode(w, r, &req) || !requireID(w, req.ID, "id") {
		return
	}
	if req.Number == "" {
		writeError(w, http.StatusBadRequest, "number is required")
		return
	}

	t, err := h.service.CreateTicket(r.Context(), req.ID, req.Number)
	if err != nil {
		h.fail(w, r, "create lotto", err, zap.Int64("callerID", req.ID), zap.String("number", req.Number))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "lotto inserted",
		"lotto":   t,
	})
}

// CreateRandomTickets добавляет в активный тираж билеты со случайными номерами.
func (h *Handler) CreateRandomTickets(w http.ResponseWriter, r *http.Request) {
	var req randomTicketsRequest
	if !h.decode(w, r, &req) || !requireID(w, req.ID, "id") {
		return
	}
	if req.RandomCount <= 0 {
		writeError(w, http.StatusBadRequest, "randomCount must be greater than 0")
		return
	}

	periodID, numbers, err := h.service.CreateRandomTickets(r.Context(), req.ID, req.RandomCount)
	if err != nil {
		h.fail(w, r, "random lotto", err, zap.Int64("callerID", req.ID), zap.Int("count", req.RandomCount))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "random lotto inserted",
		"reward_id": periodID,
		"total":     len(numbers),
		"numbers":   numbers,
	})
}

// ListTickets возвращает билеты активного тиража.
func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	periodID, tickets, err := h.service.ListAvailable(r.Context())
	if err != nil {
		h.fail(w, r, "list lotto", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "lotto list",
		"reward_id": periodID,
		"total":     len(tickets),
		"lotto":     nonNil(tickets),
	})
}

// SearchTickets ищет непроданные билеты активного тиража по части номера.
func (h *Handler) SearchTickets(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Number == "" {
		writeError(w, http.StatusBadRequest, "number is required")
		return
	}

	periodID, tickets, err := h.service.SearchByPattern(r.Context(), req.Number)
	if err != nil {
		h.fail(w, r, "search lotto", err, zap.String("pattern", req.Number))
		return
	}

	msg := "lotto found"
	if len(tickets) == 0 {
		msg = "no lotto matches this number"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   msg,
		"reward_id": periodID,
		"total":     len(tickets),
		"results":   nonNil(tickets),
	})
}

// RandomTicket возвращает случайный непроданный билет активного тиража.
func (h *Handler) RandomTicket(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.RandomAvailable(r.Context())
	if err != nil {
		h.fail(w, r, "random one lotto", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "random lotto",
		"lotto":   t,
	})
}

// Purchase продаёт билет пользователю.
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if !h.decode(w, r, &req) || !requireID(w, req.UserID, "user_id") || !requireID(w, req.TicketID, "lotto_id") {
		return
	}

	order, t, err := h.service.Purchase(r.Context(), req.UserID, req.TicketID)
	if err != nil {
		h.fail(w, r, "purchase", err, zap.Int64("userID", req.UserID), zap.Int64("lottoID", req.TicketID))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "lotto purchased",
		"order":   order,
		"lotto":   t,
	})
}

// CheckOrder проверяет, выиграл ли заказ.
func (h *Handler) CheckOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "order_id")
	if !ok {
		return
	}

	res, err := h.service.CheckOrder(r.Context(), orderID)
	if err != nil {
		h.fail(w, r, "check order", err, zap.Int64("orderID", orderID))
		return
	}

	body := map[string]any{
		"order_id":    res.OrderID,
		"lottoNumber": res.Number,
		"status":      res.Status,
		"drawn":       res.Drawn,
		"win":         res.Win,
	}
	switch {
	case !res.Drawn:
		body["message"] = "reward not drawn yet"
	case res.Win:
		body["message"] = "congratulations, you won"
		body["tier"] = res.Tier
		body["prize"] = res.Prize
	default:
		body["message"] = "sorry, no prize this time"
	}
	writeJSON(w, http.StatusOK, body)
}

// Redeem выплачивает приз по выигравшему заказу.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if !h.decode(w, r, &req) || !requireID(w, req.OrderID, "order_id") {
		return
	}

	res, err := h.service.Redeem(r.Context(), req.OrderID)
	if err != nil {
		h.fail(w, r, "redeem", err, zap.Int64("orderID", req.OrderID))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "prize redeemed",
		"order_id":    res.OrderID,
		"lottoNumber": res.Number,
		"tier":        res.Tier,
		"prize":       res.Prize,
		"wallet":      res.Wallet,
	})
}

// Deposit пополняет кошелёк пользователя.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.walletOp(w, r, "deposit", "deposit successful", h.service.Deposit)
}

// Withdraw списывает средства с кошелька пользователя.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.walletOp(w, r, "withdraw", "withdraw successful", h.service.Withdraw)
}

func (h *Handler) walletOp(w http.ResponseWriter, r *http.Request, op, msg string,
	fn func(ctx context.Context, userID int64, amount decimal.Decimal) (*model.User, error)) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req amountRequest
	if !h.decode(w, r, &req) {
		return
	}

	u, err := fn(r.Context(), userID, req.Amount)
	if err != nil {
		h.fail(w, r, op, err, zap.Int64("userID", userID), zap.String("amount", req.Amount.String()))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": msg,
		"user":    walletResponse{ID: u.ID, Name: u.Name, Wallet: u.Wallet},
	})
}

// MyOrders возвращает заказы пользователя.
func (h *Handler) MyOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	orders, err := h.service.UserOrders(r.Context(), userID)
	if err != nil {
		h.fail(w, r, "user orders", err, zap.Int64("userID", userID))
		return
	}

	msg := "user orders"
	if len(orders) == 0 {
		msg = "no lotto purchased yet"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": msg,
		"total":   len(orders),
		"orders":  nonNil(orders),
	})
}

// Register создаёт учётную запись.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	reg := service.Registration{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     model.Role(req.Role),
		Phone:    req.Phone,
		Wallet:   req.Wallet,
	}
	if req.Birthday != "" {
		b, err := time.Parse(time.DateOnly, req.Birthday)
		if err != nil {
			writeError(w, http.StatusBadRequest, "birthday must be YYYY-MM-DD")
			return
		}
		reg.Birthday = &b
	}

	id, err := h.service.RegisterUser(r.Context(), reg)
	if err != nil {
		h.fail(w, r, "register user", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "user created",
		"id":      id,
	})
}

// DeleteUser удаляет обычного пользователя и его заказы.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	orders, err := h.service.DeleteUser(r.Context(), userID)
	if err != nil {
		h.fail(w, r, "delete user", err, zap.Int64("userID", userID))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "user deleted",
		"deleted": map[string]int64{"orders": orders, "users": 1},
	})
}

var kindStatus = map[service.Kind]int{
	service.KindValidation:     http.StatusBadRequest,
	service.KindNotFound:       http.StatusNotFound,
	service.KindForbidden:      http.StatusForbidden,
	service.KindConflict:       http.StatusConflict,
	service.KindDataCorruption: http.StatusInternalServerError,
}

// fail переводит ошибку сервиса в HTTP-ответ. Клиент получает только
// устойчивое сообщение, подробности уходят в лог.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error, fields ...zap.Field) {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		status := kindStatus[svcErr.Kind]
		if status == http.StatusInternalServerError {
			h.logger.Error(op+" error", append(fields, zap.Error(err), zap.String("requestID", middleware.RequestIDFromContext(r.Context())))...)
		}
		writeError(w, status, svcErr.Message)
		return
	}

	h.logger.Error(op+" error", append(fields, zap.Error(err), zap.String("requestID", middleware.RequestIDFromContext(r.Context())))...)
	writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func requireID(w http.ResponseWriter, id int64, name string) bool {
	if id <= 0 {
		writeError(w, http.StatusBadRequest, name+" is required")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
