package service

import (
	"context"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/lotto-system/internal/model"
	"github.com/mmeshcher/lotto-system/internal/repository"
)

// memRepo хранит данные в памяти. Транзакции сериализуются одним мьютексом,
// ошибка внутри InTx восстанавливает снимок состояния. Мьютекс скрывает
// отсутствие построчных блокировок, поэтому запрошенные LockMode
// записываются в locks и проверяются тестами отдельно.
type memRepo struct {
	mu sync.Mutex

	users   map[int64]model.User
	periods map[int64]model.RewardPeriod
	tickets map[int64]model.Ticket
	orders  map[int64]model.Order
	nextID  int64

	// failOn заставляет метод с таким именем вернуть ошибку.
	failOn  string
	failErr error

	locks []lockCall
}

type lockCall struct {
	op   string
	mode repository.LockMode
}

type memTxKey struct{}

func newMemRepo() *memRepo {
	return &memRepo{
		users:   map[int64]model.User{},
		periods: map[int64]model.RewardPeriod{},
		tickets: map[int64]model.Ticket{},
		orders:  map[int64]model.Order{},
	}
}

func (m *memRepo) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memRepo) lock(ctx context.Context) func() {
	if ctx.Value(memTxKey{}) != nil {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *memRepo) recordLock(op string, mode repository.LockMode) {
	m.locks = append(m.locks, lockCall{op: op, mode: mode})
}

// lockModes возвращает блокировки, запрошенные методом op.
func (m *memRepo) lockModes(op string) []repository.LockMode {
	m.mu.Lock()
	defer m.mu.Unlock()

	var modes []repository.LockMode
	for _, c := range m.locks {
		if c.op == op {
			modes = append(modes, c.mode)
		}
	}
	return modes
}

func (m *memRepo) clearLocks() {
	m.mu.Lock()
	m.locks = nil
	m.mu.Unlock()
}

func (m *memRepo) fail(name string) error {
	if m.failOn == name {
		return m.failErr
	}
	return nil
}

type memSnapshot struct {
	users   map[int64]model.User
	periods map[int64]model.RewardPeriod
	tickets map[int64]model.Ticket
	orders  map[int64]model.Order
}

func (m *memRepo) snapshot() memSnapshot {
	s := memSnapshot{
		users:   make(map[int64]model.User, len(m.users)),
		periods: make(map[int64]model.RewardPeriod, len(m.periods)),
		tickets: make(map[int64]model.Ticket, len(m.tickets)),
		orders:  make(map[int64]model.Order, len(m.orders)),
	}
	for k, v := range m.users {
		s.users[k] = v
	}
	for k, v := range m.periods {
		v.Tiers = v.Tiers.Clone()
		s.periods[k] = v
	}
	for k, v := range m.tickets {
		s.tickets[k] = v
	}
	for k, v := range m.orders {
		s.orders[k] = v
	}
	return s
}

func (m *memRepo) restore(s memSnapshot) {
	m.users, m.periods, m.tickets, m.orders = s.users, s.periods, s.tickets, s.orders
}

var _ Repository = (*memRepo)(nil)

func (m *memRepo) Close() error { return nil }

func (m *memRepo) Ping(ctx context.Context) error { return m.fail("Ping") }

func (m *memRepo) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memRepo) addUser(role model.Role, wallet int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.id()
	m.users[id] = model.User{ID: id, Role: role, Wallet: decimal.NewFromInt(wallet)}
	return id
}

func (m *memRepo) wallet(id int64) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id].Wallet
}

func (m *memRepo) CreateUser(ctx context.Context, u *model.User) (int64, error) {
	defer m.lock(ctx)()
	if err := m.fail("CreateUser"); err != nil {
		return 0, err
	}

	for _, existing := range m.users {
		if u.Email != "" && existing.Email == u.Email {
			return 0, repository.ErrDuplicate
		}
	}
	id := m.id()
	cp := *u
	cp.ID = id
	m.users[id] = cp
	return id, nil
}

func (m *memRepo) GetUser(ctx context.Context, id int64) (*model.User, error) {
	defer m.lock(ctx)()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (m *memRepo) AddToWallet(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	defer m.lock(ctx)()
	if err := m.fail("AddToWallet"); err != nil {
		return decimal.Zero, err
	}

	u, ok := m.users[userID]
	if !ok {
		return decimal.Zero, repository.ErrNotFound
	}
	u.Wallet = u.Wallet.Add(amount)
	m.users[userID] = u
	return u.Wallet, nil
}

func (m *memRepo) SubtractFromWallet(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	defer m.lock(ctx)()
	u, ok := m.users[userID]
	if !ok {
		return decimal.Zero, repository.ErrNotFound
	}
	if u.Wallet.LessThan(amount) {
		return decimal.Zero, repository.ErrInsufficientFunds
	}
	u.Wallet = u.Wallet.Sub(amount)
	m.users[userID] = u
	return u.Wallet, nil
}

func (m *memRepo) DeleteNonAdminUser(ctx context.Context, id int64) error {
	defer m.lock(ctx)()
	u, ok := m.users[id]
	if !ok || u.Role == model.RoleAdmin {
		return repository.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *memRepo) DeleteUsersByRole(ctx context.Context, role model.Role) (int64, error) {
	defer m.lock(ctx)()
	if err := m.fail("DeleteUsersByRole"); err != nil {
		return 0, err
	}

	var n int64
	for id, u := range m.users {
		if u.Role == role {
			delete(m.users, id)
			n++
		}
	}
	return n, nil
}

func (m *memRepo) LockPeriods(ctx context.Context) error { return nil }

func (m *memRepo) LatestPeriodID(ctx context.Context) (int64, error) {
	defer m.lock(ctx)()
	var latest int64
	for id := range m.periods {
		if id > latest {
			latest = id
		}
	}
	if latest == 0 {
		return 0, repository.ErrNotFound
	}
	return latest, nil
}

func (m *memRepo) GetPeriod(ctx context.Context, id int64, lock repository.LockMode) (*model.RewardPeriod, error) {
	defer m.lock(ctx)()
	m.recordLock("GetPeriod", lock)
	p, ok := m.periods[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if err := p.Tiers.Validate(); err != nil {
		return nil, err
	}
	p.Tiers = p.Tiers.Clone()
	return &p, nil
}

func (m *memRepo) PeriodDateExists(ctx context.Context, date time.Time) (bool, error) {
	defer m.lock(ctx)()
	for _, p := range m.periods {
		if p.Date.Equal(date) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) InsertPeriod(ctx context.Context, date time.Time, tiers model.Tiers) (int64, error) {
	defer m.lock(ctx)()
	if err := m.fail("InsertPeriod"); err != nil {
		return 0, err
	}

	for _, p := range m.periods {
		if p.Date.Equal(date) {
			return 0, repository.ErrDuplicate
		}
	}
	id := m.id()
	m.periods[id] = model.RewardPeriod{ID: id, Date: date, Tiers: tiers.Clone()}
	return id, nil
}

func (m *memRepo) UpdatePeriodTiers(ctx context.Context, id, version int64, tiers model.Tiers) error {
	defer m.lock(ctx)()
	p, ok := m.periods[id]
	if !ok || p.Version != version {
		return repository.ErrStale
	}
	p.Tiers = tiers.Clone()
	p.Version++
	m.periods[id] = p
	return nil
}

func (m *memRepo) InsertTicket(ctx context.Context, t *model.Ticket) (int64, error) {
	defer m.lock(ctx)()
	if err := m.fail("InsertTicket"); err != nil {
		return 0, err
	}

	for _, existing := range m.tickets {
		if existing.PeriodID == t.PeriodID && existing.Number == t.Number {
			return 0, repository.ErrDuplicate
		}
	}
	id := m.id()
	cp := *t
	cp.ID = id
	m.tickets[id] = cp
	return id, nil
}

func (m *memRepo) TicketNumbers(ctx context.Context, periodID int64) ([]string, error) {
	defer m.lock(ctx)()
	var out []string
	for _, t := range m.tickets {
		if t.PeriodID == periodID {
			out = append(out, t.Number)
		}
	}
	return out, nil
}

func (m *memRepo) filterTickets(keep func(model.Ticket) bool) []model.Ticket {
	var out []model.Ticket
	for _, t := range m.tickets {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

func (m *memRepo) ListTickets(ctx context.Context, periodID int64) ([]model.Ticket, error) {
	defer m.lock(ctx)()
	return m.filterTickets(func(t model.Ticket) bool { return t.PeriodID == periodID }), nil
}

func (m *memRepo) SearchTickets(ctx context.Context, periodID int64, pattern string) ([]model.Ticket, error) {
	defer m.lock(ctx)()
	return m.filterTickets(func(t model.Ticket) bool {
		return t.PeriodID == periodID && t.Status == model.TicketUnsold && strings.Contains(t.Number, pattern)
	}), nil
}

func (m *memRepo) RandomUnsoldTicket(ctx context.Context, periodID int64) (*model.Ticket, error) {
	defer m.lock(ctx)()
	unsold := m.filterTickets(func(t model.Ticket) bool {
		return t.PeriodID == periodID && t.Status == model.TicketUnsold
	})
	if len(unsold) == 0 {
		return nil, repository.ErrNotFound
	}
	t := unsold[rand.IntN(len(unsold))]
	return &t, nil
}

func (m *memRepo) GetTicket(ctx context.Context, id int64, lock repository.LockMode) (*model.Ticket, error) {
	defer m.lock(ctx)()
	m.recordLock("GetTicket", lock)
	t, ok := m.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (m *memRepo) MarkTicketSold(ctx context.Context, id int64) error {
	defer m.lock(ctx)()
	t, ok := m.tickets[id]
	if !ok || t.Status != model.TicketUnsold {
		return repository.ErrStale
	}
	t.Status = model.TicketSold
	m.tickets[id] = t
	return nil
}

func (m *memRepo) PickNumbers(ctx context.Context, periodID int64, soldOnly bool, limit int) ([]string, error) {
	defer m.lock(ctx)()
	seen := map[string]bool{}
	var out []string
	for _, t := range m.filterTickets(func(t model.Ticket) bool {
		return t.PeriodID == periodID && (!soldOnly || t.Status == model.TicketSold)
	}) {
		if !seen[t.Number] {
			seen[t.Number] = true
			out = append(out, t.Number)
		}
	}
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) DeleteAllTickets(ctx context.Context) (int64, error) {
	defer m.lock(ctx)()
	n := int64(len(m.tickets))
	m.tickets = map[int64]model.Ticket{}
	return n, nil
}

func (m *memRepo) InsertOrder(ctx context.Context, o *model.Order) error {
	defer m.lock(ctx)()
	if err := m.fail("InsertOrder"); err != nil {
		return err
	}

	for _, existing := range m.orders {
		if existing.TicketID == o.TicketID {
			return repository.ErrDuplicate
		}
	}
	o.ID = m.id()
	o.CreatedOn = time.Now()
	m.orders[o.ID] = *o
	return nil
}

func (m *memRepo) detail(o model.Order) model.OrderDetail {
	t := m.tickets[o.TicketID]
	return model.OrderDetail{
		Order:        o,
		Number:       t.Number,
		Price:        t.Price,
		TicketStatus: t.Status,
		PeriodDate:   m.periods[o.PeriodID].Date,
	}
}

func (m *memRepo) GetOrder(ctx context.Context, id int64, lock repository.LockMode) (*model.OrderDetail, error) {
	defer m.lock(ctx)()
	m.recordLock("GetOrder", lock)
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	d := m.detail(o)
	return &d, nil
}

func (m *memRepo) OrdersByUser(ctx context.Context, userID int64) ([]model.OrderDetail, error) {
	defer m.lock(ctx)()
	var out []model.OrderDetail
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, m.detail(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memRepo) MarkOrderRedeemed(ctx context.Context, id int64) error {
	defer m.lock(ctx)()
	o, ok := m.orders[id]
	if !ok || o.Status != model.OrderPending {
		return repository.ErrStale
	}
	o.Status = model.OrderRedeemed
	m.orders[id] = o
	return nil
}

func (m *memRepo) DeleteOrdersByUser(ctx context.Context, userID int64) (int64, error) {
	defer m.lock(ctx)()
	var n int64
	for id, o := range m.orders {
		if o.UserID == userID {
			delete(m.orders, id)
			n++
		}
	}
	return n, nil
}

func (m *memRepo) DeleteAllOrders(ctx context.Context) (int64, error) {
	defer m.lock(ctx)()
	n := int64(len(m.orders))
	m.orders = map[int64]model.Order{}
	return n, nil
}
