package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/huandu/skiplist"
	"github.com/shopspring/decimal"

	"trade-ledger/internal/lifecycle"
	"trade-ledger/pkg/models"
)

// MemoryStore is an in-process lifecycle.Store. Trades and counterparties are
// kept in skiplists ordered the way the SQL store orders query results.
// A failed Transaction restores the state it started from.
type MemoryStore struct {
	mu    *sync.Mutex
	state *memoryState
	inTx  bool
	now   func() time.Time
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mu:    &sync.Mutex{},
		state: newMemoryState(),
		now:   time.Now,
	}
}

// Trades returns the trade repository
func (s *MemoryStore) Trades() lifecycle.TradeRepository {
	return &memoryTrades{s: s}
}

// Counterparties returns the counterparty repository
func (s *MemoryStore) Counterparties() lifecycle.CounterpartyRepository {
	return &memoryCounterparties{s: s}
}

// Transaction serialises fn against every other store access
func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx lifecycle.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	tx := &MemoryStore{mu: s.mu, state: s.state, inTx: true, now: s.now}
	if err := fn(tx); err != nil {
		*s.state = *snapshot
		return err
	}
	return nil
}

// lock acquires the store mutex unless the caller already holds it through Transaction
func (s *MemoryStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type tradeKey struct {
	tradeDate time.Time
	createdAt time.Time
	id        uint
}

type counterpartyKey struct {
	name string
	id   uint
}

// newest trade date first, then newest creation
func compareTradeKeys(lhs, rhs interface{}) int {
	l, r := lhs.(tradeKey), rhs.(tradeKey)
	switch {
	case !l.tradeDate.Equal(r.tradeDate):
		if l.tradeDate.After(r.tradeDate) {
			return -1
		}
		return 1
	case !l.createdAt.Equal(r.createdAt):
		if l.createdAt.After(r.createdAt) {
			return -1
		}
		return 1
	case l.id != r.id:
		if l.id > r.id {
			return -1
		}
		return 1
	}
	return 0
}

func compareCounterpartyKeys(lhs, rhs interface{}) int {
	l, r := lhs.(counterpartyKey), rhs.(counterpartyKey)
	if c := strings.Compare(strings.ToLower(l.name), strings.ToLower(r.name)); c != 0 {
		return c
	}
	if c := strings.Compare(l.name, r.name); c != 0 {
		return c
	}
	switch {
	case l.id < r.id:
		return -1
	case l.id > r.id:
		return 1
	}
	return 0
}

type memoryState struct {
	nextTradeID        uint
	nextCounterpartyID uint

	trades         map[uint]models.Trade
	counterparties map[uint]models.Counterparty

	tradeOrder        *skiplist.SkipList
	counterpartyOrder *skiplist.SkipList
}

func newMemoryState() *memoryState {
	return &memoryState{
		nextTradeID:        1,
		nextCounterpartyID: 1,
		trades:             make(map[uint]models.Trade),
		counterparties:     make(map[uint]models.Counterparty),
		tradeOrder:         skiplist.New(skiplist.GreaterThanFunc(compareTradeKeys)),
		counterpartyOrder:  skiplist.New(skiplist.GreaterThanFunc(compareCounterpartyKeys)),
	}
}

func (st *memoryState) clone() *memoryState {
	c := newMemoryState()
	c.nextTradeID = st.nextTradeID
	c.nextCounterpartyID = st.nextCounterpartyID
	for id, t := range st.trades {
		c.trades[id] = t
		c.tradeOrder.Set(keyOfTrade(t), id)
	}
	for id, cp := range st.counterparties {
		c.counterparties[id] = cp
		c.counterpartyOrder.Set(keyOfCounterparty(cp), id)
	}
	return c
}

func keyOfTrade(t models.Trade) tradeKey {
	return tradeKey{tradeDate: t.TradeDate, createdAt: t.CreatedAt, id: t.ID}
}

func keyOfCounterparty(c models.Counterparty) counterpartyKey {
	return counterpartyKey{name: c.Name, id: c.ID}
}

// withCounterparty returns a detached copy of t with its counterparty attached
func (st *memoryState) withCounterparty(t models.Trade) *models.Trade {
	if cp, ok := st.counterparties[t.CounterpartyID]; ok {
		t.Counterparty = &cp
	} else {
		t.Counterparty = nil
	}
	return &t
}

func (st *memoryState) hasTrades(counterpartyID uint) bool {
	for _, t := range st.trades {
		if t.CounterpartyID == counterpartyID {
			return true
		}
	}
	return false
}

type memoryTrades struct {
	s *MemoryStore
}

func (r *memoryTrades) FindByID(ctx context.Context, id uint) (*models.Trade, error) {
	defer r.s.lock()()
	t, ok := r.s.state.trades[id]
	if !ok {
		return nil, nil
	}
	return r.s.state.withCounterparty(t), nil
}

func (r *memoryTrades) FindByReference(ctx context.Context, reference string) (*models.Trade, error) {
	defer r.s.lock()()
	for _, t := range r.s.state.trades {
		if t.TradeReference == reference {
			return r.s.state.withCounterparty(t), nil
		}
	}
	return nil, nil
}

func (r *memoryTrades) ExistsByReference(ctx context.Context, reference string, excludeID uint) (bool, error) {
	defer r.s.lock()()
	for id, t := range r.s.state.trades {
		if t.TradeReference == reference && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryTrades) Find(ctx context.Context, filter lifecycle.TradeFilter, page lifecycle.Page) ([]models.Trade, error) {
	defer r.s.lock()()
	st := r.s.state

	var trades []models.Trade
	skip := page.Offset()
	for elem := st.tradeOrder.Front(); elem != nil; elem = elem.Next() {
		t := st.trades[elem.Value.(uint)]
		if !matchTrade(t, filter) {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		trades = append(trades, *st.withCounterparty(t))
		if page.Size > 0 && len(trades) == page.Size {
			break
		}
	}
	return trades, nil
}

func (r *memoryTrades) Count(ctx context.Context, filter lifecycle.TradeFilter) (int64, error) {
	defer r.s.lock()()
	var count int64
	for _, t := range r.s.state.trades {
		if matchTrade(t, filter) {
			count++
		}
	}
	return count, nil
}

func (r *memoryTrades) TotalValue(ctx context.Context, counterpartyID uint) (decimal.Decimal, error) {
	defer r.s.lock()()
	total := decimal.Zero
	for _, t := range r.s.state.trades {
		if t.CounterpartyID == counterpartyID {
			total = total.Add(t.TotalValue())
		}
	}
	return total, nil
}

func (r *memoryTrades) Save(ctx context.Context, trade *models.Trade) error {
	defer r.s.lock()()
	st := r.s.state

	for id, t := range st.trades {
		if t.TradeReference == trade.TradeReference && id != trade.ID {
			return lifecycle.ErrUniqueViolation
		}
	}
	if _, ok := st.counterparties[trade.CounterpartyID]; !ok {
		return lifecycle.ErrForeignKeyViolation
	}

	now := r.s.now()
	if trade.ID == 0 {
		trade.ID = st.nextTradeID
		st.nextTradeID++
		trade.CreatedAt = now
	} else if old, ok := st.trades[trade.ID]; ok {
		st.tradeOrder.Remove(keyOfTrade(old))
		trade.CreatedAt = old.CreatedAt
	}
	trade.UpdatedAt = now

	stored := *trade
	stored.Counterparty = nil
	st.trades[stored.ID] = stored
	st.tradeOrder.Set(keyOfTrade(stored), stored.ID)
	return nil
}

func (r *memoryTrades) Delete(ctx context.Context, id uint) error {
	defer r.s.lock()()
	st := r.s.state
	if t, ok := st.trades[id]; ok {
		st.tradeOrder.Remove(keyOfTrade(t))
		delete(st.trades, id)
	}
	return nil
}

func matchTrade(t models.Trade, f lifecycle.TradeFilter) bool {
	switch {
	case f.CounterpartyID != 0 && t.CounterpartyID != f.CounterpartyID:
		return false
	case f.Status != "" && t.Status != f.Status:
		return false
	case f.TradeType != "" && t.TradeType != f.TradeType:
		return false
	case f.Instrument != "" && t.Instrument != f.Instrument:
		return false
	case f.Currency != "" && t.Currency != f.Currency:
		return false
	case !f.TradeDateFrom.IsZero() && t.TradeDate.Before(models.Date(f.TradeDateFrom)):
		return false
	case !f.TradeDateTo.IsZero() && t.TradeDate.After(models.Date(f.TradeDateTo)):
		return false
	case !f.SettlementDateFrom.IsZero() && t.SettlementDate.Before(models.Date(f.SettlementDateFrom)):
		return false
	case !f.SettlementDateTo.IsZero() && t.SettlementDate.After(models.Date(f.SettlementDateTo)):
		return false
	case f.MinTotalValue != nil && t.TotalValue().LessThan(*f.MinTotalValue):
		return false
	}
	return true
}

type memoryCounterparties struct {
	s *MemoryStore
}

func (r *memoryCounterparties) FindByID(ctx context.Context, id uint) (*models.Counterparty, error) {
	defer r.s.lock()()
	cp, ok := r.s.state.counterparties[id]
	if !ok {
		return nil, nil
	}
	return &cp, nil
}

func (r *memoryCounterparties) FindByCode(ctx context.Context, code string) (*models.Counterparty, error) {
	defer r.s.lock()()
	for _, cp := range r.s.state.counterparties {
		if cp.Code == code {
			found := cp
			return &found, nil
		}
	}
	return nil, nil
}

func (r *memoryCounterparties) ExistsByCode(ctx context.Context, code string, excludeID uint) (bool, error) {
	defer r.s.lock()()
	for id, cp := range r.s.state.counterparties {
		if cp.Code == code && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryCounterparties) Find(ctx context.Context, filter lifecycle.CounterpartyFilter, page lifecycle.Page) ([]models.Counterparty, error) {
	defer r.s.lock()()
	st := r.s.state

	var counterparties []models.Counterparty
	skip := page.Offset()
	for elem := st.counterpartyOrder.Front(); elem != nil; elem = elem.Next() {
		cp := st.counterparties[elem.Value.(uint)]
		if !st.matchCounterparty(cp, filter) {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		counterparties = append(counterparties, cp)
		if page.Size > 0 && len(counterparties) == page.Size {
			break
		}
	}
	return counterparties, nil
}

func (r *memoryCounterparties) Count(ctx context.Context, filter lifecycle.CounterpartyFilter) (int64, error) {
	defer r.s.lock()()
	var count int64
	for _, cp := range r.s.state.counterparties {
		if r.s.state.matchCounterparty(cp, filter) {
			count++
		}
	}
	return count, nil
}

func (r *memoryCounterparties) Save(ctx context.Context, counterparty *models.Counterparty) error {
	defer r.s.lock()()
	st := r.s.state

	for id, cp := range st.counterparties {
		if cp.Code == counterparty.Code && id != counterparty.ID {
			return lifecycle.ErrUniqueViolation
		}
	}
	if counterparty.Status == "" {
		counterparty.Status = models.CounterpartyStatusActive
	}

	now := r.s.now()
	if counterparty.ID == 0 {
		counterparty.ID = st.nextCounterpartyID
		st.nextCounterpartyID++
		counterparty.CreatedAt = now
	} else if old, ok := st.counterparties[counterparty.ID]; ok {
		st.counterpartyOrder.Remove(keyOfCounterparty(old))
		counterparty.CreatedAt = old.CreatedAt
	}
	counterparty.UpdatedAt = now

	st.counterparties[counterparty.ID] = *counterparty
	st.counterpartyOrder.Set(keyOfCounterparty(*counterparty), counterparty.ID)
	return nil
}

func (r *memoryCounterparties) Delete(ctx context.Context, id uint) error {
	defer r.s.lock()()
	st := r.s.state
	cp, ok := st.counterparties[id]
	if !ok {
		return nil
	}
	if st.hasTrades(id) {
		return lifecycle.ErrForeignKeyViolation
	}
	st.counterpartyOrder.Remove(keyOfCounterparty(cp))
	delete(st.counterparties, id)
	return nil
}

func (st *memoryState) matchCounterparty(cp models.Counterparty, f lifecycle.CounterpartyFilter) bool {
	switch {
	case f.Type != "" && cp.Type != f.Type:
		return false
	case f.Status != "" && cp.Status != f.Status:
		return false
	case f.NameContains != "" && !strings.Contains(strings.ToLower(cp.Name), strings.ToLower(f.NameContains)):
		return false
	case f.HasTrades != nil && st.hasTrades(cp.ID) != *f.HasTrades:
		return false
	}
	return true
}
