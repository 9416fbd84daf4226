package lifecycle_test

import (
	"context"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"trade-ledger/internal/lifecycle"
	"trade-ledger/pkg/models"
	"trade-ledger/pkg/repository"
)

type recorder struct {
	mu     sync.Mutex
	events []lifecycle.Event
}

func (r *recorder) Observe(_ context.Context, event lifecycle.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) ofType(t lifecycle.EventType) []lifecycle.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []lifecycle.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	store          *repository.MemoryStore
	trades         *lifecycle.TradeEngine
	counterparties *lifecycle.CounterpartyEngine
	events         *recorder
	logs           *test.Hook
}

func newFixture(t *testing.T, opts ...lifecycle.Option) *fixture {
	t.Helper()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	events := &recorder{}
	store := repository.NewMemoryStore()
	opts = append([]lifecycle.Option{
		lifecycle.WithObserver(events),
		lifecycle.WithLogger(logger),
	}, opts...)

	return &fixture{
		store:          store,
		trades:         lifecycle.NewTradeEngine(store, opts...),
		counterparties: lifecycle.NewCounterpartyEngine(store, opts...),
		events:         events,
		logs:           hook,
	}
}

func counterpartyRequest(code string) lifecycle.CounterpartyRequest {
	return lifecycle.CounterpartyRequest{
		Name:  "Counterparty " + code,
		Code:  code,
		Email: "ops@example.com",
		Type:  models.CounterpartyTypeInstitutional,
	}
}

func tradeRequest(ref string, counterpartyID uint) lifecycle.TradeRequest {
	return lifecycle.TradeRequest{
		TradeReference: ref,
		CounterpartyID: counterpartyID,
		Instrument:     "AAPL",
		TradeType:      models.TradeTypeBuy,
		Quantity:       models.DecimalFromInt(100),
		Price:          models.DecimalFromString("150.00"),
		TradeDate:      models.MustDate("2023-12-01"),
		SettlementDate: models.MustDate("2023-12-03"),
		Currency:       "USD",
	}
}

func (f *fixture) mustCounterparty(t *testing.T, code string) *models.Counterparty {
	t.Helper()
	cp, err := f.counterparties.CreateCounterparty(context.Background(), counterpartyRequest(code))
	require.NoError(t, err)
	return cp
}

func (f *fixture) mustTrade(t *testing.T, req lifecycle.TradeRequest) *models.Trade {
	t.Helper()
	trade, err := f.trades.CreateTrade(context.Background(), req)
	require.NoError(t, err)
	return trade
}

func (f *fixture) tradeCount(t *testing.T) int64 {
	t.Helper()
	n, err := f.store.Trades().Count(context.Background(), lifecycle.TradeFilter{})
	require.NoError(t, err)
	return n
}
