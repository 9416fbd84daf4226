package repository

import (
	"context"
	"errors"
	"math"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/xid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"trade-ledger/internal/lifecycle"
	"trade-ledger/pkg/database"
	"trade-ledger/pkg/models"
)

// pgFixture isolates one test's rows behind a unique name and code prefix
type pgFixture struct {
	t      *testing.T
	db     *gorm.DB
	store  *GormStore
	prefix string
}

func newPGFixture(t *testing.T) *pgFixture {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	db, err := gorm.Open(postgres.Open(url), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	f := &pgFixture{
		t:      t,
		db:     db,
		store:  NewGormStore(db),
		prefix: strings.ToUpper(xid.New().String()[8:]),
	}
	t.Cleanup(func() {
		db.Where("trade_reference LIKE ?", f.prefix+"%").Delete(&models.Trade{})
		db.Where("code LIKE ?", f.prefix+"%").Delete(&models.Counterparty{})
		_ = database.Close(db)
	})
	return f
}

func (f *pgFixture) counterparty(suffix, name string) *models.Counterparty {
	f.t.Helper()
	cp := &models.Counterparty{
		Name:   f.prefix + " " + name,
		Code:   f.prefix + suffix,
		Type:   models.CounterpartyTypeInstitutional,
		Status: models.CounterpartyStatusActive,
	}
	require.NoError(f.t, f.store.Counterparties().Save(context.Background(), cp))
	return cp
}

func (f *pgFixture) newTrade(suffix string, counterpartyID uint, day string) *models.Trade {
	tradeDate := models.MustDate(day)
	return &models.Trade{
		TradeReference: f.prefix + suffix,
		CounterpartyID: counterpartyID,
		Instrument:     "AAPL",
		TradeType:      models.TradeTypeBuy,
		Quantity:       decimal.NewFromInt(100),
		Price:          decimal.RequireFromString("150.00"),
		TradeDate:      tradeDate,
		SettlementDate: tradeDate.AddDate(0, 0, 2),
		Currency:       "USD",
		Status:         models.TradeStatusPending,
	}
}

func (f *pgFixture) trade(suffix string, counterpartyID uint, day string) *models.Trade {
	f.t.Helper()
	trade := f.newTrade(suffix, counterpartyID, day)
	require.NoError(f.t, f.store.Trades().Save(context.Background(), trade))
	return trade
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%\_a\\b`, escapeLike(`50%_a\b`))
	assert.Equal(t, "plain", escapeLike("plain"))
}

func TestGormStoreTranslatesConstraintViolations(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	cp := f.counterparty("-GS", "Goldman")
	f.trade("-T1", cp.ID, "2024-01-15")

	t.Run("duplicate code", func(t *testing.T) {
		dup := &models.Counterparty{Name: f.prefix + " Copy", Code: cp.Code, Type: models.CounterpartyTypeCorporate, Status: models.CounterpartyStatusActive}
		err := f.store.Counterparties().Save(ctx, dup)
		assert.True(t, errors.Is(err, lifecycle.ErrUniqueViolation), "%v", err)
	})

	t.Run("duplicate reference", func(t *testing.T) {
		err := f.store.Trades().Save(ctx, f.newTrade("-T1", cp.ID, "2024-01-16"))
		assert.True(t, errors.Is(err, lifecycle.ErrUniqueViolation), "%v", err)
	})

	t.Run("unknown counterparty", func(t *testing.T) {
		err := f.store.Trades().Save(ctx, f.newTrade("-T2", math.MaxInt32, "2024-01-16"))
		assert.True(t, errors.Is(err, lifecycle.ErrForeignKeyViolation), "%v", err)
	})

	t.Run("counterparty with trades", func(t *testing.T) {
		err := f.store.Counterparties().Delete(ctx, cp.ID)
		assert.True(t, errors.Is(err, lifecycle.ErrForeignKeyViolation), "%v", err)
	})
}

func TestGormStoreSaveLeavesCounterpartyRowAlone(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	from := f.counterparty("-FROM", "From Bank")
	to := f.counterparty("-TO", "To Bank")
	created := f.trade("-T1", from.ID, "2024-01-15")

	trade, err := f.store.Trades().FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, trade.Counterparty)

	// the preloaded association is stale once the foreign key moves
	trade.Counterparty.Name = f.prefix + " Renamed"
	trade.CounterpartyID = to.ID
	require.NoError(t, f.store.Trades().Save(ctx, trade))

	reloaded, err := f.store.Trades().FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, to.ID, reloaded.CounterpartyID)
	require.NotNil(t, reloaded.Counterparty)
	assert.Equal(t, to.ID, reloaded.Counterparty.ID)

	original, err := f.store.Counterparties().FindByID(ctx, from.ID)
	require.NoError(t, err)
	assert.Equal(t, from.Name, original.Name)
}

func TestGormStoreCounterpartyQueries(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	percent := f.counterparty("-P1", "Fund 50% Owned")
	f.counterparty("-P2", "Fund 500 Owned")
	under := f.counterparty("-U1", "Desk_A")
	f.counterparty("-U2", "DeskXA")
	f.trade("-T1", percent.ID, "2024-01-15")

	ids := func(cps []models.Counterparty, err error) []uint {
		require.NoError(t, err)
		out := make([]uint, 0, len(cps))
		for _, cp := range cps {
			out = append(out, cp.ID)
		}
		return out
	}
	find := func(filter lifecycle.CounterpartyFilter) []uint {
		return ids(f.store.Counterparties().Find(ctx, filter, lifecycle.Page{}))
	}

	t.Run("wildcards in search are literal", func(t *testing.T) {
		assert.Equal(t, []uint{percent.ID}, find(lifecycle.CounterpartyFilter{NameContains: f.prefix + " fund 50%"}))
		assert.Equal(t, []uint{under.ID}, find(lifecycle.CounterpartyFilter{NameContains: f.prefix + " desk_"}))
	})

	t.Run("has trades", func(t *testing.T) {
		yes, no := true, false
		assert.Equal(t, []uint{percent.ID}, find(lifecycle.CounterpartyFilter{NameContains: f.prefix, HasTrades: &yes}))
		assert.Len(t, find(lifecycle.CounterpartyFilter{NameContains: f.prefix, HasTrades: &no}), 3)

		n, err := f.store.Counterparties().Count(ctx, lifecycle.CounterpartyFilter{NameContains: f.prefix, HasTrades: &no})
		require.NoError(t, err)
		assert.EqualValues(t, 3, n)
	})
}

func TestGormStoreCounterpartyOrderIgnoresCase(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	beta := f.counterparty("-B", "ord Beta")
	alpha := f.counterparty("-A", "ord alpha")
	charlie := f.counterparty("-C", "ord Charlie")

	got, err := f.store.Counterparties().Find(ctx, lifecycle.CounterpartyFilter{NameContains: f.prefix + " ord "}, lifecycle.Page{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []uint{alpha.ID, beta.ID, charlie.ID}, []uint{got[0].ID, got[1].ID, got[2].ID})
}

func TestGormStoreTradeQueries(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	cp := f.counterparty("-GS", "Goldman")
	idle := f.counterparty("-IDLE", "Idle")

	older := f.trade("-T1", cp.ID, "2024-01-10")
	first := f.trade("-T2", cp.ID, "2024-01-15")
	time.Sleep(10 * time.Millisecond)
	second := f.newTrade("-T3", cp.ID, "2024-01-15")
	second.Quantity = decimal.NewFromInt(50)
	second.Price = decimal.RequireFromString("2000.00")
	require.NoError(t, f.store.Trades().Save(ctx, second))

	ids := func(trades []models.Trade, err error) []uint {
		require.NoError(t, err)
		out := make([]uint, 0, len(trades))
		for _, tr := range trades {
			out = append(out, tr.ID)
		}
		return out
	}
	filter := lifecycle.TradeFilter{CounterpartyID: cp.ID}

	t.Run("newest trade date then newest creation first", func(t *testing.T) {
		assert.Equal(t, []uint{second.ID, first.ID, older.ID}, ids(f.store.Trades().Find(ctx, filter, lifecycle.Page{})))
		assert.Equal(t, []uint{older.ID}, ids(f.store.Trades().Find(ctx, filter, lifecycle.Page{Index: 1, Size: 2})))
		assert.Empty(t, ids(f.store.Trades().Find(ctx, filter, lifecycle.Page{Index: math.MaxInt / 2, Size: 2})))
	})

	t.Run("counterparty preloaded", func(t *testing.T) {
		trades, err := f.store.Trades().Find(ctx, filter, lifecycle.Page{Size: 1})
		require.NoError(t, err)
		require.Len(t, trades, 1)
		require.NotNil(t, trades[0].Counterparty)
		assert.Equal(t, cp.Code, trades[0].Counterparty.Code)
	})

	t.Run("total value", func(t *testing.T) {
		total, err := f.store.Trades().TotalValue(ctx, cp.ID)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("130000").Equal(total), total.String())

		total, err = f.store.Trades().TotalValue(ctx, idle.ID)
		require.NoError(t, err)
		assert.True(t, total.IsZero(), total.String())
	})

	t.Run("minimum value", func(t *testing.T) {
		floor := decimal.NewFromInt(100000)
		filter := lifecycle.TradeFilter{CounterpartyID: cp.ID, MinTotalValue: &floor}
		assert.Equal(t, []uint{second.ID}, ids(f.store.Trades().Find(ctx, filter, lifecycle.Page{})))
	})
}
