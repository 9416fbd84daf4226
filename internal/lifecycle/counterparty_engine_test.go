package lifecycle_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-ledger/internal/lifecycle"
	"trade-ledger/pkg/models"
)

func TestCreateCounterparty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	cp, err := f.counterparties.CreateCounterparty(ctx, counterpartyRequest("GS001"))
	require.NoError(t, err)
	assert.NotZero(t, cp.ID)
	assert.Equal(t, models.CounterpartyStatusActive, cp.Status)
	assert.Len(t, f.events.ofType(lifecycle.EventCounterpartyCreated), 1)

	req := counterpartyRequest("GS002")
	req.Status = models.CounterpartyStatusSuspended
	suspended, err := f.counterparties.CreateCounterparty(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.CounterpartyStatusSuspended, suspended.Status)
}

func TestCreateCounterpartyDuplicateCode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mustCounterparty(t, "GS001")

	_, err := f.counterparties.CreateCounterparty(ctx, counterpartyRequest("GS001"))
	require.Error(t, err)
	assert.Equal(t, lifecycle.KindDuplicateKey, lifecycle.KindOf(err))
	assert.Equal(t, lifecycle.ReasonDuplicateCode, lifecycle.ReasonOf(err))

	all, err := f.counterparties.ListAllCounterparties(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCreateCounterpartyValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*lifecycle.CounterpartyRequest)
		field  string
	}{
		{"short name", func(r *lifecycle.CounterpartyRequest) { r.Name = "A" }, "name"},
		{"long code", func(r *lifecycle.CounterpartyRequest) { r.Code = "ABCDEFGHIJKLMNOPQRSTU" }, "code"},
		{"bad email", func(r *lifecycle.CounterpartyRequest) { r.Email = "not-an-email" }, "email"},
		{"missing type", func(r *lifecycle.CounterpartyRequest) { r.Type = "" }, "type"},
		{"unknown status", func(r *lifecycle.CounterpartyRequest) { r.Status = "CLOSED" }, "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := counterpartyRequest("GS001")
			tt.mutate(&req)

			_, err := f.counterparties.CreateCounterparty(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, lifecycle.KindValidation, lifecycle.KindOf(err))

			lerr := err.(*lifecycle.Error)
			require.Len(t, lerr.Fields, 1)
			assert.Equal(t, tt.field, lerr.Fields[0].Field)
		})
	}
}

func TestUpdateCounterparty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cp := f.mustCounterparty(t, "GS001")
	f.mustCounterparty(t, "MS001")

	t.Run("replaces fields and keeps own code", func(t *testing.T) {
		req := counterpartyRequest("GS001")
		req.Name = "Goldman Sachs International"
		req.Status = models.CounterpartyStatusInactive

		updated, err := f.counterparties.UpdateCounterparty(ctx, cp.ID, req)
		require.NoError(t, err)
		assert.Equal(t, "Goldman Sachs International", updated.Name)
		assert.Equal(t, models.CounterpartyStatusInactive, updated.Status)

		events := f.events.ofType(lifecycle.EventCounterpartyUpdated)
		require.NotEmpty(t, events)
		assert.Equal(t, models.CounterpartyStatusActive, events[len(events)-1].PreviousCounterpartyStatus)
	})

	t.Run("missing status resets to active", func(t *testing.T) {
		updated, err := f.counterparties.UpdateCounterparty(ctx, cp.ID, counterpartyRequest("GS001"))
		require.NoError(t, err)
		assert.Equal(t, models.CounterpartyStatusActive, updated.Status)
	})

	t.Run("rejects another counterparty's code", func(t *testing.T) {
		_, err := f.counterparties.UpdateCounterparty(ctx, cp.ID, counterpartyRequest("MS001"))
		assert.Equal(t, lifecycle.KindDuplicateKey, lifecycle.KindOf(err))
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := f.counterparties.UpdateCounterparty(ctx, 999, counterpartyRequest("ZZ001"))
		assert.Equal(t, lifecycle.KindNotFound, lifecycle.KindOf(err))
		assert.Equal(t, lifecycle.ReasonCounterpartyNotFound, lifecycle.ReasonOf(err))
	})
}

func TestUpdateCounterpartyStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cp := f.mustCounterparty(t, "GS001")
	trade := f.mustTrade(t, tradeRequest("TRD-001", cp.ID))

	updated, err := f.counterparties.UpdateCounterpartyStatus(ctx, cp.ID, models.CounterpartyStatusSuspended)
	require.NoError(t, err)
	assert.Equal(t, models.CounterpartyStatusSuspended, updated.Status)

	// existing trades stay valid after the counterparty goes inactive
	stored, err := f.trades.GetTrade(ctx, trade.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.CounterpartyStatusSuspended, stored.Counterparty.Status)

	_, err = f.trades.UpdateTradeStatus(ctx, trade.ID, models.TradeStatusConfirmed)
	require.NoError(t, err)

	_, err = f.counterparties.UpdateCounterpartyStatus(ctx, 999, models.CounterpartyStatusActive)
	assert.Equal(t, lifecycle.KindNotFound, lifecycle.KindOf(err))

	_, err = f.counterparties.UpdateCounterpartyStatus(ctx, cp.ID, "GONE")
	assert.Equal(t, lifecycle.KindValidation, lifecycle.KindOf(err))
}

func TestDeleteCounterpartyCascadeGuard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cp := f.mustCounterparty(t, "GS001")
	t1 := f.mustTrade(t, tradeRequest("TRD-001", cp.ID))
	t2 := f.mustTrade(t, tradeRequest("TRD-002", cp.ID))

	err := f.counterparties.DeleteCounterparty(ctx, cp.ID)
	require.Error(t, err)
	assert.Equal(t, lifecycle.KindInvalidState, lifecycle.KindOf(err))
	assert.Equal(t, lifecycle.ReasonHasTrades, lifecycle.ReasonOf(err))

	require.NoError(t, f.trades.DeleteTrade(ctx, t1.ID))
	err = f.counterparties.DeleteCounterparty(ctx, cp.ID)
	assert.Equal(t, lifecycle.KindInvalidState, lifecycle.KindOf(err))

	require.NoError(t, f.trades.DeleteTrade(ctx, t2.ID))
	require.NoError(t, f.counterparties.DeleteCounterparty(ctx, cp.ID))

	gone, err := f.counterparties.GetCounterparty(ctx, cp.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	assert.Len(t, f.events.ofType(lifecycle.EventCounterpartyDeleted), 1)
}

func TestDeleteCounterpartyNotFound(t *testing.T) {
	f := newFixture(t)
	err := f.counterparties.DeleteCounterparty(context.Background(), 3)
	assert.Equal(t, lifecycle.KindNotFound, lifecycle.KindOf(err))
}

func TestCounterpartyQueries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	create := func(name, code string, typ models.CounterpartyType, status models.CounterpartyStatus) *models.Counterparty {
		cp, err := f.counterparties.CreateCounterparty(ctx, lifecycle.CounterpartyRequest{
			Name: name, Code: code, Type: typ, Status: status,
		})
		require.NoError(t, err)
		return cp
	}

	tesla := create("Tesla Inc", "TSLA01", models.CounterpartyTypeCorporate, models.CounterpartyStatusActive)
	goldman := create("Goldman Sachs", "GS001", models.CounterpartyTypeInstitutional, models.CounterpartyStatusActive)
	jane := create("Jane Smith", "JS001", models.CounterpartyTypeIndividual, models.CounterpartyStatusInactive)
	apex := create("Apex Hedge Fund", "AHF001", models.CounterpartyTypeInstitutional, models.CounterpartyStatusSuspended)
	f.mustTrade(t, tradeRequest("TRD-001", goldman.ID))

	ids := func(cps []models.Counterparty, err error) []uint {
		require.NoError(t, err)
		out := make([]uint, 0, len(cps))
		for _, cp := range cps {
			out = append(out, cp.ID)
		}
		return out
	}

	t.Run("by id and code", func(t *testing.T) {
		got, err := f.counterparties.GetCounterpartyByCode(ctx, "JS001")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, jane.ID, got.ID)

		got, err = f.counterparties.GetCounterpartyByCode(ctx, "NOPE")
		require.NoError(t, err)
		assert.Nil(t, got)

		got, err = f.counterparties.GetCounterparty(ctx, 999)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("listing is by name", func(t *testing.T) {
		assert.Equal(t, []uint{apex.ID, goldman.ID, jane.ID, tesla.ID}, ids(f.counterparties.ListAllCounterparties(ctx)))
		assert.Equal(t, []uint{jane.ID, tesla.ID}, ids(f.counterparties.ListCounterparties(ctx, lifecycle.Page{Index: 1, Size: 2})))
		assert.Empty(t, ids(f.counterparties.ListCounterparties(ctx, lifecycle.Page{Index: math.MaxInt / 10, Size: 20})))
	})

	t.Run("by type and status", func(t *testing.T) {
		assert.Equal(t, []uint{apex.ID, goldman.ID}, ids(f.counterparties.CounterpartiesByType(ctx, models.CounterpartyTypeInstitutional)))
		assert.Equal(t, []uint{goldman.ID, tesla.ID}, ids(f.counterparties.ActiveCounterparties(ctx)))
		assert.Equal(t, []uint{jane.ID}, ids(f.counterparties.CounterpartiesByStatus(ctx, models.CounterpartyStatusInactive)))

		_, err := f.counterparties.CounterpartiesByType(ctx, "TRUST")
		assert.Equal(t, lifecycle.KindValidation, lifecycle.KindOf(err))
	})

	t.Run("search is case insensitive substring", func(t *testing.T) {
		assert.Equal(t, []uint{goldman.ID}, ids(f.counterparties.SearchCounterparties(ctx, "SACHS")))
		assert.Equal(t, []uint{apex.ID, jane.ID, tesla.ID}, ids(f.counterparties.SearchCounterparties(ctx, "e")))
		assert.Empty(t, ids(f.counterparties.SearchCounterparties(ctx, "nomura")))
	})

	t.Run("with and without trades", func(t *testing.T) {
		assert.Equal(t, []uint{goldman.ID}, ids(f.counterparties.CounterpartiesWithTrades(ctx)))
		assert.Equal(t, []uint{apex.ID, jane.ID, tesla.ID}, ids(f.counterparties.CounterpartiesWithoutTrades(ctx)))
	})

	t.Run("stats", func(t *testing.T) {
		stats, err := f.counterparties.CounterpartyStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, lifecycle.CounterpartyStats{
			Total:         4,
			Active:        2,
			Inactive:      1,
			Suspended:     1,
			Individual:    1,
			Corporate:     1,
			Institutional: 2,
			WithTrades:    1,
		}, stats)
	})
}
