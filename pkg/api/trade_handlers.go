package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"trade-ledger/internal/lifecycle"
	"trade-ledger/pkg/cache"
	"trade-ledger/pkg/models"
)

// TradeHandlers serves /api/v1/trades
type TradeHandlers struct {
	engine *lifecycle.TradeEngine
	stats  *cache.StatsCache
}

// NewTradeHandlers creates trade handlers. stats may be nil.
func NewTradeHandlers(engine *lifecycle.TradeEngine, stats *cache.StatsCache) *TradeHandlers {
	return &TradeHandlers{engine: engine, stats: stats}
}

// TradeBody is the JSON body of trade create and update requests
type TradeBody struct {
	TradeReference string          `json:"trade_reference"`
	CounterpartyID uint            `json:"counterparty_id"`
	Instrument     string          `json:"instrument"`
	TradeType      string          `json:"trade_type"`
	Quantity       decimal.Decimal `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
	TradeDate      string          `json:"trade_date"`
	SettlementDate string          `json:"settlement_date"`
	Currency       string          `json:"currency"`
	Notes          string          `json:"notes"`
}

// TradeValue is the body of the per-counterparty value statistic
type TradeValue struct {
	CounterpartyID uint            `json:"counterparty_id"`
	TotalValue     decimal.Decimal `json:"total_value"`
}

func (b TradeBody) request() (lifecycle.TradeRequest, lifecycle.ValidationErrors) {
	v := lifecycle.NewValidator()
	parse := func(field, raw string) time.Time {
		if raw == "" {
			return time.Time{}
		}
		parsed, err := models.ParseDate(raw)
		if err != nil {
			v.AddError(field, "must be a date in YYYY-MM-DD format")
		}
		return parsed
	}
	tradeDate := parse("trade_date", b.TradeDate)
	settlementDate := parse("settlement_date", b.SettlementDate)

	return lifecycle.TradeRequest{
		TradeReference: b.TradeReference,
		CounterpartyID: b.CounterpartyID,
		Instrument:     b.Instrument,
		TradeType:      models.TradeType(upper(b.TradeType)),
		Quantity:       b.Quantity,
		Price:          b.Price,
		TradeDate:      tradeDate,
		SettlementDate: settlementDate,
		Currency:       b.Currency,
		Notes:          b.Notes,
	}, v.Errors()
}

func bindTrade(c *gin.Context) (lifecycle.TradeRequest, bool) {
	var body TradeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadJSON(c, err)
		return lifecycle.TradeRequest{}, false
	}
	req, problems := body.request()
	if len(problems) > 0 {
		respondInvalid(c, problems)
		return lifecycle.TradeRequest{}, false
	}
	return req, true
}

// ListTrades returns trades. Filters are applied in this order and only the first present one is used:
// recent, counterparty_id, status, start_date/end_date, settlement_start/settlement_end,
// instrument, trade_type, currency, min_value. Without filters, page/size select a page;
// with neither, every trade is returned.
func (h *TradeHandlers) ListTrades(c *gin.Context) {
	ctx := c.Request.Context()
	p := newParams(c)

	recent := p.queryInt("recent", 0)
	counterpartyID := p.queryID("counterparty_id")
	status := upper(c.Query("status"))
	start, end := p.queryDate("start_date"), p.queryDate("end_date")
	settleStart, settleEnd := p.queryDate("settlement_start"), p.queryDate("settlement_end")
	tradeType := upper(c.Query("trade_type"))
	minValue := p.queryDecimal("min_value")
	page, paged := p.page()
	if tradeType != "" && !models.TradeType(tradeType).Valid() {
		p.v.AddError("trade_type", "invalid trade_type (valid values: BUY, SELL)")
	}
	if p.failed() {
		return
	}

	var (
		trades []models.Trade
		err    error
	)
	switch {
	case recent != 0:
		trades, err = h.engine.RecentTrades(ctx, recent)
	case counterpartyID != 0:
		trades, err = h.engine.TradesByCounterparty(ctx, counterpartyID)
	case status != "":
		trades, err = h.engine.TradesByStatus(ctx, models.TradeStatus(status))
	case !start.IsZero() || !end.IsZero():
		trades, err = h.engine.TradesByDateRange(ctx, start, end)
	case !settleStart.IsZero() || !settleEnd.IsZero():
		trades, err = h.engine.TradesBySettlementDateRange(ctx, settleStart, settleEnd)
	case c.Query("instrument") != "":
		trades, err = h.engine.TradesByInstrument(ctx, c.Query("instrument"))
	case tradeType != "":
		trades, err = h.engine.TradesByType(ctx, models.TradeType(tradeType))
	case c.Query("currency") != "":
		trades, err = h.engine.TradesByCurrency(ctx, upper(c.Query("currency")))
	case minValue != nil:
		trades, err = h.engine.TradesAboveValue(ctx, *minValue)
	case paged:
		trades, err = h.engine.ListTrades(ctx, page)
	default:
		trades, err = h.engine.ListAllTrades(ctx)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, models.NewTradeDTOs(trades))
}

// GetTrade returns one trade by id
func (h *TradeHandlers) GetTrade(c *gin.Context) {
	p := newParams(c)
	id := p.pathID("id")
	if p.failed() {
		return
	}

	trade, err := h.engine.GetTrade(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if trade == nil {
		respondNotFound(c, lifecycle.ReasonTradeNotFound, fmt.Sprintf("trade not found with id: %d", id))
		return
	}
	respondOK(c, http.StatusOK, models.NewTradeDTO(trade))
}

// GetTradeByReference returns one trade by its business reference
func (h *TradeHandlers) GetTradeByReference(c *gin.Context) {
	reference := c.Param("reference")
	trade, err := h.engine.GetTradeByReference(c.Request.Context(), reference)
	if err != nil {
		respondError(c, err)
		return
	}
	if trade == nil {
		respondNotFound(c, lifecycle.ReasonTradeNotFound, fmt.Sprintf("trade not found with reference: %s", reference))
		return
	}
	respondOK(c, http.StatusOK, models.NewTradeDTO(trade))
}

// PendingTrades returns every PENDING trade
func (h *TradeHandlers) PendingTrades(c *gin.Context) {
	trades, err := h.engine.PendingTrades(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, models.NewTradeDTOs(trades))
}

// TradesByCounterparty returns the trades of one counterparty, optionally paged
func (h *TradeHandlers) TradesByCounterparty(c *gin.Context) {
	p := newParams(c)
	id := p.pathID("counterpartyId")
	page, paged := p.page()
	if p.failed() {
		return
	}

	var (
		trades []models.Trade
		err    error
	)
	if paged {
		trades, err = h.engine.TradesByCounterpartyPage(c.Request.Context(), id, page)
	} else {
		trades, err = h.engine.TradesByCounterparty(c.Request.Context(), id)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, models.NewTradeDTOs(trades))
}

// CreateTrade books a new trade
func (h *TradeHandlers) CreateTrade(c *gin.Context) {
	req, ok := bindTrade(c)
	if !ok {
		return
	}

	trade, err := h.engine.CreateTrade(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, models.NewTradeDTO(trade))
}

// UpdateTrade replaces the client-editable fields of a trade
func (h *TradeHandlers) UpdateTrade(c *gin.Context) {
	p := newParams(c)
	id := p.pathID("id")
	if p.failed() {
		return
	}
	req, ok := bindTrade(c)
	if !ok {
		return
	}

	trade, err := h.engine.UpdateTrade(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, models.NewTradeDTO(trade))
}

// UpdateTradeStatus sets the status given by the status query parameter
func (h *TradeHandlers) UpdateTradeStatus(c *gin.Context) {
	p := newParams(c)
	id := p.pathID("id")
	status := upper(c.Query("status"))
	if status == "" {
		p.v.AddError("status", "status is required")
	}
	if p.failed() {
		return
	}

	trade, err := h.engine.UpdateTradeStatus(c.Request.Context(), id, models.TradeStatus(status))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, models.NewTradeDTO(trade))
}

// DeleteTrade removes a trade that is not CONFIRMED or SETTLED
func (h *TradeHandlers) DeleteTrade(c *gin.Context) {
	p := newParams(c)
	id := p.pathID("id")
	if p.failed() {
		return
	}

	if err := h.engine.DeleteTrade(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// TradeStats returns trade counts per status
func (h *TradeHandlers) TradeStats(c *gin.Context) {
	stats, err := h.stats.TradeStats(c.Request.Context(), h.engine.TradeStats)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, stats)
}

// TradeValue returns the total value of one counterparty's trades
func (h *TradeHandlers) TradeValue(c *gin.Context) {
	p := newParams(c)
	id := p.pathID("counterpartyId")
	if p.failed() {
		return
	}

	total, err := h.stats.TotalValue(c.Request.Context(), id, func(ctx context.Context) (decimal.Decimal, error) {
		return h.engine.TotalValueByCounterparty(ctx, id)
	})
	if err != nil {
		respondError(c, err)
		return
	}
	logrus.WithFields(logrus.Fields{"counterparty_id": id, "total_value": total.String()}).Debug("Computed trade value")
	respondOK(c, http.StatusOK, TradeValue{CounterpartyID: id, TotalValue: total})
}
