package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"trade-ledger/internal/lifecycle"
	"trade-ledger/pkg/cache"
	"trade-ledger/pkg/models"
)

// CounterpartyHandlers serves /api/v1/counterparties
type CounterpartyHandlers struct {
	engine *lifecycle.CounterpartyEngine
	stats  *cache.StatsCache
}

// NewCounterpartyHandlers creates counterparty handlers. stats may be nil.
func NewCounterpartyHandlers(engine *lifecycle.CounterpartyEngine, stats *cache.StatsCache) *CounterpartyHandlers {
	return &CounterpartyHandlers{engine: engine, stats: stats}
}

// CounterpartyBody is the JSON body of counterparty create and update requests
type CounterpartyBody struct {
	Name        string `json:"name"`
	Code        string `json:"code"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Address     string `json:"address"`
	Type        string `json:"type"`
	Status      string `json:"status"`
}

func (b CounterpartyBody) request() lifecycle.CounterpartyRequest {
	return lifecycle.CounterpartyRequest{
		Name:        b.Name,
		Code:        b.Code,
		Email:       b.Email,
		PhoneNumber: b.PhoneNumber,
		Address:     b.Address,
		Type:        models.CounterpartyType(upper(b.Type)),
		Status:      models.CounterpartyStatus(upper(b.Status)),
	}
}

// ListCounterparties returns counterparties. The first present filter wins:
// search, type, status, with_trades. Without filters, page/size select a page;
// with neither, every counterparty is returned.
func (h *CounterpartyHandlers) ListCounterparties(c *gin.Context) {
	ctx := c.Request.Context()
	p := newParams(c)

	search := strings.TrimSpace(c.Query("search"))
	counterpartyType := upper(c.Query("type"))
	status := upper(c.Query("status"))
	withTrades := p.queryBool("with_trades")
	page, paged := p.page()
	if p.failed() {
		return
	}

	var (
		counterparties []models.Counterparty
		err            error
	)
	switch {
	case search != "":
		counterparties, err = h.engine.SearchCounterparties(ctx, search)
	case counterpartyType != "":
		counterparties, err = h.engine.CounterpartiesByType(ctx, models.CounterpartyType(counterpartyType))
	case status == string(models.CounterpartyStatusActive):
		counterparties, err = h.engine.ActiveCounterparties(ctx)
	case status != "":
		counterparties, err = h.engine.CounterpartiesByStatus(ctx, models.CounterpartyStatus(status))
	case withTrades != nil && *withTrades:
		counterparties, err = h.engine.CounterpartiesWithTrades(ctx)
	case withTrades != nil:
		counterparties, err = h.engine.CounterpartiesWithoutTrades(ctx)
	case paged:
		counterparties, err = h.engine.ListCounterparties(ctx, page)
	default:
		counterparties, err = h.engine.ListAllCounterparties(ctx)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, models.NewCounterpartyDTOs(counterparties))
}

// GetCounterparty returns one counterparty by id
func (h *CounterpartyHandlers) GetCounterparty(c *gin.Context) {
	p := newParams(c)
	id := p.pathID("id")
	if p.failed() {
		return
	}

	counterparty, err := h.engine.GetCounterparty(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if counterparty == nil {
		respondNotFound(c, lifecycle.ReasonCounterpartyNotFound, fmt.Sprintf("counterparty not found with id: %d", id))
		return
	}
	respondOK(c, http.StatusOK, models.NewCounterpartyDTO(counterparty))
}

// GetCounterpartyByCode returns one counterparty by its business code
func (h *CounterpartyHandlers) GetCounterpartyByCode(c *gin.Context) {
	code := c.Param("code")
	counterparty, err := h.engine.GetCounterpartyByCode(c.Request.Context(), code)
	if err != nil {
		respondError(c, err)
		return
	}
	if counterparty == nil {
		respondNotFound(c, lifecycle.ReasonCounterpartyNotFound, fmt.Sprintf("counterparty not found with code: %s", code))
		return
	}
	respondOK(c, http.StatusOK, models.NewCounterpartyDTO(counterparty))
}

// ActiveCounterparties returns every ACTIVE counterparty
func (h *CounterpartyHandlers) ActiveCounterparties(c *gin.Context) {
	counterparties, err := h.engine.ActiveCounterparties(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, models.NewCounterpartyDTOs(counterparties))
}

// CreateCounterparty registers a new counterparty
func (h *CounterpartyHandlers) CreateCounterparty(c *gin.Context) {
	var body CounterpartyBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadJSON(c, err)
		return
	}

	counterparty, err := h.engine.CreateCounterparty(c.Request.Context(), body.request())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, models.NewCounterpartyDTO(counterparty))
}

// UpdateCounterparty replaces every field of a counterparty
func (h *CounterpartyHandlers) UpdateCounterparty(c *gin.Context) {
	p := newParams(c)
	id := p.pathID("id")
	if p.failed() {
		return
	}
	var body CounterpartyBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadJSON(c, err)
		return
	}

	counterparty, err := h.engine.UpdateCounterparty(c.Request.Context(), id, body.request())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, models.NewCounterpartyDTO(counterparty))
}

// UpdateCounterpartyStatus sets the status given by the status query parameter
func (h *CounterpartyHandlers) UpdateCounterpartyStatus(c *gin.Context) {
	p := newParams(c)
	id := p.pathID("id")
	status := upper(c.Query("status"))
	if status == "" {
		p.v.AddError("status", "status is required")
	}
	if p.failed() {
		return
	}

	counterparty, err := h.engine.UpdateCounterpartyStatus(c.Request.Context(), id, models.CounterpartyStatus(status))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, models.NewCounterpartyDTO(counterparty))
}

// DeleteCounterparty removes a counterparty that has no trades
func (h *CounterpartyHandlers) DeleteCounterparty(c *gin.Context) {
	p := newParams(c)
	id := p.pathID("id")
	if p.failed() {
		return
	}

	if err := h.engine.DeleteCounterparty(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CounterpartyStats returns counterparty counts
func (h *CounterpartyHandlers) CounterpartyStats(c *gin.Context) {
	stats, err := h.stats.CounterpartyStats(c.Request.Context(), h.engine.CounterpartyStats)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, stats)
}
