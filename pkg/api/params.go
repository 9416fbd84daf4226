package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"trade-ledger/internal/lifecycle"
	"trade-ledger/pkg/models"
)

// params collects query and path parsing problems so a handler can report them together
type params struct {
	c *gin.Context
	v *lifecycle.Validator
}

func newParams(c *gin.Context) *params {
	return &params{c: c, v: lifecycle.NewValidator()}
}

func (p *params) failed() bool {
	if !p.v.HasErrors() {
		return false
	}
	respondInvalid(p.c, p.v.Errors())
	return true
}

// pathID parses a positive integer path parameter that fits a bigint column
func (p *params) pathID(name string) uint {
	n, err := strconv.ParseUint(p.c.Param(name), 10, 63)
	if err != nil || n == 0 {
		p.v.AddError(name, "must be a positive integer")
		return 0
	}
	return uint(n)
}

func (p *params) has(name string) bool {
	_, ok := p.c.GetQuery(name)
	return ok
}

// queryInt parses an optional integer; def is returned when the parameter is absent
func (p *params) queryInt(name string, def int) int {
	raw, ok := p.c.GetQuery(name)
	if !ok || raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.v.AddError(name, "must be an integer")
		return def
	}
	return n
}

func (p *params) queryID(name string) uint {
	raw, ok := p.c.GetQuery(name)
	if !ok || raw == "" {
		return 0
	}
	n, err := strconv.ParseUint(raw, 10, 63)
	if err != nil || n == 0 {
		p.v.AddError(name, "must be a positive integer")
		return 0
	}
	return uint(n)
}

// queryDate parses an optional YYYY-MM-DD date
func (p *params) queryDate(name string) time.Time {
	raw := p.c.Query(name)
	if raw == "" {
		return time.Time{}
	}
	t, err := models.ParseDate(raw)
	if err != nil {
		p.v.AddError(name, "must be a date in YYYY-MM-DD format")
	}
	return t
}

func (p *params) queryDecimal(name string) *decimal.Decimal {
	raw := p.c.Query(name)
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		p.v.AddError(name, "must be a decimal number")
		return nil
	}
	return &d
}

func (p *params) queryBool(name string) *bool {
	raw := p.c.Query(name)
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		p.v.AddError(name, "must be true or false")
		return nil
	}
	return &b
}

// page returns the requested page and whether the client asked for paging at all
func (p *params) page() (lifecycle.Page, bool) {
	paged := p.has("page") || p.has("size")
	return lifecycle.Page{
		Index: p.queryInt("page", 0),
		Size:  p.queryInt("size", 0),
	}, paged
}

// upper normalizes enum-like query values
func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
