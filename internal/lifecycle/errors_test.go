package lifecycle

import (
	"errors"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := duplicateReference("TRD-001")
	assert.Equal(t, "[DUPLICATE_REFERENCE] trade with reference 'TRD-001' already exists", err.Error())

	cause := errors.New("connection refused")
	sys := systemError("create trade", cause)
	assert.Equal(t, "[SYSTEM_ERROR] create trade failed: connection refused", sys.Error())
	assert.ErrorIs(t, sys, cause)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindSystem, KindOf(errors.New("boom")))
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("wrapped: %w", tradeNotFound(4))))
	assert.Equal(t, ReasonSystem, ReasonOf(errors.New("boom")))
	assert.True(t, IsKind(counterpartyNotFound(1), KindNotFound))
	assert.False(t, IsKind(nil, KindNotFound))
}

func TestClassifyHidesForeignErrors(t *testing.T) {
	logger, hook := test.NewNullLogger()
	log := logger.WithField("component", "test")

	business := hasTrades()
	assert.Same(t, business, classify(log, "delete counterparty", business))
	assert.Empty(t, hook.AllEntries())

	cause := errors.New("pq: relation \"trades\" does not exist")
	err := classify(log, "list trades", cause)

	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, KindSystem, lerr.Kind)
	assert.Equal(t, "list trades failed", lerr.Message)
	assert.NotContains(t, lerr.Message, "relation")
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, "list trades", hook.LastEntry().Data["operation"])
}
