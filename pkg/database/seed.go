package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"trade-ledger/internal/lifecycle"
	"trade-ledger/pkg/models"
)

// statusPath lists the status changes that take a new trade to the given status
var statusPath = map[models.TradeStatus][]models.TradeStatus{
	models.TradeStatusPending:   nil,
	models.TradeStatusConfirmed: {models.TradeStatusConfirmed},
	models.TradeStatusSettled:   {models.TradeStatusConfirmed, models.TradeStatusSettled},
}

// SeedData creates sample counterparties and trades when no counterparty exists yet.
// Everything goes through the engines so the usual rules apply.
func SeedData(ctx context.Context, counterparties *lifecycle.CounterpartyEngine, trades *lifecycle.TradeEngine, now time.Time) error {
	stats, err := counterparties.CounterpartyStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to count counterparties: %w", err)
	}
	if stats.Total > 0 {
		logrus.WithField("counterparties", stats.Total).Debug("Store not empty, skipping sample data")
		return nil
	}

	logrus.Info("Store is empty, creating sample data")

	// Create sample counterparties
	samples := []lifecycle.CounterpartyRequest{
		{
			Name:        "Global Investment Bank",
			Code:        "GIB001",
			Email:       "trading@gib.com",
			PhoneNumber: "+1-555-0101",
			Address:     "123 Wall Street, New York, NY 10005",
			Type:        models.CounterpartyTypeInstitutional,
		},
		{
			Name:        "Tech Solutions Corp",
			Code:        "TSC001",
			Email:       "finance@techsolutions.com",
			PhoneNumber: "+1-555-0102",
			Address:     "456 Silicon Valley Blvd, San Francisco, CA 94105",
			Type:        models.CounterpartyTypeCorporate,
		},
		{
			Name:        "Alpha Hedge Fund",
			Code:        "AHF001",
			Email:       "operations@alphafund.com",
			PhoneNumber: "+1-555-0103",
			Address:     "789 Financial District, Chicago, IL 60601",
			Type:        models.CounterpartyTypeInstitutional,
		},
	}

	ids := make(map[string]uint, len(samples))
	for _, req := range samples {
		cp, err := counterparties.CreateCounterparty(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to create counterparty %s: %w", req.Code, err)
		}
		ids[cp.Code] = cp.ID
	}

	today := models.Date(now)

	// Create sample trades
	sampleTrades := []struct {
		code   string
		status models.TradeStatus
		req    lifecycle.TradeRequest
	}{
		{"GIB001", models.TradeStatusSettled, lifecycle.TradeRequest{
			TradeReference: "TRD-2024-001",
			Instrument:     "AAPL",
			TradeType:      models.TradeTypeBuy,
			Quantity:       models.DecimalFromString("1000"),
			Price:          models.DecimalFromString("150.25"),
			TradeDate:      today.AddDate(0, 0, -5),
			SettlementDate: today.AddDate(0, 0, -3),
			Currency:       "USD",
			Notes:          "Initial sample trade for Apple Inc.",
		}},
		{"TSC001", models.TradeStatusConfirmed, lifecycle.TradeRequest{
			TradeReference: "TRD-2024-002",
			Instrument:     "GOOGL",
			TradeType:      models.TradeTypeSell,
			Quantity:       models.DecimalFromString("500"),
			Price:          models.DecimalFromString("2750.80"),
			TradeDate:      today.AddDate(0, 0, -2),
			SettlementDate: today,
			Currency:       "USD",
			Notes:          "Google stock sale",
		}},
		{"AHF001", models.TradeStatusPending, lifecycle.TradeRequest{
			TradeReference: "TRD-2024-003",
			Instrument:     "MSFT",
			TradeType:      models.TradeTypeBuy,
			Quantity:       models.DecimalFromString("750"),
			Price:          models.DecimalFromString("380.45"),
			TradeDate:      today.AddDate(0, 0, -1),
			SettlementDate: today.AddDate(0, 0, 2),
			Currency:       "USD",
			Notes:          "Microsoft acquisition for portfolio",
		}},
	}

	for _, sample := range sampleTrades {
		req := sample.req
		req.CounterpartyID = ids[sample.code]

		trade, err := trades.CreateTrade(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to create trade %s: %w", req.TradeReference, err)
		}
		for _, status := range statusPath[sample.status] {
			if _, err := trades.UpdateTradeStatus(ctx, trade.ID, status); err != nil {
				return fmt.Errorf("failed to move trade %s to %s: %w", req.TradeReference, status, err)
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"counterparties": len(samples),
		"trades":         len(sampleTrades),
	}).Info("Sample data initialization completed")
	return nil
}
