package earnings

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/delgo-app/delgo-backend/internal/agents"
	"github.com/delgo-app/delgo-backend/pkg/config"
	"github.com/delgo-app/delgo-backend/pkg/db/models"
	"github.com/delgo-app/delgo-backend/pkg/delivery"
	"github.com/delgo-app/delgo-backend/pkg/enums"
	"github.com/delgo-app/delgo-backend/pkg/logger"
	"github.com/delgo-app/delgo-backend/pkg/outbox"
	"github.com/delgo-app/delgo-backend/pkg/pagination"
)

func setupEarningsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:earnings_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	entries := `
CREATE TABLE IF NOT EXISTS earnings_entries (
  id TEXT PRIMARY KEY,
  agent_id TEXT NOT NULL,
  shipment_id TEXT NOT NULL UNIQUE,
  order_id TEXT NOT NULL,
  distance_km NUMERIC NOT NULL,
  base_fee NUMERIC NOT NULL,
  distance_bonus NUMERIC NOT NULL,
  peak_bonus NUMERIC NOT NULL,
  total NUMERIC NOT NULL,
  commission NUMERIC NOT NULL,
  net_amount NUMERIC NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  processed_at DATETIME,
  created_at DATETIME
);`
	profiles := `
CREATE TABLE IF NOT EXISTS agent_profiles (
  user_id TEXT PRIMARY KEY,
  status TEXT NOT NULL DEFAULT 'active',
  kyc_status TEXT NOT NULL DEFAULT 'pending',
  vehicle_type TEXT NOT NULL DEFAULT 'bike',
  is_online INTEGER NOT NULL DEFAULT 0,
  is_available INTEGER NOT NULL DEFAULT 0,
  current_location TEXT,
  active_shipment_ids TEXT NOT NULL DEFAULT '{}',
  completed_shipment_ids TEXT NOT NULL DEFAULT '{}',
  total_deliveries INTEGER NOT NULL DEFAULT 0,
  completed_deliveries INTEGER NOT NULL DEFAULT 0,
  total_earnings NUMERIC NOT NULL DEFAULT 0,
  pending_balance NUMERIC NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	outboxEvents := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`
	for _, ddl := range []string{entries, profiles, outboxEvents} {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}

func testFeeSchedule(t *testing.T) delivery.FeeSchedule {
	t.Helper()
	schedule, err := delivery.NewFeeSchedule(config.DeliveryConfig{
		BaseFee:           "30",
		PerKmRate:         "8",
		FreeDistanceKm:    "3",
		PeakMultiplier:    "1.5",
		CommissionRate:    "0.15",
		DefaultDistanceKm: "5",
		ShippingFee:       "40",
		TaxRate:           "0.05",
		AvgSpeedKmh:       "25",
	})
	require.NoError(t, err)
	return schedule
}

func newTestService(t *testing.T, db *gorm.DB) (Service, agents.Repository) {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test"})
	agentsRepo := agents.NewRepository(db)
	publisher := outbox.NewService(outbox.NewRepository(db), logg)
	svc, err := NewService(NewRepository(db), agentsRepo, testFeeSchedule(t), publisher, logg)
	require.NoError(t, err)
	return svc, agentsRepo
}

func seedSettleAgent(t *testing.T, db *gorm.DB, shipmentID uuid.UUID) uuid.UUID {
	t.Helper()
	profile := models.AgentProfile{
		UserID:      uuid.New(),
		Status:      enums.AgentStatusActive,
		KYCStatus:   enums.KYCStatusApproved,
		IsOnline:    true,
		IsAvailable: true,
	}
	require.NoError(t, db.Create(&profile).Error)
	require.NoError(t, agents.NewRepository(db).BindShipment(context.Background(), profile.UserID, shipmentID, true))
	return profile.UserID
}

func TestSettlePeakDelivery(t *testing.T) {
	t.Parallel()

	db := setupEarningsTestDB(t)
	svc, agentsRepo := newTestService(t, db)
	ctx := context.Background()

	shipmentID := uuid.New()
	agentID := seedSettleAgent(t, db, shipmentID)

	shipment := &models.Shipment{
		ID:              shipmentID,
		OrderID:         uuid.New(),
		DeliveryAgentID: &agentID,
		DistanceKm:      decimal.NewFromInt(10),
	}
	// 13:00 falls inside the midday peak window.
	completedAt := time.Date(2026, 3, 14, 13, 0, 0, 0, time.Local)

	var entry *models.EarningsEntry
	err := db.Transaction(func(tx *gorm.DB) error {
		var terr error
		entry, terr = svc.Settle(ctx, tx, shipment, completedAt)
		return terr
	})
	require.NoError(t, err)

	require.True(t, entry.BaseFee.Equal(decimal.RequireFromString("30")), "base %s", entry.BaseFee)
	require.True(t, entry.DistanceBonus.Equal(decimal.RequireFromString("56")), "bonus %s", entry.DistanceBonus)
	require.True(t, entry.PeakBonus.Equal(decimal.RequireFromString("43")), "peak %s", entry.PeakBonus)
	require.True(t, entry.Total.Equal(decimal.RequireFromString("129")), "total %s", entry.Total)
	require.True(t, entry.Commission.Equal(decimal.RequireFromString("19.35")), "commission %s", entry.Commission)
	require.True(t, entry.NetAmount.Equal(decimal.RequireFromString("109.65")), "net %s", entry.NetAmount)

	profile, err := agentsRepo.Get(ctx, agentID)
	require.NoError(t, err)
	require.True(t, profile.PendingBalance.Equal(entry.NetAmount))
	require.True(t, profile.TotalEarnings.Equal(entry.NetAmount))
	require.Equal(t, 1, profile.CompletedDeliveries)
	require.False(t, profile.ActiveShipmentIDs.Contains(shipmentID))
	require.True(t, profile.CompletedShipmentIDs.Contains(shipmentID))

	var outboxCount int64
	require.NoError(t, db.Table("outbox_events").Where("event_type = ?", "earnings_credited").Count(&outboxCount).Error)
	require.EqualValues(t, 1, outboxCount)
}

func TestSettleDefaultsDistance(t *testing.T) {
	t.Parallel()

	db := setupEarningsTestDB(t)
	svc, _ := newTestService(t, db)
	ctx := context.Background()

	shipmentID := uuid.New()
	agentID := seedSettleAgent(t, db, shipmentID)

	shipment := &models.Shipment{
		ID:              shipmentID,
		OrderID:         uuid.New(),
		DeliveryAgentID: &agentID,
	}
	// 09:00 is off-peak; default distance 5 km earns a 16.00 bonus.
	completedAt := time.Date(2026, 3, 14, 9, 0, 0, 0, time.Local)

	var entry *models.EarningsEntry
	err := db.Transaction(func(tx *gorm.DB) error {
		var terr error
		entry, terr = svc.Settle(ctx, tx, shipment, completedAt)
		return terr
	})
	require.NoError(t, err)

	require.True(t, entry.DistanceKm.Equal(decimal.NewFromInt(5)))
	require.True(t, entry.DistanceBonus.Equal(decimal.RequireFromString("16")))
	require.True(t, entry.PeakBonus.IsZero())
	require.True(t, entry.Total.Equal(decimal.RequireFromString("46")))
}

func TestSettleTwiceFailsOnUniqueShipment(t *testing.T) {
	t.Parallel()

	db := setupEarningsTestDB(t)
	svc, _ := newTestService(t, db)
	ctx := context.Background()

	shipmentID := uuid.New()
	agentID := seedSettleAgent(t, db, shipmentID)
	shipment := &models.Shipment{
		ID:              shipmentID,
		OrderID:         uuid.New(),
		DeliveryAgentID: &agentID,
		DistanceKm:      decimal.NewFromInt(2),
	}
	completedAt := time.Date(2026, 3, 14, 9, 0, 0, 0, time.Local)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, terr := svc.Settle(ctx, tx, shipment, completedAt)
		return terr
	})
	require.NoError(t, err)

	err = db.Transaction(func(tx *gorm.DB) error {
		_, terr := svc.Settle(ctx, tx, shipment, completedAt)
		return terr
	})
	require.Error(t, err)
}

func TestListEarnings(t *testing.T) {
	t.Parallel()

	db := setupEarningsTestDB(t)
	svc, _ := newTestService(t, db)
	ctx := context.Background()
	repo := NewRepository(db)
	agentID := uuid.New()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		entry := &models.EarningsEntry{
			ID:            uuid.New(),
			AgentID:       agentID,
			ShipmentID:    uuid.New(),
			OrderID:       uuid.New(),
			DistanceKm:    decimal.NewFromInt(5),
			BaseFee:       decimal.NewFromInt(30),
			DistanceBonus: decimal.NewFromInt(16),
			PeakBonus:     decimal.Zero,
			Total:         decimal.NewFromInt(46),
			Commission:    decimal.RequireFromString("6.90"),
			NetAmount:     decimal.RequireFromString("39.10"),
			Status:        enums.EarningStatusPending,
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Create(ctx, entry))
	}

	first, err := svc.List(ctx, agentID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)

	second, err := svc.List(ctx, agentID, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
}
