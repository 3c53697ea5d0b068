package shipments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/delgo-app/delgo-backend/internal/agents"
	"github.com/delgo-app/delgo-backend/internal/earnings"
	"github.com/delgo-app/delgo-backend/internal/notifications"
	"github.com/delgo-app/delgo-backend/internal/orders"
	"github.com/delgo-app/delgo-backend/pkg/config"
	"github.com/delgo-app/delgo-backend/pkg/db/models"
	"github.com/delgo-app/delgo-backend/pkg/delivery"
	"github.com/delgo-app/delgo-backend/pkg/enums"
	pkgerrors "github.com/delgo-app/delgo-backend/pkg/errors"
	"github.com/delgo-app/delgo-backend/pkg/logger"
	"github.com/delgo-app/delgo-backend/pkg/metrics"
	"github.com/delgo-app/delgo-backend/pkg/outbox"
)

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type stubLimiter struct {
	allow   bool
	cleared int
}

func (s *stubLimiter) AllowOTPAttempt(ctx context.Context, shipmentID string, limit int64, window time.Duration) (bool, error) {
	return s.allow, nil
}

func (s *stubLimiter) ClearOTPAttempts(ctx context.Context, shipmentID string) error {
	s.cleared++
	return nil
}

func setupLifecycleTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := setupShipmentsTestDB(t)

	extra := []string{`
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  payment_method TEXT NOT NULL DEFAULT 'cash',
  payment_verified INTEGER NOT NULL DEFAULT 0,
  currency TEXT NOT NULL DEFAULT 'INR',
  subtotal NUMERIC NOT NULL,
  tax NUMERIC NOT NULL,
  shipping_fee NUMERIC NOT NULL,
  total NUMERIC NOT NULL,
  shipping_address TEXT,
  cancelled_at DATETIME,
  delivered_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT,
  name TEXT NOT NULL,
  unit_price NUMERIC NOT NULL,
  quantity INTEGER NOT NULL,
  line_total NUMERIC NOT NULL,
  created_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS inventory_items (
  product_id TEXT PRIMARY KEY,
  available_qty INTEGER NOT NULL DEFAULT 0,
  reserved_qty INTEGER NOT NULL DEFAULT 0,
  order_count INTEGER NOT NULL DEFAULT 0,
  updated_at DATETIME
);`, `
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
);`, `
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
);`, `
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
);`, `
CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  type TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  link TEXT,
  read_at DATETIME,
  created_at DATETIME
);`}
	for _, ddl := range extra {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}

func lifecycleFeeSchedule(t *testing.T) delivery.FeeSchedule {
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

func newLifecycleService(t *testing.T, db *gorm.DB, limiter *stubLimiter) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test"})
	publisher := outbox.NewService(outbox.NewRepository(db), logg)
	agentsRepo := agents.NewRepository(db)

	settler, err := earnings.NewService(earnings.NewRepository(db), agentsRepo, lifecycleFeeSchedule(t), publisher, logg)
	require.NoError(t, err)
	notifier, err := notifications.NewService(notifications.NewRepository(db), logg)
	require.NoError(t, err)

	var limiterDep otpLimiter
	if limiter != nil {
		limiterDep = limiter
	}
	svc, err := NewService(
		testTxRunner{db: db},
		NewRepository(db),
		orders.NewRepository(db),
		agentsRepo,
		settler,
		notifier,
		publisher,
		limiterDep,
		config.OTPConfig{AttemptLimit: 10, AttemptWindow: 10 * time.Minute},
		metrics.NewDispatchMetrics(nil),
		logg,
	)
	require.NoError(t, err)
	return svc
}

type lifecycleWorld struct {
	agentID   uuid.UUID
	productID uuid.UUID
	order     *models.Order
	shipment  *models.Shipment
}

// seedLifecycleWorld builds an in-transit shipment with a shipped order, a
// reserved inventory row and a bound agent, ready for delivery confirmation.
func seedLifecycleWorld(t *testing.T, db *gorm.DB) lifecycleWorld {
	t.Helper()
	ctx := context.Background()

	profile := models.AgentProfile{
		UserID:      uuid.New(),
		Status:      enums.AgentStatusActive,
		KYCStatus:   enums.KYCStatusApproved,
		IsOnline:    true,
		IsAvailable: true,
	}
	require.NoError(t, db.Create(&profile).Error)

	productID := uuid.New()
	require.NoError(t, db.Create(&models.InventoryItem{
		ProductID:    productID,
		AvailableQty: 8,
		ReservedQty:  2,
		OrderCount:   1,
	}).Error)

	order := &models.Order{
		ID:          uuid.New(),
		CustomerID:  uuid.New(),
		SellerID:    uuid.New(),
		Status:      enums.OrderStatusShipped,
		Subtotal:    decimal.NewFromInt(200),
		Tax:         decimal.NewFromInt(10),
		ShippingFee: decimal.NewFromInt(40),
		Total:       decimal.NewFromInt(250),
	}
	require.NoError(t, db.Create(order).Error)
	require.NoError(t, db.Create(&models.OrderItem{
		ID:        uuid.New(),
		OrderID:   order.ID,
		ProductID: &productID,
		Name:      "Masala Chai",
		UnitPrice: decimal.NewFromInt(100),
		Quantity:  2,
		LineTotal: decimal.NewFromInt(200),
	}).Error)

	shipment := &models.Shipment{
		ID:              uuid.New(),
		OrderID:         order.ID,
		TrackingNumber:  "DLG" + uuid.NewString()[:8],
		Status:          enums.ShipmentStatusInTransit,
		DeliveryAgentID: &profile.UserID,
		OTPCode:         "482916",
		CustomerName:    "Priya Sharma",
		DistanceKm:      decimal.NewFromInt(4),
	}
	require.NoError(t, db.Create(shipment).Error)
	require.NoError(t, agents.NewRepository(db).BindShipment(ctx, profile.UserID, shipment.ID, true))

	return lifecycleWorld{
		agentID:   profile.UserID,
		productID: productID,
		order:     order,
		shipment:  shipment,
	}
}

func TestCompleteDelivery(t *testing.T) {
	t.Parallel()

	db := setupLifecycleTestDB(t)
	limiter := &stubLimiter{allow: true}
	svc := newLifecycleService(t, db, limiter)
	ctx := context.Background()
	world := seedLifecycleWorld(t, db)

	proof := "sig-v1"
	delivered, err := svc.Complete(ctx, world.agentID, world.shipment.ID, "482916", &proof, nil)
	require.NoError(t, err)
	require.NotNil(t, delivered)

	stored, err := NewRepository(db).FindByID(ctx, world.shipment.ID)
	require.NoError(t, err)
	require.Equal(t, enums.ShipmentStatusDelivered, stored.Status)
	require.NotNil(t, stored.DeliveredTime)
	require.Equal(t, "sig-v1", *stored.ProofSignature)

	var order models.Order
	require.NoError(t, db.First(&order, "id = ?", world.order.ID).Error)
	require.Equal(t, enums.OrderStatusDelivered, order.Status)
	require.NotNil(t, order.DeliveredAt)

	var item models.InventoryItem
	require.NoError(t, db.First(&item, "product_id = ?", world.productID).Error)
	require.Equal(t, 0, item.ReservedQty)

	var entry models.EarningsEntry
	require.NoError(t, db.First(&entry, "shipment_id = ?", world.shipment.ID).Error)
	require.Equal(t, world.agentID, entry.AgentID)
	// 4km off-peak: base 30 plus 8 over the free 3km, minus 15% commission.
	require.True(t, entry.NetAmount.Equal(decimal.RequireFromString("32.30")), entry.NetAmount.String())

	var profile models.AgentProfile
	require.NoError(t, db.First(&profile, "user_id = ?", world.agentID).Error)
	require.True(t, profile.PendingBalance.Equal(decimal.RequireFromString("32.30")))
	require.Equal(t, 1, profile.CompletedDeliveries)
	require.True(t, profile.CompletedShipmentIDs.Contains(world.shipment.ID))
	require.False(t, profile.ActiveShipmentIDs.Contains(world.shipment.ID))

	var deliveredEvents int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventShipmentDelivered).
		Count(&deliveredEvents).Error)
	require.EqualValues(t, 1, deliveredEvents)

	var releasedEvents int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventReservationReleased).
		Count(&releasedEvents).Error)
	require.EqualValues(t, 1, releasedEvents)

	var notified int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&notified).Error)
	require.EqualValues(t, 3, notified)

	require.Equal(t, 1, limiter.cleared)
}

func TestCompleteWrongCodeChangesNothing(t *testing.T) {
	t.Parallel()

	db := setupLifecycleTestDB(t)
	svc := newLifecycleService(t, db, &stubLimiter{allow: true})
	ctx := context.Background()
	world := seedLifecycleWorld(t, db)

	_, err := svc.Complete(ctx, world.agentID, world.shipment.ID, "000000", nil, nil)
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	require.Equal(t, pkgerrors.CodeInvalidOTP, appErr.Code())

	stored, err := NewRepository(db).FindByID(ctx, world.shipment.ID)
	require.NoError(t, err)
	require.Equal(t, enums.ShipmentStatusInTransit, stored.Status)

	var order models.Order
	require.NoError(t, db.First(&order, "id = ?", world.order.ID).Error)
	require.Equal(t, enums.OrderStatusShipped, order.Status)

	var entries int64
	require.NoError(t, db.Model(&models.EarningsEntry{}).Count(&entries).Error)
	require.Zero(t, entries)

	var item models.InventoryItem
	require.NoError(t, db.First(&item, "product_id = ?", world.productID).Error)
	require.Equal(t, 2, item.ReservedQty)
}

func TestCompleteRateLimited(t *testing.T) {
	t.Parallel()

	db := setupLifecycleTestDB(t)
	svc := newLifecycleService(t, db, &stubLimiter{allow: false})
	ctx := context.Background()
	world := seedLifecycleWorld(t, db)

	_, err := svc.Complete(ctx, world.agentID, world.shipment.ID, "482916", nil, nil)
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	require.Equal(t, pkgerrors.CodeRateLimit, appErr.Code())

	stored, err := NewRepository(db).FindByID(ctx, world.shipment.ID)
	require.NoError(t, err)
	require.Equal(t, enums.ShipmentStatusInTransit, stored.Status)
}

func TestCompleteByForeignAgent(t *testing.T) {
	t.Parallel()

	db := setupLifecycleTestDB(t)
	svc := newLifecycleService(t, db, &stubLimiter{allow: true})
	ctx := context.Background()
	world := seedLifecycleWorld(t, db)

	_, err := svc.Complete(ctx, uuid.New(), world.shipment.ID, "482916", nil, nil)
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	require.Equal(t, pkgerrors.CodeNotAssigned, appErr.Code())
}

func TestRejectReturnsShipmentToPool(t *testing.T) {
	t.Parallel()

	db := setupLifecycleTestDB(t)
	svc := newLifecycleService(t, db, nil)
	ctx := context.Background()
	world := seedLifecycleWorld(t, db)

	now := time.Now().UTC()
	require.NoError(t, db.Model(&models.Shipment{}).
		Where("id = ?", world.shipment.ID).
		Updates(map[string]any{"status": enums.ShipmentStatusAssigned, "assigned_at": now}).Error)

	require.NoError(t, svc.Reject(ctx, world.agentID, world.shipment.ID))

	stored, err := NewRepository(db).FindByID(ctx, world.shipment.ID)
	require.NoError(t, err)
	require.Equal(t, enums.ShipmentStatusPending, stored.Status)
	require.Nil(t, stored.DeliveryAgentID)
	require.Len(t, stored.Events, 1)
	require.Equal(t, enums.ShipmentStatusPending, stored.Events[0].ToStatus)

	var profile models.AgentProfile
	require.NoError(t, db.First(&profile, "user_id = ?", world.agentID).Error)
	require.False(t, profile.ActiveShipmentIDs.Contains(world.shipment.ID))
}

func TestRejectUnassignedShipmentFails(t *testing.T) {
	t.Parallel()

	db := setupLifecycleTestDB(t)
	svc := newLifecycleService(t, db, nil)
	ctx := context.Background()

	shipment := seedShipment(t, db, enums.ShipmentStatusPending, nil)

	err := svc.Reject(ctx, uuid.New(), shipment.ID)
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	require.Equal(t, pkgerrors.CodeNotAssigned, appErr.Code())
}

func TestPickupAndDepartAdvanceOrder(t *testing.T) {
	t.Parallel()

	db := setupLifecycleTestDB(t)
	svc := newLifecycleService(t, db, nil)
	ctx := context.Background()
	world := seedLifecycleWorld(t, db)

	require.NoError(t, db.Model(&models.Shipment{}).
		Where("id = ?", world.shipment.ID).
		Update("status", enums.ShipmentStatusAccepted).Error)
	require.NoError(t, db.Model(&models.Order{}).
		Where("id = ?", world.order.ID).
		Update("status", enums.OrderStatusPending).Error)

	picked, err := svc.Pickup(ctx, world.agentID, world.shipment.ID, nil)
	require.NoError(t, err)
	require.Equal(t, enums.ShipmentStatusPickedUp, picked.Status)

	var order models.Order
	require.NoError(t, db.First(&order, "id = ?", world.order.ID).Error)
	require.Equal(t, enums.OrderStatusPacked, order.Status)

	departed, err := svc.Depart(ctx, world.agentID, world.shipment.ID, nil)
	require.NoError(t, err)
	require.Equal(t, enums.ShipmentStatusInTransit, departed.Status)

	require.NoError(t, db.First(&order, "id = ?", world.order.ID).Error)
	require.Equal(t, enums.OrderStatusShipped, order.Status)

	// Pickup again from in-transit loses the guard.
	_, err = svc.Pickup(ctx, world.agentID, world.shipment.ID, nil)
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	require.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())
}

func TestFailCancelsOrderAndUnbindsAgent(t *testing.T) {
	t.Parallel()

	db := setupLifecycleTestDB(t)
	svc := newLifecycleService(t, db, nil)
	ctx := context.Background()
	world := seedLifecycleWorld(t, db)

	require.NoError(t, svc.Fail(ctx, world.agentID, world.shipment.ID, "customer unreachable"))

	stored, err := NewRepository(db).FindByID(ctx, world.shipment.ID)
	require.NoError(t, err)
	require.Equal(t, enums.ShipmentStatusFailed, stored.Status)
	require.Equal(t, "customer unreachable", *stored.FailureReason)

	var order models.Order
	require.NoError(t, db.First(&order, "id = ?", world.order.ID).Error)
	require.Equal(t, enums.OrderStatusCancelled, order.Status)
	require.NotNil(t, order.CancelledAt)

	var profile models.AgentProfile
	require.NoError(t, db.First(&profile, "user_id = ?", world.agentID).Error)
	require.False(t, profile.ActiveShipmentIDs.Contains(world.shipment.ID))

	var failedEvents int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventShipmentFailed).
		Count(&failedEvents).Error)
	require.EqualValues(t, 1, failedEvents)

	// Failing twice is a state conflict.
	err = svc.Fail(ctx, world.agentID, world.shipment.ID, "again")
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	require.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())
}

func TestReportLocationUpdatesShipmentAndProfile(t *testing.T) {
	t.Parallel()

	db := setupLifecycleTestDB(t)
	svc := newLifecycleService(t, db, nil)
	ctx := context.Background()
	world := seedLifecycleWorld(t, db)

	require.NoError(t, svc.ReportLocation(ctx, world.agentID, world.shipment.ID, 12.97, 77.59))

	stored, err := NewRepository(db).FindByID(ctx, world.shipment.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CurrentLocation)
	require.InDelta(t, 77.59, stored.CurrentLocation.Lng, 0.0001)

	var profile models.AgentProfile
	require.NoError(t, db.First(&profile, "user_id = ?", world.agentID).Error)
	require.NotNil(t, profile.CurrentLocation)
	require.InDelta(t, 12.97, profile.CurrentLocation.Lat, 0.0001)
}

func TestTrackUnknownShipment(t *testing.T) {
	t.Parallel()

	db := setupLifecycleTestDB(t)
	svc := newLifecycleService(t, db, nil)

	_, err := svc.Track(context.Background(), "DLGUNKNOWN")
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	require.Equal(t, pkgerrors.CodeNotFound, appErr.Code())
}
