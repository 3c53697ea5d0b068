package shipments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/delgo-app/delgo-backend/pkg/db/models"
	"github.com/delgo-app/delgo-backend/pkg/enums"
	"github.com/delgo-app/delgo-backend/pkg/types"
)

func setupShipmentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:shipments_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	shipments := `
CREATE TABLE IF NOT EXISTS shipments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  tracking_number TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL DEFAULT 'pending',
  delivery_agent_id TEXT,
  courier_partner TEXT,
  otp_code TEXT NOT NULL,
  customer_name TEXT NOT NULL,
  customer_phone TEXT,
  pickup_address TEXT,
  delivery_address TEXT,
  current_location TEXT,
  distance_km NUMERIC NOT NULL,
  estimated_delivery DATETIME,
  assigned_at DATETIME,
  accepted_at DATETIME,
  pickup_time DATETIME,
  delivered_time DATETIME,
  proof_signature TEXT,
  proof_verified_at DATETIME,
  failure_reason TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	events := `
CREATE TABLE IF NOT EXISTS shipment_events (
  id TEXT PRIMARY KEY,
  shipment_id TEXT NOT NULL,
  from_status TEXT,
  to_status TEXT NOT NULL,
  actor_id TEXT,
  note TEXT,
  location TEXT,
  created_at DATETIME
);`
	for _, ddl := range []string{shipments, events} {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}

func seedShipment(t *testing.T, db *gorm.DB, status enums.ShipmentStatus, agentID *uuid.UUID) *models.Shipment {
	t.Helper()
	shipment := &models.Shipment{
		ID:              uuid.New(),
		OrderID:         uuid.New(),
		TrackingNumber:  "DLG" + uuid.NewString()[:8],
		Status:          status,
		DeliveryAgentID: agentID,
		OTPCode:         "123456",
		CustomerName:    "Priya Sharma",
		DistanceKm:      decimal.NewFromInt(4),
	}
	require.NoError(t, db.Create(shipment).Error)
	return shipment
}

func TestClaimPendingSingleWinner(t *testing.T) {
	t.Parallel()

	db := setupShipmentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	shipment := seedShipment(t, db, enums.ShipmentStatusPending, nil)
	first := uuid.New()
	second := uuid.New()
	now := time.Now().UTC()

	won, err := repo.ClaimPending(ctx, shipment.ID, first, now)
	require.NoError(t, err)
	require.True(t, won)

	won, err = repo.ClaimPending(ctx, shipment.ID, second, now)
	require.NoError(t, err)
	require.False(t, won)

	stored, err := repo.FindByID(ctx, shipment.ID)
	require.NoError(t, err)
	require.Equal(t, enums.ShipmentStatusAccepted, stored.Status)
	require.Equal(t, first, *stored.DeliveryAgentID)
	require.NotNil(t, stored.AcceptedAt)
}

func TestAssignConfirmRelease(t *testing.T) {
	t.Parallel()

	db := setupShipmentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	agentID := uuid.New()
	now := time.Now().UTC()

	shipment := seedShipment(t, db, enums.ShipmentStatusPending, nil)
	won, err := repo.AssignAgent(ctx, shipment.ID, agentID, now)
	require.NoError(t, err)
	require.True(t, won)

	// Confirm is only valid for the agent the assignment bound.
	won, err = repo.ConfirmAssignment(ctx, shipment.ID, uuid.New(), now)
	require.NoError(t, err)
	require.False(t, won)

	won, err = repo.ConfirmAssignment(ctx, shipment.ID, agentID, now)
	require.NoError(t, err)
	require.True(t, won)

	stored, err := repo.FindByID(ctx, shipment.ID)
	require.NoError(t, err)
	require.Equal(t, enums.ShipmentStatusAccepted, stored.Status)

	// A confirmed shipment can no longer be released back to the pool.
	won, err = repo.ReleaseAssignment(ctx, shipment.ID, agentID)
	require.NoError(t, err)
	require.False(t, won)
}

func TestReleaseAssignmentClearsBinding(t *testing.T) {
	t.Parallel()

	db := setupShipmentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	agentID := uuid.New()
	shipment := seedShipment(t, db, enums.ShipmentStatusAssigned, &agentID)

	won, err := repo.ReleaseAssignment(ctx, shipment.ID, agentID)
	require.NoError(t, err)
	require.True(t, won)

	stored, err := repo.FindByID(ctx, shipment.ID)
	require.NoError(t, err)
	require.Equal(t, enums.ShipmentStatusPending, stored.Status)
	require.Nil(t, stored.DeliveryAgentID)
	require.Nil(t, stored.AssignedAt)
}

func TestDeliveryLegTransitions(t *testing.T) {
	t.Parallel()

	db := setupShipmentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	agentID := uuid.New()
	shipment := seedShipment(t, db, enums.ShipmentStatusAccepted, &agentID)
	now := time.Now().UTC()

	// Skipping pickup is rejected.
	won, err := repo.MarkInTransit(ctx, shipment.ID, agentID)
	require.NoError(t, err)
	require.False(t, won)

	won, err = repo.MarkPickedUp(ctx, shipment.ID, agentID, now)
	require.NoError(t, err)
	require.True(t, won)

	won, err = repo.MarkInTransit(ctx, shipment.ID, agentID)
	require.NoError(t, err)
	require.True(t, won)

	proof := "sig-v1"
	won, err = repo.MarkDelivered(ctx, shipment.ID, agentID, now, &proof)
	require.NoError(t, err)
	require.True(t, won)

	stored, err := repo.FindByID(ctx, shipment.ID)
	require.NoError(t, err)
	require.Equal(t, enums.ShipmentStatusDelivered, stored.Status)
	require.NotNil(t, stored.PickupTime)
	require.NotNil(t, stored.DeliveredTime)
	require.NotNil(t, stored.ProofVerifiedAt)
	require.Equal(t, "sig-v1", *stored.ProofSignature)

	// Terminal shipments cannot fail afterwards.
	won, err = repo.MarkFailed(ctx, shipment.ID, "customer unreachable")
	require.NoError(t, err)
	require.False(t, won)
}

func TestMarkFailedFromActiveStatus(t *testing.T) {
	t.Parallel()

	db := setupShipmentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	agentID := uuid.New()
	shipment := seedShipment(t, db, enums.ShipmentStatusInTransit, &agentID)

	won, err := repo.MarkFailed(ctx, shipment.ID, "address not found")
	require.NoError(t, err)
	require.True(t, won)

	stored, err := repo.FindByID(ctx, shipment.ID)
	require.NoError(t, err)
	require.Equal(t, enums.ShipmentStatusFailed, stored.Status)
	require.Equal(t, "address not found", *stored.FailureReason)
}

func TestUpdateLocationGuards(t *testing.T) {
	t.Parallel()

	db := setupShipmentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	agentID := uuid.New()
	shipment := seedShipment(t, db, enums.ShipmentStatusInTransit, &agentID)
	location := types.TimedLatLng{Lat: 12.97, Lng: 77.59, ReportedAt: time.Now().UTC()}

	won, err := repo.UpdateLocation(ctx, shipment.ID, uuid.New(), location)
	require.NoError(t, err)
	require.False(t, won)

	won, err = repo.UpdateLocation(ctx, shipment.ID, agentID, location)
	require.NoError(t, err)
	require.True(t, won)

	stored, err := repo.FindByID(ctx, shipment.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CurrentLocation)
	require.InDelta(t, 12.97, stored.CurrentLocation.Lat, 0.0001)
}

func TestListPendingExcludesAssigned(t *testing.T) {
	t.Parallel()

	db := setupShipmentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	agentID := uuid.New()
	oldest := seedShipment(t, db, enums.ShipmentStatusPending, nil)
	require.NoError(t, db.Model(&models.Shipment{}).
		Where("id = ?", oldest.ID).
		Update("created_at", time.Now().UTC().Add(-time.Hour)).Error)
	seedShipment(t, db, enums.ShipmentStatusPending, nil)
	seedShipment(t, db, enums.ShipmentStatusAssigned, &agentID)
	seedShipment(t, db, enums.ShipmentStatusDelivered, &agentID)

	pending, err := repo.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, oldest.ID, pending[0].ID)
}

func TestFindByTrackingNumberPreloadsEvents(t *testing.T) {
	t.Parallel()

	db := setupShipmentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	agentID := uuid.New()
	shipment := seedShipment(t, db, enums.ShipmentStatusPickedUp, &agentID)
	from := enums.ShipmentStatusAccepted
	require.NoError(t, repo.AppendEvent(ctx, &models.ShipmentEvent{
		ID:         uuid.New(),
		ShipmentID: shipment.ID,
		FromStatus: &from,
		ToStatus:   enums.ShipmentStatusPickedUp,
		ActorID:    &agentID,
	}))

	stored, err := repo.FindByTrackingNumber(ctx, shipment.TrackingNumber)
	require.NoError(t, err)
	require.Equal(t, shipment.ID, stored.ID)
	require.Len(t, stored.Events, 1)
	require.Equal(t, enums.ShipmentStatusPickedUp, stored.Events[0].ToStatus)
}
