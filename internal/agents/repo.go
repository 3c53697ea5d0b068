package agents

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/delgo-app/delgo-backend/pkg/db/models"
	"github.com/delgo-app/delgo-backend/pkg/enums"
	"github.com/delgo-app/delgo-backend/pkg/types"
)

// Repository manages delivery agent dispatch state. The profile is only
// contended by an agent's own requests, so working-set updates load and
// save within the caller's transaction rather than using array operators.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, userID uuid.UUID) (*models.AgentProfile, error)
	FindEligible(ctx context.Context) ([]models.AgentProfile, error)
	SetAvailability(ctx context.Context, userID uuid.UUID, online, available bool) error
	UpdateLocation(ctx context.Context, userID uuid.UUID, location types.TimedLatLng) error
	BindShipment(ctx context.Context, userID, shipmentID uuid.UUID, accepted bool) error
	UnbindShipment(ctx context.Context, userID, shipmentID uuid.UUID) error
	SettleDelivery(ctx context.Context, userID, shipmentID uuid.UUID, netAmount decimal.Decimal) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an agents repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Get(ctx context.Context, userID uuid.UUID) (*models.AgentProfile, error) {
	var profile models.AgentProfile
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// FindEligible returns agents the dispatcher may bind: online, available,
// active and KYC approved. Ordered by profile creation so ties resolve to
// the first-seen agent.
func (r *repository) FindEligible(ctx context.Context) ([]models.AgentProfile, error) {
	var profiles []models.AgentProfile
	err := r.db.WithContext(ctx).
		Where("is_online = ? AND is_available = ? AND status = ? AND kyc_status = ?",
			true, true, enums.AgentStatusActive, enums.KYCStatusApproved).
		Order("created_at ASC").
		Find(&profiles).Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *repository) SetAvailability(ctx context.Context, userID uuid.UUID, online, available bool) error {
	return r.db.WithContext(ctx).
		Model(&models.AgentProfile{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"is_online":    online,
			"is_available": available,
		}).Error
}

func (r *repository) UpdateLocation(ctx context.Context, userID uuid.UUID, location types.TimedLatLng) error {
	return r.db.WithContext(ctx).
		Model(&models.AgentProfile{}).
		Where("user_id = ?", userID).
		Update("current_location", &location).Error
}

// BindShipment adds the shipment to the agent's working set. An accepted
// bind also flips the agent online and available, idempotently, and counts
// toward total_deliveries at accept time. Auto-assignment binds without
// either side effect until the agent confirms.
func (r *repository) BindShipment(ctx context.Context, userID, shipmentID uuid.UUID, accepted bool) error {
	profile, err := r.Get(ctx, userID)
	if err != nil {
		return err
	}

	updates := map[string]any{
		"active_shipment_ids": profile.ActiveShipmentIDs.With(shipmentID),
	}
	if accepted {
		updates["is_online"] = true
		updates["is_available"] = true
		updates["total_deliveries"] = gorm.Expr("total_deliveries + 1")
	}
	return r.db.WithContext(ctx).
		Model(&models.AgentProfile{}).
		Where("user_id = ?", userID).
		Updates(updates).Error
}

// UnbindShipment removes the shipment from the agent's working set after a
// rejection.
func (r *repository) UnbindShipment(ctx context.Context, userID, shipmentID uuid.UUID) error {
	profile, err := r.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !profile.ActiveShipmentIDs.Contains(shipmentID) {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.AgentProfile{}).
		Where("user_id = ?", userID).
		Update("active_shipment_ids", profile.ActiveShipmentIDs.Without(shipmentID)).Error
}

// SettleDelivery moves the shipment from the active to the completed set
// and credits the agent's running totals with the net payout.
func (r *repository) SettleDelivery(ctx context.Context, userID, shipmentID uuid.UUID, netAmount decimal.Decimal) error {
	profile, err := r.Get(ctx, userID)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&models.AgentProfile{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"active_shipment_ids":    profile.ActiveShipmentIDs.Without(shipmentID),
			"completed_shipment_ids": profile.CompletedShipmentIDs.With(shipmentID),
			"completed_deliveries":   gorm.Expr("completed_deliveries + 1"),
			"total_deliveries":       gorm.Expr("total_deliveries + 1"),
			"total_earnings":         profile.TotalEarnings.Add(netAmount),
			"pending_balance":        profile.PendingBalance.Add(netAmount),
		}).Error
}
