package shipments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/delgo-app/delgo-backend/pkg/db/models"
	"github.com/delgo-app/delgo-backend/pkg/enums"
	"github.com/delgo-app/delgo-backend/pkg/types"
)

// Repository persists shipments and applies state transitions. Every
// transition is a single conditional update keyed on the current status
// (and bound agent where relevant); RowsAffected tells the caller whether
// it won the race. Losers must not append events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, shipment *models.Shipment) (*models.Shipment, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Shipment, error)
	FindByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Shipment, error)
	ListPending(ctx context.Context, limit int) ([]models.Shipment, error)
	ListByAgent(ctx context.Context, agentID uuid.UUID, statuses []enums.ShipmentStatus) ([]models.Shipment, error)

	ClaimPending(ctx context.Context, id, agentID uuid.UUID, at time.Time) (bool, error)
	AssignAgent(ctx context.Context, id, agentID uuid.UUID, at time.Time) (bool, error)
	ConfirmAssignment(ctx context.Context, id, agentID uuid.UUID, at time.Time) (bool, error)
	ReleaseAssignment(ctx context.Context, id, agentID uuid.UUID) (bool, error)
	MarkPickedUp(ctx context.Context, id, agentID uuid.UUID, at time.Time) (bool, error)
	MarkInTransit(ctx context.Context, id, agentID uuid.UUID) (bool, error)
	MarkDelivered(ctx context.Context, id, agentID uuid.UUID, at time.Time, proofSignature *string) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) (bool, error)
	UpdateLocation(ctx context.Context, id, agentID uuid.UUID, location types.TimedLatLng) (bool, error)

	AppendEvent(ctx context.Context, event *models.ShipmentEvent) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a shipments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, shipment *models.Shipment) (*models.Shipment, error) {
	if err := r.db.WithContext(ctx).Create(shipment).Error; err != nil {
		return nil, err
	}
	return shipment, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Shipment, error) {
	var shipment models.Shipment
	err := r.db.WithContext(ctx).
		Preload("Events", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("id = ?", id).
		First(&shipment).Error
	if err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (r *repository) FindByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Shipment, error) {
	var shipment models.Shipment
	err := r.db.WithContext(ctx).
		Preload("Events", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("tracking_number = ?", trackingNumber).
		First(&shipment).Error
	if err != nil {
		return nil, err
	}
	return &shipment, nil
}

// ListPending returns the unassigned shipment pool, oldest first.
func (r *repository) ListPending(ctx context.Context, limit int) ([]models.Shipment, error) {
	var shipments []models.Shipment
	query := r.db.WithContext(ctx).
		Where("status = ? AND delivery_agent_id IS NULL", enums.ShipmentStatusPending).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&shipments).Error; err != nil {
		return nil, err
	}
	return shipments, nil
}

func (r *repository) ListByAgent(ctx context.Context, agentID uuid.UUID, statuses []enums.ShipmentStatus) ([]models.Shipment, error) {
	query := r.db.WithContext(ctx).
		Where("delivery_agent_id = ?", agentID).
		Order("created_at ASC")
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	var shipments []models.Shipment
	if err := query.Find(&shipments).Error; err != nil {
		return nil, err
	}
	return shipments, nil
}

// ClaimPending is the self-accept path: pending, no agent bound, straight
// to accepted.
func (r *repository) ClaimPending(ctx context.Context, id, agentID uuid.UUID, at time.Time) (bool, error) {
	return r.transition(ctx, map[string]any{
		"status":            enums.ShipmentStatusAccepted,
		"delivery_agent_id": agentID,
		"accepted_at":       at,
	}, "id = ? AND status = ? AND delivery_agent_id IS NULL", id, enums.ShipmentStatusPending)
}

// AssignAgent is the auto-assign path: pending, no agent bound, to assigned.
func (r *repository) AssignAgent(ctx context.Context, id, agentID uuid.UUID, at time.Time) (bool, error) {
	return r.transition(ctx, map[string]any{
		"status":            enums.ShipmentStatusAssigned,
		"delivery_agent_id": agentID,
		"assigned_at":       at,
	}, "id = ? AND status = ? AND delivery_agent_id IS NULL", id, enums.ShipmentStatusPending)
}

// ConfirmAssignment moves an assigned shipment to accepted for its bound
// agent only.
func (r *repository) ConfirmAssignment(ctx context.Context, id, agentID uuid.UUID, at time.Time) (bool, error) {
	return r.transition(ctx, map[string]any{
		"status":      enums.ShipmentStatusAccepted,
		"accepted_at": at,
	}, "id = ? AND status = ? AND delivery_agent_id = ?", id, enums.ShipmentStatusAssigned, agentID)
}

// ReleaseAssignment reverts an assigned shipment to the pending pool and
// clears the agent binding.
func (r *repository) ReleaseAssignment(ctx context.Context, id, agentID uuid.UUID) (bool, error) {
	return r.transition(ctx, map[string]any{
		"status":            enums.ShipmentStatusPending,
		"delivery_agent_id": nil,
		"assigned_at":       nil,
	}, "id = ? AND status = ? AND delivery_agent_id = ?", id, enums.ShipmentStatusAssigned, agentID)
}

func (r *repository) MarkPickedUp(ctx context.Context, id, agentID uuid.UUID, at time.Time) (bool, error) {
	return r.transition(ctx, map[string]any{
		"status":      enums.ShipmentStatusPickedUp,
		"pickup_time": at,
	}, "id = ? AND status = ? AND delivery_agent_id = ?", id, enums.ShipmentStatusAccepted, agentID)
}

func (r *repository) MarkInTransit(ctx context.Context, id, agentID uuid.UUID) (bool, error) {
	return r.transition(ctx, map[string]any{
		"status": enums.ShipmentStatusInTransit,
	}, "id = ? AND status = ? AND delivery_agent_id = ?", id, enums.ShipmentStatusPickedUp, agentID)
}

func (r *repository) MarkDelivered(ctx context.Context, id, agentID uuid.UUID, at time.Time, proofSignature *string) (bool, error) {
	updates := map[string]any{
		"status":            enums.ShipmentStatusDelivered,
		"delivered_time":    at,
		"proof_verified_at": at,
	}
	if proofSignature != nil {
		updates["proof_signature"] = proofSignature
	}
	return r.transition(ctx, updates,
		"id = ? AND status = ? AND delivery_agent_id = ?", id, enums.ShipmentStatusInTransit, agentID)
}

// MarkFailed is valid from any non-terminal status.
func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	return r.transition(ctx, map[string]any{
		"status":         enums.ShipmentStatusFailed,
		"failure_reason": reason,
	}, "id = ? AND status NOT IN ?", id, []enums.ShipmentStatus{
		enums.ShipmentStatusDelivered,
		enums.ShipmentStatusFailed,
		enums.ShipmentStatusCancelled,
	})
}

// UpdateLocation is advisory and does not change status, but only the
// bound agent may report while the shipment is moving.
func (r *repository) UpdateLocation(ctx context.Context, id, agentID uuid.UUID, location types.TimedLatLng) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("id = ? AND delivery_agent_id = ? AND status IN ?", id, agentID, []enums.ShipmentStatus{
			enums.ShipmentStatusAccepted,
			enums.ShipmentStatusPickedUp,
			enums.ShipmentStatusInTransit,
		}).
		Update("current_location", &location)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) AppendEvent(ctx context.Context, event *models.ShipmentEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) transition(ctx context.Context, updates map[string]any, query string, args ...any) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where(query, args...).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
