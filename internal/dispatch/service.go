package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/delgo-app/delgo-backend/internal/agents"
	"github.com/delgo-app/delgo-backend/internal/notifications"
	"github.com/delgo-app/delgo-backend/internal/shipments"
	"github.com/delgo-app/delgo-backend/pkg/db/models"
	"github.com/delgo-app/delgo-backend/pkg/enums"
	pkgerrors "github.com/delgo-app/delgo-backend/pkg/errors"
	"github.com/delgo-app/delgo-backend/pkg/geo"
	"github.com/delgo-app/delgo-backend/pkg/logger"
	"github.com/delgo-app/delgo-backend/pkg/metrics"
	"github.com/delgo-app/delgo-backend/pkg/outbox"
	"github.com/delgo-app/delgo-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service binds agents to shipments. Agents pull from the pending queue
// with SelfAccept; operators and the assignment worker push with
// AutoAssign. Both paths settle contention through the same conditional
// updates, so a shipment never ends up with two agents.
type Service interface {
	SelfAccept(ctx context.Context, agentID, shipmentID uuid.UUID) (*models.Shipment, error)
	AutoAssign(ctx context.Context, shipmentID uuid.UUID) (*models.Shipment, error)
}

type service struct {
	tx       txRunner
	repo     shipments.Repository
	agents   agents.Repository
	notifier notifications.Service
	outbox   outboxPublisher
	metrics  *metrics.DispatchMetrics
	logg     *logger.Logger
}

// NewService builds the dispatch service.
func NewService(
	tx txRunner,
	repo shipments.Repository,
	agentsRepo agents.Repository,
	notifier notifications.Service,
	publisher outboxPublisher,
	dispatchMetrics *metrics.DispatchMetrics,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("shipments repository required")
	}
	if agentsRepo == nil {
		return nil, fmt.Errorf("agents repository required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifications service required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:       tx,
		repo:     repo,
		agents:   agentsRepo,
		notifier: notifier,
		outbox:   publisher,
		metrics:  dispatchMetrics,
		logg:     logg,
	}, nil
}

// SelfAccept lets an agent take a shipment: a pending one straight from the
// queue, or one the dispatcher already assigned to them. Exactly one caller
// wins; losers get an already-assigned error.
func (s *service) SelfAccept(ctx context.Context, agentID, shipmentID uuid.UUID) (*models.Shipment, error) {
	profile, err := s.agents.Get(ctx, agentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery agent profile not found")
		}
		return nil, err
	}
	if profile.Status != enums.AgentStatusActive || profile.KYCStatus != enums.KYCStatusApproved {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "agent is not cleared for deliveries")
	}

	var result *models.Shipment
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := time.Now().UTC()

		won, err := repo.ClaimPending(ctx, shipmentID, agentID, now)
		if err != nil {
			return err
		}
		var fromStatus enums.ShipmentStatus
		if won {
			fromStatus = enums.ShipmentStatusPending
		} else {
			// Not pending: the shipment may be held by an assignment
			// offered to this very agent.
			won, err = repo.ConfirmAssignment(ctx, shipmentID, agentID, now)
			if err != nil {
				return err
			}
			fromStatus = enums.ShipmentStatusAssigned
		}
		if !won {
			s.metrics.IncAssignmentConflict()
			return s.classifyClaimFailure(ctx, tx, shipmentID)
		}

		if err := s.agents.WithTx(tx).BindShipment(ctx, agentID, shipmentID, true); err != nil {
			return err
		}

		if err := repo.AppendEvent(ctx, &models.ShipmentEvent{
			ID:         uuid.New(),
			ShipmentID: shipmentID,
			FromStatus: &fromStatus,
			ToStatus:   enums.ShipmentStatusAccepted,
			ActorID:    &agentID,
		}); err != nil {
			return err
		}

		shipment, err := repo.FindByID(ctx, shipmentID)
		if err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventShipmentAccepted,
			AggregateType: enums.AggregateShipment,
			AggregateID:   shipmentID,
			Actor:         &outbox.ActorRef{UserID: agentID, Role: string(enums.RoleAgent)},
			Data: payloads.ShipmentStatusEvent{
				ShipmentID: shipmentID,
				OrderID:    shipment.OrderID,
				AgentID:    &agentID,
				FromStatus: fromStatus,
				ToStatus:   enums.ShipmentStatusAccepted,
			},
			Version: 1,
		}); err != nil {
			return err
		}

		result = shipment
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.observeAssignmentLatency(result)
	return result, nil
}

// AutoAssign offers a pending shipment to the nearest eligible agent. The
// agent still has to accept; until then the shipment is held in assigned
// and can be rejected back to the pool.
func (s *service) AutoAssign(ctx context.Context, shipmentID uuid.UUID) (*models.Shipment, error) {
	shipment, err := s.repo.FindByID(ctx, shipmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shipment not found")
		}
		return nil, err
	}
	if shipment.Status != enums.ShipmentStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeAlreadyAssigned, fmt.Sprintf("shipment is %s", shipment.Status))
	}

	candidates, err := s.agents.FindEligible(ctx)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNoAgentsAvailable, "no delivery agents available")
	}

	chosen := pickNearest(candidates, shipment)

	var result *models.Shipment
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := time.Now().UTC()

		won, err := repo.AssignAgent(ctx, shipmentID, chosen.UserID, now)
		if err != nil {
			return err
		}
		if !won {
			s.metrics.IncAssignmentConflict()
			return s.classifyClaimFailure(ctx, tx, shipmentID)
		}

		if err := s.agents.WithTx(tx).BindShipment(ctx, chosen.UserID, shipmentID, false); err != nil {
			return err
		}

		from := enums.ShipmentStatusPending
		if err := repo.AppendEvent(ctx, &models.ShipmentEvent{
			ID:         uuid.New(),
			ShipmentID: shipmentID,
			FromStatus: &from,
			ToStatus:   enums.ShipmentStatusAssigned,
		}); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventShipmentAssigned,
			AggregateType: enums.AggregateShipment,
			AggregateID:   shipmentID,
			Data: payloads.ShipmentAssignedEvent{
				ShipmentID: shipmentID,
				OrderID:    shipment.OrderID,
				AgentID:    chosen.UserID,
				AssignedAt: now,
			},
			Version: 1,
		}); err != nil {
			return err
		}

		updated, err := repo.FindByID(ctx, shipmentID)
		if err != nil {
			return err
		}
		result = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.observeAssignmentLatency(result)
	s.notifier.Notify(ctx, notifications.Message{
		UserID:  chosen.UserID,
		Type:    enums.NotificationTypeDelivery,
		Title:   "New delivery assigned",
		Message: fmt.Sprintf("Shipment %s is waiting for your confirmation", result.TrackingNumber),
	})

	ctx = s.logg.WithShipmentID(ctx, shipmentID.String())
	s.logg.Info(s.logg.WithUserID(ctx, chosen.UserID.String()), "shipment offered to nearest agent")
	return result, nil
}

// pickNearest ranks candidates by distance to the delivery address. Agents
// without a reported location, or shipments without delivery coordinates,
// fall back to queue order, which FindEligible keeps oldest-first.
func pickNearest(candidates []models.AgentProfile, shipment *models.Shipment) models.AgentProfile {
	chosen := candidates[0]
	if shipment.DeliveryAddress == nil || shipment.DeliveryAddress.Coordinates == nil {
		return chosen
	}
	target := shipment.DeliveryAddress.Coordinates

	best := -1.0
	for _, candidate := range candidates {
		if candidate.CurrentLocation == nil {
			continue
		}
		distance := geo.HaversineKm(candidate.CurrentLocation.Lat, candidate.CurrentLocation.Lng, target.Lat, target.Lng)
		if best < 0 || distance < best {
			best = distance
			chosen = candidate
		}
	}
	return chosen
}

func (s *service) observeAssignmentLatency(shipment *models.Shipment) {
	if shipment == nil {
		return
	}
	s.metrics.ObserveAssignmentLatency(time.Since(shipment.CreatedAt))
}

func (s *service) classifyClaimFailure(ctx context.Context, tx *gorm.DB, shipmentID uuid.UUID) error {
	shipment, err := s.repo.WithTx(tx).FindByID(ctx, shipmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "shipment not found")
		}
		return err
	}
	if shipment.DeliveryAgentID != nil {
		return pkgerrors.New(pkgerrors.CodeAlreadyAssigned, "shipment was already taken")
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("shipment is %s and cannot be claimed", shipment.Status))
}
