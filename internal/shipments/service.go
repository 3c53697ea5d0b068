package shipments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/delgo-app/delgo-backend/internal/agents"
	"github.com/delgo-app/delgo-backend/internal/earnings"
	"github.com/delgo-app/delgo-backend/internal/inventory"
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
	"github.com/delgo-app/delgo-backend/pkg/outbox/payloads"
	"github.com/delgo-app/delgo-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type otpLimiter interface {
	AllowOTPAttempt(ctx context.Context, shipmentID string, limit int64, window time.Duration) (bool, error)
	ClearOTPAttempts(ctx context.Context, shipmentID string) error
}

// Service drives the shipment state machine. Transitions run inside a
// transaction together with their side effects; the conditional updates in
// the repository decide races, and only the winner appends an event.
type Service interface {
	Queue(ctx context.Context, limit int) ([]models.Shipment, error)
	Track(ctx context.Context, trackingNumber string) (*models.Shipment, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Shipment, error)
	Reject(ctx context.Context, agentID, shipmentID uuid.UUID) error
	Pickup(ctx context.Context, agentID, shipmentID uuid.UUID, location *types.LatLng) (*models.Shipment, error)
	Depart(ctx context.Context, agentID, shipmentID uuid.UUID, location *types.LatLng) (*models.Shipment, error)
	Complete(ctx context.Context, agentID, shipmentID uuid.UUID, otp string, proofSignature *string, location *types.LatLng) (*models.Shipment, error)
	Fail(ctx context.Context, actorID, shipmentID uuid.UUID, reason string) error
	ReportLocation(ctx context.Context, agentID, shipmentID uuid.UUID, lat, lng float64) error
}

type service struct {
	tx         txRunner
	repo       Repository
	ordersRepo orders.Repository
	agentsRepo agents.Repository
	settler    earnings.Service
	notifier   notifications.Service
	outbox     outboxPublisher
	limiter    otpLimiter
	otpCfg     config.OTPConfig
	metrics    *metrics.DispatchMetrics
	logg       *logger.Logger
}

// NewService builds the shipments service.
func NewService(
	tx txRunner,
	repo Repository,
	ordersRepo orders.Repository,
	agentsRepo agents.Repository,
	settler earnings.Service,
	notifier notifications.Service,
	publisher outboxPublisher,
	limiter otpLimiter,
	otpCfg config.OTPConfig,
	dispatchMetrics *metrics.DispatchMetrics,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("shipments repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if agentsRepo == nil {
		return nil, fmt.Errorf("agents repository required")
	}
	if settler == nil {
		return nil, fmt.Errorf("earnings service required")
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
		tx:         tx,
		repo:       repo,
		ordersRepo: ordersRepo,
		agentsRepo: agentsRepo,
		settler:    settler,
		notifier:   notifier,
		outbox:     publisher,
		limiter:    limiter,
		otpCfg:     otpCfg,
		metrics:    dispatchMetrics,
		logg:       logg,
	}, nil
}

func (s *service) Queue(ctx context.Context, limit int) ([]models.Shipment, error) {
	return s.repo.ListPending(ctx, limit)
}

func (s *service) Track(ctx context.Context, trackingNumber string) (*models.Shipment, error) {
	shipment, err := s.repo.FindByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shipment not found")
		}
		return nil, err
	}
	return shipment, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Shipment, error) {
	shipment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shipment not found")
		}
		return nil, err
	}
	return shipment, nil
}

// Reject returns an assigned shipment to the pending pool. Only the bound
// agent may reject, and only from assigned: rejecting a shipment that was
// never assigned is an error, not a silent success.
func (s *service) Reject(ctx context.Context, agentID, shipmentID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		won, err := repo.ReleaseAssignment(ctx, shipmentID, agentID)
		if err != nil {
			return err
		}
		if !won {
			return s.classifyGuardFailure(ctx, tx, shipmentID, agentID, enums.ShipmentStatusAssigned)
		}

		if err := s.agentsRepo.WithTx(tx).UnbindShipment(ctx, agentID, shipmentID); err != nil {
			return err
		}

		from := enums.ShipmentStatusAssigned
		if err := repo.AppendEvent(ctx, &models.ShipmentEvent{
			ID:         uuid.New(),
			ShipmentID: shipmentID,
			FromStatus: &from,
			ToStatus:   enums.ShipmentStatusPending,
			ActorID:    &agentID,
		}); err != nil {
			return err
		}

		shipment, err := repo.FindByID(ctx, shipmentID)
		if err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventShipmentRejected,
			AggregateType: enums.AggregateShipment,
			AggregateID:   shipmentID,
			Actor:         &outbox.ActorRef{UserID: agentID, Role: string(enums.RoleAgent)},
			Data: payloads.ShipmentStatusEvent{
				ShipmentID: shipmentID,
				OrderID:    shipment.OrderID,
				AgentID:    &agentID,
				FromStatus: enums.ShipmentStatusAssigned,
				ToStatus:   enums.ShipmentStatusPending,
			},
			Version: 1,
		})
	})
}

// Pickup records the physical handoff from the seller and advances the
// paired order to packed.
func (s *service) Pickup(ctx context.Context, agentID, shipmentID uuid.UUID, location *types.LatLng) (*models.Shipment, error) {
	var result *models.Shipment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := time.Now().UTC()

		won, err := repo.MarkPickedUp(ctx, shipmentID, agentID, now)
		if err != nil {
			return err
		}
		if !won {
			return s.classifyGuardFailure(ctx, tx, shipmentID, agentID, enums.ShipmentStatusAccepted)
		}

		from := enums.ShipmentStatusAccepted
		if err := repo.AppendEvent(ctx, &models.ShipmentEvent{
			ID:         uuid.New(),
			ShipmentID: shipmentID,
			FromStatus: &from,
			ToStatus:   enums.ShipmentStatusPickedUp,
			ActorID:    &agentID,
			Location:   location,
		}); err != nil {
			return err
		}

		shipment, err := repo.FindByID(ctx, shipmentID)
		if err != nil {
			return err
		}
		if _, err := s.ordersRepo.WithTx(tx).AdvanceStatus(ctx, shipment.OrderID, enums.OrderStatusPending, enums.OrderStatusPacked); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventShipmentPickedUp,
			AggregateType: enums.AggregateShipment,
			AggregateID:   shipmentID,
			Actor:         &outbox.ActorRef{UserID: agentID, Role: string(enums.RoleAgent)},
			Data: payloads.ShipmentStatusEvent{
				ShipmentID: shipmentID,
				OrderID:    shipment.OrderID,
				AgentID:    &agentID,
				FromStatus: enums.ShipmentStatusAccepted,
				ToStatus:   enums.ShipmentStatusPickedUp,
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

	s.notifyCustomer(ctx, result, "Order picked up", fmt.Sprintf("Your order is on its way, tracking %s", result.TrackingNumber))
	return result, nil
}

// Depart moves a picked-up shipment onto the road and the order to shipped.
func (s *service) Depart(ctx context.Context, agentID, shipmentID uuid.UUID, location *types.LatLng) (*models.Shipment, error) {
	var result *models.Shipment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		won, err := repo.MarkInTransit(ctx, shipmentID, agentID)
		if err != nil {
			return err
		}
		if !won {
			return s.classifyGuardFailure(ctx, tx, shipmentID, agentID, enums.ShipmentStatusPickedUp)
		}

		from := enums.ShipmentStatusPickedUp
		if err := repo.AppendEvent(ctx, &models.ShipmentEvent{
			ID:         uuid.New(),
			ShipmentID: shipmentID,
			FromStatus: &from,
			ToStatus:   enums.ShipmentStatusInTransit,
			ActorID:    &agentID,
			Location:   location,
		}); err != nil {
			return err
		}

		shipment, err := repo.FindByID(ctx, shipmentID)
		if err != nil {
			return err
		}
		if _, err := s.ordersRepo.WithTx(tx).AdvanceStatus(ctx, shipment.OrderID, enums.OrderStatusPacked, enums.OrderStatusShipped); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventShipmentInTransit,
			AggregateType: enums.AggregateShipment,
			AggregateID:   shipmentID,
			Actor:         &outbox.ActorRef{UserID: agentID, Role: string(enums.RoleAgent)},
			Data: payloads.ShipmentStatusEvent{
				ShipmentID: shipmentID,
				OrderID:    shipment.OrderID,
				AgentID:    &agentID,
				FromStatus: enums.ShipmentStatusPickedUp,
				ToStatus:   enums.ShipmentStatusInTransit,
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

	s.notifyCustomer(ctx, result, "Out for delivery", fmt.Sprintf("Your order %s is out for delivery", result.TrackingNumber))
	return result, nil
}

// Complete is the OTP-gated terminal transition. A wrong code changes
// nothing: no earnings entry, no inventory release, no order advance.
func (s *service) Complete(ctx context.Context, agentID, shipmentID uuid.UUID, otp string, proofSignature *string, location *types.LatLng) (*models.Shipment, error) {
	if s.limiter != nil {
		allowed, err := s.limiter.AllowOTPAttempt(ctx, shipmentID.String(), int64(s.otpCfg.AttemptLimit), s.otpCfg.AttemptWindow)
		if err != nil {
			s.logg.Warn(s.logg.WithShipmentID(ctx, shipmentID.String()), "otp limiter unavailable, allowing attempt")
		} else if !allowed {
			return nil, pkgerrors.New(pkgerrors.CodeRateLimit, "too many delivery code attempts, retry later")
		}
	}

	var result *models.Shipment
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := time.Now().UTC()

		shipment, err := repo.FindByID(ctx, shipmentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "shipment not found")
			}
			return err
		}
		if shipment.DeliveryAgentID == nil || *shipment.DeliveryAgentID != agentID {
			return pkgerrors.New(pkgerrors.CodeNotAssigned, "shipment is not assigned to you")
		}
		if shipment.Status != enums.ShipmentStatusInTransit {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("shipment is %s, expected %s", shipment.Status, enums.ShipmentStatusInTransit))
		}

		if !delivery.VerifyOTP(shipment.OTPCode, otp) {
			s.metrics.IncOTPRejection()
			return pkgerrors.New(pkgerrors.CodeInvalidOTP, "delivery code does not match")
		}

		won, err := repo.MarkDelivered(ctx, shipmentID, agentID, now, proofSignature)
		if err != nil {
			return err
		}
		if !won {
			return s.classifyGuardFailure(ctx, tx, shipmentID, agentID, enums.ShipmentStatusInTransit)
		}

		from := enums.ShipmentStatusInTransit
		if err := repo.AppendEvent(ctx, &models.ShipmentEvent{
			ID:         uuid.New(),
			ShipmentID: shipmentID,
			FromStatus: &from,
			ToStatus:   enums.ShipmentStatusDelivered,
			ActorID:    &agentID,
			Location:   location,
		}); err != nil {
			return err
		}

		if _, err := s.ordersRepo.WithTx(tx).MarkDelivered(ctx, shipment.OrderID, now); err != nil {
			return err
		}

		order, err = s.ordersRepo.WithTx(tx).FindByID(ctx, shipment.OrderID)
		if err != nil {
			return err
		}
		for _, item := range order.Items {
			if item.ProductID == nil {
				continue
			}
			if err := inventory.Release(ctx, tx, s.logg, *item.ProductID, item.Quantity); err != nil {
				return err
			}
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventReservationReleased,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Data: payloads.ReservationReleasedEvent{
					OrderID:   order.ID,
					ProductID: *item.ProductID,
					Quantity:  item.Quantity,
				},
				Version: 1,
			}); err != nil {
				return err
			}
		}

		if _, err := s.settler.Settle(ctx, tx, shipment, now); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventShipmentDelivered,
			AggregateType: enums.AggregateShipment,
			AggregateID:   shipmentID,
			Actor:         &outbox.ActorRef{UserID: agentID, Role: string(enums.RoleAgent)},
			Data: payloads.ShipmentDeliveredEvent{
				ShipmentID:  shipmentID,
				OrderID:     shipment.OrderID,
				AgentID:     agentID,
				DeliveredAt: now,
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

	if s.limiter != nil {
		if err := s.limiter.ClearOTPAttempts(ctx, shipmentID.String()); err != nil {
			s.logg.Warn(s.logg.WithShipmentID(ctx, shipmentID.String()), "failed to clear otp attempt counter")
		}
	}
	s.metrics.IncDeliveryCompleted()

	s.notifier.Notify(ctx, notifications.Message{
		UserID:  agentID,
		Type:    enums.NotificationTypePayment,
		Title:   "Delivery completed",
		Message: fmt.Sprintf("Earnings credited for shipment %s", result.TrackingNumber),
	})
	s.notifyCustomer(ctx, result, "Order delivered", "Your order has been delivered")
	if order != nil {
		s.notifier.Notify(ctx, notifications.Message{
			UserID:  order.SellerID,
			Type:    enums.NotificationTypeOrder,
			Title:   "Order delivered",
			Message: fmt.Sprintf("Order %s was delivered", order.ID),
		})
	}

	return result, nil
}

// Fail terminally marks a shipment failed from any non-terminal status and
// cancels the paired order. The agent binding, if any, is released.
func (s *service) Fail(ctx context.Context, actorID, shipmentID uuid.UUID, reason string) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		before, err := repo.FindByID(ctx, shipmentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "shipment not found")
			}
			return err
		}

		won, err := repo.MarkFailed(ctx, shipmentID, reason)
		if err != nil {
			return err
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("shipment is %s and cannot fail", before.Status))
		}

		fromStatus := before.Status
		note := reason
		if err := repo.AppendEvent(ctx, &models.ShipmentEvent{
			ID:         uuid.New(),
			ShipmentID: shipmentID,
			FromStatus: &fromStatus,
			ToStatus:   enums.ShipmentStatusFailed,
			ActorID:    &actorID,
			Note:       &note,
		}); err != nil {
			return err
		}

		if before.DeliveryAgentID != nil {
			if err := s.agentsRepo.WithTx(tx).UnbindShipment(ctx, *before.DeliveryAgentID, shipmentID); err != nil {
				return err
			}
		}

		if _, err := s.ordersRepo.WithTx(tx).Cancel(ctx, before.OrderID, time.Now().UTC()); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventShipmentFailed,
			AggregateType: enums.AggregateShipment,
			AggregateID:   shipmentID,
			Data: payloads.ShipmentFailedEvent{
				ShipmentID: shipmentID,
				OrderID:    before.OrderID,
				AgentID:    before.DeliveryAgentID,
				Reason:     reason,
			},
			Version: 1,
		})
	})
	if err != nil {
		return err
	}

	s.metrics.IncDeliveryFailed()
	return nil
}

// ReportLocation stores an advisory position on both the shipment and the
// agent profile. It never changes shipment state.
func (s *service) ReportLocation(ctx context.Context, agentID, shipmentID uuid.UUID, lat, lng float64) error {
	location := types.TimedLatLng{Lat: lat, Lng: lng, ReportedAt: time.Now().UTC()}

	won, err := s.repo.UpdateLocation(ctx, shipmentID, agentID, location)
	if err != nil {
		return err
	}
	if !won {
		shipment, err := s.repo.FindByID(ctx, shipmentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "shipment not found")
			}
			return err
		}
		if shipment.DeliveryAgentID == nil || *shipment.DeliveryAgentID != agentID {
			return pkgerrors.New(pkgerrors.CodeNotAssigned, "shipment is not assigned to you")
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("shipment is %s and not en route", shipment.Status))
	}
	return s.agentsRepo.UpdateLocation(ctx, agentID, location)
}

func (s *service) notifyCustomer(ctx context.Context, shipment *models.Shipment, title, message string) {
	order, err := s.ordersRepo.FindByID(ctx, shipment.OrderID)
	if err != nil {
		s.logg.Warn(s.logg.WithShipmentID(ctx, shipment.ID.String()), "could not load order for customer notification")
		return
	}
	s.notifier.Notify(ctx, notifications.Message{
		UserID:  order.CustomerID,
		Type:    enums.NotificationTypeDelivery,
		Title:   title,
		Message: message,
	})
}

// classifyGuardFailure turns a lost conditional update into the precise
// domain error: missing shipment, foreign agent, or wrong status.
func (s *service) classifyGuardFailure(ctx context.Context, tx *gorm.DB, shipmentID, agentID uuid.UUID, expected enums.ShipmentStatus) error {
	repo := s.repo
	if tx != nil {
		repo = s.repo.WithTx(tx)
	}
	shipment, err := repo.FindByID(ctx, shipmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "shipment not found")
		}
		return err
	}
	if shipment.DeliveryAgentID == nil || *shipment.DeliveryAgentID != agentID {
		return pkgerrors.New(pkgerrors.CodeNotAssigned, "shipment is not assigned to you")
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("shipment is %s, expected %s", shipment.Status, expected))
}
