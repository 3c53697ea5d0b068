package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/delgo-app/delgo-backend/internal/notifications"
	"github.com/delgo-app/delgo-backend/pkg/db/models"
	"github.com/delgo-app/delgo-backend/pkg/enums"
	"github.com/delgo-app/delgo-backend/pkg/logger"
	"github.com/delgo-app/delgo-backend/pkg/outbox"
	"github.com/delgo-app/delgo-backend/pkg/outbox/payloads"
)

const notifierConsumerName = "notifier"

type messageWriter interface {
	Notify(ctx context.Context, msg notifications.Message)
}

type orderFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer fans notification-topic events out to in-app notifications.
// Terminal outcomes land here instead of the request path: the earnings
// credit is written inside the delivery transaction, and a failed shipment
// may be reported by an admin with no customer in the loop.
type Consumer struct {
	subscription *gcppubsub.Subscriber
	notifier     messageWriter
	orders       orderFinder
	manager      idempotencyChecker
	logg         *logger.Logger
	handled      map[enums.OutboxEventType]struct{}
}

// NewConsumer builds the notification fan-out consumer.
func NewConsumer(subscription *gcppubsub.Subscriber, notifier messageWriter, orders orderFinder, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, errors.New("notification subscription is required")
	}
	if notifier == nil {
		return nil, errors.New("notifications service is required")
	}
	if orders == nil {
		return nil, errors.New("orders repository is required")
	}
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{
		subscription: subscription,
		notifier:     notifier,
		orders:       orders,
		manager:      manager,
		logg:         logg,
		handled: map[enums.OutboxEventType]struct{}{
			enums.EventEarningsCredited: {},
			enums.EventShipmentFailed:   {},
		},
	}, nil
}

type processResult struct {
	nack bool
}

// Run consumes notification messages until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if c.process(innerCtx, msg.Data, msg.Attributes).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (c *Consumer) process(ctx context.Context, data []byte, attributes map[string]string) processResult {
	eventTypeRaw := strings.TrimSpace(attributes["event_type"])
	eventType, err := enums.ParseOutboxEventType(eventTypeRaw)
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "event_type", eventTypeRaw), "unknown event type on notification topic")
		return processResult{}
	}
	if _, ok := c.handled[eventType]; !ok {
		return processResult{}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logg.Warn(ctx, "invalid notification envelope")
		return processResult{}
	}

	eventID, err := uuid.Parse(strings.TrimSpace(envelope.EventID))
	if err != nil {
		c.logg.Warn(ctx, "invalid event id on notification envelope")
		return processResult{}
	}
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": eventType,
	})

	already, err := c.manager.CheckAndMarkProcessed(logCtx, notifierConsumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{}
	}

	switch eventType {
	case enums.EventEarningsCredited:
		return c.handleEarningsCredited(logCtx, eventID, envelope.Data)
	case enums.EventShipmentFailed:
		return c.handleShipmentFailed(logCtx, eventID, envelope.Data)
	}
	return processResult{}
}

func (c *Consumer) handleEarningsCredited(ctx context.Context, eventID uuid.UUID, data []byte) processResult {
	var payload payloads.EarningsCreditedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		c.logg.Warn(ctx, "invalid earnings credited payload")
		return processResult{}
	}
	if payload.AgentID == uuid.Nil {
		c.logg.Warn(ctx, "earnings credited event has no agent")
		return processResult{}
	}

	c.notifier.Notify(ctx, notifications.Message{
		UserID:  payload.AgentID,
		Type:    enums.NotificationTypePayment,
		Title:   "Earnings credited",
		Message: fmt.Sprintf("You earned %s INR for a completed delivery", payload.NetAmount.StringFixed(2)),
	})
	c.logg.Info(ctx, "earnings notification written")
	return processResult{}
}

func (c *Consumer) handleShipmentFailed(ctx context.Context, eventID uuid.UUID, data []byte) processResult {
	var payload payloads.ShipmentFailedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		c.logg.Warn(ctx, "invalid shipment failed payload")
		return processResult{}
	}
	if payload.OrderID == uuid.Nil {
		c.logg.Warn(ctx, "shipment failed event has no order")
		return processResult{}
	}

	order, err := c.orders.FindByID(ctx, payload.OrderID)
	if err != nil {
		// The order row may lag behind the event on a replica. Redeliver.
		c.logg.Error(ctx, "could not load order for failure notification", err)
		c.unmark(ctx, eventID)
		return processResult{nack: true}
	}

	reason := strings.TrimSpace(payload.Reason)
	if reason == "" {
		reason = "the delivery could not be completed"
	}

	c.notifier.Notify(ctx, notifications.Message{
		UserID:  order.CustomerID,
		Type:    enums.NotificationTypeDelivery,
		Title:   "Delivery failed",
		Message: fmt.Sprintf("Your order could not be delivered: %s", reason),
	})
	c.notifier.Notify(ctx, notifications.Message{
		UserID:  order.SellerID,
		Type:    enums.NotificationTypeDelivery,
		Title:   "Delivery failed",
		Message: fmt.Sprintf("Shipment for order %s failed: %s", order.ID, reason),
	})
	c.logg.Info(ctx, "failure notifications written")
	return processResult{}
}

func (c *Consumer) unmark(ctx context.Context, eventID uuid.UUID) {
	if err := c.manager.Delete(ctx, notifierConsumerName, eventID); err != nil {
		c.logg.Error(ctx, fmt.Sprintf("failed to clear idempotency mark for %s", eventID), err)
	}
}
