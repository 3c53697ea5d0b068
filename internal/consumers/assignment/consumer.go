package assignment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/delgo-app/delgo-backend/pkg/db/models"
	"github.com/delgo-app/delgo-backend/pkg/enums"
	pkgerrors "github.com/delgo-app/delgo-backend/pkg/errors"
	"github.com/delgo-app/delgo-backend/pkg/logger"
	"github.com/delgo-app/delgo-backend/pkg/outbox"
	"github.com/delgo-app/delgo-backend/pkg/outbox/payloads"
)

const assignmentConsumerName = "assignment"

type assigner interface {
	AutoAssign(ctx context.Context, shipmentID uuid.UUID) (*models.Shipment, error)
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer reacts to order-created events by offering the new shipment to
// the nearest eligible agent. Redis idempotency keeps redelivered messages
// from assigning twice.
type Consumer struct {
	subscription *gcppubsub.Subscriber
	dispatcher   assigner
	manager      idempotencyChecker
	logg         *logger.Logger
}

// NewConsumer builds the assignment consumer.
func NewConsumer(subscription *gcppubsub.Subscriber, dispatcher assigner, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, errors.New("dispatch subscription is required")
	}
	if dispatcher == nil {
		return nil, errors.New("dispatch service is required")
	}
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{
		subscription: subscription,
		dispatcher:   dispatcher,
		manager:      manager,
		logg:         logg,
	}, nil
}

type processResult struct {
	nack bool
}

// Run consumes dispatch messages until the context is canceled.
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
		c.logg.Warn(c.logg.WithField(ctx, "event_type", eventTypeRaw), "unknown event type on dispatch topic")
		return processResult{}
	}
	if eventType != enums.EventOrderCreated {
		return processResult{}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logg.Warn(ctx, "invalid dispatch envelope")
		return processResult{}
	}

	eventID, err := uuid.Parse(strings.TrimSpace(envelope.EventID))
	if err != nil {
		c.logg.Warn(ctx, "invalid event id on dispatch envelope")
		return processResult{}
	}
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": eventType,
	})

	already, err := c.manager.CheckAndMarkProcessed(logCtx, assignmentConsumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{}
	}

	var payload payloads.OrderCreatedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Warn(logCtx, "invalid order created payload")
		return processResult{}
	}
	if payload.ShipmentID == uuid.Nil {
		c.logg.Warn(logCtx, "order created event has no shipment")
		return processResult{}
	}

	logCtx = c.logg.WithShipmentID(logCtx, payload.ShipmentID.String())
	if _, err := c.dispatcher.AutoAssign(logCtx, payload.ShipmentID); err != nil {
		return c.handleAssignError(logCtx, eventID, err)
	}

	c.logg.Info(logCtx, "shipment assignment dispatched")
	return processResult{}
}

// handleAssignError separates permanent outcomes from retryable ones. A
// shipment someone already took or cancelled is done; an empty agent pool
// is worth another attempt after redelivery backoff.
func (c *Consumer) handleAssignError(ctx context.Context, eventID uuid.UUID, err error) processResult {
	if typed := pkgerrors.As(err); typed != nil {
		switch typed.Code() {
		case pkgerrors.CodeAlreadyAssigned, pkgerrors.CodeNotFound, pkgerrors.CodeStateConflict:
			c.logg.Info(c.logg.WithField(ctx, "reason", string(typed.Code())), "shipment no longer needs assignment")
			return processResult{}
		case pkgerrors.CodeNoAgentsAvailable:
			c.logg.Warn(ctx, "no agents available, retrying assignment later")
			c.unmark(ctx, eventID)
			return processResult{nack: true}
		}
	}
	c.logg.Error(ctx, "shipment assignment failed", err)
	c.unmark(ctx, eventID)
	return processResult{nack: true}
}

func (c *Consumer) unmark(ctx context.Context, eventID uuid.UUID) {
	if err := c.manager.Delete(ctx, assignmentConsumerName, eventID); err != nil {
		c.logg.Error(ctx, fmt.Sprintf("failed to clear idempotency mark for %s", eventID), err)
	}
}
