package earnings

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/delgo-app/delgo-backend/internal/agents"
	"github.com/delgo-app/delgo-backend/pkg/db/models"
	"github.com/delgo-app/delgo-backend/pkg/delivery"
	"github.com/delgo-app/delgo-backend/pkg/enums"
	pkgerrors "github.com/delgo-app/delgo-backend/pkg/errors"
	"github.com/delgo-app/delgo-backend/pkg/logger"
	"github.com/delgo-app/delgo-backend/pkg/outbox"
	"github.com/delgo-app/delgo-backend/pkg/outbox/payloads"
	"github.com/delgo-app/delgo-backend/pkg/pagination"
)

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service settles completed deliveries and serves the agent's earnings
// history. Settle runs inside the completion transaction so the entry, the
// agent totals and the shipment transition commit or roll back together.
type Service interface {
	Settle(ctx context.Context, tx *gorm.DB, shipment *models.Shipment, completedAt time.Time) (*models.EarningsEntry, error)
	List(ctx context.Context, agentID uuid.UUID, params pagination.Params) (pagination.Page[models.EarningsEntry], error)
}

type service struct {
	repo       Repository
	agentsRepo agents.Repository
	schedule   delivery.FeeSchedule
	outbox     outboxPublisher
	logg       *logger.Logger
}

// NewService builds the earnings service.
func NewService(repo Repository, agentsRepo agents.Repository, schedule delivery.FeeSchedule, publisher outboxPublisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("earnings repository required")
	}
	if agentsRepo == nil {
		return nil, fmt.Errorf("agents repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       repo,
		agentsRepo: agentsRepo,
		schedule:   schedule,
		outbox:     publisher,
		logg:       logg,
	}, nil
}

func (s *service) Settle(ctx context.Context, tx *gorm.DB, shipment *models.Shipment, completedAt time.Time) (*models.EarningsEntry, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction handle required")
	}
	if shipment.DeliveryAgentID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "shipment has no bound agent")
	}

	distance := shipment.DistanceKm
	if distance.IsZero() {
		distance = s.schedule.DefaultDistanceKm
	}
	computed := s.schedule.CalculateEarnings(distance, completedAt)

	entry := &models.EarningsEntry{
		ID:            uuid.New(),
		AgentID:       *shipment.DeliveryAgentID,
		ShipmentID:    shipment.ID,
		OrderID:       shipment.OrderID,
		DistanceKm:    distance,
		BaseFee:       computed.BaseFee,
		DistanceBonus: computed.DistanceBonus,
		PeakBonus:     computed.PeakBonus,
		Total:         computed.Total,
		Commission:    computed.Commission,
		NetAmount:     computed.NetAmount,
		Status:        enums.EarningStatusPending,
	}

	repo := s.repo.WithTx(tx)
	if err := repo.Create(ctx, entry); err != nil {
		return nil, err
	}

	if err := s.agentsRepo.WithTx(tx).SettleDelivery(ctx, entry.AgentID, shipment.ID, entry.NetAmount); err != nil {
		return nil, err
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventEarningsCredited,
		AggregateType: enums.AggregateEarningsEntry,
		AggregateID:   entry.ID,
		Actor:         &outbox.ActorRef{UserID: entry.AgentID, Role: string(enums.RoleAgent)},
		Data: payloads.EarningsCreditedEvent{
			EntryID:    entry.ID,
			ShipmentID: entry.ShipmentID,
			AgentID:    entry.AgentID,
			NetAmount:  entry.NetAmount,
		},
		Version: 1,
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, err
	}

	lctx := s.logg.WithFields(ctx, map[string]any{
		"shipment_id": shipment.ID.String(),
		"agent_id":    entry.AgentID.String(),
		"net_amount":  entry.NetAmount.String(),
	})
	s.logg.Info(lctx, "delivery earnings settled")

	return entry, nil
}

func (s *service) List(ctx context.Context, agentID uuid.UUID, params pagination.Params) (pagination.Page[models.EarningsEntry], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[models.EarningsEntry]{}, err
	}

	rows, err := s.repo.ListByAgent(ctx, agentID, cursor, params.Limit)
	if err != nil {
		return pagination.Page[models.EarningsEntry]{}, err
	}

	return pagination.BuildPage(rows, params.Limit, func(e models.EarningsEntry) pagination.Cursor {
		return pagination.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	}), nil
}
