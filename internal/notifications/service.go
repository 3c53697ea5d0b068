package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/delgo-app/delgo-backend/pkg/db/models"
	"github.com/delgo-app/delgo-backend/pkg/enums"
	"github.com/delgo-app/delgo-backend/pkg/logger"
	"github.com/delgo-app/delgo-backend/pkg/pagination"
)

// Message is a fire-and-forget notification payload.
type Message struct {
	UserID  uuid.UUID
	Type    enums.NotificationType
	Title   string
	Message string
	Link    *string
}

// Service writes and reads in-app notifications. Notify runs outside any
// caller transaction and swallows failures: a lost notification must not
// roll back the state transition that produced it.
type Service interface {
	Notify(ctx context.Context, msg Message)
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[models.Notification], error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) (bool, error)
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds the notifications service.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) Notify(ctx context.Context, msg Message) {
	notification := &models.Notification{
		ID:      uuid.New(),
		UserID:  msg.UserID,
		Type:    msg.Type,
		Title:   msg.Title,
		Message: msg.Message,
		Link:    msg.Link,
	}

	if err := s.repo.Create(ctx, notification); err != nil {
		lctx := s.logg.WithFields(ctx, map[string]any{
			"user_id":           msg.UserID.String(),
			"notification_type": string(msg.Type),
		})
		s.logg.Error(lctx, "notification write failed", err)
	}
}

func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[models.Notification], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[models.Notification]{}, err
	}

	rows, err := s.repo.ListByUser(ctx, userID, cursor, params.Limit)
	if err != nil {
		return pagination.Page[models.Notification]{}, err
	}

	return pagination.BuildPage(rows, params.Limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	}), nil
}

func (s *service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) (bool, error) {
	return s.repo.MarkRead(ctx, userID, notificationID)
}
