package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/delgo-app/delgo-backend/api/responses"
	"github.com/delgo-app/delgo-backend/api/validators"
	"github.com/delgo-app/delgo-backend/internal/notifications"
	"github.com/delgo-app/delgo-backend/pkg/db/models"
	pkgerrors "github.com/delgo-app/delgo-backend/pkg/errors"
	"github.com/delgo-app/delgo-backend/pkg/logger"
	"github.com/delgo-app/delgo-backend/pkg/pagination"
)

// ListNotifications returns the calling user's notifications, newest first.
func ListNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		page, err := svc.List(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]notificationResponse, 0, len(page.Items))
		for i := range page.Items {
			items = append(items, newNotificationResponse(&page.Items[i]))
		}
		responses.WriteSuccess(w, map[string]any{
			"notifications": items,
			"next_cursor":   page.NextCursor,
		})
	}
}

// MarkNotificationRead flags a single notification as read.
func MarkNotificationRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		notificationID, err := uuid.Parse(chi.URLParam(r, "notificationId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid notification id"))
			return
		}

		marked, err := svc.MarkRead(r.Context(), userID, notificationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !marked {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "notification not found"))
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "read"})
	}
}

type notificationResponse struct {
	NotificationID uuid.UUID  `json:"notification_id"`
	Type           string     `json:"type"`
	Title          string     `json:"title"`
	Message        string     `json:"message"`
	Link           *string    `json:"link,omitempty"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func newNotificationResponse(notification *models.Notification) notificationResponse {
	return notificationResponse{
		NotificationID: notification.ID,
		Type:           string(notification.Type),
		Title:          notification.Title,
		Message:        notification.Message,
		Link:           notification.Link,
		ReadAt:         notification.ReadAt,
		CreatedAt:      notification.CreatedAt,
	}
}
