package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/delgo-app/delgo-backend/api/responses"
	"github.com/delgo-app/delgo-backend/api/validators"
	"github.com/delgo-app/delgo-backend/internal/agents"
	"github.com/delgo-app/delgo-backend/internal/earnings"
	"github.com/delgo-app/delgo-backend/pkg/db/models"
	pkgerrors "github.com/delgo-app/delgo-backend/pkg/errors"
	"github.com/delgo-app/delgo-backend/pkg/logger"
	"github.com/delgo-app/delgo-backend/pkg/pagination"
)

type availabilityRequest struct {
	Online    *bool `json:"online" validate:"required"`
	Available *bool `json:"available" validate:"required"`
}

// SetAgentAvailability toggles the calling agent's online and available flags.
func SetAgentAvailability(svc agents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agents service unavailable"))
			return
		}

		agentID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload availabilityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.SetAvailability(r.Context(), agentID, *payload.Online, *payload.Available)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newAgentProfileResponse(profile))
	}
}

// AgentEarnings lists the calling agent's settled delivery earnings.
func AgentEarnings(svc earnings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "earnings service unavailable"))
			return
		}

		agentID, err := actorID(r)
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

		page, err := svc.List(r.Context(), agentID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]earningsEntryResponse, 0, len(page.Items))
		for i := range page.Items {
			items = append(items, newEarningsEntryResponse(&page.Items[i]))
		}
		responses.WriteSuccess(w, map[string]any{
			"entries":     items,
			"next_cursor": page.NextCursor,
		})
	}
}

type agentProfileResponse struct {
	AgentID             uuid.UUID       `json:"agent_id"`
	Status              string          `json:"status"`
	KYCStatus           string          `json:"kyc_status"`
	VehicleType         string          `json:"vehicle_type"`
	Online              bool            `json:"online"`
	Available           bool            `json:"available"`
	ActiveShipments     []uuid.UUID     `json:"active_shipments"`
	TotalDeliveries     int             `json:"total_deliveries"`
	CompletedDeliveries int             `json:"completed_deliveries"`
	TotalEarnings       decimal.Decimal `json:"total_earnings"`
	PendingBalance      decimal.Decimal `json:"pending_balance"`
}

func newAgentProfileResponse(profile *models.AgentProfile) agentProfileResponse {
	if profile == nil {
		return agentProfileResponse{}
	}
	return agentProfileResponse{
		AgentID:             profile.UserID,
		Status:              string(profile.Status),
		KYCStatus:           string(profile.KYCStatus),
		VehicleType:         string(profile.VehicleType),
		Online:              profile.IsOnline,
		Available:           profile.IsAvailable,
		ActiveShipments:     profile.ActiveShipmentIDs,
		TotalDeliveries:     profile.TotalDeliveries,
		CompletedDeliveries: profile.CompletedDeliveries,
		TotalEarnings:       profile.TotalEarnings,
		PendingBalance:      profile.PendingBalance,
	}
}

type earningsEntryResponse struct {
	EntryID       uuid.UUID       `json:"entry_id"`
	ShipmentID    uuid.UUID       `json:"shipment_id"`
	OrderID       uuid.UUID       `json:"order_id"`
	DistanceKm    decimal.Decimal `json:"distance_km"`
	BaseFee       decimal.Decimal `json:"base_fee"`
	DistanceBonus decimal.Decimal `json:"distance_bonus"`
	PeakBonus     decimal.Decimal `json:"peak_bonus"`
	Total         decimal.Decimal `json:"total"`
	Commission    decimal.Decimal `json:"commission"`
	NetAmount     decimal.Decimal `json:"net_amount"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

func newEarningsEntryResponse(entry *models.EarningsEntry) earningsEntryResponse {
	return earningsEntryResponse{
		EntryID:       entry.ID,
		ShipmentID:    entry.ShipmentID,
		OrderID:       entry.OrderID,
		DistanceKm:    entry.DistanceKm,
		BaseFee:       entry.BaseFee,
		DistanceBonus: entry.DistanceBonus,
		PeakBonus:     entry.PeakBonus,
		Total:         entry.Total,
		Commission:    entry.Commission,
		NetAmount:     entry.NetAmount,
		Status:        string(entry.Status),
		CreatedAt:     entry.CreatedAt,
	}
}
