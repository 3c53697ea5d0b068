package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/delgo-app/delgo-backend/api/middleware"
	"github.com/delgo-app/delgo-backend/api/responses"
	"github.com/delgo-app/delgo-backend/api/validators"
	"github.com/delgo-app/delgo-backend/internal/dispatch"
	"github.com/delgo-app/delgo-backend/internal/shipments"
	"github.com/delgo-app/delgo-backend/pkg/db/models"
	pkgerrors "github.com/delgo-app/delgo-backend/pkg/errors"
	"github.com/delgo-app/delgo-backend/pkg/logger"
	"github.com/delgo-app/delgo-backend/pkg/types"
)

// ShipmentQueue lists unassigned shipments awaiting an agent.
func ShipmentQueue(svc shipments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipments service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		queue, err := svc.Queue(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]shipmentResponse, 0, len(queue))
		for i := range queue {
			items = append(items, newShipmentResponse(&queue[i]))
		}
		responses.WriteSuccess(w, map[string]any{"shipments": items})
	}
}

// AcceptShipment lets the calling agent claim a pending shipment or confirm
// one assigned to them.
func AcceptShipment(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispatch service unavailable"))
			return
		}

		agentID, shipmentID, err := actorAndShipmentID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		shipment, err := svc.SelfAccept(r.Context(), agentID, shipmentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newShipmentResponse(shipment))
	}
}

// RejectShipment returns an assigned shipment to the pending pool.
func RejectShipment(svc shipments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipments service unavailable"))
			return
		}

		agentID, shipmentID, err := actorAndShipmentID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Reject(r.Context(), agentID, shipmentID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "rejected"})
	}
}

type transitionRequest struct {
	Location *latLngPayload `json:"location,omitempty"`
}

type latLngPayload struct {
	Lat float64 `json:"lat" validate:"min=-90,max=90"`
	Lng float64 `json:"lng" validate:"min=-180,max=180"`
}

func (p *latLngPayload) toLatLng() *types.LatLng {
	if p == nil {
		return nil
	}
	return &types.LatLng{Lat: p.Lat, Lng: p.Lng}
}

// PickupShipment marks the parcel as collected from the seller.
func PickupShipment(svc shipments.Service, logg *logger.Logger) http.HandlerFunc {
	return transitionHandler(svc, logg, func(r *http.Request, agentID, shipmentID uuid.UUID, loc *types.LatLng) (*models.Shipment, error) {
		return svc.Pickup(r.Context(), agentID, shipmentID, loc)
	})
}

// DepartShipment marks the parcel as en route to the customer.
func DepartShipment(svc shipments.Service, logg *logger.Logger) http.HandlerFunc {
	return transitionHandler(svc, logg, func(r *http.Request, agentID, shipmentID uuid.UUID, loc *types.LatLng) (*models.Shipment, error) {
		return svc.Depart(r.Context(), agentID, shipmentID, loc)
	})
}

func transitionHandler(
	svc shipments.Service,
	logg *logger.Logger,
	transition func(r *http.Request, agentID, shipmentID uuid.UUID, loc *types.LatLng) (*models.Shipment, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipments service unavailable"))
			return
		}

		agentID, shipmentID, err := actorAndShipmentID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload transitionRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		shipment, err := transition(r, agentID, shipmentID, payload.Location.toLatLng())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newShipmentResponse(shipment))
	}
}

type completeRequest struct {
	OTP            string         `json:"otp" validate:"required,len=6,numeric"`
	ProofSignature *string        `json:"proof_signature,omitempty"`
	Location       *latLngPayload `json:"location,omitempty"`
}

// CompleteShipment finishes the delivery after the customer's code checks out.
func CompleteShipment(svc shipments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipments service unavailable"))
			return
		}

		agentID, shipmentID, err := actorAndShipmentID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload completeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		shipment, err := svc.Complete(r.Context(), agentID, shipmentID, payload.OTP, payload.ProofSignature, payload.Location.toLatLng())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newShipmentResponse(shipment))
	}
}

type failRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// FailShipment abandons an active delivery and cancels its order.
func FailShipment(svc shipments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipments service unavailable"))
			return
		}

		actorID, shipmentID, err := actorAndShipmentID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload failRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reason := validators.SanitizeString(payload.Reason, 500)
		if err := svc.Fail(r.Context(), actorID, shipmentID, reason); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "failed"})
	}
}

type locationRequest struct {
	Lat float64 `json:"lat" validate:"min=-90,max=90"`
	Lng float64 `json:"lng" validate:"min=-180,max=180"`
}

// ReportShipmentLocation records an advisory position ping from the agent.
func ReportShipmentLocation(svc shipments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipments service unavailable"))
			return
		}

		agentID, shipmentID, err := actorAndShipmentID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload locationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.ReportLocation(r.Context(), agentID, shipmentID, payload.Lat, payload.Lng); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "recorded"})
	}
}

// AutoAssignShipment pushes a pending shipment to the nearest eligible agent.
func AutoAssignShipment(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispatch service unavailable"))
			return
		}

		shipmentID, err := shipmentIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		shipment, err := svc.AutoAssign(r.Context(), shipmentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newShipmentResponse(shipment))
	}
}

// TrackShipment serves the customer tracking view. The path segment accepts
// either a shipment id or a public tracking number.
func TrackShipment(svc shipments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipments service unavailable"))
			return
		}

		ref := chi.URLParam(r, "shipmentId")
		var (
			shipment *models.Shipment
			err      error
		)
		if id, parseErr := uuid.Parse(ref); parseErr == nil {
			shipment, err = svc.Get(r.Context(), id)
		} else {
			shipment, err = svc.Track(r.Context(), ref)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newTrackingResponse(shipment))
	}
}

func shipmentIDParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "shipmentId")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipment id")
	}
	return id, nil
}

func actorAndShipmentID(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	actorID, err := actorID(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	shipmentID, err := shipmentIDParam(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return actorID, shipmentID, nil
}

func actorID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid actor id")
	}
	return id, nil
}

type shipmentResponse struct {
	ShipmentID        uuid.UUID          `json:"shipment_id"`
	OrderID           uuid.UUID          `json:"order_id"`
	TrackingNumber    string             `json:"tracking_number"`
	Status            string             `json:"status"`
	DeliveryAgentID   *uuid.UUID         `json:"delivery_agent_id,omitempty"`
	CustomerName      string             `json:"customer_name"`
	PickupAddress     *types.Address     `json:"pickup_address,omitempty"`
	DeliveryAddress   *types.Address     `json:"delivery_address,omitempty"`
	CurrentLocation   *types.TimedLatLng `json:"current_location,omitempty"`
	DistanceKm        decimal.Decimal    `json:"distance_km"`
	EstimatedDelivery *time.Time         `json:"estimated_delivery,omitempty"`
	AssignedAt        *time.Time         `json:"assigned_at,omitempty"`
	AcceptedAt        *time.Time         `json:"accepted_at,omitempty"`
	PickupTime        *time.Time         `json:"pickup_time,omitempty"`
	DeliveredTime     *time.Time         `json:"delivered_time,omitempty"`
	FailureReason     *string            `json:"failure_reason,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}

func newShipmentResponse(shipment *models.Shipment) shipmentResponse {
	if shipment == nil {
		return shipmentResponse{}
	}
	return shipmentResponse{
		ShipmentID:        shipment.ID,
		OrderID:           shipment.OrderID,
		TrackingNumber:    shipment.TrackingNumber,
		Status:            string(shipment.Status),
		DeliveryAgentID:   shipment.DeliveryAgentID,
		CustomerName:      shipment.CustomerName,
		PickupAddress:     shipment.PickupAddress,
		DeliveryAddress:   shipment.DeliveryAddress,
		CurrentLocation:   shipment.CurrentLocation,
		DistanceKm:        shipment.DistanceKm,
		EstimatedDelivery: shipment.EstimatedDelivery,
		AssignedAt:        shipment.AssignedAt,
		AcceptedAt:        shipment.AcceptedAt,
		PickupTime:        shipment.PickupTime,
		DeliveredTime:     shipment.DeliveredTime,
		FailureReason:     shipment.FailureReason,
		CreatedAt:         shipment.CreatedAt,
	}
}

type trackingResponse struct {
	TrackingNumber    string             `json:"tracking_number"`
	Status            string             `json:"status"`
	CurrentLocation   *types.TimedLatLng `json:"current_location,omitempty"`
	EstimatedDelivery *time.Time         `json:"estimated_delivery,omitempty"`
	DeliveredTime     *time.Time         `json:"delivered_time,omitempty"`
	Events            []trackingEvent    `json:"events"`
}

type trackingEvent struct {
	Status     string        `json:"status"`
	FromStatus *string       `json:"from_status,omitempty"`
	Note       *string       `json:"note,omitempty"`
	Location   *types.LatLng `json:"location,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

func newTrackingResponse(shipment *models.Shipment) trackingResponse {
	if shipment == nil {
		return trackingResponse{}
	}
	events := make([]trackingEvent, 0, len(shipment.Events))
	for _, evt := range shipment.Events {
		var from *string
		if evt.FromStatus != nil {
			s := string(*evt.FromStatus)
			from = &s
		}
		events = append(events, trackingEvent{
			Status:     string(evt.ToStatus),
			FromStatus: from,
			Note:       evt.Note,
			Location:   evt.Location,
			OccurredAt: evt.CreatedAt,
		})
	}
	return trackingResponse{
		TrackingNumber:    shipment.TrackingNumber,
		Status:            string(shipment.Status),
		CurrentLocation:   shipment.CurrentLocation,
		EstimatedDelivery: shipment.EstimatedDelivery,
		DeliveredTime:     shipment.DeliveredTime,
		Events:            events,
	}
}
