package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/delgo-app/delgo-backend/api/responses"
	"github.com/delgo-app/delgo-backend/api/validators"
	checkoutsvc "github.com/delgo-app/delgo-backend/internal/checkout"
	"github.com/delgo-app/delgo-backend/pkg/db/models"
	"github.com/delgo-app/delgo-backend/pkg/enums"
	pkgerrors "github.com/delgo-app/delgo-backend/pkg/errors"
	"github.com/delgo-app/delgo-backend/pkg/logger"
	"github.com/delgo-app/delgo-backend/pkg/types"
)

// Checkout submits the customer's active cart, or an explicit item list
// for a direct purchase, and splits it into per-seller orders. Seller
// groups fail independently; rejected groups are reported alongside the
// placed orders.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		customerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]checkoutsvc.ItemInput, 0, len(payload.Items))
		for _, item := range payload.Items {
			items = append(items, checkoutsvc.ItemInput{ProductID: item.ProductID, Quantity: item.Quantity})
		}

		result, err := svc.Checkout(r.Context(), checkoutsvc.Request{
			CustomerID:      customerID,
			PaymentMethod:   enums.PaymentMethod(payload.PaymentMethod),
			PaymentVerified: payload.PaymentVerified,
			ShippingAddress: payload.ShippingAddress,
			Items:           items,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newCheckoutResponse(result))
	}
}

// checkoutRequest submits the active cart, or a direct purchase when
// items are given.
type checkoutRequest struct {
	PaymentMethod   string              `json:"payment_method" validate:"required,oneof=cash prepaid"`
	PaymentVerified bool                `json:"payment_verified,omitempty"`
	ShippingAddress *types.Address      `json:"shipping_address,omitempty"`
	Items           []checkoutItemInput `json:"items,omitempty" validate:"omitempty,dive"`
}

type checkoutItemInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

type checkoutResponse struct {
	Orders        []orderResponse       `json:"orders"`
	FailedSellers []sellerFailureReport `json:"failed_sellers,omitempty"`
}

type orderResponse struct {
	OrderID       uuid.UUID           `json:"order_id"`
	SellerID      uuid.UUID           `json:"seller_id"`
	Status        string              `json:"status"`
	PaymentMethod string              `json:"payment_method"`
	Currency      string              `json:"currency"`
	Subtotal      decimal.Decimal     `json:"subtotal"`
	Tax           decimal.Decimal     `json:"tax"`
	ShippingFee   decimal.Decimal     `json:"shipping_fee"`
	Total         decimal.Decimal     `json:"total"`
	Items         []orderItemResponse `json:"items"`
	Shipment      *shipmentSummary    `json:"shipment,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

type orderItemResponse struct {
	ProductID *uuid.UUID      `json:"product_id,omitempty"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type shipmentSummary struct {
	ShipmentID        uuid.UUID       `json:"shipment_id"`
	TrackingNumber    string          `json:"tracking_number"`
	Status            string          `json:"status"`
	DistanceKm        decimal.Decimal `json:"distance_km"`
	EstimatedDelivery *time.Time      `json:"estimated_delivery,omitempty"`
}

type sellerFailureReport struct {
	SellerID uuid.UUID `json:"seller_id"`
	Code     string    `json:"code"`
	Message  string    `json:"message"`
}

func newCheckoutResponse(result *checkoutsvc.Result) checkoutResponse {
	if result == nil {
		return checkoutResponse{}
	}

	orders := make([]orderResponse, 0, len(result.Orders))
	for i := range result.Orders {
		orders = append(orders, newOrderResponse(&result.Orders[i]))
	}

	failures := make([]sellerFailureReport, 0, len(result.Failures))
	for _, failure := range result.Failures {
		report := sellerFailureReport{
			SellerID: failure.SellerID,
			Code:     string(pkgerrors.CodeInternal),
			Message:  "order could not be placed",
		}
		if typed := pkgerrors.As(failure.Reason); typed != nil {
			report.Code = string(typed.Code())
			report.Message = typed.Message()
		}
		failures = append(failures, report)
	}

	return checkoutResponse{Orders: orders, FailedSellers: failures}
}

func newOrderResponse(order *models.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			LineTotal: item.LineTotal,
		})
	}

	resp := orderResponse{
		OrderID:       order.ID,
		SellerID:      order.SellerID,
		Status:        string(order.Status),
		PaymentMethod: string(order.PaymentMethod),
		Currency:      string(order.Currency),
		Subtotal:      order.Subtotal,
		Tax:           order.Tax,
		ShippingFee:   order.ShippingFee,
		Total:         order.Total,
		Items:         items,
		CreatedAt:     order.CreatedAt,
	}

	if order.Shipment != nil {
		resp.Shipment = &shipmentSummary{
			ShipmentID:        order.Shipment.ID,
			TrackingNumber:    order.Shipment.TrackingNumber,
			Status:            string(order.Shipment.Status),
			DistanceKm:        order.Shipment.DistanceKm,
			EstimatedDelivery: order.Shipment.EstimatedDelivery,
		}
	}

	return resp
}
