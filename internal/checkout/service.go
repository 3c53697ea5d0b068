package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/delgo-app/delgo-backend/internal/carts"
	"github.com/delgo-app/delgo-backend/internal/inventory"
	"github.com/delgo-app/delgo-backend/internal/notifications"
	"github.com/delgo-app/delgo-backend/internal/orders"
	"github.com/delgo-app/delgo-backend/internal/products"
	"github.com/delgo-app/delgo-backend/internal/shipments"
	"github.com/delgo-app/delgo-backend/internal/users"
	"github.com/delgo-app/delgo-backend/pkg/db/models"
	"github.com/delgo-app/delgo-backend/pkg/delivery"
	"github.com/delgo-app/delgo-backend/pkg/enums"
	pkgerrors "github.com/delgo-app/delgo-backend/pkg/errors"
	"github.com/delgo-app/delgo-backend/pkg/geo"
	"github.com/delgo-app/delgo-backend/pkg/geocode"
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

// ItemInput is one explicit line of a direct purchase.
type ItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// Request is a checkout submission: the customer's active cart by default,
// or an explicit item list for a direct purchase that never touches the
// cart. Prepaid checkouts must arrive with the payment already verified.
type Request struct {
	CustomerID      uuid.UUID
	PaymentMethod   enums.PaymentMethod
	PaymentVerified bool
	ShippingAddress *types.Address
	Items           []ItemInput
}

// SellerFailure reports one seller group that could not be ordered.
type SellerFailure struct {
	SellerID uuid.UUID
	Reason   error
}

// Result carries the per-seller outcome of a checkout. Seller groups
// succeed or fail independently; the cart is cleared when at least one
// order was placed.
type Result struct {
	Orders   []models.Order
	Failures []SellerFailure
}

// Service turns an active cart into per-seller orders with shipments.
type Service interface {
	Checkout(ctx context.Context, req Request) (*Result, error)
}

type service struct {
	tx       txRunner
	carts    carts.Repository
	products products.Repository
	users    users.Repository
	orders   orders.Repository
	shipRepo shipments.Repository
	geocoder geocode.Geocoder
	schedule delivery.FeeSchedule
	notifier notifications.Service
	outbox   outboxPublisher
	metrics  *metrics.DispatchMetrics
	logg     *logger.Logger
}

// NewService builds the checkout service. The geocoder is optional;
// without it, addresses missing coordinates fall back to the default
// delivery distance.
func NewService(
	tx txRunner,
	cartsRepo carts.Repository,
	productsRepo products.Repository,
	usersRepo users.Repository,
	ordersRepo orders.Repository,
	shipRepo shipments.Repository,
	geocoder geocode.Geocoder,
	schedule delivery.FeeSchedule,
	notifier notifications.Service,
	publisher outboxPublisher,
	dispatchMetrics *metrics.DispatchMetrics,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if cartsRepo == nil {
		return nil, fmt.Errorf("carts repository required")
	}
	if productsRepo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if usersRepo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if shipRepo == nil {
		return nil, fmt.Errorf("shipments repository required")
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
		carts:    cartsRepo,
		products: productsRepo,
		users:    usersRepo,
		orders:   ordersRepo,
		shipRepo: shipRepo,
		geocoder: geocoder,
		schedule: schedule,
		notifier: notifier,
		outbox:   publisher,
		metrics:  dispatchMetrics,
		logg:     logg,
	}, nil
}

func (s *service) Checkout(ctx context.Context, req Request) (*Result, error) {
	if !req.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown payment method %q", req.PaymentMethod))
	}
	if req.PaymentMethod == enums.PaymentMethodPrepaid && !req.PaymentVerified {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "prepaid checkout requires a verified payment")
	}

	customer, err := s.users.FindByID(ctx, req.CustomerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return nil, err
	}

	shippingAddress := req.ShippingAddress
	if shippingAddress == nil {
		shippingAddress = customer.DefaultAddress
	}
	if err := validateShippingAddress(shippingAddress); err != nil {
		return nil, err
	}

	lines := req.Items
	var cartID *uuid.UUID
	if len(lines) == 0 {
		cart, err := s.carts.FindActiveByCustomer(ctx, req.CustomerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
			}
			return nil, err
		}
		cartID = &cart.ID
		for _, item := range cart.Items {
			lines = append(lines, ItemInput{ProductID: item.ProductID, Quantity: item.Quantity})
		}
	}

	catalog, err := s.loadCatalog(ctx, lines)
	if err != nil {
		return nil, err
	}
	if err := validateLines(lines, catalog); err != nil {
		return nil, err
	}

	deliveryCoords := s.resolveCoordinates(ctx, shippingAddress)
	groups := groupBySeller(lines, catalog)

	result := &Result{}
	for _, group := range groups {
		order, placeErr := s.placeSellerOrder(ctx, customer, shippingAddress, deliveryCoords, req, group)
		if placeErr != nil {
			ctx := s.logg.WithUserID(ctx, req.CustomerID.String())
			s.logg.Warn(s.logg.WithField(ctx, "seller_id", group.sellerID.String()), "seller order failed during checkout")
			result.Failures = append(result.Failures, SellerFailure{SellerID: group.sellerID, Reason: placeErr})
			continue
		}
		result.Orders = append(result.Orders, *order)
	}

	if len(result.Orders) == 0 {
		var combined error
		for _, failure := range result.Failures {
			combined = multierr.Append(combined, failure.Reason)
		}
		return nil, combined
	}

	if cartID != nil {
		if err := s.carts.Clear(ctx, *cartID); err != nil {
			return nil, err
		}
	}

	s.metrics.IncOrdersCreated(string(req.PaymentMethod))
	for _, order := range result.Orders {
		s.notifier.Notify(ctx, notifications.Message{
			UserID:  order.SellerID,
			Type:    enums.NotificationTypeOrder,
			Title:   "New order received",
			Message: fmt.Sprintf("Order %s is awaiting pickup. Total: %s INR", order.ID, order.Total.StringFixed(2)),
		})
		if order.Shipment != nil {
			// The agent completes delivery only by presenting this code.
			s.notifier.Notify(ctx, notifications.Message{
				UserID:  order.CustomerID,
				Type:    enums.NotificationTypeOrder,
				Title:   "Order confirmed",
				Message: fmt.Sprintf("Your delivery code for order %s is %s", order.ID, order.Shipment.OTPCode),
			})
		}
	}
	return result, nil
}

type sellerGroup struct {
	sellerID uuid.UUID
	lines    []orderLine
}

type orderLine struct {
	product  models.Product
	quantity int
}

func (s *service) loadCatalog(ctx context.Context, lines []ItemInput) (map[uuid.UUID]models.Product, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	listed, err := s.products.FindActiveByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	catalog := make(map[uuid.UUID]models.Product, len(listed))
	for _, product := range listed {
		catalog[product.ID] = product
	}
	return catalog, nil
}

// groupBySeller partitions order lines per seller in a stable order so a
// retried checkout reserves stock in the same sequence.
func groupBySeller(lines []ItemInput, catalog map[uuid.UUID]models.Product) []sellerGroup {
	bySeller := make(map[uuid.UUID]*sellerGroup)
	for _, line := range lines {
		product := catalog[line.ProductID]
		group, ok := bySeller[product.SellerID]
		if !ok {
			group = &sellerGroup{sellerID: product.SellerID}
			bySeller[product.SellerID] = group
		}
		group.lines = append(group.lines, orderLine{product: product, quantity: line.Quantity})
	}

	groups := make([]sellerGroup, 0, len(bySeller))
	for _, group := range bySeller {
		groups = append(groups, *group)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].sellerID.String() < groups[j].sellerID.String()
	})
	return groups
}

// placeSellerOrder reserves stock, writes the order and its shipment and
// emits the order-created event in one transaction per seller. A failure
// here rolls back only this seller's group.
func (s *service) placeSellerOrder(
	ctx context.Context,
	customer *models.User,
	shippingAddress *types.Address,
	deliveryCoords *types.LatLng,
	req Request,
	group sellerGroup,
) (*models.Order, error) {
	seller, err := s.users.FindByID(ctx, group.sellerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
		}
		return nil, err
	}

	var placed *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		reservations := make([]inventory.ReservationRequest, 0, len(group.lines))
		for _, line := range group.lines {
			reservations = append(reservations, inventory.ReservationRequest{
				ProductID:   line.product.ID,
				ProductName: line.product.Name,
				Qty:         line.quantity,
			})
		}
		if err := inventory.Reserve(ctx, tx, reservations); err != nil {
			return err
		}

		subtotal := decimal.Zero
		items := make([]models.OrderItem, 0, len(group.lines))
		for _, line := range group.lines {
			unitPrice := line.product.Price.Sub(line.product.Discount)
			if unitPrice.IsNegative() {
				unitPrice = decimal.Zero
			}
			lineTotal := unitPrice.Mul(decimal.NewFromInt(int64(line.quantity))).Round(2)
			subtotal = subtotal.Add(lineTotal)
			productID := line.product.ID
			items = append(items, models.OrderItem{
				ID:        uuid.New(),
				ProductID: &productID,
				Name:      line.product.Name,
				UnitPrice: unitPrice,
				Quantity:  line.quantity,
				LineTotal: lineTotal,
			})
		}
		subtotal = subtotal.Round(2)
		tax := s.schedule.Tax(subtotal)
		total := subtotal.Add(tax).Add(s.schedule.ShippingFee).Round(2)

		order := &models.Order{
			ID:              uuid.New(),
			CustomerID:      customer.ID,
			SellerID:        group.sellerID,
			Status:          enums.OrderStatusPending,
			PaymentMethod:   req.PaymentMethod,
			PaymentVerified: req.PaymentVerified,
			Currency:        enums.CurrencyINR,
			Subtotal:        subtotal,
			Tax:             tax,
			ShippingFee:     s.schedule.ShippingFee,
			Total:           total,
			ShippingAddress: shippingAddress,
			Items:           items,
		}
		if _, err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}

		shipment, err := s.buildShipment(ctx, order, customer, seller, deliveryCoords)
		if err != nil {
			return err
		}
		shipTx := s.shipRepo.WithTx(tx)
		if _, err := shipTx.Create(ctx, shipment); err != nil {
			return err
		}
		note := "Order placed, awaiting assignment"
		if err := shipTx.AppendEvent(ctx, &models.ShipmentEvent{
			ID:         uuid.New(),
			ShipmentID: shipment.ID,
			ToStatus:   enums.ShipmentStatusPending,
			Note:       &note,
		}); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: customer.ID, Role: string(enums.RoleCustomer)},
			Data: payloads.OrderCreatedEvent{
				OrderID:    order.ID,
				CustomerID: customer.ID,
				SellerID:   group.sellerID,
				ShipmentID: shipment.ID,
				Total:      total,
			},
			Version: 1,
		}); err != nil {
			return err
		}

		order.Shipment = shipment
		placed = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

func (s *service) buildShipment(
	ctx context.Context,
	order *models.Order,
	customer *models.User,
	seller *models.User,
	deliveryCoords *types.LatLng,
) (*models.Shipment, error) {
	now := time.Now().UTC()
	trackingNumber, err := delivery.GenerateTrackingNumber(now)
	if err != nil {
		return nil, err
	}
	otp, err := delivery.GenerateOTP()
	if err != nil {
		return nil, err
	}

	deliveryAddress := *order.ShippingAddress
	if deliveryAddress.Coordinates == nil {
		deliveryAddress.Coordinates = deliveryCoords
	}

	distance := s.schedule.DefaultDistanceKm
	var pickupAddress *types.Address
	if seller.DefaultAddress != nil {
		pickup := *seller.DefaultAddress
		pickupAddress = &pickup
		if pickup.Coordinates != nil && deliveryAddress.Coordinates != nil {
			km := geo.HaversineKm(
				pickup.Coordinates.Lat, pickup.Coordinates.Lng,
				deliveryAddress.Coordinates.Lat, deliveryAddress.Coordinates.Lng,
			)
			distance = decimal.NewFromFloat(km).Round(2)
		}
	}

	eta := now.Add(s.schedule.ETA(distance))
	return &models.Shipment{
		ID:                uuid.New(),
		OrderID:           order.ID,
		TrackingNumber:    trackingNumber,
		Status:            enums.ShipmentStatusPending,
		OTPCode:           otp,
		CustomerName:      customer.Name,
		CustomerPhone:     customer.Phone,
		PickupAddress:     pickupAddress,
		DeliveryAddress:   &deliveryAddress,
		DistanceKm:        distance,
		EstimatedDelivery: &eta,
	}, nil
}

// resolveCoordinates fills in delivery coordinates through the geocoder
// when the address has none. Geocoding is best effort: on any failure the
// checkout continues with the default distance.
func (s *service) resolveCoordinates(ctx context.Context, address *types.Address) *types.LatLng {
	if address.Coordinates != nil {
		return address.Coordinates
	}
	if s.geocoder == nil {
		return nil
	}
	coords, err := s.geocoder.Geocode(ctx, *address)
	if err != nil {
		s.logg.Warn(ctx, "geocoding shipping address failed, using default distance")
		return nil
	}
	return coords
}
