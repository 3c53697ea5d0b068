package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/delgo-app/delgo-backend/internal/carts"
	"github.com/delgo-app/delgo-backend/internal/notifications"
	"github.com/delgo-app/delgo-backend/internal/orders"
	"github.com/delgo-app/delgo-backend/internal/products"
	"github.com/delgo-app/delgo-backend/internal/shipments"
	"github.com/delgo-app/delgo-backend/internal/users"
	"github.com/delgo-app/delgo-backend/pkg/config"
	"github.com/delgo-app/delgo-backend/pkg/db/models"
	"github.com/delgo-app/delgo-backend/pkg/delivery"
	"github.com/delgo-app/delgo-backend/pkg/enums"
	pkgerrors "github.com/delgo-app/delgo-backend/pkg/errors"
	"github.com/delgo-app/delgo-backend/pkg/logger"
	"github.com/delgo-app/delgo-backend/pkg/metrics"
	"github.com/delgo-app/delgo-backend/pkg/outbox"
	"github.com/delgo-app/delgo-backend/pkg/types"
)

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func setupCheckoutTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:checkout_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	ddl := []string{`
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  phone TEXT,
  role TEXT NOT NULL DEFAULT 'customer',
  is_active INTEGER NOT NULL DEFAULT 1,
  default_address TEXT,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  seller_id TEXT NOT NULL,
  sku TEXT NOT NULL,
  name TEXT NOT NULL,
  description TEXT,
  category TEXT NOT NULL,
  price NUMERIC NOT NULL,
  discount NUMERIC NOT NULL DEFAULT 0,
  currency TEXT NOT NULL DEFAULT 'INR',
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS inventory_items (
  product_id TEXT PRIMARY KEY,
  available_qty INTEGER NOT NULL DEFAULT 0,
  reserved_qty INTEGER NOT NULL DEFAULT 0,
  order_count INTEGER NOT NULL DEFAULT 0,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS cart_records (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  currency TEXT NOT NULL DEFAULT 'INR',
  checked_out_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  payment_method TEXT NOT NULL DEFAULT 'cash',
  payment_verified INTEGER NOT NULL DEFAULT 0,
  currency TEXT NOT NULL DEFAULT 'INR',
  subtotal NUMERIC NOT NULL,
  tax NUMERIC NOT NULL,
  shipping_fee NUMERIC NOT NULL,
  total NUMERIC NOT NULL,
  shipping_address TEXT,
  cancelled_at DATETIME,
  delivered_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT,
  name TEXT NOT NULL,
  unit_price NUMERIC NOT NULL,
  quantity INTEGER NOT NULL,
  line_total NUMERIC NOT NULL,
  created_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS shipments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  tracking_number TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL DEFAULT 'pending',
  delivery_agent_id TEXT,
  courier_partner TEXT,
  otp_code TEXT NOT NULL,
  customer_name TEXT NOT NULL,
  customer_phone TEXT,
  pickup_address TEXT,
  delivery_address TEXT,
  current_location TEXT,
  distance_km NUMERIC NOT NULL,
  estimated_delivery DATETIME,
  assigned_at DATETIME,
  accepted_at DATETIME,
  pickup_time DATETIME,
  delivered_time DATETIME,
  proof_signature TEXT,
  proof_verified_at DATETIME,
  failure_reason TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS shipment_events (
  id TEXT PRIMARY KEY,
  shipment_id TEXT NOT NULL,
  from_status TEXT,
  to_status TEXT NOT NULL,
  actor_id TEXT,
  note TEXT,
  location TEXT,
  created_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`, `
CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  type TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  link TEXT,
  read_at DATETIME,
  created_at DATETIME
);`}
	for _, stmt := range ddl {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func checkoutFeeSchedule(t *testing.T) delivery.FeeSchedule {
	t.Helper()
	schedule, err := delivery.NewFeeSchedule(config.DeliveryConfig{
		BaseFee:           "30",
		PerKmRate:         "8",
		FreeDistanceKm:    "3",
		PeakMultiplier:    "1.5",
		CommissionRate:    "0.15",
		DefaultDistanceKm: "5",
		ShippingFee:       "40",
		TaxRate:           "0.05",
		AvgSpeedKmh:       "25",
	})
	require.NoError(t, err)
	return schedule
}

func newCheckoutService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test"})
	publisher := outbox.NewService(outbox.NewRepository(db), logg)
	notifier, err := notifications.NewService(notifications.NewRepository(db), logg)
	require.NoError(t, err)

	svc, err := NewService(
		testTxRunner{db: db},
		carts.NewRepository(db),
		products.NewRepository(db),
		users.NewRepository(db),
		orders.NewRepository(db),
		shipments.NewRepository(db),
		nil,
		checkoutFeeSchedule(t),
		notifier,
		publisher,
		metrics.NewDispatchMetrics(nil),
		logg,
	)
	require.NoError(t, err)
	return svc
}

func seedUser(t *testing.T, db *gorm.DB, role enums.MemberRole, address *types.Address) *models.User {
	t.Helper()
	user := &models.User{
		ID:             uuid.New(),
		Email:          uuid.NewString() + "@delgo.test",
		Name:           "Test " + string(role),
		Role:           role,
		IsActive:       true,
		DefaultAddress: address,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedProduct(t *testing.T, db *gorm.DB, sellerID uuid.UUID, price, discount int64, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:       uuid.New(),
		SellerID: sellerID,
		SKU:      uuid.NewString()[:8],
		Name:     "Product " + uuid.NewString()[:4],
		Category: "grocery",
		Price:    decimal.NewFromInt(price),
		Discount: decimal.NewFromInt(discount),
		IsActive: true,
	}
	require.NoError(t, db.Create(product).Error)
	require.NoError(t, db.Create(&models.InventoryItem{
		ProductID:    product.ID,
		AvailableQty: stock,
	}).Error)
	return product
}

func seedCart(t *testing.T, db *gorm.DB, customerID uuid.UUID, lines map[uuid.UUID]int) *models.CartRecord {
	t.Helper()
	cart := &models.CartRecord{ID: uuid.New(), CustomerID: customerID}
	require.NoError(t, db.Create(cart).Error)
	for productID, qty := range lines {
		require.NoError(t, db.Create(&models.CartItem{
			ID:        uuid.New(),
			CartID:    cart.ID,
			ProductID: productID,
			Quantity:  qty,
		}).Error)
	}
	return cart
}

func testShippingAddress() *types.Address {
	return &types.Address{
		Street:     "12 MG Road",
		City:       "Bengaluru",
		State:      "Karnataka",
		PostalCode: "560001",
	}
}

func TestCheckoutTwoSellers(t *testing.T) {
	t.Parallel()

	db := setupCheckoutTestDB(t)
	svc := newCheckoutService(t, db)
	ctx := context.Background()

	customer := seedUser(t, db, enums.RoleCustomer, testShippingAddress())
	sellerA := seedUser(t, db, enums.RoleSeller, nil)
	sellerB := seedUser(t, db, enums.RoleSeller, nil)
	// 100 with 10 off, and 50 at list price.
	productA := seedProduct(t, db, sellerA.ID, 100, 10, 10)
	productB := seedProduct(t, db, sellerB.ID, 50, 0, 10)
	seedCart(t, db, customer.ID, map[uuid.UUID]int{productA.ID: 2, productB.ID: 3})

	result, err := svc.Checkout(ctx, Request{CustomerID: customer.ID, PaymentMethod: enums.PaymentMethodCash})
	require.NoError(t, err)
	require.Len(t, result.Orders, 2)
	require.Empty(t, result.Failures)

	bySeller := map[uuid.UUID]models.Order{}
	for _, order := range result.Orders {
		bySeller[order.SellerID] = order
	}

	orderA := bySeller[sellerA.ID]
	require.True(t, orderA.Subtotal.Equal(decimal.NewFromInt(180)), orderA.Subtotal.String())
	require.True(t, orderA.Tax.Equal(decimal.NewFromInt(9)), orderA.Tax.String())
	require.True(t, orderA.Total.Equal(decimal.NewFromInt(229)), orderA.Total.String())

	orderB := bySeller[sellerB.ID]
	require.True(t, orderB.Subtotal.Equal(decimal.NewFromInt(150)))
	require.True(t, orderB.Total.Equal(decimal.RequireFromString("197.50")), orderB.Total.String())

	// Each order carries its own shipment with distinct tracking and code.
	require.NotNil(t, orderA.Shipment)
	require.NotNil(t, orderB.Shipment)
	require.NotEqual(t, orderA.Shipment.TrackingNumber, orderB.Shipment.TrackingNumber)
	require.Equal(t, enums.ShipmentStatusPending, orderA.Shipment.Status)
	require.Len(t, orderA.Shipment.OTPCode, 6)
	require.True(t, orderA.Shipment.DistanceKm.Equal(decimal.NewFromInt(5)))
	require.NotNil(t, orderA.Shipment.EstimatedDelivery)

	var itemA models.InventoryItem
	require.NoError(t, db.First(&itemA, "product_id = ?", productA.ID).Error)
	require.Equal(t, 8, itemA.AvailableQty)
	require.Equal(t, 2, itemA.ReservedQty)

	var cart models.CartRecord
	require.NoError(t, db.First(&cart, "customer_id = ?", customer.ID).Error)
	require.NotNil(t, cart.CheckedOutAt)

	var created int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventOrderCreated).
		Count(&created).Error)
	require.EqualValues(t, 2, created)

	// One seller and one customer notification per placed order.
	var notified int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&notified).Error)
	require.EqualValues(t, 4, notified)
}

func TestCheckoutPartialFailureKeepsGoodGroup(t *testing.T) {
	t.Parallel()

	db := setupCheckoutTestDB(t)
	svc := newCheckoutService(t, db)
	ctx := context.Background()

	customer := seedUser(t, db, enums.RoleCustomer, testShippingAddress())
	sellerA := seedUser(t, db, enums.RoleSeller, nil)
	sellerB := seedUser(t, db, enums.RoleSeller, nil)
	inStock := seedProduct(t, db, sellerA.ID, 100, 0, 10)
	outOfStock := seedProduct(t, db, sellerB.ID, 50, 0, 1)
	seedCart(t, db, customer.ID, map[uuid.UUID]int{inStock.ID: 1, outOfStock.ID: 5})

	result, err := svc.Checkout(ctx, Request{CustomerID: customer.ID, PaymentMethod: enums.PaymentMethodCash})
	require.NoError(t, err)
	require.Len(t, result.Orders, 1)
	require.Equal(t, sellerA.ID, result.Orders[0].SellerID)
	require.Len(t, result.Failures, 1)
	require.Equal(t, sellerB.ID, result.Failures[0].SellerID)

	appErr := pkgerrors.As(result.Failures[0].Reason)
	require.NotNil(t, appErr)
	require.Equal(t, pkgerrors.CodeInsufficientStock, appErr.Code())

	// The failed group's stock is untouched.
	var item models.InventoryItem
	require.NoError(t, db.First(&item, "product_id = ?", outOfStock.ID).Error)
	require.Equal(t, 1, item.AvailableQty)
	require.Zero(t, item.ReservedQty)

	// A partial success still consumes the cart.
	var cart models.CartRecord
	require.NoError(t, db.First(&cart, "customer_id = ?", customer.ID).Error)
	require.NotNil(t, cart.CheckedOutAt)
}

func TestCheckoutAllGroupsFailKeepsCart(t *testing.T) {
	t.Parallel()

	db := setupCheckoutTestDB(t)
	svc := newCheckoutService(t, db)
	ctx := context.Background()

	customer := seedUser(t, db, enums.RoleCustomer, testShippingAddress())
	seller := seedUser(t, db, enums.RoleSeller, nil)
	product := seedProduct(t, db, seller.ID, 100, 0, 1)
	seedCart(t, db, customer.ID, map[uuid.UUID]int{product.ID: 5})

	_, err := svc.Checkout(ctx, Request{CustomerID: customer.ID, PaymentMethod: enums.PaymentMethodCash})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	require.Equal(t, pkgerrors.CodeInsufficientStock, appErr.Code())

	var cart models.CartRecord
	require.NoError(t, db.First(&cart, "customer_id = ?", customer.ID).Error)
	require.Nil(t, cart.CheckedOutAt)

	var orderCount int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orderCount).Error)
	require.Zero(t, orderCount)
}

func TestCheckoutEmptyCart(t *testing.T) {
	t.Parallel()

	db := setupCheckoutTestDB(t)
	svc := newCheckoutService(t, db)
	ctx := context.Background()

	customer := seedUser(t, db, enums.RoleCustomer, testShippingAddress())

	_, err := svc.Checkout(ctx, Request{CustomerID: customer.ID, PaymentMethod: enums.PaymentMethodCash})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	require.Equal(t, pkgerrors.CodeEmptyCart, appErr.Code())
}

func TestCheckoutRequiresCompleteAddress(t *testing.T) {
	t.Parallel()

	db := setupCheckoutTestDB(t)
	svc := newCheckoutService(t, db)
	ctx := context.Background()

	customer := seedUser(t, db, enums.RoleCustomer, nil)
	seller := seedUser(t, db, enums.RoleSeller, nil)
	product := seedProduct(t, db, seller.ID, 100, 0, 10)
	seedCart(t, db, customer.ID, map[uuid.UUID]int{product.ID: 1})

	_, err := svc.Checkout(ctx, Request{
		CustomerID:      customer.ID,
		PaymentMethod:   enums.PaymentMethodCash,
		ShippingAddress: &types.Address{Street: "12 MG Road"},
	})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	require.Equal(t, pkgerrors.CodeInvalidAddress, appErr.Code())
}

func TestCheckoutDirectPurchaseWithoutCart(t *testing.T) {
	t.Parallel()

	db := setupCheckoutTestDB(t)
	svc := newCheckoutService(t, db)
	ctx := context.Background()

	customer := seedUser(t, db, enums.RoleCustomer, testShippingAddress())
	seller := seedUser(t, db, enums.RoleSeller, nil)
	product := seedProduct(t, db, seller.ID, 100, 0, 10)

	result, err := svc.Checkout(ctx, Request{
		CustomerID:    customer.ID,
		PaymentMethod: enums.PaymentMethodCash,
		Items:         []ItemInput{{ProductID: product.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	require.Len(t, result.Orders, 1)
	require.Equal(t, seller.ID, result.Orders[0].SellerID)
	require.NotNil(t, result.Orders[0].Shipment)

	var item models.InventoryItem
	require.NoError(t, db.First(&item, "product_id = ?", product.ID).Error)
	require.Equal(t, 8, item.AvailableQty)
	require.Equal(t, 2, item.ReservedQty)
}

func TestCheckoutDirectPurchaseLeavesCartAlone(t *testing.T) {
	t.Parallel()

	db := setupCheckoutTestDB(t)
	svc := newCheckoutService(t, db)
	ctx := context.Background()

	customer := seedUser(t, db, enums.RoleCustomer, testShippingAddress())
	seller := seedUser(t, db, enums.RoleSeller, nil)
	carted := seedProduct(t, db, seller.ID, 50, 0, 10)
	direct := seedProduct(t, db, seller.ID, 100, 0, 10)
	seedCart(t, db, customer.ID, map[uuid.UUID]int{carted.ID: 1})

	result, err := svc.Checkout(ctx, Request{
		CustomerID:    customer.ID,
		PaymentMethod: enums.PaymentMethodCash,
		Items:         []ItemInput{{ProductID: direct.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	require.Len(t, result.Orders, 1)
	require.Len(t, result.Orders[0].Items, 1)
	require.Equal(t, direct.ID, *result.Orders[0].Items[0].ProductID)

	// The stored cart survives a direct purchase untouched.
	var cart models.CartRecord
	require.NoError(t, db.First(&cart, "customer_id = ?", customer.ID).Error)
	require.Nil(t, cart.CheckedOutAt)

	var cartedItem models.InventoryItem
	require.NoError(t, db.First(&cartedItem, "product_id = ?", carted.ID).Error)
	require.Zero(t, cartedItem.ReservedQty)
}

func TestCheckoutNotifiesCustomerWithDeliveryCode(t *testing.T) {
	t.Parallel()

	db := setupCheckoutTestDB(t)
	svc := newCheckoutService(t, db)
	ctx := context.Background()

	customer := seedUser(t, db, enums.RoleCustomer, testShippingAddress())
	seller := seedUser(t, db, enums.RoleSeller, nil)
	product := seedProduct(t, db, seller.ID, 100, 0, 10)
	seedCart(t, db, customer.ID, map[uuid.UUID]int{product.ID: 1})

	result, err := svc.Checkout(ctx, Request{CustomerID: customer.ID, PaymentMethod: enums.PaymentMethodCash})
	require.NoError(t, err)
	require.Len(t, result.Orders, 1)
	shipment := result.Orders[0].Shipment
	require.NotNil(t, shipment)

	var customerNote models.Notification
	require.NoError(t, db.First(&customerNote, "user_id = ?", customer.ID).Error)
	require.Contains(t, customerNote.Message, shipment.OTPCode)

	var sellerNote models.Notification
	require.NoError(t, db.First(&sellerNote, "user_id = ?", seller.ID).Error)
	require.Contains(t, sellerNote.Message, result.Orders[0].Total.StringFixed(2))
}

func TestCheckoutPrepaidRequiresVerifiedPayment(t *testing.T) {
	t.Parallel()

	db := setupCheckoutTestDB(t)
	svc := newCheckoutService(t, db)
	ctx := context.Background()

	customer := seedUser(t, db, enums.RoleCustomer, testShippingAddress())
	seller := seedUser(t, db, enums.RoleSeller, nil)
	product := seedProduct(t, db, seller.ID, 100, 0, 10)
	seedCart(t, db, customer.ID, map[uuid.UUID]int{product.ID: 1})

	_, err := svc.Checkout(ctx, Request{CustomerID: customer.ID, PaymentMethod: enums.PaymentMethodPrepaid})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	require.Equal(t, pkgerrors.CodeValidation, appErr.Code())

	// Rejected before any mutation.
	var item models.InventoryItem
	require.NoError(t, db.First(&item, "product_id = ?", product.ID).Error)
	require.Equal(t, 10, item.AvailableQty)
	require.Zero(t, item.ReservedQty)

	result, err := svc.Checkout(ctx, Request{
		CustomerID:      customer.ID,
		PaymentMethod:   enums.PaymentMethodPrepaid,
		PaymentVerified: true,
	})
	require.NoError(t, err)
	require.Len(t, result.Orders, 1)

	var order models.Order
	require.NoError(t, db.First(&order, "id = ?", result.Orders[0].ID).Error)
	require.True(t, order.PaymentVerified)
}

func TestCheckoutSeedsShipmentEventLog(t *testing.T) {
	t.Parallel()

	db := setupCheckoutTestDB(t)
	svc := newCheckoutService(t, db)
	ctx := context.Background()

	customer := seedUser(t, db, enums.RoleCustomer, testShippingAddress())
	seller := seedUser(t, db, enums.RoleSeller, nil)
	product := seedProduct(t, db, seller.ID, 100, 0, 10)
	seedCart(t, db, customer.ID, map[uuid.UUID]int{product.ID: 1})

	result, err := svc.Checkout(ctx, Request{CustomerID: customer.ID, PaymentMethod: enums.PaymentMethodCash})
	require.NoError(t, err)
	require.Len(t, result.Orders, 1)

	var events []models.ShipmentEvent
	require.NoError(t, db.Find(&events, "shipment_id = ?", result.Orders[0].Shipment.ID).Error)
	require.Len(t, events, 1)
	require.Equal(t, enums.ShipmentStatusPending, events[0].ToStatus)
	require.Nil(t, events[0].FromStatus)
	require.NotNil(t, events[0].Note)
}

func TestCheckoutDistanceFromCoordinates(t *testing.T) {
	t.Parallel()

	db := setupCheckoutTestDB(t)
	svc := newCheckoutService(t, db)
	ctx := context.Background()

	pickup := testShippingAddress()
	pickup.Coordinates = &types.LatLng{Lat: 12.9716, Lng: 77.5946}
	drop := testShippingAddress()
	drop.Coordinates = &types.LatLng{Lat: 12.9716, Lng: 77.6946}

	customer := seedUser(t, db, enums.RoleCustomer, drop)
	seller := seedUser(t, db, enums.RoleSeller, pickup)
	product := seedProduct(t, db, seller.ID, 100, 0, 10)
	seedCart(t, db, customer.ID, map[uuid.UUID]int{product.ID: 1})

	result, err := svc.Checkout(ctx, Request{CustomerID: customer.ID, PaymentMethod: enums.PaymentMethodCash})
	require.NoError(t, err)
	require.Len(t, result.Orders, 1)

	shipment := result.Orders[0].Shipment
	require.NotNil(t, shipment)
	// 0.1 degrees of longitude at this latitude is roughly 10.8km.
	distance, _ := shipment.DistanceKm.Float64()
	require.InDelta(t, 10.8, distance, 0.2)
	require.NotNil(t, shipment.PickupAddress)
	require.NotNil(t, shipment.DeliveryAddress.Coordinates)

	// ETA at 25km/h, rounded up to whole minutes.
	eta := shipment.EstimatedDelivery.Sub(time.Now().UTC())
	require.Greater(t, eta, 20*time.Minute)
	require.Less(t, eta, 32*time.Minute)
}
