package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/delgo-app/delgo-backend/pkg/db/models"
	"github.com/delgo-app/delgo-backend/pkg/enums"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:orders_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	orders := `
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
);`
	items := `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT,
  name TEXT NOT NULL,
  unit_price NUMERIC NOT NULL,
  quantity INTEGER NOT NULL,
  line_total NUMERIC NOT NULL,
  created_at DATETIME
);`
	shipments := `
CREATE TABLE IF NOT EXISTS shipments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  tracking_number TEXT NOT NULL,
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
);`
	for _, ddl := range []string{orders, items, shipments} {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}

func newOrder(customerID, sellerID uuid.UUID) *models.Order {
	return &models.Order{
		ID:          uuid.New(),
		CustomerID:  customerID,
		SellerID:    sellerID,
		Status:      enums.OrderStatusPending,
		Subtotal:    decimal.NewFromInt(200),
		Tax:         decimal.NewFromInt(10),
		ShippingFee: decimal.NewFromInt(40),
		Total:       decimal.NewFromInt(250),
	}
}

func TestCreateAndFindByID(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := newOrder(uuid.New(), uuid.New())
	order.Items = []models.OrderItem{
		{ID: uuid.New(), Name: "Masala Chai", UnitPrice: decimal.NewFromInt(100), Quantity: 2, LineTotal: decimal.NewFromInt(200)},
	}

	created, err := repo.Create(ctx, order)
	require.NoError(t, err)

	got, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
	require.Len(t, got.Items, 1)
	require.True(t, got.Total.Equal(decimal.NewFromInt(250)))
}

func TestAdvanceStatus(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := newOrder(uuid.New(), uuid.New())
	_, err := repo.Create(ctx, order)
	require.NoError(t, err)

	moved, err := repo.AdvanceStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusPacked)
	require.NoError(t, err)
	require.True(t, moved)

	// Re-applying the same transition must be a no-op.
	moved, err = repo.AdvanceStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusPacked)
	require.NoError(t, err)
	require.False(t, moved)
}

func TestMarkDelivered(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := newOrder(uuid.New(), uuid.New())
	order.Status = enums.OrderStatusShipped
	_, err := repo.Create(ctx, order)
	require.NoError(t, err)

	delivered, err := repo.MarkDelivered(ctx, order.ID, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, delivered)

	got, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusDelivered, got.Status)
	require.NotNil(t, got.DeliveredAt)

	delivered, err = repo.MarkDelivered(ctx, order.ID, time.Now().UTC())
	require.NoError(t, err)
	require.False(t, delivered)
}
