package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/delgo-app/delgo-backend/pkg/db/models"
	pkgerrors "github.com/delgo-app/delgo-backend/pkg/errors"
)

// ReservationRequest asks for qty units of a product to be held.
type ReservationRequest struct {
	ProductID   uuid.UUID
	ProductName string
	Qty         int
}

// Reserve holds stock for every request or fails the batch on the first
// product that cannot cover it. Each hold is a single conditional update,
// so concurrent checkouts can never drive available_qty below zero. Callers
// run Reserve inside a transaction; a failed batch rolls back any holds
// already applied.
func Reserve(ctx context.Context, tx *gorm.DB, requests []ReservationRequest) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction handle required")
	}

	for _, req := range requests {
		if req.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("reservation quantity must be positive, got %d", req.Qty))
		}

		result := tx.WithContext(ctx).
			Model(&models.InventoryItem{}).
			Where("product_id = ? AND available_qty >= ?", req.ProductID, req.Qty).
			Updates(map[string]any{
				"available_qty": gorm.Expr("available_qty - ?", req.Qty),
				"reserved_qty":  gorm.Expr("reserved_qty + ?", req.Qty),
				"order_count":   gorm.Expr("order_count + 1"),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			name := req.ProductName
			if name == "" {
				name = req.ProductID.String()
			}
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("insufficient stock for %s", name)).WithDetails(map[string]any{
				"product_id":    req.ProductID,
				"requested_qty": req.Qty,
			})
		}
	}

	return nil
}
