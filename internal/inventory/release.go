package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/delgo-app/delgo-backend/pkg/db/models"
	pkgerrors "github.com/delgo-app/delgo-backend/pkg/errors"
	"github.com/delgo-app/delgo-backend/pkg/logger"
)

// Release returns qty units of a product's reservation to the pool.
// Over-release floors reserved_qty at zero and logs the anomaly instead of
// failing: the delivery already happened, the counter must not go negative.
func Release(ctx context.Context, tx *gorm.DB, logg *logger.Logger, productID uuid.UUID, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction handle required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("release quantity must be positive, got %d", qty))
	}

	result := tx.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("product_id = ? AND reserved_qty >= ?", productID, qty).
		Update("reserved_qty", gorm.Expr("reserved_qty - ?", qty))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	floored := tx.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("product_id = ?", productID).
		Update("reserved_qty", 0)
	if floored.Error != nil {
		return floored.Error
	}
	if logg != nil {
		lctx := logg.WithFields(ctx, map[string]any{
			"product_id":  productID.String(),
			"release_qty": qty,
		})
		if floored.RowsAffected == 0 {
			logg.Warn(lctx, "inventory release for unknown product")
		} else {
			logg.Warn(lctx, "inventory over-release floored at zero")
		}
	}
	return nil
}
