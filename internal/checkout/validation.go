package checkout

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/delgo-app/delgo-backend/pkg/db/models"
	pkgerrors "github.com/delgo-app/delgo-backend/pkg/errors"
	"github.com/delgo-app/delgo-backend/pkg/types"
)

// validateLines rejects submissions that cannot possibly check out before
// any stock is touched: no lines at all, non-positive quantities and lines
// whose product is gone or inactive.
func validateLines(lines []ItemInput, products map[uuid.UUID]models.Product) error {
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
	}

	var violations []string
	for _, line := range lines {
		if line.Quantity <= 0 {
			violations = append(violations, fmt.Sprintf("product %s: quantity must be positive", line.ProductID))
			continue
		}
		if _, ok := products[line.ProductID]; !ok {
			violations = append(violations, fmt.Sprintf("product %s: no longer available", line.ProductID))
		}
	}
	if len(violations) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart has invalid lines").
			WithDetails(map[string]any{"violations": violations})
	}
	return nil
}

func validateShippingAddress(address *types.Address) error {
	if address == nil || !address.Complete() {
		return pkgerrors.New(pkgerrors.CodeInvalidAddress, "shipping address requires street, city, state and postal code")
	}
	return nil
}
