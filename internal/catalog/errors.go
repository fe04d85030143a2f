package catalog

import (
	"errors"
	"net/http"

	"github.com/noah-isme/backend-koperasi/internal/common"
	"github.com/noah-isme/backend-koperasi/internal/pricing"
)

var (
	// ErrProductNotFound is returned when no product matches the id or code.
	ErrProductNotFound = errors.New("product not found")
	// ErrDuplicateCode is returned when a barcode or SKU is already used by another product.
	ErrDuplicateCode = errors.New("barcode or sku already in use")
)

func badRequest(field, message string, err error) *common.AppError {
	return common.NewAppError("BAD_REQUEST", message, http.StatusBadRequest, err).
		WithDetails(map[string]any{"field": field})
}

// toAppError maps catalog errors onto API errors.
func toAppError(err error) error {
	switch {
	case err == nil:
		return nil
	case common.IsAppError(err):
		return err
	case errors.Is(err, ErrProductNotFound):
		return common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, err)
	case errors.Is(err, ErrDuplicateCode):
		return common.NewAppError("DUPLICATE_CODE", "barcode or sku already in use", http.StatusConflict, err)
	case errors.Is(err, pricing.ErrInvalidProductData):
		return common.NewAppError("INVALID_PRODUCT_DATA", err.Error(), http.StatusBadRequest, err)
	default:
		return err
	}
}
