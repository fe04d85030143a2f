package order

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/noah-isme/backend-koperasi/internal/catalog"
	"github.com/noah-isme/backend-koperasi/internal/common"
	"github.com/noah-isme/backend-koperasi/internal/pricing"
)

var (
	// ErrProductNotFound is returned when an order line names an unknown product.
	ErrProductNotFound = catalog.ErrProductNotFound
	// ErrOrderNotFound is returned when no order matches the id.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvalidInput wraps malformed submissions.
	ErrInvalidInput = errors.New("invalid order input")
)

// InsufficientStockError reports the first line whose quantity exceeds the live stock.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Requested   int
	Remaining   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s, remaining %d", e.ProductName, e.Remaining)
}

// ConcurrentModificationError reports that stock changed between the check and the
// decrement. The transaction is rolled back and the caller may retry.
type ConcurrentModificationError struct {
	ProductID string
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("stock for product %s changed concurrently", e.ProductID)
}

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

// ToAppError maps order errors onto API errors.
func ToAppError(err error) error {
	var stockErr *InsufficientStockError
	var concErr *ConcurrentModificationError
	switch {
	case err == nil:
		return nil
	case common.IsAppError(err):
		return err
	case errors.As(err, &stockErr):
		return common.NewAppError("INSUFFICIENT_STOCK", stockErr.Error(), http.StatusConflict, err).
			WithDetails(map[string]any{
				"productId":   stockErr.ProductID,
				"productName": stockErr.ProductName,
				"requested":   stockErr.Requested,
				"remaining":   stockErr.Remaining,
			})
	case errors.As(err, &concErr):
		return common.NewAppError("CONCURRENT_MODIFICATION", "stock changed, please retry", http.StatusConflict, err).
			WithDetails(map[string]any{"productId": concErr.ProductID})
	case errors.Is(err, ErrProductNotFound):
		return common.NewAppError("PRODUCT_NOT_FOUND", err.Error(), http.StatusNotFound, err)
	case errors.Is(err, ErrOrderNotFound):
		return common.NewAppError("NOT_FOUND", "order not found", http.StatusNotFound, err)
	case errors.Is(err, ErrInvalidInput):
		return common.NewAppError("INVALID_ORDER", err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, pricing.ErrInvalidProductData):
		return common.NewAppError("INVALID_PRODUCT_DATA", err.Error(), http.StatusUnprocessableEntity, err)
	default:
		return err
	}
}
