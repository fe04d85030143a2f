package pricing

import (
	"errors"
	"fmt"
)

// ErrInvalidProductData indicates malformed price or tier configuration.
var ErrInvalidProductData = errors.New("invalid product price data")

func invalidData(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidProductData, msg)
}
