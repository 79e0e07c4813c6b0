// internal/domain/cart/errors.go
package cart

import "errors"

var (
	// ErrForbidden is returned when a cart or cart line does not belong to
	// the requesting user. Never retried; logged as a misuse signal.
	ErrForbidden = errors.New("cart does not belong to requesting user")

	// ErrLineNotFound is returned when updating a line that is not in the cart
	ErrLineNotFound = errors.New("cart line not found")

	// ErrInvalidQuantity is returned when an add requests a non-positive quantity
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)
