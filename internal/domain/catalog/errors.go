// internal/domain/catalog/errors.go
package catalog

import "errors"

var (
	// ErrProductNotFound is returned when the referenced product does not exist
	ErrProductNotFound = errors.New("product not found")

	// ErrCategoryNotFound is returned when the referenced category does not exist
	ErrCategoryNotFound = errors.New("category not found")

	// ErrCategoryNameTaken is returned when creating or renaming a category
	// to a name that is already in use
	ErrCategoryNameTaken = errors.New("category name already in use")

	// ErrCategoryHasProducts is returned when deleting a category that still
	// has products; deletion is restricted, not cascaded
	ErrCategoryHasProducts = errors.New("cannot delete category with existing products")

	// ErrInvalidPrice is returned when a product price is negative
	ErrInvalidPrice = errors.New("price must not be negative")

	// ErrInvalidStock is returned when a stock level or adjustment would go negative
	ErrInvalidStock = errors.New("stock must not be negative")
)
