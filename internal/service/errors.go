package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"go-stock-ledger/pkg/validator"
)

// Validation errors.
var (
	ErrInvalidType            = errors.New("transaction type must be import or export")
	ErrInvalidQuantity        = errors.New("quantity must be a positive integer")
	ErrMissingProductIdentity = errors.New("product name, SKU or id is required")
	ErrInvalidID              = errors.New("invalid id")
)

// Not-found errors.
var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrProductNotFound     = errors.New("product not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrRoleNotFound        = errors.New("role not found")
)

// Conflict errors.
var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDuplicateSKU      = errors.New("sku already exists")
	ErrProductInUse      = errors.New("product is referenced by transactions")
	ErrDuplicateEmail    = errors.New("email already registered")
)

// InsufficientStockError reports the stock seen when a decrement was rejected.
type InsufficientStockError struct {
	ProductID uuid.UUID
	SKU       string
	Current   int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: current %d, requested %d", e.SKU, e.Current, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

type DuplicateSKUError struct {
	SKU string
}

func (e *DuplicateSKUError) Error() string {
	return fmt.Sprintf("sku %q already exists", e.SKU)
}

func (e *DuplicateSKUError) Is(target error) bool {
	return target == ErrDuplicateSKU
}

// ValidationError wraps request field failures.
type ValidationError struct {
	Fields []*validator.ErrorResponse
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s failed on %s", f.FailedField, f.Tag))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// validate runs struct validation and converts failures to *ValidationError.
func validate(v interface{}) error {
	if errs := validator.ValidateStruct(v); len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// IsValidation reports errors the caller can fix by changing the request.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr) ||
		errors.Is(err, ErrInvalidType) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrMissingProductIdentity) ||
		errors.Is(err, ErrInvalidID)
}

// IsNotFound reports missing entities.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrRoleNotFound)
}

// IsConflict reports errors caused by the current state of the ledger.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrDuplicateSKU) ||
		errors.Is(err, ErrProductInUse) ||
		errors.Is(err, ErrDuplicateEmail)
}
