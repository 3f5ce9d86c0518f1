// Package model defines data structures used throughout the application.
package model

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Validation errors.
var (
	ErrEmptyItem       = errors.New("item cannot be empty")
	ErrItemTooLong     = errors.New("item cannot exceed 255 characters")
	ErrItemNotUTF8     = errors.New("item must be valid UTF-8")
	ErrMissingQuantity = errors.New("quantity is required")
)

// MaxItemLength is the longest item key accepted over the API.
const MaxItemLength = 255

var itemRules = "required,max=" + strconv.Itoa(MaxItemLength)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator, reporting fields by their JSON names.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// QuantityRequest is the body of add and remove requests.
type QuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// Validate checks that the request carries a quantity. Zero is a quantity.
func (r *QuantityRequest) Validate() error {
	if err := Validator().Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Field() == "quantity" {
			return ErrMissingQuantity
		}
		return err
	}
	return nil
}

// ValidateItem checks an item key taken from a request path.
func ValidateItem(item string) error {
	if !utf8.ValidString(item) {
		return ErrItemNotUTF8
	}

	err := Validator().Var(item, itemRules)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Tag() {
		case "required":
			return ErrEmptyItem
		case "max":
			return ErrItemTooLong
		}
	}
	return err
}

// ItemQuantity is the quantity held for one item.
type ItemQuantity struct {
	Item     string `json:"item"`
	Quantity int    `json:"quantity"`
}

// AddResult is returned after crediting an item.
type AddResult struct {
	Item     string `json:"item"`
	Added    int    `json:"added"`
	Quantity int    `json:"quantity"`
	Record   string `json:"record"`
}

// RemoveResult is returned after debiting an item.
type RemoveResult struct {
	Item     string `json:"item"`
	Removed  int    `json:"removed"`
	Quantity int    `json:"quantity"`
	Outcome  string `json:"outcome"`
}

// LowStockResponse lists the items below a threshold.
type LowStockResponse struct {
	Threshold int      `json:"threshold"`
	Items     []string `json:"items"`
}

// PersistResponse reports a save or load of the inventory file.
type PersistResponse struct {
	Path  string `json:"path"`
	Items int    `json:"items"`
}

// APIResponse is a generic wrapper for API responses.
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewSuccessResponse creates a successful API response.
func NewSuccessResponse[T any](data T) APIResponse[T] {
	return APIResponse[T]{
		Success: true,
		Data:    data,
	}
}

// ErrorResponse represents an error response structure.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// StockEvent is pushed to WebSocket subscribers after every change.
type StockEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Item      string    `json:"item,omitempty"`
	Delta     int       `json:"delta,omitempty"`
	Quantity  int       `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
}

// Stock event types.
const (
	StockEventAdded   = "added"
	StockEventRemoved = "removed"
	StockEventDeleted = "deleted"
	StockEventLoaded  = "loaded"
	StockEventSaved   = "saved"
)

// NewStockEvent creates a stock event stamped with a fresh ID and the current time.
func NewStockEvent(eventType, item string, delta, quantity int) StockEvent {
	return StockEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Item:      item,
		Delta:     delta,
		Quantity:  quantity,
		Timestamp: time.Now().UTC(),
	}
}
