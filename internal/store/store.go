// Package store provides the inventory store: an ordered mapping from item key
// to quantity with whole-file JSON persistence.
package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Store errors.
var (
	ErrQuantityOverflow = errors.New("quantity overflow")
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrMalformedData    = errors.New("malformed inventory data")
	ErrInvalidItem      = errors.New("item is not valid UTF-8")
)

// Default values.
const (
	DefaultPath              = "inventory.json"
	DefaultLowStockThreshold = 5
)

// Store defines the operations every inventory implementation offers.
type Store interface {
	// Add credits qty units to item and records the transaction in journal.
	Add(item string, qty int, journal *Journal) error

	// Remove debits qty units from item, deleting it once it reaches zero or less.
	Remove(item string, qty int) (RemoveOutcome, error)

	// Qty returns the current quantity of item, 0 when absent.
	Qty(item string) int

	// LowItems returns the items with a quantity strictly below threshold.
	LowItems(threshold int) []string

	// Items returns a snapshot of all entries in iteration order.
	Items() []Entry

	// Load replaces the store contents with the document at path.
	Load(path string) error

	// Save writes the whole store to path.
	Save(path string) error
}

// Entry is a single item and its quantity.
type Entry struct {
	Item     string `json:"item"`
	Quantity int    `json:"quantity"`
}

// RemoveOutcome reports what a Remove call did.
type RemoveOutcome int

// Remove outcomes.
const (
	OutcomeAbsent RemoveOutcome = iota
	OutcomeDecremented
	OutcomeDeleted
	// OutcomeUnchanged is reported with an error; the entry was left as it was.
	OutcomeUnchanged
)

// String returns the outcome name.
func (o RemoveOutcome) String() string {
	switch o {
	case OutcomeAbsent:
		return "absent"
	case OutcomeDecremented:
		return "decremented"
	case OutcomeDeleted:
		return "deleted"
	case OutcomeUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// ParseQuantity converts caller-supplied text into a quantity.
// Non-numeric input fails with ErrInvalidQuantity.
func ParseQuantity(s string) (int, error) {
	qty, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidQuantity, s)
	}
	return qty, nil
}

func addInt(a, b int) (int, bool) {
	c := a + b
	if (b > 0 && c < a) || (b < 0 && c > a) {
		return 0, false
	}
	return c, true
}

func subInt(a, b int) (int, bool) {
	c := a - b
	if (b > 0 && c > a) || (b < 0 && c < a) {
		return 0, false
	}
	return c, true
}
