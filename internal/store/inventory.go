package store

import (
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
)

// Inventory is the in-memory inventory store. It keeps entries in insertion
// order. Inventory is not safe for concurrent use; see Guarded.
type Inventory struct {
	keys   []string
	qty    map[string]int
	logger *zap.Logger
	now    func() time.Time
}

// Option configures an Inventory.
type Option func(*Inventory)

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(inv *Inventory) {
		if logger != nil {
			inv.logger = logger
		}
	}
}

// WithClock sets the time source used for journal timestamps.
func WithClock(now func() time.Time) Option {
	return func(inv *Inventory) {
		if now != nil {
			inv.now = now
		}
	}
}

// NewInventory creates an empty Inventory. Diagnostics go to the global zap
// logger unless WithLogger is given.
func NewInventory(opts ...Option) *Inventory {
	inv := &Inventory{
		qty:    make(map[string]int),
		logger: zap.L(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Add credits qty units to item. An empty item is a no-op. The result is kept
// even when it is zero or negative; only Remove deletes entries.
func (inv *Inventory) Add(item string, qty int, journal *Journal) error {
	if item == "" {
		return nil
	}
	if journal == nil {
		journal = &Journal{}
	}

	current, exists := inv.qty[item]
	next, ok := addInt(current, qty)
	if !ok {
		return fmt.Errorf("add %d of %s: %w", qty, item, ErrQuantityOverflow)
	}

	if !exists {
		inv.keys = append(inv.keys, item)
	}
	inv.qty[item] = next
	journal.recordAdd(inv.now(), item, qty)

	inv.logger.Debug("item added",
		zap.String("item", item),
		zap.Int("qty", qty),
		zap.Int("quantity", next),
	)

	return nil
}

// Remove debits qty units from item. Absent items are left alone and reported
// as OutcomeAbsent. An entry whose quantity drops to zero or below is deleted.
// On overflow the entry is kept and OutcomeUnchanged is returned with the error.
func (inv *Inventory) Remove(item string, qty int) (RemoveOutcome, error) {
	current, exists := inv.qty[item]
	if !exists {
		return OutcomeAbsent, nil
	}

	next, ok := subInt(current, qty)
	if !ok {
		return OutcomeUnchanged, fmt.Errorf("remove %d of %s: %w", qty, item, ErrQuantityOverflow)
	}

	if next <= 0 {
		inv.delete(item)
		inv.logger.Debug("item deleted", zap.String("item", item), zap.Int("qty", qty))
		return OutcomeDeleted, nil
	}

	inv.qty[item] = next
	inv.logger.Debug("item removed",
		zap.String("item", item),
		zap.Int("qty", qty),
		zap.Int("quantity", next),
	)

	return OutcomeDecremented, nil
}

// Qty returns the current quantity of item, or 0 when it is absent.
func (inv *Inventory) Qty(item string) int {
	return inv.qty[item]
}

// LowItems returns the items whose quantity is strictly below threshold.
func (inv *Inventory) LowItems(threshold int) []string {
	result := []string{}
	for _, key := range inv.keys {
		if inv.qty[key] < threshold {
			result = append(result, key)
		}
	}
	return result
}

// LowItemsDefault is LowItems with DefaultLowStockThreshold.
func (inv *Inventory) LowItemsDefault() []string {
	return inv.LowItems(DefaultLowStockThreshold)
}

// Items returns a snapshot of the entries in iteration order.
func (inv *Inventory) Items() []Entry {
	entries := make([]Entry, 0, len(inv.keys))
	for _, key := range inv.keys {
		entries = append(entries, Entry{Item: key, Quantity: inv.qty[key]})
	}
	return entries
}

// Len returns the number of items held.
func (inv *Inventory) Len() int {
	return len(inv.keys)
}

// reset replaces the contents with entries, keeping the first position of a
// repeated key and its last value.
func (inv *Inventory) reset(entries []Entry) {
	inv.keys = make([]string, 0, len(entries))
	inv.qty = make(map[string]int, len(entries))
	for _, e := range entries {
		if _, exists := inv.qty[e.Item]; !exists {
			inv.keys = append(inv.keys, e.Item)
		}
		inv.qty[e.Item] = e.Quantity
	}
}

func (inv *Inventory) delete(item string) {
	delete(inv.qty, item)
	if i := slices.Index(inv.keys, item); i >= 0 {
		inv.keys = slices.Delete(inv.keys, i, i+1)
	}
}
