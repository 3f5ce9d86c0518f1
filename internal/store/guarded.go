package store

import (
	"io"
	"sync"
)

// Guarded serialises access to an Inventory so it can be shared between
// request handlers.
type Guarded struct {
	mu  sync.Mutex
	inv *Inventory
}

// NewGuarded wraps inv. The caller must not use inv directly afterwards.
func NewGuarded(inv *Inventory) *Guarded {
	return &Guarded{inv: inv}
}

// Add credits qty units to item.
func (g *Guarded) Add(item string, qty int, journal *Journal) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.inv.Add(item, qty, journal)
}

// Remove debits qty units from item.
func (g *Guarded) Remove(item string, qty int) (RemoveOutcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.inv.Remove(item, qty)
}

// Update runs fn with exclusive access to the inventory. Work done inside fn,
// such as reading back a quantity, sees no other caller's changes.
func (g *Guarded) Update(fn func(inv *Inventory) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	return fn(g.inv)
}

// Qty returns the current quantity of item.
func (g *Guarded) Qty(item string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.inv.Qty(item)
}

// LowItems returns the items below threshold.
func (g *Guarded) LowItems(threshold int) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.inv.LowItems(threshold)
}

// Items returns a snapshot of all entries.
func (g *Guarded) Items() []Entry {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.inv.Items()
}

// Len returns the number of items held.
func (g *Guarded) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.inv.Len()
}

// Load replaces the inventory contents from path.
func (g *Guarded) Load(path string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.inv.Load(path)
}

// Save writes the inventory to path.
func (g *Guarded) Save(path string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.inv.Save(path)
}

// Report writes the inventory report to w.
func (g *Guarded) Report(w io.Writer) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.inv.Report(w)
}
