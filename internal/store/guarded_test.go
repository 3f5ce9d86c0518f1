package store

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
)

func TestNewGuarded(t *testing.T) {
	// Act
	g := NewGuarded(NewInventory())

	// Assert
	if g == nil {
		t.Fatal("NewGuarded() returned nil")
	}
	if g.inv == nil {
		t.Error("inventory should be set")
	}
}

func TestGuarded_ConcurrentAdds(t *testing.T) {
	// Arrange
	g := NewGuarded(NewInventory())
	const goroutines = 50
	const perGoroutine = 20

	var wg sync.WaitGroup
	wg.Add(goroutines)

	// Act
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				if err := g.Add("bolts", 1, nil); err != nil {
					t.Errorf("Add() error = %v", err)
				}
			}
		}()
	}
	wg.Wait()

	// Assert
	if got := g.Qty("bolts"); got != goroutines*perGoroutine {
		t.Errorf("Qty() = %d, want %d", got, goroutines*perGoroutine)
	}
}

func TestGuarded_ConcurrentMixedAccess(t *testing.T) {
	// Arrange
	g := NewGuarded(NewInventory())
	if err := g.Add("nuts", 10000, nil); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	var wg sync.WaitGroup
	const workers = 20

	// Act
	for i := 0; i < workers; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			if _, err := g.Remove("nuts", 1); err != nil {
				t.Errorf("Remove() error = %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			_ = g.LowItems(DefaultLowStockThreshold)
			_ = g.Items()
		}()
		go func() {
			defer wg.Done()
			var buf bytes.Buffer
			if err := g.Report(&buf); err != nil {
				t.Errorf("Report() error = %v", err)
			}
		}()
	}
	wg.Wait()

	// Assert
	if got := g.Qty("nuts"); got != 10000-workers {
		t.Errorf("Qty() = %d, want %d", got, 10000-workers)
	}
	if g.Len() != 1 {
		t.Errorf("Len() = %d, want 1", g.Len())
	}
}

func TestGuarded_SaveLoad(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "inventory.json")
	g := NewGuarded(NewInventory())
	journal := &Journal{}
	if err := g.Add("apple", 3, journal); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	// Act
	if err := g.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	other := NewGuarded(NewInventory())
	if err := other.Load(path); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Assert
	if other.Qty("apple") != 3 {
		t.Errorf("Qty() = %d, want 3", other.Qty("apple"))
	}
	if journal.Len() != 1 {
		t.Errorf("journal Len() = %d, want 1", journal.Len())
	}
}

func TestGuarded_Update(t *testing.T) {
	// Arrange
	g := NewGuarded(NewInventory())
	const workers = 30
	seen := make(chan int, workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	// Act
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			err := g.Update(func(inv *Inventory) error {
				if err := inv.Add("bolts", 1, nil); err != nil {
					return err
				}
				seen <- inv.Qty("bolts")
				return nil
			})
			if err != nil {
				t.Errorf("Update() error = %v", err)
			}
		}()
	}
	wg.Wait()
	close(seen)

	// Assert
	got := make(map[int]bool, workers)
	for q := range seen {
		if got[q] {
			t.Errorf("quantity %d observed twice", q)
		}
		got[q] = true
	}
	if len(got) != workers {
		t.Errorf("observed %d distinct quantities, want %d", len(got), workers)
	}
}

func TestGuarded_Update_PropagatesError(t *testing.T) {
	// Arrange
	g := NewGuarded(NewInventory())
	if err := g.Add("bolts", math.MaxInt, nil); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	// Act
	err := g.Update(func(inv *Inventory) error {
		return inv.Add("bolts", 1, nil)
	})

	// Assert
	if !errors.Is(err, ErrQuantityOverflow) {
		t.Errorf("Update() error = %v, want %v", err, ErrQuantityOverflow)
	}
}
