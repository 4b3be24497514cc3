// Package store provides repository implementations for the billing engine.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/lohnwerk/minijob-engine/billing"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements billing.EmployeeRepository, billing.EntryRepository and
// billing.CapPeriodRepository in memory. WithTx is simulated with a
// snapshot restored on error, which gives the same zero-mutation-on-failure
// guarantee the engine expects from the durable store.
type Memory struct {
	mu        sync.RWMutex
	employees map[string]billing.Employee
	entries   map[string][]billing.Entry // by employee, ascending by date
	caps      map[string]billing.CapPeriod
}

func NewMemory() *Memory {
	return &Memory{
		employees: make(map[string]billing.Employee),
		entries:   make(map[string][]billing.Entry),
		caps:      make(map[string]billing.CapPeriod),
	}
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (m *Memory) ListEmployees(_ context.Context) ([]billing.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]billing.Employee, 0, len(m.employees))
	for _, e := range m.employees {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) GetEmployee(_ context.Context, id string) (*billing.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.employees[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *Memory) SaveEmployee(_ context.Context, e billing.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[e.ID] = e
	return nil
}

// =============================================================================
// ENTRIES
// =============================================================================

func (m *Memory) ListEntries(_ context.Context, employeeID string, from, to billing.Date) ([]billing.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []billing.Entry
	for _, e := range m.entries[employeeID] {
		if e.Date.AfterOrEqual(from) && e.Date.BeforeOrEqual(to) {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *Memory) FirstEntryDate(_ context.Context, employeeID string) (*billing.Date, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.entries[employeeID]
	if len(entries) == 0 {
		return nil, nil
	}
	d := entries[0].Date
	return &d, nil
}

func (m *Memory) SaveEntry(_ context.Context, e billing.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.entries[e.EmployeeID]

	// Replace in place if the ID already exists.
	for i := range entries {
		if entries[i].ID == e.ID {
			entries[i] = e
			sort.Slice(entries, func(a, b int) bool { return entries[a].Date.Before(entries[b].Date) })
			m.entries[e.EmployeeID] = entries
			return nil
		}
	}

	i := sort.Search(len(entries), func(i int) bool {
		return entries[i].Date.After(e.Date)
	})
	entries = append(entries, billing.Entry{})
	copy(entries[i+1:], entries[i:])
	entries[i] = e
	m.entries[e.EmployeeID] = entries
	return nil
}

func (m *Memory) DeleteEntry(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for empID, entries := range m.entries {
		for i := range entries {
			if entries[i].ID == id {
				m.entries[empID] = append(entries[:i], entries[i+1:]...)
				return nil
			}
		}
	}
	return billing.ErrEntryNotFound
}

// =============================================================================
// CAP PERIODS
// =============================================================================

func (m *Memory) ListCapPeriods(_ context.Context) ([]billing.CapPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listCapsLocked(), nil
}

func (m *Memory) listCapsLocked() []billing.CapPeriod {
	result := make([]billing.CapPeriod, 0, len(m.caps))
	for _, p := range m.caps {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ValidFrom.Before(result[j].ValidFrom) })
	return result
}

func (m *Memory) GetCapPeriod(_ context.Context, id string) (*billing.CapPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.caps[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) SaveCapPeriod(_ context.Context, p billing.CapPeriod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caps[p.ID] = p
	return nil
}

func (m *Memory) DeleteCapPeriod(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.caps[id]; !ok {
		return billing.ErrPeriodNotFound
	}
	delete(m.caps, id)
	return nil
}

// WithTx executes fn against a view of the store; on error the cap period
// state is restored from a snapshot.
func (m *Memory) WithTx(_ context.Context, fn func(billing.CapPeriodRepository) error) error {
	m.mu.Lock()
	snapshot := make(map[string]billing.CapPeriod, len(m.caps))
	for k, v := range m.caps {
		snapshot[k] = v
	}
	m.mu.Unlock()

	if err := fn(&txView{parent: m}); err != nil {
		m.mu.Lock()
		m.caps = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

// txView routes writes straight into the parent; rollback is handled by the
// snapshot in WithTx.
type txView struct {
	parent *Memory
}

func (v *txView) ListCapPeriods(ctx context.Context) ([]billing.CapPeriod, error) {
	return v.parent.ListCapPeriods(ctx)
}

func (v *txView) GetCapPeriod(ctx context.Context, id string) (*billing.CapPeriod, error) {
	return v.parent.GetCapPeriod(ctx, id)
}

func (v *txView) SaveCapPeriod(ctx context.Context, p billing.CapPeriod) error {
	return v.parent.SaveCapPeriod(ctx, p)
}

func (v *txView) DeleteCapPeriod(ctx context.Context, id string) error {
	return v.parent.DeleteCapPeriod(ctx, id)
}

func (v *txView) WithTx(ctx context.Context, fn func(billing.CapPeriodRepository) error) error {
	return fn(v)
}

// Compile-time interface checks
var (
	_ billing.EmployeeRepository  = (*Memory)(nil)
	_ billing.EntryRepository     = (*Memory)(nil)
	_ billing.CapPeriodRepository = (*Memory)(nil)
)
