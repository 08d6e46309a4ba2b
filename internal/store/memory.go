package store

import (
	"context"
	"sort"
	"sync"

	"github.com/ekisa-team/scanbill/internal/billing"
)

// Memory keeps bills in process. Used when no Redis address is configured.
type Memory struct {
	mu    sync.RWMutex
	bills map[string]billing.Bill
}

func NewMemory() *Memory {
	return &Memory{bills: map[string]billing.Bill{}}
}

func (m *Memory) Save(_ context.Context, bill *billing.Bill) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *bill
	cp.Products = append([]billing.Product(nil), bill.Products...)
	m.bills[bill.ID] = cp
	return nil
}

func (m *Memory) Load(_ context.Context, id string) (*billing.Bill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bill, ok := m.bills[id]
	if !ok {
		return nil, ErrBillNotFound
	}
	return &bill, nil
}

func (m *Memory) List(_ context.Context, limit int) ([]*billing.Bill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bills := make([]*billing.Bill, 0, len(m.bills))
	for _, b := range m.bills {
		bills = append(bills, &b)
	}
	sort.Slice(bills, func(i, j int) bool {
		return bills[i].Date.After(bills[j].Date)
	})
	if limit > 0 && len(bills) > limit {
		bills = bills[:limit]
	}
	return bills, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bills[id]; !ok {
		return ErrBillNotFound
	}
	delete(m.bills, id)
	return nil
}

func (m *Memory) Close() error { return nil }
