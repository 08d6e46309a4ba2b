// Package store persists bills.
package store

import (
	"context"
	"errors"

	"github.com/ekisa-team/scanbill/internal/billing"
)

var ErrBillNotFound = errors.New("bill not found")

// BillStore saves and retrieves bills.
type BillStore interface {
	Save(ctx context.Context, bill *billing.Bill) error
	Load(ctx context.Context, id string) (*billing.Bill, error)
	// List returns up to limit bills, newest first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]*billing.Bill, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
