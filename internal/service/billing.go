package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ekisa-team/scanbill/internal/billing"
	"github.com/ekisa-team/scanbill/internal/metrics"
	"github.com/ekisa-team/scanbill/internal/store"
)

// Billing creates, stores and e-mails bills.
type Billing struct {
	store   store.BillStore
	mailer  billing.Mailer
	taxRate float64
	metrics *metrics.Metrics
}

// NewBilling creates a billing service. A nil mailer logs sends.
func NewBilling(s store.BillStore, mailer billing.Mailer, taxRate float64, m *metrics.Metrics) *Billing {
	if mailer == nil {
		mailer = billing.LogMailer{}
	}
	return &Billing{store: s, mailer: mailer, taxRate: taxRate, metrics: m}
}

// Create generates a bill for products and stores it. When email is set the
// receipt is sent too; a failed send is returned but the bill is kept.
func (b *Billing) Create(ctx context.Context, products []billing.Product, email string) (*billing.Bill, error) {
	bill, err := billing.GenerateBill(products, b.taxRate)
	if err != nil {
		return nil, err
	}

	if err := b.store.Save(ctx, bill); err != nil {
		return nil, fmt.Errorf("store bill: %w", err)
	}
	b.metrics.ObserveBill(bill.GrandTotal)
	slog.Info("Bill created", "bill_id", bill.ID, "items", len(bill.Products), "grand_total", billing.FormatCurrency(bill.GrandTotal))

	if email == "" {
		return bill, nil
	}
	if err := b.send(ctx, bill, email); err != nil {
		return bill, err
	}
	return bill, nil
}

// Get loads a stored bill.
func (b *Billing) Get(ctx context.Context, id string) (*billing.Bill, error) {
	return b.store.Load(ctx, id)
}

// List returns up to limit bills, newest first.
func (b *Billing) List(ctx context.Context, limit int) ([]*billing.Bill, error) {
	return b.store.List(ctx, limit)
}

// Email sends the receipt of a stored bill to addr.
func (b *Billing) Email(ctx context.Context, id, addr string) (*billing.Bill, error) {
	bill, err := b.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := b.send(ctx, bill, addr); err != nil {
		return nil, err
	}
	return bill, nil
}

func (b *Billing) send(ctx context.Context, bill *billing.Bill, addr string) error {
	if err := billing.SendReceipt(ctx, b.mailer, addr, bill); err != nil {
		return err
	}
	if err := b.store.Save(ctx, bill); err != nil {
		return fmt.Errorf("store bill: %w", err)
	}
	return nil
}
