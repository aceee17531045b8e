// invoice_assembler.go - Totals, numbering and payment status for invoices
package processor

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/bosocmputer/voicebill/internal/storage"
	"github.com/google/uuid"
)

// ErrNoItems is returned when an invoice would have no lines
var ErrNoItems = errors.New("invoice has no items")

// PricedItem is a fully priced line ready for assembly
type PricedItem struct {
	Name     string
	Quantity float64
	Price    float64
}

// InvoiceInput carries everything the assembler needs besides the items
type InvoiceInput struct {
	UserID          string
	CustomerID      string
	CustomerName    string
	CustomerPhone   string
	CustomerEmail   string
	CustomerAddress string
	Transcription   string
	Language        string
	Items           []PricedItem
	TaxRate         float64
	// ExistingCount is the user's invoice count at assembly time
	ExistingCount int64
	Now           time.Time
}

// Totals holds the computed money fields of an invoice
type Totals struct {
	Subtotal float64
	Tax      float64
	Total    float64
}

// ComputeTotals applies subtotal = sum(qty*price), tax = subtotal*rate, total = subtotal+tax.
// No rounding happens here; formatting rounds for display only.
func ComputeTotals(items []storage.InvoiceItem, taxRate float64) Totals {
	var subtotal float64
	for _, it := range items {
		subtotal += it.Total
	}
	tax := subtotal * taxRate
	return Totals{Subtotal: subtotal, Tax: tax, Total: subtotal + tax}
}

// InvoiceNumber formats INV-<first 8 of user id>-<count+1, zero padded>
func InvoiceNumber(userID string, existingCount int64) string {
	prefix := userID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("INV-%s-%04d", prefix, existingCount+1)
}

// FormatPercent renders a tax rate such as 0.125 as "12.5", to two decimals at most
func FormatPercent(rate float64) string {
	return strconv.FormatFloat(math.Round(rate*10000)/100, 'f', -1, 64)
}

// FormatQuantity prints whole quantities without decimals and keeps fractions short
func FormatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

// Assemble builds an unpaid invoice record from priced items
func Assemble(in InvoiceInput) (*storage.Invoice, error) {
	if len(in.Items) == 0 {
		return nil, ErrNoItems
	}

	items := make([]storage.InvoiceItem, 0, len(in.Items))
	for _, it := range in.Items {
		items = append(items, storage.InvoiceItem{
			Name:     it.Name,
			Quantity: it.Quantity,
			Price:    it.Price,
			Total:    it.Quantity * it.Price,
		})
	}
	totals := ComputeTotals(items, in.TaxRate)

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	customerName := in.CustomerName
	if customerName == "" {
		customerName = "Walk-in Customer"
	}

	return &storage.Invoice{
		ID:              uuid.New().String(),
		UserID:          in.UserID,
		CustomerID:      in.CustomerID,
		InvoiceNumber:   InvoiceNumber(in.UserID, in.ExistingCount),
		Date:            now,
		CustomerName:    customerName,
		CustomerPhone:   in.CustomerPhone,
		CustomerEmail:   in.CustomerEmail,
		CustomerAddress: in.CustomerAddress,
		Items:           items,
		Subtotal:        totals.Subtotal,
		TaxRate:         in.TaxRate,
		Tax:             totals.Tax,
		Total:           totals.Total,
		AmountPaid:      0,
		AmountDue:       totals.Total,
		Status:          storage.StatusUnpaid,
		PaymentStatus:   storage.PaymentPending,
		Transcription:   in.Transcription,
		Language:        in.Language,
		CreatedAt:       now,
	}, nil
}

// ApplyPayment derives the mutable fields for a status or amount change.
// status "paid" settles the whole total; otherwise amountPaid decides the status.
// Paid is kept within [0, total] so that due always equals total minus paid.
func ApplyPayment(inv *storage.Invoice, status string, amountPaid *float64) storage.PaymentUpdate {
	paid := inv.AmountPaid
	if amountPaid != nil {
		paid = *amountPaid
	}
	if status == storage.StatusPaid {
		paid = inv.Total
	}
	if paid < 0 {
		paid = 0
	}
	if paid > inv.Total {
		paid = inv.Total
	}
	due := inv.Total - paid

	if status == "" {
		switch {
		case due == 0 && inv.Total > 0:
			status = storage.StatusPaid
		case paid > 0:
			status = storage.StatusPartial
		default:
			status = storage.StatusUnpaid
		}
	}

	paymentStatus := storage.PaymentPending
	if status == storage.StatusPaid {
		paymentStatus = storage.PaymentCompleted
	}

	return storage.PaymentUpdate{
		Status:        status,
		AmountPaid:    paid,
		AmountDue:     due,
		PaymentStatus: paymentStatus,
	}
}

// OutstandingDue sums what is still owed across a customer's invoices
func OutstandingDue(invoices []storage.Invoice) float64 {
	var due float64
	for _, inv := range invoices {
		due += inv.AmountDue
	}
	return due
}
