// finalize.go - Persist an invoice, then payment link, e-mail and customer stats
package conversation

import (
	"context"
	"fmt"

	"github.com/bosocmputer/voicebill/internal/common"
	"github.com/bosocmputer/voicebill/internal/email"
	"github.com/bosocmputer/voicebill/internal/processor"
	"github.com/bosocmputer/voicebill/internal/storage"
)

// finalize assembles and stores the invoice. Only the count and insert can
// fail it; every later step is best effort and only logged.
func (d *Dispatcher) finalize(ctx context.Context, reqCtx *common.RequestContext, user *storage.User, customer *storage.Customer, customerName, transcript string, items []processor.PricedItem) (*storage.Invoice, error) {
	reqCtx.StartStep("create_invoice")

	count, err := d.deps.Store.CountInvoices(ctx, user.ID)
	if err != nil {
		reqCtx.EndStep("failed", nil, err)
		return nil, fmt.Errorf("count invoices: %w", err)
	}

	in := processor.InvoiceInput{
		UserID:        user.ID,
		CustomerName:  customerName,
		Transcription: transcript,
		Language:      user.Language,
		Items:         items,
		TaxRate:       d.cfg.TaxRate,
		ExistingCount: count,
		Now:           d.cfg.Now(),
	}
	if customer != nil {
		in.CustomerID = customer.ID
		in.CustomerPhone = customer.Phone
		in.CustomerEmail = customer.Email
		in.CustomerAddress = customer.Address
	}

	inv, err := processor.Assemble(in)
	if err != nil {
		reqCtx.EndStep("failed", nil, err)
		return nil, err
	}
	if err := d.deps.Store.CreateInvoice(ctx, inv); err != nil {
		reqCtx.EndStep("failed", nil, err)
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	reqCtx.EndStep("success", nil, nil)
	reqCtx.Logger().Info("invoice created",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"customer_id", inv.CustomerID,
		"total", inv.Total,
	)

	d.attachPaymentLink(ctx, reqCtx, inv)
	d.emailInvoice(ctx, reqCtx, inv)

	if inv.CustomerID != "" {
		if err := d.deps.Store.RecordPurchase(ctx, inv.CustomerID, inv.Total, inv.AmountDue, d.cfg.Now()); err != nil {
			reqCtx.LogWarning("customer stats not updated for %s: %v", inv.CustomerID, err)
		}
	}
	return inv, nil
}

func (d *Dispatcher) attachPaymentLink(ctx context.Context, reqCtx *common.RequestContext, inv *storage.Invoice) {
	if d.deps.Payments == nil {
		return
	}
	reqCtx.StartStep("payment_link")
	link, err := d.deps.Payments.CreateLink(ctx, inv)
	if err != nil {
		reqCtx.EndStep("failed", nil, err)
		return
	}
	if err := d.deps.Store.SetPaymentLink(ctx, inv.ID, link); err != nil {
		reqCtx.EndStep("failed", nil, err)
		return
	}
	inv.PaymentLink = link
	reqCtx.EndStep("success", nil, nil)
}

func (d *Dispatcher) emailInvoice(ctx context.Context, reqCtx *common.RequestContext, inv *storage.Invoice) {
	if inv.CustomerEmail == "" || d.deps.Mailer == nil || d.deps.PDF == nil {
		return
	}
	reqCtx.StartStep("email_invoice")
	pdf, err := d.deps.PDF.Bytes(inv)
	if err != nil {
		reqCtx.EndStep("failed", nil, err)
		return
	}
	err = d.deps.Mailer.SendInvoice(ctx, email.InvoiceEmail{
		To:            inv.CustomerEmail,
		CustomerName:  inv.CustomerName,
		InvoiceNumber: inv.InvoiceNumber,
		Total:         inv.Total,
		PDF:           pdf,
		PaymentLink:   inv.PaymentLink,
		Language:      inv.Language,
	})
	if err != nil {
		reqCtx.EndStep("failed", nil, err)
		return
	}
	if err := d.deps.Store.MarkEmailSent(ctx, inv.ID); err != nil {
		reqCtx.LogWarning("email_sent flag not stored: %v", err)
	}
	inv.EmailSent = true
	reqCtx.EndStep("success", nil, nil)
}
