// invoices.go - Invoice management, PDF download and payments

package api

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/bosocmputer/voicebill/internal/conversation"
	"github.com/bosocmputer/voicebill/internal/payment"
	"github.com/bosocmputer/voicebill/internal/processor"
	"github.com/bosocmputer/voicebill/internal/storage"
	"github.com/gin-gonic/gin"
)

func (h *Handler) ListInvoices(c *gin.Context) {
	invoices, err := h.deps.Store.ListInvoices(c.Request.Context(), c.Query("user_id"), listLimit)
	if err != nil {
		h.writeError(c, "invoices", err)
		return
	}
	c.JSON(http.StatusOK, invoices)
}

func (h *Handler) GetInvoice(c *gin.Context) {
	inv, err := h.deps.Store.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, "invoice", err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *Handler) DeleteInvoice(c *gin.Context) {
	if err := h.deps.Store.DeleteInvoice(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, "invoice", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Invoice deleted successfully"})
}

type invoiceUpdate struct {
	Status     string   `json:"status" binding:"omitempty,oneof=paid partial unpaid"`
	AmountPaid *float64 `json:"amount_paid" binding:"omitempty,gte=0"`
	PaymentID  string   `json:"payment_id"`
}

// UpdateInvoice changes status and payment amounts only. "paid" settles the
// full total; the linked customer's due is rebuilt from all their invoices.
func (h *Handler) UpdateInvoice(c *gin.Context) {
	var in invoiceUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	if in.Status == "" && in.AmountPaid == nil {
		badRequest(c, errors.New("status or amount_paid required"))
		return
	}

	ctx := c.Request.Context()
	inv, err := h.deps.Store.GetInvoice(ctx, c.Param("id"))
	if err != nil {
		h.writeError(c, "invoice", err)
		return
	}

	update := processor.ApplyPayment(inv, in.Status, in.AmountPaid)
	update.PaymentID = in.PaymentID
	if err := h.applyPayment(ctx, inv, update); err != nil {
		h.writeError(c, "invoice", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Invoice updated successfully", "status": update.Status})
}

// applyPayment stores the update, refreshes the customer's due and tells the
// shop when the invoice became paid
func (h *Handler) applyPayment(ctx context.Context, inv *storage.Invoice, update storage.PaymentUpdate) error {
	if err := h.deps.Store.UpdatePayment(ctx, inv.ID, update); err != nil {
		return err
	}
	wasPaid := inv.Status == storage.StatusPaid

	if inv.CustomerID != "" {
		if err := h.refreshCustomerDue(ctx, inv.CustomerID); err != nil {
			h.log.Warn("customer due not refreshed", "customer_id", inv.CustomerID, "error", err)
		}
	}
	if update.Status == storage.StatusPaid && !wasPaid {
		h.notifyPaid(ctx, inv)
	}
	h.log.Info("invoice payment updated", "invoice_id", inv.ID, "status", update.Status, "amount_due", update.AmountDue)
	return nil
}

func (h *Handler) refreshCustomerDue(ctx context.Context, customerID string) error {
	invoices, err := h.deps.Store.ListCustomerInvoices(ctx, customerID)
	if err != nil {
		return fmt.Errorf("list customer invoices: %w", err)
	}
	return h.deps.Store.SetCustomerDue(ctx, customerID, processor.OutstandingDue(invoices))
}

func (h *Handler) notifyPaid(ctx context.Context, inv *storage.Invoice) {
	if h.deps.Messenger == nil {
		return
	}
	user, err := h.deps.Store.GetUser(ctx, inv.UserID)
	if err != nil {
		h.log.Warn("payment notice skipped, user unavailable", "user_id", inv.UserID, "error", err)
		return
	}
	msg := conversation.PaymentReceivedMessage(user.Language, inv.InvoiceNumber)
	if err := h.deps.Messenger.Send(ctx, "whatsapp:"+user.Phone, msg); err != nil {
		h.log.Warn("payment notice not sent", "invoice_id", inv.ID, "error", err)
	}
}

func (h *Handler) InvoicePDF(c *gin.Context) {
	inv, err := h.deps.Store.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, "invoice", err)
		return
	}
	doc, err := h.deps.PDF.Bytes(inv)
	if err != nil {
		h.log.Error("PDF generation error", "invoice_id", inv.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate PDF"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=invoice_%s.pdf", inv.InvoiceNumber))
	c.Data(http.StatusOK, "application/pdf", doc)
}

func (h *Handler) CreatePayment(c *gin.Context) {
	if h.deps.Payments == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payments not configured"})
		return
	}
	ctx := c.Request.Context()
	inv, err := h.deps.Store.GetInvoice(ctx, c.Param("id"))
	if err != nil {
		h.writeError(c, "invoice", err)
		return
	}
	link, err := h.deps.Payments.CreateLink(ctx, inv)
	if err != nil {
		h.log.Error("Payment link creation error", "invoice_id", inv.ID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to create payment link"})
		return
	}
	if err := h.deps.Store.SetPaymentLink(ctx, inv.ID, link); err != nil {
		h.writeError(c, "invoice", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"payment_link": link,
		"invoice_id":   inv.ID,
		"test_mode":    h.deps.Payments.TestMode(),
	})
}

// PaymentCallback handles the Razorpay redirect after checkout
func (h *Handler) PaymentCallback(c *gin.Context) {
	if h.deps.Callbacks == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "payments not configured"})
		return
	}
	var cb payment.Callback
	if err := c.ShouldBindQuery(&cb); err != nil || cb.ReferenceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "missing callback parameters"})
		return
	}
	if err := h.deps.Callbacks.VerifyCallback(cb); err != nil {
		h.log.Warn("payment callback rejected", "invoice_id", cb.ReferenceID, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid signature"})
		return
	}

	if cb.Paid() {
		if err := h.markPaid(c.Request.Context(), cb.ReferenceID, cb.PaymentID); err != nil {
			h.writeError(c, "invoice", err)
			return
		}
		h.log.Info("Invoice marked as paid", "invoice_id", cb.ReferenceID, "payment_id", cb.PaymentID)
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Payment processed"})
}

func (h *Handler) markPaid(ctx context.Context, invoiceID, paymentID string) error {
	inv, err := h.deps.Store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}
	update := processor.ApplyPayment(inv, storage.StatusPaid, nil)
	update.PaymentID = paymentID
	return h.applyPayment(ctx, inv, update)
}

var testPaymentPage = template.Must(template.New("pay").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Pay {{.InvoiceNumber}}</title>
<style>
body { font-family: sans-serif; background: #f4f6fb; display: flex; justify-content: center; padding: 40px 12px; }
.card { background: #fff; border-radius: 12px; padding: 28px; max-width: 420px; width: 100%; box-shadow: 0 4px 20px rgba(0,0,0,.08); }
.badge { background: #fff3cd; color: #856404; padding: 6px 10px; border-radius: 6px; font-size: 13px; }
.row { display: flex; justify-content: space-between; margin: 10px 0; }
.total { font-size: 24px; font-weight: bold; }
button { width: 100%; padding: 14px; margin-top: 18px; border: 0; border-radius: 8px; background: #2563eb; color: #fff; font-size: 16px; cursor: pointer; }
#done { display: none; color: #15803d; font-weight: bold; margin-top: 16px; text-align: center; }
</style>
</head>
<body>
<div class="card">
<span class="badge">TEST MODE - no real money is charged</span>
<h2>Invoice {{.InvoiceNumber}}</h2>
<div class="row"><span>Customer</span><span>{{.CustomerName}}</span></div>
<div class="row"><span>Status</span><span>{{.Status}}</span></div>
<div class="row total"><span>Total</span><span>₹{{printf "%.2f" .Total}}</span></div>
{{if eq .Status "paid"}}<p id="paid">✅ This invoice is already paid.</p>{{else}}
<button id="pay" onclick="pay()">Pay ₹{{printf "%.2f" .Total}}</button>
<p id="done">✅ Payment successful. You can close this page.</p>
<script>
async function pay() {
  const btn = document.getElementById('pay');
  btn.disabled = true;
  const res = await fetch({{.SuccessPath}}, {method: 'POST'});
  if (res.ok) { btn.style.display = 'none'; document.getElementById('done').style.display = 'block'; }
  else { btn.disabled = false; alert('Payment failed, please retry.'); }
}
</script>{{end}}
</div>
</body>
</html>`))

type testPageData struct {
	InvoiceNumber string
	CustomerName  string
	Status        string
	Total         float64
	SuccessPath   string
}

// TestPaymentPage is the stand-in checkout served when payments run in test mode
func (h *Handler) TestPaymentPage(c *gin.Context) {
	inv, err := h.deps.Store.GetInvoice(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		c.Data(http.StatusNotFound, "text/html; charset=utf-8", []byte("<h1>Invoice not found</h1>"))
		return
	}
	if err != nil {
		h.writeError(c, "invoice", err)
		return
	}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	err = testPaymentPage.Execute(c.Writer, testPageData{
		InvoiceNumber: inv.InvoiceNumber,
		CustomerName:  inv.CustomerName,
		Status:        inv.Status,
		Total:         inv.Total,
		SuccessPath:   "/api/test-payment-success/" + inv.ID,
	})
	if err != nil {
		h.log.Error("test payment page render failed", "invoice_id", inv.ID, "error", err)
	}
}

// TestPaymentSuccess settles an invoice from the test page; live mode refuses it
func (h *Handler) TestPaymentSuccess(c *gin.Context) {
	if h.deps.Payments == nil || !h.deps.Payments.TestMode() {
		c.JSON(http.StatusForbidden, gin.H{"status": "error", "message": "test payments disabled"})
		return
	}
	id := c.Param("id")
	paymentID := "test_payment_" + id
	if len(id) > 8 {
		paymentID = "test_payment_" + id[:8]
	}
	if err := h.markPaid(c.Request.Context(), id, paymentID); err != nil {
		h.writeError(c, "invoice", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Test payment completed"})
}
