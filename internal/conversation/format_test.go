package conversation

import (
	"strings"
	"testing"
	"time"

	"github.com/bosocmputer/voicebill/internal/storage"
	"github.com/stretchr/testify/require"
)

func sampleInvoice() *storage.Invoice {
	return &storage.Invoice{
		ID:            "inv-1",
		InvoiceNumber: "INV-user-000-0003",
		Date:          time.Date(2026, 3, 14, 9, 5, 0, 0, time.UTC),
		CustomerName:  "Amit",
		CustomerPhone: "+911111111111",
		Items: []storage.InvoiceItem{
			{Name: "rice", Quantity: 2, Price: 50, Total: 100},
			{Name: "oil", Quantity: 0.5, Price: 200, Total: 100},
		},
		Subtotal:  200,
		TaxRate:   0.18,
		Tax:       36,
		Total:     236,
		AmountDue: 236,
	}
}

func TestFormatInvoice_English(t *testing.T) {
	out := FormatInvoice(sampleInvoice(), "en", "https://bill.example.com/")

	require.True(t, strings.HasPrefix(out, "📄 INVOICE\n"))
	require.Contains(t, out, "INV-user-000-0003")
	require.Contains(t, out, "2026-03-14 09:05")
	require.Contains(t, out, "📱")
	require.NotContains(t, out, "📧")
	require.Contains(t, out, "\n• rice\n  Quantity: 2 × ₹50.00 = ₹100.00")
	require.Contains(t, out, "0.5 × ₹200.00")
	require.Contains(t, out, "(18%)")
	require.Contains(t, out, "₹236.00")
	require.Contains(t, out, "https://bill.example.com/api/invoices/inv-1/pdf")
	require.Contains(t, out, "💳 Payment Due")
	require.NotContains(t, out, "Amount Paid")
}

func TestFormatInvoice_FractionalTaxRate(t *testing.T) {
	inv := sampleInvoice()
	inv.TaxRate = 0.125
	inv.Tax = 25
	out := FormatInvoice(inv, "en", "")
	require.Contains(t, out, "(12.5%)")
	require.NotContains(t, out, "(13%)")
}

func TestFormatInvoice_PaidAndLinked(t *testing.T) {
	inv := sampleInvoice()
	inv.AmountPaid = 100
	inv.AmountDue = 136
	inv.PaymentLink = "https://rzp.io/l/abc"

	out := FormatInvoice(inv, "en", "https://bill.example.com")
	require.Contains(t, out, "₹100.00")
	require.Contains(t, out, "₹136.00")
	require.Contains(t, out, "https://rzp.io/l/abc")
	require.NotContains(t, out, "On delivery")
}

func TestFormatInvoice_Hindi(t *testing.T) {
	out := FormatInvoice(sampleInvoice(), "hi", "https://bill.example.com")
	require.True(t, strings.HasPrefix(out, "📄 चालान"))
	require.Contains(t, out, "कुल योग")
}

func TestAskPriceMessage(t *testing.T) {
	msg := AskPriceMessage("en", []string{"sugar", "salt"})
	require.Contains(t, msg, "sugar, salt")
	require.Empty(t, AskPriceMessage("en", nil))
}

func TestForUnknownLanguageFallsBackToEnglish(t *testing.T) {
	require.Equal(t, For("en"), For("fr"))
	require.NotEqual(t, For("en").Help, For("hi").Help)
}

func TestNormalizePhone(t *testing.T) {
	require.Equal(t, "+919876543210", NormalizePhone(" whatsapp:+919876543210 "))
	require.Equal(t, "+919876543210", NormalizePhone("+919876543210"))
}

func TestPaymentReceivedMessage(t *testing.T) {
	require.Equal(t, "✅ Payment received for invoice INV-1. Thank you!", PaymentReceivedMessage("en", "INV-1"))
}
