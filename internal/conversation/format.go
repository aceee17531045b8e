// format.go - WhatsApp text rendering of invoices and listings

package conversation

import (
	"fmt"
	"strings"

	"github.com/bosocmputer/voicebill/internal/processor"
	"github.com/bosocmputer/voicebill/internal/storage"
)

const rule = "━━━━━━━━━━━━━━━━━━━━━━━"

// FormatInvoice renders the chat summary of an invoice in lang.
// backendURL is the public base used for the PDF download link.
func FormatInvoice(inv *storage.Invoice, lang, backendURL string) string {
	t := func(key string) string { return label(key, lang) }

	lines := []string{
		"📄 " + t("invoice"),
		rule,
		fmt.Sprintf("%s: %s", t("invoice_number"), inv.InvoiceNumber),
		fmt.Sprintf("%s: %s", t("date"), inv.Date.Format("2006-01-02 15:04")),
		fmt.Sprintf("%s: %s", t("customer"), inv.CustomerName),
	}
	if inv.CustomerPhone != "" {
		lines = append(lines, fmt.Sprintf("📱 %s: %s", t("phone"), inv.CustomerPhone))
	}
	if inv.CustomerEmail != "" {
		lines = append(lines, fmt.Sprintf("📧 %s: %s", t("email"), inv.CustomerEmail))
	}

	lines = append(lines, "", t("items")+":")
	for _, it := range inv.Items {
		lines = append(lines,
			"\n• "+it.Name,
			fmt.Sprintf("  %s: %s × ₹%.2f = ₹%.2f", t("quantity"), processor.FormatQuantity(it.Quantity), it.Price, it.Total),
		)
	}

	lines = append(lines,
		"",
		rule,
		fmt.Sprintf("%s:    ₹%.2f", t("subtotal"), inv.Subtotal),
		fmt.Sprintf("%s (%s%%):      ₹%.2f", t("tax"), processor.FormatPercent(inv.TaxRate), inv.Tax),
		rule,
		fmt.Sprintf("%s:       ₹%.2f", t("grand_total"), inv.Total),
		"",
	)

	if inv.AmountPaid > 0 {
		lines = append(lines,
			fmt.Sprintf("%s:  ₹%.2f", t("amount_paid"), inv.AmountPaid),
			fmt.Sprintf("%s:   ₹%.2f", t("amount_due"), inv.AmountDue),
			"",
		)
	}

	lines = append(lines, fmt.Sprintf("📄 %s:", t("download_pdf")), PDFLink(backendURL, inv.ID), "")

	if inv.PaymentLink != "" {
		lines = append(lines, fmt.Sprintf("💳 %s:", t("pay_now")), inv.PaymentLink, "")
	} else {
		lines = append(lines, "💳 "+t("payment_due"), "")
	}

	lines = append(lines, t("thank_you"))
	return strings.Join(lines, "\n")
}

// PDFLink is the public download URL of an invoice PDF
func PDFLink(backendURL, invoiceID string) string {
	return fmt.Sprintf("%s/api/invoices/%s/pdf", strings.TrimRight(backendURL, "/"), invoiceID)
}

func formatInvoiceList(invoices []storage.Invoice, msgs Messages) string {
	if len(invoices) == 0 {
		return msgs.NoInvoices
	}
	var b strings.Builder
	b.WriteString(msgs.RecentInvoices)
	for _, inv := range invoices {
		fmt.Fprintf(&b, "• %s - ₹%.2f (%s)\n", inv.InvoiceNumber, inv.Total, inv.Date.Format("2006-01-02"))
	}
	return b.String()
}

func formatCustomerList(customers []storage.Customer, msgs Messages) string {
	if len(customers) == 0 {
		return msgs.NoCustomers
	}
	var b strings.Builder
	b.WriteString(msgs.Customers)
	for _, c := range customers {
		b.WriteString("• " + c.Name)
		if c.Phone != "" {
			b.WriteString(" (" + c.Phone + ")")
		}
		if c.TotalDue > 0 {
			fmt.Fprintf(&b, " - due ₹%.2f", c.TotalDue)
		}
		b.WriteString("\n")
	}
	return b.String()
}
