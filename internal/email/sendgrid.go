// sendgrid.go - Invoice e-mail with PDF attachment via the SendGrid v3 mail API

package email

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bosocmputer/voicebill/internal/logger"
)

// Sender delivers a finished invoice to a customer mailbox
type Sender interface {
	SendInvoice(ctx context.Context, msg InvoiceEmail) error
}

type Config struct {
	APIKey    string
	BaseURL   string
	FromEmail string
	FromName  string
	Timeout   time.Duration
}

type Client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
}

func New(log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing SENDGRID_API_KEY")
	}
	if strings.TrimSpace(cfg.FromEmail) == "" {
		return nil, fmt.Errorf("missing SENDGRID_FROM_EMAIL")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.sendgrid.com"
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.FromName == "" {
		cfg.FromName = "VoiceBill"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		log:        log.With("client", "SendGridClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// InvoiceEmail is everything the invoice mail needs
type InvoiceEmail struct {
	To            string
	CustomerName  string
	InvoiceNumber string
	Total         float64
	PDF           []byte
	PaymentLink   string
	Language      string // en, hi
}

type emailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type mailSendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             emailAddress      `json:"from"`
	Subject          string            `json:"subject"`
	Content          []mailContent     `json:"content"`
	Attachments      []sgAttachment    `json:"attachments,omitempty"`
}

type personalization struct {
	To []emailAddress `json:"to"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgAttachment struct {
	Content     string `json:"content"`
	Type        string `json:"type"`
	Filename    string `json:"filename"`
	Disposition string `json:"disposition"`
}

type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = "<empty body>"
	}
	return fmt.Sprintf("sendgrid http %d: %s", e.StatusCode, msg)
}

func (c *Client) SendInvoice(ctx context.Context, msg InvoiceEmail) error {
	msg.To = strings.TrimSpace(msg.To)
	if msg.To == "" {
		return fmt.Errorf("sendgrid: recipient required")
	}

	html, err := renderBody(msg)
	if err != nil {
		return fmt.Errorf("render email body: %w", err)
	}

	payload := mailSendRequest{
		Personalizations: []personalization{{To: []emailAddress{{Email: msg.To, Name: msg.CustomerName}}}},
		From:             emailAddress{Email: c.cfg.FromEmail, Name: c.cfg.FromName},
		Subject:          Subject(msg.InvoiceNumber, msg.Language),
		Content:          []mailContent{{Type: "text/html", Value: html}},
	}
	if len(msg.PDF) > 0 {
		payload.Attachments = []sgAttachment{{
			Content:     base64.StdEncoding.EncodeToString(msg.PDF),
			Type:        "application/pdf",
			Filename:    fmt.Sprintf("invoice_%s.pdf", msg.InvoiceNumber),
			Disposition: "attachment",
		}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal mail request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	c.log.Info("Invoice email sent",
		"to", msg.To,
		"invoice_number", msg.InvoiceNumber,
		"message_id", resp.Header.Get("X-Message-Id"),
	)
	return nil
}

// Subject is the localized mail subject line
func Subject(invoiceNumber, language string) string {
	if language == "hi" {
		return fmt.Sprintf("चालान %s - VoiceBill", invoiceNumber)
	}
	return fmt.Sprintf("Invoice %s from VoiceBill", invoiceNumber)
}

type bodyLabels struct {
	Greeting string
	Intro    string
	Number   string
	Amount   string
	Currency string
	PayNow   string
	Closing  string
}

var labels = map[string]bodyLabels{
	"en": {
		Greeting: "Dear",
		Intro:    "Please find your invoice attached.",
		Number:   "Invoice Number",
		Amount:   "Total Amount",
		Currency: "Rs.",
		PayNow:   "Pay Now",
		Closing:  "Thank you for your business!",
	},
	"hi": {
		Greeting: "प्रिय",
		Intro:    "आपका चालान संलग्न है।",
		Number:   "चालान संख्या",
		Amount:   "कुल राशि",
		Currency: "₹",
		PayNow:   "अभी भुगतान करें",
		Closing:  "धन्यवाद!",
	},
}

var bodyTemplate = template.Must(template.New("invoice").Parse(`<html>
<body style="font-family: Arial, sans-serif; padding: 20px;">
<h2 style="color: #00897b;">VoiceBill</h2>
<p>{{.L.Greeting}} {{.Name}},</p>
<p>{{.L.Intro}}</p>
<div style="background: #f5f5f5; padding: 15px; border-radius: 8px; margin: 20px 0;">
<p><strong>{{.L.Number}}:</strong> {{.Number}}</p>
<p><strong>{{.L.Amount}}:</strong> {{.L.Currency}}{{.Total}}</p>
</div>
{{if .Link}}<p><a href="{{.Link}}" style="background: #00897b; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; display: inline-block;">{{.L.PayNow}}</a></p>{{end}}
<p>{{.L.Closing}}<br>VoiceBill Team</p>
</body>
</html>`))

func renderBody(msg InvoiceEmail) (string, error) {
	l, ok := labels[msg.Language]
	if !ok {
		l = labels["en"]
	}
	var buf bytes.Buffer
	err := bodyTemplate.Execute(&buf, struct {
		L      bodyLabels
		Name   string
		Number string
		Total  string
		Link   string
	}{
		L:      l,
		Name:   msg.CustomerName,
		Number: msg.InvoiceNumber,
		Total:  fmt.Sprintf("%.2f", msg.Total),
		Link:   msg.PaymentLink,
	})
	return buf.String(), err
}
