// razorpay.go - Payment links for invoices (Razorpay, or a local test page)

package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/bosocmputer/voicebill/internal/logger"
	"github.com/bosocmputer/voicebill/internal/storage"
)

// ErrInvalidSignature is returned when a callback was not signed with our key secret
var ErrInvalidSignature = errors.New("invalid razorpay signature")

// LinkCreator issues a payment link for a stored invoice
type LinkCreator interface {
	CreateLink(ctx context.Context, inv *storage.Invoice) (string, error)
	TestMode() bool
}

type Config struct {
	KeyID     string
	KeySecret string
	// TestModeOn links every invoice to {BackendURL}/api/test-payment/{id} instead of Razorpay
	TestModeOn bool
	BackendURL string
	BaseURL    string
	Timeout    time.Duration
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
	cfg.BackendURL = strings.TrimRight(strings.TrimSpace(cfg.BackendURL), "/")
	if !cfg.TestModeOn {
		if cfg.KeyID == "" || cfg.KeySecret == "" {
			return nil, fmt.Errorf("missing RAZORPAY_KEY_ID / RAZORPAY_KEY_SECRET (or set RAZORPAY_TEST_MODE=true)")
		}
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.razorpay.com/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}

	return &Client{
		log:        log.With("client", "RazorpayClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (c *Client) TestMode() bool { return c.cfg.TestModeOn }

// TestPageURL is the local payment page used in test mode
func (c *Client) TestPageURL(invoiceID string) string {
	return fmt.Sprintf("%s/api/test-payment/%s", c.cfg.BackendURL, invoiceID)
}

type linkCustomer struct {
	Name    string `json:"name,omitempty"`
	Contact string `json:"contact,omitempty"`
	Email   string `json:"email,omitempty"`
}

type linkNotify struct {
	SMS   bool `json:"sms"`
	Email bool `json:"email"`
}

type linkRequest struct {
	Amount         int64        `json:"amount"`
	Currency       string       `json:"currency"`
	Description    string       `json:"description"`
	ReferenceID    string       `json:"reference_id"`
	Customer       linkCustomer `json:"customer"`
	Notify         linkNotify   `json:"notify"`
	ReminderEnable bool         `json:"reminder_enable"`
	CallbackURL    string       `json:"callback_url,omitempty"`
	CallbackMethod string       `json:"callback_method,omitempty"`
}

type linkResponse struct {
	ID       string `json:"id"`
	ShortURL string `json:"short_url"`
	Status   string `json:"status"`
}

type apiError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

type HTTPError struct {
	StatusCode  int
	Code        string
	Description string
	Body        string
}

func (e *HTTPError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("razorpay http %d: %s (%s)", e.StatusCode, e.Description, e.Code)
	}
	return fmt.Sprintf("razorpay http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// AmountInPaise converts rupees to the integer minor unit Razorpay expects
func AmountInPaise(rupees float64) int64 {
	return int64(math.Round(rupees * 100))
}

func (c *Client) CreateLink(ctx context.Context, inv *storage.Invoice) (string, error) {
	if inv == nil {
		return "", fmt.Errorf("invoice required")
	}
	if c.cfg.TestModeOn {
		link := c.TestPageURL(inv.ID)
		c.log.Info("Test mode payment page", "invoice_id", inv.ID, "link", link)
		return link, nil
	}

	payload := linkRequest{
		Amount:      AmountInPaise(inv.Total),
		Currency:    "INR",
		Description: fmt.Sprintf("Invoice %s", inv.InvoiceNumber),
		ReferenceID: inv.ID,
		Customer: linkCustomer{
			Name:    inv.CustomerName,
			Contact: inv.CustomerPhone,
			Email:   inv.CustomerEmail,
		},
		Notify:         linkNotify{SMS: inv.CustomerPhone != "", Email: false},
		ReminderEnable: true,
	}
	if c.cfg.BackendURL != "" {
		payload.CallbackURL = c.cfg.BackendURL + "/api/payment-callback"
		payload.CallbackMethod = "get"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payment link: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/payment_links", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("razorpay create link: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("razorpay read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		herr := &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
		var ae apiError
		if json.Unmarshal(raw, &ae) == nil {
			herr.Code = ae.Error.Code
			herr.Description = ae.Error.Description
		}
		return "", herr
	}

	var out linkResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("razorpay decode error: %w", err)
	}
	if out.ShortURL == "" {
		return "", fmt.Errorf("razorpay returned no short_url")
	}

	c.log.Info("Payment link created", "invoice_id", inv.ID, "link_id", out.ID, "amount_paise", payload.Amount)
	return out.ShortURL, nil
}

// Callback is the query string Razorpay appends to callback_url
type Callback struct {
	PaymentID   string `form:"razorpay_payment_id"`
	LinkID      string `form:"razorpay_payment_link_id"`
	ReferenceID string `form:"razorpay_payment_link_reference_id"`
	LinkStatus  string `form:"razorpay_payment_link_status"`
	Signature   string `form:"razorpay_signature"`
}

// Paid reports whether the link was settled
func (cb Callback) Paid() bool { return cb.LinkStatus == "paid" }

// VerifyCallback checks razorpay_signature, an HMAC-SHA256 over
// link_id|reference_id|status|payment_id keyed by the key secret.
// Test mode accepts every callback.
func (c *Client) VerifyCallback(cb Callback) error {
	if c.cfg.TestModeOn {
		return nil
	}
	want := Sign(c.cfg.KeySecret, cb)
	if !hmac.Equal([]byte(want), []byte(cb.Signature)) {
		return ErrInvalidSignature
	}
	return nil
}

func Sign(secret string, cb Callback) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(cb.LinkID + "|" + cb.ReferenceID + "|" + cb.LinkStatus + "|" + cb.PaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
