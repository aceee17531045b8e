// twilio.go - WhatsApp delivery and media download over the Twilio REST API

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bosocmputer/voicebill/internal/logger"
)

// MaxBodyLength is the longest body Twilio accepts for one WhatsApp message
const MaxBodyLength = 1600

// Messenger sends outbound chat messages
type Messenger interface {
	Send(ctx context.Context, to, body string) error
}

// MediaFetcher downloads inbound media attached to a webhook
type MediaFetcher interface {
	DownloadMedia(ctx context.Context, mediaURL string) ([]byte, string, error)
}

type Config struct {
	AccountSID string
	AuthToken  string
	From       string // e.g. whatsapp:+14155238886
	BaseURL    string
	Timeout    time.Duration
	// MaxMediaBytes caps a downloaded attachment
	MaxMediaBytes int64
}

// Client implements Messenger and MediaFetcher
type Client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
}

func New(log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg.AccountSID = strings.TrimSpace(cfg.AccountSID)
	cfg.AuthToken = strings.TrimSpace(cfg.AuthToken)
	if cfg.AccountSID == "" {
		return nil, fmt.Errorf("missing TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		return nil, fmt.Errorf("missing TWILIO_AUTH_TOKEN")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, fmt.Errorf("missing TWILIO_WHATSAPP_NUMBER")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.twilio.com/2010-04-01"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxMediaBytes <= 0 {
		cfg.MaxMediaBytes = 16 << 20
	}

	return &Client{
		log:        log.With("client", "TwilioClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type messageResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type HTTPError struct {
	StatusCode int
	Body       string
	APIError   *apiError
}

func (e *HTTPError) Error() string {
	if e.APIError != nil && e.APIError.Message != "" {
		return fmt.Sprintf("twilio http %d: %s (code=%d)", e.StatusCode, e.APIError.Message, e.APIError.Code)
	}
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = "<empty body>"
	}
	if len(msg) > 500 {
		msg = msg[:500] + "..."
	}
	return fmt.Sprintf("twilio http %d: %s", e.StatusCode, msg)
}

// Send delivers body to a whatsapp:+... address, splitting it when it exceeds MaxBodyLength.
// Failures are returned once; callers log them and move on.
func (c *Client) Send(ctx context.Context, to, body string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return fmt.Errorf("twilio: recipient required")
	}
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("twilio: body required")
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.cfg.BaseURL, c.cfg.AccountSID)
	for _, part := range SplitBody(body, MaxBodyLength) {
		form := url.Values{}
		form.Set("From", c.cfg.From)
		form.Set("To", to)
		form.Set("Body", part)

		msg, err := c.postForm(ctx, endpoint, form)
		if err != nil {
			return err
		}
		c.log.Info("Twilio message sent", "to", to, "sid", msg.SID, "status", msg.Status)
	}
	return nil
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) (*messageResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twilio send: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("twilio read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ae apiError
		if json.Unmarshal(raw, &ae) == nil && ae.Message != "" {
			return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw), APIError: &ae}
		}
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var out messageResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("twilio decode error: %w", err)
		}
	}
	return &out, nil
}

// DownloadMedia fetches a MediaUrlN attachment with the account credentials.
// It returns the bytes and the Content-Type reported by Twilio.
func (c *Client) DownloadMedia(ctx context.Context, mediaURL string) ([]byte, string, error) {
	if strings.TrimSpace(mediaURL) == "" {
		return nil, "", fmt.Errorf("twilio: media url required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, "", &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxMediaBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read media: %w", err)
	}
	if int64(len(data)) > c.cfg.MaxMediaBytes {
		return nil, "", fmt.Errorf("media exceeds %d bytes", c.cfg.MaxMediaBytes)
	}

	c.log.Debug("Media downloaded", "bytes", len(data), "content_type", resp.Header.Get("Content-Type"))
	return data, resp.Header.Get("Content-Type"), nil
}

// SplitBody cuts body into chunks of at most limit runes, preferring line breaks
func SplitBody(body string, limit int) []string {
	runes := []rune(body)
	if limit <= 0 || len(runes) <= limit {
		return []string{body}
	}

	var parts []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		parts = append(parts, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
