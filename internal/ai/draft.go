// draft.go - Strict schema for the extraction payload

package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bosocmputer/voicebill/internal/common"
)

const (
	// WalkInCustomer is the customer label when no name was mentioned
	WalkInCustomer = "Walk-in Customer"
	// UnspecifiedItem names the placeholder line of a failed extraction
	UnspecifiedItem = "unspecified item"
	// MaxCustomerHints bounds the known-customer list sent to the model
	MaxCustomerHints = 20
)

// ErrInvalidDraft wraps every schema violation
var ErrInvalidDraft = errors.New("invalid draft")

// Price is either a known amount or unknown. JSON null and a missing key are
// unknown; 0 is a known price.
type Price struct {
	Value float64
	Known bool
}

// KnownPrice builds a known price
func KnownPrice(v float64) Price { return Price{Value: v, Known: true} }

// UnmarshalJSON accepts a number, a numeric string, or null
func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = Price{}
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*p = KnownPrice(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("price must be a number or null: %s", string(data))
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*p = Price{}
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("price must be a number or null: %q", s)
	}
	*p = KnownPrice(n)
	return nil
}

func (p Price) MarshalJSON() ([]byte, error) {
	if !p.Known {
		return []byte("null"), nil
	}
	return json.Marshal(p.Value)
}

// Ptr converts to the storage representation, nil when unknown
func (p Price) Ptr() *float64 {
	if !p.Known {
		return nil
	}
	v := p.Value
	return &v
}

// DraftItem is one extracted line
type DraftItem struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Price    Price   `json:"price"`
}

// Draft is the extraction result before catalog resolution
type Draft struct {
	CustomerName string      `json:"customer_name"`
	Items        []DraftItem `json:"items"`
	// Fallback is set when the draft is the placeholder produced after a failure
	Fallback bool `json:"-"`
}

// ParseDraft strips fences, decodes and validates a model response
func ParseDraft(raw string) (Draft, error) {
	body := fixJSONEscaping(stripCodeFences(raw))
	if body == "" {
		return Draft{}, fmt.Errorf("%w: empty response", ErrInvalidDraft)
	}

	var d Draft
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		return Draft{}, fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}
	d.normalize()
	if err := d.Validate(); err != nil {
		return Draft{}, err
	}
	return d, nil
}

func (d *Draft) normalize() {
	d.CustomerName = strings.TrimSpace(d.CustomerName)
	if d.CustomerName == "" {
		d.CustomerName = WalkInCustomer
	}
	for i := range d.Items {
		d.Items[i].Name = strings.ToLower(strings.TrimSpace(d.Items[i].Name))
	}
}

// Validate enforces: at least one item, names non-empty, quantity > 0, known prices >= 0
func (d Draft) Validate() error {
	if len(d.Items) == 0 {
		return fmt.Errorf("%w: no items", ErrInvalidDraft)
	}
	for i, it := range d.Items {
		if strings.TrimSpace(it.Name) == "" {
			return fmt.Errorf("%w: item %d has no name", ErrInvalidDraft, i)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: item %q has quantity %v", ErrInvalidDraft, it.Name, it.Quantity)
		}
		if it.Price.Known && it.Price.Value < 0 {
			return fmt.Errorf("%w: item %q has negative price", ErrInvalidDraft, it.Name)
		}
	}
	return nil
}

// IsWalkIn reports whether no customer was named
func (d Draft) IsWalkIn() bool {
	return strings.EqualFold(strings.TrimSpace(d.CustomerName), WalkInCustomer)
}

// FallbackDraft is the placeholder used whenever extraction cannot produce a draft
func FallbackDraft(defaultPrice float64) Draft {
	return Draft{
		CustomerName: WalkInCustomer,
		Items:        []DraftItem{{Name: UnspecifiedItem, Quantity: 1, Price: KnownPrice(defaultPrice)}},
		Fallback:     true,
	}
}

// ExtractOrFallback runs the extractor and degrades to FallbackDraft on any failure.
// A failed or empty transcription skips the model call entirely.
func ExtractOrFallback(ctx context.Context, ex Extractor, req ExtractionRequest, reqCtx *common.RequestContext, defaultPrice float64) Draft {
	if IsFailedTranscript(req.Transcript) {
		reqCtx.Logger().Warn("no usable transcript, using placeholder item", "transcript", req.Transcript)
		return FallbackDraft(defaultPrice)
	}

	reqCtx.StartStep("extract_invoice")
	draft, usage, err := ex.ExtractDraft(ctx, req, reqCtx)
	if err != nil {
		reqCtx.EndStep("failed", usage, err)
		reqCtx.Logger().Warn("extraction failed, using placeholder item", "error", err)
		return FallbackDraft(defaultPrice)
	}
	reqCtx.EndStep("success", usage, nil)
	return draft
}

type priceReply struct {
	Prices []Price `json:"prices"`
}

// ParsePriceReply decodes {"prices": [...]}; nulls and negatives are rejected
func ParsePriceReply(raw string) ([]float64, error) {
	body := stripCodeFences(raw)
	if body == "" {
		return nil, errors.New("empty price response")
	}

	var r priceReply
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return nil, fmt.Errorf("decode prices: %w", err)
	}
	out := make([]float64, 0, len(r.Prices))
	for i, p := range r.Prices {
		if !p.Known {
			return nil, fmt.Errorf("price %d is null", i)
		}
		if p.Value < 0 {
			return nil, fmt.Errorf("price %d is negative", i)
		}
		out = append(out, p.Value)
	}
	return out, nil
}
