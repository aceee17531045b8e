package ai

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/bosocmputer/voicebill/internal/common"
	"github.com/bosocmputer/voicebill/internal/logger"
	"github.com/stretchr/testify/require"
)

func TestParseDraft(t *testing.T) {
	d, err := ParseDraft("```json\n{\"customer_name\": \"Amit\", \"items\": [{\"name\": \" Rice \", \"quantity\": 2, \"price\": null}, {\"name\": \"almond\", \"quantity\": 1, \"price\": 600}]}\n```")
	require.NoError(t, err)
	require.Equal(t, "Amit", d.CustomerName)
	require.Len(t, d.Items, 2)
	require.Equal(t, "rice", d.Items[0].Name)
	require.False(t, d.Items[0].Price.Known)
	require.True(t, d.Items[1].Price.Known)
	require.Equal(t, 600.0, d.Items[1].Price.Value)
	require.False(t, d.IsWalkIn())
}

func TestParseDraft_PriceForms(t *testing.T) {
	d, err := ParseDraft(`{"customer_name": "", "items": [
		{"name": "a", "quantity": 1},
		{"name": "b", "quantity": 1, "price": 0},
		{"name": "c", "quantity": 1, "price": "45.5"},
		{"name": "d", "quantity": 1, "price": ""}
	]}`)
	require.NoError(t, err)
	require.True(t, d.IsWalkIn())
	require.Equal(t, WalkInCustomer, d.CustomerName)

	require.False(t, d.Items[0].Price.Known)
	require.Equal(t, KnownPrice(0), d.Items[1].Price)
	require.Equal(t, KnownPrice(45.5), d.Items[2].Price)
	require.False(t, d.Items[3].Price.Known)
}

func TestParseDraft_Rejects(t *testing.T) {
	bad := map[string]string{
		"not json":         "sorry, I could not find any items",
		"empty":            "  ",
		"no items":         `{"customer_name": "Amit", "items": []}`,
		"blank name":       `{"items": [{"name": " ", "quantity": 1, "price": null}]}`,
		"zero quantity":    `{"items": [{"name": "rice", "quantity": 0, "price": null}]}`,
		"negative price":   `{"items": [{"name": "rice", "quantity": 1, "price": -5}]}`,
		"price wrong type": `{"items": [{"name": "rice", "quantity": 1, "price": true}]}`,
	}
	for name, raw := range bad {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDraft(raw)
			require.ErrorIs(t, err, ErrInvalidDraft)
		})
	}
}

func TestPrice_MarshalRoundTrip(t *testing.T) {
	b, err := json.Marshal([]Price{{}, KnownPrice(50)})
	require.NoError(t, err)
	require.JSONEq(t, `[null, 50]`, string(b))
	require.Nil(t, Price{}.Ptr())
	require.Equal(t, 50.0, *KnownPrice(50).Ptr())
}

func TestParsePriceReply(t *testing.T) {
	prices, err := ParsePriceReply("```\n{\"prices\": [100, 200.5]}\n```")
	require.NoError(t, err)
	require.Equal(t, []float64{100, 200.5}, prices)

	prices, err = ParsePriceReply(`{"prices": []}`)
	require.NoError(t, err)
	require.Empty(t, prices)

	_, err = ParsePriceReply(`{"prices": [null]}`)
	require.Error(t, err)
	_, err = ParsePriceReply(`{"prices": [-1]}`)
	require.Error(t, err)
	_, err = ParsePriceReply(`forty`)
	require.Error(t, err)
}

func TestStripCodeFences(t *testing.T) {
	require.Equal(t, `{"a":1}`, stripCodeFences("```json\n{\"a\":1}\n```"))
	require.Equal(t, `{"a":1}`, stripCodeFences("Here you go:\n```\n{\"a\":1}\n```\nthanks"))
	require.Equal(t, `{"a":1}`, stripCodeFences("```json\n{\"a\":1}"))
	require.Equal(t, `{"a":1}`, stripCodeFences("  {\"a\":1}  "))
}

func TestFixJSONEscaping(t *testing.T) {
	var out map[string]string
	require.NoError(t, json.Unmarshal([]byte(fixJSONEscaping("{\"name\": \"two\nlines\"}")), &out))
	require.Equal(t, "two\nlines", out["name"])
}

type stubExtractor struct {
	draft Draft
	err   error
	calls int
}

func (s *stubExtractor) ExtractDraft(context.Context, ExtractionRequest, *common.RequestContext) (Draft, *common.TokenUsage, error) {
	s.calls++
	return s.draft, nil, s.err
}

func TestExtractOrFallback(t *testing.T) {
	ctx := context.Background()
	rc := common.NewRequestContext(logger.Nop(), "whatsapp:+910000000000")

	ok := &stubExtractor{draft: Draft{CustomerName: "Amit", Items: []DraftItem{{Name: "rice", Quantity: 2}}}}
	d := ExtractOrFallback(ctx, ok, ExtractionRequest{Transcript: "sold 2 rice to Amit"}, rc, 100)
	require.False(t, d.Fallback)
	require.Equal(t, "Amit", d.CustomerName)

	failing := &stubExtractor{err: errors.New("boom")}
	d = ExtractOrFallback(ctx, failing, ExtractionRequest{Transcript: "sold 2 rice"}, rc, 100)
	require.True(t, d.Fallback)
	require.Equal(t, WalkInCustomer, d.CustomerName)
	require.Equal(t, []DraftItem{{Name: UnspecifiedItem, Quantity: 1, Price: KnownPrice(100)}}, d.Items)

	for _, marker := range []string{TranscriptionFailed, NoSpeechDetected, ""} {
		skipped := &stubExtractor{}
		d = ExtractOrFallback(ctx, skipped, ExtractionRequest{Transcript: marker}, rc, 100)
		require.True(t, d.Fallback)
		require.Zero(t, skipped.calls)
	}
}

func TestBuildExtractionSystemInstruction(t *testing.T) {
	names := make([]string, 30)
	for i := range names {
		names[i] = string(rune('A' + i%26))
	}
	s := BuildExtractionSystemInstruction("Available products in catalog:\n- rice: Rs. 50\n", names)
	require.Contains(t, s, "- rice: Rs. 50")
	require.Contains(t, s, "Known customers: A, B")
	require.NotContains(t, s, "Z, A")
}

func TestDisabledProviderFallsBack(t *testing.T) {
	reqCtx := common.NewRequestContext(logger.Nop(), "test")
	text := TranscribeOrMarker(context.Background(), Disabled{}, []byte("x"), "audio/ogg", reqCtx)
	require.Equal(t, TranscriptionFailed, text)

	d := ExtractOrFallback(context.Background(), Disabled{}, ExtractionRequest{Transcript: "sold rice"}, reqCtx, 100)
	require.True(t, d.Fallback)

	_, _, err := Disabled{}.ParsePrices(context.Background(), "40", reqCtx)
	require.ErrorIs(t, err, ErrProviderDisabled)
}
