// pipeline.go - Voice note to invoice, and draft completion from a price reply

package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bosocmputer/voicebill/internal/ai"
	"github.com/bosocmputer/voicebill/internal/common"
	"github.com/bosocmputer/voicebill/internal/pending"
	"github.com/bosocmputer/voicebill/internal/processor"
	"github.com/bosocmputer/voicebill/internal/storage"
	"github.com/google/uuid"
)

// processVoice runs download, transcription, extraction and resolution for one
// audio attachment, then either finalizes the invoice or parks a draft.
func (d *Dispatcher) processVoice(ctx context.Context, reqCtx *common.RequestContext, user *storage.User, to string, media Media) Reply {
	msgs := For(user.Language)
	replies := []string{msgs.Processing}

	// Step 1: Download and transcribe
	transcript := d.transcribe(ctx, reqCtx, media)

	// Step 2: Load the catalog and customer hints
	catalog := d.loadCatalog(ctx, reqCtx, user.ID)
	hints := d.customerHints(ctx, reqCtx, user.ID)

	// Step 3: Extract the draft
	req := ai.ExtractionRequest{Transcript: transcript, CustomerNames: hints}
	if catalog.Len() > 0 {
		req.CatalogText = catalog.Render()
	}
	draft := ai.ExtractOrFallback(ctx, d.deps.Extractor, req, reqCtx, d.cfg.DefaultItemPrice)

	// Step 4: Resolve prices against the catalog
	items := resolvePrices(reqCtx, catalog, draft.Items)

	// Step 5: Resolve the customer
	customer := d.resolveCustomer(ctx, reqCtx, user.ID, draft)
	customerName := draft.CustomerName
	customerID := ""
	if customer != nil {
		customerName = customer.Name
		customerID = customer.ID
	}

	// Step 6a: Park a draft when any price is still unknown
	machine := pending.New(nil)
	err := machine.Begin(storage.PendingInvoice{
		ID:            uuid.New().String(),
		UserID:        user.ID,
		CustomerName:  customerName,
		CustomerID:    customerID,
		Items:         items,
		Transcription: transcript,
		CreatedAt:     d.cfg.Now(),
	})
	if err == nil {
		missing := machine.MissingNames()
		if err := pending.Save(ctx, d.deps.Store, machine); err != nil {
			reqCtx.LogError("could not park draft: %v", err)
			return replyWith(append(replies, fmt.Sprintf(msgs.PriceUnavailable, strings.Join(missing, ", ")))...)
		}
		reqCtx.LogInfo("draft awaiting prices for %v", missing)
		return replyWith(append(replies, AskPriceMessage(user.Language, missing))...)
	}
	if !errors.Is(err, pending.ErrNothingMissing) {
		reqCtx.LogError("begin draft: %v", err)
		return replyWith(append(replies, msgs.Error)...)
	}

	// Step 6b: Every price known, finalize now
	priced := make([]processor.PricedItem, 0, len(items))
	for _, it := range items {
		priced = append(priced, processor.PricedItem{Name: it.Name, Quantity: it.Quantity, Price: *it.Price})
	}
	inv, err := d.finalize(ctx, reqCtx, user, customer, customerName, transcript, priced)
	if err != nil {
		reqCtx.LogError("finalize invoice: %v", err)
		return replyWith(append(replies, msgs.Error)...)
	}

	text := FormatInvoice(inv, user.Language, d.cfg.BackendURL)
	return replyWith(append(replies, d.deliver(ctx, reqCtx, to, text)...)...)
}

// AskPriceMessage asks for the missing item prices in draft order
func AskPriceMessage(lang string, missing []string) string {
	if len(missing) == 0 {
		return ""
	}
	return fmt.Sprintf(For(lang).AskPrice, strings.Join(missing, ", "), missing[0])
}

func (d *Dispatcher) transcribe(ctx context.Context, reqCtx *common.RequestContext, media Media) string {
	reqCtx.StartStep("download_media")
	audio, contentType, err := d.deps.Media.DownloadMedia(ctx, media.URL)
	if err != nil {
		reqCtx.EndStep("failed", nil, err)
		return ai.TranscriptionFailed
	}
	reqCtx.EndStep("success", nil, nil)

	mimeType := media.ContentType
	if mimeType == "" {
		mimeType = contentType
	}
	return ai.TranscribeOrMarker(ctx, d.deps.Transcriber, audio, mimeType, reqCtx)
}

// loadCatalog merges shared defaults with the user's products; a store error
// leaves that half of the catalog empty
func (d *Dispatcher) loadCatalog(ctx context.Context, reqCtx *common.RequestContext, userID string) *processor.Catalog {
	defaults, err := d.deps.Store.ListProducts(ctx, storage.DefaultUserID)
	if err != nil {
		reqCtx.LogWarning("default products unavailable: %v", err)
		defaults = nil
	}
	own, err := d.deps.Store.ListProducts(ctx, userID)
	if err != nil {
		reqCtx.LogWarning("user products unavailable: %v", err)
		own = nil
	}
	return processor.NewCatalog(defaults, own)
}

func (d *Dispatcher) customerHints(ctx context.Context, reqCtx *common.RequestContext, userID string) []string {
	customers, err := d.deps.Store.ListCustomers(ctx, []string{userID, storage.DefaultUserID}, ai.MaxCustomerHints)
	if err != nil {
		reqCtx.LogWarning("customer hints unavailable: %v", err)
		return nil
	}
	names := make([]string, 0, len(customers))
	for _, c := range customers {
		names = append(names, c.Name)
	}
	return names
}

// resolvePrices keeps stated prices and fills the rest from the catalog.
// Items the catalog cannot price keep a nil price.
func resolvePrices(reqCtx *common.RequestContext, catalog *processor.Catalog, drafted []ai.DraftItem) []storage.DraftItem {
	items := make([]storage.DraftItem, 0, len(drafted))
	for _, it := range drafted {
		item := storage.DraftItem{Name: it.Name, Quantity: it.Quantity, Price: it.Price.Ptr()}
		if item.Price == nil {
			match := catalog.Match(it.Name)
			if match.Found {
				price := match.Price
				item.Price = &price
				reqCtx.Logger().Debug("catalog price applied", "item", it.Name, "catalog_name", match.Name, "method", match.Method, "price", price)
			}
		}
		items = append(items, item)
	}
	return items
}

// resolveCustomer links the extracted name to a stored customer, nil for walk-ins and misses
func (d *Dispatcher) resolveCustomer(ctx context.Context, reqCtx *common.RequestContext, userID string, draft ai.Draft) *storage.Customer {
	if draft.IsWalkIn() {
		return nil
	}
	res, err := processor.MatchCustomer(ctx, d.deps.Store, userID, draft.CustomerName)
	if err != nil {
		reqCtx.LogWarning("customer lookup failed, using literal name: %v", err)
		return nil
	}
	if !res.Found {
		reqCtx.LogInfo("no customer match for %q", draft.CustomerName)
		return nil
	}
	reqCtx.Logger().Info("customer matched",
		"name", draft.CustomerName,
		"customer", res.Customer.Name,
		"method", res.Method,
		"similarity", res.Similarity,
	)
	return res.Customer
}

func (d *Dispatcher) loadMachine(ctx context.Context, reqCtx *common.RequestContext, userID string) (*pending.Machine, error) {
	m, err := pending.Load(ctx, d.deps.Store, userID)
	if err != nil {
		reqCtx.LogError("%v", err)
		return nil, err
	}
	return m, nil
}

// completeDraft treats a text reply as the prices for the in-flight draft
func (d *Dispatcher) completeDraft(ctx context.Context, reqCtx *common.RequestContext, user *storage.User, in Inbound, machine *pending.Machine) Reply {
	msgs := For(user.Language)
	draft := *machine.Draft()

	// Step 1: Parse the numbers out of the reply
	reqCtx.StartStep("parse_prices")
	prices, usage, err := d.deps.Prices.ParsePrices(ctx, in.Body, reqCtx)
	if err != nil {
		reqCtx.EndStep("failed", usage, err)
		return replyWith(msgs.PriceNotParsed)
	}
	reqCtx.EndStep("success", usage, nil)

	// Step 2: Fill the missing prices; too few leaves the draft as it was
	items, err := machine.ApplyPrices(prices)
	if errors.Is(err, pending.ErrInsufficientPrices) {
		reqCtx.LogInfo("%v", err)
		return replyWith(msgs.NeedAllPrices)
	}
	if err != nil {
		reqCtx.LogError("apply prices: %v", err)
		return replyWith(msgs.Error)
	}

	// Step 3: Reload the linked customer for contact details
	var customer *storage.Customer
	if draft.CustomerID != "" {
		c, err := d.deps.Store.GetCustomer(ctx, draft.CustomerID)
		if err != nil {
			reqCtx.LogWarning("draft customer %s unavailable: %v", draft.CustomerID, err)
		} else {
			customer = c
		}
	}

	// Step 4: Finalize, then retire the draft
	inv, err := d.finalize(ctx, reqCtx, user, customer, draft.CustomerName, draft.Transcription, items)
	if err != nil {
		reqCtx.LogError("finalize invoice: %v", err)
		return replyWith(msgs.Error)
	}
	d.retireDraft(ctx, reqCtx, draft.ID)

	text := FormatInvoice(inv, user.Language, d.cfg.BackendURL)
	return replyWith(d.deliver(ctx, reqCtx, in.From, text)...)
}

// retireDraftAttempts bounds the delete after finalization; a draft left behind
// would be completed again by the next text reply
const retireDraftAttempts = 2

func (d *Dispatcher) retireDraft(ctx context.Context, reqCtx *common.RequestContext, id string) {
	var err error
	for attempt := 1; attempt <= retireDraftAttempts; attempt++ {
		err = d.deps.Store.DeleteDraft(ctx, id)
		if err == nil || errors.Is(err, storage.ErrNotFound) {
			return
		}
		reqCtx.LogWarning("delete draft %s (attempt %d): %v", id, attempt, err)
	}
	reqCtx.LogError("draft %s left in place: %v", id, err)
}
