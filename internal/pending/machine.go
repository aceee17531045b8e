// machine.go - Per-user draft state: NONE or AWAITING_PRICES
package pending

import (
	"context"
	"errors"
	"fmt"

	"github.com/bosocmputer/voicebill/internal/processor"
	"github.com/bosocmputer/voicebill/internal/storage"
)

// State of a user's conversation
type State int

const (
	None State = iota
	AwaitingPrices
)

func (s State) String() string {
	switch s {
	case AwaitingPrices:
		return "AWAITING_PRICES"
	default:
		return "NONE"
	}
}

var (
	// ErrInsufficientPrices means the reply carried fewer prices than missing items
	ErrInsufficientPrices = errors.New("not enough prices for the missing items")
	// ErrNothingMissing means a draft was offered with every price already known
	ErrNothingMissing = errors.New("draft has no missing prices")
	// ErrNoDraft means a price reply arrived with no draft in flight
	ErrNoDraft = errors.New("no pending draft")
)

// Machine holds at most one draft. It never touches storage itself.
type Machine struct {
	draft *storage.PendingInvoice
}

// New wraps a loaded draft; nil means NONE
func New(draft *storage.PendingInvoice) *Machine {
	return &Machine{draft: draft}
}

func (m *Machine) State() State {
	if m.draft == nil {
		return None
	}
	return AwaitingPrices
}

// Draft returns the in-flight draft or nil
func (m *Machine) Draft() *storage.PendingInvoice {
	return m.draft
}

// Begin moves to AWAITING_PRICES with a new draft, superseding any previous one
func (m *Machine) Begin(draft storage.PendingInvoice) error {
	if len(missingIndexes(draft.Items)) == 0 {
		return ErrNothingMissing
	}
	m.draft = &draft
	return nil
}

// MissingNames lists the items still without a price, in draft order
func (m *Machine) MissingNames() []string {
	if m.draft == nil {
		return nil
	}
	idx := missingIndexes(m.draft.Items)
	names := make([]string, len(idx))
	for i, j := range idx {
		names[i] = m.draft.Items[j].Name
	}
	return names
}

// ApplyPrices fills the missing prices positionally and completes the draft.
// Extra prices are ignored. With too few prices the draft is left untouched
// and ErrInsufficientPrices is returned.
func (m *Machine) ApplyPrices(prices []float64) ([]processor.PricedItem, error) {
	if m.draft == nil {
		return nil, ErrNoDraft
	}

	idx := missingIndexes(m.draft.Items)
	if len(prices) < len(idx) {
		return nil, fmt.Errorf("%w: need %d, got %d", ErrInsufficientPrices, len(idx), len(prices))
	}

	assigned := make(map[int]float64, len(idx))
	for i, j := range idx {
		assigned[j] = prices[i]
	}

	items := make([]processor.PricedItem, 0, len(m.draft.Items))
	for j, it := range m.draft.Items {
		p, ok := assigned[j]
		if !ok {
			p = *it.Price
		}
		items = append(items, processor.PricedItem{Name: it.Name, Quantity: it.Quantity, Price: p})
	}

	m.draft = nil
	return items, nil
}

func missingIndexes(items []storage.DraftItem) []int {
	var idx []int
	for i, it := range items {
		if it.Price == nil {
			idx = append(idx, i)
		}
	}
	return idx
}

// Load restores the machine for a user from the draft store
func Load(ctx context.Context, drafts storage.Drafts, userID string) (*Machine, error) {
	d, err := drafts.LatestDraft(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return New(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	return New(d), nil
}

// Save writes the machine's draft into the user's single slot
func Save(ctx context.Context, drafts storage.Drafts, m *Machine) error {
	if m.draft == nil {
		return ErrNoDraft
	}
	if err := drafts.ReplaceDraft(ctx, m.draft); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}
