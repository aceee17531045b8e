package pending

import (
	"context"
	"testing"
	"time"

	"github.com/bosocmputer/voicebill/internal/storage"
	"github.com/stretchr/testify/require"
)

func known(v float64) *float64 { return &v }

func draftAB() storage.PendingInvoice {
	return storage.PendingInvoice{
		ID:     "d1",
		UserID: "u1",
		Items: []storage.DraftItem{
			{Name: "A", Quantity: 1},
			{Name: "rice", Quantity: 2, Price: known(50)},
			{Name: "B", Quantity: 3},
		},
		CreatedAt: time.Now(),
	}
}

func TestMachine_Transitions(t *testing.T) {
	m := New(nil)
	require.Equal(t, None, m.State())

	require.NoError(t, m.Begin(draftAB()))
	require.Equal(t, AwaitingPrices, m.State())
	require.Equal(t, []string{"A", "B"}, m.MissingNames())

	items, err := m.ApplyPrices([]float64{100, 200})
	require.NoError(t, err)
	require.Equal(t, None, m.State())

	require.Len(t, items, 3)
	require.Equal(t, "A", items[0].Name)
	require.Equal(t, 100.0, items[0].Price)
	require.Equal(t, 50.0, items[1].Price)
	require.Equal(t, "B", items[2].Name)
	require.Equal(t, 200.0, items[2].Price)
	require.Equal(t, 3.0, items[2].Quantity)
}

func TestMachine_ExtraPricesIgnored(t *testing.T) {
	m := New(nil)
	require.NoError(t, m.Begin(draftAB()))

	items, err := m.ApplyPrices([]float64{1, 2, 3, 4})
	require.NoError(t, err)
	require.Equal(t, 1.0, items[0].Price)
	require.Equal(t, 2.0, items[2].Price)
}

func TestMachine_InsufficientLeavesDraft(t *testing.T) {
	d := draftAB()
	m := New(&d)

	_, err := m.ApplyPrices([]float64{100})
	require.ErrorIs(t, err, ErrInsufficientPrices)
	require.Equal(t, AwaitingPrices, m.State())
	require.Nil(t, m.Draft().Items[0].Price)
	require.Nil(t, m.Draft().Items[2].Price)
	require.Equal(t, []string{"A", "B"}, m.MissingNames())
}

func TestMachine_BeginRequiresMissing(t *testing.T) {
	m := New(nil)
	err := m.Begin(storage.PendingInvoice{Items: []storage.DraftItem{{Name: "rice", Quantity: 1, Price: known(50)}}})
	require.ErrorIs(t, err, ErrNothingMissing)
	require.Equal(t, None, m.State())

	_, err = m.ApplyPrices([]float64{1})
	require.ErrorIs(t, err, ErrNoDraft)
}

func TestMachine_ZeroIsAKnownPrice(t *testing.T) {
	m := New(nil)
	err := m.Begin(storage.PendingInvoice{Items: []storage.DraftItem{{Name: "sample", Quantity: 1, Price: known(0)}}})
	require.ErrorIs(t, err, ErrNothingMissing)
}

func TestLoadSave(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore()

	m, err := Load(ctx, s, "u1")
	require.NoError(t, err)
	require.Equal(t, None, m.State())
	require.ErrorIs(t, Save(ctx, s, m), ErrNoDraft)

	require.NoError(t, m.Begin(draftAB()))
	require.NoError(t, Save(ctx, s, m))

	again, err := Load(ctx, s, "u1")
	require.NoError(t, err)
	require.Equal(t, AwaitingPrices, again.State())
	require.Equal(t, "d1", again.Draft().ID)
}
