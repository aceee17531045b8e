package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func price(v float64) *float64 { return &v }

func TestMemoryStore_ReplaceDraftKeepsSingleSlot(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	first := &PendingInvoice{ID: "d1", UserID: "u1", Items: []DraftItem{{Name: "rice", Quantity: 1}}, CreatedAt: time.Now()}
	other := &PendingInvoice{ID: "d-other", UserID: "u2", CreatedAt: time.Now()}
	second := &PendingInvoice{ID: "d2", UserID: "u1", Items: []DraftItem{{Name: "sugar", Quantity: 3}}, CreatedAt: time.Now().Add(time.Second)}

	require.NoError(t, s.ReplaceDraft(ctx, first))
	require.NoError(t, s.ReplaceDraft(ctx, other))
	require.NoError(t, s.ReplaceDraft(ctx, second))

	got, err := s.LatestDraft(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "d2", got.ID)

	require.ErrorIs(t, s.DeleteDraft(ctx, "d1"), ErrNotFound)
	require.NoError(t, s.DeleteDraft(ctx, "d2"))

	_, err = s.LatestDraft(ctx, "u1")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.LatestDraft(ctx, "u2")
	require.NoError(t, err)
}

func TestMemoryStore_DraftIsCopied(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	d := &PendingInvoice{ID: "d1", UserID: "u1", Items: []DraftItem{{Name: "rice", Quantity: 1, Price: price(50)}}}
	require.NoError(t, s.ReplaceDraft(ctx, d))
	*d.Items[0].Price = 99

	got, err := s.LatestDraft(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 50.0, *got.Items[0].Price)
}

func TestMemoryStore_CustomerLookups(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.CreateCustomer(ctx, &Customer{ID: "c1", UserID: "u1", Name: "Amit Sharma"}))
	require.NoError(t, s.CreateCustomer(ctx, &Customer{ID: "c2", UserID: DefaultUserID, Name: "Ravi"}))

	c, err := s.FindCustomerByExactName(ctx, "u1", "amit sharma")
	require.NoError(t, err)
	require.Equal(t, "c1", c.ID)

	_, err = s.FindCustomerByExactName(ctx, "u1", "amit")
	require.ErrorIs(t, err, ErrNotFound)

	c, err = s.FindCustomerByNameContains(ctx, "u1", "AMIT")
	require.NoError(t, err)
	require.Equal(t, "c1", c.ID)

	_, err = s.FindCustomerByExactName(ctx, "u1", "ravi")
	require.ErrorIs(t, err, ErrNotFound)

	all, err := s.ListCustomers(ctx, []string{"u1", DefaultUserID}, 100)
	require.NoError(t, err)
	require.Len(t, all, 2)

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.RecordPurchase(ctx, "c1", 118, 118, at))
	require.NoError(t, s.RecordPurchase(ctx, "c1", 10, 0, at))
	c, err = s.GetCustomer(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, 128.0, c.TotalPurchases)
	require.Equal(t, 118.0, c.TotalDue)
	require.Equal(t, at, *c.LastPurchase)
}

func TestMemoryStore_InvoicesNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.CreateInvoice(ctx, &Invoice{ID: id, UserID: "u1", Date: base.Add(time.Duration(i) * time.Hour)}))
	}
	require.NoError(t, s.CreateInvoice(ctx, &Invoice{ID: "x", UserID: "u2", Date: base}))

	n, err := s.CountInvoices(ctx, "u1")
	require.NoError(t, err)
	require.EqualValues(t, 3, n)

	list, err := s.ListInvoices(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "c", list[0].ID)
	require.Equal(t, "b", list[1].ID)

	require.NoError(t, s.UpdatePayment(ctx, "a", PaymentUpdate{Status: StatusPaid, AmountPaid: 10, PaymentStatus: PaymentCompleted}))
	inv, err := s.GetInvoice(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, StatusPaid, inv.Status)

	require.ErrorIs(t, s.UpdatePayment(ctx, "missing", PaymentUpdate{}), ErrNotFound)
	require.NoError(t, s.DeleteInvoice(ctx, "a"))
	_, err = s.GetInvoice(ctx, "a")
	require.ErrorIs(t, err, ErrNotFound)
}
