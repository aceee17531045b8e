package processor

import (
	"context"
	"errors"
	"testing"

	"github.com/bosocmputer/voicebill/internal/storage"
	"github.com/stretchr/testify/require"
)

func directory(t *testing.T, customers ...storage.Customer) *storage.MemoryStore {
	t.Helper()
	s := storage.NewMemoryStore()
	for i := range customers {
		require.NoError(t, s.CreateCustomer(context.Background(), &customers[i]))
	}
	return s
}

func TestNameSimilarity_Boundary(t *testing.T) {
	// "sunil d" is the only common block: 2*7/20
	require.Equal(t, 0.7, NameSimilarity("sunil dqrs", "sunil dutt"))
	require.Equal(t, 0.6, NameSimilarity("sunil qqrs", "sunil dutt"))
	require.Equal(t, 1.0, NameSimilarity("amit", "amit"))
	require.Equal(t, 0.0, NameSimilarity("zzz", "amit"))
}

func TestMatchCustomer_Order(t *testing.T) {
	ctx := context.Background()
	dir := directory(t,
		storage.Customer{ID: "own-amit", UserID: "u1", Name: "Amit Sharma"},
		storage.Customer{ID: "own-raj", UserID: "u1", Name: "Raj"},
		storage.Customer{ID: "shared-raj", UserID: storage.DefaultUserID, Name: "raj"},
		storage.Customer{ID: "shared-piyush", UserID: storage.DefaultUserID, Name: "Piyush"},
		storage.Customer{ID: "other-user", UserID: "u2", Name: "Meena"},
	)

	tests := []struct {
		name   string
		query  string
		id     string
		method string
	}{
		{"exact own", "RAJ", "own-raj", "exact"},
		{"partial own", "amit", "own-amit", "partial"},
		{"exact shared", "piyush", "shared-piyush", "shared_exact"},
		{"fuzzy", "peyush", "shared-piyush", "fuzzy"},
		{"other users are invisible", "meena", "", "not_found"},
		{"no match", "Zubin", "", "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := MatchCustomer(ctx, dir, "u1", tt.query)
			require.NoError(t, err)
			require.Equal(t, tt.method, res.Method)
			if tt.id == "" {
				require.False(t, res.Found)
				require.Nil(t, res.Customer)
				return
			}
			require.True(t, res.Found)
			require.Equal(t, tt.id, res.Customer.ID)
		})
	}
}

func TestMatchCustomer_ThresholdBoundary(t *testing.T) {
	ctx := context.Background()
	dir := directory(t, storage.Customer{ID: "c1", UserID: "u1", Name: "Sunil Dutt"})

	res, err := MatchCustomer(ctx, dir, "u1", "Sunil Dqrs")
	require.NoError(t, err)
	require.True(t, res.Found)
	require.Equal(t, "fuzzy", res.Method)
	require.Equal(t, 0.7, res.Similarity)

	res, err = MatchCustomer(ctx, dir, "u1", "Sunil Qqrs")
	require.NoError(t, err)
	require.False(t, res.Found)
}

func TestMatchCustomer_TieKeepsFirst(t *testing.T) {
	ctx := context.Background()
	dir := directory(t,
		storage.Customer{ID: "first", UserID: "u1", Name: "Amit"},
		storage.Customer{ID: "second", UserID: storage.DefaultUserID, Name: "Amit"},
	)

	res, err := MatchCustomer(ctx, dir, "u1", "Amitt")
	require.NoError(t, err)
	require.Equal(t, "fuzzy", res.Method)
	require.Equal(t, "first", res.Customer.ID)
}

type failingDirectory struct{ *storage.MemoryStore }

func (failingDirectory) FindCustomerByExactName(context.Context, string, string) (*storage.Customer, error) {
	return nil, errors.New("connection reset")
}

func TestMatchCustomer_StoreErrorSurfaces(t *testing.T) {
	res, err := MatchCustomer(context.Background(), failingDirectory{storage.NewMemoryStore()}, "u1", "Amit")
	require.Error(t, err)
	require.False(t, res.Found)
}

func TestMatchCustomer_EmptyName(t *testing.T) {
	res, err := MatchCustomer(context.Background(), storage.NewMemoryStore(), "u1", "  ")
	require.NoError(t, err)
	require.False(t, res.Found)
}
