// customer_matcher.go - Layered exact/partial/fuzzy matching for customer names
package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bosocmputer/voicebill/internal/storage"
	"github.com/pmezard/go-difflib/difflib"
)

// CustomerSimilarityThreshold is the lowest accepted fuzzy ratio
const CustomerSimilarityThreshold = 0.70

// fuzzyCandidateLimit caps how many records the fuzzy pass compares against
const fuzzyCandidateLimit = 100

// CustomerDirectory is the read side of the customers collection the matcher needs
type CustomerDirectory interface {
	FindCustomerByExactName(ctx context.Context, userID string, name string) (*storage.Customer, error)
	FindCustomerByNameContains(ctx context.Context, userID string, fragment string) (*storage.Customer, error)
	ListCustomers(ctx context.Context, userIDs []string, limit int) ([]storage.Customer, error)
}

// CustomerMatchResult represents the result of customer matching
type CustomerMatchResult struct {
	Found      bool              `json:"found"`
	Customer   *storage.Customer `json:"customer,omitempty"`
	Similarity float64           `json:"similarity"`
	Method     string            `json:"method"` // exact, partial, shared_exact, fuzzy, not_found
}

// MatchCustomer finds the best matching customer for an extracted name.
// Checks run in order and the first hit wins; fuzzy matching only runs once
// every exact and substring check has missed.
func MatchCustomer(ctx context.Context, dir CustomerDirectory, userID, name string) (CustomerMatchResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return CustomerMatchResult{Method: "not_found"}, nil
	}

	// Step 1: Exact match within the user's customers
	c, err := dir.FindCustomerByExactName(ctx, userID, name)
	if hit, err := found(c, err); err != nil {
		return CustomerMatchResult{Method: "not_found"}, fmt.Errorf("exact customer lookup: %w", err)
	} else if hit {
		return CustomerMatchResult{Found: true, Customer: c, Similarity: 1, Method: "exact"}, nil
	}

	// Step 2: Partial match within the user's customers
	c, err = dir.FindCustomerByNameContains(ctx, userID, name)
	if hit, err := found(c, err); err != nil {
		return CustomerMatchResult{Method: "not_found"}, fmt.Errorf("partial customer lookup: %w", err)
	} else if hit {
		return CustomerMatchResult{Found: true, Customer: c, Similarity: 1, Method: "partial"}, nil
	}

	// Step 3: Exact match within the shared pool
	c, err = dir.FindCustomerByExactName(ctx, storage.DefaultUserID, name)
	if hit, err := found(c, err); err != nil {
		return CustomerMatchResult{Method: "not_found"}, fmt.Errorf("shared customer lookup: %w", err)
	} else if hit {
		return CustomerMatchResult{Found: true, Customer: c, Similarity: 1, Method: "shared_exact"}, nil
	}

	// Step 4: Fuzzy match across both pools
	candidates, err := dir.ListCustomers(ctx, []string{userID, storage.DefaultUserID}, fuzzyCandidateLimit)
	if err != nil {
		return CustomerMatchResult{Method: "not_found"}, fmt.Errorf("list customers: %w", err)
	}
	if len(candidates) > fuzzyCandidateLimit {
		candidates = candidates[:fuzzyCandidateLimit]
	}

	query := strings.ToLower(name)
	best := -1
	bestRatio := 0.0
	for i := range candidates {
		ratio := NameSimilarity(query, strings.ToLower(candidates[i].Name))
		// strict > keeps the first maximum on ties
		if ratio > bestRatio && ratio >= CustomerSimilarityThreshold {
			best = i
			bestRatio = ratio
		}
	}
	if best < 0 {
		return CustomerMatchResult{Method: "not_found"}, nil
	}

	match := candidates[best]
	return CustomerMatchResult{Found: true, Customer: &match, Similarity: bestRatio, Method: "fuzzy"}, nil
}

func found(c *storage.Customer, err error) (bool, error) {
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return c != nil, nil
}

// NameSimilarity is the Ratcliff/Obershelp ratio 2*M/T over the runes of both names
func NameSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	return difflib.NewMatcher(splitRunes(a), splitRunes(b)).Ratio()
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
