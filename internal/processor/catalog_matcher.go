// catalog_matcher.go - Price lookup against the merged product catalog
package processor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bosocmputer/voicebill/internal/storage"
)

// CatalogMatchResult represents the result of a catalog price lookup
type CatalogMatchResult struct {
	Found  bool    `json:"found"`
	Name   string  `json:"name"`   // catalog key that matched
	Price  float64 `json:"price"`  // only meaningful when Found
	Method string  `json:"method"` // exact, singular, plural, partial, not_found
}

type catalogEntry struct {
	name  string
	price float64
}

// Catalog is an insertion-ordered name -> price mapping.
// Shared default products come first; a user product with the same name
// replaces the default's price but keeps its position.
type Catalog struct {
	entries []catalogEntry
	index   map[string]int
}

// NewCatalog merges the shared defaults with the user's own products
func NewCatalog(defaults, user []storage.Product) *Catalog {
	c := &Catalog{index: make(map[string]int, len(defaults)+len(user))}
	for _, p := range defaults {
		c.put(p.Name, p.Price)
	}
	for _, p := range user {
		c.put(p.Name, p.Price)
	}
	return c
}

func (c *Catalog) put(name string, price float64) {
	key := normalizeItemName(name)
	if key == "" {
		return
	}
	if i, ok := c.index[key]; ok {
		c.entries[i].price = price
		return
	}
	c.index[key] = len(c.entries)
	c.entries = append(c.entries, catalogEntry{name: key, price: price})
}

// Len returns the number of distinct catalog keys
func (c *Catalog) Len() int { return len(c.entries) }

// Render produces the listing handed to the extraction model
func (c *Catalog) Render() string {
	if len(c.entries) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Available products in catalog:\n")
	for _, e := range c.entries {
		fmt.Fprintf(&sb, "- %s: Rs. %s\n", e.name, strconv.FormatFloat(e.price, 'f', -1, 64))
	}
	return sb.String()
}

func (c *Catalog) lookup(key string) (catalogEntry, bool) {
	i, ok := c.index[key]
	if !ok {
		return catalogEntry{}, false
	}
	return c.entries[i], true
}

// Match runs the lookup cascade and reports which rule matched.
// A miss is a normal outcome; callers collect every unresolved name.
func (c *Catalog) Match(itemName string) CatalogMatchResult {
	item := normalizeItemName(itemName)
	if item == "" || c == nil {
		return CatalogMatchResult{Method: "not_found"}
	}

	// Step 1: Direct match
	if e, ok := c.lookup(item); ok {
		return CatalogMatchResult{Found: true, Name: e.name, Price: e.price, Method: "exact"}
	}

	// Step 2: Strip plural suffixes (s, es, ies -> y)
	for _, suffix := range []string{"s", "es", "ies"} {
		if !strings.HasSuffix(item, suffix) {
			continue
		}
		singular := strings.TrimSuffix(item, suffix)
		if suffix == "ies" {
			singular += "y"
		}
		if e, ok := c.lookup(singular); ok {
			return CatalogMatchResult{Found: true, Name: e.name, Price: e.price, Method: "singular"}
		}
	}

	// Step 3: Catalog stored in plural form
	if e, ok := c.lookup(item + "s"); ok {
		return CatalogMatchResult{Found: true, Name: e.name, Price: e.price, Method: "plural"}
	}

	// Step 4: Substring either way, first in insertion order
	for _, e := range c.entries {
		if strings.Contains(item, e.name) || strings.Contains(e.name, item) {
			return CatalogMatchResult{Found: true, Name: e.name, Price: e.price, Method: "partial"}
		}
	}

	return CatalogMatchResult{Method: "not_found"}
}

func normalizeItemName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
