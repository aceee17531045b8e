// memory.go - In-process Store for local development and tests

package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps every collection in insertion order behind one mutex.
// Values are copied on the way in and out so callers never share state.
type MemoryStore struct {
	mu        sync.RWMutex
	users     []User
	products  []Product
	customers []Customer
	invoices  []Invoice
	drafts    []PendingInvoice
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Close(context.Context) error { return nil }

func fold(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// --- Users ---

func (m *MemoryStore) FindUserByPhone(_ context.Context, phone string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Phone == phone {
			out := u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetUser(_ context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.ID == id {
			out := u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) CreateUser(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = append(m.users, *user)
	return nil
}

func (m *MemoryStore) ListUsers(_ context.Context, limit int) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []User{}
	for _, u := range m.users {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, u)
	}
	return out, nil
}

func (m *MemoryStore) SetUserLanguage(_ context.Context, id string, language string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.users {
		if m.users[i].ID == id {
			m.users[i].Language = language
			return nil
		}
	}
	return ErrNotFound
}

// --- Products ---

func (m *MemoryStore) ListProducts(_ context.Context, userID string) ([]Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Product{}
	for _, p := range m.products {
		if userID == "" || p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemoryStore) GetProduct(_ context.Context, id string) (*Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.products {
		if p.ID == id {
			out := p
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) CreateProduct(_ context.Context, product *Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = append(m.products, *product)
	return nil
}

func (m *MemoryStore) UpdateProduct(_ context.Context, product *Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.products {
		if m.products[i].ID == product.ID {
			product.CreatedAt = m.products[i].CreatedAt
			m.products[i] = *product
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) DeleteProduct(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.products {
		if m.products[i].ID == id {
			m.products = append(m.products[:i], m.products[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) SearchProducts(_ context.Context, userID string, query string) ([]Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q := fold(query)
	out := []Product{}
	for _, p := range m.products {
		if (userID == "" || p.UserID == userID) && strings.Contains(fold(p.Name), q) {
			out = append(out, p)
		}
	}
	return out, nil
}

// --- Customers ---

func (m *MemoryStore) FindCustomerByExactName(_ context.Context, userID string, name string) (*Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.customers {
		if c.UserID == userID && strings.EqualFold(c.Name, name) {
			out := c
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) FindCustomerByNameContains(_ context.Context, userID string, fragment string) (*Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f := strings.ToLower(fragment)
	for _, c := range m.customers {
		if c.UserID == userID && strings.Contains(strings.ToLower(c.Name), f) {
			out := c
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListCustomers(_ context.Context, userIDs []string, limit int) ([]Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	owners := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		owners[id] = true
	}
	out := []Customer{}
	for _, c := range m.customers {
		if limit > 0 && len(out) == limit {
			break
		}
		if len(owners) == 0 || owners[c.UserID] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MemoryStore) GetCustomer(_ context.Context, id string) (*Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.customers {
		if c.ID == id {
			out := c
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) CreateCustomer(_ context.Context, customer *Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers = append(m.customers, *customer)
	return nil
}

// UpdateCustomer replaces the profile fields; running totals stay as stored
func (m *MemoryStore) UpdateCustomer(_ context.Context, customer *Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.customers {
		c := &m.customers[i]
		if c.ID == customer.ID {
			c.UserID = customer.UserID
			c.Name = customer.Name
			c.Phone = customer.Phone
			c.Email = customer.Email
			c.Address = customer.Address
			c.Language = customer.Language
			c.Notes = customer.Notes
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) DeleteCustomer(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.customers {
		if m.customers[i].ID == id {
			m.customers = append(m.customers[:i], m.customers[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) SearchCustomers(_ context.Context, userID string, query string) ([]Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q := fold(query)
	out := []Customer{}
	for _, c := range m.customers {
		if (userID == "" || c.UserID == userID) && strings.Contains(fold(c.Name), q) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MemoryStore) RecordPurchase(_ context.Context, id string, total float64, due float64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.customers {
		c := &m.customers[i]
		if c.ID == id {
			c.TotalPurchases += total
			c.TotalDue += due
			t := at
			c.LastPurchase = &t
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) SetCustomerDue(_ context.Context, id string, due float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.customers {
		if m.customers[i].ID == id {
			m.customers[i].TotalDue = due
			return nil
		}
	}
	return ErrNotFound
}

// --- Invoices ---

func (m *MemoryStore) CountInvoices(_ context.Context, userID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, inv := range m.invoices {
		if inv.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) CreateInvoice(_ context.Context, invoice *Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *invoice
	cp.Items = append([]InvoiceItem(nil), invoice.Items...)
	m.invoices = append(m.invoices, cp)
	return nil
}

func (m *MemoryStore) GetInvoice(_ context.Context, id string) (*Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, inv := range m.invoices {
		if inv.ID == id {
			out := inv
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListInvoices(_ context.Context, userID string, limit int) ([]Invoice, error) {
	m.mu.RLock()
	out := []Invoice{}
	for _, inv := range m.invoices {
		if userID == "" || inv.UserID == userID {
			out = append(out, inv)
		}
	}
	m.mu.RUnlock()

	// newest first; equal dates keep the later insert first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ListCustomerInvoices(_ context.Context, customerID string) ([]Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Invoice{}
	for _, inv := range m.invoices {
		if inv.CustomerID == customerID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (m *MemoryStore) withInvoice(id string, fn func(*Invoice)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.invoices {
		if m.invoices[i].ID == id {
			fn(&m.invoices[i])
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) UpdatePayment(_ context.Context, id string, update PaymentUpdate) error {
	return m.withInvoice(id, func(inv *Invoice) {
		inv.Status = update.Status
		inv.AmountPaid = update.AmountPaid
		inv.AmountDue = update.AmountDue
		inv.PaymentStatus = update.PaymentStatus
		if update.PaymentID != "" {
			inv.PaymentID = update.PaymentID
		}
	})
}

func (m *MemoryStore) SetPaymentLink(_ context.Context, id string, link string) error {
	return m.withInvoice(id, func(inv *Invoice) {
		inv.PaymentLink = link
		inv.PaymentStatus = PaymentPending
	})
}

func (m *MemoryStore) MarkEmailSent(_ context.Context, id string) error {
	return m.withInvoice(id, func(inv *Invoice) { inv.EmailSent = true })
}

func (m *MemoryStore) DeleteInvoice(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.invoices {
		if m.invoices[i].ID == id {
			m.invoices = append(m.invoices[:i], m.invoices[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// --- Drafts ---

func (m *MemoryStore) LatestDraft(_ context.Context, userID string) (*PendingInvoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *PendingInvoice
	for i := range m.drafts {
		d := &m.drafts[i]
		if d.UserID != userID {
			continue
		}
		if latest == nil || !d.CreatedAt.Before(latest.CreatedAt) {
			latest = d
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	out := copyDraft(*latest)
	return &out, nil
}

func (m *MemoryStore) ReplaceDraft(_ context.Context, draft *PendingInvoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.drafts[:0]
	for _, d := range m.drafts {
		if d.UserID != draft.UserID {
			kept = append(kept, d)
		}
	}
	m.drafts = append(kept, copyDraft(*draft))
	return nil
}

func (m *MemoryStore) DeleteDraft(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.drafts {
		if m.drafts[i].ID == id {
			m.drafts = append(m.drafts[:i], m.drafts[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func copyDraft(d PendingInvoice) PendingInvoice {
	items := make([]DraftItem, len(d.Items))
	for i, it := range d.Items {
		items[i] = DraftItem{Name: it.Name, Quantity: it.Quantity}
		if it.Price != nil {
			p := *it.Price
			items[i].Price = &p
		}
	}
	d.Items = items
	return d
}
