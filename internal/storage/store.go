// store.go - Collection-level access used by the pipeline and the REST API

package storage

import (
	"context"
	"time"
)

// Users is the users collection
type Users interface {
	FindUserByPhone(ctx context.Context, phone string) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)
	CreateUser(ctx context.Context, user *User) error
	ListUsers(ctx context.Context, limit int) ([]User, error)
	SetUserLanguage(ctx context.Context, id string, language string) error
}

// Products is the products collection
type Products interface {
	ListProducts(ctx context.Context, userID string) ([]Product, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	CreateProduct(ctx context.Context, product *Product) error
	UpdateProduct(ctx context.Context, product *Product) error
	DeleteProduct(ctx context.Context, id string) error
	SearchProducts(ctx context.Context, userID string, query string) ([]Product, error)
}

// Customers is the customers collection
type Customers interface {
	// FindCustomerByExactName matches the whole name case-insensitively within one owner
	FindCustomerByExactName(ctx context.Context, userID string, name string) (*Customer, error)
	// FindCustomerByNameContains matches a case-insensitive fragment within one owner
	FindCustomerByNameContains(ctx context.Context, userID string, fragment string) (*Customer, error)
	// ListCustomers returns customers of any of the owners, in natural order, capped to limit
	ListCustomers(ctx context.Context, userIDs []string, limit int) ([]Customer, error)
	GetCustomer(ctx context.Context, id string) (*Customer, error)
	CreateCustomer(ctx context.Context, customer *Customer) error
	UpdateCustomer(ctx context.Context, customer *Customer) error
	DeleteCustomer(ctx context.Context, id string) error
	SearchCustomers(ctx context.Context, userID string, query string) ([]Customer, error)
	RecordPurchase(ctx context.Context, id string, total float64, due float64, at time.Time) error
	SetCustomerDue(ctx context.Context, id string, due float64) error
}

// Invoices is the invoices collection
type Invoices interface {
	CountInvoices(ctx context.Context, userID string) (int64, error)
	CreateInvoice(ctx context.Context, invoice *Invoice) error
	GetInvoice(ctx context.Context, id string) (*Invoice, error)
	// ListInvoices returns the newest invoices first; empty userID lists all
	ListInvoices(ctx context.Context, userID string, limit int) ([]Invoice, error)
	ListCustomerInvoices(ctx context.Context, customerID string) ([]Invoice, error)
	UpdatePayment(ctx context.Context, id string, update PaymentUpdate) error
	SetPaymentLink(ctx context.Context, id string, link string) error
	MarkEmailSent(ctx context.Context, id string) error
	DeleteInvoice(ctx context.Context, id string) error
}

// Drafts is the pending_invoices collection
type Drafts interface {
	// LatestDraft returns the most recently created draft of the user or ErrNotFound
	LatestDraft(ctx context.Context, userID string) (*PendingInvoice, error)
	// ReplaceDraft removes every draft of the user and stores the given one
	ReplaceDraft(ctx context.Context, draft *PendingInvoice) error
	DeleteDraft(ctx context.Context, id string) error
}

// Store is the whole document store
type Store interface {
	Users
	Products
	Customers
	Invoices
	Drafts
	Close(ctx context.Context) error
}
