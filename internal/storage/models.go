// models.go - Documents persisted in the store

package storage

import (
	"errors"
	"time"
)

// DefaultUserID owns the shared product and customer pool every shop can draw from
const DefaultUserID = "default-user"

// ErrNotFound is returned by direct lookups (by id, phone, or latest draft) that match nothing
var ErrNotFound = errors.New("not found")

// Invoice lifecycle status
const (
	StatusUnpaid  = "unpaid"
	StatusPartial = "partial"
	StatusPaid    = "paid"

	PaymentPending   = "pending"
	PaymentCompleted = "completed"
)

// User is a shopkeeper identified by their WhatsApp number
type User struct {
	ID           string    `bson:"id" json:"id"`
	Phone        string    `bson:"phone" json:"phone"`
	Name         string    `bson:"name" json:"name"`
	BusinessName string    `bson:"business_name" json:"business_name"`
	Language     string    `bson:"language" json:"language"` // en, hi
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}

// Product is a catalog entry; name is the case-insensitive key
type Product struct {
	ID          string    `bson:"id" json:"id"`
	UserID      string    `bson:"user_id" json:"user_id"`
	Name        string    `bson:"name" json:"name"`
	Price       float64   `bson:"price" json:"price"`
	Description string    `bson:"description" json:"description"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}

// Customer is a buyer known to a shop (or to the shared pool)
type Customer struct {
	ID             string     `bson:"id" json:"id"`
	UserID         string     `bson:"user_id" json:"user_id"`
	Name           string     `bson:"name" json:"name"`
	Phone          string     `bson:"phone" json:"phone"`
	Email          string     `bson:"email" json:"email"`
	Address        string     `bson:"address" json:"address"`
	TotalPurchases float64    `bson:"total_purchases" json:"total_purchases"`
	TotalDue       float64    `bson:"total_due" json:"total_due"`
	Language       string     `bson:"language" json:"language"`
	Notes          string     `bson:"notes" json:"notes"`
	CreatedAt      time.Time  `bson:"created_at" json:"created_at"`
	LastPurchase   *time.Time `bson:"last_purchase,omitempty" json:"last_purchase,omitempty"`
}

// InvoiceItem is one priced line of an invoice
type InvoiceItem struct {
	Name     string  `bson:"name" json:"name"`
	Quantity float64 `bson:"quantity" json:"quantity"`
	Price    float64 `bson:"price" json:"price"`
	Total    float64 `bson:"total" json:"total"`
}

// Invoice is immutable once created except for status and payment fields
type Invoice struct {
	ID              string        `bson:"id" json:"id"`
	UserID          string        `bson:"user_id" json:"user_id"`
	CustomerID      string        `bson:"customer_id,omitempty" json:"customer_id,omitempty"`
	InvoiceNumber   string        `bson:"invoice_number" json:"invoice_number"`
	Date            time.Time     `bson:"date" json:"date"`
	CustomerName    string        `bson:"customer_name" json:"customer_name"`
	CustomerPhone   string        `bson:"customer_phone" json:"customer_phone"`
	CustomerEmail   string        `bson:"customer_email" json:"customer_email"`
	CustomerAddress string        `bson:"customer_address" json:"customer_address"`
	Items           []InvoiceItem `bson:"items" json:"items"`
	Subtotal        float64       `bson:"subtotal" json:"subtotal"`
	TaxRate         float64       `bson:"tax_rate" json:"tax_rate"`
	Tax             float64       `bson:"tax" json:"tax"`
	Total           float64       `bson:"total" json:"total"`
	AmountPaid      float64       `bson:"amount_paid" json:"amount_paid"`
	AmountDue       float64       `bson:"amount_due" json:"amount_due"`
	Status          string        `bson:"status" json:"status"`
	PaymentStatus   string        `bson:"payment_status" json:"payment_status"`
	PaymentLink     string        `bson:"payment_link" json:"payment_link"`
	PaymentID       string        `bson:"payment_id" json:"payment_id"`
	Transcription   string        `bson:"transcription" json:"transcription"`
	Language        string        `bson:"language" json:"language"`
	EmailSent       bool          `bson:"email_sent" json:"email_sent"`
	CreatedAt       time.Time     `bson:"created_at" json:"created_at"`
}

// PaymentUpdate carries the mutable part of an invoice
type PaymentUpdate struct {
	Status        string  `bson:"status" json:"status"`
	AmountPaid    float64 `bson:"amount_paid" json:"amount_paid"`
	AmountDue     float64 `bson:"amount_due" json:"amount_due"`
	PaymentStatus string  `bson:"payment_status" json:"payment_status"`
	PaymentID     string  `bson:"payment_id,omitempty" json:"payment_id,omitempty"`
}

// DraftItem is a pending line; a nil Price means the price is still unknown
type DraftItem struct {
	Name     string   `bson:"name" json:"name"`
	Quantity float64  `bson:"quantity" json:"quantity"`
	Price    *float64 `bson:"price" json:"price"`
}

// PendingInvoice is the single in-flight draft of a user awaiting prices
type PendingInvoice struct {
	ID            string      `bson:"id" json:"id"`
	UserID        string      `bson:"user_id" json:"user_id"`
	CustomerName  string      `bson:"customer_name" json:"customer_name"`
	CustomerID    string      `bson:"customer_id,omitempty" json:"customer_id,omitempty"`
	Items         []DraftItem `bson:"items" json:"items"`
	Transcription string      `bson:"transcription" json:"transcription"`
	CreatedAt     time.Time   `bson:"created_at" json:"created_at"`
}
