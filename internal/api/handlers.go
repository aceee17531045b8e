// handlers.go - HTTP surface: router, shared helpers, health and users

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bosocmputer/voicebill/internal/conversation"
	"github.com/bosocmputer/voicebill/internal/logger"
	"github.com/bosocmputer/voicebill/internal/messaging"
	"github.com/bosocmputer/voicebill/internal/payment"
	"github.com/bosocmputer/voicebill/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const listLimit = 100

// MessageHandler answers one inbound chat message
type MessageHandler interface {
	Handle(ctx context.Context, in conversation.Inbound) conversation.Reply
}

// CallbackVerifier checks a payment gateway redirect
type CallbackVerifier interface {
	VerifyCallback(cb payment.Callback) error
}

// Deps wires the handlers. Payments, Callbacks and Messenger are optional.
type Deps struct {
	Store      storage.Store
	Dispatcher MessageHandler
	PDF        conversation.InvoiceRenderer
	Payments   payment.LinkCreator
	Callbacks  CallbackVerifier
	Messenger  messaging.Messenger
}

type Config struct {
	// WebhookToken enables X-Twilio-Signature checks when set
	WebhookToken string
	// PublicURL is the externally visible base URL, used for signature checks
	PublicURL string
	// WebhookTimeout bounds the processing of a single inbound message
	WebhookTimeout time.Duration
	Now            func() time.Time
}

type Handler struct {
	deps Deps
	cfg  Config
	log  *logger.Logger
}

func NewHandler(log *logger.Logger, deps Deps, cfg Config) (*Handler, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if deps.PDF == nil {
		return nil, fmt.Errorf("pdf renderer required")
	}
	if cfg.WebhookTimeout <= 0 {
		cfg.WebhookTimeout = 3 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Handler{deps: deps, cfg: cfg, log: log.With("service", "API")}, nil
}

// Register mounts every route on r
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	api := r.Group("/api")
	api.GET("/", h.Root)
	api.GET("/health", h.Health)

	api.POST("/webhook/whatsapp", h.WhatsAppWebhook)

	api.POST("/users", h.CreateUser)
	api.GET("/users", h.ListUsers)

	api.GET("/invoices", h.ListInvoices)
	api.GET("/invoices/:id", h.GetInvoice)
	api.PUT("/invoices/:id", h.UpdateInvoice)
	api.DELETE("/invoices/:id", h.DeleteInvoice)
	api.GET("/invoices/:id/pdf", h.InvoicePDF)
	api.POST("/invoices/:id/create-payment", h.CreatePayment)

	api.GET("/payment-callback", h.PaymentCallback)
	api.GET("/test-payment/:id", h.TestPaymentPage)
	api.POST("/test-payment-success/:id", h.TestPaymentSuccess)

	api.POST("/customers", h.CreateCustomer)
	api.GET("/customers", h.ListCustomers)
	api.GET("/customers/search/:query", h.SearchCustomers)
	api.GET("/customers/:id", h.GetCustomer)
	api.PUT("/customers/:id", h.UpdateCustomer)
	api.DELETE("/customers/:id", h.DeleteCustomer)

	api.POST("/products", h.CreateProduct)
	api.GET("/products", h.ListProducts)
	api.GET("/products/search/:query", h.SearchProducts)
	api.GET("/products/:id", h.GetProduct)
	api.PUT("/products/:id", h.UpdateProduct)
	api.DELETE("/products/:id", h.DeleteProduct)
}

// writeError maps store errors to a status; not found is 404, the rest 500
func (h *Handler) writeError(c *gin.Context, what string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
		return
	}
	h.log.Error("request failed", "path", c.FullPath(), "what", what, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("failed to process %s", what)})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
}

func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "VoiceBill API", "status": "running"})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "voicebill",
		"timestamp": h.cfg.Now().Format(time.RFC3339),
	})
}

// --- Users ---

type userInput struct {
	Phone        string `json:"phone" binding:"required"`
	Name         string `json:"name"`
	BusinessName string `json:"business_name"`
	Language     string `json:"language" binding:"omitempty,oneof=en hi"`
}

func (h *Handler) CreateUser(c *gin.Context) {
	var in userInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	if in.Language == "" {
		in.Language = "en"
	}
	user := &storage.User{
		ID:           uuid.New().String(),
		Phone:        conversation.NormalizePhone(in.Phone),
		Name:         in.Name,
		BusinessName: in.BusinessName,
		Language:     in.Language,
		CreatedAt:    h.cfg.Now(),
	}
	if err := h.deps.Store.CreateUser(c.Request.Context(), user); err != nil {
		h.writeError(c, "user", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.deps.Store.ListUsers(c.Request.Context(), listLimit)
	if err != nil {
		h.writeError(c, "users", err)
		return
	}
	c.JSON(http.StatusOK, users)
}
