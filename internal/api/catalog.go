// catalog.go - Customer and product management

package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/bosocmputer/voicebill/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// --- Customers ---

type customerInput struct {
	UserID   string `json:"user_id" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone"`
	Email    string `json:"email" binding:"omitempty,email"`
	Address  string `json:"address"`
	Language string `json:"language" binding:"omitempty,oneof=en hi"`
	Notes    string `json:"notes"`
}

func (in customerInput) apply(c *storage.Customer) {
	c.UserID = in.UserID
	c.Name = strings.TrimSpace(in.Name)
	c.Phone = in.Phone
	c.Email = in.Email
	c.Address = in.Address
	c.Language = in.Language
	if c.Language == "" {
		c.Language = "en"
	}
	c.Notes = in.Notes
}

func (h *Handler) CreateCustomer(c *gin.Context) {
	var in customerInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	customer := &storage.Customer{ID: uuid.New().String(), CreatedAt: h.cfg.Now()}
	in.apply(customer)
	if err := h.deps.Store.CreateCustomer(c.Request.Context(), customer); err != nil {
		h.writeError(c, "customer", err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

// ListCustomers lists by name; ?user_id= narrows to one shop
func (h *Handler) ListCustomers(c *gin.Context) {
	var owners []string
	if id := c.Query("user_id"); id != "" {
		owners = []string{id}
	}
	customers, err := h.deps.Store.ListCustomers(c.Request.Context(), owners, 0)
	if err != nil {
		h.writeError(c, "customers", err)
		return
	}
	sort.SliceStable(customers, func(i, j int) bool {
		return strings.ToLower(customers[i].Name) < strings.ToLower(customers[j].Name)
	})
	c.JSON(http.StatusOK, customers)
}

func (h *Handler) GetCustomer(c *gin.Context) {
	customer, err := h.deps.Store.GetCustomer(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, "customer", err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

// UpdateCustomer replaces the profile; purchase totals are kept
func (h *Handler) UpdateCustomer(c *gin.Context) {
	var in customerInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	customer, err := h.deps.Store.GetCustomer(ctx, c.Param("id"))
	if err != nil {
		h.writeError(c, "customer", err)
		return
	}
	in.apply(customer)
	if err := h.deps.Store.UpdateCustomer(ctx, customer); err != nil {
		h.writeError(c, "customer", err)
		return
	}
	updated, err := h.deps.Store.GetCustomer(ctx, customer.ID)
	if err != nil {
		h.writeError(c, "customer", err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteCustomer(c *gin.Context) {
	if err := h.deps.Store.DeleteCustomer(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, "customer", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Customer deleted"})
}

func (h *Handler) SearchCustomers(c *gin.Context) {
	customers, err := h.deps.Store.SearchCustomers(c.Request.Context(), c.Query("user_id"), c.Param("query"))
	if err != nil {
		h.writeError(c, "customers", err)
		return
	}
	c.JSON(http.StatusOK, customers)
}

// --- Products ---

type productInput struct {
	UserID      string   `json:"user_id" binding:"required"`
	Name        string   `json:"name" binding:"required"`
	Price       *float64 `json:"price" binding:"required,gte=0"`
	Description string   `json:"description"`
}

func (in productInput) product(id string) *storage.Product {
	return &storage.Product{
		ID:          id,
		UserID:      in.UserID,
		Name:        strings.TrimSpace(in.Name),
		Price:       *in.Price,
		Description: in.Description,
	}
}

func (h *Handler) CreateProduct(c *gin.Context) {
	var in productInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	product := in.product(uuid.New().String())
	product.CreatedAt = h.cfg.Now()
	if err := h.deps.Store.CreateProduct(c.Request.Context(), product); err != nil {
		h.writeError(c, "product", err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) ListProducts(c *gin.Context) {
	products, err := h.deps.Store.ListProducts(c.Request.Context(), c.Query("user_id"))
	if err != nil {
		h.writeError(c, "products", err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) GetProduct(c *gin.Context) {
	product, err := h.deps.Store.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, "product", err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) UpdateProduct(c *gin.Context) {
	var in productInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	product := in.product(c.Param("id"))
	if err := h.deps.Store.UpdateProduct(ctx, product); err != nil {
		h.writeError(c, "product", err)
		return
	}
	updated, err := h.deps.Store.GetProduct(ctx, product.ID)
	if err != nil {
		h.writeError(c, "product", err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteProduct(c *gin.Context) {
	if err := h.deps.Store.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, "product", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Product deleted"})
}

func (h *Handler) SearchProducts(c *gin.Context) {
	products, err := h.deps.Store.SearchProducts(c.Request.Context(), c.Query("user_id"), c.Param("query"))
	if err != nil {
		h.writeError(c, "products", err)
		return
	}
	c.JSON(http.StatusOK, products)
}
