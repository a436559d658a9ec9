package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"catalog-sync-service/internal/models"
	"catalog-sync-service/internal/repository"
)

// CatalogHandler handles canonical catalog read endpoints
type CatalogHandler struct {
	products repository.ProductRepositoryInterface
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(products repository.ProductRepositoryInterface) *CatalogHandler {
	return &CatalogHandler{products: products}
}

// ListProducts returns catalog products with pagination and filters
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	opts := repository.ListOptions{
		Limit:      limit,
		Offset:     offset,
		Brand:      c.Query("brand"),
		Search:     c.Query("search"),
		SyncStatus: models.SyncStatus(c.Query("syncStatus")),
		ActiveOnly: c.Query("activeOnly") == "true",
	}

	products, total, err := h.products.List(c.Request.Context(), opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":  products,
		"total": total,
	})
}

// GetProduct returns a single product with variants and category
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	product, err := h.products.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": product})
}

// ActivateProduct re-enables a product
func (h *CatalogHandler) ActivateProduct(c *gin.Context) {
	h.setActive(c, true)
}

// DeactivateProduct disables a product without deleting it
func (h *CatalogHandler) DeactivateProduct(c *gin.Context) {
	h.setActive(c, false)
}

func (h *CatalogHandler) setActive(c *gin.Context, active bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if err := h.products.SetActive(c.Request.Context(), id, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id, "isActive": active}})
}
