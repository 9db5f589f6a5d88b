package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"storefront-backend/models"
	"storefront-backend/storage"
	"storefront-backend/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const storefrontShelfSize = 8

// StorefrontHandler serves the public catalog queries. Only active products
// and their active gallery images are ever returned.
type StorefrontHandler struct {
	DB    *gorm.DB
	Store storage.Backend
}

func (h *StorefrontHandler) catalog(c *gin.Context) *gorm.DB {
	return h.DB.WithContext(c.Request.Context()).
		Scopes(models.ActiveProducts).
		Preload("Images", models.ActiveImages).
		Order("created_at DESC, id DESC")
}

func (h *StorefrontHandler) respondProducts(c *gin.Context, query *gorm.DB) {
	products := []models.Product{}
	if err := query.Find(&products).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch products")
		return
	}
	withImageURLsAll(h.Store, products)
	respondData(c, products)
}

func (h *StorefrontHandler) LatestProducts(c *gin.Context) {
	h.respondProducts(c, h.catalog(c).Where("is_featured = ?", models.FeaturedNo).Limit(storefrontShelfSize))
}

func (h *StorefrontHandler) FeaturedProducts(c *gin.Context) {
	h.respondProducts(c, h.catalog(c).Where("is_featured = ?", models.FeaturedYes).Limit(storefrontShelfSize))
}

func (h *StorefrontHandler) ProductsByCategory(c *gin.Context) {
	id, ok := paramID(c, "id", "Category not found")
	if !ok {
		return
	}
	h.respondProducts(c, h.catalog(c).Where("category_id = ?", id))
}

func (h *StorefrontHandler) ProductsByBrand(c *gin.Context) {
	id, ok := paramID(c, "id", "Brand not found")
	if !ok {
		return
	}
	h.respondProducts(c, h.catalog(c).Where("brand_id = ?", id))
}

func (h *StorefrontHandler) AllProducts(c *gin.Context) {
	h.respondProducts(c, h.catalog(c))
}

func (h *StorefrontHandler) GetProduct(c *gin.Context) {
	id, ok := paramID(c, "id", "Product not found")
	if !ok {
		return
	}

	var product models.Product
	err := h.catalog(c).Preload("Sizes").Preload("Category").Preload("Brand").First(&product, id).Error
	if err != nil {
		respondNotFound(c, "Product not found")
		return
	}
	withImageURLs(h.Store, &product)
	respondData(c, product)
}

// filterValue reads an optional id filter. Empty and "all" mean no filter.
func filterValue(c *gin.Context, key string) (id uint, echo string, valid bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" || strings.EqualFold(raw, "all") {
		return 0, "all", true
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		return 0, raw, false
	}
	return uint(n), raw, true
}

// FilterProducts narrows the catalog by category_id and brand_id and echoes
// the applied filters with the match count.
func (h *StorefrontHandler) FilterProducts(c *gin.Context) {
	var errs map[string][]string
	categoryID, categoryEcho, ok := filterValue(c, "category_id")
	if !ok {
		errs = utils.AddFieldError(errs, "category_id", "The category id field must be an integer.")
	}
	brandID, brandEcho, ok := filterValue(c, "brand_id")
	if !ok {
		errs = utils.AddFieldError(errs, "brand_id", "The brand id field must be an integer.")
	}
	if len(errs) > 0 {
		respondValidation(c, errs)
		return
	}

	query := h.catalog(c)
	if categoryID != 0 {
		query = query.Where("category_id = ?", categoryID)
	}
	if brandID != 0 {
		query = query.Where("brand_id = ?", brandID)
	}

	products := []models.Product{}
	if err := query.Find(&products).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  http.StatusInternalServerError,
			"message": "Error fetching filtered products",
			"data":    []models.Product{},
		})
		return
	}
	withImageURLsAll(h.Store, products)

	c.JSON(http.StatusOK, gin.H{
		"status": http.StatusOK,
		"data":   products,
		"count":  len(products),
		"filters": gin.H{
			"category_id": categoryEcho,
			"brand_id":    brandEcho,
		},
	})
}
