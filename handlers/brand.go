package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"storefront-backend/database"
	"storefront-backend/middleware"
	"storefront-backend/models"
	"storefront-backend/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type BrandHandler struct {
	DB  *gorm.DB
	now func() time.Time
}

func (h *BrandHandler) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}

// brandSlug suffixes the slug with a unix timestamp so renamed brands never collide.
func (h *BrandHandler) brandSlug(name string) string {
	return fmt.Sprintf("%s-%d", utils.Slugify(name), h.clock().Unix())
}

func (h *BrandHandler) GetBrands(c *gin.Context) {
	query := h.DB.Order("name ASC")
	if !middleware.IsAdmin(c) {
		query = query.Where("status = ?", models.StatusActive)
	}

	var brands []models.Brand
	if err := query.Find(&brands).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch brands")
		return
	}
	respondData(c, brands)
}

func (h *BrandHandler) GetBrand(c *gin.Context) {
	id, ok := paramID(c, "id", "Brand not found")
	if !ok {
		return
	}

	var brand models.Brand
	if err := h.DB.First(&brand, id).Error; err != nil {
		respondNotFound(c, "Brand not found")
		return
	}
	respondData(c, brand)
}

func (h *BrandHandler) CreateBrand(c *gin.Context) {
	var req catalogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if nameTaken(h.DB, &models.Brand{}, name, 0) {
		respondValidation(c, utils.AddFieldError(nil, "name", "The name has already been taken."))
		return
	}

	brand := models.Brand{Name: name, Slug: h.brandSlug(name), Status: req.Status.Int()}
	if err := h.DB.Create(&brand).Error; err != nil {
		if database.IsUniqueViolation(err) {
			respondValidation(c, utils.AddFieldError(nil, "name", "The name has already been taken."))
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to create brand")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  http.StatusOK,
		"message": "Brand added successfully.",
		"data":    brand,
	})
}

func (h *BrandHandler) UpdateBrand(c *gin.Context) {
	id, ok := paramID(c, "id", "Brand not found")
	if !ok {
		return
	}

	var brand models.Brand
	if err := h.DB.First(&brand, id).Error; err != nil {
		respondNotFound(c, "Brand not found")
		return
	}

	var req catalogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if nameTaken(h.DB, &models.Brand{}, name, brand.ID) {
		respondValidation(c, utils.AddFieldError(nil, "name", "The name has already been taken."))
		return
	}

	if name != brand.Name {
		brand.Slug = h.brandSlug(name)
	}
	brand.Name = name
	brand.Status = req.Status.Int()
	if err := h.DB.Save(&brand).Error; err != nil {
		if database.IsUniqueViolation(err) {
			respondValidation(c, utils.AddFieldError(nil, "name", "The name has already been taken."))
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to update brand")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  http.StatusOK,
		"message": "Brand updated successfully.",
		"data":    brand,
	})
}

func (h *BrandHandler) DeleteBrand(c *gin.Context) {
	id, ok := paramID(c, "id", "Brand not found")
	if !ok {
		return
	}

	var brand models.Brand
	if err := h.DB.First(&brand, id).Error; err != nil {
		respondNotFound(c, "Brand not found")
		return
	}

	var productCount int64
	if err := h.DB.Model(&models.Product{}).Where("brand_id = ?", id).Count(&productCount).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to check brand dependencies")
		return
	}
	if productCount > 0 {
		c.JSON(http.StatusConflict, gin.H{
			"status":        http.StatusConflict,
			"message":       "Cannot delete brand with associated products",
			"product_count": productCount,
		})
		return
	}

	if err := h.DB.Delete(&brand).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to delete brand")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  http.StatusOK,
		"message": "Brand deleted successfully.",
	})
}
