package handlers

import (
	"math"
	"net/http"
	"strconv"

	"storefront-backend/models"
	"storefront-backend/storage"
	"storefront-backend/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	defaultPerPage = 12
	maxPerPage     = 100
)

func respondValidation(c *gin.Context, errs map[string][]string) {
	c.JSON(http.StatusBadRequest, gin.H{"status": http.StatusBadRequest, "errors": errs})
}

func respondBindError(c *gin.Context, err error) {
	respondValidation(c, utils.ValidationErrors(err))
}

func respondNotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, gin.H{"status": http.StatusNotFound, "message": message})
}

func respondError(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"status": code, "message": message})
}

func respondData(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"status": http.StatusOK, "data": data})
}

// paramID parses a positive integer route parameter. It writes a 404 and
// returns false when the value is not an id.
func paramID(c *gin.Context, name, notFound string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondNotFound(c, notFound)
		return 0, false
	}
	return uint(id), true
}

type pagination struct {
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
	LastPage    int   `json:"last_page"`
}

// paginate counts query and narrows it to the page requested by ?page and ?per_page.
func paginate(c *gin.Context, query *gorm.DB) (*gorm.DB, pagination, error) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(defaultPerPage)))
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, pagination{}, err
	}

	lastPage := int(math.Ceil(float64(total) / float64(perPage)))
	if lastPage < 1 {
		lastPage = 1
	}
	p := pagination{CurrentPage: page, PerPage: perPage, Total: total, LastPage: lastPage}
	return query.Offset((page - 1) * perPage).Limit(perPage), p, nil
}

// withImageURLs fills the computed URL fields of a product and its gallery.
func withImageURLs(store storage.Backend, p *models.Product) {
	if store == nil {
		return
	}
	if p.Image != "" {
		p.ImageURL = store.URL(storage.ProductPath(p.Image))
	}
	for i := range p.Images {
		p.Images[i].ImageURL = store.URL(storage.ProductPath(p.Images[i].Image))
		p.Images[i].ThumbURL = store.URL(storage.ProductPath(models.ThumbName(p.Images[i].Image)))
	}
}

func withImageURLsAll(store storage.Backend, products []models.Product) {
	for i := range products {
		withImageURLs(store, &products[i])
	}
}
