package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"storefront-backend/database"
	"storefront-backend/gallery"
	"storefront-backend/logger"
	"storefront-backend/middleware"
	"storefront-backend/models"
	"storefront-backend/storage"
	"storefront-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

// GalleryPromoter attaches temporary uploads to a product. *gallery.Promoter implements it.
type GalleryPromoter interface {
	Promote(ctx context.Context, productID uint, tempImageIDs []uint) ([]gallery.Result, error)
}

type ProductHandler struct {
	DB       *gorm.DB
	Store    storage.Backend
	Promoter GalleryPromoter
	Log      *logger.Logger

	richText  *bluemonday.Policy
	plainText *bluemonday.Policy
}

func NewProductHandler(db *gorm.DB, store storage.Backend, promoter GalleryPromoter, log *logger.Logger) *ProductHandler {
	return &ProductHandler{
		DB:        db,
		Store:     store,
		Promoter:  promoter,
		Log:       log,
		richText:  bluemonday.UGCPolicy(),
		plainText: bluemonday.StrictPolicy(),
	}
}

type productRequest struct {
	Title            string       `json:"title" binding:"required,max=255"`
	Price            utils.Scalar `json:"price" binding:"required,money"`
	ComparePrice     utils.Scalar `json:"compare_price" binding:"omitempty,money"`
	Description      string       `json:"description"`
	ShortDescription string       `json:"short_description"`
	CategoryID       utils.Scalar `json:"category_id" binding:"required,number"`
	BrandID          utils.Scalar `json:"brand_id" binding:"required,number"`
	SKU              string       `json:"sku" binding:"required,max=255"`
	Barcode          string       `json:"barcode" binding:"max=255"`
	Qty              utils.Scalar `json:"qty" binding:"omitempty,number"`
	Status           utils.Scalar `json:"status" binding:"required,oneof=0 1"`
	IsFeatured       string       `json:"is_featured" binding:"required,oneof=yes no"`
	Sizes            []uint       `json:"sizes" binding:"omitempty,dive,gt=0"`
	Gallery          []uint       `json:"gallery" binding:"omitempty,dive,gt=0"`
}

// checkRefs runs the validations that need the database. exceptID excludes the
// product being updated from the sku uniqueness check.
func (h *ProductHandler) checkRefs(ctx context.Context, req *productRequest, exceptID uint) (map[string][]string, error) {
	db := h.DB.WithContext(ctx)
	var errs map[string][]string

	var skuCount int64
	q := db.Model(&models.Product{}).Where("sku = ?", strings.TrimSpace(req.SKU))
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&skuCount).Error; err != nil {
		return nil, err
	}
	if skuCount > 0 {
		errs = utils.AddFieldError(errs, "sku", "The sku has already been taken.")
	}

	var categoryCount int64
	if err := db.Model(&models.Category{}).Where("id = ?", req.CategoryID.Uint()).Count(&categoryCount).Error; err != nil {
		return nil, err
	}
	if categoryCount == 0 {
		errs = utils.AddFieldError(errs, "category_id", "The selected category id is invalid.")
	}

	var brandCount int64
	if err := db.Model(&models.Brand{}).Where("id = ?", req.BrandID.Uint()).Count(&brandCount).Error; err != nil {
		return nil, err
	}
	if brandCount == 0 {
		errs = utils.AddFieldError(errs, "brand_id", "The selected brand id is invalid.")
	}
	return errs, nil
}

func (h *ProductHandler) apply(req *productRequest, p *models.Product) {
	p.Title = strings.TrimSpace(req.Title)
	p.Price = req.Price.Decimal()
	p.ComparePrice = req.ComparePrice.NullDecimal()
	p.Description = h.richText.Sanitize(req.Description)
	p.ShortDescription = h.plainText.Sanitize(req.ShortDescription)
	p.CategoryID = req.CategoryID.Uint()
	p.BrandID = req.BrandID.Uint()
	p.SKU = strings.TrimSpace(req.SKU)
	p.Barcode = strings.TrimSpace(req.Barcode)
	p.Qty = req.Qty.Int()
	p.Status = req.Status.Int()
	p.IsFeatured = req.IsFeatured
}

func (h *ProductHandler) findSizes(ctx context.Context, ids []uint) ([]models.Size, error) {
	sizes := []models.Size{}
	if len(ids) == 0 {
		return sizes, nil
	}
	err := h.DB.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&sizes).Error
	return sizes, err
}

// loadProduct reads a product with its active gallery, sizes, category and brand.
func (h *ProductHandler) loadProduct(ctx context.Context, query *gorm.DB, id uint) (models.Product, error) {
	var product models.Product
	err := query.WithContext(ctx).
		Preload("Images", models.ActiveImages).
		Preload("Sizes").
		Preload("Category").
		Preload("Brand").
		First(&product, id).Error
	if err == nil {
		withImageURLs(h.Store, &product)
	}
	return product, err
}

// attachGallery promotes the temporary images and, when the product has no main
// image yet, uses the first promoted file.
func (h *ProductHandler) attachGallery(ctx context.Context, product *models.Product, ids []uint) ([]gallery.Result, error) {
	results, err := h.Promoter.Promote(ctx, product.ID, ids)
	if results == nil {
		results = []gallery.Result{}
	}

	if product.Image == "" {
		if promoted := gallery.Promoted(results); len(promoted) > 0 {
			product.Image = promoted[0].Image
			if uerr := h.DB.WithContext(ctx).Model(product).Update("image", product.Image).Error; uerr != nil {
				err = multierr.Append(err, uerr)
			}
		}
	}
	return results, err
}

func (h *ProductHandler) respondWithGallery(c *gin.Context, product models.Product, results []gallery.Result, err error, message string) {
	body := gin.H{
		"status":  http.StatusOK,
		"message": message,
		"product": product,
		"gallery": results,
	}
	if err != nil || gallery.Failed(results) {
		h.Log.Error(c.Request.Context(), "product gallery incomplete", err)
		body["status"] = http.StatusInternalServerError
		body["message"] = message + " Some gallery images could not be attached."
		c.JSON(http.StatusInternalServerError, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

// GetProducts lists active products, newest first, one page at a time.
func (h *ProductHandler) GetProducts(c *gin.Context) {
	query := h.DB.Model(&models.Product{}).Scopes(models.ActiveProducts)
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		query = query.Where("LOWER(title) LIKE LOWER(?)", "%"+search+"%")
	}
	h.listProducts(c, query)
}

// GetAdminProducts lists products of every status.
func (h *ProductHandler) GetAdminProducts(c *gin.Context) {
	query := h.DB.Model(&models.Product{})
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		query = query.Where("LOWER(title) LIKE LOWER(?) OR sku = ?", "%"+search+"%", search)
	}
	h.listProducts(c, query)
}

func (h *ProductHandler) listProducts(c *gin.Context, query *gorm.DB) {
	page, meta, err := paginate(c, query.WithContext(c.Request.Context()))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch products")
		return
	}

	products := []models.Product{}
	err = page.Preload("Images", models.ActiveImages).
		Preload("Category").
		Preload("Brand").
		Order("id DESC").
		Find(&products).Error
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch products")
		return
	}
	withImageURLsAll(h.Store, products)

	c.JSON(http.StatusOK, gin.H{
		"status":     http.StatusOK,
		"data":       products,
		"pagination": meta,
	})
}

// GetProduct returns one product. Hidden products are only visible to admins.
func (h *ProductHandler) GetProduct(c *gin.Context) {
	id, ok := paramID(c, "id", "Product not found")
	if !ok {
		return
	}

	query := h.DB
	if !middleware.IsAdmin(c) {
		query = query.Scopes(models.ActiveProducts)
	}
	product, err := h.loadProduct(c.Request.Context(), query, id)
	if err != nil {
		respondNotFound(c, "Product not found")
		return
	}
	respondData(c, product)
}

func (h *ProductHandler) CreateProduct(c *gin.Context) {
	ctx := c.Request.Context()

	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	errs, err := h.checkRefs(ctx, &req, 0)
	if err != nil {
		h.Log.Error(ctx, "check product references", err)
		respondError(c, http.StatusInternalServerError, "Failed to validate product")
		return
	}
	if len(errs) > 0 {
		respondValidation(c, errs)
		return
	}

	sizes, err := h.findSizes(ctx, req.Sizes)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to load sizes")
		return
	}

	var product models.Product
	h.apply(&req, &product)
	product.Sizes = sizes
	if err := h.DB.WithContext(ctx).Omit("Sizes.*").Create(&product).Error; err != nil {
		if database.IsUniqueViolation(err) {
			respondValidation(c, utils.AddFieldError(nil, "sku", "The sku has already been taken."))
			return
		}
		h.Log.Error(ctx, "create product", err)
		respondError(c, http.StatusInternalServerError, "Failed to create product")
		return
	}

	ctx = h.Log.WithField(ctx, "product_id", product.ID)
	results, promoteErr := h.attachGallery(ctx, &product, req.Gallery)

	saved, err := h.loadProduct(ctx, h.DB, product.ID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to load product")
		return
	}
	h.respondWithGallery(c, saved, results, promoteErr, "Product has been created successfully.")
}

func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	ctx := c.Request.Context()
	id, ok := paramID(c, "id", "Product not found")
	if !ok {
		return
	}

	var product models.Product
	if err := h.DB.WithContext(ctx).First(&product, id).Error; err != nil {
		respondNotFound(c, "Product not found")
		return
	}

	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	errs, err := h.checkRefs(ctx, &req, product.ID)
	if err != nil {
		h.Log.Error(ctx, "check product references", err)
		respondError(c, http.StatusInternalServerError, "Failed to validate product")
		return
	}
	if len(errs) > 0 {
		respondValidation(c, errs)
		return
	}

	sizes, err := h.findSizes(ctx, req.Sizes)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to load sizes")
		return
	}

	h.apply(&req, &product)
	err = h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Sizes", "Images", "Category", "Brand").Save(&product).Error; err != nil {
			return err
		}
		return tx.Model(&product).Association("Sizes").Replace(sizes)
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			respondValidation(c, utils.AddFieldError(nil, "sku", "The sku has already been taken."))
			return
		}
		h.Log.Error(ctx, "update product", err)
		respondError(c, http.StatusInternalServerError, "Failed to update product")
		return
	}

	ctx = h.Log.WithField(ctx, "product_id", product.ID)
	results, promoteErr := h.attachGallery(ctx, &product, req.Gallery)

	saved, err := h.loadProduct(ctx, h.DB, product.ID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to load product")
		return
	}
	h.respondWithGallery(c, saved, results, promoteErr, "Product has been updated successfully.")
}

// DeleteProduct removes the product, its gallery rows and their files. File
// removal happens after the rows are gone and failures are only logged.
func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	ctx := c.Request.Context()
	id, ok := paramID(c, "id", "Product not found")
	if !ok {
		return
	}

	var product models.Product
	if err := h.DB.WithContext(ctx).Preload("Images").First(&product, id).Error; err != nil {
		respondNotFound(c, "Product not found")
		return
	}

	err := h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", product.ID).Delete(&models.ProductImage{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&product).Association("Sizes").Clear(); err != nil {
			return err
		}
		return tx.Delete(&product).Error
	})
	if err != nil {
		h.Log.Error(ctx, "delete product", err)
		respondError(c, http.StatusInternalServerError, "Failed to delete product")
		return
	}

	ctx = h.Log.WithField(ctx, "product_id", product.ID)
	for _, img := range product.Images {
		h.removeGalleryFiles(ctx, img.Image)
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  http.StatusOK,
		"message": "Product deleted successfully.",
	})
}

// DeleteProductImage removes one gallery image. If it was the main image the
// next remaining gallery image takes its place.
func (h *ProductHandler) DeleteProductImage(c *gin.Context) {
	ctx := c.Request.Context()
	productID, ok := paramID(c, "id", "Product not found")
	if !ok {
		return
	}
	imageID, ok := paramID(c, "imageId", "Image not found")
	if !ok {
		return
	}

	var img models.ProductImage
	if err := h.DB.WithContext(ctx).Where("product_id = ?", productID).First(&img, imageID).Error; err != nil {
		respondNotFound(c, "Image not found")
		return
	}

	err := h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&img).Error; err != nil {
			return err
		}

		var product models.Product
		if err := tx.First(&product, productID).Error; err != nil {
			return err
		}
		if product.Image != img.Image {
			return nil
		}

		var next models.ProductImage
		replacement := ""
		err := tx.Scopes(models.ActiveImages).Where("product_id = ?", productID).First(&next).Error
		switch {
		case err == nil:
			replacement = next.Image
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		return tx.Model(&product).Update("image", replacement).Error
	})
	if err != nil {
		h.Log.Error(ctx, "delete product image", err)
		respondError(c, http.StatusInternalServerError, "Failed to delete image")
		return
	}

	h.removeGalleryFiles(h.Log.WithField(ctx, "product_id", productID), img.Image)

	c.JSON(http.StatusOK, gin.H{
		"status":  http.StatusOK,
		"message": "Image deleted successfully.",
	})
}

func (h *ProductHandler) removeGalleryFiles(ctx context.Context, name string) {
	for _, p := range []string{storage.ProductPath(name), storage.ProductPath(models.ThumbName(name))} {
		if err := h.Store.Remove(ctx, p); err != nil {
			h.Log.Error(h.Log.WithField(ctx, "path", p), "remove gallery file", err)
		}
	}
}
