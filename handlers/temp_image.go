package handlers

import (
	"bytes"
	"io"
	"net/http"

	"storefront-backend/logger"
	"storefront-backend/models"
	"storefront-backend/storage"
	"storefront-backend/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const defaultThumbWidth = 400

type TempImageHandler struct {
	DB         *gorm.DB
	Store      storage.Backend
	Log        *logger.Logger
	ThumbWidth int
}

// Upload stores an image and its thumbnail in the temp area and records a
// temp_images row the product form can later reference by id.
func (h *TempImageHandler) Upload(c *gin.Context) {
	ctx := c.Request.Context()

	fh, err := c.FormFile("image")
	if err != nil {
		respondValidation(c, utils.AddFieldError(nil, "image", "The image field is required."))
		return
	}
	if err := utils.ValidateFileUpload(fh); err != nil {
		respondValidation(c, utils.AddFieldError(nil, "image", "The image field must be a jpg, png, webp or gif file of at most 5MB."))
		return
	}

	f, err := fh.Open()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to read upload")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, utils.MaxUploadSize+1))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to read upload")
		return
	}

	ext := utils.ImageExtension(fh)
	width := h.ThumbWidth
	if width <= 0 {
		width = defaultThumbWidth
	}
	thumb, err := utils.MakeThumbnail(bytes.NewReader(data), ext, width)
	if err != nil {
		respondValidation(c, utils.AddFieldError(nil, "image", "The image field must be an image."))
		return
	}

	name := utils.GenerateImageName(ext)
	contentType := fh.Header.Get("Content-Type")
	ctx = h.Log.WithField(ctx, "temp_image", name)

	if err := h.Store.EnsureDir(ctx, storage.TempDir); err != nil {
		h.Log.Error(ctx, "prepare temp dir", err)
		respondError(c, http.StatusInternalServerError, "Failed to store image")
		return
	}
	if err := h.Store.Put(ctx, storage.TempPath(name), bytes.NewReader(data), contentType); err != nil {
		h.Log.Error(ctx, "store temp image", err)
		respondError(c, http.StatusInternalServerError, "Failed to store image")
		return
	}
	thumbType := contentType
	if ext != ".png" && ext != ".gif" {
		thumbType = "image/jpeg"
	}
	if err := h.Store.Put(ctx, storage.TempPath(models.ThumbName(name)), bytes.NewReader(thumb), thumbType); err != nil {
		h.Log.Error(ctx, "store temp thumbnail", err)
		h.discard(c, name)
		respondError(c, http.StatusInternalServerError, "Failed to store image")
		return
	}

	temp := models.TempImage{Name: name}
	if err := h.DB.WithContext(ctx).Create(&temp).Error; err != nil {
		h.Log.Error(ctx, "record temp image", err)
		h.discard(c, name)
		respondError(c, http.StatusInternalServerError, "Failed to store image")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  http.StatusOK,
		"message": "Image has been uploaded successfully.",
		"data": gin.H{
			"id":        temp.ID,
			"name":      temp.Name,
			"image_url": h.Store.URL(storage.TempPath(name)),
			"thumb_url": h.Store.URL(storage.TempPath(models.ThumbName(name))),
		},
	})
}

func (h *TempImageHandler) discard(c *gin.Context, name string) {
	ctx := c.Request.Context()
	for _, p := range []string{storage.TempPath(name), storage.TempPath(models.ThumbName(name))} {
		if err := h.Store.Remove(ctx, p); err != nil {
			h.Log.Error(ctx, "discard temp upload", err)
		}
	}
}
