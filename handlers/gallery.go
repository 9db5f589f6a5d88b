package handlers

import (
	"context"
	"net/http"

	"storefront-backend/gallery"
	"storefront-backend/logger"

	"github.com/gin-gonic/gin"
)

// GallerySweeper settles interrupted promotions. *gallery.Reconciler implements it.
type GallerySweeper interface {
	Sweep(ctx context.Context) (gallery.Report, error)
}

type GalleryHandler struct {
	Sweeper GallerySweeper
	Log     *logger.Logger
}

// Reconcile runs one sweep on demand and reports what it changed.
func (h *GalleryHandler) Reconcile(c *gin.Context) {
	report, err := h.Sweeper.Sweep(c.Request.Context())
	if err != nil {
		h.Log.Error(c.Request.Context(), "gallery sweep", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  http.StatusInternalServerError,
			"message": "Gallery sweep finished with errors.",
			"data":    report,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  http.StatusOK,
		"message": "Gallery sweep complete.",
		"data":    report,
	})
}
