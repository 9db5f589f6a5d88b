package handlers

import (
	"net/http"

	"storefront-backend/storage"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CartHandler prices the cart the browser keeps. Nothing is stored server side.
type CartHandler struct {
	DB      *gorm.DB
	Store   storage.Backend
	Pricing Pricing
}

// Quote returns current prices and totals for the submitted lines. Lines that
// cannot be fulfilled are listed under "errors" while the rest are still priced.
func (h *CartHandler) Quote(c *gin.Context) {
	var req struct {
		Items []CartLine `json:"items" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	quote, errs, err := h.Pricing.Quote(c.Request.Context(), h.DB, req.Items, false)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to price cart")
		return
	}
	if quote.Items == nil {
		quote.Items = []QuoteLine{}
	}
	for i := range quote.Items {
		if quote.Items[i].Image != "" && h.Store != nil {
			quote.Items[i].ImageURL = h.Store.URL(storage.ProductPath(quote.Items[i].Image))
		}
	}

	body := gin.H{"status": http.StatusOK, "data": quote}
	if len(errs) > 0 {
		body["errors"] = errs
	}
	c.JSON(http.StatusOK, body)
}
