package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"storefront-backend/logger"
	"storefront-backend/middleware"
	"storefront-backend/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var errStockChanged = errors.New("stock changed during checkout")

type OrderHandler struct {
	DB      *gorm.DB
	Pricing Pricing
	Mailer  Notifier
	Log     *logger.Logger
}

type saveOrderRequest struct {
	Name          string     `json:"name" binding:"required,max=255"`
	Email         string     `json:"email" binding:"required,email"`
	Phone         string     `json:"phone" binding:"required,max=50"`
	Address       string     `json:"address" binding:"required"`
	City          string     `json:"city" binding:"required,max=100"`
	State         string     `json:"state" binding:"required,max=100"`
	Zip           string     `json:"zip" binding:"required,max=20"`
	PaymentMethod string     `json:"payment_method" binding:"omitempty,oneof=cod"`
	Items         []CartLine `json:"items" binding:"required,min=1,dive"`
}

// SaveOrder places an order for the signed-in customer. Prices come from the
// catalog, not the client, and stock is decremented under row locks.
func (h *OrderHandler) SaveOrder(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req saveOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	order := models.Order{
		UserID:        userID,
		Name:          strings.TrimSpace(req.Name),
		Email:         strings.TrimSpace(req.Email),
		Phone:         strings.TrimSpace(req.Phone),
		Address:       strings.TrimSpace(req.Address),
		City:          strings.TrimSpace(req.City),
		State:         strings.TrimSpace(req.State),
		Zip:           strings.TrimSpace(req.Zip),
		PaymentMethod: models.PaymentMethodCOD,
		PaymentStatus: models.PaymentStatusPending,
		Status:        models.OrderStatusPending,
	}

	var lineErrs map[string][]string
	err := h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quote, errs, err := h.Pricing.Quote(ctx, tx, req.Items, true)
		if err != nil {
			return err
		}
		if len(errs) > 0 {
			lineErrs = errs
			return errStockChanged
		}

		order.Subtotal = quote.Subtotal
		order.Shipping = quote.Shipping
		order.TotalPrice = quote.Total
		for _, line := range quote.Items {
			order.Items = append(order.Items, models.OrderItem{
				ProductID: line.ProductID,
				Name:      line.Title,
				Size:      line.Size,
				UnitPrice: line.UnitPrice,
				Price:     line.LineTotal,
				Quantity:  line.Qty,
				Image:     line.Image,
			})

			res := tx.Model(&models.Product{}).
				Where("id = ? AND qty >= ?", line.ProductID, line.Qty).
				Update("qty", gorm.Expr("qty - ?", line.Qty))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				lineErrs = map[string][]string{"items": {fmt.Sprintf("%s is out of stock.", line.Title)}}
				return errStockChanged
			}
		}

		return tx.Create(&order).Error
	})
	if errors.Is(err, errStockChanged) {
		respondValidation(c, lineErrs)
		return
	}
	if err != nil {
		h.Log.Error(ctx, "save order", err)
		respondError(c, http.StatusInternalServerError, "Failed to place order")
		return
	}

	if h.Mailer != nil {
		h.Mailer.SendOrderConfirmation(ctx, order.Email, order.Name, order.OrderNumber, orderTotal(order.TotalPrice))
	}
	h.Log.Info(h.Log.WithFields(ctx, map[string]any{"order_id": order.ID, "order_number": order.OrderNumber}), "order placed")

	c.JSON(http.StatusOK, gin.H{
		"status":  http.StatusOK,
		"message": "You have successfully placed your order.",
		"id":      order.ID,
		"data":    order,
	})
}

// GetOrder returns one of the customer's own orders with its items.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id, ok := paramID(c, "id", "Order not found")
	if !ok {
		return
	}

	var order models.Order
	err := h.DB.WithContext(c.Request.Context()).
		Preload("Items").
		Where("user_id = ?", userID).
		First(&order, id).Error
	if err != nil {
		respondNotFound(c, "Order not found")
		return
	}
	respondData(c, order)
}

func (h *OrderHandler) GetUserOrders(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	orders := []models.Order{}
	err := h.DB.WithContext(c.Request.Context()).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&orders).Error
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch orders")
		return
	}
	respondData(c, orders)
}

// GetAdminOrders lists every order, optionally filtered by ?status.
func (h *OrderHandler) GetAdminOrders(c *gin.Context) {
	query := h.DB.WithContext(c.Request.Context()).Model(&models.Order{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	page, meta, err := paginate(c, query)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch orders")
		return
	}

	orders := []models.Order{}
	if err := page.Preload("User").Order("created_at DESC, id DESC").Find(&orders).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch orders")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     http.StatusOK,
		"data":       orders,
		"pagination": meta,
	})
}

func (h *OrderHandler) GetAdminOrder(c *gin.Context) {
	id, ok := paramID(c, "id", "Order not found")
	if !ok {
		return
	}

	var order models.Order
	if err := h.DB.WithContext(c.Request.Context()).Preload("Items").Preload("User").First(&order, id).Error; err != nil {
		respondNotFound(c, "Order not found")
		return
	}
	respondData(c, order)
}

func (h *OrderHandler) GetOrderTransitions(c *gin.Context) {
	respondData(c, models.AllowedTransitions)
}

// UpdateOrderStatus moves an order along the status machine. Cancelling puts
// the ordered quantities back in stock.
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	ctx := c.Request.Context()
	id, ok := paramID(c, "id", "Order not found")
	if !ok {
		return
	}

	var req struct {
		Status        models.OrderStatus `json:"status" binding:"required,oneof=pending processing shipped delivered cancelled"`
		PaymentStatus string             `json:"payment_status" binding:"omitempty,oneof=paid 'not paid'"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	var order models.Order
	if err := h.DB.WithContext(ctx).First(&order, id).Error; err != nil {
		respondNotFound(c, "Order not found")
		return
	}

	if req.Status != order.Status && !models.IsValidTransition(order.Status, req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  http.StatusBadRequest,
			"message": fmt.Sprintf("Invalid status transition from '%s' to '%s'", order.Status, req.Status),
		})
		return
	}

	cancelling := req.Status == models.OrderStatusCancelled && order.Status != models.OrderStatusCancelled
	err := h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{"status": req.Status}
		if req.PaymentStatus != "" {
			updates["payment_status"] = req.PaymentStatus
		}
		if err := tx.Model(&order).Updates(updates).Error; err != nil {
			return err
		}
		if !cancelling {
			return nil
		}

		var items []models.OrderItem
		if err := tx.Where("order_id = ?", order.ID).Find(&items).Error; err != nil {
			return err
		}
		for _, item := range items {
			err := tx.Model(&models.Product{}).Where("id = ?", item.ProductID).
				Update("qty", gorm.Expr("qty + ?", item.Quantity)).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		h.Log.Error(ctx, "update order status", err)
		respondError(c, http.StatusInternalServerError, "Failed to update order status")
		return
	}

	h.DB.WithContext(ctx).Preload("Items").Preload("User").First(&order, order.ID)
	c.JSON(http.StatusOK, gin.H{
		"status":  http.StatusOK,
		"message": "Order updated successfully.",
		"data":    order,
	})
}

// orderTotal is the rounded amount shown to customers.
func orderTotal(d decimal.Decimal) string {
	return d.StringFixed(2)
}
