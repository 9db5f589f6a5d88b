package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"storefront-backend/database"
	"storefront-backend/middleware"
	"storefront-backend/models"
	"storefront-backend/utils"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Notifier sends transactional emails. *utils.Mailer implements it.
type Notifier interface {
	SendWelcomeEmail(ctx context.Context, email, name string)
	SendOrderConfirmation(ctx context.Context, email, name, orderNumber, total string)
}

type AuthHandler struct {
	DB     *gorm.DB
	Mailer Notifier
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Name                 string `json:"name" binding:"required,max=255"`
		Email                string `json:"email" binding:"required,email,max=255"`
		Password             string `json:"password" binding:"required,min=6"`
		PasswordConfirmation string `json:"password_confirmation" binding:"required,eqfield=Password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	var count int64
	h.DB.Model(&models.User{}).Where("email = ?", req.Email).Count(&count)
	if count > 0 {
		respondValidation(c, utils.AddFieldError(nil, "email", "The email has already been taken."))
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	user := models.User{
		Name:     strings.TrimSpace(req.Name),
		Email:    req.Email,
		Password: string(hashedPassword),
		Role:     models.RoleCustomer,
	}
	if err := h.DB.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			respondValidation(c, utils.AddFieldError(nil, "email", "The email has already been taken."))
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to create user")
		return
	}

	if h.Mailer != nil {
		h.Mailer.SendWelcomeEmail(c.Request.Context(), user.Email, user.Name)
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  http.StatusOK,
		"message": "You have registered successfully.",
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	h.login(c, "")
}

// AdminLogin only accepts accounts with the admin role.
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	h.login(c, models.RoleAdmin)
}

func (h *AuthHandler) login(c *gin.Context, requiredRole string) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	unauthorized := "Either email or password is incorrect."
	if requiredRole != "" {
		unauthorized = "Either email or password is incorrect, or you are not authorized."
	}

	var user models.User
	err := h.DB.WithContext(c.Request.Context()).
		Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).
		First(&user).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusInternalServerError, "Failed to load user")
			return
		}
		respondError(c, http.StatusUnauthorized, unauthorized)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		respondError(c, http.StatusUnauthorized, unauthorized)
		return
	}
	if requiredRole != "" && user.Role != requiredRole {
		respondError(c, http.StatusUnauthorized, unauthorized)
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": http.StatusOK,
		"token":  token,
		"id":     user.ID,
		"name":   user.Name,
		"role":   user.Role,
	})
}

func (h *AuthHandler) GetProfile(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var user models.User
	if err := h.DB.First(&user, userID).Error; err != nil {
		respondNotFound(c, "User not found")
		return
	}
	respondData(c, user)
}
