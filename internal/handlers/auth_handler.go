package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/config"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/middleware"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/validators"
)

type AuthHandler struct {
	db     *gorm.DB
	config *config.Config
	now    func() time.Time
}

func NewAuthHandler(db *gorm.DB, cfg *config.Config) *AuthHandler {
	return &AuthHandler{db: db, config: cfg, now: time.Now}
}

// --------- Requests ---------

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Phone    string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// --------- Handlers ---------

// Register creates a customer account. Staff accounts are provisioned
// by an administrator.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"details": err.Error(),
		})
		return
	}

	email, ok := validators.NormalizeEmail(req.Email)
	if !ok {
		httperr.BadRequest(c, "invalid_email", "Invalid e-mail address.")
		return
	}
	if !validators.IsEmailDomainValid(email) {
		httperr.BadRequest(c, "invalid_email_domain", "The e-mail domain does not look valid.")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		httperr.Internal(c, "failed_to_hash_password", "Could not register.")
		return
	}

	var user models.User
	err = h.db.Transaction(func(tx *gorm.DB) error {
		customer := models.Customer{
			Name:  req.Name,
			Phone: req.Phone,
			Email: email,
		}
		if err := tx.Create(&customer).Error; err != nil {
			return err
		}

		user = models.User{
			CustomerID:   &customer.ID,
			Name:         req.Name,
			Email:        email,
			PasswordHash: string(hashed),
			Phone:        req.Phone,
			Role:         middleware.RoleCustomer,
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		if httperr.IsUniqueViolation(err) {
			httperr.BadRequest(c, "email_already_registered", "E-mail already registered.")
			return
		}
		httperr.Internal(c, "failed_to_create_user", "Could not register.")
		return
	}

	token, err := h.generateToken(&user)
	if err != nil {
		httperr.Internal(c, "failed_to_generate_token", "Could not issue a token.")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user":  userView(&user),
		"token": token,
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"details": err.Error(),
		})
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	if err := h.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httperr.Unauthorized(c, "invalid_credentials", "Invalid credentials.")
			return
		}
		httperr.Internal(c, "internal_error", "Could not log in.")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		httperr.Unauthorized(c, "invalid_credentials", "Invalid credentials.")
		return
	}
	if !user.Active {
		httperr.Forbidden(c, "account_disabled", "This account is disabled.")
		return
	}

	now := h.now()
	if err := h.db.Model(&user).Update("last_login_at", now).Error; err != nil {
		log.Printf("[auth] stamp last login for user %d: %v", user.ID, err)
	}
	user.LastLoginAt = &now

	token, err := h.generateToken(&user)
	if err != nil {
		httperr.Internal(c, "failed_to_generate_token", "Could not issue a token.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":  userView(&user),
		"token": token,
	})
}

func userView(u *models.User) gin.H {
	return gin.H{
		"id":                u.ID,
		"name":              u.Name,
		"email":             u.Email,
		"phone":             u.Phone,
		"role":              u.Role,
		"service_center_id": u.ServiceCenterID,
		"customer_id":       u.CustomerID,
		"last_login_at":     u.LastLoginAt,
	}
}

// --------- JWT ---------

func (h *AuthHandler) generateToken(user *models.User) (string, error) {
	now := h.now()
	ttl := time.Duration(h.config.JWTExpireMin) * time.Minute

	claims := jwt.MapClaims{
		"sub":             user.ID,
		"serviceCenterId": user.ServiceCenterID,
		"role":            user.Role,
		"exp":             now.Add(ttl).Unix(),
		"iat":             now.Unix(),
	}
	if user.CustomerID != nil {
		claims["customerId"] = *user.CustomerID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.config.JWTSecret))
}
