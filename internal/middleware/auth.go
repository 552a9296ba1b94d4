package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/config"
)

const (
	ContextUserID          = "userID"
	ContextServiceCenterID = "serviceCenterID"
	ContextUserRole        = "userRole"
	ContextCustomerID      = "customerID"
)

const (
	RoleCustomer   = "customer"
	RoleAdvisor    = "advisor"
	RoleTechnician = "technician"
	RoleManager    = "manager"
	RoleAdmin      = "admin"
)

func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_authorization_header"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_authorization_header"})
			return
		}

		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenMalformed
			}
			return []byte(cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token_claims"})
			return
		}

		userID, ok1 := claims["sub"].(float64)
		serviceCenterID, ok2 := claims["serviceCenterId"].(float64)
		role, _ := claims["role"].(string)
		if !ok1 || !ok2 || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token_payload"})
			return
		}

		c.Set(ContextUserID, uint(userID))
		c.Set(ContextServiceCenterID, uint(serviceCenterID))
		c.Set(ContextUserRole, role)
		if customerID, ok := claims["customerId"].(float64); ok {
			c.Set(ContextCustomerID, uint(customerID))
		}

		c.Next()
	}
}

// RequireRole rejects callers whose role is not listed. Admin passes every check.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(c *gin.Context) {
		role := c.GetString(ContextUserRole)
		if role == RoleAdmin || allowed[role] {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}

// CustomerID returns the caller's customer id, if the caller is a customer.
func CustomerID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ContextCustomerID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}
