package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/middleware"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
)

type MeHandler struct {
	db *gorm.DB
}

func NewMeHandler(db *gorm.DB) *MeHandler {
	return &MeHandler{db: db}
}

func (h *MeHandler) GetMe(c *gin.Context) {
	id := c.MustGet(middleware.ContextUserID).(uint)

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httperr.NotFound(c, "user_not_found", "User not found.")
			return
		}
		httperr.Internal(c, "internal_error", "Could not load user.")
		return
	}

	resp := gin.H{"user": userView(&user)}

	if user.CustomerID != nil {
		var vehicles []models.Vehicle
		if err := h.db.Where("customer_id = ?", *user.CustomerID).Order("id").Find(&vehicles).Error; err != nil {
			httperr.Internal(c, "internal_error", "Could not load vehicles.")
			return
		}
		resp["vehicles"] = vehicles
	}

	c.JSON(200, resp)
}
