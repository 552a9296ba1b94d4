package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/middleware"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
)

// ======================================================
// HANDLER
// ======================================================

type AuditLogsHandler struct {
	db  *gorm.DB
	loc *time.Location
}

func NewAuditLogsHandler(db *gorm.DB, loc *time.Location) *AuditLogsHandler {
	return &AuditLogsHandler{db: db, loc: loc}
}

// List pages through the caller's center audit trail, newest first.
// from/to are calendar days in the center's zone; to is inclusive.
func (h *AuditLogsHandler) List(c *gin.Context) {
	serviceCenterID := c.MustGet(middleware.ContextServiceCenterID).(uint)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page <= 0 {
		page = 1
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	offset := (page - 1) * limit

	// --------------------------------------------------
	// Base query, always scoped to the caller's center
	// --------------------------------------------------

	q := h.db.
		Model(&models.AuditLog{}).
		Where("service_center_id = ?", serviceCenterID)

	if action := c.Query("action"); action != "" {
		q = q.Where("action = ?", action)
	}

	if actor := c.Query("actor"); actor != "" {
		q = q.Where("actor = ?", actor)
	}

	if entity := c.Query("entity"); entity != "" {
		q = q.Where("entity = ?", entity)
	}

	if id, err := strconv.ParseUint(c.Query("entity_id"), 10, 64); err == nil {
		q = q.Where("entity_id = ?", id)
	}

	if from, err := parseDate(h.loc, c.Query("from")); err == nil {
		q = q.Where("created_at >= ?", from.UTC())
	}

	if to, err := parseDate(h.loc, c.Query("to")); err == nil {
		q = q.Where("created_at < ?", to.AddDate(0, 0, 1).UTC())
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		httperr.Internal(c, "audit_count_failed", "Could not count audit logs.")
		return
	}

	var logs []models.AuditLog
	if err := q.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error; err != nil {

		httperr.Internal(c, "audit_list_failed", "Could not list audit logs.")
		return
	}

	c.JSON(200, gin.H{
		"page":  page,
		"limit": limit,
		"total": total,
		"logs":  logs,
	})
}
