package handlers

import (
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/appointment"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/middleware"
)

// parseDate reads yyyy-mm-dd as a calendar day in the service center's zone.
func parseDate(loc *time.Location, s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, loc)
}

func paramID(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		httperr.BadRequest(c, "invalid_"+name, "Invalid "+name+".")
		return 0, false
	}
	return uint(v), true
}

// bindOptional binds a body the client may leave out entirely. An empty
// body is fine; a malformed one is a 400.
func bindOptional(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		httperr.BadRequest(c, "invalid_request", err.Error())
		return false
	}
	return true
}

func userID(c *gin.Context) *uint {
	id := c.MustGet(middleware.ContextUserID).(uint)
	return &id
}

func isCustomer(c *gin.Context) bool {
	return c.GetString(middleware.ContextUserRole) == middleware.RoleCustomer
}

// customerScope limits reads and writes to the caller's own records when
// the caller is a customer. Staff get nil (no restriction).
func customerScope(c *gin.Context) *uint {
	if !isCustomer(c) {
		return nil
	}
	id, _ := middleware.CustomerID(c)
	return &id
}

func actor(c *gin.Context) appointment.Actor {
	uid := *userID(c)
	if isCustomer(c) {
		return appointment.Customer(uid)
	}
	return appointment.Staff(uid)
}

func idempotencyKey(c *gin.Context, fromBody string) string {
	if k := c.GetHeader("Idempotency-Key"); k != "" {
		return k
	}
	return fromBody
}
