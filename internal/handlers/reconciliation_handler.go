package handlers

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/app"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httpresp"
)

type ReconciliationHandler struct {
	uc *app.Container
}

func NewReconciliationHandler(uc *app.Container) *ReconciliationHandler {
	return &ReconciliationHandler{uc: uc}
}

// Run triggers a sweep now. It fails with a retryable error while
// another sweep holds the lock.
func (h *ReconciliationHandler) Run(c *gin.Context) {
	run, err := h.uc.Reconciler.Run(c.Request.Context())
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	httpresp.OK(c, run)
}

func (h *ReconciliationHandler) Report(c *gin.Context) {
	date := c.Param("date")
	if _, err := parseDate(h.uc.Location, date); err != nil {
		httperr.BadRequest(c, "invalid_date", "Invalid date.")
		return
	}

	rep, err := h.uc.Reconciler.Report(c.Request.Context(), date)
	if err != nil {
		httperr.Respond(c, err)
		return
	}

	httpresp.OK(c, gin.H{
		"report_date":  rep.ReportDate,
		"generated_at": rep.GeneratedAt,
		"archive_key":  rep.ArchiveKey,
		"report":       json.RawMessage(rep.Body),
	})
}
