package handlers

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/app"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httpresp"
	ucPayment "github.com/NghiaaPham/ServiceCenter-sub002/internal/usecase/payment"
)

type PaymentHandler struct {
	uc *app.Container
}

func NewPaymentHandler(uc *app.Container) *PaymentHandler {
	return &PaymentHandler{uc: uc}
}

type CancelIntentRequest struct {
	Reason string `json:"reason"`
}

type RefundRequest struct {
	IntentID       uint            `json:"intent_id" binding:"required"`
	AppointmentID  *uint           `json:"appointment_id"`
	Amount         decimal.Decimal `json:"amount"`
	Reason         string          `json:"reason"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// ======================================================
// INTENTS
// ======================================================

func (h *PaymentHandler) GetIntent(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	pi, err := h.uc.GetIntent.Execute(c.Request.Context(), id, customerScope(c))
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	httpresp.OK(c, pi)
}

func (h *PaymentHandler) CancelIntent(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req CancelIntentRequest
	if !bindOptional(c, &req) {
		return
	}

	pi, err := h.uc.CancelIntent.Execute(c.Request.Context(), id, req.Reason, userID(c))
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	httpresp.OK(c, pi)
}

// ======================================================
// REFUNDS
// ======================================================

func (h *PaymentHandler) RequestRefund(c *gin.Context) {
	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", err.Error())
		return
	}

	rf, err := h.uc.RequestRefund.Execute(c.Request.Context(), ucPayment.RequestRefundInput{
		IntentID:       req.IntentID,
		AppointmentID:  req.AppointmentID,
		Amount:         req.Amount,
		IdempotencyKey: idempotencyKey(c, req.IdempotencyKey),
		Reason:         req.Reason,
		UserID:         userID(c),
	})
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	httpresp.Created(c, rf)
}

func (h *PaymentHandler) ProcessRefund(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.uc.ProcessRefund.Execute(c.Request.Context(), id); err != nil {
		httperr.Respond(c, err)
		return
	}
	httpresp.OK(c, gin.H{"status": "processed"})
}

// ======================================================
// WEBHOOK
// ======================================================

// Webhook accepts a gateway notification. Fields come from the query
// string and a flat or one-level nested JSON body ("data.id"); the
// signature from X-Signature or a "signature" field.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	provider := c.Param("provider")

	fields := map[string]string{}
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 64<<10))
	if err != nil {
		httperr.BadRequest(c, "invalid_body", "Could not read body.")
		return
	}
	if len(body) > 0 {
		var raw map[string]any
		if err := json.Unmarshal(body, &raw); err != nil {
			httperr.BadRequest(c, "invalid_body", "Body must be a JSON object.")
			return
		}
		flatten("", raw, fields)
	}

	if rid := c.GetHeader("X-Request-Id"); rid != "" {
		fields["x-request-id"] = rid
	}

	signature := c.GetHeader("X-Signature")
	if signature == "" {
		signature = fields["signature"]
	}
	delete(fields, "signature")

	pi, err := h.uc.HandleCallback.Execute(c.Request.Context(), provider, fields, signature)
	if err != nil {
		httperr.Respond(c, err)
		return
	}

	httpresp.OK(c, gin.H{
		"status":      "ok",
		"intent_code": pi.Code,
		"intent":      pi.Status,
	})
}

func flatten(prefix string, in map[string]any, out map[string]string) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch t := v.(type) {
		case map[string]any:
			if prefix == "" {
				flatten(key, t, out)
			}
		case string:
			out[key] = t
		case float64:
			out[key] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			out[key] = strconv.FormatBool(t)
		}
	}
}
