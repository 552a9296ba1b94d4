package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/app"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httpresp"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/middleware"
	ucAppointment "github.com/NghiaaPham/ServiceCenter-sub002/internal/usecase/appointment"
	ucPayment "github.com/NghiaaPham/ServiceCenter-sub002/internal/usecase/payment"
)

// ======================================================
// HANDLER
// ======================================================

type AppointmentHandler struct {
	uc *app.Container
}

func NewAppointmentHandler(uc *app.Container) *AppointmentHandler {
	return &AppointmentHandler{uc: uc}
}

// ======================================================
// REQUESTS
// ======================================================

type CreateAppointmentRequest struct {
	CustomerID     uint   `json:"customer_id"`
	VehicleID      uint   `json:"vehicle_id" binding:"required"`
	SlotID         uint   `json:"slot_id" binding:"required"`
	ServiceIDs     []uint `json:"service_ids" binding:"required,min=1"`
	SubscriptionID *uint  `json:"subscription_id"`
	Notes          string `json:"notes"`
}

type UpdateAppointmentRequest struct {
	SlotID     *uint   `json:"slot_id"`
	ServiceIDs []uint  `json:"service_ids"`
	Notes      *string `json:"notes"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason"`
}

type RescheduleAppointmentRequest struct {
	SlotID uint `json:"slot_id" binding:"required"`
}

type CheckInRequest struct {
	MileageIn int `json:"mileage_in"`
}

type PrePaymentRequest struct {
	Provider       string `json:"provider" binding:"required"`
	IdempotencyKey string `json:"idempotency_key"`
}

// ======================================================
// CREATE / READ
// ======================================================

func (h *AppointmentHandler) Create(c *gin.Context) {
	var req CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", err.Error())
		return
	}

	customerID := req.CustomerID
	if scope := customerScope(c); scope != nil {
		customerID = *scope
	}
	if customerID == 0 {
		httperr.BadRequest(c, "customer_required", "customer_id is required.")
		return
	}

	ap, err := h.uc.CreateAppointment.Execute(c.Request.Context(), ucAppointment.CreateAppointmentInput{
		CustomerID:     customerID,
		VehicleID:      req.VehicleID,
		SlotID:         req.SlotID,
		ServiceIDs:     req.ServiceIDs,
		SubscriptionID: req.SubscriptionID,
		Notes:          req.Notes,
		Actor:          actor(c),
	})
	if err != nil {
		httperr.Respond(c, err)
		return
	}

	httpresp.Created(c, ap)
}

func (h *AppointmentHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	ap, err := h.uc.GetAppointment.Execute(c.Request.Context(), id, customerScope(c))
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	httpresp.OK(c, ap)
}

func (h *AppointmentHandler) ListMine(c *gin.Context) {
	customerID, ok := middleware.CustomerID(c)
	if !ok {
		httperr.Forbidden(c, "not_a_customer", "Only customers have their own bookings.")
		return
	}

	list, err := h.uc.ListAppointments.ForCustomer(c.Request.Context(), customerID)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	httpresp.List(c, list)
}

func (h *AppointmentHandler) ListByDate(c *gin.Context) {
	serviceCenterID := c.MustGet(middleware.ContextServiceCenterID).(uint)

	dateStr := c.Query("date")
	if dateStr == "" {
		httperr.BadRequest(c, "missing_date", "date is required.")
		return
	}
	date, err := parseDate(h.uc.Location, dateStr)
	if err != nil {
		httperr.BadRequest(c, "invalid_date", "Invalid date.")
		return
	}

	list, err := h.uc.ListAppointments.ForDay(c.Request.Context(), serviceCenterID, date, h.uc.Location)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	httpresp.List(c, list)
}

// Availability is public: anyone may look at open slots.
func (h *AppointmentHandler) Availability(c *gin.Context) {
	scID, err := strconv.ParseUint(c.Query("service_center_id"), 10, 64)
	if err != nil || scID == 0 {
		httperr.BadRequest(c, "invalid_service_center_id", "service_center_id is required.")
		return
	}
	date, err := parseDate(h.uc.Location, c.Query("date"))
	if err != nil {
		httperr.BadRequest(c, "invalid_date", "Invalid date.")
		return
	}

	slots, err := h.uc.GetAvailability.Execute(c.Request.Context(), uint(scID), date, h.uc.Location)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	httpresp.List(c, slots)
}

// ======================================================
// CHANGE
// ======================================================

func (h *AppointmentHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req UpdateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", err.Error())
		return
	}

	ap, err := h.uc.UpdateAppointment.Execute(c.Request.Context(), ucAppointment.UpdateAppointmentInput{
		ID:         id,
		CustomerID: customerScope(c),
		SlotID:     req.SlotID,
		ServiceIDs: req.ServiceIDs,
		Notes:      req.Notes,
		Actor:      actor(c),
	})
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	httpresp.OK(c, ap)
}

func (h *AppointmentHandler) Cancel(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req CancelAppointmentRequest
	if !bindOptional(c, &req) {
		return
	}

	ap, err := h.uc.CancelAppointment.Execute(c.Request.Context(), ucAppointment.CancelAppointmentInput{
		ID:         id,
		CustomerID: customerScope(c),
		Reason:     req.Reason,
		Actor:      actor(c),
	})
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	httpresp.OK(c, ap)
}

func (h *AppointmentHandler) Reschedule(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req RescheduleAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", err.Error())
		return
	}

	ap, err := h.uc.RescheduleAppointment.Execute(c.Request.Context(), ucAppointment.RescheduleAppointmentInput{
		ID:         id,
		CustomerID: customerScope(c),
		NewSlotID:  req.SlotID,
		Actor:      actor(c),
	})
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	httpresp.Created(c, ap)
}

func (h *AppointmentHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.uc.DeleteAppointment.Execute(c.Request.Context(), id, customerScope(c), actor(c)); err != nil {
		httperr.Respond(c, err)
		return
	}
	c.Status(204)
}

// ======================================================
// STAFF TRANSITIONS
// ======================================================

func (h *AppointmentHandler) Confirm(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	ap, err := h.uc.ConfirmAppointment.Execute(c.Request.Context(), id, actor(c))
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	httpresp.OK(c, ap)
}

func (h *AppointmentHandler) CheckIn(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req CheckInRequest
	if !bindOptional(c, &req) {
		return
	}

	ap, wo, err := h.uc.CheckIn.Execute(c.Request.Context(), ucAppointment.CheckInInput{
		ID:        id,
		MileageIn: req.MileageIn,
		Actor:     actor(c),
	})
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	httpresp.Created(c, gin.H{
		"appointment": ap,
		"work_order":  wo,
	})
}

func (h *AppointmentHandler) NoShow(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	ap, err := h.uc.MarkNoShow.Execute(c.Request.Context(), id, actor(c))
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	httpresp.OK(c, ap)
}

// ======================================================
// PAYMENT
// ======================================================

func (h *AppointmentHandler) PrePayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req PrePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", err.Error())
		return
	}

	var key *string
	if k := idempotencyKey(c, req.IdempotencyKey); k != "" {
		key = &k
	}

	pi, err := h.uc.PrePayment.Execute(c.Request.Context(), ucPayment.PrePaymentInput{
		AppointmentID:  id,
		CustomerID:     customerScope(c),
		Provider:       req.Provider,
		IdempotencyKey: key,
		UserID:         userID(c),
	})
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	httpresp.Created(c, pi)
}

func (h *AppointmentHandler) ResyncPayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	changed, err := h.uc.ResyncPayment.Execute(c.Request.Context(), id)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	httpresp.OK(c, gin.H{"changed": changed})
}
