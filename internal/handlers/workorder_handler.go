package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/app"
	woDomain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/workorder"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httpresp"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/middleware"
	ucWorkOrder "github.com/NghiaaPham/ServiceCenter-sub002/internal/usecase/workorder"
)

type WorkOrderHandler struct {
	uc *app.Container
}

func NewWorkOrderHandler(uc *app.Container) *WorkOrderHandler {
	return &WorkOrderHandler{uc: uc}
}

// ======================================================
// REQUESTS
// ======================================================

type WalkInRequest struct {
	CustomerID uint   `json:"customer_id" binding:"required"`
	VehicleID  uint   `json:"vehicle_id" binding:"required"`
	ServiceIDs []uint `json:"service_ids" binding:"required,min=1"`
	MileageIn  int    `json:"mileage_in"`
}

type AssignRequest struct {
	TechnicianID uint `json:"technician_id" binding:"required"`
}

type TransitionRequest struct {
	To   string `json:"to" binding:"required"`
	Note string `json:"note"`
}

type AddPartRequest struct {
	Name      string          `json:"name" binding:"required"`
	SKU       string          `json:"sku"`
	Quantity  int             `json:"quantity" binding:"required,min=1"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type CancelWorkOrderRequest struct {
	Reason string `json:"reason"`
}

// ======================================================
// CREATE / READ
// ======================================================

func (h *WorkOrderHandler) CreateWalkIn(c *gin.Context) {
	var req WalkInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", err.Error())
		return
	}

	wo, err := h.uc.CreateWalkIn.Execute(c.Request.Context(), ucWorkOrder.WalkInInput{
		ServiceCenterID: c.MustGet(middleware.ContextServiceCenterID).(uint),
		CustomerID:      req.CustomerID,
		VehicleID:       req.VehicleID,
		ServiceIDs:      req.ServiceIDs,
		MileageIn:       req.MileageIn,
		AdvisorID:       userID(c),
	})
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	httpresp.Created(c, wo)
}

func (h *WorkOrderHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	wo, err := h.uc.GetWorkOrder.Execute(c.Request.Context(), id)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	httpresp.OK(c, wo)
}

func (h *WorkOrderHandler) Invoice(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	inv, err := h.uc.GetWorkOrder.Invoice(c.Request.Context(), id)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	httpresp.OK(c, inv)
}

// ======================================================
// LIFECYCLE
// ======================================================

func (h *WorkOrderHandler) Assign(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", err.Error())
		return
	}

	wo, err := h.uc.AssignTechnician.Execute(c.Request.Context(), id, req.TechnicianID, userID(c))
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	httpresp.OK(c, wo)
}

func (h *WorkOrderHandler) Start(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	wo, err := h.uc.StartWork.Execute(c.Request.Context(), id, userID(c))
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	httpresp.OK(c, wo)
}

func (h *WorkOrderHandler) Transition(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", err.Error())
		return
	}
	to := woDomain.Status(req.To)
	if !to.Valid() {
		httperr.BadRequest(c, "invalid_status", "Unknown status "+req.To+".")
		return
	}

	wo, err := h.uc.TransitionWorkOrder.Execute(c.Request.Context(), id, to, req.Note, userID(c))
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	httpresp.OK(c, wo)
}

func (h *WorkOrderHandler) AddPart(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req AddPartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", err.Error())
		return
	}

	wo, err := h.uc.AddPart.Execute(c.Request.Context(), ucWorkOrder.AddPartInput{
		WorkOrderID: id,
		Name:        req.Name,
		SKU:         req.SKU,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
		UserID:      userID(c),
	})
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	httpresp.OK(c, wo)
}

// ApproveExtras is called by the customer who owns the order.
func (h *WorkOrderHandler) ApproveExtras(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	wo, err := h.uc.ApproveExtras.Execute(c.Request.Context(), id, customerScope(c), userID(c))
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	httpresp.OK(c, wo)
}

func (h *WorkOrderHandler) CompleteChecklistItem(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	itemID, ok := paramID(c, "itemId")
	if !ok {
		return
	}

	wo, err := h.uc.CompleteChecklistItem.Execute(c.Request.Context(), id, itemID, userID(c))
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	httpresp.OK(c, wo)
}

func (h *WorkOrderHandler) Complete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	wo, inv, err := h.uc.CompleteWorkOrder.Execute(c.Request.Context(), id, userID(c))
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	httpresp.OK(c, gin.H{
		"work_order": wo,
		"invoice":    inv,
	})
}

func (h *WorkOrderHandler) Cancel(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req CancelWorkOrderRequest
	if !bindOptional(c, &req) {
		return
	}

	wo, err := h.uc.CancelWorkOrder.Execute(c.Request.Context(), id, req.Reason, userID(c))
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	httpresp.OK(c, wo)
}
