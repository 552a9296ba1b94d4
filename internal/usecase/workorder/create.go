package workorder

import (
	"context"
	"log"

	"github.com/shopspring/decimal"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/audit"
	domain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/workorder"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/timezone"
)

type WalkInInput struct {
	ServiceCenterID uint
	CustomerID      uint
	VehicleID       uint
	ServiceIDs      []uint
	MileageIn       int
	AdvisorID       *uint
}

type CreateWalkIn struct {
	repo    domain.Repository
	audit   *audit.Dispatcher
	clock   timezone.Clock
	taxRate decimal.Decimal
}

func NewCreateWalkIn(
	repo domain.Repository,
	audit *audit.Dispatcher,
	clock timezone.Clock,
	taxRate decimal.Decimal,
) *CreateWalkIn {
	return &CreateWalkIn{
		repo:    repo,
		audit:   audit,
		clock:   clock,
		taxRate: taxRate,
	}
}

// Execute opens a work order with no appointment behind it.
func (uc *CreateWalkIn) Execute(ctx context.Context, in WalkInInput) (*models.WorkOrder, error) {
	now := uc.clock.Now()
	var wo *models.WorkOrder

	err := uc.repo.WithTx(ctx, func(tx domain.Repository) error {
		vehicle, err := tx.GetVehicle(ctx, in.VehicleID)
		if err != nil {
			return err
		}
		if vehicle.CustomerID != in.CustomerID {
			return httperr.ErrBusiness("vehicle_not_owned")
		}

		services, err := tx.ListServices(ctx, in.ServiceIDs)
		if err != nil {
			return err
		}
		lines := make([]models.WorkOrderService, 0, len(services))
		for _, s := range services {
			lines = append(lines, models.WorkOrderService{
				ServiceID: s.ID,
				Name:      s.Name,
				Source:    "regular",
				Price:     s.BasePrice.Round(2),
			})
		}

		var checklist []models.ChecklistItem
		if templates, err := tx.ListChecklistTemplates(ctx, in.ServiceIDs); err != nil {
			log.Printf("[workorder] walk-in checklist templates: %v", err)
		} else {
			var errs []error
			checklist, errs = domain.ParseTemplates(templates)
			for _, e := range errs {
				log.Printf("[workorder] walk-in: %v", e)
			}
		}

		code, err := domain.GenerateCode(ctx, now, tx.CodeExists)
		if err != nil {
			return err
		}

		mileage := in.MileageIn
		if mileage <= 0 {
			mileage = vehicle.Mileage
		}

		wo = domain.New(domain.Draft{
			Code:            code,
			ServiceCenterID: in.ServiceCenterID,
			CustomerID:      in.CustomerID,
			VehicleID:       in.VehicleID,
			AdvisorID:       in.AdvisorID,
			MileageIn:       mileage,
			Services:        lines,
			Checklist:       checklist,
		}, uc.taxRate)
		wo.CreatedAt = now
		wo.UpdatedAt = now

		if err := tx.Create(ctx, wo); err != nil {
			return err
		}
		return addTimeline(ctx, tx, wo, timelineEntry{
			Kind:    "created",
			To:      domain.StatusCreated,
			Message: "walk-in",
			ActorID: in.AdvisorID,
		}, now)
	})
	if err != nil {
		return nil, err
	}

	uc.audit.Dispatch(auditEvent(wo, in.AdvisorID, "work_order_created", map[string]any{
		"code":  wo.Code,
		"total": wo.Total.StringFixed(2),
	}))
	return wo, nil
}

type GetWorkOrder struct {
	repo domain.Repository
}

func NewGetWorkOrder(repo domain.Repository) *GetWorkOrder {
	return &GetWorkOrder{repo: repo}
}

func (uc *GetWorkOrder) Execute(ctx context.Context, id uint) (*models.WorkOrder, error) {
	return uc.repo.Get(ctx, id)
}

// Invoice returns the order's invoice, or not-found before completion.
func (uc *GetWorkOrder) Invoice(ctx context.Context, id uint) (*models.Invoice, error) {
	inv, err := uc.repo.FindInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, httperr.ErrNotFound("invoice")
	}
	return inv, nil
}
