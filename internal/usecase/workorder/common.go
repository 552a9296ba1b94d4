package workorder

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"gorm.io/datatypes"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/audit"
	domain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/workorder"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
)

var tracer = otel.Tracer("github.com/NghiaaPham/ServiceCenter-sub002/internal/usecase/workorder")

type timelineEntry struct {
	Kind    string
	From    domain.Status
	To      domain.Status
	Message string
	ActorID *uint
	Payload any
}

func addTimeline(
	ctx context.Context,
	tx domain.Repository,
	wo *models.WorkOrder,
	e timelineEntry,
	now time.Time,
) error {
	ev := &models.WorkOrderTimeline{
		WorkOrderID: wo.ID,
		Kind:        e.Kind,
		FromStatus:  string(e.From),
		ToStatus:    string(e.To),
		Message:     e.Message,
		ActorID:     e.ActorID,
		CreatedAt:   now,
	}
	if e.Payload != nil {
		b, err := json.Marshal(e.Payload)
		if err != nil {
			log.Printf("[workorder] timeline payload for %s: %v", wo.Code, err)
		} else {
			ev.Payload = datatypes.JSON(b)
		}
	}
	return tx.AddTimeline(ctx, ev)
}

func auditEvent(wo *models.WorkOrder, userID *uint, action string, meta any) audit.Event {
	return audit.Event{
		ServiceCenterID: wo.ServiceCenterID,
		UserID:          userID,
		Action:          action,
		Entity:          "work_order",
		EntityID:        &wo.ID,
		Metadata:        meta,
	}
}

// transition applies a matrix-checked move and records it on the timeline.
func transition(
	ctx context.Context,
	tx domain.Repository,
	wo *models.WorkOrder,
	to domain.Status,
	actorID *uint,
	message string,
	now time.Time,
) (bool, error) {

	from := domain.Status(wo.Status)
	changed, err := domain.Transition(wo, to, now)
	if err != nil || !changed {
		return changed, err
	}
	wo.UpdatedAt = now
	if err := tx.Update(ctx, wo); err != nil {
		return false, err
	}
	return true, addTimeline(ctx, tx, wo, timelineEntry{
		Kind:    "status_changed",
		From:    from,
		To:      to,
		Message: message,
		ActorID: actorID,
	}, now)
}

func serviceIDs(wo *models.WorkOrder) []uint {
	ids := make([]uint, 0, len(wo.Services))
	for _, s := range wo.Services {
		ids = append(ids, s.ServiceID)
	}
	return ids
}
