package purchase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/devmarket/marketplace-api/internal/domain/user"
	"github.com/devmarket/marketplace-api/internal/pkg/logger"
)

// Event types published to the realtime sink.
const (
	EventCreated         = "purchase.created"
	EventPaid            = "purchase.paid"
	EventCancelled       = "purchase.cancelled"
	EventStatusChanged   = "purchase.status_changed"
	EventDeliveryUpdated = "purchase.delivery_updated"
	EventCompleted       = "purchase.completed"
	EventRefunded        = "purchase.refunded"
	EventMessage         = "purchase.message"
	EventRated           = "purchase.rated"
)

// Event is a purchase change pushed to connected clients.
type Event struct {
	Type           string         `json:"type"`
	PurchaseID     uuid.UUID      `json:"purchase_id"`
	Status         Status         `json:"status"`
	DeliveryStatus DeliveryStatus `json:"delivery_status"`
	Message        *Message       `json:"message,omitempty"`
	Recipients     []uuid.UUID    `json:"-"`
	OccurredAt     time.Time      `json:"occurred_at"`
}

// EventSink receives events after the change is committed.
type EventSink interface {
	Publish(ctx context.Context, evt Event) error
}

// Mailer is the fire-and-forget email queue.
type Mailer interface {
	Queue(to, toName, templateName, subject string, data interface{})
}

// UserDirectory resolves user records for notifications and checks.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*user.User, error)
}

type mail struct {
	to       uuid.UUID
	template string
	subject  string
	data     map[string]interface{}
}

// effects collects notifications during a transaction. They are dispatched
// only after commit and never fail the operation.
type effects struct {
	events []Event
	mails  []mail
}

func (fx *effects) event(typ string, p *Purchase, msg *Message) {
	fx.events = append(fx.events, Event{
		Type:           typ,
		PurchaseID:     p.ID,
		Status:         p.Status,
		DeliveryStatus: p.DeliveryStatus,
		Message:        msg,
		Recipients:     []uuid.UUID{p.BuyerID, p.SellerID},
		OccurredAt:     p.UpdatedAt,
	})
}

func (fx *effects) mail(to uuid.UUID, template, subject string, data map[string]interface{}) {
	fx.mails = append(fx.mails, mail{to: to, template: template, subject: subject, data: data})
}

func (s *Service) dispatch(ctx context.Context, fx *effects) {
	if fx == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	if s.events != nil {
		for _, evt := range fx.events {
			if err := s.events.Publish(ctx, evt); err != nil {
				logger.LogError(ctx, err, "Failed to publish purchase event",
					"event", evt.Type, "purchase_id", evt.PurchaseID.String())
			}
		}
	}

	if s.mailer == nil || len(fx.mails) == 0 {
		return
	}
	ids := make([]uuid.UUID, 0, len(fx.mails))
	for _, m := range fx.mails {
		ids = append(ids, m.to)
	}
	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		logger.LogError(ctx, err, "Failed to load notification recipients")
		return
	}
	for _, m := range fx.mails {
		u, ok := users[m.to]
		if !ok || u.Email == "" {
			continue
		}
		s.mailer.Queue(u.Email, u.DisplayName(), m.template, m.subject, m.data)
	}
}

func (s *Service) purchaseURL(p *Purchase) string {
	return s.cfg.FrontendURL + "/purchases/" + p.ID.String()
}

func (s *Service) mailData(p *Purchase) map[string]interface{} {
	reference := p.ID.String()
	if p.GatewayReference != nil {
		reference = *p.GatewayReference
	}
	return map[string]interface{}{
		"ProjectTitle": p.ProjectTitle,
		"Amount":       p.Amount.StringFixed(2),
		"Currency":     p.Currency,
		"Reference":    reference,
		"PurchaseURL":  s.purchaseURL(p),
	}
}
