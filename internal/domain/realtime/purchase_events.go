package realtime

import (
	"context"
	"errors"

	"github.com/devmarket/marketplace-api/internal/domain/purchase"
)

// PurchaseEvents pushes purchase changes to the buyer's and seller's sockets.
type PurchaseEvents struct {
	hub *Hub
}

func NewPurchaseEvents(hub *Hub) *PurchaseEvents {
	return &PurchaseEvents{hub: hub}
}

// Publish implements purchase.EventSink.
func (p *PurchaseEvents) Publish(ctx context.Context, evt purchase.Event) error {
	var errs []error
	for _, userID := range evt.Recipients {
		if err := p.hub.SendToUser(ctx, userID, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
