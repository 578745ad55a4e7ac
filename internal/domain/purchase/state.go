package purchase

import (
	"fmt"
	"time"
)

// deliveryTransitions lists every fulfilment move a buyer or seller may make.
// Cancellation is handled separately: it is allowed from any non-terminal
// delivery state.
var deliveryTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryNotStarted: {DeliveryInProgress, DeliveryReview},
	DeliveryInProgress: {DeliveryReview},
	DeliveryReview:     {DeliveryDelivered, DeliveryReview},
	DeliveryDelivered:  {DeliveryAccepted, DeliveryRejected},
	DeliveryRejected:   {DeliveryReview},
	DeliveryCancelled:  {DeliveryReview},
}

// statusTransitions is the commercial state machine outside admin override.
var statusTransitions = map[Status][]Status{
	StatusPending:    {StatusPaid, StatusCancelled},
	StatusPaid:       {StatusInProgress, StatusCompleted, StatusCancelled},
	StatusInProgress: {StatusDelivered, StatusCompleted, StatusCancelled},
	StatusDelivered:  {StatusCompleted},
	StatusCompleted:  {StatusRefunded},
}

func canTransitionDelivery(from, to DeliveryStatus) bool {
	if to == DeliveryCancelled {
		return from != DeliveryAccepted && from != DeliveryCancelled
	}
	for _, next := range deliveryTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func canTransitionStatus(from, to Status) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// transitionDeliveryStatus moves p to the target delivery status and applies
// the side effects tied to it. With force set, the transition table is not
// consulted.
func transitionDeliveryStatus(p *Purchase, to DeliveryStatus, now time.Time, force bool) error {
	if !to.Valid() {
		return invalid("delivery_status", fmt.Sprintf("Unknown delivery status %q", to))
	}
	if !force && !canTransitionDelivery(p.DeliveryStatus, to) {
		return fmt.Errorf("%w: delivery %s -> %s", ErrNotEligible, p.DeliveryStatus, to)
	}

	p.DeliveryStatus = to
	switch to {
	case DeliveryDelivered:
		p.ActualDeliveryDate = &now
	case DeliveryAccepted:
		p.Status = StatusCompleted
		p.CompletedDate = &now
	case DeliveryCancelled:
		p.DeliveryRequirements = nil
	}
	p.UpdatedAt = now
	return nil
}

// transitionStatus moves the commercial status. With force set, the
// transition table is not consulted.
func transitionStatus(p *Purchase, to Status, now time.Time, force bool) error {
	if !to.Valid() {
		return invalid("status", fmt.Sprintf("Unknown status %q", to))
	}
	if !force && !canTransitionStatus(p.Status, to) {
		return fmt.Errorf("%w: status %s -> %s", ErrNotEligible, p.Status, to)
	}

	p.Status = to
	switch to {
	case StatusPaid:
		if p.PaidAt == nil {
			p.PaidAt = &now
		}
	case StatusCompleted:
		if p.CompletedDate == nil {
			p.CompletedDate = &now
		}
	}
	p.UpdatedAt = now
	return nil
}
