package purchase

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	maxMessageLength = 2000
)

// RecordRating rates a completed purchase.
func (s *Service) RecordRating(ctx context.Context, actor Actor, id uuid.UUID, rating int, review string) (*Purchase, error) {
	return s.rate(ctx, actor, id, rating, review, func(p *Purchase) bool {
		return p.Status == StatusCompleted
	})
}

// RecordDeliveredRating rates a purchase whose delivery has been handed
// over, before the order is formally completed.
func (s *Service) RecordDeliveredRating(ctx context.Context, actor Actor, id uuid.UUID, rating int, review string) (*Purchase, error) {
	return s.rate(ctx, actor, id, rating, review, func(p *Purchase) bool {
		return p.DeliveryStatus == DeliveryDelivered || p.DeliveryStatus == DeliveryAccepted
	})
}

func (s *Service) rate(ctx context.Context, actor Actor, id uuid.UUID, rating int, review string, eligible func(*Purchase) bool) (*Purchase, error) {
	if rating < 1 || rating > 5 {
		return nil, invalid("rating", "Rating must be between 1 and 5")
	}
	review = strings.TrimSpace(review)

	return s.mutate(ctx, id, func(sc Scope, p *Purchase, fx *effects) error {
		if !p.IsBuyer(actor.UserID) {
			return ErrForbidden
		}
		if p.IsRated || p.Rating != nil {
			return ErrAlreadyRated
		}
		if !eligible(p) {
			return ErrNotEligible
		}

		p.Rating = &rating
		if review != "" {
			p.Review = &review
		}
		p.IsRated = true
		p.ReviewApproved = nil
		p.UpdatedAt = s.now()
		if err := sc.Purchases.Update(ctx, p); err != nil {
			return err
		}
		fx.event(EventRated, p, nil)
		return nil
	})
}

// ModerateReview approves or rejects a buyer review. A rejected review
// loses its rating and text but the purchase stays rated.
func (s *Service) ModerateReview(ctx context.Context, actor Actor, id uuid.UUID, approve bool) (*Purchase, error) {
	if !actor.IsAdmin {
		return nil, ErrForbidden
	}
	return s.mutate(ctx, id, func(sc Scope, p *Purchase, fx *effects) error {
		if !p.IsRated || (p.Rating == nil && p.Review == nil) {
			return ErrNotEligible
		}

		p.ReviewApproved = &approve
		if !approve {
			p.Rating = nil
			p.Review = nil
		}
		p.UpdatedAt = s.now()
		if err := sc.Purchases.Update(ctx, p); err != nil {
			return err
		}

		log.Info().
			Str("purchase_id", p.ID.String()).
			Str("admin_id", actor.UserID.String()).
			Bool("approved", approve).
			Msg("Review moderated")
		return nil
	})
}

// PostMessage appends a message from a buyer, seller or admin.
func (s *Service) PostMessage(ctx context.Context, actor Actor, id uuid.UUID, content string) (*Message, error) {
	content = strings.TrimSpace(content)
	if content == "" || len([]rune(content)) > maxMessageLength {
		return nil, invalid("content", "Message must be between 1 and 2000 characters")
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsParty(actor.UserID) && !actor.IsAdmin {
		return nil, ErrForbidden
	}

	sender := actor.UserID
	msg := &Message{PurchaseID: p.ID, SenderID: &sender, Content: content}
	if err := s.repo.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}

	fx := &effects{}
	fx.event(EventMessage, p, msg)
	s.dispatch(ctx, fx)
	return msg, nil
}

// ListMessages returns the conversation in append order.
func (s *Service) ListMessages(ctx context.Context, actor Actor, id uuid.UUID) ([]*Message, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, id)
}

// Get returns a purchase visible to the actor.
func (s *Service) Get(ctx context.Context, actor Actor, id uuid.UUID) (*Purchase, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsParty(actor.UserID) && !actor.IsAdmin {
		return nil, ErrForbidden
	}
	return p, nil
}

// ListMine lists the actor's purchases as buyer (default) or seller.
func (s *Service) ListMine(ctx context.Context, actor Actor, role Role, status Status, page, limit int) ([]*Purchase, int, error) {
	if status != "" && !status.Valid() {
		return nil, 0, invalid("status", "Unknown status")
	}
	limit, offset := pageBounds(page, limit)
	filter := ListFilter{Status: status, Limit: limit, Offset: offset}
	userID := actor.UserID

	switch role {
	case RoleSeller:
		filter.SellerID = &userID
	case RoleBuyer, "":
		filter.BuyerID = &userID
	default:
		return nil, 0, invalid("role", "Role must be buyer or seller")
	}
	return s.repo.List(ctx, filter)
}

// List is the admin view of all purchases.
func (s *Service) List(ctx context.Context, actor Actor, status Status, page, limit int) ([]*Purchase, int, error) {
	if !actor.IsAdmin {
		return nil, 0, ErrForbidden
	}
	if status != "" && !status.Valid() {
		return nil, 0, invalid("status", "Unknown status")
	}
	limit, offset := pageBounds(page, limit)
	return s.repo.List(ctx, ListFilter{Status: status, Limit: limit, Offset: offset})
}

// ListReviews is the admin moderation queue. state is pending (default),
// approved, rejected or all.
func (s *Service) ListReviews(ctx context.Context, actor Actor, state string, page, limit int) ([]*Purchase, int, error) {
	if !actor.IsAdmin {
		return nil, 0, ErrForbidden
	}
	limit, offset := pageBounds(page, limit)
	filter := ReviewFilter{Limit: limit, Offset: offset}

	switch state {
	case "", "pending":
	case "approved":
		v := true
		filter.Approved = &v
	case "rejected":
		v := false
		filter.Approved = &v
	case "all":
		filter.All = true
	default:
		return nil, 0, invalid("state", "State must be pending, approved, rejected or all")
	}
	return s.repo.ListReviews(ctx, filter)
}

func pageBounds(page, limit int) (int, int) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if page <= 0 {
		page = 1
	}
	return limit, (page - 1) * limit
}
