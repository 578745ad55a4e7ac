package purchase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/devmarket/marketplace-api/internal/domain/settlement"
	"github.com/devmarket/marketplace-api/internal/pkg/email"
	"github.com/devmarket/marketplace-api/internal/pkg/gateway"
	"github.com/devmarket/marketplace-api/internal/pkg/storage"
	"github.com/devmarket/marketplace-api/internal/pkg/validator"
)

// fundsCaptured reports whether the buyer's money is held for this order.
func (p *Purchase) fundsCaptured() bool {
	switch p.Status {
	case StatusPaid, StatusInProgress, StatusDelivered:
		return true
	}
	return false
}

// acceptsDelivery reports whether the seller may hand over work now. After
// a cancelled delivery the seller may resubmit on any order that was paid
// and not refunded, including one an admin cancelled.
func (p *Purchase) acceptsDelivery() bool {
	switch p.DeliveryStatus {
	case DeliveryDelivered, DeliveryAccepted:
		return false
	case DeliveryCancelled:
		return p.PaidAt != nil && !p.Refunded() && p.Status != StatusRefunded
	}
	return p.fundsCaptured()
}

// StartWork moves a paid purchase into delivery. The commercial status
// stays paid.
func (s *Service) StartWork(ctx context.Context, actor Actor, id uuid.UUID) (*Purchase, error) {
	return s.mutate(ctx, id, func(sc Scope, p *Purchase, fx *effects) error {
		if !p.IsSeller(actor.UserID) {
			return ErrForbidden
		}
		if p.Status != StatusPaid || p.DeliveryStatus != DeliveryNotStarted {
			return ErrNotEligible
		}
		if err := transitionDeliveryStatus(p, DeliveryInProgress, s.now(), false); err != nil {
			return err
		}
		if err := sc.Purchases.Update(ctx, p); err != nil {
			return err
		}
		if err := s.systemMessage(ctx, sc, p, "Seller started work on the order."); err != nil {
			return err
		}
		fx.event(EventDeliveryUpdated, p, nil)
		return nil
	})
}

// SubmitDelivery stores the seller's hand-over and moves the order to
// review. From cancelled it is a resubmission. Once delivered or accepted
// the delivery can no longer be replaced.
func (s *Service) SubmitDelivery(ctx context.Context, actor Actor, id uuid.UUID, req *SubmitDeliveryRequest) (*Purchase, error) {
	reqs, err := s.checkDelivery(ctx, id, req)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, id, func(sc Scope, p *Purchase, fx *effects) error {
		if !p.IsSeller(actor.UserID) {
			return ErrForbidden
		}
		if !p.acceptsDelivery() {
			return ErrNotEligible
		}

		now := s.now()
		resubmission := p.DeliveryStatus == DeliveryCancelled || p.DeliveryStatus == DeliveryRejected
		reopened := p.Status == StatusCancelled
		if reopened {
			if err := transitionStatus(p, StatusPaid, now, true); err != nil {
				return err
			}
		}
		if err := transitionDeliveryStatus(p, DeliveryReview, now, false); err != nil {
			return err
		}
		p.DeliveryRequirements = reqs
		if err := sc.Purchases.Update(ctx, p); err != nil {
			return err
		}

		text := "Seller submitted the delivery for review."
		if resubmission {
			text = "Seller resubmitted the delivery for review."
		}
		if reopened {
			text += " The order is open again."
		}
		if err := s.systemMessage(ctx, sc, p, text); err != nil {
			return err
		}

		fx.event(EventDeliveryUpdated, p, nil)
		data := s.mailData(p)
		data["RepositoryURL"] = reqs.RepositoryURL
		data["LiveURL"] = reqs.LiveURL
		fx.mail(p.BuyerID, email.TemplateDeliverySubmitted, "Delivery ready: "+p.ProjectTitle, data)
		return nil
	})
}

// checkDelivery validates links and confirms attachments were uploaded.
// Storage is consulted before the purchase row is locked.
func (s *Service) checkDelivery(ctx context.Context, id uuid.UUID, req *SubmitDeliveryRequest) (*DeliveryRequirements, error) {
	repoURL := strings.TrimSpace(req.RepositoryURL)
	liveURL := strings.TrimSpace(req.LiveURL)

	fields := map[string]string{}
	if repoURL == "" && liveURL == "" {
		fields["repository_url"] = "Provide a repository URL or a live URL"
	}
	if repoURL != "" && !validator.IsHTTPURL(repoURL) {
		fields["repository_url"] = "Must be an absolute http(s) URL"
	}
	if liveURL != "" && !validator.IsHTTPURL(liveURL) {
		fields["live_url"] = "Must be an absolute http(s) URL"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	attachments := make([]string, 0, len(req.Attachments))
	for _, key := range req.Attachments {
		key = strings.TrimSpace(key)
		if !storage.AttachmentBelongsTo(key, id) {
			return nil, invalid("attachments", "Attachment does not belong to this purchase")
		}
		if s.storage == nil {
			return nil, ErrNotConfigured
		}
		ok, err := s.storage.Exists(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("check attachment: %w", err)
		}
		if !ok {
			return nil, invalid("attachments", "Attachment was not uploaded: "+key)
		}
		attachments = append(attachments, key)
	}

	return &DeliveryRequirements{
		RepositoryURL: repoURL,
		LiveURL:       liveURL,
		SetupNotes:    strings.TrimSpace(req.SetupNotes),
		Attachments:   attachments,
	}, nil
}

// PresignAttachment returns an upload URL for a delivery attachment.
func (s *Service) PresignAttachment(ctx context.Context, actor Actor, id uuid.UUID, req *PresignAttachmentRequest) (*storage.PresignResult, error) {
	if s.storage == nil {
		return nil, ErrNotConfigured
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsSeller(actor.UserID) {
		return nil, ErrForbidden
	}
	if !p.acceptsDelivery() {
		return nil, ErrNotEligible
	}
	if err := storage.ValidateAttachment(req.ContentType, req.Size); err != nil {
		return nil, invalid("file", err.Error())
	}

	now := s.now()
	key := storage.AttachmentKey(p.ID, req.Filename, req.ContentType, now)
	uploadURL, err := s.storage.PresignPut(ctx, key, req.ContentType, req.Size, s.cfg.AttachmentTTL)
	if err != nil {
		return nil, fmt.Errorf("presign attachment: %w", err)
	}
	return &storage.PresignResult{
		UploadURL: uploadURL,
		Key:       key,
		PublicURL: s.storage.GetURL(key),
		ExpiresAt: now.Add(s.cfg.AttachmentTTL),
	}, nil
}

// AcceptDelivery completes a delivered purchase and credits the seller.
func (s *Service) AcceptDelivery(ctx context.Context, actor Actor, id uuid.UUID) (*Purchase, error) {
	return s.mutate(ctx, id, func(sc Scope, p *Purchase, fx *effects) error {
		if !p.IsBuyer(actor.UserID) {
			return ErrForbidden
		}
		if !p.fundsCaptured() {
			return ErrNotEligible
		}
		if err := transitionDeliveryStatus(p, DeliveryAccepted, s.now(), false); err != nil {
			return err
		}
		if err := s.settle(ctx, sc, p, fx); err != nil {
			return err
		}
		if err := sc.Purchases.Update(ctx, p); err != nil {
			return err
		}
		if err := s.systemMessage(ctx, sc, p, "Buyer accepted the delivery. The order is complete."); err != nil {
			return err
		}
		fx.event(EventCompleted, p, nil)
		return nil
	})
}

// RejectDelivery sends a delivered purchase back to the seller.
func (s *Service) RejectDelivery(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*Purchase, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalid("reason", "Reason is required")
	}
	return s.mutate(ctx, id, func(sc Scope, p *Purchase, fx *effects) error {
		if !p.IsBuyer(actor.UserID) {
			return ErrForbidden
		}
		if err := transitionDeliveryStatus(p, DeliveryRejected, s.now(), false); err != nil {
			return err
		}
		if err := sc.Purchases.Update(ctx, p); err != nil {
			return err
		}
		if err := s.systemMessage(ctx, sc, p, "Buyer rejected the delivery: "+reason); err != nil {
			return err
		}
		fx.event(EventDeliveryUpdated, p, nil)
		return nil
	})
}

// CancelDelivery lets the seller withdraw the current hand-over. The
// requirements are cleared and the seller may submit again later.
func (s *Service) CancelDelivery(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*Purchase, error) {
	reason = strings.TrimSpace(reason)
	return s.mutate(ctx, id, func(sc Scope, p *Purchase, fx *effects) error {
		if !p.IsSeller(actor.UserID) {
			return ErrForbidden
		}
		if !p.fundsCaptured() {
			return ErrNotEligible
		}
		if err := transitionDeliveryStatus(p, DeliveryCancelled, s.now(), false); err != nil {
			return err
		}
		if err := sc.Purchases.Update(ctx, p); err != nil {
			return err
		}

		text := "Seller cancelled the delivery."
		if reason != "" {
			text += " Reason: " + reason
		}
		if err := s.systemMessage(ctx, sc, p, text); err != nil {
			return err
		}
		fx.event(EventDeliveryUpdated, p, nil)
		data := s.mailData(p)
		data["Reason"] = reason
		fx.mail(p.BuyerID, email.TemplatePurchaseCancelled, "Delivery cancelled: "+p.ProjectTitle, data)
		return nil
	})
}

// AdminOverrideStatus sets status and/or delivery status on behalf of an
// admin. Moves outside the state tables are allowed and recorded as
// overrides.
//
// Side effects:
//   - delivered, accepted or completed on a paid order credits the seller once
//   - the first refunded returns the buyer's funds and reverses the seller credit
//   - a cancelled delivery clears the requirements and notifies the seller
//   - a cancelled paid order cancels its delivery too
func (s *Service) AdminOverrideStatus(ctx context.Context, actor Actor, id uuid.UUID, req *OverrideStatusRequest) (*Purchase, error) {
	if !actor.IsAdmin {
		return nil, ErrForbidden
	}
	toStatus := Status(req.Status)
	toDelivery := DeliveryStatus(req.DeliveryStatus)
	if toStatus == "" && toDelivery == "" {
		return nil, invalid("status", "Provide status or delivery_status")
	}
	if toStatus != "" && !toStatus.Valid() {
		return nil, invalid("status", "Unknown status")
	}
	if toDelivery != "" && !toDelivery.Valid() {
		return nil, invalid("delivery_status", "Unknown delivery status")
	}
	if toDelivery == DeliveryAccepted && toStatus != "" && toStatus != StatusCompleted {
		return nil, invalid("status", "An accepted delivery implies a completed order")
	}
	reason := strings.TrimSpace(req.Reason)

	return s.mutate(ctx, id, func(sc Scope, p *Purchase, fx *effects) error {
		now := s.now()
		fromStatus, fromDelivery := p.Status, p.DeliveryStatus
		override := false

		if toStatus != "" && toStatus != p.Status {
			override = override || !canTransitionStatus(p.Status, toStatus)
			if err := transitionStatus(p, toStatus, now, true); err != nil {
				return err
			}
		}
		if toDelivery != "" && toDelivery != p.DeliveryStatus {
			override = override || !canTransitionDelivery(p.DeliveryStatus, toDelivery)
			if err := transitionDeliveryStatus(p, toDelivery, now, true); err != nil {
				return err
			}
		}
		// Cancelling a funded order also cancels its delivery unless the
		// admin chose a delivery status explicitly.
		if toDelivery == "" && p.Status == StatusCancelled && fromStatus != StatusCancelled && p.PaidAt != nil &&
			p.DeliveryStatus != DeliveryCancelled && p.DeliveryStatus != DeliveryAccepted {
			if err := transitionDeliveryStatus(p, DeliveryCancelled, now, true); err != nil {
				return err
			}
		}
		if p.Status == fromStatus && p.DeliveryStatus == fromDelivery {
			return nil
		}

		if override {
			log.Warn().
				Str("purchase_id", p.ID.String()).
				Str("admin_id", actor.UserID.String()).
				Str("from_status", string(fromStatus)).
				Str("to_status", string(p.Status)).
				Str("from_delivery", string(fromDelivery)).
				Str("to_delivery", string(p.DeliveryStatus)).
				Msg("Admin override outside the purchase state machine")
		}

		switch {
		case p.Status == StatusRefunded && fromStatus != StatusRefunded:
			if err := s.refund(ctx, sc, p, fx); err != nil {
				return err
			}
		case p.Status == StatusCompleted || p.DeliveryStatus == DeliveryDelivered || p.DeliveryStatus == DeliveryAccepted:
			if p.PaidAt == nil {
				log.Warn().
					Str("purchase_id", p.ID.String()).
					Msg("Not crediting seller for an order that was never paid")
				break
			}
			if err := s.settle(ctx, sc, p, fx); err != nil {
				return err
			}
		}

		if p.DeliveryStatus == DeliveryCancelled && fromDelivery != DeliveryCancelled {
			data := s.mailData(p)
			data["Reason"] = reason
			fx.mail(p.SellerID, email.TemplatePurchaseCancelled, "Delivery cancelled: "+p.ProjectTitle, data)
		}
		if p.Status == StatusCancelled && fromStatus != StatusCancelled {
			data := s.mailData(p)
			data["Reason"] = reason
			fx.mail(p.BuyerID, email.TemplatePurchaseCancelled, "Order cancelled: "+p.ProjectTitle, data)
		}

		if err := sc.Purchases.Update(ctx, p); err != nil {
			return err
		}
		if err := s.systemMessage(ctx, sc, p, overrideMessage(fromStatus, p.Status, fromDelivery, p.DeliveryStatus, override, reason)); err != nil {
			return err
		}
		fx.event(EventStatusChanged, p, nil)
		return nil
	})
}

func overrideMessage(fromStatus, toStatus Status, fromDelivery, toDelivery DeliveryStatus, override bool, reason string) string {
	var parts []string
	if fromStatus != toStatus {
		parts = append(parts, fmt.Sprintf("status %s -> %s", fromStatus, toStatus))
	}
	if fromDelivery != toDelivery {
		parts = append(parts, fmt.Sprintf("delivery %s -> %s", fromDelivery, toDelivery))
	}
	text := "Admin updated the order: " + strings.Join(parts, ", ") + "."
	if override {
		text = "Admin override: " + strings.Join(parts, ", ") + "."
	}
	if reason != "" {
		text += " Reason: " + reason
	}
	return text
}

// settle credits the seller with the purchase amount minus platform tax.
// It is a no-op once settled_at is set.
func (s *Service) settle(ctx context.Context, sc Scope, p *Purchase, fx *effects) error {
	if p.Settled() {
		return nil
	}
	if p.Refunded() {
		log.Warn().
			Str("purchase_id", p.ID.String()).
			Msg("Not crediting seller for a refunded order")
		return nil
	}
	pct := s.tax.TaxPercent(ctx)
	credit, err := sc.Settlement.CreditWithTax(ctx, settlement.CreditRequest{
		UserID:       p.SellerID,
		PurchaseID:   p.ID,
		ProjectTitle: p.ProjectTitle,
		Gross:        p.Amount,
		Currency:     p.Currency,
		TaxPercent:   pct,
	})
	if err != nil {
		return err
	}

	now := s.now()
	p.SellerNet = decimal.NewNullDecimal(credit.Net)
	p.PlatformTax = decimal.NewNullDecimal(credit.Tax)
	p.SettledAt = &now

	data := s.mailData(p)
	data["Net"] = credit.Net.StringFixed(2)
	data["Tax"] = credit.Tax.StringFixed(2)
	fx.mail(p.SellerID, email.TemplatePurchaseCompleted, "Earnings credited: "+p.ProjectTitle, data)

	return s.systemMessage(ctx, sc, p, fmt.Sprintf("Seller credited %s after %s platform tax (%s%%).",
		settlement.FormatMoney(credit.Net, p.Currency), settlement.FormatMoney(credit.Tax, p.Currency), pct.String()))
}

// refund returns captured funds to where they came from and takes back the
// seller credit. Gateway-funded orders are recorded for a refund at the
// provider. Money moves once per purchase; later refunded transitions only
// change the status.
func (s *Service) refund(ctx context.Context, sc Scope, p *Purchase, fx *effects) error {
	if p.PaidAt == nil {
		return fmt.Errorf("%w: order was never paid", ErrNotEligible)
	}
	if p.Refunded() {
		log.Warn().
			Str("purchase_id", p.ID.String()).
			Time("refunded_at", *p.RefundedAt).
			Msg("Order was already refunded, no funds moved")
		return nil
	}
	now := s.now()
	p.RefundedAt = &now
	sourceName := "original payment method"

	if source, ok := p.PaymentMethod.Source(); ok {
		if _, err := sc.Settlement.Refund(ctx, p.BuyerID, p.Amount, source, settlement.Purpose{
			PurchaseID: &p.ID,
			Note:       fmt.Sprintf("Refund for %q", p.ProjectTitle),
		}); err != nil {
			return err
		}
		sourceName = sourceLabel(source)
	} else {
		log.Warn().
			Str("purchase_id", p.ID.String()).
			Str("method", string(p.PaymentMethod)).
			Msg("Gateway refund must be issued at the provider")
	}
	p.addPayment(PaymentRecord{
		Provider:   string(p.PaymentMethod),
		Event:      "refund",
		Status:     string(gateway.StatusRefunded),
		Amount:     p.Amount,
		Currency:   p.Currency,
		Reference:  p.ID.String(),
		RecordedAt: now,
	})

	if p.Settled() && p.SellerNet.Valid {
		err := sc.Settlement.ReverseCredit(ctx, p.SellerID, p.SellerNet.Decimal, settlement.Purpose{
			PurchaseID: &p.ID,
			Note:       fmt.Sprintf("Reversal of sale %q after refund", p.ProjectTitle),
		})
		if err != nil {
			if errors.Is(err, settlement.ErrInsufficientFunds) {
				log.Warn().
					Str("purchase_id", p.ID.String()).
					Str("seller_id", p.SellerID.String()).
					Msg("Seller earnings too low to reverse sale credit")
			}
			return err
		}
	}

	data := s.mailData(p)
	data["Source"] = sourceName
	fx.mail(p.BuyerID, email.TemplatePurchaseRefunded, "Refund issued: "+p.ProjectTitle, data)
	fx.event(EventRefunded, p, nil)
	return nil
}
