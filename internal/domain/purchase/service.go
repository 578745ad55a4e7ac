package purchase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/devmarket/marketplace-api/internal/domain/project"
	"github.com/devmarket/marketplace-api/internal/domain/settlement"
	"github.com/devmarket/marketplace-api/internal/domain/user"
	"github.com/devmarket/marketplace-api/internal/pkg/email"
	"github.com/devmarket/marketplace-api/internal/pkg/gateway"
	"github.com/devmarket/marketplace-api/internal/pkg/storage"
)

// ProjectCatalog looks up listings being bought.
type ProjectCatalog interface {
	GetByID(ctx context.Context, id uuid.UUID) (*project.Project, error)
}

// TaxSource yields the platform tax percent. It must not fail.
type TaxSource interface {
	TaxPercent(ctx context.Context) decimal.Decimal
}

// CallbackVerifier authenticates redirect gateway callbacks.
type CallbackVerifier interface {
	Verify(reference string, amount decimal.Decimal, currency, signature string) bool
}

// Config holds the non-dependency settings of the service.
type Config struct {
	DefaultCurrency string
	FrontendURL     string
	BackendURL      string
	AttachmentTTL   time.Duration
	VerifyCallbacks bool
}

// Deps wires the service. Redirect, Card, Verifier, Storage, Mailer and
// Events are optional; the features that need them report ErrNotConfigured.
type Deps struct {
	UoW       UnitOfWork
	Purchases Repository
	Projects  ProjectCatalog
	Users     UserDirectory
	Tax       TaxSource
	Redirect  gateway.RedirectGateway
	Card      gateway.CardGateway
	Verifier  CallbackVerifier
	Storage   storage.AttachmentStore
	Mailer    Mailer
	Events    EventSink
	Config    Config
	Now       func() time.Time
}

// Service orchestrates the purchase lifecycle. Every money movement runs in
// the same unit of work as the purchase write it belongs to; notifications
// go out only after commit.
type Service struct {
	uow      UnitOfWork
	repo     Repository
	projects ProjectCatalog
	users    UserDirectory
	tax      TaxSource
	redirect gateway.RedirectGateway
	card     gateway.CardGateway
	verifier CallbackVerifier
	storage  storage.AttachmentStore
	mailer   Mailer
	events   EventSink
	cfg      Config
	now      func() time.Time
}

func NewService(d Deps) *Service {
	cfg := d.Config
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "USD"
	}
	if cfg.AttachmentTTL <= 0 {
		cfg.AttachmentTTL = 15 * time.Minute
	}
	now := d.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		uow:      d.UoW,
		repo:     d.Purchases,
		projects: d.Projects,
		users:    d.Users,
		tax:      d.Tax,
		redirect: d.Redirect,
		card:     d.Card,
		verifier: d.Verifier,
		storage:  d.Storage,
		mailer:   d.Mailer,
		events:   d.Events,
		cfg:      cfg,
		now:      now,
	}
}

// CreatePurchase validates the order and dispatches to the funding path.
//
// Checks, in order:
//  1. payment method and project id are well formed
//  2. buyer exists and is not banned
//  3. project exists, is not the buyer's own and is purchasable
//
// Balance and wallet orders are debited and created paid in one
// transaction. Redirect and card orders call the gateway first and are
// persisted with the gateway handle.
func (s *Service) CreatePurchase(ctx context.Context, buyerID uuid.UUID, req *CreatePurchaseRequest) (*CreateResult, error) {
	method := PaymentMethod(req.PaymentMethod)
	if !method.Valid() {
		return nil, invalid("payment_method", "Unsupported payment method")
	}
	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		return nil, invalid("project_id", "Invalid project ID")
	}

	buyer, err := s.users.GetByID(ctx, buyerID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, ErrForbidden
		}
		return nil, err
	}
	if buyer.IsBanned {
		return nil, ErrForbidden
	}

	proj, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, project.ErrProjectNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	if proj.SellerID == buyer.ID {
		return nil, ErrSelfPurchase
	}
	if !proj.Purchasable() {
		return nil, invalid("project_id", "Project is not available for purchase")
	}

	if method.Funded() {
		return s.CreateFundedPurchase(ctx, buyer, proj, method)
	}
	return s.CreateGatewayPurchase(ctx, buyer, proj, method, req)
}

func (s *Service) newPurchase(buyerID uuid.UUID, proj *project.Project, method PaymentMethod) *Purchase {
	now := s.now()
	currency := strings.ToUpper(strings.TrimSpace(proj.Currency))
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}
	return &Purchase{
		ID:             uuid.New(),
		BuyerID:        buyerID,
		SellerID:       proj.SellerID,
		ProjectID:      proj.ID,
		ProjectTitle:   proj.Title,
		Amount:         proj.Price.Round(2),
		Currency:       currency,
		PaymentMethod:  method,
		PaymentDetails: PaymentRecords{},
		Status:         StatusPending,
		DeliveryStatus: DeliveryNotStarted,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// CreateFundedPurchase debits the buyer's balance or earnings and creates
// the purchase already paid. Insufficient funds leave nothing behind.
func (s *Service) CreateFundedPurchase(ctx context.Context, buyer *user.User, proj *project.Project, method PaymentMethod) (*CreateResult, error) {
	source, ok := method.Source()
	if !ok {
		return nil, invalid("payment_method", "Payment method does not use stored funds")
	}
	if buyer.ID == proj.SellerID {
		return nil, ErrSelfPurchase
	}

	p := s.newPurchase(buyer.ID, proj, method)
	if err := transitionStatus(p, StatusPaid, p.CreatedAt, false); err != nil {
		return nil, err
	}

	fx := &effects{}
	var newBalance decimal.Decimal
	err := s.uow.Do(ctx, func(sc Scope) error {
		bal, err := sc.Settlement.Debit(ctx, buyer.ID, p.Amount, source, settlement.Purpose{
			PurchaseID: &p.ID,
			Note:       fmt.Sprintf("Purchase of %q", p.ProjectTitle),
		})
		if err != nil {
			return err
		}
		newBalance = bal

		p.addPayment(PaymentRecord{
			Provider:   string(method),
			Event:      "debit",
			Status:     string(gateway.StatusCompleted),
			Amount:     p.Amount,
			Currency:   p.Currency,
			Reference:  p.ID.String(),
			RecordedAt: p.CreatedAt,
		})
		if err := sc.Purchases.Create(ctx, p); err != nil {
			return err
		}
		return s.systemMessage(ctx, sc, p, fmt.Sprintf("Payment of %s received from the buyer's %s.",
			settlement.FormatMoney(p.Amount, p.Currency), sourceLabel(source)))
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("purchase_id", p.ID.String()).
		Str("buyer_id", buyer.ID.String()).
		Str("method", string(method)).
		Str("amount", p.Amount.StringFixed(2)).
		Msg("Purchase paid from stored funds")

	s.paidEffects(fx, p)
	s.dispatch(ctx, fx)
	return &CreateResult{Purchase: p, NewBalance: &newBalance}, nil
}

// CreateGatewayPurchase starts a redirect or card payment and stores the
// purchase with its gateway handle. A card captured synchronously is stored
// paid; everything else stays pending until confirmed.
func (s *Service) CreateGatewayPurchase(ctx context.Context, buyer *user.User, proj *project.Project, method PaymentMethod, req *CreatePurchaseRequest) (*CreateResult, error) {
	if buyer.ID == proj.SellerID {
		return nil, ErrSelfPurchase
	}

	p := s.newPurchase(buyer.ID, proj, method)
	reference := newReference()
	p.GatewayReference = &reference
	result := &CreateResult{Purchase: p}
	description := fmt.Sprintf("Purchase of %q", p.ProjectTitle)

	switch method {
	case MethodRedirect:
		if s.redirect == nil {
			return nil, ErrNotConfigured
		}
		session, err := s.redirect.BeginRedirectPayment(ctx, gateway.RedirectRequest{
			Amount:      p.Amount,
			Currency:    p.Currency,
			Reference:   reference,
			Description: description,
			Customer:    gateway.Customer{Name: buyer.DisplayName(), Email: buyer.Email},
			ReturnURL:   s.purchaseURL(p),
			CallbackURL: strings.TrimRight(s.cfg.BackendURL, "/") + "/webhooks/paytabs",
		})
		if err != nil {
			logGatewayFailure(s.redirect.Name(), reference, err)
			return nil, err
		}
		if session.GatewayTxID != "" {
			p.GatewayTxID = &session.GatewayTxID
		}
		p.addPayment(PaymentRecord{
			Provider:    s.redirect.Name(),
			Event:       "redirect_started",
			Status:      string(gateway.StatusPending),
			Amount:      p.Amount,
			Currency:    p.Currency,
			Reference:   reference,
			GatewayTxID: session.GatewayTxID,
			RecordedAt:  p.CreatedAt,
		})
		result.RedirectURL = session.RedirectURL

	case MethodCard:
		if s.card == nil {
			return nil, ErrNotConfigured
		}
		if strings.TrimSpace(req.PaymentMethodToken) == "" {
			return nil, invalid("payment_method_token", "Card token is required")
		}
		res, err := s.card.BeginCardCapture(ctx, gateway.CardRequest{
			Amount:             p.Amount,
			Currency:           p.Currency,
			PaymentMethodToken: req.PaymentMethodToken,
			PaymentMethodID:    req.PaymentMethodID,
			PayerEmail:         buyer.Email,
			Reference:          reference,
			Description:        description,
			Metadata: map[string]string{
				"purchase_id": p.ID.String(),
				"project_id":  p.ProjectID.String(),
				"buyer_id":    buyer.ID.String(),
			},
		})
		if err != nil {
			logGatewayFailure(s.card.Name(), reference, err)
			return nil, err
		}
		if res.GatewayTxID != "" {
			p.GatewayTxID = &res.GatewayTxID
		}
		rec := PaymentRecord{
			Provider:    s.card.Name(),
			Event:       "card_capture",
			Amount:      p.Amount,
			Currency:    p.Currency,
			Reference:   reference,
			GatewayTxID: res.GatewayTxID,
			ReceiptURL:  res.ReceiptURL,
			RecordedAt:  p.CreatedAt,
		}
		if res.Status == gateway.CardSucceeded {
			rec.Status = string(gateway.StatusCompleted)
			if err := transitionStatus(p, StatusPaid, p.CreatedAt, false); err != nil {
				return nil, err
			}
		} else {
			rec.Status = string(gateway.StatusPending)
			result.ClientSecret = res.ClientSecret
		}
		p.addPayment(rec)

	default:
		return nil, invalid("payment_method", "Payment method is not a gateway method")
	}

	fx := &effects{}
	err := s.uow.Do(ctx, func(sc Scope) error {
		if err := sc.Purchases.Create(ctx, p); err != nil {
			return err
		}
		if p.Status == StatusPaid {
			return s.systemMessage(ctx, sc, p, "Card payment captured.")
		}
		return nil
	})
	if err != nil {
		// The gateway already holds this attempt; the reference is needed to reconcile it.
		log.Error().Err(err).
			Str("reference", reference).
			Str("method", string(method)).
			Msg("Failed to store purchase after gateway call")
		return nil, err
	}

	if p.Status == StatusPaid {
		s.paidEffects(fx, p)
	} else {
		fx.event(EventCreated, p, nil)
	}
	s.dispatch(ctx, fx)
	return result, nil
}

// CallbackInput is a redirect gateway callback as received.
type CallbackInput struct {
	Provider  string
	Reference string
	TranRef   string
	Status    string
	Amount    string
	Currency  string
	Signature string
}

type gatewayResult struct {
	Provider  string
	Reference string
	TxID      string
	Status    gateway.Status
	RawStatus string
	Amount    decimal.Decimal
	Currency  string
}

// ConfirmCallback applies a gateway callback. A callback that fails
// signature, amount or cross-check verification returns ErrUntrustedCallback
// and changes nothing. Re-delivery of an applied callback is a no-op.
func (s *Service) ConfirmCallback(ctx context.Context, cb CallbackInput) error {
	amount, err := gateway.ParseAmount(cb.Amount)
	if err != nil || s.verifier == nil || !s.verifier.Verify(cb.Reference, amount, cb.Currency, cb.Signature) {
		log.Warn().
			Str("reference", cb.Reference).
			Str("amount", cb.Amount).
			Str("currency", cb.Currency).
			Msg("Rejected payment callback with invalid signature")
		return ErrUntrustedCallback
	}

	provider := cb.Provider
	if provider == "" {
		provider = gateway.ProviderPayTabs
	}
	res := gatewayResult{
		Provider:  provider,
		Reference: cb.Reference,
		TxID:      cb.TranRef,
		Status:    gateway.NormalizeStatus(cb.Status),
		RawStatus: cb.Status,
		Amount:    amount,
		Currency:  cb.Currency,
	}

	if s.cfg.VerifyCallbacks && s.redirect != nil && cb.TranRef != "" {
		v, err := s.redirect.VerifyTransaction(ctx, cb.TranRef)
		if err != nil {
			logGatewayFailure(s.redirect.Name(), cb.Reference, err)
			return err
		}
		if v.Status != res.Status || !gateway.AmountsEqual(v.Amount, amount) {
			log.Warn().
				Str("reference", cb.Reference).
				Str("callback_status", string(res.Status)).
				Str("verified_status", string(v.Status)).
				Msg("Payment callback disagrees with gateway query")
			return ErrUntrustedCallback
		}
	}

	_, err = s.applyGatewayResult(ctx, func(sc Scope) (*Purchase, error) {
		return sc.Purchases.GetByReferenceForUpdate(ctx, cb.Reference)
	}, res)
	return err
}

// ConfirmPayment polls the gateway for a pending redirect or card purchase
// and applies the verified result.
func (s *Service) ConfirmPayment(ctx context.Context, actor Actor, id uuid.UUID) (*Purchase, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsBuyer(actor.UserID) && !actor.IsAdmin {
		return nil, ErrForbidden
	}
	if p.Status != StatusPending {
		return p, nil
	}
	if p.GatewayTxID == nil || *p.GatewayTxID == "" {
		return nil, ErrNotEligible
	}

	var verify func(ctx context.Context, txID string) (*gateway.Verification, error)
	var provider string
	switch p.PaymentMethod {
	case MethodRedirect:
		if s.redirect == nil {
			return nil, ErrNotConfigured
		}
		verify, provider = s.redirect.VerifyTransaction, s.redirect.Name()
	case MethodCard:
		if s.card == nil {
			return nil, ErrNotConfigured
		}
		verify, provider = s.card.VerifyTransaction, s.card.Name()
	default:
		return nil, ErrNotEligible
	}

	v, err := verify(ctx, *p.GatewayTxID)
	if err != nil {
		logGatewayFailure(provider, *p.GatewayTxID, err)
		return nil, err
	}
	currency := v.Currency
	if currency == "" {
		currency = p.Currency
	}
	return s.applyGatewayResult(ctx, func(sc Scope) (*Purchase, error) {
		return sc.Purchases.GetForUpdate(ctx, id)
	}, gatewayResult{
		Provider:  provider,
		Reference: v.Reference,
		TxID:      v.GatewayTxID,
		Status:    v.Status,
		RawStatus: v.RawStatus,
		Amount:    v.Amount,
		Currency:  currency,
	})
}

// applyGatewayResult marks a pending purchase paid or cancelled under the
// row lock. Purchases no longer pending are returned unchanged.
func (s *Service) applyGatewayResult(ctx context.Context, load func(sc Scope) (*Purchase, error), res gatewayResult) (*Purchase, error) {
	fx := &effects{}
	var out *Purchase
	err := s.uow.Do(ctx, func(sc Scope) error {
		p, err := load(sc)
		if err != nil {
			return err
		}
		out = p

		if !gateway.AmountsEqual(p.Amount, res.Amount) || !strings.EqualFold(p.Currency, res.Currency) {
			log.Warn().
				Str("purchase_id", p.ID.String()).
				Str("expected", p.Amount.StringFixed(2)+" "+p.Currency).
				Str("received", res.Amount.StringFixed(2)+" "+res.Currency).
				Msg("Payment amount mismatch")
			return ErrUntrustedCallback
		}
		if p.Status != StatusPending {
			log.Info().
				Str("purchase_id", p.ID.String()).
				Str("status", string(p.Status)).
				Msg("Payment result already applied")
			return nil
		}

		now := s.now()
		rec := PaymentRecord{
			Provider:    res.Provider,
			Event:       "confirmation",
			Status:      string(res.Status),
			Amount:      res.Amount,
			Currency:    strings.ToUpper(res.Currency),
			Reference:   res.Reference,
			GatewayTxID: res.TxID,
			RecordedAt:  now,
		}

		switch res.Status {
		case gateway.StatusCompleted:
			p.addPayment(rec)
			if p.GatewayTxID == nil && res.TxID != "" {
				p.GatewayTxID = &res.TxID
			}
			if err := transitionStatus(p, StatusPaid, now, false); err != nil {
				return err
			}
			if err := sc.Purchases.Update(ctx, p); err != nil {
				return err
			}
			if err := s.systemMessage(ctx, sc, p, fmt.Sprintf("Payment confirmed by %s.", res.Provider)); err != nil {
				return err
			}
			s.paidEffects(fx, p)

		case gateway.StatusFailed:
			p.addPayment(rec)
			if err := transitionStatus(p, StatusCancelled, now, false); err != nil {
				return err
			}
			if err := sc.Purchases.Update(ctx, p); err != nil {
				return err
			}
			if err := s.systemMessage(ctx, sc, p, "Payment was declined by the gateway. The order was cancelled."); err != nil {
				return err
			}
			fx.event(EventCancelled, p, nil)

		default:
			log.Info().
				Str("purchase_id", p.ID.String()).
				Str("gateway_status", res.RawStatus).
				Msg("Payment still pending at gateway")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.dispatch(ctx, fx)
	return out, nil
}

// CancelPending lets the buyer abandon an unpaid purchase.
func (s *Service) CancelPending(ctx context.Context, actor Actor, id uuid.UUID) (*Purchase, error) {
	return s.mutate(ctx, id, func(sc Scope, p *Purchase, fx *effects) error {
		if !p.IsBuyer(actor.UserID) && !actor.IsAdmin {
			return ErrForbidden
		}
		if p.Status != StatusPending {
			return ErrNotEligible
		}
		if err := transitionStatus(p, StatusCancelled, s.now(), false); err != nil {
			return err
		}
		if err := sc.Purchases.Update(ctx, p); err != nil {
			return err
		}
		if err := s.systemMessage(ctx, sc, p, "Order cancelled by the buyer before payment."); err != nil {
			return err
		}
		fx.event(EventCancelled, p, nil)
		return nil
	})
}

// mutate runs fn on the locked purchase inside a unit of work and
// dispatches the collected effects after commit.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, fn func(sc Scope, p *Purchase, fx *effects) error) (*Purchase, error) {
	fx := &effects{}
	var out *Purchase
	err := s.uow.Do(ctx, func(sc Scope) error {
		p, err := sc.Purchases.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(sc, p, fx); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.dispatch(ctx, fx)
	return out, nil
}

func (s *Service) systemMessage(ctx context.Context, sc Scope, p *Purchase, content string) error {
	return sc.Purchases.AppendMessage(ctx, &Message{
		PurchaseID: p.ID,
		Content:    content,
		IsSystem:   true,
	})
}

func (s *Service) paidEffects(fx *effects, p *Purchase) {
	fx.event(EventPaid, p, nil)
	data := s.mailData(p)
	fx.mail(p.BuyerID, email.TemplatePurchasePaid, "Payment received: "+p.ProjectTitle, data)
	fx.mail(p.SellerID, email.TemplateNewSale, "New sale: "+p.ProjectTitle, data)
}

func newReference() string {
	return "pur_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func sourceLabel(source settlement.Source) string {
	if source == settlement.SourceEarnings {
		return "earnings wallet"
	}
	return "balance"
}

func logGatewayFailure(provider, reference string, err error) {
	event := log.Warn()
	if errors.Is(err, gateway.ErrUnavailable) {
		event = log.Error()
	}
	event.Err(err).
		Str("provider", provider).
		Str("reference", reference).
		Msg("Payment gateway call failed")
}
