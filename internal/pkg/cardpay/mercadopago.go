package cardpay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/devmarket/marketplace-api/internal/pkg/gateway"
)

var ErrMissingAccessToken = errors.New("missing MERCADOPAGO_ACCESS_TOKEN")

const defaultCurrency = "USD"

// Mock tokens let local clients drive each card outcome.
const (
	MockTokenRequiresAction = "tok_requires_action"
	MockTokenDeclined       = "tok_declined"
)

// paymentAPI is the subset of the SDK payment client used here.
type paymentAPI interface {
	Create(ctx context.Context, request payment.Request) (*payment.Response, error)
	Get(ctx context.Context, id int) (*payment.Response, error)
}

// Config holds MercadoPago settings.
type Config struct {
	AccessToken string
	Mock        bool
	Timeout     time.Duration
	// Currency is the one currency the account settles in. MercadoPago
	// charges in the account currency whatever the order says.
	Currency string
}

// Gateway captures tokenized cards through MercadoPago.
type Gateway struct {
	client   paymentAPI
	timeout  time.Duration
	currency string

	mock   bool
	mu     sync.Mutex
	mocked map[string]gateway.Verification
}

// New creates the card gateway. Mock mode never calls the network.
func New(cfg Config) (*Gateway, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	currency := strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	if cfg.Mock {
		log.Warn().Str("currency", currency).Msg("MercadoPago card gateway running in mock mode")
		return &Gateway{mock: true, timeout: cfg.Timeout, currency: currency, mocked: make(map[string]gateway.Verification)}, nil
	}
	if cfg.AccessToken == "" {
		return nil, ErrMissingAccessToken
	}

	sdkCfg, err := config.New(cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("mercadopago config: %w", err)
	}
	log.Info().Str("currency", currency).Msg("MercadoPago card gateway initialized")
	return &Gateway{client: payment.NewClient(sdkCfg), timeout: cfg.Timeout, currency: currency}, nil
}

func newWithClient(client paymentAPI, timeout time.Duration, currency string) *Gateway {
	return &Gateway{client: client, timeout: timeout, currency: currency}
}

func (g *Gateway) Name() string { return gateway.ProviderMercadoPago }

// Currency is the currency every card payment is charged in.
func (g *Gateway) Currency() string { return g.currency }

// IsMock reports whether payments are simulated locally.
func (g *Gateway) IsMock() bool { return g.mock }

// paymentView holds the response fields read after a JSON round trip, so
// the adapter does not depend on SDK struct layout beyond ID and Status.
type paymentView struct {
	ID                int     `json:"id"`
	Status            string  `json:"status"`
	StatusDetail      string  `json:"status_detail"`
	ExternalReference string  `json:"external_reference"`
	TransactionAmount float64 `json:"transaction_amount"`
	CurrencyID        string  `json:"currency_id"`
	ThreeDSInfo       struct {
		ExternalResourceURL string `json:"external_resource_url"`
		Creq                string `json:"creq"`
	} `json:"three_ds_info"`
	TransactionDetails struct {
		ExternalResourceURL string `json:"external_resource_url"`
	} `json:"transaction_details"`
}

// BeginCardCapture creates a payment for a card token.
func (g *Gateway) BeginCardCapture(ctx context.Context, req gateway.CardRequest) (*gateway.CardResult, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("validation error: amount must be > 0")
	}
	if strings.TrimSpace(req.PaymentMethodToken) == "" {
		return nil, fmt.Errorf("validation error: payment method token is required")
	}
	if !strings.EqualFold(strings.TrimSpace(req.Currency), g.currency) {
		return nil, gateway.Rejected(g.Name(), "currency_not_supported",
			fmt.Sprintf("card payments are charged in %s, order is in %s", g.currency, req.Currency))
	}
	if g.mock {
		return g.mockCapture(req)
	}

	sdkReq, err := buildRequest(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Create(ctx, sdkReq)
	if err != nil {
		return nil, gateway.Unavailable(g.Name(), err)
	}
	view, err := decodeView(resp)
	if err != nil {
		return nil, gateway.Unavailable(g.Name(), err)
	}

	log.Info().
		Int("provider_payment_id", view.ID).
		Str("status", view.Status).
		Str("reference", req.Reference).
		Msg("MercadoPago payment created")

	return mapCardResult(view)
}

// VerifyTransaction fetches a payment by id.
func (g *Gateway) VerifyTransaction(ctx context.Context, gatewayTxID string) (*gateway.Verification, error) {
	if g.mock {
		g.mu.Lock()
		defer g.mu.Unlock()
		v, ok := g.mocked[gatewayTxID]
		if !ok {
			return nil, gateway.Rejected(g.Name(), "not_found", "payment not found")
		}
		return &v, nil
	}

	id, err := strconv.Atoi(strings.TrimSpace(gatewayTxID))
	if err != nil {
		return nil, fmt.Errorf("validation error: invalid payment id %q", gatewayTxID)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Get(ctx, id)
	if err != nil {
		return nil, gateway.Unavailable(g.Name(), err)
	}
	view, err := decodeView(resp)
	if err != nil {
		return nil, gateway.Unavailable(g.Name(), err)
	}
	currency := strings.ToUpper(view.CurrencyID)
	if currency == "" {
		currency = g.currency
	}
	return &gateway.Verification{
		GatewayTxID: strconv.Itoa(view.ID),
		Reference:   view.ExternalReference,
		Status:      gateway.NormalizeStatus(view.Status),
		RawStatus:   view.Status,
		Amount:      decimal.NewFromFloat(view.TransactionAmount).Round(2),
		Currency:    currency,
	}, nil
}

func buildRequest(req gateway.CardRequest) (payment.Request, error) {
	amount, _ := req.Amount.Round(2).Float64()
	body := map[string]interface{}{
		"transaction_amount":  amount,
		"token":               req.PaymentMethodToken,
		"description":         req.Description,
		"installments":        1,
		"external_reference":  req.Reference,
		"three_d_secure_mode": "optional",
		"payer":               map[string]string{"email": req.PayerEmail},
	}
	if req.PaymentMethodID != "" {
		body["payment_method_id"] = req.PaymentMethodID
	}
	if len(req.Metadata) > 0 {
		body["metadata"] = req.Metadata
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return payment.Request{}, err
	}
	var out payment.Request
	if err := json.Unmarshal(raw, &out); err != nil {
		return payment.Request{}, fmt.Errorf("build mercadopago request: %w", err)
	}
	return out, nil
}

func decodeView(resp *payment.Response) (*paymentView, error) {
	if resp == nil {
		return nil, errors.New("empty mercadopago response")
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	var v paymentView
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	v.ID = resp.ID
	v.Status = resp.Status
	return &v, nil
}

func mapCardResult(v *paymentView) (*gateway.CardResult, error) {
	txID := strconv.Itoa(v.ID)
	switch strings.ToLower(v.Status) {
	case "approved", "authorized":
		return &gateway.CardResult{
			Status:      gateway.CardSucceeded,
			GatewayTxID: txID,
			ReceiptURL:  v.TransactionDetails.ExternalResourceURL,
		}, nil
	case "pending", "in_process":
		secret := v.ThreeDSInfo.ExternalResourceURL
		if secret == "" {
			secret = v.ThreeDSInfo.Creq
		}
		return &gateway.CardResult{
			Status:       gateway.CardRequiresAction,
			GatewayTxID:  txID,
			ClientSecret: secret,
		}, nil
	default:
		detail := v.StatusDetail
		if detail == "" {
			detail = v.Status
		}
		return nil, gateway.Rejected(gateway.ProviderMercadoPago, detail, "card payment "+v.Status)
	}
}

func (g *Gateway) mockCapture(req gateway.CardRequest) (*gateway.CardResult, error) {
	id := strconv.FormatInt(time.Now().UTC().UnixNano(), 10)
	v := gateway.Verification{
		GatewayTxID: id,
		Reference:   req.Reference,
		Amount:      req.Amount.Round(2),
		Currency:    strings.ToUpper(req.Currency),
	}

	var result *gateway.CardResult
	switch req.PaymentMethodToken {
	case MockTokenDeclined:
		return nil, gateway.Rejected(g.Name(), "cc_rejected_insufficient_amount", "card payment rejected")
	case MockTokenRequiresAction:
		v.Status, v.RawStatus = gateway.StatusPending, "pending"
		result = &gateway.CardResult{Status: gateway.CardRequiresAction, GatewayTxID: id, ClientSecret: "mock_challenge_" + id}
	default:
		v.Status, v.RawStatus = gateway.StatusCompleted, "approved"
		result = &gateway.CardResult{Status: gateway.CardSucceeded, GatewayTxID: id, ReceiptURL: "https://mock.mercadopago.local/receipts/" + id}
	}

	g.mu.Lock()
	g.mocked[id] = v
	g.mu.Unlock()

	log.Info().Str("provider_payment_id", id).Str("status", v.RawStatus).Msg("MercadoPago mock payment created")
	return result, nil
}

// CompleteMock marks a mocked pending payment approved, simulating the
// buyer finishing a challenge.
func (g *Gateway) CompleteMock(gatewayTxID string) bool {
	if !g.mock {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	v, ok := g.mocked[gatewayTxID]
	if !ok {
		return false
	}
	v.Status, v.RawStatus = gateway.StatusCompleted, "approved"
	g.mocked[gatewayTxID] = v
	return true
}
