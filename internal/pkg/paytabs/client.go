package paytabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/devmarket/marketplace-api/internal/pkg/gateway"
)

// Config holds PayTabs API configuration
type Config struct {
	BaseURL   string
	ProfileID string
	ServerKey string
	HashAlgo  HashAlgorithm
	Timeout   time.Duration
}

// Client is the PayTabs hosted payment page client.
type Client struct {
	httpClient *http.Client
	config     Config
	signer     *Signer
}

// NewClient creates new PayTabs API client
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		signer:     NewSigner(cfg.ProfileID, cfg.ServerKey, cfg.HashAlgo),
	}
}

// Signer returns the signer bound to this merchant.
func (c *Client) Signer() *Signer { return c.signer }

func (c *Client) Name() string { return gateway.ProviderPayTabs }

type customerDetails struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Country string `json:"country,omitempty"`
}

type paymentRequest struct {
	ProfileID       string          `json:"profile_id"`
	TranType        string          `json:"tran_type"`
	TranClass       string          `json:"tran_class"`
	CartID          string          `json:"cart_id"`
	CartDescription string          `json:"cart_description"`
	CartCurrency    string          `json:"cart_currency"`
	CartAmount      json.Number     `json:"cart_amount"`
	Customer        customerDetails `json:"customer_details"`
	ReturnURL       string          `json:"return,omitempty"`
	CallbackURL     string          `json:"callback,omitempty"`
	Signature       string          `json:"signature"`
}

type paymentResponse struct {
	TranRef     string `json:"tran_ref"`
	CartID      string `json:"cart_id"`
	RedirectURL string `json:"redirect_url"`
}

type queryRequest struct {
	ProfileID string `json:"profile_id"`
	TranRef   string `json:"tran_ref"`
}

type queryResponse struct {
	TranRef       string      `json:"tran_ref"`
	CartID        string      `json:"cart_id"`
	CartCurrency  string      `json:"cart_currency"`
	CartAmount    json.Number `json:"cart_amount"`
	PaymentResult struct {
		ResponseStatus  string `json:"response_status"`
		ResponseCode    string `json:"response_code"`
		ResponseMessage string `json:"response_message"`
	} `json:"payment_result"`
}

type errorResponse struct {
	Code    json.Number `json:"code"`
	Message string      `json:"message"`
}

// BeginRedirectPayment creates a hosted payment page and returns its URL.
func (c *Client) BeginRedirectPayment(ctx context.Context, req gateway.RedirectRequest) (*gateway.RedirectSession, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("validation error: amount must be > 0")
	}
	if strings.TrimSpace(req.Reference) == "" {
		return nil, fmt.Errorf("validation error: reference must be non-empty")
	}
	if c.config.BaseURL == "" || c.config.ProfileID == "" || c.config.ServerKey == "" {
		return nil, gateway.Unavailable(c.Name(), errors.New("paytabs is not configured"))
	}

	signature, err := c.signer.Sign(req.Reference, req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}

	body := paymentRequest{
		ProfileID:       c.config.ProfileID,
		TranType:        "sale",
		TranClass:       "ecom",
		CartID:          req.Reference,
		CartDescription: req.Description,
		CartCurrency:    strings.ToUpper(req.Currency),
		CartAmount:      json.Number(gateway.FormatAmount(req.Amount)),
		Customer: customerDetails{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		},
		ReturnURL:   req.ReturnURL,
		CallbackURL: req.CallbackURL,
		Signature:   signature,
	}

	var out paymentResponse
	if err := c.post(ctx, "/payment/request", body, &out); err != nil {
		return nil, err
	}
	if out.RedirectURL == "" {
		return nil, gateway.Unavailable(c.Name(), errors.New("response missing redirect_url"))
	}

	log.Info().Str("reference", req.Reference).Str("tran_ref", out.TranRef).Msg("PayTabs payment page created")
	return &gateway.RedirectSession{RedirectURL: out.RedirectURL, GatewayTxID: out.TranRef}, nil
}

// VerifyTransaction queries a transaction by its PayTabs tran_ref.
func (c *Client) VerifyTransaction(ctx context.Context, gatewayTxID string) (*gateway.Verification, error) {
	if strings.TrimSpace(gatewayTxID) == "" {
		return nil, fmt.Errorf("validation error: transaction reference must be non-empty")
	}

	var out queryResponse
	if err := c.post(ctx, "/payment/query", queryRequest{ProfileID: c.config.ProfileID, TranRef: gatewayTxID}, &out); err != nil {
		return nil, err
	}

	amount, err := gateway.ParseAmount(out.CartAmount.String())
	if err != nil {
		return nil, gateway.Unavailable(c.Name(), err)
	}
	return &gateway.Verification{
		GatewayTxID: out.TranRef,
		Reference:   out.CartID,
		Status:      gateway.NormalizeStatus(out.PaymentResult.ResponseStatus),
		RawStatus:   out.PaymentResult.ResponseStatus,
		Amount:      amount,
		Currency:    out.CartCurrency,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode paytabs request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("paytabs request build failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", c.config.ServerKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return gateway.Unavailable(c.Name(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return gateway.Unavailable(c.Name(), err)
	}

	switch {
	case resp.StatusCode >= 500:
		return gateway.Unavailable(c.Name(), fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		var e errorResponse
		if json.Unmarshal(body, &e) == nil && e.Message != "" {
			return gateway.Rejected(c.Name(), e.Code.String(), e.Message)
		}
		return gateway.Rejected(c.Name(), fmt.Sprintf("http_%d", resp.StatusCode), strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return gateway.Unavailable(c.Name(), fmt.Errorf("decode response: %w", err))
	}
	return nil
}
