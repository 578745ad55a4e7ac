package gateway

import (
	"context"

	"github.com/shopspring/decimal"
)

// Provider names
const (
	ProviderPayTabs     = "paytabs"
	ProviderMercadoPago = "mercadopago"
)

// Customer identifies the payer to a hosted payment page.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// RedirectRequest begins a hosted-page payment.
type RedirectRequest struct {
	Amount      decimal.Decimal
	Currency    string
	Reference   string // unique per attempt
	Description string
	Customer    Customer
	ReturnURL   string
	CallbackURL string
}

// RedirectSession is where the buyer is sent to pay.
type RedirectSession struct {
	RedirectURL string
	GatewayTxID string
}

// CardStatus is the outcome of a card capture attempt.
type CardStatus string

const (
	CardSucceeded      CardStatus = "succeeded"
	CardRequiresAction CardStatus = "requires_action"
)

// CardRequest captures a tokenized card.
type CardRequest struct {
	Amount             decimal.Decimal
	Currency           string
	PaymentMethodToken string
	PaymentMethodID    string // card brand, e.g. "visa"
	PayerEmail         string
	Reference          string
	Description        string
	Metadata           map[string]string
}

// CardResult is the gateway answer to a capture. RequiresAction is not a
// failure: the buyer must finish a challenge using ClientSecret.
type CardResult struct {
	Status       CardStatus
	GatewayTxID  string
	ClientSecret string
	ReceiptURL   string
}

// Verification is the gateway's view of a transaction.
type Verification struct {
	GatewayTxID string
	Reference   string
	Status      Status
	RawStatus   string
	Amount      decimal.Decimal
	Currency    string
}

// RedirectGateway is a hosted-page gateway with server callbacks.
type RedirectGateway interface {
	Name() string
	BeginRedirectPayment(ctx context.Context, req RedirectRequest) (*RedirectSession, error)
	VerifyTransaction(ctx context.Context, gatewayTxID string) (*Verification, error)
}

// CardGateway captures tokenized cards synchronously.
type CardGateway interface {
	Name() string
	BeginCardCapture(ctx context.Context, req CardRequest) (*CardResult, error)
	VerifyTransaction(ctx context.Context, gatewayTxID string) (*Verification, error)
}
