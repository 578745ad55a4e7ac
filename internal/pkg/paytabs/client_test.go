package paytabs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmarket/marketplace-api/internal/pkg/gateway"
)

func newTestClient(url string) *Client {
	return NewClient(Config{
		BaseURL:   url,
		ProfileID: "m-1",
		ServerKey: "s3cr3t",
		HashAlgo:  HashSHA256,
		Timeout:   200 * time.Millisecond,
	})
}

func TestBeginRedirectPaymentSendsSignedFixedAmount(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payment/request", r.URL.Path)
		assert.Equal(t, "s3cr3t", r.Header.Get("Authorization"))
		raw := json.NewDecoder(r.Body)
		raw.UseNumber()
		require.NoError(t, raw.Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"tran_ref":     "TST2401",
			"cart_id":      "pur-42",
			"redirect_url": "https://secure.paytabs.com/payment/page/abc",
		})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	session, err := client.BeginRedirectPayment(context.Background(), gateway.RedirectRequest{
		Amount:    decimal.NewFromInt(200),
		Currency:  "usd",
		Reference: "pur-42",
		Customer:  gateway.Customer{Name: "Buyer", Email: "buyer@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "TST2401", session.GatewayTxID)
	assert.Equal(t, "https://secure.paytabs.com/payment/page/abc", session.RedirectURL)

	assert.Equal(t, json.Number("200.00"), got["cart_amount"])
	assert.Equal(t, "USD", got["cart_currency"])
	expected, _ := client.Signer().Sign("pur-42", decimal.NewFromInt(200), "USD")
	assert.Equal(t, expected, got["signature"])
}

func TestBeginRedirectPaymentErrorKinds(t *testing.T) {
	cases := map[string]struct {
		handler http.HandlerFunc
		want    error
	}{
		"server error": {
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) },
			want:    gateway.ErrUnavailable,
		},
		"decline": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"code":206,"message":"Profile not active"}`))
			},
			want: gateway.ErrRejected,
		},
		"timeout": {
			handler: func(w http.ResponseWriter, r *http.Request) { time.Sleep(500 * time.Millisecond) },
			want:    gateway.ErrUnavailable,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			_, err := newTestClient(srv.URL).BeginRedirectPayment(context.Background(), gateway.RedirectRequest{
				Amount:    decimal.NewFromInt(10),
				Currency:  "USD",
				Reference: "r-1",
			})
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestVerifyTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payment/query", r.URL.Path)
		_, _ = w.Write([]byte(`{"tran_ref":"TST2401","cart_id":"pur-42","cart_currency":"USD","cart_amount":"200.00",
			"payment_result":{"response_status":"A","response_message":"Authorised"}}`))
	}))
	defer srv.Close()

	v, err := newTestClient(srv.URL).VerifyTransaction(context.Background(), "TST2401")
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusCompleted, v.Status)
	assert.Equal(t, "pur-42", v.Reference)
	assert.True(t, v.Amount.Equal(decimal.NewFromInt(200)))
}

func TestParseCallbackJSONAndForm(t *testing.T) {
	jsonReq := httptest.NewRequest(http.MethodPost, "/webhooks/paytabs",
		strings.NewReader(`{"reference":"pur-42","status":"A","amount":200.00,"currency":"usd","signature":"ab"}`))
	jsonReq.Header.Set("Content-Type", "application/json")

	cb, err := ParseCallback(jsonReq)
	require.NoError(t, err)
	assert.Equal(t, "200.00", cb.Amount)
	assert.Equal(t, "USD", cb.Currency)

	form := url.Values{"cart_id": {"pur-42"}, "cart_amount": {"200.00"}, "cart_currency": {"USD"}, "signature": {"ab"}, "respStatus": {"A"}}
	formReq := httptest.NewRequest(http.MethodPost, "/webhooks/paytabs", strings.NewReader(form.Encode()))
	formReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	cb, err = ParseCallback(formReq)
	require.NoError(t, err)
	assert.Equal(t, "pur-42", cb.Reference)
	assert.Equal(t, "A", cb.Status)

	bad := httptest.NewRequest(http.MethodPost, "/webhooks/paytabs", strings.NewReader(`{"reference":"pur-42"}`))
	_, err = ParseCallback(bad)
	assert.Error(t, err)
}
