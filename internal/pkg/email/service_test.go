package email

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []*EmailMessage
}

func (r *recordingSender) Send(_ context.Context, msg *EmailMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

func TestQueueRendersAndSendsOnClose(t *testing.T) {
	sender := &recordingSender{}
	svc := NewServiceWithSender(sender, 4)

	svc.Queue("buyer@example.com", "Buyer", TemplatePurchasePaid, "Payment received", map[string]string{
		"ProjectTitle": "Landing Page Kit",
		"Amount":       "200.00",
		"Currency":     "USD",
		"Reference":    "ref-1",
		"PurchaseURL":  "https://app.example.com/purchases/1",
	})
	svc.Close()

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "buyer@example.com", msg.To)
	assert.Contains(t, msg.HTMLContent, "Landing Page Kit")
	assert.Contains(t, msg.HTMLContent, "200.00 USD")
}

func TestRenderUnknownTemplate(t *testing.T) {
	svc := NewServiceWithSender(&recordingSender{}, 1)
	defer svc.Close()

	_, err := svc.Render("nope", nil)
	assert.Error(t, err)
}

func TestSendGridClientPostsAttachments(t *testing.T) {
	var got sendGridRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client := NewSendGridClient(SendGridConfig{
		APIKey:    "key",
		FromEmail: "no-reply@example.com",
		Endpoint:  srv.URL,
		Timeout:   time.Second,
	})
	err := client.Send(context.Background(), &EmailMessage{
		To:          "seller@example.com",
		Subject:     "Receipt",
		HTMLContent: "<p>hi</p>",
		Attachments: []Attachment{{Filename: "receipt.txt", MIMEType: "text/plain", Content: []byte("paid")}},
	})
	require.NoError(t, err)

	require.Len(t, got.Attachments, 1)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("paid")), got.Attachments[0].Content)
	assert.Equal(t, "seller@example.com", got.Personalizations[0].To[0].Email)
}

func TestSendGridClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewSendGridClient(SendGridConfig{APIKey: "key", Endpoint: srv.URL}).
		Send(context.Background(), &EmailMessage{To: "x@example.com"})
	assert.Error(t, err)

	err = NewSendGridClient(SendGridConfig{}).Send(context.Background(), &EmailMessage{To: "x@example.com"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
