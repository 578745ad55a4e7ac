package paytabs

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// Callback is the server-to-server payment notification.
type Callback struct {
	Reference       string          `json:"reference"`
	TranRef         string          `json:"tran_ref,omitempty"`
	Status          string          `json:"status"`
	Amount          string          `json:"amount"`
	Currency        string          `json:"currency"`
	CustomerDetails CustomerDetails `json:"customer_details"`
	Signature       string          `json:"signature"`
}

type CustomerDetails struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UnmarshalJSON accepts amount as either a JSON number or string.
func (c *Callback) UnmarshalJSON(data []byte) error {
	type alias Callback
	var raw struct {
		alias
		Amount json.RawMessage `json:"amount"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Callback(raw.alias)
	c.Amount = strings.Trim(strings.TrimSpace(string(raw.Amount)), `"`)
	return nil
}

const maxCallbackBytes = 64 << 10

// ParseCallback reads a callback sent as JSON or as form fields.
func ParseCallback(r *http.Request) (*Callback, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var cb Callback
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		r.Body = http.MaxBytesReader(nil, r.Body, maxCallbackBytes)
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("invalid callback form: %w", err)
		}
		cb = Callback{
			Reference: firstNonEmpty(r.PostForm.Get("reference"), r.PostForm.Get("cart_id")),
			TranRef:   r.PostForm.Get("tran_ref"),
			Status:    firstNonEmpty(r.PostForm.Get("status"), r.PostForm.Get("respStatus")),
			Amount:    firstNonEmpty(r.PostForm.Get("amount"), r.PostForm.Get("cart_amount")),
			Currency:  firstNonEmpty(r.PostForm.Get("currency"), r.PostForm.Get("cart_currency")),
			CustomerDetails: CustomerDetails{
				Name:  r.PostForm.Get("customer_name"),
				Email: r.PostForm.Get("customer_email"),
			},
			Signature: r.PostForm.Get("signature"),
		}
	default:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBytes))
		if err != nil {
			return nil, fmt.Errorf("read callback: %w", err)
		}
		if err := json.Unmarshal(body, &cb); err != nil {
			return nil, fmt.Errorf("invalid callback json: %w", err)
		}
	}

	cb.Reference = strings.TrimSpace(cb.Reference)
	cb.Currency = strings.ToUpper(strings.TrimSpace(cb.Currency))
	if cb.Reference == "" {
		return nil, fmt.Errorf("reference is required")
	}
	if cb.Signature == "" {
		return nil, fmt.Errorf("signature is required")
	}
	return &cb, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
