package response

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMeta(t *testing.T) {
	m := NewMeta(45, 2, 20)
	assert.Equal(t, 3, m.Pages)
	assert.True(t, m.HasNext)
	assert.True(t, m.HasPrev)

	last := NewMeta(45, 3, 20)
	assert.False(t, last.HasNext)

	empty := NewMeta(0, 0, 0)
	assert.Equal(t, 1, empty.Page)
	assert.Equal(t, 0, empty.Pages)
	assert.False(t, empty.HasNext)
}

func TestErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Conflict(rec, "INSUFFICIENT_FUNDS", "insufficient balance")

	require.Equal(t, http.StatusConflict, rec.Code)
	var body Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.False(t, body.Success)
	require.NotNil(t, body.Error)
	assert.Equal(t, "INSUFFICIENT_FUNDS", body.Error.Code)
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var v struct {
		Amount string `json:"amount"`
	}
	err := DecodeJSON(io.NopCloser(strings.NewReader(`{"amount":"1.00","extra":true}`)), &v)
	assert.Error(t, err)

	err = DecodeJSON(io.NopCloser(strings.NewReader(`{"amount":"1.00"}`)), &v)
	require.NoError(t, err)
	assert.Equal(t, "1.00", v.Amount)
}
