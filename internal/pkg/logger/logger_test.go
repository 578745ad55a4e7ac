package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContextFallsBackToGlobal(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
}

func TestLogErrorWritesFieldPairs(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf)
	ctx := WithContext(context.Background(), &l)

	LogError(ctx, errors.New("boom"), "settlement failed", "purchase_id", "p-1", "amount", "10.00", "dangling")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "settlement failed", entry["message"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "p-1", entry["purchase_id"])
	assert.Equal(t, "10.00", entry["amount"])
	assert.NotContains(t, entry, "dangling")
}
