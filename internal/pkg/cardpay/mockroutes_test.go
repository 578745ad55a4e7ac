package cardpay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmarket/marketplace-api/internal/pkg/gateway"
)

func TestMockRoutesApproveChallenge(t *testing.T) {
	g, err := New(Config{Mock: true})
	require.NoError(t, err)
	ctx := context.Background()

	pending, err := g.BeginCardCapture(ctx, cardRequest(MockTokenRequiresAction))
	require.NoError(t, err)

	srv := g.MockRoutes()
	approve := func(id string) int {
		rr := httptest.NewRecorder()
		srv.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/payments/"+id+"/approve", nil))
		return rr.Code
	}

	assert.Equal(t, http.StatusNotFound, approve("unknown"))
	assert.Equal(t, http.StatusOK, approve(pending.GatewayTxID))

	v, err := g.VerifyTransaction(ctx, pending.GatewayTxID)
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusCompleted, v.Status)
}

func TestMockRoutesRefuseRealGateway(t *testing.T) {
	g := newWithClient(&mockPaymentAPI{}, 0, "USD")
	rr := httptest.NewRecorder()
	g.MockRoutes().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/payments/123/approve", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
