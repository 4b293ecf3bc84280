package mt5

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridbot/internal/logger"
	"gridbot/internal/models"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, New(srv.URL, "", 5*time.Second, logger.Discard())
}

func writeEnvelope(t *testing.T, w http.ResponseWriter, code int, message string, result any) {
	t.Helper()
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
		"code":    code,
		"message": message,
		"result":  result,
	}))
}

func TestConnect(t *testing.T) {
	var got map[string]any
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/connect", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeEnvelope(t, w, 0, "", struct{}{})
	})

	require.NoError(t, c.Connect(context.Background(), 12345, "secret", "Demo-Server"))
	assert.Equal(t, float64(12345), got["login"])
	assert.Equal(t, "Demo-Server", got["server"])
}

func TestConnectBridgeError(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, 1001, "invalid credentials", struct{}{})
	})

	err := c.Connect(context.Background(), 1, "x", "demo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid credentials")
}

func TestTickUsesCacheWhenFresh(t *testing.T) {
	calls := 0
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeEnvelope(t, w, 0, "", map[string]any{"bid": 1.1, "ask": 1.2})
	})

	first, err := c.Tick(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, 1.1, first.Bid)
	assert.Equal(t, "EURUSD", first.Symbol)

	// Свежая котировка берётся из кэша, без второго запроса.
	second, err := c.Tick(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, first.Bid, second.Bid)
	assert.Equal(t, 1, calls)
}

func TestSymbolInfoNotFound(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, 0, "", map[string]any{})
	})

	_, err := c.SymbolInfo(context.Background(), "NOPE")
	require.Error(t, err)
}

func TestPendingOrdersPassesSymbol(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/orders", r.URL.Path)
		require.Equal(t, "EURUSD", r.URL.Query().Get("symbol"))
		writeEnvelope(t, w, 0, "", []map[string]any{
			{"ticket": 7, "symbol": "EURUSD", "type": "BUY_STOP", "price": 1.25, "volume": 0.1},
		})
	})

	orders, err := c.PendingOrders(context.Background(), "EURUSD")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(7), orders[0].Ticket)
	assert.Equal(t, models.PendingTypeBuyStop, orders[0].Type)
}

func TestSendOrderReturnsResult(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req models.TradeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, models.TradeActionPlace, req.Action)
		writeEnvelope(t, w, 0, "", map[string]any{"retcode": 10009, "ticket": 42})
	})

	res, err := c.SendOrder(context.Background(), models.TradeRequest{
		Action: models.TradeActionPlace,
		Symbol: "EURUSD",
		Type:   models.PendingTypeBuyStop,
		Price:  1.25,
		Volume: 0.1,
	})
	require.NoError(t, err)
	assert.True(t, res.Done())
	assert.Equal(t, int64(42), res.Ticket)
}

func TestAccountInfo(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/account", r.URL.Path)
		writeEnvelope(t, w, 0, "", map[string]any{"login": 12345, "balance": 1000.0, "equity": 940.0})
	})

	info, err := c.AccountInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1000.0, info.Balance)
	assert.Equal(t, 940.0, info.Equity)
}
