package mtbridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/executor/broker"
	"github.com/rustyeddy/executor/market"
)

var upgrader = websocket.Upgrader{}

// bridgeHandler answers each request by calling reply with the decoded
// request; whatever reply returns is sent back with the request id.
func bridgeHandler(t *testing.T, reply func(req request) response) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var req request
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			resp := reply(req)
			resp.ID = req.ID
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
	}
}

func dial(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := New(url, time.Second, zerolog.Nop())
	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(func() { c.Close() })
	return c
}

func result(v any) response {
	raw, _ := json.Marshal(v)
	return response{Result: raw}
}

func TestTickRoundTrip(t *testing.T) {
	c := dial(t, bridgeHandler(t, func(req request) response {
		if req.Method != "tick" {
			return response{Error: &bridgeError{Code: "bad", Message: "unexpected method"}}
		}
		return result(wireTick{Bid: 1.0840, Ask: 1.0842, Time: 1772500000})
	}))

	tick, err := c.Tick(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, 1.0840, tick.Bid)
	assert.Equal(t, 1.0842, tick.Ask)
	assert.Equal(t, int64(1772500000), tick.Time.Unix())
}

func TestCandlesRoundTrip(t *testing.T) {
	c := dial(t, bridgeHandler(t, func(req request) response {
		return result([]wireCandle{
			{Time: 1772500000, Open: 1, High: 2, Low: 0.5, Close: 1.5},
			{Time: 1772500060, Open: 1.5, High: 2.5, Low: 1, Close: 2},
		})
	}))

	cs, err := c.Candles(context.Background(), "EURUSD", 2)
	require.NoError(t, err)
	require.Len(t, cs, 2)
	assert.Equal(t, 2.0, cs[1].Close)
}

func TestOrderSendFill(t *testing.T) {
	c := dial(t, bridgeHandler(t, func(req request) response {
		return result(map[string]any{"ticket": 5001, "price": 1.0842})
	}))

	fill, err := c.SubmitMarketOrder(context.Background(), broker.OrderRequest{
		Symbol: "EURUSD", Side: market.Buy, Volume: 0.5, Price: 1.0842,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5001), fill.Ticket)
	assert.Equal(t, 1.0842, fill.Price)
}

func TestRejectionMapsToErrRejected(t *testing.T) {
	c := dial(t, bridgeHandler(t, func(req request) response {
		return response{Error: &bridgeError{Code: "rejected", Message: "volume too small"}}
	}))

	_, err := c.SubmitMarketOrder(context.Background(), broker.OrderRequest{
		Symbol: "EURUSD", Side: market.Buy, Volume: 0.001,
	})
	assert.ErrorIs(t, err, broker.ErrRejected)
	assert.Contains(t, err.Error(), "volume too small")
}

func TestNullResultMapsToErrNoResponse(t *testing.T) {
	c := dial(t, bridgeHandler(t, func(req request) response {
		return response{} // no error, no result
	}))

	_, err := c.SubmitMarketOrder(context.Background(), broker.OrderRequest{
		Symbol: "EURUSD", Side: market.Buy, Volume: 0.5,
	})
	assert.ErrorIs(t, err, broker.ErrNoResponse)
}

func TestSkipsUnsolicitedMessages(t *testing.T) {
	c := dial(t, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var req request
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		// heartbeat with no id, then the real answer
		conn.WriteJSON(map[string]string{"event": "heartbeat"})
		raw, _ := json.Marshal(wireTick{Bid: 1, Ask: 2})
		conn.WriteJSON(response{ID: req.ID, Result: raw})
	})

	tick, err := c.Tick(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, 1.0, tick.Bid)
}

func TestModifyAndCloseAcceptEmptyResult(t *testing.T) {
	c := dial(t, bridgeHandler(t, func(req request) response {
		return response{} // methods without a payload answer with a bare ack
	}))

	err := c.ModifyStops(context.Background(), broker.StopModify{
		Symbol: "EURUSD", Ticket: 1, Kind: broker.StopLoss, Price: 1.08,
	})
	assert.NoError(t, err)

	assert.NoError(t, c.ClosePosition(context.Background(), "EURUSD", 1))
	assert.NoError(t, c.CancelOrder(context.Background(), 1))
}

func TestConnectHonorsCancellation(t *testing.T) {
	c := New("ws://127.0.0.1:1/nothing-listens-here", 50*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := c.Connect(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCallWithoutConnect(t *testing.T) {
	c := New("ws://127.0.0.1:1/nowhere", time.Second, zerolog.Nop())
	_, err := c.Tick(context.Background(), "EURUSD")
	assert.Error(t, err)
}
