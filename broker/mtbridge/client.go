// Package mtbridge implements broker.Broker over a websocket JSON bridge to
// the terminal-side process that owns the real trading session. Each request
// carries an incrementing id; the bridge answers with the same id, an error
// envelope, or (for order submission in a closed market) a null result,
// which surfaces as broker.ErrNoResponse.
package mtbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/rustyeddy/executor/broker"
	"github.com/rustyeddy/executor/market"
)

type Client struct {
	url   string
	retry time.Duration
	log   zerolog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	nextID uint64
}

func New(url string, retry time.Duration, log zerolog.Logger) *Client {
	return &Client{url: url, retry: retry, log: log}
}

// Connect dials the bridge, retrying on a fixed interval until it succeeds
// or ctx is cancelled.
func (c *Client) Connect(ctx context.Context) error {
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err == nil {
			c.mu.Lock()
			c.conn = conn
			c.mu.Unlock()
			c.log.Info().Str("url", c.url).Msg("bridge connected")
			return nil
		}
		c.log.Warn().Err(err).Dur("retry_in", c.retry).Msg("bridge dial failed")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retry):
		}
	}
}

type request struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type response struct {
	ID     uint64          `json:"id"`
	Error  *bridgeError    `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

type bridgeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// call performs one request/response round trip. Unsolicited bridge messages
// (heartbeats, pushes) are skipped until the matching id arrives.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("mtbridge: %s: not connected", method)
	}
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetReadDeadline(deadline)
		c.conn.SetWriteDeadline(deadline)
	}

	c.nextID++
	id := c.nextID
	if err := c.conn.WriteJSON(request{ID: id, Method: method, Params: params}); err != nil {
		return fmt.Errorf("mtbridge: %s: write: %w", method, err)
	}

	for {
		var resp response
		if err := c.conn.ReadJSON(&resp); err != nil {
			return fmt.Errorf("mtbridge: %s: read: %w", method, err)
		}
		if resp.ID != id {
			continue
		}
		if resp.Error != nil {
			if resp.Error.Code == "rejected" {
				return fmt.Errorf("%w: %s: %s", broker.ErrRejected, method, resp.Error.Message)
			}
			return fmt.Errorf("mtbridge: %s: %s: %s", method, resp.Error.Code, resp.Error.Message)
		}
		if out == nil {
			return nil
		}
		if len(resp.Result) == 0 || string(resp.Result) == "null" {
			return fmt.Errorf("%w: %s", broker.ErrNoResponse, method)
		}
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("mtbridge: %s: decode result: %w", method, err)
		}
		return nil
	}
}

type symbolParams struct {
	Symbol string `json:"symbol"`
}

type wireTick struct {
	Bid  float64 `json:"bid"`
	Ask  float64 `json:"ask"`
	Time int64   `json:"time"`
}

func (c *Client) Tick(ctx context.Context, symbol string) (market.Tick, error) {
	var t wireTick
	if err := c.call(ctx, "tick", symbolParams{symbol}, &t); err != nil {
		return market.Tick{}, err
	}
	return market.Tick{Bid: t.Bid, Ask: t.Ask, Time: time.Unix(t.Time, 0).UTC()}, nil
}

type wireCandle struct {
	Time  int64   `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

func (c *Client) Candles(ctx context.Context, symbol string, count int) ([]market.Candle, error) {
	params := struct {
		Symbol string `json:"symbol"`
		Count  int    `json:"count"`
	}{symbol, count}

	var ws []wireCandle
	if err := c.call(ctx, "candles", params, &ws); err != nil {
		return nil, err
	}
	out := make([]market.Candle, len(ws))
	for i, w := range ws {
		out[i] = market.Candle{
			Time:  time.Unix(w.Time, 0).UTC(),
			Open:  w.Open,
			High:  w.High,
			Low:   w.Low,
			Close: w.Close,
		}
	}
	return out, nil
}

func (c *Client) SymbolInfo(ctx context.Context, symbol string) (market.SymbolInfo, error) {
	var info struct {
		Name      string  `json:"name"`
		Digits    int     `json:"digits"`
		TickSize  float64 `json:"tick_size"`
		TickValue float64 `json:"tick_value"`
	}
	if err := c.call(ctx, "symbol_info", symbolParams{symbol}, &info); err != nil {
		return market.SymbolInfo{}, err
	}
	return market.SymbolInfo{
		Name:      info.Name,
		Digits:    info.Digits,
		TickSize:  info.TickSize,
		TickValue: info.TickValue,
	}, nil
}

func (c *Client) Account(ctx context.Context) (broker.Account, error) {
	var a struct {
		Login       int64   `json:"login"`
		Balance     float64 `json:"balance"`
		Profit      float64 `json:"profit"`
		Equity      float64 `json:"equity"`
		Margin      float64 `json:"margin"`
		MarginFree  float64 `json:"margin_free"`
		MarginLevel float64 `json:"margin_level"`
	}
	if err := c.call(ctx, "account", nil, &a); err != nil {
		return broker.Account{}, err
	}
	return broker.Account{
		Login:       a.Login,
		Balance:     a.Balance,
		Profit:      a.Profit,
		Equity:      a.Equity,
		MarginUsed:  a.Margin,
		MarginFree:  a.MarginFree,
		MarginLevel: a.MarginLevel,
	}, nil
}

type wirePosition struct {
	Ticket     int64   `json:"ticket"`
	Time       int64   `json:"time"`
	Side       string  `json:"side"`
	Volume     float64 `json:"volume"`
	OpenPrice  float64 `json:"open_price"`
	StopLoss   float64 `json:"sl"`
	TakeProfit float64 `json:"tp"`
	Profit     float64 `json:"profit"`
}

func (c *Client) Positions(ctx context.Context, symbol string) ([]broker.Position, error) {
	var ws []wirePosition
	if err := c.call(ctx, "positions", symbolParams{symbol}, &ws); err != nil {
		return nil, err
	}
	out := make([]broker.Position, len(ws))
	for i, w := range ws {
		out[i] = broker.Position{
			Ticket:     w.Ticket,
			OpenTime:   time.Unix(w.Time, 0).UTC(),
			Side:       market.Side(w.Side),
			Volume:     w.Volume,
			OpenPrice:  w.OpenPrice,
			StopLoss:   w.StopLoss,
			TakeProfit: w.TakeProfit,
			Profit:     w.Profit,
		}
	}
	return out, nil
}

func (c *Client) PendingOrders(ctx context.Context, symbol string) ([]broker.PendingOrder, error) {
	var ws []struct {
		Ticket int64   `json:"ticket"`
		Time   int64   `json:"time_setup"`
		Side   string  `json:"side"`
		Volume float64 `json:"volume"`
		Price  float64 `json:"price"`
	}
	if err := c.call(ctx, "pending_orders", symbolParams{symbol}, &ws); err != nil {
		return nil, err
	}
	out := make([]broker.PendingOrder, len(ws))
	for i, w := range ws {
		out[i] = broker.PendingOrder{
			Ticket:    w.Ticket,
			SetupTime: time.Unix(w.Time, 0).UTC(),
			Side:      market.Side(w.Side),
			Volume:    w.Volume,
			Price:     w.Price,
		}
	}
	return out, nil
}

func (c *Client) SubmitMarketOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderFill, error) {
	params := struct {
		Symbol         string  `json:"symbol"`
		Side           string  `json:"side"`
		Volume         float64 `json:"volume"`
		Price          float64 `json:"price"`
		StopLoss       float64 `json:"sl"`
		TakeProfit     float64 `json:"tp"`
		DeviationTicks int     `json:"deviation"`
		TimePolicy     string  `json:"time_policy"`
		FillPolicy     string  `json:"fill_policy"`
	}{
		Symbol:         req.Symbol,
		Side:           string(req.Side),
		Volume:         req.Volume,
		Price:          req.Price,
		StopLoss:       req.StopLoss,
		TakeProfit:     req.TakeProfit,
		DeviationTicks: req.DeviationTicks,
		TimePolicy:     "gtc",
		FillPolicy:     "fok",
	}

	var fill struct {
		Ticket int64   `json:"ticket"`
		Price  float64 `json:"price"`
	}
	if err := c.call(ctx, "order_send", params, &fill); err != nil {
		return broker.OrderFill{}, err
	}
	return broker.OrderFill{Ticket: fill.Ticket, Price: fill.Price}, nil
}

func (c *Client) ModifyStops(ctx context.Context, mod broker.StopModify) error {
	params := struct {
		Symbol string  `json:"symbol"`
		Ticket int64   `json:"ticket"`
		Kind   string  `json:"kind"`
		Price  float64 `json:"price"`
	}{mod.Symbol, mod.Ticket, string(mod.Kind), mod.Price}

	return c.call(ctx, "order_modify", params, nil)
}

func (c *Client) ClosePosition(ctx context.Context, symbol string, ticket int64) error {
	params := struct {
		Symbol string `json:"symbol"`
		Ticket int64  `json:"ticket"`
	}{symbol, ticket}

	return c.call(ctx, "position_close", params, nil)
}

func (c *Client) CancelOrder(ctx context.Context, ticket int64) error {
	params := struct {
		Ticket int64 `json:"ticket"`
	}{ticket}

	return c.call(ctx, "order_cancel", params, nil)
}

// Close shuts the websocket down. Safe to call when never connected.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
