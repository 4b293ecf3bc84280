package mt5

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"gridbot/internal/models"
)

type bridgeResponse[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

func (c *Client) Connect(ctx context.Context, login int64, password, server string) error {
	body := map[string]any{
		"login":    login,
		"password": password,
		"server":   server,
	}
	var resp bridgeResponse[struct{}]
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/connect", nil, body, &resp); err != nil {
		return fmt.Errorf("Не удалось подключиться к шлюзу: %w", err)
	}
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return nil
}

func (c *Client) Tick(ctx context.Context, symbol string) (models.Tick, error) {
	if tick, ok := c.cachedTick(symbol, 2*time.Second); ok {
		return tick, nil
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	var resp bridgeResponse[models.Tick]
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/tick", params, nil, &resp); err != nil {
		return models.Tick{}, err
	}
	if resp.Result.Timestamp.IsZero() {
		resp.Result.Timestamp = time.Now()
	}
	resp.Result.Symbol = symbol
	c.storeTick(resp.Result)
	return resp.Result, nil
}

func (c *Client) SymbolInfo(ctx context.Context, symbol string) (models.SymbolInfo, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	var resp bridgeResponse[models.SymbolInfo]
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/symbol_info", params, nil, &resp); err != nil {
		return models.SymbolInfo{}, err
	}
	if resp.Result.Symbol == "" {
		return models.SymbolInfo{}, fmt.Errorf("Инструмент не найден: %s", symbol)
	}
	return resp.Result, nil
}

func (c *Client) PendingOrders(ctx context.Context, symbol string) ([]models.PendingOrder, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}
	var resp bridgeResponse[[]models.PendingOrder]
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/orders", params, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

func (c *Client) Positions(ctx context.Context, symbol string) ([]models.Position, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}
	var resp bridgeResponse[[]models.Position]
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/positions", params, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

func (c *Client) SendOrder(ctx context.Context, req models.TradeRequest) (models.TradeResult, error) {
	var resp bridgeResponse[models.TradeResult]
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/order_send", nil, req, &resp); err != nil {
		return models.TradeResult{}, err
	}
	return resp.Result, nil
}

func (c *Client) AccountInfo(ctx context.Context) (models.AccountInfo, error) {
	var resp bridgeResponse[models.AccountInfo]
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/account", nil, nil, &resp); err != nil {
		return models.AccountInfo{}, err
	}
	return resp.Result, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values, body any, out any) error {
	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("Не удалось подготовить тело запроса: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	urlStr := c.baseURL + path
	if len(params) > 0 {
		urlStr += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, bodyReader)
	if err != nil {
		return fmt.Errorf("Не удалось создать запрос: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Ошибка запроса: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("Не удалось прочитать ответ: %w", err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("Не удалось разобрать ответ: %w", err)
	}

	if code, msg, ok := extractCode(out); ok && code != 0 {
		return fmt.Errorf("Ошибка моста: %s (code=%d)", msg, code)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("Неуспешный статус: %s", resp.Status)
	}

	return nil
}

func extractCode(v any) (int, string, bool) {
	type coded interface {
		codeAndMessage() (int, string)
	}
	if c, ok := v.(coded); ok {
		code, msg := c.codeAndMessage()
		return code, msg, true
	}
	return 0, "", false
}

func (r *bridgeResponse[T]) codeAndMessage() (int, string) {
	return r.Code, r.Message
}
