package mt5

import (
	"net/http"
	"sync"
	"time"

	"gridbot/internal/logger"
	"gridbot/internal/models"
)

// Client — клиент веб-моста терминала. REST для торговых операций,
// веб-сокет для потока котировок.
type Client struct {
	baseURL string
	wsURL   string

	httpClient *http.Client
	log        *logger.Logger

	mu        sync.Mutex
	lastTicks map[string]models.Tick
	connected bool
}

func New(baseURL, wsURL string, timeout time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		wsURL:   wsURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log:       log,
		lastTicks: map[string]models.Tick{},
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	return nil
}

func (c *Client) storeTick(tick models.Tick) {
	c.mu.Lock()
	c.lastTicks[tick.Symbol] = tick
	c.mu.Unlock()
}

func (c *Client) cachedTick(symbol string, maxAge time.Duration) (models.Tick, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tick, ok := c.lastTicks[symbol]
	if !ok || time.Since(tick.Timestamp) > maxAge {
		return models.Tick{}, false
	}
	return tick, true
}
