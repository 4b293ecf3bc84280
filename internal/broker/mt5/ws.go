package mt5

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"gridbot/internal/models"
)

type wsTickMessage struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	TimeMS int64   `json:"time_ms"`
}

type wsSubscribe struct {
	Op      string   `json:"op"`
	Symbols []string `json:"symbols"`
}

// StreamTicks держит поток котировок для списка инструментов, пока жив
// контекст. Переподключается с экспоненциальной задержкой.
func (c *Client) StreamTicks(ctx context.Context, symbols []string) error {
	if c.wsURL == "" {
		return fmt.Errorf("Не задан адрес веб-сокета шлюза.")
	}

	go func() {
		backoff := time.Second
		for {
			if ctx.Err() != nil {
				return
			}
			if err := c.readTicks(ctx, symbols); err != nil && ctx.Err() == nil {
				c.log.WithComponent("mt5").WithError(err).Warn("Поток котировок оборвался, переподключение.")
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
		}
	}()

	return nil
}

func (c *Client) readTicks(ctx context.Context, symbols []string) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return fmt.Errorf("Не удалось открыть веб-сокет: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(wsSubscribe{Op: "subscribe", Symbols: symbols}); err != nil {
		return fmt.Errorf("Не удалось отправить подписку: %w", err)
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg wsTickMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.WithComponent("mt5").WithError(err).Debug("Непонятное сообщение веб-сокета.")
			continue
		}
		if msg.Symbol == "" {
			continue
		}
		ts := time.Now()
		if msg.TimeMS > 0 {
			ts = time.UnixMilli(msg.TimeMS)
		}
		c.storeTick(models.Tick{
			Symbol:    msg.Symbol,
			Bid:       msg.Bid,
			Ask:       msg.Ask,
			Timestamp: ts,
		})
	}
}
