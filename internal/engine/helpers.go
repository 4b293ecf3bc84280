package engine

import (
	"context"
	"time"

	"gridbot/internal/models"
)

func (e *Engine) symbolInfoWithRetry(ctx context.Context, symbol string) (models.SymbolInfo, error) {
	var lastErr error
	backoff := 1 * time.Second
	for i := 0; i < 5; i++ {
		info, err := e.gw.SymbolInfo(ctx, symbol)
		if err == nil {
			return info, nil
		}
		lastErr = err
		e.symbolEntry(symbol).WithError(lastErr).Warn("Ошибка, повторяем запрос.")
		select {
		case <-ctx.Done():
			return models.SymbolInfo{}, ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
	return models.SymbolInfo{}, lastErr
}
