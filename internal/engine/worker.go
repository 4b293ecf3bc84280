package engine

import (
	"context"
	"math"
	"time"
)

// runSymbol — цикл сверки одного инструмента. Ошибка такта не валит воркер.
func (e *Engine) runSymbol(ctx context.Context, st *symbolState) {
	entry := e.symbolEntry(st.symbol)

	info, err := e.symbolInfoWithRetry(ctx, st.symbol)
	if err != nil {
		entry.WithError(err).Error("Не удалось получить параметры инструмента, воркер остановлен.")
		e.setLastError(err)
		return
	}
	st.info = info
	entry.WithFields(map[string]interface{}{
		"digits":   info.Digits,
		"point":    info.Point,
		"min_stop": info.MinStopDistance,
	}).Info("Воркер инструмента запущен.")

	for {
		select {
		case <-ctx.Done():
			entry.Info("Воркер инструмента остановлен.")
			return
		case <-time.After(e.cfg.Engine.LoopDelay):
		}

		if err := e.tickSymbol(ctx, st); err != nil {
			if ctx.Err() != nil {
				entry.Info("Воркер инструмента остановлен.")
				return
			}
			entry.WithError(err).Warn("Такт не прошёл, продолжим на следующем.")
		}
	}
}

func (e *Engine) tickSymbol(ctx context.Context, st *symbolState) error {
	tick, err := e.gw.Tick(ctx, st.symbol)
	if err != nil {
		return err
	}
	price := tick.Ask

	tol := e.cfg.Engine.GridTolerance
	if tol > 0 && st.hasLast && math.Abs(price-st.lastPrice) < tol {
		return nil
	}

	if err := st.cache.refresh(ctx, e.gw, st); err != nil {
		return err
	}

	e.pruneFarOrders(ctx, st, tick)

	if err := e.maintainGrid(ctx, st, tick); err != nil {
		return err
	}

	if err := e.mirrorPositions(ctx, st, tick); err != nil {
		return err
	}

	st.lastPrice = price
	st.hasLast = true
	return nil
}
