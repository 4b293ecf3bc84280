package engine

import (
	"context"
	"time"

	"gridbot/internal/config"
	"gridbot/internal/models"
)

func (e *Engine) runTrailing(ctx context.Context) {
	entry := e.log.WithComponent("trailing")
	entry.Info("Цикл трейлинга запущен.")

	for {
		select {
		case <-ctx.Done():
			entry.Info("Цикл трейлинга остановлен.")
			return
		case <-time.After(e.cfg.Engine.TrailingDelay):
		}

		for symbol, sym := range e.cfg.Symbols {
			if ctx.Err() != nil {
				return
			}
			if !sym.Active || sym.TrailingStop <= 0 {
				continue
			}
			if err := e.trailSymbol(ctx, symbol, sym); err != nil {
				entry.WithField("symbol", symbol).WithError(err).Warn("Трейлинг по инструменту не прошёл.")
			}
		}
	}
}

func (e *Engine) trailSymbol(ctx context.Context, symbol string, sym config.SymbolConfig) error {
	positions, err := e.gw.Positions(ctx, symbol)
	if err != nil {
		return err
	}
	if len(positions) == 0 {
		return nil
	}

	tick, err := e.gw.Tick(ctx, symbol)
	if err != nil {
		return err
	}

	for _, pos := range positions {
		newSL, ok := trailingTarget(pos, tick, sym.TrailingStop, sym.BrickSize)
		if !ok || newSL == pos.StopLoss {
			continue
		}

		res, err := e.gw.ModifyStopLoss(ctx, pos, newSL)
		if err != nil {
			e.symbolEntry(symbol).WithField("ticket", pos.Ticket).WithError(err).Warn("Не удалось перенести стоп-лосс.")
			continue
		}
		if !res.Done() {
			e.symbolEntry(symbol).WithFields(map[string]interface{}{
				"ticket":  pos.Ticket,
				"retcode": res.RetCode,
			}).Warn("Брокер отклонил перенос стоп-лосса.")
			continue
		}
		e.symbolEntry(symbol).WithFields(map[string]interface{}{
			"ticket": pos.Ticket,
			"sl":     newSL,
		}).Info("Стоп-лосс подтянут.")
	}

	return nil
}

// trailingTarget считает новый стоп позиции. Стоп только поджимается.
func trailingTarget(pos models.Position, tick models.Tick, distance, brick float64) (float64, bool) {
	switch pos.Side {
	case models.PositionSideBuy:
		ref := tick.Bid
		if pos.StopLoss != 0 && ref-pos.StopLoss <= distance {
			return 0, false
		}
		candidate := Align(ref-distance, brick, models.RoundNearest)
		if pos.StopLoss != 0 && candidate <= pos.StopLoss {
			return 0, false
		}
		return candidate, true
	case models.PositionSideSell:
		ref := tick.Ask
		if pos.StopLoss != 0 && pos.StopLoss-ref <= distance {
			return 0, false
		}
		candidate := Align(ref+distance, brick, models.RoundNearest)
		if pos.StopLoss != 0 && candidate >= pos.StopLoss {
			return 0, false
		}
		return candidate, true
	}
	return 0, false
}
