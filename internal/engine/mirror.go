package engine

import (
	"context"
	"time"

	"gridbot/internal/models"
)

// mirrorPositions ловит новые позиции по разнице множеств тикетов. Пропавшие
// тикеты уводят свой уровень в карантин закрытых.
func (e *Engine) mirrorPositions(ctx context.Context, st *symbolState, tick models.Tick) error {
	current := map[int64]bool{}

	for _, pos := range st.cache.positions {
		current[pos.Ticket] = true
		if _, ok := st.seen[pos.Ticket]; ok {
			continue
		}

		openPrice := st.align(pos.PriceOpen)
		if err := e.placeMirrors(ctx, st, pos, openPrice, tick); err != nil {
			return err
		}
		st.seen[pos.Ticket] = openPrice
	}

	for ticket, openPrice := range st.seen {
		if current[ticket] {
			continue
		}
		e.closed.Block(st.symbol, openPrice, time.Now())
		delete(st.seen, ticket)
		e.symbolEntry(st.symbol).WithFields(map[string]interface{}{
			"ticket": ticket,
			"price":  openPrice,
		}).Info("Позиция закрыта, уровень взят в карантин.")
	}

	return nil
}

func (e *Engine) placeMirrors(ctx context.Context, st *symbolState, pos models.Position, openPrice float64, tick models.Tick) error {
	typ := models.MirrorTypeFor(pos.Side)
	step := -st.cfg.BrickSize
	levels := st.cfg.InitialLevelsSell
	allowed := st.cfg.TradeSide.AllowsSell()
	if pos.Side == models.PositionSideSell {
		step = st.cfg.BrickSize
		levels = st.cfg.InitialLevelsBuy
		allowed = st.cfg.TradeSide.AllowsBuy()
	}
	if !allowed {
		return nil
	}

	created := 0
	for i := 1; i <= levels; i++ {
		price := st.align(openPrice + step*float64(i))
		placed, err := e.placeStopChecked(ctx, st, typ, price, pos.Volume, tick)
		if err != nil {
			return err
		}
		if placed {
			created++
		}
	}

	if created > 0 {
		e.symbolEntry(st.symbol).WithFields(map[string]interface{}{
			"ticket":  pos.Ticket,
			"side":    pos.Side,
			"price":   openPrice,
			"mirrors": created,
		}).Info("Под новую позицию поставлены зеркальные уровни.")
	}
	return nil
}
