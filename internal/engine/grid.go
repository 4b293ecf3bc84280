package engine

import (
	"context"
	"errors"

	"gridbot/internal/models"
)

// maintainGrid чинит и расширяет лесенку вокруг текущей цены. Желаемая
// форма сетки каждый раз выводится заново из наблюдаемого состояния брокера.
func (e *Engine) maintainGrid(ctx context.Context, st *symbolState, tick models.Tick) error {
	base := st.align(tick.Ask)

	if len(st.cache.orders) == 0 && len(st.anchors) == 0 {
		return e.placeInitialLadder(ctx, st, base, tick)
	}

	if len(st.anchors) > 0 {
		e.ensureAnchors(ctx, st, base, tick)
	}

	return e.expandGrid(ctx, st, base, tick)
}

func (e *Engine) placeInitialLadder(ctx context.Context, st *symbolState, base float64, tick models.Tick) error {
	brick := st.cfg.BrickSize

	if st.cfg.TradeSide.AllowsBuy() {
		for i := 1; i <= st.cfg.InitialLevelsBuy; i++ {
			price := st.align(base + brick*float64(i))
			placed, err := e.placeStopChecked(ctx, st, models.PendingTypeBuyStop, price, st.cfg.LotSize, tick)
			if err != nil {
				return err
			}
			if placed {
				st.anchors[price] = true
			}
		}
	}
	if st.cfg.TradeSide.AllowsSell() {
		for i := 1; i <= st.cfg.InitialLevelsSell; i++ {
			price := st.align(base - brick*float64(i))
			placed, err := e.placeStopChecked(ctx, st, models.PendingTypeSellStop, price, st.cfg.LotSize, tick)
			if err != nil {
				return err
			}
			if placed {
				st.anchors[price] = true
			}
		}
	}

	if len(st.anchors) > 0 {
		e.symbolEntry(st.symbol).WithFields(map[string]interface{}{
			"base":    base,
			"anchors": len(st.anchors),
		}).Info("Стартовая лесенка поставлена.")
	}
	return nil
}

func (e *Engine) ensureAnchors(ctx context.Context, st *symbolState, base float64, tick models.Tick) {
	for price := range st.anchors {
		if st.cache.hasPendingAt(price) {
			continue
		}
		var typ models.PendingType
		switch {
		case price > base && st.cfg.TradeSide.AllowsBuy():
			typ = models.PendingTypeBuyStop
		case price < base && st.cfg.TradeSide.AllowsSell():
			typ = models.PendingTypeSellStop
		default:
			continue
		}
		placed, err := e.placeStopChecked(ctx, st, typ, price, st.cfg.LotSize, tick)
		if err != nil {
			e.symbolEntry(st.symbol).WithError(err).Warn("Не удалось переставить якорный уровень.")
			continue
		}
		if placed {
			e.symbolEntry(st.symbol).WithFields(map[string]interface{}{
				"price": price,
				"type":  typ,
			}).Info("Якорный уровень переставлен.")
		}
	}
}

// expandGrid выводит кандидатов от текущей выровненной цены, а не от якоря
// и не от крайних живых отложек: лесенка остаётся ограниченной бюджетом
// уровней.
func (e *Engine) expandGrid(ctx context.Context, st *symbolState, base float64, tick models.Tick) error {
	brick := st.cfg.BrickSize

	if st.cfg.TradeSide.AllowsBuy() {
		for i := 1; i <= st.cfg.MaxUp; i++ {
			price := st.align(base + brick*float64(i))
			if _, err := e.placeStopChecked(ctx, st, models.PendingTypeBuyStop, price, st.cfg.LotSize, tick); err != nil {
				return err
			}
		}
	}

	if st.cfg.TradeSide.AllowsSell() {
		for i := 1; i <= st.cfg.MaxDown; i++ {
			price := st.align(base - brick*float64(i))
			if _, err := e.placeStopChecked(ctx, st, models.PendingTypeSellStop, price, st.cfg.LotSize, tick); err != nil {
				return err
			}
		}
	}

	return nil
}

func (e *Engine) placeStopChecked(ctx context.Context, st *symbolState, typ models.PendingType, price, volume float64, tick models.Tick) (bool, error) {
	if e.closed.Blocked(st.symbol, price, e.cfg.Engine.ClosedLevelBlock) {
		return false, nil
	}
	exists, err := st.cache.existsAt(ctx, e.gw, st, typ, price)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if st.cache.positionPrices[price] {
		return false, nil
	}
	if tooCloseToMarket(st, typ, price, tick) {
		return false, nil
	}
	if opposingPositionNear(st, typ, price) {
		return false, nil
	}

	res, err := e.gw.PlaceStop(ctx, typ, st.symbol, price, volume, st.cfg.StopLoss, st.cfg.TakeProfit, st.info.Digits)
	if err != nil {
		// Потолок отложек не ошибка такта: остальная сверка продолжается.
		if errors.Is(err, errOrderCeiling) {
			return false, nil
		}
		return false, err
	}
	if !res.Done() {
		e.symbolEntry(st.symbol).WithFields(map[string]interface{}{
			"type":    typ,
			"price":   price,
			"retcode": res.RetCode,
			"comment": res.Comment,
		}).Warn("Брокер отклонил постановку уровня.")
		return false, nil
	}

	st.cache.markPending(typ, price)
	e.symbolEntry(st.symbol).WithFields(map[string]interface{}{
		"ticket": res.Ticket,
		"type":   typ,
		"price":  price,
		"volume": volume,
	}).Info("Уровень поставлен.")
	return true, nil
}

func tooCloseToMarket(st *symbolState, typ models.PendingType, price float64, tick models.Tick) bool {
	minDist := st.info.MinStopDistance
	if typ == models.PendingTypeBuyStop {
		return price <= tick.Ask+minDist
	}
	return price >= tick.Bid-minDist
}

func opposingPositionNear(st *symbolState, typ models.PendingType, price float64) bool {
	threshold := st.cfg.BrickSize
	if st.info.Point > 0 && st.info.Point < threshold {
		threshold = st.info.Point
	}
	threshold /= 10

	opposing := models.PositionSideBuy
	if typ == models.PendingTypeBuyStop {
		opposing = models.PositionSideSell
	}
	for _, p := range st.cache.positions {
		if p.Side != opposing {
			continue
		}
		// Сырая цена открытия: выровненная либо совпала бы с уровнем,
		// либо отстояла бы на целый кирпич.
		diff := p.PriceOpen - price
		if diff < 0 {
			diff = -diff
		}
		if diff < threshold {
			return true
		}
	}
	return false
}
