package engine

import (
	"context"

	"gridbot/internal/models"
)

// pruneMultiplier расширяет границы чистки относительно радиуса сетки,
// чтобы не срезать только что поставленные ступени.
const pruneMultiplier = 3

func (e *Engine) pruneFarOrders(ctx context.Context, st *symbolState, tick models.Tick) {
	brick := st.cfg.BrickSize
	upper := tick.Ask + brick*float64(st.cfg.MaxUp*pruneMultiplier)
	lower := tick.Ask - brick*float64(st.cfg.MaxDown*pruneMultiplier)

	orders := append([]models.PendingOrder(nil), st.cache.orders...)
	for _, o := range orders {
		aligned := st.align(o.Price)
		if st.anchors[aligned] {
			continue
		}

		far := (o.Type == models.PendingTypeBuyStop && o.Price > upper) ||
			(o.Type == models.PendingTypeSellStop && o.Price < lower)
		if !far {
			continue
		}

		res, err := e.gw.Cancel(ctx, st.symbol, o.Ticket)
		if err != nil {
			e.symbolEntry(st.symbol).WithField("ticket", o.Ticket).WithError(err).Warn("Не удалось снять дальний ордер.")
			continue
		}
		if !res.Done() {
			e.symbolEntry(st.symbol).WithFields(map[string]interface{}{
				"ticket":  o.Ticket,
				"retcode": res.RetCode,
				"comment": res.Comment,
			}).Warn("Брокер отклонил снятие дальнего ордера.")
			continue
		}

		st.cache.dropTicket(o.Ticket, o.Type, aligned)
		e.symbolEntry(st.symbol).WithFields(map[string]interface{}{
			"ticket": o.Ticket,
			"type":   o.Type,
			"price":  o.Price,
		}).Info("Дальний ордер снят.")
	}
}
