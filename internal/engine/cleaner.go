package engine

import (
	"context"
	"sort"
	"time"

	"gridbot/internal/models"
)

func (e *Engine) runCleaner(ctx context.Context) {
	entry := e.log.WithComponent("cleaner")
	entry.Info("Чистильщик лишних ордеров запущен.")

	for {
		select {
		case <-ctx.Done():
			entry.Info("Чистильщик остановлен.")
			return
		case <-time.After(e.cfg.Engine.CleanerInterval):
		}

		for symbol, sym := range e.cfg.Symbols {
			if ctx.Err() != nil {
				return
			}
			if !sym.Active || !sym.FarClose {
				continue
			}
			if err := e.trimExcessOrders(ctx, symbol, sym.MaxUp, sym.MaxDown); err != nil {
				entry.WithField("symbol", symbol).WithError(err).Warn("Чистка лишних ордеров не прошла.")
			}
		}
	}
}

func (e *Engine) trimExcessOrders(ctx context.Context, symbol string, maxUp, maxDown int) error {
	orders, err := e.gw.PendingOrders(ctx, symbol)
	if err != nil {
		return err
	}

	var buys, sells []models.PendingOrder
	for _, o := range orders {
		if o.Magic != e.cfg.Engine.Magic {
			continue
		}
		switch o.Type {
		case models.PendingTypeBuyStop:
			buys = append(buys, o)
		case models.PendingTypeSellStop:
			sells = append(sells, o)
		}
	}

	// Дальние покупки выше, дальние продажи ниже.
	sort.Slice(buys, func(i, j int) bool { return buys[i].Price > buys[j].Price })
	sort.Slice(sells, func(i, j int) bool { return sells[i].Price < sells[j].Price })

	if len(buys) > maxUp {
		e.cancelBatch(ctx, symbol, buys[:len(buys)-maxUp])
	}
	if len(sells) > maxDown {
		e.cancelBatch(ctx, symbol, sells[:len(sells)-maxDown])
	}
	return nil
}

func (e *Engine) cancelBatch(ctx context.Context, symbol string, orders []models.PendingOrder) {
	for _, o := range orders {
		if ctx.Err() != nil {
			return
		}
		res, err := e.gw.Cancel(ctx, symbol, o.Ticket)
		if err != nil {
			e.symbolEntry(symbol).WithField("ticket", o.Ticket).WithError(err).Warn("Не удалось снять лишний ордер.")
			continue
		}
		if !res.Done() {
			e.symbolEntry(symbol).WithFields(map[string]interface{}{
				"ticket":  o.Ticket,
				"retcode": res.RetCode,
			}).Warn("Брокер отклонил снятие лишнего ордера.")
			continue
		}
		e.symbolEntry(symbol).WithFields(map[string]interface{}{
			"ticket": o.Ticket,
			"type":   o.Type,
			"price":  o.Price,
		}).Info("Лишний ордер снят.")
	}
}
