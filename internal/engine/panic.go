package engine

import (
	"context"

	"gridbot/internal/models"
)

// PanicCloseAll закрывает все позиции по рынку и снимает все отложки.
func (e *Engine) PanicCloseAll(ctx context.Context) error {
	positions, err := e.gw.Positions(ctx, "")
	if err != nil {
		return err
	}
	orders, err := e.gw.PendingOrders(ctx, "")
	if err != nil {
		return err
	}

	e.log.WithComponent("panic").WithFields(map[string]interface{}{
		"positions": len(positions),
		"orders":    len(orders),
	}).Warn("Аварийное закрытие: закрываю всё.")

	for _, pos := range positions {
		e.closeOnePosition(ctx, pos)
	}
	for _, o := range orders {
		e.cancelOneOrder(ctx, o)
	}
	return nil
}

func (e *Engine) ForceCloseSymbol(ctx context.Context, symbol string) error {
	positions, err := e.gw.Positions(ctx, symbol)
	if err != nil {
		return err
	}
	for _, pos := range positions {
		e.closeOnePosition(ctx, pos)
	}

	orders, err := e.gw.PendingOrders(ctx, symbol)
	if err != nil {
		return err
	}
	for _, o := range orders {
		e.cancelOneOrder(ctx, o)
	}
	return nil
}

// CancelGridOrders снимает отложки с магиком движка. Пустой список
// инструментов означает все.
func (e *Engine) CancelGridOrders(ctx context.Context, symbols ...string) (int, error) {
	if len(symbols) == 0 {
		symbols = []string{""}
	}

	canceled := 0
	for _, symbol := range symbols {
		orders, err := e.gw.PendingOrders(ctx, symbol)
		if err != nil {
			return canceled, err
		}
		for _, o := range orders {
			if o.Magic != e.cfg.Engine.Magic {
				continue
			}
			if e.cancelOneOrder(ctx, o) {
				canceled++
			}
		}
	}

	e.log.WithComponent("panic").WithFields(map[string]interface{}{
		"count": canceled,
	}).Info("Снятие сеточных ордеров завершено.")
	return canceled, nil
}

func (e *Engine) closeOnePosition(ctx context.Context, pos models.Position) bool {
	tick, err := e.gw.Tick(ctx, pos.Symbol)
	if err != nil {
		e.symbolEntry(pos.Symbol).WithField("ticket", pos.Ticket).WithError(err).Warn("Нет котировки, позиция пропущена.")
		return false
	}

	price := tick.Bid
	if pos.Side == models.PositionSideSell {
		price = tick.Ask
	}

	res, err := e.gw.ClosePosition(ctx, pos, price)
	if err != nil {
		e.symbolEntry(pos.Symbol).WithField("ticket", pos.Ticket).WithError(err).Error("Не удалось закрыть позицию.")
		return false
	}
	if !res.Done() {
		e.symbolEntry(pos.Symbol).WithFields(map[string]interface{}{
			"ticket":  pos.Ticket,
			"retcode": res.RetCode,
			"comment": res.Comment,
		}).Error("Брокер отклонил закрытие позиции во всех режимах исполнения.")
		return false
	}

	e.symbolEntry(pos.Symbol).WithFields(map[string]interface{}{
		"ticket": pos.Ticket,
		"price":  price,
	}).Info("Позиция закрыта.")
	return true
}

func (e *Engine) cancelOneOrder(ctx context.Context, o models.PendingOrder) bool {
	res, err := e.gw.Cancel(ctx, o.Symbol, o.Ticket)
	if err != nil {
		e.symbolEntry(o.Symbol).WithField("ticket", o.Ticket).WithError(err).Error("Не удалось снять отложенный ордер.")
		return false
	}
	if !res.Done() {
		e.symbolEntry(o.Symbol).WithFields(map[string]interface{}{
			"ticket":  o.Ticket,
			"retcode": res.RetCode,
		}).Error("Брокер отклонил снятие отложенного ордера.")
		return false
	}
	e.symbolEntry(o.Symbol).WithFields(map[string]interface{}{
		"ticket": o.Ticket,
		"price":  o.Price,
	}).Info("Отложенный ордер снят.")
	return true
}
