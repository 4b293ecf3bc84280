package engine

import (
	"context"

	"gridbot/internal/models"
)

// symbolCache полностью заменяется на каждом цикле, устаревшие записи
// пережить обновление не могут.
type symbolCache struct {
	orders    []models.PendingOrder
	positions []models.Position

	pendingPrices  map[models.PendingType]map[float64]bool
	positionPrices map[float64]bool
}

func newSymbolCache() *symbolCache {
	return &symbolCache{
		pendingPrices: map[models.PendingType]map[float64]bool{
			models.PendingTypeBuyStop:  {},
			models.PendingTypeSellStop: {},
		},
		positionPrices: map[float64]bool{},
	}
}

func (c *symbolCache) refresh(ctx context.Context, gw *GatewayAdapter, st *symbolState) error {
	orders, err := gw.PendingOrders(ctx, st.symbol)
	if err != nil {
		return err
	}
	positions, err := gw.Positions(ctx, st.symbol)
	if err != nil {
		return err
	}

	c.orders = orders
	c.positions = positions
	c.pendingPrices = map[models.PendingType]map[float64]bool{
		models.PendingTypeBuyStop:  {},
		models.PendingTypeSellStop: {},
	}
	c.positionPrices = map[float64]bool{}

	for _, o := range orders {
		c.pendingPrices[o.Type][st.align(o.Price)] = true
	}
	for _, p := range positions {
		c.positionPrices[st.align(p.PriceOpen)] = true
	}
	return nil
}

func (c *symbolCache) hasPendingAt(price float64) bool {
	return c.pendingPrices[models.PendingTypeBuyStop][price] ||
		c.pendingPrices[models.PendingTypeSellStop][price]
}

func (c *symbolCache) markPending(typ models.PendingType, price float64) {
	c.pendingPrices[typ][price] = true
}

func (c *symbolCache) dropTicket(ticket int64, typ models.PendingType, alignedPrice float64) {
	kept := make([]models.PendingOrder, 0, len(c.orders))
	for _, o := range c.orders {
		if o.Ticket != ticket {
			kept = append(kept, o)
		}
	}
	c.orders = kept
	delete(c.pendingPrices[typ], alignedPrice)
}

// existsAt: сначала кэш, при отсутствии — перепроверка напрямую у брокера.
func (c *symbolCache) existsAt(ctx context.Context, gw *GatewayAdapter, st *symbolState, typ models.PendingType, price float64) (bool, error) {
	if c.pendingPrices[typ][price] {
		return true, nil
	}

	orders, err := gw.PendingOrders(ctx, st.symbol)
	if err != nil {
		return false, err
	}
	for _, o := range orders {
		if o.Type == typ && st.align(o.Price) == price {
			c.markPending(typ, price)
			return true, nil
		}
	}
	return false, nil
}
