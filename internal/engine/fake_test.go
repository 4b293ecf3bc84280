package engine

import (
	"context"
	"sync"

	"gridbot/internal/models"
)

// fakeGateway — брокер в памяти для тестов движка.
type fakeGateway struct {
	mu sync.Mutex

	connectErr error
	sendErr    error
	acceptFill string
	rejectAll  bool
	rejectHard bool

	ticks      map[string]models.Tick
	infos      map[string]models.SymbolInfo
	orders     map[string][]models.PendingOrder
	positions  map[string][]models.Position
	account    models.AccountInfo
	nextTicket int64

	sent []models.TradeRequest
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		ticks:      map[string]models.Tick{},
		infos:      map[string]models.SymbolInfo{},
		orders:     map[string][]models.PendingOrder{},
		positions:  map[string][]models.Position{},
		nextTicket: 1000,
	}
}

func (f *fakeGateway) Connect(ctx context.Context, login int64, password, server string) error {
	return f.connectErr
}

func (f *fakeGateway) Close() error { return nil }

func (f *fakeGateway) Tick(ctx context.Context, symbol string) (models.Tick, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ticks[symbol], nil
}

func (f *fakeGateway) SymbolInfo(ctx context.Context, symbol string) (models.SymbolInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.infos[symbol], nil
}

func (f *fakeGateway) PendingOrders(ctx context.Context, symbol string) ([]models.PendingOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if symbol == "" {
		var all []models.PendingOrder
		for _, list := range f.orders {
			all = append(all, list...)
		}
		return all, nil
	}
	return append([]models.PendingOrder(nil), f.orders[symbol]...), nil
}

func (f *fakeGateway) Positions(ctx context.Context, symbol string) ([]models.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if symbol == "" {
		var all []models.Position
		for _, list := range f.positions {
			all = append(all, list...)
		}
		return all, nil
	}
	return append([]models.Position(nil), f.positions[symbol]...), nil
}

func (f *fakeGateway) AccountInfo(ctx context.Context) (models.AccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.account, nil
}

func (f *fakeGateway) SendOrder(ctx context.Context, req models.TradeRequest) (models.TradeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, req)
	if f.sendErr != nil {
		return models.TradeResult{}, f.sendErr
	}
	if f.rejectAll {
		return models.TradeResult{RetCode: models.RetCodeInvalidFill, Comment: "rejected"}, nil
	}
	if f.rejectHard {
		return models.TradeResult{RetCode: 10006, Comment: "request rejected"}, nil
	}
	if f.acceptFill != "" && req.FillMode != f.acceptFill && req.Action == models.TradeActionPlace {
		return models.TradeResult{RetCode: models.RetCodeInvalidFill, Comment: "bad fill mode"}, nil
	}

	switch req.Action {
	case models.TradeActionPlace:
		f.nextTicket++
		f.orders[req.Symbol] = append(f.orders[req.Symbol], models.PendingOrder{
			Ticket:  f.nextTicket,
			Symbol:  req.Symbol,
			Type:    req.Type,
			Price:   req.Price,
			Volume:  req.Volume,
			Magic:   req.Magic,
			Comment: req.Comment,
		})
		return models.TradeResult{RetCode: models.RetCodeDone, Ticket: f.nextTicket}, nil

	case models.TradeActionRemove:
		for symbol, list := range f.orders {
			kept := list[:0]
			for _, o := range list {
				if o.Ticket != req.Ticket {
					kept = append(kept, o)
				}
			}
			f.orders[symbol] = kept
		}
		return models.TradeResult{RetCode: models.RetCodeDone, Ticket: req.Ticket}, nil

	case models.TradeActionModifySL:
		for symbol, list := range f.positions {
			for i := range list {
				if list[i].Ticket == req.Position {
					list[i].StopLoss = req.StopLoss
				}
			}
			f.positions[symbol] = list
		}
		return models.TradeResult{RetCode: models.RetCodeDone, Ticket: req.Position}, nil

	case models.TradeActionDeal:
		for symbol, list := range f.positions {
			kept := list[:0]
			for _, p := range list {
				if p.Ticket != req.Position {
					kept = append(kept, p)
				}
			}
			f.positions[symbol] = kept
		}
		return models.TradeResult{RetCode: models.RetCodeDone, Ticket: req.Position}, nil
	}

	return models.TradeResult{RetCode: models.RetCodeInvalidFill, Comment: "unknown action"}, nil
}

func (f *fakeGateway) setTick(symbol string, bid, ask float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticks[symbol] = models.Tick{Symbol: symbol, Bid: bid, Ask: ask}
}

func (f *fakeGateway) addOrder(symbol string, typ models.PendingType, price, volume float64, magic int64) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextTicket++
	f.orders[symbol] = append(f.orders[symbol], models.PendingOrder{
		Ticket: f.nextTicket,
		Symbol: symbol,
		Type:   typ,
		Price:  price,
		Volume: volume,
		Magic:  magic,
	})
	return f.nextTicket
}

func (f *fakeGateway) addPosition(symbol string, side models.PositionSide, price, volume, sl float64) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextTicket++
	f.positions[symbol] = append(f.positions[symbol], models.Position{
		Ticket:    f.nextTicket,
		Symbol:    symbol,
		Side:      side,
		PriceOpen: price,
		Volume:    volume,
		StopLoss:  sl,
	})
	return f.nextTicket
}

func (f *fakeGateway) ordersOf(symbol string, typ models.PendingType) []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var prices []float64
	for _, o := range f.orders[symbol] {
		if o.Type == typ {
			prices = append(prices, o.Price)
		}
	}
	return prices
}

func (f *fakeGateway) orderCount(symbol string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders[symbol])
}

func (f *fakeGateway) positionByTicket(symbol string, ticket int64) (models.Position, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.positions[symbol] {
		if p.Ticket == ticket {
			return p, true
		}
	}
	return models.Position{}, false
}
