package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"gridbot/internal/broker"
	"gridbot/internal/logger"
	"gridbot/internal/models"
)

var errOrderCeiling = errors.New("достигнут потолок отложенных ордеров")

// GatewayAdapter оборачивает все вызовы шлюза. Соединение односессионное,
// замок общий и держится только на время одного вызова.
type GatewayAdapter struct {
	gw  broker.Gateway
	log *logger.Logger

	mu sync.Mutex

	maxOrders int
	magic     int64
	deviation int
	runTag    string
}

func NewGatewayAdapter(gw broker.Gateway, log *logger.Logger, maxOrders int, magic int64) *GatewayAdapter {
	return &GatewayAdapter{
		gw:        gw,
		log:       log,
		maxOrders: maxOrders,
		magic:     magic,
		deviation: 10,
		runTag:    shortRunTag(),
	}
}

func shortRunTag() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	if len(raw) > 8 {
		return raw[:8]
	}
	return raw
}

func (a *GatewayAdapter) Connect(ctx context.Context, login int64, password, server string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gw.Connect(ctx, login, password, server)
}

func (a *GatewayAdapter) Tick(ctx context.Context, symbol string) (models.Tick, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gw.Tick(ctx, symbol)
}

func (a *GatewayAdapter) SymbolInfo(ctx context.Context, symbol string) (models.SymbolInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gw.SymbolInfo(ctx, symbol)
}

func (a *GatewayAdapter) PendingOrders(ctx context.Context, symbol string) ([]models.PendingOrder, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gw.PendingOrders(ctx, symbol)
}

func (a *GatewayAdapter) Positions(ctx context.Context, symbol string) ([]models.Position, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gw.Positions(ctx, symbol)
}

func (a *GatewayAdapter) AccountInfo(ctx context.Context) (models.AccountInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gw.AccountInfo(ctx)
}

func (a *GatewayAdapter) PlaceStop(ctx context.Context, typ models.PendingType, symbol string, price, volume, slDist, tpDist float64, digits int) (models.TradeResult, error) {
	pending, err := a.PendingOrders(ctx, symbol)
	if err != nil {
		return models.TradeResult{}, err
	}
	if a.maxOrders > 0 && len(pending) >= a.maxOrders {
		return models.TradeResult{}, fmt.Errorf("%s: %w", symbol, errOrderCeiling)
	}

	var sl, tp float64
	if slDist > 0 {
		if typ == models.PendingTypeBuyStop {
			sl = roundTo(price-slDist, digits)
		} else {
			sl = roundTo(price+slDist, digits)
		}
	}
	if tpDist > 0 {
		if typ == models.PendingTypeBuyStop {
			tp = roundTo(price+tpDist, digits)
		} else {
			tp = roundTo(price-tpDist, digits)
		}
	}

	req := models.TradeRequest{
		Action:    models.TradeActionPlace,
		Symbol:    symbol,
		Type:      typ,
		Price:     price,
		Volume:    volume,
		StopLoss:  sl,
		TakeProf:  tp,
		Deviation: a.deviation,
		Magic:     a.magic,
		Comment:   "gridbot-" + a.runTag,
	}
	return a.sendWithFillModes(ctx, req)
}

func (a *GatewayAdapter) Cancel(ctx context.Context, symbol string, ticket int64) (models.TradeResult, error) {
	req := models.TradeRequest{
		Action:  models.TradeActionRemove,
		Symbol:  symbol,
		Ticket:  ticket,
		Magic:   a.magic,
		Comment: "gridbot cancel",
	}
	return a.sendWithFillModes(ctx, req)
}

func (a *GatewayAdapter) ModifyStopLoss(ctx context.Context, pos models.Position, newSL float64) (models.TradeResult, error) {
	req := models.TradeRequest{
		Action:   models.TradeActionModifySL,
		Symbol:   pos.Symbol,
		Position: pos.Ticket,
		StopLoss: newSL,
		TakeProf: pos.TakeProf,
		Magic:    a.magic,
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gw.SendOrder(ctx, req)
}

func (a *GatewayAdapter) ClosePosition(ctx context.Context, pos models.Position, price float64) (models.TradeResult, error) {
	req := models.TradeRequest{
		Action:    models.TradeActionDeal,
		Symbol:    pos.Symbol,
		Side:      models.Opposite(pos.Side),
		Price:     price,
		Volume:    pos.Volume,
		Position:  pos.Ticket,
		Deviation: a.deviation,
		Magic:     pos.Magic,
		Comment:   "gridbot close",
	}
	return a.sendWithFillModes(ctx, req)
}

// sendWithFillModes перебирает режимы исполнения до первого успеха и
// возвращает результат последней попытки. Жёсткий отказ брокера обрывает
// перебор сразу.
func (a *GatewayAdapter) sendWithFillModes(ctx context.Context, req models.TradeRequest) (models.TradeResult, error) {
	var lastRes models.TradeResult
	var lastErr error
	for _, mode := range models.FillModes {
		req.FillMode = mode

		a.mu.Lock()
		res, err := a.gw.SendOrder(ctx, req)
		a.mu.Unlock()

		if err != nil {
			lastErr = err
			a.log.WithComponent("gateway").WithField("symbol", req.Symbol).WithError(err).Warn("Ошибка отправки ордера.")
			continue
		}
		if res.Done() {
			return res, nil
		}
		lastRes = res
		lastErr = nil
		if !retryableRetCode(res.RetCode) {
			a.log.WithComponent("gateway").WithFields(map[string]interface{}{
				"symbol":  req.Symbol,
				"retcode": res.RetCode,
				"comment": res.Comment,
			}).Warn("Брокер отклонил заявку, перебор режимов бессмыслен.")
			return lastRes, nil
		}
		a.log.WithComponent("gateway").WithFields(map[string]interface{}{
			"symbol":    req.Symbol,
			"fill_mode": mode,
			"retcode":   res.RetCode,
			"comment":   res.Comment,
		}).Warn("Режим исполнения отклонён, пробуем следующий.")
	}
	return lastRes, lastErr
}

func retryableRetCode(code int) bool {
	switch code {
	case models.RetCodeInvalidFill, models.RetCodeRequote, models.RetCodeTooMany:
		return true
	}
	return false
}
