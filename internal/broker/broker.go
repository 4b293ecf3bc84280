package broker

import (
	"context"

	"gridbot/internal/models"
)

// Gateway описывает возможности торгового шлюза, которые нужны движку.
// Соединение шлюза односессионное, вызовы должны сериализоваться выше.
type Gateway interface {
	Connect(ctx context.Context, login int64, password, server string) error
	Tick(ctx context.Context, symbol string) (models.Tick, error)
	SymbolInfo(ctx context.Context, symbol string) (models.SymbolInfo, error)
	PendingOrders(ctx context.Context, symbol string) ([]models.PendingOrder, error)
	Positions(ctx context.Context, symbol string) ([]models.Position, error)
	SendOrder(ctx context.Context, req models.TradeRequest) (models.TradeResult, error)
	AccountInfo(ctx context.Context) (models.AccountInfo, error)
	Close() error
}
