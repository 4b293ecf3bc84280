package engine

import (
	"sync"
	"time"

	"gridbot/internal/config"
	"gridbot/internal/models"
)

type symbolState struct {
	symbol string
	cfg    config.SymbolConfig
	info   models.SymbolInfo

	anchors   map[float64]bool
	seen      map[int64]float64
	cache     *symbolCache
	lastPrice float64
	hasLast   bool
}

func newSymbolState(symbol string, cfg config.SymbolConfig) *symbolState {
	return &symbolState{
		symbol:  symbol,
		cfg:     cfg,
		anchors: map[float64]bool{},
		seen:    map[int64]float64{},
		cache:   newSymbolCache(),
	}
}

func (st *symbolState) align(price float64) float64 {
	return Align(price, st.cfg.BrickSize, st.cfg.Rounding)
}

// closedLevels — журнал недавно закрытых уровней, общий для всех воркеров.
type closedLevels struct {
	mu     sync.Mutex
	levels map[string]map[float64]time.Time
}

func newClosedLevels() *closedLevels {
	return &closedLevels{levels: map[string]map[float64]time.Time{}}
}

func (c *closedLevels) Block(symbol string, price float64, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	bySymbol, ok := c.levels[symbol]
	if !ok {
		bySymbol = map[float64]time.Time{}
		c.levels[symbol] = bySymbol
	}
	bySymbol[price] = at
}

// Blocked проверяет срок записи на месте: плановая чистка могла ещё не
// пройти, а просроченный уровень блокировать уже не должен.
func (c *closedLevels) Blocked(symbol string, price float64, maxAge time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	at, ok := c.levels[symbol][price]
	if !ok {
		return false
	}
	return time.Since(at) < maxAge
}

func (c *closedLevels) Purge(maxAge time.Duration, now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	purged := 0
	for symbol, bySymbol := range c.levels {
		for price, at := range bySymbol {
			if now.Sub(at) > maxAge {
				delete(bySymbol, price)
				purged++
			}
		}
		if len(bySymbol) == 0 {
			delete(c.levels, symbol)
		}
	}
	return purged
}
