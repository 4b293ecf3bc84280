package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gridbot/internal/broker"
	"gridbot/internal/config"
	"gridbot/internal/logger"
)

// Engine — координатор: по воркеру на активный инструмент, отдельные циклы
// трейлинга и чистки, общий монитор просадки. Собственного реестра ордеров
// нет: желаемое состояние каждый цикл выводится заново из ответов брокера.
type Engine struct {
	cfg    *config.Config
	client broker.Gateway
	gw     *GatewayAdapter
	log    *logger.Logger
	closed *closedLevels

	mu        sync.Mutex
	running   bool
	lastError string
	cancel    context.CancelFunc
	done      chan struct{}
}

type Status struct {
	Running   bool   `json:"running"`
	LastError string `json:"last_error"`
}

type tickStreamer interface {
	StreamTicks(ctx context.Context, symbols []string) error
}

func New(cfg *config.Config, client broker.Gateway, log *logger.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		client: client,
		gw:     NewGatewayAdapter(client, log, cfg.Engine.MaxOrdersPerSymbol, cfg.Engine.Magic),
		log:    log,
		closed: newClosedLevels(),
	}
}

// Start подключается к шлюзу и поднимает воркеры. Флаг running занимается
// сразу, чтобы параллельный Start не прошёл проверку во время подключения.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("Движок уже запущен.")
	}
	e.running = true
	e.mu.Unlock()

	if err := e.gw.Connect(ctx, e.cfg.Account.Login, e.cfg.Account.Password, e.cfg.Account.Server); err != nil {
		e.setLastError(err)
		e.abortStart()
		return fmt.Errorf("Подключение к шлюзу не удалось: %w", err)
	}
	e.log.WithComponent("engine").Info("Шлюз подключен.")

	symbols := e.cfg.ActiveSymbols()
	if len(symbols) == 0 {
		e.abortStart()
		return fmt.Errorf("Нет активных инструментов в конфигурации.")
	}

	runCtx, cancel := context.WithCancel(ctx)

	if streamer, ok := e.client.(tickStreamer); ok {
		if err := streamer.StreamTicks(runCtx, symbols); err != nil {
			e.log.WithComponent("engine").WithError(err).Warn("Поток котировок не поднялся, работаем по запросам.")
		}
	}

	var wg sync.WaitGroup
	for _, symbol := range symbols {
		st := newSymbolState(symbol, e.cfg.Symbols[symbol])
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.runSymbol(runCtx, st)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.runTrailing(runCtx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.runCleaner(runCtx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.runMonitor(runCtx, cancel)
	}()

	done := make(chan struct{})
	e.mu.Lock()
	e.cancel = cancel
	e.done = done
	e.mu.Unlock()

	go func() {
		wg.Wait()
		close(done)
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		e.log.WithComponent("engine").Info("Все воркеры завершились.")
	}()

	e.log.WithComponent("engine").WithFields(map[string]interface{}{
		"symbols": symbols,
	}).Info("Движок запущен.")
	return nil
}

func (e *Engine) abortStart() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

// Stop кооперативно гасит воркеры и ждёт их завершения. Начатый вызов шлюза
// не прерывается.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running || e.cancel == nil {
		e.mu.Unlock()
		return
	}
	cancel := e.cancel
	done := e.done
	e.mu.Unlock()

	cancel()
	<-done
	e.log.WithComponent("engine").Info("Движок остановлен.")
}

func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{Running: e.running, LastError: e.lastError}
}

func (e *Engine) setLastError(err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	e.lastError = err.Error()
	e.mu.Unlock()
}

// runMonitor — общий такт движка: чистка журнала закрытых уровней и
// контроль просадки. Пробитый потолок гасит движок целиком.
func (e *Engine) runMonitor(ctx context.Context, stop context.CancelFunc) {
	entry := e.log.WithComponent("monitor")

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(e.cfg.Engine.LoopDelay):
		}

		if purged := e.closed.Purge(e.cfg.Engine.ClosedLevelBlock, time.Now()); purged > 0 {
			entry.WithField("count", purged).Debug("Карантин уровней истёк.")
		}

		ceiling := e.cfg.Engine.GlobalStopLoss
		if ceiling <= 0 {
			continue
		}

		info, err := e.gw.AccountInfo(ctx)
		if err != nil {
			if ctx.Err() == nil {
				entry.WithError(err).Warn("Не удалось получить состояние счёта.")
			}
			continue
		}

		drawdown := info.Balance - info.Equity
		if drawdown >= ceiling {
			entry.WithFields(map[string]interface{}{
				"balance":  info.Balance,
				"equity":   info.Equity,
				"drawdown": drawdown,
				"ceiling":  ceiling,
			}).Error("Пробит глобальный стоп-лосс, останавливаю движок.")
			e.setLastError(fmt.Errorf("Пробит глобальный стоп-лосс: просадка %.2f при потолке %.2f", drawdown, ceiling))
			stop()
			return
		}
	}
}
