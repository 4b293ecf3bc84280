package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gridbot/internal/broker/mt5"
	"gridbot/internal/config"
	"gridbot/internal/engine"
	"gridbot/internal/logger"
)

func main() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	log.Info("Бот запущен.")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := mt5.New(cfg.Gateway.BaseURL, cfg.Gateway.WSURL, cfg.Gateway.Timeout, log)
	eng := engine.New(cfg, client, log)
	if err := eng.Start(ctx); err != nil {
		log.WithError(err).Fatal("Движок не запустился.")
	}

	watcher := config.NewWatcher(config.FileUsed(), 2*time.Second, cfg, func(msg string) {
		log.Warn(msg)
	})
	go watcher.Run(ctx)

	for {
		select {
		case <-sigCh:
			eng.Stop()
			log.Info("Бот остановлен.")
			return
		case newCfg := <-watcher.Changes():
			log.Info("Конфигурация изменилась, перезапускаю воркеры.")
			eng.Stop()
			client.Close()
			time.Sleep(2 * time.Second)
			// Клиент пересобирается: адреса шлюза тоже могли смениться.
			client = mt5.New(newCfg.Gateway.BaseURL, newCfg.Gateway.WSURL, newCfg.Gateway.Timeout, log)
			eng = engine.New(newCfg, client, log)
			if err := eng.Start(ctx); err != nil {
				log.WithError(err).Error("Перезапуск после смены конфигурации не удался.")
			}
		}
	}
}
