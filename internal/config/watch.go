package config

import (
	"context"
	"os"
	"time"
)

// Watcher следит за файлом конфигурации по времени модификации и отдаёт
// перечитанные снимки в канал. Смена реквизитов счёта в файле не применяется
// на лету: старые реквизиты сохраняются, для их смены нужен полный рестарт.
type Watcher struct {
	path      string
	interval  time.Duration
	lastMTime time.Time
	current   *Config

	changes chan *Config
	warn    func(msg string)
}

func NewWatcher(path string, interval time.Duration, current *Config, warn func(msg string)) *Watcher {
	w := &Watcher{
		path:     path,
		interval: interval,
		current:  current,
		changes:  make(chan *Config, 1),
		warn:     warn,
	}
	if info, err := os.Stat(path); err == nil {
		w.lastMTime = info.ModTime()
	}
	return w
}

func (w *Watcher) Changes() <-chan *Config {
	return w.changes
}

func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

func (w *Watcher) poll() {
	info, err := os.Stat(w.path)
	if err != nil {
		w.warn("Файл конфигурации недоступен: " + err.Error())
		return
	}
	if !info.ModTime().After(w.lastMTime) {
		return
	}
	w.lastMTime = info.ModTime()

	cfg, err := LoadFile(w.path)
	if err != nil {
		w.warn("Перечитать конфигурацию не удалось: " + err.Error())
		return
	}

	if cfg.Account != w.current.Account {
		w.warn("Реквизиты счёта в файле изменились, для их применения нужен рестарт процесса.")
		cfg.Account = w.current.Account
	}
	w.current = cfg

	select {
	case w.changes <- cfg:
	default:
	}
}
