package engine

import (
	"github.com/sirupsen/logrus"
)

func (e *Engine) symbolEntry(symbol string) *logrus.Entry {
	entry := e.log.WithComponent("engine")
	if symbol != "" {
		entry = entry.WithField("symbol", symbol)
	}
	return entry
}
