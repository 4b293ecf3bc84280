package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestComponentEntryChainsFields(t *testing.T) {
	entry := Discard().WithComponent("engine").
		WithField("symbol", "EURUSD").
		WithField("ticket", int64(42))

	assert.Equal(t, "engine", entry.Data["component"])
	assert.Equal(t, "EURUSD", entry.Data["symbol"])
	assert.Equal(t, int64(42), entry.Data["ticket"])
}

func TestNewAppliesLevel(t *testing.T) {
	log := New(Config{Level: "debug", Format: "json", Output: "stdout"})
	assert.Equal(t, logrus.DebugLevel, log.log.GetLevel())
}
