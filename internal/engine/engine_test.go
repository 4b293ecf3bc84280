package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridbot/internal/logger"
	"gridbot/internal/models"
)

func TestStartStopLifecycle(t *testing.T) {
	fake := newFakeGateway()
	fake.setTick(testSymbol, 100.0, 100.0)
	fake.account = models.AccountInfo{Login: 1, Balance: 1000, Equity: 1000}
	eng := New(testConfig(testSymbolConfig()), fake, logger.Discard())

	require.NoError(t, eng.Start(context.Background()))
	assert.True(t, eng.IsRunning())

	// Повторный запуск работающего движка отвергается.
	require.Error(t, eng.Start(context.Background()))

	eng.Stop()
	assert.False(t, eng.IsRunning())

	// Повторная остановка безвредна.
	eng.Stop()
}

func TestConcurrentStartAdmitsOne(t *testing.T) {
	fake := newFakeGateway()
	fake.setTick(testSymbol, 100.0, 100.0)
	fake.account = models.AccountInfo{Login: 1, Balance: 1000, Equity: 1000}
	eng := New(testConfig(testSymbolConfig()), fake, logger.Discard())

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			errs <- eng.Start(context.Background())
		}()
	}

	started := 0
	for i := 0; i < 2; i++ {
		if err := <-errs; err == nil {
			started++
		}
	}
	assert.Equal(t, 1, started)

	eng.Stop()
}

func TestStartFailsOnConnectError(t *testing.T) {
	fake := newFakeGateway()
	fake.connectErr = errors.New("шлюз недоступен")
	eng := New(testConfig(testSymbolConfig()), fake, logger.Discard())

	err := eng.Start(context.Background())
	require.Error(t, err)
	assert.False(t, eng.IsRunning())
	assert.Contains(t, eng.Status().LastError, "шлюз недоступен")
}

func TestStartFailsWithoutActiveSymbols(t *testing.T) {
	sym := testSymbolConfig()
	sym.Active = false
	fake := newFakeGateway()
	eng := New(testConfig(sym), fake, logger.Discard())

	require.Error(t, eng.Start(context.Background()))
}

func TestGlobalStopLossHaltsEngine(t *testing.T) {
	fake := newFakeGateway()
	fake.setTick(testSymbol, 100.0, 100.0)
	// Просадка 60 при потолке 50: монитор обязан погасить движок.
	fake.account = models.AccountInfo{Login: 1, Balance: 1000, Equity: 940}
	eng := New(testConfig(testSymbolConfig()), fake, logger.Discard())

	require.NoError(t, eng.Start(context.Background()))

	assert.Eventually(t, func() bool { return !eng.IsRunning() }, 3*time.Second, 10*time.Millisecond)
	assert.Contains(t, eng.Status().LastError, "стоп-лосс")
}

func TestPanicCloseAll(t *testing.T) {
	eng, fake, _ := newTestEngine(testSymbolConfig())
	fake.setTick(testSymbol, 100.0, 100.0)
	fake.addPosition(testSymbol, models.PositionSideBuy, 99.0, 0.1, 0)
	fake.addPosition(testSymbol, models.PositionSideSell, 101.0, 0.1, 0)
	fake.addOrder(testSymbol, models.PendingTypeBuyStop, 102.0, 0.1, 0)

	require.NoError(t, eng.PanicCloseAll(context.Background()))

	assert.Empty(t, fake.positions[testSymbol])
	assert.Equal(t, 0, fake.orderCount(testSymbol))
}

func TestForceCloseSymbolLeavesOthers(t *testing.T) {
	eng, fake, _ := newTestEngine(testSymbolConfig())
	fake.setTick(testSymbol, 100.0, 100.0)
	fake.setTick("GBPUSD", 1.25, 1.25)
	fake.addPosition(testSymbol, models.PositionSideBuy, 99.0, 0.1, 0)
	fake.addPosition("GBPUSD", models.PositionSideBuy, 1.24, 0.1, 0)
	fake.addOrder(testSymbol, models.PendingTypeBuyStop, 102.0, 0.1, 0)
	fake.addOrder("GBPUSD", models.PendingTypeBuyStop, 1.26, 0.1, 0)

	require.NoError(t, eng.ForceCloseSymbol(context.Background(), testSymbol))

	assert.Empty(t, fake.positions[testSymbol])
	assert.Equal(t, 0, fake.orderCount(testSymbol))
	assert.Len(t, fake.positions["GBPUSD"], 1)
	assert.Equal(t, 1, fake.orderCount("GBPUSD"))
}

func TestCancelGridOrdersFiltersByMagic(t *testing.T) {
	eng, fake, _ := newTestEngine(testSymbolConfig())
	fake.addOrder(testSymbol, models.PendingTypeBuyStop, 101.0, 0.1, 123456)
	foreign := fake.addOrder(testSymbol, models.PendingTypeBuyStop, 102.0, 0.1, 777)

	canceled, err := eng.CancelGridOrders(context.Background(), testSymbol)
	require.NoError(t, err)

	assert.Equal(t, 1, canceled)
	_, alive := findOrder(fake, testSymbol, foreign)
	assert.True(t, alive)
}

func TestTrimExcessOrders(t *testing.T) {
	eng, fake, _ := newTestEngine(testSymbolConfig())
	fake.addOrder(testSymbol, models.PendingTypeBuyStop, 101.0, 0.1, 123456)
	fake.addOrder(testSymbol, models.PendingTypeBuyStop, 102.0, 0.1, 123456)
	fake.addOrder(testSymbol, models.PendingTypeBuyStop, 103.0, 0.1, 123456)
	fake.addOrder(testSymbol, models.PendingTypeBuyStop, 104.0, 0.1, 123456)

	require.NoError(t, eng.trimExcessOrders(context.Background(), testSymbol, 2, 2))

	// Бюджет стороны 2: снимаются самые дальние покупки.
	assert.ElementsMatch(t, []float64{101.0, 102.0}, fake.ordersOf(testSymbol, models.PendingTypeBuyStop))
}

func TestTrimExcessOrdersSkipsForeignMagic(t *testing.T) {
	eng, fake, _ := newTestEngine(testSymbolConfig())
	fake.addOrder(testSymbol, models.PendingTypeBuyStop, 101.0, 0.1, 777)
	fake.addOrder(testSymbol, models.PendingTypeBuyStop, 102.0, 0.1, 777)
	fake.addOrder(testSymbol, models.PendingTypeBuyStop, 103.0, 0.1, 777)

	require.NoError(t, eng.trimExcessOrders(context.Background(), testSymbol, 2, 2))

	assert.Equal(t, 3, fake.orderCount(testSymbol))
}
