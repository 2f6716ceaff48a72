package monitor

import (
	"context"
	"fmt"
	"testing"

	"tradebot/internal/models"
	"tradebot/internal/strategy"
)

// scriptedStrategy возвращает заранее заданный сигнал (или ошибку/панику)
type scriptedStrategy struct {
	sig   strategy.ExitSignal
	err   error
	panic bool

	calls int
}

func (s *scriptedStrategy) ShouldExit(_ *models.Trade, _, _ *models.Candle) (strategy.ExitSignal, error) {
	s.calls++
	if s.panic {
		panic("index out of range in level scan")
	}
	return s.sig, s.err
}

func holdCandle(close float64) *models.Candle {
	return &models.Candle{Symbol: "BTCUSDT", Timeframe: "60", Close: close}
}

func TestStrategySyncOnHold(t *testing.T) {
	m, exec, sink := newTestMonitor(t, testConfig())
	ctx := context.Background()

	tr := longTrade()
	if err := m.RegisterPosition(tr); err != nil {
		t.Fatal(err)
	}
	st, _ := m.GetPositionState("inst-1", "BTCUSDT")
	st.CurrentSL = 100

	// "Держать" с пересчитанным стопом 105 при текущем 100
	m.AttachStrategy("inst-1", "BTCUSDT", &scriptedStrategy{sig: strategy.ExitSignal{
		Details: strategy.ExitDetails{StopLevel: 105},
	}})

	if closed := m.CheckStrategyExit(ctx, tr, holdCandle(110), nil); closed {
		t.Fatal("hold signal must not close the position")
	}

	calls := exec.callsTo("SetTradingStop")
	if len(calls) != 1 || calls[0].SL != 105 {
		t.Fatalf("SetTradingStop calls = %+v, want one with sl=105", calls)
	}
	if st.CurrentSL != 105 {
		t.Errorf("CurrentSL = %.2f, want 105", st.CurrentSL)
	}
	if !sink.hasAction(models.ActionStrategyStopSynced) {
		t.Error("strategy_stop_synced audit record missing")
	}
}

func TestStrategySyncWithinToleranceIsNoop(t *testing.T) {
	m, exec, _ := newTestMonitor(t, testConfig())
	ctx := context.Background()

	tr := longTrade()
	if err := m.RegisterPosition(tr); err != nil {
		t.Fatal(err)
	}
	st, _ := m.GetPositionState("inst-1", "BTCUSDT")
	st.CurrentSL = 100

	// Расхождение меньше допуска - биржу не дёргаем
	m.AttachStrategy("inst-1", "BTCUSDT", &scriptedStrategy{sig: strategy.ExitSignal{
		Details: strategy.ExitDetails{StopLevel: 100.00005},
	}})

	m.CheckStrategyExit(ctx, tr, holdCandle(110), nil)
	if n := len(exec.callsTo("SetTradingStop")); n != 0 {
		t.Errorf("SetTradingStop calls = %d, want 0 within tolerance", n)
	}
}

func TestStrategySyncTakeProfit(t *testing.T) {
	m, exec, sink := newTestMonitor(t, testConfig())
	ctx := context.Background()

	tr := longTrade()
	if err := m.RegisterPosition(tr); err != nil {
		t.Fatal(err)
	}

	m.AttachStrategy("inst-1", "BTCUSDT", &scriptedStrategy{sig: strategy.ExitSignal{
		Details: strategy.ExitDetails{TPLevel: 250},
	}})

	m.CheckStrategyExit(ctx, tr, holdCandle(110), nil)

	calls := exec.callsTo("SetTradingStop")
	if len(calls) != 1 || calls[0].TP != 250 {
		t.Fatalf("SetTradingStop calls = %+v, want one with tp=250", calls)
	}
	st, _ := m.GetPositionState("inst-1", "BTCUSDT")
	if st.TakeProfit != 250 {
		t.Errorf("TakeProfit = %.2f, want 250", st.TakeProfit)
	}
	if !sink.hasAction(models.ActionStrategyTPSynced) {
		t.Error("strategy_tp_synced audit record missing")
	}
}

func TestStrategySyncFailureKeepsLevels(t *testing.T) {
	m, exec, sink := newTestMonitor(t, testConfig())
	ctx := context.Background()

	tr := longTrade()
	if err := m.RegisterPosition(tr); err != nil {
		t.Fatal(err)
	}
	st, _ := m.GetPositionState("inst-1", "BTCUSDT")
	st.CurrentSL = 100

	exec.failSetStop = fmt.Errorf("stop would trigger immediately")
	m.AttachStrategy("inst-1", "BTCUSDT", &scriptedStrategy{sig: strategy.ExitSignal{
		Details: strategy.ExitDetails{StopLevel: 105},
	}})

	m.CheckStrategyExit(ctx, tr, holdCandle(110), nil)

	if st.CurrentSL != 100 {
		t.Errorf("CurrentSL = %.2f, want 100 unchanged on failure", st.CurrentSL)
	}
	if !sink.hasAction(models.ActionSyncFailed) {
		t.Error("sync_failed audit record missing")
	}
}

func TestStrategyExitClosesPosition(t *testing.T) {
	m, exec, sink := newTestMonitor(t, testConfig())
	ctx := context.Background()

	var closed []string
	m.SetCallbacks(Callbacks{
		OnPositionClosed: func(_, symbol string) { closed = append(closed, symbol) },
	})

	tr := longTrade()
	if err := m.RegisterPosition(tr); err != nil {
		t.Fatal(err)
	}
	m.AttachStrategy("inst-1", "BTCUSDT", &scriptedStrategy{sig: strategy.ExitSignal{
		ShouldExit: true,
		Details:    strategy.ExitDetails{Reason: "level broken"},
	}})

	if ok := m.CheckStrategyExit(ctx, tr, holdCandle(95), nil); !ok {
		t.Fatal("exit signal must close the position")
	}

	if n := len(exec.callsTo("ClosePosition")); n != 1 {
		t.Fatalf("ClosePosition calls = %d, want 1", n)
	}
	if _, ok := m.GetPositionState("inst-1", "BTCUSDT"); ok {
		t.Error("position must be removed after successful close")
	}
	if len(closed) != 1 || closed[0] != "BTCUSDT" {
		t.Errorf("close callbacks = %v, want [BTCUSDT]", closed)
	}
	if !sink.hasAction(models.ActionStrategyExit) || !sink.hasAction(models.ActionPositionClosed) {
		t.Error("exit audit records missing")
	}
}

func TestStrategyExitCloseFailureKeepsTracking(t *testing.T) {
	m, exec, _ := newTestMonitor(t, testConfig())
	ctx := context.Background()

	tr := longTrade()
	if err := m.RegisterPosition(tr); err != nil {
		t.Fatal(err)
	}
	m.AttachStrategy("inst-1", "BTCUSDT", &scriptedStrategy{sig: strategy.ExitSignal{
		ShouldExit: true,
		Details:    strategy.ExitDetails{Reason: "level broken"},
	}})

	exec.failClose = fmt.Errorf("exchange maintenance")
	if ok := m.CheckStrategyExit(ctx, tr, holdCandle(95), nil); ok {
		t.Fatal("failed close must not report position as closed")
	}
	if _, tracked := m.GetPositionState("inst-1", "BTCUSDT"); !tracked {
		t.Fatal("position must stay tracked for retry")
	}

	// Повторный сигнал на следующей свече добивает закрытие
	exec.failClose = nil
	if ok := m.CheckStrategyExit(ctx, tr, holdCandle(94), nil); !ok {
		t.Error("retry on next candle did not close the position")
	}
}

func TestStrategyExitSpreadClosesBothLegs(t *testing.T) {
	m, exec, _ := newTestMonitor(t, testConfig())
	ctx := context.Background()

	tr := longTrade()
	tr.IsSpread = true
	tr.PairSymbol = "ETHUSDT"
	tr.PairSide = models.SideShort
	if err := m.RegisterPosition(tr); err != nil {
		t.Fatal(err)
	}
	m.AttachStrategy("inst-1", "BTCUSDT", &scriptedStrategy{sig: strategy.ExitSignal{
		ShouldExit: true,
		Details:    strategy.ExitDetails{Reason: "spread converged"},
	}})

	if ok := m.CheckStrategyExit(ctx, tr, holdCandle(95), nil); !ok {
		t.Fatal("spread exit must close both legs")
	}

	closes := exec.callsTo("ClosePosition")
	if len(closes) != 2 {
		t.Fatalf("ClosePosition calls = %d, want 2", len(closes))
	}
	symbols := map[string]bool{closes[0].Symbol: true, closes[1].Symbol: true}
	if !symbols["BTCUSDT"] || !symbols["ETHUSDT"] {
		t.Errorf("closed symbols = %v, want both legs", symbols)
	}
}

func TestStrategyExitSpreadPartialCloseFailure(t *testing.T) {
	m, exec, _ := newTestMonitor(t, testConfig())
	ctx := context.Background()

	tr := longTrade()
	tr.IsSpread = true
	tr.PairSymbol = "ETHUSDT"
	tr.PairSide = models.SideShort
	if err := m.RegisterPosition(tr); err != nil {
		t.Fatal(err)
	}
	m.AttachStrategy("inst-1", "BTCUSDT", &scriptedStrategy{sig: strategy.ExitSignal{
		ShouldExit: true,
		Details:    strategy.ExitDetails{Reason: "spread converged"},
	}})

	// Вторая нога не закрылась - запись остаётся для повтора
	exec.failCloseFor = map[string]error{"ETHUSDT": fmt.Errorf("position not found")}
	if ok := m.CheckStrategyExit(ctx, tr, holdCandle(95), nil); ok {
		t.Fatal("partial leg failure must not report position as closed")
	}
	if _, tracked := m.GetPositionState("inst-1", "BTCUSDT"); !tracked {
		t.Error("position must stay tracked when one leg failed to close")
	}
}

func TestStrategyErrorTreatedAsHold(t *testing.T) {
	m, exec, _ := newTestMonitor(t, testConfig())
	ctx := context.Background()

	tr := longTrade()
	if err := m.RegisterPosition(tr); err != nil {
		t.Fatal(err)
	}
	m.AttachStrategy("inst-1", "BTCUSDT", &scriptedStrategy{err: fmt.Errorf("not enough candles")})

	if ok := m.CheckStrategyExit(ctx, tr, holdCandle(95), nil); ok {
		t.Fatal("strategy error must be treated as hold")
	}
	if len(exec.calls) != 0 {
		t.Errorf("exchange calls on strategy error: %+v", exec.calls)
	}
	if _, tracked := m.GetPositionState("inst-1", "BTCUSDT"); !tracked {
		t.Error("position must stay tracked on strategy error")
	}
}

func TestStrategyPanicTreatedAsHold(t *testing.T) {
	m, exec, _ := newTestMonitor(t, testConfig())
	ctx := context.Background()

	tr := longTrade()
	if err := m.RegisterPosition(tr); err != nil {
		t.Fatal(err)
	}
	m.AttachStrategy("inst-1", "BTCUSDT", &scriptedStrategy{panic: true})

	if ok := m.CheckStrategyExit(ctx, tr, holdCandle(95), nil); ok {
		t.Fatal("strategy panic must be treated as hold")
	}
	if len(exec.calls) != 0 {
		t.Errorf("exchange calls on strategy panic: %+v", exec.calls)
	}
}

func TestCheckStrategyExitWithoutBinding(t *testing.T) {
	m, exec, _ := newTestMonitor(t, testConfig())
	ctx := context.Background()

	tr := longTrade()
	if err := m.RegisterPosition(tr); err != nil {
		t.Fatal(err)
	}

	// Без привязанной стратегии мост молчит
	if ok := m.CheckStrategyExit(ctx, tr, holdCandle(95), nil); ok {
		t.Fatal("no binding must mean no exit")
	}
	if len(exec.calls) != 0 {
		t.Errorf("unexpected exchange calls: %+v", exec.calls)
	}
}
