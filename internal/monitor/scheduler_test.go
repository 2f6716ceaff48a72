package monitor

import (
	"context"
	"testing"
	"time"

	"tradebot/internal/config"
	"tradebot/internal/exchange"
	"tradebot/internal/models"
)

type stubLister struct {
	positions []*exchange.PositionState
	orders    []*exchange.OrderState
}

func (l *stubLister) ListPositions(_ context.Context) ([]*exchange.PositionState, error) {
	return l.positions, nil
}

func (l *stubLister) ListOpenOrders(_ context.Context) ([]*exchange.OrderState, error) {
	return l.orders, nil
}

func TestStartRequiresPollMode(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = config.ModeEvent
	m, _, _ := newTestMonitor(t, cfg)

	if err := m.Start(); err != ErrNotPollMode {
		t.Errorf("Start in event mode = %v, want ErrNotPollMode", err)
	}
	if err := m.Stop(); err != ErrNotPollMode {
		t.Errorf("Stop in event mode = %v, want ErrNotPollMode", err)
	}
}

func TestPollLoopSynthesizesEvents(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = config.ModePoll
	cfg.PollInterval = 10 * time.Millisecond
	m, _, _ := newTestMonitor(t, cfg)

	m.SetLister(&stubLister{
		positions: []*exchange.PositionState{{
			Symbol: "BTCUSDT", Size: 1, Side: models.SideLong,
			EntryPrice: 100, StopLoss: 90, MarkPrice: 101,
		}},
		orders: []*exchange.OrderState{{
			OrderID: "o-1", Symbol: "BTCUSDT", Status: models.OrderStatusNew,
		}},
	})

	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Повторный старт - no-op
	if err := m.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	// Состояние читаем только после join, карты не синхронизированы
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}

	if _, ok := m.GetPositionState("inst-1", "BTCUSDT"); !ok {
		t.Error("poll loop did not seed position from exchange snapshot")
	}
	if len(m.GetTrackedOrders()) != 1 {
		t.Errorf("tracked orders = %d, want 1", len(m.GetTrackedOrders()))
	}
}

func TestPollReconcileRemovesResolvedOrder(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = config.ModePoll
	m, exec, _ := newTestMonitor(t, cfg)
	ctx := context.Background()

	lister := &stubLister{orders: []*exchange.OrderState{{
		OrderID: "o-1", Symbol: "BTCUSDT", Status: models.OrderStatusNew,
	}}}
	m.SetLister(lister)

	m.pollOnce(ctx)
	if len(m.GetTrackedOrders()) != 1 {
		t.Fatalf("tracked orders = %d, want 1 after first poll", len(m.GetTrackedOrders()))
	}

	// Ордер исполнился на бирже: из снимка открытых он просто пропадает,
	// терминального события poll-режим не даёт. Возраст за порогом отмены -
	// без сверки aging-проход отменял бы исполненный ордер каждый тик.
	lister.orders = nil
	m.orders["o-1"].CreatedAt = time.Now().UTC().Add(-10 * time.Minute)

	for i := 0; i < 5; i++ {
		m.pollOnce(ctx)
	}

	if n := len(exec.callsTo("CancelOrder")); n != 0 {
		t.Errorf("CancelOrder calls = %d, want 0 (order already resolved on exchange)", n)
	}
	if n := len(m.GetTrackedOrders()); n != 0 {
		t.Errorf("tracked orders = %d, want 0 after reconcile", n)
	}
}

func TestPollReconcileKeepsSpreadLegs(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = config.ModePoll
	m, _, _ := newTestMonitor(t, cfg)
	ctx := context.Background()
	m.SetLister(&stubLister{})

	if err := m.RegisterSpreadOrders("inst-1", "run-1", "60",
		SpreadLeg{OrderID: "x-1", Symbol: "BTCUSDT", Side: models.OrderSideBuy},
		SpreadLeg{OrderID: "y-1", Symbol: "ETHUSDT", Side: models.OrderSideSell},
	); err != nil {
		t.Fatal(err)
	}
	m.OnExecutionUpdate(ctx, "inst-1", &exchange.ExecutionRecord{
		OrderID: "x-1", Symbol: "BTCUSDT", ExecPrice: 50000, ExecQty: 0.5,
	})

	// Заполненная нога пропала из снимка открытых, но пара не разрешена:
	// её состояние нужно recovery, сверка не должна её трогать
	m.pollOnce(ctx)

	if n := len(m.GetTrackedOrders()); n != 2 {
		t.Errorf("tracked orders = %d, want 2 (unresolved pair survives reconcile)", n)
	}
}

func TestDispatcherAppliesEvents(t *testing.T) {
	m, _, _ := newTestMonitor(t, testConfig())
	d := NewDispatcher(m, 64, 10*time.Millisecond)

	d.Start()
	d.Start() // идемпотентен

	if !d.EnqueuePosition("inst-1", &exchange.PositionState{
		Symbol: "BTCUSDT", Size: 1, Side: models.SideLong,
		EntryPrice: 100, StopLoss: 90, MarkPrice: 101,
	}) {
		t.Fatal("enqueue rejected with empty buffer")
	}
	if !d.EnqueueOrder("inst-1", &exchange.OrderState{
		OrderID: "o-1", Symbol: "BTCUSDT", Status: models.OrderStatusNew,
	}) {
		t.Fatal("enqueue rejected with empty buffer")
	}

	time.Sleep(50 * time.Millisecond)
	if err := d.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := d.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}

	if _, ok := m.GetPositionState("inst-1", "BTCUSDT"); !ok {
		t.Error("dispatcher did not apply position event")
	}
	if len(m.GetTrackedOrders()) != 1 {
		t.Errorf("tracked orders = %d, want 1", len(m.GetTrackedOrders()))
	}
}

func TestDispatcherDropsOnFullBuffer(t *testing.T) {
	m, _, _ := newTestMonitor(t, testConfig())
	// Диспетчер не запущен: буфер на одно событие заполняется первым же
	d := NewDispatcher(m, 1, time.Second)

	if !d.EnqueuePosition("inst-1", &exchange.PositionState{Symbol: "BTCUSDT", Size: 1, Side: models.SideLong}) {
		t.Fatal("first enqueue must fit the buffer")
	}
	if d.EnqueuePosition("inst-1", &exchange.PositionState{Symbol: "ETHUSDT", Size: 1, Side: models.SideLong}) {
		t.Error("second enqueue must be dropped, not blocked")
	}
}
