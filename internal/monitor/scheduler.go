package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"tradebot/internal/config"
	"tradebot/internal/exchange"
	"tradebot/pkg/utils"
)

// Два режима работы, выбираются при старте процесса:
//
//   - event: внешний диспетчер фида зовёт OnPositionUpdate/OnOrderUpdate/
//     OnExecutionUpdate синхронно, очередей внутри нет;
//   - poll: фоновый цикл сам опрашивает биржу и каждый тик прогоняет
//     периодические проверки.
//
// Третьего, "гибридного" режима нет: выбранный режим определяет, кто
// владеет картами состояния.

var (
	// ErrNotPollMode - Start/Stop имеют смысл только в poll-режиме
	ErrNotPollMode = errors.New("monitor: start/stop are only available in poll mode")

	// ErrStopTimeout - poll-цикл не вышел за отведённое время
	ErrStopTimeout = errors.New("monitor: poll loop did not stop within the join timeout")
)

// Start запускает фоновый poll-цикл. Повторный вызов - no-op.
func (m *Monitor) Start() error {
	if m.cfg.Mode != config.ModePoll {
		return ErrNotPollMode
	}

	m.schedMu.Lock()
	defer m.schedMu.Unlock()

	if m.running {
		return nil
	}

	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.running = true

	go m.pollLoop(m.stopCh, m.doneCh)

	m.log.Info("poll loop started",
		utils.String("interval", m.cfg.PollInterval.String()),
	)
	return nil
}

// Stop останавливает poll-цикл и ЖДЁТ его фактического выхода
// (ограниченный join). Повторный вызов - no-op.
func (m *Monitor) Stop() error {
	if m.cfg.Mode != config.ModePoll {
		return ErrNotPollMode
	}

	m.schedMu.Lock()
	defer m.schedMu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false
	close(m.stopCh)

	select {
	case <-m.doneCh:
		m.log.Info("poll loop stopped")
		return nil
	case <-time.After(m.cfg.StopJoinTimeout):
		m.log.Error("poll loop join timed out")
		return ErrStopTimeout
	}
}

// pollLoop - единственный владелец карт состояния в poll-режиме
func (m *Monitor) pollLoop(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			m.pollOnce(context.Background())
		case req := <-m.inspectCh:
			req.fn(m)
			close(req.done)
		}
	}
}

// Inspect выполняет fn в горутине-владельце карт состояния (poll-цикл).
// Единственный безопасный способ читать состояние из других горутин.
func (m *Monitor) Inspect(ctx context.Context, fn func(*Monitor)) error {
	req := inspectRequest{fn: fn, done: make(chan struct{})}
	select {
	case m.inspectCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pollOnce синтезирует события из снимка биржи и прогоняет проверки
func (m *Monitor) pollOnce(ctx context.Context) {
	if m.lister != nil {
		positions, err := m.lister.ListPositions(ctx)
		if err != nil {
			m.log.Error("position poll failed", utils.Err(err))
		} else {
			for _, ps := range positions {
				m.OnPositionUpdate(ctx, m.cfg.InstanceID, ps)
			}
		}

		orders, err := m.lister.ListOpenOrders(ctx)
		if err != nil {
			m.log.Error("order poll failed", utils.Err(err))
		} else {
			open := make(map[string]bool, len(orders))
			for _, os := range orders {
				open[os.OrderID] = true
				m.OnOrderUpdate(ctx, m.cfg.InstanceID, os)
			}
			m.reconcileTrackedOrders(open)
		}
	}

	m.RunCycle(ctx)
}

// reconcileTrackedOrders сверяет отслеживаемые ордера со снимком открытых
//
// ListOpenOrders не отдаёт терминальные статусы: исполненный или отменённый
// извне ордер просто пропадает из снимка. Без сверки такая запись висела бы
// вечно, а aging-проход пытался бы отменять уже исполненный ордер каждый
// тик. Ноги spread-пар не трогаем - до разрешения пары их состояние нужно
// recovery (разрешённые пары вычищает RunCycle).
func (m *Monitor) reconcileTrackedOrders(open map[string]bool) {
	for id, ord := range m.orders {
		if open[id] || ord.Spread != nil {
			continue
		}
		delete(m.orders, id)
		m.log.Info("order left open snapshot, tracking removed",
			utils.OrderID(id),
			utils.Symbol(ord.Symbol),
		)
	}
	TrackedOrders.Set(float64(len(m.orders)))
}

// ============================================================
// Dispatcher - актор-вариант для многопоточных источников событий
// ============================================================

// Карты монитора не синхронизированы, контракт - один логический
// писатель. Когда события приходят из нескольких горутин (несколько
// WS-соединений), Dispatcher сериализует их в одну горутину-владельца
// через буферизованный канал. При переполнении буфера событие
// отбрасывается с метрикой: следующий снимок фида его перекроет.

type eventKind int

const (
	eventPosition eventKind = iota
	eventOrder
	eventExecution
	eventInspect
)

type feedEvent struct {
	kind       eventKind
	instanceID string
	position   *exchange.PositionState
	order      *exchange.OrderState
	execution  *exchange.ExecutionRecord
	inspect    inspectRequest
}

// inspectRequest - запрос на выполнение fn в горутине-владельце
type inspectRequest struct {
	fn   func(*Monitor)
	done chan struct{}
}

// StateInspector выполняет fn в горутине, владеющей картами состояния.
// Реализуется Dispatcher (event-режим) и Monitor (poll-режим).
type StateInspector interface {
	Inspect(ctx context.Context, fn func(*Monitor)) error
}

var (
	_ StateInspector = (*Dispatcher)(nil)
	_ StateInspector = (*Monitor)(nil)
)

// Dispatcher владеет монитором и применяет события строго по одному
type Dispatcher struct {
	m      *Monitor
	events chan feedEvent

	// период фоновых проверок (таймауты не должны зависеть от
	// частоты событий)
	cycleEvery time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewDispatcher создаёт диспетчер с буфером на bufferSize событий
func NewDispatcher(m *Monitor, bufferSize int, cycleEvery time.Duration) *Dispatcher {
	if bufferSize < 1 {
		bufferSize = 1024
	}
	if cycleEvery <= 0 {
		cycleEvery = time.Second
	}
	return &Dispatcher{
		m:          m,
		events:     make(chan feedEvent, bufferSize),
		cycleEvery: cycleEvery,
	}
}

// Start запускает горутину-владельца. Идемпотентен.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return
	}
	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})
	d.running = true

	go d.loop(d.stopCh, d.doneCh)
}

// Stop останавливает горутину-владельца с ограниченным join
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}
	d.running = false
	close(d.stopCh)

	select {
	case <-d.doneCh:
		return nil
	case <-time.After(d.m.cfg.StopJoinTimeout):
		return ErrStopTimeout
	}
}

func (d *Dispatcher) loop(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(d.cycleEvery)
	defer ticker.Stop()

	ctx := context.Background()
	for {
		select {
		case <-stopCh:
			return
		case ev := <-d.events:
			d.apply(ctx, ev)
		case <-ticker.C:
			d.m.RunCycle(ctx)
		}
	}
}

func (d *Dispatcher) apply(ctx context.Context, ev feedEvent) {
	switch ev.kind {
	case eventPosition:
		d.m.OnPositionUpdate(ctx, ev.instanceID, ev.position)
	case eventOrder:
		d.m.OnOrderUpdate(ctx, ev.instanceID, ev.order)
	case eventExecution:
		d.m.OnExecutionUpdate(ctx, ev.instanceID, ev.execution)
	case eventInspect:
		ev.inspect.fn(d.m)
		close(ev.inspect.done)
	}
}

// Inspect выполняет fn в горутине-владельце карт состояния.
// В отличие от Enqueue* запрос чтения НЕ отбрасывается при полном
// буфере, а ждёт места (с отменой по ctx).
func (d *Dispatcher) Inspect(ctx context.Context, fn func(*Monitor)) error {
	req := inspectRequest{fn: fn, done: make(chan struct{})}
	select {
	case d.events <- feedEvent{kind: eventInspect, inspect: req}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EnqueuePosition ставит событие позиции в очередь (без блокировки)
func (d *Dispatcher) EnqueuePosition(instanceID string, ps *exchange.PositionState) bool {
	return d.enqueue(feedEvent{kind: eventPosition, instanceID: instanceID, position: ps})
}

// EnqueueOrder ставит событие ордера в очередь (без блокировки)
func (d *Dispatcher) EnqueueOrder(instanceID string, os *exchange.OrderState) bool {
	return d.enqueue(feedEvent{kind: eventOrder, instanceID: instanceID, order: os})
}

// EnqueueExecution ставит событие исполнения в очередь (без блокировки)
func (d *Dispatcher) EnqueueExecution(instanceID string, er *exchange.ExecutionRecord) bool {
	return d.enqueue(feedEvent{kind: eventExecution, instanceID: instanceID, execution: er})
}

// enqueue - неблокирующая постановка с метрикой потерь
func (d *Dispatcher) enqueue(ev feedEvent) bool {
	select {
	case d.events <- ev:
		return true
	default:
		RecordBufferOverflow("dispatcher")
		return false
	}
}
