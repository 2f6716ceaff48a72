package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tradebot/internal/config"
	"tradebot/internal/exchange"
	"tradebot/internal/models"
	"tradebot/internal/strategy"
	"tradebot/pkg/utils"
)

// Monitor - координатор жизненного цикла позиций и ордеров
//
// Держит два состояния: позиции по ключу (инстанс, символ) и ордера по
// order id. На каждое событие фида (или тик poll-цикла) прогоняет в
// фиксированном порядке: подтяжку стопа, координацию spread-ног, мост
// стратегии и отмену ордеров по возрасту.
//
// ВАЖНО (контракт конкурентности): карты состояния НЕ синхронизированы.
// Все события обязаны приходить из одной логической горутины - либо
// диспетчер фида, либо poll-цикл, но не оба сразу. Для многопоточных
// источников используйте Dispatcher (scheduler.go), сериализующий
// события через канал.
type Monitor struct {
	cfg   config.MonitorConfig
	exec  exchange.Executor
	sink  AuditSink
	log   *utils.Logger
	runID string

	// Карты состояния. Единственный владелец - поток событий.
	positions map[models.TrackingKey]*models.PositionTrackingState
	orders    map[string]*models.OrderTrackingState

	// Привязанные стратегии и кэш их переопределений политик
	strategies map[models.TrackingKey]*strategyBinding

	callbacks Callbacks

	// Poll-режим (scheduler.go)
	lister    exchange.Lister
	schedMu   sync.Mutex
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	inspectCh chan inspectRequest
}

// Callbacks - уведомления об успешных действиях монитора
//
// Вызываются ТОЛЬКО при успехе соответствующего вызова биржи.
// Любое поле может быть nil.
type Callbacks struct {
	OnPositionClosed func(instanceID, symbol string)
	OnSLTightened    func(instanceID, symbol string, newSL float64)
	OnOrderCancelled func(instanceID, orderID, symbol string)
}

// strategyBinding - привязка стратегии к позиции
type strategyBinding struct {
	exit strategy.ExitPolicy
	// meta кэшируется один раз при привязке
	meta *strategy.MonitoringMetadata
}

// New создаёт монитор
//
// sink может быть nil (аудит выключен, например в paper-режиме).
func New(cfg config.MonitorConfig, exec exchange.Executor, sink AuditSink, logger *utils.Logger) *Monitor {
	if logger == nil {
		logger = utils.GetGlobalLogger()
	}
	return &Monitor{
		cfg:        cfg,
		exec:       exec,
		sink:       sink,
		log:        logger.WithComponent(models.ComponentPositionMonitor).WithInstance(cfg.InstanceID),
		runID:      fmt.Sprintf("run-%d", time.Now().UTC().UnixMilli()),
		positions:  make(map[models.TrackingKey]*models.PositionTrackingState),
		orders:     make(map[string]*models.OrderTrackingState),
		strategies: make(map[models.TrackingKey]*strategyBinding),
		inspectCh:  make(chan inspectRequest, 8),
	}
}

// SetLister задаёт источник снимков для poll-режима
func (m *Monitor) SetLister(l exchange.Lister) {
	m.lister = l
}

// SetCallbacks задаёт уведомления об успешных действиях
func (m *Monitor) SetCallbacks(cb Callbacks) {
	m.callbacks = cb
}

// RunID возвращает идентификатор текущей сессии монитора
func (m *Monitor) RunID() string {
	return m.runID
}

// InstanceID возвращает идентификатор инстанса из конфигурации
func (m *Monitor) InstanceID() string {
	return m.cfg.InstanceID
}

// ============================================================
// Хранилище состояния
// ============================================================

// UpsertPosition вставляет или замещает состояние позиции
func (m *Monitor) UpsertPosition(st *models.PositionTrackingState) {
	if st == nil {
		return
	}
	m.positions[models.TrackingKey{InstanceID: st.InstanceID, Symbol: st.Symbol}] = st
	TrackedPositions.Set(float64(len(m.positions)))
}

// RemovePosition удаляет позицию из отслеживания
func (m *Monitor) RemovePosition(instanceID, symbol string) {
	delete(m.positions, models.TrackingKey{InstanceID: instanceID, Symbol: symbol})
	delete(m.strategies, models.TrackingKey{InstanceID: instanceID, Symbol: symbol})
	TrackedPositions.Set(float64(len(m.positions)))
}

// GetPositionState возвращает состояние позиции
func (m *Monitor) GetPositionState(instanceID, symbol string) (*models.PositionTrackingState, bool) {
	st, ok := m.positions[models.TrackingKey{InstanceID: instanceID, Symbol: symbol}]
	return st, ok
}

// GetAllPositions возвращает все отслеживаемые позиции
func (m *Monitor) GetAllPositions() []*models.PositionTrackingState {
	out := make([]*models.PositionTrackingState, 0, len(m.positions))
	for _, st := range m.positions {
		out = append(out, st)
	}
	return out
}

// ListByInstance возвращает позиции одного инстанса
func (m *Monitor) ListByInstance(instanceID string) []*models.PositionTrackingState {
	var out []*models.PositionTrackingState
	for key, st := range m.positions {
		if key.InstanceID == instanceID {
			out = append(out, st)
		}
	}
	return out
}

// GetTrackedOrders возвращает все отслеживаемые ордера
func (m *Monitor) GetTrackedOrders() []*models.OrderTrackingState {
	out := make([]*models.OrderTrackingState, 0, len(m.orders))
	for _, ord := range m.orders {
		out = append(out, ord)
	}
	return out
}

// RegisterPosition регистрирует позицию вручную
//
// Нужно окружениям без собственного position-фида (paper trading,
// симуляция): засевает состояние так же, как первый live update.
func (m *Monitor) RegisterPosition(trade *models.Trade) error {
	if trade == nil {
		return fmt.Errorf("register position: trade is nil")
	}
	if err := utils.ValidateSymbol(trade.Symbol); err != nil {
		return fmt.Errorf("register position: %w", err)
	}
	if err := utils.ValidateSide(trade.Side); err != nil {
		return fmt.Errorf("register position: %w", err)
	}

	entryTime := trade.OpenedAt
	if entryTime.IsZero() {
		entryTime = time.Now().UTC()
	}

	st := &models.PositionTrackingState{
		InstanceID:         trade.InstanceID,
		Symbol:             trade.Symbol,
		RunID:              trade.RunID,
		TradeID:            trade.TradeID,
		Side:               trade.Side,
		EntryPrice:         trade.EntryPrice,
		EntryTime:          entryTime,
		Timeframe:          trade.Timeframe,
		OriginalSL:         trade.StopLoss,
		CurrentSL:          trade.StopLoss,
		TakeProfit:         trade.TakeProfit,
		LastTighteningStep: models.NoTighteningStep,
	}

	if trade.IsSpread {
		st.Spread = &models.SpreadState{
			PairSymbol:            trade.PairSymbol,
			PairSide:              trade.PairSide,
			PartialFillTimeoutSec: int(m.cfg.PartialFillTimeout.Seconds()),
		}
	}

	m.UpsertPosition(st)
	m.log.Debug("position registered",
		utils.Symbol(trade.Symbol),
		utils.Side(trade.Side),
		utils.Price(trade.EntryPrice),
		utils.StopLoss(trade.StopLoss),
	)
	return nil
}

// AttachStrategy привязывает стратегию к позиции
//
// Способности стратегии определяются через type assertion; переопределения
// политик мониторинга кэшируются здесь один раз.
func (m *Monitor) AttachStrategy(instanceID, symbol string, s interface{}) {
	if s == nil {
		return
	}
	b := &strategyBinding{}
	if exit, ok := s.(strategy.ExitPolicy); ok {
		b.exit = exit
	}
	if mp, ok := s.(strategy.MonitoringPolicy); ok {
		meta := mp.MonitoringMetadata()
		b.meta = &meta
	}
	if b.exit == nil && b.meta == nil {
		// Стратегия без поддерживаемых способностей - привязка бессмысленна
		m.log.Warn("strategy implements no monitoring capabilities", utils.Symbol(symbol))
		return
	}
	m.strategies[models.TrackingKey{InstanceID: instanceID, Symbol: symbol}] = b
}

// DetachStrategy отвязывает стратегию от позиции
func (m *Monitor) DetachStrategy(instanceID, symbol string) {
	delete(m.strategies, models.TrackingKey{InstanceID: instanceID, Symbol: symbol})
}

// overrides возвращает кэшированные переопределения политик позиции
// (nil если стратегия не привязана или без MonitoringPolicy)
func (m *Monitor) overrides(key models.TrackingKey) *strategy.MonitoringMetadata {
	if b, ok := m.strategies[key]; ok {
		return b.meta
	}
	return nil
}

// enabled разворачивает трёхзначный флаг переопределения
func enabled(override *bool, def bool) bool {
	if override != nil {
		return *override
	}
	return def
}

// ============================================================
// Входные точки событий (event-driven режим)
// ============================================================

// OnPositionUpdate обрабатывает снимок позиции из фида
//
// Нулевой размер или пустая сторона = позиция закрыта на бирже,
// запись удаляется немедленно. Иначе состояние обновляется и
// прогоняются проверки подтяжки.
func (m *Monitor) OnPositionUpdate(ctx context.Context, instanceID string, ps *exchange.PositionState) {
	if ps == nil {
		return
	}
	EventsProcessed.WithLabelValues("position").Inc()

	key := models.TrackingKey{InstanceID: instanceID, Symbol: ps.Symbol}

	if ps.Size == 0 || ps.Side == "" {
		if _, ok := m.positions[key]; ok {
			m.RemovePosition(instanceID, ps.Symbol)
			m.log.Info("position flat on exchange, tracking removed", utils.Symbol(ps.Symbol))
		}
		return
	}

	st, ok := m.positions[key]
	if !ok {
		// Первое событие по позиции засевает состояние
		st = &models.PositionTrackingState{
			InstanceID:         instanceID,
			Symbol:             ps.Symbol,
			Side:               ps.Side,
			EntryPrice:         ps.EntryPrice,
			EntryTime:          time.Now().UTC(),
			OriginalSL:         ps.StopLoss,
			CurrentSL:          ps.StopLoss,
			TakeProfit:         ps.TakeProfit,
			LastTighteningStep: models.NoTighteningStep,
		}
		m.UpsertPosition(st)
	} else {
		// Тейк-профит биржи авторитетен; стоп управляется монитором
		// и из фида не перенимается (иначе сломалась бы монотонность)
		if ps.TakeProfit != 0 {
			st.TakeProfit = ps.TakeProfit
		}
		if st.CurrentSL == 0 && ps.StopLoss != 0 {
			st.CurrentSL = ps.StopLoss
			if st.OriginalSL == 0 {
				st.OriginalSL = ps.StopLoss
			}
		}
	}

	m.checkTightening(ctx, st, ps.MarkPrice)
}

// OnOrderUpdate обрабатывает снимок ордера из фида
func (m *Monitor) OnOrderUpdate(ctx context.Context, instanceID string, os *exchange.OrderState) {
	if os == nil {
		return
	}
	EventsProcessed.WithLabelValues("order").Inc()

	ord, ok := m.orders[os.OrderID]
	if !ok {
		// Терминальный статус неизвестного ордера отслеживать нечего
		if IsTerminalStatus(os.Status) {
			return
		}
		created := os.CreatedTime
		if created.IsZero() {
			created = time.Now().UTC()
		}
		m.orders[os.OrderID] = &models.OrderTrackingState{
			OrderID:    os.OrderID,
			InstanceID: instanceID,
			Symbol:     os.Symbol,
			Side:       os.Side,
			Status:     os.Status,
			CreatedAt:  created,
		}
		TrackedOrders.Set(float64(len(m.orders)))
		return
	}

	if !CanTransition(ord.Status, os.Status) {
		m.log.Warn("unexpected order status transition",
			utils.OrderID(os.OrderID),
			utils.String("from", ord.Status),
			utils.String("to", os.Status),
		)
	}
	ord.Status = os.Status

	if IsTerminalStatus(os.Status) {
		// Ноги spread-пары живут до BothFilled или завершения recovery
		if ord.Spread == nil || ord.Spread.BothFilled || ord.Spread.PartialFillHandled {
			delete(m.orders, os.OrderID)
			TrackedOrders.Set(float64(len(m.orders)))
		}
	}
}

// OnExecutionUpdate обрабатывает исполнение (fill) из фида
func (m *Monitor) OnExecutionUpdate(ctx context.Context, instanceID string, er *exchange.ExecutionRecord) {
	if er == nil {
		return
	}
	EventsProcessed.WithLabelValues("execution").Inc()

	m.handleExecution(ctx, er)
}

// RunCycle выполняет один проход периодических проверок
//
// Вызывается poll-циклом каждый тик; в event-режиме его полезно
// дёргать по таймеру диспетчера, чтобы таймауты не зависели от
// частоты событий.
func (m *Monitor) RunCycle(ctx context.Context) {
	started := time.Now()
	now := started.UTC()

	m.purgeResolvedSpreads()
	m.agingSweep(ctx, now)
	m.sweepPartialFills(ctx, now)

	TrackedPositions.Set(float64(len(m.positions)))
	TrackedOrders.Set(float64(len(m.orders)))
	SweepDuration.Observe(time.Since(started).Seconds())
}
