package monitor

import (
	"context"
	"fmt"
	"time"

	"tradebot/internal/exchange"
	"tradebot/internal/models"
	"tradebot/pkg/utils"
)

// Координатор spread-пар: две одновременные противоположные ноги на двух
// символах. Состояние пары зеркалируется в ОБЕИХ записях ордеров, потому
// что событие исполнения приходит только по одной из них, а читатели
// берут состояние из любой.

// SpreadLeg - параметры одной ноги при регистрации пары
type SpreadLeg struct {
	OrderID string
	Symbol  string
	Side    string // buy, sell
}

// RegisterSpreadOrders регистрирует обе ноги spread-пары
//
// Создаёт две записи ордеров с СОБСТВЕННЫМИ копиями состояния пары
// (инвариант зеркалирования). Вызывается внешним торговым циклом сразу
// после размещения пары ордеров.
func (m *Monitor) RegisterSpreadOrders(instanceID, runID, timeframe string, legX, legY SpreadLeg) error {
	if legX.OrderID == "" || legY.OrderID == "" {
		return fmt.Errorf("register spread orders: both order ids are required")
	}
	if legX.OrderID == legY.OrderID {
		return fmt.Errorf("register spread orders: legs share order id %s", legX.OrderID)
	}

	now := time.Now().UTC()
	timeoutSec := int(m.cfg.PartialFillTimeout.Seconds())

	makeState := func() *models.SpreadState {
		return &models.SpreadState{
			OrderIDX:              legX.OrderID,
			OrderIDY:              legY.OrderID,
			SymbolX:               legX.Symbol,
			SymbolY:               legY.Symbol,
			PartialFillTimeoutSec: timeoutSec,
		}
	}

	m.orders[legX.OrderID] = &models.OrderTrackingState{
		OrderID:    legX.OrderID,
		InstanceID: instanceID,
		Symbol:     legX.Symbol,
		Side:       legX.Side,
		Status:     models.OrderStatusNew,
		CreatedAt:  now,
		Timeframe:  timeframe,
		RunID:      runID,
		Spread:     makeState(),
	}
	m.orders[legY.OrderID] = &models.OrderTrackingState{
		OrderID:    legY.OrderID,
		InstanceID: instanceID,
		Symbol:     legY.Symbol,
		Side:       legY.Side,
		Status:     models.OrderStatusNew,
		CreatedAt:  now,
		Timeframe:  timeframe,
		RunID:      runID,
		Spread:     makeState(),
	}
	TrackedOrders.Set(float64(len(m.orders)))

	m.log.Info("spread pair registered",
		utils.OrderID(legX.OrderID),
		utils.String("order_id_y", legY.OrderID),
		utils.String("symbol_x", legX.Symbol),
		utils.String("symbol_y", legY.Symbol),
	)
	return nil
}

// handleExecution обновляет состояние пары по событию исполнения
//
// Запись идёт в ОБЕ записи пары. Первая заполненная нога ставит
// first_leg_fill_time; вторая - both_filled на обеих записях и аудит.
// Повтор того же события идемпотентен.
func (m *Monitor) handleExecution(ctx context.Context, er *exchange.ExecutionRecord) {
	ord, ok := m.orders[er.OrderID]
	if !ok || ord.Spread == nil {
		return
	}
	sp := ord.Spread

	var isX bool
	switch er.OrderID {
	case sp.OrderIDX:
		isX = true
	case sp.OrderIDY:
		isX = false
	default:
		// Запись ссылается на чужую пару - повреждённое состояние
		m.log.Warn("execution order id not in its own pair",
			utils.OrderID(er.OrderID),
		)
		return
	}

	wasBothFilled := sp.BothFilled
	now := time.Now().UTC()

	apply := func(s *models.SpreadState) {
		if isX {
			s.FillPriceX = er.ExecPrice
			s.FillQtyX = er.ExecQty
		} else {
			s.FillPriceY = er.ExecPrice
			s.FillQtyY = er.ExecQty
		}
		if s.FilledX() && s.FilledY() {
			s.BothFilled = true
		} else if s.FirstLegFillTime == nil {
			t := now
			s.FirstLegFillTime = &t
		}
	}

	// Зеркалирование: пишем в обе записи пары
	apply(sp)
	if other, ok := m.otherLeg(er.OrderID, sp); ok {
		apply(other.Spread)
	}

	if sp.BothFilled && !wasBothFilled {
		detail := fmt.Sprintf("both legs filled: %s@%.4f / %s@%.4f",
			sp.SymbolX, sp.FillPriceX, sp.SymbolY, sp.FillPriceY)
		m.audit(er.Symbol, models.ActionSpreadBothFilled, detail)
		m.auditLog(models.SeverityInfo, ord.RunID, "", er.Symbol, models.ActionSpreadBothFilled, detail)
		m.log.Info("spread pair fully filled", utils.Symbol(er.Symbol))
	}
}

// otherLeg возвращает запись второй ноги пары
func (m *Monitor) otherLeg(orderID string, sp *models.SpreadState) (*models.OrderTrackingState, bool) {
	otherID := sp.OrderIDX
	if orderID == sp.OrderIDX {
		otherID = sp.OrderIDY
	}
	other, ok := m.orders[otherID]
	if !ok || other.Spread == nil {
		return nil, false
	}
	return other, true
}

// purgeResolvedSpreads убирает записи разрешённых пар из отслеживания
//
// Терминальное событие по ноге может не прийти вовсе (poll-режим его не
// даёт, в event-режиме оно может потеряться), поэтому пары с both_filled
// или завершённым recovery вычищаются периодическим проходом. Запускается
// в НАЧАЛЕ RunCycle: пара, разрешённая на текущем тике, остаётся видимой
// до следующего.
func (m *Monitor) purgeResolvedSpreads() {
	for id, ord := range m.orders {
		sp := ord.Spread
		if sp == nil {
			continue
		}
		if sp.BothFilled || sp.PartialFillHandled {
			delete(m.orders, id)
		}
	}
	TrackedOrders.Set(float64(len(m.orders)))
}

// sweepPartialFills - recovery зависших наполовину заполненных пар
//
// Пара достижима из двух записей ордеров, поэтому в рамках одного
// прохода дедуплицируется по (order_id_x, order_id_y). Recovery
// выполняется не более одного раза на пару: partial_fill_handled
// ставится независимо от исхода шагов, чтобы не молотить market-ордерами
// по застрявшей паре.
func (m *Monitor) sweepPartialFills(ctx context.Context, now time.Time) {
	seen := make(map[[2]string]bool)

	for _, ord := range m.orders {
		sp := ord.Spread
		if sp == nil {
			continue
		}
		key := sp.Key()
		if seen[key] {
			continue
		}
		seen[key] = true

		if sp.BothFilled || sp.PartialFillHandled || !sp.PartiallyFilled() || sp.FirstLegFillTime == nil {
			continue
		}

		timeoutSec := sp.PartialFillTimeoutSec
		if timeoutSec <= 0 {
			timeoutSec = int(m.cfg.PartialFillTimeout.Seconds())
		}
		if now.Sub(*sp.FirstLegFillTime).Seconds() <= float64(timeoutSec) {
			continue
		}

		m.recoverPartialFill(ctx, ord, sp)
	}
}

// recoverPartialFill закрывает заполненную ногу и отменяет незаполненную
//
// Каждый шаг аудируется отдельно; неудача одного шага не блокирует
// другой и не откладывает пометку handled.
func (m *Monitor) recoverPartialFill(ctx context.Context, ord *models.OrderTrackingState, sp *models.SpreadState) {
	var filledSymbol, restingOrderID, restingSymbol string
	if sp.FilledX() {
		filledSymbol = sp.SymbolX
		restingOrderID = sp.OrderIDY
		restingSymbol = sp.SymbolY
	} else {
		filledSymbol = sp.SymbolY
		restingOrderID = sp.OrderIDX
		restingSymbol = sp.SymbolX
	}

	m.log.Warn("partial fill timeout, starting recovery",
		utils.Symbol(filledSymbol),
		utils.String("resting_order_id", restingOrderID),
	)

	// (a) закрыть заполненную ногу по рынку
	if err := m.exec.ClosePosition(ctx, filledSymbol); err != nil {
		detail := fmt.Sprintf("recovery close of filled leg %s failed: %v", filledSymbol, err)
		m.audit(filledSymbol, models.ActionCloseFailed, detail)
		m.auditLog(models.SeverityError, ord.RunID, "", filledSymbol, models.ActionCloseFailed, detail)
		RecordClose(false)
	} else {
		detail := fmt.Sprintf("filled leg %s closed at market after partial fill timeout", filledSymbol)
		m.audit(filledSymbol, models.ActionPartialFillClose, detail)
		m.auditLog(models.SeverityWarn, ord.RunID, "", filledSymbol, models.ActionPartialFillClose, detail)
		RecordClose(true)
	}

	// (b) отменить незаполненную ногу
	if err := m.exec.CancelOrder(ctx, restingSymbol, restingOrderID); err != nil {
		detail := fmt.Sprintf("recovery cancel of resting leg %s failed: %v", restingOrderID, err)
		m.audit(restingSymbol, models.ActionCancelFailed, detail)
		m.auditLog(models.SeverityError, ord.RunID, "", restingSymbol, models.ActionCancelFailed, detail)
		RecordCancellation(false)
	} else {
		detail := fmt.Sprintf("resting leg %s cancelled after partial fill timeout", restingOrderID)
		m.audit(restingSymbol, models.ActionPartialFillCancel, detail)
		m.auditLog(models.SeverityWarn, ord.RunID, "", restingSymbol, models.ActionPartialFillCancel, detail)
		RecordCancellation(true)
	}

	// (c) handled в обеих записях независимо от исходов (a) и (b)
	sp.PartialFillHandled = true
	if other, ok := m.otherLeg(ord.OrderID, sp); ok {
		other.Spread.PartialFillHandled = true
	}
	PartialFillRecoveries.Inc()
}
