package monitor

import (
	"context"
	"fmt"

	"tradebot/internal/models"
	"tradebot/internal/strategy"
	"tradebot/pkg/utils"
)

// levelSyncTolerance - допуск расхождения уровней стратегии с биржевыми.
// Меньшие расхождения не отправляются на биржу.
const levelSyncTolerance = 1e-4

// CheckStrategyExit - мост к стратегии: "пора ли выходить"
//
// Вызывается по закрытию каждой свечи таймфрейма позиции. Если стратегия
// не привязана или не умеет ExitPolicy - no-op. Сигнал выхода закрывает
// позицию (обе ноги независимо для spread); сигнал "держать" с
// пересчитанными уровнями синхронизирует биржевые стоп/TP.
//
// Возвращает true, если позиция закрыта и снята с отслеживания.
// Паника или ошибка стратегии трактуется как "держать".
func (m *Monitor) CheckStrategyExit(ctx context.Context, trade *models.Trade, current, pair *models.Candle) bool {
	if trade == nil {
		return false
	}

	key := models.TrackingKey{InstanceID: trade.InstanceID, Symbol: trade.Symbol}
	b, ok := m.strategies[key]
	if !ok || b.exit == nil {
		return false
	}

	sig, err := m.safeShouldExit(b.exit, trade, current, pair)
	if err != nil {
		// Fail-safe: спорное состояние стратегии не форсирует выход
		detail := fmt.Sprintf("strategy exit check failed, holding: %v", err)
		m.auditLog(models.SeverityError, trade.RunID, trade.TradeID, trade.Symbol, "strategy_check_failed", detail)
		m.log.Error("strategy exit check failed, treating as hold",
			utils.Symbol(trade.Symbol),
			utils.TradeID(trade.TradeID),
			utils.Err(err),
		)
		return false
	}

	if sig.ShouldExit {
		return m.executeStrategyExit(ctx, key, trade, current, sig)
	}

	m.syncStrategyLevels(ctx, key, trade, sig.Details)
	return false
}

// safeShouldExit вызывает стратегию, перехватывая панику в ошибку
func (m *Monitor) safeShouldExit(exit strategy.ExitPolicy, trade *models.Trade, current, pair *models.Candle) (sig strategy.ExitSignal, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy panicked: %v", r)
		}
	}()
	return exit.ShouldExit(trade, current, pair)
}

// executeStrategyExit закрывает позицию по сигналу стратегии
//
// Одиночная позиция: запись снимается только после успешного закрытия;
// при отказе биржи остаётся - повторный сигнал выхода на следующей свече
// повторит закрытие (выход - идемпотентная цель, не one-shot действие).
// Spread: обе ноги закрываются независимо, запись снимается только когда
// успешны обе.
func (m *Monitor) executeStrategyExit(ctx context.Context, key models.TrackingKey, trade *models.Trade, current *models.Candle, sig strategy.ExitSignal) bool {
	exitPrice := 0.0
	if current != nil {
		exitPrice = current.Close
	}

	detail := fmt.Sprintf("strategy exit at %.4f: %s", exitPrice, sig.Details.Reason)
	m.audit(trade.Symbol, models.ActionStrategyExit, detail)
	m.auditLog(models.SeverityInfo, trade.RunID, trade.TradeID, trade.Symbol, models.ActionStrategyExit, detail)
	m.log.Info("strategy signalled exit",
		utils.Symbol(trade.Symbol),
		utils.TradeID(trade.TradeID),
		utils.Price(exitPrice),
		utils.String("reason", sig.Details.Reason),
	)
	StrategyExits.Inc()

	st, tracked := m.positions[key]

	// Spread: закрываем оба символа независимо друг от друга
	if trade.IsSpread || (tracked && st.Spread != nil) {
		pairSymbol := trade.PairSymbol
		if pairSymbol == "" && tracked && st.Spread != nil {
			pairSymbol = st.Spread.PairSymbol
		}

		okBase := m.closeSymbol(ctx, trade, trade.Symbol)
		okPair := true
		if pairSymbol != "" {
			okPair = m.closeSymbol(ctx, trade, pairSymbol)
		}

		if okBase && okPair {
			m.RemovePosition(key.InstanceID, key.Symbol)
			if m.callbacks.OnPositionClosed != nil {
				m.callbacks.OnPositionClosed(key.InstanceID, key.Symbol)
			}
			return true
		}
		// Хотя бы одна нога не закрылась - запись остаётся, повтор
		// на следующем сигнале
		return false
	}

	if !m.closeSymbol(ctx, trade, trade.Symbol) {
		return false
	}

	m.RemovePosition(key.InstanceID, key.Symbol)
	if m.callbacks.OnPositionClosed != nil {
		m.callbacks.OnPositionClosed(key.InstanceID, key.Symbol)
	}
	return true
}

// closeSymbol закрывает один символ с аудитом исхода
func (m *Monitor) closeSymbol(ctx context.Context, trade *models.Trade, symbol string) bool {
	if err := m.exec.ClosePosition(ctx, symbol); err != nil {
		detail := fmt.Sprintf("close of %s rejected: %v", symbol, err)
		m.audit(symbol, models.ActionCloseFailed, detail)
		m.auditLog(models.SeverityError, trade.RunID, trade.TradeID, symbol, models.ActionCloseFailed, detail)
		m.log.Error("position close rejected", utils.Symbol(symbol), utils.Err(err))
		RecordClose(false)
		return false
	}

	m.audit(symbol, models.ActionPositionClosed, fmt.Sprintf("position %s closed by strategy exit", symbol))
	m.auditLog(models.SeverityInfo, trade.RunID, trade.TradeID, symbol, models.ActionPositionClosed,
		fmt.Sprintf("position %s closed", symbol))
	RecordClose(true)
	return true
}

// syncStrategyLevels подтягивает биржевые стоп/TP к уровням стратегии
//
// Вызывается на сигнале "держать": стратегия могла пересчитать уровни.
// Расхождение в пределах допуска игнорируется. Нулевой уровень =
// стратегия его не пересчитывала.
func (m *Monitor) syncStrategyLevels(ctx context.Context, key models.TrackingKey, trade *models.Trade, details strategy.ExitDetails) {
	st, ok := m.positions[key]
	if !ok {
		return
	}

	var newSL, newTP float64
	if details.StopLevel != 0 && utils.Abs(details.StopLevel-st.CurrentSL) > levelSyncTolerance {
		newSL = details.StopLevel
	}
	if details.TPLevel != 0 && utils.Abs(details.TPLevel-st.TakeProfit) > levelSyncTolerance {
		newTP = details.TPLevel
	}
	if newSL == 0 && newTP == 0 {
		return
	}

	if err := m.exec.SetTradingStop(ctx, st.Symbol, newSL, newTP); err != nil {
		detail := fmt.Sprintf("level sync rejected (sl=%.4f tp=%.4f): %v", newSL, newTP, err)
		m.audit(st.Symbol, models.ActionSyncFailed, detail)
		m.auditLog(models.SeverityError, st.RunID, st.TradeID, st.Symbol, models.ActionSyncFailed, detail)
		m.log.Error("strategy level sync rejected", utils.Symbol(st.Symbol), utils.Err(err))
		RecordStrategySync(false)
		return
	}

	if newSL != 0 {
		st.CurrentSL = newSL
		detail := fmt.Sprintf("stop synced to strategy level %.4f", newSL)
		m.audit(st.Symbol, models.ActionStrategyStopSynced, detail)
		m.auditLog(models.SeverityInfo, st.RunID, st.TradeID, st.Symbol, models.ActionStrategyStopSynced, detail)
	}
	if newTP != 0 {
		st.TakeProfit = newTP
		detail := fmt.Sprintf("take profit synced to strategy level %.4f", newTP)
		m.audit(st.Symbol, models.ActionStrategyTPSynced, detail)
		m.auditLog(models.SeverityInfo, st.RunID, st.TradeID, st.Symbol, models.ActionStrategyTPSynced, detail)
	}
	RecordStrategySync(true)
	m.log.Info("levels synced with strategy",
		utils.Symbol(st.Symbol),
		utils.StopLoss(newSL),
		utils.TakeProfit(newTP),
	)
}
