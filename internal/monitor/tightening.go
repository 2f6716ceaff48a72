package monitor

import (
	"context"
	"fmt"
	"time"

	"tradebot/internal/models"
	"tradebot/pkg/utils"
)

// Виды проверок подтяжки (метка метрик и деталь аудита)
const (
	tightenKindRRStep      = "rr_step"
	tightenKindTPProximity = "tp_proximity"
	tightenKindAge         = "age"
)

// checkTightening прогоняет три проверки подтяжки в фиксированном порядке:
// RR-лестница, trailing у тейк-профита, подтяжка отстающих по возрасту.
//
// Все проверки требуют ненулевых entry, original_sl и mark price - иначе
// no-op. Неудачный вызов биржи НЕ меняет one-shot флаги и индексы: та же
// проверка автоматически повторится на следующем событии или тике.
func (m *Monitor) checkTightening(ctx context.Context, st *models.PositionTrackingState, markPrice float64) {
	if st.EntryPrice == 0 || st.OriginalSL == 0 || markPrice == 0 {
		return
	}

	ov := m.overrides(models.TrackingKey{InstanceID: st.InstanceID, Symbol: st.Symbol})

	var rrEnabled, tpEnabled = true, true
	if ov != nil {
		rrEnabled = enabled(ov.EnableRRTightening, true)
		tpEnabled = enabled(ov.EnableTPProximity, true)
	}

	if rrEnabled {
		m.checkRRSteps(ctx, st, markPrice)
	}
	if tpEnabled {
		m.checkTPProximity(ctx, st, markPrice)
	}
	m.checkAgeTightening(ctx, st, markPrice)
}

// checkRRSteps - ступенчатая подтяжка стопа по лестнице RR
//
// Берётся ПЕРВАЯ ступень с индексом выше последней применённой, чей
// порог достигнут. Одна ступень за событие; ступени не применяются
// вне очереди и не повторяются.
func (m *Monitor) checkRRSteps(ctx context.Context, st *models.PositionTrackingState, markPrice float64) {
	risk := utils.RiskPerUnit(st.EntryPrice, st.OriginalSL)
	if risk == 0 {
		return
	}
	rr := utils.RRMultiple(st.Side, st.EntryPrice, st.OriginalSL, markPrice)

	for idx, step := range m.cfg.TighteningSteps {
		if idx <= st.LastTighteningStep {
			continue
		}
		if step.Threshold > rr {
			// Лестница отсортирована: дальше пороги только выше
			return
		}

		candidate := utils.StepStopPrice(st.Side, st.EntryPrice, risk, step.SLPosition)
		if !utils.IsStopImprovement(st.Side, candidate, st.CurrentSL) {
			// Стоп уже лучше целевого уровня ступени - ступень перекрыта,
			// индекс двигается только при успешном вызове биржи
			continue
		}

		if err := m.exec.SetTradingStop(ctx, st.Symbol, candidate, 0); err != nil {
			m.tightenFailed(st, tightenKindRRStep, candidate, err)
			return
		}

		st.LastTighteningStep = idx
		st.CurrentSL = candidate
		m.tightenApplied(st, tightenKindRRStep, candidate,
			fmt.Sprintf("rr step %d reached at rr=%.2f, stop moved to %.4f", idx, rr, candidate))
		return
	}
}

// checkTPProximity - одноразовое включение trailing-стопа у тейк-профита
func (m *Monitor) checkTPProximity(ctx context.Context, st *models.PositionTrackingState, markPrice float64) {
	if st.TPProximityActivated || st.TakeProfit == 0 {
		return
	}

	remainingPct, ok := utils.RemainingToTPPct(st.Side, st.EntryPrice, st.TakeProfit, markPrice)
	if !ok || remainingPct > m.cfg.TPProximity.ThresholdPct {
		return
	}

	candidate := utils.TrailingStopPrice(st.Side, markPrice, m.cfg.TPProximity.TrailingPct)
	if !utils.IsStopImprovement(st.Side, candidate, st.CurrentSL) {
		return
	}

	if err := m.exec.SetTradingStop(ctx, st.Symbol, candidate, 0); err != nil {
		m.tightenFailed(st, tightenKindTPProximity, candidate, err)
		return
	}

	st.TPProximityActivated = true
	st.CurrentSL = candidate
	m.tightenApplied(st, tightenKindTPProximity, candidate,
		fmt.Sprintf("%.2f%% left to tp, trailing stop set to %.4f", remainingPct, candidate))
}

// checkAgeTightening - одноразовая подтяжка "отстающей" позиции
//
// Срабатывает только на позициях, НЕ добравших прибыли: при RR выше
// порога делать нечего, проверка вернётся на следующем событии.
func (m *Monitor) checkAgeTightening(ctx context.Context, st *models.PositionTrackingState, markPrice float64) {
	if st.AgeTighteningApplied {
		return
	}

	rr := utils.RRMultiple(st.Side, st.EntryPrice, st.OriginalSL, markPrice)
	if rr >= m.cfg.AgeTightening.MinProfitThreshold {
		return
	}

	barThreshold, ok := m.cfg.AgeTightening.BarThresholds[st.Timeframe]
	if !ok {
		return
	}

	ageBars := utils.AgeInBars(st.EntryTime, time.Now().UTC(), st.Timeframe)
	if ageBars < float64(barThreshold) {
		return
	}

	risk := utils.RiskPerUnit(st.EntryPrice, st.OriginalSL)
	candidate := utils.AgeTightenedStopPrice(st.Side, st.OriginalSL, risk, m.cfg.AgeTightening.MaxTighteningPct)
	if !utils.IsStopImprovement(st.Side, candidate, st.CurrentSL) {
		return
	}

	if err := m.exec.SetTradingStop(ctx, st.Symbol, candidate, 0); err != nil {
		m.tightenFailed(st, tightenKindAge, candidate, err)
		return
	}

	st.AgeTighteningApplied = true
	st.CurrentSL = candidate
	m.tightenApplied(st, tightenKindAge, candidate,
		fmt.Sprintf("lagging position aged %.1f bars at rr=%.2f, stop moved to %.4f", ageBars, rr, candidate))
}

// tightenAction возвращает действие аудита для вида проверки
func tightenAction(kind string) string {
	switch kind {
	case tightenKindTPProximity:
		return models.ActionTPProximity
	case tightenKindAge:
		return models.ActionAgeTightened
	default:
		return models.ActionSLTightened
	}
}

// tightenApplied - общий успех подтяжки: аудит, лог, метрика, callback
func (m *Monitor) tightenApplied(st *models.PositionTrackingState, kind string, newSL float64, detail string) {
	RecordTightening(kind, true)
	action := tightenAction(kind)
	m.audit(st.Symbol, action, detail)
	m.auditLog(models.SeverityInfo, st.RunID, st.TradeID, st.Symbol, action, detail)
	m.log.Info("stop tightened",
		utils.Symbol(st.Symbol),
		utils.String("kind", kind),
		utils.StopLoss(newSL),
	)
	if m.callbacks.OnSLTightened != nil {
		m.callbacks.OnSLTightened(st.InstanceID, st.Symbol, newSL)
	}
}

// tightenFailed - отказ биржи: состояние не тронуто, повтор на следующем
// событии произойдёт сам собой
func (m *Monitor) tightenFailed(st *models.PositionTrackingState, kind string, candidate float64, err error) {
	RecordTightening(kind, false)
	detail := fmt.Sprintf("%s: setTradingStop(%.4f) rejected: %v", kind, candidate, err)
	m.audit(st.Symbol, models.ActionTightenFailed, detail)
	m.auditLog(models.SeverityError, st.RunID, st.TradeID, st.Symbol, models.ActionTightenFailed, detail)
	m.log.Error("stop tightening rejected",
		utils.Symbol(st.Symbol),
		utils.String("kind", kind),
		utils.StopLoss(candidate),
		utils.Err(err),
	)
}
