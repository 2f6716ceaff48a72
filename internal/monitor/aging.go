package monitor

import (
	"context"
	"fmt"
	"time"

	"tradebot/internal/models"
	"tradebot/pkg/utils"
)

// agingSweep отменяет ордера, зависшие в стакане дольше порога
//
// Порог в секундах имеет приоритет над порогом в барах. Успешная отмена
// убирает ордер из отслеживания; отказ биржи оставляет его до следующего
// прохода. Наружу ошибки не выходят.
func (m *Monitor) agingSweep(ctx context.Context, now time.Time) {
	for _, ord := range m.orders {
		if !IsOpenStatus(ord.Status) {
			continue
		}

		maxSeconds, maxBars, cancelEnabled := m.agingLimits(ord)
		if !cancelEnabled {
			continue
		}

		if maxSeconds > 0 {
			if age := utils.AgeInSeconds(ord.CreatedAt, now); age > float64(maxSeconds) {
				m.cancelAgedOrder(ctx, ord,
					fmt.Sprintf("order age %.0fs exceeded limit %ds", age, maxSeconds))
				continue
			}
			// Секундный порог задан, но не превышен - барный не проверяется
			continue
		}

		if maxBars > 0 {
			if age := utils.AgeInBars(ord.CreatedAt, now, ord.Timeframe); age > float64(maxBars) {
				m.cancelAgedOrder(ctx, ord,
					fmt.Sprintf("order age %.1f bars exceeded limit %d bars", age, maxBars))
			}
		}
	}
}

// agingLimits возвращает действующие пороги отмены для ордера
//
// Переопределения привязанной стратегии (по ключу позиции ордера)
// перекрывают глобальную конфигурацию.
func (m *Monitor) agingLimits(ord *models.OrderTrackingState) (maxSeconds, maxBars int, enabledFlag bool) {
	maxSeconds = m.cfg.AgeCancellation.MaxAgeSeconds
	maxBars = m.cfg.AgeCancellation.MaxAgeBars[ord.Timeframe]
	enabledFlag = true

	ov := m.overrides(models.TrackingKey{InstanceID: ord.InstanceID, Symbol: ord.Symbol})
	if ov == nil {
		return maxSeconds, maxBars, enabledFlag
	}

	enabledFlag = enabled(ov.EnableAgeCancellation, true)
	if ov.AgeCancellationSeconds > 0 {
		maxSeconds = ov.AgeCancellationSeconds
	}
	if ov.AgeCancellationBars > 0 {
		maxBars = ov.AgeCancellationBars
	}
	return maxSeconds, maxBars, enabledFlag
}

// cancelAgedOrder отменяет ордер и убирает его из отслеживания
func (m *Monitor) cancelAgedOrder(ctx context.Context, ord *models.OrderTrackingState, reason string) {
	if err := m.exec.CancelOrder(ctx, ord.Symbol, ord.OrderID); err != nil {
		detail := fmt.Sprintf("cancel of aged order %s rejected: %v (%s)", ord.OrderID, err, reason)
		m.audit(ord.Symbol, models.ActionCancelFailed, detail)
		m.auditLog(models.SeverityError, ord.RunID, "", ord.Symbol, models.ActionCancelFailed, detail)
		m.log.Error("aged order cancel rejected",
			utils.OrderID(ord.OrderID),
			utils.Symbol(ord.Symbol),
			utils.Err(err),
		)
		RecordCancellation(false)
		return
	}

	delete(m.orders, ord.OrderID)
	TrackedOrders.Set(float64(len(m.orders)))

	detail := fmt.Sprintf("order %s cancelled: %s", ord.OrderID, reason)
	m.audit(ord.Symbol, models.ActionOrderCancelled, detail)
	m.auditLog(models.SeverityInfo, ord.RunID, "", ord.Symbol, models.ActionOrderCancelled, detail)
	m.log.Info("aged order cancelled",
		utils.OrderID(ord.OrderID),
		utils.Symbol(ord.Symbol),
		utils.String("reason", reason),
	)
	RecordCancellation(true)

	if m.callbacks.OnOrderCancelled != nil {
		m.callbacks.OnOrderCancelled(ord.InstanceID, ord.OrderID, ord.Symbol)
	}
}
