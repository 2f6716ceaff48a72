package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики монитора позиций
// ============================================================
//
// Использование:
// - Grafana дашборды (частота подтяжек, отказы биржи, recovery)
// - Alertmanager: рост tighten_failures_total и audit_drops_total -
//   повод посмотреть в журнал аудита

// ============ Счётчики действий ============

// TighteningsApplied - успешные подтяжки стопа по видам проверки
var TighteningsApplied = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "monitor",
		Name:      "tightenings_applied_total",
		Help:      "Successful stop tightenings by check kind",
	},
	[]string{"kind"}, // rr_step, tp_proximity, age
)

// TightenFailures - отказы биржи на перенос стопа
var TightenFailures = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "monitor",
		Name:      "tighten_failures_total",
		Help:      "Rejected setTradingStop calls by check kind",
	},
	[]string{"kind"},
)

// OrdersCancelled - отмены ордеров по возрасту
var OrdersCancelled = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "monitor",
		Name:      "orders_cancelled_total",
		Help:      "Age-based order cancellations by outcome",
	},
	[]string{"outcome"}, // success, failure
)

// PositionsClosed - закрытия позиций
var PositionsClosed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "monitor",
		Name:      "positions_closed_total",
		Help:      "Position close attempts by outcome",
	},
	[]string{"outcome"}, // success, failure
)

// PartialFillRecoveries - сработавшие recovery частичного заполнения
var PartialFillRecoveries = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "monitor",
		Name:      "partial_fill_recoveries_total",
		Help:      "Partial fill timeout recoveries performed",
	},
)

// StrategySyncs - синхронизации уровней со стратегией
var StrategySyncs = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "monitor",
		Name:      "strategy_syncs_total",
		Help:      "Strategy level syncs pushed to the exchange by outcome",
	},
	[]string{"outcome"},
)

// StrategyExits - выходы по сигналу стратегии
var StrategyExits = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "monitor",
		Name:      "strategy_exits_total",
		Help:      "Exits triggered by the strategy collaborator",
	},
)

// EventsProcessed - обработанные события фида по типам
var EventsProcessed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "monitor",
		Name:      "events_processed_total",
		Help:      "Feed events processed by type",
	},
	[]string{"type"}, // position, order, execution
)

// ============ Метрики состояния ============

// TrackedPositions - текущее число отслеживаемых позиций
var TrackedPositions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "tradebot",
		Subsystem: "monitor",
		Name:      "tracked_positions",
		Help:      "Current number of tracked positions",
	},
)

// TrackedOrders - текущее число отслеживаемых ордеров
var TrackedOrders = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "tradebot",
		Subsystem: "monitor",
		Name:      "tracked_orders",
		Help:      "Current number of tracked orders",
	},
)

// ============ Метрики производительности ============

// SweepDuration - длительность одного прохода периодических проверок
var SweepDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "tradebot",
		Subsystem: "monitor",
		Name:      "sweep_duration_seconds",
		Help:      "Duration of one aging plus partial fill sweep",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	},
)

// BufferOverflows - сброшенные события при переполнении буферов
var BufferOverflows = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "monitor",
		Name:      "buffer_overflows_total",
		Help:      "Events dropped on full channel buffers",
	},
	[]string{"buffer"}, // dispatcher, audit, notification
)

// ============ Вспомогательные функции ============

// RecordTightening записывает исход попытки подтяжки
func RecordTightening(kind string, success bool) {
	if success {
		TighteningsApplied.WithLabelValues(kind).Inc()
	} else {
		TightenFailures.WithLabelValues(kind).Inc()
	}
}

// RecordCancellation записывает исход отмены ордера по возрасту
func RecordCancellation(success bool) {
	OrdersCancelled.WithLabelValues(outcome(success)).Inc()
}

// RecordClose записывает исход закрытия позиции
func RecordClose(success bool) {
	PositionsClosed.WithLabelValues(outcome(success)).Inc()
}

// RecordStrategySync записывает исход синхронизации уровней
func RecordStrategySync(success bool) {
	StrategySyncs.WithLabelValues(outcome(success)).Inc()
}

// RecordBufferOverflow записывает сброс события при переполнении буфера
func RecordBufferOverflow(bufferName string) {
	BufferOverflows.WithLabelValues(bufferName).Inc()
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
