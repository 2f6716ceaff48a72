package models

import "time"

// AuditRecord - одна запись аудита действия монитора
//
// Пишется fire-and-forget на каждое изменяющее состояние действие
// (подтяжка, синхронизация, отмена, закрытие, шаг recovery).
type AuditRecord struct {
	ID        int64     `json:"id" db:"id"`
	Symbol    string    `json:"symbol" db:"symbol"`
	Action    string    `json:"action" db:"action"`
	Detail    string    `json:"detail" db:"detail"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}

// Действия аудита
const (
	ActionSLTightened        = "sl_tightened"          // шаг RR-лестницы применён
	ActionTPProximity        = "tp_proximity_trailing" // включён trailing у TP
	ActionAgeTightened       = "age_tightened"         // подтяжка отстающей позиции
	ActionTightenFailed      = "tighten_failed"        // биржа отклонила новый стоп
	ActionStrategyStopSynced = "strategy_stop_synced"  // SL синхронизирован с уровнем стратегии
	ActionStrategyTPSynced   = "strategy_tp_synced"    // TP синхронизирован с уровнем стратегии
	ActionSyncFailed         = "sync_failed"
	ActionPositionClosed     = "position_closed"
	ActionCloseFailed        = "close_failed"
	ActionOrderCancelled     = "order_cancelled" // отмена по возрасту
	ActionCancelFailed       = "cancel_failed"
	ActionSpreadBothFilled   = "spread_both_filled"
	ActionPartialFillClose   = "partial_fill_close"  // recovery: закрытие заполненной ноги
	ActionPartialFillCancel  = "partial_fill_cancel" // recovery: отмена незаполненной ноги
	ActionStrategyExit       = "strategy_exit"
)

// MonitorLog - строка info/error потока монитора
//
// Дублирует записи аудита для ошибок и ключевых событий жизненного цикла
// (для алертинга). Component всегда "position_monitor".
type MonitorLog struct {
	ID        int64     `json:"id" db:"id"`
	Level     string    `json:"level" db:"level"` // info, warn, error
	RunID     string    `json:"run_id" db:"run_id"`
	TradeID   string    `json:"trade_id,omitempty" db:"trade_id"`
	Symbol    string    `json:"symbol" db:"symbol"`
	Component string    `json:"component" db:"component"`
	Event     string    `json:"event" db:"event"`
	Message   string    `json:"message" db:"message"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}

// Уровни важности
const (
	SeverityInfo  = "info"
	SeverityWarn  = "warn"
	SeverityError = "error"
)

// ComponentPositionMonitor - имя компонента в строках MonitorLog
const ComponentPositionMonitor = "position_monitor"
