package models

import "time"

// Notification представляет уведомление о событии монитора
//
// Отправляется в WebSocket hub для real-time отображения на frontend.
type Notification struct {
	Timestamp time.Time              `json:"timestamp"`
	Type      string                 `json:"type"`     // TIGHTEN, SYNC, CANCEL, CLOSE, RECOVERY, ERROR
	Severity  string                 `json:"severity"` // info, warn, error
	Symbol    string                 `json:"symbol,omitempty"`
	Message   string                 `json:"message"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
}

// Типы уведомлений
const (
	NotificationTypeTighten  = "TIGHTEN"  // стоп подтянут
	NotificationTypeSync     = "SYNC"     // уровни синхронизированы со стратегией
	NotificationTypeCancel   = "CANCEL"   // ордер отменён по возрасту
	NotificationTypeClose    = "CLOSE"    // позиция закрыта
	NotificationTypeRecovery = "RECOVERY" // partial-fill recovery
	NotificationTypeError    = "ERROR"    // ошибка вызова биржи
)
