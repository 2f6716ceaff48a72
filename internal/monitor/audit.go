package monitor

import (
	"time"

	"tradebot/internal/models"
)

// AuditSink - приёмник записей аудита (внешний collaborator)
//
// Контракт fire-and-forget: реализация НЕ возвращает ошибок и не
// блокирует вызывающего. Недоступность хранилища аудита никогда не
// останавливает торговую логику.
type AuditSink interface {
	// RecordAction сохраняет запись о действии монитора
	RecordAction(rec *models.AuditRecord)

	// RecordLog сохраняет строку info/error потока для алертинга
	RecordLog(entry *models.MonitorLog)
}

// audit пишет запись аудита об одном действии
func (m *Monitor) audit(symbol, action, detail string) {
	if m.sink == nil {
		return
	}
	m.sink.RecordAction(&models.AuditRecord{
		Symbol:    symbol,
		Action:    action,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	})
}

// auditLog дублирует ключевые события и все ошибки в лог-поток
//
// runID пустой - берётся run процесса.
func (m *Monitor) auditLog(level, runID, tradeID, symbol, event, message string) {
	if m.sink == nil {
		return
	}
	if runID == "" {
		runID = m.runID
	}
	m.sink.RecordLog(&models.MonitorLog{
		Level:     level,
		RunID:     runID,
		TradeID:   tradeID,
		Symbol:    symbol,
		Component: models.ComponentPositionMonitor,
		Event:     event,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}
