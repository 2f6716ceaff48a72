package service

import (
	"context"
	"time"

	"tradebot/internal/models"
	"tradebot/internal/repository"
)

// AuditStoreInterface определяет интерфейс хранилища аудита
type AuditStoreInterface interface {
	CreateRecord(rec *models.AuditRecord) error
	GetRecentRecords(limit int) ([]*models.AuditRecord, error)
	GetRecordsBySymbol(symbol string, limit int) ([]*models.AuditRecord, error)
	GetRecordByID(id int64) (*models.AuditRecord, error)
	DeleteRecordsOlderThan(timestamp time.Time) (int64, error)
	CountRecords() (int, error)
	CreateLog(entry *models.MonitorLog) error
	GetRecentLogs(limit int) ([]*models.MonitorLog, error)
	GetLogsByRunID(runID string, limit int) ([]*models.MonitorLog, error)
	DeleteLogsOlderThan(timestamp time.Time) (int64, error)
}

// Проверяем, что реальный репозиторий реализует интерфейс
var _ AuditStoreInterface = (*repository.AuditRepository)(nil)

// WebSocketBroadcaster - интерфейс для отправки WebSocket сообщений
//
// Позволяет избежать циклических зависимостей между пакетами
// и упрощает тестирование (можно подставить mock)
type WebSocketBroadcaster interface {
	BroadcastNotification(notif *models.Notification)
}

// ============ Интерфейсы сервисов для Dependency Injection ============

// AuditServiceInterface определяет интерфейс сервиса аудита
type AuditServiceInterface interface {
	GetRecentRecords(limit int) ([]*models.AuditRecord, error)
	GetRecordsBySymbol(symbol string, limit int) ([]*models.AuditRecord, error)
	GetRecentLogs(limit int) ([]*models.MonitorLog, error)
	GetLogsByRunID(runID string, limit int) ([]*models.MonitorLog, error)
	CleanupOlderThan(cutoff time.Time) (int64, error)
}

var _ AuditServiceInterface = (*AuditService)(nil)

// MonitorServiceInterface определяет интерфейс read-only доступа к монитору
type MonitorServiceInterface interface {
	GetPositions(ctx context.Context) ([]models.PositionTrackingState, error)
	GetPosition(ctx context.Context, instanceID, symbol string) (models.PositionTrackingState, bool, error)
	GetOrders(ctx context.Context) ([]models.OrderTrackingState, error)
	GetStatus(ctx context.Context) (MonitorStatus, error)
}

var _ MonitorServiceInterface = (*MonitorService)(nil)
