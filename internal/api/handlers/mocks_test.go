package handlers

import (
	"context"
	"errors"
	"time"

	"tradebot/internal/models"
	"tradebot/internal/service"
)

// ============ Mock MonitorService ============

// MockMonitorService - in-memory реализация для тестов handlers
type MockMonitorService struct {
	positions []models.PositionTrackingState
	orders    []models.OrderTrackingState
	status    service.MonitorStatus

	failWith error
}

func NewMockMonitorService() *MockMonitorService {
	return &MockMonitorService{
		status: service.MonitorStatus{
			RunID:      "run-1",
			Mode:       "event",
			InstanceID: "inst-1",
		},
	}
}

func (m *MockMonitorService) AddPosition(instanceID, symbol string) {
	m.positions = append(m.positions, models.PositionTrackingState{
		InstanceID: instanceID,
		Symbol:     symbol,
		Side:       models.SideLong,
		EntryPrice: 100,
		OriginalSL: 90,
		CurrentSL:  90,
		TakeProfit: 200,
		EntryTime:  time.Now().UTC(),
	})
	m.status.TrackedPositions = len(m.positions)
}

func (m *MockMonitorService) AddOrder(orderID, symbol string) {
	m.orders = append(m.orders, models.OrderTrackingState{
		OrderID:    orderID,
		InstanceID: "inst-1",
		Symbol:     symbol,
		Side:       models.OrderSideBuy,
		Status:     models.OrderStatusNew,
		CreatedAt:  time.Now().UTC(),
	})
	m.status.TrackedOrders = len(m.orders)
}

func (m *MockMonitorService) FailWith(msg string) {
	m.failWith = errors.New(msg)
}

func (m *MockMonitorService) GetPositions(ctx context.Context) ([]models.PositionTrackingState, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	return m.positions, nil
}

func (m *MockMonitorService) GetPosition(ctx context.Context, instanceID, symbol string) (models.PositionTrackingState, bool, error) {
	if m.failWith != nil {
		return models.PositionTrackingState{}, false, m.failWith
	}
	for _, pos := range m.positions {
		if pos.InstanceID == instanceID && pos.Symbol == symbol {
			return pos, true, nil
		}
	}
	return models.PositionTrackingState{}, false, nil
}

func (m *MockMonitorService) GetOrders(ctx context.Context) ([]models.OrderTrackingState, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	return m.orders, nil
}

func (m *MockMonitorService) GetStatus(ctx context.Context) (service.MonitorStatus, error) {
	if m.failWith != nil {
		return service.MonitorStatus{}, m.failWith
	}
	return m.status, nil
}

var _ service.MonitorServiceInterface = (*MockMonitorService)(nil)

// ============ Mock AuditService ============

// MockAuditService - in-memory реализация журнала аудита для тестов
type MockAuditService struct {
	records []*models.AuditRecord
	logs    []*models.MonitorLog

	failWith error
}

func NewMockAuditService() *MockAuditService {
	return &MockAuditService{}
}

func (m *MockAuditService) AddRecord(symbol, action, detail string) {
	m.records = append(m.records, &models.AuditRecord{
		ID:        int64(len(m.records) + 1),
		Symbol:    symbol,
		Action:    action,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	})
}

func (m *MockAuditService) AddLog(runID, symbol, event string) {
	m.logs = append(m.logs, &models.MonitorLog{
		ID:        int64(len(m.logs) + 1),
		Level:     models.SeverityInfo,
		RunID:     runID,
		Symbol:    symbol,
		Component: models.ComponentPositionMonitor,
		Event:     event,
		Timestamp: time.Now().UTC(),
	})
}

func (m *MockAuditService) FailWith(msg string) {
	m.failWith = errors.New(msg)
}

func (m *MockAuditService) GetRecentRecords(limit int) ([]*models.AuditRecord, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	if limit > 0 && limit < len(m.records) {
		return m.records[:limit], nil
	}
	return m.records, nil
}

func (m *MockAuditService) GetRecordsBySymbol(symbol string, limit int) ([]*models.AuditRecord, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []*models.AuditRecord
	for _, rec := range m.records {
		if rec.Symbol == symbol {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *MockAuditService) GetRecentLogs(limit int) ([]*models.MonitorLog, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	return m.logs, nil
}

func (m *MockAuditService) GetLogsByRunID(runID string, limit int) ([]*models.MonitorLog, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []*models.MonitorLog
	for _, entry := range m.logs {
		if entry.RunID == runID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (m *MockAuditService) CleanupOlderThan(cutoff time.Time) (int64, error) {
	if m.failWith != nil {
		return 0, m.failWith
	}
	return int64(len(m.records) + len(m.logs)), nil
}

var _ service.AuditServiceInterface = (*MockAuditService)(nil)
