package service

import (
	"context"
	"time"

	"tradebot/internal/models"
	"tradebot/internal/monitor"
)

// Таймаут ожидания ответа горутины-владельца состояния
const inspectTimeout = 2 * time.Second

// MonitorService - read-only доступ к runtime состоянию монитора для API.
//
// Карты состояния монитора не синхронизированы, поэтому чтение идёт
// через StateInspector: запрос выполняется в горутине-владельце, наружу
// отдаются независимые копии. HTTP-обработчики никогда не трогают
// живое состояние напрямую.
type MonitorService struct {
	m         *monitor.Monitor
	inspector monitor.StateInspector
	mode      string
}

// MonitorStatus - сводка состояния монитора для UI и health-проверок
type MonitorStatus struct {
	RunID            string `json:"run_id"`
	Mode             string `json:"mode"`
	InstanceID       string `json:"instance_id"`
	TrackedPositions int    `json:"tracked_positions"`
	TrackedOrders    int    `json:"tracked_orders"`
}

// NewMonitorService создает новый экземпляр MonitorService.
//
// inspector - Dispatcher в event-режиме, сам Monitor в poll-режиме.
func NewMonitorService(m *monitor.Monitor, inspector monitor.StateInspector, mode string) *MonitorService {
	return &MonitorService{m: m, inspector: inspector, mode: mode}
}

// GetPositions возвращает копии всех отслеживаемых позиций
func (s *MonitorService) GetPositions(ctx context.Context) ([]models.PositionTrackingState, error) {
	ctx, cancel := context.WithTimeout(ctx, inspectTimeout)
	defer cancel()

	var out []models.PositionTrackingState
	err := s.inspector.Inspect(ctx, func(m *monitor.Monitor) {
		for _, st := range m.GetAllPositions() {
			out = append(out, copyPosition(st))
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetPosition возвращает копию одной позиции (found=false если не отслеживается)
func (s *MonitorService) GetPosition(ctx context.Context, instanceID, symbol string) (models.PositionTrackingState, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, inspectTimeout)
	defer cancel()

	var (
		out   models.PositionTrackingState
		found bool
	)
	err := s.inspector.Inspect(ctx, func(m *monitor.Monitor) {
		if st, ok := m.GetPositionState(instanceID, symbol); ok {
			out = copyPosition(st)
			found = true
		}
	})
	if err != nil {
		return models.PositionTrackingState{}, false, err
	}
	return out, found, nil
}

// GetOrders возвращает копии всех отслеживаемых ордеров
func (s *MonitorService) GetOrders(ctx context.Context) ([]models.OrderTrackingState, error) {
	ctx, cancel := context.WithTimeout(ctx, inspectTimeout)
	defer cancel()

	var out []models.OrderTrackingState
	err := s.inspector.Inspect(ctx, func(m *monitor.Monitor) {
		for _, ord := range m.GetTrackedOrders() {
			out = append(out, copyOrder(ord))
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetStatus возвращает сводку состояния монитора
func (s *MonitorService) GetStatus(ctx context.Context) (MonitorStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, inspectTimeout)
	defer cancel()

	status := MonitorStatus{
		RunID:      s.m.RunID(),
		Mode:       s.mode,
		InstanceID: s.m.InstanceID(),
	}
	err := s.inspector.Inspect(ctx, func(m *monitor.Monitor) {
		status.TrackedPositions = len(m.GetAllPositions())
		status.TrackedOrders = len(m.GetTrackedOrders())
	})
	if err != nil {
		return MonitorStatus{}, err
	}
	return status, nil
}

// copyPosition делает независимую копию состояния позиции
func copyPosition(st *models.PositionTrackingState) models.PositionTrackingState {
	c := *st
	c.Spread = st.Spread.Clone()
	return c
}

// copyOrder делает независимую копию состояния ордера
func copyOrder(ord *models.OrderTrackingState) models.OrderTrackingState {
	c := *ord
	c.Spread = ord.Spread.Clone()
	return c
}
