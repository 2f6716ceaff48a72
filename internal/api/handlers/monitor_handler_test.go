package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
)

// ============ MonitorHandler Tests ============

func TestMonitorHandler_GetStatus(t *testing.T) {
	t.Run("returns monitor status", func(t *testing.T) {
		mockSvc := NewMockMonitorService()
		mockSvc.AddPosition("inst-1", "BTCUSDT")
		handler := NewMonitorHandler(mockSvc)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
		w := httptest.NewRecorder()

		handler.GetStatus(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response struct {
			RunID            string `json:"run_id"`
			Mode             string `json:"mode"`
			TrackedPositions int    `json:"tracked_positions"`
		}
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response.RunID != "run-1" {
			t.Errorf("run_id = %q, want run-1", response.RunID)
		}
		if response.TrackedPositions != 1 {
			t.Errorf("tracked_positions = %d, want 1", response.TrackedPositions)
		}
	})

	t.Run("returns 500 on service error", func(t *testing.T) {
		mockSvc := NewMockMonitorService()
		mockSvc.FailWith("state owner did not respond")
		handler := NewMonitorHandler(mockSvc)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
		w := httptest.NewRecorder()

		handler.GetStatus(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
	})
}

func TestMonitorHandler_GetPositions(t *testing.T) {
	t.Run("returns empty list when nothing tracked", func(t *testing.T) {
		mockSvc := NewMockMonitorService()
		handler := NewMonitorHandler(mockSvc)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/positions", nil)
		w := httptest.NewRecorder()

		handler.GetPositions(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response GetPositionsResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response.Total != 0 {
			t.Errorf("expected total 0, got %d", response.Total)
		}
	})

	t.Run("returns tracked positions", func(t *testing.T) {
		mockSvc := NewMockMonitorService()
		mockSvc.AddPosition("inst-1", "BTCUSDT")
		mockSvc.AddPosition("inst-1", "ETHUSDT")
		handler := NewMonitorHandler(mockSvc)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/positions", nil)
		w := httptest.NewRecorder()

		handler.GetPositions(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response GetPositionsResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response.Total != 2 {
			t.Errorf("expected total 2, got %d", response.Total)
		}
	})
}

func TestMonitorHandler_GetPosition(t *testing.T) {
	newRequest := func(instance, symbol string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/positions/"+instance+"/"+symbol, nil)
		return mux.SetURLVars(req, map[string]string{
			"instance": instance,
			"symbol":   symbol,
		})
	}

	t.Run("returns tracked position", func(t *testing.T) {
		mockSvc := NewMockMonitorService()
		mockSvc.AddPosition("inst-1", "BTCUSDT")
		handler := NewMonitorHandler(mockSvc)

		w := httptest.NewRecorder()
		handler.GetPosition(w, newRequest("inst-1", "BTCUSDT"))

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response struct {
			Symbol    string  `json:"symbol"`
			CurrentSL float64 `json:"current_sl"`
		}
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response.Symbol != "BTCUSDT" || response.CurrentSL != 90 {
			t.Errorf("unexpected response: %+v", response)
		}
	})

	t.Run("returns 404 for unknown position", func(t *testing.T) {
		mockSvc := NewMockMonitorService()
		handler := NewMonitorHandler(mockSvc)

		w := httptest.NewRecorder()
		handler.GetPosition(w, newRequest("inst-1", "XRPUSDT"))

		if w.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
		}
	})
}

func TestMonitorHandler_GetOrders(t *testing.T) {
	t.Run("returns tracked orders", func(t *testing.T) {
		mockSvc := NewMockMonitorService()
		mockSvc.AddOrder("o-1", "BTCUSDT")
		handler := NewMonitorHandler(mockSvc)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
		w := httptest.NewRecorder()

		handler.GetOrders(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response GetOrdersResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response.Total != 1 {
			t.Errorf("expected total 1, got %d", response.Total)
		}
	})

	t.Run("returns 500 on service error", func(t *testing.T) {
		mockSvc := NewMockMonitorService()
		mockSvc.FailWith("database gone")
		handler := NewMonitorHandler(mockSvc)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
		w := httptest.NewRecorder()

		handler.GetOrders(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
	})
}
