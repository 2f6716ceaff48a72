package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"tradebot/internal/service"
)

// MonitorHandler отвечает за чтение runtime состояния монитора
//
// Endpoints:
// - GET /api/v1/status - сводка состояния монитора
// - GET /api/v1/positions - все отслеживаемые позиции
// - GET /api/v1/positions/{instance}/{symbol} - одна позиция
// - GET /api/v1/orders - все отслеживаемые ордера
//
// Все операции read-only: управление позициями идёт только через
// биржу и стратегии, API в торговые решения не вмешивается.
type MonitorHandler struct {
	monitorService service.MonitorServiceInterface
}

// NewMonitorHandler создает новый MonitorHandler с внедрением зависимости
func NewMonitorHandler(monitorService service.MonitorServiceInterface) *MonitorHandler {
	return &MonitorHandler{monitorService: monitorService}
}

// GetStatus возвращает сводку состояния монитора
//
// GET /api/v1/status
//
// HTTP коды:
// - 200 OK: успешно
// - 500 Internal Server Error: владелец состояния не ответил
func (h *MonitorHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.monitorService.GetStatus(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get status: "+err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, status)
}

// GetPositionsResponse представляет ответ списка позиций
type GetPositionsResponse struct {
	Positions interface{} `json:"positions"`
	Total     int         `json:"total"`
}

// GetPositions возвращает все отслеживаемые позиции
//
// GET /api/v1/positions
//
// HTTP коды:
// - 200 OK: успешно, возвращает массив позиций
// - 500 Internal Server Error: ошибка сервера
func (h *MonitorHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.monitorService.GetPositions(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get positions: "+err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, GetPositionsResponse{
		Positions: positions,
		Total:     len(positions),
	})
}

// GetPosition возвращает одну отслеживаемую позицию
//
// GET /api/v1/positions/{instance}/{symbol}
//
// HTTP коды:
// - 200 OK: позиция найдена
// - 404 Not Found: позиция не отслеживается
// - 500 Internal Server Error: ошибка сервера
func (h *MonitorHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	instanceID := vars["instance"]
	symbol := vars["symbol"]

	pos, found, err := h.monitorService.GetPosition(r.Context(), instanceID, symbol)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get position: "+err.Error())
		return
	}
	if !found {
		respondWithError(w, http.StatusNotFound, "Position not tracked")
		return
	}
	respondWithJSON(w, http.StatusOK, pos)
}

// GetOrdersResponse представляет ответ списка ордеров
type GetOrdersResponse struct {
	Orders interface{} `json:"orders"`
	Total  int         `json:"total"`
}

// GetOrders возвращает все отслеживаемые ордера
//
// GET /api/v1/orders
//
// HTTP коды:
// - 200 OK: успешно, возвращает массив ордеров
// - 500 Internal Server Error: ошибка сервера
func (h *MonitorHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.monitorService.GetOrders(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get orders: "+err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, GetOrdersResponse{
		Orders: orders,
		Total:  len(orders),
	})
}
