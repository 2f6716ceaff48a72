package handlers

import (
	"net/http"
	"strconv"

	"tradebot/internal/service"
)

// AuditHandler отвечает за чтение журнала аудита
//
// Endpoints:
// - GET /api/v1/audit/records - записи действий монитора
// - GET /api/v1/audit/records?symbol=BTCUSDT - по символу
// - GET /api/v1/audit/logs - строки журнала (ошибки и ключевые события)
// - GET /api/v1/audit/logs?run_id=run-123 - по сессии монитора
//
// Журнал append-only: API его не изменяет, очистка по возрасту
// выполняется фоновой задачей процесса.
type AuditHandler struct {
	auditService service.AuditServiceInterface
}

// NewAuditHandler создает новый AuditHandler с внедрением зависимости
func NewAuditHandler(auditService service.AuditServiceInterface) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// GetRecordsResponse представляет ответ списка записей аудита
type GetRecordsResponse struct {
	Records interface{} `json:"records"`
	Total   int         `json:"total"`
}

// GetRecords возвращает записи аудита (новые сверху)
//
// GET /api/v1/audit/records
//
// Query параметры:
// - symbol (string): фильтр по символу
// - limit (int): количество записей (по умолчанию 100, максимум 500)
//
// HTTP коды:
// - 200 OK: успешно
// - 500 Internal Server Error: ошибка БД
func (h *AuditHandler) GetRecords(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	limit := parseLimit(r)

	var (
		records interface{}
		total   int
	)
	if symbol != "" {
		recs, err := h.auditService.GetRecordsBySymbol(symbol, limit)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Failed to get audit records: "+err.Error())
			return
		}
		records, total = recs, len(recs)
	} else {
		recs, err := h.auditService.GetRecentRecords(limit)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Failed to get audit records: "+err.Error())
			return
		}
		records, total = recs, len(recs)
	}

	respondWithJSON(w, http.StatusOK, GetRecordsResponse{
		Records: records,
		Total:   total,
	})
}

// GetLogsResponse представляет ответ списка строк журнала
type GetLogsResponse struct {
	Logs  interface{} `json:"logs"`
	Total int         `json:"total"`
}

// GetLogs возвращает строки журнала монитора
//
// GET /api/v1/audit/logs
//
// Query параметры:
// - run_id (string): фильтр по сессии монитора
// - limit (int): количество строк (по умолчанию 100, максимум 500)
//
// HTTP коды:
// - 200 OK: успешно
// - 500 Internal Server Error: ошибка БД
func (h *AuditHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run_id")
	limit := parseLimit(r)

	var (
		logs  interface{}
		total int
	)
	if runID != "" {
		entries, err := h.auditService.GetLogsByRunID(runID, limit)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Failed to get monitor logs: "+err.Error())
			return
		}
		logs, total = entries, len(entries)
	} else {
		entries, err := h.auditService.GetRecentLogs(limit)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Failed to get monitor logs: "+err.Error())
			return
		}
		logs, total = entries, len(entries)
	}

	respondWithJSON(w, http.StatusOK, GetLogsResponse{
		Logs:  logs,
		Total: total,
	})
}

// parseLimit читает limit из query (0 = дефолт сервиса)
func parseLimit(r *http.Request) int {
	limitParam := r.URL.Query().Get("limit")
	if limitParam == "" {
		return 0
	}
	limit, err := strconv.Atoi(limitParam)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}
