package api

import (
	"net/http"
	"net/http/pprof"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradebot/internal/api/handlers"
	"tradebot/internal/api/middleware"
	"tradebot/internal/service"
	"tradebot/internal/websocket"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	MonitorService service.MonitorServiceInterface
	AuditService   service.AuditServiceInterface
	Hub            *websocket.Hub

	// bcrypt-хеш токена доступа к /debug (пусто = выключено)
	DebugTokenHash string
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── GET /status - сводка состояния монитора
//	├── GET /positions - отслеживаемые позиции
//	├── GET /positions/{instance}/{symbol} - одна позиция
//	├── GET /orders - отслеживаемые ордера
//	└── /audit/
//	    ├── GET /records - записи действий монитора
//	    └── GET /logs - журнал ошибок и событий
//
// /ws/stream - WebSocket для real-time обновлений
// /metrics - Prometheus метрики
// /health - liveness проверка
// /debug/pprof/* - профилировщик (за DebugAuth)
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	// Глобальные middleware (применяются ко всем маршрутам)
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)

	// Создание handlers с внедрением зависимостей
	var monitorHandler *handlers.MonitorHandler
	if deps != nil && deps.MonitorService != nil {
		monitorHandler = handlers.NewMonitorHandler(deps.MonitorService)
	}

	var auditHandler *handlers.AuditHandler
	if deps != nil && deps.AuditService != nil {
		auditHandler = handlers.NewAuditHandler(deps.AuditService)
	}

	// API v1 routes
	apiV1 := router.PathPrefix("/api/v1").Subrouter()

	if monitorHandler != nil {
		apiV1.HandleFunc("/status", monitorHandler.GetStatus).Methods("GET")
		apiV1.HandleFunc("/positions", monitorHandler.GetPositions).Methods("GET")
		apiV1.HandleFunc("/positions/{instance}/{symbol}", monitorHandler.GetPosition).Methods("GET")
		apiV1.HandleFunc("/orders", monitorHandler.GetOrders).Methods("GET")
	}

	if auditHandler != nil {
		apiV1.HandleFunc("/audit/records", auditHandler.GetRecords).Methods("GET")
		apiV1.HandleFunc("/audit/logs", auditHandler.GetLogs).Methods("GET")
	}

	// WebSocket route
	if deps != nil && deps.Hub != nil {
		hub := deps.Hub
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(hub, w, r)
		})
	}

	// Prometheus метрики
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	// pprof за basic auth
	var debugHash string
	if deps != nil {
		debugHash = deps.DebugTokenHash
	}
	debug := router.PathPrefix("/debug/pprof").Subrouter()
	debug.Use(middleware.DebugAuth(debugHash))
	debug.HandleFunc("/cmdline", pprof.Cmdline)
	debug.HandleFunc("/profile", pprof.Profile)
	debug.HandleFunc("/symbol", pprof.Symbol)
	debug.HandleFunc("/trace", pprof.Trace)
	debug.PathPrefix("/").HandlerFunc(pprof.Index)

	return router
}
