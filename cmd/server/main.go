package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradebot/internal/api"
	"tradebot/internal/config"
	"tradebot/internal/exchange"
	"tradebot/internal/monitor"
	"tradebot/internal/repository"
	"tradebot/internal/service"
	"tradebot/internal/websocket"
	"tradebot/pkg/crypto"
	"tradebot/pkg/utils"

	_ "github.com/lib/pq"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Глобальный логгер до любых компонентов
	logger := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	defer logger.Sync()

	logger.Info("starting position monitor",
		utils.String("instance_id", cfg.Monitor.InstanceID),
		utils.String("mode", cfg.Monitor.Mode),
	)

	// Расшифровка API ключей биржи
	apiKey, err := crypto.DecryptWithKeyString(cfg.Exchange.APIKeyEncrypted, cfg.Security.EncryptionKey)
	if err != nil {
		logger.Fatal("failed to decrypt exchange API key", utils.Err(err))
	}
	apiSecret, err := crypto.DecryptWithKeyString(cfg.Exchange.APISecretEncrypted, cfg.Security.EncryptionKey)
	if err != nil {
		logger.Fatal("failed to decrypt exchange API secret", utils.Err(err))
	}

	// Инициализация базы данных (audit sink)
	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", utils.Err(err))
	}
	defer db.Close()

	logger.Info("connected to database", utils.String("dsn", cfg.Database.DSNWithoutPassword()))

	// Журнал аудита: репозиторий + фоновый writer
	auditRepo := repository.NewAuditRepository(db)
	auditService := service.NewAuditService(auditRepo, logger)

	// WebSocket hub для real-time обновлений UI
	hub := websocket.NewHub()
	go hub.Run()
	auditService.SetWebSocketHub(hub)
	auditService.Start()

	// REST клиент биржи
	bybit := exchange.NewBybit(exchange.BybitConfig{
		APIKey:             apiKey,
		APISecret:          apiSecret,
		BaseURL:            cfg.Exchange.RESTBaseURL,
		RateLimitPerSecond: cfg.Exchange.RateLimitPerSecond,
		MaxRetries:         cfg.Exchange.MaxRetries,
		RetryBackoff:       cfg.Exchange.RetryBackoff,
	}, logger)

	// Монитор позиций
	m := monitor.New(cfg.Monitor, bybit, auditService, logger)
	m.SetLister(bybit)

	// Источник push-событий и владелец состояния зависят от режима
	var (
		inspector  monitor.StateInspector
		feed       *exchange.PrivateFeed
		dispatcher *monitor.Dispatcher
	)

	switch cfg.Monitor.Mode {
	case config.ModeEvent:
		dispatcher = monitor.NewDispatcher(m, 1024, time.Second)
		dispatcher.Start()
		inspector = dispatcher

		instanceID := cfg.Monitor.InstanceID
		feed = exchange.NewPrivateFeed(exchange.FeedConfig{
			APIKey:    apiKey,
			APISecret: apiSecret,
			WSURL:     cfg.Exchange.WSPrivateURL,
			Reconnect: exchange.WSReconnectConfig{
				InitialDelay:   cfg.Exchange.WSReconnectDelay,
				MaxDelay:       16 * cfg.Exchange.WSReconnectDelay,
				MaxRetries:     0, // приватный фид переподключается бесконечно
				ConnectTimeout: 10 * time.Second,
				PingInterval:   cfg.Exchange.WSPingInterval,
				PongTimeout:    cfg.Exchange.WSReadTimeout,
			},
		}, logger)
		feed.OnPosition(func(ps *exchange.PositionState) {
			dispatcher.EnqueuePosition(instanceID, ps)
		})
		feed.OnOrder(func(os *exchange.OrderState) {
			dispatcher.EnqueueOrder(instanceID, os)
		})
		feed.OnExecution(func(er *exchange.ExecutionRecord) {
			dispatcher.EnqueueExecution(instanceID, er)
		})

		if err := feed.Start(); err != nil {
			logger.Fatal("failed to start private feed", utils.Err(err))
		}

	case config.ModePoll:
		inspector = m
		if err := m.Start(); err != nil {
			logger.Fatal("failed to start poll loop", utils.Err(err))
		}
	}

	monitorService := service.NewMonitorService(m, inspector, cfg.Monitor.Mode)

	// Успешные действия монитора транслируются в UI
	m.SetCallbacks(monitor.Callbacks{
		OnSLTightened: func(instanceID, symbol string, newSL float64) {
			broadcastPositions(context.Background(), monitorService, hub)
		},
		OnPositionClosed: func(instanceID, symbol string) {
			broadcastPositions(context.Background(), monitorService, hub)
		},
		OnOrderCancelled: func(instanceID, orderID, symbol string) {
			broadcastOrders(context.Background(), monitorService, hub)
		},
	})

	// Фоновая очистка журнала аудита
	cleanupStop := make(chan struct{})
	go auditCleanupLoop(auditService, logger, cleanupStop)

	// Настройка зависимостей для API
	deps := &api.Dependencies{
		MonitorService: monitorService,
		AuditService:   auditService,
		Hub:            hub,
		DebugTokenHash: cfg.Security.DebugTokenHash,
	}

	// Настройка HTTP роутера
	router := api.SetupRoutes(deps)

	// HTTP сервер
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск сервера в отдельной горутине
	go func() {
		logger.Info("starting HTTP server", utils.String("addr", server.Addr))
		if cfg.Server.UseHTTPS {
			if err := server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile); err != nil && err != http.ErrServerClosed {
				logger.Fatal("server failed", utils.Err(err))
			}
		} else {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatal("server failed", utils.Err(err))
			}
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	close(cleanupStop)

	// Сначала источники событий, затем владелец состояния
	if feed != nil {
		if err := feed.Close(); err != nil {
			logger.Warn("error closing private feed", utils.Err(err))
		}
	}
	if dispatcher != nil {
		if err := dispatcher.Stop(); err != nil {
			logger.Warn("error stopping dispatcher", utils.Err(err))
		}
	}
	if cfg.Monitor.Mode == config.ModePoll {
		if err := m.Stop(); err != nil {
			logger.Warn("error stopping poll loop", utils.Err(err))
		}
	}

	// Журнал дописывает буфер перед выходом
	auditService.Stop()
	hub.Stop()
	exchange.CloseGlobalClient()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", utils.Err(err))
	}

	logger.Info("server exited")
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Проверка подключения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// broadcastPositions отправляет снимок позиций всем WS клиентам
func broadcastPositions(ctx context.Context, svc *service.MonitorService, hub *websocket.Hub) {
	positions, err := svc.GetPositions(ctx)
	if err != nil {
		return
	}
	hub.BroadcastPositions(positions)
}

// broadcastOrders отправляет снимок ордеров всем WS клиентам
func broadcastOrders(ctx context.Context, svc *service.MonitorService, hub *websocket.Hub) {
	orders, err := svc.GetOrders(ctx)
	if err != nil {
		return
	}
	hub.BroadcastOrders(orders)
}

// auditCleanupLoop раз в час удаляет записи журнала старше 30 дней
func auditCleanupLoop(svc *service.AuditService, logger *utils.Logger, stop <-chan struct{}) {
	const retention = 30 * 24 * time.Hour

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			removed, err := svc.CleanupOlderThan(time.Now().UTC().Add(-retention))
			if err != nil {
				logger.Warn("audit cleanup failed", utils.Err(err))
				continue
			}
			if removed > 0 {
				logger.Info("audit cleanup", utils.Int64("removed", removed))
			}
		}
	}
}
