package service

import (
	"sync"
	"time"

	"tradebot/internal/models"
	"tradebot/internal/monitor"
	"tradebot/pkg/utils"
)

// Размеры буферов очереди аудита
const (
	defaultRecordBuffer = 512
	defaultLogBuffer    = 512
)

// AuditService - асинхронный приёмник записей аудита монитора.
//
// Реализует monitor.AuditSink: RecordAction и RecordLog не блокируют
// вызывающего и не возвращают ошибок. Записи ставятся в буферизованный
// канал и сохраняются фоновой горутиной; при переполнении буфера запись
// сбрасывается с инкрементом метрики audit overflow. Недоступность БД
// никогда не останавливает торговую логику.
//
// После сохранения значимые записи транслируются в WebSocket hub
// как уведомления для frontend.
type AuditService struct {
	store AuditStoreInterface
	wsHub WebSocketBroadcaster
	log   *utils.Logger

	records chan *models.AuditRecord
	logs    chan *models.MonitorLog

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Проверяем контракт приёмника аудита
var _ monitor.AuditSink = (*AuditService)(nil)

// NewAuditService создает новый экземпляр AuditService
func NewAuditService(store AuditStoreInterface, logger *utils.Logger) *AuditService {
	if logger == nil {
		logger = utils.GetGlobalLogger()
	}
	return &AuditService{
		store:   store,
		log:     logger.WithComponent("audit_service"),
		records: make(chan *models.AuditRecord, defaultRecordBuffer),
		logs:    make(chan *models.MonitorLog, defaultLogBuffer),
	}
}

// SetWebSocketHub устанавливает WebSocket hub для broadcast уведомлений.
//
// Вызывается после инициализации Hub в main.go.
func (s *AuditService) SetWebSocketHub(hub WebSocketBroadcaster) {
	s.wsHub = hub
}

// Start запускает фоновую горутину записи. Повторный вызов - no-op.
func (s *AuditService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.writerLoop(s.stopCh, s.doneCh)
}

// Stop останавливает горутину записи, дописав накопленный буфер
func (s *AuditService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)
	<-doneCh
}

// RecordAction ставит запись о действии монитора в очередь на сохранение.
// Не блокирует: при переполнении буфера запись сбрасывается.
func (s *AuditService) RecordAction(rec *models.AuditRecord) {
	if rec == nil {
		return
	}
	select {
	case s.records <- rec:
	default:
		monitor.RecordBufferOverflow("audit")
		s.log.Warn("audit record dropped, buffer full",
			utils.Symbol(rec.Symbol),
			utils.Action(rec.Action))
	}
}

// RecordLog ставит строку журнала монитора в очередь на сохранение
func (s *AuditService) RecordLog(entry *models.MonitorLog) {
	if entry == nil {
		return
	}
	select {
	case s.logs <- entry:
	default:
		monitor.RecordBufferOverflow("audit")
		s.log.Warn("monitor log dropped, buffer full",
			utils.Symbol(entry.Symbol),
			utils.String("event", entry.Event))
	}
}

// writerLoop сохраняет записи из очередей до остановки,
// затем дописывает остаток буферов
func (s *AuditService) writerLoop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	for {
		select {
		case <-stopCh:
			s.drain()
			return
		case rec := <-s.records:
			s.persistRecord(rec)
		case entry := <-s.logs:
			s.persistLog(entry)
		}
	}
}

// drain дописывает всё, что осталось в буферах на момент остановки
func (s *AuditService) drain() {
	for {
		select {
		case rec := <-s.records:
			s.persistRecord(rec)
		case entry := <-s.logs:
			s.persistLog(entry)
		default:
			return
		}
	}
}

func (s *AuditService) persistRecord(rec *models.AuditRecord) {
	if err := s.store.CreateRecord(rec); err != nil {
		// Ошибка БД не возвращается наверх: контракт fire-and-forget
		s.log.Error("failed to persist audit record",
			utils.Symbol(rec.Symbol),
			utils.Action(rec.Action),
			utils.Err(err))
	}

	// Broadcast в UI идёт независимо от исхода записи в БД
	if s.wsHub != nil {
		s.wsHub.BroadcastNotification(notificationFor(rec))
	}
}

func (s *AuditService) persistLog(entry *models.MonitorLog) {
	if err := s.store.CreateLog(entry); err != nil {
		s.log.Error("failed to persist monitor log",
			utils.Symbol(entry.Symbol),
			utils.String("event", entry.Event),
			utils.Err(err))
	}
}

// notificationFor строит уведомление для frontend из записи аудита
func notificationFor(rec *models.AuditRecord) *models.Notification {
	notifType, severity := classifyAction(rec.Action)
	return &models.Notification{
		Timestamp: rec.Timestamp,
		Type:      notifType,
		Severity:  severity,
		Symbol:    rec.Symbol,
		Message:   rec.Detail,
		Meta: map[string]interface{}{
			"action": rec.Action,
		},
	}
}

// classifyAction сопоставляет действию монитора тип и важность уведомления
func classifyAction(action string) (notifType, severity string) {
	switch action {
	case models.ActionSLTightened, models.ActionTPProximity, models.ActionAgeTightened:
		return models.NotificationTypeTighten, models.SeverityInfo
	case models.ActionStrategyStopSynced, models.ActionStrategyTPSynced:
		return models.NotificationTypeSync, models.SeverityInfo
	case models.ActionOrderCancelled:
		return models.NotificationTypeCancel, models.SeverityInfo
	case models.ActionPositionClosed, models.ActionStrategyExit:
		return models.NotificationTypeClose, models.SeverityInfo
	case models.ActionSpreadBothFilled:
		return models.NotificationTypeRecovery, models.SeverityInfo
	case models.ActionPartialFillClose, models.ActionPartialFillCancel:
		return models.NotificationTypeRecovery, models.SeverityWarn
	case models.ActionTightenFailed, models.ActionSyncFailed,
		models.ActionCloseFailed, models.ActionCancelFailed:
		return models.NotificationTypeError, models.SeverityError
	default:
		return models.NotificationTypeError, models.SeverityWarn
	}
}

// ============================================================
// Чтение журнала аудита
// ============================================================

// GetRecentRecords возвращает последние записи аудита (новые сверху)
func (s *AuditService) GetRecentRecords(limit int) ([]*models.AuditRecord, error) {
	return s.store.GetRecentRecords(clampLimit(limit))
}

// GetRecordsBySymbol возвращает последние записи аудита по символу
func (s *AuditService) GetRecordsBySymbol(symbol string, limit int) ([]*models.AuditRecord, error) {
	return s.store.GetRecordsBySymbol(symbol, clampLimit(limit))
}

// GetRecentLogs возвращает последние строки журнала монитора
func (s *AuditService) GetRecentLogs(limit int) ([]*models.MonitorLog, error) {
	return s.store.GetRecentLogs(clampLimit(limit))
}

// GetLogsByRunID возвращает строки журнала одной сессии монитора
func (s *AuditService) GetLogsByRunID(runID string, limit int) ([]*models.MonitorLog, error) {
	return s.store.GetLogsByRunID(runID, clampLimit(limit))
}

// CleanupOlderThan удаляет записи аудита и строки журнала старше cutoff.
// Возвращает суммарное количество удалённых строк.
func (s *AuditService) CleanupOlderThan(cutoff time.Time) (int64, error) {
	records, err := s.store.DeleteRecordsOlderThan(cutoff)
	if err != nil {
		return 0, err
	}
	logs, err := s.store.DeleteLogsOlderThan(cutoff)
	if err != nil {
		return records, err
	}
	return records + logs, nil
}

// clampLimit нормализует лимит выборки
func clampLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	if limit > 500 {
		return 500
	}
	return limit
}
