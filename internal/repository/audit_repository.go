package repository

import (
	"database/sql"
	"errors"
	"time"

	"tradebot/internal/models"
)

// Ошибки репозитория аудита
var (
	ErrAuditRecordNotFound = errors.New("audit record not found")
)

// AuditRepository - работа с таблицами audit_records и monitor_logs
//
// audit_records - компактный журнал действий монитора (symbol, action,
// detail); monitor_logs - поток ошибок и значимых событий с привязкой
// к run_id и trade_id. Обе таблицы append-only, чистятся по возрасту.
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository создает новый экземпляр репозитория
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// CreateRecord создает запись аудита
func (r *AuditRepository) CreateRecord(rec *models.AuditRecord) error {
	query := `
		INSERT INTO audit_records (symbol, action, detail, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	return r.db.QueryRow(
		query,
		rec.Symbol,
		rec.Action,
		rec.Detail,
		rec.Timestamp,
	).Scan(&rec.ID)
}

// GetRecentRecords возвращает последние N записей аудита
func (r *AuditRepository) GetRecentRecords(limit int) ([]*models.AuditRecord, error) {
	query := `
		SELECT id, symbol, action, detail, created_at
		FROM audit_records
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAuditRecords(rows)
}

// GetRecordsBySymbol возвращает последние N записей аудита по символу
func (r *AuditRepository) GetRecordsBySymbol(symbol string, limit int) ([]*models.AuditRecord, error) {
	query := `
		SELECT id, symbol, action, detail, created_at
		FROM audit_records
		WHERE symbol = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(query, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAuditRecords(rows)
}

func scanAuditRecords(rows *sql.Rows) ([]*models.AuditRecord, error) {
	var records []*models.AuditRecord
	for rows.Next() {
		rec := &models.AuditRecord{}
		if err := rows.Scan(&rec.ID, &rec.Symbol, &rec.Action, &rec.Detail, &rec.Timestamp); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// GetRecordByID возвращает запись аудита по ID
func (r *AuditRepository) GetRecordByID(id int64) (*models.AuditRecord, error) {
	query := `
		SELECT id, symbol, action, detail, created_at
		FROM audit_records
		WHERE id = $1`

	rec := &models.AuditRecord{}
	err := r.db.QueryRow(query, id).Scan(&rec.ID, &rec.Symbol, &rec.Action, &rec.Detail, &rec.Timestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAuditRecordNotFound
		}
		return nil, err
	}
	return rec, nil
}

// DeleteRecordsOlderThan удаляет записи аудита старше указанной даты
func (r *AuditRepository) DeleteRecordsOlderThan(timestamp time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM audit_records WHERE created_at < $1`, timestamp)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountRecords возвращает общее количество записей аудита
func (r *AuditRepository) CountRecords() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM audit_records`).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ============================================================
// monitor_logs
// ============================================================

// CreateLog создает строку журнала монитора
func (r *AuditRepository) CreateLog(entry *models.MonitorLog) error {
	query := `
		INSERT INTO monitor_logs (level, run_id, trade_id, symbol, component, event, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	return r.db.QueryRow(
		query,
		entry.Level,
		entry.RunID,
		entry.TradeID,
		entry.Symbol,
		entry.Component,
		entry.Event,
		entry.Message,
		entry.Timestamp,
	).Scan(&entry.ID)
}

// GetRecentLogs возвращает последние N строк журнала
func (r *AuditRepository) GetRecentLogs(limit int) ([]*models.MonitorLog, error) {
	query := `
		SELECT id, level, run_id, trade_id, symbol, component, event, message, created_at
		FROM monitor_logs
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMonitorLogs(rows)
}

// GetLogsByRunID возвращает строки журнала одной сессии монитора
func (r *AuditRepository) GetLogsByRunID(runID string, limit int) ([]*models.MonitorLog, error) {
	query := `
		SELECT id, level, run_id, trade_id, symbol, component, event, message, created_at
		FROM monitor_logs
		WHERE run_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(query, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMonitorLogs(rows)
}

func scanMonitorLogs(rows *sql.Rows) ([]*models.MonitorLog, error) {
	var logs []*models.MonitorLog
	for rows.Next() {
		entry := &models.MonitorLog{}
		err := rows.Scan(
			&entry.ID,
			&entry.Level,
			&entry.RunID,
			&entry.TradeID,
			&entry.Symbol,
			&entry.Component,
			&entry.Event,
			&entry.Message,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

// DeleteLogsOlderThan удаляет строки журнала старше указанной даты
func (r *AuditRepository) DeleteLogsOlderThan(timestamp time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM monitor_logs WHERE created_at < $1`, timestamp)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
