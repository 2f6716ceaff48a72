package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"tradebot/internal/models"
)

// ============================================================
// AuditRepository: audit_records
// ============================================================

func TestNewAuditRepository(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewAuditRepository(db)
	if repo == nil {
		t.Fatal("NewAuditRepository returned nil")
	}
	if repo.db != db {
		t.Error("db not set correctly")
	}
}

func TestAuditRepositoryCreateRecord(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name        string
		record      *models.AuditRecord
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError bool
	}{
		{
			name: "success",
			record: &models.AuditRecord{
				Symbol:    "BTCUSDT",
				Action:    models.ActionSLTightened,
				Detail:    "rr step 1 reached at rr=2.00, stop moved to 112.0000",
				Timestamp: now,
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO audit_records`).
					WithArgs("BTCUSDT", models.ActionSLTightened, "rr step 1 reached at rr=2.00, stop moved to 112.0000", now).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
			},
			expectError: false,
		},
		{
			name: "zero timestamp filled in",
			record: &models.AuditRecord{
				Symbol: "ETHUSDT",
				Action: models.ActionOrderCancelled,
				Detail: "order o-1 cancelled",
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO audit_records`).
					WithArgs("ETHUSDT", models.ActionOrderCancelled, "order o-1 cancelled", sqlmock.AnyArg()).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
			},
			expectError: false,
		},
		{
			name: "database error",
			record: &models.AuditRecord{
				Symbol:    "BTCUSDT",
				Action:    models.ActionCloseFailed,
				Timestamp: now,
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO audit_records`).
					WithArgs("BTCUSDT", models.ActionCloseFailed, "", now).
					WillReturnError(errors.New("database error"))
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewAuditRepository(db)
			err = repo.CreateRecord(tt.record)

			if tt.expectError {
				if err == nil {
					t.Error("expected error, got nil")
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if tt.record.ID == 0 {
					t.Error("ID not set after insert")
				}
				if tt.record.Timestamp.IsZero() {
					t.Error("timestamp not filled in")
				}
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestAuditRepositoryGetRecentRecords(t *testing.T) {
	now := time.Now().UTC()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "symbol", "action", "detail", "created_at"}).
		AddRow(2, "BTCUSDT", models.ActionSLTightened, "stop moved", now).
		AddRow(1, "ETHUSDT", models.ActionPositionClosed, "closed", now.Add(-time.Minute))

	mock.ExpectQuery(`SELECT id, symbol, action, detail, created_at FROM audit_records ORDER BY created_at DESC`).
		WithArgs(10).
		WillReturnRows(rows)

	repo := NewAuditRepository(db)
	records, err := repo.GetRecentRecords(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].Action != models.ActionSLTightened || records[0].ID != 2 {
		t.Errorf("unexpected first record: %+v", records[0])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestAuditRepositoryGetRecordByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT id, symbol, action, detail, created_at FROM audit_records WHERE id`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "symbol", "action", "detail", "created_at"}))

	repo := NewAuditRepository(db)
	if _, err := repo.GetRecordByID(42); !errors.Is(err, ErrAuditRecordNotFound) {
		t.Errorf("err = %v, want ErrAuditRecordNotFound", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestAuditRepositoryDeleteRecordsOlderThan(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	cutoff := time.Now().UTC().Add(-30 * 24 * time.Hour)
	mock.ExpectExec(`DELETE FROM audit_records WHERE created_at`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 17))

	repo := NewAuditRepository(db)
	deleted, err := repo.DeleteRecordsOlderThan(cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 17 {
		t.Errorf("deleted = %d, want 17", deleted)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

// ============================================================
// AuditRepository: monitor_logs
// ============================================================

func TestAuditRepositoryCreateLog(t *testing.T) {
	now := time.Now().UTC()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO monitor_logs`).
		WithArgs(models.SeverityError, "run-1", "trade-1", "BTCUSDT",
			models.ComponentPositionMonitor, models.ActionTightenFailed, "setTradingStop rejected", now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	repo := NewAuditRepository(db)
	entry := &models.MonitorLog{
		Level:     models.SeverityError,
		RunID:     "run-1",
		TradeID:   "trade-1",
		Symbol:    "BTCUSDT",
		Component: models.ComponentPositionMonitor,
		Event:     models.ActionTightenFailed,
		Message:   "setTradingStop rejected",
		Timestamp: now,
	}
	if err := repo.CreateLog(entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.ID != 7 {
		t.Errorf("ID = %d, want 7", entry.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestAuditRepositoryGetLogsByRunID(t *testing.T) {
	now := time.Now().UTC()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "level", "run_id", "trade_id", "symbol", "component", "event", "message", "created_at"}).
		AddRow(1, models.SeverityInfo, "run-1", "trade-1", "BTCUSDT",
			models.ComponentPositionMonitor, models.ActionSLTightened, "stop tightened", now)

	mock.ExpectQuery(`SELECT id, level, run_id, trade_id, symbol, component, event, message, created_at FROM monitor_logs WHERE run_id`).
		WithArgs("run-1", 50).
		WillReturnRows(rows)

	repo := NewAuditRepository(db)
	logs, err := repo.GetLogsByRunID("run-1", 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs) != 1 || logs[0].RunID != "run-1" {
		t.Fatalf("unexpected logs: %+v", logs)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
