package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjun-mehta/school-erp-api/internal/models"
)

func newAuditMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAuditRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newAuditMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	userID := "admin-1"
	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(sqlmock.AnyArg(), "sch-1", "EXAM_TIMETABLE", "tt-1", "PUBLISH", "admin-1", []byte(nil), []byte(`{"status":"PUBLISHED"}`), "", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry := &models.AuditLog{
		SchoolID:   "sch-1",
		EntityType: models.EntityExamTimetable,
		EntityID:   "tt-1",
		Action:     models.AuditActionPublish,
		UserID:     &userID,
		NewValue:   []byte(`{"status":"PUBLISHED"}`),
	}
	require.NoError(t, repo.Insert(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryListForEntity(t *testing.T) {
	db, mock, cleanup := newAuditMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	now := time.Now()
	mock.ExpectQuery("SELECT id, school_id, entity_type").
		WithArgs("sch-1", "EXAM_TIMETABLE", "tt-1", 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "school_id", "entity_type", "entity_id", "action", "user_id", "old_value", "new_value", "ip_address", "user_agent", "created_at"}).
			AddRow("a-2", "sch-1", "EXAM_TIMETABLE", "tt-1", "CANCEL", "admin-1", []byte(`{}`), nil, "", "", now).
			AddRow("a-1", "sch-1", "EXAM_TIMETABLE", "tt-1", "PUBLISH", "admin-1", nil, []byte(`{}`), "", "", now.Add(-time.Hour)))

	logs, err := repo.ListForEntity(context.Background(), "sch-1", models.EntityExamTimetable, "tt-1", 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, models.AuditActionCancel, logs[0].Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryListForUser(t *testing.T) {
	db, mock, cleanup := newAuditMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectQuery("SELECT id, school_id, entity_type").
		WithArgs("sch-1", "admin-1", 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "school_id", "entity_type", "entity_id", "action", "user_id", "old_value", "new_value", "ip_address", "user_agent", "created_at"}).
			AddRow("a-1", "sch-1", "EXAM_TIMETABLE", "tt-1", "PUBLISH", "admin-1", nil, nil, "", "", time.Now()))

	logs, err := repo.ListForUser(context.Background(), "sch-1", "admin-1", 10)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
