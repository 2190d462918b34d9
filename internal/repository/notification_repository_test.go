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

func newNotificationMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestNotificationRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newNotificationMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec("INSERT INTO notifications").
		WithArgs(sqlmock.AnyArg(), "user-1", "EXAM_TIMETABLE", "Exam Timetable Published", "Exams start 02 Mar.", nil, nil, false, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n := &models.Notification{
		UserID:  "user-1",
		Type:    models.NotificationTypeExamTimetable,
		Title:   "Exam Timetable Published",
		Message: "Exams start 02 Mar.",
	}
	require.NoError(t, repo.Create(context.Background(), n))
	assert.NotEmpty(t, n.ID, "missing id is generated")
	assert.False(t, n.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryBulkCreateTimetableLog(t *testing.T) {
	db, mock, cleanup := newNotificationMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO exam_timetable_notifications").
		WithArgs(sqlmock.AnyArg(), "tt-1", "user-1", "SCHEDULED", true, false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO exam_timetable_notifications").
		WithArgs(sqlmock.AnyArg(), "tt-1", "user-2", "SCHEDULED", true, false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rows := []models.ExamTimetableNotification{
		{TimetableID: "tt-1", UserID: "user-1", EventType: models.TimetableEventScheduled, SentViaApp: true},
		{TimetableID: "tt-1", UserID: "user-2", EventType: models.TimetableEventScheduled, SentViaApp: true},
	}
	require.NoError(t, repo.BulkCreateTimetableLog(context.Background(), rows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryBulkCreateEmptyBatch(t *testing.T) {
	db, mock, cleanup := newNotificationMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	require.NoError(t, repo.BulkCreateTimetableLog(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryListForUser(t *testing.T) {
	db, mock, cleanup := newNotificationMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	now := time.Now()
	mock.ExpectQuery("SELECT id, user_id, type, title, message").
		WithArgs("user-1", 20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "type", "title", "message", "entity_type", "entity_id", "is_read", "read_at", "created_at"}).
			AddRow("n-1", "user-1", "EXAM_TIMETABLE", "Exam Timetable Published", "msg", "EXAM_TIMETABLE", "tt-1", false, nil, now))

	notifications, err := repo.ListForUser(context.Background(), "user-1", 0)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, "n-1", notifications[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryUnreadCount(t *testing.T) {
	db, mock, cleanup := newNotificationMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.UnreadCount(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestNotificationRepositoryMarkRead(t *testing.T) {
	db, mock, cleanup := newNotificationMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	readAt := time.Now().UTC()
	mock.ExpectExec("UPDATE notifications SET is_read = TRUE").
		WithArgs(readAt, "n-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.MarkRead(context.Background(), "n-1", readAt)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNotificationRepositoryMarkReadMissingRow(t *testing.T) {
	db, mock, cleanup := newNotificationMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec("UPDATE notifications SET is_read = TRUE").
		WithArgs(sqlmock.AnyArg(), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkRead(context.Background(), "missing", time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, ok)
}
