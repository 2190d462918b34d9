package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/arjun-mehta/school-erp-api/internal/models"
	"github.com/arjun-mehta/school-erp-api/pkg/metrics"
)

type auditStore interface {
	Insert(ctx context.Context, log *models.AuditLog) error
	ListForEntity(ctx context.Context, schoolID, entityType, entityID string, limit int) ([]models.AuditLog, error)
	ListForUser(ctx context.Context, schoolID, userID string, limit int) ([]models.AuditLog, error)
}

// AuditService appends immutable event records for state changes. Every
// write is fail-soft: a persistence failure is logged and counted but
// never surfaced, so audit-trail problems cannot abort the business
// operation that triggered them.
type AuditService struct {
	repo    auditStore
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewAuditService constructs the service.
func NewAuditService(repo auditStore, logger *zap.Logger, m *metrics.Metrics) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: logger, metrics: m}
}

// Log appends one audit record, swallowing any persistence error.
func (s *AuditService) Log(ctx context.Context, entry models.AuditLog) {
	if err := s.repo.Insert(ctx, &entry); err != nil {
		s.logger.Warn("audit write failed",
			zap.String("entity_type", entry.EntityType),
			zap.String("entity_id", entry.EntityID),
			zap.String("action", entry.Action),
			zap.Error(err),
		)
		if s.metrics != nil {
			s.metrics.AuditWriteFailures.Inc()
		}
	}
}

// TimetableCreated records a timetable creation.
func (s *AuditService) TimetableCreated(ctx context.Context, schoolID, timetableID, userID string, newValue interface{}) {
	s.logEntity(ctx, schoolID, models.EntityExamTimetable, timetableID, models.AuditActionCreate, userID, nil, newValue)
}

// TimetableUpdated records a timetable edit with before/after snapshots.
func (s *AuditService) TimetableUpdated(ctx context.Context, schoolID, timetableID, userID string, oldValue, newValue interface{}) {
	s.logEntity(ctx, schoolID, models.EntityExamTimetable, timetableID, models.AuditActionUpdate, userID, oldValue, newValue)
}

// TimetablePublished records a timetable publish.
func (s *AuditService) TimetablePublished(ctx context.Context, schoolID, timetableID, userID string, newValue interface{}) {
	s.logEntity(ctx, schoolID, models.EntityExamTimetable, timetableID, models.AuditActionPublish, userID, nil, newValue)
}

// TimetableCancelled records a timetable cancellation.
func (s *AuditService) TimetableCancelled(ctx context.Context, schoolID, timetableID, userID string, oldValue interface{}) {
	s.logEntity(ctx, schoolID, models.EntityExamTimetable, timetableID, models.AuditActionCancel, userID, oldValue, nil)
}

// MarksEntered records a marks entry.
func (s *AuditService) MarksEntered(ctx context.Context, schoolID, marksID, userID string, newValue interface{}) {
	s.logEntity(ctx, schoolID, models.EntityMarks, marksID, models.AuditActionMarksEntry, userID, nil, newValue)
}

// MarksUpdated records a marks correction.
func (s *AuditService) MarksUpdated(ctx context.Context, schoolID, marksID, userID string, oldValue, newValue interface{}) {
	s.logEntity(ctx, schoolID, models.EntityMarks, marksID, models.AuditActionMarksUpdate, userID, oldValue, newValue)
}

// AttendanceMarked records an attendance submission.
func (s *AuditService) AttendanceMarked(ctx context.Context, schoolID, attendanceID, userID string, newValue interface{}) {
	s.logEntity(ctx, schoolID, models.EntityAttendance, attendanceID, models.AuditActionAttendanceMarked, userID, nil, newValue)
}

// ReportCardGenerated records a report card generation.
func (s *AuditService) ReportCardGenerated(ctx context.Context, schoolID, reportCardID, userID string, newValue interface{}) {
	s.logEntity(ctx, schoolID, models.EntityReportCard, reportCardID, models.AuditActionReportCardGenerated, userID, nil, newValue)
}

// EntityLogs returns the newest audit records for one entity, empty on error.
func (s *AuditService) EntityLogs(ctx context.Context, schoolID, entityType, entityID string, limit int) []models.AuditLog {
	logs, err := s.repo.ListForEntity(ctx, schoolID, entityType, entityID, limit)
	if err != nil {
		s.logger.Warn("audit entity read failed", zap.String("entity_id", entityID), zap.Error(err))
		return []models.AuditLog{}
	}
	return logs
}

// UserLogs returns the newest audit records for one actor, empty on error.
func (s *AuditService) UserLogs(ctx context.Context, schoolID, userID string, limit int) []models.AuditLog {
	logs, err := s.repo.ListForUser(ctx, schoolID, userID, limit)
	if err != nil {
		s.logger.Warn("audit user read failed", zap.String("user_id", userID), zap.Error(err))
		return []models.AuditLog{}
	}
	return logs
}

func (s *AuditService) logEntity(ctx context.Context, schoolID, entityType, entityID, action, userID string, oldValue, newValue interface{}) {
	entry := models.AuditLog{
		SchoolID:   schoolID,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
	}
	if userID != "" {
		entry.UserID = &userID
	}
	entry.OldValue = marshalSnapshot(oldValue)
	entry.NewValue = marshalSnapshot(newValue)
	s.Log(ctx, entry)
}

func marshalSnapshot(v interface{}) []byte {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
