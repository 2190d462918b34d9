package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arjun-mehta/school-erp-api/internal/models"
	appErrors "github.com/arjun-mehta/school-erp-api/pkg/errors"
	"github.com/arjun-mehta/school-erp-api/pkg/metrics"
)

type timetableStore interface {
	GetDetail(ctx context.Context, id string) (*models.TimetableDetail, error)
	PublishTx(ctx context.Context, id, publishedBy string, publishedAt time.Time, cards []models.AdmitCard) error
	MarkCancelled(ctx context.Context, id string) error
	ApplyChanges(ctx context.Context, id string, changes models.TimetableChanges) error
}

type rosterStore interface {
	PrimaryClassTeacher(ctx context.Context, unitID, yearID string) (*models.ClassTeacher, error)
	GuardianUserIDs(ctx context.Context, studentIDs []string) ([]string, error)
	TeacherSupervisesTimetable(ctx context.Context, teacherID, timetableID string) (bool, error)
	GuardianHasWardInUnit(ctx context.Context, guardianID, unitID string) (bool, error)
}

type accessStore interface {
	AccessProfile(ctx context.Context, userID string) (*models.AccessProfile, error)
}

type timetableNotifier interface {
	SendExamTimetableNotification(ctx context.Context, timetableID string, userIDs []string, event models.TimetableEventType, details models.TimetableDetails) (int, error)
}

type timetableAuditor interface {
	TimetablePublished(ctx context.Context, schoolID, timetableID, userID string, newValue interface{})
	TimetableUpdated(ctx context.Context, schoolID, timetableID, userID string, oldValue, newValue interface{})
	TimetableCancelled(ctx context.Context, schoolID, timetableID, userID string, oldValue interface{})
}

// VisibilityConfig tunes admit card generation.
type VisibilityConfig struct {
	DefaultReportingTime string
}

// VisibilityService orchestrates the publish/update/cancel lifecycle of an
// exam timetable: recomputing the recipient set, fanning notifications out,
// generating admit cards, and recording the audit trail.
type VisibilityService struct {
	timetables timetableStore
	roster     rosterStore
	access     accessStore
	notifier   timetableNotifier
	audit      timetableAuditor
	logger     *zap.Logger
	metrics    *metrics.Metrics
	config     VisibilityConfig
}

// NewVisibilityService constructs the service.
func NewVisibilityService(timetables timetableStore, roster rosterStore, access accessStore, notifier timetableNotifier, audit timetableAuditor, logger *zap.Logger, m *metrics.Metrics, cfg VisibilityConfig) *VisibilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultReportingTime == "" {
		cfg.DefaultReportingTime = "08:00"
	}
	return &VisibilityService{
		timetables: timetables,
		roster:     roster,
		access:     access,
		notifier:   notifier,
		audit:      audit,
		logger:     logger,
		metrics:    m,
		config:     cfg,
	}
}

// Publish flips a timetable to PUBLISHED, generates admit cards for every
// active student of its unit, notifies the full recipient set, and records
// the audit entry. The status flip and admit card insert commit in one
// transaction; notifications and audit happen after and are not rolled
// back on failure.
func (s *VisibilityService) Publish(ctx context.Context, timetableID, publishedBy string) (*models.PublishSummary, error) {
	detail, err := s.loadDetail(ctx, timetableID)
	if err != nil {
		return nil, err
	}
	if detail.Timetable.Status == models.TimetableStatusPublished {
		return nil, appErrors.Clone(appErrors.ErrAlreadyPublished, "")
	}

	cards := s.buildAdmitCards(detail)
	publishedAt := time.Now().UTC()
	if err := s.timetables.PublishTx(ctx, timetableID, publishedBy, publishedAt, cards); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyPublished, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish timetable")
	}
	if s.metrics != nil {
		s.metrics.AdmitCardsGenerated.Add(float64(len(cards)))
	}

	recipients, teacherCount, err := s.recipientSet(ctx, detail)
	if err != nil {
		return nil, err
	}

	notified, err := s.notifier.SendExamTimetableNotification(ctx, timetableID, recipients, models.TimetableEventScheduled, s.notificationDetails(detail))
	if err != nil {
		// Status is already flipped; surface the error so the caller can
		// retry notifications, but do not attempt a rollback.
		s.logger.Error("publish notification fan-out failed",
			zap.String("timetable_id", timetableID),
			zap.Int("notified", notified),
			zap.Error(err),
		)
		return nil, err
	}

	s.audit.TimetablePublished(ctx, detail.Timetable.SchoolID, timetableID, publishedBy, map[string]interface{}{
		"status":       models.TimetableStatusPublished,
		"published_at": publishedAt,
		"exam_name":    detail.Timetable.ExamName,
	})

	return &models.PublishSummary{
		Success:       true,
		NotifiedUsers: notified,
		Students:      len(detail.Students),
		Teachers:      teacherCount,
		AdmitCards:    len(cards),
	}, nil
}

// UpdateAndNotify persists the provided changes, notifies the full
// recipient set of the revision, and records the before/after audit entry.
func (s *VisibilityService) UpdateAndNotify(ctx context.Context, timetableID, updatedBy string, changes models.TimetableChanges) (*models.NotifySummary, error) {
	detail, err := s.loadDetail(ctx, timetableID)
	if err != nil {
		return nil, err
	}

	oldSnapshot := map[string]interface{}{
		"exam_name":  detail.Timetable.ExamName,
		"start_date": detail.Timetable.StartDate,
		"end_date":   detail.Timetable.EndDate,
	}
	if err := s.timetables.ApplyChanges(ctx, timetableID, changes); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update timetable")
	}
	applyChanges(&detail.Timetable, changes)

	recipients, _, err := s.recipientSet(ctx, detail)
	if err != nil {
		return nil, err
	}

	notified, err := s.notifier.SendExamTimetableNotification(ctx, timetableID, recipients, models.TimetableEventUpdated, s.notificationDetails(detail))
	if err != nil {
		return nil, err
	}

	s.audit.TimetableUpdated(ctx, detail.Timetable.SchoolID, timetableID, updatedBy, oldSnapshot, map[string]interface{}{
		"exam_name":  detail.Timetable.ExamName,
		"start_date": detail.Timetable.StartDate,
		"end_date":   detail.Timetable.EndDate,
	})

	return &models.NotifySummary{Success: true, NotifiedUsers: notified}, nil
}

// CancelAndNotify flips the timetable to CANCELLED, notifies the full
// recipient set, and records the audit entry.
func (s *VisibilityService) CancelAndNotify(ctx context.Context, timetableID, cancelledBy string) (*models.NotifySummary, error) {
	detail, err := s.loadDetail(ctx, timetableID)
	if err != nil {
		return nil, err
	}
	if detail.Timetable.Status == models.TimetableStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrAlreadyCancelled, "")
	}

	if err := s.timetables.MarkCancelled(ctx, timetableID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyCancelled, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel timetable")
	}

	recipients, _, err := s.recipientSet(ctx, detail)
	if err != nil {
		return nil, err
	}

	notified, err := s.notifier.SendExamTimetableNotification(ctx, timetableID, recipients, models.TimetableEventCancelled, s.notificationDetails(detail))
	if err != nil {
		return nil, err
	}

	s.audit.TimetableCancelled(ctx, detail.Timetable.SchoolID, timetableID, cancelledBy, map[string]interface{}{
		"status":    detail.Timetable.Status,
		"exam_name": detail.Timetable.ExamName,
	})

	return &models.NotifySummary{Success: true, NotifiedUsers: notified}, nil
}

// HasAccess reports whether a user may view a timetable. Admin roles pass,
// students must belong to the timetable's unit, teachers must supervise a
// slot, guardians must have a ward in the unit. Any error fails closed.
func (s *VisibilityService) HasAccess(ctx context.Context, userID, timetableID string) bool {
	profile, err := s.access.AccessProfile(ctx, userID)
	if err != nil {
		s.logger.Warn("access profile lookup failed", zap.String("user_id", userID), zap.Error(err))
		return false
	}

	if profile.Role == models.RoleSuperAdmin {
		return true
	}

	detail, err := s.timetables.GetDetail(ctx, timetableID)
	if err != nil {
		s.logger.Warn("access timetable lookup failed", zap.String("timetable_id", timetableID), zap.Error(err))
		return false
	}

	switch profile.Role {
	case models.RoleSchoolAdmin:
		return profile.SchoolID == detail.Timetable.SchoolID
	case models.RoleStudent:
		return profile.StudentUnitID != nil && *profile.StudentUnitID == detail.Timetable.AcademicUnitID
	case models.RoleTeacher:
		if profile.TeacherID == nil {
			return false
		}
		ok, err := s.roster.TeacherSupervisesTimetable(ctx, *profile.TeacherID, timetableID)
		if err != nil {
			s.logger.Warn("supervisor check failed", zap.String("user_id", userID), zap.Error(err))
			return false
		}
		return ok
	case models.RoleGuardian:
		if profile.GuardianID == nil {
			return false
		}
		ok, err := s.roster.GuardianHasWardInUnit(ctx, *profile.GuardianID, detail.Timetable.AcademicUnitID)
		if err != nil {
			s.logger.Warn("guardian ward check failed", zap.String("user_id", userID), zap.Error(err))
			return false
		}
		return ok
	default:
		return false
	}
}

func (s *VisibilityService) loadDetail(ctx context.Context, timetableID string) (*models.TimetableDetail, error) {
	detail, err := s.timetables.GetDetail(ctx, timetableID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	return detail, nil
}

// recipientSet unions active students' user ids, slot supervisors, the
// primary active class teacher, and guardians of the unit's students,
// skipping students without logins and deduplicating across groups.
// The second return value is the distinct supervisor count.
func (s *VisibilityService) recipientSet(ctx context.Context, detail *models.TimetableDetail) ([]string, int, error) {
	seen := make(map[string]struct{})
	var recipients []string
	add := func(userID *string) bool {
		if userID == nil || *userID == "" {
			return false
		}
		if _, ok := seen[*userID]; ok {
			return false
		}
		seen[*userID] = struct{}{}
		recipients = append(recipients, *userID)
		return true
	}

	studentIDs := make([]string, 0, len(detail.Students))
	for i := range detail.Students {
		studentIDs = append(studentIDs, detail.Students[i].ID)
		add(detail.Students[i].UserID)
	}

	supervisors := make(map[string]struct{})
	for i := range detail.Slots {
		if detail.Slots[i].SupervisorUserID != nil && *detail.Slots[i].SupervisorUserID != "" {
			supervisors[*detail.Slots[i].SupervisorUserID] = struct{}{}
		}
		add(detail.Slots[i].SupervisorUserID)
	}

	classTeacher, err := s.roster.PrimaryClassTeacher(ctx, detail.Timetable.AcademicUnitID, detail.Timetable.AcademicYearID)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class teacher")
	}
	if classTeacher != nil {
		add(classTeacher.UserID)
	}

	guardianIDs, err := s.roster.GuardianUserIDs(ctx, studentIDs)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load guardians")
	}
	for i := range guardianIDs {
		add(&guardianIDs[i])
	}

	return recipients, len(supervisors), nil
}

// buildAdmitCards synthesizes one card per active student. The hall ticket
// number is deterministic for a given timetable and student, so a
// re-publish regenerates identical numbers instead of colliding new ones.
func (s *VisibilityService) buildAdmitCards(detail *models.TimetableDetail) []models.AdmitCard {
	reportingTime := s.config.DefaultReportingTime
	if len(detail.Slots) > 0 {
		reportingTime = detail.Slots[0].StartsAt.Format("15:04")
	}

	schoolPrefix := ticketPrefix(detail.Timetable.SchoolID, 4)
	classPrefix := ticketPrefix(detail.AcademicUnitName, 3)
	year := detail.Timetable.StartDate.Year()

	cards := make([]models.AdmitCard, 0, len(detail.Students))
	for i := range detail.Students {
		student := &detail.Students[i]
		cards = append(cards, models.AdmitCard{
			TimetableID:   detail.Timetable.ID,
			StudentID:     student.ID,
			HallTicketNo:  fmt.Sprintf("%s-%s-%d-%s", schoolPrefix, classPrefix, year, ticketDigest(detail.Timetable.ID, student.ID)),
			ExamCenter:    detail.SchoolName,
			ReportingTime: reportingTime,
		})
	}
	return cards
}

func (s *VisibilityService) notificationDetails(detail *models.TimetableDetail) models.TimetableDetails {
	return models.TimetableDetails{
		ExamName:  detail.Timetable.ExamName,
		ClassName: detail.AcademicUnitName,
		StartDate: detail.Timetable.StartDate.Format("02 Jan 2006"),
		EndDate:   detail.Timetable.EndDate.Format("02 Jan 2006"),
	}
}

func applyChanges(t *models.ExamTimetable, changes models.TimetableChanges) {
	if changes.ExamName != nil {
		t.ExamName = *changes.ExamName
	}
	if changes.StartDate != nil {
		t.StartDate = *changes.StartDate
	}
	if changes.EndDate != nil {
		t.EndDate = *changes.EndDate
	}
}

// ticketPrefix keeps the first n alphanumeric characters, uppercased,
// padding with X when the source is too short.
func ticketPrefix(source string, n int) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(source) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() == n {
				break
			}
		}
	}
	for b.Len() < n {
		b.WriteByte('X')
	}
	return b.String()
}

func ticketDigest(timetableID, studentID string) string {
	sum := sha256.Sum256([]byte(timetableID + ":" + studentID))
	return strings.ToUpper(hex.EncodeToString(sum[:3]))
}
