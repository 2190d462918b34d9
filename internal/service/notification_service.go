package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arjun-mehta/school-erp-api/internal/models"
	appErrors "github.com/arjun-mehta/school-erp-api/pkg/errors"
	"github.com/arjun-mehta/school-erp-api/pkg/jobs"
	"github.com/arjun-mehta/school-erp-api/pkg/mailer"
	"github.com/arjun-mehta/school-erp-api/pkg/metrics"
)

type notificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	BulkCreateTimetableLog(ctx context.Context, rows []models.ExamTimetableNotification) error
	ListForUser(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id string, readAt time.Time) (bool, error)
}

type contactDirectory interface {
	ContactsByIDs(ctx context.Context, ids []string) ([]models.UserContact, error)
}

type emailQueue interface {
	Enqueue(job jobs.Job) error
}

type unreadCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string)
}

// NotificationConfig tunes fan-out and caching behaviour.
type NotificationConfig struct {
	FanOutWorkers  int
	UnreadCacheTTL time.Duration
	AppName        string
	DashboardURL   string
}

// SendNotificationRequest describes one notification to deliver.
type SendNotificationRequest struct {
	UserID     string
	Type       models.NotificationType
	Title      string
	Message    string
	EntityType *string
	EntityID   *string
	SendEmail  bool
}

// NotificationService fans a notification out to one or many users,
// optionally by email, and offers read-state queries. Email delivery is
// queued through a bounded worker pool; a send failure never fails the
// in-app notification that triggered it.
type NotificationService struct {
	repo     notificationStore
	contacts contactDirectory
	emails   emailQueue
	cache    unreadCache
	logger   *zap.Logger
	metrics  *metrics.Metrics
	config   NotificationConfig
}

// NewNotificationService constructs the service.
func NewNotificationService(repo notificationStore, contacts contactDirectory, emails emailQueue, cache unreadCache, logger *zap.Logger, m *metrics.Metrics, cfg NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FanOutWorkers <= 0 {
		cfg.FanOutWorkers = 8
	}
	if cfg.UnreadCacheTTL <= 0 {
		cfg.UnreadCacheTTL = time.Minute
	}
	return &NotificationService{
		repo:     repo,
		contacts: contacts,
		emails:   emails,
		cache:    cache,
		logger:   logger,
		metrics:  m,
		config:   cfg,
	}
}

// SendToUser creates one in-app notification row and, when requested,
// queues an email to the user. The email is best effort: queueing or
// delivery failures are logged and counted but not returned.
func (s *NotificationService) SendToUser(ctx context.Context, req SendNotificationRequest) (*models.Notification, error) {
	n := &models.Notification{
		UserID:     req.UserID,
		Type:       req.Type,
		Title:      req.Title,
		Message:    req.Message,
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notification")
	}
	if s.metrics != nil {
		s.metrics.NotificationsSent.WithLabelValues(string(req.Type)).Inc()
	}
	s.invalidateUnread(ctx, req.UserID)

	if req.SendEmail {
		s.queueEmail(ctx, req)
	}
	return n, nil
}

// SendToUsers delivers the same payload to every user id through a bounded
// worker pool. Rows already written stay written when later sends fail;
// the error reports how many recipients could not be notified.
func (s *NotificationService) SendToUsers(ctx context.Context, userIDs []string, req SendNotificationRequest) (int, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}

	sem := make(chan struct{}, s.config.FanOutWorkers)
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		sent   int
		failed int
	)
	for _, userID := range userIDs {
		wg.Add(1)
		sem <- struct{}{}
		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()
			perUser := req
			perUser.UserID = id
			if _, err := s.SendToUser(ctx, perUser); err != nil {
				s.logger.Warn("notification send failed", zap.String("user_id", id), zap.Error(err))
				mu.Lock()
				failed++
				mu.Unlock()
				return
			}
			mu.Lock()
			sent++
			mu.Unlock()
		}(userID)
	}
	wg.Wait()

	if failed > 0 {
		return sent, appErrors.Wrap(
			fmt.Errorf("%d of %d notifications failed", failed, len(userIDs)),
			appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "partial notification failure")
	}
	return sent, nil
}

// SendExamTimetableNotification announces a timetable lifecycle event to
// the recipient set. The denormalized per-timetable log is written first;
// its flags record the intended channels, not delivery outcomes.
func (s *NotificationService) SendExamTimetableNotification(ctx context.Context, timetableID string, userIDs []string, event models.TimetableEventType, details models.TimetableDetails) (int, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}

	title, message := timetableEventText(event, details)

	logRows := make([]models.ExamTimetableNotification, 0, len(userIDs))
	for _, userID := range userIDs {
		logRows = append(logRows, models.ExamTimetableNotification{
			TimetableID:  timetableID,
			UserID:       userID,
			EventType:    event,
			SentViaApp:   true,
			SentViaEmail: false,
		})
	}
	if err := s.repo.BulkCreateTimetableLog(ctx, logRows); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record timetable notifications")
	}

	entityType := models.EntityExamTimetable
	return s.SendToUsers(ctx, userIDs, SendNotificationRequest{
		Type:       models.NotificationTypeExamTimetable,
		Title:      title,
		Message:    message,
		EntityType: &entityType,
		EntityID:   &timetableID,
		SendEmail:  true,
	})
}

// SendResultPublishedNotification announces published results to students
// and guardians.
func (s *NotificationService) SendResultPublishedNotification(ctx context.Context, examID string, userIDs []string, examName, className string) (int, error) {
	entityType := "RESULT"
	return s.SendToUsers(ctx, userIDs, SendNotificationRequest{
		Type:       models.NotificationTypeResult,
		Title:      "Results Published",
		Message:    fmt.Sprintf("Results for %s (%s) are now available on your dashboard.", examName, className),
		EntityType: &entityType,
		EntityID:   &examID,
		SendEmail:  true,
	})
}

// SendReportCardNotification announces generated report cards.
func (s *NotificationService) SendReportCardNotification(ctx context.Context, reportCardID string, userIDs []string, termName, className string) (int, error) {
	entityType := "REPORT_CARD"
	return s.SendToUsers(ctx, userIDs, SendNotificationRequest{
		Type:       models.NotificationTypeReportCard,
		Title:      "Report Card Ready",
		Message:    fmt.Sprintf("The %s report card for %s is ready to view.", termName, className),
		EntityType: &entityType,
		EntityID:   &reportCardID,
		SendEmail:  true,
	})
}

// MarkAsRead flags a notification as read.
func (s *NotificationService) MarkAsRead(ctx context.Context, notificationID, userID string) error {
	ok, err := s.repo.MarkRead(ctx, notificationID, time.Now().UTC())
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	s.invalidateUnread(ctx, userID)
	return nil
}

// ListForUser returns the newest notifications for a user.
func (s *NotificationService) ListForUser(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	notifications, err := s.repo.ListForUser(ctx, userID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return notifications, nil
}

// UnreadCount returns the unread notification count for a user, serving
// from cache when fresh. Any failure degrades to zero.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) int {
	key := unreadCacheKey(userID)
	if s.cache != nil {
		var cached int
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached
		}
	}

	count, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		s.logger.Warn("unread count failed", zap.String("user_id", userID), zap.Error(err))
		if s.metrics != nil {
			s.metrics.UnreadCountFailures.Inc()
		}
		return 0
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, count, s.config.UnreadCacheTTL); err != nil {
			s.logger.Warn("unread count cache set failed", zap.Error(err))
		}
	}
	return count
}

func (s *NotificationService) queueEmail(ctx context.Context, req SendNotificationRequest) {
	if s.emails == nil || s.contacts == nil {
		return
	}
	contacts, err := s.contacts.ContactsByIDs(ctx, []string{req.UserID})
	if err != nil || len(contacts) == 0 {
		if err != nil {
			s.logger.Warn("contact lookup failed", zap.String("user_id", req.UserID), zap.Error(err))
		}
		return
	}
	contact := contacts[0]
	if contact.Email == "" {
		return
	}

	html, text, err := mailer.RenderNotification(mailer.NotificationEmail{
		RecipientName: contact.FullName,
		Title:         req.Title,
		Message:       req.Message,
		AppName:       s.config.AppName,
		DashboardURL:  s.config.DashboardURL,
	})
	if err != nil {
		s.logger.Warn("email render failed", zap.Error(err))
		return
	}

	job := jobs.Job{
		ID:   fmt.Sprintf("email-%s-%d", req.UserID, time.Now().UnixNano()),
		Type: "notification-email",
		Payload: mailer.Message{
			ToName:    contact.FullName,
			ToAddress: contact.Email,
			Subject:   req.Title,
			HTMLBody:  html,
			TextBody:  text,
		},
	}
	if err := s.emails.Enqueue(job); err != nil {
		s.logger.Warn("email enqueue failed", zap.String("user_id", req.UserID), zap.Error(err))
		if s.metrics != nil {
			s.metrics.EmailsFailed.Inc()
		}
	}
}

func (s *NotificationService) invalidateUnread(ctx context.Context, userID string) {
	if s.cache != nil {
		s.cache.Delete(ctx, unreadCacheKey(userID))
	}
}

func unreadCacheKey(userID string) string {
	return "notifications:unread:" + userID
}

func timetableEventText(event models.TimetableEventType, d models.TimetableDetails) (title, message string) {
	switch event {
	case models.TimetableEventUpdated:
		return "Exam Timetable Updated",
			fmt.Sprintf("The exam timetable for %s (%s) has been updated. Please review the revised schedule, %s to %s.", d.ExamName, d.ClassName, d.StartDate, d.EndDate)
	case models.TimetableEventCancelled:
		return "Exam Timetable Cancelled",
			fmt.Sprintf("The %s exams for %s scheduled from %s to %s have been cancelled.", d.ExamName, d.ClassName, d.StartDate, d.EndDate)
	default:
		return "Exam Timetable Published",
			fmt.Sprintf("The exam timetable for %s (%s) has been published. Exams run from %s to %s.", d.ExamName, d.ClassName, d.StartDate, d.EndDate)
	}
}
