package models

import "time"

// NotificationType categorizes in-app notifications.
type NotificationType string

const (
	NotificationTypeExamTimetable NotificationType = "EXAM_TIMETABLE"
	NotificationTypeResult        NotificationType = "RESULT"
	NotificationTypeReportCard    NotificationType = "REPORT_CARD"
	NotificationTypeGeneral       NotificationType = "GENERAL"
)

// TimetableEventType is the lifecycle event a timetable notification
// announces.
type TimetableEventType string

const (
	TimetableEventScheduled TimetableEventType = "SCHEDULED"
	TimetableEventUpdated   TimetableEventType = "UPDATED"
	TimetableEventCancelled TimetableEventType = "CANCELLED"
)

// Notification is one in-app notification row for one user.
type Notification struct {
	ID         string           `db:"id" json:"id"`
	UserID     string           `db:"user_id" json:"user_id"`
	Type       NotificationType `db:"type" json:"type"`
	Title      string           `db:"title" json:"title"`
	Message    string           `db:"message" json:"message"`
	EntityType *string          `db:"entity_type" json:"entity_type,omitempty"`
	EntityID   *string          `db:"entity_id" json:"entity_id,omitempty"`
	IsRead     bool             `db:"is_read" json:"is_read"`
	ReadAt     *time.Time       `db:"read_at" json:"read_at,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
}

// ExamTimetableNotification is the denormalized per-timetable delivery log,
// kept separate from the generic notifications table.
type ExamTimetableNotification struct {
	ID           string             `db:"id" json:"id"`
	TimetableID  string             `db:"timetable_id" json:"timetable_id"`
	UserID       string             `db:"user_id" json:"user_id"`
	EventType    TimetableEventType `db:"event_type" json:"event_type"`
	SentViaApp   bool               `db:"sent_via_app" json:"sent_via_app"`
	SentViaEmail bool               `db:"sent_via_email" json:"sent_via_email"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
}

// TimetableDetails carries the pre-formatted strings interpolated into
// timetable notification templates. Dates are formatted by the caller.
type TimetableDetails struct {
	ExamName  string
	ClassName string
	StartDate string
	EndDate   string
}
