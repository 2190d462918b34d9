package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionCreate              = "CREATE"
	AuditActionUpdate              = "UPDATE"
	AuditActionPublish             = "PUBLISH"
	AuditActionCancel              = "CANCEL"
	AuditActionMarksEntry          = "MARKS_ENTRY"
	AuditActionMarksUpdate         = "MARKS_UPDATE"
	AuditActionAttendanceMarked    = "ATTENDANCE_MARKED"
	AuditActionReportCardGenerated = "REPORT_CARD_GENERATED"
)

// Audit entity types used by the exam workflow.
const (
	EntityExamTimetable = "EXAM_TIMETABLE"
	EntityMarks         = "MARKS"
	EntityAttendance    = "ATTENDANCE"
	EntityReportCard    = "REPORT_CARD"
)

// AuditLog represents an append-only audit trail record. Rows are never
// updated or deleted.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	SchoolID   string    `db:"school_id" json:"school_id"`
	EntityType string    `db:"entity_type" json:"entity_type"`
	EntityID   string    `db:"entity_id" json:"entity_id"`
	Action     string    `db:"action" json:"action"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	OldValue   []byte    `db:"old_value" json:"old_value,omitempty"`
	NewValue   []byte    `db:"new_value" json:"new_value,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
