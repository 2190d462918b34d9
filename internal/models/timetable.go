package models

import "time"

// TimetableStatus is the lifecycle state of an exam timetable.
type TimetableStatus string

const (
	TimetableStatusDraft     TimetableStatus = "DRAFT"
	TimetableStatusPublished TimetableStatus = "PUBLISHED"
	TimetableStatusCancelled TimetableStatus = "CANCELLED"
	TimetableStatusCompleted TimetableStatus = "COMPLETED"
)

// SlotType distinguishes exam sittings from breaks.
type SlotType string

const (
	SlotTypeExam  SlotType = "EXAM"
	SlotTypeBreak SlotType = "BREAK"
)

// ExamTimetable represents a published exam schedule for one academic unit.
type ExamTimetable struct {
	ID             string          `db:"id" json:"id"`
	SchoolID       string          `db:"school_id" json:"school_id"`
	ExamName       string          `db:"exam_name" json:"exam_name"`
	Status         TimetableStatus `db:"status" json:"status"`
	StartDate      time.Time       `db:"start_date" json:"start_date"`
	EndDate        time.Time       `db:"end_date" json:"end_date"`
	AcademicUnitID string          `db:"academic_unit_id" json:"academic_unit_id"`
	AcademicYearID string          `db:"academic_year_id" json:"academic_year_id"`
	PublishedAt    *time.Time      `db:"published_at" json:"published_at,omitempty"`
	PublishedBy    *string         `db:"published_by" json:"published_by,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// ExamTimetableSlot is one exam sitting within a timetable.
type ExamTimetableSlot struct {
	ID               string    `db:"id" json:"id"`
	TimetableID      string    `db:"timetable_id" json:"timetable_id"`
	Type             SlotType  `db:"type" json:"type"`
	SubjectID        string    `db:"subject_id" json:"subject_id"`
	SubjectName      string    `db:"subject_name" json:"subject_name"`
	SupervisorID     *string   `db:"supervisor_id" json:"supervisor_id,omitempty"`
	SupervisorUserID *string   `db:"supervisor_user_id" json:"supervisor_user_id,omitempty"`
	StartsAt         time.Time `db:"starts_at" json:"starts_at"`
	EndsAt           time.Time `db:"ends_at" json:"ends_at"`
}

// TimetableDetail aggregates everything the publish workflow needs in one
// load: the timetable, its exam slots with supervisor links, the active
// students of the academic unit, and display names.
type TimetableDetail struct {
	Timetable        ExamTimetable
	Slots            []ExamTimetableSlot
	Students         []Student
	SchoolName       string
	AcademicUnitName string
}

// TimetableChanges carries the editable fields of an update-and-notify
// request. Nil fields are left untouched.
type TimetableChanges struct {
	ExamName  *string    `json:"exam_name,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// PublishSummary is returned from a successful publish.
type PublishSummary struct {
	Success       bool `json:"success"`
	NotifiedUsers int  `json:"notified_users"`
	Students      int  `json:"students"`
	Teachers      int  `json:"teachers"`
	AdmitCards    int  `json:"admit_cards"`
}

// NotifySummary is returned from update/cancel notifications.
type NotifySummary struct {
	Success       bool `json:"success"`
	NotifiedUsers int  `json:"notified_users"`
}
