package models

import "time"

// AdmitCard is a per-student exam credential generated on publish.
type AdmitCard struct {
	ID            string    `db:"id" json:"id"`
	TimetableID   string    `db:"timetable_id" json:"timetable_id"`
	StudentID     string    `db:"student_id" json:"student_id"`
	HallTicketNo  string    `db:"hall_ticket_no" json:"hall_ticket_no"`
	ExamCenter    string    `db:"exam_center" json:"exam_center"`
	ReportingTime string    `db:"reporting_time" json:"reporting_time"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// AdmitCardDetail joins a card with student display fields for export.
type AdmitCardDetail struct {
	AdmitCard
	StudentName string `db:"student_name" json:"student_name"`
	RollNo      string `db:"roll_no" json:"roll_no"`
}
