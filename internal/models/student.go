package models

import "time"

// StudentStatus tracks enrollment state. Only ACTIVE students receive
// timetable notifications and admit cards.
type StudentStatus string

const (
	StudentStatusActive      StudentStatus = "ACTIVE"
	StudentStatusTransferred StudentStatus = "TRANSFERRED"
	StudentStatusGraduated   StudentStatus = "GRADUATED"
	StudentStatusInactive    StudentStatus = "INACTIVE"
)

// Student represents a learner registered in an academic unit. UserID is
// nullable: a student without a login still gets an admit card but is
// skipped during notification fan-out.
type Student struct {
	ID             string        `db:"id" json:"id"`
	SchoolID       string        `db:"school_id" json:"school_id"`
	UserID         *string       `db:"user_id" json:"user_id,omitempty"`
	FullName       string        `db:"full_name" json:"full_name"`
	RollNo         string        `db:"roll_no" json:"roll_no"`
	AcademicUnitID string        `db:"academic_unit_id" json:"academic_unit_id"`
	Status         StudentStatus `db:"status" json:"status"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// Guardian is a parent/guardian account linked to one or more students.
type Guardian struct {
	ID       string  `db:"id" json:"id"`
	SchoolID string  `db:"school_id" json:"school_id"`
	UserID   *string `db:"user_id" json:"user_id,omitempty"`
	FullName string  `db:"full_name" json:"full_name"`
}

// StudentGuardian is the many-to-many join between students and guardians.
type StudentGuardian struct {
	StudentID  string `db:"student_id" json:"student_id"`
	GuardianID string `db:"guardian_id" json:"guardian_id"`
	Relation   string `db:"relation" json:"relation"`
}

// ClassTeacher ties a teacher to an academic unit for an academic year.
// Only the primary active class teacher is a notification target.
type ClassTeacher struct {
	ID             string  `db:"id" json:"id"`
	TeacherID      string  `db:"teacher_id" json:"teacher_id"`
	UserID         *string `db:"user_id" json:"user_id,omitempty"`
	AcademicUnitID string  `db:"academic_unit_id" json:"academic_unit_id"`
	AcademicYearID string  `db:"academic_year_id" json:"academic_year_id"`
	IsPrimary      bool    `db:"is_primary" json:"is_primary"`
	IsActive       bool    `db:"is_active" json:"is_active"`
}
