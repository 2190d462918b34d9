package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin  UserRole = "SUPER_ADMIN"
	RoleSchoolAdmin UserRole = "SCHOOL_ADMIN"
	RoleTeacher     UserRole = "TEACHER"
	RoleStudent     UserRole = "STUDENT"
	RoleGuardian    UserRole = "GUARDIAN"
)

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	SchoolID     string     `db:"school_id" json:"school_id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// UserContact is the minimal projection needed for email fan-out.
type UserContact struct {
	ID       string `db:"id" json:"id"`
	Email    string `db:"email" json:"email"`
	FullName string `db:"full_name" json:"full_name"`
}

// AccessProfile joins a user to their student/teacher/guardian identity,
// backing timetable access checks.
type AccessProfile struct {
	UserID        string   `db:"user_id"`
	Role          UserRole `db:"role"`
	SchoolID      string   `db:"school_id"`
	StudentUnitID *string  `db:"student_unit_id"`
	TeacherID     *string  `db:"teacher_id"`
	GuardianID    *string  `db:"guardian_id"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
