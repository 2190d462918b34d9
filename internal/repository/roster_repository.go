package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/arjun-mehta/school-erp-api/internal/models"
)

// RosterRepository answers class-membership questions: who teaches a unit,
// which guardians are linked to its students.
type RosterRepository struct {
	db *sqlx.DB
}

// NewRosterRepository creates the repository.
func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

// PrimaryClassTeacher returns the primary active class teacher of an
// academic unit for a year, or nil when none is assigned.
func (r *RosterRepository) PrimaryClassTeacher(ctx context.Context, unitID, yearID string) (*models.ClassTeacher, error) {
	const query = `SELECT ct.id, ct.teacher_id, te.user_id, ct.academic_unit_id, ct.academic_year_id, ct.is_primary, ct.is_active
FROM class_teachers ct
JOIN teachers te ON te.id = ct.teacher_id
WHERE ct.academic_unit_id = $1 AND ct.academic_year_id = $2 AND ct.is_primary = TRUE AND ct.is_active = TRUE
LIMIT 1`
	var teacher models.ClassTeacher
	if err := r.db.GetContext(ctx, &teacher, query, unitID, yearID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load class teacher: %w", err)
	}
	return &teacher, nil
}

// GuardianUserIDs returns the distinct guardian user ids linked to any of
// the given students, skipping guardians without a login.
func (r *RosterRepository) GuardianUserIDs(ctx context.Context, studentIDs []string) ([]string, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(studentIDs))
	args := make([]interface{}, len(studentIDs))
	for i, id := range studentIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT DISTINCT g.user_id
FROM student_guardians sg
JOIN guardians g ON g.id = sg.guardian_id
WHERE sg.student_id IN (%s) AND g.user_id IS NOT NULL`, strings.Join(placeholders, ", "))
	var userIDs []string
	if err := r.db.SelectContext(ctx, &userIDs, query, args...); err != nil {
		return nil, fmt.Errorf("load guardian user ids: %w", err)
	}
	return userIDs, nil
}

// TeacherSupervisesTimetable reports whether the teacher supervises at
// least one slot of the timetable.
func (r *RosterRepository) TeacherSupervisesTimetable(ctx context.Context, teacherID, timetableID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM exam_timetable_slots WHERE timetable_id = $1 AND supervisor_id = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, timetableID, teacherID); err != nil {
		return false, fmt.Errorf("check slot supervisor: %w", err)
	}
	return count > 0, nil
}

// GuardianHasWardInUnit reports whether any of the guardian's linked
// students belongs to the academic unit.
func (r *RosterRepository) GuardianHasWardInUnit(ctx context.Context, guardianID, unitID string) (bool, error) {
	const query = `SELECT COUNT(*)
FROM student_guardians sg
JOIN students st ON st.id = sg.student_id
WHERE sg.guardian_id = $1 AND st.academic_unit_id = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, guardianID, unitID); err != nil {
		return false, fmt.Errorf("check guardian ward: %w", err)
	}
	return count > 0, nil
}
