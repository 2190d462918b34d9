package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/arjun-mehta/school-erp-api/internal/models"
)

// TimetableRepository provides persistence for exam timetables.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository creates the repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// GetDetail loads a timetable together with its exam slots, the active
// students of its academic unit, and display names. Returns sql.ErrNoRows
// when the timetable does not exist.
func (r *TimetableRepository) GetDetail(ctx context.Context, id string) (*models.TimetableDetail, error) {
	const timetableQuery = `SELECT t.id, t.school_id, t.exam_name, t.status, t.start_date, t.end_date,
t.academic_unit_id, t.academic_year_id, t.published_at, t.published_by, t.created_at, t.updated_at
FROM exam_timetables t WHERE t.id = $1`
	detail := &models.TimetableDetail{}
	if err := r.db.GetContext(ctx, &detail.Timetable, timetableQuery, id); err != nil {
		return nil, err
	}

	const namesQuery = `SELECT s.name AS school_name, u.name AS unit_name
FROM schools s, academic_units u WHERE s.id = $1 AND u.id = $2`
	var names struct {
		SchoolName string `db:"school_name"`
		UnitName   string `db:"unit_name"`
	}
	if err := r.db.GetContext(ctx, &names, namesQuery, detail.Timetable.SchoolID, detail.Timetable.AcademicUnitID); err != nil {
		return nil, fmt.Errorf("load timetable names: %w", err)
	}
	detail.SchoolName = names.SchoolName
	detail.AcademicUnitName = names.UnitName

	const slotsQuery = `SELECT sl.id, sl.timetable_id, sl.type, sl.subject_id, sub.name AS subject_name,
sl.supervisor_id, te.user_id AS supervisor_user_id, sl.starts_at, sl.ends_at
FROM exam_timetable_slots sl
JOIN subjects sub ON sub.id = sl.subject_id
LEFT JOIN teachers te ON te.id = sl.supervisor_id
WHERE sl.timetable_id = $1 AND sl.type = $2
ORDER BY sl.starts_at ASC`
	if err := r.db.SelectContext(ctx, &detail.Slots, slotsQuery, id, string(models.SlotTypeExam)); err != nil {
		return nil, fmt.Errorf("load timetable slots: %w", err)
	}

	const studentsQuery = `SELECT id, school_id, user_id, full_name, roll_no, academic_unit_id, status, created_at, updated_at
FROM students WHERE academic_unit_id = $1 AND status = $2
ORDER BY roll_no ASC`
	if err := r.db.SelectContext(ctx, &detail.Students, studentsQuery, detail.Timetable.AcademicUnitID, string(models.StudentStatusActive)); err != nil {
		return nil, fmt.Errorf("load unit students: %w", err)
	}

	return detail, nil
}

// PublishTx flips the timetable to PUBLISHED and inserts the admit card
// batch in one transaction. The status predicate in the UPDATE closes the
// race between two concurrent publishes: the loser sees zero rows and
// gets sql.ErrNoRows. Admit cards insert with ON CONFLICT DO NOTHING so a
// re-publish after a cancel does not duplicate cards.
func (r *TimetableRepository) PublishTx(ctx context.Context, id, publishedBy string, publishedAt time.Time, cards []models.AdmitCard) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	const updateQuery = `UPDATE exam_timetables
SET status = $1, published_at = $2, published_by = $3, updated_at = $2
WHERE id = $4 AND status <> $1`
	res, err := tx.ExecContext(ctx, updateQuery, string(models.TimetableStatusPublished), publishedAt, publishedBy, id)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("publish timetable: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		tx.Rollback() //nolint:errcheck
		return sql.ErrNoRows
	}

	for i := range cards {
		if cards[i].ID == "" {
			cards[i].ID = uuid.NewString()
		}
		if cards[i].CreatedAt.IsZero() {
			cards[i].CreatedAt = publishedAt
		}
		const cardQuery = `INSERT INTO admit_cards (id, timetable_id, student_id, hall_ticket_no, exam_center, reporting_time, created_at)
VALUES (:id, :timetable_id, :student_id, :hall_ticket_no, :exam_center, :reporting_time, :created_at)
ON CONFLICT (timetable_id, student_id) DO NOTHING`
		if _, err := tx.NamedExecContext(ctx, cardQuery, cards[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("insert admit card: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit publish: %w", err)
	}
	return nil
}

// MarkCancelled flips the timetable to CANCELLED. Returns sql.ErrNoRows
// when the timetable was already cancelled.
func (r *TimetableRepository) MarkCancelled(ctx context.Context, id string) error {
	const query = `UPDATE exam_timetables SET status = $1, updated_at = $2 WHERE id = $3 AND status <> $1`
	res, err := r.db.ExecContext(ctx, query, string(models.TimetableStatusCancelled), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("cancel timetable: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ApplyChanges persists the editable fields of an update request. A nil
// field leaves the column untouched.
func (r *TimetableRepository) ApplyChanges(ctx context.Context, id string, changes models.TimetableChanges) error {
	sets := []string{"updated_at = $1"}
	args := []interface{}{time.Now().UTC()}
	if changes.ExamName != nil {
		sets = append(sets, fmt.Sprintf("exam_name = $%d", len(args)+1))
		args = append(args, *changes.ExamName)
	}
	if changes.StartDate != nil {
		sets = append(sets, fmt.Sprintf("start_date = $%d", len(args)+1))
		args = append(args, *changes.StartDate)
	}
	if changes.EndDate != nil {
		sets = append(sets, fmt.Sprintf("end_date = $%d", len(args)+1))
		args = append(args, *changes.EndDate)
	}
	if len(sets) == 1 {
		return nil
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE exam_timetables SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update timetable: %w", err)
	}
	return nil
}
