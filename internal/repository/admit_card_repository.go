package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/arjun-mehta/school-erp-api/internal/models"
)

// AdmitCardRepository reads generated admit cards. Writes happen inside
// the publish transaction owned by TimetableRepository.
type AdmitCardRepository struct {
	db *sqlx.DB
}

// NewAdmitCardRepository creates the repository.
func NewAdmitCardRepository(db *sqlx.DB) *AdmitCardRepository {
	return &AdmitCardRepository{db: db}
}

// ListByTimetable returns the admit cards of a timetable with student
// display fields, ordered by roll number.
func (r *AdmitCardRepository) ListByTimetable(ctx context.Context, timetableID string) ([]models.AdmitCardDetail, error) {
	const query = `SELECT ac.id, ac.timetable_id, ac.student_id, ac.hall_ticket_no, ac.exam_center, ac.reporting_time, ac.created_at,
st.full_name AS student_name, st.roll_no
FROM admit_cards ac
JOIN students st ON st.id = ac.student_id
WHERE ac.timetable_id = $1
ORDER BY st.roll_no ASC`
	var cards []models.AdmitCardDetail
	if err := r.db.SelectContext(ctx, &cards, query, timetableID); err != nil {
		return nil, fmt.Errorf("list admit cards: %w", err)
	}
	return cards, nil
}

// CountByTimetable returns the number of admit cards stored for a timetable.
func (r *AdmitCardRepository) CountByTimetable(ctx context.Context, timetableID string) (int, error) {
	const query = `SELECT COUNT(*) FROM admit_cards WHERE timetable_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, timetableID); err != nil {
		return 0, fmt.Errorf("count admit cards: %w", err)
	}
	return count, nil
}
