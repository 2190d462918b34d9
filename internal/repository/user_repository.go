package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/arjun-mehta/school-erp-api/internal/models"
)

// UserRepository provides persistence for users and access profiles.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates the repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT id, school_id, email, password_hash, full_name, role, active, last_login, created_at, updated_at
FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail returns a user by email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	const query = `SELECT id, school_id, email, password_hash, full_name, role, active, last_login, created_at, updated_at
FROM users WHERE email = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateLastLogin stamps the last successful login.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE users SET last_login = $1, updated_at = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, ts, id); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// ContactsByIDs returns the email and display name of the given users,
// used by the email fan-out.
func (r *UserRepository) ContactsByIDs(ctx context.Context, ids []string) ([]models.UserContact, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT id, email, full_name FROM users WHERE id IN (%s)`, strings.Join(placeholders, ", "))
	var contacts []models.UserContact
	if err := r.db.SelectContext(ctx, &contacts, query, args...); err != nil {
		return nil, fmt.Errorf("load user contacts: %w", err)
	}
	return contacts, nil
}

// AccessProfile joins a user to their student/teacher/guardian identity.
// Returns sql.ErrNoRows when the user does not exist.
func (r *UserRepository) AccessProfile(ctx context.Context, userID string) (*models.AccessProfile, error) {
	const query = `SELECT u.id AS user_id, u.role, u.school_id,
st.academic_unit_id AS student_unit_id, te.id AS teacher_id, g.id AS guardian_id
FROM users u
LEFT JOIN students st ON st.user_id = u.id
LEFT JOIN teachers te ON te.user_id = u.id
LEFT JOIN guardians g ON g.user_id = u.id
WHERE u.id = $1 LIMIT 1`
	var profile models.AccessProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		return nil, err
	}
	return &profile, nil
}
