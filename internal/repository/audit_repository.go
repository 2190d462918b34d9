package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/arjun-mehta/school-erp-api/internal/models"
)

// AuditRepository appends and reads the immutable audit trail.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert appends one audit record.
func (r *AuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, school_id, entity_type, entity_id, action, user_id, old_value, new_value, ip_address, user_agent, created_at)
VALUES (:id, :school_id, :entity_type, :entity_id, :action, :user_id, :old_value, :new_value, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// ListForEntity returns the newest audit records for one entity.
func (r *AuditRepository) ListForEntity(ctx context.Context, schoolID, entityType, entityID string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT id, school_id, entity_type, entity_id, action, user_id, old_value, new_value, ip_address, user_agent, created_at
FROM audit_logs WHERE school_id = $1 AND entity_type = $2 AND entity_id = $3
ORDER BY created_at DESC LIMIT $4`
	var logs []models.AuditLog
	if err := r.db.SelectContext(ctx, &logs, query, schoolID, entityType, entityID, limit); err != nil {
		return nil, fmt.Errorf("list entity audit logs: %w", err)
	}
	return logs, nil
}

// ListForUser returns the newest audit records produced by one actor.
func (r *AuditRepository) ListForUser(ctx context.Context, schoolID, userID string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT id, school_id, entity_type, entity_id, action, user_id, old_value, new_value, ip_address, user_agent, created_at
FROM audit_logs WHERE school_id = $1 AND user_id = $2
ORDER BY created_at DESC LIMIT $3`
	var logs []models.AuditLog
	if err := r.db.SelectContext(ctx, &logs, query, schoolID, userID, limit); err != nil {
		return nil, fmt.Errorf("list user audit logs: %w", err)
	}
	return logs, nil
}
