package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/creditshare/creditshare/internal/database"
	"github.com/creditshare/creditshare/internal/model"
)

// AuditRepository persists audit log entries. Entries are insert-only.
type AuditRepository struct {
	db *database.Postgres
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *database.Postgres) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts a new audit log entry
func (r *AuditRepository) Create(ctx context.Context, entry *model.AuditLog) error {
	details, err := json.Marshal(entry.Details)
	if err != nil || entry.Details == nil {
		details = []byte("{}")
	}

	query := `
		INSERT INTO audit_logs (id, actor_id, actor_email, actor_role, action,
		    resource_type, resource_id, details, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = r.db.ExecContext(ctx, query,
		entry.ID,
		entry.ActorID,
		entry.ActorEmail,
		entry.ActorRole,
		entry.Action,
		entry.ResourceType,
		entry.ResourceID,
		details,
		entry.IPAddress,
		entry.UserAgent,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

// List returns entries matching filter, newest first
func (r *AuditRepository) List(ctx context.Context, filter model.AuditFilter, limit, offset int) ([]*model.AuditLog, error) {
	query, args := buildAuditQuery(filter, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	entries := make([]*model.AuditLog, 0)
	for rows.Next() {
		var (
			e       model.AuditLog
			details []byte
		)
		if err := rows.Scan(
			&e.ID,
			&e.ActorID,
			&e.ActorEmail,
			&e.ActorRole,
			&e.Action,
			&e.ResourceType,
			&e.ResourceID,
			&details,
			&e.IPAddress,
			&e.UserAgent,
			&e.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("failed to decode audit details: %w", err)
			}
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit logs: %w", err)
	}
	return entries, nil
}

func buildAuditQuery(filter model.AuditFilter, limit, offset int) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	if filter.ActorID != "" {
		args = append(args, filter.ActorID)
		where = append(where, fmt.Sprintf("actor_id = $%d", len(args)))
	}
	if filter.Action != "" {
		args = append(args, filter.Action)
		where = append(where, fmt.Sprintf("action = $%d", len(args)))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}

	var b strings.Builder
	b.WriteString(`SELECT id, actor_id, actor_email, actor_role, action, resource_type, resource_id,
		details, ip_address, user_agent, created_at FROM audit_logs`)
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	args = append(args, limit, offset)
	fmt.Fprintf(&b, " ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	return b.String(), args
}
