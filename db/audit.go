package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// AuditLog (Журнал действий — только добавление, записи не меняются)
type AuditLog struct {
	ID        string    `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	Action    string    `db:"action" json:"action"`
	Entity    string    `db:"entity" json:"entity"`
	EntityID  string    `db:"entity_id" json:"entityId"`
	Details   []byte    `db:"details" json:"details,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

func (s *Storage) CreateAuditLog(ctx context.Context, a *AuditLog) error {
	query := `
        INSERT INTO audit_log (id, username, action, entity, entity_id, details)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at`
	return s.db.QueryRowContext(ctx, query,
		a.ID, a.Username, a.Action, a.Entity, a.EntityID, a.Details).
		Scan(&a.CreatedAt)
}

// AuditFilter — типизированный фильтр журнала.
type AuditFilter struct {
	Entity string
	Action string
	Limit  int
	Offset int
}

func (s *Storage) GetAuditLogs(ctx context.Context, f AuditFilter) ([]AuditLog, error) {
	var conds []string
	var args []interface{}

	if f.Entity != "" {
		args = append(args, f.Entity)
		conds = append(conds, fmt.Sprintf("entity = $%d", len(args)))
	}
	if f.Action != "" {
		args = append(args, f.Action)
		conds = append(conds, fmt.Sprintf("action = $%d", len(args)))
	}

	query := `SELECT * FROM audit_log`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)

	logs := []AuditLog{}
	if err := s.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, err
	}
	return logs, nil
}
