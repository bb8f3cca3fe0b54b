package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// DBLogger persists audit events to PostgreSQL.
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a database-backed audit logger and ensures the
// audit_logs table exists.
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	logger := &DBLogger{db: db}
	if err := logger.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_logs table: %w", err)
	}
	return logger, nil
}

func (l *DBLogger) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_logs (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
		event_type VARCHAR(100) NOT NULL,
		status VARCHAR(20) NOT NULL,
		user_id BIGINT,
		workspace_id BIGINT,
		action VARCHAR(100),
		resource_type VARCHAR(50),
		resource_id VARCHAR(255),
		request_id VARCHAR(100),
		ip_address VARCHAR(45),
		message TEXT,
		error_message TEXT,
		metadata JSONB,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_event_type ON audit_logs(event_type);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_user_id ON audit_logs(user_id);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_workspace_id ON audit_logs(workspace_id);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs(resource_type, resource_id);
	`

	_, err := l.db.Exec(query)
	return err
}

// Log inserts a single audit event.
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	var metadata interface{}
	if event.Metadata != nil {
		encoded, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadata = encoded
	}

	query := `
		INSERT INTO audit_logs (timestamp, event_type, status, user_id, workspace_id,
			action, resource_type, resource_id, request_id, ip_address,
			message, error_message, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`

	err := l.db.QueryRowContext(ctx, query,
		event.Timestamp,
		event.EventType,
		event.Status,
		event.UserID,
		event.WorkspaceID,
		nullIfEmpty(event.Action),
		nullIfEmpty(event.ResourceType),
		nullIfEmpty(event.ResourceID),
		nullIfEmpty(event.RequestID),
		nullIfEmpty(event.IPAddress),
		nullIfEmpty(event.Message),
		nullIfEmpty(event.ErrorMessage),
		metadata,
	).Scan(&event.ID)

	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// Search returns events matching the filter, newest first.
func (l *DBLogger) Search(ctx context.Context, filter Filter) ([]*Event, error) {
	query := `
		SELECT id, timestamp, event_type, status, user_id, workspace_id,
		       action, resource_type, resource_id, request_id, ip_address,
		       message, error_message, metadata
		FROM audit_logs
		WHERE 1=1
	`
	args := []interface{}{}
	idx := 1

	addArg := func(clause string, value interface{}) {
		query += fmt.Sprintf(" AND %s $%d", clause, idx)
		args = append(args, value)
		idx++
	}

	if filter.StartTime != nil {
		addArg("timestamp >=", *filter.StartTime)
	}
	if filter.EndTime != nil {
		addArg("timestamp <=", *filter.EndTime)
	}
	if filter.UserID != nil {
		addArg("user_id =", *filter.UserID)
	}
	if filter.WorkspaceID != nil {
		addArg("workspace_id =", *filter.WorkspaceID)
	}
	if len(filter.EventTypes) > 0 {
		types := make([]string, len(filter.EventTypes))
		for i, et := range filter.EventTypes {
			types[i] = string(et)
		}
		query += fmt.Sprintf(" AND event_type = ANY($%d)", idx)
		args = append(args, pq.Array(types))
		idx++
	}
	if filter.Status != nil {
		addArg("status =", string(*filter.Status))
	}
	if filter.ResourceType != "" {
		addArg("resource_type =", filter.ResourceType)
	}
	if filter.ResourceID != "" {
		addArg("resource_id =", filter.ResourceID)
	}

	query += " ORDER BY timestamp DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT $%d", idx)
	args = append(args, limit)
	idx++
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", idx)
		args = append(args, filter.Offset)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit logs: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// Purge deletes events older than the cutoff and returns the row count.
// Called by the retention sweep.
func (l *DBLogger) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := l.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE timestamp < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to purge audit logs: %w", err)
	}
	return result.RowsAffected()
}

// Close is a no-op; the database handle is owned by the caller.
func (l *DBLogger) Close() error { return nil }

func scanEvent(rows *sql.Rows) (*Event, error) {
	var event Event
	var userID, workspaceID sql.NullInt64
	var action, resourceType, resourceID, requestID, ipAddress sql.NullString
	var message, errorMessage sql.NullString
	var metadata []byte

	err := rows.Scan(
		&event.ID,
		&event.Timestamp,
		&event.EventType,
		&event.Status,
		&userID,
		&workspaceID,
		&action,
		&resourceType,
		&resourceID,
		&requestID,
		&ipAddress,
		&message,
		&errorMessage,
		&metadata,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit event: %w", err)
	}

	if userID.Valid {
		id := userID.Int64
		event.UserID = &id
	}
	if workspaceID.Valid {
		id := workspaceID.Int64
		event.WorkspaceID = &id
	}
	event.Action = action.String
	event.ResourceType = resourceType.String
	event.ResourceID = resourceID.String
	event.RequestID = requestID.String
	event.IPAddress = ipAddress.String
	event.Message = message.String
	event.ErrorMessage = errorMessage.String

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
			event.Metadata = nil
		}
	}

	return &event, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
