package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// DefaultSearchLimit caps Search results when the filter passes no limit
const DefaultSearchLimit = 100

// DBRecorder implements Recorder backed by PostgreSQL
type DBRecorder struct {
	db *sql.DB
}

// NewDBRecorder creates a new database-backed audit recorder
func NewDBRecorder(db *sql.DB) (*DBRecorder, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &DBRecorder{db: db}, nil
}

// Record appends one event to the trail
func (r *DBRecorder) Record(ctx context.Context, event *Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	var metadata []byte
	if event.Metadata != nil {
		var err error
		metadata, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO audit_logs
			(timestamp, event_type, status, user_id, organization_id,
			 request_id, method, path, message, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	var userID, orgID sql.NullInt64
	if event.UserID != nil {
		userID = sql.NullInt64{Int64: *event.UserID, Valid: true}
	}
	if event.OrganizationID != nil {
		orgID = sql.NullInt64{Int64: *event.OrganizationID, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query,
		event.Timestamp, event.EventType, event.Status, userID, orgID,
		event.RequestID, event.Method, event.Path, event.Message, metadata).
		Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

// Search returns trail entries matching the filter, newest first
func (r *DBRecorder) Search(ctx context.Context, filter SearchFilter) ([]*Event, error) {
	var conditions []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.OrganizationID != nil {
		conditions = append(conditions, "organization_id = "+arg(*filter.OrganizationID))
	}
	if filter.UserID != nil {
		conditions = append(conditions, "user_id = "+arg(*filter.UserID))
	}
	if len(filter.EventTypes) > 0 {
		types := make([]string, len(filter.EventTypes))
		for i, et := range filter.EventTypes {
			types[i] = string(et)
		}
		conditions = append(conditions, "event_type = ANY("+arg(pq.Array(types))+")")
	}
	if filter.Since != nil {
		conditions = append(conditions, "timestamp >= "+arg(*filter.Since))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	query := `
		SELECT id, timestamp, event_type, status, user_id, organization_id,
		       request_id, method, path, message, metadata
		FROM audit_logs
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp DESC LIMIT " + arg(limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit logs: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event := &Event{}
		var userID, orgID sql.NullInt64
		var metadata []byte
		if err := rows.Scan(&event.ID, &event.Timestamp, &event.EventType, &event.Status,
			&userID, &orgID, &event.RequestID, &event.Method, &event.Path,
			&event.Message, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if userID.Valid {
			event.UserID = &userID.Int64
		}
		if orgID.Valid {
			event.OrganizationID = &orgID.Int64
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		events = append(events, event)
	}

	return events, rows.Err()
}
