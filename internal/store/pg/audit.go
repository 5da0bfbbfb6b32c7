package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"stratix.org/internal/audit"
)

// AuditStore implements audit.Store over the audit_entries table. Entries
// are append-only; nothing in this type (or the schema grants) can mutate
// or delete a row once written.
type AuditStore struct{ db *sql.DB }

var _ audit.Store = (*AuditStore)(nil)

// Audit returns the audit log backed by this store's pool.
func (s *Store) Audit() *AuditStore { return &AuditStore{db: s.db} }

func (a *AuditStore) Append(ctx context.Context, e audit.Entry) error {
	ctx, cancel := bound(ctx)
	defer cancel()
	metadata, err := encodeMetadata(e.Metadata)
	if err != nil {
		return fmt.Errorf("audit append: %w", err)
	}
	_, err = a.db.ExecContext(ctx, `
		insert into audit_entries
			(id, occurred_at, actor_type, actor_id, action, target_type, target_id,
			 before_state, after_state, ip, user_agent, metadata)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.ID, e.OccurredAt, e.ActorType, e.ActorID, e.Action,
		nullableString(e.TargetType), nullableString(e.TargetID),
		nullableJSON(e.Before), nullableJSON(e.After),
		nullableString(e.IP), nullableString(e.UserAgent), metadata)
	return err
}

func (a *AuditStore) Query(ctx context.Context, f audit.Filter) ([]audit.Entry, error) {
	ctx, cancel := bound(ctx)
	defer cancel()

	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.ActorID != "" {
		add("actor_id = $%d", f.ActorID)
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if f.TargetType != "" {
		add("target_type = $%d", f.TargetType)
	}
	if f.TargetID != "" {
		add("target_id = $%d", f.TargetID)
	}
	if !f.From.IsZero() {
		add("occurred_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("occurred_at <= $%d", f.To)
	}
	if f.Cursor != "" {
		// ULIDs sort by creation time, so "older than cursor" is a plain
		// comparison on the primary key.
		add("id < $%d", f.Cursor)
	}

	query := `
		select id, occurred_at, actor_type, actor_id, action, target_type, target_id,
		       before_state, after_state, ip, user_agent, metadata
		from audit_entries`
	if len(clauses) > 0 {
		query += " where " + strings.Join(clauses, " and ")
	}
	args = append(args, f.Limit)
	query += fmt.Sprintf(" order by id desc limit $%d", len(args))

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			e          audit.Entry
			targetType sql.NullString
			targetID   sql.NullString
			before     []byte
			after      []byte
			ip         sql.NullString
			userAgent  sql.NullString
			metadata   []byte
		)
		if err := rows.Scan(&e.ID, &e.OccurredAt, &e.ActorType, &e.ActorID, &e.Action,
			&targetType, &targetID, &before, &after, &ip, &userAgent, &metadata); err != nil {
			return nil, err
		}
		e.TargetType = targetType.String
		e.TargetID = targetID.String
		e.Before = json.RawMessage(before)
		e.After = json.RawMessage(after)
		e.IP = ip.String
		e.UserAgent = userAgent.String
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("audit metadata for %s: %w", e.ID, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func encodeMetadata(m map[string]string) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
