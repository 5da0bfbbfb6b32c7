package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"stratix.org/internal/authz"
	"stratix.org/internal/ids"
	"stratix.org/internal/initiatives"
)

// InitiativeStore implements initiatives.Store. Assignees are stored as a
// jsonb array so the Analyst membership test runs in the database.
type InitiativeStore struct{ db *sql.DB }

var _ initiatives.Store = (*InitiativeStore)(nil)

// Initiatives returns the initiative store backed by this store's pool.
func (s *Store) Initiatives() *InitiativeStore { return &InitiativeStore{db: s.db} }

const initiativeColumns = `id, tenant_id, area_id, owner_id, assignees, title, status, created_at, updated_at`

func scanInitiative(row interface{ Scan(...any) error }) (initiatives.Initiative, error) {
	var (
		in        initiatives.Initiative
		area      sql.NullString
		assignees []byte
	)
	err := row.Scan(&in.ID, &in.TenantID, &area, &in.OwnerID, &assignees,
		&in.Title, &in.Status, &in.CreatedAt, &in.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return initiatives.Initiative{}, initiatives.ErrNotFound
	}
	if err != nil {
		return initiatives.Initiative{}, err
	}
	in.AreaID = area.String
	if len(assignees) > 0 {
		if err := json.Unmarshal(assignees, &in.Assignees); err != nil {
			return initiatives.Initiative{}, fmt.Errorf("assignees for %s: %w", in.ID, err)
		}
	}
	return in, nil
}

func (s *InitiativeStore) Get(ctx context.Context, id string) (initiatives.Initiative, error) {
	ctx, cancel := bound(ctx)
	defer cancel()
	row := s.db.QueryRowContext(ctx, `select `+initiativeColumns+` from initiatives where id = $1`, id)
	return scanInitiative(row)
}

func (s *InitiativeStore) List(ctx context.Context, f authz.Filter) ([]initiatives.Initiative, error) {
	ctx, cancel := bound(ctx)
	defer cancel()

	var (
		clauses []string
		args    []any
	)
	if f.TenantID != "" {
		args = append(args, f.TenantID)
		clauses = append(clauses, fmt.Sprintf("tenant_id = $%d", len(args)))
	}
	if f.AreaID != "" {
		args = append(args, f.AreaID)
		clauses = append(clauses, fmt.Sprintf("area_id = $%d", len(args)))
	}
	if f.OwnerID != "" {
		// Owner filters widen to assignment, mirroring single-resource
		// Analyst access.
		args = append(args, f.OwnerID)
		clauses = append(clauses, fmt.Sprintf("(owner_id = $%d or assignees ? $%d)", len(args), len(args)))
	}
	query := `select ` + initiativeColumns + ` from initiatives`
	for i, c := range clauses {
		if i == 0 {
			query += " where " + c
		} else {
			query += " and " + c
		}
	}
	query += " order by id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []initiatives.Initiative
	for rows.Next() {
		in, err := scanInitiative(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (s *InitiativeStore) Put(ctx context.Context, in initiatives.Initiative) (initiatives.Initiative, error) {
	ctx, cancel := bound(ctx)
	defer cancel()
	if in.ID == "" {
		in.ID = ids.New()
	}
	assignees, err := assigneesJSON(in.Assignees)
	if err != nil {
		return initiatives.Initiative{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		insert into initiatives (id, tenant_id, area_id, owner_id, assignees, title, status)
		values ($1, $2, $3, $4, $5, $6, $7)
		on conflict (id) do update
		set area_id = excluded.area_id,
		    assignees = excluded.assignees,
		    title = excluded.title,
		    status = excluded.status,
		    updated_at = now()
		returning `+initiativeColumns,
		in.ID, in.TenantID, nullableString(in.AreaID), in.OwnerID, assignees, in.Title, in.Status)
	return scanInitiative(row)
}

func (s *InitiativeStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := bound(ctx)
	defer cancel()
	res, err := s.db.ExecContext(ctx, `delete from initiatives where id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return initiatives.ErrNotFound
	}
	return nil
}

func assigneesJSON(ss []string) ([]byte, error) {
	if len(ss) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(ss)
}
