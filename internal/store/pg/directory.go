package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"stratix.org/internal/directory"
	"stratix.org/internal/ids"
)

// DirectoryStore implements directory.Store over the tenants, areas, and
// users tables.
type DirectoryStore struct{ db *sql.DB }

var _ directory.Store = (*DirectoryStore)(nil)

// Directory returns the tenant/area/user directory backed by this store's
// pool.
func (s *Store) Directory() *DirectoryStore { return &DirectoryStore{db: s.db} }

const (
	tenantColumns = `id, name, subdomain, is_active, created_at, updated_at`
	areaColumns   = `id, tenant_id, name, manager_id, is_active, created_at, updated_at`
	userColumns   = `id, tenant_id, email, role, area_id, is_active, created_at, updated_at`
)

func scanTenant(row interface{ Scan(...any) error }) (directory.Tenant, error) {
	var t directory.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Subdomain, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Tenant{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.Tenant{}, err
	}
	return t, nil
}

func scanArea(row interface{ Scan(...any) error }) (directory.Area, error) {
	var (
		a       directory.Area
		manager sql.NullString
	)
	err := row.Scan(&a.ID, &a.TenantID, &a.Name, &manager, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Area{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.Area{}, err
	}
	a.ManagerID = manager.String
	return a, nil
}

func scanUser(row interface{ Scan(...any) error }) (directory.User, error) {
	var (
		u    directory.User
		area sql.NullString
	)
	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.Role, &area, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.User{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.User{}, err
	}
	u.AreaID = area.String
	return u, nil
}

func (d *DirectoryStore) GetTenant(ctx context.Context, id string) (directory.Tenant, error) {
	ctx, cancel := bound(ctx)
	defer cancel()
	row := d.db.QueryRowContext(ctx, `select `+tenantColumns+` from tenants where id = $1`, id)
	return scanTenant(row)
}

func (d *DirectoryStore) GetTenantBySubdomain(ctx context.Context, subdomain string) (directory.Tenant, error) {
	ctx, cancel := bound(ctx)
	defer cancel()
	row := d.db.QueryRowContext(ctx,
		`select `+tenantColumns+` from tenants where subdomain = lower($1)`,
		strings.TrimSpace(subdomain))
	return scanTenant(row)
}

func (d *DirectoryStore) CreateTenant(ctx context.Context, t directory.Tenant) (directory.Tenant, error) {
	ctx, cancel := bound(ctx)
	defer cancel()
	if t.ID == "" {
		t.ID = ids.New()
	}
	row := d.db.QueryRowContext(ctx, `
		insert into tenants (id, name, subdomain, is_active)
		values ($1, $2, lower($3), $4)
		returning `+tenantColumns,
		t.ID, strings.TrimSpace(t.Name), strings.TrimSpace(t.Subdomain), t.Active)
	created, err := scanTenant(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return directory.Tenant{}, fmt.Errorf("%w: subdomain taken", directory.ErrConflict)
		}
		return directory.Tenant{}, err
	}
	return created, nil
}

func (d *DirectoryStore) SetTenantActive(ctx context.Context, id string, active bool) error {
	ctx, cancel := bound(ctx)
	defer cancel()
	res, err := d.db.ExecContext(ctx,
		`update tenants set is_active = $2, updated_at = now() where id = $1`, id, active)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return directory.ErrNotFound
	}
	return nil
}

func (d *DirectoryStore) ListTenants(ctx context.Context) ([]directory.Tenant, error) {
	ctx, cancel := bound(ctx)
	defer cancel()
	rows, err := d.db.QueryContext(ctx, `select `+tenantColumns+` from tenants order by created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tenants []directory.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func (d *DirectoryStore) GetArea(ctx context.Context, id string) (directory.Area, error) {
	ctx, cancel := bound(ctx)
	defer cancel()
	row := d.db.QueryRowContext(ctx, `select `+areaColumns+` from areas where id = $1`, id)
	return scanArea(row)
}

func (d *DirectoryStore) ListAreasByTenant(ctx context.Context, tenantID string) ([]directory.Area, error) {
	ctx, cancel := bound(ctx)
	defer cancel()
	return d.listAreas(ctx, `select `+areaColumns+` from areas where tenant_id = $1 order by name`, tenantID)
}

func (d *DirectoryStore) ListAreasByManager(ctx context.Context, userID string) ([]directory.Area, error) {
	ctx, cancel := bound(ctx)
	defer cancel()
	return d.listAreas(ctx, `select `+areaColumns+` from areas where manager_id = $1 order by name`, userID)
}

func (d *DirectoryStore) listAreas(ctx context.Context, query string, arg any) ([]directory.Area, error) {
	rows, err := d.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var areas []directory.Area
	for rows.Next() {
		a, err := scanArea(rows)
		if err != nil {
			return nil, err
		}
		areas = append(areas, a)
	}
	return areas, rows.Err()
}

func (d *DirectoryStore) GetUser(ctx context.Context, id string) (directory.User, error) {
	ctx, cancel := bound(ctx)
	defer cancel()
	row := d.db.QueryRowContext(ctx, `select `+userColumns+` from users where id = $1`, id)
	return scanUser(row)
}

func (d *DirectoryStore) GetUserByEmail(ctx context.Context, tenantID, email string) (directory.User, error) {
	ctx, cancel := bound(ctx)
	defer cancel()
	row := d.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where tenant_id = $1 and email = lower($2)`,
		tenantID, strings.TrimSpace(email))
	return scanUser(row)
}

// UpdateUserRole rewrites the role/area pair in one statement so the
// manager-requires-area invariant cannot be observed half-applied.
func (d *DirectoryStore) UpdateUserRole(ctx context.Context, userID, role, areaID string) (directory.User, error) {
	ctx, cancel := bound(ctx)
	defer cancel()
	current, err := d.GetUser(ctx, userID)
	if err != nil {
		return directory.User{}, err
	}
	current.Role = role
	current.AreaID = areaID
	if err := directory.ValidateUser(current); err != nil {
		return directory.User{}, err
	}
	row := d.db.QueryRowContext(ctx, `
		update users set role = $2, area_id = $3, updated_at = now()
		where id = $1
		returning `+userColumns,
		userID, role, nullableString(areaID))
	updated, err := scanUser(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return directory.User{}, fmt.Errorf("%w: unknown area %s", directory.ErrInvalidInput, areaID)
		}
		return directory.User{}, err
	}
	return updated, nil
}
