package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"stratix.org/internal/audit"
	"stratix.org/internal/directory"
	"stratix.org/internal/superadmin"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSuperadminFindByEmail(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("select id, email, name, password_hash, is_active, last_login_at, created_at, updated_at from superadmins where email").
		WithArgs("root@stratix.org").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "email", "name", "password_hash", "is_active", "last_login_at", "created_at", "updated_at",
		}).AddRow("01SA", "root@stratix.org", "Root", "pbkdf2-sha256$x", true, nil, now, now))

	sa, err := store.Superadmins().FindByEmail(context.Background(), "root@stratix.org")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if sa.ID != "01SA" || !sa.Active {
		t.Fatalf("unexpected superadmin: %+v", sa)
	}
	if sa.LastLoginAt != nil {
		t.Fatalf("expected nil last login, got %v", sa.LastLoginAt)
	}
	expectationsMet(t, mock)
}

func TestSuperadminFindByEmailNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select id, email, name, password_hash, is_active, last_login_at, created_at, updated_at from superadmins where email").
		WithArgs("ghost@stratix.org").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Superadmins().FindByEmail(context.Background(), "ghost@stratix.org")
	if !errors.Is(err, superadmin.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestSuperadminCreateDuplicateEmail(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("insert into superadmins").
		WithArgs(sqlmock.AnyArg(), "root@stratix.org", "Root", "hash", true).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	_, err := store.Superadmins().Create(context.Background(), superadmin.Superadmin{
		Email:        "root@stratix.org",
		Name:         "Root",
		PasswordHash: "hash",
		Active:       true,
	})
	if !errors.Is(err, superadmin.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestSessionDeleteMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("delete from superadmin_sessions where token").
		WithArgs("tok").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Sessions().Delete(context.Background(), "tok")
	if !errors.Is(err, superadmin.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestSessionDeleteExpiredReportsCount(t *testing.T) {
	store, mock := newMockStore(t)
	cutoff := time.Now().UTC()

	mock.ExpectExec("delete from superadmin_sessions where expires_at").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.Sessions().DeleteExpired(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 reaped, got %d", n)
	}
	expectationsMet(t, mock)
}

func TestAttemptPutUpserts(t *testing.T) {
	store, mock := newMockStore(t)
	window := time.Now().UTC().Add(15 * time.Minute)

	mock.ExpectExec("insert into login_attempts").
		WithArgs("root@stratix.org", 2, window, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Attempts().Put(context.Background(), superadmin.Counter{
		Key:           "root@stratix.org",
		Count:         2,
		WindowExpires: window,
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	expectationsMet(t, mock)
}

func TestAuditAppend(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectExec("insert into audit_entries").
		WithArgs("01E1", now, "superadmin", "01SA", "superadmin.login",
			nil, nil, nil, nil, "198.51.100.7", "curl/8", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Audit().Append(context.Background(), audit.Entry{
		ID:         "01E1",
		OccurredAt: now,
		ActorType:  audit.ActorSuperadmin,
		ActorID:    "01SA",
		Action:     "superadmin.login",
		IP:         "198.51.100.7",
		UserAgent:  "curl/8",
		Metadata:   map[string]string{"email": "root@stratix.org"},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	expectationsMet(t, mock)
}

func TestAuditQueryFiltersAndCursor(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("from audit_entries where actor_id = .+ and action = .+ and id < .+ order by id desc limit").
		WithArgs("01SA", "superadmin.login", "01E9", 50).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "occurred_at", "actor_type", "actor_id", "action",
			"target_type", "target_id", "before_state", "after_state",
			"ip", "user_agent", "metadata",
		}).AddRow("01E5", now, "superadmin", "01SA", "superadmin.login",
			nil, nil, nil, nil, nil, nil, []byte(`{"email":"root@stratix.org"}`)))

	entries, err := store.Audit().Query(context.Background(), audit.Filter{
		ActorID: "01SA",
		Action:  "superadmin.login",
		Cursor:  "01E9",
		Limit:   50,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "01E5" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if entries[0].Metadata["email"] != "root@stratix.org" {
		t.Fatalf("metadata not decoded: %+v", entries[0].Metadata)
	}
	expectationsMet(t, mock)
}

func TestDirectoryGetUser(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("select id, tenant_id, email, role, area_id, is_active, created_at, updated_at from users where id").
		WithArgs("01U1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "tenant_id", "email", "role", "area_id", "is_active", "created_at", "updated_at",
		}).AddRow("01U1", "01T1", "m@acme.test", "manager", "01A1", true, now, now))

	u, err := store.Directory().GetUser(context.Background(), "01U1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.Role != "manager" || u.AreaID != "01A1" {
		t.Fatalf("unexpected user: %+v", u)
	}
	expectationsMet(t, mock)
}

func TestDirectoryCreateTenantDuplicateSubdomain(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("insert into tenants").
		WithArgs(sqlmock.AnyArg(), "Acme", "acme", true).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	_, err := store.Directory().CreateTenant(context.Background(), directory.Tenant{
		Name:      "Acme",
		Subdomain: "acme",
		Active:    true,
	})
	if !errors.Is(err, directory.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestDirectoryUpdateUserRoleRejectsManagerWithoutArea(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("select id, tenant_id, email, role, area_id, is_active, created_at, updated_at from users where id").
		WithArgs("01U1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "tenant_id", "email", "role", "area_id", "is_active", "created_at", "updated_at",
		}).AddRow("01U1", "01T1", "a@acme.test", "analyst", nil, true, now, now))

	_, err := store.Directory().UpdateUserRole(context.Background(), "01U1", "manager", "")
	if !errors.Is(err, directory.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestDirectoryUpdateUserRole(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("select id, tenant_id, email, role, area_id, is_active, created_at, updated_at from users where id").
		WithArgs("01U1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "tenant_id", "email", "role", "area_id", "is_active", "created_at", "updated_at",
		}).AddRow("01U1", "01T1", "a@acme.test", "analyst", nil, true, now, now))
	mock.ExpectQuery("update users set role").
		WithArgs("01U1", "manager", "01A1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "tenant_id", "email", "role", "area_id", "is_active", "created_at", "updated_at",
		}).AddRow("01U1", "01T1", "a@acme.test", "manager", "01A1", true, now, now))

	u, err := store.Directory().UpdateUserRole(context.Background(), "01U1", "manager", "01A1")
	if err != nil {
		t.Fatalf("UpdateUserRole: %v", err)
	}
	if u.Role != "manager" || u.AreaID != "01A1" {
		t.Fatalf("unexpected user after update: %+v", u)
	}
	expectationsMet(t, mock)
}
