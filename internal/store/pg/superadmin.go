package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"stratix.org/internal/ids"
	"stratix.org/internal/superadmin"
)

var _ superadmin.Store = (*Store)(nil)

func (s *Store) Superadmins() superadmin.SuperadminStore { return superadminStore{s.db} }
func (s *Store) Sessions() superadmin.SessionStore       { return sessionStore{s.db} }
func (s *Store) Attempts() superadmin.AttemptStore       { return attemptStore{s.db} }

type superadminStore struct{ db *sql.DB }

const superadminColumns = `id, email, name, password_hash, is_active, last_login_at, created_at, updated_at`

func scanSuperadmin(row interface{ Scan(...any) error }) (superadmin.Superadmin, error) {
	var (
		sa        superadmin.Superadmin
		lastLogin sql.NullTime
	)
	err := row.Scan(&sa.ID, &sa.Email, &sa.Name, &sa.PasswordHash, &sa.Active, &lastLogin, &sa.CreatedAt, &sa.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return superadmin.Superadmin{}, superadmin.ErrNotFound
	}
	if err != nil {
		return superadmin.Superadmin{}, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		sa.LastLoginAt = &t
	}
	return sa, nil
}

func (s superadminStore) Create(ctx context.Context, sa superadmin.Superadmin) (superadmin.Superadmin, error) {
	ctx, cancel := bound(ctx)
	defer cancel()
	if sa.ID == "" {
		sa.ID = ids.New()
	}
	row := s.db.QueryRowContext(ctx, `
		insert into superadmins (id, email, name, password_hash, is_active)
		values ($1, lower($2), $3, $4, $5)
		returning `+superadminColumns,
		sa.ID, strings.TrimSpace(sa.Email), sa.Name, sa.PasswordHash, sa.Active)
	created, err := scanSuperadmin(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return superadmin.Superadmin{}, superadmin.ErrConflict
		}
		return superadmin.Superadmin{}, err
	}
	return created, nil
}

func (s superadminStore) Find(ctx context.Context, id string) (superadmin.Superadmin, error) {
	ctx, cancel := bound(ctx)
	defer cancel()
	row := s.db.QueryRowContext(ctx, `select `+superadminColumns+` from superadmins where id = $1`, id)
	return scanSuperadmin(row)
}

func (s superadminStore) FindByEmail(ctx context.Context, email string) (superadmin.Superadmin, error) {
	ctx, cancel := bound(ctx)
	defer cancel()
	row := s.db.QueryRowContext(ctx, `select `+superadminColumns+` from superadmins where email = lower($1)`, strings.TrimSpace(email))
	return scanSuperadmin(row)
}

func (s superadminStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := bound(ctx)
	defer cancel()
	return execExpectingRow(ctx, s.db,
		`update superadmins set last_login_at = $2, updated_at = now() where id = $1`, id, at.UTC())
}

func (s superadminStore) SetActive(ctx context.Context, id string, active bool) error {
	ctx, cancel := bound(ctx)
	defer cancel()
	return execExpectingRow(ctx, s.db,
		`update superadmins set is_active = $2, updated_at = now() where id = $1`, id, active)
}

func (s superadminStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	ctx, cancel := bound(ctx)
	defer cancel()
	return execExpectingRow(ctx, s.db,
		`update superadmins set password_hash = $2, updated_at = now() where id = $1`, id, hash)
}

type sessionStore struct{ db *sql.DB }

func (s sessionStore) Create(ctx context.Context, sess superadmin.Session) error {
	ctx, cancel := bound(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `
		insert into superadmin_sessions (token, superadmin_id, issued_at, expires_at, ip, user_agent)
		values ($1, $2, $3, $4, $5, $6)`,
		sess.Token, sess.SuperadminID, sess.IssuedAt, sess.ExpiresAt, sess.IP, sess.UserAgent)
	return err
}

func (s sessionStore) Get(ctx context.Context, token string) (superadmin.Session, error) {
	ctx, cancel := bound(ctx)
	defer cancel()
	var sess superadmin.Session
	err := s.db.QueryRowContext(ctx, `
		select token, superadmin_id, issued_at, expires_at, ip, user_agent
		from superadmin_sessions where token = $1`, token).
		Scan(&sess.Token, &sess.SuperadminID, &sess.IssuedAt, &sess.ExpiresAt, &sess.IP, &sess.UserAgent)
	if errors.Is(err, sql.ErrNoRows) {
		return superadmin.Session{}, superadmin.ErrNotFound
	}
	if err != nil {
		return superadmin.Session{}, err
	}
	return sess, nil
}

func (s sessionStore) Delete(ctx context.Context, token string) error {
	ctx, cancel := bound(ctx)
	defer cancel()
	res, err := s.db.ExecContext(ctx, `delete from superadmin_sessions where token = $1`, token)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return superadmin.ErrNotFound
	}
	return nil
}

func (s sessionStore) DeleteBySuperadmin(ctx context.Context, superadminID string) (int, error) {
	ctx, cancel := bound(ctx)
	defer cancel()
	res, err := s.db.ExecContext(ctx, `delete from superadmin_sessions where superadmin_id = $1`, superadminID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s sessionStore) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	ctx, cancel := bound(ctx)
	defer cancel()
	res, err := s.db.ExecContext(ctx, `delete from superadmin_sessions where expires_at <= $1`, before)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

type attemptStore struct{ db *sql.DB }

func (s attemptStore) Get(ctx context.Context, key string) (superadmin.Counter, error) {
	ctx, cancel := bound(ctx)
	defer cancel()
	var c superadmin.Counter
	var locked sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		select key, attempt_count, window_expires_at, locked_until
		from login_attempts where key = $1`, key).
		Scan(&c.Key, &c.Count, &c.WindowExpires, &locked)
	if errors.Is(err, sql.ErrNoRows) {
		return superadmin.Counter{}, superadmin.ErrNotFound
	}
	if err != nil {
		return superadmin.Counter{}, err
	}
	if locked.Valid {
		c.LockedUntil = locked.Time
	}
	return c, nil
}

func (s attemptStore) Put(ctx context.Context, c superadmin.Counter) error {
	ctx, cancel := bound(ctx)
	defer cancel()
	// Row-level upsert keeps locking per key; unrelated keys never contend.
	_, err := s.db.ExecContext(ctx, `
		insert into login_attempts (key, attempt_count, window_expires_at, locked_until)
		values ($1, $2, $3, $4)
		on conflict (key) do update
		set attempt_count = excluded.attempt_count,
		    window_expires_at = excluded.window_expires_at,
		    locked_until = excluded.locked_until`,
		c.Key, c.Count, c.WindowExpires, nullableTime(c.LockedUntil))
	return err
}

func (s attemptStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := bound(ctx)
	defer cancel()
	res, err := s.db.ExecContext(ctx, `delete from login_attempts where key = $1`, key)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return superadmin.ErrNotFound
	}
	return nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func execExpectingRow(ctx context.Context, db *sql.DB, query string, args ...any) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return superadmin.ErrNotFound
	}
	return nil
}
