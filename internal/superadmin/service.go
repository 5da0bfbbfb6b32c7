package superadmin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stratix.org/internal/audit"
	"stratix.org/internal/obs"
)

// Audit actions emitted by the service.
const (
	actionLogin             = "superadmin.login"
	actionLoginFailed       = "superadmin.login.failed"
	actionLoginRateLimited  = "superadmin.login.ratelimited"
	actionLoginIPRejected   = "superadmin.login.ip_rejected"
	actionSessionIPRejected = "superadmin.session.ip_rejected"
	actionLogout            = "superadmin.logout"
)

// Service composes the credential hasher, session store, rate limiter, and
// audit writer into the login/logout/validate API of the platform-operator
// plane. It shares nothing with tenant authentication except the audit log.
type Service struct {
	superadmins SuperadminStore
	sessions    *Sessions
	limiter     *Limiter
	auditor     *audit.Writer
	allowedIPs  map[string]struct{}
	now         func() time.Time
}

// Option configures Service.
type Option func(*Service)

// WithAllowedIPs enables the optional IP allow-list hardening layer. An
// empty list keeps the check disabled.
func WithAllowedIPs(ips []string) Option {
	return func(s *Service) {
		for _, ip := range ips {
			ip = strings.TrimSpace(ip)
			if ip == "" {
				continue
			}
			if s.allowedIPs == nil {
				s.allowedIPs = make(map[string]struct{})
			}
			s.allowedIPs[ip] = struct{}{}
		}
	}
}

// WithServiceClock overrides the time source, for tests.
func WithServiceClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService wires the collaborators together.
func NewService(superadmins SuperadminStore, sessions *Sessions, limiter *Limiter, auditor *audit.Writer, opts ...Option) (*Service, error) {
	if superadmins == nil || sessions == nil || limiter == nil || auditor == nil {
		return nil, errors.New("superadmin: all collaborators are required")
	}
	s := &Service{
		superadmins: superadmins,
		sessions:    sessions,
		limiter:     limiter,
		auditor:     auditor,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Login runs the strict attempt sequence: rate-check, credential check,
// session issue, audit. The rate check completes before any secret
// comparison, and a confirmed-lost audit record fails the whole login.
func (s *Service) Login(ctx context.Context, email, password, ip, userAgent string) (Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}

	for _, key := range []string{email, IPKey(ip)} {
		locked, remaining, err := s.limiter.IsLocked(ctx, key)
		if err != nil {
			return Session{}, err
		}
		if locked {
			obs.ObserveSuperadminLogin("ratelimited")
			s.auditAttempt(ctx, audit.Entry{
				ActorID:  email,
				Action:   actionLoginRateLimited,
				IP:       ip,
				Metadata: map[string]string{"key": key},
			}, userAgent)
			return Session{}, &RateLimitedError{RetryAfter: remaining}
		}
	}

	if !s.ipAllowed(ip) {
		obs.ObserveSuperadminLogin("ip_rejected")
		s.auditAttempt(ctx, audit.Entry{ActorID: email, Action: actionLoginIPRejected, IP: ip}, userAgent)
		return Session{}, ErrInvalidCredentials
	}

	sa, err := s.superadmins.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Session{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if errors.Is(err, ErrNotFound) || !sa.Active {
		// Same failure shape as a wrong password, no account enumeration.
		return Session{}, s.failAttempt(ctx, email, ip, userAgent, "unknown_or_inactive")
	}

	if !VerifyPassword(sa.PasswordHash, password) {
		return Session{}, s.failAttempt(ctx, email, ip, userAgent, "bad_password")
	}

	for _, key := range []string{email, IPKey(ip)} {
		if err := s.limiter.Reset(ctx, key); err != nil {
			return Session{}, err
		}
	}

	session, err := s.sessions.Create(ctx, sa.ID, ip, userAgent)
	if err != nil {
		return Session{}, err
	}
	if err := s.superadmins.UpdateLastLogin(ctx, sa.ID, s.now()); err != nil {
		_ = s.sessions.Revoke(ctx, session.Token)
		return Session{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	err = s.auditor.Append(ctx, audit.Entry{
		ActorType:  audit.ActorSuperadmin,
		ActorID:    sa.ID,
		Action:     actionLogin,
		TargetType: "superadmin",
		TargetID:   sa.ID,
		IP:         ip,
		UserAgent:  userAgent,
	})
	if err != nil {
		// Never hand out a session whose issuance has no audit record.
		_ = s.sessions.Revoke(ctx, session.Token)
		return Session{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	obs.ObserveSuperadminLogin("success")
	return session, nil
}

// Validate resolves a session token and re-checks the owning account's
// active flag on every call, so deactivation cuts off existing sessions
// immediately.
func (s *Service) Validate(ctx context.Context, token, ip string) (Superadmin, Session, error) {
	if !s.ipAllowed(ip) {
		s.auditAttempt(ctx, audit.Entry{Action: actionSessionIPRejected, IP: ip}, "")
		return Superadmin{}, Session{}, ErrUnauthorized
	}
	session, err := s.sessions.Validate(ctx, token)
	if err != nil {
		return Superadmin{}, Session{}, err
	}
	sa, err := s.superadmins.Find(ctx, session.SuperadminID)
	if errors.Is(err, ErrNotFound) {
		return Superadmin{}, Session{}, ErrUnauthorized
	}
	if err != nil {
		return Superadmin{}, Session{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !sa.Active {
		_, _ = s.sessions.RevokeAll(ctx, sa.ID)
		return Superadmin{}, Session{}, ErrUnauthorized
	}
	return sa, session, nil
}

// Logout revokes the session and audits the event whether or not the token
// was still valid. Best-effort and idempotent.
func (s *Service) Logout(ctx context.Context, token, ip, userAgent string) error {
	actorID := ""
	if session, err := s.sessions.Validate(ctx, token); err == nil {
		actorID = session.SuperadminID
	}
	if err := s.sessions.Revoke(ctx, token); err != nil {
		return err
	}
	return s.auditor.Append(ctx, audit.Entry{
		ActorType: audit.ActorSuperadmin,
		ActorID:   actorID,
		Action:    actionLogout,
		IP:        ip,
		UserAgent: userAgent,
	})
}

// Deactivate flips the account inactive and revokes its sessions. The
// audit write runs first: a deactivation that cannot be audited does not
// happen.
func (s *Service) Deactivate(ctx context.Context, actorID, targetID, ip, userAgent string) error {
	err := s.auditor.Append(ctx, audit.Entry{
		ActorType:  audit.ActorSuperadmin,
		ActorID:    actorID,
		Action:     "superadmin.deactivate",
		TargetType: "superadmin",
		TargetID:   targetID,
		IP:         ip,
		UserAgent:  userAgent,
	})
	if err != nil {
		return err
	}
	if err := s.superadmins.SetActive(ctx, targetID, false); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	_, _ = s.sessions.RevokeAll(ctx, targetID)
	return nil
}

// ResetPassword rotates the stored hash and revokes existing sessions.
func (s *Service) ResetPassword(ctx context.Context, actorID, targetID, newPassword, ip, userAgent string) error {
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	err = s.auditor.Append(ctx, audit.Entry{
		ActorType:  audit.ActorSuperadmin,
		ActorID:    actorID,
		Action:     "superadmin.password_reset",
		TargetType: "superadmin",
		TargetID:   targetID,
		IP:         ip,
		UserAgent:  userAgent,
	})
	if err != nil {
		return err
	}
	if err := s.superadmins.UpdatePasswordHash(ctx, targetID, hash); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	_, _ = s.sessions.RevokeAll(ctx, targetID)
	return nil
}

// Audit exposes the shared audit writer for the transport layer's query
// endpoint and for tenant administration handlers.
func (s *Service) Audit() *audit.Writer { return s.auditor }

// Sessions exposes the session manager so the server can run the reaper.
func (s *Service) Sessions() *Sessions { return s.sessions }

func (s *Service) ipAllowed(ip string) bool {
	if len(s.allowedIPs) == 0 {
		return true
	}
	_, ok := s.allowedIPs[strings.TrimSpace(ip)]
	return ok
}

// failAttempt records a credential failure against both keys and returns
// the uniform denial.
func (s *Service) failAttempt(ctx context.Context, email, ip, userAgent, reason string) error {
	for _, key := range []string{email, IPKey(ip)} {
		if _, err := s.limiter.RecordFailure(ctx, key); err != nil {
			return err
		}
	}
	obs.ObserveSuperadminLogin("failed")
	s.auditAttempt(ctx, audit.Entry{
		ActorID:  email,
		Action:   actionLoginFailed,
		IP:       ip,
		Metadata: map[string]string{"reason": reason},
	}, userAgent)
	return ErrInvalidCredentials
}

// auditAttempt records a denial. The attempt is already failing, so an
// audit store outage does not change the outcome; the writer still logs
// the loss.
func (s *Service) auditAttempt(ctx context.Context, entry audit.Entry, userAgent string) {
	entry.ActorType = audit.ActorSuperadmin
	entry.UserAgent = userAgent
	if err := s.auditor.Append(ctx, entry); err != nil {
		obs.LogRequest(map[string]any{
			"level": "error",
			"msg":   "audit_append_failed",
			"event": entry.Action,
			"error": err.Error(),
		})
	}
}
