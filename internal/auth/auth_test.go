package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"stratix.org/internal/authz"
)

func withSecret(t *testing.T) {
	t.Helper()
	ResetSecretForTests()
	t.Setenv(secretEnvVariable, "test-secret-material")
	t.Cleanup(ResetSecretForTests)
}

func TestGenerateAndParseRoundTrip(t *testing.T) {
	withSecret(t)

	actor := authz.Actor{
		UserID:   "user-42",
		TenantID: "tenant-a",
		Role:     authz.RoleManager,
		AreaID:   "area-sales",
	}
	token, err := GenerateToken(actor, 15*time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Subject != "user-42" || claims.TenantID != "tenant-a" {
		t.Fatalf("unexpected identity claims: %+v", claims)
	}
	if claims.Role != "manager" || claims.AreaID != "area-sales" {
		t.Fatalf("unexpected scoping claims: %+v", claims)
	}
}

func TestGenerateTokenValidation(t *testing.T) {
	withSecret(t)

	base := authz.Actor{UserID: "u", TenantID: "t", Role: authz.RoleAdmin}

	noUser := base
	noUser.UserID = ""
	if _, err := GenerateToken(noUser, time.Minute); err == nil {
		t.Fatal("expected error for missing user id")
	}

	noTenant := base
	noTenant.TenantID = ""
	if _, err := GenerateToken(noTenant, time.Minute); err == nil {
		t.Fatal("expected error for missing tenant id")
	}

	if _, err := GenerateToken(base, 0); err == nil {
		t.Fatal("expected error for non-positive ttl")
	}
}

func TestParseRejectsGarbageAndExpiry(t *testing.T) {
	withSecret(t)

	if _, err := ParseAndValidate(""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("empty token: %v", err)
	}
	if _, err := ParseAndValidate("abc.def.ghi"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage token: %v", err)
	}

	actor := authz.Actor{UserID: "u", TenantID: "t", Role: authz.RoleAnalyst}
	token, err := GenerateToken(actor, time.Millisecond)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
}

func TestParseRejectsUnknownRole(t *testing.T) {
	withSecret(t)

	actor := authz.Actor{UserID: "u", TenantID: "t", Role: authz.Role("superuser")}
	token, err := GenerateToken(actor, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected unknown role to fail validation, got %v", err)
	}
}

func TestMissingSecretFailsClosed(t *testing.T) {
	ResetSecretForTests()
	t.Setenv(secretEnvVariable, "")
	t.Cleanup(ResetSecretForTests)

	actor := authz.Actor{UserID: "u", TenantID: "t", Role: authz.RoleAdmin}
	if _, err := GenerateToken(actor, time.Minute); err == nil {
		t.Fatal("expected error without configured secret")
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	if _, ok := ActorFromContext(ctx); ok {
		t.Fatal("expected no actor on empty context")
	}

	actor := authz.Actor{UserID: "user-7", TenantID: "tenant-a", Role: authz.RoleCEO, Active: true}
	ctx = ContextWithActor(ctx, actor)
	ctx = ContextWithToken(ctx, "raw-token")

	got, ok := ActorFromContext(ctx)
	if !ok || got != actor {
		t.Fatalf("unexpected actor: %+v ok=%v", got, ok)
	}
	token, ok := TokenFromContext(ctx)
	if !ok || token != "raw-token" {
		t.Fatalf("unexpected token: %q ok=%v", token, ok)
	}
}
