package config

import (
	"testing"
	"time"
)

func TestLoad_valid(t *testing.T) {
	cfg, err := Load("testdata/valid.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 15s", cfg.Server.ReadTimeout)
	}
	if cfg.Identity.Issuer != "https://auth.example.com" {
		t.Errorf("Identity.Issuer = %q", cfg.Identity.Issuer)
	}
	if cfg.Identity.JWKSURL != "https://auth.example.com/.well-known/jwks.json" {
		t.Errorf("Identity.JWKSURL = %q", cfg.Identity.JWKSURL)
	}
	if cfg.Identity.Audience != "ledgerspace-api" {
		t.Errorf("Identity.Audience = %q", cfg.Identity.Audience)
	}
	if len(cfg.Identity.Algorithms) != 2 {
		t.Errorf("Identity.Algorithms = %v, want 2 entries", cfg.Identity.Algorithms)
	}
	if cfg.Identity.WorkspaceClaim != "workspace_roles" {
		t.Errorf("Identity.WorkspaceClaim = %q, want default workspace_roles", cfg.Identity.WorkspaceClaim)
	}
	if cfg.Identity.WorkspaceParam != "workspaceKey" {
		t.Errorf("Identity.WorkspaceParam = %q, want default workspaceKey", cfg.Identity.WorkspaceParam)
	}
	if cfg.Membership.Driver != "postgres" {
		t.Errorf("Membership.Driver = %q, want postgres", cfg.Membership.Driver)
	}
	if cfg.Membership.MaxOpenConns != 10 {
		t.Errorf("Membership.MaxOpenConns = %d, want 10", cfg.Membership.MaxOpenConns)
	}
	if cfg.ClaimCache.Driver != "redis" {
		t.Errorf("ClaimCache.Driver = %q, want redis", cfg.ClaimCache.Driver)
	}
	if cfg.ClaimCache.TTL != 2*time.Minute {
		t.Errorf("ClaimCache.TTL = %v, want 2m", cfg.ClaimCache.TTL)
	}
	if !cfg.Feed.Enabled {
		t.Error("Feed.Enabled = false, want true")
	}
}

func TestLoad_missing_file(t *testing.T) {
	_, err := Load("testdata/nonexistent.yaml")
	if err == nil {
		t.Fatal("Load() with missing file should return error")
	}
}

func TestLoad_missing_identity(t *testing.T) {
	_, err := Load("testdata/missing_identity.yaml")
	if err == nil {
		t.Fatal("Load() with missing identity should return error")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Server.Port != 8080 {
		t.Errorf("default Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.ClaimCache.TTL != 5*time.Minute {
		t.Errorf("default ClaimCache.TTL = %v, want 5m", cfg.ClaimCache.TTL)
	}
	if cfg.Membership.Driver != "memory" {
		t.Errorf("default Membership.Driver = %q, want memory", cfg.Membership.Driver)
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("default LogLevel = %q, want info", cfg.Observability.LogLevel)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LEDGERSPACE_SERVER_PORT", "3000")
	t.Setenv("LEDGERSPACE_IDENTITY_ISSUER", "https://env-issuer.com")
	t.Setenv("LEDGERSPACE_IDENTITY_JWKS_URL", "https://env-issuer.com/.well-known/jwks.json")
	t.Setenv("LEDGERSPACE_IDENTITY_AUDIENCE", "env-audience")
	t.Setenv("LEDGERSPACE_MEMBERSHIP_DRIVER", "memory")
	t.Setenv("LEDGERSPACE_OBSERVABILITY_LOG_LEVEL", "error")

	cfg, err := Load("testdata/valid.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want 3000 (env override)", cfg.Server.Port)
	}
	if cfg.Identity.Issuer != "https://env-issuer.com" {
		t.Errorf("Identity.Issuer = %q, want env override", cfg.Identity.Issuer)
	}
	if cfg.Membership.Driver != "memory" {
		t.Errorf("Membership.Driver = %q, want memory (env override)", cfg.Membership.Driver)
	}
	if cfg.Observability.LogLevel != "error" {
		t.Errorf("LogLevel = %q, want error (env override)", cfg.Observability.LogLevel)
	}
}

func TestValidate_invalid_port(t *testing.T) {
	cfg := Defaults()
	cfg.Identity.Issuer = "https://auth.example.com"
	cfg.Identity.JWKSURL = "https://auth.example.com/.well-known/jwks.json"
	cfg.Identity.Audience = "ledgerspace-api"
	cfg.Server.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() with port 0 should return error")
	}
}

func TestValidate_unknown_drivers(t *testing.T) {
	cfg := Defaults()
	cfg.Identity.Issuer = "https://auth.example.com"
	cfg.Identity.JWKSURL = "https://auth.example.com/.well-known/jwks.json"
	cfg.Identity.Audience = "ledgerspace-api"

	cfg.Membership.Driver = "mysql"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() with unknown membership driver should return error")
	}

	cfg.Membership.Driver = "memory"
	cfg.ClaimCache.Driver = "memcached"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() with unknown claim cache driver should return error")
	}
}
