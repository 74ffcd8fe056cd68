package config

import (
	"os"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"RUNTIME_ENV", "RUNTIME_PORT", "ROW_DSN", "REDIS_URL", "BLOB_ENDPOINT",
		"GRAPH_ENDPOINT", "JWT_SIGNING_KEY", "JWT_EXPIRY", "RATE_LIMIT_ENABLED",
		"TENANT_PARALLELISM", "ENABLE_DEBUG_ENDPOINTS", "TEST_MODE",
	} {
		os.Unsetenv(key)
	}
}

func TestLoadFailsWithoutRowDSN(t *testing.T) {
	clearEnv(t)
	if _, err := Load(); err == nil {
		t.Fatal("expected error when ROW_DSN is unset")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	os.Setenv("ROW_DSN", "postgres://localhost/test")
	defer os.Unsetenv("ROW_DSN")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RuntimePort != 8080 {
		t.Errorf("expected default RuntimePort 8080, got %d", cfg.RuntimePort)
	}
	if cfg.TenantParallelism != 4 {
		t.Errorf("expected default TenantParallelism 4, got %d", cfg.TenantParallelism)
	}
	if !cfg.IsDevelopment() {
		t.Errorf("expected default environment to be development, got %s", cfg.Env)
	}
}

func TestValidateRejectsProductionDebugEndpoints(t *testing.T) {
	cfg := &Config{
		Env:                  Production,
		RuntimePort:          8080,
		TenantParallelism:    1,
		RateLimitEnabled:     true,
		EnableDebugEndpoints: true,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for debug endpoints in production")
	}
}
