package appconfig

import (
	"testing"
	"time"
)

func TestDefaultUsesBaselineValuesWithNoEnvSet(t *testing.T) {
	cfg := Default()
	if cfg.GatewayURL == "" {
		t.Error("expected a non-empty default gateway URL")
	}
	if cfg.GlobalConcurrency != 4 {
		t.Errorf("GlobalConcurrency = %d, want 4", cfg.GlobalConcurrency)
	}
	if !cfg.AccountWriteSerialized {
		t.Error("AccountWriteSerialized should default to true")
	}
	if cfg.RPCTimeout != 10*time.Second {
		t.Errorf("RPCTimeout = %v, want 10s", cfg.RPCTimeout)
	}
}

func TestDefaultHonorsEnvOverrides(t *testing.T) {
	t.Setenv("FARMRUNNER_GATEWAY_URL", "wss://custom.invalid/ws")
	t.Setenv("FARMRUNNER_GLOBAL_CONCURRENCY", "9")
	t.Setenv("FARMRUNNER_ACCOUNT_WRITE_SERIALIZED", "false")
	t.Setenv("FARMRUNNER_RPC_TIMEOUT", "2500ms")

	cfg := Default()
	if cfg.GatewayURL != "wss://custom.invalid/ws" {
		t.Errorf("GatewayURL = %q, want override", cfg.GatewayURL)
	}
	if cfg.GlobalConcurrency != 9 {
		t.Errorf("GlobalConcurrency = %d, want 9", cfg.GlobalConcurrency)
	}
	if cfg.AccountWriteSerialized {
		t.Error("AccountWriteSerialized override to false was not applied")
	}
	if cfg.RPCTimeout != 2500*time.Millisecond {
		t.Errorf("RPCTimeout = %v, want 2500ms", cfg.RPCTimeout)
	}
}

func TestEnvOrDefaultIntIgnoresMalformedValue(t *testing.T) {
	t.Setenv("FARMRUNNER_AUTO_START_CONCURRENCY", "not-a-number")
	cfg := Default()
	if cfg.AutoStartConcurrency != 4 {
		t.Errorf("AutoStartConcurrency = %d, want fallback default 4 on malformed env", cfg.AutoStartConcurrency)
	}
}

func TestEnvOrDefaultDurationIgnoresMalformedValue(t *testing.T) {
	t.Setenv("FARMRUNNER_START_RETRY_BASE_DELAY", "not-a-duration")
	cfg := Default()
	if cfg.StartRetryBaseDelay != 1*time.Second {
		t.Errorf("StartRetryBaseDelay = %v, want fallback default 1s on malformed env", cfg.StartRetryBaseDelay)
	}
}

func TestEnvOrDefaultBoolIgnoresMalformedValue(t *testing.T) {
	t.Setenv("FARMRUNNER_LOG_PERSISTENCE_ENABLED", "maybe")
	cfg := Default()
	if !cfg.LogPersistenceEnabled {
		t.Error("LogPersistenceEnabled should fall back to its default (true) on malformed env")
	}
}
