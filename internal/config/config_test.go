package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"STORE_DRIVER", "NATS_SUBJECT", "FORM_DEFINITION_PATH", "MIN_CONFIDENCE_TO_AUTOFILL",
		"CROSS_FIELD_SCOPE", "CONFLICT_RESOLUTION_ENABLED", "SENTINEL_VALUE", "API_RATE_LIMIT_RPS",
		"API_MAX_IN_FLIGHT", "TRACING_ENABLED",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.StoreDriver != StoreDriverPostgres {
		t.Fatalf("expected default store driver postgres, got %q", cfg.StoreDriver)
	}
	if cfg.NATSSubject != "transcripts.submitted" {
		t.Fatalf("expected default subject transcripts.submitted, got %q", cfg.NATSSubject)
	}
	if cfg.FormDefinitionPath != "" {
		t.Fatalf("expected built-in form by default, got %q", cfg.FormDefinitionPath)
	}
	if cfg.MinConfidenceToAutofill != 0 || cfg.CrossFieldScope != "" || cfg.ConflictResolutionEnabled != nil {
		t.Fatalf("rule overrides must be unset by default: %+v", cfg)
	}
	if cfg.SentinelValue != "NA" {
		t.Fatalf("expected sentinel NA, got %q", cfg.SentinelValue)
	}
	if cfg.APIRateLimitRPS != 50 || cfg.APIMaxInFlight != 64 {
		t.Fatalf("unexpected traffic control defaults: rps=%v in_flight=%d", cfg.APIRateLimitRPS, cfg.APIMaxInFlight)
	}
	if cfg.TracingEnabled {
		t.Fatalf("tracing must be disabled by default")
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("MIN_CONFIDENCE_TO_AUTOFILL", "0.85")
	t.Setenv("CROSS_FIELD_SCOPE", "Stage")
	t.Setenv("CONFLICT_RESOLUTION_ENABLED", "false")
	t.Setenv("SENTINEL_VALUE", "N/A")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("RESILIENCE_BREAKER_ENABLED", "false")
	t.Setenv("TRACING_ENABLED", "true")

	cfg := Load()
	if cfg.StoreDriver != StoreDriverSQLite {
		t.Fatalf("expected sqlite driver, got %q", cfg.StoreDriver)
	}
	if cfg.MinConfidenceToAutofill != 0.85 {
		t.Fatalf("expected min confidence 0.85, got %v", cfg.MinConfidenceToAutofill)
	}
	if cfg.CrossFieldScope != "stage" {
		t.Fatalf("expected stage scope, got %q", cfg.CrossFieldScope)
	}
	if cfg.ConflictResolutionEnabled == nil || *cfg.ConflictResolutionEnabled {
		t.Fatalf("expected conflict resolution disabled, got %v", cfg.ConflictResolutionEnabled)
	}
	if cfg.SentinelValue != "N/A" || cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("unexpected overrides %+v", cfg)
	}
	if cfg.ResilienceBreakerEnabled || !cfg.TracingEnabled {
		t.Fatalf("unexpected boolean overrides %+v", cfg)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("API_MAX_IN_FLIGHT", "many")
	t.Setenv("MIN_CONFIDENCE_TO_AUTOFILL", "high")
	t.Setenv("CONFLICT_RESOLUTION_ENABLED", "maybe")

	cfg := Load()
	if cfg.APIMaxInFlight != 64 || cfg.MinConfidenceToAutofill != 0 || cfg.ConflictResolutionEnabled != nil {
		t.Fatalf("malformed values must fall back to defaults: %+v", cfg)
	}
}
