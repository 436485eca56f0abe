package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("ALLOWED_ORIGINS", "app.example.com, ,*.campus.dev")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.MatchDuration() != 5*time.Minute {
		t.Errorf("MatchDuration = %v, want 5m", cfg.MatchDuration())
	}
	if cfg.MatchSessionTTL() != 15*time.Minute {
		t.Errorf("MatchSessionTTL = %v, want 15m", cfg.MatchSessionTTL())
	}
	if cfg.MatchQuestionCount != 10 {
		t.Errorf("MatchQuestionCount = %d, want 10", cfg.MatchQuestionCount)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "*.campus.dev" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
	}{
		{name: "Missing REDIS_URL", envVars: map[string]string{"REDIS_URL": ""}},
		{name: "Bad REDIS_URL scheme", envVars: map[string]string{"REDIS_URL": "http://localhost"}},
		{name: "Non-numeric duration", envVars: map[string]string{"REDIS_URL": "redis://x", "MATCH_DURATION_SEC": "abc"}},
		{name: "Zero question count", envVars: map[string]string{"REDIS_URL": "redis://x", "MATCH_QUESTION_COUNT": "0"}},
		{name: "TTL shorter than match", envVars: map[string]string{"REDIS_URL": "redis://x", "MATCH_DURATION_SEC": "600", "MATCH_SESSION_TTL_SEC": "60"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Errorf("Load() expected error")
			}
		})
	}
}
