package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	ListenAddr string

	RedisURL    string
	DatabaseURL string

	JWTSecret string

	QuestionAPIURL  string
	IdentityAPIURL  string
	QuestionBankDir string
	MessageDir      string

	MatchDurationSec   int
	MatchQuestionCount int
	MatchSessionTTLSec int

	AllowedOrigins []string
}

func (c *AppConfig) MatchDuration() time.Duration {
	return time.Duration(c.MatchDurationSec) * time.Second
}

func (c *AppConfig) MatchSessionTTL() time.Duration {
	return time.Duration(c.MatchSessionTTLSec) * time.Second
}

// Load reads an optional .env file, then the environment.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := &AppConfig{
		ListenAddr:         ":8080",
		MatchDurationSec:   300,
		MatchQuestionCount: 10,
		MatchSessionTTLSec: 900,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.JWTSecret = strings.TrimSpace(os.Getenv("JWT_SECRET"))

	cfg.QuestionAPIURL = strings.TrimSpace(os.Getenv("QUESTION_API_URL"))
	cfg.IdentityAPIURL = strings.TrimSpace(os.Getenv("IDENTITY_API_URL"))
	cfg.QuestionBankDir = strings.TrimSpace(os.Getenv("QUESTION_BANK_DIR"))
	cfg.MessageDir = strings.TrimSpace(os.Getenv("MESSAGE_DIR"))

	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, s)
			}
		}
	}

	var err error
	if cfg.MatchDurationSec, err = positiveInt("MATCH_DURATION_SEC", cfg.MatchDurationSec); err != nil {
		return nil, err
	}
	if cfg.MatchQuestionCount, err = positiveInt("MATCH_QUESTION_COUNT", cfg.MatchQuestionCount); err != nil {
		return nil, err
	}
	if cfg.MatchSessionTTLSec, err = positiveInt("MATCH_SESSION_TTL_SEC", cfg.MatchSessionTTLSec); err != nil {
		return nil, err
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if u, err := url.Parse(cfg.RedisURL); err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
		return nil, fmt.Errorf("REDIS_URL must be a redis:// or rediss:// url")
	}
	if cfg.MatchSessionTTLSec < cfg.MatchDurationSec {
		return nil, errors.New("MATCH_SESSION_TTL_SEC must not be shorter than MATCH_DURATION_SEC")
	}

	return cfg, nil
}

func positiveInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, v)
	}
	return n, nil
}
