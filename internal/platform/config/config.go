package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"local"`
	PostgresDSN string `env:"POSTGRES_DSN,required"`

	// HTTP API
	APIPort    int     `env:"API_PORT" envDefault:"8000"`
	HealthPort int     `env:"HEALTH_PORT" envDefault:"8080"`
	JWTSecret  string  `env:"JWT_SECRET,required"`
	JWTTTL     string  `env:"JWT_TTL" envDefault:"60m"`
	RateLimit  float64 `env:"RATE_LIMIT_RPS" envDefault:"10"`
	RateBurst  int     `env:"RATE_LIMIT_BURST" envDefault:"20"`

	// Database pool
	DBMaxConnections    int32         `env:"DB_MAX_CONNECTIONS" envDefault:"10"`
	DBMinConnections    int32         `env:"DB_MIN_CONNECTIONS" envDefault:"2"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"5m"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"30m"`
	DBHealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`

	// Alert matching
	AlertPollInterval  time.Duration `env:"ALERT_POLL_INTERVAL" envDefault:"30s"`
	AlertBatchSize     int           `env:"ALERT_BATCH_SIZE" envDefault:"100"`
	DigestDailyHour    int           `env:"DIGEST_DAILY_HOUR" envDefault:"8"`
	DigestWeeklyDay    int           `env:"DIGEST_WEEKLY_DAY" envDefault:"1"`
	DigestCheckEvery   time.Duration `env:"DIGEST_CHECK_INTERVAL" envDefault:"10m"`
	TokenCleanupEvery  time.Duration `env:"TOKEN_CLEANUP_INTERVAL" envDefault:"1h"`
	ResetTokenLifetime time.Duration `env:"RESET_TOKEN_LIFETIME" envDefault:"1h"`

	// Moderation
	ReportFlagThreshold int           `env:"REPORT_FLAG_THRESHOLD" envDefault:"10"`
	ReportSweepEvery    time.Duration `env:"REPORT_SWEEP_INTERVAL" envDefault:"5m"`

	// Email (optional; a logging sender is used when SMTPHost is empty)
	SMTPHost    string `env:"SMTP_HOST"`
	SMTPPort    int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser    string `env:"SMTP_USER"`
	SMTPPass    string `env:"SMTP_PASSWORD"`
	EmailFrom   string `env:"EMAIL_FROM" envDefault:"noreply@trialbridge.org"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`
}

func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	if cfg.ReportFlagThreshold < 1 {
		return nil, fmt.Errorf("REPORT_FLAG_THRESHOLD must be at least 1, got %d", cfg.ReportFlagThreshold)
	}

	return cfg, nil
}

// JWTLifetime parses JWTTTL, falling back to one hour on malformed input.
func (c *Config) JWTLifetime() time.Duration {
	d, err := time.ParseDuration(c.JWTTTL)
	if err != nil || d <= 0 {
		return time.Hour
	}

	return d
}
