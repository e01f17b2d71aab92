package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"mkwab/internal/logic"
	"mkwab/internal/rating"
	"mkwab/internal/roster"
)

type Config struct {
	Token        string `validate:"required"`
	DatabasePath string `validate:"required"`
	LogLevel     string `validate:"oneof=debug info warn error"`
	// MetricsAddr enables the Prometheus endpoint when set, e.g. ":9090".
	MetricsAddr string `validate:"omitempty,hostname_port"`

	MaxPlayers        int             `validate:"min=2,max=24"`
	MaxPasses         int             `validate:"min=0,max=100000"`
	DefaultMultiplier decimal.Decimal `validate:"-"`
	RandomMin         int             `validate:"min=0"`
	RandomMax         int             `validate:"gtefield=RandomMin"`
	// DailyReset is the UTC "HH:MM" at which participation flags are cleared.
	DailyReset string        `validate:"datetime=15:04"`
	ResultTTL  time.Duration `validate:"min=0"`
}

func Default() Config {
	return Config{
		DatabasePath:      "./data/mkwab.db",
		LogLevel:          "info",
		MaxPlayers:        roster.MaxSlots,
		MaxPasses:         logic.DefaultMaxPasses,
		DefaultMultiplier: rating.DefaultMultiplier,
		RandomMin:         5000,
		RandomMax:         5100,
		DailyReset:        "05:00",
		ResultTTL:         12 * time.Hour,
	}
}

// FromEnv overlays environment variables on Default. Malformed numbers are
// reported instead of silently ignored.
func FromEnv() (Config, error) {
	cfg := Default()
	cfg.Token = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	str(&cfg.DatabasePath, "DATABASE_PATH")
	str(&cfg.LogLevel, "LOG_LEVEL")
	str(&cfg.MetricsAddr, "METRICS_ADDR")
	str(&cfg.DailyReset, "DAILY_RESET")

	var err error
	for _, f := range []struct {
		key string
		dst *int
	}{
		{"MAX_PLAYERS", &cfg.MaxPlayers},
		{"MAX_PASSES", &cfg.MaxPasses},
		{"RANDOM_MIN", &cfg.RandomMin},
		{"RANDOM_MAX", &cfg.RandomMax},
	} {
		if v := os.Getenv(f.key); v != "" {
			if *f.dst, err = strconv.Atoi(v); err != nil {
				return cfg, fmt.Errorf("%s: %w", f.key, err)
			}
		}
	}
	if v := os.Getenv("DEFAULT_MULTIPLIER"); v != "" {
		if cfg.DefaultMultiplier, err = rating.ParseMultiplier(v); err != nil {
			return cfg, fmt.Errorf("DEFAULT_MULTIPLIER: %w", err)
		}
	}
	if v := os.Getenv("RESULT_TTL"); v != "" {
		if cfg.ResultTTL, err = time.ParseDuration(v); err != nil {
			return cfg, fmt.Errorf("RESULT_TTL: %w", err)
		}
	}
	return cfg, nil
}

func str(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

var validate = validator.New()

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
