package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	JWTSecret   string
	JWTTTL      time.Duration

	// Season parameters for the gameweek calculator. Kept here so the
	// season boundaries have a single source of truth.
	SeasonStart    time.Time
	GameweekDays   int
	GameweekMin    int
	GameweekMax    int
	GameweekPrefix string

	ReserveTTL time.Duration

	FootballAPIKey  string
	FootballBaseURL string
	FootballLeague  int
	FootballSeason  int

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	OpenAIOrg     string

	StripeSecretKey     string
	StripePriceID       string
	StripeWebhookSecret string
	AppURL              string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	GeoIPDBPath        string
	CORSAllowedOrigins []string
	RateLimitPerMin    int
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	seasonStart, err := getEnvDate("SEASON_START", "2025-08-01")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AppEnv:              getEnv("APP_ENV", "development"),
		Port:                getEnv("PORT", "8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		JWTTTL:              time.Hour * time.Duration(getEnvInt("JWT_TTL_HOURS", 24)),
		SeasonStart:         seasonStart,
		GameweekDays:        getEnvInt("GAMEWEEK_LENGTH_DAYS", 7),
		GameweekMin:         getEnvInt("GAMEWEEK_MIN", 1),
		GameweekMax:         getEnvInt("GAMEWEEK_MAX", 38),
		GameweekPrefix:      getEnv("GAMEWEEK_PREFIX", "GW"),
		ReserveTTL:          time.Second * time.Duration(getEnvInt("RESERVE_TTL_SECONDS", 90)),
		FootballAPIKey:      os.Getenv("FOOTBALL_API_KEY"),
		FootballBaseURL:     getEnv("FOOTBALL_BASE_URL", "https://v3.football.api-sports.io"),
		FootballLeague:      getEnvInt("FOOTBALL_LEAGUE", 39),
		FootballSeason:      getEnvInt("FOOTBALL_SEASON", 2025),
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIOrg:           os.Getenv("OPENAI_ORG"),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripePriceID:       os.Getenv("STRIPE_PRICE_ID"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		AppURL:              getEnv("APP_URL", "http://localhost:3000"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		GeoIPDBPath:         os.Getenv("GEOIP_DB_PATH"),
		CORSAllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		RateLimitPerMin:     getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		HTTPReadTimeout:     time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:    time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:     time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

// GameweekLength converts the configured day count into a duration.
func (c *Config) GameweekLength() time.Duration {
	return time.Duration(c.GameweekDays) * 24 * time.Hour
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDate(key, fallback string) (time.Time, error) {
	raw := getEnv(key, fallback)
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: invalid date %q: %w", key, raw, err)
	}
	return t, nil
}

func getEnvList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
