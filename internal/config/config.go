package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Server   ServerConfig
	Database DatabaseConfig
	AI       AIConfig
	Upload   UploadConfig
	Session  SessionConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string
}

type DatabaseConfig struct {
	Enabled         bool
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

type AIConfig struct {
	Provider           string
	APIKey             string
	BaseURL            string
	Model              string
	Timeout            time.Duration
	RateLimitPerMinute int
	RateLimitBurst     int
	MaxOutputTokens    int
	AutoInsights       bool
	ChatHistoryLimit   int
}

type UploadConfig struct {
	MaxBytes           int64
	RateLimitPerMinute int
	RateLimitBurst     int
	Separator          string
}

type SessionConfig struct {
	TTL             time.Duration
	MaxSessions     int
	CleanupInterval time.Duration
}

// Load загружает конфигурацию приложения из окружения и .env.
func Load() (Config, error) {
	cfg := Config{}

	if err := loadEnv(); err != nil {
		return cfg, err
	}

	cfg.Env = getEnv("APP_ENV", "local")

	var err error
	if cfg.Server, err = loadServer(); err != nil {
		return cfg, err
	}
	if cfg.Database, err = loadDatabase(); err != nil {
		return cfg, err
	}
	if cfg.AI, err = loadAI(); err != nil {
		return cfg, err
	}
	if cfg.Upload, err = loadUpload(); err != nil {
		return cfg, err
	}
	if cfg.Session, err = loadSession(); err != nil {
		return cfg, err
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func loadServer() (ServerConfig, error) {
	serverPort, err := parseIntEnv("SERVER_PORT", 8080)
	if err != nil {
		return ServerConfig{}, err
	}

	readTimeout, err := parseDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second)
	if err != nil {
		return ServerConfig{}, err
	}

	// SSE-поток держит соединение, поэтому таймаут записи больше, чем у обычного API.
	writeTimeout, err := parseDurationEnv("SERVER_WRITE_TIMEOUT", 2*time.Minute)
	if err != nil {
		return ServerConfig{}, err
	}

	idleTimeout, err := parseDurationEnv("SERVER_IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return ServerConfig{}, err
	}

	origins := parseCSVEnv("CORS_ALLOW_ORIGINS")
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return ServerConfig{
		Host:         getEnv("SERVER_HOST", "0.0.0.0"),
		Port:         serverPort,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
		CORSOrigins:  origins,
	}, nil
}

func loadDatabase() (DatabaseConfig, error) {
	enabled, err := parseBoolEnv("DB_ENABLED", false)
	if err != nil {
		return DatabaseConfig{}, err
	}

	dbPort, err := parseIntEnv("DB_PORT", 5432)
	if err != nil {
		return DatabaseConfig{}, err
	}

	maxOpenConns, err := parseIntEnv("DB_MAX_OPEN_CONNS", 10)
	if err != nil {
		return DatabaseConfig{}, err
	}

	maxIdleConns, err := parseIntEnv("DB_MAX_IDLE_CONNS", 5)
	if err != nil {
		return DatabaseConfig{}, err
	}

	connMaxIdleTime, err := parseDurationEnv("DB_CONN_MAX_IDLE_TIME", 5*time.Minute)
	if err != nil {
		return DatabaseConfig{}, err
	}

	connMaxLifetime, err := parseDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	if err != nil {
		return DatabaseConfig{}, err
	}

	return DatabaseConfig{
		Enabled:         enabled,
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            dbPort,
		User:            getEnv("DB_USER", "finviz"),
		Password:        getEnv("DB_PASSWORD", "finviz"),
		Name:            getEnv("DB_NAME", "finance_visualizer"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    maxOpenConns,
		MaxIdleConns:    maxIdleConns,
		ConnMaxIdleTime: connMaxIdleTime,
		ConnMaxLifetime: connMaxLifetime,
	}, nil
}

func loadAI() (AIConfig, error) {
	aiTimeout, err := parseDurationEnv("AI_TIMEOUT", 60*time.Second)
	if err != nil {
		return AIConfig{}, err
	}

	rateLimitPerMinute, err := parseIntEnv("AI_RATE_LIMIT_PER_MINUTE", 30)
	if err != nil {
		return AIConfig{}, err
	}

	rateLimitBurst, err := parseIntEnv("AI_RATE_LIMIT_BURST", 10)
	if err != nil {
		return AIConfig{}, err
	}

	maxOutputTokens, err := parseIntEnv("AI_MAX_OUTPUT_TOKENS", 4096)
	if err != nil {
		return AIConfig{}, err
	}

	autoInsights, err := parseBoolEnv("AI_AUTO_INSIGHTS", true)
	if err != nil {
		return AIConfig{}, err
	}

	historyLimit, err := parseIntEnv("AI_CHAT_HISTORY_LIMIT", 20)
	if err != nil {
		return AIConfig{}, err
	}

	provider := strings.ToLower(getEnv("AI_PROVIDER", "gemini"))
	defaultBaseURL := ""
	defaultModel := "gemini-2.5-flash"
	if provider == "groq" {
		defaultBaseURL = "https://api.groq.com/openai/v1"
		defaultModel = "llama-3.1-8b-instant"
	}

	apiKey := getEnv("AI_API_KEY", "")
	if apiKey == "" && provider != "groq" {
		apiKey = getEnv("GEMINI_API_KEY", getEnv("API_KEY", ""))
	}

	return AIConfig{
		Provider:           provider,
		APIKey:             apiKey,
		BaseURL:            getEnv("AI_BASE_URL", defaultBaseURL),
		Model:              getEnv("AI_MODEL", defaultModel),
		Timeout:            aiTimeout,
		RateLimitPerMinute: rateLimitPerMinute,
		RateLimitBurst:     rateLimitBurst,
		MaxOutputTokens:    maxOutputTokens,
		AutoInsights:       autoInsights,
		ChatHistoryLimit:   historyLimit,
	}, nil
}

func loadUpload() (UploadConfig, error) {
	maxBytes, err := parseIntEnv("UPLOAD_MAX_BYTES", 10<<20)
	if err != nil {
		return UploadConfig{}, err
	}

	rateLimitPerMinute, err := parseIntEnv("UPLOAD_RATE_LIMIT_PER_MINUTE", 30)
	if err != nil {
		return UploadConfig{}, err
	}

	rateLimitBurst, err := parseIntEnv("UPLOAD_RATE_LIMIT_BURST", 5)
	if err != nil {
		return UploadConfig{}, err
	}

	return UploadConfig{
		MaxBytes:           int64(maxBytes),
		RateLimitPerMinute: rateLimitPerMinute,
		RateLimitBurst:     rateLimitBurst,
		Separator:          strings.ToLower(getEnv("UPLOAD_SEPARATOR", "header")),
	}, nil
}

func loadSession() (SessionConfig, error) {
	ttl, err := parseDurationEnv("SESSION_TTL", 2*time.Hour)
	if err != nil {
		return SessionConfig{}, err
	}

	maxSessions, err := parseIntEnv("SESSION_MAX", 1000)
	if err != nil {
		return SessionConfig{}, err
	}

	cleanupInterval, err := parseDurationEnv("SESSION_CLEANUP_INTERVAL", time.Minute)
	if err != nil {
		return SessionConfig{}, err
	}

	return SessionConfig{
		TTL:             ttl,
		MaxSessions:     maxSessions,
		CleanupInterval: cleanupInterval,
	}, nil
}

// DSN возвращает строку подключения к базе данных.
func (c DatabaseConfig) DSN() string {
	user := url.UserPassword(c.User, c.Password)
	dsn := url.URL{
		Scheme: "postgres",
		User:   user,
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.Name,
	}

	query := url.Values{}
	query.Set("sslmode", c.SSLMode)
	return dsn.String() + "?" + query.Encode()
}

// Addr возвращает адрес для прослушивания.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c Config) validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("SERVER_PORT must be greater than 0")
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("DB_HOST is required")
		}

		if c.Database.User == "" {
			return fmt.Errorf("DB_USER is required")
		}

		if c.Database.Name == "" {
			return fmt.Errorf("DB_NAME is required")
		}

		if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
			return fmt.Errorf("DB_MAX_IDLE_CONNS cannot exceed DB_MAX_OPEN_CONNS")
		}
	}

	switch c.AI.Provider {
	case "gemini", "groq", "genai":
	default:
		return fmt.Errorf("AI_PROVIDER must be one of gemini, groq, genai")
	}

	if c.AI.Model == "" {
		return fmt.Errorf("AI_MODEL is required")
	}

	switch c.Upload.Separator {
	case "header", "sample":
	default:
		return fmt.Errorf("UPLOAD_SEPARATOR must be header or sample")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return fallback
}

func parseIntEnv(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}

	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return parsed, nil
}

func parseDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}

	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return parsed, nil
}

func parseBoolEnv(key string, fallback bool) (bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback, nil
	}

	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}

	return parsed, nil
}

func parseCSVEnv(key string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func loadEnv() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}
