package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full process configuration. Infrastructure endpoints and
// secrets come from the environment; per-service scheduling and sampling
// options come from the strict JSON services file (SERVICES_CONFIG).
type Config struct {
	Environment string // Queue name suffix: dev, staging, prod
	AppName     string
	HTTPPort    int
	LogLevel    string
	LogPretty   bool

	Postgres  PostgresConfig
	RabbitMQ  RabbitMQConfig
	Redis     RedisConfig
	API       APIConfig
	Telemetry TelemetryConfig
	CORS      CORSConfig

	Services ServicesConfig
}

// PostgresConfig contains the relational store connection details.
type PostgresConfig struct {
	Host     string
	Port     int
	DB       string
	User     string
	Password string
	MaxConns int
}

// DSN builds a pgx-compatible connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?pool_max_conns=%d",
		c.User, c.Password, c.Host, c.Port, c.DB, c.MaxConns)
}

// RabbitMQConfig contains the broker connection details.
type RabbitMQConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	VHost    string
}

// URL builds the amqp dial string.
func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, strings.TrimPrefix(c.VHost, "/"))
}

// RedisConfig contains the membership cache connection details.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

// APIConfig contains upstream game API settings and the two key pools.
type APIConfig struct {
	BaseURL        string
	Platform       string // Shard, e.g. steam
	MainKeys       []string
	TournamentKeys []string
	RPMLimit       int // Per-key request budget per minute
	MaxRetries     int
	RequestTimeout time.Duration
}

// TelemetryConfig controls the file store and the optional S3 archive.
type TelemetryConfig struct {
	Root            string // File store root directory
	ArchiveBucket   string // Empty disables the S3 mirror
	AWSRegion       string
	DownloadTimeout time.Duration
}

// CORSConfig for the ops API.
type CORSConfig struct {
	AllowedOrigins []string
}

// Load assembles the configuration from the environment plus the services
// file. Missing required variables and unrecognized service options are
// both fatal.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "dev"),
		AppName:     getEnv("APP_NAME", "skirmish"),
		HTTPPort:    getEnvInt("HTTP_PORT", 8080),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogPretty:   getEnvBool("LOG_PRETTY", false),
	}

	var err error
	if cfg.Postgres, err = loadPostgres(); err != nil {
		return nil, err
	}
	if cfg.RabbitMQ, err = loadRabbitMQ(); err != nil {
		return nil, err
	}

	cfg.Redis = RedisConfig{
		Address:  getEnv("REDIS_ADDR", "localhost:6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
		Prefix:   getEnv("REDIS_PREFIX", "skirmish"),
	}

	mainKeys, err := getEnvKeyList("API_KEYS_MAIN")
	if err != nil {
		return nil, err
	}
	cfg.API = APIConfig{
		BaseURL:        getEnv("API_BASE_URL", "https://api.pubg.com"),
		Platform:       getEnv("API_PLATFORM", "steam"),
		MainKeys:       mainKeys,
		TournamentKeys: splitKeys(os.Getenv("API_KEYS_TOURNAMENT")),
		RPMLimit:       getEnvInt("API_RPM_LIMIT", 10),
		MaxRetries:     getEnvInt("API_MAX_RETRIES", 3),
		RequestTimeout: getEnvDuration("API_REQUEST_TIMEOUT", 30*time.Second),
	}

	cfg.Telemetry = TelemetryConfig{
		Root:            getEnv("TELEMETRY_ROOT", "/var/lib/skirmish/telemetry"),
		ArchiveBucket:   getEnv("TELEMETRY_ARCHIVE_BUCKET", ""),
		AWSRegion:       getEnv("AWS_REGION", "eu-west-1"),
		DownloadTimeout: getEnvDuration("TELEMETRY_DOWNLOAD_TIMEOUT", 120*time.Second),
	}

	cfg.CORS = CORSConfig{
		AllowedOrigins: splitKeys(getEnv("CORS_ALLOWED_ORIGINS", "*")),
	}

	cfg.Services, err = LoadServices(getEnv("SERVICES_CONFIG", ""))
	if err != nil {
		return nil, err
	}

	if cfg.Services.TournamentDiscovery.ScheduleEnabled && len(cfg.API.TournamentKeys) == 0 {
		return nil, fmt.Errorf("tournament discovery enabled but API_KEYS_TOURNAMENT is empty")
	}

	return cfg, nil
}

func loadPostgres() (PostgresConfig, error) {
	pc := PostgresConfig{
		Host:     getEnv("POSTGRES_HOST", "localhost"),
		Port:     getEnvInt("POSTGRES_PORT", 5432),
		MaxConns: getEnvInt("POSTGRES_MAX_CONNS", 10),
	}
	var err error
	if pc.DB, err = getEnvRequired("POSTGRES_DB"); err != nil {
		return pc, err
	}
	if pc.User, err = getEnvRequired("POSTGRES_USER"); err != nil {
		return pc, err
	}
	if pc.Password, err = getEnvRequired("POSTGRES_PASSWORD"); err != nil {
		return pc, err
	}
	return pc, nil
}

func loadRabbitMQ() (RabbitMQConfig, error) {
	rc := RabbitMQConfig{
		Host:  getEnv("RABBITMQ_HOST", "localhost"),
		Port:  getEnvInt("RABBITMQ_PORT", 5672),
		VHost: getEnv("RABBITMQ_VHOST", "/"),
	}
	var err error
	if rc.User, err = getEnvRequired("RABBITMQ_USER"); err != nil {
		return rc, err
	}
	if rc.Password, err = getEnvRequired("RABBITMQ_PASSWORD"); err != nil {
		return rc, err
	}
	return rc, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvRequired(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("required environment variable %s is not set", key)
	}
	return v, nil
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getEnvKeyList(key string) ([]string, error) {
	v, err := getEnvRequired(key)
	if err != nil {
		return nil, err
	}
	keys := splitKeys(v)
	if len(keys) == 0 {
		return nil, fmt.Errorf("%s contains no usable keys", key)
	}
	return keys, nil
}

func splitKeys(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
