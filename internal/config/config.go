package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Emulator EmulatorConfig `yaml:"emulator"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SlogLevel parses Level, falling back to info
func (c *LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// NewLogger builds the structured logger described by the config
func (c *LogConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if strings.EqualFold(c.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// BridgeConfig holds the client side of the websocket transport
type BridgeConfig struct {
	URL              string        `yaml:"url"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	CallTimeout      time.Duration `yaml:"call_timeout"`
}

// EmulatorConfig controls how the emulated platform behaves
type EmulatorConfig struct {
	// PlayServices mirrors the platform availability check. Code 0 means available.
	PlayServices PlayServicesConfig `yaml:"play_services"`

	// SignIn is the outcome of interactive sign-in: approve, cancel or error.
	SignIn               string `yaml:"sign_in"`
	PreviouslyAuthorized bool   `yaml:"previously_authorized"`

	Player     PlayerConfig `yaml:"player"`
	DeviceName string       `yaml:"device_name"`

	ScoreStore string `yaml:"score_store"`
	SaveStore  string `yaml:"save_store"`

	// LowerIsBetter lists leaderboards ranked in ascending order
	LowerIsBetter     []string       `yaml:"lower_is_better"`
	Achievements      map[string]int `yaml:"achievements"`
	DefaultTotalSteps int            `yaml:"default_total_steps"`

	Latency        time.Duration `yaml:"latency"`
	OperationLimit time.Duration `yaml:"operation_timeout"`
}

// Sign-in outcomes
const (
	SignInApprove = "approve"
	SignInCancel  = "cancel"
	SignInError   = "error"
)

// Store backends
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// PlayServicesConfig holds the availability result reported by the platform
type PlayServicesConfig struct {
	ErrorCode   int    `yaml:"error_code"`
	ErrorString string `yaml:"error_string"`
}

// Available reports whether the platform services are usable
func (c *PlayServicesConfig) Available() bool {
	return c.ErrorCode == 0
}

// PlayerConfig is the profile of the emulated player
type PlayerConfig struct {
	ID                string `yaml:"id"`
	DisplayName       string `yaml:"display_name"`
	Title             string `yaml:"title"`
	IconImageURI      string `yaml:"icon_image_uri"`
	IconImageURL      string `yaml:"icon_image_url"`
	HiResIconImageURI string `yaml:"hi_res_icon_image_uri"`
	HiResIconImageURL string `yaml:"hi_res_icon_image_url"`
}

// TotalSteps returns the number of steps needed to unlock an achievement
func (c *EmulatorConfig) TotalSteps(achievementID string) int {
	if steps, ok := c.Achievements[achievementID]; ok && steps > 0 {
		return steps
	}
	return c.DefaultTotalSteps
}

// HigherIsBetter reports the sort order of a leaderboard
func (c *EmulatorConfig) HigherIsBetter(leaderboardID string) bool {
	for _, id := range c.LowerIsBetter {
		if id == leaderboardID {
			return false
		}
	}
	return true
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxConnections  int           `yaml:"max_connections"`
	MinConnections  int           `yaml:"min_connections"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
}

// ConnectionString returns the PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslMode,
	)
}

// KafkaConfig holds Kafka connection configuration
type KafkaConfig struct {
	Brokers       []string      `yaml:"brokers"`
	Topic         string        `yaml:"topic"`
	GroupID       string        `yaml:"group_id"`
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	BatchTimeout  time.Duration `yaml:"batch_timeout"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes configuration from YAML, expanding environment variables
func Parse(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the enumerated settings
func (c *Config) Validate() error {
	switch c.Emulator.SignIn {
	case SignInApprove, SignInCancel, SignInError:
	default:
		return fmt.Errorf("invalid emulator.sign_in %q", c.Emulator.SignIn)
	}
	switch c.Emulator.ScoreStore {
	case StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("invalid emulator.score_store %q", c.Emulator.ScoreStore)
	}
	switch c.Emulator.SaveStore {
	case StoreMemory, StorePostgres:
	default:
		return fmt.Errorf("invalid emulator.save_store %q", c.Emulator.SaveStore)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log.format %q", c.Log.Format)
	}
	return nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}

	// Bridge defaults
	if c.Bridge.URL == "" {
		c.Bridge.URL = fmt.Sprintf("ws://localhost:%d/ws", c.Server.Port)
	}
	if c.Bridge.HandshakeTimeout == 0 {
		c.Bridge.HandshakeTimeout = 5 * time.Second
	}
	if c.Bridge.CallTimeout == 0 {
		c.Bridge.CallTimeout = 30 * time.Second
	}

	// Emulator defaults
	if c.Emulator.PlayServices.ErrorCode != 0 && c.Emulator.PlayServices.ErrorString == "" {
		c.Emulator.PlayServices.ErrorString = PlayServicesErrorString(c.Emulator.PlayServices.ErrorCode)
	}
	if c.Emulator.SignIn == "" {
		c.Emulator.SignIn = SignInApprove
	}
	if c.Emulator.Player.ID == "" {
		c.Emulator.Player.ID = "g01234567890123456789"
	}
	if c.Emulator.Player.DisplayName == "" {
		c.Emulator.Player.DisplayName = "Emulated Player"
	}
	if c.Emulator.DeviceName == "" {
		c.Emulator.DeviceName = "emulator"
	}
	if c.Emulator.ScoreStore == "" {
		c.Emulator.ScoreStore = StoreMemory
	}
	if c.Emulator.SaveStore == "" {
		c.Emulator.SaveStore = StoreMemory
	}
	if c.Emulator.DefaultTotalSteps == 0 {
		c.Emulator.DefaultTotalSteps = 100
	}
	if c.Emulator.OperationLimit == 0 {
		c.Emulator.OperationLimit = 10 * time.Second
	}

	// Redis defaults
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 100
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 10
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}

	// PostgreSQL defaults
	if c.Postgres.Host == "" {
		c.Postgres.Host = "localhost"
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.MaxConnections == 0 {
		c.Postgres.MaxConnections = 50
	}
	if c.Postgres.MinConnections == 0 {
		c.Postgres.MinConnections = 5
	}
	if c.Postgres.MaxConnLifetime == 0 {
		c.Postgres.MaxConnLifetime = 1 * time.Hour
	}
	if c.Postgres.MaxConnIdleTime == 0 {
		c.Postgres.MaxConnIdleTime = 30 * time.Minute
	}

	// Kafka defaults
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "playgames-scores"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "playgames-emulator"
	}
	if c.Kafka.BatchSize == 0 {
		c.Kafka.BatchSize = 100
	}
	if c.Kafka.BatchTimeout == 0 {
		c.Kafka.BatchTimeout = 1 * time.Second
	}
	if c.Kafka.RetryAttempts == 0 {
		c.Kafka.RetryAttempts = 3
	}
	if c.Kafka.RetryDelay == 0 {
		c.Kafka.RetryDelay = 1 * time.Second
	}
}

// DefaultConfig returns a configuration with all defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// PlayServicesErrorString names a platform availability code
func PlayServicesErrorString(code int) string {
	switch code {
	case 0:
		return "SUCCESS"
	case 1:
		return "SERVICE_MISSING"
	case 2:
		return "SERVICE_VERSION_UPDATE_REQUIRED"
	case 3:
		return "SERVICE_DISABLED"
	case 9:
		return "SERVICE_INVALID"
	case 18:
		return "SERVICE_UPDATING"
	default:
		return fmt.Sprintf("UNKNOWN_ERROR_CODE(%d)", code)
	}
}
