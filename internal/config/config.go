package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"deliveryService/internal/capability"
)

const defaultEnvFile = ".env"

// Store backends.
const (
	BackendSQLite   = "sqlite"
	BackendDynamoDB = "dynamodb"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig
	Store    StoreConfig
	GRPC     GRPCConfig
	HTTP     HTTPConfig
	Ably     AblyConfig
	Maps     MapsConfig
	Auth     AuthConfig
	Log      LogConfig
}

// DatabaseConfig contains database-related settings.
type DatabaseConfig struct {
	Path string // SQLite database file path
}

// StoreConfig selects the order/user store.
type StoreConfig struct {
	Backend  string // "sqlite" or "dynamodb"
	DynamoDB DynamoDBConfig
}

// DynamoDBConfig names the tables and endpoint of the DynamoDB backend.
type DynamoDBConfig struct {
	OrdersTable  string
	GlobalsTable string
	UsersTable   string
	Endpoint     string // empty for the regional AWS endpoint
	Region       string
}

// GRPCConfig contains gRPC server settings.
type GRPCConfig struct {
	Address string // gRPC server listen address (e.g., ":50051")
}

// HTTPConfig contains REST server settings.
type HTTPConfig struct {
	Address string
}

// AblyConfig holds the per-role signing keys ("name:secret").
type AblyConfig struct {
	CustomersKey string
	RidersKey    string
}

// MapsConfig holds the map provider credentials handed to clients.
type MapsConfig struct {
	MapboxAccessToken string
	GoogleMapsAPIKey  string
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	InitialUserPassword string // bootstraps the admin account when set
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration in order: .env (if present) → environment → flags, and
// requires both signing keys to be present and well formed.
func Load(args []string) (*Config, error) {
	cfg, err := load(args, defaults())
	if err != nil {
		return nil, err
	}
	if cfg.Ably.CustomersKey == "" || cfg.Ably.RidersKey == "" {
		return nil, fmt.Errorf("ABLY_API_KEY_CUSTOMERS and ABLY_API_KEY_RIDERS must be set; required for production")
	}
	if _, err := capability.ParseKey(cfg.Ably.CustomersKey); err != nil {
		return nil, fmt.Errorf("ABLY_API_KEY_CUSTOMERS: %w", err)
	}
	if _, err := capability.ParseKey(cfg.Ably.RidersKey); err != nil {
		return nil, fmt.Errorf("ABLY_API_KEY_RIDERS: %w", err)
	}
	return cfg, nil
}

// LoadWithDefaults is like Load but falls back to development signing keys.
// WARNING: Only use in development! Use Load() in production.
func LoadWithDefaults(args []string) (*Config, error) {
	d := defaults()
	d.Ably = AblyConfig{
		CustomersKey: "dev.customers:dev-customers-secret",
		RidersKey:    "dev.riders:dev-riders-secret",
	}
	d.Log.Format = "text"
	return load(args, d)
}

// LoadForEnvironment loads the env file first, then uses LoadWithDefaults when
// APP_ENV is "development" and Load otherwise. APP_ENV may come from the env file.
func LoadForEnvironment(args []string) (*Config, error) {
	if err := loadEnvFile(envFileArg(args)); err != nil {
		return nil, err
	}
	if os.Getenv("APP_ENV") == "development" {
		return LoadWithDefaults(args)
	}
	return Load(args)
}

// envFileArg picks --env-file out of args, ignoring every other flag.
func envFileArg(args []string) string {
	flags := pflag.NewFlagSet("env-file", pflag.ContinueOnError)
	flags.ParseErrorsWhitelist.UnknownFlags = true
	flags.SetOutput(io.Discard)
	envFile := flags.String("env-file", defaultEnvFile, "")
	_ = flags.Parse(args)
	return *envFile
}

// loadEnvFile sets variables from path without overriding the environment. A missing file is fine.
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func defaults() Config {
	return Config{
		Database: DatabaseConfig{Path: "app.db"},
		Store: StoreConfig{
			Backend: BackendSQLite,
			DynamoDB: DynamoDBConfig{
				OrdersTable:  "orders",
				GlobalsTable: "globals",
				UsersTable:   "users",
				Region:       "us-east-1",
			},
		},
		GRPC: GRPCConfig{Address: ":50051"},
		HTTP: HTTPConfig{Address: ":8080"},
		Log:  LogConfig{Level: "info", Format: "json"},
	}
}

func load(args []string, d Config) (*Config, error) {
	flags := pflag.NewFlagSet("deliveryService", pflag.ContinueOnError)
	envFile := flags.String("env-file", defaultEnvFile, "dotenv file to load if present")
	dbPath := flags.String("db-path", "", "SQLite database file path")
	backend := flags.StringP("store", "s", "", "store backend: sqlite or dynamodb")
	grpcAddr := flags.String("grpc-address", "", "gRPC listen address")
	httpAddr := flags.StringP("http-address", "a", "", "HTTP listen address")
	logLevel := flags.String("log-level", "", "log level: debug, info, warn, error")
	logFormat := flags.String("log-format", "", "log format: json or text")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	if err := loadEnvFile(*envFile); err != nil {
		return nil, err
	}

	cfg := d
	cfg.Database.Path = getEnv("DB_PATH", d.Database.Path)
	cfg.Store.Backend = strings.ToLower(getEnv("STORE_BACKEND", d.Store.Backend))
	cfg.Store.DynamoDB = DynamoDBConfig{
		OrdersTable:  getEnv("DYNAMODB_ORDERS_TABLE", d.Store.DynamoDB.OrdersTable),
		GlobalsTable: getEnv("DYNAMODB_GLOBALS_TABLE", d.Store.DynamoDB.GlobalsTable),
		UsersTable:   getEnv("DYNAMODB_USERS_TABLE", d.Store.DynamoDB.UsersTable),
		Endpoint:     getEnv("DYNAMODB_ENDPOINT", d.Store.DynamoDB.Endpoint),
		Region:       getEnv("AWS_REGION", d.Store.DynamoDB.Region),
	}
	cfg.GRPC.Address = getEnv("GRPC_ADDRESS", d.GRPC.Address)
	cfg.HTTP.Address = getEnv("HTTP_ADDRESS", d.HTTP.Address)
	cfg.Ably = AblyConfig{
		CustomersKey: getEnv("ABLY_API_KEY_CUSTOMERS", d.Ably.CustomersKey),
		RidersKey:    getEnv("ABLY_API_KEY_RIDERS", d.Ably.RidersKey),
	}
	cfg.Maps = MapsConfig{
		MapboxAccessToken: getEnv("MAPBOX_ACCESS_TOKEN", d.Maps.MapboxAccessToken),
		GoogleMapsAPIKey:  getEnv("GOOGLE_MAPS_API_KEY", d.Maps.GoogleMapsAPIKey),
	}
	cfg.Auth.InitialUserPassword = getEnv("INITIAL_USER_PASSWORD", d.Auth.InitialUserPassword)
	cfg.Log = LogConfig{
		Level:  getEnv("LOG_LEVEL", d.Log.Level),
		Format: getEnv("LOG_FORMAT", d.Log.Format),
	}

	// flags win over the environment
	override := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	override("db-path", &cfg.Database.Path, *dbPath)
	override("store", &cfg.Store.Backend, strings.ToLower(*backend))
	override("grpc-address", &cfg.GRPC.Address, *grpcAddr)
	override("http-address", &cfg.HTTP.Address, *httpAddr)
	override("log-level", &cfg.Log.Level, *logLevel)
	override("log-format", &cfg.Log.Format, *logFormat)

	switch cfg.Store.Backend {
	case BackendSQLite, BackendDynamoDB:
	default:
		return nil, fmt.Errorf("invalid store backend %q: expected %s or %s", cfg.Store.Backend, BackendSQLite, BackendDynamoDB)
	}
	return &cfg, nil
}

// getEnv retrieves an environment variable with a default fallback.
func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func mask(s string) string {
	if s == "" {
		return "(unset)"
	}
	return "***"
}

// String returns a string representation of the config (sensitive values are masked).
func (c *Config) String() string {
	return fmt.Sprintf("Config{Store: %s, DB: %s, DynamoDB: %s/%s/%s@%s, gRPC: %s, HTTP: %s, Ably: %s/%s, Mapbox: %s, GoogleMaps: %s, InitialUser: %s, Log: %s/%s}",
		c.Store.Backend, c.Database.Path,
		c.Store.DynamoDB.OrdersTable, c.Store.DynamoDB.GlobalsTable, c.Store.DynamoDB.UsersTable, c.Store.DynamoDB.Region,
		c.GRPC.Address, c.HTTP.Address,
		mask(c.Ably.CustomersKey), mask(c.Ably.RidersKey),
		mask(c.Maps.MapboxAccessToken), mask(c.Maps.GoogleMapsAPIKey),
		mask(c.Auth.InitialUserPassword),
		c.Log.Level, c.Log.Format)
}
