package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var envKeys = []string{
	"DB_PATH", "STORE_BACKEND", "GRPC_ADDRESS", "HTTP_ADDRESS",
	"DYNAMODB_ORDERS_TABLE", "DYNAMODB_GLOBALS_TABLE", "DYNAMODB_USERS_TABLE", "DYNAMODB_ENDPOINT", "AWS_REGION",
	"ABLY_API_KEY_CUSTOMERS", "ABLY_API_KEY_RIDERS",
	"MAPBOX_ACCESS_TOKEN", "GOOGLE_MAPS_API_KEY",
	"INITIAL_USER_PASSWORD", "LOG_LEVEL", "LOG_FORMAT", "APP_ENV",
}

// clearEnv unsets every variable the loader reads and restores them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

// noEnvFile points --env-file at a path that does not exist.
func noEnvFile(t *testing.T) string {
	return "--env-file=" + filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadWithDefaults_Succeeds(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadWithDefaults([]string{noEnvFile(t)})
	if err != nil {
		t.Fatalf("LoadWithDefaults: %v", err)
	}
	if cfg.GRPC.Address != ":50051" || cfg.HTTP.Address != ":8080" || cfg.Database.Path != "app.db" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Store.Backend != BackendSQLite {
		t.Fatalf("backend = %q, want %q", cfg.Store.Backend, BackendSQLite)
	}
	if cfg.Ably.CustomersKey == "" || cfg.Ably.RidersKey == "" {
		t.Fatalf("expected development signing keys, got %+v", cfg.Ably)
	}
	if cfg.Log.Format != "text" {
		t.Fatalf("log format = %q, want text", cfg.Log.Format)
	}
}

func TestLoad_RequiresSigningKeys(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_PATH", "test.db")
	if _, err := Load([]string{noEnvFile(t)}); err == nil {
		t.Fatalf("expected error when signing keys are not set")
	}

	t.Setenv("ABLY_API_KEY_CUSTOMERS", "app.cust:secret")
	if _, err := Load([]string{noEnvFile(t)}); err == nil {
		t.Fatalf("expected error when the riders key is not set")
	}

	t.Setenv("ABLY_API_KEY_RIDERS", "app.rider:secret")
	cfg, err := Load([]string{noEnvFile(t)})
	if err != nil {
		t.Fatalf("Load with keys set: %v", err)
	}
	if cfg.Database.Path != "test.db" {
		t.Fatalf("db path = %q, want test.db", cfg.Database.Path)
	}
	if cfg.Log.Format != "json" {
		t.Fatalf("log format = %q, want json", cfg.Log.Format)
	}
}

func TestLoad_RejectsMalformedKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("ABLY_API_KEY_CUSTOMERS", "no-colon-here")
	t.Setenv("ABLY_API_KEY_RIDERS", "app.rider:secret")
	_, err := Load([]string{noEnvFile(t)})
	if err == nil {
		t.Fatalf("expected error for malformed key")
	}
	if !strings.Contains(err.Error(), "ABLY_API_KEY_CUSTOMERS") {
		t.Fatalf("error %q should name the offending variable", err)
	}
}

func TestLoad_FlagsOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("GRPC_ADDRESS", ":1111")
	t.Setenv("HTTP_ADDRESS", ":2222")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("STORE_BACKEND", "DynamoDB")

	cfg, err := LoadWithDefaults([]string{noEnvFile(t), "--grpc-address", ":3333", "-a", ":4444"})
	if err != nil {
		t.Fatalf("LoadWithDefaults: %v", err)
	}
	if cfg.GRPC.Address != ":3333" || cfg.HTTP.Address != ":4444" {
		t.Fatalf("flags did not win: grpc=%q http=%q", cfg.GRPC.Address, cfg.HTTP.Address)
	}
	if cfg.Log.Level != "warn" {
		t.Fatalf("log level = %q, want warn from env", cfg.Log.Level)
	}
	if cfg.Store.Backend != BackendDynamoDB {
		t.Fatalf("backend = %q, want %q", cfg.Store.Backend, BackendDynamoDB)
	}
}

func TestLoad_InvalidBackend(t *testing.T) {
	clearEnv(t)
	if _, err := LoadWithDefaults([]string{noEnvFile(t), "--store", "postgres"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestLoad_UnknownFlag(t *testing.T) {
	clearEnv(t)
	if _, err := LoadWithDefaults([]string{"--no-such-flag"}); err == nil {
		t.Fatalf("expected error for unknown flag")
	}
}

func TestLoad_ReadsEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	content := "ABLY_API_KEY_CUSTOMERS=file.cust:s1\nABLY_API_KEY_RIDERS=file.rider:s2\nMAPBOX_ACCESS_TOKEN=pk.test\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	// an explicit environment value wins over the file
	t.Setenv("ABLY_API_KEY_RIDERS", "env.rider:s3")

	cfg, err := Load([]string{"--env-file", path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ably.CustomersKey != "file.cust:s1" {
		t.Fatalf("customers key = %q", cfg.Ably.CustomersKey)
	}
	if cfg.Ably.RidersKey != "env.rider:s3" {
		t.Fatalf("riders key = %q", cfg.Ably.RidersKey)
	}
	if cfg.Maps.MapboxAccessToken != "pk.test" {
		t.Fatalf("mapbox token = %q", cfg.Maps.MapboxAccessToken)
	}
}

func TestLoadForEnvironment_AppEnvFromEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "dev.env")
	if err := os.WriteFile(path, []byte("APP_ENV=development\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := LoadForEnvironment([]string{"--store", "sqlite", "--env-file", path, "-a", ":9090"})
	if err != nil {
		t.Fatalf("LoadForEnvironment: %v", err)
	}
	if cfg.Ably.CustomersKey == "" || cfg.Ably.RidersKey == "" {
		t.Fatalf("expected development signing keys, got %+v", cfg.Ably)
	}
	if cfg.HTTP.Address != ":9090" {
		t.Fatalf("http address = %q, want :9090", cfg.HTTP.Address)
	}
}

func TestLoadForEnvironment_ProductionRequiresKeys(t *testing.T) {
	clearEnv(t)
	if _, err := LoadForEnvironment([]string{noEnvFile(t)}); err == nil {
		t.Fatalf("expected error without APP_ENV=development and without signing keys")
	}

	t.Setenv("APP_ENV", "development")
	if _, err := LoadForEnvironment([]string{noEnvFile(t)}); err != nil {
		t.Fatalf("LoadForEnvironment in development: %v", err)
	}
}

func TestEnvFileArg(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{nil, ".env"},
		{[]string{"--env-file", "a.env"}, "a.env"},
		{[]string{"-s", "dynamodb", "--env-file=b.env", "--log-level", "debug"}, "b.env"},
	}
	for _, tt := range tests {
		if got := envFileArg(tt.args); got != tt.want {
			t.Fatalf("envFileArg(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestString_MasksSecrets(t *testing.T) {
	cfg := &Config{
		Ably: AblyConfig{CustomersKey: "a.b:topsecret", RidersKey: "c.d:hidden"},
		Maps: MapsConfig{MapboxAccessToken: "pk.mapbox"},
		Auth: AuthConfig{InitialUserPassword: "hunter2"},
	}
	s := cfg.String()
	for _, secret := range []string{"topsecret", "hidden", "pk.mapbox", "hunter2"} {
		if strings.Contains(s, secret) {
			t.Fatalf("String() leaked %q: %s", secret, s)
		}
	}
	if !strings.Contains(s, "GoogleMaps: (unset)") {
		t.Fatalf("String() should mark unset values: %s", s)
	}
}
