package config

import (
	"os"
	"testing"
	"time"
)

var allEnvVars = []string{
	"HOST", "PORT", "READ_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT", "ENVIRONMENT", "LOG_LEVEL",
	"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSL_MODE",
	"DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME", "DB_CONN_MAX_IDLE_TIME", "DB_MIGRATIONS_PATH",
	"REDIS_ENABLED", "REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD", "REDIS_DB", "REDIS_POOL_SIZE",
	"CACHE_LIST_TTL", "CACHE_L1_TTL",
	"JWT_SECRET", "JWT_ISSUER",
	"RATE_LIMIT_ENABLED", "RATE_LIMIT_RPM", "RATE_LIMIT_BURST", "RATE_LIMIT_CLEANUP",
	"DAV_CALENDAR_URL", "DAV_ADDRESSBOOK_URL", "DAV_IMPORT_USERNAME", "DAV_IMPORT_PASSWORD",
	"DAV_REPORT_TIMEOUT", "DAV_IMPORT_CONCURRENCY", "DAV_CREDENTIALS_KEY",
}

func withEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	for _, k := range allEnvVars {
		os.Unsetenv(k)
	}
	for k, v := range vars {
		os.Setenv(k, v)
	}
	t.Cleanup(func() {
		for k := range vars {
			os.Unsetenv(k)
		}
	})
}

func productionEnv() map[string]string {
	return map[string]string{
		"ENVIRONMENT":         "production",
		"DB_PASSWORD":         "secure-password",
		"JWT_SECRET":          "secure-jwt-secret",
		"DAV_CREDENTIALS_KEY": "secure-credentials-key",
		"DAV_ADDRESSBOOK_URL": "https://dav.example.com/addressbooks/team/contacts/",
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	withEnv(t, nil)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("Expected no error with default config, got: %v", err)
	}

	if config.Server.Port != "8080" {
		t.Errorf("Expected default port '8080', got %s", config.Server.Port)
	}

	if config.Database.Name != "taskify" {
		t.Errorf("Expected default DB name 'taskify', got %s", config.Database.Name)
	}

	if config.Database.MigrationsPath != "file://migrations" {
		t.Errorf("Expected default migrations path, got %s", config.Database.MigrationsPath)
	}

	if !config.Redis.Enabled {
		t.Error("Expected redis to be enabled by default")
	}

	if config.Cache.ListTTL != 5*time.Minute {
		t.Errorf("Expected default list TTL 5m, got %v", config.Cache.ListTTL)
	}

	if config.Auth.Issuer != "taskify-backend" {
		t.Errorf("Expected default issuer 'taskify-backend', got %s", config.Auth.Issuer)
	}

	if config.DAV.ReportTimeout != 30*time.Second {
		t.Errorf("Expected default report timeout 30s, got %v", config.DAV.ReportTimeout)
	}

	if config.DAV.ImportConcurrency != -1 {
		t.Errorf("Expected unlimited import concurrency by default, got %d", config.DAV.ImportConcurrency)
	}

	if config.DAV.ImportUsername != "" || config.DAV.ImportPassword != "" {
		t.Error("Expected no import credentials by default")
	}
}

func TestLoadConfig_DAVEnvironment(t *testing.T) {
	withEnv(t, map[string]string{
		"DAV_CALENDAR_URL":       "https://dav.example.com/calendars/team/default/",
		"DAV_ADDRESSBOOK_URL":    "https://dav.example.com/addressbooks/team/contacts/",
		"DAV_IMPORT_USERNAME":    "importer",
		"DAV_IMPORT_PASSWORD":    "import-pass",
		"DAV_REPORT_TIMEOUT":     "10s",
		"DAV_IMPORT_CONCURRENCY": "8",
	})

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if config.DAV.CalendarURL != "https://dav.example.com/calendars/team/default/" {
		t.Errorf("Unexpected calendar URL %s", config.DAV.CalendarURL)
	}

	if config.DAV.ImportUsername != "importer" || config.DAV.ImportPassword != "import-pass" {
		t.Errorf("Unexpected import credentials %s/%s", config.DAV.ImportUsername, config.DAV.ImportPassword)
	}

	if config.DAV.ReportTimeout != 10*time.Second {
		t.Errorf("Expected report timeout 10s, got %v", config.DAV.ReportTimeout)
	}

	if config.DAV.ImportConcurrency != 8 {
		t.Errorf("Expected import concurrency 8, got %d", config.DAV.ImportConcurrency)
	}
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(map[string]string)
		errorMsg string
	}{
		{
			name:     "Production with all required fields",
			mutate:   func(map[string]string) {},
			errorMsg: "",
		},
		{
			name:     "Missing database password",
			mutate:   func(env map[string]string) { delete(env, "DB_PASSWORD") },
			errorMsg: "database password is required in production",
		},
		{
			name:     "Default JWT secret",
			mutate:   func(env map[string]string) { delete(env, "JWT_SECRET") },
			errorMsg: "JWT secret must be set in production",
		},
		{
			name:     "Default credentials key",
			mutate:   func(env map[string]string) { delete(env, "DAV_CREDENTIALS_KEY") },
			errorMsg: "DAV credentials key must be set in production",
		},
		{
			name:     "Missing address book URL",
			mutate:   func(env map[string]string) { delete(env, "DAV_ADDRESSBOOK_URL") },
			errorMsg: "DAV address book URL is required in production",
		},
		{
			name:     "Import username without password",
			mutate:   func(env map[string]string) { env["DAV_IMPORT_USERNAME"] = "importer" },
			errorMsg: "DAV import username and password must be set together",
		},
		{
			name: "Staging ignores production rules",
			mutate: func(env map[string]string) {
				env["ENVIRONMENT"] = "staging"
				delete(env, "DB_PASSWORD")
				delete(env, "JWT_SECRET")
			},
			errorMsg: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := productionEnv()
			tt.mutate(env)
			withEnv(t, env)

			config, err := LoadConfig()

			if tt.errorMsg != "" {
				if err == nil {
					t.Errorf("Expected error, but got none")
				} else if err.Error() != tt.errorMsg {
					t.Errorf("Expected error '%s', got '%s'", tt.errorMsg, err.Error())
				}
				return
			}

			if err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}
			if config == nil {
				t.Error("Expected config to be loaded")
			}
		})
	}
}

func TestConfig_Addresses(t *testing.T) {
	config := &Config{
		Server:   ServerConfig{Host: "0.0.0.0", Port: "9000"},
		Redis:    RedisConfig{Host: "redis.example.com", Port: "6380"},
		Database: DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", Name: "taskify", SSLMode: "require"},
	}

	if got := config.GetServerAddr(); got != "0.0.0.0:9000" {
		t.Errorf("Expected server addr '0.0.0.0:9000', got '%s'", got)
	}

	if got := config.GetRedisAddr(); got != "redis.example.com:6380" {
		t.Errorf("Expected redis addr 'redis.example.com:6380', got '%s'", got)
	}

	expected := "host=db port=5432 user=u password=p dbname=taskify sslmode=require"
	if got := config.GetDatabaseDSN(); got != expected {
		t.Errorf("Expected DSN '%s', got '%s'", expected, got)
	}
}

func TestConfig_IsProduction(t *testing.T) {
	for env, expected := range map[string]bool{"production": true, "development": false, "": false} {
		config := &Config{Server: ServerConfig{Environment: env}}
		if config.IsProduction() != expected {
			t.Errorf("For environment '%s', expected IsProduction() = %v", env, expected)
		}
	}
}

func TestGetEnvHelpers(t *testing.T) {
	os.Setenv("TEST_INT_VAR", "not-a-number")
	os.Setenv("TEST_BOOL_VAR", "False")
	os.Setenv("TEST_DURATION_VAR", "5m")
	defer func() {
		os.Unsetenv("TEST_INT_VAR")
		os.Unsetenv("TEST_BOOL_VAR")
		os.Unsetenv("TEST_DURATION_VAR")
	}()

	if got := getEnv("TEST_UNSET_VAR", "default"); got != "default" {
		t.Errorf("Expected default value, got '%s'", got)
	}

	if got := getEnvAsInt("TEST_INT_VAR", 42); got != 42 {
		t.Errorf("Expected default value 42 for invalid int, got %d", got)
	}

	if got := getEnvAsBool("TEST_BOOL_VAR", true); got != false {
		t.Errorf("Expected false, got %v", got)
	}

	if got := getEnvAsDuration("TEST_DURATION_VAR", time.Second); got != 5*time.Minute {
		t.Errorf("Expected 5m, got %v", got)
	}
}

func BenchmarkLoadConfig(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := LoadConfig(); err != nil {
			b.Fatalf("Failed to load config: %v", err)
		}
	}
}
