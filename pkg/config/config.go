package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	APIURL                     string
	HostURL                    string
	LocalAddr                  string
	DataDir                    string
	MediaDir                   string
	AllowedOrigins             []string
	TokenSecret                string
	StorageBucket              string
	FirebaseProject            string
	FirebaseServiceAccountPath string
	HTTPTimeout                time.Duration
	RetryInterval              time.Duration
	Environment                string
	LogLevel                   string
}

// fileConfig mirrors Config for the optional TOML file. Durations and the
// comma separated origin list are strings.
type fileConfig struct {
	APIURL                     string `toml:"api_url"`
	HostURL                    string `toml:"host_url"`
	LocalAddr                  string `toml:"local_addr"`
	DataDir                    string `toml:"data_dir"`
	MediaDir                   string `toml:"media_dir"`
	AllowedOrigins             string `toml:"allowed_origins"`
	TokenSecret                string `toml:"token_secret"`
	StorageBucket              string `toml:"storage_bucket"`
	FirebaseProject            string `toml:"firebase_project_id"`
	FirebaseServiceAccountPath string `toml:"firebase_service_account_path"`
	HTTPTimeout                string `toml:"http_timeout"`
	RetryInterval              string `toml:"retry_interval"`
	Environment                string `toml:"environment"`
	LogLevel                   string `toml:"log_level"`
}

func Load() (*Config, error) {
	godotenv.Load()

	base := fileConfig{
		APIURL:         "https://faindi-backend-production.up.railway.app/api",
		HostURL:        "wss://faindi-backend-production.up.railway.app/ws",
		LocalAddr:      "127.0.0.1:8082",
		DataDir:        ".faindi",
		AllowedOrigins: "http://localhost:8081,http://127.0.0.1:8081",
		StorageBucket:  "faindit-webstar-lee.appspot.com",
		HTTPTimeout:    "15s",
		RetryInterval:  "30s",
		Environment:    "development",
		LogLevel:       "info",
	}

	if path := os.Getenv("FAINDI_CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, &base); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	config := &Config{
		APIURL:                     strings.TrimRight(getEnv("API_URL", base.APIURL), "/"),
		HostURL:                    getEnv("HOST_URL", base.HostURL),
		LocalAddr:                  getEnv("LOCAL_ADDR", base.LocalAddr),
		DataDir:                    getEnv("DATA_DIR", base.DataDir),
		MediaDir:                   getEnv("MEDIA_DIR", base.MediaDir),
		TokenSecret:                getEnv("TOKEN_SECRET", base.TokenSecret),
		StorageBucket:              getEnv("STORAGE_BUCKET", base.StorageBucket),
		FirebaseProject:            getEnv("FIREBASE_PROJECT_ID", base.FirebaseProject),
		FirebaseServiceAccountPath: getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", base.FirebaseServiceAccountPath),
		Environment:                getEnv("ENVIRONMENT", base.Environment),
		LogLevel:                   getEnv("LOG_LEVEL", base.LogLevel),
	}

	var err error
	if config.HTTPTimeout, err = getEnvAsDuration("HTTP_TIMEOUT", base.HTTPTimeout); err != nil {
		return nil, err
	}
	if config.RetryInterval, err = getEnvAsDuration("RETRY_INTERVAL", base.RetryInterval); err != nil {
		return nil, err
	}

	if config.MediaDir == "" {
		config.MediaDir = filepath.Join(config.DataDir, "media")
	}

	origins := getEnv("ALLOWED_ORIGINS", base.AllowedOrigins)
	for _, origin := range strings.Split(origins, ",") {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" {
			continue
		}
		if origin == "*" {
			return nil, fmt.Errorf("ALLOWED_ORIGINS must list explicit origins")
		}
		config.AllowedOrigins = append(config.AllowedOrigins, origin)
	}
	if len(config.AllowedOrigins) == 0 {
		return nil, fmt.Errorf("ALLOWED_ORIGINS is empty")
	}

	if config.TokenSecret == "" {
		return nil, fmt.Errorf("TOKEN_SECRET is not set")
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key, defaultValue string) (time.Duration, error) {
	raw := getEnv(key, defaultValue)
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return d, nil
}
