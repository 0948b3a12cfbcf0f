package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	AppNameVar    = "APP_NAME"
	APIBaseURLVar = "BLOG_API_BASE_URL"
	EnvVar        = "ENV"
	LogLevelVar   = "LOG_LEVEL"
	LogFileVar    = "LOG_FILE"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(AppNameVar, "Blog Client")
}

// GetAPIBaseURL returns the base URL of the remote blog API without a trailing slash
func (EnvVars) GetAPIBaseURL() string {
	return strings.TrimRight(GetEnv(APIBaseURLVar, "http://localhost:3000"), "/")
}

func (EnvVars) GetEnv() string {
	return strings.ToUpper(GetEnv(EnvVar, "DEV"))
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(LogLevelVar, "info")
}

// GetLogFile returns the rotating log file path, empty for console only
func (EnvVars) GetLogFile() string {
	return GetEnv(LogFileVar, "")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetDuration parses envVar with time.ParseDuration, falling back to defaultValue when unset or invalid.
func GetDuration(envVar string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return defaultValue
	}
	return d
}

// GetInt parses envVar as a base 10 integer, falling back to defaultValue when unset or invalid.
func GetInt(envVar string, defaultValue int) int {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return i
}
