package config

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
)

type Config interface {
	EnvConfig
	RefreshConfig
	StorageConfig
}

type EnvConfig interface {
	GetAppName() string
	GetAPIBaseURL() string
	GetEnv() string
	GetLogLevel() string
	GetLogFile() string
}

type mainConfig struct {
	EnvVars
	Refresh
	Storage
}

func New() Config {
	return mainConfig{}
}

// Load reads the given .env files (default ".env") into the process environment without
// overriding variables that are already set, then returns the env backed Config.
// Missing files are ignored.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return New(), nil
}
