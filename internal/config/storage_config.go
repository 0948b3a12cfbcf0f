package config

import (
	"os"
	"path/filepath"
	"time"
)

const (
	StoreBackendVar = "SESSION_STORE"
	StoreDirVar     = "SESSION_STORE_DIR"
	StoreKeyVar     = "SESSION_STORE_KEY"
	StoreRecordVar  = "SESSION_STORE_RECORD"
	RedisAddrVar    = "REDIS_ADDR"
	RedisPrefixVar  = "REDIS_PREFIX"
	RedisTTLVar     = "REDIS_TTL"

	BackendFile  = "file"
	BackendRedis = "redis"
)

type StorageConfig interface {
	GetStoreBackend() string
	GetStoreDir() string
	GetStoreKey() string
	GetStoreRecord() string
	GetRedisAddr() string
	GetRedisPrefix() string
	GetRedisTTL() time.Duration
}

type Storage struct{}

var _ StorageConfig = Storage{}

func (Storage) GetStoreBackend() string {
	return GetEnv(StoreBackendVar, BackendFile)
}

func (Storage) GetStoreDir() string {
	if dir := os.Getenv(StoreDirVar); dir != "" {
		return dir
	}
	if home, err := os.UserConfigDir(); err == nil {
		return filepath.Join(home, "blogclient")
	}
	return "./data"
}

// GetStoreKey returns the passphrase the persisted session is sealed with
func (Storage) GetStoreKey() string {
	return GetEnv(StoreKeyVar, "")
}

func (Storage) GetStoreRecord() string {
	return GetEnv(StoreRecordVar, "auth-store")
}

func (Storage) GetRedisAddr() string {
	return GetEnv(RedisAddrVar, "localhost:6379")
}

func (Storage) GetRedisPrefix() string {
	return GetEnv(RedisPrefixVar, "blogclient")
}

func (Storage) GetRedisTTL() time.Duration {
	return GetDuration(RedisTTLVar, 0)
}
