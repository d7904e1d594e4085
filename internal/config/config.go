package config

import (
	"os"
	"strconv"
)

type Config struct {
	DatabaseURL          string
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	WarehouseID          int64
	DrawerID             int64
	UserID               int64
	SnapshotTTLSeconds   int
	CommitTimeoutSeconds int
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	snapshotTTL, err := strconv.Atoi(getEnv("SNAPSHOT_TTL_SECONDS", "30"))
	if err != nil || snapshotTTL < 1 {
		snapshotTTL = 30
	}
	commitTimeout, err := strconv.Atoi(getEnv("COMMIT_TIMEOUT_SECONDS", "10"))
	if err != nil || commitTimeout < 1 {
		commitTimeout = 10
	}

	return Config{
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              redisDB,
		WarehouseID:          getEnvInt64("DEFAULT_WAREHOUSE_ID", 1),
		DrawerID:             getEnvInt64("DEFAULT_DRAWER_ID", 1),
		UserID:               getEnvInt64("DEFAULT_USER_ID", 1),
		SnapshotTTLSeconds:   snapshotTTL,
		CommitTimeoutSeconds: commitTimeout,
	}
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getEnvInt64(key string, fallback int64) int64 {
	val, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil || val < 1 {
		return fallback
	}
	return val
}
