package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type EventsCfg struct {
	Enabled bool
	Brokers string
	Topic   string
}

type Config struct {
	Addr           string
	LogLevel       string
	LogConsole     bool
	BackendDriver  string
	RedisAddr      string
	MetricsEnabled bool
	DefaultLimit   int
	MaxLimit       int
	BackendTimeout time.Duration
	Events         EventsCfg
}

func FromEnv() Config {
	defLimit := getint("DEFAULT_LIMIT", 10)
	if defLimit <= 0 {
		defLimit = 10
	}
	maxLimit := getint("MAX_LIMIT", 10000)
	if maxLimit < defLimit {
		maxLimit = defLimit
	}

	return Config{
		Addr:           getenv("ADDR", ":8080"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogConsole:     getbool("LOG_CONSOLE", false),
		BackendDriver:  strings.ToLower(getenv("BACKEND_DRIVER", "memory")),
		RedisAddr:      getenv("REDIS_ADDR", "localhost:6379"),
		MetricsEnabled: getbool("METRICS_ENABLED", false),
		DefaultLimit:   defLimit,
		MaxLimit:       maxLimit,
		BackendTimeout: getduration("BACKEND_TIMEOUT", 30*time.Second),
		Events: EventsCfg{
			Enabled: getbool("EVENTS_ENABLED", false),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			Topic:   getenv("KAFKA_TOPIC", "stac-item-events"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
