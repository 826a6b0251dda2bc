package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the server needs from the environment so main
// stays lean.
type Config struct {
	Addr          string
	JWTSigningKey string
	PostgresDSN   string
	Redis         RedisConfig
	Kafka         KafkaConfig
	Engine        EngineConfig
}

// RedisConfig configures the push-token store connection.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the push delivery producer.
type KafkaConfig struct {
	Brokers   []string
	PushTopic string
}

// EngineConfig bounds the chain-propagation engine. The defaults are the
// product constants; overriding them is for tests and load experiments.
type EngineConfig struct {
	MaxHops      int
	BatchCeiling int
	CacheSize    int
	WindowPolicy string // "fixed" or "rolling"
	QueueDepth   int
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:          envString("CHAINRELAY_ADDR", ":8080"),
		JWTSigningKey: envString("CHAINRELAY_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		PostgresDSN:   os.Getenv("CHAINRELAY_POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("CHAINRELAY_REDIS_URL"),
			PoolSize:     envInt("CHAINRELAY_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("CHAINRELAY_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("CHAINRELAY_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("CHAINRELAY_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("CHAINRELAY_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:   envList("CHAINRELAY_KAFKA_BROKERS"),
			PushTopic: envString("CHAINRELAY_KAFKA_PUSH_TOPIC", "chainrelay.push"),
		},
		Engine: EngineConfig{
			MaxHops:      envInt("CHAINRELAY_MAX_HOPS", 10),
			BatchCeiling: envInt("CHAINRELAY_BATCH_CEILING", 500),
			CacheSize:    envInt("CHAINRELAY_CACHE_SIZE", 1000),
			WindowPolicy: envString("CHAINRELAY_WINDOW_POLICY", "fixed"),
			QueueDepth:   envInt("CHAINRELAY_QUEUE_DEPTH", 64),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
