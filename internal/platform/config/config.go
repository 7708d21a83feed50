package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server and pipeline level configuration.
type Server struct {
	Addr        string
	PostgresDSN string
	Redis       RedisConfig
	Kafka       KafkaConfig

	// AutoApproveFloor is the confidence floor above which low-risk (T2/T3)
	// rules are approved without a human reviewer.
	AutoApproveFloor float64

	// SyncMaxAttempts bounds retries before a content-sync event is
	// dead-lettered.
	SyncMaxAttempts int

	// ExtractorModel selects the LLM used by the extraction collaborator.
	// Empty disables the OpenAI extractor (the pipeline then requires a
	// caller-supplied extractor).
	ExtractorModel  string
	ExtractorAPIKey string

	// ContentRepoURL is the webhook endpoint of the downstream content
	// system. Empty disables the in-process sync worker; enqueued events
	// then wait for an external consumer.
	ContentRepoURL string
}

// RedisConfig tunes the release bundle cache connection.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BundleTTL    time.Duration
}

// KafkaConfig tunes the content-sync queue backend.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("NORMATIVE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	floor := 0.85
	if raw := os.Getenv("NORMATIVE_AUTO_APPROVE_FLOOR"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
			floor = parsed
		}
	}

	attempts := 5
	if raw := os.Getenv("NORMATIVE_SYNC_MAX_ATTEMPTS"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			attempts = parsed
		}
	}

	topic := os.Getenv("NORMATIVE_KAFKA_TOPIC")
	if topic == "" {
		topic = "content-sync"
	}

	var brokers []string
	if raw := os.Getenv("NORMATIVE_KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}

	return Server{
		Addr:        addr,
		PostgresDSN: os.Getenv("NORMATIVE_POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("NORMATIVE_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			BundleTTL:    5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers: brokers,
			Topic:   topic,
		},
		AutoApproveFloor: floor,
		SyncMaxAttempts:  attempts,
		ExtractorModel:   os.Getenv("NORMATIVE_EXTRACTOR_MODEL"),
		ExtractorAPIKey:  os.Getenv("OPENAI_API_KEY"),
		ContentRepoURL:   os.Getenv("NORMATIVE_CONTENT_REPO_URL"),
	}
}
