package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env               string
	HTTPAddr          string
	SessionUserID     string
	GatewayBaseURL    string
	GatewayToken      string
	GatewayTimeout    time.Duration
	KafkaBrokers      []string
	KafkaTopicPrefix  string
	NATSServers       []string
	PresenceSubject   string
	PresenceHeartbeat time.Duration
	PresenceExpiry    time.Duration
	CacheTTL          time.Duration
	ClientID          string
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	cfg := Config{
		Env:              getEnv("APP_ENV", "dev"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		SessionUserID:    os.Getenv("SESSION_USER_ID"),
		GatewayBaseURL:   os.Getenv("GATEWAY_BASE_URL"),
		GatewayToken:     os.Getenv("GATEWAY_TOKEN"),
		KafkaTopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", ""),
		PresenceSubject:  getEnv("PRESENCE_SUBJECT", "catmatch.presence"),
		ClientID:         getEnv("CLIENT_ID", ""),
	}
	brokers := getEnv("KAFKA_BROKERS", "")
	if brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	servers := getEnv("NATS_URLS", "")
	if servers != "" {
		cfg.NATSServers = strings.Split(servers, ",")
	}

	gatewayTimeout, err := parseDurationEnv("GATEWAY_TIMEOUT", 5*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.GatewayTimeout = gatewayTimeout

	heartbeat, err := parseDurationEnv("PRESENCE_HEARTBEAT", 5*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.PresenceHeartbeat = heartbeat

	expiry, err := parseDurationEnv("PRESENCE_EXPIRY", 15*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.PresenceExpiry = expiry

	cacheTTL, err := parseDurationEnv("CACHE_TTL", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.CacheTTL = cacheTTL

	if cfg.ClientID == "" {
		cfg.ClientID = "catmatch-" + uuid.NewString()
	}
	if cfg.SessionUserID == "" {
		return Config{}, fmt.Errorf("SESSION_USER_ID is required")
	}
	if cfg.GatewayBaseURL == "" {
		return Config{}, fmt.Errorf("GATEWAY_BASE_URL is required")
	}
	if len(cfg.KafkaBrokers) == 0 {
		return Config{}, fmt.Errorf("KAFKA_BROKERS is required")
	}
	if len(cfg.NATSServers) == 0 {
		return Config{}, fmt.Errorf("NATS_URLS is required")
	}
	if cfg.PresenceExpiry <= cfg.PresenceHeartbeat {
		return Config{}, fmt.Errorf("PRESENCE_EXPIRY must exceed PRESENCE_HEARTBEAT")
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}
