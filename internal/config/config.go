package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Env      string
	LogLevel string

	// Backend endpoints
	APIURL string
	WSURL  string

	// HTTP client
	HTTPTimeout time.Duration

	// WebSocket
	ReconnectDelay time.Duration

	// Presence
	HeartbeatInterval time.Duration
	GeoTimeout        time.Duration
	GeoIPURL          string

	// Local state (device id persistence)
	StateDir string

	// Transaction feed
	TransactionPageSize int

	// Sandbox server
	SandboxAddr    string
	JWTSecret      string
	AllowedOrigins []string
}

func Load() *Config {
	// Load .env file in development
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		// Environment
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		// Backend endpoints; absent vars fall back to the local sandbox
		APIURL: getEnv("LUCKBET_API_URL", "http://localhost:3001"),
		WSURL:  getEnv("LUCKBET_WS_URL", "ws://localhost:3001/ws"),

		// HTTP client
		HTTPTimeout: parseDuration(getEnv("HTTP_TIMEOUT", "10s"), 10*time.Second),

		// WebSocket
		ReconnectDelay: parseDuration(getEnv("WS_RECONNECT_DELAY", "3s"), 3*time.Second),

		// Presence
		HeartbeatInterval: parseDuration(getEnv("PRESENCE_HEARTBEAT_INTERVAL", "30s"), 30*time.Second),
		GeoTimeout:        parseDuration(getEnv("PRESENCE_GEO_TIMEOUT", "5s"), 5*time.Second),
		GeoIPURL:          getEnv("PRESENCE_GEOIP_URL", ""),

		// Local state
		StateDir: getEnv("STATE_DIR", defaultStateDir()),

		// Transaction feed
		TransactionPageSize: parseInt(getEnv("TRANSACTION_PAGE_SIZE", "20"), 20),

		// Sandbox server
		SandboxAddr:    getEnv("SANDBOX_ADDR", ":3001"),
		JWTSecret:      getEnv("JWT_SECRET", "sandbox-secret-change-me"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + "/luckbet"
	}
	return ".luckbet"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func parseDuration(s string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultValue
	}
	return d
}

func parseInt(s string, defaultValue int) int {
	value, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return value
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
