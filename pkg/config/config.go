package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// EvictionPolicy selects what happens to a candidate that never resolves a
// creator handle before the age/attempt threshold.
type EvictionPolicy string

const (
	EvictDelete EvictionPolicy = "delete" // remove the row
	EvictIgnore EvictionPolicy = "ignore" // keep it, marked ignored
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Chain / contract
	RPCURL          string // http(s) endpoint for calls and submissions
	RPCWSURL        string // ws(s) endpoint for event subscriptions
	ContractAddress string
	ChainID         int64
	PrivateKey      string // hex, no 0x prefix required

	// Fee strategy
	FeeMultiplier   float64 // scales the suggested priority fee
	SellGasFallback uint64  // fixed gas limit when estimation fails for unknown reasons

	// Trading
	BuyAmount     uint64        // shares bought per admitted candidate
	SellJobDelay  time.Duration // pause between drained sell jobs
	SellAllPause  time.Duration // pause between tokens in a sell-all sweep
	SellQueueSize int

	// Admission policy
	FollowerThreshold int64
	RequireVerified   bool // true switches followers-OR-verified to AND

	// Scanner
	ScanInterval    time.Duration // floor enforced in Validate
	MaxPollAttempts int
	MaxPendingAge   time.Duration
	EvictionPolicy  EvictionPolicy

	// Monitor
	HeartbeatInterval time.Duration
	StaleEventWindow  time.Duration
	MaxReconnects     int
	DispatchWorkers   int
	DispatchQueueSize int

	// Reputation APIs
	RoomAPIURL        string
	ProfileAPIURL     string
	ReputationTimeout time.Duration
	ReputationRPS     float64
	RoomCacheTTL      time.Duration

	// Notifications
	NotifyURL string // empty disables the sink

	// Storage
	StorageMode  string // "postgres" or "file"
	FileDataDir  string
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// minScanInterval is the lower bound enforced on the scanner loop.
const minScanInterval = 2 * time.Second

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		// Chain defaults
		RPCURL:          os.Getenv("RPC_URL"),
		RPCWSURL:        os.Getenv("RPC_WS_URL"),
		ContractAddress: os.Getenv("SHARES_CONTRACT_ADDRESS"),
		ChainID:         int64(getIntOrDefault("CHAIN_ID", 43114)),
		PrivateKey:      os.Getenv("WALLET_PRIVATE_KEY"),

		// Fee defaults
		FeeMultiplier:   getFloat64OrDefault("FEE_MULTIPLIER", 1.2),
		SellGasFallback: uint64(getIntOrDefault("SELL_GAS_FALLBACK", 300000)),

		// Trading defaults
		BuyAmount:     uint64(getIntOrDefault("BUY_AMOUNT", 1)),
		SellJobDelay:  getDurationOrDefault("SELL_JOB_DELAY", 300*time.Millisecond),
		SellAllPause:  getDurationOrDefault("SELL_ALL_PAUSE", 500*time.Millisecond),
		SellQueueSize: getIntOrDefault("SELL_QUEUE_SIZE", 256),

		// Admission defaults
		FollowerThreshold: int64(getIntOrDefault("FOLLOWER_THRESHOLD", 10000)),
		RequireVerified:   getBoolOrDefault("ADMISSION_REQUIRE_VERIFIED", false),

		// Scanner defaults
		ScanInterval:    getDurationOrDefault("SCAN_INTERVAL", 5*time.Second),
		MaxPollAttempts: getIntOrDefault("MAX_POLL_ATTEMPTS", 30),
		MaxPendingAge:   getDurationOrDefault("MAX_PENDING_AGE", 10*time.Minute),
		EvictionPolicy:  EvictionPolicy(getEnvOrDefault("CANDIDATE_EVICTION_POLICY", string(EvictDelete))),

		// Monitor defaults
		HeartbeatInterval: getDurationOrDefault("HEARTBEAT_INTERVAL", 30*time.Second),
		StaleEventWindow:  getDurationOrDefault("STALE_EVENT_WINDOW", 2*time.Minute),
		MaxReconnects:     getIntOrDefault("MAX_RECONNECTS", 5),
		DispatchWorkers:   getIntOrDefault("DISPATCH_WORKERS", 4),
		DispatchQueueSize: getIntOrDefault("DISPATCH_QUEUE_SIZE", 512),

		// Reputation defaults
		RoomAPIURL:        os.Getenv("ROOM_API_URL"),
		ProfileAPIURL:     os.Getenv("PROFILE_API_URL"),
		ReputationTimeout: getDurationOrDefault("REPUTATION_TIMEOUT", 10*time.Second),
		ReputationRPS:     getFloat64OrDefault("REPUTATION_RPS", 5.0),
		RoomCacheTTL:      getDurationOrDefault("ROOM_CACHE_TTL", 5*time.Minute),

		// Notification defaults
		NotifyURL: os.Getenv("NOTIFY_URL"),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", "file"),
		FileDataDir:  getEnvOrDefault("FILE_DATA_DIR", "data"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "sniper"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "sniper123"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "shares_sniper"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.RPCURL == "" {
		return fmt.Errorf("RPC_URL cannot be empty")
	}

	if c.ContractAddress == "" {
		return fmt.Errorf("SHARES_CONTRACT_ADDRESS cannot be empty")
	}

	if c.FeeMultiplier < 1.0 {
		return fmt.Errorf("FEE_MULTIPLIER must be >= 1.0, got %f", c.FeeMultiplier)
	}

	if c.ScanInterval < minScanInterval {
		c.ScanInterval = minScanInterval
	}

	if c.EvictionPolicy != EvictDelete && c.EvictionPolicy != EvictIgnore {
		return fmt.Errorf("CANDIDATE_EVICTION_POLICY must be 'delete' or 'ignore', got %q", c.EvictionPolicy)
	}

	if c.StorageMode != "postgres" && c.StorageMode != "file" {
		return fmt.Errorf("STORAGE_MODE must be 'postgres' or 'file', got %q", c.StorageMode)
	}

	if c.BuyAmount == 0 {
		return fmt.Errorf("BUY_AMOUNT must be positive")
	}

	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
