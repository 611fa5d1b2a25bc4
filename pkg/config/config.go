package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mselser95/exchange-settlement/pkg/orders"
)

// Store modes.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Event sinks.
const (
	SinkConsole  = "console"
	SinkPostgres = "postgres"
	SinkNATS     = "nats"
	SinkNone     = "none"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel        string
	HTTPPort        string
	ShutdownTimeout time.Duration

	// Exchange environment
	ChainID               int64
	ExchangeAddress       string
	WrappedNativeAddress  string
	ProtocolFeeCollector  string
	ProtocolFeeMultiplier string
	DefaultGasPrice       string
	EIP712DomainName      string
	EIP712DomainVersion   string

	// Settlement
	MaxRouteDepth        int
	SettlementMaxRetries int
	SignerCacheSize      int64

	// State store
	StoreMode     string // "memory", "postgres" or "redis"
	PostgresHost  string
	PostgresPort  string
	PostgresUser  string
	PostgresPass  string
	PostgresDB    string
	PostgresSSL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Events
	EventSink         string // "console", "postgres", "nats" or "none"
	NATSURL           string
	NATSSubjectPrefix string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel:        getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort:        getEnvOrDefault("HTTP_PORT", "8080"),
		ShutdownTimeout: getDurationOrDefault("SHUTDOWN_TIMEOUT", 10*time.Second),

		// Exchange defaults
		ChainID:               getInt64OrDefault("CHAIN_ID", 1),
		ExchangeAddress:       getEnvOrDefault("EXCHANGE_ADDRESS", "0xDef1C0ded9bec7F1a1670819833240f027b25EfF"),
		WrappedNativeAddress:  getEnvOrDefault("WRAPPED_NATIVE_ADDRESS", "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
		ProtocolFeeCollector:  getEnvOrDefault("PROTOCOL_FEE_COLLECTOR", "0xa26e80e7Dea86279c6d778D702Cc413E6CFfA777"),
		ProtocolFeeMultiplier: getEnvOrDefault("PROTOCOL_FEE_MULTIPLIER", "70000"),
		DefaultGasPrice:       getEnvOrDefault("DEFAULT_GAS_PRICE", "0"),
		EIP712DomainName:      getEnvOrDefault("EIP712_DOMAIN_NAME", "ZeroEx"),
		EIP712DomainVersion:   getEnvOrDefault("EIP712_DOMAIN_VERSION", "1.0.0"),

		// Settlement defaults
		MaxRouteDepth:        getIntOrDefault("MAX_ROUTE_DEPTH", 4),
		SettlementMaxRetries: getIntOrDefault("SETTLEMENT_MAX_RETRIES", 3),
		SignerCacheSize:      getInt64OrDefault("SIGNER_CACHE_SIZE", 10000),

		// Store defaults
		StoreMode:     getEnvOrDefault("STORE_MODE", StoreMemory),
		PostgresHost:  getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort:  getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser:  getEnvOrDefault("POSTGRES_USER", "postgres"),
		PostgresPass:  getEnvOrDefault("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:    getEnvOrDefault("POSTGRES_DB", "settlement"),
		PostgresSSL:   getEnvOrDefault("POSTGRES_SSL_MODE", "disable"),
		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getIntOrDefault("REDIS_DB", 0),

		// Event defaults
		EventSink:         getEnvOrDefault("EVENT_SINK", SinkConsole),
		NATSURL:           getEnvOrDefault("NATS_URL", "nats://localhost:4222"),
		NATSSubjectPrefix: getEnvOrDefault("NATS_SUBJECT_PREFIX", "settlement.events"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.ChainID <= 0 {
		return fmt.Errorf("CHAIN_ID must be positive, got %d", c.ChainID)
	}

	addresses := []struct {
		key   string
		value string
	}{
		{"EXCHANGE_ADDRESS", c.ExchangeAddress},
		{"WRAPPED_NATIVE_ADDRESS", c.WrappedNativeAddress},
		{"PROTOCOL_FEE_COLLECTOR", c.ProtocolFeeCollector},
	}
	for _, a := range addresses {
		if !common.IsHexAddress(a.value) {
			return fmt.Errorf("%s must be a hex address, got %q", a.key, a.value)
		}
	}

	if _, err := parseUint(c.ProtocolFeeMultiplier); err != nil {
		return fmt.Errorf("PROTOCOL_FEE_MULTIPLIER: %w", err)
	}
	if _, err := parseUint(c.DefaultGasPrice); err != nil {
		return fmt.Errorf("DEFAULT_GAS_PRICE: %w", err)
	}

	if c.EIP712DomainName == "" || c.EIP712DomainVersion == "" {
		return fmt.Errorf("EIP712_DOMAIN_NAME and EIP712_DOMAIN_VERSION cannot be empty")
	}

	if c.MaxRouteDepth <= 0 {
		return fmt.Errorf("MAX_ROUTE_DEPTH must be positive, got %d", c.MaxRouteDepth)
	}

	if c.SettlementMaxRetries <= 0 {
		return fmt.Errorf("SETTLEMENT_MAX_RETRIES must be positive, got %d", c.SettlementMaxRetries)
	}

	if c.SignerCacheSize < 0 {
		return fmt.Errorf("SIGNER_CACHE_SIZE cannot be negative, got %d", c.SignerCacheSize)
	}

	switch c.StoreMode {
	case StoreMemory, StorePostgres, StoreRedis:
	default:
		return fmt.Errorf("STORE_MODE must be 'memory', 'postgres' or 'redis', got %q", c.StoreMode)
	}

	switch c.EventSink {
	case SinkConsole, SinkPostgres, SinkNone:
	case SinkNATS:
		if c.NATSURL == "" {
			return fmt.Errorf("NATS_URL cannot be empty when EVENT_SINK is 'nats'")
		}
	default:
		return fmt.Errorf("EVENT_SINK must be 'console', 'postgres', 'nats' or 'none', got %q", c.EventSink)
	}

	return nil
}

// Exchange returns the exchange address.
func (c *Config) Exchange() common.Address {
	return common.HexToAddress(c.ExchangeAddress)
}

// Domain returns the EIP-712 signing domain orders are hashed under.
func (c *Config) Domain() orders.Domain {
	domain := orders.NewDomain(c.ChainID, c.Exchange())
	domain.Name = c.EIP712DomainName
	domain.Version = c.EIP712DomainVersion
	return domain
}

// WrappedNative returns the wrapped native token address.
func (c *Config) WrappedNative() common.Address {
	return common.HexToAddress(c.WrappedNativeAddress)
}

// FeeCollector returns the protocol fee collector address.
func (c *Config) FeeCollector() common.Address {
	return common.HexToAddress(c.ProtocolFeeCollector)
}

// FeeMultiplier returns the protocol fee multiplier. Validate must have passed.
func (c *Config) FeeMultiplier() *big.Int {
	v, _ := parseUint(c.ProtocolFeeMultiplier)
	return v
}

// GasPrice returns the default gas price applied to calls that carry none.
func (c *Config) GasPrice() *big.Int {
	v, _ := parseUint(c.DefaultGasPrice)
	return v
}

func parseUint(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 0)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%q is not a non-negative integer", s)
	}
	return v, nil
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

func getInt64OrDefault(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}

	return intVal
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
