package config

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for gateway server configuration
const (
	EnvGatewayOwnerAddress  = "GATEWAY_OWNER_ADDRESS"
	EnvGatewayPort          = "GATEWAY_PORT"
	EnvGatewayChainID       = "GATEWAY_CHAIN_ID"
	EnvGatewayChainName     = "GATEWAY_CHAIN_NAME"
	EnvGatewayBridgeSymbol  = "GATEWAY_BRIDGE_SYMBOL"
	EnvGatewayRelayers      = "GATEWAY_RELAYERS"
	EnvGatewayStoreType     = "GATEWAY_STORE_TYPE"
	EnvGatewayDataDir       = "GATEWAY_DATA_DIR"
	EnvGatewayRedisAddress  = "GATEWAY_REDIS_ADDRESS"
	EnvGatewayRedisPassword = "GATEWAY_REDIS_PASSWORD"
	EnvGatewayRedisDB       = "GATEWAY_REDIS_DB"
	EnvGatewayRateLimit     = "GATEWAY_RATE_LIMIT"
	EnvGatewayVerbose       = "GATEWAY_VERBOSE"
)

// StoreType selects the persistence backend
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeBadger StoreType = "badger"
	StoreTypeRedis  StoreType = "redis"
)

// StoreConfig selects and configures the persistence backend
type StoreConfig struct {
	Type StoreType `json:"type"`

	// DataDir is the badger database directory (badger only)
	DataDir string `json:"dataDir,omitempty"`

	// Redis connection settings (redis only)
	RedisAddress  string `json:"redisAddress,omitempty"`
	RedisPassword string `json:"redisPassword,omitempty"`
	RedisDB       int    `json:"redisDB,omitempty"`
}

// Validate checks the store configuration for the selected backend
func (sc *StoreConfig) Validate() error {
	var allErrors field.ErrorList
	switch sc.Type {
	case StoreTypeMemory:
		// no settings
	case StoreTypeBadger:
		if sc.DataDir == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("dataDir"), "dataDir is required for the badger store"))
		}
	case StoreTypeRedis:
		if sc.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("redisAddress"), "redisAddress is required for the redis store"))
		}
		if sc.RedisDB < 0 || sc.RedisDB > 15 {
			allErrors = append(allErrors, field.Invalid(field.NewPath("redisDB"), sc.RedisDB, "must be between 0 and 15"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("type"), sc.Type, []string{
			string(StoreTypeMemory), string(StoreTypeBadger), string(StoreTypeRedis),
		}))
	}
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// GatewayServerConfig is the complete configuration for a gateway server
type GatewayServerConfig struct {
	// OwnerAddress is the only identity allowed to mutate the registries
	OwnerAddress string `json:"owner_address"`
	Port         int    `json:"port"`

	// Local chain identity
	ChainID   uint64 `json:"chain_id"`
	ChainName string `json:"chain_name"`

	// BridgeSymbol is the bridged token's symbol
	BridgeSymbol string `json:"bridge_symbol"`

	// Relayers are bootstrapped into the relayer set at startup
	Relayers []string `json:"relayers,omitempty"`

	// Store selects the persistence backend
	Store StoreConfig `json:"store"`

	// RateLimit is the per-node request budget in requests per second;
	// zero disables limiting
	RateLimit float64 `json:"rate_limit"`

	Verbose bool `json:"verbose"`
}

// Validate validates the gateway server configuration
func (c *GatewayServerConfig) Validate() error {
	if c.OwnerAddress == "" {
		return fmt.Errorf("owner address cannot be empty")
	}
	if !common.IsHexAddress(c.OwnerAddress) {
		return fmt.Errorf("invalid owner address format: %s", c.OwnerAddress)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1-65535, got %d", c.Port)
	}
	if c.ChainID == 0 {
		return fmt.Errorf("chain id cannot be zero")
	}
	if c.ChainName == "" {
		return fmt.Errorf("chain name cannot be empty")
	}
	if c.BridgeSymbol == "" {
		return fmt.Errorf("bridge symbol cannot be empty")
	}
	for _, r := range c.Relayers {
		if !common.IsHexAddress(r) {
			return fmt.Errorf("invalid relayer address format: %s", r)
		}
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit cannot be negative")
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("invalid store configuration: %w", err)
	}
	return nil
}
