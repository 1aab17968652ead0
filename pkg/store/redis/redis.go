// Package redis provides a durable GatewayStore backed by Redis, suitable
// for cloud deployments where local disk is ephemeral.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/interop-labs/gateway-go/pkg/types"
)

// Key prefixes for namespacing in Redis
const (
	keyPrefixExecuted    = "gw:cmd:executed:"
	keyPrefixApproval    = "gw:cmd:approval:"
	keySetRelayers       = "gw:auth:relayers"
	keyPrefixChainByName = "gw:chain:name:"
	keyPrefixChainByID   = "gw:chain:id:"
	keySetTokens         = "gw:tokens"
	keyPrefixBalance     = "gw:balance:"
	keyPrefixNonce       = "gw:nonce:"
	keySchemaVersion     = "gw:metadata:schema_version"
	currentSchemaVersion = "v1"

	opTimeout = 5 * time.Second
)

// RedisStore is a Redis-backed GatewayStore.
type RedisStore struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

// RedisConfig holds the connection settings for Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number
	DB int
	// KeyPrefix is an optional extra prefix for all keys, for multi-tenant
	// deployments sharing one Redis instance
	KeyPrefix string
}

// NewRedisStore connects to Redis and initializes the schema version key.
func NewRedisStore(cfg *RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to connect to Redis at %s", cfg.Address)
	}

	rs := &RedisStore{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rs.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}

	logger.Sugar().Infow("Redis store initialized", "address", cfg.Address, "db", cfg.DB)

	return rs, nil
}

func (r *RedisStore) initSchema(ctx context.Context) error {
	existing, err := r.client.Get(ctx, r.key(keySchemaVersion)).Result()
	if err == redis.Nil {
		return r.client.Set(ctx, r.key(keySchemaVersion), currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return err
	}
	if existing != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existing, currentSchemaVersion)
	}
	return nil
}

func (r *RedisStore) key(k string) string {
	return r.keyPrefix + k
}

func (r *RedisStore) opContext() (context.Context, context.CancelFunc, error) {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, nil, fmt.Errorf("store is closed")
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	return ctx, cancel, nil
}

// IsCommandExecuted reports whether a command id has executed
func (r *RedisStore) IsCommandExecuted(id types.CommandID) (bool, error) {
	ctx, cancel, err := r.opContext()
	if err != nil {
		return false, err
	}
	defer cancel()

	n, err := r.client.Exists(ctx, r.key(keyPrefixExecuted+id.Hex())).Result()
	if err != nil {
		return false, errors.Wrap(err, "failed to read executed flag")
	}
	return n > 0, nil
}

// MarkCommandExecuted records a command id as executed
func (r *RedisStore) MarkCommandExecuted(id types.CommandID) error {
	ctx, cancel, err := r.opContext()
	if err != nil {
		return err
	}
	defer cancel()

	if err := r.client.Set(ctx, r.key(keyPrefixExecuted+id.Hex()), "1", 0).Err(); err != nil {
		return errors.Wrap(err, "failed to mark command executed")
	}
	return nil
}

// SaveApproval persists an approval record as JSON
func (r *RedisStore) SaveApproval(key common.Hash, approval *types.ContractCallApproval) error {
	if approval == nil {
		return fmt.Errorf("cannot save nil approval")
	}
	data, err := json.Marshal(approval)
	if err != nil {
		return errors.Wrap(err, "failed to serialize approval")
	}

	ctx, cancel, err := r.opContext()
	if err != nil {
		return err
	}
	defer cancel()

	if err := r.client.Set(ctx, r.key(keyPrefixApproval+key.Hex()), data, 0).Err(); err != nil {
		return errors.Wrap(err, "failed to save approval")
	}
	return nil
}

// GetApproval returns the approval for key, or nil if none exists
func (r *RedisStore) GetApproval(key common.Hash) (*types.ContractCallApproval, error) {
	ctx, cancel, err := r.opContext()
	if err != nil {
		return nil, err
	}
	defer cancel()

	data, err := r.client.Get(ctx, r.key(keyPrefixApproval+key.Hex())).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read approval")
	}
	var approval types.ContractCallApproval
	if err := json.Unmarshal([]byte(data), &approval); err != nil {
		return nil, errors.Wrap(err, "failed to deserialize approval")
	}
	return &approval, nil
}

// AddRelayer adds an address to the relayer set
func (r *RedisStore) AddRelayer(addr common.Address) error {
	ctx, cancel, err := r.opContext()
	if err != nil {
		return err
	}
	defer cancel()
	return r.client.SAdd(ctx, r.key(keySetRelayers), addr.Hex()).Err()
}

// RemoveRelayer removes an address from the relayer set
func (r *RedisStore) RemoveRelayer(addr common.Address) error {
	ctx, cancel, err := r.opContext()
	if err != nil {
		return err
	}
	defer cancel()
	return r.client.SRem(ctx, r.key(keySetRelayers), addr.Hex()).Err()
}

// IsRelayer reports whether an address is in the relayer set
func (r *RedisStore) IsRelayer(addr common.Address) (bool, error) {
	ctx, cancel, err := r.opContext()
	if err != nil {
		return false, err
	}
	defer cancel()
	return r.client.SIsMember(ctx, r.key(keySetRelayers), addr.Hex()).Result()
}

// AddChain registers a chain name <-> id pair
func (r *RedisStore) AddChain(name string, id uint64) error {
	ctx, cancel, err := r.opContext()
	if err != nil {
		return err
	}
	defer cancel()

	idStr := strconv.FormatUint(id, 10)
	if err := r.client.Set(ctx, r.key(keyPrefixChainByName+name), idStr, 0).Err(); err != nil {
		return errors.Wrap(err, "failed to save chain by name")
	}
	if err := r.client.Set(ctx, r.key(keyPrefixChainByID+idStr), name, 0).Err(); err != nil {
		return errors.Wrap(err, "failed to save chain by id")
	}
	return nil
}

// RemoveChain clears both directions of a chain mapping
func (r *RedisStore) RemoveChain(name string, id uint64) error {
	ctx, cancel, err := r.opContext()
	if err != nil {
		return err
	}
	defer cancel()

	return r.client.Del(ctx,
		r.key(keyPrefixChainByName+name),
		r.key(keyPrefixChainByID+strconv.FormatUint(id, 10)),
	).Err()
}

// GetChainID returns the numeric id for a chain name, 0 when unset
func (r *RedisStore) GetChainID(name string) (uint64, error) {
	ctx, cancel, err := r.opContext()
	if err != nil {
		return 0, err
	}
	defer cancel()

	data, err := r.client.Get(ctx, r.key(keyPrefixChainByName+name)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to read chain id")
	}
	id, err := strconv.ParseUint(data, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt chain id entry for %q", name)
	}
	return id, nil
}

// GetChainName returns the name for a chain id, "" when unset
func (r *RedisStore) GetChainName(id uint64) (string, error) {
	ctx, cancel, err := r.opContext()
	if err != nil {
		return "", err
	}
	defer cancel()

	data, err := r.client.Get(ctx, r.key(keyPrefixChainByID+strconv.FormatUint(id, 10))).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to read chain name")
	}
	return data, nil
}

// AddToken adds a symbol to the supported set
func (r *RedisStore) AddToken(symbol string) error {
	ctx, cancel, err := r.opContext()
	if err != nil {
		return err
	}
	defer cancel()
	return r.client.SAdd(ctx, r.key(keySetTokens), symbol).Err()
}

// RemoveToken removes a symbol from the supported set
func (r *RedisStore) RemoveToken(symbol string) error {
	ctx, cancel, err := r.opContext()
	if err != nil {
		return err
	}
	defer cancel()
	return r.client.SRem(ctx, r.key(keySetTokens), symbol).Err()
}

// IsTokenSupported reports whether a symbol is supported
func (r *RedisStore) IsTokenSupported(symbol string) (bool, error) {
	ctx, cancel, err := r.opContext()
	if err != nil {
		return false, err
	}
	defer cancel()
	return r.client.SIsMember(ctx, r.key(keySetTokens), symbol).Result()
}

func balanceKey(account common.Address, symbol string) string {
	return keyPrefixBalance + account.Hex() + ":" + symbol
}

// GetBalance returns an account's balance, zero when absent
func (r *RedisStore) GetBalance(account common.Address, symbol string) (*big.Int, error) {
	ctx, cancel, err := r.opContext()
	if err != nil {
		return nil, err
	}
	defer cancel()

	data, err := r.client.Get(ctx, r.key(balanceKey(account, symbol))).Result()
	if err == redis.Nil {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read balance")
	}
	bal, ok := new(big.Int).SetString(data, 10)
	if !ok {
		return nil, fmt.Errorf("corrupt balance entry for %s:%s", account.Hex(), symbol)
	}
	return bal, nil
}

// SetBalance overwrites an account's balance
func (r *RedisStore) SetBalance(account common.Address, symbol string, amount *big.Int) error {
	if amount == nil {
		return fmt.Errorf("cannot set nil balance")
	}

	ctx, cancel, err := r.opContext()
	if err != nil {
		return err
	}
	defer cancel()
	return r.client.Set(ctx, r.key(balanceKey(account, symbol)), amount.String(), 0).Err()
}

func nonceKey(actor common.Address, direction types.BridgeDirection) string {
	return keyPrefixNonce + actor.Hex() + ":" + string(direction)
}

// GetNonce returns the current nonce for an actor and direction, 0 when unset
func (r *RedisStore) GetNonce(actor common.Address, direction types.BridgeDirection) (uint64, error) {
	ctx, cancel, err := r.opContext()
	if err != nil {
		return 0, err
	}
	defer cancel()

	data, err := r.client.Get(ctx, r.key(nonceKey(actor, direction))).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to read nonce")
	}
	nonce, err := strconv.ParseUint(data, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt nonce entry for %s:%s", actor.Hex(), direction)
	}
	return nonce, nil
}

// SetNonce overwrites the nonce for an actor and direction
func (r *RedisStore) SetNonce(actor common.Address, direction types.BridgeDirection, nonce uint64) error {
	ctx, cancel, err := r.opContext()
	if err != nil {
		return err
	}
	defer cancel()
	return r.client.Set(ctx, r.key(nonceKey(actor, direction)), strconv.FormatUint(nonce, 10), 0).Err()
}

// Close shuts down the Redis connection
func (r *RedisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if err := r.client.Close(); err != nil {
		return errors.Wrap(err, "failed to close redis client")
	}
	r.logger.Sugar().Infow("Redis store closed")
	return nil
}

// HealthCheck verifies the store is operational
func (r *RedisStore) HealthCheck() error {
	ctx, cancel, err := r.opContext()
	if err != nil {
		return err
	}
	defer cancel()
	return r.client.Ping(ctx).Err()
}
