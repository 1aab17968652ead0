// Package badger provides a durable GatewayStore backed by BadgerDB.
package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/interop-labs/gateway-go/pkg/types"
)

// Key prefixes for namespacing
const (
	keyPrefixExecuted    = "cmd:executed:"
	keyPrefixApproval    = "cmd:approval:"
	keyPrefixRelayer     = "auth:relayer:"
	keyPrefixChainByName = "chain:name:"
	keyPrefixChainByID   = "chain:id:"
	keyPrefixToken       = "token:"
	keyPrefixBalance     = "balance:"
	keyPrefixNonce       = "nonce:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

// BadgerStore is a durable, disk-based GatewayStore with fsync-on-write.
type BadgerStore struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

// NewBadgerStore opens (or creates) a Badger database at dataPath.
// SyncWrites is enabled: every accepted mutation is on disk before the call
// returns, which is what makes the executed set a durable replay gate.
// A background goroutine runs periodic value-log garbage collection.
func NewBadgerStore(dataPath string, logger *zap.Logger) (*BadgerStore, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve absolute path")
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open badger database at %s", absPath)
	}

	bs := &BadgerStore{
		db:     db,
		logger: logger,
	}

	if err := bs.initSchema(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}

	ctx, cancel := context.WithCancel(context.Background())
	bs.gcCancel = cancel
	bs.gcWg.Add(1)
	go bs.runGC(ctx)

	logger.Sugar().Infow("Badger store initialized", "path", absPath)

	return bs, nil
}

// initSchema initializes or validates the schema version
func (b *BadgerStore) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existing string
		err = item.Value(func(val []byte) error {
			existing = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existing != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existing, currentSchemaVersion)
		}
		return nil
	})
}

// runGC runs periodic value-log garbage collection
func (b *BadgerStore) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && err != badgerdb.ErrNoRewrite {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (b *BadgerStore) checkOpen() error {
	if b.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}

// set writes a single key under the write lock
func (b *BadgerStore) set(key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkOpen(); err != nil {
		return err
	}
	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// get reads a single key; found is false when the key does not exist
func (b *BadgerStore) get(key string) (value []byte, found bool, err error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkOpen(); err != nil {
		return nil, false, err
	}
	err = b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(key))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		value, err = item.ValueCopy(nil)
		return err
	})
	return value, found, err
}

// del removes keys under the write lock
func (b *BadgerStore) del(keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkOpen(); err != nil {
		return err
	}
	return b.db.Update(func(txn *badgerdb.Txn) error {
		for _, key := range keys {
			if err := txn.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
}

// IsCommandExecuted reports whether a command id has executed
func (b *BadgerStore) IsCommandExecuted(id types.CommandID) (bool, error) {
	_, found, err := b.get(keyPrefixExecuted + id.Hex())
	if err != nil {
		return false, errors.Wrap(err, "failed to read executed flag")
	}
	return found, nil
}

// MarkCommandExecuted records a command id as executed
func (b *BadgerStore) MarkCommandExecuted(id types.CommandID) error {
	if err := b.set(keyPrefixExecuted+id.Hex(), []byte{1}); err != nil {
		return errors.Wrap(err, "failed to mark command executed")
	}
	return nil
}

// SaveApproval persists an approval record as JSON
func (b *BadgerStore) SaveApproval(key common.Hash, approval *types.ContractCallApproval) error {
	if approval == nil {
		return fmt.Errorf("cannot save nil approval")
	}
	data, err := json.Marshal(approval)
	if err != nil {
		return errors.Wrap(err, "failed to serialize approval")
	}
	if err := b.set(keyPrefixApproval+key.Hex(), data); err != nil {
		return errors.Wrap(err, "failed to save approval")
	}
	return nil
}

// GetApproval returns the approval for key, or nil if none exists
func (b *BadgerStore) GetApproval(key common.Hash) (*types.ContractCallApproval, error) {
	data, found, err := b.get(keyPrefixApproval + key.Hex())
	if err != nil {
		return nil, errors.Wrap(err, "failed to read approval")
	}
	if !found {
		return nil, nil
	}
	var approval types.ContractCallApproval
	if err := json.Unmarshal(data, &approval); err != nil {
		return nil, errors.Wrap(err, "failed to deserialize approval")
	}
	return &approval, nil
}

// AddRelayer adds an address to the relayer set
func (b *BadgerStore) AddRelayer(addr common.Address) error {
	return b.set(keyPrefixRelayer+addr.Hex(), []byte{1})
}

// RemoveRelayer removes an address from the relayer set
func (b *BadgerStore) RemoveRelayer(addr common.Address) error {
	return b.del(keyPrefixRelayer + addr.Hex())
}

// IsRelayer reports whether an address is in the relayer set
func (b *BadgerStore) IsRelayer(addr common.Address) (bool, error) {
	_, found, err := b.get(keyPrefixRelayer + addr.Hex())
	return found, err
}

// AddChain registers a chain name <-> id pair
func (b *BadgerStore) AddChain(name string, id uint64) error {
	idBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(idBytes, id)

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkOpen(); err != nil {
		return err
	}
	return b.db.Update(func(txn *badgerdb.Txn) error {
		if err := txn.Set([]byte(keyPrefixChainByName+name), idBytes); err != nil {
			return err
		}
		return txn.Set([]byte(keyPrefixChainByID+strconv.FormatUint(id, 10)), []byte(name))
	})
}

// RemoveChain clears both directions of a chain mapping
func (b *BadgerStore) RemoveChain(name string, id uint64) error {
	return b.del(
		keyPrefixChainByName+name,
		keyPrefixChainByID+strconv.FormatUint(id, 10),
	)
}

// GetChainID returns the numeric id for a chain name, 0 when unset
func (b *BadgerStore) GetChainID(name string) (uint64, error) {
	data, found, err := b.get(keyPrefixChainByName + name)
	if err != nil || !found {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt chain id entry for %q", name)
	}
	return binary.BigEndian.Uint64(data), nil
}

// GetChainName returns the name for a chain id, "" when unset
func (b *BadgerStore) GetChainName(id uint64) (string, error) {
	data, found, err := b.get(keyPrefixChainByID + strconv.FormatUint(id, 10))
	if err != nil || !found {
		return "", err
	}
	return string(data), nil
}

// AddToken adds a symbol to the supported set
func (b *BadgerStore) AddToken(symbol string) error {
	return b.set(keyPrefixToken+symbol, []byte{1})
}

// RemoveToken removes a symbol from the supported set
func (b *BadgerStore) RemoveToken(symbol string) error {
	return b.del(keyPrefixToken + symbol)
}

// IsTokenSupported reports whether a symbol is supported
func (b *BadgerStore) IsTokenSupported(symbol string) (bool, error) {
	_, found, err := b.get(keyPrefixToken + symbol)
	return found, err
}

func balanceKey(account common.Address, symbol string) string {
	return keyPrefixBalance + account.Hex() + ":" + symbol
}

// GetBalance returns an account's balance, zero when absent
func (b *BadgerStore) GetBalance(account common.Address, symbol string) (*big.Int, error) {
	data, found, err := b.get(balanceKey(account, symbol))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read balance")
	}
	if !found {
		return new(big.Int), nil
	}
	bal, ok := new(big.Int).SetString(string(data), 10)
	if !ok {
		return nil, fmt.Errorf("corrupt balance entry for %s:%s", account.Hex(), symbol)
	}
	return bal, nil
}

// SetBalance overwrites an account's balance
func (b *BadgerStore) SetBalance(account common.Address, symbol string, amount *big.Int) error {
	if amount == nil {
		return fmt.Errorf("cannot set nil balance")
	}
	return b.set(balanceKey(account, symbol), []byte(amount.String()))
}

func nonceKey(actor common.Address, direction types.BridgeDirection) string {
	return keyPrefixNonce + actor.Hex() + ":" + string(direction)
}

// GetNonce returns the current nonce for an actor and direction, 0 when unset
func (b *BadgerStore) GetNonce(actor common.Address, direction types.BridgeDirection) (uint64, error) {
	data, found, err := b.get(nonceKey(actor, direction))
	if err != nil || !found {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt nonce entry for %s:%s", actor.Hex(), direction)
	}
	return binary.BigEndian.Uint64(data), nil
}

// SetNonce overwrites the nonce for an actor and direction
func (b *BadgerStore) SetNonce(actor common.Address, direction types.BridgeDirection, nonce uint64) error {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, nonce)
	return b.set(nonceKey(actor, direction), data)
}

// Close stops the GC goroutine and closes the database
func (b *BadgerStore) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	b.gcCancel()
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return errors.Wrap(err, "failed to close badger database")
	}
	b.logger.Sugar().Infow("Badger store closed")
	return nil
}

// HealthCheck verifies the store is operational
func (b *BadgerStore) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkOpen(); err != nil {
		return err
	}
	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		return err
	})
}
