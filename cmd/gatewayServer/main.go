package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/interop-labs/gateway-go/pkg/config"
	"github.com/interop-labs/gateway-go/pkg/gateway"
	"github.com/interop-labs/gateway-go/pkg/logger"
	"github.com/interop-labs/gateway-go/pkg/server"
	"github.com/interop-labs/gateway-go/pkg/sigverify"
	"github.com/interop-labs/gateway-go/pkg/store"
	badgerstore "github.com/interop-labs/gateway-go/pkg/store/badger"
	"github.com/interop-labs/gateway-go/pkg/store/memory"
	redisstore "github.com/interop-labs/gateway-go/pkg/store/redis"
)

func main() {
	app := &cli.App{
		Name:  "gateway-server",
		Usage: "Cross-chain command gateway node",
		Description: `A gateway node that executes signed relayer command batches.

This server implements:
- Exactly-once execution of ABI-encoded command batches
- Contract-call approval with failure-isolated delivery callbacks
- Bridged-token mint/burn with per-actor nonce replay protection
- Owner-administered relayer, chain and token registries`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "owner-address",
				Aliases:  []string{"owner"},
				Usage:    "Address allowed to administer the registries",
				EnvVars:  []string{config.EnvGatewayOwnerAddress},
				Required: true,
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   8080,
				Usage:   "HTTP server port",
				EnvVars: []string{config.EnvGatewayPort},
			},
			&cli.Uint64Flag{
				Name:     "chain-id",
				Aliases:  []string{"chain"},
				Usage:    "Numeric id of the local chain",
				EnvVars:  []string{config.EnvGatewayChainID},
				Required: true,
			},
			&cli.StringFlag{
				Name:     "chain-name",
				Usage:    "Human-readable name of the local chain",
				EnvVars:  []string{config.EnvGatewayChainName},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "bridge-symbol",
				Value:   "WGAS",
				Usage:   "Symbol of the bridged token",
				EnvVars: []string{config.EnvGatewayBridgeSymbol},
			},
			&cli.StringSliceFlag{
				Name:    "relayer",
				Usage:   "Relayer address to bootstrap (repeatable)",
				EnvVars: []string{config.EnvGatewayRelayers},
			},
			&cli.StringFlag{
				Name:    "store-type",
				Value:   string(config.StoreTypeMemory),
				Usage:   "Persistence backend: memory, badger or redis",
				EnvVars: []string{config.EnvGatewayStoreType},
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Badger database directory",
				EnvVars: []string{config.EnvGatewayDataDir},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Usage:   "Redis server address (host:port)",
				EnvVars: []string{config.EnvGatewayRedisAddress},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				EnvVars: []string{config.EnvGatewayRedisPassword},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Usage:   "Redis database number",
				EnvVars: []string{config.EnvGatewayRedisDB},
			},
			&cli.Float64Flag{
				Name:    "rate-limit",
				Usage:   "Request budget in requests per second (0 disables)",
				EnvVars: []string{config.EnvGatewayRateLimit},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvGatewayVerbose},
			},
		},
		Action: runGatewayServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runGatewayServer(c *cli.Context) error {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	cfg := &config.GatewayServerConfig{
		OwnerAddress: c.String("owner-address"),
		Port:         c.Int("port"),
		ChainID:      c.Uint64("chain-id"),
		ChainName:    c.String("chain-name"),
		BridgeSymbol: c.String("bridge-symbol"),
		Relayers:     c.StringSlice("relayer"),
		Store: config.StoreConfig{
			Type:          config.StoreType(c.String("store-type")),
			DataDir:       c.String("data-dir"),
			RedisAddress:  c.String("redis-address"),
			RedisPassword: c.String("redis-password"),
			RedisDB:       c.Int("redis-db"),
		},
		RateLimit: c.Float64("rate-limit"),
		Verbose:   c.Bool("verbose"),
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	st, err := buildStore(cfg, l)
	if err != nil {
		return fmt.Errorf("failed to build store: %w", err)
	}
	defer func() { _ = st.Close() }()

	if err := st.HealthCheck(); err != nil {
		return fmt.Errorf("store health check failed: %w", err)
	}

	owner := common.HexToAddress(cfg.OwnerAddress)
	gw, err := gateway.New(gateway.Config{
		Owner:        owner,
		ChainID:      cfg.ChainID,
		BridgeSymbol: cfg.BridgeSymbol,
	}, st, sigverify.NewECDSAVerifier(), l)
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}

	if err := bootstrap(gw, owner, cfg); err != nil {
		return fmt.Errorf("failed to bootstrap gateway state: %w", err)
	}

	l.Sugar().Infow("Gateway configured",
		"owner", owner.Hex(),
		"chain_id", cfg.ChainID,
		"chain_name", cfg.ChainName,
		"bridge_symbol", cfg.BridgeSymbol,
		"store", cfg.Store.Type,
	)

	srv := server.NewServer(gw, l, cfg.Port, cfg.RateLimit)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	l.Sugar().Infow("Shutting down", "signal", sig.String())

	return srv.Stop()
}

func buildStore(cfg *config.GatewayServerConfig, l *zap.Logger) (store.GatewayStore, error) {
	switch cfg.Store.Type {
	case config.StoreTypeMemory:
		l.Sugar().Warnw("Using in-memory store - all state is lost on restart")
		return memory.NewMemoryStore(), nil
	case config.StoreTypeBadger:
		return badgerstore.NewBadgerStore(cfg.Store.DataDir, l)
	case config.StoreTypeRedis:
		return redisstore.NewRedisStore(&redisstore.RedisConfig{
			Address:  cfg.Store.RedisAddress,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		}, l)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Store.Type)
	}
}

// bootstrap registers the configured local chain, bridge symbol and
// relayers if they are not present yet. Safe to rerun on restart.
func bootstrap(gw *gateway.Gateway, owner common.Address, cfg *config.GatewayServerConfig) error {
	if id, err := gw.GetChainID(cfg.ChainName); err != nil {
		return err
	} else if id == 0 {
		if err := gw.AddChain(owner, cfg.ChainName, cfg.ChainID); err != nil {
			return err
		}
	}

	supported, err := gw.IsTokenSupported(cfg.BridgeSymbol)
	if err != nil {
		return err
	}
	if !supported {
		if err := gw.AddToken(owner, cfg.BridgeSymbol); err != nil {
			return err
		}
	}

	for _, r := range cfg.Relayers {
		addr := common.HexToAddress(r)
		active, err := gw.IsRelayer(addr)
		if err != nil {
			return err
		}
		if !active {
			if err := gw.AddRelayer(owner, addr); err != nil {
				return err
			}
		}
	}
	return nil
}
