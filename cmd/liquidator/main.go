// Command liquidator runs the marginfi liquidation bot: it reads a config
// file path from its arguments, initializes every collaborator in
// dependency order, and runs until a fatal error (spec §6, §7). There is
// no healthy exit code: any return from run is a fault.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aman-zulfiqar/marginfi-liquidator/internal/config"
	"github.com/aman-zulfiqar/marginfi-liquidator/internal/flags"
	"github.com/aman-zulfiqar/marginfi-liquidator/internal/jupiter"
	"github.com/aman-zulfiqar/marginfi-liquidator/internal/liquidator"
	"github.com/aman-zulfiqar/marginfi-liquidator/internal/rpc"
	"github.com/aman-zulfiqar/marginfi-liquidator/internal/stateengine"
	"github.com/aman-zulfiqar/marginfi-liquidator/internal/stream"
	"github.com/aman-zulfiqar/marginfi-liquidator/internal/telemetry"
	"github.com/aman-zulfiqar/marginfi-liquidator/internal/wallet"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "liquidator",
		Short: "marginfi-liquidator - an automated marginfi liquidation and rebalancing bot",
		RunE:  run,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "liquidator: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	// Optional: LIQ_* env overrides may live in a .env file alongside the
	// config. Absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	w, err := wallet.NewWalletFromKeypairFile(cfg.KeypairPath, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("load wallet: %w", err)
	}
	defer w.Close()
	log.WithField("address", w.Address()).Info("liquidator: wallet loaded")

	rpcClient := rpc.NewClient(rpc.ClientConfig{
		BaseURL:           cfg.RPCURL,
		RequestsPerSecond: cfg.RPCRequestsPerSec,
	})

	programID, err := solana.PublicKeyFromBase58(cfg.MarginfiProgramID)
	if err != nil {
		return fmt.Errorf("invalid marginfi_program_id: %w", err)
	}
	groupAddress, err := solana.PublicKeyFromBase58(cfg.MarginfiGroup)
	if err != nil {
		return fmt.Errorf("invalid marginfi_group_address: %w", err)
	}

	engine := stateengine.New(stateengine.Config{
		ProgramID:     programID,
		GroupAddress:  groupAddress,
		Fetcher:       rpcClient,
		Lister:        rpcClient,
		OracleFactory: stateengine.NewPythOracleAdapter,
		BatchConfig:   stateengine.DefaultBatchLoadingConfig,
		Log:           log,
	})

	log.Info("liquidator: bootstrapping state engine")
	if err := engine.Start(ctx, w.PublicKey()); err != nil {
		return fmt.Errorf("bootstrap state engine: %w", err)
	}

	jupClient := jupiter.NewClient(cfg.JupSwapAPIURL, "")

	killSwitch, err := buildKillSwitch(cfg, log)
	if err != nil {
		return fmt.Errorf("build kill switch: %w", err)
	}

	sink, err := buildTelemetrySink(cfg, log)
	if err != nil {
		return fmt.Errorf("build telemetry sink: %w", err)
	}

	proc, err := liquidator.New(liquidator.Deps{
		Engine:     engine,
		Wallet:     w,
		Jupiter:    jupClient,
		KillSwitch: killSwitch,
		Telemetry:  sink,
		Config:     cfg,
		Log:        log,
	})
	if err != nil {
		return fmt.Errorf("construct processor: %w", err)
	}

	log.Info("liquidator: running startup checks")
	if err := proc.Startup(ctx); err != nil {
		return fmt.Errorf("processor startup: %w", err)
	}

	yellowstone := stream.NewYellowstoneStream(cfg.YellowstoneURL, cfg.YellowstoneXToken, log)
	if err := yellowstone.ConnectToSource(ctx, engine); err != nil {
		return fmt.Errorf("connect streaming feed: %w", err)
	}
	defer yellowstone.Close()

	poller := stream.NewReconciliationPoller(engine, cfg.ReconciliationInterval, log)

	errCh := make(chan error, 3)
	go func() { errCh <- yellowstone.Listen(ctx, streamHandler(engine)) }()
	go func() { errCh <- poller.Run(ctx) }()
	go func() { errCh <- proc.Run(ctx) }()

	select {
	case <-ctx.Done():
		log.Info("liquidator: shutdown signal received")
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("fatal: %w", err)
	}
}

func streamHandler(engine *stateengine.Engine) stream.Handler {
	return engine.HandleUpdate
}

// buildKillSwitch wires a Redis-backed kill switch when redis_addr is
// configured. An empty address yields a KillSwitch wrapping a nil store,
// which always reports "not paused" rather than blocking startup.
func buildKillSwitch(cfg *config.Config, log *logrus.Logger) (*flags.KillSwitch, error) {
	if cfg.RedisAddr == "" {
		log.Info("liquidator: redis_addr not set, kill switch disabled")
		return flags.NewKillSwitch(nil), nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	store, err := flags.NewStore(client)
	if err != nil {
		return nil, err
	}
	return flags.NewKillSwitch(store), nil
}

// buildTelemetrySink wires a ClickHouse-backed telemetry sink when
// clickhouse_addr is configured. Telemetry is wholly optional: nothing in
// the processor's decision path depends on it.
func buildTelemetrySink(cfg *config.Config, log *logrus.Logger) (*telemetry.Sink, error) {
	if cfg.ClickHouseAddr == "" {
		log.Info("liquidator: clickhouse_addr not set, telemetry disabled")
		return nil, nil
	}
	return telemetry.NewSink(cfg.ClickHouseAddr, cfg.ClickHouseDatabase, cfg.ClickHouseUsername, cfg.ClickHousePassword, log)
}
