package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetbite/galley/pkg/api"
	"github.com/fleetbite/galley/pkg/archiver"
	"github.com/fleetbite/galley/pkg/config"
	"github.com/fleetbite/galley/pkg/engine"
	"github.com/fleetbite/galley/pkg/events"
	"github.com/fleetbite/galley/pkg/gateway"
	"github.com/fleetbite/galley/pkg/inventory"
	"github.com/fleetbite/galley/pkg/log"
	"github.com/fleetbite/galley/pkg/manager"
	"github.com/fleetbite/galley/pkg/metrics"
	"github.com/fleetbite/galley/pkg/notify"
	"github.com/fleetbite/galley/pkg/queue"
	"github.com/fleetbite/galley/pkg/storage"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "galley",
	Short: "Galley - live kitchen coordination for food-truck fleets",
	Long: `Galley is the coordination core for a food-truck fleet: it tracks
orders through the kitchen, streams live updates to every display on
the shift, keeps per-shift inventory honest, and reconciles external
ordering channels exactly once.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Galley version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(seedCmd)
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the Galley API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Flags().GetString("config")
		listenAddr, _ := cmd.Flags().GetString("listen")
		dataDir, _ := cmd.Flags().GetString("data-dir")

		cfg := config.Default()
		if cfgPath != "" {
			var err error
			cfg, err = config.Load(cfgPath)
			if err != nil {
				return err
			}
		}
		if listenAddr != "" {
			cfg.ListenAddr = listenAddr
		}
		if dataDir != "" {
			cfg.DataDir = dataDir
		}

		log.Init(log.Config{Level: log.Level(cfg.Log.Level), JSONOutput: cfg.Log.JSON})
		metrics.SetVersion(Version)

		store, err := storage.NewBoltStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open store: %v", err)
		}
		defer store.Close()
		metrics.RegisterComponent("storage", true, "")

		registry := events.NewRegistry(cfg.Events.RingSize, cfg.Events.SubscriberBuffer)
		ledger := inventory.NewLedger(store, registry, cfg.Inventory.Policy)
		eng := engine.NewEngine(store, registry, ledger)
		q := queue.NewQueue(store)
		gw := gateway.NewGateway(store, registry, ledger)

		mgr := manager.NewManager(store, registry, cfg)
		mgr.SetNotifier(notify.NewNotifier(store))

		arch := archiver.NewArchiver(store, cfg.Archiver.Interval, cfg.Archiver.Grace)
		arch.Start()
		defer arch.Stop()

		server := api.NewServer(cfg, store, mgr, eng, q, gw, ledger, registry)

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.ListenAddr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-sigCh:
			log.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Stop(ctx)
		}
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the catalog with demo trucks, locations, menu and staff",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		if dataDir == "" {
			dataDir = config.Default().DataDir
		}

		log.Init(log.Config{Level: log.InfoLevel})

		store, err := storage.NewBoltStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to open store: %v", err)
		}
		defer store.Close()

		if err := seedCatalog(store); err != nil {
			return err
		}
		fmt.Println("Seeded demo catalog.")
		return nil
	},
}

func init() {
	serverCmd.Flags().String("config", "", "Path to YAML config file")
	serverCmd.Flags().String("listen", "", "Listen address (overrides config)")
	serverCmd.Flags().String("data-dir", "", "Data directory (overrides config)")

	seedCmd.Flags().String("data-dir", "", "Data directory")
}
