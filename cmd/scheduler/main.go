package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openkat/scheduler/internal/app"
	"github.com/openkat/scheduler/internal/config"
	"github.com/openkat/scheduler/internal/dispatcher"
	"github.com/openkat/scheduler/internal/listener"
	"github.com/openkat/scheduler/internal/services"
	"github.com/openkat/scheduler/pkg/api"
	"github.com/openkat/scheduler/pkg/logging"
)

var (
	cfgFile string
	version = "dev"
	rootCmd *cobra.Command
)

func main() {
	rootCmd = &cobra.Command{
		Use:     "scheduler",
		Short:   "Per-organisation task-scheduling engine for boefjes and normalizers",
		Version: version,
		Example: `  # Start with defaults
  scheduler start

  # Start with a custom config file
  scheduler start --config config.yaml`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")

	rootCmd.AddCommand(startCmd())
	initHelpCommands()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler process",
		Long:  "Start the scheduler: discovers organisations, runs a boefje and normalizer scheduler pair per organisation, and serves the admin HTTP surface.",
		RunE:  runStart,
	}
	cmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().Bool("pretty-log", false, "Use human-readable console log output instead of JSON")
	return cmd
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level, _ := cmd.Flags().GetString("log-level")
	pretty, _ := cmd.Flags().GetBool("pretty-log")
	logging.Configure(level, pretty)

	catalogue := services.NewCatalogueClient(cfg.Catalogue.Host, cfg.Catalogue.Timeout, cfg.Catalogue.CacheTTL)
	inventory := services.NewInventoryClient(cfg.Inventory.Host, cfg.Inventory.Timeout, cfg.Inventory.CacheTTL)
	rawData := services.NewBytesClient(cfg.RawData.Host, cfg.RawData.User, cfg.RawData.Pass, cfg.RawData.Timeout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, svc := range []*services.HTTPService{catalogue.HTTPService, inventory.HTTPService, rawData.HTTPService} {
		if err := svc.WaitUntilAvailable(ctx); err != nil {
			log.Warn().Str("service", svc.Name).Err(err).Msg("service not reachable at startup, continuing anyway")
		}
	}

	eventBusAddr := cfg.Dispatch.OctopoesDSN
	if u, err := url.Parse(eventBusAddr); err == nil && u.Host != "" {
		eventBusAddr = u.Host
	}
	sub := listener.NewRedisSubscriber(eventBusAddr, "", 0)
	defer sub.Close()
	bus := listener.New(sub)

	broker := dispatcher.NewHTTPBroker(cfg.Dispatch.BrokerURL, 10*time.Second)

	supervisor := app.New(app.Dependencies{
		Inventory:         inventory,
		Catalogue:         catalogue,
		RawData:           rawData,
		Events:            bus,
		Broker:            broker,
		QueueMaxsize:      cfg.Queue.Maxsize,
		DispatchThreshold: cfg.Dispatch.Threshold,
		GracePeriod:       cfg.Queue.PopulateGracePeriod,
		RandomFillN:       cfg.Queue.RandomFillN,
	})

	if err := supervisor.Run(ctx); err != nil {
		return fmt.Errorf("failed to start supervisor: %w", err)
	}
	defer supervisor.Stop()

	server := api.New(cfg.API.Addr(), app.AdminView{Supervisor: supervisor}, version)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Run(ctx)
	}()

	log.Info().Str("addr", cfg.API.Addr()).Msg("scheduler started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info().Msg("shutting down")
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("admin server exited")
		}
	}

	cancel()
	return nil
}
