// nooLite Gateway
//
// This is the main entry point for the nooLite RF bulb gateway. It keeps a
// registry of bulbs bound to transmitter channels and drives them through a
// USB transmitter, a remote dongle over MQTT, or a dry-run logger.
//
// Surfaces:
//   - HTTP API and WebSocket event stream
//   - MQTT command topics and retained state (optional)
//   - InfluxDB command telemetry (optional)
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	_ "github.com/nerrad567/noolite-core/migrations"

	"github.com/nerrad567/noolite-core/internal/api"
	"github.com/nerrad567/noolite-core/internal/audit"
	"github.com/nerrad567/noolite-core/internal/bridge"
	"github.com/nerrad567/noolite-core/internal/bulb"
	"github.com/nerrad567/noolite-core/internal/infrastructure/config"
	"github.com/nerrad567/noolite-core/internal/infrastructure/database"
	"github.com/nerrad567/noolite-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/noolite-core/internal/infrastructure/logging"
	"github.com/nerrad567/noolite-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/noolite-core/internal/transceiver"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	// defaultConfigPath is used when neither --config nor NOOLITE_CONFIG is set.
	defaultConfigPath = "configs/config.yaml"

	// configEnvVar overrides the default configuration path.
	configEnvVar = "NOOLITE_CONFIG"

	// statsInterval is how often gateway_stats points are written to InfluxDB.
	statsInterval = time.Minute

	// startupCheckTimeout bounds the health check run before serving.
	startupCheckTimeout = 5 * time.Second
)

func main() {
	// Cancel on Ctrl+C and SIGTERM for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options holds the parsed command line.
type options struct {
	configPath  string
	showVersion bool
	migrateDown bool
}

// parseFlags parses args into options.
func parseFlags(args []string) (options, error) {
	var opts options

	fs := pflag.NewFlagSet("noolite", pflag.ContinueOnError)
	fs.StringVarP(&opts.configPath, "config", "c", "", "path to config.yaml (default $"+configEnvVar+" or "+defaultConfigPath+")")
	fs.BoolVarP(&opts.showVersion, "version", "v", false, "print version and exit")
	fs.BoolVar(&opts.migrateDown, "migrate-down", false, "roll back the most recent database migration and exit")

	if err := fs.Parse(args); err != nil {
		return options{}, fmt.Errorf("parsing flags: %w", err)
	}
	return opts, nil
}

// run is the actual application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context, args []string) error { //nolint:gocognit,gocyclo // linear startup sequence
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	if opts.showVersion {
		fmt.Printf("noolite %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting nooLite gateway",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath(opts.configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// The SQLite database always holds the audit log, and the bulb records
	// when store.driver is sqlite.
	db, err := database.Open(database.ConfigFrom(cfg.Database))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if opts.migrateDown {
		if downErr := db.MigrateDown(ctx); downErr != nil {
			return fmt.Errorf("rolling back migration: %w", downErr)
		}
		log.Info("rolled back latest database migration")
		return nil
	}

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	checks := map[string]api.HealthChecker{"database": db}

	// Bulb store
	store, storeCheck, closeStore, err := openStore(cfg, db)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeStore(); closeErr != nil {
			log.Error("error closing store", "error", closeErr)
		}
	}()
	checks["store"] = storeCheck
	log.Info("bulb store ready", "driver", cfg.Store.Driver)

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		checks["mqtt"] = mqttClient
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// RF transmitter
	txOpts := transceiver.Options{Logger: log.Component("transceiver")}
	if mqttClient != nil {
		txOpts.Publisher = mqttClient
		txOpts.Topics = mqttClient.Topics()
	}
	tx, err := transceiver.New(cfg.Transceiver, txOpts)
	if err != nil {
		return fmt.Errorf("creating transceiver: %w", err)
	}
	log.Info("transceiver ready", "driver", cfg.Transceiver.Driver)

	registry := bulb.NewRegistry(store, tx)
	registry.SetLogger(log.Component("registry"))

	stats, err := registry.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("loading bulb registry: %w", err)
	}
	log.Info("bulb registry initialised",
		"bulbs", stats.Total,
		"free_channels", stats.FreeChannels,
		"skipped", stats.Skipped,
	)

	// Audit log
	auditRepo := audit.NewSQLiteRepository(db.DB)
	registry.Subscribe(audit.NewRecorder(auditRepo, log.Component("audit")))

	// WebSocket hub, subscribed before any command can arrive.
	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	go hub.Run(ctx)
	registry.Subscribe(hub)

	// MQTT state publisher and command bridge
	if mqttClient != nil {
		stop, bridgeErr := startBridge(ctx, mqttClient, registry, log)
		if bridgeErr != nil {
			return bridgeErr
		}
		defer stop()
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		registry.Subscribe(influxClient)
		checks["influxdb"] = influxClient
		go reportStats(ctx, registry, influxClient, cfg.Site.ID, statsInterval, log)
	} else {
		log.Info("InfluxDB disabled")
	}

	// HTTP API
	deps := api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Logger:      log.Component("api"),
		Registry:    registry,
		AuditRepo:   auditRepo,
		DB:          db.DB,
		HealthCheck: checks,
		ExternalHub: hub,
		Version:     version,
	}
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	apiServer, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, startupCheckTimeout)
	err = healthCheck(checkCtx, checks)
	cancel()
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred closes run in reverse order: API, InfluxDB, bridge, MQTT,
	// store, database.

	log.Info("nooLite gateway stopped")
	return nil
}

// getConfigPath returns the configuration file path: the --config flag,
// then NOOLITE_CONFIG, then defaultConfigPath.
func getConfigPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if path := os.Getenv(configEnvVar); path != "" {
		return path
	}
	return defaultConfigPath
}

// openStore builds the bulb store selected by store.driver. The returned
// close func releases whatever the store opened; the sqlite store shares
// db and closes nothing.
func openStore(cfg *config.Config, db *database.DB) (bulb.Store, api.HealthChecker, func() error, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		store := bulb.NewRedisStore(client, bulb.RedisKeys{
			Hash:     cfg.Store.Redis.HashKey,
			Counter:  cfg.Store.Redis.CounterKey,
			Channels: cfg.Store.Redis.ChannelKey,
		})
		return store, store, client.Close, nil
	case config.StoreDriverSQLite:
		return bulb.NewSQLiteStore(db.DB), db, func() error { return nil }, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// startBridge wires registry events to retained MQTT state and starts the
// command bridge. The returned func stops the bridge.
func startBridge(ctx context.Context, client *mqtt.Client, registry *bulb.Registry, log *logging.Logger) (func(), error) {
	topics := client.Topics()

	publisher := bridge.NewPublisher(client, topics, log.Component("mqtt_state"))
	registry.Subscribe(publisher)

	// Republish retained state after every reconnect.
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
		if err := publisher.Sync(ctx, registry); err != nil {
			log.Warn("republishing bulb state failed", "error", err)
		}
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	if err := publisher.Sync(ctx, registry); err != nil {
		log.Warn("publishing bulb state failed", "error", err)
	}

	b, err := bridge.New(bridge.Options{
		Client:   client,
		Registry: registry,
		Topics:   topics,
		Logger:   log.Component("mqtt_bridge"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating MQTT bridge: %w", err)
	}
	if err := b.Start(); err != nil {
		return nil, fmt.Errorf("starting MQTT bridge: %w", err)
	}
	log.Info("MQTT bridge started", "commands", topics.AllCommands())

	return func() {
		log.Info("stopping MQTT bridge")
		b.Stop()
	}, nil
}

// statsWriter is the subset of *influxdb.Client used by reportStats.
type statsWriter interface {
	WritePoint(measurement string, tags map[string]string, fields map[string]any)
}

// reportStats writes a gateway_stats point every interval until ctx is done.
func reportStats(ctx context.Context, registry *bulb.Registry, w statsWriter, site string, interval time.Duration, log *logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			writeStats(ctx, registry, w, site, log)
		}
	}
}

func writeStats(ctx context.Context, registry *bulb.Registry, w statsWriter, site string, log *logging.Logger) {
	stats, err := registry.GetStats(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Warn("collecting gateway stats failed", "error", err)
		}
		return
	}
	w.WritePoint("gateway_stats",
		map[string]string{"site": site},
		map[string]any{
			"total":         stats.Total,
			"on":            stats.On,
			"off":           stats.Off,
			"binded":        stats.Binded,
			"free_channels": stats.FreeChannels,
			"skipped":       stats.Skipped,
		},
	)
}

// healthCheck verifies every infrastructure component, in name order.
// It returns the first failure.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := checks[name].HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
