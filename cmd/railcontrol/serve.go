package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/railcontrol-core/internal/api"
	"github.com/nerrad567/railcontrol-core/internal/audit"
	"github.com/nerrad567/railcontrol-core/internal/auth"
	"github.com/nerrad567/railcontrol-core/internal/hardware"
	"github.com/nerrad567/railcontrol-core/internal/infrastructure/config"
	"github.com/nerrad567/railcontrol-core/internal/infrastructure/database"
	"github.com/nerrad567/railcontrol-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/railcontrol-core/internal/infrastructure/logging"
	"github.com/nerrad567/railcontrol-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/railcontrol-core/internal/layout"
	"github.com/nerrad567/railcontrol-core/internal/loco"
	"github.com/nerrad567/railcontrol-core/internal/manager"
	"github.com/nerrad567/railcontrol-core/internal/routing"
	"github.com/nerrad567/railcontrol-core/internal/storage"
	"github.com/nerrad567/railcontrol-core/internal/telemetry"
)

// shutdownTimeout bounds the final snapshot and connection teardown.
const shutdownTimeout = 10 * time.Second

// statePublisherQueue is the outbound buffer of the MQTT state publisher.
const statePublisherQueue = 512

// serveOptions are the flags of the serve command.
type serveOptions struct {
	ephemeral bool
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the railcontrol daemon",
		Long: `Runs the automode engine and the HTTP API until interrupted.

On an empty database the layout is imported from storage.layout_file.
With --ephemeral nothing is written to disk: the layout comes from the
seed file and is lost on exit.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), flags.getConfigPath(), *opts)
		},
	}

	cmd.Flags().BoolVar(&opts.ephemeral, "ephemeral", false, "keep all state in memory instead of the database")
	return cmd
}

// run is the daemon, separated from the command for testability.
// It returns nil on a clean shutdown after ctx is cancelled.
func run(ctx context.Context, configPath string, opts serveOptions) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting railcontrol",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Storage
	var (
		db   *database.DB
		repo storage.Repository
	)
	if opts.ephemeral {
		repo = storage.NewMemoryRepository()
		log.Warn("ephemeral mode, layout changes are not persisted")
	} else {
		db, err = openDatabase(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("database ready", "path", cfg.Database.Path)
		repo = storage.NewSQLiteRepository(db.DB)
	}

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
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
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
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Hardware controls
	var hwClient hardware.MQTTClient
	if mqttClient != nil {
		hwClient = &mqttHardwareAdapter{client: mqttClient}
	}
	hw, err := buildHardware(cfg.Hardware, hwClient, log)
	if err != nil {
		return fmt.Errorf("building hardware: %w", err)
	}
	defer func() {
		log.Info("closing hardware controls")
		if closeErr := hw.Close(); closeErr != nil {
			log.Error("error closing hardware", "error", closeErr)
		}
	}()
	log.Info("hardware ready", "controls", len(hw.Controls()))

	// Manager
	mgr, err := newManager(cfg.Automode, hw, repo, log)
	if err != nil {
		return err
	}
	if err := loadLayout(ctx, mgr, cfg.Storage.LayoutFile, log); err != nil {
		return err
	}

	if hwClient != nil && usesMQTT(cfg.Hardware) {
		if err := hardware.SubscribeFeedback(hwClient, mgr, log.Component("feedback")); err != nil {
			return fmt.Errorf("subscribing to feedback: %w", err)
		}
		log.Info("feedback subscription active", "topic", hardware.FeedbackSubscribeTopic())
	}

	// Telemetry observers
	if influxClient != nil {
		mgr.AddObserver(telemetry.NewRecorder(influxClient))
	}
	if mqttClient != nil {
		pub := telemetry.NewStatePublisher(mqttClient, statePublisherQueue, log.Component("telemetry"))
		mgr.AddObserver(pub)
		defer func() {
			if closeErr := pub.Close(); closeErr != nil {
				log.Error("error closing state publisher", "error", closeErr)
			}
		}()
	}

	users, err := buildDirectory(cfg.Security.Users)
	if err != nil {
		return fmt.Errorf("loading users: %w", err)
	}
	if users.Len() == 0 {
		log.Warn("no API users configured, login is disabled")
	}

	var journal audit.Repository
	if db != nil {
		journal = audit.NewSQLiteRepository(db.DB)
	}

	// The API hub registers as an observer, so it is created before Start.
	srv, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log.Component("api"),
		Manager:  mgr,
		Users:    users,
		MQTT:     mqttClient,
		DB:       db,
		Audit:    journal,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	mgr.Start()
	defer shutdownManager(mgr, log)

	// Scheduled snapshots
	if cfg.Storage.SnapshotSchedule != "" {
		sched := storage.NewScheduler(log.Component("scheduler"))
		if err := sched.Add(cfg.Storage.SnapshotSchedule, "snapshot", mgr.SaveAll); err != nil {
			return fmt.Errorf("scheduling snapshots: %w", err)
		}
		sched.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if stopErr := sched.Stop(stopCtx); stopErr != nil {
				log.Error("error stopping scheduler", "error", stopErr)
			}
		}()
		log.Info("snapshot schedule active", "schedule", cfg.Storage.SnapshotSchedule)
	}

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal",
		"tracks", len(mgr.Layout().Tracks()),
		"streets", len(mgr.Layout().Streets()),
		"locos", len(mgr.Locos()),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. API server and scheduler
	// 2. Manager (locos stopped, final snapshot)
	// 3. State publisher and hardware
	// 4. InfluxDB, MQTT, database

	return nil
}

// openDatabase opens SQLite and applies pending migrations.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(ctx, database.ConfigFrom(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// newManager builds an empty manager from the automode settings.
func newManager(cfg config.AutomodeConfig, hw hardware.Dispatcher, repo storage.Repository, log *logging.Logger) (*manager.Manager, error) {
	policy, err := routing.ParsePolicy(cfg.SelectionPolicy)
	if err != nil {
		return nil, fmt.Errorf("automode: %w", err)
	}
	mgr := manager.New(layout.New(hw), hw, repo, manager.Options{
		Loco: loco.Options{
			Tick:      cfg.TickInterval(),
			QueueSize: cfg.QueueSize,
		},
		TracksToReserve: cfg.TracksToReserve,
		Policy:          policy,
		StopTimeout:     cfg.StopTimeout,
	})
	mgr.SetLogger(log.Component("manager"))
	return mgr, nil
}

// loadLayout restores the stored layout. When storage holds no tracks and
// no locos, the seed file is imported and written back.
func loadLayout(ctx context.Context, mgr *manager.Manager, seedPath string, log *logging.Logger) error {
	if err := mgr.Load(ctx); err != nil {
		return fmt.Errorf("loading layout: %w", err)
	}
	if len(mgr.Layout().Tracks()) > 0 || len(mgr.Locos()) > 0 {
		return nil
	}
	if seedPath == "" {
		log.Warn("layout is empty and no layout file is configured")
		return nil
	}

	seed, err := manager.LoadSeed(seedPath)
	if err != nil {
		return err
	}
	if err := mgr.Import(seed); err != nil {
		return fmt.Errorf("importing %s: %w", seedPath, err)
	}
	if err := mgr.SaveAll(ctx); err != nil {
		return fmt.Errorf("saving imported layout: %w", err)
	}
	log.Info("layout imported", "path", seedPath)
	return nil
}

// buildDirectory converts the configured accounts.
func buildDirectory(users []config.UserConfig) (*auth.Directory, error) {
	list := make([]auth.User, 0, len(users))
	for _, u := range users {
		list = append(list, auth.User{
			Username:     u.Username,
			PasswordHash: u.PasswordHash,
			Role:         auth.Role(u.Role),
		})
	}
	return auth.NewDirectory(list)
}

// shutdownManager stops every loco and writes a final snapshot.
func shutdownManager(mgr *manager.Manager, log *logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info("stopping locomotives")
	if err := mgr.Close(ctx); err != nil {
		log.Warn("locomotives forced to stop", "error", err)
	}
	if err := mgr.SaveAll(ctx); err != nil {
		log.Error("final snapshot failed", "error", err)
		return
	}
	log.Info("final snapshot written")
}

// healthCheck verifies all infrastructure connections are healthy.
// Every argument may be nil when the component is disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
