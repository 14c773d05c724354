// Door Sentinel - Two-Factor Biometric Door Access
//
// This is the main entry point for the Door Sentinel service. Both
// biometric factors (face and fingerprint) must resolve to the same
// active user before the door opens. The service runs fully offline;
// MQTT announcements and InfluxDB metrics are optional integrations.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/door-sentinel/migrations"

	"github.com/nerrad567/door-sentinel/internal/api"
	"github.com/nerrad567/door-sentinel/internal/authflow"
	"github.com/nerrad567/door-sentinel/internal/door"
	"github.com/nerrad567/door-sentinel/internal/facematch"
	"github.com/nerrad567/door-sentinel/internal/fingerprint"
	"github.com/nerrad567/door-sentinel/internal/identity"
	"github.com/nerrad567/door-sentinel/internal/infrastructure/config"
	"github.com/nerrad567/door-sentinel/internal/infrastructure/database"
	"github.com/nerrad567/door-sentinel/internal/infrastructure/influxdb"
	"github.com/nerrad567/door-sentinel/internal/infrastructure/logging"
	"github.com/nerrad567/door-sentinel/internal/infrastructure/mqtt"
	"github.com/nerrad567/door-sentinel/internal/infrastructure/tsdb"
	"github.com/nerrad567/door-sentinel/internal/notify"
	"github.com/nerrad567/door-sentinel/internal/process"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// healthInterval is how often sensor health is probed and announced.
const healthInterval = 30 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Admin subcommands (enrollment, user management) run once and
	// exit; anything else starts the service loop.
	if len(os.Args) > 1 && isAdminCommand(os.Args[1]) {
		if err := runAdmin(ctx, os.Args[1], os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Door Sentinel",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
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

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
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

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Identity stores
	users := identity.NewUserStore(db.DB)
	faces := identity.NewFaceStore(db.DB)
	slots := identity.NewSlotStore(db.DB)
	events := identity.NewEventStore(db.DB)

	// Serial adapter subprocess (optional, device mode only)
	if cfg.Fingerprint.Mode == "device" && cfg.Fingerprint.Adapter.Binary != "" {
		adapter, adapterErr := startAdapter(ctx, cfg, log)
		if adapterErr != nil {
			return fmt.Errorf("starting serial adapter: %w", adapterErr)
		}
		defer func() {
			log.Info("stopping serial adapter")
			if stopErr := adapter.Stop(); stopErr != nil {
				log.Error("error stopping serial adapter", "error", stopErr)
			}
		}()
	}

	// Fingerprint sensor (hardware or simulator)
	sensor, err := buildSensor(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("connecting fingerprint sensor: %w", err)
	}
	defer func() {
		log.Info("closing fingerprint sensor")
		if closeErr := sensor.Close(); closeErr != nil {
			log.Error("error closing fingerprint sensor", "error", closeErr)
		}
	}()

	// Face index with a warm refresh; a cold cache is not fatal, the
	// index retries on its TTL.
	index := facematch.NewIndex(faces, cfg.Face.Tolerance, cfg.Face.CacheTTL)
	index.SetLogger(log)
	if refreshErr := index.Refresh(ctx); refreshErr != nil {
		log.Warn("face index warm refresh failed", "error", refreshErr)
	}

	// Frame capture and face pipeline. Only the simulated frame source
	// ships; real capture devices sit behind an external feeder process
	// that pushes frames into the buffer.
	buffer := facematch.NewFrameBuffer()
	source := facematch.NewSimSource(cfg.Camera.FrameInterval)
	defer source.Close() //nolint:errcheck // simulator close is infallible
	if cfg.Camera.Device != "" {
		log.Warn("camera device capture is not built in, using simulated source",
			"device", cfg.Camera.Device)
	}
	go func() {
		if pumpErr := buffer.Pump(ctx, source); pumpErr != nil {
			log.Error("frame pump stopped", "error", pumpErr)
		}
	}()

	detector := facematch.NewSimDetector()
	pipeline := facematch.NewPipeline(buffer, detector, index)
	pipeline.SetLogger(log)

	// Door controller and actuator
	actuator, err := buildActuator(cfg)
	if err != nil {
		return fmt.Errorf("configuring door actuator: %w", err)
	}
	controller := door.NewController(actuator, cfg.Door.UnlockDuration, log)

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
		mqttClient.SetLogger(log)
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

	// Connect to VictoriaMetrics (optional, alternative to InfluxDB)
	var tsdbClient *tsdb.Client
	if cfg.TSDB.Enabled {
		tsdbClient, err = tsdb.Connect(ctx, cfg.TSDB)
		if err != nil {
			return fmt.Errorf("connecting to VictoriaMetrics: %w", err)
		}
		defer func() {
			log.Info("closing VictoriaMetrics connection")
			if closeErr := tsdbClient.Close(); closeErr != nil {
				log.Error("error closing VictoriaMetrics", "error", closeErr)
			}
		}()
		tsdbClient.SetOnError(func(err error) {
			log.Error("VictoriaMetrics write error", "error", err)
		})
		log.Info("VictoriaMetrics connected", "url", cfg.TSDB.URL)
	}

	// Notifier fans session and door changes out to MQTT and the
	// metrics backend. All sinks are optional; with none, the notifier
	// is inert.
	var broker notify.Broker
	if mqttClient != nil {
		broker = mqttClient
	}
	var metrics notify.Metrics
	switch {
	case influxClient != nil:
		metrics = influxClient
	case tsdbClient != nil:
		metrics = tsdbClient
	}
	notifier := notify.NewNotifier(broker, metrics, byte(cfg.MQTT.QoS))
	notifier.SetLogger(log)
	controller.OnChange(notifier.DoorChanged)

	// Authentication engine
	engine := authflow.NewEngine(pipeline, sensor, users, slots, events, controller, authflow.Config{
		PollInterval:   cfg.Auth.PollInterval,
		SessionTimeout: cfg.Auth.SessionTimeout,
		CaptureWindow:  cfg.Fingerprint.CaptureWindow,
		GrantDwell:     cfg.Auth.GrantDwell,
		TimeoutDwell:   cfg.Auth.TimeoutDwell,
		UnlockDuration: cfg.Door.UnlockDuration,
	})
	engine.SetLogger(log)
	engine.OnChange(notifier.AuthChanged)

	// Remote commands can only close the door, never open it
	if mqttClient != nil {
		if cmdErr := notifier.ListenCommands(controller, engine); cmdErr != nil {
			return fmt.Errorf("subscribing to door commands: %w", cmdErr)
		}
	}

	go func() {
		if runErr := engine.Run(ctx); runErr != nil {
			log.Error("authentication engine stopped", "error", runErr)
		}
	}()

	// Periodic door status broadcast
	monitor := door.NewMonitor(controller, cfg.Door.MonitorInterval, notifier.DoorChanged, log)
	go monitor.Run(ctx)

	// Periodic sensor health announcements
	go healthLoop(ctx, sensor, db, notifier)

	// HTTP API
	apiServer, err := api.New(api.Deps{
		Config:  cfg.API,
		Logger:  log,
		Auth:    engine,
		Door:    controller,
		Events:  events,
		Checks:  buildHealthChecks(db, sensor, mqttClient, influxClient, tsdbClient),
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, sensor, mqttClient, influxClient, tsdbClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Fingerprint sensor
	// 5. Database

	log.Info("Door Sentinel stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses DOORSENTINEL_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DOORSENTINEL_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// startAdapter launches the supervised serial adapter subprocess that
// bridges the sensor's UART to the configured socket address.
func startAdapter(ctx context.Context, cfg *config.Config, log *logging.Logger) (*process.Manager, error) {
	adapterCfg := process.DefaultConfig("serial-adapter", cfg.Fingerprint.Adapter.Binary, cfg.Fingerprint.Adapter.Args)
	if cfg.Fingerprint.Adapter.RestartDelay > 0 {
		adapterCfg.RestartDelay = cfg.Fingerprint.Adapter.RestartDelay
	}
	if cfg.Fingerprint.Adapter.MaxRestarts > 0 {
		adapterCfg.MaxRestartAttempts = cfg.Fingerprint.Adapter.MaxRestarts
	}

	mgr := process.NewManager(adapterCfg)
	mgr.SetLogger(log)

	if err := mgr.Start(ctx); err != nil {
		return nil, err
	}
	log.Info("serial adapter started",
		"binary", cfg.Fingerprint.Adapter.Binary,
		"pid", mgr.PID(),
	)
	return mgr, nil
}

// buildSensor creates the fingerprint sensor backend selected by config.
func buildSensor(ctx context.Context, cfg *config.Config, log *logging.Logger) (fingerprint.Sensor, error) {
	switch cfg.Fingerprint.Mode {
	case "device":
		driver, err := fingerprint.Connect(ctx, fingerprint.DriverConfig{
			Connection: cfg.Fingerprint.Address,
			Password:   cfg.Fingerprint.Password,
			OpTimeout:  cfg.Fingerprint.OpTimeout,
		})
		if err != nil {
			return nil, err
		}
		driver.SetLogger(log)
		log.Info("fingerprint sensor connected", "address", cfg.Fingerprint.Address)
		return fingerprint.NewDeviceSensor(driver), nil

	case "sim", "":
		log.Info("using simulated fingerprint sensor",
			"accept_rate", cfg.Fingerprint.SimAcceptRate)
		return fingerprint.NewSimSensor(
			fingerprint.WithAcceptRate(cfg.Fingerprint.SimAcceptRate),
		), nil

	default:
		return nil, fmt.Errorf("unknown fingerprint mode %q", cfg.Fingerprint.Mode)
	}
}

// buildActuator creates the lock actuator backend selected by config.
func buildActuator(cfg *config.Config) (door.Actuator, error) {
	switch cfg.Door.Mode {
	case "gpio":
		return door.NewGPIOActuator(cfg.Door.GPIOPath), nil
	case "sim", "":
		return door.NewSimActuator(), nil
	default:
		return nil, fmt.Errorf("unknown door mode %q", cfg.Door.Mode)
	}
}

// buildHealthChecks assembles the named dependency probes for /healthz.
// Optional components are only probed when connected.
func buildHealthChecks(db *database.DB, sensor fingerprint.Sensor, mqttClient *mqtt.Client, influxClient *influxdb.Client, tsdbClient *tsdb.Client) []api.Check {
	checks := []api.Check{
		{Name: "database", Checker: db},
		{Name: "fingerprint", Checker: sensor},
	}
	if mqttClient != nil {
		checks = append(checks, api.Check{Name: "mqtt", Checker: mqttClient})
	}
	if influxClient != nil {
		checks = append(checks, api.Check{Name: "influxdb", Checker: influxClient})
	}
	if tsdbClient != nil {
		checks = append(checks, api.Check{Name: "victoriametrics", Checker: tsdbClient})
	}
	return checks
}

// healthLoop periodically probes the sensor and database and announces
// the results on the sensor health topic.
func healthLoop(ctx context.Context, sensor fingerprint.Sensor, db *database.DB, notifier *notify.Notifier) {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			notifier.SensorHealth("fingerprint", sensor.HealthCheck(probeCtx))
			notifier.SensorHealth("database", db.HealthCheck(probeCtx))
			cancel()
		}
	}
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, sensor fingerprint.Sensor, mqttClient *mqtt.Client, influxClient *influxdb.Client, tsdbClient *tsdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := sensor.HealthCheck(ctx); err != nil {
		return fmt.Errorf("fingerprint sensor: %w", err)
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

	if tsdbClient != nil {
		if err := tsdbClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("victoriametrics: %w", err)
		}
	}

	return nil
}
