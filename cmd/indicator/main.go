// Indicator Core - SenseCAP-style light mode and water level indicator
//
// This is the main entry point for the indicator. It wires the mode
// controller to its two bridges:
//   - the network bridge (MQTT light state out, water level in)
//   - the presentation bridge (browser wall panel over WebSocket)
//
// and runs the poll/render loop that owns touch input and redraws.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/indicator-core/migrations"

	"github.com/nerrad567/indicator-core/internal/api"
	"github.com/nerrad567/indicator-core/internal/auth"
	"github.com/nerrad567/indicator-core/internal/bridges/network"
	"github.com/nerrad567/indicator-core/internal/bridges/presentation"
	"github.com/nerrad567/indicator-core/internal/device"
	"github.com/nerrad567/indicator-core/internal/discovery"
	"github.com/nerrad567/indicator-core/internal/infrastructure/config"
	"github.com/nerrad567/indicator-core/internal/infrastructure/database"
	"github.com/nerrad567/indicator-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/indicator-core/internal/infrastructure/logging"
	"github.com/nerrad567/indicator-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/indicator-core/internal/loop"
	"github.com/nerrad567/indicator-core/internal/mode"
	"github.com/nerrad567/indicator-core/internal/simulator"
	"github.com/nerrad567/indicator-core/internal/telemetry"
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

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	if len(os.Args) > 1 {
		err = runCommand(ctx, os.Args[1:], os.Stdin, os.Stdout)
	} else {
		err = run(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting indicator",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version).With("device_id", cfg.Device.ID)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	thresholds := mode.Thresholds{
		Low:      cfg.Water.LowThreshold,
		Critical: cfg.Water.CriticalThreshold,
	}

	// Open database (optional audit trail)
	var db *database.DB
	var history *device.SQLiteStateHistoryRepository
	if cfg.Database.Enabled {
		db, err = database.Open(cfg.Database)
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

		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database migrations complete")

		history = device.NewSQLiteStateHistoryRepository(db.DB)
	} else {
		log.Info("state history disabled")
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
	} else {
		log.Info("InfluxDB disabled")
	}

	// Connect to MQTT broker. The indicator keeps working offline: modes
	// still switch and render, publishes are dropped.
	mqttClient := connectMQTT(cfg, log)
	var netClient network.MQTTClient
	if mqttClient != nil {
		netClient = mqttClient
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	}

	// Presentation: the WebSocket hub is the panel display when the API
	// runs; otherwise render commands are only logged.
	var hub *api.Hub
	var display presentation.Display
	if cfg.API.Enabled {
		hub = api.NewHub(cfg.WebSocket, log.With("component", "websocket"))
		display = hub
	} else {
		display = presentation.NewLogDisplay(log.With("component", "display"))
	}

	presenter, err := presentation.NewBridge(presentation.Options{
		Display:         display,
		Thresholds:      thresholds,
		RenderQueueSize: cfg.Display.RenderQueueSize,
		InputQueueSize:  cfg.Display.InputQueueSize,
		Logger:          log.With("component", "presentation"),
	})
	if err != nil {
		return fmt.Errorf("creating presentation bridge: %w", err)
	}

	netBridge := network.NewBridge(network.Options{
		MQTTClient:     netClient,
		Topics:         mqtt.NewTopics(cfg.MQTT.Topics),
		QoS:            byte(cfg.MQTT.QoS),
		QueueSize:      cfg.MQTT.PublishQueueSize,
		DeviceID:       cfg.Device.ID,
		Version:        version,
		HealthInterval: time.Duration(cfg.MQTT.HealthInterval) * time.Second,
		Logger:         log.With("component", "network"),
	})

	recorder := newRecorder(cfg, thresholds, history, influxClient, log)

	ctrl, err := mode.New(mode.Deps{
		Publisher:         netBridge,
		Renderer:          presenter,
		Observer:          recorder,
		DefaultWaterLevel: cfg.Device.DefaultWaterLevel,
	})
	if err != nil {
		return fmt.Errorf("creating mode controller: %w", err)
	}
	netBridge.Bind(ctrl)
	presenter.Bind(ctrl)

	g, gctx := errgroup.WithContext(ctx)

	if err := recorder.Start(gctx); err != nil {
		return fmt.Errorf("starting telemetry recorder: %w", err)
	}
	defer recorder.Stop()

	if err := netBridge.Start(gctx); err != nil {
		return fmt.Errorf("starting network bridge: %w", err)
	}
	defer netBridge.Stop()

	renderLoop, err := loop.New(loop.Config{
		TickInterval:   cfg.GetTickInterval(),
		StatusInterval: cfg.GetStatusInterval(),
		Presenter:      presenter,
		Status:         statusLine(netBridge, presenter, ctrl),
		Logger:         log.With("component", "loop"),
	})
	if err != nil {
		return fmt.Errorf("creating poll/render loop: %w", err)
	}
	g.Go(func() error { return renderLoop.Run(gctx) })

	if cfg.API.Enabled {
		srv, err := startAPI(gctx, cfg, log, apiParts{
			hub:       hub,
			ctrl:      ctrl,
			presenter: presenter,
			network:   netBridge,
			loop:      renderLoop,
			recorder:  recorder,
			history:   history,
			db:        db,
		}, thresholds)
		if err != nil {
			return err
		}
		g.Go(func() error {
			hub.Run(gctx)
			return nil
		})
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	if cfg.Discovery.Enabled && cfg.API.Enabled {
		adv, err := discovery.NewAdvertiser(discovery.Config{
			DeviceID:  cfg.Device.ID,
			Version:   version,
			Service:   cfg.Discovery.Service,
			Domain:    cfg.Discovery.Domain,
			Port:      cfg.API.Port,
			PanelPath: "/panel/",
		}, log.With("component", "discovery"))
		if err == nil {
			err = adv.Start()
		}
		if err != nil {
			log.Warn("mdns advertisement unavailable", "error", err)
		} else {
			defer adv.Stop()
		}
	}

	if cfg.Simulator.Enabled {
		sim, err := simulator.New(simulator.Config{
			Sink:     netBridge,
			Topic:    cfg.MQTT.Topics.WaterLevel,
			Interval: time.Duration(cfg.Simulator.Interval) * time.Second,
			Logger:   log.With("component", "simulator"),
		})
		if err != nil {
			return fmt.Errorf("creating simulator: %w", err)
		}
		g.Go(func() error { return sim.Run(gctx) })
		log.Info("water level simulator started", "interval", cfg.Simulator.Interval)
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient, log); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// loadConfig loads the configuration file named by INDICATOR_CONFIG, or
// the default path. Without INDICATOR_CONFIG a missing default file falls
// back to the built-in defaults.
func loadConfig() (*config.Config, string, error) {
	path := os.Getenv("INDICATOR_CONFIG")
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}

	if !explicit {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			cfg, err := config.Default()
			if err != nil {
				return nil, "", fmt.Errorf("loading default config: %w", err)
			}
			return cfg, "(built-in defaults)", nil
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}

// connectMQTT connects to the broker, or returns nil to run offline. A
// broker that does not answer in time is retried in the background; the
// client is returned anyway so subscriptions go out once it connects.
func connectMQTT(cfg *config.Config, log *logging.Logger) *mqtt.Client {
	if !cfg.MQTT.Enabled {
		log.Info("MQTT disabled, running offline")
		return nil
	}

	broker := fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port)
	client, err := mqtt.Connect(cfg.MQTT)
	switch {
	case err == nil:
		log.Info("MQTT connected", "broker", broker, "client_id", cfg.MQTT.Broker.ClientID)
	case errors.Is(err, mqtt.ErrConnectPending):
		log.Warn("MQTT broker not reachable, retrying in background", "broker", broker, "error", err)
	default:
		log.Warn("MQTT unavailable, running offline", "broker", broker, "error", err)
		return nil
	}

	client.SetLogger(log.With("component", "mqtt"))
	client.SetOnConnect(func() {
		log.Info("MQTT connected", "broker", broker)
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	return client
}

// newRecorder builds the telemetry recorder. Disabled sinks are left as
// nil interfaces.
func newRecorder(cfg *config.Config, thresholds mode.Thresholds, history *device.SQLiteStateHistoryRepository, influxClient *influxdb.Client, log *logging.Logger) *telemetry.Recorder {
	rc := telemetry.Config{
		DeviceID:   cfg.Device.ID,
		Thresholds: thresholds,
		Retention:  time.Duration(cfg.Database.HistoryRetentionDays) * 24 * time.Hour,
		Logger:     log.With("component", "telemetry"),
	}
	if history != nil {
		rc.History = history
	}
	if influxClient != nil {
		rc.Points = influxClient
	}
	return telemetry.NewRecorder(rc)
}

// statusLine reports network and display health for the loop's periodic
// status log.
func statusLine(net *network.Bridge, presenter *presentation.Bridge, ctrl *mode.Controller) loop.StatusFunc {
	return func() []any {
		ns := net.Status()
		ps := presenter.Status()
		st := ctrl.Snapshot()
		return []any{
			"mqtt_connected", ns.Connected,
			"mqtt_queued", ns.Queued,
			"display_failed", ps.Failed,
			"bright_on", st.BrightOn,
			"relax_on", st.RelaxOn,
			"water_level", st.WaterLevel,
		}
	}
}

type apiParts struct {
	hub       *api.Hub
	ctrl      *mode.Controller
	presenter *presentation.Bridge
	network   *network.Bridge
	loop      *loop.Loop
	recorder  *telemetry.Recorder
	history   *device.SQLiteStateHistoryRepository
	db        *database.DB
}

// startAPI creates and starts the HTTP API server.
func startAPI(ctx context.Context, cfg *config.Config, log *logging.Logger, parts apiParts, thresholds mode.Thresholds) (*api.Server, error) {
	authn, err := auth.NewAuthenticator(auth.AuthenticatorConfig{
		DeviceID:     cfg.Device.ID,
		Secret:       cfg.Security.JWT.Secret,
		PasswordHash: cfg.Security.OperatorPasswordHash,
		AccessTTL:    time.Duration(cfg.Security.JWT.AccessTokenTTL) * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("creating authenticator: %w", err)
	}
	if cfg.Security.OperatorPasswordHash == "" {
		log.Warn("operator login disabled, no password hash configured")
	}

	deps := api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Logger:     log.With("component", "api"),
		DeviceID:   cfg.Device.ID,
		Version:    version,
		Auth:       authn,
		State:      parts.ctrl,
		Input:      parts.presenter,
		Thresholds: thresholds,
		Hub:        parts.hub,
		Metrics: api.MetricsSources{
			Network:   parts.network.Status,
			Display:   parts.presenter.Status,
			Loop:      parts.loop.Stats,
			Telemetry: parts.recorder.Stats,
		},
	}
	if parts.history != nil {
		deps.History = parts.history
	}
	if parts.db != nil {
		deps.DB = parts.db
	}

	srv, err := api.New(deps)
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting API server: %w", err)
	}
	return srv, nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check (nil if disabled)
//   - mqttClient: MQTT client to check (nil when offline); a failure only warns
//   - influxClient: InfluxDB client to check (nil if disabled)
//   - log: Logger for the MQTT warning
//
// Returns:
//   - error: First database or InfluxDB failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, log *logging.Logger) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	// The indicator runs without a broker, so a lost connection only warns.
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			log.Warn("MQTT not connected, continuing degraded", "error", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// runCommand handles the maintenance subcommands.
func runCommand(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	switch args[0] {
	case "version":
		fmt.Fprintf(stdout, "indicator %s (commit %s, built %s)\n", version, commit, date)
		return nil

	case "hash-password":
		password, err := readPassword(args[1:], stdin)
		if err != nil {
			return err
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return fmt.Errorf("hashing password: %w", err)
		}
		fmt.Fprintln(stdout, hash)
		return nil

	case "panel-token":
		if len(args) < 2 {
			return fmt.Errorf("usage: indicator panel-token <panel-id>")
		}
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Security.JWT.Secret == "" {
			return fmt.Errorf("security.jwt.secret is not configured")
		}
		issued, err := auth.GeneratePanelToken(args[1], cfg.Security.JWT.Secret,
			time.Duration(cfg.Security.JWT.PanelTokenTTL)*time.Minute)
		if err != nil {
			return fmt.Errorf("issuing panel token: %w", err)
		}
		fmt.Fprintln(stdout, issued.Token)
		return nil

	case "discover":
		peers, err := discovery.Browse(ctx, "", 0)
		if err != nil {
			return fmt.Errorf("browsing for indicators: %w", err)
		}
		for _, p := range peers {
			fmt.Fprintf(stdout, "%s\t%s\n", p.DeviceID, p.URL())
		}
		return nil

	default:
		return fmt.Errorf("unknown command %q (want version, hash-password, panel-token or discover)", args[0])
	}
}

// readPassword takes the password from the argument list or the first
// line of stdin.
func readPassword(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("password is required")
	}
	return password, nil
}
