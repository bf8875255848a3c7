// CloudLink Core - cloud device session manager
//
// This is the main entry point for CloudLink Core. It logs in to the cloud
// account, opens the push channel, discovers every bound device, and keeps
// the device directory current from push notifications until it receives a
// shutdown signal.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/cloudlink-core/internal/api"
	"github.com/nerrad567/cloudlink-core/internal/audit"
	"github.com/nerrad567/cloudlink-core/internal/cloud"
	"github.com/nerrad567/cloudlink-core/internal/device"
	"github.com/nerrad567/cloudlink-core/internal/infrastructure/config"
	"github.com/nerrad567/cloudlink-core/internal/infrastructure/database"
	"github.com/nerrad567/cloudlink-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/cloudlink-core/internal/infrastructure/logging"
	"github.com/nerrad567/cloudlink-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/cloudlink-core/internal/session"
	"github.com/nerrad567/cloudlink-core/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	// Default configuration file path
	defaultConfigPath = "configs/config.yaml"

	// logoutTimeout bounds the best-effort logout on shutdown.
	logoutTimeout = 5 * time.Second
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := runToken(os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting CloudLink Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
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

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", db.Path())

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	cloudClient := cloud.New(cfg.Cloud)
	cloudClient.SetLogger(log.Component("cloud"))

	creds, err := cloudClient.Login(ctx, cfg.Cloud.Email, cfg.Cloud.Password)
	if err != nil {
		return fmt.Errorf("logging in: %w", err)
	}
	defer func() {
		logoutCtx, cancel := context.WithTimeout(context.Background(), logoutTimeout)
		defer cancel()
		log.Info("logging out of cloud")
		if logoutErr := cloudClient.Logout(logoutCtx); logoutErr != nil {
			log.Warn("error logging out", "error", logoutErr)
		}
	}()

	mqttClient, err := mqtt.New(cfg.MQTT, mqtt.Credentials{
		UserID: creds.UserID,
		Key:    creds.Key,
		Domain: creds.MQTTDomain,
	})
	if err != nil {
		return fmt.Errorf("creating MQTT client: %w", err)
	}
	mqttClient.SetLogger(log.Component("mqtt"))

	factory := device.NewFactory()
	factory.SetLogger(log.Component("device"))

	mgr, err := session.New(cloudClient, mqttClient, factory)
	if err != nil {
		return fmt.Errorf("creating session manager: %w", err)
	}
	mgr.SetLogger(log.Component("session"))

	// Observers are registered before Start so they see the initial discovery.
	mgr.RegisterEventHandler(newAuditRecorder(cfg.Database, db.DB))

	checks := map[string]api.HealthChecker{"database": db}

	influxClient, err := connectInflux(cfg.InfluxDB, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		mgr.RegisterEventHandler(influxClient)
		checks["influxdb"] = influxClient
	}

	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	mgr.RegisterEventHandler(hub)

	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	defer func() {
		log.Info("stopping session")
		if stopErr := mgr.Stop(); stopErr != nil {
			log.Error("error stopping session", "error", stopErr)
		}
	}()
	stats := mgr.Stats()
	log.Info("session started",
		"devices", stats.TotalDevices,
		"online", stats.Online,
		"connection", mgr.ConnectionState(),
	)

	var srv *api.Server
	if cfg.API.Enabled {
		srv, err = api.New(api.Deps{
			Config:    cfg.API,
			WS:        cfg.WebSocket,
			Logger:    log.Component("api"),
			Manager:   mgr,
			AuditRepo: audit.NewSQLiteRepository(db.DB),
			Checks:    checks,
			Hub:       hub,
			Version:   version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		log.Info("API server listening", "address", srv.Addr())
	} else {
		log.Info("API server disabled")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		if srv == nil {
			return nil
		}
		return srv.Close()
	})

	log.Info("initialisation complete, waiting for shutdown signal")

	// Both goroutines return once ctx is cancelled.
	if err := g.Wait(); err != nil {
		log.Error("error during shutdown", "error", err)
	}

	log.Info("shutdown signal received, API stopped")

	// Deferred calls run in reverse order:
	// 1. Session (closes the push channel)
	// 2. InfluxDB (if enabled)
	// 3. Cloud logout
	// 4. Database

	log.Info("CloudLink Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses CLOUDLINK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CLOUDLINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// newAuditRecorder creates the audit trail observer. State-change rows are
// only written when database.audit_state_changes is set.
func newAuditRecorder(cfg config.DatabaseConfig, db *sql.DB) *audit.Recorder {
	rec := audit.NewRecorder(audit.NewSQLiteRepository(db))
	rec.RecordState = cfg.AuditStateChanges
	return rec
}

// connectInflux connects to InfluxDB when enabled. It returns nil, nil when
// InfluxDB is disabled.
func connectInflux(cfg config.InfluxDBConfig, log *logging.Logger) (*influxdb.Client, error) {
	if !cfg.Enabled {
		log.Info("InfluxDB disabled")
		return nil, nil
	}

	client, err := influxdb.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.URL,
		"org", cfg.Org,
		"bucket", cfg.Bucket,
	)
	return client, nil
}
