// wearsync relays sensor readings and the fall-detected flag from a
// wearable to its paired handheld over MQTT.
//
// Local producers publish raw samples on the device's capture topics; wearsync
// rate limits them, queues admitted sends on a bounded worker pool and puts
// them on the pair's sync topics. Outcomes are optionally journaled to SQLite
// and exported to InfluxDB.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/wearsync/internal/capture"
	"github.com/nerrad567/wearsync/internal/dispatch"
	"github.com/nerrad567/wearsync/internal/infrastructure/config"
	"github.com/nerrad567/wearsync/internal/infrastructure/database"
	"github.com/nerrad567/wearsync/internal/infrastructure/influxdb"
	"github.com/nerrad567/wearsync/internal/infrastructure/logging"
	"github.com/nerrad567/wearsync/internal/infrastructure/mqtt"
	"github.com/nerrad567/wearsync/internal/relay"
	"github.com/nerrad567/wearsync/internal/telemetry"
	"github.com/nerrad567/wearsync/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the pipeline and blocks until ctx is cancelled.
// Teardown runs through defers in reverse order of construction.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting wearsync",
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
	log = log.With("device_id", cfg.Device.ID, "pair_id", cfg.Device.PairID)

	var recorders telemetry.Multi

	// Delivery journal (optional)
	var (
		db      *database.DB
		journal *telemetry.Journal
	)
	if cfg.Journal.Enabled {
		db, err = openJournal(ctx, cfg.Journal, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing journal")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing journal", "error", closeErr)
			}
		}()
		journal = telemetry.NewJournal(db)
		recorders = append(recorders, journal)
		logLastOutcome(ctx, journal, log)
	} else {
		log.Info("delivery journal disabled")
	}

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
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
		recorders = append(recorders, telemetry.NewInfluxRecorder(influxClient, cfg.Device.ID))
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	if err := healthCheck(ctx, db, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	// Sync channel. The handshake runs in the background; sends made before
	// it finishes wait for it in the connection guard.
	channel := mqtt.New(cfg.MQTT, cfg.Device)
	channel.SetLogger(log)
	channel.SetOnConnect(func() {
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	})
	channel.SetOnDisconnect(func(err error) {
		log.Warn("MQTT connection lost", "error", err)
	})
	channel.Connect()
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := channel.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()

	pool := dispatch.New(dispatch.Config{
		Workers:   cfg.Sync.Workers,
		QueueSize: cfg.Sync.QueueSize,
	}, log)
	pool.Start()

	client := relay.New(relay.Options{
		Channel:    channel,
		Dispatcher: pool,
		Recorder:   recorders,
		Logger:     log,
		Config:     cfg.Sync,
	})
	// Registered after the channel so it runs first: queued sends drain
	// while the connection is still open.
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Sync.DrainTimeout())
		defer cancel()

		stats := pool.Stats()
		log.Info("draining sends", "queued", stats.Queued)
		if closeErr := client.Close(drainCtx); closeErr != nil {
			log.Warn("send drain incomplete", "error", closeErr)
		}
		stats = pool.Stats()
		log.Info("send pipeline stopped",
			"submitted", stats.Submitted,
			"completed", stats.Completed,
			"rejected", stats.Rejected,
			"panicked", stats.Panicked,
		)
		// drainCtx may have expired; the journal closes after this defer.
		if journal != nil {
			logJournalSummary(context.Background(), journal, log)
		}
	}()

	if cfg.Capture.Enabled {
		ingress := capture.New(client, cfg.Device.ID, log)
		if err := ingress.Register(channel, byte(cfg.Capture.QoS)); err != nil { // #nosec G115 -- validated 0..2
			return fmt.Errorf("registering capture ingress: %w", err)
		}
		log.Info("capture ingress registered", "topic", mqtt.Topics{}.AllCapture(cfg.Device.ID))
	}

	log.Info("initialisation complete, waiting for shutdown signal",
		"active_filter", client.ActiveFilter(),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// openJournal opens and migrates the delivery journal and applies retention.
func openJournal(ctx context.Context, cfg config.JournalConfig, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("journal ready", "path", cfg.Path)

	if cfg.RetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -cfg.RetentionDays)
		pruned, err := telemetry.NewJournal(db).Prune(ctx, cutoff)
		if err != nil {
			log.Warn("journal prune failed", "error", err)
		} else if pruned > 0 {
			log.Info("journal pruned", "removed", pruned, "retention_days", cfg.RetentionDays)
		}
	}

	return db, nil
}

// logLastOutcome reports the newest journaled outcome from a previous run.
func logLastOutcome(ctx context.Context, journal *telemetry.Journal, log *logging.Logger) {
	recent, err := journal.Recent(ctx, 1)
	if err != nil {
		log.Warn("reading journal failed", "error", err)
		return
	}
	if len(recent) == 0 {
		log.Info("journal empty")
		return
	}
	last := recent[0]
	log.Info("last journaled outcome",
		"path", last.Path,
		"status", last.Status,
		"recorded_at", last.RecordedAt,
	)
}

// logJournalSummary logs the journal's outcome counts per status.
func logJournalSummary(ctx context.Context, journal *telemetry.Journal, log *logging.Logger) {
	counts, err := journal.CountByStatus(ctx)
	if err != nil {
		log.Warn("journal summary failed", "error", err)
		return
	}
	args := make([]any, 0, 2*len(counts))
	for status, n := range counts {
		args = append(args, string(status), n)
	}
	log.Info("journal summary", args...)
}

// getConfigPath returns WEARSYNC_CONFIG if set, otherwise the default path.
func getConfigPath() string {
	if path := os.Getenv("WEARSYNC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the optional storage backends. The MQTT channel is
// not checked: it connects in the background and sends tolerate its absence.
func healthCheck(ctx context.Context, db *database.DB, influxClient *influxdb.Client) error {
	var errs []error
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("journal: %w", err))
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("influxdb: %w", err))
		}
	}
	return errors.Join(errs...)
}
