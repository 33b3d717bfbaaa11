package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-tvbridge/internal/api"
	"github.com/nerrad567/gray-logic-tvbridge/internal/bridges/tv"
	"github.com/nerrad567/gray-logic-tvbridge/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-tvbridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-tvbridge/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-tvbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-tvbridge/internal/remote"
)

// healthCheckTimeout bounds the startup connectivity checks.
const healthCheckTimeout = 10 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge service (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

// runServe is the long-running service. It returns nil on a clean shutdown
// after ctx is cancelled.
func runServe(ctx context.Context, configPath string) error {
	a, err := openApp(ctx, configPath, nil)
	if err != nil {
		return err
	}
	defer func() {
		a.log.Info("closing database")
		a.close()
	}()

	log := a.log
	cfg := a.cfg
	log.Info("starting Gray Logic TV bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
		"device", cfg.Device.Key,
		"host", cfg.Device.Host,
	)

	// PINs arrive over MQTT or HTTP while an open waits for them
	pins := remote.NewChannelPinProvider()
	tvRemote, err := a.newRemote(pins)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing control channel")
		if closeErr := tvRemote.Close(); closeErr != nil {
			log.Error("error closing control channel", "error", closeErr)
		}
	}()

	m := metrics.New()

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
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	if err := healthCheck(ctx, a.db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	if mqttClient != nil {
		bridge, bridgeErr := startBridge(ctx, a, tvRemote, pins, mqttClient, influxClient, m)
		if bridgeErr != nil {
			return bridgeErr
		}
		defer func() {
			log.Info("stopping TV bridge")
			bridge.Stop()
		}()
	}

	if cfg.API.Enabled {
		deps := api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Security: cfg.Security,
			Logger:   log,
			Remote:   tvRemote,
			Pins:     pins,
			Metrics:  m,
			Version:  version,
		}
		if mqttClient != nil {
			deps.MQTT = mqttClient
		}
		server, apiErr := api.New(deps)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error stopping API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse: API, bridge, InfluxDB, MQTT, remote, database
	return nil
}

// startBridge connects the remote to MQTT.
func startBridge(ctx context.Context, a *app, r *remote.Remote, pins *remote.ChannelPinProvider,
	mqttClient *mqtt.Client, influxClient *influxdb.Client, m *metrics.Metrics) (*tv.Bridge, error) {
	opts := tv.BridgeOptions{
		DeviceKey:     a.cfg.Device.Key,
		Remote:        r,
		MQTTClient:    mqttClient,
		Pins:          pins,
		Metrics:       m,
		Logger:        a.log,
		Version:       version,
		StateInterval: a.cfg.Remote.StateInterval,
	}
	if influxClient != nil {
		opts.Telemetry = influxClient
	}

	bridge, err := tv.NewBridge(opts)
	if err != nil {
		return nil, fmt.Errorf("creating TV bridge: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		bridge.Stop()
		return nil, fmt.Errorf("starting TV bridge: %w", err)
	}
	a.log.Info("TV bridge started", "device", a.cfg.Device.Key)
	return bridge, nil
}

// healthCheck verifies infrastructure connections. mqttClient and
// influxClient may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	var errs []error
	if err := db.HealthCheck(ctx); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mqtt: %w", err))
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("influxdb: %w", err))
		}
	}
	return errors.Join(errs...)
}
