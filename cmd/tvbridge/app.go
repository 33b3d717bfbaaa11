package main

import (
	"context"
	"fmt"
	"io"

	"github.com/nerrad567/gray-logic-tvbridge/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-tvbridge/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-tvbridge/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-tvbridge/internal/remote"
)

// app holds what every command needs: configuration, a logger and the
// token database.
type app struct {
	cfg *config.Config
	log *logging.Logger
	db  *database.DB
}

// openApp loads configuration, builds the logger and opens the migrated
// database. A non-nil logOut overrides logging.output so one-shot commands
// keep stdout for their results.
func openApp(ctx context.Context, configPath string, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(cfg.Logging, version)
	if logOut != nil {
		log = logging.NewWithWriter(cfg.Logging, version, logOut)
	}
	log.Debug("configuration loaded", "path", configPath)

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &app{cfg: cfg, log: log, db: db}, nil
}

// close releases the database.
func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.log.Error("error closing database", "error", err)
	}
}

// newRemote builds the remote for the configured TV. pins may be nil for
// commands that never pair.
func (a *app) newRemote(pins remote.PinProvider) (*remote.Remote, error) {
	r, err := remote.New(deviceConfig(a.cfg), remoteOptions(a.cfg, a.db, pins, a.log))
	if err != nil {
		return nil, fmt.Errorf("creating remote: %w", err)
	}
	return r, nil
}

// deviceConfig maps the device section onto the remote's view of it.
func deviceConfig(cfg *config.Config) remote.DeviceConfig {
	return remote.DeviceConfig{
		Key:        cfg.Device.Key,
		Name:       cfg.Device.Name,
		Host:       cfg.Device.Host,
		Port:       cfg.Device.Port,
		SocketPort: cfg.Remote.SocketPort,
		AppID:      cfg.Device.AppID,
		DeviceID:   cfg.Device.DeviceID,
		ID:         cfg.Device.ID,
		Token:      cfg.Device.Token,
		Paired:     cfg.Device.Paired,
		MACAddress: cfg.Device.MACAddress,
	}
}

// remoteOptions wires timing, persistence, wake-on-LAN and the optional
// handshake helper.
func remoteOptions(cfg *config.Config, db *database.DB, pins remote.PinProvider, log *logging.Logger) remote.Options {
	opts := remote.Options{
		Timing: remote.Timing{
			SettleDelay:      cfg.Remote.SettleDelay,
			PollInterval:     cfg.Remote.PollInterval,
			PowerOnAttempts:  cfg.Remote.PowerOnAttempts,
			PowerOffAttempts: cfg.Remote.PowerOffAttempts,
			PowerOffConfirm:  cfg.Remote.PowerOffConfirm,
			HTTPTimeout:      cfg.Remote.HTTPTimeout,
		},
		TokenStore:  remote.NewSQLiteTokenStore(db),
		Waker:       &remote.MagicPacketWaker{Address: cfg.Remote.WakeAddress},
		PinProvider: pins,
	}
	if log != nil {
		opts.Logger = log.ForDevice(cfg.Device.Key, cfg.Device.Host)
	}
	// Without a helper pairing is unavailable; a stored token still connects.
	if cfg.Remote.HandshakeHelper != "" {
		opts.HandshakeCipher = &remote.ExecHandshakeCipher{Path: cfg.Remote.HandshakeHelper}
	}
	return opts
}
