package tv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-tvbridge/internal/remote"
)

const (
	// minTopicParts is graylogic/{category}/tv/{device}.
	minTopicParts = 4

	queueSize = 16

	// Per-command bounds. Power on polls for up to PowerOnAttempts
	// seconds and open may wait for a PIN.
	commandTimeout = 30 * time.Second
	powerTimeout   = 90 * time.Second
	openTimeout    = 5 * time.Minute
	requestTimeout = 5 * time.Second

	defaultStateInterval = 30 * time.Second
)

// Logger is the optional structured logger. Compatible with logging.Logger.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// MQTTClient is the MQTT surface the bridge uses. *mqtt.Client satisfies it.
type MQTTClient interface {
	PublishJSON(topic string, v any, retained bool) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error
	IsConnected() bool
}

// Remote is the TV surface the bridge drives. *remote.Remote satisfies it.
type Remote interface {
	Control(ctx context.Context, key string) bool
	Power(ctx context.Context) bool
	SetPower(ctx context.Context, on bool) (bool, error)
	InputText(ctx context.Context, text string) bool
	Open(ctx context.Context) (bool, error)
	Close() error
	Status() remote.Status
}

// PinSubmitter accepts a PIN for a pairing in progress.
// *remote.ChannelPinProvider satisfies it.
type PinSubmitter interface {
	Submit(ctx context.Context, pin string) error
}

// Telemetry records history. *influxdb.Client satisfies it.
type Telemetry interface {
	RecordPower(deviceKey string, on bool)
	RecordCommand(deviceKey, command string, ok bool, elapsed time.Duration)
	RecordPairing(deviceKey, outcome string)
}

// MetricsRecorder updates live gauges and counters. *metrics.Metrics satisfies it.
type MetricsRecorder interface {
	ObserveCommand(command string, ok bool, elapsed time.Duration)
	ObservePairing(outcome string)
	SetPower(device string, on bool)
	SetConnected(device string, connected bool)
}

// BridgeOptions configures a Bridge.
type BridgeOptions struct {
	// DeviceKey is the {device} topic segment this bridge answers to.
	DeviceKey string

	Remote     Remote
	MQTTClient MQTTClient

	// Optional collaborators.
	Pins      PinSubmitter
	Telemetry Telemetry
	Metrics   MetricsRecorder
	Logger    Logger

	Version        string
	StateInterval  time.Duration
	HealthInterval time.Duration
}

// job is a validated command waiting for the worker.
type job struct {
	cmd     CommandMessage
	address string
}

// Bridge translates MQTT commands into remote operations and publishes
// acks, retained state and health.
//
// Commands run one at a time on a worker goroutine so a slow power-on or
// a pairing waiting for its PIN never blocks MQTT delivery. PIN commands
// bypass the queue.
//
// Thread Safety: all methods are safe for concurrent use.
type Bridge struct {
	key       string
	remote    Remote
	mqtt      MQTTClient
	pins      PinSubmitter
	telemetry Telemetry
	metrics   MetricsRecorder
	health    *HealthReporter

	stateInterval time.Duration

	queue chan job

	received atomic.Uint64
	failed   atomic.Uint64

	stateMu   sync.Mutex
	lastPower *bool

	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// NewBridge creates a bridge. Call Start to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Remote == nil {
		return nil, fmt.Errorf("remote is required")
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.DeviceKey == "" {
		return nil, fmt.Errorf("device key is required")
	}

	stateInterval := opts.StateInterval
	if stateInterval <= 0 {
		stateInterval = defaultStateInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		key:           opts.DeviceKey,
		remote:        opts.Remote,
		mqtt:          opts.MQTTClient,
		pins:          opts.Pins,
		telemetry:     opts.Telemetry,
		metrics:       opts.Metrics,
		stateInterval: stateInterval,
		queue:         make(chan job, queueSize),
		done:          make(chan struct{}),
		ctx:           ctx,
		ctxCancel:     cancel,
		logger:        opts.Logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  "tv-" + opts.DeviceKey,
		Version:   opts.Version,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTTClient,
		Device:    b.deviceHealth,
		Stats:     b.Statistics,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}
	return b, nil
}

// Start subscribes to command and request topics and starts the worker,
// the state loop and health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	if err := b.mqtt.Subscribe(CommandSubscribeTopic(), 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	if err := b.mqtt.Subscribe(RequestSubscribeTopic(), 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to requests: %w", err)
	}

	b.wg.Add(2)
	go b.worker()
	go b.stateLoop(ctx)

	b.health.Start(ctx)
	if err := b.health.PublishNow(); err != nil {
		b.logError("failed to publish healthy status", err)
	}

	b.logInfo("bridge started", "device", b.key,
		"commands", CommandSubscribeTopic(), "requests", RequestSubscribeTopic())
	return nil
}

// Stop cancels in-flight commands, waits for the worker and publishes a
// final health status. Safe to call more than once.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()
		b.wg.Wait()
		b.health.Stop()
		b.logInfo("bridge stopped")
	})
}

// SetLogger sets the logger for the bridge and its health reporter.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
	b.health.SetLogger(logger)
}

// Statistics returns the command counters.
func (b *Bridge) Statistics() BridgeStatistics {
	return BridgeStatistics{
		CommandsReceived: b.received.Load(),
		CommandsFailed:   b.failed.Load(),
	}
}

func (b *Bridge) deviceHealth() DeviceHealth {
	st := b.remote.Status()
	return DeviceHealth{
		Key:       b.key,
		Host:      st.Host,
		Paired:    st.Paired,
		Connected: st.Connected,
		Power:     st.Power,
	}
}

// handleMQTTMessage routes graylogic/{command|request}/tv/{device}.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) < minTopicParts {
		return fmt.Errorf("invalid topic format: %s", topic)
	}
	address := parts[3]

	switch parts[1] {
	case "command":
		b.handleCommand(address, payload)
	case "request":
		b.handleRequest(address, payload)
	default:
		return fmt.Errorf("unknown message type %q", parts[1])
	}
	return nil
}

func (b *Bridge) handleCommand(address string, payload []byte) {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logError("failed to parse command", err)
		return
	}
	b.received.Add(1)

	b.logInfo("received command",
		"command_id", cmd.ID,
		"device", address,
		"command", cmd.Command)

	if address != b.key {
		b.fail(cmd, address, ErrCodeNotConfigured, fmt.Sprintf("device %s not configured", address))
		return
	}
	if err := validateCommand(cmd); err != nil {
		code := ErrCodeInvalidParameters
		if errors.Is(err, ErrUnknownCommand) {
			code = ErrCodeInvalidCommand
		}
		b.fail(cmd, address, code, err.Error())
		return
	}

	if cmd.Command == CommandPin {
		b.submitPin(cmd, address)
		return
	}

	select {
	case <-b.done:
		b.fail(cmd, address, ErrCodeBridgeError, ErrStopped.Error())
		return
	default:
	}

	select {
	case b.queue <- job{cmd: cmd, address: address}:
	default:
		b.fail(cmd, address, ErrCodeBridgeError, ErrQueueFull.Error())
	}
}

func validateCommand(cmd CommandMessage) error {
	switch cmd.Command {
	case CommandKey:
		_, err := cmd.stringParam("key")
		return err
	case CommandText:
		_, err := cmd.stringParam("text")
		return err
	case CommandPin:
		_, err := cmd.stringParam("pin")
		return err
	case CommandPowerOn, CommandPowerOff, CommandPowerToggle, CommandOpen, CommandClose:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Command)
	}
}

func (b *Bridge) submitPin(cmd CommandMessage, address string) {
	if b.pins == nil {
		b.fail(cmd, address, ErrCodeNotConfigured, "PIN entry is not available")
		return
	}
	pin, _ := cmd.stringParam("pin") //nolint:errcheck // Validated by validateCommand

	ctx, cancel := context.WithTimeout(b.ctx, requestTimeout)
	defer cancel()
	if err := b.pins.Submit(ctx, pin); err != nil {
		code := ErrCodeBridgeError
		if errors.Is(err, remote.ErrNoPinRequested) {
			code = ErrCodeInvalidCommand
		}
		b.fail(cmd, address, code, err.Error())
		return
	}
	b.publishAck(NewAckMessage(cmd, AckAccepted, address))
}

// worker executes queued commands in arrival order.
func (b *Bridge) worker() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			return
		case j := <-b.queue:
			b.runJob(j)
		}
	}
}

func (b *Bridge) runJob(j job) {
	ctx, cancel := context.WithTimeout(b.ctx, timeoutFor(j.cmd.Command))
	defer cancel()

	wasPaired := b.remote.Status().Paired

	start := time.Now()
	code, err := b.execute(ctx, j.cmd)
	elapsed := time.Since(start)
	ok := err == nil

	if j.cmd.Command == CommandOpen && !wasPaired {
		b.observePairing(pairingOutcome(b.remote.Status().Paired, err))
	}

	if b.metrics != nil {
		b.metrics.ObserveCommand(j.cmd.Command, ok, elapsed)
	}
	if b.telemetry != nil {
		b.telemetry.RecordCommand(b.key, j.cmd.Command, ok, elapsed)
	}

	if ok {
		b.publishAck(NewAckMessage(j.cmd, AckAccepted, j.address))
	} else {
		if ctx.Err() != nil && code != ErrCodeNotConfigured {
			code = ErrCodeTimeout
		}
		b.fail(j.cmd, j.address, code, err.Error())
	}
	b.publishState()
}

// Pairing outcomes recorded for an open on an unpaired TV.
const (
	PairingPaired      = "paired"
	PairingFailed      = "failed"
	PairingUnreachable = "unreachable"
)

func pairingOutcome(paired bool, err error) string {
	switch {
	case paired:
		return PairingPaired
	case err != nil:
		return PairingFailed
	default:
		return PairingUnreachable
	}
}

func (b *Bridge) observePairing(outcome string) {
	if b.metrics != nil {
		b.metrics.ObservePairing(outcome)
	}
	if b.telemetry != nil {
		b.telemetry.RecordPairing(b.key, outcome)
	}
	b.logInfo("pairing finished", "device", b.key, "outcome", outcome)
}

func timeoutFor(command string) time.Duration {
	switch command {
	case CommandPowerOn, CommandPowerOff, CommandPowerToggle:
		return powerTimeout
	case CommandOpen:
		return openTimeout
	default:
		return commandTimeout
	}
}

// execute runs cmd and maps failures to ack error codes.
func (b *Bridge) execute(ctx context.Context, cmd CommandMessage) (string, error) {
	switch cmd.Command {
	case CommandKey:
		key, _ := cmd.stringParam("key") //nolint:errcheck // Validated
		if !b.remote.Control(ctx, key) {
			return ErrCodeDeviceUnreachable, fmt.Errorf("key %s not delivered", key)
		}
	case CommandText:
		text, _ := cmd.stringParam("text") //nolint:errcheck // Validated
		if !b.remote.InputText(ctx, text) {
			return ErrCodeDeviceUnreachable, fmt.Errorf("text not delivered")
		}
	case CommandPowerToggle:
		if !b.remote.Control(ctx, remote.KeyPower) {
			return ErrCodeTimeout, fmt.Errorf("power toggle not confirmed")
		}
	case CommandPowerOn, CommandPowerOff:
		on := cmd.Command == CommandPowerOn
		ok, err := b.remote.SetPower(ctx, on)
		if errors.Is(err, remote.ErrNoMACAddress) {
			return ErrCodeNotConfigured, err
		}
		if err != nil {
			return ErrCodeBridgeError, err
		}
		if !ok {
			return ErrCodeTimeout, fmt.Errorf("TV did not reach power=%v", on)
		}
	case CommandOpen:
		ok, err := b.remote.Open(ctx)
		if remote.IsFatal(err) {
			return ErrCodeProtocolError, err
		}
		if err != nil {
			return ErrCodeBridgeError, err
		}
		if !ok {
			return ErrCodeDeviceUnreachable, fmt.Errorf("control channel not opened")
		}
	case CommandClose:
		if err := b.remote.Close(); err != nil {
			return ErrCodeBridgeError, err
		}
	}
	return "", nil
}

func (b *Bridge) fail(cmd CommandMessage, address, code, message string) {
	b.failed.Add(1)
	b.publishAck(NewAckError(cmd, address, code, message))
	b.logWarn("command failed", "command_id", cmd.ID, "command", cmd.Command,
		"code", code, "message", message)
}

func (b *Bridge) publishAck(ack AckMessage) {
	if err := b.mqtt.PublishJSON(AckTopic(ack.Address), ack, false); err != nil {
		b.logError("failed to publish ack", err)
	}
}

func (b *Bridge) currentState() TVState {
	st := b.remote.Status()
	return TVState{
		Power:     st.Power,
		Connected: st.Connected,
		Paired:    st.Paired,
		Channel:   st.State,
		Pairing:   st.Pairing,
	}
}

// publishState publishes the retained state and feeds metrics and
// telemetry. Power transitions are written to telemetry once each.
func (b *Bridge) publishState() {
	state := b.currentState()

	if b.metrics != nil {
		b.metrics.SetPower(b.key, state.Power)
		b.metrics.SetConnected(b.key, state.Connected)
	}

	b.stateMu.Lock()
	changed := b.lastPower == nil || *b.lastPower != state.Power
	power := state.Power
	b.lastPower = &power
	b.stateMu.Unlock()
	if changed && b.telemetry != nil {
		b.telemetry.RecordPower(b.key, state.Power)
	}

	if err := b.mqtt.PublishJSON(StateTopic(b.key), NewStateMessage(b.key, b.remote.Status().Host, state), true); err != nil {
		b.logError("failed to publish state", err)
	}
}

// refreshState probes power and publishes the result.
func (b *Bridge) refreshState(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	b.remote.Power(probeCtx)
	b.publishState()
}

func (b *Bridge) stateLoop(ctx context.Context) {
	defer b.wg.Done()

	b.refreshState(b.ctx)

	ticker := time.NewTicker(b.stateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case <-ticker.C:
			b.refreshState(b.ctx)
		}
	}
}

func (b *Bridge) handleRequest(address string, payload []byte) {
	var req RequestMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		b.logError("failed to parse request", err)
		return
	}
	if req.RequestID == "" {
		b.logWarn("request without request_id ignored", "action", req.Action)
		return
	}

	resp := ResponseMessage{RequestID: req.RequestID, Timestamp: time.Now().UTC()}
	switch {
	case address != b.key:
		resp.Error = &ResponseError{Code: ErrCodeNotConfigured, Message: fmt.Sprintf("device %s not configured", address)}
	case req.Action != ActionReadState:
		resp.Error = &ResponseError{Code: ErrCodeInvalidCommand, Message: fmt.Sprintf("unknown action %q", req.Action)}
	default:
		b.refreshState(b.ctx)
		state := b.currentState()
		resp.Success = true
		resp.Data = &state
	}

	if err := b.mqtt.PublishJSON(ResponseTopic(req.RequestID), resp, false); err != nil {
		b.logError("failed to publish response", err)
	}
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}
