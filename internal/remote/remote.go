package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// Key names with special handling.
const (
	KeyPower    = "KEY_POWER"
	KeyPowerOn  = "KEY_POWERON"
	KeyPowerOff = "KEY_POWEROFF"
)

// RemoteControl is the behaviour shared by remote implementations:
// key dispatch plus explicit power get/set.
type RemoteControl interface {
	Control(ctx context.Context, key string) bool
	Power(ctx context.Context) bool
	SetPower(ctx context.Context, on bool) (bool, error)
}

// Options supplies collaborators to New. Zero fields take defaults.
type Options struct {
	Timing Timing

	HTTPClient *http.Client
	Dialer     *websocket.Dialer

	// HandshakeCipher and PinProvider are required only for pairing.
	HandshakeCipher HandshakeCipher
	PinProvider     PinProvider

	// CommandCipher builds the per-session cipher. Default: NewAESCommandCipher
	CommandCipher CommandCipherFactory

	// TokenStore persists tokens across restarts. Optional.
	TokenStore TokenStore

	// Waker default: MagicPacketWaker on DefaultWakeAddress.
	Waker Waker

	// PowerProbe default: TCPPowerProbe against the pairing port.
	PowerProbe PowerProbe

	// Dispatcher handles inbound frames. Default: a new Dispatcher.
	Dispatcher *Dispatcher

	Logger Logger
}

// Status is a snapshot of the remote.
type Status struct {
	Host      string `json:"host"`
	State     string `json:"state"`
	Connected bool   `json:"connected"`
	Paired    bool   `json:"paired"`
	Power     bool   `json:"power"`
	Pairing   string `json:"pairing"`
}

// Remote is the encrypted remote control for one TV.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Open is guarded: while one open runs (it can take minutes when
//     waiting for a PIN), others return false immediately.
type Remote struct {
	loggable

	timing     Timing
	client     *Client
	pairer     *Pairer
	channel    *Channel
	dispatcher *Dispatcher
	store      TokenStore
	waker      Waker
	probe      PowerProbe
	newCipher  CommandCipherFactory

	mu        sync.Mutex
	device    DeviceConfig
	state     ChannelState
	auth      AuthContext
	cipher    CommandCipher
	lastPower bool
}

var _ RemoteControl = (*Remote)(nil)

// New creates a Remote for dev. A non-empty dev.Token is parsed
// immediately; a malformed one is an error.
func New(dev DeviceConfig, opts Options) (*Remote, error) {
	if dev.Host == "" {
		return nil, errors.New("remote: device host is required")
	}
	if dev.Port == 0 {
		dev.Port = 8080
	}
	if dev.Key == "" {
		dev.Key = dev.Host
	}

	var auth AuthContext
	if dev.Token != "" {
		parsed, err := ParseToken(dev.Token)
		if err != nil {
			return nil, err
		}
		auth = parsed
	}

	timing := opts.Timing.withDefaults()

	dialer := opts.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: timing.HTTPTimeout}
	}
	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = NewDispatcher()
	}
	waker := opts.Waker
	if waker == nil {
		waker = &MagicPacketWaker{}
	}
	probe := opts.PowerProbe
	if probe == nil {
		probe = &TCPPowerProbe{
			Address: net.JoinHostPort(dev.Host, strconv.Itoa(dev.Port)),
			Timeout: timing.ProbeTimeout,
		}
	}
	newCipher := opts.CommandCipher
	if newCipher == nil {
		newCipher = NewAESCommandCipher
	}

	r := &Remote{
		timing:     timing,
		client:     NewClient(NewEndpoints(dev), opts.HTTPClient, timing.HTTPTimeout),
		dispatcher: dispatcher,
		store:      opts.TokenStore,
		waker:      waker,
		probe:      probe,
		newCipher:  newCipher,
		device:     dev,
		auth:       auth,
	}
	r.channel = NewChannel(ChannelConfig{
		Handler:      dispatcher,
		Dialer:       dialer,
		SettleDelay:  timing.SettleDelay,
		WriteTimeout: timing.WriteTimeout,
		Sleep:        timing.Sleep,
	})
	r.pairer = NewPairer(r.client, opts.HandshakeCipher, opts.PinProvider, r, dev.ID)

	if opts.Logger != nil {
		r.SetLogger(opts.Logger)
	}
	return r, nil
}

// SetLogger sets the logger for the remote and its parts.
func (r *Remote) SetLogger(logger Logger) {
	r.loggable.SetLogger(logger)
	r.pairer.SetLogger(logger)
	r.channel.SetLogger(logger)
	r.dispatcher.SetLogger(logger)
}

// Dispatcher returns the inbound frame dispatcher for registering callbacks.
func (r *Remote) Dispatcher() *Dispatcher {
	return r.dispatcher
}

// State returns the channel state.
func (r *Remote) State() ChannelState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked()
}

// stateLocked folds in a socket the receive loop found dead.
func (r *Remote) stateLocked() ChannelState {
	if r.state == StateConnected && !r.channel.Connected() {
		r.state = StateDisconnected
	}
	return r.state
}

// Paired reports whether pairing has completed.
func (r *Remote) Paired() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.device.Paired
}

// Token returns the current "{ctx}:{session_id}" token, or "".
func (r *Remote) Token() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.auth.IsZero() {
		return ""
	}
	return r.auth.Token()
}

// Status returns a snapshot. Power is the last probed value.
func (r *Remote) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := r.stateLocked()
	return Status{
		Host:      r.device.Host,
		State:     state.String(),
		Connected: state == StateConnected,
		Paired:    r.device.Paired,
		Power:     r.lastPower,
		Pairing:   r.pairer.State().String(),
	}
}

// Open connects the control channel, pairing first if no token is known.
//
// Returns:
//   - true, nil: connected (or already connected)
//   - false, nil: device unreachable, another open in progress, or the TV
//     was switched on only to pair and has been switched back off
//   - false, err: pairing failed (see IsFatal) or ctx ended
func (r *Remote) Open(ctx context.Context) (bool, error) {
	r.mu.Lock()
	switch r.stateLocked() {
	case StateConnected:
		r.mu.Unlock()
		return true, nil
	case StateStarting:
		r.mu.Unlock()
		r.logDebug("open already in progress")
		return false, nil
	}
	r.state = StateStarting
	r.mu.Unlock()

	ok, err := r.open(ctx)

	r.mu.Lock()
	if ok {
		r.state = StateConnected
	} else {
		r.state = StateDisconnected
	}
	r.mu.Unlock()
	return ok, err
}

func (r *Remote) open(ctx context.Context) (bool, error) {
	auth, err := r.authContext(ctx)
	if err != nil {
		return false, err
	}

	poweredForPairing := false
	if auth.IsZero() {
		result, err := r.pairer.Pair(ctx)
		if err != nil {
			return false, err
		}
		auth = result.Auth
		poweredForPairing = result.PoweredOn
		r.storePairing(ctx, auth)
	}

	url, err := r.client.ResolveControlSocketURL(ctx)
	if err != nil {
		r.logWarn("control socket negotiation failed", "error", err)
		return false, nil
	}

	if err := r.channel.Connect(ctx, url); err != nil {
		if errors.Is(err, ErrDeviceUnreachable) {
			r.logWarn("control socket unreachable", "error", err)
			return false, nil
		}
		return false, err
	}

	cipher, err := r.newCipher(AuthContext{Ctx: strings.ToUpper(auth.Ctx), SessionID: auth.SessionID})
	if err != nil {
		r.channel.Close() //nolint:errcheck // Open is failing anyway
		return false, err
	}
	r.mu.Lock()
	r.cipher = cipher
	r.mu.Unlock()

	if poweredForPairing {
		r.logInfo("TV was switched on only for pairing, switching it off")
		r.powerOff(ctx)
		r.channel.Close() //nolint:errcheck // Channel is no longer wanted
		return false, nil
	}
	return true, nil
}

// authContext returns the known context, loading it from the token store
// the first time.
func (r *Remote) authContext(ctx context.Context) (AuthContext, error) {
	r.mu.Lock()
	auth, key := r.auth, r.device.Key
	r.mu.Unlock()
	if !auth.IsZero() || r.store == nil {
		return auth, nil
	}

	token, err := r.store.LoadToken(ctx, key)
	if errors.Is(err, ErrTokenNotFound) {
		return AuthContext{}, nil
	}
	if err != nil {
		r.logError("loading token", err)
		return AuthContext{}, nil
	}

	auth, err = ParseToken(token)
	if err != nil {
		r.logError("stored token is invalid, pairing again", err)
		return AuthContext{}, nil
	}

	r.mu.Lock()
	r.auth = auth
	r.device.Token = token
	r.device.Paired = true
	r.mu.Unlock()
	return auth, nil
}

// storePairing records a fresh pairing in memory and in the token store.
func (r *Remote) storePairing(ctx context.Context, auth AuthContext) {
	token := auth.Token()

	r.mu.Lock()
	r.auth = auth
	r.device.Token = token
	r.device.Paired = true
	key := r.device.Key
	r.mu.Unlock()

	if r.store == nil {
		return
	}
	if err := r.store.SaveToken(ctx, key, token); err != nil {
		r.logError("saving token", err)
	}
}

// Forget drops the pairing so the next Open pairs again.
func (r *Remote) Forget() {
	r.mu.Lock()
	r.auth = AuthContext{}
	r.device.Token = ""
	r.device.Paired = false
	r.cipher = nil
	r.mu.Unlock()
}

// Close closes the control channel. It is safe to call more than once.
func (r *Remote) Close() error {
	err := r.channel.Close()
	r.mu.Lock()
	if r.state == StateConnected {
		r.state = StateDisconnected
	}
	r.mu.Unlock()
	return err
}

// Send encrypts key and sends it over the open channel. Failures are
// logged, close the channel and return false.
func (r *Remote) Send(ctx context.Context, key string) bool {
	r.mu.Lock()
	cipher := r.cipher
	r.mu.Unlock()
	if cipher == nil || !r.channel.Connected() {
		r.logWarn("send without open channel", "key", key)
		return false
	}

	frame, err := cipher.EncryptCommand(key)
	if err != nil {
		r.logError("encrypting command", err, "key", key)
		return false
	}
	return r.sendFrame(ctx, frame, key)
}

// InputText types text into the focused on-screen field.
func (r *Remote) InputText(ctx context.Context, text string) bool {
	if !r.ensureOpen(ctx) {
		return false
	}

	r.mu.Lock()
	cipher := r.cipher
	r.mu.Unlock()
	textCipher, ok := cipher.(TextCipher)
	if !ok {
		r.logWarn("command cipher cannot carry text input")
		return false
	}

	frame, err := textCipher.EncryptText(text)
	if err != nil {
		r.logError("encrypting text input", err)
		return false
	}
	return r.sendFrame(ctx, frame, "text")
}

func (r *Remote) sendFrame(ctx context.Context, frame, label string) bool {
	if err := r.channel.SendCommand(ctx, frame); err != nil {
		r.logError("sending command", err, "key", label)
		r.Close() //nolint:errcheck // Already failing
		return false
	}
	r.logDebug("command sent", "key", label)
	return true
}

// Control dispatches a key. Power keys go to SetPower (KEY_POWER toggles).
// Other keys open the channel only when unpaired; a paired remote with no
// channel assumes the TV is off. No error escapes.
func (r *Remote) Control(ctx context.Context, key string) bool {
	switch key {
	case KeyPowerOn, KeyPowerOff, KeyPower:
		on := key == KeyPowerOn
		if key == KeyPower {
			on = !r.Power(ctx)
		}
		ok, err := r.SetPower(ctx, on)
		if err != nil {
			r.logError("power control failed", err, "key", key)
		}
		return ok
	}

	if !r.ensureOpen(ctx) {
		return false
	}
	return r.Send(ctx, key)
}

// ensureOpen opens the channel if it is down and pairing is still needed.
func (r *Remote) ensureOpen(ctx context.Context) bool {
	if r.State() == StateConnected {
		return true
	}
	if r.Paired() {
		r.logWarn("control channel is closed, is the TV on?")
		return false
	}
	ok, err := r.Open(ctx)
	if err != nil {
		r.logError("open failed", err)
	}
	return ok
}

// Power probes the TV and records the result.
func (r *Remote) Power(ctx context.Context) bool {
	on := r.probe.PoweredOn(ctx)
	r.mu.Lock()
	r.lastPower = on
	r.mu.Unlock()
	return on
}

// SetPower switches the TV on or off and reports whether it ended in the
// requested state. Timeouts are logged, not returned; only a missing MAC
// address (power on) or a cancelled ctx produce an error.
func (r *Remote) SetPower(ctx context.Context, on bool) (bool, error) {
	if r.Power(ctx) == on {
		return true, nil
	}
	if on {
		return r.powerOn(ctx)
	}
	ok := r.powerOff(ctx)
	if !ok && ctx.Err() != nil {
		return false, ctx.Err()
	}
	return ok, nil
}

// powerOn sends a wake signal every poll interval until the probe sees
// the TV, up to PowerOnAttempts times. Each iteration also tries to open
// the control channel while it is down; failures there are ignored.
func (r *Remote) powerOn(ctx context.Context) (bool, error) {
	r.mu.Lock()
	mac := r.device.MACAddress
	r.mu.Unlock()
	if mac == "" {
		return false, ErrNoMACAddress
	}

	for attempt := 1; attempt <= r.timing.PowerOnAttempts; attempt++ {
		if r.State() != StateConnected {
			if _, err := r.Open(ctx); err != nil {
				r.logDebug("open during power on failed", "error", err, "attempt", attempt)
			}
		}
		if err := r.waker.Wake(ctx, mac); err != nil {
			r.logWarn("wake signal failed", "error", err, "attempt", attempt)
		}
		if err := r.timing.Sleep(ctx, r.timing.PollInterval); err != nil {
			return false, err
		}
		if !r.Power(ctx) {
			continue
		}

		r.logInfo("TV powered on", "attempts", attempt)
		if r.Paired() && r.State() != StateConnected {
			if _, err := r.Open(ctx); err != nil {
				r.logDebug("reconnect after power on failed", "error", err)
			}
		}
		return true, nil
	}

	r.logError("unable to power on the TV, check network connectivity",
		fmt.Errorf("no response after %d attempts", r.timing.PowerOnAttempts))
	return false, nil
}

// powerOff sends KEY_POWER then KEY_POWEROFF and polls until the probe
// stops answering, up to PowerOffAttempts times.
func (r *Remote) powerOff(ctx context.Context) bool {
	if !r.channel.Connected() {
		if ok, err := r.Open(ctx); !ok {
			if err != nil {
				r.logError("open for power off failed", err)
			}
			return false
		}
	}

	for _, key := range []string{KeyPower, KeyPowerOff} {
		r.Send(ctx, key)
		if err := r.timing.Sleep(ctx, r.timing.PowerOffConfirm); err != nil {
			return false
		}
	}

	for attempt := 1; attempt <= r.timing.PowerOffAttempts; attempt++ {
		if !r.Power(ctx) {
			r.logInfo("TV powered off", "attempts", attempt)
			r.Close() //nolint:errcheck // Socket is gone with the TV
			return true
		}
		if err := r.timing.Sleep(ctx, r.timing.PollInterval); err != nil {
			return false
		}
	}

	r.logError("unable to power off the TV",
		fmt.Errorf("still on after %d attempts", r.timing.PowerOffAttempts))
	return false
}
