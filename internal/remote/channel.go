package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ChannelState is the lifecycle of the control channel.
type ChannelState int32

const (
	// StateDisconnected means no socket is open.
	StateDisconnected ChannelState = iota

	// StateStarting means an open is in progress (pairing, negotiation or
	// dialing). Re-entrant opens are rejected in this state.
	StateStarting

	// StateConnected means the socket is open and the receive loop runs.
	StateConnected
)

func (s ChannelState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateStarting:
		return "starting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("channel_state(%d)", int32(s))
	}
}

// ChannelConfig configures a Channel.
type ChannelConfig struct {
	// Handler receives inbound frames. Default: a new Dispatcher.
	Handler FrameHandler

	// Dialer opens the websocket. Default: websocket.DefaultDialer.
	Dialer *websocket.Dialer

	SettleDelay  time.Duration
	WriteTimeout time.Duration
	Sleep        SleepFunc
}

// Channel owns the websocket to the TV and its receive goroutine.
//
// Thread Safety:
//   - SendCommand calls are serialised so marker and payload frames of two
//     callers never interleave.
//   - Heartbeat replies may be written between frames of a command.
type Channel struct {
	loggable

	handler      FrameHandler
	dialer       *websocket.Dialer
	settle       time.Duration
	writeTimeout time.Duration
	sleep        SleepFunc

	sendMu  sync.Mutex
	writeMu sync.Mutex

	mu   sync.Mutex
	conn *websocket.Conn
	done chan struct{}
	wg   sync.WaitGroup
}

// NewChannel creates a disconnected Channel.
func NewChannel(cfg ChannelConfig) *Channel {
	if cfg.Handler == nil {
		cfg.Handler = NewDispatcher()
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	return &Channel{
		handler:      cfg.Handler,
		dialer:       cfg.Dialer,
		settle:       cfg.SettleDelay,
		writeTimeout: cfg.WriteTimeout,
		sleep:        cfg.Sleep,
	}
}

// Connected reports whether the socket is open.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Connect dials url, starts the receive loop and waits the settle delay.
// It is a no-op when already connected. Dial failures wrap
// ErrDeviceUnreachable.
func (c *Channel) Connect(ctx context.Context, url string) error {
	if c.Connected() {
		return nil
	}

	conn, resp, err := c.dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("%w: dialing control socket: %v", ErrDeviceUnreachable, err)
	}

	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		conn.Close() //nolint:errcheck // Lost the race to another Connect
		return nil
	}
	c.conn = conn
	c.done = make(chan struct{})
	c.wg.Add(1)
	go c.receiveLoop(conn, c.done)
	c.mu.Unlock()

	c.logInfo("control channel connected")

	if err := c.sleep(ctx, c.settle); err != nil {
		c.Close() //nolint:errcheck // Connect is failing anyway
		return err
	}
	return nil
}

// receiveLoop reads frames until the socket fails or Close is called.
func (c *Channel) receiveLoop(conn *websocket.Conn, done chan struct{}) {
	defer c.wg.Done()

	reply := func(frame string) error {
		return c.write(conn, frame)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
			default:
				c.logWarn("control channel read failed", "error", err)
			}
			c.detach(conn)
			return
		}
		c.handler.HandleFrame(string(data), reply)
	}
}

// detach forgets conn if it is still current and closes it.
func (c *Channel) detach(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	conn.Close() //nolint:errcheck // May already be closed by Close
}

// Close closes the socket and waits for the receive loop to exit.
// It is safe to call more than once.
func (c *Channel) Close() error {
	c.mu.Lock()
	conn, done := c.conn, c.done
	c.conn = nil
	c.mu.Unlock()

	var err error
	if conn != nil {
		close(done)
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage, //nolint:errcheck // Best effort goodbye
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		if cerr := conn.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = fmt.Errorf("closing control socket: %w", cerr)
		}
		c.logInfo("control channel closed")
	}
	c.wg.Wait()
	return err
}

// SendCommand writes the companion marker, waits the settle delay, writes
// frame and waits again. The whole sequence holds the send lock.
func (c *Channel) SendCommand(ctx context.Context, frame string) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	for _, f := range []string{CompanionMarker, frame} {
		conn := c.current()
		if conn == nil {
			return ErrNotConnected
		}
		if err := c.write(conn, f); err != nil {
			return fmt.Errorf("writing frame: %w", err)
		}
		if err := c.sleep(ctx, c.settle); err != nil {
			return err
		}
	}
	return nil
}

func (c *Channel) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Channel) write(conn *websocket.Conn, frame string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, []byte(frame))
}
