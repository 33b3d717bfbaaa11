package remote

import (
	"context"
	"time"
)

// Default timing, matching what the TV firmware tolerates.
const (
	DefaultSettleDelay      = 350 * time.Millisecond
	DefaultPollInterval     = time.Second
	DefaultPowerOnAttempts  = 20
	DefaultPowerOffAttempts = 10
	DefaultPowerOffConfirm  = 2 * time.Second
	DefaultHTTPTimeout      = 3 * time.Second
	DefaultProbeTimeout     = time.Second
	DefaultWriteTimeout     = 5 * time.Second
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Timing holds the delays and retry bounds of the remote.
// Zero fields take the defaults above.
type Timing struct {
	// SettleDelay is slept after connecting and around every command frame.
	SettleDelay time.Duration

	// PollInterval separates power status polls.
	PollInterval time.Duration

	// PowerOnAttempts bounds the wake-and-poll loop.
	PowerOnAttempts int

	// PowerOffAttempts bounds the power-off confirmation loop.
	PowerOffAttempts int

	// PowerOffConfirm is waited after each power key.
	PowerOffConfirm time.Duration

	// HTTPTimeout applies to PIN page and socket negotiation requests.
	HTTPTimeout time.Duration

	// ProbeTimeout bounds a single power probe.
	ProbeTimeout time.Duration

	// WriteTimeout bounds a single control socket write.
	WriteTimeout time.Duration

	// Sleep replaces the real clock in tests.
	Sleep SleepFunc
}

// DefaultTiming returns Timing populated with the package defaults.
func DefaultTiming() Timing {
	return Timing{}.withDefaults()
}

func (t Timing) withDefaults() Timing {
	if t.SettleDelay == 0 {
		t.SettleDelay = DefaultSettleDelay
	}
	if t.PollInterval == 0 {
		t.PollInterval = DefaultPollInterval
	}
	if t.PowerOnAttempts == 0 {
		t.PowerOnAttempts = DefaultPowerOnAttempts
	}
	if t.PowerOffAttempts == 0 {
		t.PowerOffAttempts = DefaultPowerOffAttempts
	}
	if t.PowerOffConfirm == 0 {
		t.PowerOffConfirm = DefaultPowerOffConfirm
	}
	if t.HTTPTimeout == 0 {
		t.HTTPTimeout = DefaultHTTPTimeout
	}
	if t.ProbeTimeout == 0 {
		t.ProbeTimeout = DefaultProbeTimeout
	}
	if t.WriteTimeout == 0 {
		t.WriteTimeout = DefaultWriteTimeout
	}
	if t.Sleep == nil {
		t.Sleep = sleepContext
	}
	return t
}

// sleepContext is the real SleepFunc.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
