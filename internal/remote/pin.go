package remote

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
)

// ErrNoPinRequested is returned by ChannelPinProvider.Submit when pairing
// is not waiting for a PIN.
var ErrNoPinRequested = errors.New("remote: no PIN requested")

// ChannelPinProvider hands PINs submitted from elsewhere (the HTTP API) to
// a waiting pairing attempt.
type ChannelPinProvider struct {
	pins       chan string
	waiting    atomic.Bool
	rejections atomic.Int64
}

// NewChannelPinProvider returns a provider with no pending request.
func NewChannelPinProvider() *ChannelPinProvider {
	return &ChannelPinProvider{pins: make(chan string)}
}

// PIN implements PinProvider.
func (p *ChannelPinProvider) PIN(ctx context.Context) (string, error) {
	p.waiting.Store(true)
	defer p.waiting.Store(false)

	select {
	case pin := <-p.pins:
		return pin, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// PinRejected implements PinRejectionNotifier.
func (p *ChannelPinProvider) PinRejected(context.Context) {
	p.rejections.Add(1)
}

// Waiting reports whether pairing is blocked on a PIN.
func (p *ChannelPinProvider) Waiting() bool {
	return p.waiting.Load()
}

// Rejections counts PINs the TV refused.
func (p *ChannelPinProvider) Rejections() int64 {
	return p.rejections.Load()
}

// Submit delivers a PIN to the waiting attempt.
func (p *ChannelPinProvider) Submit(ctx context.Context, pin string) error {
	if !p.Waiting() {
		return ErrNoPinRequested
	}
	select {
	case p.pins <- pin:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PromptPinProvider asks for the PIN on a terminal.
type PromptPinProvider struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPromptPinProvider reads PINs from in and writes prompts to out.
func NewPromptPinProvider(in io.Reader, out io.Writer) *PromptPinProvider {
	return &PromptPinProvider{in: bufio.NewReader(in), out: out}
}

// PIN implements PinProvider.
func (p *PromptPinProvider) PIN(ctx context.Context) (string, error) {
	fmt.Fprint(p.out, "Please enter pin from tv: ")

	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		if errors.Is(err, io.EOF) && line != "" {
			err = nil
		}
		done <- result{line: strings.TrimSpace(line), err: err}
	}()

	select {
	case r := <-done:
		return r.line, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// PinRejected implements PinRejectionNotifier.
func (p *PromptPinProvider) PinRejected(context.Context) {
	fmt.Fprintln(p.out, "Pin incorrect, please try again...")
}
