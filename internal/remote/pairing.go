package remote

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// PairingState is the position of the pairing state machine.
type PairingState int32

const (
	PairingNoContext PairingState = iota
	PairingAwaitingPower
	PairingCheckingPinDisplay
	PairingAwaitingPinInput
	PairingHelloExchange
	PairingAcknowledgeExchange
	PairingPaired
)

func (s PairingState) String() string {
	switch s {
	case PairingNoContext:
		return "no_context"
	case PairingAwaitingPower:
		return "awaiting_power"
	case PairingCheckingPinDisplay:
		return "checking_pin_display"
	case PairingAwaitingPinInput:
		return "awaiting_pin_input"
	case PairingHelloExchange:
		return "hello_exchange"
	case PairingAcknowledgeExchange:
		return "acknowledge_exchange"
	case PairingPaired:
		return "paired"
	default:
		return fmt.Sprintf("pairing_state(%d)", int32(s))
	}
}

// PinProvider supplies the PIN shown on the TV. It is asked once per
// attempt and should block until the user answers or ctx is done.
type PinProvider interface {
	PIN(ctx context.Context) (string, error)
}

// PinRejectionNotifier is optionally implemented by a PinProvider that
// wants to know when the TV rejected the last PIN.
type PinRejectionNotifier interface {
	PinRejected(ctx context.Context)
}

// powerSwitch is the part of the remote the pairer needs.
type powerSwitch interface {
	Power(ctx context.Context) bool
	SetPower(ctx context.Context, on bool) (bool, error)
}

// PairResult is the outcome of a successful pairing.
type PairResult struct {
	Auth AuthContext

	// PoweredOn is true when the TV was off and pairing switched it on.
	PoweredOn bool
}

// Pairer runs the PIN challenge/response handshake.
type Pairer struct {
	loggable

	client *Client
	cipher HandshakeCipher
	pins   PinProvider
	power  powerSwitch
	userID string

	state atomic.Int32

	// pairMu serialises attempts; lastRequestID belongs to the running one.
	pairMu        sync.Mutex
	lastRequestID FlexID
}

// NewPairer creates a Pairer. userID is the device identity handed to the
// cipher.
func NewPairer(client *Client, cipher HandshakeCipher, pins PinProvider, power powerSwitch, userID string) *Pairer {
	return &Pairer{
		client: client,
		cipher: cipher,
		pins:   pins,
		power:  power,
		userID: userID,
	}
}

// State returns the current pairing state.
func (p *Pairer) State() PairingState {
	return PairingState(p.state.Load())
}

func (p *Pairer) setState(s PairingState) {
	p.state.Store(int32(s))
	p.logDebug("pairing state", "state", s.String())
}

type authData struct {
	AuthType             string  `json:"auth_type"`
	RequestID            *FlexID `json:"request_id,omitempty"`
	GeneratorServerHello string  `json:"GeneratorServerHello,omitempty"`
	ServerAckMsg         string  `json:"ServerAckMsg,omitempty"`
}

type authEnvelope struct {
	AuthData authData `json:"auth_Data"`
}

// authReply holds the fields of the TV's nested auth_data document.
type authReply struct {
	GeneratorClientHello string `json:"GeneratorClientHello"`
	RequestID            FlexID `json:"request_id"`
	ClientAckMsg         string `json:"ClientAckMsg"`
	SessionID            FlexID `json:"session_id"`
}

// Pair runs the handshake until it succeeds, fails fatally, or ctx is done.
//
// A wrong PIN is not an error: the user is asked again without limit.
// Fatal outcomes are *FatalError values.
func (p *Pairer) Pair(ctx context.Context) (PairResult, error) {
	if p.cipher == nil || p.pins == nil {
		return PairResult{}, fmt.Errorf("%w: handshake cipher and PIN provider are required", ErrPairingUnavailable)
	}

	p.pairMu.Lock()
	defer p.pairMu.Unlock()

	result, err := p.pair(ctx)
	if err != nil {
		p.setState(PairingNoContext)
	}
	return result, err
}

func (p *Pairer) pair(ctx context.Context) (PairResult, error) {
	var result PairResult

	p.setState(PairingAwaitingPower)
	if !p.power.Power(ctx) {
		ok, err := p.power.SetPower(ctx, true)
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if !ok {
			detail := "unable to power on the TV, check network connectivity"
			if err != nil {
				detail += ": " + err.Error()
			}
			return result, fatal(ErrUnableToPair, detail)
		}
		result.PoweredOn = true
	}

	p.setState(PairingCheckingPinDisplay)
	stopped, err := p.client.PinPageStopped(ctx)
	switch {
	case err != nil:
		p.logWarn("pin page check failed, assuming it is showing", "error", err)
	case stopped:
		if err := p.client.ShowPinPage(ctx); err != nil {
			p.logWarn("show pin page failed", "error", err)
		}
	}

	for {
		p.setState(PairingAwaitingPinInput)
		p.lastRequestID = IntID(0)

		if body, err := p.client.StartPairing(ctx); err != nil {
			p.logDebug("pairing step 0 failed", "error", err)
		} else {
			p.logDebug("pairing step 0", "response", body)
		}

		pin, err := p.pins.PIN(ctx)
		if err != nil {
			return result, fmt.Errorf("reading PIN: %w", err)
		}

		p.setState(PairingHelloExchange)
		ctxHex, skPrime, ok := p.helloExchange(ctx, pin)
		if !ok {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			p.logWarn("PIN incorrect, please try again")
			if notifier, isNotifier := p.pins.(PinRejectionNotifier); isNotifier {
				notifier.PinRejected(ctx)
			}
			continue
		}

		p.setState(PairingAcknowledgeExchange)
		sessionID, err := p.acknowledgeExchange(ctx, skPrime)
		clear(skPrime)
		if err != nil {
			return result, err
		}

		p.setState(PairingPaired)
		p.logInfo("authorization successful")

		if err := p.client.HidePinPage(ctx); err != nil {
			p.logDebug("hide pin page failed", "error", err)
		}

		result.Auth = AuthContext{Ctx: ctxHex, SessionID: sessionID}
		return result, nil
	}
}

// helloExchange posts the server hello and derives ctx and SKPrime from
// the reply. Every failure means "no context", like a wrong PIN.
func (p *Pairer) helloExchange(ctx context.Context, pin string) (string, []byte, bool) {
	hello, err := p.cipher.ServerHello(p.userID, pin)
	if err != nil {
		p.logError("building server hello", err)
		return "", nil, false
	}

	body, err := p.client.PostStep(ctx, 1, authEnvelope{AuthData: authData{
		AuthType:             "SPC",
		GeneratorServerHello: strings.ToUpper(hex.EncodeToString(hello.Message)),
	}})
	if err != nil {
		p.logWarn("hello exchange failed", "error", err)
		return "", nil, false
	}

	reply, ok := decodeAuthReply(body)
	if !ok || reply.GeneratorClientHello == "" || reply.RequestID.IsZero() {
		p.logDebug("hello exchange returned no client hello", "response", string(body))
		return "", nil, false
	}
	p.lastRequestID = reply.RequestID

	ctxHex, skPrime, err := p.cipher.ClientHello(hello, reply.GeneratorClientHello, p.userID)
	if err != nil || ctxHex == "" {
		p.logDebug("client hello rejected", "error", err)
		return "", nil, false
	}
	return ctxHex, skPrime, true
}

// acknowledgeExchange completes the handshake and returns the session id.
func (p *Pairer) acknowledgeExchange(ctx context.Context, skPrime []byte) (FlexID, error) {
	ack, err := p.cipher.ServerAck(skPrime)
	if err != nil {
		return FlexID{}, fmt.Errorf("building server ack: %w", err)
	}

	requestID := p.lastRequestID
	body, err := p.client.PostStep(ctx, 2, authEnvelope{AuthData: authData{
		AuthType:     "SPC",
		RequestID:    &requestID,
		ServerAckMsg: ack,
	}})
	if err != nil {
		return FlexID{}, fmt.Errorf("acknowledge exchange: %w", err)
	}

	if bytes.Contains(body, []byte("secure-mode")) {
		return FlexID{}, fatal(ErrUnsupportedSecureMode, "")
	}

	reply, ok := decodeAuthReply(body)
	if !ok || reply.ClientAckMsg == "" || reply.SessionID.IsZero() {
		return FlexID{}, fatal(ErrSessionUnavailable, truncate(string(body), 200))
	}

	if !p.cipher.ClientAck(reply.ClientAckMsg, skPrime) {
		return FlexID{}, fatal(ErrAckValidation, "")
	}
	return reply.SessionID, nil
}

// decodeAuthReply reads the auth_data member of a pairing response. The TV
// sends it as a JSON-encoded string; a plain object is accepted too.
func decodeAuthReply(body []byte) (authReply, bool) {
	var envelope struct {
		AuthData json.RawMessage `json:"auth_data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.AuthData) == 0 {
		return authReply{}, false
	}

	doc := []byte(envelope.AuthData)
	if doc[0] == '"' {
		var inner string
		if err := json.Unmarshal(doc, &inner); err != nil {
			return authReply{}, false
		}
		doc = []byte(inner)
	}

	var reply authReply
	if err := json.Unmarshal(doc, &reply); err != nil {
		return authReply{}, false
	}
	return reply, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
