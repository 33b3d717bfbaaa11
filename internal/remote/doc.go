// Package remote is the client for TVs that require encrypted pairing
// before they accept remote-control commands.
//
// # Flow
//
// Open pairs if no token is known, negotiates a socket.io session, dials the
// control websocket and starts one receive goroutine. Commands are then
// encrypted with the paired context and written after the companion marker
// frame:
//
//	r, err := remote.New(dev, remote.Options{
//	    HandshakeCipher: &remote.ExecHandshakeCipher{Path: helper},
//	    PinProvider:     remote.NewPromptPinProvider(os.Stdin, os.Stdout),
//	    TokenStore:      remote.NewSQLiteTokenStore(db),
//	    Logger:          log,
//	})
//	if ok, err := r.Open(ctx); ok {
//	    r.Control(ctx, "KEY_VOLUP")
//	}
//
// # Pairing
//
// Pairer walks NoContext, AwaitingPower, CheckingPinDisplay,
// AwaitingPinInput, HelloExchange, AcknowledgeExchange and Paired. A wrong
// PIN loops back to AwaitingPinInput without limit. Secure-mode devices,
// missing session data and failed ack validation end the attempt with a
// *FatalError.
//
// # Errors
//
// ErrDeviceUnreachable marks recoverable network failures. Power timeouts
// and PIN page failures are logged only; callers re-check Power afterwards.
package remote
