package remote

import (
	"errors"
	"fmt"
)

// Domain errors for the remote package.
var (
	// ErrDeviceUnreachable is returned when the TV does not answer an HTTP
	// request or socket dial. It is recoverable: callers treat it as
	// "device is off" and try again later.
	ErrDeviceUnreachable = errors.New("remote: device unreachable")

	// ErrNotConnected is returned when a command is sent without an open
	// control channel.
	ErrNotConnected = errors.New("remote: control channel not connected")

	// ErrInvalidToken is returned when a persisted token cannot be parsed.
	ErrInvalidToken = errors.New("remote: invalid token")

	// ErrTokenNotFound is returned by a TokenStore with no token for a device.
	ErrTokenNotFound = errors.New("remote: token not found")

	// ErrPairingUnavailable is returned when pairing is required but no
	// handshake cipher or PIN provider is configured.
	ErrPairingUnavailable = errors.New("remote: pairing unavailable")

	// ErrNoMACAddress is returned when power on is requested without a
	// configured MAC address for wake-on-LAN.
	ErrNoMACAddress = errors.New("remote: cannot get MAC address")

	// ErrUnableToPair is the fatal reason when the TV cannot be powered on
	// for pairing.
	ErrUnableToPair = errors.New("remote: unable to pair")

	// ErrUnsupportedSecureMode is the fatal reason when the TV asks for its
	// secure-mode handshake, which this client does not implement.
	ErrUnsupportedSecureMode = errors.New("remote: unsupported secure mode")

	// ErrSessionUnavailable is the fatal reason when the acknowledge step
	// returns no session_id or ClientAckMsg.
	ErrSessionUnavailable = errors.New("remote: unable to get session_id/ack")

	// ErrAckValidation is the fatal reason when the client ack fails
	// validation.
	ErrAckValidation = errors.New("remote: ack validation failed")

	// ErrCipher is returned when the command cipher cannot be built or
	// fails to encrypt.
	ErrCipher = errors.New("remote: cipher failure")
)

// FatalError aborts a pairing attempt. Pairing must restart from scratch.
type FatalError struct {
	// Reason is one of ErrUnableToPair, ErrUnsupportedSecureMode,
	// ErrSessionUnavailable or ErrAckValidation.
	Reason error

	// Detail is optional context such as the raw response.
	Detail string
}

func (e *FatalError) Error() string {
	if e.Detail == "" {
		return e.Reason.Error()
	}
	return fmt.Sprintf("%s: %s", e.Reason.Error(), e.Detail)
}

func (e *FatalError) Unwrap() error {
	return e.Reason
}

func fatal(reason error, detail string) error {
	return &FatalError{Reason: reason, Detail: detail}
}

// IsFatal reports whether err (or anything it wraps) is a *FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
