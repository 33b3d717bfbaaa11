package tv

import "errors"

// Domain errors for the TV bridge.
var (
	// ErrUnknownCommand is returned for a command name the bridge does not handle.
	ErrUnknownCommand = errors.New("tv: unknown command")

	// ErrInvalidParameters is returned when a command lacks a required parameter.
	ErrInvalidParameters = errors.New("tv: invalid parameters")

	// ErrQueueFull is returned when too many commands are waiting.
	ErrQueueFull = errors.New("tv: command queue full")

	// ErrStopped is returned for commands received after Stop.
	ErrStopped = errors.New("tv: bridge stopped")
)
