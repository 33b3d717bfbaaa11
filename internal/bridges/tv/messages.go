package tv

import (
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-tvbridge/internal/infrastructure/mqtt"
)

// Protocol is the protocol segment of every bridge topic.
const Protocol = "tv"

// Command names accepted on graylogic/command/tv/{device}.
const (
	CommandKey         = "key"
	CommandPowerOn     = "power_on"
	CommandPowerOff    = "power_off"
	CommandPowerToggle = "power_toggle"
	CommandText        = "text"
	CommandOpen        = "open"
	CommandClose       = "close"
	CommandPin         = "pin"
)

// ActionReadState is the only request action.
const ActionReadState = "read_state"

// CommandMessage asks the bridge to act on a TV.
// Topic: graylogic/command/tv/{device}
type CommandMessage struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`

	// Command is one of the Command* constants.
	Command string `json:"command"`

	// Parameters by command:
	//   key:  {"key": "KEY_VOLUP"}
	//   text: {"text": "hello"}
	//   pin:  {"pin": "1234"}
	Parameters map[string]any `json:"parameters,omitempty"`

	Source string `json:"source,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

// stringParam returns a non-empty string parameter.
func (m CommandMessage) stringParam(name string) (string, error) {
	v, ok := m.Parameters[name].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%w: %s requires a non-empty %q", ErrInvalidParameters, m.Command, name)
	}
	return v, nil
}

// AckStatus is the outcome reported for a command.
type AckStatus string

const (
	AckAccepted AckStatus = "accepted"
	AckQueued   AckStatus = "queued"
	AckFailed   AckStatus = "failed"
	AckTimeout  AckStatus = "timeout"
)

// AckMessage reports what happened to a command.
// Topic: graylogic/ack/tv/{device}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Command   string    `json:"command"`
	Status    AckStatus `json:"status"`
	Protocol  string    `json:"protocol"`
	Address   string    `json:"address"`
	Error     *AckError `json:"error,omitempty"`
}

// AckError describes a failed command.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes carried in AckError and ResponseError.
const (
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeProtocolError     = "PROTOCOL_ERROR"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeNotConfigured     = "NOT_CONFIGURED"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
)

// NewAckMessage builds an ack for cmd.
func NewAckMessage(cmd CommandMessage, status AckStatus, address string) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Command:   cmd.Command,
		Status:    status,
		Protocol:  Protocol,
		Address:   address,
	}
}

// NewAckError builds a failed (or timed out) ack for cmd.
func NewAckError(cmd CommandMessage, address, code, message string) AckMessage {
	status := AckFailed
	if code == ErrCodeTimeout {
		status = AckTimeout
	}
	ack := NewAckMessage(cmd, status, address)
	ack.Error = &AckError{Code: code, Message: message}
	return ack
}

// TVState is the retained state of one TV.
type TVState struct {
	Power     bool   `json:"power"`
	Connected bool   `json:"connected"`
	Paired    bool   `json:"paired"`
	Channel   string `json:"channel"`
	Pairing   string `json:"pairing"`
}

// StateMessage carries TVState.
// Topic: graylogic/state/tv/{device}, QoS 1, retained.
type StateMessage struct {
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
	State     TVState   `json:"state"`
	Protocol  string    `json:"protocol"`
	Address   string    `json:"address"`
}

// NewStateMessage builds a state message for device.
func NewStateMessage(device, host string, state TVState) StateMessage {
	return StateMessage{
		DeviceID:  device,
		Timestamp: time.Now().UTC(),
		State:     state,
		Protocol:  Protocol,
		Address:   host,
	}
}

// RequestMessage asks the bridge for information.
// Topic: graylogic/request/tv/{device}
type RequestMessage struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	DeviceID  string    `json:"device_id,omitempty"`
}

// ResponseMessage answers a RequestMessage.
// Topic: graylogic/response/tv/{request_id}
type ResponseMessage struct {
	RequestID string         `json:"request_id"`
	Timestamp time.Time      `json:"timestamp"`
	Success   bool           `json:"success"`
	Data      *TVState       `json:"data,omitempty"`
	Error     *ResponseError `json:"error,omitempty"`
}

// ResponseError describes a failed request.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthStatus is the operational status of the bridge.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStarting HealthStatus = "starting"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is published retained on graylogic/health/tv.
type HealthMessage struct {
	Bridge        string            `json:"bridge"`
	Timestamp     time.Time         `json:"timestamp"`
	Status        HealthStatus      `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Device        *DeviceHealth     `json:"device,omitempty"`
	Statistics    *BridgeStatistics `json:"statistics,omitempty"`
	Reason        string            `json:"reason,omitempty"`
}

// DeviceHealth summarises the TV in a health message.
type DeviceHealth struct {
	Key       string `json:"key"`
	Host      string `json:"host"`
	Paired    bool   `json:"paired"`
	Connected bool   `json:"connected"`
	Power     bool   `json:"power"`
}

// BridgeStatistics counts commands handled since start.
type BridgeStatistics struct {
	CommandsReceived uint64 `json:"commands_received"`
	CommandsFailed   uint64 `json:"commands_failed"`
}

// CommandSubscribeTopic matches commands for every TV.
func CommandSubscribeTopic() string {
	return mqtt.Topics{}.BridgeCommands(Protocol)
}

// RequestSubscribeTopic matches requests for every TV.
func RequestSubscribeTopic() string {
	return mqtt.Topics{}.BridgeRequests(Protocol)
}

// StateTopic is the retained state topic of device.
func StateTopic(device string) string {
	return mqtt.Topics{}.BridgeState(Protocol, device)
}

// AckTopic carries command acks for device.
func AckTopic(device string) string {
	return mqtt.Topics{}.BridgeAck(Protocol, device)
}

// ResponseTopic carries the response to requestID.
func ResponseTopic(requestID string) string {
	return mqtt.Topics{}.BridgeResponse(Protocol, requestID)
}

// HealthTopic is the retained bridge health topic.
func HealthTopic() string {
	return mqtt.Topics{}.BridgeHealth(Protocol)
}
