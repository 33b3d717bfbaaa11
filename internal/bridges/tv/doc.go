// Package tv bridges Gray Logic's MQTT bus to an encrypted smart TV remote.
//
// The bridge owns one TV, addressed by its device key, and translates
// between MQTT messages and remote operations:
//
//	┌─────────────────┐          ┌─────────────────┐   HTTP + socket.io
//	│   Gray Logic    │   MQTT   │    TV Bridge    │◄──────────────────► TV
//	│      Core       │◄────────►│   (this pkg)    │   Wake-on-LAN
//	└─────────────────┘          └─────────────────┘
//
// # Topics
//
//	graylogic/command/tv/{device}      commands in (key, text, power_*, open, close, pin)
//	graylogic/ack/tv/{device}          one ack per command
//	graylogic/state/tv/{device}        retained TVState
//	graylogic/request/tv/{device}      read_state requests
//	graylogic/response/tv/{request_id} request responses
//	graylogic/health/tv                retained bridge health
//
// # Execution
//
// Commands execute one at a time in arrival order on a worker goroutine.
// The queue is bounded; when full, commands are rejected with
// BRIDGE_ERROR. A "pin" command is delivered straight to the pending
// pairing, so a PIN can complete an "open" that is still waiting for it.
//
// Example command:
//
//	{"id": "c1", "command": "key", "parameters": {"key": "KEY_VOLUP"}}
package tv
