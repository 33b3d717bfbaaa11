package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every topic the bridge uses.
//
// Bridge topics follow the flat scheme graylogic/{category}/{protocol}/{address}.
const TopicPrefix = "graylogic"

// Topics builds MQTT topic strings.
//
//	topics := mqtt.Topics{}
//	topics.BridgeState("tv", "living-room")
//	// "graylogic/state/tv/living-room"
type Topics struct{}

// BridgeState is the retained state topic of one device.
func (Topics) BridgeState(protocol, address string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, protocol, address)
}

// BridgeCommand is the command topic of one device.
func (Topics) BridgeCommand(protocol, address string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, protocol, address)
}

// BridgeAck carries command acknowledgements for one device.
func (Topics) BridgeAck(protocol, address string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, protocol, address)
}

// BridgeRequest is the request topic of one device.
func (Topics) BridgeRequest(protocol, address string) string {
	return fmt.Sprintf("%s/request/%s/%s", TopicPrefix, protocol, address)
}

// BridgeResponse carries the response to a request, keyed by request id.
func (Topics) BridgeResponse(protocol, requestID string) string {
	return fmt.Sprintf("%s/response/%s/%s", TopicPrefix, protocol, requestID)
}

// BridgeHealth is the retained health topic of a bridge.
func (Topics) BridgeHealth(protocol string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, protocol)
}

// BridgeCommands matches the command topics of every device of a protocol.
func (Topics) BridgeCommands(protocol string) string {
	return fmt.Sprintf("%s/command/%s/+", TopicPrefix, protocol)
}

// BridgeRequests matches the request topics of every device of a protocol.
func (Topics) BridgeRequests(protocol string) string {
	return fmt.Sprintf("%s/request/%s/+", TopicPrefix, protocol)
}

// SystemStatus is the retained online/offline topic of one client.
// The client's last will is published here.
func (Topics) SystemStatus(clientID string) string {
	return fmt.Sprintf("%s/system/status/%s", TopicPrefix, clientID)
}

// Retainable reports whether topic carries current state, so a retained
// copy stays meaningful: device state, bridge health and client status.
func (Topics) Retainable(topic string) bool {
	for _, category := range []string{"state", "health", "system/status"} {
		if strings.HasPrefix(topic, TopicPrefix+"/"+category+"/") {
			return true
		}
	}
	return false
}
