package remote

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

// DefaultSocketPort is the TV's socket.io port.
const DefaultSocketPort = 8000

// Endpoints builds the URLs used during pairing and for the control socket.
// It is a pure value: no method performs I/O.
type Endpoints struct {
	Host       string
	Port       int
	SocketPort int
	AppID      string
	DeviceID   string
}

// NewEndpoints derives Endpoints from a device configuration.
func NewEndpoints(dev DeviceConfig) Endpoints {
	socketPort := dev.SocketPort
	if socketPort == 0 {
		socketPort = DefaultSocketPort
	}
	return Endpoints{
		Host:       dev.Host,
		Port:       dev.Port,
		SocketPort: socketPort,
		AppID:      dev.AppID,
		DeviceID:   dev.DeviceID,
	}
}

func (e Endpoints) base() string {
	return "http://" + net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoints) socketBase(scheme string) string {
	return scheme + "://" + net.JoinHostPort(e.Host, strconv.Itoa(e.SocketPort))
}

// PairingStepURL returns the pairing URL for step 0, 1 or 2.
// Only step 0 carries type=1.
func (e Endpoints) PairingStepURL(step int) string {
	u := fmt.Sprintf("%s/ws/pairing?step=%d&app_id=%s&device_id=%s",
		e.base(), step, url.QueryEscape(e.AppID), url.QueryEscape(e.DeviceID))
	if step == 0 {
		u += "&type=1"
	}
	return u
}

// PinPageURL is the on-screen PIN page resource.
func (e Endpoints) PinPageURL() string {
	return e.base() + "/ws/apps/CloudPINPage"
}

// PinPageRunURL is the running instance of the PIN page.
func (e Endpoints) PinPageRunURL() string {
	return e.PinPageURL() + "/run"
}

// SessionNegotiationURL is the socket.io handshake URL stamped with now.
func (e Endpoints) SessionNegotiationURL(now time.Time) string {
	return fmt.Sprintf("%s/socket.io/1/?t=%d", e.socketBase("http"), now.UnixMilli())
}

// ControlSocketURL is the websocket URL for a negotiated session token.
func (e Endpoints) ControlSocketURL(sessionToken string) string {
	return e.socketBase("ws") + "/socket.io/1/websocket/" + sessionToken
}
