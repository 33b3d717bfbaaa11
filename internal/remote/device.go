package remote

// DeviceConfig describes the TV this client talks to.
//
// Token and Paired are updated by pairing; everything else is read-only.
type DeviceConfig struct {
	// Key identifies the device in the token store.
	Key string

	Name string
	Host string

	// Port is the pairing HTTP port, usually 8080.
	Port int

	// SocketPort is the socket.io port. Default: 8000
	SocketPort int

	AppID    string
	DeviceID string

	// ID is the identity handed to the handshake cipher.
	ID string

	// Token is a persisted "{ctx}:{session_id}" string, or empty.
	Token string

	Paired bool

	// MACAddress enables wake-on-LAN. Power on fails without it.
	MACAddress string
}
