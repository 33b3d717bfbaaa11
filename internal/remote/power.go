package remote

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"
)

// DefaultWakeAddress is the UDP broadcast target for magic packets.
const DefaultWakeAddress = "255.255.255.255:9"

// Waker sends the out-of-band wake signal.
type Waker interface {
	Wake(ctx context.Context, mac string) error
}

// MagicPacketWaker sends a wake-on-LAN magic packet over UDP.
type MagicPacketWaker struct {
	// Address is the host:port to send to. Default: DefaultWakeAddress
	Address string
}

// Wake implements Waker.
func (w *MagicPacketWaker) Wake(ctx context.Context, mac string) error {
	packet, err := MagicPacket(mac)
	if err != nil {
		return err
	}
	addr := w.Address
	if addr == "" {
		addr = DefaultWakeAddress
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", addr, err)
	}
	defer conn.Close()

	if _, err := conn.Write(packet); err != nil {
		return fmt.Errorf("sending magic packet: %w", err)
	}
	return nil
}

// MagicPacket builds the 102-byte wake-on-LAN payload: six 0xFF bytes
// followed by the MAC address sixteen times.
func MagicPacket(mac string) ([]byte, error) {
	hw, err := net.ParseMAC(mac)
	if err != nil {
		return nil, fmt.Errorf("parsing MAC address %q: %w", mac, err)
	}
	if len(hw) != 6 {
		return nil, fmt.Errorf("MAC address %q is not 6 bytes", mac)
	}
	packet := bytes.Repeat([]byte{0xFF}, 6)
	for i := 0; i < 16; i++ {
		packet = append(packet, hw...)
	}
	return packet, nil
}

// PowerProbe reports whether the TV is on.
type PowerProbe interface {
	PoweredOn(ctx context.Context) bool
}

// TCPPowerProbe considers the TV on when a TCP connection to Address
// succeeds within Timeout.
type TCPPowerProbe struct {
	Address string
	Timeout time.Duration
}

// PoweredOn implements PowerProbe.
func (p *TCPPowerProbe) PoweredOn(ctx context.Context) bool {
	timeout := p.Timeout
	if timeout == 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", p.Address)
	if err != nil {
		return false
	}
	conn.Close() //nolint:errcheck // Probe only
	return true
}
