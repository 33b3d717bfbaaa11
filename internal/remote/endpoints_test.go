package remote

import (
	"strings"
	"testing"
	"time"
)

func TestEndpoints_PairingStepURL(t *testing.T) {
	e := NewEndpoints(DeviceConfig{Host: "192.168.1.50", Port: 8080, AppID: "12345", DeviceID: "abc-def"})

	tests := []struct {
		step int
		want string
	}{
		{0, "http://192.168.1.50:8080/ws/pairing?step=0&app_id=12345&device_id=abc-def&type=1"},
		{1, "http://192.168.1.50:8080/ws/pairing?step=1&app_id=12345&device_id=abc-def"},
		{2, "http://192.168.1.50:8080/ws/pairing?step=2&app_id=12345&device_id=abc-def"},
	}

	for _, tt := range tests {
		if got := e.PairingStepURL(tt.step); got != tt.want {
			t.Errorf("PairingStepURL(%d) = %q, want %q", tt.step, got, tt.want)
		}
	}
}

func TestEndpoints_StepsDifferOnlyInStep(t *testing.T) {
	configs := []DeviceConfig{
		{Host: "10.0.0.1", Port: 8080, AppID: "1", DeviceID: "x"},
		{Host: "tv.local", Port: 9999, AppID: "app id", DeviceID: "a&b"},
		{Host: "::1", Port: 8080, AppID: "12345", DeviceID: "d"},
	}

	for _, dev := range configs {
		e := NewEndpoints(dev)
		normalise := func(u string, step int) string {
			u = strings.TrimSuffix(u, "&type=1")
			return strings.Replace(u, "step="+string(rune('0'+step)), "step=N", 1)
		}
		zero := e.PairingStepURL(0)
		if !strings.HasSuffix(zero, "&type=1") {
			t.Errorf("step 0 URL %q lacks type=1", zero)
		}
		base := normalise(zero, 0)
		for step := 1; step <= 2; step++ {
			u := e.PairingStepURL(step)
			if strings.Contains(u, "type=1") {
				t.Errorf("step %d URL %q carries type=1", step, u)
			}
			if got := normalise(u, step); got != base {
				t.Errorf("step %d URL %q differs from step 0 beyond step/type", step, u)
			}
		}
	}
}

func TestEndpoints_PinAndSocketURLs(t *testing.T) {
	e := NewEndpoints(DeviceConfig{Host: "192.168.1.50", Port: 8080})

	if got, want := e.PinPageURL(), "http://192.168.1.50:8080/ws/apps/CloudPINPage"; got != want {
		t.Errorf("PinPageURL() = %q, want %q", got, want)
	}
	if got, want := e.PinPageRunURL(), "http://192.168.1.50:8080/ws/apps/CloudPINPage/run"; got != want {
		t.Errorf("PinPageRunURL() = %q, want %q", got, want)
	}

	now := time.UnixMilli(1700000000123)
	if got, want := e.SessionNegotiationURL(now), "http://192.168.1.50:8000/socket.io/1/?t=1700000000123"; got != want {
		t.Errorf("SessionNegotiationURL() = %q, want %q", got, want)
	}
	if got, want := e.ControlSocketURL("sess42"), "ws://192.168.1.50:8000/socket.io/1/websocket/sess42"; got != want {
		t.Errorf("ControlSocketURL() = %q, want %q", got, want)
	}
}
