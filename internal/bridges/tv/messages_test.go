package tv

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestTopics(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{CommandSubscribeTopic(), "graylogic/command/tv/+"},
		{RequestSubscribeTopic(), "graylogic/request/tv/+"},
		{StateTopic("living-room"), "graylogic/state/tv/living-room"},
		{AckTopic("living-room"), "graylogic/ack/tv/living-room"},
		{ResponseTopic("req-9"), "graylogic/response/tv/req-9"},
		{HealthTopic(), "graylogic/health/tv"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestCommandMessage_Decode(t *testing.T) {
	raw := `{
		"id": "550e8400-e29b-41d4-a716-446655440000",
		"timestamp": "2026-01-15T10:30:00Z",
		"device_id": "tv-lounge",
		"command": "key",
		"parameters": {"key": "KEY_VOLDOWN"},
		"source": "scene",
		"user_id": "u1"
	}`

	var cmd CommandMessage
	if err := json.Unmarshal([]byte(raw), &cmd); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if cmd.Command != CommandKey || cmd.DeviceID != "tv-lounge" || cmd.Source != "scene" {
		t.Errorf("decoded = %+v", cmd)
	}
	key, err := cmd.stringParam("key")
	if err != nil || key != "KEY_VOLDOWN" {
		t.Errorf("stringParam(key) = %q, %v", key, err)
	}
	if _, err := cmd.stringParam("text"); !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("stringParam(text) error = %v, want ErrInvalidParameters", err)
	}
}

func TestNewAckError(t *testing.T) {
	cmd := CommandMessage{ID: "c1", DeviceID: "tv", Command: CommandPowerOn}

	ack := NewAckError(cmd, "living-room", ErrCodeTimeout, "no response")
	if ack.Status != AckTimeout {
		t.Errorf("Status = %s, want timeout", ack.Status)
	}
	if ack.CommandID != "c1" || ack.Protocol != Protocol || ack.Address != "living-room" {
		t.Errorf("ack = %+v", ack)
	}

	ack = NewAckError(cmd, "living-room", ErrCodeDeviceUnreachable, "off")
	if ack.Status != AckFailed || ack.Error.Code != ErrCodeDeviceUnreachable {
		t.Errorf("ack = %+v", ack)
	}
}

func TestAckMessage_OmitsEmptyError(t *testing.T) {
	data, err := json.Marshal(NewAckMessage(CommandMessage{ID: "c"}, AckAccepted, "x"))
	if err != nil {
		t.Fatal(err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatal(err)
	}
	if _, ok := fields["error"]; ok {
		t.Error("accepted ack should not carry an error field")
	}
	if fields["protocol"] != "tv" {
		t.Errorf("protocol = %v", fields["protocol"])
	}
}

func TestNewStateMessage(t *testing.T) {
	msg := NewStateMessage("living-room", "192.168.1.50", TVState{Power: true, Channel: "connected"})
	if msg.DeviceID != "living-room" || msg.Address != "192.168.1.50" || msg.Protocol != Protocol {
		t.Errorf("msg = %+v", msg)
	}
	if msg.Timestamp.IsZero() || msg.Timestamp.Location().String() != "UTC" {
		t.Errorf("Timestamp = %v, want UTC", msg.Timestamp)
	}
}
