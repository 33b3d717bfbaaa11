package tv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/nerrad567/gray-logic-tvbridge/internal/remote"
)

const testDevice = "living-room"

type testBridge struct {
	bridge    *Bridge
	mqtt      *MockMQTTClient
	remote    *fakeRemote
	pins      *fakePins
	telemetry *fakeTelemetry
	metrics   *fakeMetrics
}

// newTestBridge starts a bridge and waits for its initial state publish.
func newTestBridge(t *testing.T, mutate func(*BridgeOptions)) *testBridge {
	t.Helper()

	tb := &testBridge{
		mqtt:      NewMockMQTTClient(),
		remote:    newFakeRemote(),
		pins:      &fakePins{},
		telemetry: &fakeTelemetry{},
		metrics:   &fakeMetrics{},
	}
	opts := BridgeOptions{
		DeviceKey:  testDevice,
		Remote:     tb.remote,
		MQTTClient: tb.mqtt,
		Pins:       tb.pins,
		Telemetry:  tb.telemetry,
		Metrics:    tb.metrics,
		Version:    "test",
	}
	if mutate != nil {
		mutate(&opts)
	}

	b, err := NewBridge(opts)
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	tb.bridge = b

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		b.Stop()
		cancel()
	})
	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	eventually(t, "initial state", func() bool {
		return len(tb.mqtt.PublishedOn(StateTopic(testDevice))) > 0
	})
	return tb
}

func (tb *testBridge) send(t *testing.T, device string, cmd CommandMessage) {
	t.Helper()
	payload, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("marshal command: %v", err)
	}
	topic := "graylogic/command/tv/" + device
	if err := tb.mqtt.SimulateMessage(topic, payload); err != nil {
		t.Fatalf("SimulateMessage(%s) error = %v", topic, err)
	}
}

func TestNewBridge_Validation(t *testing.T) {
	mock := NewMockMQTTClient()
	r := newFakeRemote()

	tests := []struct {
		name string
		opts BridgeOptions
	}{
		{"no remote", BridgeOptions{DeviceKey: testDevice, MQTTClient: mock}},
		{"no mqtt", BridgeOptions{DeviceKey: testDevice, Remote: r}},
		{"no device key", BridgeOptions{Remote: r, MQTTClient: mock}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewBridge(tt.opts); err == nil {
				t.Error("NewBridge() should fail")
			}
		})
	}
}

func TestBridge_StartSubscribesAndReportsHealth(t *testing.T) {
	tb := newTestBridge(t, nil)

	subs := tb.mqtt.subscriptions
	if len(subs) != 2 {
		t.Fatalf("subscriptions = %d, want 2", len(subs))
	}
	if subs[0].Topic != "graylogic/command/tv/+" || subs[1].Topic != "graylogic/request/tv/+" {
		t.Errorf("subscriptions = %q, %q", subs[0].Topic, subs[1].Topic)
	}

	health := tb.mqtt.PublishedOn(HealthTopic())
	if len(health) < 2 {
		t.Fatalf("health messages = %d, want >= 2", len(health))
	}
	var first, second HealthMessage
	if err := json.Unmarshal(health[0].Payload, &first); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(health[1].Payload, &second); err != nil {
		t.Fatal(err)
	}
	if first.Status != HealthStarting {
		t.Errorf("first health status = %s, want starting", first.Status)
	}
	if second.Status != HealthHealthy {
		t.Errorf("second health status = %s, want healthy", second.Status)
	}
	if second.Bridge != "tv-"+testDevice {
		t.Errorf("Bridge = %q", second.Bridge)
	}
	if !health[1].Retained {
		t.Error("health should be retained")
	}

	state := tb.mqtt.PublishedOn(StateTopic(testDevice))
	if !state[0].Retained || state[0].QoS != 1 {
		t.Errorf("state publish retained=%v qos=%d, want retained QoS 1", state[0].Retained, state[0].QoS)
	}
}

func TestBridge_KeyCommand(t *testing.T) {
	tb := newTestBridge(t, nil)

	tb.send(t, testDevice, CommandMessage{
		ID:         "cmd-1",
		Command:    CommandKey,
		Parameters: map[string]any{"key": "KEY_VOLUP"},
	})

	ack := waitAck(t, tb.mqtt, testDevice, "cmd-1")
	if ack.Status != AckAccepted {
		t.Fatalf("Status = %s, want accepted (error %+v)", ack.Status, ack.Error)
	}
	if ack.Protocol != Protocol || ack.Address != testDevice {
		t.Errorf("ack protocol/address = %s/%s", ack.Protocol, ack.Address)
	}

	calls := tb.remote.commandCalls()
	if len(calls) != 1 || calls[0] != "control:KEY_VOLUP" {
		t.Errorf("calls = %v", calls)
	}

	eventually(t, "metrics", func() bool {
		observed, _, _ := tb.metrics.snapshot()
		return len(observed) == 1 && observed[0] == "key:ok"
	})
	if got := tb.telemetry.commandRecords(); len(got) != 1 || got[0] != "key:ok" {
		t.Errorf("telemetry commands = %v", got)
	}
}

func TestBridge_TextCommand(t *testing.T) {
	tb := newTestBridge(t, nil)

	tb.send(t, testDevice, CommandMessage{
		ID:         "cmd-text",
		Command:    CommandText,
		Parameters: map[string]any{"text": "hello"},
	})

	ack := waitAck(t, tb.mqtt, testDevice, "cmd-text")
	if ack.Status != AckAccepted {
		t.Fatalf("Status = %s, want accepted", ack.Status)
	}
	if calls := tb.remote.commandCalls(); len(calls) != 1 || calls[0] != "text:hello" {
		t.Errorf("calls = %v", calls)
	}
}

func TestBridge_RejectedCommands(t *testing.T) {
	tests := []struct {
		name     string
		device   string
		cmd      CommandMessage
		wantCode string
	}{
		{
			name:     "unknown command",
			device:   testDevice,
			cmd:      CommandMessage{ID: "r1", Command: "dim"},
			wantCode: ErrCodeInvalidCommand,
		},
		{
			name:     "key without parameter",
			device:   testDevice,
			cmd:      CommandMessage{ID: "r2", Command: CommandKey},
			wantCode: ErrCodeInvalidParameters,
		},
		{
			name:     "blank text",
			device:   testDevice,
			cmd:      CommandMessage{ID: "r3", Command: CommandText, Parameters: map[string]any{"text": "  "}},
			wantCode: ErrCodeInvalidParameters,
		},
		{
			name:     "non-string key",
			device:   testDevice,
			cmd:      CommandMessage{ID: "r4", Command: CommandKey, Parameters: map[string]any{"key": 7}},
			wantCode: ErrCodeInvalidParameters,
		},
		{
			name:     "other device",
			device:   "bedroom",
			cmd:      CommandMessage{ID: "r5", Command: CommandKey, Parameters: map[string]any{"key": "KEY_MUTE"}},
			wantCode: ErrCodeNotConfigured,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := newTestBridge(t, nil)
			tb.send(t, tt.device, tt.cmd)

			ack := waitAck(t, tb.mqtt, tt.device, tt.cmd.ID)
			if ack.Status != AckFailed {
				t.Errorf("Status = %s, want failed", ack.Status)
			}
			if ack.Error == nil || ack.Error.Code != tt.wantCode {
				t.Errorf("Error = %+v, want code %s", ack.Error, tt.wantCode)
			}
			if calls := tb.remote.commandCalls(); len(calls) != 0 {
				t.Errorf("remote calls = %v, want none", calls)
			}

			stats := tb.bridge.Statistics()
			if stats.CommandsReceived != 1 || stats.CommandsFailed != 1 {
				t.Errorf("Statistics() = %+v", stats)
			}
		})
	}
}

func TestBridge_InvalidJSONIgnored(t *testing.T) {
	tb := newTestBridge(t, nil)

	if err := tb.mqtt.SimulateMessage("graylogic/command/tv/"+testDevice, []byte("{not json")); err != nil {
		t.Fatalf("SimulateMessage() error = %v", err)
	}
	if acks := decodeAcks(t, tb.mqtt, testDevice); len(acks) != 0 {
		t.Errorf("acks = %d, want 0", len(acks))
	}
	if got := tb.bridge.Statistics().CommandsReceived; got != 0 {
		t.Errorf("CommandsReceived = %d, want 0", got)
	}
}

func TestBridge_HandleMQTTMessage_BadTopic(t *testing.T) {
	tb := newTestBridge(t, nil)

	if err := tb.bridge.handleMQTTMessage("graylogic/command", nil); err == nil {
		t.Error("short topic should fail")
	}
	if err := tb.bridge.handleMQTTMessage("graylogic/state/tv/"+testDevice, nil); err == nil {
		t.Error("state topic should fail")
	}
}

func TestBridge_KeyNotDelivered(t *testing.T) {
	tb := newTestBridge(t, nil)
	tb.remote.mu.Lock()
	tb.remote.controlOK = false
	tb.remote.mu.Unlock()

	tb.send(t, testDevice, CommandMessage{ID: "k", Command: CommandKey, Parameters: map[string]any{"key": "KEY_HOME"}})

	ack := waitAck(t, tb.mqtt, testDevice, "k")
	if ack.Error == nil || ack.Error.Code != ErrCodeDeviceUnreachable {
		t.Errorf("Error = %+v, want DEVICE_UNREACHABLE", ack.Error)
	}
	eventually(t, "telemetry", func() bool {
		got := tb.telemetry.commandRecords()
		return len(got) == 1 && got[0] == "key:error"
	})
}

func TestBridge_PowerCommands(t *testing.T) {
	tests := []struct {
		name       string
		command    string
		setup      func(*fakeRemote)
		wantStatus AckStatus
		wantCode   string
		wantPower  bool
	}{
		{
			name:       "power on",
			command:    CommandPowerOn,
			wantStatus: AckAccepted,
			wantPower:  true,
		},
		{
			name:       "power on without MAC",
			command:    CommandPowerOn,
			setup:      func(r *fakeRemote) { r.setPowerErr = fmt.Errorf("wake: %w", remote.ErrNoMACAddress) },
			wantStatus: AckFailed,
			wantCode:   ErrCodeNotConfigured,
		},
		{
			name:       "power on never confirmed",
			command:    CommandPowerOn,
			setup:      func(r *fakeRemote) { r.setPowerOK = false },
			wantStatus: AckTimeout,
			wantCode:   ErrCodeTimeout,
		},
		{
			name:       "power off",
			command:    CommandPowerOff,
			setup:      func(r *fakeRemote) { r.status.Power = true },
			wantStatus: AckAccepted,
			wantPower:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := newTestBridge(t, nil)
			if tt.setup != nil {
				tb.remote.mu.Lock()
				tt.setup(tb.remote)
				tb.remote.mu.Unlock()
			}

			tb.send(t, testDevice, CommandMessage{ID: "p", Command: tt.command})

			ack := waitAck(t, tb.mqtt, testDevice, "p")
			if ack.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", ack.Status, tt.wantStatus)
			}
			if tt.wantCode != "" && (ack.Error == nil || ack.Error.Code != tt.wantCode) {
				t.Errorf("Error = %+v, want code %s", ack.Error, tt.wantCode)
			}
			if tt.wantStatus == AckAccepted {
				eventually(t, "state after power", func() bool {
					return lastState(t, tb.mqtt, testDevice).State.Power == tt.wantPower
				})
			}
		})
	}
}

func TestBridge_PowerToggleSendsKeyPower(t *testing.T) {
	tb := newTestBridge(t, nil)

	tb.send(t, testDevice, CommandMessage{ID: "t", Command: CommandPowerToggle})

	if ack := waitAck(t, tb.mqtt, testDevice, "t"); ack.Status != AckAccepted {
		t.Fatalf("Status = %s, want accepted", ack.Status)
	}
	if calls := tb.remote.commandCalls(); len(calls) != 1 || calls[0] != "control:"+remote.KeyPower {
		t.Errorf("calls = %v", calls)
	}
}

func TestBridge_OpenOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*fakeRemote)
		wantCode string
	}{
		{"opened", nil, ""},
		{"unreachable", func(r *fakeRemote) { r.openOK = false }, ErrCodeDeviceUnreachable},
		{
			"fatal pairing error",
			func(r *fakeRemote) {
				r.openOK = false
				r.openErr = &remote.FatalError{Reason: remote.ErrAckValidation}
			},
			ErrCodeProtocolError,
		},
		{
			"other error",
			func(r *fakeRemote) {
				r.openOK = false
				r.openErr = remote.ErrPairingUnavailable
			},
			ErrCodeBridgeError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := newTestBridge(t, nil)
			if tt.setup != nil {
				tb.remote.mu.Lock()
				tt.setup(tb.remote)
				tb.remote.mu.Unlock()
			}

			tb.send(t, testDevice, CommandMessage{ID: "o", Command: CommandOpen})
			ack := waitAck(t, tb.mqtt, testDevice, "o")

			if tt.wantCode == "" {
				if ack.Status != AckAccepted {
					t.Errorf("Status = %s, want accepted (error %+v)", ack.Status, ack.Error)
				}
				eventually(t, "connected state", func() bool {
					return lastState(t, tb.mqtt, testDevice).State.Connected
				})
				return
			}
			if ack.Error == nil || ack.Error.Code != tt.wantCode {
				t.Errorf("Error = %+v, want code %s", ack.Error, tt.wantCode)
			}
		})
	}
}

func TestBridge_CloseCommand(t *testing.T) {
	tb := newTestBridge(t, nil)

	tb.send(t, testDevice, CommandMessage{ID: "c", Command: CommandClose})
	if ack := waitAck(t, tb.mqtt, testDevice, "c"); ack.Status != AckAccepted {
		t.Fatalf("Status = %s, want accepted", ack.Status)
	}
	if calls := tb.remote.commandCalls(); len(calls) != 1 || calls[0] != "close" {
		t.Errorf("calls = %v", calls)
	}
}

func TestBridge_CommandsRunInOrder(t *testing.T) {
	tb := newTestBridge(t, nil)

	keys := []string{"KEY_1", "KEY_2", "KEY_3", "KEY_ENTER"}
	for i, key := range keys {
		tb.send(t, testDevice, CommandMessage{
			ID:         fmt.Sprintf("seq-%d", i),
			Command:    CommandKey,
			Parameters: map[string]any{"key": key},
		})
	}
	waitAck(t, tb.mqtt, testDevice, "seq-3")

	calls := tb.remote.commandCalls()
	if len(calls) != len(keys) {
		t.Fatalf("calls = %v", calls)
	}
	for i, key := range keys {
		if calls[i] != "control:"+key {
			t.Errorf("calls[%d] = %s, want control:%s", i, calls[i], key)
		}
	}
}

func TestBridge_PinBypassesQueue(t *testing.T) {
	tb := newTestBridge(t, nil)
	started := make(chan struct{})
	release := make(chan struct{})
	tb.remote.mu.Lock()
	tb.remote.started = started
	tb.remote.release = release
	tb.remote.mu.Unlock()

	tb.send(t, testDevice, CommandMessage{ID: "open", Command: CommandOpen})
	<-started

	tb.send(t, testDevice, CommandMessage{ID: "pin", Command: CommandPin, Parameters: map[string]any{"pin": "1234"}})

	if ack := waitAck(t, tb.mqtt, testDevice, "pin"); ack.Status != AckAccepted {
		t.Fatalf("pin Status = %s, want accepted", ack.Status)
	}
	if got := tb.pins.submitted(); len(got) != 1 || got[0] != "1234" {
		t.Errorf("submitted pins = %v", got)
	}

	close(release)
	if ack := waitAck(t, tb.mqtt, testDevice, "open"); ack.Status != AckAccepted {
		t.Errorf("open Status = %s, want accepted", ack.Status)
	}
}

func TestBridge_PinRejected(t *testing.T) {
	t.Run("no pairing in progress", func(t *testing.T) {
		tb := newTestBridge(t, nil)
		tb.pins.err = remote.ErrNoPinRequested

		tb.send(t, testDevice, CommandMessage{ID: "pin", Command: CommandPin, Parameters: map[string]any{"pin": "1234"}})

		ack := waitAck(t, tb.mqtt, testDevice, "pin")
		if ack.Error == nil || ack.Error.Code != ErrCodeInvalidCommand {
			t.Errorf("Error = %+v, want INVALID_COMMAND", ack.Error)
		}
	})

	t.Run("no pin entry configured", func(t *testing.T) {
		tb := newTestBridge(t, func(o *BridgeOptions) { o.Pins = nil })

		tb.send(t, testDevice, CommandMessage{ID: "pin", Command: CommandPin, Parameters: map[string]any{"pin": "1234"}})

		ack := waitAck(t, tb.mqtt, testDevice, "pin")
		if ack.Error == nil || ack.Error.Code != ErrCodeNotConfigured {
			t.Errorf("Error = %+v, want NOT_CONFIGURED", ack.Error)
		}
	})
}

func TestBridge_QueueFull(t *testing.T) {
	tb := newTestBridge(t, nil)
	started := make(chan struct{})
	tb.remote.mu.Lock()
	tb.remote.started = started
	tb.remote.release = make(chan struct{})
	tb.remote.mu.Unlock()

	tb.send(t, testDevice, CommandMessage{ID: "block", Command: CommandOpen})
	<-started

	for i := 0; i < queueSize; i++ {
		tb.send(t, testDevice, CommandMessage{
			ID:         fmt.Sprintf("q-%d", i),
			Command:    CommandKey,
			Parameters: map[string]any{"key": "KEY_MUTE"},
		})
	}
	tb.send(t, testDevice, CommandMessage{ID: "overflow", Command: CommandKey, Parameters: map[string]any{"key": "KEY_MUTE"}})

	ack := waitAck(t, tb.mqtt, testDevice, "overflow")
	if ack.Error == nil || ack.Error.Code != ErrCodeBridgeError || ack.Error.Message != ErrQueueFull.Error() {
		t.Errorf("Error = %+v, want queue full", ack.Error)
	}
	// Cleanup's Stop cancels the blocked open.
}

func TestBridge_CommandAfterStop(t *testing.T) {
	tb := newTestBridge(t, nil)
	tb.bridge.Stop()

	tb.send(t, testDevice, CommandMessage{ID: "late", Command: CommandKey, Parameters: map[string]any{"key": "KEY_MUTE"}})

	ack := waitAck(t, tb.mqtt, testDevice, "late")
	if ack.Error == nil || ack.Error.Message != ErrStopped.Error() {
		t.Errorf("Error = %+v, want stopped", ack.Error)
	}
}

func TestBridge_StopPublishesStopping(t *testing.T) {
	tb := newTestBridge(t, nil)
	tb.bridge.Stop()
	tb.bridge.Stop()

	health := tb.mqtt.PublishedOn(HealthTopic())
	var last HealthMessage
	if err := json.Unmarshal(health[len(health)-1].Payload, &last); err != nil {
		t.Fatal(err)
	}
	if last.Status != HealthStopping {
		t.Errorf("final health = %s, want stopping", last.Status)
	}

	stopping := 0
	for _, h := range health {
		var msg HealthMessage
		if err := json.Unmarshal(h.Payload, &msg); err == nil && msg.Status == HealthStopping {
			stopping++
		}
	}
	if stopping != 1 {
		t.Errorf("stopping messages = %d, want 1", stopping)
	}
}

func TestBridge_TelemetryRecordsPowerTransitions(t *testing.T) {
	tb := newTestBridge(t, nil)

	tb.send(t, testDevice, CommandMessage{ID: "k", Command: CommandKey, Parameters: map[string]any{"key": "KEY_MUTE"}})
	waitAck(t, tb.mqtt, testDevice, "k")
	tb.send(t, testDevice, CommandMessage{ID: "on", Command: CommandPowerOn})
	waitAck(t, tb.mqtt, testDevice, "on")

	eventually(t, "power transitions", func() bool {
		got := tb.telemetry.powerRecords()
		return len(got) == 2 && !got[0] && got[1]
	})

	_, power, _ := tb.metrics.snapshot()
	if !power {
		t.Error("metrics power gauge should be on")
	}
}

func TestBridge_ReadStateRequest(t *testing.T) {
	tb := newTestBridge(t, nil)
	tb.remote.mu.Lock()
	tb.remote.status.Power = true
	tb.remote.mu.Unlock()

	req, _ := json.Marshal(RequestMessage{RequestID: "req-1", Action: ActionReadState})
	if err := tb.mqtt.SimulateMessage("graylogic/request/tv/"+testDevice, req); err != nil {
		t.Fatal(err)
	}

	msgs := tb.mqtt.PublishedOn(ResponseTopic("req-1"))
	if len(msgs) != 1 {
		t.Fatalf("responses = %d, want 1", len(msgs))
	}
	var resp ResponseMessage
	if err := json.Unmarshal(msgs[0].Payload, &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.Data == nil {
		t.Fatalf("response = %+v, want success with data", resp)
	}
	if !resp.Data.Power || !resp.Data.Paired {
		t.Errorf("Data = %+v", resp.Data)
	}
	if !lastState(t, tb.mqtt, testDevice).State.Power {
		t.Error("read_state should republish state")
	}
}

func TestBridge_RequestErrors(t *testing.T) {
	tests := []struct {
		name     string
		device   string
		req      RequestMessage
		wantCode string
	}{
		{"unknown action", testDevice, RequestMessage{RequestID: "e1", Action: "reboot"}, ErrCodeInvalidCommand},
		{"other device", "bedroom", RequestMessage{RequestID: "e2", Action: ActionReadState}, ErrCodeNotConfigured},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := newTestBridge(t, nil)
			payload, _ := json.Marshal(tt.req)
			if err := tb.mqtt.SimulateMessage("graylogic/request/tv/"+tt.device, payload); err != nil {
				t.Fatal(err)
			}

			msgs := tb.mqtt.PublishedOn(ResponseTopic(tt.req.RequestID))
			if len(msgs) != 1 {
				t.Fatalf("responses = %d, want 1", len(msgs))
			}
			var resp ResponseMessage
			if err := json.Unmarshal(msgs[0].Payload, &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Success || resp.Error == nil || resp.Error.Code != tt.wantCode {
				t.Errorf("response = %+v, want error %s", resp, tt.wantCode)
			}
		})
	}

	t.Run("missing request id", func(t *testing.T) {
		tb := newTestBridge(t, nil)
		before := len(tb.mqtt.GetPublished())
		payload, _ := json.Marshal(RequestMessage{Action: ActionReadState})
		if err := tb.mqtt.SimulateMessage("graylogic/request/tv/"+testDevice, payload); err != nil {
			t.Fatal(err)
		}
		if after := len(tb.mqtt.GetPublished()); after != before {
			t.Errorf("published %d messages, want none", after-before)
		}
	})
}

func TestTimeoutFor(t *testing.T) {
	if got := timeoutFor(CommandOpen); got != openTimeout {
		t.Errorf("open = %v", got)
	}
	if got := timeoutFor(CommandPowerOn); got != powerTimeout {
		t.Errorf("power_on = %v", got)
	}
	if got := timeoutFor(CommandKey); got != commandTimeout {
		t.Errorf("key = %v", got)
	}
}

func TestValidateCommand_UnknownIsTyped(t *testing.T) {
	err := validateCommand(CommandMessage{Command: "launch"})
	if !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("validateCommand() = %v, want ErrUnknownCommand", err)
	}
	err = validateCommand(CommandMessage{Command: CommandPin})
	if !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("validateCommand(pin) = %v, want ErrInvalidParameters", err)
	}
}

func TestBridge_OpenRecordsPairingOutcome(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeRemote)
		want  string
	}{
		{"paired", nil, PairingPaired},
		{"unreachable", func(r *fakeRemote) { r.openOK = false }, PairingUnreachable},
		{"failed", func(r *fakeRemote) {
			r.openOK = false
			r.openErr = &remote.FatalError{Reason: remote.ErrSessionUnavailable}
		}, PairingFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := newTestBridge(t, nil)
			tb.remote.mu.Lock()
			tb.remote.status.Paired = false
			if tt.setup != nil {
				tt.setup(tb.remote)
			}
			tb.remote.mu.Unlock()

			tb.send(t, testDevice, CommandMessage{ID: "o", Command: CommandOpen})
			waitAck(t, tb.mqtt, testDevice, "o")

			if got := tb.telemetry.pairingRecords(); len(got) != 1 || got[0] != tt.want {
				t.Errorf("telemetry pairings = %v, want [%s]", got, tt.want)
			}
			tb.metrics.mu.Lock()
			got := append([]string(nil), tb.metrics.pairings...)
			tb.metrics.mu.Unlock()
			if len(got) != 1 || got[0] != tt.want {
				t.Errorf("metrics pairings = %v, want [%s]", got, tt.want)
			}
		})
	}

	t.Run("already paired", func(t *testing.T) {
		tb := newTestBridge(t, nil)
		tb.send(t, testDevice, CommandMessage{ID: "o", Command: CommandOpen})
		waitAck(t, tb.mqtt, testDevice, "o")
		if got := tb.telemetry.pairingRecords(); len(got) != 0 {
			t.Errorf("pairings = %v, want none", got)
		}
	})
}
