package tv

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-tvbridge/internal/remote"
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu            sync.Mutex
	published     []mockPublish
	subscriptions []mockSubscription
	connected     bool
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

type mockSubscription struct {
	Topic   string
	QoS     byte
	Handler func(topic string, payload []byte) error
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{connected: true}
}

// PublishJSON records the encoded payload at QoS 1, as *mqtt.Client does
// with the default configuration.
func (m *MockMQTTClient) PublishJSON(topic string, v any, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, mockPublish{
		Topic:    topic,
		Payload:  payload,
		QoS:      1,
		Retained: retained,
	})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = append(m.subscriptions, mockSubscription{Topic: topic, QoS: qos, Handler: handler})
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

func (m *MockMQTTClient) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]mockPublish, len(m.published))
	copy(result, m.published)
	return result
}

// PublishedOn returns the messages published on topic.
func (m *MockMQTTClient) PublishedOn(topic string) []mockPublish {
	var result []mockPublish
	for _, p := range m.GetPublished() {
		if p.Topic == topic {
			result = append(result, p)
		}
	}
	return result
}

// SimulateMessage delivers payload to the first subscription matching topic.
func (m *MockMQTTClient) SimulateMessage(topic string, payload []byte) error {
	m.mu.Lock()
	var handler func(string, []byte) error
	for _, sub := range m.subscriptions {
		if topicMatches(sub.Topic, topic) {
			handler = sub.Handler
			break
		}
	}
	m.mu.Unlock()
	if handler == nil {
		return nil
	}
	return handler(topic, payload)
}

// topicMatches supports the single-level "+" wildcard.
func topicMatches(filter, topic string) bool {
	f := strings.Split(filter, "/")
	t := strings.Split(topic, "/")
	if len(f) != len(t) {
		return false
	}
	for i := range f {
		if f[i] != "+" && f[i] != t[i] {
			return false
		}
	}
	return true
}

// fakeRemote implements Remote for testing.
type fakeRemote struct {
	mu     sync.Mutex
	calls  []string
	status remote.Status

	controlOK   bool
	textOK      bool
	setPowerOK  bool
	setPowerErr error
	openOK      bool
	openErr     error

	// When set, Open signals started and waits for release or ctx.
	started chan struct{}
	release chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		status:     remote.Status{Host: "192.168.1.50", State: "closed", Paired: true, Pairing: "paired"},
		controlOK:  true,
		textOK:     true,
		setPowerOK: true,
		openOK:     true,
	}
}

func (f *fakeRemote) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

// commandCalls returns every call except background power probes.
func (f *fakeRemote) commandCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []string
	for _, c := range f.calls {
		if c != "probe" {
			result = append(result, c)
		}
	}
	return result
}

func (f *fakeRemote) Control(_ context.Context, key string) bool {
	f.record("control:" + key)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.controlOK
}

func (f *fakeRemote) Power(_ context.Context) bool {
	f.record("probe")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status.Power
}

func (f *fakeRemote) SetPower(_ context.Context, on bool) (bool, error) {
	if on {
		f.record("power_on")
	} else {
		f.record("power_off")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setPowerErr != nil {
		return false, f.setPowerErr
	}
	if f.setPowerOK {
		f.status.Power = on
	}
	return f.setPowerOK, nil
}

func (f *fakeRemote) InputText(_ context.Context, text string) bool {
	f.record("text:" + text)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.textOK
}

func (f *fakeRemote) Open(ctx context.Context) (bool, error) {
	f.record("open")
	f.mu.Lock()
	started, release := f.started, f.release
	f.mu.Unlock()

	if started != nil {
		close(started)
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openOK && f.openErr == nil {
		f.status.Paired = true
		f.status.Connected = true
		f.status.State = "connected"
	}
	return f.openOK, f.openErr
}

func (f *fakeRemote) Close() error {
	f.record("close")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status.Connected = false
	f.status.State = "closed"
	return nil
}

func (f *fakeRemote) Status() remote.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// fakePins implements PinSubmitter.
type fakePins struct {
	mu   sync.Mutex
	pins []string
	err  error
}

func (p *fakePins) Submit(_ context.Context, pin string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.pins = append(p.pins, pin)
	return nil
}

func (p *fakePins) submitted() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.pins...)
}

// fakeTelemetry implements Telemetry.
type fakeTelemetry struct {
	mu       sync.Mutex
	power    []bool
	commands []string
	pairings []string
}

func (f *fakeTelemetry) RecordPairing(_ string, outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pairings = append(f.pairings, outcome)
}

func (f *fakeTelemetry) pairingRecords() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.pairings...)
}

func (f *fakeTelemetry) RecordPower(_ string, on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.power = append(f.power, on)
}

func (f *fakeTelemetry) RecordCommand(_ string, command string, ok bool, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := "ok"
	if !ok {
		result = "error"
	}
	f.commands = append(f.commands, command+":"+result)
}

func (f *fakeTelemetry) powerRecords() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.power...)
}

func (f *fakeTelemetry) commandRecords() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

// fakeMetrics implements MetricsRecorder.
type fakeMetrics struct {
	mu        sync.Mutex
	observed  []string
	pairings  []string
	power     bool
	connected bool
}

func (f *fakeMetrics) ObservePairing(outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pairings = append(f.pairings, outcome)
}

func (f *fakeMetrics) ObserveCommand(command string, ok bool, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := "ok"
	if !ok {
		result = "error"
	}
	f.observed = append(f.observed, command+":"+result)
}

func (f *fakeMetrics) SetPower(_ string, on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.power = on
}

func (f *fakeMetrics) SetConnected(_ string, connected bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = connected
}

func (f *fakeMetrics) snapshot() (observed []string, power, connected bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.observed...), f.power, f.connected
}

// eventually polls cond until it holds or two seconds pass.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func decodeAcks(t *testing.T, mock *MockMQTTClient, device string) []AckMessage {
	t.Helper()
	var acks []AckMessage
	for _, p := range mock.PublishedOn(AckTopic(device)) {
		var ack AckMessage
		if err := json.Unmarshal(p.Payload, &ack); err != nil {
			t.Fatalf("unmarshal ack: %v", err)
		}
		acks = append(acks, ack)
	}
	return acks
}

// waitAck returns the ack for commandID once published.
func waitAck(t *testing.T, mock *MockMQTTClient, device, commandID string) AckMessage {
	t.Helper()
	var found *AckMessage
	eventually(t, "ack for "+commandID, func() bool {
		for _, ack := range decodeAcks(t, mock, device) {
			if ack.CommandID == commandID {
				found = &ack
				return true
			}
		}
		return false
	})
	return *found
}

func lastState(t *testing.T, mock *MockMQTTClient, device string) StateMessage {
	t.Helper()
	msgs := mock.PublishedOn(StateTopic(device))
	if len(msgs) == 0 {
		t.Fatal("no state published")
	}
	var state StateMessage
	if err := json.Unmarshal(msgs[len(msgs)-1].Payload, &state); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	return state
}
