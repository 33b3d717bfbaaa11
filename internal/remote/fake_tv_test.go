package remote

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	testCtxHex   = "0123456789abcdef0123456789abcdef"
	goodPIN      = "1234"
	clientHelloX = "CLIENT-HELLO"
	clientAckX   = "CLIENT-ACK"
)

// fakeTV emulates the pairing endpoints, PIN page, socket.io negotiation
// and control websocket on one httptest server.
type fakeTV struct {
	t      *testing.T
	server *httptest.Server
	client *http.Client

	mu            sync.Mutex
	requests      []string
	pinState      string
	step1Bodies   []authEnvelope
	step2Bodies   []map[string]any
	negotiations  int
	frames        []string
	step1Response string
	step2Response string
	negotiateFail bool
	sendHeartbeat bool
	conns         []*websocket.Conn
	received      chan string
}

func newFakeTV(t *testing.T) *fakeTV {
	t.Helper()

	tv := &fakeTV{
		t:        t,
		pinState: "stopped",
		step2Response: fmt.Sprintf(`{"auth_data":%q}`,
			fmt.Sprintf(`{"auth_type":"SPC","request_id":"7","ClientAckMsg":%q,"session_id":"1"}`, clientAckX)),
		received: make(chan string, 256),
	}

	upgrader := websocket.Upgrader{}
	r := chi.NewRouter()
	r.Use(tv.record)
	r.Get("/ws/pairing", tv.stepZero)
	r.Post("/ws/pairing", tv.step)
	r.Get("/ws/apps/CloudPINPage", tv.pinPage)
	r.Post("/ws/apps/CloudPINPage", func(w http.ResponseWriter, _ *http.Request) {
		tv.mu.Lock()
		tv.pinState = "running"
		tv.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})
	r.Delete("/ws/apps/CloudPINPage/run", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/socket.io/1/", func(w http.ResponseWriter, _ *http.Request) {
		tv.mu.Lock()
		tv.negotiations++
		fail := tv.negotiateFail
		tv.mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "sess42:60:60:websocket,xhr-polling")
	})
	r.Get("/socket.io/1/websocket/{token}", func(w http.ResponseWriter, req *http.Request) {
		if chi.URLParam(req, "token") != "sess42" {
			http.Error(w, "bad token", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		tv.mu.Lock()
		tv.conns = append(tv.conns, conn)
		heartbeat := tv.sendHeartbeat
		tv.mu.Unlock()

		if heartbeat {
			conn.WriteMessage(websocket.TextMessage, []byte("2::")) //nolint:errcheck // Test server
		}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			tv.mu.Lock()
			tv.frames = append(tv.frames, string(data))
			tv.mu.Unlock()
			tv.received <- string(data)
		}
	})

	tv.server = httptest.NewServer(r)
	transport := &http.Transport{}
	tv.client = &http.Client{Transport: transport}

	t.Cleanup(func() {
		tv.mu.Lock()
		for _, c := range tv.conns {
			c.Close()
		}
		tv.mu.Unlock()
		tv.server.Close()
		transport.CloseIdleConnections()
	})
	return tv
}

func (tv *fakeTV) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entry := r.Method + " " + r.URL.Path
		if step := r.URL.Query().Get("step"); step != "" {
			entry += "?step=" + step
		}
		tv.mu.Lock()
		tv.requests = append(tv.requests, entry)
		tv.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (tv *fakeTV) stepZero(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("step") != "0" || r.URL.Query().Get("type") != "1" {
		http.Error(w, "bad step 0", http.StatusBadRequest)
		return
	}
	fmt.Fprint(w, `{"auth_data":{"auth_type":"SPC"}}`)
}

func (tv *fakeTV) step(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("step") {
	case "1":
		var env authEnvelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		tv.mu.Lock()
		tv.step1Bodies = append(tv.step1Bodies, env)
		override := tv.step1Response
		tv.mu.Unlock()

		hello, _ := hex.DecodeString(env.AuthData.GeneratorServerHello)
		if !strings.HasSuffix(string(hello), ":"+goodPIN) {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{}`)
			return
		}
		if override != "" {
			fmt.Fprint(w, override)
			return
		}
		inner := fmt.Sprintf(`{"auth_type":"SPC","request_id":"7","GeneratorClientHello":%q}`, clientHelloX)
		fmt.Fprintf(w, `{"auth_data":%q}`, inner)
	case "2":
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		tv.mu.Lock()
		tv.step2Bodies = append(tv.step2Bodies, body)
		resp := tv.step2Response
		tv.mu.Unlock()
		fmt.Fprint(w, resp)
	default:
		http.Error(w, "unknown step", http.StatusBadRequest)
	}
}

func (tv *fakeTV) pinPage(w http.ResponseWriter, _ *http.Request) {
	tv.mu.Lock()
	state := tv.pinState
	tv.mu.Unlock()
	w.Header().Set("Content-Type", "application/xml")
	fmt.Fprintf(w, `<?xml version="1.0"?><service xmlns="urn:dial-multiscreen-org:schemas:dial" xmlns:atom="http://www.w3.org/2005/Atom"><name>CloudPINPage</name><atom:state>%s</atom:state></service>`, state)
}

// device returns a DeviceConfig pointing both ports at the fake server.
func (tv *fakeTV) device() DeviceConfig {
	host, portStr, err := net.SplitHostPort(tv.server.Listener.Addr().String())
	if err != nil {
		tv.t.Fatalf("split host port: %v", err)
	}
	port, _ := strconv.Atoi(portStr)
	return DeviceConfig{
		Key:        "living-room",
		Host:       host,
		Port:       port,
		SocketPort: port,
		AppID:      "12345",
		DeviceID:   "dev-1",
		ID:         "user-1",
		MACAddress: "aa:bb:cc:dd:ee:ff",
	}
}

func (tv *fakeTV) requestLog() []string {
	tv.mu.Lock()
	defer tv.mu.Unlock()
	return append([]string(nil), tv.requests...)
}

func (tv *fakeTV) count(entry string) int {
	n := 0
	for _, r := range tv.requestLog() {
		if r == entry {
			n++
		}
	}
	return n
}

// waitConns waits until the server has accepted n websocket connections.
func (tv *fakeTV) waitConns(n int) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		tv.mu.Lock()
		got := len(tv.conns)
		tv.mu.Unlock()
		if got >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	tv.t.Fatalf("websocket connections did not reach %d", n)
}

// nextFrame waits for the next frame written by the client.
func (tv *fakeTV) nextFrame(timeout time.Duration) (string, bool) {
	select {
	case f := <-tv.received:
		return f, true
	case <-time.After(timeout):
		return "", false
	}
}

// fakeCipher accepts the fake TV's hello and ack.
type fakeCipher struct {
	mu          sync.Mutex
	skPrimes    [][]byte
	rejectAck   bool
	serverHello error
}

func (c *fakeCipher) ServerHello(userID, pin string) (ServerHello, error) {
	if c.serverHello != nil {
		return ServerHello{}, c.serverHello
	}
	return ServerHello{Message: []byte("hello:" + userID + ":" + pin)}, nil
}

func (c *fakeCipher) ClientHello(_ ServerHello, clientHello, _ string) (string, []byte, error) {
	if clientHello != clientHelloX {
		return "", nil, fmt.Errorf("unexpected client hello %q", clientHello)
	}
	sk := []byte("sk-prime")
	c.mu.Lock()
	c.skPrimes = append(c.skPrimes, sk)
	c.mu.Unlock()
	return testCtxHex, sk, nil
}

func (c *fakeCipher) ServerAck(skPrime []byte) (string, error) {
	return "SERVER-ACK-" + string(skPrime), nil
}

func (c *fakeCipher) ClientAck(clientAck string, _ []byte) bool {
	return !c.rejectAck && clientAck == clientAckX
}

// scriptedPins returns PINs in order and counts prompts and rejections.
type scriptedPins struct {
	mu         sync.Mutex
	pins       []string
	prompts    int
	rejections int
}

func (p *scriptedPins) PIN(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.prompts >= len(p.pins) {
		return "", context.Canceled
	}
	pin := p.pins[p.prompts]
	p.prompts++
	return pin, ctx.Err()
}

func (p *scriptedPins) PinRejected(context.Context) {
	p.mu.Lock()
	p.rejections++
	p.mu.Unlock()
}

// probeFunc adapts a function to PowerProbe.
type probeFunc func(ctx context.Context) bool

func (f probeFunc) PoweredOn(ctx context.Context) bool { return f(ctx) }

// countingWaker counts wake signals and optionally turns the TV on.
type countingWaker struct {
	mu    sync.Mutex
	wakes int
	onAt  int
	power *powerFlag
}

func (w *countingWaker) Wake(context.Context, string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.wakes++
	if w.power != nil && w.onAt > 0 && w.wakes >= w.onAt {
		w.power.set(true)
	}
	return nil
}

func (w *countingWaker) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.wakes
}

// powerFlag is a settable power state usable as a probe.
type powerFlag struct {
	mu sync.Mutex
	on bool
}

func (p *powerFlag) set(on bool) {
	p.mu.Lock()
	p.on = on
	p.mu.Unlock()
}

func (p *powerFlag) PoweredOn(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.on
}
