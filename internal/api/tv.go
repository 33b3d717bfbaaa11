package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-tvbridge/internal/remote"
)

// Handler deadlines. Power on polls the TV for up to about 20 seconds.
const (
	probeTimeout = 5 * time.Second
	keyTimeout   = 15 * time.Second
	powerTimeout = 50 * time.Second
	openTimeout  = 5 * time.Minute
	pinTimeout   = 5 * time.Second
)

// maxKeysPerRequest bounds a key sequence.
const maxKeysPerRequest = 32

type keysRequest struct {
	Key  string   `json:"key"`
	Keys []string `json:"keys"`
}

type textRequest struct {
	Text string `json:"text"`
}

type powerRequest struct {
	On *bool `json:"on"`
}

type pinRequest struct {
	Pin string `json:"pin"`
}

// tvResponse is the body of GET /api/v1/tv.
type tvResponse struct {
	remote.Status
	Opening    bool `json:"opening"`
	PinWaiting bool `json:"pin_waiting"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return false
	}
	return true
}

// handleGetTV probes power and returns the TV status.
func (s *Server) handleGetTV(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()
	s.remote.Power(ctx)

	resp := tvResponse{Status: s.remote.Status(), Opening: s.opener.running()}
	if s.pins != nil {
		resp.PinWaiting = s.pins.Waiting()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleKeys sends one key or a sequence, stopping at the first failure.
func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	var req keysRequest
	if !decodeBody(w, r, &req) {
		return
	}
	keys := req.Keys
	if req.Key != "" {
		keys = append([]string{req.Key}, keys...)
	}
	if len(keys) == 0 || len(keys) > maxKeysPerRequest {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "between 1 and 32 keys are required")
		return
	}
	for _, key := range keys {
		if !strings.HasPrefix(key, "KEY_") {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "invalid key "+key)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), keysTimeout(keys))
	defer cancel()

	for i, key := range keys {
		start := time.Now()
		ok := s.remote.Control(ctx, key)
		s.observe("key", ok, time.Since(start))
		if !ok {
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"status":  http.StatusBadGateway,
				"code":    ErrCodeDeviceUnreachable,
				"message": "key " + key + " not delivered; is the TV on?",
				"sent":    i,
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sent": len(keys)})
}

// keysTimeout gives sequences containing a power key the power deadline,
// since those keys wait for the TV to change state.
func keysTimeout(keys []string) time.Duration {
	for _, key := range keys {
		switch key {
		case remote.KeyPower, remote.KeyPowerOn, remote.KeyPowerOff:
			return powerTimeout
		}
	}
	return keyTimeout
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "text is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), keyTimeout)
	defer cancel()

	start := time.Now()
	ok := s.remote.InputText(ctx, req.Text)
	s.observe("text", ok, time.Since(start))
	if !ok {
		writeUnreachable(w, "text not delivered; is the TV on?")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePower(w http.ResponseWriter, r *http.Request) {
	var req powerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.On == nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, `"on" is required`)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), powerTimeout)
	defer cancel()

	start := time.Now()
	ok, err := s.remote.SetPower(ctx, *req.On)
	s.observe("power", ok && err == nil, time.Since(start))

	switch {
	case errors.Is(err, remote.ErrNoMACAddress):
		writeError(w, http.StatusConflict, ErrCodeNotConfigured, "power on needs device.mac_address")
	case err != nil:
		writeError(w, http.StatusGatewayTimeout, ErrCodeTimeout, err.Error())
	case !ok:
		writeError(w, http.StatusGatewayTimeout, ErrCodeTimeout, "TV did not reach the requested power state")
	default:
		writeJSON(w, http.StatusOK, map[string]any{"power": *req.On})
	}
}

// handleOpen starts opening the control channel in the background. Pairing
// may wait minutes for a PIN, so the caller polls GET /api/v1/tv.
func (s *Server) handleOpen(w http.ResponseWriter, _ *http.Request) {
	started := s.opener.start(s.ctx, openTimeout, func(ctx context.Context) {
		start := time.Now()
		ok, err := s.remote.Open(ctx)
		s.observe("open", ok, time.Since(start))
		if err != nil {
			s.logger.Warn("open failed", "error", err, "fatal", remote.IsFatal(err))
			return
		}
		if !ok {
			s.logger.Info("control channel not opened; TV unreachable")
		}
	})
	if !started {
		writeError(w, http.StatusConflict, ErrCodeConflict, "open already in progress")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "opening"})
}

func (s *Server) handleClose(w http.ResponseWriter, _ *http.Request) {
	if err := s.remote.Close(); err != nil {
		writeInternalError(w, "closing control channel failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePin(w http.ResponseWriter, r *http.Request) {
	if s.pins == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "PIN entry is not enabled")
		return
	}
	var req pinRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Pin) == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "pin is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), pinTimeout)
	defer cancel()

	err := s.pins.Submit(ctx, req.Pin)
	switch {
	case errors.Is(err, remote.ErrNoPinRequested):
		writeError(w, http.StatusConflict, ErrCodeConflict, "no pairing is waiting for a PIN")
	case err != nil:
		writeInternalError(w, "PIN not delivered")
	default:
		writeJSON(w, http.StatusAccepted, map[string]any{"status": "submitted"})
	}
}

func (s *Server) observe(command string, ok bool, elapsed time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveCommand(command, ok, elapsed)
	}
}

// opener runs at most one background Open at a time.
type opener struct {
	mu     sync.Mutex
	active bool
	wg     sync.WaitGroup
}

func (o *opener) start(ctx context.Context, timeout time.Duration, fn func(context.Context)) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active {
		return false
	}
	o.active = true
	o.wg.Add(1)

	go func() {
		defer func() {
			o.mu.Lock()
			o.active = false
			o.mu.Unlock()
			o.wg.Done()
		}()
		runCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		fn(runCtx)
	}()
	return true
}

func (o *opener) running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

func (o *opener) wait() {
	o.wg.Wait()
}
