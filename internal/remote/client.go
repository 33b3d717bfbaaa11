package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxResponseBytes caps what is read from any device response.
const maxResponseBytes = 1 << 20

// Client performs the HTTP exchanges with the TV: socket negotiation, PIN
// page control and the pairing steps.
type Client struct {
	endpoints Endpoints
	http      *http.Client
	timeout   time.Duration
	now       func() time.Time
}

// NewClient creates a Client. timeout bounds the PIN page and negotiation
// requests; pairing steps are bounded only by ctx and httpClient.
func NewClient(endpoints Endpoints, httpClient *http.Client, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout == 0 {
		timeout = DefaultHTTPTimeout
	}
	return &Client{
		endpoints: endpoints,
		http:      httpClient,
		timeout:   timeout,
		now:       time.Now,
	}
}

// Endpoints returns the URL builder used by the client.
func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

// ResolveControlSocketURL negotiates a socket.io session and returns the
// ws:// URL of the control socket. The session token is the text before
// the first ':' of the response. Any failure wraps ErrDeviceUnreachable.
func (c *Client) ResolveControlSocketURL(ctx context.Context) (string, error) {
	body, status, err := c.do(ctx, http.MethodGet, c.endpoints.SessionNegotiationURL(c.now()), nil, c.timeout)
	if err != nil {
		return "", fmt.Errorf("%w: session negotiation: %v", ErrDeviceUnreachable, err)
	}
	if status < 200 || status > 299 {
		return "", fmt.Errorf("%w: session negotiation returned HTTP %d", ErrDeviceUnreachable, status)
	}
	token, _, _ := strings.Cut(string(body), ":")
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("%w: session negotiation returned no token", ErrDeviceUnreachable)
	}
	return c.endpoints.ControlSocketURL(token), nil
}

// PinPageStopped reports whether the PIN page's state element reads
// "stopped", meaning the TV will not show the PIN unless asked.
// A body that is not parseable XML counts as "already showing" (false).
func (c *Client) PinPageStopped(ctx context.Context) (bool, error) {
	body, _, err := c.do(ctx, http.MethodGet, c.endpoints.PinPageURL(), nil, c.timeout)
	if err != nil {
		return false, fmt.Errorf("%w: pin page: %v", ErrDeviceUnreachable, err)
	}
	state, ok := xmlElementText(body, "state")
	return ok && state == "stopped", nil
}

// ShowPinPage asks the TV to display the pairing PIN.
func (c *Client) ShowPinPage(ctx context.Context) error {
	if _, _, err := c.do(ctx, http.MethodPost, c.endpoints.PinPageURL(), nil, c.timeout); err != nil {
		return fmt.Errorf("%w: show pin page: %v", ErrDeviceUnreachable, err)
	}
	return nil
}

// HidePinPage dismisses the PIN page.
func (c *Client) HidePinPage(ctx context.Context) error {
	if _, _, err := c.do(ctx, http.MethodDelete, c.endpoints.PinPageRunURL(), nil, c.timeout); err != nil {
		return fmt.Errorf("%w: hide pin page: %v", ErrDeviceUnreachable, err)
	}
	return nil
}

// StartPairing issues the informational step 0 GET and returns its body.
func (c *Client) StartPairing(ctx context.Context) (string, error) {
	body, _, err := c.do(ctx, http.MethodGet, c.endpoints.PairingStepURL(0), nil, 0)
	if err != nil {
		return "", fmt.Errorf("%w: pairing step 0: %v", ErrDeviceUnreachable, err)
	}
	return string(body), nil
}

// PostStep POSTs payload as JSON to pairing step 1 or 2 and returns the
// raw body whatever the status code; callers inspect the content.
func (c *Client) PostStep(ctx context.Context, step int, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding pairing step %d: %w", step, err)
	}
	body, _, err := c.do(ctx, http.MethodPost, c.endpoints.PairingStepURL(step), data, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: pairing step %d: %v", ErrDeviceUnreachable, step, err)
	}
	return body, nil
}

// do runs one request. A zero timeout leaves ctx as the only bound.
func (c *Client) do(ctx context.Context, method, url string, payload []byte, timeout time.Duration) ([]byte, int, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return data, resp.StatusCode, nil
}

// xmlElementText returns the text of the first element whose local name is
// name. Namespace prefixes are ignored.
func xmlElementText(doc []byte, name string) (string, bool) {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", false
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != name {
			continue
		}
		var text string
		if err := dec.DecodeElement(&text, &start); err != nil {
			return "", false
		}
		return strings.TrimSpace(text), true
	}
}
