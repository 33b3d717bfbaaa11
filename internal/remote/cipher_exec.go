package remote

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// defaultHelperTimeout bounds one helper invocation.
const defaultHelperTimeout = 10 * time.Second

// ExecHandshakeCipher delegates each handshake primitive to an external
// helper executable. The helper is run as "<path> <op>" with a JSON request
// on stdin and must print a JSON response on stdout. Byte fields travel as
// hex. A non-empty "error" field in the response fails the call.
//
// Operations and fields:
//
//	server_hello  {user_id, pin}                        -> {server_hello, hash, aes_key}
//	client_hello  {user_id, client_hello, hash, aes_key} -> {ctx, sk_prime}
//	server_ack    {sk_prime}                             -> {server_ack}
//	client_ack    {client_ack, sk_prime}                 -> {valid}
type ExecHandshakeCipher struct {
	// Path is the helper executable.
	Path string

	// Args are inserted before the operation name.
	Args []string

	// Timeout bounds each invocation. Default: 10s
	Timeout time.Duration
}

type helperRequest struct {
	UserID      string `json:"user_id,omitempty"`
	PIN         string `json:"pin,omitempty"`
	ClientHello string `json:"client_hello,omitempty"`
	Hash        string `json:"hash,omitempty"`
	AESKey      string `json:"aes_key,omitempty"`
	SKPrime     string `json:"sk_prime,omitempty"`
	ClientAck   string `json:"client_ack,omitempty"`
}

type helperResponse struct {
	ServerHello string `json:"server_hello"`
	Hash        string `json:"hash"`
	AESKey      string `json:"aes_key"`
	Ctx         string `json:"ctx"`
	SKPrime     string `json:"sk_prime"`
	ServerAck   string `json:"server_ack"`
	Valid       bool   `json:"valid"`
	Error       string `json:"error"`
}

// ServerHello implements HandshakeCipher.
func (c *ExecHandshakeCipher) ServerHello(userID, pin string) (ServerHello, error) {
	resp, err := c.call("server_hello", helperRequest{UserID: userID, PIN: pin})
	if err != nil {
		return ServerHello{}, err
	}
	var hello ServerHello
	if hello.Message, err = decodeHexField("server_hello", resp.ServerHello); err != nil {
		return ServerHello{}, err
	}
	if hello.Hash, err = decodeHexField("hash", resp.Hash); err != nil {
		return ServerHello{}, err
	}
	if hello.AESKey, err = decodeHexField("aes_key", resp.AESKey); err != nil {
		return ServerHello{}, err
	}
	return hello, nil
}

// ClientHello implements HandshakeCipher.
func (c *ExecHandshakeCipher) ClientHello(hello ServerHello, clientHello, userID string) (string, []byte, error) {
	resp, err := c.call("client_hello", helperRequest{
		UserID:      userID,
		ClientHello: clientHello,
		Hash:        hex.EncodeToString(hello.Hash),
		AESKey:      hex.EncodeToString(hello.AESKey),
	})
	if err != nil {
		return "", nil, err
	}
	skPrime, err := decodeHexField("sk_prime", resp.SKPrime)
	if err != nil {
		return "", nil, err
	}
	return resp.Ctx, skPrime, nil
}

// ServerAck implements HandshakeCipher.
func (c *ExecHandshakeCipher) ServerAck(skPrime []byte) (string, error) {
	resp, err := c.call("server_ack", helperRequest{SKPrime: hex.EncodeToString(skPrime)})
	if err != nil {
		return "", err
	}
	return resp.ServerAck, nil
}

// ClientAck implements HandshakeCipher. Helper failures count as invalid.
func (c *ExecHandshakeCipher) ClientAck(clientAck string, skPrime []byte) bool {
	resp, err := c.call("client_ack", helperRequest{ClientAck: clientAck, SKPrime: hex.EncodeToString(skPrime)})
	return err == nil && resp.Valid
}

func (c *ExecHandshakeCipher) call(op string, req helperRequest) (helperResponse, error) {
	if c.Path == "" {
		return helperResponse{}, fmt.Errorf("%w: no handshake helper configured", ErrPairingUnavailable)
	}
	timeout := c.Timeout
	if timeout == 0 {
		timeout = defaultHelperTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	input, err := json.Marshal(req)
	if err != nil {
		return helperResponse{}, fmt.Errorf("encoding %s request: %w", op, err)
	}

	args := append(append([]string{}, c.Args...), op)
	cmd := exec.CommandContext(ctx, c.Path, args...)
	cmd.Stdin = bytes.NewReader(input)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && stderr.Len() > 0 {
			return helperResponse{}, fmt.Errorf("%w: %s: %s", ErrCipher, op, strings.TrimSpace(stderr.String()))
		}
		return helperResponse{}, fmt.Errorf("%w: running %s: %v", ErrCipher, op, err)
	}

	var resp helperResponse
	if err := json.Unmarshal(output, &resp); err != nil {
		return helperResponse{}, fmt.Errorf("%w: decoding %s response: %v", ErrCipher, op, err)
	}
	if resp.Error != "" {
		return helperResponse{}, fmt.Errorf("%w: %s: %s", ErrCipher, op, resp.Error)
	}
	return resp, nil
}

func decodeHexField(name, value string) ([]byte, error) {
	b, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: field %s is not hex: %v", ErrCipher, name, err)
	}
	return b, nil
}
