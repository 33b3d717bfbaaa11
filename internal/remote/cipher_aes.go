package remote

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// CompanionEndpoint is the socket.io endpoint that carries remote commands.
const CompanionEndpoint = "/com.samsung.companion"

// CompanionMarker must precede every encrypted command frame.
const CompanionMarker = "1::" + CompanionEndpoint

// AESCommandCipher encrypts commands with the paired context as an AES key
// (ECB, PKCS#7) and wraps them in a socket.io callCommon event.
type AESCommandCipher struct {
	block     cipher.Block
	sessionID FlexID
}

// NewAESCommandCipher builds a cipher from a paired context.
// auth.Ctx must be hex encoding a 16, 24 or 32 byte key.
func NewAESCommandCipher(auth AuthContext) (CommandCipher, error) {
	key, err := hex.DecodeString(auth.Ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding ctx: %v", ErrCipher, err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCipher, err)
	}
	return &AESCommandCipher{block: block, sessionID: auth.SessionID}, nil
}

type remoteBody struct {
	Plugin  string `json:"plugin"`
	Param1  string `json:"param1"`
	Param2  string `json:"param2"`
	Param3  string `json:"param3"`
	Param4  bool   `json:"param4"`
	API     string `json:"api"`
	Version string `json:"version"`
}

type remoteRequest struct {
	Method string     `json:"method"`
	Body   remoteBody `json:"body"`
}

type callArgs struct {
	SessionID FlexID `json:"Session_Id"`
	Body      string `json:"body"`
}

type callEvent struct {
	Name string     `json:"name"`
	Args []callArgs `json:"args"`
}

// EncryptCommand implements CommandCipher.
func (c *AESCommandCipher) EncryptCommand(key string) (string, error) {
	return c.frame(remoteBody{
		Param2: "Click",
		Param3: key,
		API:    "SendRemoteKey",
	})
}

// EncryptText implements TextCipher. The text travels base64 encoded.
func (c *AESCommandCipher) EncryptText(text string) (string, error) {
	return c.frame(remoteBody{
		Param2: "base64",
		Param3: base64.StdEncoding.EncodeToString([]byte(text)),
		API:    "SendInputString",
	})
}

func (c *AESCommandCipher) frame(body remoteBody) (string, error) {
	body.Plugin = "RemoteControl"
	body.Param1 = "uuid:12345"
	body.Version = "1.000"

	plain, err := json.Marshal(remoteRequest{Method: "POST", Body: body})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCipher, err)
	}

	sealed := c.encrypt(plain)
	numbers := make([]string, len(sealed))
	for i, b := range sealed {
		numbers[i] = strconv.Itoa(int(b))
	}

	event, err := json.Marshal(callEvent{
		Name: "callCommon",
		Args: []callArgs{{SessionID: c.sessionID, Body: "[" + strings.Join(numbers, ",") + "]"}},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCipher, err)
	}
	return "5::" + CompanionEndpoint + ":" + string(event), nil
}

// encrypt pads with PKCS#7 and encrypts block by block (ECB).
func (c *AESCommandCipher) encrypt(plain []byte) []byte {
	size := c.block.BlockSize()
	pad := size - len(plain)%size
	padded := append(plain, bytes.Repeat([]byte{byte(pad)}, pad)...)

	out := make([]byte, len(padded))
	for i := 0; i < len(padded); i += size {
		c.block.Encrypt(out[i:i+size], padded[i:i+size])
	}
	return out
}
