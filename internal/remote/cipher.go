package remote

// ServerHello is the first handshake message and the secrets needed to
// parse the TV's reply to it.
type ServerHello struct {
	// Message is posted to pairing step 1, hex-encoded.
	Message []byte

	Hash   []byte
	AESKey []byte
}

// HandshakeCipher implements the pairing cryptography. Its internals are
// opaque to this package.
type HandshakeCipher interface {
	// ServerHello builds the hello for the given identity and PIN.
	ServerHello(userID, pin string) (ServerHello, error)

	// ClientHello parses the TV's hello reply and derives the context blob
	// (hex) and the intermediate secret SKPrime.
	ClientHello(hello ServerHello, clientHello, userID string) (ctx string, skPrime []byte, err error)

	// ServerAck builds the acknowledge message from SKPrime.
	ServerAck(skPrime []byte) (string, error)

	// ClientAck validates the TV's acknowledge message.
	ClientAck(clientAck string, skPrime []byte) bool
}

// CommandCipher turns a key name into a transport-ready control frame.
type CommandCipher interface {
	EncryptCommand(key string) (string, error)
}

// TextCipher is implemented by command ciphers that can also carry text
// input for on-screen keyboards.
type TextCipher interface {
	EncryptText(text string) (string, error)
}

// CommandCipherFactory builds the command cipher for a paired session.
// The context passed in has its Ctx already uppercased.
type CommandCipherFactory func(auth AuthContext) (CommandCipher, error)
