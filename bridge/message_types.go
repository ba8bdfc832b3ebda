package bridge

// Message kinds sent by the client.
const (
	// Input carries keystroke or paste bytes for the slave.
	Input = "input"
	// ResizeTerminal carries new terminal dimensions.
	ResizeTerminal = "resize"
	// Connect asks a pending session to establish its slave.
	Connect = "connect"
)

// Message kinds sent to the client.
const (
	// Output carries shell output, base64 encoded. Sessions running
	// with raw output skip this envelope and send binary frames.
	Output = "output"
	// Connected acknowledges a successful connect request.
	Connected = "connected"
	// Error carries a human readable description of a fatal failure.
	Error = "error"
)

// envelope is the JSON wire format shared by all control messages.
// Unknown fields are ignored on decode so clients can extend messages
// without breaking older servers.
type envelope struct {
	Type       string `json:"type"`
	Data       string `json:"data,omitempty"`
	Rows       int    `json:"rows,omitempty"`
	Cols       int    `json:"cols,omitempty"`
	Host       string `json:"host,omitempty"`
	Port       int    `json:"port,omitempty"`
	Username   string `json:"username,omitempty"`
	Credential string `json:"credential,omitempty"`
	Message    string `json:"message,omitempty"`
}
