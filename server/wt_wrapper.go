package server

import (
	"encoding/binary"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/quic-go/webtransport-go"
)

// WebTransport streams are raw byte pipes, so frames carry a kind
// marker plus a length prefix to match WebSocket message semantics.
// Format: [1-byte kind][2-byte big-endian length][payload]
const (
	frameBinary byte = 0x01
	frameText   byte = 0x02
)

// wtTransport wraps a WebTransport bidirectional stream to implement
// the Transport interface.
type wtTransport struct {
	session *webtransport.Session
	stream  io.ReadWriteCloser
	mu      sync.Mutex
}

// newWTTransport creates a new WebTransport transport wrapper.
func newWTTransport(session *webtransport.Session, stream io.ReadWriteCloser) *wtTransport {
	return &wtTransport{
		session: session,
		stream:  stream,
	}
}

// Write sends a text frame over the WebTransport stream.
func (wtt *wtTransport) Write(p []byte) (n int, err error) {
	return wtt.writeFrame(frameText, p)
}

// WriteBinary sends a binary frame over the WebTransport stream, used
// for raw terminal output.
func (wtt *wtTransport) WriteBinary(p []byte) (n int, err error) {
	return wtt.writeFrame(frameBinary, p)
}

func (wtt *wtTransport) writeFrame(kind byte, p []byte) (n int, err error) {
	wtt.mu.Lock()
	defer wtt.mu.Unlock()

	if len(p) > 65535 {
		return 0, errors.New("message too large for WebTransport frame (max 65535 bytes)")
	}

	header := make([]byte, 3)
	header[0] = kind
	binary.BigEndian.PutUint16(header[1:], uint16(len(p)))

	if _, err := wtt.stream.Write(header); err != nil {
		return 0, errors.Wrap(err, "failed to write frame header")
	}

	written, err := wtt.stream.Write(p)
	if err != nil {
		return written, errors.Wrap(err, "failed to write frame payload")
	}

	return written, nil
}

// Read reads the next text frame from the WebTransport stream. Client
// control messages are always text frames; binary frames from the
// client are skipped.
func (wtt *wtTransport) Read(p []byte) (n int, err error) {
	for {
		header := make([]byte, 3)
		if _, err := io.ReadFull(wtt.stream, header); err != nil {
			return 0, err
		}

		length := int(binary.BigEndian.Uint16(header[1:]))
		if length > len(p) {
			return 0, errors.Errorf("message size %d exceeds buffer size %d", length, len(p))
		}

		n, err = io.ReadFull(wtt.stream, p[:length])
		if err != nil {
			return 0, err
		}
		if header[0] != frameText {
			continue
		}
		return n, nil
	}
}

// Close closes the WebTransport stream and session.
func (wtt *wtTransport) Close() error {
	var err error
	if wtt.stream != nil {
		err = wtt.stream.Close()
	}
	if wtt.session != nil {
		wtt.session.CloseWithError(0, "connection closed")
	}
	return err
}

// RemoteAddr returns the remote address of the WebTransport session.
func (wtt *wtTransport) RemoteAddr() string {
	if wtt.session != nil {
		return wtt.session.RemoteAddr().String()
	}
	return "unknown"
}

// Ensure wtTransport implements Transport interface
var _ Transport = (*wtTransport)(nil)
