// Package bridge implements the session core of webshell: it pairs one
// client message channel (the master) with one shell endpoint (the
// slave) and relays bytes in both directions until either side goes
// away.
//
// A session is a small state machine: Idle → Connecting → Active →
// Closed. Sessions created with New start out with a slave and become
// Active as soon as they run; sessions created with NewPending wait in
// Idle for a connect message carrying the parameters needed to
// establish the slave.
//
// Two loops run per session. The relay loop reads the slave serially
// and forwards each chunk to the master immediately, so output reaches
// the client in the order the shell produced it. The dispatch loop
// receives client messages and applies them to the slave: input bytes,
// resize requests, and for pending sessions the one-shot connect. The
// slave is read only by the relay loop and written only by the
// dispatch loop, so the slave itself needs no locking.
package bridge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// DefaultBufferSize is the chunk size for slave reads.
const DefaultBufferSize = 4096

// maxInboundMessageSize bounds a single client message. Larger
// messages fail the master read and end the session.
const maxInboundMessageSize = 64 * 1024

// State describes where a session is in its lifecycle.
type State int32

const (
	// StateIdle means the session is waiting for a connect message.
	StateIdle State = iota
	// StateConnecting means slave establishment is in flight.
	StateConnecting
	// StateActive means both loops are relaying.
	StateActive
	// StateClosed means the session has been torn down.
	StateClosed
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Bridge relays one client connection to one shell endpoint.
type Bridge struct {
	master  Master
	connect ConnectFunc

	id          string
	registry    *Registry
	permitWrite bool
	rawOutput   bool
	bufferSize  int

	state int32

	slaveMu sync.Mutex
	slave   Slave

	writeMu  sync.Mutex
	stopOnce sync.Once
}

// New creates a session whose slave already exists, e.g. a freshly
// spawned local command. The session becomes Active when Run starts.
func New(master Master, slave Slave, options ...Option) (*Bridge, error) {
	if slave == nil {
		return nil, errors.New("bridge: nil slave")
	}
	bridge, err := newBridge(master, options)
	if err != nil {
		return nil, err
	}
	bridge.slave = slave
	return bridge, nil
}

// NewPending creates a session without a slave. The session stays Idle
// until the client sends a connect message, at which point connect is
// invoked with the supplied parameters.
func NewPending(master Master, connect ConnectFunc, options ...Option) (*Bridge, error) {
	if connect == nil {
		return nil, errors.New("bridge: nil connect func")
	}
	bridge, err := newBridge(master, options)
	if err != nil {
		return nil, err
	}
	bridge.connect = connect
	return bridge, nil
}

func newBridge(master Master, options []Option) (*Bridge, error) {
	if master == nil {
		return nil, errors.New("bridge: nil master")
	}
	bridge := &Bridge{
		master:     master,
		bufferSize: DefaultBufferSize,
		state:      int32(StateIdle),
	}
	for _, option := range options {
		if err := option(bridge); err != nil {
			return nil, err
		}
	}
	return bridge, nil
}

// ID returns the session identifier, empty when the session runs
// without a registry.
func (bridge *Bridge) ID() string {
	return bridge.id
}

// State returns the current lifecycle state.
func (bridge *Bridge) State() State {
	return State(atomic.LoadInt32(&bridge.state))
}

func (bridge *Bridge) setState(s State) {
	atomic.StoreInt32(&bridge.state, int32(s))
}

func (bridge *Bridge) swapState(from, to State) bool {
	return atomic.CompareAndSwapInt32(&bridge.state, int32(from), int32(to))
}

func (bridge *Bridge) currentSlave() Slave {
	bridge.slaveMu.Lock()
	defer bridge.slaveMu.Unlock()
	return bridge.slave
}

// activate installs slave and moves the session to Active. The slave
// assignment and the state transition share one critical section with
// Stop, so a racing Stop either closes the installed slave itself or
// is reported here as false, in which case the caller still owns the
// slave. Closed is terminal: activate never resurrects a stopped
// session.
func (bridge *Bridge) activate(slave Slave) bool {
	bridge.slaveMu.Lock()
	defer bridge.slaveMu.Unlock()
	if bridge.State() == StateClosed {
		return false
	}
	bridge.slave = slave
	bridge.setState(StateActive)
	return true
}

// Run relays until the client disconnects, the slave terminates, the
// context is canceled, or an unrecoverable error occurs. It always
// tears the session down before returning: the slave is closed exactly
// once and the registry entry, if any, is removed.
func (bridge *Bridge) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if bridge.registry != nil {
		bridge.registry.Register(bridge.id, bridge)
		// Stop may have landed before the registration above; its
		// deregister then saw nothing, so undo it here.
		if bridge.State() == StateClosed {
			bridge.registry.Deregister(bridge.id)
			return ErrMasterClosed
		}
	}
	defer bridge.Stop()

	// Buffered so late loop exits never block after Run returns.
	errs := make(chan error, 3)

	if slave := bridge.currentSlave(); slave != nil {
		if !bridge.activate(slave) {
			return ErrMasterClosed
		}
		go func() {
			errs <- bridge.relaySlave(ctx)
		}()
	}

	go func() {
		errs <- bridge.dispatchMaster(ctx, errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop tears the session down. It is idempotent and safe to call from
// any goroutine: the first call moves the session to Closed, closes
// the slave, deregisters the session, and closes the master.
func (bridge *Bridge) Stop() {
	bridge.stopOnce.Do(func() {
		// Closed is set and the slave is read in one critical section
		// with activate, so no slave can slip in after this point.
		bridge.slaveMu.Lock()
		bridge.setState(StateClosed)
		slave := bridge.slave
		bridge.slaveMu.Unlock()
		if slave != nil {
			if err := slave.Close(); err != nil {
				log.Printf("bridge: closing slave: %v", err)
			}
		}
		if bridge.registry != nil {
			bridge.registry.Deregister(bridge.id)
		}
		bridge.master.Close()
	})
}

// relaySlave is the outbound relay loop. Reads are issued serially by
// this single goroutine, which preserves output ordering. Closing the
// slave unblocks a pending read, so teardown does not strand the loop.
func (bridge *Bridge) relaySlave(ctx context.Context) error {
	slave := bridge.currentSlave()
	buffer := make([]byte, bridge.bufferSize)
	for {
		n, err := slave.Read(buffer)
		if n > 0 {
			if werr := bridge.sendOutput(buffer[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			return ErrSlaveClosed
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// dispatchMaster is the inbound dispatch loop. errs receives the relay
// loop's result when a pending session connects mid-run.
func (bridge *Bridge) dispatchMaster(ctx context.Context, errs chan<- error) error {
	buffer := make([]byte, maxInboundMessageSize)
	for {
		n, err := bridge.master.Read(buffer)
		if err != nil {
			return ErrMasterClosed
		}
		if err := bridge.handleMasterMessage(ctx, buffer[:n], errs); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

func (bridge *Bridge) handleMasterMessage(ctx context.Context, data []byte, errs chan<- error) error {
	var msg envelope
	if err := json.Unmarshal(data, &msg); err != nil {
		// Not a control message we understand. Never fatal.
		log.Printf("bridge: ignoring malformed message: %v", err)
		return nil
	}

	switch msg.Type {
	case Input:
		bridge.handleInput(msg)
	case ResizeTerminal:
		bridge.handleResize(msg)
	case Connect:
		return bridge.handleConnect(ctx, msg, errs)
	default:
		// Unrecognized kinds are ignored for forward compatibility.
	}
	return nil
}

func (bridge *Bridge) handleInput(msg envelope) {
	if !bridge.permitWrite || bridge.State() != StateActive {
		return
	}
	slave := bridge.currentSlave()
	if slave == nil {
		return
	}
	// Write errors are transient here: a dead slave surfaces as a
	// failed read in the relay loop.
	if _, err := slave.Write([]byte(msg.Data)); err != nil {
		log.Printf("bridge: dropping input: %v", err)
	}
}

func (bridge *Bridge) handleResize(msg envelope) {
	if bridge.State() != StateActive {
		return
	}
	slave := bridge.currentSlave()
	if slave == nil {
		return
	}
	rows, cols := clampWindowSize(msg.Rows, msg.Cols)
	if err := slave.ResizeTerminal(cols, rows); err != nil {
		log.Printf("bridge: resize to %dx%d failed: %v", cols, rows, err)
	}
}

func (bridge *Bridge) handleConnect(ctx context.Context, msg envelope, errs chan<- error) error {
	if bridge.connect == nil {
		// Eager session, nothing to do.
		return nil
	}
	if !bridge.swapState(StateIdle, StateConnecting) {
		return nil
	}

	slave, err := bridge.connect(ConnectParams{
		Host:       msg.Host,
		Port:       msg.Port,
		Username:   msg.Username,
		Credential: msg.Credential,
	})
	if err != nil {
		// Report the reason to the client exactly once, then fail
		// the session.
		bridge.sendError(err.Error())
		return errors.Wrap(ErrConnectFailed, err.Error())
	}

	if !bridge.activate(slave) {
		// Stop won the race while the connect was in flight. It never
		// saw this slave, so close it here before failing the session.
		slave.Close()
		return ErrMasterClosed
	}
	if err := bridge.sendEnvelope(envelope{Type: Connected}); err != nil {
		return err
	}

	go func() {
		errs <- bridge.relaySlave(ctx)
	}()
	return nil
}

// sendOutput forwards one chunk of shell output to the client.
func (bridge *Bridge) sendOutput(data []byte) error {
	if bridge.rawOutput {
		bridge.writeMu.Lock()
		defer bridge.writeMu.Unlock()
		if _, err := bridge.master.WriteBinary(data); err != nil {
			return ErrMasterClosed
		}
		return nil
	}
	return bridge.sendEnvelope(envelope{
		Type: Output,
		Data: base64.StdEncoding.EncodeToString(data),
	})
}

func (bridge *Bridge) sendError(message string) {
	if err := bridge.sendEnvelope(envelope{Type: Error, Message: message}); err != nil {
		log.Printf("bridge: reporting error to client: %v", err)
	}
}

func (bridge *Bridge) sendEnvelope(msg envelope) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s message", msg.Type)
	}
	bridge.writeMu.Lock()
	defer bridge.writeMu.Unlock()
	if _, err := bridge.master.Write(data); err != nil {
		return ErrMasterClosed
	}
	return nil
}

// SendError writes an error envelope directly to a master. Used by
// callers that fail before a session exists, e.g. when spawning the
// slave fails during connection setup.
func SendError(master Master, message string) {
	data, err := json.Marshal(envelope{Type: Error, Message: message})
	if err != nil {
		return
	}
	master.Write(data)
}

// clampWindowSize coerces out-of-range dimensions to a safe minimum of
// 1x1 instead of forwarding them verbatim, which would crash terminal
// aware programs downstream.
func clampWindowSize(rows, cols int) (int, int) {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	return rows, cols
}
