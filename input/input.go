// Package input implements the FPGA-to-host input channel: joystick and PS/2
// state captured on the MiSTer, streamed as small UDP packets and exposed as
// latest-wins snapshots.
package input

import (
	"fmt"
	"net"
	"syscall"

	"github.com/dylan/groovymister/protocol"
	"github.com/dylan/groovymister/stream"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// DefaultPort is the FPGA's input port.
const DefaultPort = 32101

// Connection owns the input socket and the latest joystick and PS/2
// snapshots. Like the output side it is single-goroutine and lock-free.
type Connection struct {
	log *zap.SugaredLogger

	sock *net.UDPConn
	raw  syscall.RawConn
	rbuf [64]byte

	joy    protocol.JoystickState
	hasJoy bool

	ps2    protocol.Ps2State
	hasPs2 bool

	closed bool
}

// Bind connects to the FPGA's input port and sends the one-byte hello that
// teaches the FPGA where to stream input packets. A nil logger is replaced
// with a no-op one.
func Bind(log *zap.SugaredLogger, host string, port int) (*Connection, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if port == 0 {
		port = DefaultPort
	}

	ip := net.ParseIP(host)
	if ip == nil || ip.To4() == nil {
		return nil, fmt.Errorf("%w: %q", stream.ErrResolve, host)
	}

	sock, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: ip.To4(), Port: port})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", stream.ErrSocketCreate, err)
	}

	raw, err := sock.SyscallConn()
	if err != nil {
		sock.Close()
		return nil, fmt.Errorf("%w: %v", stream.ErrSocketCreate, err)
	}

	c := &Connection{log: log, sock: sock, raw: raw}

	if _, err := sock.Write([]byte{0x00}); err != nil {
		sock.Close()
		return nil, fmt.Errorf("%w: %v", stream.ErrSend, err)
	}

	log.Infow("input channel bound", "host", host, "port", port)

	return c, nil
}

// Poll drains the socket without blocking and reports whether at least one
// packet was accepted. Packets are dispatched by length; stale ones, judged
// by (frame, order) per device, are dropped.
func (c *Connection) Poll() bool {
	accepted := false

	c.raw.Read(func(fd uintptr) bool {
		for {
			n, _, err := unix.Recvfrom(int(fd), c.rbuf[:], unix.MSG_DONTWAIT)
			if err != nil {
				return true
			}
			if c.dispatch(c.rbuf[:n]) {
				accepted = true
			}
		}
	})

	return accepted
}

func (c *Connection) dispatch(b []byte) bool {
	switch len(b) {
	case protocol.JoyDigitalLen, protocol.JoyAnalogLen:
		st, ok := protocol.ParseJoystick(b)
		if !ok || !newer(st.Frame, st.Order, c.joy.Frame, c.joy.Order, c.hasJoy) {
			return false
		}
		c.joy = st
		c.hasJoy = true
		return true

	case protocol.Ps2KeyboardLen, protocol.Ps2FullLen:
		st, ok := protocol.ParsePs2(b)
		if !ok || !newer(st.Frame, st.Order, c.ps2.Frame, c.ps2.Order, c.hasPs2) {
			return false
		}
		c.ps2 = st
		c.hasPs2 = true
		return true

	default:
		return false
	}
}

// newer implements the dedup rule: strictly newer frame, or same frame with a
// strictly newer order. The very first packet always wins.
func newer(frame uint32, order uint8, prevFrame uint32, prevOrder uint8, has bool) bool {
	if !has {
		return true
	}
	if frame != prevFrame {
		return frame > prevFrame
	}
	return order > prevOrder
}

// Joystick returns the latest joystick snapshot.
func (c *Connection) Joystick() protocol.JoystickState {
	return c.joy
}

// Ps2 returns the latest PS/2 snapshot.
func (c *Connection) Ps2() protocol.Ps2State {
	return c.ps2
}

// Close releases the socket. Safe to call more than once.
func (c *Connection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.sock.Close()
}
