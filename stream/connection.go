// Package stream implements the host side of the Groovy_MiSTer output
// channel: a non-blocking UDP connection that carries display timing
// commands, compressed or raw frames, and PCM audio, paced against the ACKs
// the FPGA sends back.
package stream

import (
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/dylan/groovymister/compress"
	"github.com/dylan/groovymister/health"
	"github.com/dylan/groovymister/protocol"
	"github.com/dylan/groovymister/timing"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// State is the combined FPGA status and health snapshot handed out by Tick.
type State struct {
	protocol.FpgaStatus

	AvgSyncWaitMs    float64
	P95SyncWaitMs    float64
	VRAMReadyRate    float64
	StallThresholdMs float64
}

// Connection owns the output socket and everything paced over it: the latest
// FPGA status, the health window, the pacer, and the compression buffer set.
// It is driven from a single goroutine; nothing here locks.
type Connection struct {
	log *zap.SugaredLogger
	cfg Config

	sock   *net.UDPConn
	raw    syscall.RawConn
	mtuEff int

	status  protocol.FpgaStatus
	healthW *health.Window

	ft        timing.FrameTiming
	hasTiming bool

	codec *compress.Codec
	delta *compress.DeltaEncoder
	out   []byte
	rbuf  [2048]byte

	epoch time.Time
	pace  pacer

	lastFrame uint32
	closed    bool
}

// Open resolves the host, creates the socket, and sizes its send buffer.
// Nothing is sent yet; SendInit starts the session. A nil logger is replaced
// with a no-op one.
func Open(log *zap.SugaredLogger, cfg Config) (*Connection, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	ip := net.ParseIP(cfg.Host)
	if ip == nil || ip.To4() == nil {
		return nil, fmt.Errorf("%w: %q", ErrResolve, cfg.Host)
	}

	sock, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: ip.To4(), Port: cfg.Port})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSocketCreate, err)
	}

	if err := sock.SetWriteBuffer(sendBufBytes); err != nil {
		sock.Close()
		return nil, fmt.Errorf("%w: %v", ErrSetSendBuf, err)
	}

	raw, err := sock.SyscallConn()
	if err != nil {
		sock.Close()
		return nil, fmt.Errorf("%w: %v", ErrSocketCreate, err)
	}

	c := &Connection{
		log:     log,
		cfg:     cfg,
		sock:    sock,
		raw:     raw,
		mtuEff:  cfg.MTU - udpOverhead,
		healthW: health.NewWindow(),
		epoch:   time.Now(),
	}

	if cfg.LZ4.Enabled() {
		c.codec = compress.NewCodec(cfg.LZ4)
		c.out = make([]byte, compress.Bound(cfg.MaxFrameSize))
		if cfg.LZ4.Delta() {
			c.delta = compress.NewDeltaEncoder(cfg.MaxFrameSize, cfg.KeyframeInterval)
		}
	}

	log.Infow("output channel open",
		"host", cfg.Host, "port", cfg.Port, "mtu", cfg.MTU, "lz4", cfg.LZ4)

	return c, nil
}

// Config returns the configuration the connection was opened with, defaults
// applied.
func (c *Connection) Config() Config {
	return c.cfg
}

// Status returns a snapshot of the latest FPGA ACK.
func (c *Connection) Status() protocol.FpgaStatus {
	return c.status
}

// Health returns the rolling health window. The connection keeps ownership.
func (c *Connection) Health() *health.Window {
	return c.healthW
}

// Timing returns the frame timing of the active modeline, zero before the
// first SwitchRes.
func (c *Connection) Timing() timing.FrameTiming {
	return c.ft
}

// LastFrame returns the frame number of the most recent SendFrame.
func (c *Connection) LastFrame() uint32 {
	return c.lastFrame
}

// RasterOffsetNs returns the raster offset between the FPGA's scanout and the
// last submitted frame, zero before the first SwitchRes or while the latest
// ACK echoes another frame.
func (c *Connection) RasterOffsetNs() int64 {
	if !c.hasTiming {
		return 0
	}
	return c.ft.RasterOffsetNs(c.status, c.lastFrame)
}

// SendInit emits the session-opening init packet.
func (c *Connection) SendInit() error {
	return c.writeDatagram(protocol.Init(c.cfg.LZ4, c.cfg.SoundRate, c.cfg.SoundChannels, c.cfg.RGBMode))
}

// SendGetVersion asks the firmware to report its version in a later ACK
// exchange.
func (c *Connection) SendGetVersion() error {
	return c.writeDatagram(protocol.GetVersion())
}

// SwitchRes emits the modeline and refreshes the pacer's frame timing. The
// delta references are dropped, since the FPGA reallocates its frame store.
func (c *Connection) SwitchRes(m protocol.Modeline) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}

	if err := c.writeDatagram(protocol.SwitchRes(m)); err != nil {
		return err
	}

	c.ft = timing.New(m)
	c.hasTiming = true
	if c.delta != nil {
		c.delta.Reset()
	}

	c.log.Infow("switched resolution",
		"h", m.HActive, "v", m.VActive, "interlaced", m.Interlaced,
		"frame_time_ns", c.ft.FrameTimeNs)

	return nil
}

// SendFrame blits one frame: a header datagram whose variant reflects the
// compression outcome, followed by the payload in MTU-bounded fragments.
// Zero-length frames are valid and produce a header only.
func (c *Connection) SendFrame(data []byte, frame uint32, field uint8, vsyncLine uint16) error {
	payload := data
	var header []byte

	if c.codec != nil {
		var (
			n     int
			delta bool
			err   error
		)
		if c.delta != nil {
			n, delta, err = c.delta.Encode(c.codec, data, field, c.out)
		} else {
			n, err = c.codec.Compress(data, c.out)
		}
		if err != nil {
			return err
		}

		payload = c.out[:n]
		if delta {
			header = protocol.BlitLZ4Delta(frame, field, vsyncLine, uint32(n))
		} else {
			header = protocol.BlitLZ4(frame, field, vsyncLine, uint32(n))
		}
	} else {
		header = protocol.BlitRaw(frame, field, vsyncLine)
	}

	if err := c.writeDatagram(header); err != nil {
		return err
	}
	if err := c.sendChunks(payload); err != nil {
		return err
	}

	c.lastFrame = frame
	return nil
}

// SendAudio streams raw PCM: a 3-byte header, then the samples in MTU-bounded
// fragments. Empty input is silently dropped; anything over 65535 bytes must
// be split by the caller.
func (c *Connection) SendAudio(pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	if len(pcm) > 65535 {
		return ErrAudioTooLarge
	}

	if err := c.writeDatagram(protocol.Audio(uint16(len(pcm)))); err != nil {
		return err
	}
	return c.sendChunks(pcm)
}

// RecordSyncWait feeds one submitted frame's sync wait into the health
// window, paired with the FPGA's current readiness.
func (c *Connection) RecordSyncWait(ms float64) {
	c.healthW.Record(ms, c.status.VRAMReady)
}

// Poll drains the socket without blocking. Every well-formed status datagram
// overwrites the snapshot; the latest ACK wins. Reports whether a status
// datagram arrived; shorter datagrams are read and discarded.
func (c *Connection) Poll() bool {
	return c.drain() > 0
}

// Tick polls, records a readiness sample, and returns the combined status and
// health snapshot.
func (c *Connection) Tick() State {
	c.Poll()
	c.healthW.RecordReady(c.status.VRAMReady)

	var periodMs float64
	if c.hasTiming {
		periodMs = float64(c.ft.FrameTimeNs) / 1e6
	}

	return State{
		FpgaStatus:       c.status,
		AvgSyncWaitMs:    c.healthW.AvgSyncWaitMs(),
		P95SyncWaitMs:    c.healthW.P95SyncWaitMs(),
		VRAMReadyRate:    c.healthW.VRAMReadyRate(),
		StallThresholdMs: c.healthW.StallThresholdMs(periodMs),
	}
}

// WaitSync requests a status ACK and waits up to timeoutMs for anything to
// arrive, then drains. Reports whether at least one datagram landed. This is
// the one call that drives ACKs when the FPGA is otherwise silent: at
// bootstrap, and during a VRAM stall when no blits are flowing.
func (c *Connection) WaitSync(timeoutMs int) bool {
	// Fire and forget; the wait below notices the answer or the silence.
	if err := c.writeDatagram(protocol.GetStatus()); err != nil {
		c.log.Debugw("get_status send failed", "err", err)
	}

	c.sock.SetReadDeadline(time.Now().Add(time.Duration(timeoutMs) * time.Millisecond))
	defer c.sock.SetReadDeadline(time.Time{})

	got := false
	c.raw.Read(func(fd uintptr) bool {
		for {
			n, _, err := unix.Recvfrom(int(fd), c.rbuf[:], unix.MSG_DONTWAIT)
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				// Nothing queued: park until readable or deadline, unless we
				// already drained something.
				return got
			}
			if err != nil {
				return true
			}
			got = true
			if st, ok := protocol.ParseStatus(c.rbuf[:n]); ok {
				c.status = st
			}
		}
	})

	return got
}

// Close sends the close command best-effort and releases the socket. Safe to
// call more than once.
func (c *Connection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	if err := c.writeDatagram(protocol.Close()); err != nil {
		c.log.Debugw("close packet send failed", "err", err)
	}

	return c.sock.Close()
}

func (c *Connection) writeDatagram(b []byte) error {
	if _, err := c.sock.Write(b); err != nil {
		return fmt.Errorf("%w: %v", ErrSend, err)
	}
	return nil
}

// sendChunks fragments p into datagrams of at most mtuEff bytes, in order.
func (c *Connection) sendChunks(p []byte) error {
	for len(p) > 0 {
		n := len(p)
		if n > c.mtuEff {
			n = c.mtuEff
		}
		if err := c.writeDatagram(p[:n]); err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// drain reads until the socket would block, keeping the newest status.
// Receive errors end the loop without touching the last snapshot.
func (c *Connection) drain() int {
	count := 0
	c.raw.Read(func(fd uintptr) bool {
		for {
			n, _, err := unix.Recvfrom(int(fd), c.rbuf[:], unix.MSG_DONTWAIT)
			if err != nil {
				return true
			}
			if st, ok := protocol.ParseStatus(c.rbuf[:n]); ok {
				c.status = st
				count++
			}
		}
	})
	return count
}

func (c *Connection) nowNs() int64 {
	return time.Since(c.epoch).Nanoseconds()
}
