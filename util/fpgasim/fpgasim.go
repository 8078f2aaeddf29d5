// Package fpgasim is a loopback stand-in for the Groovy_MiSTer core: it
// speaks the command port's wire protocol, reassembles blits from their
// fragments, reconstructs LZ4 and delta payloads the way the FPGA would, and
// answers status requests with ACKs. Tests use it to prove the contract end
// to end; it is not a firmware emulator.
package fpgasim

import (
	"encoding/binary"
	"net"
	"sync"
	"time"

	"github.com/pierrec/lz4/v4"

	"github.com/dylan/groovymister/protocol"
)

// Frame is one fully reassembled and reconstructed blit.
type Frame struct {
	Num   uint32
	Field uint8
	Data  []byte
}

// Sim is the simulated FPGA. All exported accessors are safe to call while
// the receive loop runs.
type Sim struct {
	sock *net.UDPConn

	mu sync.Mutex

	init     *protocol.InitInfo
	modeline *protocol.Modeline
	closed   bool

	// Pending payload reassembly. remaining > 0 means incoming datagrams are
	// fragments, not commands.
	pending   []byte
	remaining int
	blit      *protocol.BlitHeader

	prev [2][]byte

	frames []Frame
	audio  [][]byte

	frameCount uint32
	lastEcho   uint32
}

// Start listens on an ephemeral loopback port and begins serving.
func Start() (*Sim, error) {
	sock, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		return nil, err
	}

	// A raw 320x240 blit arrives as ~160 back-to-back datagrams; the default
	// receive buffer can drop some of them under load.
	sock.SetReadBuffer(4 * 1024 * 1024)

	s := &Sim{sock: sock}
	go s.serve()
	return s, nil
}

// Port returns the command port the sim listens on.
func (s *Sim) Port() int {
	return s.sock.LocalAddr().(*net.UDPAddr).Port
}

// Close stops the receive loop.
func (s *Sim) Close() error {
	return s.sock.Close()
}

func (s *Sim) serve() {
	buf := make([]byte, 65536)
	for {
		n, addr, err := s.sock.ReadFromUDP(buf)
		if err != nil {
			return
		}

		if reply := s.handle(buf[:n]); reply != nil {
			s.sock.WriteToUDP(reply, addr)
		}
	}
}

func (s *Sim) handle(b []byte) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.remaining > 0 {
		s.pending = append(s.pending, b...)
		s.remaining -= len(b)
		if s.remaining <= 0 {
			s.finishPayload()
		}
		return nil
	}

	if len(b) == 0 {
		return nil
	}

	switch b[0] {
	case protocol.CmdInit:
		if info, ok := protocol.DecodeInit(b); ok {
			s.init = &info
		}

	case protocol.CmdSwitchRes:
		if m, ok := protocol.DecodeSwitchRes(b); ok {
			s.modeline = &m
			s.prev[0] = nil
			s.prev[1] = nil
		}

	case protocol.CmdBlit:
		if h, ok := protocol.DecodeBlitHeader(b); ok {
			s.beginBlit(h)
		}

	case protocol.CmdAudio:
		if n, ok := protocol.DecodeAudio(b); ok {
			s.pending = s.pending[:0]
			s.remaining = int(n)
			s.blit = nil
			if n == 0 {
				s.audio = append(s.audio, nil)
				s.remaining = 0
			}
		}

	case protocol.CmdGetStatus, protocol.CmdGetVersion:
		return s.statusLocked()

	case protocol.CmdClose:
		s.closed = true
	}

	return nil
}

func (s *Sim) beginBlit(h protocol.BlitHeader) {
	s.pending = s.pending[:0]
	s.blit = &h

	if h.Compressed {
		s.remaining = int(h.CompressedSize)
	} else {
		s.remaining = s.rawFrameSize()
	}

	if s.remaining == 0 {
		s.finishPayload()
	}
}

// rawFrameSize is what an uncompressed blit is expected to carry.
func (s *Sim) rawFrameSize() int {
	if s.modeline == nil || s.init == nil {
		return 0
	}
	return int(s.modeline.HActive) * int(s.modeline.VActive) * s.init.RGBMode.BytesPerPixel()
}

func (s *Sim) finishPayload() {
	payload := append([]byte(nil), s.pending...)
	s.pending = s.pending[:0]
	s.remaining = 0

	if s.blit == nil {
		s.audio = append(s.audio, payload)
		return
	}

	h := *s.blit
	s.blit = nil

	data := payload
	if h.Compressed {
		out := make([]byte, s.rawFrameSize())
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return
		}
		data = out[:n]
	}

	f := h.Field & 1
	if h.Delta {
		if s.prev[f] == nil || len(s.prev[f]) != len(data) {
			return
		}
		for i := range data {
			data[i] += s.prev[f][i]
		}
	}
	s.prev[f] = append([]byte(nil), data...)

	s.frames = append(s.frames, Frame{Num: h.Frame, Field: h.Field, Data: data})
	s.frameCount++
	s.lastEcho = h.Frame
}

func (s *Sim) statusLocked() []byte {
	b := make([]byte, protocol.StatusLen)
	binary.LittleEndian.PutUint32(b[0:], s.lastEcho)
	binary.LittleEndian.PutUint16(b[4:], 1)
	binary.LittleEndian.PutUint32(b[6:], s.frameCount)
	binary.LittleEndian.PutUint16(b[10:], 1)
	b[12] = 0x05 // vram_ready | vram_synced
	return b
}

// Init returns the decoded init packet, or nil.
func (s *Sim) Init() *protocol.InitInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.init
}

// Modeline returns the last switch_res, or nil.
func (s *Sim) Modeline() *protocol.Modeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modeline
}

// Closed reports whether a close command arrived.
func (s *Sim) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Frames returns the reconstructed blits so far.
func (s *Sim) Frames() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Frame(nil), s.frames...)
}

// Audio returns the reassembled PCM payloads so far.
func (s *Sim) Audio() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.audio...)
}

// WaitFrames blocks until n frames arrived or the timeout passed.
func (s *Sim) WaitFrames(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if len(s.Frames()) >= n {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}
