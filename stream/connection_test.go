package stream

import (
	"encoding/binary"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/dylan/groovymister/protocol"
	"github.com/dylan/groovymister/util/testutil"
	"github.com/matryer/is"
)

// fakeFPGA is a loopback UDP peer standing in for the MiSTer core.
type fakeFPGA struct {
	sock *net.UDPConn
}

func newFakeFPGA(t *testing.T) *fakeFPGA {
	t.Helper()

	sock, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sock.Close() })

	return &fakeFPGA{sock: sock}
}

func (f *fakeFPGA) port() int {
	return f.sock.LocalAddr().(*net.UDPAddr).Port
}

// recv returns the next datagram, or nil on timeout.
func (f *fakeFPGA) recv(timeout time.Duration) []byte {
	buf := make([]byte, 2048)
	f.sock.SetReadDeadline(time.Now().Add(timeout))
	n, _, err := f.sock.ReadFromUDP(buf)
	if err != nil {
		return nil
	}
	return buf[:n]
}

// recvAll collects datagrams until a read times out.
func (f *fakeFPGA) recvAll(timeout time.Duration) [][]byte {
	var out [][]byte
	for {
		b := f.recv(timeout)
		if b == nil {
			return out
		}
		out = append(out, b)
	}
}

// respond answers every incoming datagram with the given status packet until
// the socket closes.
func (f *fakeFPGA) respond(status []byte) {
	go func() {
		buf := make([]byte, 2048)
		for {
			f.sock.SetReadDeadline(time.Now().Add(time.Second))
			_, addr, err := f.sock.ReadFromUDP(buf)
			if err != nil {
				return
			}
			f.sock.WriteToUDP(status, addr)
		}
	}()
}

func statusPacket(frameEcho uint32, vcountEcho uint16, frame uint32, vcount uint16, bits uint8) []byte {
	b := make([]byte, protocol.StatusLen)
	binary.LittleEndian.PutUint32(b[0:], frameEcho)
	binary.LittleEndian.PutUint16(b[4:], vcountEcho)
	binary.LittleEndian.PutUint32(b[6:], frame)
	binary.LittleEndian.PutUint16(b[10:], vcount)
	b[12] = bits
	return b
}

func openTest(t *testing.T, fpga *fakeFPGA, mutate func(*Config)) *Connection {
	t.Helper()

	cfg := Config{
		Host:         "127.0.0.1",
		Port:         fpga.port(),
		MTU:          1500,
		MaxFrameSize: 1 << 20,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	conn, err := Open(nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	return conn
}

func TestOpenRejectsBadHost(t *testing.T) {
	is := is.New(t)

	for _, host := range []string{"", "mister.local", "::1", "256.0.0.1"} {
		_, err := Open(nil, Config{Host: host})
		is.True(errors.Is(err, ErrResolve))
	}
}

func TestOpenRejectsBadConfig(t *testing.T) {
	is := is.New(t)

	bad := []Config{
		{Host: "127.0.0.1", RGBMode: 3},
		{Host: "127.0.0.1", SoundRate: 4},
		{Host: "127.0.0.1", SoundChannels: 3},
		{Host: "127.0.0.1", LZ4: 7},
		{Host: "127.0.0.1", MTU: 28},
	}

	for _, cfg := range bad {
		_, err := Open(nil, cfg)
		is.True(errors.Is(err, ErrConfig))
	}
}

func TestSendInitWire(t *testing.T) {
	is := is.New(t)
	fpga := newFakeFPGA(t)

	conn := openTest(t, fpga, func(c *Config) {
		c.LZ4 = protocol.LZ4HCDelta
		c.SoundRate = protocol.Sound44100
		c.SoundChannels = protocol.ChannelsStereo
		c.RGBMode = protocol.RGB565
	})

	is.NoErr(conn.SendInit())
	is.Equal(fpga.recv(time.Second), []byte{2, 1, 2, 2, 2})
}

func TestChunkCounts(t *testing.T) {
	is := is.New(t)

	mtuEff := 1500 - 28

	cases := []struct {
		size   int
		chunks int
	}{
		{0, 0},
		{1, 1},
		{mtuEff, 1},
		{mtuEff + 1, 2},
		{3 * mtuEff, 3},
	}

	for _, tc := range cases {
		fpga := newFakeFPGA(t)
		conn := openTest(t, fpga, nil)

		is.NoErr(conn.SendFrame(make([]byte, tc.size), 9, 0, 100))

		got := fpga.recvAll(100 * time.Millisecond)
		is.Equal(len(got), 1+tc.chunks)

		// Header first, raw variant.
		is.Equal(len(got[0]), 8)
		is.Equal(got[0][0], uint8(protocol.CmdBlit))
		is.Equal(binary.LittleEndian.Uint32(got[0][1:]), uint32(9))

		total := 0
		for i, chunk := range got[1:] {
			if i < tc.chunks-1 {
				is.Equal(len(chunk), mtuEff)
			}
			total += len(chunk)
		}
		is.Equal(total, tc.size)
	}
}

func TestSendFrameCompressed(t *testing.T) {
	is := is.New(t)
	fpga := newFakeFPGA(t)

	conn := openTest(t, fpga, func(c *Config) { c.LZ4 = protocol.LZ4 })

	data := make([]byte, 4096)
	is.NoErr(conn.SendFrame(data, 1, 0, 50))

	got := fpga.recvAll(100 * time.Millisecond)
	is.True(len(got) >= 2)
	is.Equal(len(got[0]), 12)

	compressed := binary.LittleEndian.Uint32(got[0][8:])
	total := 0
	for _, chunk := range got[1:] {
		total += len(chunk)
	}
	is.Equal(total, int(compressed))
	is.Equal(conn.LastFrame(), uint32(1))
}

func TestSendFrameDeltaHeaders(t *testing.T) {
	is := is.New(t)
	fpga := newFakeFPGA(t)

	conn := openTest(t, fpga, func(c *Config) { c.LZ4 = protocol.LZ4Delta })

	is.NoErr(conn.SendFrame(make([]byte, 1024), 1, 0, 50))
	first := fpga.recvAll(100 * time.Millisecond)
	is.Equal(len(first[0]), 12) // keyframe

	is.NoErr(conn.SendFrame(make([]byte, 1024), 2, 0, 50))
	second := fpga.recvAll(100 * time.Millisecond)
	is.Equal(len(second[0]), 13) // delta
	is.Equal(second[0][12], uint8(1))
}

func TestSendAudio(t *testing.T) {
	is := is.New(t)
	fpga := newFakeFPGA(t)
	conn := openTest(t, fpga, nil)

	// Empty is silently dropped.
	is.NoErr(conn.SendAudio(nil))
	is.Equal(len(fpga.recvAll(50*time.Millisecond)), 0)

	// One fragment.
	mtuEff := 1500 - 28
	is.NoErr(conn.SendAudio(make([]byte, mtuEff)))
	got := fpga.recvAll(100 * time.Millisecond)
	is.Equal(len(got), 2)
	is.Equal(got[0], []byte{4, byte(mtuEff & 0xFF), byte(mtuEff >> 8)})
	is.Equal(len(got[1]), mtuEff)

	// Maximum size works.
	is.NoErr(conn.SendAudio(make([]byte, 65535)))
	got = fpga.recvAll(100 * time.Millisecond)
	is.Equal(len(got), 1+(65535+mtuEff-1)/mtuEff)

	// One byte over is rejected before anything hits the wire.
	is.Equal(conn.SendAudio(make([]byte, 65536)), ErrAudioTooLarge)
	is.Equal(len(fpga.recvAll(50*time.Millisecond)), 0)
}

func TestSwitchRes(t *testing.T) {
	is := is.New(t)
	fpga := newFakeFPGA(t)
	conn := openTest(t, fpga, nil)

	m := protocol.Modeline{
		PixelClock: 6.7,
		HActive: 320, HBegin: 336, HEnd: 367, HTotal: 426,
		VActive: 240, VBegin: 244, VEnd: 247, VTotal: 262,
	}

	is.NoErr(conn.SwitchRes(m))
	is.Equal(conn.Timing().FrameTimeNs, int64(16658484))

	pkt := fpga.recv(time.Second)
	is.Equal(len(pkt), 26)
	is.Equal(pkt[0], uint8(protocol.CmdSwitchRes))

	bad := m
	bad.PixelClock = 0
	is.True(errors.Is(conn.SwitchRes(bad), ErrConfig))
}

func TestPollKeepsLatestStatus(t *testing.T) {
	is := is.New(t)
	fpga := newFakeFPGA(t)
	conn := openTest(t, fpga, nil)

	// Learn the client's address via a get_status request.
	is.NoErr(testutil.RunParallel(t,
		func(t *testing.T) {
			is := is.New(t)
			is.True(conn.WaitSync(500))
		},
		func(t *testing.T) {
			is := is.New(t)
			buf := make([]byte, 64)
			fpga.sock.SetReadDeadline(time.Now().Add(time.Second))
			_, addr, err := fpga.sock.ReadFromUDP(buf)
			is.NoErr(err)

			fpga.sock.WriteToUDP(statusPacket(1, 0, 1, 0, 0x01), addr)
			fpga.sock.WriteToUDP(statusPacket(2, 10, 2, 20, 0x05), addr)
			fpga.sock.WriteToUDP(make([]byte, 5), addr) // runt, ignored
		},
	))

	// Let the trailing datagrams land, then drain.
	time.Sleep(50 * time.Millisecond)
	conn.Poll()

	st := conn.Status()
	is.Equal(st.FrameEcho, uint32(2))
	is.Equal(st.VCount, uint16(20))
	is.True(st.VRAMSynced)
}

func TestWaitSyncTimeout(t *testing.T) {
	is := is.New(t)
	fpga := newFakeFPGA(t)
	conn := openTest(t, fpga, nil)

	t0 := time.Now()
	is.True(!conn.WaitSync(50))
	elapsed := time.Since(t0)
	is.True(elapsed >= 50*time.Millisecond)
	is.True(elapsed < 500*time.Millisecond)
}

func TestWaitSyncBootstrap(t *testing.T) {
	is := is.New(t)
	fpga := newFakeFPGA(t)
	conn := openTest(t, fpga, nil)

	fpga.respond(statusPacket(0, 0, 1, 12, 0x01))

	is.True(conn.WaitSync(500))
	is.True(conn.Status().VRAMReady)
}

func TestTickRecordsReady(t *testing.T) {
	is := is.New(t)
	fpga := newFakeFPGA(t)
	conn := openTest(t, fpga, nil)

	fpga.respond(statusPacket(0, 0, 1, 0, 0x01))
	is.True(conn.WaitSync(500))

	state := conn.Tick()
	is.True(state.VRAMReady)
	is.Equal(state.VRAMReadyRate, 1.0)
}

func TestCloseIdempotent(t *testing.T) {
	is := is.New(t)
	fpga := newFakeFPGA(t)
	conn := openTest(t, fpga, nil)

	is.NoErr(conn.Close())
	is.Equal(fpga.recv(time.Second), []byte{1})
	is.NoErr(conn.Close())
}

func TestChunkOrderPreserved(t *testing.T) {
	is := is.New(t)
	fpga := newFakeFPGA(t)
	conn := openTest(t, fpga, nil)

	mtuEff := 1500 - 28
	data := make([]byte, 4*mtuEff+17)
	for i := range data {
		data[i] = byte(i * 7)
	}

	is.NoErr(conn.SendFrame(data, 3, 0, 1))

	got := fpga.recvAll(100 * time.Millisecond)
	is.Equal(len(got), 6)

	// Reassembling the payload fragments in arrival order yields the frame.
	var joined []byte
	for _, chunk := range got[1:] {
		joined = append(joined, chunk...)
	}
	is.Equal(joined, data)
}

func TestRecordSyncWaitUsesStatus(t *testing.T) {
	is := is.New(t)
	fpga := newFakeFPGA(t)
	conn := openTest(t, fpga, nil)

	fpga.respond(statusPacket(0, 0, 1, 0, 0x01))
	is.True(conn.WaitSync(500))

	conn.RecordSyncWait(2.5)
	is.Equal(conn.Health().AvgSyncWaitMs(), 2.5)
	is.Equal(conn.Health().VRAMReadyRate(), 1.0)
}

func TestRasterOffsetHelper(t *testing.T) {
	is := is.New(t)
	fpga := newFakeFPGA(t)
	conn := openTest(t, fpga, nil)

	// No modeline yet.
	is.Equal(conn.RasterOffsetNs(), int64(0))

	m := protocol.Modeline{
		PixelClock: 6.7,
		HActive: 320, HBegin: 336, HEnd: 367, HTotal: 426,
		VActive: 240, VBegin: 244, VEnd: 247, VTotal: 262,
	}
	is.NoErr(conn.SwitchRes(m))
	fpga.recvAll(50 * time.Millisecond)

	is.NoErr(conn.SendFrame(nil, 10, 0, 1))
	fpga.recvAll(50 * time.Millisecond)

	// FPGA acknowledged frame 10 at line 120 while scanning frame 9 line 100:
	// v1 = 9*262+120 = 2478, v2 = 9*262+100 = 2458, dif = 10.
	conn.status, _ = protocol.ParseStatus(statusPacket(10, 120, 9, 100, 0x01))
	is.Equal(conn.RasterOffsetNs(), 10*conn.ft.LineTimeNs)

	// An echo for a different frame is meaningless.
	conn.status, _ = protocol.ParseStatus(statusPacket(8, 120, 9, 100, 0x01))
	is.Equal(conn.RasterOffsetNs(), int64(0))
}
