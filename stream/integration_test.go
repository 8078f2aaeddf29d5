package stream

import (
	"bytes"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/dylan/groovymister/protocol"
	"github.com/dylan/groovymister/util/fpgasim"
)

func openSim(t *testing.T, mutate func(*Config)) (*fpgasim.Sim, *Connection) {
	t.Helper()

	sim, err := fpgasim.Start()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sim.Close() })

	cfg := Config{
		Host:         "127.0.0.1",
		Port:         sim.Port(),
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

	return sim, conn
}

func simModeline() protocol.Modeline {
	return protocol.Modeline{
		PixelClock: 6.7,
		HActive: 320, HBegin: 336, HEnd: 367, HTotal: 426,
		VActive: 240, VBegin: 244, VEnd: 247, VTotal: 262,
	}
}

func gradient(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i%11)
	}
	return b
}

func TestSessionRawRoundTrip(t *testing.T) {
	is := is.New(t)

	sim, conn := openSim(t, nil)

	is.NoErr(conn.SendInit())
	is.NoErr(conn.SwitchRes(simModeline()))

	frameSize := 320 * 240 * 3
	src := gradient(frameSize, 7)

	is.NoErr(conn.SendFrame(src, 1, 0, 100))
	is.True(sim.WaitFrames(1, time.Second))

	is.Equal(sim.Init().RGBMode, protocol.BGR888)
	is.Equal(sim.Modeline().HTotal, uint16(426))

	frames := sim.Frames()
	is.Equal(frames[0].Num, uint32(1))
	is.True(bytes.Equal(frames[0].Data, src))
}

func TestSessionDeltaRoundTrip(t *testing.T) {
	is := is.New(t)

	sim, conn := openSim(t, func(c *Config) {
		c.LZ4 = protocol.LZ4Delta
		c.KeyframeInterval = 3
	})

	is.NoErr(conn.SendInit())
	is.NoErr(conn.SwitchRes(simModeline()))

	const frameSize = 320 * 240 * 3

	// The keyframe-then-deltas sequence must reconstruct every source frame
	// exactly on the FPGA side.
	var sources [][]byte
	for i, seed := range []byte{0x10, 0x20, 0x30, 0x40, 0x50} {
		src := gradient(frameSize, seed)
		sources = append(sources, src)
		is.NoErr(conn.SendFrame(src, uint32(i+1), 0, 100))
	}

	is.True(sim.WaitFrames(len(sources), time.Second))

	for i, f := range sim.Frames() {
		is.Equal(f.Num, uint32(i+1))
		is.True(bytes.Equal(f.Data, sources[i]))
	}
}

func TestSessionInterlacedFieldsRoundTrip(t *testing.T) {
	is := is.New(t)

	sim, conn := openSim(t, func(c *Config) { c.LZ4 = protocol.LZ4Delta })

	m := simModeline()
	m.Interlaced = true

	is.NoErr(conn.SendInit())
	is.NoErr(conn.SwitchRes(m))

	const frameSize = 320 * 120 * 3

	// Alternate fields with unrelated content; reconstruction must keep the
	// two reference chains apart.
	var sources [][]byte
	for i := 0; i < 6; i++ {
		src := gradient(frameSize, byte(0x11*(i+1)))
		sources = append(sources, src)
		is.NoErr(conn.SendFrame(src, uint32(i+1), uint8(i&1), 100))
	}

	is.True(sim.WaitFrames(len(sources), time.Second))

	for i, f := range sim.Frames() {
		is.Equal(f.Field, uint8(i&1))
		is.True(bytes.Equal(f.Data, sources[i]))
	}
}

func TestSessionAudioRoundTrip(t *testing.T) {
	is := is.New(t)

	sim, conn := openSim(t, nil)

	is.NoErr(conn.SendInit())

	pcm := gradient(10000, 3)
	is.NoErr(conn.SendAudio(pcm))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && len(sim.Audio()) == 0 {
		time.Sleep(time.Millisecond)
	}

	audio := sim.Audio()
	is.Equal(len(audio), 1)
	is.True(bytes.Equal(audio[0], pcm))
}

func TestSessionPacedLoop(t *testing.T) {
	is := is.New(t)

	sim, conn := openSim(t, func(c *Config) { c.LZ4 = protocol.LZ4 })

	is.NoErr(conn.SendInit())

	m := simModeline()
	m.PixelClock = 26.8 // ~240 fps keeps the test quick
	is.NoErr(conn.SwitchRes(m))

	const frameSize = 320 * 240 * 3

	sent := 0
	for i := 0; i < 10; i++ {
		switch conn.BeginFrame() {
		case FrameStalled:
			t.Fatal("unexpected stall against the simulator")
		case FrameSkip:
			continue
		case FrameReady:
			sent++
			is.NoErr(conn.SendFrame(gradient(frameSize, byte(sent)), uint32(sent), 0, 1))
		}
	}

	is.True(sim.WaitFrames(sent, time.Second))
	is.True(conn.Health().VRAMReadyRate() > 0)

	is.NoErr(conn.Close())

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && !sim.Closed() {
		time.Sleep(time.Millisecond)
	}
	is.True(sim.Closed())
}
