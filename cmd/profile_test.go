package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matryer/is"

	"github.com/dylan/groovymister/protocol"
)

const sampleProfile = `
[stream]
host = 192.168.1.100
mtu = 1500
rgb_mode = 0
sound_rate = 2
sound_channels = 2
lz4_mode = 2
keyframe_interval = 60

[mode.240p]
pixel_clock = 6.7
h_active = 320
h_begin = 336
h_end = 367
h_total = 426
v_active = 240
v_begin = 244
v_end = 247
v_total = 262
interlaced = 0

[mode.broken]
pixel_clock = 0
`

func writeProfile(t *testing.T) *Profile {
	t.Helper()

	path := filepath.Join(t.TempDir(), "profile.ini")
	if err := os.WriteFile(path, []byte(sampleProfile), 0600); err != nil {
		t.Fatal(err)
	}

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestProfileStream(t *testing.T) {
	is := is.New(t)

	cfg, err := writeProfile(t).Stream()
	is.NoErr(err)
	is.Equal(cfg.Host, "192.168.1.100")
	is.Equal(cfg.MTU, 1500)
	is.Equal(cfg.SoundRate, protocol.Sound44100)
	is.Equal(cfg.SoundChannels, protocol.ChannelsStereo)
	is.Equal(cfg.LZ4, protocol.LZ4Delta)
	is.Equal(cfg.KeyframeInterval, uint32(60))
}

func TestProfileModeline(t *testing.T) {
	is := is.New(t)

	p := writeProfile(t)

	m, err := p.Modeline("240p")
	is.NoErr(err)
	is.Equal(m.PixelClock, 6.7)
	is.Equal(m.HTotal, uint16(426))
	is.Equal(m.VTotal, uint16(262))
	is.True(!m.Interlaced)

	_, err = p.Modeline("missing")
	is.True(err != nil)

	_, err = p.Modeline("broken")
	is.True(err != nil)
}
