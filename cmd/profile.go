package cmd

import (
	"fmt"

	"gopkg.in/ini.v1"

	"github.com/dylan/groovymister/protocol"
	"github.com/dylan/groovymister/stream"
)

// Profile is a parsed stream profile: connection settings in the [stream]
// section, named modeline presets in [mode.<name>] sections.
type Profile struct {
	cfg *ini.File
}

func LoadProfile(path string) (*Profile, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	return &Profile{cfg: cfg}, nil
}

// Stream assembles a connection config from the [stream] section. Missing
// keys keep the library defaults.
func (p *Profile) Stream() (stream.Config, error) {
	sect := p.cfg.Section("stream")

	out := stream.Config{
		Host:             sect.Key("host").String(),
		Port:             sect.Key("port").MustInt(0),
		MTU:              sect.Key("mtu").MustInt(0),
		RGBMode:          protocol.RGBMode(sect.Key("rgb_mode").MustUint(0)),
		SoundRate:        protocol.SoundRate(sect.Key("sound_rate").MustUint(0)),
		SoundChannels:    protocol.SoundChannels(sect.Key("sound_channels").MustUint(0)),
		LZ4:              protocol.LZ4Mode(sect.Key("lz4_mode").MustUint(0)),
		KeyframeInterval: uint32(sect.Key("keyframe_interval").MustUint(0)),
		MaxFrameSize:     sect.Key("max_frame_size").MustInt(0),
	}

	if out.Host == "" {
		return out, fmt.Errorf("profile has no stream host")
	}

	return out, nil
}

// Modeline reads the named [mode.<name>] preset.
func (p *Profile) Modeline(name string) (protocol.Modeline, error) {
	sectName := "mode." + name
	if !p.cfg.HasSection(sectName) {
		return protocol.Modeline{}, fmt.Errorf("profile has no mode %q", name)
	}
	sect := p.cfg.Section(sectName)

	m := protocol.Modeline{
		PixelClock: sect.Key("pixel_clock").MustFloat64(0),
		HActive:    uint16(sect.Key("h_active").MustUint(0)),
		HBegin:     uint16(sect.Key("h_begin").MustUint(0)),
		HEnd:       uint16(sect.Key("h_end").MustUint(0)),
		HTotal:     uint16(sect.Key("h_total").MustUint(0)),
		VActive:    uint16(sect.Key("v_active").MustUint(0)),
		VBegin:     uint16(sect.Key("v_begin").MustUint(0)),
		VEnd:       uint16(sect.Key("v_end").MustUint(0)),
		VTotal:     uint16(sect.Key("v_total").MustUint(0)),
		Interlaced: sect.Key("interlaced").MustBool(false),
	}

	if err := m.Validate(); err != nil {
		return protocol.Modeline{}, fmt.Errorf("mode %q: %w", name, err)
	}

	return m, nil
}
