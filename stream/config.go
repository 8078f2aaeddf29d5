package stream

import (
	"fmt"

	"github.com/dylan/groovymister/protocol"
)

const (
	// DefaultPort is the FPGA's command port.
	DefaultPort = 32100

	// DefaultMTU matches a standard ethernet link.
	DefaultMTU = 1500

	// udpOverhead is the IPv4+UDP header allowance subtracted from the MTU.
	udpOverhead = 28

	// DefaultMaxFrameSize bounds the owned buffer set: enough for
	// 1920x1080 at 4 bytes per pixel.
	DefaultMaxFrameSize = 1920 * 1080 * 4

	// sendBufBytes is requested via SO_SNDBUF at open.
	sendBufBytes = 2 * 1024 * 1024
)

// Config describes one output connection. The zero value is not usable; Host
// is mandatory and everything else falls back to defaults in Open.
type Config struct {
	Host string
	Port int

	MTU int

	RGBMode       protocol.RGBMode
	SoundRate     protocol.SoundRate
	SoundChannels protocol.SoundChannels

	LZ4 protocol.LZ4Mode

	// KeyframeInterval forces a full frame every n frames per field when
	// delta compression is on. 0 disables periodic keyframes.
	KeyframeInterval uint32

	// MaxFrameSize sizes the compression buffers at open.
	MaxFrameSize int
}

func (c *Config) withDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.MTU == 0 {
		c.MTU = DefaultMTU
	}
	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = DefaultMaxFrameSize
	}
}

func (c *Config) validate() error {
	if !c.RGBMode.Valid() {
		return fmt.Errorf("%w: rgb mode %d", ErrConfig, c.RGBMode)
	}
	if !c.SoundRate.Valid() {
		return fmt.Errorf("%w: sound rate %d", ErrConfig, c.SoundRate)
	}
	if !c.SoundChannels.Valid() {
		return fmt.Errorf("%w: sound channels %d", ErrConfig, c.SoundChannels)
	}
	if !c.LZ4.Valid() {
		return fmt.Errorf("%w: lz4 mode %d", ErrConfig, c.LZ4)
	}
	if c.MTU <= udpOverhead {
		return fmt.Errorf("%w: mtu %d", ErrConfig, c.MTU)
	}
	if c.MaxFrameSize < 0 {
		return fmt.Errorf("%w: max frame size %d", ErrConfig, c.MaxFrameSize)
	}
	return nil
}
