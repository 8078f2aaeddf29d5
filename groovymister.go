// Package groovymister streams video, audio, and control data to a MiSTer
// FPGA running the Groovy_MiSTer core, and reads back the joystick, keyboard,
// and mouse state the FPGA captures.
//
// The library is the wire between a frame producer and the FPGA's scanout
// engine: it owns the UDP sockets, the LZ4/delta compression pipeline, the
// CRT-accurate frame pacer, and nothing else. It does not render and it does
// not emulate.
//
// The subpackages are usable on their own; this package bundles them the way
// most producers want them wired:
//
//	client, err := groovymister.Connect(groovymister.Options{
//		Host: "192.168.1.100",
//		LZ4:  protocol.LZ4Delta,
//	})
//	...
//	client.Stream.SwitchRes(modeline)
//	for {
//		switch client.Stream.BeginFrame() {
//		case stream.FrameReady:
//			client.Stream.SendFrame(frame, n, 0, vsync)
//		case stream.FrameSkip:
//		case stream.FrameStalled:
//			return
//		}
//	}
package groovymister

import (
	"github.com/dylan/groovymister/input"
	"github.com/dylan/groovymister/protocol"
	"github.com/dylan/groovymister/stream"
	"go.uber.org/zap"
)

// Options configures Connect. Host is mandatory; zero values elsewhere mean
// library defaults (port 32100/32101, MTU 1500, bgr888, no sound, no
// compression).
type Options struct {
	Host string
	MTU  int

	// Port and InputPort override the FPGA's default command and input
	// ports, mostly for tests.
	Port      int
	InputPort int

	RGBMode       protocol.RGBMode
	SoundRate     protocol.SoundRate
	SoundChannels protocol.SoundChannels
	LZ4           protocol.LZ4Mode

	KeyframeInterval uint32
	MaxFrameSize     int

	// WithInput also binds the input channel on port 32101.
	WithInput bool

	// Logger is shared by both channels. nil means silent.
	Logger *zap.SugaredLogger
}

// Client bundles one output channel and, optionally, one input channel to the
// same FPGA.
type Client struct {
	Stream *stream.Connection
	Input  *input.Connection
}

// Connect opens the output channel and sends the init command, mirroring what
// the C ABI's gmz_connect does. With WithInput set it also binds the input
// channel. On any failure everything already acquired is released.
func Connect(opts Options) (*Client, error) {
	conn, err := stream.Open(opts.Logger, stream.Config{
		Host:             opts.Host,
		Port:             opts.Port,
		MTU:              opts.MTU,
		RGBMode:          opts.RGBMode,
		SoundRate:        opts.SoundRate,
		SoundChannels:    opts.SoundChannels,
		LZ4:              opts.LZ4,
		KeyframeInterval: opts.KeyframeInterval,
		MaxFrameSize:     opts.MaxFrameSize,
	})
	if err != nil {
		return nil, err
	}

	if err := conn.SendInit(); err != nil {
		conn.Close()
		return nil, err
	}

	client := &Client{Stream: conn}

	if opts.WithInput {
		in, err := input.Bind(opts.Logger, opts.Host, opts.InputPort)
		if err != nil {
			conn.Close()
			return nil, err
		}
		client.Input = in
	}

	return client, nil
}

// Close releases both channels. Safe to call more than once.
func (c *Client) Close() error {
	err := c.Stream.Close()
	if c.Input != nil {
		if cerr := c.Input.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
