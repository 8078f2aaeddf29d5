package source

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"

	"github.com/dylan/groovymister/protocol"
)

// AudioClip is a decoded WAV file, ready to be fed to the audio channel as
// interleaved signed 16-bit little-endian PCM.
type AudioClip struct {
	PCM      []byte
	Rate     protocol.SoundRate
	Channels protocol.SoundChannels
}

// LoadWAV decodes a RIFF/WAV file into the wire PCM format. Only the sample
// rates and channel layouts the FPGA accepts are allowed.
func LoadWAV(path string) (*AudioClip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w", path, err)
	}

	var rate protocol.SoundRate
	switch buf.Format.SampleRate {
	case 22050:
		rate = protocol.Sound22050
	case 44100:
		rate = protocol.Sound44100
	case 48000:
		rate = protocol.Sound48000
	default:
		return nil, fmt.Errorf("unsupported sample rate %d", buf.Format.SampleRate)
	}

	var channels protocol.SoundChannels
	switch buf.Format.NumChannels {
	case 1:
		channels = protocol.ChannelsMono
	case 2:
		channels = protocol.ChannelsStereo
	default:
		return nil, fmt.Errorf("unsupported channel count %d", buf.Format.NumChannels)
	}

	pcm := make([]byte, 0, len(buf.Data)*2)
	for _, sample := range buf.Data {
		var s int16
		switch {
		case dec.BitDepth == 8:
			// 8-bit WAV is unsigned.
			s = int16((sample - 128) << 8)
		case dec.BitDepth > 16:
			s = int16(sample >> (uint(dec.BitDepth) - 16))
		default:
			s = int16(sample)
		}
		pcm = append(pcm, byte(s), byte(uint16(s)>>8))
	}

	return &AudioClip{PCM: pcm, Rate: rate, Channels: channels}, nil
}

// Slices cuts the PCM into chunks no larger than max bytes, aligned to whole
// frames so a chunk never splits a sample across channels.
func (c *AudioClip) Slices(max int) [][]byte {
	frame := 2 * c.Channels.Count()
	if frame == 0 {
		frame = 2
	}
	if max > 65535 {
		max = 65535
	}
	max -= max % frame

	var out [][]byte
	for pcm := c.PCM; len(pcm) > 0; {
		n := len(pcm)
		if n > max {
			n = max
		}
		out = append(out, pcm[:n])
		pcm = pcm[n:]
	}
	return out
}
