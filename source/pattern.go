// Package source provides frame and audio producers for driving a stream
// without an emulator attached: a moving test pattern, a shared-memory
// segment written by an external producer, and WAV files for PCM audio.
package source

import "github.com/dylan/groovymister/protocol"

// barColors are the classic SMPTE-ish bars as RGB triples.
var barColors = [8][3]uint8{
	{255, 255, 255},
	{255, 255, 0},
	{0, 255, 255},
	{0, 255, 0},
	{255, 0, 255},
	{255, 0, 0},
	{0, 0, 255},
	{0, 0, 0},
}

// Pattern renders scrolling color bars, one call per frame, into a reusable
// buffer. It exists to soak-test a link when no real producer is around.
type Pattern struct {
	width  int
	height int
	mode   protocol.RGBMode

	buf    []byte
	offset int
}

func NewPattern(width, height int, mode protocol.RGBMode) *Pattern {
	return &Pattern{
		width:  width,
		height: height,
		mode:   mode,
		buf:    make([]byte, width*height*mode.BytesPerPixel()),
	}
}

// FrameSize returns the byte length of one rendered frame.
func (p *Pattern) FrameSize() int {
	return len(p.buf)
}

// Next renders the next frame and returns the internal buffer, valid until
// the following call.
func (p *Pattern) Next() []byte {
	barWidth := p.width / len(barColors)
	if barWidth == 0 {
		barWidth = 1
	}

	i := 0
	for y := 0; y < p.height; y++ {
		for x := 0; x < p.width; x++ {
			c := barColors[((x+p.offset)/barWidth)%len(barColors)]
			i += p.put(p.buf[i:], c[0], c[1], c[2])
		}
	}

	p.offset = (p.offset + 2) % p.width
	return p.buf
}

func (p *Pattern) put(dst []byte, r, g, b uint8) int {
	switch p.mode {
	case protocol.BGRA8888:
		dst[0] = b
		dst[1] = g
		dst[2] = r
		dst[3] = 0xFF
		return 4
	case protocol.RGB565:
		v := uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
		dst[0] = uint8(v)
		dst[1] = uint8(v >> 8)
		return 2
	default: // BGR888
		dst[0] = b
		dst[1] = g
		dst[2] = r
		return 3
	}
}
