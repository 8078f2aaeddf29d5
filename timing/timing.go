// Package timing holds the pure CRT timing math: frame periods derived from a
// modeline, the raster offset between host and FPGA, and the vsync scanline
// that gives a frame the best chance of arriving just before scanout.
package timing

import (
	"math"

	"github.com/dylan/groovymister/protocol"
)

// FrameTiming is the nanosecond view of a modeline. For interlaced modes
// FrameTimeNs is the period of one field, not the full frame.
type FrameTiming struct {
	LineTimeNs  int64
	FrameTimeNs int64
	VTotal      uint16
	Interlace   uint8
}

// New derives the frame timing from a modeline.
func New(m protocol.Modeline) FrameTiming {
	var interlace uint8
	if m.Interlaced {
		interlace = 1
	}

	lineTime := int64(math.Round(float64(m.HTotal) * 1000 / m.PixelClock))

	return FrameTiming{
		LineTimeNs:  lineTime,
		FrameTimeNs: (int64(m.VTotal) * lineTime) >> interlace,
		VTotal:      m.VTotal,
		Interlace:   interlace,
	}
}

// RasterOffsetNs returns how far the FPGA scanout is from where the host
// predicts it, in nanoseconds. Positive means the FPGA is behind (headroom),
// negative means the host is late. Zero when the echo is not for the frame
// the host last submitted.
//
// The halving of the raw difference is deliberate first-order damping: each
// observation corrects half the error, so a noisy echo cannot make the caller
// overshoot.
func (t FrameTiming) RasterOffsetNs(st protocol.FpgaStatus, submittedFrame uint32) int64 {
	if st.FrameEcho != submittedFrame {
		return 0
	}

	v1 := ((int64(st.FrameEcho)-1)*int64(t.VTotal) + int64(st.VCountEcho)) >> t.Interlace
	v2 := (int64(st.Frame)*int64(t.VTotal) + int64(st.VCount)) >> t.Interlace

	dif := (v1 - v2) / 2

	return t.LineTimeNs * dif
}

// CalcVsyncLine picks the scanline the FPGA should start scanning out on,
// given the measured link ping, a safety margin, the time the producer needs
// to emulate a frame, and the time to stream it. Returns a line in
// [1, VTotal]; 1 when the budget cannot meet this frame at all.
func (t FrameTiming) CalcVsyncLine(pingNs, marginNs, emulationNs, streamNs int64) uint16 {
	if t.FrameTimeNs == 0 || t.VTotal == 0 {
		return 1
	}

	budget := pingNs + marginNs + emulationNs
	if budget >= t.FrameTimeNs {
		return 1
	}

	timeCalc := budget - streamNs
	if timeCalc < 0 {
		timeCalc = 0
	}

	line := int64(t.VTotal) - int64(t.VTotal)*timeCalc/t.FrameTimeNs
	if line < 1 {
		line = 1
	}
	if line > int64(t.VTotal) {
		line = int64(t.VTotal)
	}

	return uint16(line)
}
