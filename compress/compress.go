// Package compress turns raw frames into the LZ4 block payloads the FPGA
// expects, optionally delta-encoding them against the previous frame of the
// same field. The host never decompresses; reconstruction happens on the
// FPGA (and in tests).
package compress

import (
	"errors"

	"github.com/dylan/groovymister/protocol"
	"github.com/pierrec/lz4/v4"
)

// ErrCompress means the LZ4 encoder produced no usable output, normally
// because the destination buffer is smaller than Bound(len(src)).
var ErrCompress = errors.New("lz4 compression failed")

// adaptiveCutoff is the payload size at or below which the adaptive modes spend
// cycles on the HC encoder. Larger frames take the fast path to keep the
// per-frame budget.
const adaptiveCutoff = 128 * 1024

// Bound returns the worst-case compressed size for n input bytes. Output
// buffers sized with Bound never fail to compress.
func Bound(n int) int {
	return lz4.CompressBlockBound(n)
}

// Codec is a reusable LZ4 block compressor. The underlying encoders keep
// their hash tables across calls, so a Codec must not be shared between
// goroutines.
type Codec struct {
	mode protocol.LZ4Mode
	fast lz4.Compressor
	hc   lz4.CompressorHC
}

func NewCodec(mode protocol.LZ4Mode) *Codec {
	return &Codec{mode: mode}
}

func (c *Codec) Mode() protocol.LZ4Mode {
	return c.mode
}

// Compress block-compresses src into dst and returns the compressed length.
func (c *Codec) Compress(src, dst []byte) (int, error) {
	hc := c.mode.HC() || (c.mode.Adaptive() && len(src) <= adaptiveCutoff)

	var (
		n   int
		err error
	)
	if hc {
		n, err = c.hc.CompressBlock(src, dst)
	} else {
		n, err = c.fast.CompressBlock(src, dst)
	}
	if err != nil || n == 0 {
		return 0, ErrCompress
	}

	return n, nil
}
