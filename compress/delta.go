package compress

// DeltaEncoder rewrites frames as the byte-wise wrapping difference against
// the previous frame of the same field before LZ4 compression. Field 0 and
// field 1 keep strictly independent references, so interlaced streams never
// cross-pollute.
type DeltaEncoder struct {
	prev    [2][]byte
	hasPrev [2]bool

	frameCount       [2]uint32
	keyframeInterval uint32

	scratch []byte
}

// NewDeltaEncoder sizes the per-field references and the scratch buffer for
// frames up to maxFrameSize bytes. keyframeInterval 0 disables periodic
// keyframes.
func NewDeltaEncoder(maxFrameSize int, keyframeInterval uint32) *DeltaEncoder {
	return &DeltaEncoder{
		prev:             [2][]byte{make([]byte, maxFrameSize), make([]byte, maxFrameSize)},
		keyframeInterval: keyframeInterval,
		scratch:          make([]byte, maxFrameSize),
	}
}

// Encode compresses src into dst, delta-encoded when a reference for the
// field exists and no keyframe is due. Returns the compressed length and
// whether the payload is a delta. The FPGA reconstructs deltas with wrapping
// byte addition onto its previous frame; keyframes replace it.
func (d *DeltaEncoder) Encode(codec *Codec, src []byte, field uint8, dst []byte) (int, bool, error) {
	f := field & 1

	if len(src) > len(d.scratch) {
		return 0, false, ErrCompress
	}

	if !d.hasPrev[f] {
		copy(d.prev[f], src)
		d.hasPrev[f] = true
		d.frameCount[f] = 0

		n, err := codec.Compress(src, dst)
		return n, false, err
	}

	d.frameCount[f]++

	if d.keyframeInterval > 0 && d.frameCount[f] >= d.keyframeInterval {
		d.frameCount[f] = 0
		copy(d.prev[f], src)

		n, err := codec.Compress(src, dst)
		return n, false, err
	}

	delta := d.scratch[:len(src)]
	prev := d.prev[f][:len(src)]
	for i := range src {
		delta[i] = src[i] - prev[i]
	}
	copy(d.prev[f], src)

	n, err := codec.Compress(delta, dst)
	return n, true, err
}

// Reset drops both field references, forcing the next frame of each field to
// be sent in full.
func (d *DeltaEncoder) Reset() {
	d.hasPrev[0] = false
	d.hasPrev[1] = false
	d.frameCount[0] = 0
	d.frameCount[1] = 0
}
