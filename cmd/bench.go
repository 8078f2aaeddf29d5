package cmd

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/dylan/groovymister/compress"
	"github.com/dylan/groovymister/protocol"
	"github.com/dylan/groovymister/source"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark the compression modes against a test pattern",
	RunE:  executeBench,
}

var (
	benchWidth  int
	benchHeight int
	benchFrames int
)

func init() {
	benchCmd.Flags().IntVar(&benchWidth, "width", 640, "Frame width")
	benchCmd.Flags().IntVar(&benchHeight, "height", 480, "Frame height")
	benchCmd.Flags().IntVar(&benchFrames, "frames", 256, "Frames per mode")
}

func executeBench(cmd *cobra.Command, args []string) error {
	modes := []protocol.LZ4Mode{
		protocol.LZ4,
		protocol.LZ4Delta,
		protocol.LZ4HC,
		protocol.LZ4HCDelta,
		protocol.LZ4Adaptive,
	}

	for _, mode := range modes {
		pattern := source.NewPattern(benchWidth, benchHeight, protocol.BGR888)
		frameSize := pattern.FrameSize()

		codec := compress.NewCodec(mode)
		var delta *compress.DeltaEncoder
		if mode.Delta() {
			delta = compress.NewDeltaEncoder(frameSize, 60)
		}
		dst := make([]byte, compress.Bound(frameSize))

		bar := progressbar.Default(int64(benchFrames), fmt.Sprintf("mode %d", mode))

		var inBytes, outBytes int64
		start := time.Now()

		for i := 0; i < benchFrames; i++ {
			frame := pattern.Next()

			var (
				n   int
				err error
			)
			if delta != nil {
				n, _, err = delta.Encode(codec, frame, 0, dst)
			} else {
				n, err = codec.Compress(frame, dst)
			}
			if err != nil {
				return err
			}

			inBytes += int64(frameSize)
			outBytes += int64(n)
			bar.Add(1)
		}

		elapsed := time.Since(start)
		fmt.Printf("mode %d: ratio %.3f, %.1f MB/s, %.2f ms/frame\n",
			mode,
			float64(outBytes)/float64(inBytes),
			float64(inBytes)/1e6/elapsed.Seconds(),
			elapsed.Seconds()*1000/float64(benchFrames))
	}

	return nil
}
