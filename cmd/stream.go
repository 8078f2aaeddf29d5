package cmd

import (
	"errors"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dylan/groovymister/protocol"
	"github.com/dylan/groovymister/source"
	"github.com/dylan/groovymister/stream"
	"github.com/dylan/groovymister/timing"
	"github.com/dylan/groovymister/util/di"
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Stream frames from a test pattern or a shared-memory producer",
	RunE:  executeStream,
}

var (
	streamProfile string
	streamMode    string
	streamHost    string
	streamSource  string
	streamShmName string
	streamWav     string
	streamFrames  int
)

func init() {
	streamCmd.Flags().StringVar(&streamProfile, "profile", "", "Profile file (ini)")
	streamCmd.Flags().StringVar(&streamMode, "mode", "", "Modeline preset name from the profile")
	streamCmd.Flags().StringVar(&streamHost, "host", "", "Override the profile host")
	streamCmd.Flags().StringVar(&streamSource, "source", "pattern", "Frame source (pattern, shm)")
	streamCmd.Flags().StringVar(&streamShmName, "shm-name", "groovymister-video", "Shared memory segment name")
	streamCmd.Flags().StringVar(&streamWav, "wav", "", "WAV file to stream as audio")
	streamCmd.Flags().IntVar(&streamFrames, "frames", 0, "Stop after this many frames (0 = run forever)")
	streamCmd.MarkFlagRequired("profile")
	streamCmd.MarkFlagRequired("mode")
}

// frameSource is anything that can hand out one frame per slot.
type frameSource interface {
	Frame() []byte
}

type patternSource struct {
	p *source.Pattern
}

func (s patternSource) Frame() []byte {
	return s.p.Next()
}

func executeStream(cmd *cobra.Command, args []string) error {
	container, err := di.New(
		di.Provider(func() (*zap.SugaredLogger, error) {
			logger, err := zap.NewDevelopment()
			if err != nil {
				return nil, err
			}
			return logger.Sugar(), nil
		}),
		di.Provider(func() (*Profile, error) {
			return LoadProfile(streamProfile)
		}),
		di.Provider(func(p *Profile) (stream.Config, error) {
			cfg, err := p.Stream()
			if err != nil {
				return cfg, err
			}
			if streamHost != "" {
				cfg.Host = streamHost
			}
			return cfg, nil
		}),
	)
	if err != nil {
		return err
	}

	return container.Invoke(runStream)
}

func runStream(log *zap.SugaredLogger, profile *Profile, cfg stream.Config) error {
	defer log.Sync()

	modeline, err := profile.Modeline(streamMode)
	if err != nil {
		return err
	}

	// An audio clip dictates the sound settings of the session.
	var audio [][]byte
	if streamWav != "" {
		clip, err := source.LoadWAV(streamWav)
		if err != nil {
			return err
		}
		cfg.SoundRate = clip.Rate
		cfg.SoundChannels = clip.Channels

		// One slice per frame slot keeps the FPGA's buffer shallow.
		fps := 1e9 / float64(modelineFrameTimeNs(modeline))
		perFrame := int(float64(clip.Rate.Hz()*clip.Channels.Count()*2) / fps)
		if perFrame < 4 {
			perFrame = 4
		}
		audio = clip.Slices(perFrame)
		log.Infow("audio loaded", "file", streamWav, "slices", len(audio))
	}

	frameSize := int(modeline.HActive) * int(modeline.VActive) * cfg.RGBMode.BytesPerPixel()
	if cfg.MaxFrameSize < frameSize {
		cfg.MaxFrameSize = frameSize
	}

	src, closeSrc, err := openSource(modeline, cfg, frameSize)
	if err != nil {
		return err
	}
	defer closeSrc()

	conn, err := stream.Open(log, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.SendInit(); err != nil {
		return err
	}
	if err := conn.SwitchRes(modeline); err != nil {
		return err
	}

	total := int64(streamFrames)
	if total == 0 {
		total = -1 // spinner
	}
	bar := progressbar.Default(total, "streaming")

	var frame uint32
	for streamFrames == 0 || frame < uint32(streamFrames) {
		switch conn.BeginFrame() {
		case stream.FrameStalled:
			return fmt.Errorf("fpga stalled after %d frames (%d dropped)",
				frame, conn.DroppedFrames())

		case stream.FrameSkip:
			continue

		case stream.FrameReady:
			frame++

			field := uint8(0)
			if modeline.Interlaced {
				field = uint8(frame & 1)
			}

			ft := conn.Timing()
			vsync := ft.CalcVsyncLine(
				int64(conn.Health().P95SyncWaitMs()*1e6), // ping
				2_000_000, // margin
				1_000_000, // producer
				0,
			)

			if err := conn.SendFrame(src.Frame(), frame, field, vsync); err != nil {
				if errors.Is(err, stream.ErrSend) {
					log.Warnw("frame send failed", "frame", frame, "err", err)
					continue
				}
				return err
			}

			if len(audio) > 0 {
				if err := conn.SendAudio(audio[int(frame)%len(audio)]); err != nil {
					return err
				}
			}

			bar.Add(1)
		}
	}

	log.Infow("stream finished",
		"frames", frame,
		"dropped", conn.DroppedFrames(),
		"avg_sync_ms", conn.Health().AvgSyncWaitMs(),
		"vram_ready_rate", conn.Health().VRAMReadyRate())

	return nil
}

func openSource(m protocol.Modeline, cfg stream.Config, frameSize int) (frameSource, func(), error) {
	switch streamSource {
	case "pattern":
		p := source.NewPattern(int(m.HActive), int(m.VActive), cfg.RGBMode)
		return patternSource{p: p}, func() {}, nil

	case "shm":
		s, err := source.OpenShm(streamShmName, frameSize)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown source %q", streamSource)
	}
}

func modelineFrameTimeNs(m protocol.Modeline) int64 {
	t := timing.New(m).FrameTimeNs
	if t <= 0 {
		return 16_666_667
	}
	return t
}
