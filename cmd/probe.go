package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dylan/groovymister/stream"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Request a status ACK from the FPGA and print it",
	RunE:  executeProbe,
}

var (
	probeHost      string
	probeTimeoutMs int
)

func init() {
	probeCmd.Flags().StringVar(&probeHost, "host", "", "FPGA IPv4 address")
	probeCmd.Flags().IntVar(&probeTimeoutMs, "timeout", 500, "Wait for an ACK this long (ms)")
	probeCmd.MarkFlagRequired("host")
}

func executeProbe(cmd *cobra.Command, args []string) error {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	log := logger.Sugar()
	defer log.Sync()

	conn, err := stream.Open(log, stream.Config{Host: probeHost})
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.SendGetVersion(); err != nil {
		return err
	}

	if !conn.WaitSync(probeTimeoutMs) {
		return fmt.Errorf("no ACK from %s within %dms", probeHost, probeTimeoutMs)
	}

	st := conn.Tick()
	log.Infow("fpga status",
		"frame", st.Frame,
		"vcount", st.VCount,
		"vram_ready", st.VRAMReady,
		"vram_synced", st.VRAMSynced,
		"vga_vblank", st.VGAVBlank,
		"vga_f1", st.VGAField1,
		"audio_active", st.AudioActive,
	)

	return nil
}
