package cmd

import (
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dylan/groovymister/input"
)

var inputCmd = &cobra.Command{
	Use:   "input",
	Short: "Dump joystick and PS/2 state streamed by the FPGA",
	RunE:  executeInput,
}

var inputHost string

func init() {
	inputCmd.Flags().StringVar(&inputHost, "host", "", "FPGA IPv4 address")
	inputCmd.MarkFlagRequired("host")
}

func executeInput(cmd *cobra.Command, args []string) error {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	log := logger.Sugar()
	defer log.Sync()

	conn, err := input.Bind(log, inputHost, 0)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return nil
		case <-ticker.C:
			if !conn.Poll() {
				continue
			}

			joy := conn.Joystick()
			ps2 := conn.Ps2()
			log.Infow("input",
				"frame", joy.Frame,
				"joy1", joy.Joy1,
				"joy2", joy.Joy2,
				"joy1_x", joy.Joy1X,
				"joy1_y", joy.Joy1Y,
				"mouse_btns", ps2.MouseButtons,
				"mouse_x", ps2.MouseX,
				"mouse_y", ps2.MouseY,
			)
		}
	}
}
