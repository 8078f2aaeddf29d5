package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gmzstream",
	Short: "Stream video and audio to a Groovy_MiSTer FPGA",
}

func init() {
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.AddCommand(streamCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(inputCmd)
	rootCmd.AddCommand(versionCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
