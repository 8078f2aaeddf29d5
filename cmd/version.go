package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dylan/groovymister/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the library version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.String)
	},
}
