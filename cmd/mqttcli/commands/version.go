package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is stamped by the release build.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the mqttcli version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("mqttcli", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
