package main

import (
	"os"

	"github.com/Raysen37/mqttclient/cmd/mqttcli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
