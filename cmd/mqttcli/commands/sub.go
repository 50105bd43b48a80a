package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Raysen37/mqttclient"
)

var subCmd = &cobra.Command{
	Use:   "sub FILTER...",
	Short: "Subscribe and print messages",
	Long: `Subscribes to one or more topic filters and prints each message as
"topic payload" until interrupted. Filters may use the MQTT wildcards
'+' and '#'.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		defer c.Disconnect()

		handler := func(_ *mqttclient.Client, m *mqttclient.Message) {
			fmt.Printf("%s %s\n", m.Topic, m.Payload)
		}

		for _, filter := range args {
			if err := c.Subscribe(filter, mqttclient.QoS(qosLevel), handler); err != nil {
				return fmt.Errorf("subscribing to %q: %w", filter, err)
			}
			log.Debugf("subscribed to %s (qos %d)", filter, qosLevel)
		}

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Info("interrupted, disconnecting")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(subCmd)
}
