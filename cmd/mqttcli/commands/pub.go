package commands

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Raysen37/mqttclient"
)

var (
	pubMessage string
	pubRetain  bool
	pubStdin   bool
)

var pubCmd = &cobra.Command{
	Use:   "pub TOPIC",
	Short: "Publish a message",
	Long: `Publishes one message to the given topic.

The payload comes from --message, or from stdin with --stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topic := args[0]

		payload := []byte(pubMessage)
		if pubStdin {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}
			payload = data
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		defer c.Disconnect()

		msg := &mqttclient.Message{
			QoS:      mqttclient.QoS(qosLevel),
			Retained: pubRetain,
			Payload:  payload,
		}
		if err := c.Publish(topic, msg); err != nil {
			return err
		}
		log.Infof("published %d bytes to %s (qos %d)", len(payload), topic, qosLevel)
		return nil
	},
}

func init() {
	pubCmd.Flags().StringVarP(&pubMessage, "message", "m", "", "message payload")
	pubCmd.Flags().BoolVar(&pubStdin, "stdin", false, "read payload from stdin")
	pubCmd.Flags().BoolVar(&pubRetain, "retain", false, "set the retain flag")
	rootCmd.AddCommand(pubCmd)
}
