package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Raysen37/mqttclient"
)

var (
	cfgFile  string
	host     string
	port     string
	clientID string
	username string
	password string
	caFile   string
	wsURL    string
	qosLevel int
	keepIdle time.Duration
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "mqttcli",
	Short: "Publish and subscribe over MQTT 3.1.1",
	Long: `mqttcli is a small command-line MQTT 3.1.1 client.

It connects over TCP, TLS (with --ca) or WebSocket (with --ws-url) and
either publishes a message (pub) or prints messages as they arrive (sub).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetLevel(log.DebugLevel)
		}
		if cfgFile != "" {
			if err := loadConfig(cfgFile); err != nil {
				return fmt.Errorf("loading config %s: %w", cfgFile, err)
			}
		}
		if qosLevel < 0 || qosLevel > 2 {
			return fmt.Errorf("--qos must be between 0 and 2, got %d", qosLevel)
		}
		return nil
	},
}

// Execute runs the CLI.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		log.Error(err)
	}
	return err
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "YAML config file")
	pf.StringVar(&host, "host", "localhost", "broker host")
	pf.StringVar(&port, "port", "1883", "broker port")
	pf.StringVar(&clientID, "client-id", "", "client identifier (default: generated)")
	pf.StringVar(&username, "username", "", "username")
	pf.StringVar(&password, "password", "", "password")
	pf.StringVar(&caFile, "ca", "", "PEM CA bundle, enables TLS")
	pf.StringVar(&wsURL, "ws-url", "", "WebSocket endpoint, e.g. ws://host:8080/mqtt")
	pf.IntVar(&qosLevel, "qos", 0, "quality of service (0, 1 or 2)")
	pf.DurationVar(&keepIdle, "keep-alive", 60*time.Second, "keep-alive interval")
	pf.BoolVar(&verbose, "verbose", false, "debug logging")
}

// newClient builds a client from the flags and config file.
func newClient() (*mqttclient.Client, error) {
	id := clientID
	if id == "" {
		id = "mqttcli-" + uuid.NewString()[:8]
	}

	opts := []mqttclient.Option{
		mqttclient.WithHost(host),
		mqttclient.WithPort(port),
		mqttclient.WithClientID(id),
		mqttclient.WithKeepAlive(keepIdle),
	}
	if username != "" {
		opts = append(opts, mqttclient.WithCredentials(username, password))
	}
	if caFile != "" {
		pem, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("reading CA bundle: %w", err)
		}
		opts = append(opts, mqttclient.WithCA(pem))
	}
	if wsURL != "" {
		opts = append(opts, mqttclient.WithWebSocketURL(wsURL))
	}

	c := mqttclient.New(opts...)
	log.Debugf("connecting to %s:%s as %s", host, port, id)
	if err := c.Connect(); err != nil {
		return nil, err
	}
	return c, nil
}
