package commands

import (
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the connection flags. Flags left at their defaults are
// filled from the file; explicit flags win.
type fileConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	CA       string `yaml:"ca"`
	WsURL    string `yaml:"ws_url"`
}

func loadConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return err
	}

	if host == "localhost" && cfg.Host != "" {
		host = cfg.Host
	}
	if port == "1883" && cfg.Port != "" {
		port = cfg.Port
	}
	if clientID == "" {
		clientID = cfg.ClientID
	}
	if username == "" {
		username = cfg.Username
	}
	if password == "" {
		password = cfg.Password
	}
	if caFile == "" {
		caFile = cfg.CA
	}
	if wsURL == "" {
		wsURL = cfg.WsURL
	}
	return nil
}
