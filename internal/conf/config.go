package conf

import (
	"os"
	"path/filepath"

	"heron/internal/blobstore"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Domain           string           `yaml:"domain"`
	Hostname         string           `yaml:"hostname"`
	IMAPListen       string           `yaml:"imap_listen"`
	SMTPListen       string           `yaml:"smtp_listen"`
	DatabasePath     string           `yaml:"database_path"`
	RelayTokenSecret string           `yaml:"relay_token_secret"`
	MaxMessageSize   int64            `yaml:"max_message_size"`
	BlobStorage      blobstore.Config `yaml:"blob_storage"`
}

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig() *Config {
	return &Config{
		Domain:         "localhost",
		Hostname:       "localhost",
		IMAPListen:     "0.0.0.0:143",
		SMTPListen:     "0.0.0.0:25",
		DatabasePath:   "./data/heron.db",
		MaxMessageSize: 50 * 1024 * 1024,
	}
}

// LoadConfig reads the first config file found among the well-known
// paths, or the explicit path when given.
func LoadConfig(explicitPath string) (*Config, error) {
	configPaths := []string{
		"/etc/heron/heron.yaml",
		"./config/heron.yaml",
		"./heron.yaml",
		"config/heron.yaml",
	}
	if explicitPath != "" {
		configPaths = append([]string{explicitPath}, configPaths...)
	}

	var data []byte
	var err error
	for _, path := range configPaths {
		data, err = os.ReadFile(filepath.Clean(path))
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
