package state

import (
	"os"

	"github.com/goccy/go-yaml"
)

var (
	DefaultNodeConfigPath = "node.yaml"
	NodeConfigPath        = DefaultNodeConfigPath
)

// LocalCfg represents local node-level configuration
type LocalCfg struct {
	Id         NodeId   `yaml:"id"`                    // unique id for this node
	Links      []LinkId `yaml:"links"`                 // serial devices or tcp:// / tcp-listen:// endpoints
	Baud       int      `yaml:"baud,omitempty"`        // serial baud rate, defaults to DefaultBaud
	MaxRetries int      `yaml:"max_retries,omitempty"` // reliable transport attempts before giving up
	LogPath    string   `yaml:"log_path,omitempty"`    // if not empty, wireline will also log to this file
	DebugAddr  string   `yaml:"debug_addr,omitempty"`  // if not empty, expvar and metrics are served here
	CtlSocket  string   `yaml:"ctl_socket,omitempty"`  // if not empty, `wireline ctl` can reach the node on this unix socket
}

// ApplyDefaults fills zero values with the package defaults.
func (c *LocalCfg) ApplyDefaults() {
	if c.Baud == 0 {
		c.Baud = DefaultBaud
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
}

func ReadNodeConfig(nodePath string) (*LocalCfg, error) {
	var nodeCfg LocalCfg
	file, err := os.ReadFile(nodePath)
	if err != nil {
		return nil, err
	}
	err = yaml.Unmarshal(file, &nodeCfg)
	if err != nil {
		return nil, err
	}
	return &nodeCfg, nil
}

func WriteNodeConfig(nodePath string, cfg *LocalCfg) error {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(nodePath, out, 0600)
}
