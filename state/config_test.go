package state

import (
	"path/filepath"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalCfg_Unmarshal(t *testing.T) {
	input := `id: B
links:
  - /dev/ttyUSB0
  - tcp://10.0.0.3:9000
baud: 115200
`
	var cfg LocalCfg
	require.NoError(t, yaml.Unmarshal([]byte(input), &cfg))
	assert.Equal(t, NodeId("B"), cfg.Id)
	assert.Equal(t, []LinkId{"/dev/ttyUSB0", "tcp://10.0.0.3:9000"}, cfg.Links)
	assert.Equal(t, 115200, cfg.Baud)

	cfg.ApplyDefaults()
	assert.Equal(t, 115200, cfg.Baud)
	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
}

func TestNodeConfig_RoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "node.yaml")
	cfg := &LocalCfg{Id: "A", Links: []LinkId{"COM3"}, LogPath: "/tmp/a.log"}
	require.NoError(t, WriteNodeConfig(p, cfg))

	read, err := ReadNodeConfig(p)
	require.NoError(t, err)
	assert.Equal(t, cfg, read)
}
