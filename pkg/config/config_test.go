package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gt-tallinn/node-client/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_OverridesDefaults(t *testing.T) {
	merged, err := Merge(Defaults(), Config{ExplorerURI: "http://x", Service: "svc"})
	require.NoError(t, err)

	assert.Equal(t, "http://x", merged.ExplorerURI)
	assert.Equal(t, "svc", merged.Service)
	assert.Equal(t, "info", merged.LogLevel, "unset fields keep their defaults")
	assert.Equal(t, "/debug/node-client", merged.DebugEndpoint)
	assert.Equal(t, 10*time.Second, merged.CollectionInterval)
}

func TestMerge_EmptyOverrideKeepsEmptyEndpoint(t *testing.T) {
	merged, err := Merge(Defaults(), Config{ExplorerURI: ""})
	require.NoError(t, err)
	assert.True(t, errors.Is(merged.Validate(), domain.ErrConfiguration))
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name  string
		cfg   Config
		valid bool
	}{
		{"valid http", Config{ExplorerURI: "http://collector.local"}, true},
		{"valid https with path", Config{ExplorerURI: "https://collector.local/api"}, true},
		{"empty", Config{}, false},
		{"whitespace", Config{ExplorerURI: "   "}, false},
		{"no scheme", Config{ExplorerURI: "collector.local"}, false},
		{"unsupported scheme", Config{ExplorerURI: "ftp://collector.local"}, false},
		{"no host", Config{ExplorerURI: "http://"}, false},
		{"negative timeout", Config{ExplorerURI: "http://x", DeliveryTimeout: -time.Second}, false},
		{"negative stale_after", Config{ExplorerURI: "http://x", StaleAfter: -time.Second}, false},
		{"stale check without interval", Config{ExplorerURI: "http://x", StaleAfter: time.Minute}, false},
		{"stale check", Config{ExplorerURI: "http://x", StaleAfter: time.Minute, CollectionInterval: time.Second}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.valid {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, domain.ErrConfiguration), "got %v", err)
		})
	}
}

func TestAddURL(t *testing.T) {
	assert.Equal(t, "http://collector.local/add", Config{ExplorerURI: "http://collector.local"}.AddURL())
	assert.Equal(t, "http://collector.local/add", Config{ExplorerURI: "http://collector.local/"}.AddURL())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := "explorer_uri: http://from-file\nservice: file-svc\ndelivery_timeout: 2s\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	t.Setenv("NODE_CLIENT_SERVICE", "env-svc")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://from-file", cfg.ExplorerURI)
	assert.Equal(t, "env-svc", cfg.Service, "environment wins over the file")
	assert.Equal(t, 2*time.Second, cfg.DeliveryTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}
