package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	base := func() *Config {
		return &Config{ServerEndpointAddr: "x:1", OnlineCheckInterval: time.Second, DataDir: "/d", LocalQuotaBytes: 1024}
	}

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "Test1 OK", args: []string{"cmd", "-a", "127.0.0.1:9090", "-i", "10"}, expectPanic: false,
			expected: &Config{ServerEndpointAddr: "127.0.0.1:9090", OnlineCheckInterval: 10 * time.Second, DataDir: "/d", LocalQuotaBytes: 1024}},
		{name: "Test2 incorrect check interval", args: []string{"cmd", "-a", "127.0.0.1:9090", "-i", "abc"}, expectPanic: true},
		{name: "Test3 data dir quota and constrained", args: []string{"cmd", "-l", "-d", "/tmp/gv", "-q", "64"}, expectPanic: false,
			expected: &Config{ServerEndpointAddr: "x:1", OnlineCheckInterval: time.Second, DataDir: "/tmp/gv", LocalQuotaBytes: 64 * 1024, ConstrainedImages: true}},
		{name: "Test4 foreign flags ignored", args: []string{"cmd", "-c", "cfg.json", "-a", "h:2"}, expectPanic: false,
			expected: &Config{ServerEndpointAddr: "h:2", OnlineCheckInterval: time.Second, DataDir: "/d", LocalQuotaBytes: 1024}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := base()

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
