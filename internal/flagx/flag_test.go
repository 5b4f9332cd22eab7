package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		allowedFlags []string
		want         []string
	}{
		{
			name:         "short flag with separate value",
			args:         []string{"-c", "server.json", "-a", ":8080"},
			allowedFlags: []string{"-c"},
			want:         []string{"-c", "server.json"},
		},
		{
			name:         "equals form",
			args:         []string{"-t=900", "-a", ":8080"},
			allowedFlags: []string{"-t"},
			want:         []string{"-t=900"},
		},
		{
			name:         "unknown flags and positionals ignored",
			args:         []string{"-x", "1", "--y=2", "positional"},
			allowedFlags: []string{"-c"},
			want:         []string{},
		},
		{
			name:         "flag followed by another flag keeps no value",
			args:         []string{"-k", "-a", ":9000"},
			allowedFlags: []string{"-k"},
			want:         []string{"-k"},
		},
		{
			name:         "several allowed flags keep their order",
			args:         []string{"-a", ":8080", "-k", "secret", "-t", "60"},
			allowedFlags: []string{"-a", "-k", "-t"},
			want:         []string{"-a", ":8080", "-k", "secret", "-t", "60"},
		},
		{
			name:         "empty args",
			args:         nil,
			allowedFlags: []string{"-c"},
			want:         []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowedFlags))
		})
	}
}

func TestConfigFile(t *testing.T) {
	t.Run("short -c", func(t *testing.T) {
		t.Setenv(ConfigFileEnv, "")
		assert.Equal(t, "/etc/scribe/short.json", ConfigFile([]string{"-c", "/etc/scribe/short.json"}))
	})

	t.Run("long -config, last wins", func(t *testing.T) {
		t.Setenv(ConfigFileEnv, "")
		assert.Equal(t, "/b.json", ConfigFile([]string{"-c", "/a.json", "-config", "/b.json"}))
	})

	t.Run("env fallback", func(t *testing.T) {
		t.Setenv(ConfigFileEnv, "/from/env.json")
		assert.Equal(t, "/from/env.json", ConfigFile([]string{"-a", ":8080"}))
	})

	t.Run("flag beats env", func(t *testing.T) {
		t.Setenv(ConfigFileEnv, "/from/env.json")
		assert.Equal(t, "/from/flag.json", ConfigFile([]string{"-config=/from/flag.json"}))
	})

	t.Run("nothing set", func(t *testing.T) {
		t.Setenv(ConfigFileEnv, "")
		assert.Empty(t, ConfigFile([]string{"-x", "1"}))
	})
}
