package main

import (
	"os"
	"testing"
	"time"

	"github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

// Only the store path is mandatory; every other field must come up
// from its default so a bare environment can start the client.
func TestConfig_DefaultsAreLoadable(t *testing.T) {
	req := require.New(t)
	t.Setenv("CHAT_STORE_PATH", t.TempDir())

	var config Config
	_, err := env.UnmarshalFromEnviron(&config)
	req.NoError(err)

	req.Equal("ws://localhost:7071/chathub", config.HubURL)
	req.Equal("info", config.LogLevel)
	req.Equal(5*time.Second, config.ConnectTimeout)
	req.Equal(15*time.Minute, config.ReconnectBudget)
	req.Equal(30*time.Second, config.HeartbeatInterval)
	req.Equal(5*time.Minute, config.StoreGCInterval)
	req.Equal(200*time.Millisecond, config.RestartInterval)
	req.Empty(config.CensoredWordsDir)
	req.Equal("*", config.MaskCharacter)
}

func TestConfig_RequiresStorePath(t *testing.T) {
	req := require.New(t)
	// Setenv registers the restore; the variable must be truly absent
	t.Setenv("CHAT_STORE_PATH", "placeholder")
	os.Unsetenv("CHAT_STORE_PATH")

	var config Config
	_, err := env.UnmarshalFromEnviron(&config)
	req.Error(err)
}

func TestMaskRune(t *testing.T) {
	req := require.New(t)

	r, err := maskRune("*")
	req.NoError(err)
	req.Equal('*', r)

	r, err = maskRune("█")
	req.NoError(err)
	req.Equal('█', r)

	_, err = maskRune("")
	req.Error(err)
	_, err = maskRune("**")
	req.Error(err)
}
