package main

import (
	"fmt"
	"time"
)

type Config struct {
	HubURL            string        `env:"CHAT_HUB_URL,default=ws://localhost:7071/chathub"`
	StorePath         string        `env:"CHAT_STORE_PATH,required=true"`
	LogLevel          string        `env:"LOG_LEVEL,default=info"`
	ConnectTimeout    time.Duration `env:"CONNECT_TIMEOUT,default=5s"`
	ReconnectBudget   time.Duration `env:"RECONNECT_BUDGET,default=15m"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL,default=30s"`
	StoreGCInterval   time.Duration `env:"STORE_GC_INTERVAL,default=5m"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	// Optional directory of .txt word lists enabling outbound moderation
	CensoredWordsDir string `env:"CENSORED_WORDS_DIR"`
	// Kept as a string: the env layer only parses numeric code points
	// into rune fields, and "*" must stay a valid value
	MaskCharacter string `env:"MASK_CHARACTER,default=*"`
}

// maskRune converts the configured mask character to the single rune
// the moderator expects.
func maskRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf("MASK_CHARACTER must be a single character, got %q", str)
	}
	return r[0], nil
}
