package app

import "go.uber.org/zap"

// Config holds runtime wiring options for building the chat CLI's
// dependency graph. Unlike the relay binary's viper-loaded Config, this
// is a single-user tool's plain flag struct, per the teacher's
// cmd/ciphera/commands/root.go split between CLI flags and app.Config.
type Config struct {
	Home        string // config/storage directory, e.g. $HOME/.wsp
	RelayURL    string // ws:// or wss:// relay URL
	SaveHistory bool   // whether to persist an encrypted local history log
	EventBuf    int    // UI event bus buffer capacity

	Logger *zap.Logger
}

const defaultEventBuf = 64
