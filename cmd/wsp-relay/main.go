package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"wsp/internal/logging"
	"wsp/internal/relay"
)

func main() {
	var (
		configPath = flag.String("config", "", "optional config file (yaml/json/toml)")
		addr       = flag.String("addr", "", "listen address, overrides config and WSP_LISTEN_ADDR")
	)
	flag.Parse()

	cfg, err := relay.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "wsp-relay:", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "wsp-relay:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	srv := relay.NewServer(logger)
	logger.Info("relay listening", zap.String("addr", cfg.ListenAddr))
	if err := srv.ListenAndServe(cfg.ListenAddr); err != nil {
		logger.Fatal("relay exited", zap.Error(err))
	}
}
