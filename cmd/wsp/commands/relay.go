package commands

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"wsp/internal/relay"
)

func relayCmd() *cobra.Command {
	var (
		addr       string
		configPath string
	)
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the blind relay server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := relay.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.ListenAddr = addr
			}

			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			srv := relay.NewServer(logger)
			logger.Info("relay listening", zap.String("addr", cfg.ListenAddr))
			return srv.ListenAndServe(cfg.ListenAddr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, e.g. 0.0.0.0:8443")
	cmd.Flags().StringVar(&configPath, "config", "", "optional config file")
	return cmd
}
