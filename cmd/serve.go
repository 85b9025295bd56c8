package cmd

import (
	"github.com/chaos-io/removebg/server"
	"github.com/chaos-io/removebg/util"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(opts *options) *cobra.Command {
	var addr string
	c := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if addr != "" {
				cfg.Server.Addr = addr
			}

			util.Logger.Info("starting removebg server",
				zap.String("version", Version),
				zap.String("build_time", BuildTime),
				zap.String("git_commit", GitCommit),
				zap.String("backend", cfg.Model.Backend),
				zap.String("cache", cfg.Cache.Backend))

			svc, err := newService(cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := svc.Close(); err != nil {
					util.Logger.Warn("close service failed", zap.Error(err))
				}
			}()

			h := server.NewHandler(svc, server.BuildInfo{
				Version:   Version,
				BuildTime: BuildTime,
				GitCommit: GitCommit,
			})
			return server.Run(cmd.Context(), cfg.Server, server.NewRouter(cfg.Server, h))
		},
	}
	c.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return c
}
