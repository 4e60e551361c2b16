package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
	"github.com/YuminosukeSato/diabetes-risk/pkg/log"
	"github.com/YuminosukeSato/diabetes-risk/server"
)

const shutdownTimeout = 10 * time.Second

type serveCmdConfig struct {
	*rootCmdConfig
	host string
	port int
}

func serveCmd(rootConfig *rootCmdConfig) *cobra.Command {
	sc := &serveCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Train the model and serve predictions",
		Long:  `Train the model once from the dataset, then serve /pred, /info, /confusion and /metrics until interrupted`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := sc.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = sc.host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = sc.port
			}
			if err := cfg.Validate(); err != nil {
				return report(cmd, err)
			}

			artifact, err := train(cfg, logger)
			if err != nil {
				return err
			}
			srv := server.New(artifact,
				server.WithLogger(logger),
				server.WithInfo(server.Info{Author: cfg.Info.Author, ProjectURL: cfg.Info.ProjectURL}),
			)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(cfg.Addr()) }()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fail(logger, "Server stopped", err)
			case <-ctx.Done():
			}

			logger.Info("Shutting down", "timeout", shutdownTimeout.String())
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fail(logger, "Graceful shutdown failed", err, log.ComponentKey, "server")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sc.host, "host", "", "listen host; overrides the configuration")
	cmd.Flags().IntVarP(&sc.port, "port", "p", 0, "listen port; overrides the configuration")
	return cmd
}
