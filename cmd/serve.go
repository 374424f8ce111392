package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/truepricereport/leadgen/internal/server"
	"github.com/truepricereport/leadgen/internal/valuation"
	"github.com/truepricereport/leadgen/pkg/brivity"
	"github.com/truepricereport/leadgen/pkg/corelogic"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the valuation and lead proxy server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var val server.Estimator
		if cfg.CoreLogic.Configured() {
			cl := corelogic.NewClient(cfg.CoreLogic.ClientKey, cfg.CoreLogic.ClientSecret,
				corelogic.WithBaseURL(cfg.CoreLogic.BaseURL),
				corelogic.WithRateLimit(cfg.CoreLogic.RateLimit),
			)
			val = valuation.NewService(cl)
		} else {
			zap.L().Warn("corelogic credentials missing, estimate endpoint will return configuration errors")
		}

		var crm brivity.Client
		if cfg.Brivity.APIToken != "" {
			crm = brivity.NewClient(cfg.Brivity.APIToken,
				brivity.WithBaseURL(cfg.Brivity.BaseURL),
			)
		} else {
			zap.L().Warn("brivity token missing, leads endpoint will return configuration errors")
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: server.New(cfg, val, crm).Router(),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
