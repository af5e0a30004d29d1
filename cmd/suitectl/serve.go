package main

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/robotomize/loginsuite/internal/loginapp"
)

func init() {
	serveCmd.Flags().String("addr", "", "listen address: --addr 127.0.0.1:5000")
	serveCmd.Flags().Bool("allow-reset", false, "expose POST /testing/reset")
	serveCmd.Flags().String("seed", "", "yaml file with the seed accounts")

	mustBind("app.addr", serveCmd.Flags().Lookup("addr"))
	mustBind("app.allow_reset", serveCmd.Flags().Lookup("allow-reset"))
	mustBind("app.seed_file", serveCmd.Flags().Lookup("seed"))

	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve the login app under test",
	Long:  "Serve the demo login application the browser scenarios run against",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !logger.Core().Enabled(zapcore.DebugLevel) {
			gin.SetMode(gin.ReleaseMode)
		}

		opts, err := loginapp.OptionsFromConfig(cfg.App)
		if err != nil {
			return fmt.Errorf("loginapp.OptionsFromConfig: %w", err)
		}

		srv, err := loginapp.New(opts, logger)
		if err != nil {
			return fmt.Errorf("loginapp.New: %w", err)
		}

		return srv.ListenAndServe(
			cmd.Context(), func(addr string) {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Login app listening on http://%s\n", addr)
			},
		)
	},
}
