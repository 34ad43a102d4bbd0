package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/simas-gestao/simas/internal/server"
	"github.com/simas-gestao/simas/internal/session"
)

var serverPort int

var serverCmd = &cobra.Command{
	Use:     "server",
	Aliases: []string{"serve"},
	Short:   "Start the SIMAS HTTP API",
	Long:    `Starts the SIMAS REST API with JWT sessions, the audit log and the workflow endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		port := rt.cfg.Port
		if cmd.Flags().Changed("port") {
			port = serverPort
		}

		srv := server.New(server.Config{
			Port:           port,
			AllowAll:       rt.cfg.AllowAllOrigins,
			RequestTimeout: time.Duration(rt.cfg.RequestTimeoutSeconds) * time.Second,
		}, rt.db, session.NewAuthenticator(rt.cfg.JWTSecret, rt.logger), rt.logger)

		// Graceful shutdown.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			rt.logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		rt.logger.Info("simas server starting",
			zap.String("version", Version),
			zap.Int("port", port),
			zap.String("database", rt.db.Path()))

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	},
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serverCmd)
}
