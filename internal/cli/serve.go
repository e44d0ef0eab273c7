package cli

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"aetracker/internal/store"
	"aetracker/internal/web"

	"github.com/spf13/cobra"
)

func newServeCmd(app *App) *cobra.Command {
	var addr string
	var dbPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP backend over a local SQLite file",
		Example: strings.TrimSpace(`
# Serve on the configured address ([server] addr, default 127.0.0.1:8787)
aetracker serve

# Serve a scratch database on another port
aetracker serve --addr :9000 --db /tmp/aetracker.db
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			listenAddr := strings.TrimSpace(addr)
			if listenAddr == "" {
				listenAddr = app.cfg.Server.Addr
			}
			if listenAddr == "" {
				return writeErr(cmd, errors.New("serve: missing --addr"))
			}
			path := strings.TrimSpace(dbPath)
			if path == "" {
				path = app.cfg.Server.DB
			}
			if path == "" {
				return writeErr(cmd, errors.New("serve: missing --db"))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := store.Open(ctx, path)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			srv, err := web.NewServer(web.ServerConfig{Addr: listenAddr, Logger: app.logger}, st)
			if err != nil {
				return writeErr(cmd, err)
			}
			ln, err := net.Listen("tcp", listenAddr)
			if err != nil {
				return writeErr(cmd, err)
			}

			actualAddr := ln.Addr().String()
			url := "http://" + actualAddr + "/api"
			_ = writeOut(cmd, app, map[string]any{
				"addr":      actualAddr,
				"url":       url,
				"db":        path,
				"startedAt": time.Now().UTC().Format(time.RFC3339Nano),
			})
			fmt.Fprintf(cmd.ErrOrStderr(), "aetracker backend running at %s (db=%s)\n", url, path)

			if err := srv.Serve(ctx, ln); err != nil {
				return writeErr(cmd, err)
			}
			app.logger.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Bind address (host:port or :port; default from config)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite file (default from config)")
	return cmd
}
