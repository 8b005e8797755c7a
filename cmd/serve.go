package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/courseview/internal/server"
	"github.com/conneroisu/courseview/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Serve the course viewer",
	Long: `Serve the course viewer over HTTP.

The page lists every module; opening one renders its markdown into the content
area. Open browsers are kept in sync over a websocket.

Examples:
  courseview serve                          # http://localhost:8080
  courseview serve -p 3000 --watch          # Reload modules when files change
  courseview serve --store redis            # Keep progress in redis
  courseview serve --content-dir ./curso    # Read ./curso/markdown/<id>.md`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().String("content-dir", ".", "Directory containing the markdown directory")
	serveCmd.Flags().String("store", "sqlite", "Progress store driver (memory, sqlite, redis)")
	serveCmd.Flags().String("store-path", ".courseview/progress.db", "SQLite database file")
	serveCmd.Flags().String("default-module", "modulo1", "Module shown at startup")
	serveCmd.Flags().BoolP("watch", "w", false, "Reload the open module when its file changes")

	bindFlags(serveCmd, map[string]string{
		"port":           "server.port",
		"host":           "server.host",
		"content-dir":    "content.dir",
		"store":          "store.driver",
		"store-path":     "store.path",
		"default-module": "content.default_module",
		"watch":          "server.watch",
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := loadApp(ctx, viper.GetViper(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := server.Options{
		Config:      a.cfg,
		Viewer:      a.viewer,
		Highlighter: a.highlighter,
		Logger:      a.logger,
	}
	if a.cfg.Server.Watch {
		fw, err := watcher.NewFileWatcher(a.cfg.Server.WatchDebounce, a.logger)
		if err != nil {
			return fmt.Errorf("failed to create file watcher: %w", err)
		}
		opts.Watcher = fw
	}

	srv, err := server.New(opts)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error(shutdownCtx, err, "Error during server shutdown")
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %q at http://%s\n", a.cfg.Course.Title, a.cfg.Addr())

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
