package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/retain"
	"github.com/vango-dev/retain/internal/config"
)

func serveCmd() *cobra.Command {
	var (
		dir         string
		addr        string
		root        string
		progressive bool
		metrics     bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Render the root component and mirror it over WebSocket",
		Long: `Render the project's root component into an in-memory surface and
serve it to viewers.

Viewers connect to /ws, receive a snapshot of the root and then one
frame per host mutation. /snapshot returns the current HTML and
/metrics exposes Prometheus metrics when enabled.

Examples:
  retain serve
  retain serve --addr=:7070 --root=dashboard
  retain serve --progressive --metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadProject(dir)
			if err != nil {
				return err
			}

			// Apply command-line overrides
			if addr != "" {
				cfg.Mirror.Addr = addr
			}
			if root != "" {
				cfg.Root = root
			}
			if cmd.Flags().Changed("progressive") {
				cfg.Render.Progressive = progressive
			}
			if cmd.Flags().Changed("metrics") {
				cfg.Metrics.Enabled = metrics
			}
			return runServe(cmd, cfg)
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "C", ".", "Project directory")
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from config)")
	cmd.Flags().StringVarP(&root, "root", "r", "", "Root component (default from config)")
	cmd.Flags().BoolVar(&progressive, "progressive", false, "Render placeholders while components load")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "Serve Prometheus metrics on /metrics")

	return cmd
}

// loadProject loads the config of the project containing dir.
func loadProject(dir string) (*config.Config, error) {
	projectRoot, err := config.FindProjectRoot(dir)
	if err != nil {
		return nil, err
	}
	return config.Load(projectRoot)
}

func runServe(cmd *cobra.Command, cfg *config.Config) error {
	w := cmd.OutOrStdout()

	app, err := retain.New(cfg, retain.WithLogger(retain.NewLogger(cmd.ErrOrStderr(), cfg)))
	if err != nil {
		return err
	}
	defer app.Close()

	names := app.Loader().Names()
	if len(names) == 0 {
		warn(w, "No components registered from %s", cfg.ComponentsPath())
	}

	printBanner(w)
	success(w, "Serving %s on http://%s", cfg.Root, cfg.Mirror.Addr)
	info(w, "Components: %v", names)
	info(w, "Viewer socket: ws://%s/ws", cfg.Mirror.Addr)
	fmt.Fprintln(w)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.ListenAndServe(ctx); err != nil {
		return err
	}
	fmt.Fprintln(w, "\n  Shutting down...")
	return nil
}
