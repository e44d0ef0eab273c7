package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"aetracker/internal/api"
	"aetracker/internal/config"
	"aetracker/internal/format"
	"aetracker/internal/provider"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// skipConfig marks commands that must run even when the config file is broken.
const skipConfig = "aetracker/skip-config"

type App struct {
	ConfigPath string
	URL        string
	Format     string
	PrettyJSON bool
	NoColor    bool
	LogLevel   string

	cfg    config.Config
	logger *slog.Logger
	// now is overridden by tests.
	now func() time.Time
}

func NewRootCmd() *cobra.Command {
	app := &App{now: time.Now}

	cmd := &cobra.Command{
		Use:          "aetracker",
		Short:        "Track tasks per account executive",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Run the backend
  aetracker serve

  # Open tasks due this week
  aetracker tasks list --due-this-week --format table

  # Create a task (the AE and account are created on first use)
  aetracker tasks create --title "Send renewal quote" --ae "Ava Smith" --account Acme --due 2024-03-15

  # Direct task lookup (shortcut for: aetracker tasks show <task-id>)
  aetracker 2f1c0f9e-6a55-4c1e-9a0d-4f2d3d8b2a11
`),
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipConfig] != "" {
			app.cfg = config.Default()
			app.logger = newLogger(cmd.ErrOrStderr(), app.cfg.Log)
			return nil
		}
		if err := app.setup(cmd); err != nil {
			return writeErr(cmd, err)
		}
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", envOr("AETRACKER_CONFIG", ""), "Config file (default: ~/.aetracker/config.toml)")
	cmd.PersistentFlags().StringVar(&app.URL, "url", "", "API base URL, including /api (overrides AETRACKER_URL and [client] url)")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("AETRACKER_FORMAT", "json"), "Output format (json|edn|table)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON and EDN output")
	cmd.PersistentFlags().BoolVar(&app.NoColor, "no-color", false, "Disable colors in table output")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", "", "Log level (debug|info|warn|error)")

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newTasksCmd(app))
	cmd.AddCommand(newAEsCmd(app))
	cmd.AddCommand(newAccountsCmd(app))
	cmd.AddCommand(newConfigCmd(app))

	return cmd
}

// setup resolves config with flag > environment > file > default precedence
// and builds the logger.
func (app *App) setup(cmd *cobra.Command) error {
	if !format.Valid(app.Format) {
		return fmt.Errorf("unknown format: %s (expected json|edn|table)", app.Format)
	}
	cfg, err := config.Load(app.ConfigPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()
	if v := strings.TrimSpace(app.URL); v != "" {
		cfg.Client.URL = v
	}
	if v := strings.TrimSpace(app.LogLevel); v != "" {
		if _, err := config.ParseLevel(v); err != nil {
			return err
		}
		cfg.Log.Level = v
	}
	app.cfg = cfg
	app.logger = newLogger(cmd.ErrOrStderr(), cfg.Log)
	return nil
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	level, _ := config.ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (app *App) client() (*api.Client, error) {
	return api.NewClient(api.ClientConfig{
		BaseURL: app.cfg.Client.URL,
		Timeout: app.cfg.Client.Timeout.Duration,
		Logger:  app.logger,
	})
}

// provider returns a fresh, unhydrated provider talking to the configured
// backend. Each command invocation gets its own.
func (app *App) provider() (*provider.Provider, error) {
	c, err := app.client()
	if err != nil {
		return nil, err
	}
	return provider.New(c, provider.Options{Logger: app.logger, Now: app.now}), nil
}

func (app *App) tableOptions(cmd *cobra.Command) format.TableOptions {
	opts := format.TableOptions{Writer: cmd.OutOrStdout(), NoColor: app.NoColor}
	if os.Getenv("NO_COLOR") != "" {
		opts.NoColor = true
	}
	if f, ok := cmd.OutOrStdout().(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			opts.Width = w
		}
	}
	return opts
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON, app.tableOptions(cmd))
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
