package cli

import (
	"errors"
	"os"

	"aetracker/internal/config"

	"github.com/spf13/cobra"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Config file commands",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a config file with the defaults",
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := app.ConfigPath
			if path == "" {
				p, err := config.Path()
				if err != nil {
					return writeErr(cmd, err)
				}
				path = p
			}
			if _, err := os.Stat(path); err == nil && !force {
				return writeErr(cmd, errors.New("config already exists: "+path+" (pass --force to overwrite)"))
			}
			written, err := config.Save(path, config.Default())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]string{"path": written})
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	cmd.AddCommand(initCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective config (file, environment and flags applied)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.cfg
			return writeOut(cmd, app, map[string]any{
				"server": map[string]string{"addr": cfg.Server.Addr, "db": cfg.Server.DB},
				"client": map[string]string{"url": cfg.Client.URL, "timeout": cfg.Client.Timeout.String()},
				"log":    map[string]string{"level": cfg.Log.Level, "format": cfg.Log.Format},
			})
		},
	})

	return cmd
}
