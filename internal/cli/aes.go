package cli

import (
	"fmt"

	"aetracker/internal/api"
	"aetracker/internal/format"

	"github.com/spf13/cobra"
)

func newAEsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "aes",
		Aliases: []string{"ae"},
		Short:   "Account executive commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List AEs with their colors",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.provider()
			if err != nil {
				return writeErr(cmd, err)
			}
			names, err := p.AEs(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			colors := p.Snapshot().AEColors
			out := make(format.AEList, 0, len(names))
			for _, n := range names {
				out = append(out, format.AERow{Name: n, Color: colors[n]})
			}
			return writeOut(cmd, app, out)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create an AE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.provider()
			if err != nil {
				return writeErr(cmd, err)
			}
			ae, err := p.CreateAE(cmd.Context(), args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, format.AEList{{Name: ae.Name, Color: p.Snapshot().AEColors[ae.Name]}})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an AE that no task references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.provider()
			if err != nil {
				return writeErr(cmd, err)
			}
			deleted, err := p.DeleteAE(cmd.Context(), args[0])
			if err != nil {
				return writeErr(cmd, inUse(err))
			}
			return writeOut(cmd, app, map[string]bool{"deleted": deleted})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reconcile-colors",
		Short: "Give every AE a distinct palette color",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.provider()
			if err != nil {
				return writeErr(cmd, err)
			}
			res, err := p.ReconcileAEColors(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, res)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "summary",
		Short: "Open, overdue and done counts per AE",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.provider()
			if err != nil {
				return writeErr(cmd, err)
			}
			rows, err := p.Summaries(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, format.Summaries(rows))
		},
	})

	return cmd
}

func newAccountsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "accounts",
		Aliases: []string{"account"},
		Short:   "Account commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List account names",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.provider()
			if err != nil {
				return writeErr(cmd, err)
			}
			names, err := p.Accounts(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, format.Names(names))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.provider()
			if err != nil {
				return writeErr(cmd, err)
			}
			a, err := p.CreateAccount(cmd.Context(), args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, a)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an account that no task references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.provider()
			if err != nil {
				return writeErr(cmd, err)
			}
			deleted, err := p.DeleteAccount(cmd.Context(), args[0])
			if err != nil {
				return writeErr(cmd, inUse(err))
			}
			return writeOut(cmd, app, map[string]bool{"deleted": deleted})
		},
	})

	return cmd
}

// inUse adds the referencing task count to an in-use error.
func inUse(err error) error {
	if n, ok := api.InUseCount(err); ok {
		return fmt.Errorf("%w: referenced by %d %s", err, n, plural(n, "task"))
	}
	return err
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
