package cli

import (
	"bufio"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/scribekeeper/internal/client/models"
)

func newBackupsCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "backups",
		Aliases: []string{"backup"},
		Short:   "Inspect and recover recordings left behind by interrupted sessions",
	}
	cmd.AddCommand(
		newBackupsListCommand(cc),
		newBackupsExportCommand(cc),
		newBackupsUploadCommand(cc),
		newBackupsDiscardCommand(cc),
		newBackupsPruneCommand(cc),
	)
	return cmd
}

func newBackupsListCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recoverable recordings, oldest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withApp(cmd, func(app *App) error {
				pending := app.Recovery(nil).Pending(cmd.Context())
				out := cmd.OutOrStdout()
				if len(pending) == 0 {
					fmt.Fprintln(out, "no backups")
					return nil
				}

				headers := []string{"SESSION", "MIME", "BYTES", "FRAGMENTS", "PERSISTED"}
				rows := summaryRows(pending)
				if isTerminal(out) {
					fmt.Fprintln(out, renderTable(headers, rows, []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft}))
				} else {
					fmt.Fprint(out, renderTSV(headers, rows))
				}
				return nil
			})
		},
	}
}

func summaryRows(pending []models.BackupSummary) [][]string {
	rows := make([][]string, 0, len(pending))
	for _, s := range pending {
		rows = append(rows, []string{
			s.SessionID,
			s.MimeType,
			strconv.FormatInt(s.TotalBytes, 10),
			strconv.Itoa(s.Fragments),
			s.PersistedAt.Local().Format(time.RFC3339),
		})
	}
	return rows
}

func newBackupsExportCommand(cc *commandContext) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <session>",
		Short: "Write a recovered recording to a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withApp(cmd, func(app *App) error {
				path, err := app.Recovery(nil).Export(cmd.Context(), args[0], output)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported %s to %s\n", args[0], path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "target file or directory (defaults to <session><ext> in the working directory)")
	return cmd
}

func newBackupsUploadCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <session>",
		Short: "Upload a recovered recording and remove its backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withApp(cmd, func(app *App) error {
				uploader, err := app.Uploader(cmd.Context(), cc.tokenFor(cmd))
				if err != nil {
					return err
				}
				location, err := app.Recovery(uploader).Handoff(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s to %s\n", args[0], location)
				return nil
			})
		},
	}
}

func newBackupsDiscardCommand(cc *commandContext) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "discard <session>",
		Short: "Delete a backup without uploading it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				reader := bufio.NewReader(cmd.InOrStdin())
				if !Confirm(reader, fmt.Sprintf("Discard backup %s?", args[0]), cmd.ErrOrStderr()) {
					fmt.Fprintln(cmd.OutOrStdout(), "kept")
					return nil
				}
			}
			return cc.withApp(cmd, func(app *App) error {
				if err := app.Recovery(nil).Discard(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "discarded %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newBackupsPruneCommand(cc *commandContext) *cobra.Command {
	var maxAge time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete backups older than --max-age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withApp(cmd, func(app *App) error {
				age := app.config.BackupMaxAge
				if cmd.Flags().Changed("max-age") {
					age = maxAge
				}
				n, err := app.Recovery(nil).Prune(cmd.Context(), age)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pruned %d backup(s)\n", n)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "age threshold (defaults to the configured backup max age)")
	return cmd
}
