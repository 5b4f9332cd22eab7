package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newSaveCommand(cc *commandContext) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save a transcript document, encrypting the configured fields",
		Long: `Reads a JSON transcript from --file (stdin by default) and posts it to the
backend. The configured fields are encrypted client-side first; if that is
not possible the document is sent as-is and the output says so.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readDocument(cmd, file)
			if err != nil {
				return err
			}
			token, err := cc.tokenFor(cmd)()
			if err != nil {
				return err
			}

			return cc.withApp(cmd, func(app *App) error {
				svc, err := app.Transcripts()
				if err != nil {
					return err
				}
				res, err := svc.SaveJSON(cmd.Context(), token, body)
				if err != nil {
					return err
				}

				state := "encrypted"
				if !res.Encrypted {
					state = "plaintext"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved transcript %s (%s)\n", res.ID, state)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "transcript JSON file, - for stdin")
	return cmd
}

func readDocument(cmd *cobra.Command, path string) ([]byte, error) {
	var (
		body []byte
		err  error
	)
	if path == "" || path == "-" {
		body, err = io.ReadAll(cmd.InOrStdin())
	} else {
		body, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	return body, nil
}
