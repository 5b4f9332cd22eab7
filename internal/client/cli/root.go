package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/scribekeeper/internal/client/config"
	"github.com/dmitrijs2005/scribekeeper/internal/logging"
)

// TokenEnv names the environment variable consulted when --token is not set.
const TokenEnv = "SCRIBE_TOKEN"

// commandContext carries state shared between the root command and its
// subcommands for a single invocation.
type commandContext struct {
	configPath string
	token      string
	verbose    bool
	overrides  *config.Overrides

	config *config.Config
	logger logging.Logger
}

// NewRootCommand builds the scribe command tree.
func NewRootCommand() *cobra.Command {
	cc := &commandContext{}

	root := &cobra.Command{
		Use:           "scribe",
		Short:         "Crash-safe recording backups and encrypted transcript uploads",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cc.ensureConfig(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&cc.configPath, "config", "c", os.Getenv("SCRIBE_CONFIG"), "path to a .json or .toml config file")
	flags.StringVar(&cc.token, "token", "", "bearer token (defaults to $"+TokenEnv+", prompted when needed)")
	flags.BoolVarP(&cc.verbose, "verbose", "v", false, "debug logging")
	cc.overrides = config.BindFlags(flags)

	root.AddCommand(
		newRecordCommand(cc),
		newBackupsCommand(cc),
		newSaveCommand(cc),
		newPingCommand(cc),
	)
	return root
}

func (cc *commandContext) ensureConfig(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(cc.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cc.overrides.Apply(cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	cc.config = cfg

	level := slog.LevelWarn
	if cc.verbose {
		level = slog.LevelDebug
	}
	cc.logger = logging.NewTextLogger(cmd.ErrOrStderr(), level)
	return nil
}

// withApp opens the App for the duration of fn.
func (cc *commandContext) withApp(cmd *cobra.Command, fn func(*App) error) (err error) {
	app, err := NewApp(cmd.Context(), cc.config, cc.logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(app)
}

// tokenFor returns a bearer token from --token, the environment, or a
// terminal prompt, in that order.
func (cc *commandContext) tokenFor(cmd *cobra.Command) func() (string, error) {
	return func() (string, error) {
		if cc.token != "" {
			return cc.token, nil
		}
		if t := strings.TrimSpace(os.Getenv(TokenEnv)); t != "" {
			cc.token = t
			return t, nil
		}
		t, err := GetToken(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		if t == "" {
			return "", fmt.Errorf("a bearer token is required")
		}
		cc.token = t
		return t, nil
	}
}
