package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/scribekeeper/internal/flagx"
	"github.com/dmitrijs2005/scribekeeper/internal/logging"
	"github.com/dmitrijs2005/scribekeeper/internal/server"
	"github.com/dmitrijs2005/scribekeeper/internal/server/auth"
	"github.com/dmitrijs2005/scribekeeper/internal/server/config"
)

// mintUser returns the -mint flag value: a user id to print a bearer token
// for instead of serving.
func mintUser(args []string) string {
	var user string
	fs := flag.NewFlagSet("mint", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&user, "mint", "", "print a bearer token for this user id and exit")
	_ = fs.Parse(flagx.FilterArgs(args, []string{"-mint"}))
	return user
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.LoadConfig(args)
	if err != nil {
		return err
	}

	if user := mintUser(args); user != "" {
		token, err := auth.GenerateToken(user, []byte(cfg.SecretKey), cfg.AccessTokenValidityDuration)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	}

	logger := logging.NewJSONLogger(os.Stdout, slog.LevelInfo)

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return app.Run(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
