package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/scribekeeper/internal/client/services"
	"github.com/dmitrijs2005/scribekeeper/internal/common"
)

const defaultChunkSize = 64 << 10

type recordOptions struct {
	input     string
	mimeType  string
	sessionID string
	chunkSize int
	pace      time.Duration
	keep      bool
}

func newRecordCommand(cc *commandContext) *cobra.Command {
	opts := &recordOptions{}

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Capture a media stream into a crash-safe backup, then upload it",
		Long: `Reads media from --input (stdin by default) in fragments, keeping a
durable backup that is refreshed on the auto-persist interval. When the
stream ends the recording is uploaded and the backup removed. If the
command is interrupted the backup stays behind for "scribe backups".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withApp(cmd, func(app *App) error {
				return runRecord(cmd, cc, app, opts)
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.input, "input", "i", "-", "media source file, - for stdin")
	f.StringVarP(&opts.mimeType, "mime", "m", "", "MIME type of the media (guessed from the file name when empty)")
	f.StringVarP(&opts.sessionID, "session", "s", "", "session id (generated when empty)")
	f.IntVar(&opts.chunkSize, "chunk", defaultChunkSize, "fragment size in bytes")
	f.DurationVar(&opts.pace, "pace", 0, "delay between fragments, emulating a live capture")
	f.BoolVar(&opts.keep, "keep", false, "keep the backup instead of uploading")
	return cmd
}

func runRecord(cmd *cobra.Command, cc *commandContext, app *App, opts *recordOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	if opts.chunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", opts.chunkSize)
	}

	if pending := services.ListPendingBackups(ctx, app.repo, app.logger); len(pending) > 0 {
		fmt.Fprintf(errOut, "%d unfinished recording(s) can be recovered, see \"scribe backups list\"\n", len(pending))
	}

	src, closeSrc, err := openInput(cmd, opts.input)
	if err != nil {
		return err
	}
	defer closeSrc()

	mimeType := opts.mimeType
	if mimeType == "" {
		mimeType = guessMimeType(opts.input)
	}

	mgr := services.NewBackupManager(opts.sessionID, app.repo, app.logger)
	mgr.StartAutoPersist(ctx, app.config.AutoPersistInterval)

	captureErr := capture(ctx, src, mgr, opts.chunkSize, mimeType, opts.pace)
	mgr.StopAutoPersist()

	// The command context may already be cancelled; the final snapshot
	// must still reach the store.
	finalCtx := context.WithoutCancel(ctx)
	mgr.Persist(finalCtx)

	if captureErr != nil {
		if ctx.Err() != nil {
			fmt.Fprintf(errOut, "recording interrupted, backup %s kept (%d bytes)\n", mgr.SessionID(), mgr.TotalBytes())
			return fmt.Errorf("recording interrupted: %w", captureErr)
		}
		fmt.Fprintf(errOut, "capture failed, backup %s kept (%d bytes)\n", mgr.SessionID(), mgr.TotalBytes())
		return captureErr
	}

	if err := mgr.LastError(); err != nil {
		fmt.Fprintf(errOut, "warning: backup is not durable: %v\n", err)
	}

	if opts.keep {
		fmt.Fprintf(out, "recorded %s: %d bytes in %d fragments, backup kept\n",
			mgr.SessionID(), mgr.TotalBytes(), mgr.FragmentCount())
		return nil
	}

	uploader, err := app.Uploader(finalCtx, cc.tokenFor(cmd))
	if err != nil {
		fmt.Fprintf(errOut, "backup %s kept\n", mgr.SessionID())
		return err
	}
	location, err := uploader.Upload(finalCtx, mgr.Snapshot())
	if err != nil {
		fmt.Fprintf(errOut, "upload failed, backup %s kept\n", mgr.SessionID())
		return fmt.Errorf("upload %s: %w", mgr.SessionID(), err)
	}

	sessionID, size := mgr.SessionID(), mgr.TotalBytes()
	mgr.Clear(finalCtx, "")
	fmt.Fprintf(out, "uploaded %s (%d bytes) to %s\n", sessionID, size, location)
	return nil
}

// capture feeds src into mgr in chunkSize fragments until EOF.
func capture(ctx context.Context, src io.Reader, mgr *services.BackupManager, chunkSize int, mimeType string, pace time.Duration) error {
	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := io.ReadFull(src, buf)
		if n > 0 {
			mgr.AddFragment(buf[:n], mimeType)
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read media: %w", err)
		}

		if pace > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pace):
			}
		}
	}
}

func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func guessMimeType(path string) string {
	if path != "" && path != "-" {
		if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
			return t
		}
	}
	return common.DefaultMimeType
}
