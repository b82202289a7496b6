package cmd

import (
	"context"
	"fmt"
	"os"

	"drive-media-compressor/application/session"
	"drive-media-compressor/domain/notification"
	"drive-media-compressor/domain/transfer"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	batchFolder string
	batchNoMail bool
)

var replaceCmd = &cobra.Command{
	Use:   "replace <file-id>...",
	Short: "Compress Drive files and replace the originals",
	Long: `Download each file, compress it, upload the result under the same
name, and delete the original. Small images are re-uploaded unchanged.

Example:
  drive-media-compressor replace 1AbC 1DeF --folder 1XyZ`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, transfer.OperationReplace, args)
	},
}

var uploadNewCmd = &cobra.Command{
	Use:   "upload-new <file-id>...",
	Short: "Compress Drive files and upload them as new copies",
	Long: `Download each file, compress it, and upload the result next to the
original as "<name>_compressed<ext>". Originals are left untouched.

Example:
  drive-media-compressor upload-new 1AbC --folder 1XyZ`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, transfer.OperationUploadNew, args)
	},
}

func init() {
	rootCmd.AddCommand(replaceCmd)
	rootCmd.AddCommand(uploadNewCmd)
	for _, c := range []*cobra.Command{replaceCmd, uploadNewCmd} {
		c.Flags().StringVar(&batchFolder, "folder", "", "Folder holding the files (defaults to google.default_folder_id)")
		c.Flags().BoolVar(&batchNoMail, "no-email", false, "Skip the summary email")
	}
}

func runBatch(cmd *cobra.Command, op transfer.Operation, inputs []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()

	folderID := resolveFolder(batchFolder, cfg)
	summary, err := RunBatchWithDependencies(ctx, a.session, op, folderID, inputs, os.Stdout)
	if !batchNoMail {
		a.finishBatch(ctx, summary, folderID, os.Stdout)
	}
	return err
}

// RunBatchWithDependencies runs one pipeline batch with injected dependencies (for testing).
// Inputs are Drive file ids, or local paths for OperationLocal.
func RunBatchWithDependencies(ctx context.Context, sess *session.Session, op transfer.Operation, folderID string, inputs []string, out OutputWriter) (*transfer.Summary, error) {
	// Ids are resolved against the registry, and outcomes only patch
	// folders that have been listed.
	if err := sess.RefreshFolder(ctx, folderID); err != nil {
		return nil, err
	}

	fmt.Fprintf(out, "%s: %d file(s)\n", notification.OperationTitle(op), len(inputs))

	var summary *transfer.Summary
	var err error
	p := sess.Pipeline()
	switch op {
	case transfer.OperationReplace:
		summary, err = p.CompressAndReplace(ctx, folderID, inputs)
	case transfer.OperationUploadNew:
		summary, err = p.CompressAndUpload(ctx, folderID, inputs)
	case transfer.OperationLocal:
		summary, err = p.UploadLocal(ctx, folderID, inputs)
	default:
		return nil, fmt.Errorf("unknown operation %q", op)
	}
	if summary != nil {
		printSummary(out, summary)
	}
	if err != nil {
		return summary, err
	}
	if summary.Failed > 0 {
		return summary, fmt.Errorf("%d of %d file(s) failed", summary.Failed, summary.Total())
	}
	return summary, nil
}

func printSummary(out OutputWriter, s *transfer.Summary) {
	fmt.Fprintln(out)
	color.New(color.Bold).Fprintf(out, "%s finished\n", notification.OperationTitle(s.Operation))

	ok := color.New(color.FgGreen)
	failed := color.New(color.FgRed)
	warn := color.New(color.FgYellow)

	ok.Fprintf(out, "  %d succeeded", s.Succeeded)
	fmt.Fprint(out, ", ")
	if s.Failed > 0 {
		failed.Fprintf(out, "%d failed", s.Failed)
	} else {
		fmt.Fprintf(out, "%d failed", s.Failed)
	}
	fmt.Fprintf(out, ", %s saved\n", humanize.Bytes(uint64(s.BytesSaved)))

	for _, f := range s.Failures {
		failed.Fprintf(out, "  ✗ %s: %s\n", f.Name, f.Reason)
	}
	for _, n := range s.Notices {
		warn.Fprintf(out, "  ! %s\n", n)
	}
	if s.Aborted {
		failed.Fprintln(out, "  Batch stopped: reconnect required. Run 'drive-media-compressor auth'.")
	}
}
