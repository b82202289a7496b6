package cmd

import (
	"context"
	"fmt"
	"os"

	"drive-media-compressor/application/session"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	deleteFolder string
	deleteYes    bool
)

var deleteCmd = &cobra.Command{
	Use:   "delete <file-id>...",
	Short: "Permanently delete Drive files",
	Long: `Permanently delete files from a Drive folder. Deleted files skip the
trash and cannot be recovered.

Example:
  drive-media-compressor delete 1AbC 1DeF --folder 1XyZ`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().StringVar(&deleteFolder, "folder", "", "Folder holding the files (defaults to google.default_folder_id)")
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Skip the confirmation prompt")
}

func runDelete(cmd *cobra.Command, args []string) error {
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

	return RunDeleteWithDependencies(ctx, a.session, DefaultPrompter, resolveFolder(deleteFolder, cfg), args, deleteYes, os.Stdout)
}

// RunDeleteWithDependencies runs the delete command with injected dependencies (for testing)
func RunDeleteWithDependencies(ctx context.Context, sess *session.Session, prompter Prompter, folderID string, fileIDs []string, skipConfirm bool, out OutputWriter) error {
	if err := sess.RefreshFolder(ctx, folderID); err != nil {
		return err
	}

	if !skipConfirm {
		fmt.Fprintln(out, "The following files will be permanently deleted:")
		for _, id := range fileIDs {
			if f, ok := sess.Registry().File(folderID, id); ok {
				fmt.Fprintf(out, "  %s (%s)\n", f.Name, id)
			} else {
				fmt.Fprintf(out, "  %s\n", id)
			}
		}
		confirmed, err := prompter.Confirm(fmt.Sprintf("Delete %d file(s)?", len(fileIDs)), false)
		if err != nil {
			return fmt.Errorf("prompt cancelled")
		}
		if !confirmed {
			fmt.Fprintln(out, "Nothing deleted.")
			return nil
		}
	}

	result, err := sess.Delete(ctx, folderID, fileIDs)
	if result != nil {
		fmt.Fprintf(out, "Deleted %d file(s)\n", len(result.Deleted))
		for _, f := range result.Failures {
			color.New(color.FgRed).Fprintf(out, "  ✗ %s: %s\n", f.Name, f.Reason)
		}
	}
	if err != nil {
		return err
	}
	if len(result.Failures) > 0 {
		return fmt.Errorf("%d of %d file(s) could not be deleted", len(result.Failures), len(fileIDs))
	}
	return nil
}
