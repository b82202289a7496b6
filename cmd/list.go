package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"drive-media-compressor/application/session"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var listFolder string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the files in a Drive folder",
	Long: `List the files in a Drive folder, folders first, then newest first.

Example:
  drive-media-compressor list
  drive-media-compressor list --folder 1AbCdEf`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVar(&listFolder, "folder", "", "Folder ID (defaults to google.default_folder_id)")
}

func runList(cmd *cobra.Command, args []string) error {
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

	return RunListWithDependencies(ctx, a.session, resolveFolder(listFolder, cfg), os.Stdout)
}

// RunListWithDependencies runs the list command with injected dependencies (for testing)
func RunListWithDependencies(ctx context.Context, sess *session.Session, folderID string, out OutputWriter) error {
	if err := sess.RefreshFolder(ctx, folderID); err != nil {
		return err
	}

	files := sess.Registry().Listing(folderID)
	if len(files) == 0 {
		fmt.Fprintln(out, "Folder is empty.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tSIZE\tMODIFIED\tID")
	for _, f := range files {
		kind := string(f.Category())
		if f.IsFolder() {
			kind = "folder"
		}
		size := "-"
		if f.SizeKnown {
			size = humanize.Bytes(uint64(f.Size))
		}
		modified := "-"
		if !f.ModifiedTime.IsZero() {
			modified = humanize.Time(f.ModifiedTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", f.Name, kind, size, modified, f.ID)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	stats := sess.Registry().Stats(folderID)
	fmt.Fprintf(out, "\n%d entries, %s\n", stats.TotalFiles, humanize.Bytes(uint64(stats.TotalBytes)))
	return nil
}
