package cmd

import (
	"context"
	"fmt"
	"os"

	"drive-media-compressor/application/fetch"
	"drive-media-compressor/application/session"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	previewFolder string
	previewOut    string
)

var previewCmd = &cobra.Command{
	Use:   "preview <file-id>",
	Short: "Save a viewable copy of a Drive file",
	Long: `Fetch a file for viewing. When the full download is unavailable the
thumbnail is used, and failing that a placeholder image.

Example:
  drive-media-compressor preview 1AbC --out photo.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runPreview,
}

func init() {
	rootCmd.AddCommand(previewCmd)
	previewCmd.Flags().StringVar(&previewFolder, "folder", "", "Folder holding the file (defaults to google.default_folder_id)")
	previewCmd.Flags().StringVarP(&previewOut, "out", "o", "", "Where to write the fetched bytes (defaults to the file name)")
}

func runPreview(cmd *cobra.Command, args []string) error {
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

	return RunPreviewWithDependencies(ctx, a.session, resolveFolder(previewFolder, cfg), args[0], previewOut, os.Stdout)
}

// RunPreviewWithDependencies runs the preview command with injected dependencies (for testing)
func RunPreviewWithDependencies(ctx context.Context, sess *session.Session, folderID, fileID, outPath string, out OutputWriter) error {
	if err := sess.RefreshFolder(ctx, folderID); err != nil {
		return err
	}
	defer sess.Registry().ClosePreview()

	file, res, err := sess.Preview(ctx, folderID, fileID)
	if err != nil {
		return fmt.Errorf("failed to preview %s: %w", fileID, err)
	}

	if outPath == "" {
		outPath = file.Name
		if res.Source == (fetch.Placeholder{}).Name() {
			outPath += ".svg"
		}
	}
	if err := os.WriteFile(outPath, res.Data, 0644); err != nil {
		return fmt.Errorf("failed to write preview: %w", err)
	}

	fmt.Fprintf(out, "%s: wrote %s to %s (via %s)\n", file.Name, humanize.Bytes(uint64(len(res.Data))), outPath, res.Source)
	if res.Fallback {
		fmt.Fprintln(out, "The full file could not be fetched; this is a fallback.")
	}
	return nil
}
