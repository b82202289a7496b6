package cmd

import (
	"os"

	"drive-media-compressor/domain/transfer"

	"github.com/spf13/cobra"
)

var (
	uploadFolder string
	uploadNoMail bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <path>...",
	Short: "Compress local files and upload them to Drive",
	Long: `Compress local images and videos and upload them to a Drive folder.
Files that got smaller are uploaded as "compressed_<name>"; everything
else keeps its name.

Example:
  drive-media-compressor upload photo.jpg clip.mp4 report.pdf
  drive-media-compressor upload ~/Pictures/*.png --folder 1XyZ`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().StringVar(&uploadFolder, "folder", "", "Destination folder ID (defaults to google.default_folder_id)")
	uploadCmd.Flags().BoolVar(&uploadNoMail, "no-email", false, "Skip the summary email")
}

func runUpload(cmd *cobra.Command, args []string) error {
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

	folderID := resolveFolder(uploadFolder, cfg)
	summary, err := RunBatchWithDependencies(ctx, a.session, transfer.OperationLocal, folderID, args, os.Stdout)
	if !uploadNoMail {
		a.finishBatch(ctx, summary, folderID, os.Stdout)
	}
	return err
}
