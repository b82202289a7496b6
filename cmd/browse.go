package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"drive-media-compressor/application/registry"
	"drive-media-compressor/application/session"
	"drive-media-compressor/application/transfer"
	domaindrive "drive-media-compressor/domain/drive"

	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse Drive interactively and act on selected files",
	Long: `Walk the Drive folder tree, select files, and compress, upload,
preview, or delete them. Listings refresh after every batch.`,
	RunE: runBrowse,
}

func init() {
	rootCmd.AddCommand(browseCmd)
}

func runBrowse(cmd *cobra.Command, args []string) error {
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

	return RunBrowseWithDependencies(ctx, a.session, DefaultPrompter, os.Stdout)
}

const (
	browseUp      = ".. (up)"
	browseSelect  = "[select files]"
	browseRefresh = "[refresh]"
	browseQuit    = "[quit]"

	actionReplace = "Compress & replace"
	actionUpload  = "Compress & upload as copy"
	actionPreview = "Preview"
	actionDelete  = "Delete"
	actionCancel  = "Cancel"
)

// RunBrowseWithDependencies runs the interactive browser with injected dependencies (for testing)
func RunBrowseWithDependencies(ctx context.Context, sess *session.Session, prompter Prompter, out OutputWriter) error {
	if err := sess.Refresh(ctx); err != nil {
		return err
	}

	for {
		b := sess.Browser()
		options, folders := browseOptions(b)

		choice, err := prompter.Select(b.Path().String(), options, "")
		if err != nil {
			if errors.Is(err, terminal.InterruptErr) {
				return nil
			}
			return fmt.Errorf("prompt cancelled")
		}

		switch choice {
		case browseQuit:
			return nil
		case browseUp:
			err = sess.Up(ctx)
		case browseRefresh:
			err = sess.Refresh(ctx)
		case browseSelect:
			err = browseSelection(ctx, sess, prompter, out)
		default:
			err = sess.Enter(ctx, folders[choice])
		}
		if err != nil {
			if domaindrive.IsAuth(err) {
				return err
			}
			fmt.Fprintf(out, "Error: %s\n", describeError(err))
		}
	}
}

// browseOptions lists the navigator's choices for the active folder and maps
// folder labels back to their ids. The root has nothing above it.
func browseOptions(b *registry.Browser) ([]string, map[string]string) {
	options := []string{}
	if b.Path().Depth() > 1 {
		options = append(options, browseUp)
	}
	folders := map[string]string{}
	for _, f := range b.Listing() {
		if f.IsFolder() {
			label := fmt.Sprintf("%s/  [%s]", f.Name, f.ID)
			folders[label] = f.ID
			options = append(options, label)
		}
	}
	return append(options, browseSelect, browseRefresh, browseQuit), folders
}

func browseSelection(ctx context.Context, sess *session.Session, prompter Prompter, out OutputWriter) error {
	b := sess.Browser()
	labels := []string{}
	ids := map[string]string{}
	for _, f := range b.Listing() {
		if f.IsFolder() {
			continue
		}
		size := "-"
		if f.SizeKnown {
			size = humanize.Bytes(uint64(f.Size))
		}
		label := fmt.Sprintf("%s (%s)  [%s]", f.Name, size, f.ID)
		ids[label] = f.ID
		labels = append(labels, label)
	}
	if len(labels) == 0 {
		fmt.Fprintln(out, "No files in this folder.")
		return nil
	}

	picked, err := prompter.MultiSelect("Select files", labels)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	b.ClearSelection()
	for _, label := range picked {
		if err := b.Select(ids[label]); err != nil {
			return err
		}
	}
	if len(b.Selected()) == 0 {
		return nil
	}

	actions := []string{actionReplace, actionUpload}
	if len(b.Selected()) == 1 {
		actions = append(actions, actionPreview)
	}
	actions = append(actions, actionDelete, actionCancel)
	action, err := prompter.Select(fmt.Sprintf("%d file(s) selected", len(b.Selected())), actions, actionCancel)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}

	folderID := b.FolderID()
	selected := b.Selected()
	defer b.ClearSelection()

	switch action {
	case actionReplace, actionUpload:
		p := sess.Pipeline()
		var h *transfer.Handle
		if action == actionReplace {
			h = p.StartCompressAndReplace(ctx, folderID, selected, nil)
		} else {
			h = p.StartCompressAndUpload(ctx, folderID, selected, nil)
		}
		summary, err := h.Wait(ctx)
		if summary != nil {
			printSummary(out, summary)
		}
		return err
	case actionPreview:
		return RunPreviewWithDependencies(ctx, sess, folderID, selected[0], "", out)
	case actionDelete:
		return RunDeleteWithDependencies(ctx, sess, prompter, folderID, selected, false, out)
	}
	return nil
}
