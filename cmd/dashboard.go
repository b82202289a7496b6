package cmd

import (
	"context"
	"fmt"
	"os"

	"drive-media-compressor/application/session"
	"drive-media-compressor/domain/drive"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show storage usage and what the current folder holds",
	Long: `Show the account's storage quota and a breakdown of the folder
by documents, images, videos, and other files.

Example:
  drive-media-compressor dashboard`,
	RunE: runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
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

	return RunDashboardWithDependencies(ctx, a.session, os.Stdout)
}

// RunDashboardWithDependencies runs the dashboard command with injected dependencies (for testing)
func RunDashboardWithDependencies(ctx context.Context, sess *session.Session, out OutputWriter) error {
	d, err := sess.Dashboard(ctx)
	if err != nil {
		return err
	}

	heading := color.New(color.Bold)
	heading.Fprintf(out, "%s <%s>\n", d.Account.User.DisplayName, d.Account.User.EmailAddress)

	q := d.Account.Quota
	if q.Unlimited() {
		fmt.Fprintf(out, "Storage: %s used (unlimited)\n", humanize.Bytes(uint64(q.UsageBytes)))
	} else {
		pct := float64(q.UsageBytes) / float64(q.LimitBytes) * 100
		usage := color.New(color.FgGreen)
		if pct >= 90 {
			usage = color.New(color.FgRed)
		} else if pct >= 75 {
			usage = color.New(color.FgYellow)
		}
		fmt.Fprintf(out, "Storage: ")
		usage.Fprintf(out, "%s of %s used (%.1f%%)", humanize.Bytes(uint64(q.UsageBytes)), humanize.Bytes(uint64(q.LimitBytes)), pct)
		fmt.Fprintf(out, ", %s free\n", humanize.Bytes(uint64(q.AvailableBytes())))
	}
	if q.UsageInTrashBytes > 0 {
		fmt.Fprintf(out, "Trash: %s\n", humanize.Bytes(uint64(q.UsageInTrashBytes)))
	}

	fmt.Fprintln(out)
	heading.Fprintf(out, "%s\n", d.Path.String())
	for _, c := range []drive.Category{drive.CategoryImage, drive.CategoryVideo, drive.CategoryDocument, drive.CategoryOther} {
		s := d.Stats.ByCategory[c]
		fmt.Fprintf(out, "  %-9s %4d  %s\n", c, s.Count, humanize.Bytes(uint64(s.Bytes)))
	}
	fmt.Fprintf(out, "  %-9s %4d  %s\n", "total", d.Stats.TotalFiles, humanize.Bytes(uint64(d.Stats.TotalBytes)))
	return nil
}
