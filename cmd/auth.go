package cmd

import (
	"context"
	"fmt"
	"os"

	"drive-media-compressor/infrastructure/config"
	"drive-media-compressor/infrastructure/drive"
	"drive-media-compressor/infrastructure/gmail"

	"github.com/spf13/cobra"
)

var authNoBrowser bool

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Connect a Google account",
	Long: `Run the OAuth consent flow and store the token at google.token_file.

A stored token is refreshed when possible. Run this again whenever a
command reports "reconnect required".`,
	RunE: runAuth,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.Flags().BoolVar(&authNoBrowser, "no-browser", false, "Print the consent URL without opening a browser")
}

func runAuth(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	return RunAuthWithDependencies(cmd.Context(), cfg, !authNoBrowser, os.Stdout)
}

// RunAuthWithDependencies runs the auth command with injected dependencies (for testing)
func RunAuthWithDependencies(ctx context.Context, cfg *config.Config, openBrowser bool, out OutputWriter) error {
	oauth := drive.OAuthConfig{
		CredentialsFile: cfg.Google.CredentialsFile,
		TokenFile:       cfg.Google.TokenFile,
		OpenBrowser:     openBrowser,
	}
	if cfg.Notification.Enabled {
		oauth.ExtraScopes = append(oauth.ExtraScopes, gmail.SendScope)
	}

	if _, err := drive.Authorize(ctx, oauth, out); err != nil {
		return err
	}
	fmt.Fprintf(out, "Token stored at %s\n", cfg.Google.TokenFile)
	return nil
}
