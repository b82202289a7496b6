package cmd

import (
	"fmt"
	"os"

	"drive-media-compressor/infrastructure/config"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	envFile string
	verbose bool
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "drive-media-compressor",
	Short: "Compress images and videos stored in Google Drive",
	Long: `drive-media-compressor shrinks the photos and videos in a Google Drive
account without keeping copies anywhere else:

  - Compress files in place (same name, same folder)
  - Upload a compressed copy next to the original
  - Compress local files while uploading them
  - Browse folders, preview media, and delete files

Example:
  drive-media-compressor list --folder root
  drive-media-compressor replace 1AbC 2DeF`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file providing DRIVE_ACCESS_TOKEN")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug diagnostics")
}

func initConfig() {
	if cfgFile == "" {
		cfgFile = config.DefaultPath
	}

	if err := config.LoadEnv(envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	var err error
	cfg, err = config.LoadOrDefault(cfgFile)
	if err != nil {
		// A broken config file is reported by the commands that need it
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		cfg = nil
	}
}

// GetConfig returns the loaded configuration
func GetConfig() *config.Config {
	return cfg
}

// OutputWriter allows capturing output in tests
type OutputWriter interface {
	Write(p []byte) (n int, err error)
}
