package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"drive-media-compressor/infrastructure/config"

	"github.com/spf13/cobra"
)

// DefaultOutput is the default output writer for config commands
var DefaultOutput OutputWriter = os.Stdout

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration entries",
	Long: `Manage batch summary email recipients in the configuration file.

Examples:
  drive-media-compressor config list recipients
  drive-media-compressor config add recipient --key jane --name "Jane Doe" --email jane@example.com
  drive-media-compressor config remove recipient jane`,
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configAddCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configRemoveCmd)
}

// --- ADD command ---

var (
	addKey     string
	addName    string
	addEmail   string
	addSummary bool
)

var configAddCmd = &cobra.Command{
	Use:   "add recipient",
	Short: "Add a new recipient",
	Long: `Add a recipient to the configuration. With --summary the recipient
also receives every batch summary email.

Examples:
  drive-media-compressor config add recipient --key jane --name "Jane Doe" --email "jane@example.com" --summary`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigAdd,
}

func init() {
	configAddCmd.Flags().StringVar(&addKey, "key", "", "Unique key for the entry (required)")
	configAddCmd.Flags().StringVar(&addName, "name", "", "Display name (required)")
	configAddCmd.Flags().StringVar(&addEmail, "email", "", "Email address (required)")
	configAddCmd.Flags().BoolVar(&addSummary, "summary", false, "Send batch summaries to this recipient")
	configAddCmd.MarkFlagRequired("key")
	configAddCmd.MarkFlagRequired("name")
	configAddCmd.MarkFlagRequired("email")
}

func runConfigAdd(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}

	return RunConfigAddWithDependencies(cfg, cfgFile, args[0], addKey, addName, addEmail, addSummary, DefaultOutput)
}

// RunConfigAddWithDependencies runs the add command with injected dependencies
func RunConfigAddWithDependencies(cfg *config.Config, configPath, entityType, key, name, email string, summary bool, out OutputWriter) error {
	if entityType != "recipient" {
		return fmt.Errorf("unknown entity type %q. Use recipient", entityType)
	}

	if summary {
		cfg.Notification.SendTo = append(cfg.Notification.SendTo, strings.ToLower(strings.TrimSpace(key)))
	}
	mgr := config.NewConfigManager(cfg, configPath)
	if err := mgr.AddRecipient(key, name, email); err != nil {
		if summary {
			cfg.Notification.SendTo = cfg.Notification.SendTo[:len(cfg.Notification.SendTo)-1]
		}
		return err
	}
	fmt.Fprintf(out, "Added recipient %q: %s <%s>\n", key, name, email)
	return nil
}

// --- LIST command ---

var configListCmd = &cobra.Command{
	Use:   "list recipients",
	Short: "List recipients",
	Long: `List all configured recipients. Recipients marked in the SUMMARY
column receive batch summary emails.

Examples:
  drive-media-compressor config list recipients`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigList,
}

func runConfigList(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}

	return RunConfigListWithDependencies(cfg, cfgFile, args[0], DefaultOutput)
}

// RunConfigListWithDependencies runs the list command with injected dependencies
func RunConfigListWithDependencies(cfg *config.Config, configPath, entityType string, out OutputWriter) error {
	if entityType != "recipients" {
		return fmt.Errorf("unknown entity type %q. Use recipients", entityType)
	}

	mgr := config.NewConfigManager(cfg, configPath)
	recipients := mgr.ListRecipients()
	if len(recipients) == 0 {
		fmt.Fprintln(out, "No recipients configured.")
		return nil
	}

	summary := make(map[string]bool, len(cfg.Notification.SendTo))
	for _, k := range cfg.Notification.SendTo {
		summary[strings.ToLower(strings.TrimSpace(k))] = true
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tNAME\tEMAIL\tSUMMARY")
	for _, r := range recipients {
		mark := ""
		if summary[r.Key] {
			mark = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Key, r.Name, r.Address, mark)
	}
	return w.Flush()
}

// --- REMOVE command ---

var configRemoveCmd = &cobra.Command{
	Use:   "remove recipient <key>",
	Short: "Remove a recipient",
	Long: `Remove a recipient from the configuration and from the summary list.

Examples:
  drive-media-compressor config remove recipient jane`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigRemove,
}

func runConfigRemove(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}

	return RunConfigRemoveWithDependencies(cfg, cfgFile, args[0], args[1], DefaultOutput)
}

// RunConfigRemoveWithDependencies runs the remove command with injected dependencies
func RunConfigRemoveWithDependencies(cfg *config.Config, configPath, entityType, key string, out OutputWriter) error {
	if entityType != "recipient" {
		return fmt.Errorf("unknown entity type %q. Use recipient", entityType)
	}

	mgr := config.NewConfigManager(cfg, configPath)
	if err := mgr.RemoveRecipient(key); err != nil {
		return err
	}
	fmt.Fprintf(out, "Removed recipient %q\n", key)
	return nil
}
