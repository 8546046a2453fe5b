package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"safeop/internal/app"
	"safeop/internal/config"
	"safeop/internal/safeop"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code. Cobra
// prints "Error: <message>" on stderr for any returned error.
func run(args []string, stdout, stderr io.Writer) int {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

var (
	rootFlag    string
	verboseFlag bool
)

// loadConfig reads the config file, falling back to defaults when it does not exist.
func loadConfig() (*config.Config, map[string]string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.Load(defaults["config_path"], defaults["base_dir"])
	if err != nil {
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults, nil
}

// newApp reads the config and creates a SafeOpApp for cmd. The caller must
// defer app.Close().
func newApp(cmd *cobra.Command) (*app.SafeOpApp, *config.Config, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	a, err := app.NewSafeOpApp(cfg, cmd.Name(), app.Options{
		Root:    rootFlag,
		Verbose: verboseFlag,
		Stderr:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, cfg, nil
}

var rootCmd = &cobra.Command{
	Use:   "safeop",
	Short: "Back up files before risky edits and restore them afterwards",
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup FILE",
	Short: "Copy a file into the backup directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		comment, _ := cmd.Flags().GetString("comment")

		a, cfg, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		maxBackups := cfg.MaxBackupsOrDefault()
		if cmd.Flags().Changed("max-backups") {
			maxBackups, _ = cmd.Flags().GetInt("max-backups")
		}

		backupPath, err := a.Backup(args[0], maxBackups, comment)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Backed up %s\n", backupPath)
		return nil
	},
}

// restore command
var restoreCmd = &cobra.Command{
	Use:   "restore BACKUP [TARGET]",
	Short: "Restore a backup to its original location or to TARGET",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		target := ""
		if len(args) > 1 {
			target = args[1]
		}

		a, _, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		restored, err := a.Restore(args[0], target)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Restored %s\n", restored)
		return nil
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list [FILE]",
	Short: "Show logged backup and restore operations",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		filter := ""
		if len(args) > 0 {
			filter = args[0]
		}

		a, _, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.List(filter)
		if err != nil {
			return err
		}

		if len(records) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No backups found.")
			return nil
		}

		for _, r := range records {
			line := fmt.Sprintf("%s  %-7s  %s -> %s",
				r.Timestamp.Local().Format("2006-01-02 15:04:05"),
				r.Operation,
				r.OriginalPath,
				r.BackupPath,
			)
			if r.Comment != "" {
				line += "  # " + r.Comment
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	},
}

// clean command
var cleanCmd = &cobra.Command{
	Use:   "clean FILE KEEP",
	Short: "Delete all but the KEEP newest backups of FILE",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		keep, err := strconv.Atoi(args[1])
		if err != nil {
			return safeop.Usagef("keep must be an integer: %q", args[1])
		}
		cmd.SilenceUsage = true

		a, _, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		removed, err := a.Clean(args[0], keep)
		if err != nil {
			if errors.Is(err, safeop.ErrUsage) {
				cmd.SilenceUsage = false
			}
			return err
		}

		for _, p := range removed {
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", p)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d backup(s)\n", len(removed))
		return nil
	},
}

// verify command
var verifyCmd = &cobra.Command{
	Use:   "verify BACKUP",
	Short: "Check a backup against the checksum recorded when it was made",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		a, _, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Verify(args[0])
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "OK  %s  sha256:%s\n", res.BackupPath, res.Actual)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View run history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		limit, _ := cmd.Flags().GetInt("limit")

		a, _, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.GetHistory(limit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
			return nil
		}

		for _, r := range runs {
			duration := ""
			if r.FinishedAt.Valid {
				d := r.FinishedAt.Time.Sub(r.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "#%d  %-8s  %s  %-8s  %-8s  %s\n",
				r.ID,
				r.Command,
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.Status,
				duration,
				r.Parameters,
			)
		}
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Configuration initialized at %s\n", defaults["config_path"])
		fmt.Fprintf(cmd.OutOrStdout(), "Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		cfg, defaults, err := loadConfig()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Configuration from %s:\n\n", defaults["config_path"])
		fmt.Fprintf(out, "Base Dir:    %s\n", cfg.BaseDir)
		fmt.Fprintf(out, "Log Dir:     %s\n", cfg.LogDir)
		fmt.Fprintf(out, "Backup Root: %s\n", cfg.BackupRoot)
		fmt.Fprintf(out, "Max Backups: %d\n", cfg.MaxBackupsOrDefault())
		fmt.Fprintf(out, "Lock:        %t (wait %s)\n", !cfg.DisableLock, cfg.LockWaitDuration())
		fmt.Fprintf(out, "Index:       %s\n", cfg.Index.Type)
		fmt.Fprintf(out, "Encryption:  %s\n", cfg.Encryption.Type)
		fmt.Fprintf(out, "Mirror:      %s\n", cfg.Mirror.Type)
		return nil
	},
}

var configKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the encryption key pair",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		a, _, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		pass, err := app.PromptPassphrase("New passphrase: ", cmd.ErrOrStderr())()
		if err != nil {
			return err
		}
		confirm, err := app.PromptPassphrase("Confirm passphrase: ", cmd.ErrOrStderr())()
		if err != nil {
			return err
		}
		if pass != confirm {
			return fmt.Errorf("passphrases do not match")
		}

		if err := a.SetupEncryption(pass); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Encryption keys generated.")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", "", "Backup directory (default from config, .backups)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Also write log lines to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeygenCmd)

	// root commands
	rootCmd.AddCommand(backupCmd)
	backupCmd.Flags().IntP("max-backups", "m", config.DefaultMaxBackups, "Keep at most this many backups of the file (0 keeps all)")
	backupCmd.Flags().StringP("comment", "c", "", "Comment stored with the log record")
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of runs to show")
	rootCmd.AddCommand(configCmd)
}
