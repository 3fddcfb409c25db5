package main

import (
	"errors"
	"fmt"
	"os"

	"keyhaven/internal/app"
	"keyhaven/internal/config"
	"keyhaven/internal/haven"
	"keyhaven/internal/storage"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a KeyApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Backup", "Restore").
func newApp(operation string) (*app.KeyApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewKeyApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// promptPassword reads a password from the terminal without echoing it.
func promptPassword(label string) (string, error) {
	fmt.Printf("%s: ", label)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("password must not be empty")
	}
	return string(raw), nil
}

// promptNewPassword reads and confirms a password entered twice.
func promptNewPassword(label string) (string, error) {
	first, err := promptPassword(label)
	if err != nil {
		return "", err
	}
	second, err := promptPassword(label + " (again)")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", fmt.Errorf("passwords do not match")
	}
	return first, nil
}

var rootCmd = &cobra.Command{
	Use:   "keyhaven",
	Short: "Private key backup and recovery",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		// Generate a new identity
		identity := uuid.New().String()

		cfg := config.NewConfig(identity, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Identity: %s\n", identity)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Identity:  %s\n", cfg.Identity)
		fmt.Printf("Base Dir:  %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		fmt.Printf("Vault:     %s\n", cfg.Vault.Type)
		fmt.Printf("Storage:   %s\n", cfg.Storage.Type)
		return nil
	},
}

var configKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the device key used to encrypt local key files",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		if err := storage.GenerateDeviceKey(cfg.Storage.KeyPath); err != nil {
			return fmt.Errorf("generating device key: %w", err)
		}

		fmt.Printf("Device key written to %s\n", cfg.Storage.KeyPath)
		return nil
	},
}

// init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a key pair and cache it locally",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("InitKey")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.InitKey(); err != nil {
			return fmt.Errorf("initializing key: %w", err)
		}

		fmt.Println("Key pair generated and cached locally.")
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Encrypt the local key and upload it as a backup record",
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := promptNewPassword("Backup password")
		if err != nil {
			return err
		}

		a, err := newApp("Backup")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Backup(cmd.Context(), password); err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}

		fmt.Println("Key backed up.")
		return nil
	},
}

// restore command
var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Fetch and decrypt the backup record into the local cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := promptPassword("Backup password")
		if err != nil {
			return err
		}

		a, err := newApp("Restore")
		if err != nil {
			return err
		}
		defer a.Close()

		key, err := a.Restore(cmd.Context(), password)
		if err != nil {
			switch {
			case errors.Is(err, haven.ErrWrongPassword):
				return fmt.Errorf("wrong password")
			case errors.Is(err, haven.ErrNoBackup):
				return fmt.Errorf("no backup record exists for this identity")
			}
			return fmt.Errorf("restore failed: %w", err)
		}

		fmt.Printf("Key restored. Fingerprint: %s\n", key.Public().Fingerprint())
		return nil
	},
}

// change-password command
var changePasswordCmd = &cobra.Command{
	Use:   "change-password",
	Short: "Re-encrypt the backup record under a new password",
	RunE: func(cmd *cobra.Command, args []string) error {
		oldPassword, err := promptPassword("Current password")
		if err != nil {
			return err
		}
		newPassword, err := promptNewPassword("New password")
		if err != nil {
			return err
		}

		a, err := newApp("ChangePassword")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ChangePassword(cmd.Context(), oldPassword, newPassword); err != nil {
			switch {
			case errors.Is(err, haven.ErrWrongPassword):
				return fmt.Errorf("wrong password")
			case errors.Is(err, haven.ErrNoBackup):
				return fmt.Errorf("no backup record exists for this identity")
			}
			return fmt.Errorf("changing password: %w", err)
		}

		fmt.Println("Backup password changed.")
		return nil
	},
}

// reset command
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete cached keys or backup records",
}

var resetLocalCmd = &cobra.Command{
	Use:   "local",
	Short: "Delete the locally cached key",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ResetLocal")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ResetLocal(); err != nil {
			return fmt.Errorf("resetting local cache: %w", err)
		}

		fmt.Println("Local key cache cleared.")
		return nil
	},
}

var resetBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Delete this identity's backup record",
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := promptPassword("Backup password")
		if err != nil {
			return err
		}

		a, err := newApp("ResetBackup")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ResetBackup(cmd.Context(), password); err != nil {
			if errors.Is(err, haven.ErrNoBackup) {
				return fmt.Errorf("no backup record exists for this identity")
			}
			return fmt.Errorf("resetting backup: %w", err)
		}

		fmt.Println("Backup record deleted.")
		return nil
	},
}

var resetAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Delete all backup data for this account",
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return fmt.Errorf("this deletes every backup record; re-run with --yes to confirm")
		}

		a, err := newApp("ResetAll")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ResetAll(cmd.Context()); err != nil {
			return fmt.Errorf("resetting all backup data: %w", err)
		}

		fmt.Println("All backup data deleted.")
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local key and vault status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Status")
		if err != nil {
			return err
		}
		defer a.Close()

		has, err := a.HasKey()
		if err != nil {
			return fmt.Errorf("checking local cache: %w", err)
		}
		if has {
			fmt.Println("Local key:  cached")
		} else {
			fmt.Println("Local key:  not cached")
		}

		if err := a.ValidateVault(); err != nil {
			fmt.Printf("Vault:      unreachable (%v)\n", err)
		} else {
			fmt.Println("Vault:      ok")
		}
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeygenCmd)

	// reset subcommands
	resetCmd.AddCommand(resetLocalCmd)
	resetCmd.AddCommand(resetBackupCmd)
	resetCmd.AddCommand(resetAllCmd)
	resetAllCmd.Flags().Bool("yes", false, "Confirm deleting all backup data")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(changePasswordCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(statusCmd)
}
