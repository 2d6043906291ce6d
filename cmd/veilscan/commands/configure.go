package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/veilscan/veilscan/pkg/models"
	"github.com/veilscan/veilscan/pkg/utils"
)

func NewConfigureCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Manage VeilScan configuration",
	}

	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigValidateCommand())
	return cmd
}

func defaultConfigPath() (string, error) {
	if path := viper.ConfigFileUsed(); path != "" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".veilscan", "config.yaml"), nil
}

func newConfigInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := defaultConfigPath()
			if err != nil {
				return err
			}
			if force, _ := cmd.Flags().GetBool("force"); !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
				}
			}

			cfg := models.DefaultConfig()
			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Printf("Default configuration written to %s\n", path)
			fmt.Println("Set provider API keys there before scanning.")
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "Overwrite an existing config file")
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAppConfig()
			if err != nil {
				return err
			}

			redacted := utils.RedactSecrets(cfg)
			data, err := yaml.Marshal(redacted)
			if err != nil {
				return fmt.Errorf("render config: %w", err)
			}
			fmt.Print(string(data))
			return nil
		},
	}
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file for problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := viper.ConfigFileUsed()
			if path == "" {
				return fmt.Errorf("no config file found; run 'veilscan configure init'")
			}

			cfg, err := models.LoadConfig(path)
			if err != nil {
				return fmt.Errorf("config is invalid: %w", err)
			}

			var warnings []string
			if !cfg.Intelligence.BreachVault.Enabled && !cfg.Intelligence.PeopleIndex.Enabled {
				warnings = append(warnings, "no intelligence providers enabled")
			}
			if cfg.Intelligence.BreachVault.Enabled && cfg.Intelligence.BreachVault.APIKey == "" {
				warnings = append(warnings, "breach_vault enabled but api_key is empty")
			}
			if cfg.Intelligence.PeopleIndex.Enabled && cfg.Intelligence.PeopleIndex.APIKey == "" {
				warnings = append(warnings, "people_index enabled but api_key is empty")
			}
			if cfg.Notification.Enabled && cfg.Notification.WebhookURL == "" {
				warnings = append(warnings, "notifications enabled but webhook_url is empty")
			}
			if cfg.Engine.MinConfidence < 0 || cfg.Engine.MinConfidence > 100 {
				warnings = append(warnings, "engine.min_confidence must be between 0 and 100")
			}

			fmt.Printf("Config at %s parses cleanly (schema %s).\n", path, cfg.SchemaVersion)
			for _, w := range warnings {
				fmt.Printf("  warning: %s\n", w)
			}
			if len(warnings) == 0 {
				fmt.Println("No problems found.")
			}
			return nil
		},
	}
}
