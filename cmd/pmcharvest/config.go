package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"pmcharvest/pkg/config"
	"pmcharvest/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage pmcharvest configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (PMCHARVEST_*, also read from .env)
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default settings",
	Long: `Write every setting with its default value to a YAML file.

The file is created as '.pmcharvest.yaml' in the current directory unless
a different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging defaults, the configuration file,
environment variables and flags. The NCBI API key is masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load and validate the configuration, then check that the output and
log directories can be created.`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	configPath := configFile
	if configPath == "" {
		configPath = ".pmcharvest.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		err := fmt.Errorf("configuration file already exists: %s", configPath)
		ui.PrintError(cmd.ErrOrStderr(), "Refusing to overwrite", err)
		return err
	}

	if err := config.DefaultConfig().Save(configPath); err != nil {
		ui.PrintError(cmd.ErrOrStderr(), "Failed to create configuration file", err)
		return err
	}

	ui.PrintSuccess(out, "Configuration file created: "+configPath)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "1. Set eutils.email (and eutils.api_key if you have one) for NCBI")
	fmt.Fprintln(out, "2. Run 'pmcharvest config validate' to check the configuration")
	fmt.Fprintln(out, "3. Start with 'pmcharvest harvest'")
	return nil
}

// maskSecret keeps only the ends of a credential
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) > 8 {
		return s[:4] + "..." + s[len(s)-4:]
	}
	return "***"
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := config.Load(configFile, commonFlags())
	if err != nil {
		ui.PrintError(cmd.ErrOrStderr(), "Failed to load configuration", err)
		return err
	}

	display := *cfg
	display.EUtils.APIKey = maskSecret(display.EUtils.APIKey)

	data, err := yaml.Marshal(&display)
	if err != nil {
		ui.PrintError(cmd.ErrOrStderr(), "Failed to format configuration", err)
		return err
	}

	fmt.Fprintln(out, ui.Magenta("Current Configuration"))
	fmt.Fprintln(out)
	fmt.Fprint(out, string(data))
	fmt.Fprintln(out)
	ui.PrintInfo(out, "Content root", cfg.ProviderDirectory())
	ui.PrintInfo(out, "Checkpoint", cfg.CheckpointPath())
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := config.Load(configFile, commonFlags())
	if err != nil {
		ui.PrintError(cmd.ErrOrStderr(), "Configuration validation failed", err)
		return err
	}

	var warnings []string
	if cfg.Harvest.Provider == config.ProviderEUtils && cfg.EUtils.Email == "" {
		warnings = append(warnings, "eutils.email is not set; NCBI asks every client to identify itself")
	}

	var problems []string
	if err := os.MkdirAll(cfg.ProviderDirectory(), 0755); err != nil {
		problems = append(problems, fmt.Sprintf("cannot create output directory: %v", err))
	}
	if err := os.MkdirAll(filepath.Dir(cfg.CheckpointPath()), 0755); err != nil {
		problems = append(problems, fmt.Sprintf("cannot create checkpoint directory: %v", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}

	if len(problems) > 0 {
		ui.PrintError(out, "Configuration has errors:", nil)
		for _, p := range problems {
			fmt.Fprintf(out, "  - %s\n", p)
		}
		return fmt.Errorf("configuration has %d error(s)", len(problems))
	}

	if len(warnings) > 0 {
		ui.PrintWarning(out, "Configuration warnings:")
		for _, w := range warnings {
			fmt.Fprintf(out, "  - %s\n", w)
		}
		fmt.Fprintln(out)
	}

	ui.PrintSuccess(out, "Configuration is valid")

	fmt.Fprintln(out, "\nConfiguration summary:")
	fmt.Fprintf(out, "  Provider: %s\n", cfg.Harvest.Provider)
	fmt.Fprintf(out, "  Range: %04d-%02d through %d\n", cfg.Harvest.StartYear, cfg.Harvest.StartMonth, cfg.Harvest.EndYear)
	fmt.Fprintf(out, "  Content root: %s\n", cfg.ProviderDirectory())
	fmt.Fprintf(out, "  Checkpoint: %s\n", cfg.CheckpointPath())
	fmt.Fprintf(out, "  Max attempts: %d\n", cfg.RateLimit.MaxAttempts)
	fmt.Fprintf(out, "  Log level: %s\n", cfg.Logging.Level)
	return nil
}
