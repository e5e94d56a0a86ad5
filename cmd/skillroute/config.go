package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/skillroute/internal/config"
)

var configProject bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View or modify skillroute configuration.

Configuration is stored at ~/.config/skillroute/config.yaml.
Project-specific overrides can be placed in .skillroute.yaml; any key can
also be set with SKILLROUTE_<SECTION>_<KEY>, e.g. SKILLROUTE_SKILLS_ROOT.

Worker roles (router.roles) are structured and edited in the file directly.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(os.Stdout, cfg)
		}
		for _, s := range config.Settings(cfg) {
			fmt.Printf("%s: %s\n", color.CyanString(s.Key), s.Value)
		}
		fmt.Printf("%s: %d configured\n", color.CyanString("router.roles"), len(cfg.Router.Roles))
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		value, err := config.Lookup(cfg, args[0])
		if err != nil {
			return err
		}
		fmt.Println(value)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user config file, or in the project
file with --project. List values are comma-separated.

Examples:
  skillroute config set skills.root ~/skills
  skillroute config set watch.exclude "**/.*,**/drafts/**"
  skillroute config set router.cache_ttl 10m --project`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configFilePath()
		if err := config.SetKey(path, args[0], args[1]); err != nil {
			return err
		}
		if _, err := config.LoadFromPath(path); err != nil {
			return fmt.Errorf("config no longer loads: %w", err)
		}
		printStatus(os.Stdout, "✓", fmt.Sprintf("Set %s = %s in %s", args[0], args[1], path), color.FgGreen)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file that set writes to",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(configFilePath())
	},
}

func init() {
	configSetCmd.Flags().BoolVar(&configProject, "project", false, "Write to the project .skillroute.yaml")
	configPathCmd.Flags().BoolVar(&configProject, "project", false, "Show the project .skillroute.yaml path")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
}

func configFilePath() string {
	switch {
	case configPath != "":
		return configPath
	case configProject:
		if p := config.GetProjectConfigPath(); p != "" {
			return p
		}
		return ".skillroute.yaml"
	default:
		return config.GetUserConfigPath()
	}
}
