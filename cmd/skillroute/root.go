package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/skillroute/internal/config"
	"github.com/ShayCichocki/skillroute/internal/engine"
	"github.com/ShayCichocki/skillroute/internal/logging"
)

var (
	configPath string
	rootFlag   string
	logLevel   string
	logFile    string
	jsonOutput bool

	quietConsole bool
)

var rootCmd = &cobra.Command{
	Use:   "skillroute",
	Short: "Skill registry and task router",
	Long: `skillroute indexes a directory of skill descriptions, ranks skills
against natural-language tasks, composes multi-step execution plans and
routes work to worker roles under per-role capacity limits.

Skill sources are markdown files with YAML front matter. The registry is
cached in a local SQLite database and rebuilt when sources change.

Configuration is read from ~/.config/skillroute/config.yaml, a project
.skillroute.yaml and SKILLROUTE_* environment variables.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default: user and project config)")
	pf.StringVar(&rootFlag, "root", "", "Skills root directory (overrides skills.root)")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&logFile, "log-file", "", "Append logs to this file")
	pf.BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(recommendCmd)
	rootCmd.AddCommand(composeCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(clearCacheCmd)
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves configuration and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if rootFlag != "" {
		cfg.Skills.Root = rootFlag
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session bundles an open engine with its logger.
type session struct {
	cfg    *config.Config
	eng    *engine.Engine
	logger *logging.Logger
}

func (s *session) Close() {
	if err := s.eng.Close(); err != nil {
		s.logger.Warn("closing engine", "error", err)
	}
	_ = s.logger.Close()
}

// openSession loads config, opens the engine and, when load is set, makes
// sure the registry is populated from cache or a scan.
func openSession(ctx context.Context, load bool) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File, Quiet: quietConsole})
	if err != nil {
		return nil, err
	}

	eng, err := engine.Open(cfg, logger.Logger)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}
	s := &session{cfg: cfg, eng: eng, logger: logger}

	if load {
		res, err := eng.Ensure(ctx)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("load skills from %s: %w", eng.Root(), err)
		}
		for _, w := range res.Warnings {
			logger.Warn("skipped skill source", "source", w.SourceID, "error", w.Err)
		}
	}
	return s, nil
}
