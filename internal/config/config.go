// Package config handles configuration loading and management for skillroute.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/skillroute/pkg/models"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// EnvPrefix prefixes environment overrides, e.g. SKILLROUTE_SKILLS_ROOT.
const EnvPrefix = "SKILLROUTE"

const projectConfigName = ".skillroute.yaml"

// Config holds all configuration for skillroute.
type Config struct {
	Skills    SkillsConfig    `mapstructure:"skills"`
	Watch     WatchConfig     `mapstructure:"watch"`
	Router    RouterConfig    `mapstructure:"router"`
	Compose   ComposeConfig   `mapstructure:"compose"`
	Recommend RecommendConfig `mapstructure:"recommend"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Log       LogConfig       `mapstructure:"log"`
	Rules     RulesConfig     `mapstructure:"rules"`
}

// SkillsConfig locates skill sources.
type SkillsConfig struct {
	Root     string   `mapstructure:"root"`
	Patterns []string `mapstructure:"patterns"`
}

// WatchConfig holds hot-reload settings.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
	Exclude  []string      `mapstructure:"exclude"`
}

// RouterConfig holds routing settings.
type RouterConfig struct {
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	CacheSize   int           `mapstructure:"cache_size"`
	DefaultRole string        `mapstructure:"default_role"`
	// Roles replaces the built-in role profiles when non-empty. Order decides
	// keyword precedence.
	Roles []models.AgentProfile `mapstructure:"roles"`
}

// ComposeConfig holds chain composition settings.
type ComposeConfig struct {
	MatchFloor               float64 `mapstructure:"match_floor"`
	StepBaseSeconds          int     `mapstructure:"step_base_seconds"`
	StepPerComplexitySeconds int     `mapstructure:"step_per_complexity_seconds"`
}

// RecommendConfig holds scoring settings.
type RecommendConfig struct {
	ProductionBoost float64 `mapstructure:"production_boost"`
	MinScore        float64 `mapstructure:"min_score"`
	Limit           int     `mapstructure:"limit"`
}

// CacheConfig locates the snapshot cache database. An empty path disables it.
type CacheConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// RulesConfig points at an optional rule tables file.
type RulesConfig struct {
	File string `mapstructure:"file"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (SKILLROUTE_*)
// 2. Project config (.skillroute.yaml in current directory or parent)
// 3. User config (~/.config/skillroute/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	return decode(v)
}

// LoadFromPath loads configuration from a specific file over the defaults.
// Environment overrides still apply.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Skills.Root = expandPath(cfg.Skills.Root)
	cfg.Cache.Path = expandPath(cfg.Cache.Path)
	cfg.Log.File = expandPath(cfg.Log.File)
	cfg.Rules.File = expandPath(cfg.Rules.File)

	return cfg, nil
}

// Save writes cfg to the user config file.
func Save(cfg *Config) error {
	return SaveToPath(cfg, GetUserConfigPath())
}

// SaveToPath writes cfg to path as YAML.
func SaveToPath(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	apply(v, cfg)

	return v.WriteConfig()
}

// apply copies cfg into v under the configuration keys.
func apply(v *viper.Viper, cfg *Config) {
	v.Set("skills.root", cfg.Skills.Root)
	v.Set("skills.patterns", cfg.Skills.Patterns)
	v.Set("watch.debounce", cfg.Watch.Debounce.String())
	v.Set("watch.exclude", cfg.Watch.Exclude)
	v.Set("router.cache_ttl", cfg.Router.CacheTTL.String())
	v.Set("router.cache_size", cfg.Router.CacheSize)
	v.Set("router.default_role", cfg.Router.DefaultRole)
	if len(cfg.Router.Roles) > 0 {
		roles := make([]map[string]any, 0, len(cfg.Router.Roles))
		for _, p := range cfg.Router.Roles {
			roles = append(roles, map[string]any{
				"role":           string(p.Role),
				"keywords":       p.CapabilityKeywords,
				"max_concurrent": p.MaxConcurrent,
				"cost":           p.Cost,
				"quality_score":  p.QualityScore,
			})
		}
		v.Set("router.roles", roles)
	}
	v.Set("compose.match_floor", cfg.Compose.MatchFloor)
	v.Set("compose.step_base_seconds", cfg.Compose.StepBaseSeconds)
	v.Set("compose.step_per_complexity_seconds", cfg.Compose.StepPerComplexitySeconds)
	v.Set("recommend.production_boost", cfg.Recommend.ProductionBoost)
	v.Set("recommend.min_score", cfg.Recommend.MinScore)
	v.Set("recommend.limit", cfg.Recommend.Limit)
	v.Set("cache.path", cfg.Cache.Path)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.file", cfg.Log.File)
	v.Set("rules.file", cfg.Rules.File)
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// Validate checks values that cannot be corrected silently.
func (c *Config) Validate() error {
	var problems []string
	if c.Skills.Root == "" {
		problems = append(problems, "skills.root is empty")
	}
	if c.Compose.MatchFloor < 0 || c.Compose.MatchFloor > 1 {
		problems = append(problems, fmt.Sprintf("compose.match_floor %.2f outside [0,1]", c.Compose.MatchFloor))
	}
	if c.Recommend.ProductionBoost < 1 {
		problems = append(problems, fmt.Sprintf("recommend.production_boost %.2f below 1", c.Recommend.ProductionBoost))
	}
	if c.Router.DefaultRole != "" && !c.hasRole(models.Role(c.Router.DefaultRole)) {
		problems = append(problems, fmt.Sprintf("router.default_role %q has no profile", c.Router.DefaultRole))
	}
	seen := make(map[models.Role]bool)
	for _, p := range c.Router.Roles {
		switch {
		case p.Role == "":
			problems = append(problems, "router.roles entry without a role")
		case seen[p.Role]:
			problems = append(problems, fmt.Sprintf("router.roles lists %q twice", p.Role))
		case p.MaxConcurrent < 1:
			problems = append(problems, fmt.Sprintf("router.roles %q max_concurrent must be at least 1", p.Role))
		}
		seen[p.Role] = true
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// hasRole reports whether role has a profile, built-in or configured.
func (c *Config) hasRole(role models.Role) bool {
	if len(c.Router.Roles) == 0 {
		return role.Valid()
	}
	for _, p := range c.Router.Roles {
		if p.Role == role {
			return true
		}
	}
	return false
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("skills.root", "skills")
	v.SetDefault("skills.patterns", []string{"*/SKILL.md", "*.md"})

	v.SetDefault("watch.debounce", "500ms")
	v.SetDefault("watch.exclude", []string{"**/.*", "**/*.tmp", "**/*~"})

	v.SetDefault("router.cache_ttl", "5m")
	v.SetDefault("router.cache_size", 256)
	v.SetDefault("router.default_role", string(models.RoleResearcher))
	v.SetDefault("router.roles", []map[string]any{})

	v.SetDefault("compose.match_floor", 0.2)
	v.SetDefault("compose.step_base_seconds", 30)
	v.SetDefault("compose.step_per_complexity_seconds", 15)

	v.SetDefault("recommend.production_boost", 1.2)
	v.SetDefault("recommend.min_score", 0.0)
	v.SetDefault("recommend.limit", 10)

	v.SetDefault("cache.path", defaultCachePath())

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetDefault("rules.file", "")
}

// getUserConfigDir returns the XDG config directory for skillroute.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "skillroute")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "skillroute")
	}
	return filepath.Join(home, ".config", "skillroute")
}

func defaultCachePath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "skillroute", "cache.db")
}

// findProjectConfig searches for .skillroute.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, projectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandPath expands ${VAR} references and a leading ~/.
func expandPath(s string) string {
	s = os.ExpandEnv(s)
	if strings.HasPrefix(s, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			s = filepath.Join(home, s[2:])
		}
	}
	return s
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Skills: SkillsConfig{
			Root:     "skills",
			Patterns: []string{"*/SKILL.md", "*.md"},
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
			Exclude:  []string{"**/.*", "**/*.tmp", "**/*~"},
		},
		Router: RouterConfig{
			CacheTTL:    5 * time.Minute,
			CacheSize:   256,
			DefaultRole: string(models.RoleResearcher),
		},
		Compose: ComposeConfig{
			MatchFloor:               0.2,
			StepBaseSeconds:          30,
			StepPerComplexitySeconds: 15,
		},
		Recommend: RecommendConfig{
			ProductionBoost: 1.2,
			Limit:           10,
		},
		Cache: CacheConfig{
			Path: defaultCachePath(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
