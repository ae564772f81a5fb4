package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	taskerrors "github.com/maxkimambo/geotask/internal/errors"
)

// EnvPrefix prefixes environment overrides, e.g. GEOTASK_LOG_FILE
const EnvPrefix = "GEOTASK"

type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Progress ProgressConfig `mapstructure:"progress"`
	Tasks    []TaskEntry    `mapstructure:"tasks"`
}

type LogConfig struct {
	Verbose bool   `mapstructure:"verbose"`
	JSON    bool   `mapstructure:"json"`
	Quiet   bool   `mapstructure:"quiet"`
	File    string `mapstructure:"file"`
}

type ProgressConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// TaskEntry is one item of the task catalog. Processor names the
// implementation registered in code; Required lists parameter keys that
// must be present before the task is created.
type TaskEntry struct {
	ID        string                 `mapstructure:"id"`
	Title     string                 `mapstructure:"title"`
	Processor string                 `mapstructure:"processor"`
	Required  []string               `mapstructure:"required"`
	Defaults  map[string]interface{} `mapstructure:"defaults"`
}

// DefaultTasks is the catalog used when the configuration has none
func DefaultTasks() []TaskEntry {
	return []TaskEntry{
		{
			ID:        "convert-table",
			Title:     "Convert a Micromine table",
			Processor: "convert-table",
			Required:  []string{"input", "output"},
		},
		{
			ID:        "merge-tables",
			Title:     "Merge the Micromine tables of a folder",
			Processor: "merge-tables",
			Required:  []string{"folder", "output"},
		},
		{
			ID:        "sleep",
			Title:     "Timed demo task",
			Processor: "sleep",
			Defaults:  map[string]interface{}{"duration": "3s", "steps": 10},
		},
	}
}

// DefaultLogFile is where the log file goes when enabled without a path
func DefaultLogFile() string {
	return filepath.Join(os.TempDir(), "geotask.log")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.verbose", false)
	v.SetDefault("log.json", false)
	v.SetDefault("log.quiet", false)
	v.SetDefault("log.file", "")
	v.SetDefault("progress.interval", "500ms")
}

// flagKeys maps configuration keys to the CLI flags that override them
var flagKeys = map[string]string{
	"log.verbose":       "verbose",
	"log.json":          "json",
	"log.quiet":         "quiet",
	"log.file":          "log-file",
	"progress.interval": "progress-interval",
}

// Load reads configuration from path, or searches $HOME/.geotask and the
// working directory for geotask.yaml when path is empty. A missing file
// is not an error when searching. Flags that were set on the command
// line win over the file and the environment.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("geotask")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".geotask"))
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Tasks) == 0 {
		cfg.Tasks = DefaultTasks()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the catalog for missing and duplicate ids
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Tasks))
	for i, entry := range c.Tasks {
		if entry.ID == "" {
			return taskerrors.NewConfigurationError(taskerrors.CodeInvalidCatalog,
				fmt.Sprintf("Task entry %d has no id", i+1),
				"Catalog loading")
		}
		if seen[entry.ID] {
			return taskerrors.NewConfigurationError(taskerrors.CodeInvalidCatalog,
				fmt.Sprintf("Task '%s' is defined more than once", entry.ID),
				"Catalog loading").
				WithContext("task", entry.ID)
		}
		seen[entry.ID] = true
		if entry.Processor == "" {
			c.Tasks[i].Processor = entry.ID
		}
	}
	if c.Progress.Interval < 0 {
		return taskerrors.NewConfigurationError(taskerrors.CodeInvalidCatalog,
			"progress.interval must not be negative",
			"Configuration loading")
	}
	return nil
}

// Entry returns the catalog entry for id
func (c *Config) Entry(id string) (TaskEntry, bool) {
	for _, e := range c.Tasks {
		if e.ID == id {
			return e, true
		}
	}
	return TaskEntry{}, false
}
