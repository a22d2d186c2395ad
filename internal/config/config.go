// Package config loads wikiforge's project configuration: the on-disk
// data directory, dump-replay concurrency, script sandbox timeout, and
// the per-project policy bits spec.md leaves open (first-letter case
// sensitivity, namespace-alias overrides).
package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/danielledeleo/wikiforge/internal/logger"
)

const configFilename = "wikiforge.yaml"

// Project holds project-specific parser policy, the bits spec.md's Open
// Questions leave per-project rather than universal.
type Project struct {
	// FirstLetterCaseSensitive, when false (the MediaWiki default),
	// makes template-name canonicalization case-insensitive on the
	// leading character only.
	FirstLetterCaseSensitive bool `yaml:"first_letter_case_sensitive"`
	// NamespaceAliases overrides or extends the built-in namespace table,
	// e.g. French Wiktionary's "Annexe" alias for Appendix (id 100).
	NamespaceAliases map[int][]string `yaml:"namespace_aliases"`
}

// Config is the full set of settings wikiforge loads at startup.
type Config struct {
	DataDir       string        `yaml:"data_dir"`
	Workers       int           `yaml:"workers"`
	ScriptTimeout time.Duration `yaml:"script_timeout"`
	LogFormat     string        `yaml:"log_format"`
	LogLevel      string        `yaml:"log_level"`
	Project       Project       `yaml:"project"`
}

// Load reads wikiforge.yaml (writing a default file on first run, the way
// periwiki's SetupConfig does) and initializes the process logger.
func Load() (*Config, error) {
	viper.SetDefault("data_dir", "./data")
	viper.SetDefault("workers", 4)
	viper.SetDefault("script_timeout", "5s")
	viper.SetDefault("log_format", "pretty")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("project.first_letter_case_sensitive", false)

	viper.SetConfigFile(configFilename)
	viper.AddConfigPath(".")
	err := viper.ReadInConfig()

	createDefault := false
	if err != nil {
		if strings.Contains(err.Error(), "no such file or directory") {
			createDefault = true
		} else {
			return nil, err
		}
	}

	logger.Init(logger.ParseFormat(viper.GetString("log_format")), logger.ParseLevel(viper.GetString("log_level")))

	timeout, err := time.ParseDuration(viper.GetString("script_timeout"))
	if err != nil {
		timeout = 5 * time.Second
	}

	var aliases map[int][]string
	if err := viper.UnmarshalKey("project.namespace_aliases", &aliases); err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:       viper.GetString("data_dir"),
		Workers:       viper.GetInt("workers"),
		ScriptTimeout: timeout,
		LogFormat:     viper.GetString("log_format"),
		LogLevel:      viper.GetString("log_level"),
		Project: Project{
			FirstLetterCaseSensitive: viper.GetBool("project.first_letter_case_sensitive"),
			NamespaceAliases:         aliases,
		},
	}

	if createDefault {
		f, err := os.Create(configFilename)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if err := yaml.NewEncoder(f).Encode(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}
