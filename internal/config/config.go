// Package config loads tagc settings with Viper from command-line flags,
// TAGC_ environment variables, an optional YAML file and built-in defaults,
// in that order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/tagc/internal/build"
	"github.com/conneroisu/tagc/internal/compiler"
	tagcerrors "github.com/conneroisu/tagc/internal/errors"
	"github.com/conneroisu/tagc/internal/flow"
	"github.com/conneroisu/tagc/internal/livereload"
	"github.com/conneroisu/tagc/internal/logging"
	"github.com/conneroisu/tagc/internal/report"
)

// EnvPrefix is prepended to every environment variable, e.g.
// TAGC_BUILD_SOURCE_EXT.
const EnvPrefix = "TAGC"

// DefaultFileName is looked up in the working directory when no config file
// is named explicitly.
const DefaultFileName = ".tagc.yml"

type Config struct {
	Compiler CompilerConfig `mapstructure:"compiler" yaml:"compiler"`
	Options  OptionsConfig  `mapstructure:"options" yaml:"options"`
	Build    BuildConfig    `mapstructure:"build" yaml:"build"`
	Watch    WatchConfig    `mapstructure:"watch" yaml:"watch"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

type CompilerConfig struct {
	Command         string        `mapstructure:"command" yaml:"command"`
	Args            []string      `mapstructure:"args" yaml:"args"`
	AnalyzerCommand string        `mapstructure:"analyzer_command" yaml:"analyzer_command"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	CacheSize       int           `mapstructure:"cache_size" yaml:"cache_size"`
}

// OptionsConfig holds the flags forwarded to the compiler.
type OptionsConfig struct {
	Compact    bool   `mapstructure:"compact" yaml:"compact"`
	Type       string `mapstructure:"type" yaml:"type"`
	Template   string `mapstructure:"template" yaml:"template"`
	Brackets   string `mapstructure:"brackets" yaml:"brackets"`
	Expr       bool   `mapstructure:"expr" yaml:"expr"`
	Whitespace bool   `mapstructure:"whitespace" yaml:"whitespace"`
	Modular    bool   `mapstructure:"modular" yaml:"modular"`
}

type BuildConfig struct {
	SourceExt    string `mapstructure:"source_ext" yaml:"source_ext"`
	OutputExt    string `mapstructure:"output_ext" yaml:"output_ext"`
	Silent       bool   `mapstructure:"silent" yaml:"silent"`
	Format       string `mapstructure:"format" yaml:"format"`
	ModuleGlobal string `mapstructure:"module_global" yaml:"module_global"`
}

type WatchConfig struct {
	Debounce          time.Duration `mapstructure:"debounce" yaml:"debounce"`
	Livereload        string        `mapstructure:"livereload" yaml:"livereload"`
	LivereloadOrigins []string      `mapstructure:"livereload_origins" yaml:"livereload_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

var envKeyReplacer = strings.NewReplacer(".", "_", "-", "_")

// BindEnv makes v read TAGC_SECTION_KEY environment variables.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("compiler.command", "riot-compile")
	v.SetDefault("compiler.args", []string{})
	v.SetDefault("compiler.analyzer_command", "")
	v.SetDefault("compiler.timeout", 30*time.Second)
	v.SetDefault("compiler.cache_size", 256)

	v.SetDefault("options.compact", false)
	v.SetDefault("options.type", "")
	v.SetDefault("options.template", "")
	v.SetDefault("options.brackets", "")
	v.SetDefault("options.expr", false)
	v.SetDefault("options.whitespace", false)
	v.SetDefault("options.modular", false)

	v.SetDefault("build.source_ext", flow.DefaultSourceExt)
	v.SetDefault("build.output_ext", flow.DefaultOutputExt)
	v.SetDefault("build.silent", false)
	v.SetDefault("build.format", report.FormatText)
	v.SetDefault("build.module_global", build.DefaultModuleGlobal)

	v.SetDefault("watch.debounce", 100*time.Millisecond)
	v.SetDefault("watch.livereload", "")
	v.SetDefault("watch.livereload_origins", livereload.DefaultOriginPatterns)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadFrom reads, normalizes and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, tagcerrors.NewConfigError(tagcerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("cannot decode configuration: %v", err))
	}

	config.Build.SourceExt = flow.NormalizeExt(config.Build.SourceExt, flow.DefaultSourceExt)
	config.Build.OutputExt = flow.NormalizeExt(config.Build.OutputExt, flow.DefaultOutputExt)
	config.Build.Format = strings.ToLower(strings.TrimSpace(config.Build.Format))
	config.Log.Format = strings.ToLower(strings.TrimSpace(config.Log.Format))

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Compiler.Command) == "":
		return invalid("compiler.command must not be empty")
	case c.Compiler.Timeout < 0:
		return invalid("compiler.timeout must not be negative")
	case c.Compiler.CacheSize < 0:
		return invalid("compiler.cache_size must not be negative")
	case c.Build.SourceExt == c.Build.OutputExt:
		return invalid(fmt.Sprintf("build.source_ext and build.output_ext must differ, both are %s", c.Build.SourceExt))
	case !isFormat(c.Build.Format):
		return invalid(fmt.Sprintf("build.format %q is not one of %s", c.Build.Format, strings.Join(report.Formats, ", ")))
	case c.Watch.Debounce < 0:
		return invalid("watch.debounce must not be negative")
	case c.Log.Format != "text" && c.Log.Format != "json":
		return invalid(fmt.Sprintf("log.format %q is not one of text, json", c.Log.Format))
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid(err.Error())
	}
	return nil
}

func invalid(msg string) error {
	return tagcerrors.NewConfigError(tagcerrors.ErrCodeConfigInvalid, "invalid configuration: "+msg)
}

func isFormat(f string) bool {
	for _, known := range report.Formats {
		if f == known {
			return true
		}
	}
	return false
}

// CompilerOptions returns the options forwarded to the compiler.
func (c *Config) CompilerOptions() compiler.Options {
	return compiler.Options{
		Compact:    c.Options.Compact,
		Type:       c.Options.Type,
		Template:   c.Options.Template,
		Brackets:   c.Options.Brackets,
		Expr:       c.Options.Expr,
		Whitespace: c.Options.Whitespace,
		Modular:    c.Options.Modular,
		Silent:     c.Build.Silent,
	}
}

// Spec builds the flow spec for the given source and destination.
func (c *Config) Spec(source, dest string) flow.Spec {
	return flow.Spec{
		Source:    source,
		Dest:      dest,
		SourceExt: c.Build.SourceExt,
		OutputExt: c.Build.OutputExt,
	}
}

// LoggerConfig returns the logger settings. Level was checked by Validate.
func (c *Config) LoggerConfig() *logging.LoggerConfig {
	cfg := logging.DefaultConfig()
	if level, err := logging.ParseLevel(c.Log.Level); err == nil {
		cfg.Level = level
	}
	cfg.Format = c.Log.Format
	return cfg
}
