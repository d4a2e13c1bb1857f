// Package config loads brick's configuration using Viper, from a YAML file,
// BRICK_ prefixed environment variables and command-line flags.
//
// Besides logging, server and watch settings the configuration declares
// components: each entry names a tag, a string template (inline or from a
// file), option overrides and static view-model data. The page section names
// the HTML document those components are upgraded in.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	brickerrors "github.com/conneroisu/brick/internal/errors"
)

// DefaultFileName is the configuration file looked up in the working
// directory when neither --config nor BRICK_CONFIG_FILE is given.
const DefaultFileName = ".brick.yml"

type Config struct {
	Logging    LoggingConfig     `mapstructure:"logging" yaml:"logging"`
	Server     ServerConfig      `mapstructure:"server" yaml:"server"`
	Watch      WatchConfig       `mapstructure:"watch" yaml:"watch"`
	Page       PageConfig        `mapstructure:"page" yaml:"page"`
	Components []ComponentConfig `mapstructure:"components" yaml:"components"`

	// BaseDir resolves relative template files. It is the directory of the
	// config file in use, or the working directory.
	BaseDir string `mapstructure:"-" yaml:"-"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type ServerConfig struct {
	Port       int    `mapstructure:"port" yaml:"port"`
	Host       string `mapstructure:"host" yaml:"host"`
	LiveReload bool   `mapstructure:"live_reload" yaml:"live_reload"`
	// AllowedOrigins may open the live-reload socket and make CORS
	// requests besides the server's own origin. "*" allows any.
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins,omitempty"`
}

type WatchConfig struct {
	Paths      []string      `mapstructure:"paths" yaml:"paths"`
	Extensions []string      `mapstructure:"extensions" yaml:"extensions"`
	Debounce   time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

type PageConfig struct {
	Input        string `mapstructure:"input" yaml:"input"`
	Output       string `mapstructure:"output" yaml:"output"`
	ErrorOverlay bool   `mapstructure:"error_overlay" yaml:"error_overlay"`
}

// ComponentConfig declares one component kind.
type ComponentConfig struct {
	Tag          string           `mapstructure:"tag" yaml:"tag"`
	Extends      string           `mapstructure:"extends" yaml:"extends,omitempty"`
	Template     string           `mapstructure:"template" yaml:"template,omitempty"`
	TemplateFile string           `mapstructure:"template_file" yaml:"template_file,omitempty"`
	Options      ComponentOptions `mapstructure:"options" yaml:"options,omitempty"`
	Data         map[string]any   `mapstructure:"data" yaml:"data,omitempty"`
}

// ComponentOptions are option overrides. Nil fields keep the inherited or
// default value.
type ComponentOptions struct {
	RenderOnConstruct         *bool    `mapstructure:"render_on_construct" yaml:"render_on_construct,omitempty"`
	CleanOnConstruct          *bool    `mapstructure:"clean_on_construct" yaml:"clean_on_construct,omitempty"`
	ObserveAttributes         *bool    `mapstructure:"observe_attributes" yaml:"observe_attributes,omitempty"`
	ObservedAttributes        []string `mapstructure:"observed_attributes" yaml:"observed_attributes,omitempty"`
	RegisterSubBricksOnRender *bool    `mapstructure:"register_sub_bricks_on_render" yaml:"register_sub_bricks_on_render,omitempty"`
	RootCSSClasses            []string `mapstructure:"root_css_classes" yaml:"root_css_classes,omitempty"`
}

// ReadTemplate returns the inline template, or the contents of
// TemplateFile resolved against baseDir.
func (c ComponentConfig) ReadTemplate(baseDir string) (string, error) {
	if c.TemplateFile == "" {
		return c.Template, nil
	}

	path := c.TemplateFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", brickerrors.NewIOError(brickerrors.ErrCodeFileNotFound,
			fmt.Sprintf("reading template for %q", c.Tag), err)
	}
	return string(data), nil
}

// Load reads the configuration and validates it.
func Load() (*Config, error) {
	config, err := Read()
	if err != nil {
		return nil, err
	}
	if err := Validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

// Reload rereads the config file in use, if any, and loads the result.
func Reload() (*Config, error) {
	if used := viper.ConfigFileUsed(); used != "" {
		if err := viper.ReadInConfig(); err != nil {
			return nil, brickerrors.NewIOError(brickerrors.ErrCodeFileNotFound,
				fmt.Sprintf("rereading %s", used), err)
		}
	}
	return Load()
}

// Read unmarshals the global viper state and applies defaults without
// validating.
func Read() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, brickerrors.NewConfigError(brickerrors.ErrCodeConfigInvalid, err.Error())
	}

	config.BaseDir = baseDir(viper.ConfigFileUsed())
	applyDefaults(&config)
	return &config, nil
}

func applyDefaults(config *Config) {
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "text"
	}

	if config.Server.Port == 0 && !viper.IsSet("server.port") {
		config.Server.Port = 8080
	}
	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if !viper.IsSet("server.live_reload") {
		config.Server.LiveReload = true
	}

	if len(config.Watch.Paths) == 0 {
		config.Watch.Paths = []string{"."}
	}
	if len(config.Watch.Extensions) == 0 {
		config.Watch.Extensions = []string{".html", ".yml", ".yaml", ".tmpl"}
	}
	if config.Watch.Debounce == 0 {
		config.Watch.Debounce = 100 * time.Millisecond
	}

	if config.Page.Input == "" {
		config.Page.Input = "index.html"
	}
	if !viper.IsSet("page.error_overlay") {
		config.Page.ErrorOverlay = true
	}
}

func baseDir(configFile string) string {
	if configFile != "" {
		if abs, err := filepath.Abs(configFile); err == nil {
			return filepath.Dir(abs)
		}
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}
