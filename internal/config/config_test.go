package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	brickerrors "github.com/conneroisu/brick/internal/errors"
)

const sampleConfig = `
logging:
  level: debug
  format: json
server:
  port: 3000
  live_reload: false
watch:
  debounce: 250ms
page:
  input: page.html
  output: dist/page.html
components:
  - tag: greeting
    template: "Hello {{name}}"
    data:
      name: Ada
  - tag: fancy-greeting
    extends: greeting
    options:
      root_css_classes: [fancy]
      observe_attributes: true
      observed_attributes: [data-name]
  - tag: card
    template_file: card.html
    options:
      clean_on_construct: false
      register_sub_bricks_on_render: true
`

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()

	path := filepath.Join(dir, DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func loadFile(t *testing.T, path string) (*Config, error) {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())
	return Load()
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "card.html"), []byte("<div>{{title}}</div>"), 0o644))
	path := writeConfig(t, dir, sampleConfig)

	cfg, err := loadFile(t, path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.False(t, cfg.Server.LiveReload)
	assert.Equal(t, 250*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, "page.html", cfg.Page.Input)
	assert.Equal(t, "dist/page.html", cfg.Page.Output)

	require.Len(t, cfg.Components, 3)
	greeting := cfg.Components[0]
	assert.Equal(t, "greeting", greeting.Tag)
	assert.Equal(t, "Ada", greeting.Data["name"])

	fancy := cfg.Components[1]
	assert.Equal(t, "greeting", fancy.Extends)
	assert.Equal(t, []string{"fancy"}, fancy.Options.RootCSSClasses)
	require.NotNil(t, fancy.Options.ObserveAttributes)
	assert.True(t, *fancy.Options.ObserveAttributes)
	assert.Nil(t, fancy.Options.RenderOnConstruct, "unset options stay nil")

	card := cfg.Components[2]
	require.NotNil(t, card.Options.CleanOnConstruct)
	assert.False(t, *card.Options.CleanOnConstruct)

	tpl, err := card.ReadTemplate(cfg.BaseDir)
	require.NoError(t, err)
	assert.Equal(t, "<div>{{title}}</div>", tpl)
}

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.True(t, cfg.Server.LiveReload)
	assert.Equal(t, []string{"."}, cfg.Watch.Paths)
	assert.Equal(t, 100*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, "index.html", cfg.Page.Input)
	assert.True(t, cfg.Page.ErrorOverlay)
	assert.Empty(t, cfg.Components)
	assert.NotEmpty(t, cfg.BaseDir)
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setup       func()
		expectError bool
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name: "explicit port zero is kept",
			setup: func() {
				viper.Set("server.port", 0)
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 0, cfg.Server.Port)
			},
		},
		{
			name: "overlay disabled",
			setup: func() {
				viper.Set("page.error_overlay", false)
			},
			check: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.Page.ErrorOverlay)
			},
		},
		{
			name: "components set directly",
			setup: func() {
				viper.Set("components", []map[string]any{
					{"tag": "a", "template": "x"},
					{"tag": "b", "extends": "a"},
				})
			},
			check: func(t *testing.T, cfg *Config) {
				require.Len(t, cfg.Components, 2)
				assert.Equal(t, "a", cfg.Components[1].Extends)
			},
		},
		{
			name: "invalid port type",
			setup: func() {
				viper.Set("server.port", "invalid_port")
			},
			expectError: true,
		},
		{
			name: "unknown log level",
			setup: func() {
				viper.Set("logging.level", "loud")
			},
			expectError: true,
		},
		{
			name: "duplicate tags",
			setup: func() {
				viper.Set("components", []map[string]any{{"tag": "a"}, {"tag": "a"}})
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			t.Cleanup(viper.Reset)
			tt.setup()

			cfg, err := Load()
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestValidateDetails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ok.html"), []byte("ok"), 0o644))

	tests := []struct {
		name       string
		components []ComponentConfig
		wantFields []string
	}{
		{
			name:       "valid",
			components: []ComponentConfig{{Tag: "a", Template: "x"}, {Tag: "b", Extends: "a", TemplateFile: "ok.html"}},
		},
		{
			name:       "empty tag",
			components: []ComponentConfig{{Tag: "  "}},
			wantFields: []string{"components[0].tag"},
		},
		{
			name:       "duplicate tag",
			components: []ComponentConfig{{Tag: "a"}, {Tag: "a"}},
			wantFields: []string{"components[1].tag"},
		},
		{
			name:       "extends must come first",
			components: []ComponentConfig{{Tag: "b", Extends: "a"}, {Tag: "a"}},
			wantFields: []string{"components[0].extends"},
		},
		{
			name:       "both template kinds",
			components: []ComponentConfig{{Tag: "a", Template: "x", TemplateFile: "ok.html"}},
			wantFields: []string{"components[0]"},
		},
		{
			name:       "missing template file",
			components: []ComponentConfig{{Tag: "a", TemplateFile: "missing.html"}},
			wantFields: []string{"components[0].template_file"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Components: tt.components, BaseDir: dir}

			result := ValidateDetails(cfg)
			var fields []string
			for _, e := range result.Errors {
				fields = append(fields, e.Field)
			}
			assert.Equal(t, tt.wantFields, fields)
		})
	}
}

func TestValidate_Warnings(t *testing.T) {
	no := false
	cfg := &Config{
		Server: ServerConfig{Port: 80},
		Watch:  WatchConfig{Extensions: []string{"html"}},
		Components: []ComponentConfig{{
			Tag:     "a",
			Options: ComponentOptions{ObserveAttributes: &no, ObservedAttributes: []string{"x"}},
		}},
	}

	result := ValidateDetails(cfg)
	assert.False(t, result.HasErrors())
	assert.True(t, result.HasWarnings())
	assert.Len(t, result.Warnings, 3)
	assert.NoError(t, Validate(cfg), "warnings do not fail validation")
	assert.Contains(t, result.String(), "warnings:")
}

func TestValidate_ReturnsConfigError(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Port: 70000}, Logging: LoggingConfig{Format: "xml"}}

	err := Validate(cfg)
	require.Error(t, err)
	assert.True(t, brickerrors.HasType(err, brickerrors.ErrorTypeConfig))
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "logging.format")
}

func TestReadTemplate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "t.html"), []byte("<p>t</p>"), 0o644))

	inline, err := ComponentConfig{Tag: "a", Template: "<i></i>"}.ReadTemplate(dir)
	require.NoError(t, err)
	assert.Equal(t, "<i></i>", inline)

	fromFile, err := ComponentConfig{Tag: "a", TemplateFile: "t.html"}.ReadTemplate(dir)
	require.NoError(t, err)
	assert.Equal(t, "<p>t</p>", fromFile)

	_, err = ComponentConfig{Tag: "a", TemplateFile: "nope.html"}.ReadTemplate(dir)
	assert.True(t, brickerrors.HasType(err, brickerrors.ErrorTypeIO))
}

func TestValidateDetails_AllowedOrigins(t *testing.T) {
	cfg := &Config{Server: ServerConfig{
		AllowedOrigins: []string{"http://localhost:3000", "*", "localhost:3000", "ftp://files"},
	}}

	result := ValidateDetails(cfg)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "localhost:3000", result.Errors[0].Value)
	assert.Equal(t, "ftp://files", result.Errors[1].Value)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "*", result.Warnings[0].Value)
}

func TestReload(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "components:\n  - tag: a\n    template: x\n")

	cfg, err := loadFile(t, path)
	require.NoError(t, err)
	require.Len(t, cfg.Components, 1)

	writeConfig(t, dir, "components:\n  - tag: a\n    template: x\n  - tag: b\n    extends: a\n")
	cfg, err = Reload()
	require.NoError(t, err)
	require.Len(t, cfg.Components, 2)
	assert.Equal(t, "a", cfg.Components[1].Extends)

	writeConfig(t, dir, "components:\n  - tag: a\n  - tag: a\n")
	_, err = Reload()
	assert.True(t, brickerrors.HasType(err, brickerrors.ErrorTypeConfig))
}
