package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	brickerrors "github.com/conneroisu/brick/internal/errors"
	"github.com/conneroisu/brick/internal/logging"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string   `json:"field"`
	Value       any      `json:"value,omitempty"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	write := func(title string, issues []ValidationError) {
		if len(issues) == 0 {
			return
		}
		builder.WriteString(title + ":\n")
		for _, issue := range issues {
			fmt.Fprintf(&builder, "  - %s: %s\n", issue.Field, issue.Message)
			for _, suggestion := range issue.Suggestions {
				fmt.Fprintf(&builder, "    hint: %s\n", suggestion)
			}
		}
	}
	write("errors", vr.Errors)
	write("warnings", vr.Warnings)

	return builder.String()
}

func (vr *ValidationResult) errorf(field string, value any, suggestions []string, format string, args ...any) {
	vr.Errors = append(vr.Errors, ValidationError{
		Field:       field,
		Value:       value,
		Message:     fmt.Sprintf(format, args...),
		Suggestions: suggestions,
	})
}

func (vr *ValidationResult) warnf(field string, value any, format string, args ...any) {
	vr.Warnings = append(vr.Warnings, ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf(format, args...),
	})
}

// Validate returns a config error describing every problem ValidateDetails
// finds, or nil. Warnings do not fail validation.
func Validate(config *Config) error {
	result := ValidateDetails(config)
	if !result.HasErrors() {
		return nil
	}
	return brickerrors.NewConfigError(brickerrors.ErrCodeConfigInvalid,
		"invalid configuration\n"+result.String())
}

// ValidateDetails checks every section and collects errors and warnings.
func ValidateDetails(config *Config) *ValidationResult {
	result := &ValidationResult{}

	validateLogging(&config.Logging, result)
	validateServer(&config.Server, result)
	validateWatch(&config.Watch, result)
	validateComponents(config.Components, config.BaseDir, result)

	return result
}

func validateLogging(config *LoggingConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.errorf("logging.level", config.Level,
			[]string{"Use one of: debug, info, warn, error, off"},
			"%v", err)
	}
	switch config.Format {
	case "", "text", "json":
	default:
		result.errorf("logging.format", config.Format,
			[]string{"Use 'text' or 'json'"},
			"unknown log format %q", config.Format)
	}
}

func validateServer(config *ServerConfig, result *ValidationResult) {
	// Port 0 asks the system for a free port.
	if config.Port < 0 || config.Port > 65535 {
		result.errorf("server.port", config.Port,
			[]string{"Common development ports: 3000, 8080, 8000"},
			"port %d is not in valid range 0-65535", config.Port)
	} else if config.Port > 0 && config.Port < 1024 {
		result.warnf("server.port", config.Port, "port below 1024 requires elevated privileges")
	}

	if strings.ContainsAny(config.Host, ";&|$`()<>\"'\\ ") {
		result.errorf("server.host", config.Host,
			[]string{"Use 'localhost' for local development", "Use '0.0.0.0' to bind to all interfaces"},
			"host contains invalid characters")
	}

	for _, origin := range config.AllowedOrigins {
		if origin == "*" {
			result.warnf("server.allowed_origins", origin, "any origin may connect to the live-reload socket")
			continue
		}
		u, err := url.Parse(origin)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			result.errorf("server.allowed_origins", origin,
				[]string{"Origins look like http://localhost:3000"},
				"invalid origin %q", origin)
		}
	}
}

func validateWatch(config *WatchConfig, result *ValidationResult) {
	if config.Debounce < 0 {
		result.errorf("watch.debounce", config.Debounce, nil, "debounce cannot be negative")
	}
	for _, path := range config.Paths {
		if path == "" {
			result.errorf("watch.paths", path, nil, "empty path")
			continue
		}
		if strings.Contains(filepath.Clean(path), "..") {
			result.errorf("watch.paths", path,
				[]string{"Watch paths inside the project directory"},
				"path contains traversal: %s", path)
		}
	}
	for _, ext := range config.Extensions {
		if !strings.HasPrefix(ext, ".") {
			result.warnf("watch.extensions", ext, "extension %q does not start with a dot", ext)
		}
	}
}

func validateComponents(components []ComponentConfig, baseDir string, result *ValidationResult) {
	seen := make(map[string]bool, len(components))

	for i, c := range components {
		field := fmt.Sprintf("components[%d]", i)
		tag := strings.TrimSpace(c.Tag)

		if tag == "" {
			result.errorf(field+".tag", c.Tag,
				[]string{"Every component needs the tag its elements name in is=\"...\""},
				"tag cannot be empty")
			continue
		}
		if seen[tag] {
			result.errorf(field+".tag", tag, nil, "duplicate tag %q", tag)
		}

		if c.Extends != "" && !seen[c.Extends] {
			result.errorf(field+".extends", c.Extends,
				[]string{"Declare the parent component before the ones extending it"},
				"%q extends unknown component %q", tag, c.Extends)
		}
		seen[tag] = true

		if c.Template != "" && c.TemplateFile != "" {
			result.errorf(field, tag, nil, "%q sets both template and template_file", tag)
		}
		if c.TemplateFile != "" {
			path := c.TemplateFile
			if !filepath.IsAbs(path) {
				path = filepath.Join(baseDir, path)
			}
			if _, err := os.Stat(path); err != nil {
				result.errorf(field+".template_file", c.TemplateFile, nil,
					"template file for %q is not readable: %v", tag, err)
			}
		}

		opts := c.Options
		if len(opts.ObservedAttributes) > 0 && opts.ObserveAttributes != nil && !*opts.ObserveAttributes {
			result.warnf(field+".options.observed_attributes", opts.ObservedAttributes,
				"%q lists observed attributes but observe_attributes is false", tag)
		}
	}
}
