package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/conneroisu/courseview/internal/errors"
	"github.com/conneroisu/courseview/internal/highlight"
	"github.com/conneroisu/courseview/internal/logging"
	"github.com/conneroisu/courseview/internal/registry"
	"github.com/conneroisu/courseview/internal/store"
	"github.com/conneroisu/courseview/internal/validation"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
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
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", issue.Field, issue.Message))
			for _, suggestion := range issue.Suggestions {
				builder.WriteString(fmt.Sprintf("    - %s\n", suggestion))
			}
		}
	}
	write("Validation errors", vr.Errors)
	write("Validation warnings", vr.Warnings)

	return builder.String()
}

func (vr *ValidationResult) fail(field string, value interface{}, message string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

func (vr *ValidationResult) warn(field string, value interface{}, message string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

// Validate checks every section and collects errors and warnings.
func Validate(config *Config) *ValidationResult {
	result := &ValidationResult{}

	validateServer(&config.Server, result)
	validateContent(&config.Content, result)
	validateStore(&config.Store, result)
	validateHighlight(&config.Highlight, result)
	validateLog(&config.Log, result)
	validateCourse(config, result)

	return result
}

// validateConfig returns the first error found by Validate.
func validateConfig(config *Config) error {
	result := Validate(config)
	if !result.HasErrors() {
		return nil
	}
	first := result.Errors[0]
	return errors.NewConfigError(errors.ErrCodeConfigInvalid, first.Error()).
		WithContext("field", first.Field)
}

func validateServer(config *ServerConfig, result *ValidationResult) {
	if config.Port < 0 || config.Port > 65535 {
		result.fail("server.port", config.Port,
			fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
			"Common development ports: 3000, 8080, 8000",
			"Port 0 lets the system pick a free port")
	} else if config.Port > 0 && config.Port < 1024 {
		result.warn("server.port", config.Port, "port below 1024 requires elevated privileges")
	}

	if err := validation.ValidateHost(config.Host); err != nil {
		result.fail("server.host", config.Host, err.Error(),
			"Use 'localhost' for local use",
			"Use '0.0.0.0' to bind to all interfaces")
	} else if config.Host == "0.0.0.0" && len(config.AllowedOrigins) == 0 {
		result.warn("server.host", config.Host,
			"listening on all interfaces but live updates only accept loopback origins",
			"List the public origin under server.allowed_origins")
	}

	if config.MaxClientsPerIP < 0 {
		result.fail("server.max_clients_per_ip", config.MaxClientsPerIP, "must not be negative")
	}
	if config.WatchDebounce < 0 {
		result.fail("server.watch_debounce", config.WatchDebounce, "must not be negative")
	}
}

func validateContent(config *ContentConfig, result *ValidationResult) {
	if config.BaseURL != "" {
		if err := validation.ValidateURL(config.BaseURL); err != nil {
			result.fail("content.base_url", config.BaseURL, err.Error())
		}
	} else {
		if err := validation.ValidatePath(config.Dir); err != nil {
			result.fail("content.dir", config.Dir, err.Error())
		} else if info, err := os.Stat(config.Dir); err != nil || !info.IsDir() {
			result.warn("content.dir", config.Dir, "directory does not exist; every module will fail to load")
		}
	}

	if config.MarkdownDir != "" {
		if err := validation.ValidatePath(config.MarkdownDir); err != nil {
			result.fail("content.markdown_dir", config.MarkdownDir, err.Error())
		}
	}
	if config.Extension != "" && !strings.HasPrefix(config.Extension, ".") {
		result.fail("content.extension", config.Extension, "extension must start with a dot", "Use '.md'")
	}
	if config.DefaultModule != "" {
		if err := registry.ValidateID(config.DefaultModule); err != nil {
			result.fail("content.default_module", config.DefaultModule, err.Error())
		}
	}
}

func validateStore(config *StoreConfig, result *ValidationResult) {
	switch strings.ToLower(config.Driver) {
	case store.DriverMemory, "":
		result.warn("store.driver", config.Driver, "progress and theme are lost on restart",
			"Use 'sqlite' to keep them in a local file")
	case store.DriverSQLite:
		if err := validation.ValidatePath(config.Path); err != nil {
			result.fail("store.path", config.Path, err.Error())
		}
	case store.DriverRedis:
		if config.RedisAddr == "" {
			result.fail("store.redis_addr", config.RedisAddr, "redis driver needs an address")
		}
		if config.RedisDB < 0 {
			result.fail("store.redis_db", config.RedisDB, "database index must not be negative")
		}
	default:
		result.fail("store.driver", config.Driver, fmt.Sprintf("unknown store driver %q", config.Driver),
			"Available drivers: memory, sqlite, redis")
	}
}

func validateHighlight(config *HighlightConfig, result *ValidationResult) {
	for field, style := range map[string]string{
		"highlight.light_style": config.LightStyle,
		"highlight.dark_style":  config.DarkStyle,
	} {
		if style != "" && !highlight.StyleExists(style) {
			result.fail(field, style, fmt.Sprintf("unknown highlight style %q", style),
				"Try 'github', 'monokai', 'dracula' or 'solarized-light'")
		}
	}
}

func validateLog(config *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.fail("log.level", config.Level, err.Error(), "Use debug, info, warn or error")
	}
	if config.Format != "" && config.Format != "text" && config.Format != "json" {
		result.fail("log.format", config.Format, "format must be 'text' or 'json'")
	}
	if config.File != "" {
		if err := validation.ValidatePath(config.File); err != nil {
			result.fail("log.file", config.File, err.Error())
		}
	}
}

func validateCourse(config *Config, result *ValidationResult) {
	if config.Course.Manifest != "" {
		if err := validation.ValidatePath(config.Course.Manifest); err != nil {
			result.fail("course.manifest", config.Course.Manifest, err.Error())
		}
		return
	}
	reg := registry.Default()
	if len(config.Course.Modules) > 0 {
		var err error
		reg, err = registry.New(config.Course.Modules...)
		if err != nil {
			result.fail("course.modules", len(config.Course.Modules), err.Error())
			return
		}
	}
	if id := config.Content.DefaultModule; id != "" {
		if _, ok := reg.Lookup(id); !ok {
			result.fail("content.default_module", id, "default module is not part of the course")
		}
	}
}
