// Package config provides configuration management for courseview using
// Viper for loading from files, environment variables and command-line flags.
//
// The configuration file is .courseview.yml. Every key can be overridden by
// an environment variable with the COURSEVIEW_ prefix, dots replaced by
// underscores (COURSEVIEW_STORE_DRIVER=sqlite).
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/courseview/internal/content"
	"github.com/conneroisu/courseview/internal/logging"
	"github.com/conneroisu/courseview/internal/registry"
	"github.com/conneroisu/courseview/internal/store"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "COURSEVIEW"

// FileName is the configuration file searched for in the working directory
// and the home directory.
const FileName = ".courseview"

type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Content   ContentConfig   `mapstructure:"content" yaml:"content"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Highlight HighlightConfig `mapstructure:"highlight" yaml:"highlight"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Course    CourseConfig    `mapstructure:"course" yaml:"course"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port" yaml:"port"`
	Host              string        `mapstructure:"host" yaml:"host"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	Watch             bool          `mapstructure:"watch" yaml:"watch"`
	WatchDebounce     time.Duration `mapstructure:"watch_debounce" yaml:"watch_debounce"`
	MaxClientsPerIP   int           `mapstructure:"max_clients_per_ip" yaml:"max_clients_per_ip"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
}

type ContentConfig struct {
	// Dir is the root the markdown directory is resolved against.
	Dir         string `mapstructure:"dir" yaml:"dir"`
	MarkdownDir string `mapstructure:"markdown_dir" yaml:"markdown_dir"`
	Extension   string `mapstructure:"extension" yaml:"extension"`
	// BaseURL switches retrieval to HTTP; Dir is then ignored.
	BaseURL       string `mapstructure:"base_url" yaml:"base_url"`
	DefaultModule string `mapstructure:"default_module" yaml:"default_module"`
}

type StoreConfig struct {
	Driver    string `mapstructure:"driver" yaml:"driver"`
	Path      string `mapstructure:"path" yaml:"path"`
	RedisAddr string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisDB   int    `mapstructure:"redis_db" yaml:"redis_db"`
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
}

type HighlightConfig struct {
	LightStyle string            `mapstructure:"light_style" yaml:"light_style"`
	DarkStyle  string            `mapstructure:"dark_style" yaml:"dark_style"`
	Aliases    map[string]string `mapstructure:"aliases" yaml:"aliases"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

type CourseConfig struct {
	Title string `mapstructure:"title" yaml:"title"`
	// Manifest points to a YAML course manifest; it wins over Modules.
	Manifest string                      `mapstructure:"manifest" yaml:"manifest"`
	Modules  []registry.ModuleDescriptor `mapstructure:"modules" yaml:"modules"`
}

// ConfigureEnv binds COURSEVIEW_* environment variables to config keys.
func ConfigureEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.watch", false)
	v.SetDefault("server.watch_debounce", 150*time.Millisecond)
	v.SetDefault("server.max_clients_per_ip", 20)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.read_header_timeout", 10*time.Second)

	v.SetDefault("content.dir", ".")
	v.SetDefault("content.markdown_dir", content.DefaultDir)
	v.SetDefault("content.extension", content.DefaultExtension)
	v.SetDefault("content.default_module", registry.DefaultModuleID)

	v.SetDefault("store.driver", store.DriverSQLite)
	v.SetDefault("store.path", filepath.Join(".courseview", "progress.db"))
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.namespace", store.DefaultNamespace)

	v.SetDefault("highlight.light_style", "github")
	v.SetDefault("highlight.dark_style", "monokai")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("course.title", "Curso de Vue.js")
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads, defaults and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Viper does not unmarshal slices set through env vars or Set calls
	// with a string value.
	if v.IsSet("server.allowed_origins") && len(config.Server.AllowedOrigins) == 0 {
		config.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Layout maps module ids to content paths.
func (c *Config) Layout() content.Layout {
	return content.Layout{Dir: c.Content.MarkdownDir, Extension: c.Content.Extension}
}

// Fetcher builds the content retriever: HTTP when a base URL is set, the
// content directory otherwise.
func (c *Config) Fetcher() (content.Fetcher, error) {
	if c.Content.BaseURL != "" {
		f, err := content.NewHTTPFetcher(c.Content.BaseURL, nil)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	return content.NewDirFetcher(c.Content.Dir), nil
}

// WatchRoot is the directory the live-reload watcher observes, or "" when
// content is not on the local file system.
func (c *Config) WatchRoot() string {
	if c.Content.BaseURL != "" {
		return ""
	}
	return c.Content.Dir
}

// StoreOptions describes the configured store.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Driver:    c.Store.Driver,
		Path:      c.Store.Path,
		RedisAddr: c.Store.RedisAddr,
		RedisDB:   c.Store.RedisDB,
		Namespace: c.Store.Namespace,
	}
}

// LoggerConfig translates the log section.
func (c *Config) LoggerConfig() (*logging.LoggerConfig, error) {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Format = c.Log.Format
	cfg.File = c.Log.File
	return cfg, nil
}

// Registry builds the module registry: from the manifest when one is
// configured, from the inline module list when present, else the built-in
// course. A manifest may also override the title and default module.
func (c *Config) Registry() (*registry.Registry, error) {
	if c.Course.Manifest != "" {
		manifest, reg, err := registry.LoadManifest(c.Course.Manifest)
		if err != nil {
			return nil, err
		}
		if manifest.Title != "" {
			c.Course.Title = manifest.Title
		}
		if manifest.Default != "" {
			c.Content.DefaultModule = manifest.Default
		}
		if _, ok := reg.Lookup(c.Content.DefaultModule); !ok {
			if c.Content.DefaultModule != "" && c.Content.DefaultModule != registry.DefaultModuleID {
				return nil, fmt.Errorf("default module %q is not part of the course in %s", c.Content.DefaultModule, c.Course.Manifest)
			}
			// The built-in default does not apply to this course.
			first, _ := reg.First()
			c.Content.DefaultModule = first.ID
		}
		return reg, nil
	}
	if len(c.Course.Modules) > 0 {
		return registry.New(c.Course.Modules...)
	}
	return registry.Default(), nil
}
