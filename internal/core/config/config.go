package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	BackendNative     = "native"
	BackendTreeSitter = "tree-sitter"

	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

type Config struct {
	Version       int                `toml:"version"`
	Tokenizer     Tokenizer          `toml:"tokenizer"`
	Namespaces    []NamespaceMapping `toml:"namespaces"`
	Composer      string             `toml:"composer"`
	Extensions    []string           `toml:"extensions"`
	Exclude       Exclude            `toml:"exclude"`
	Cache         Cache              `toml:"cache"`
	DB            Database           `toml:"db"`
	Watch         Watch              `toml:"watch"`
	Observability Observability      `toml:"observability"`
	Output        Output             `toml:"output"`
}

type Tokenizer struct {
	Backend string `toml:"backend"`
}

// NamespaceMapping maps a namespace prefix to the directories holding its
// classes. An empty prefix is a fallback root for every namespace.
type NamespaceMapping struct {
	Prefix string   `toml:"prefix"`
	Dirs   []string `toml:"dirs"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Cache struct {
	Capacity int `toml:"capacity"`
}

type Database struct {
	Enabled     bool          `toml:"enabled"`
	Path        string        `toml:"path"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
	ProjectKey  string        `toml:"project_key"`
}

// Watch tunes watch mode. A negative RescanPerSecond disables throttling.
type Watch struct {
	Debounce        time.Duration `toml:"debounce"`
	RescanPerSecond float64       `toml:"rescan_per_second"`
	RescanBurst     int           `toml:"rescan_burst"`
}

type Observability struct {
	MetricsAddr  string `toml:"metrics_addr"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
}

type Output struct {
	Format string `toml:"format"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load decodes the TOML file at path, applies defaults and environment
// overrides, resolves relative paths against the file's directory and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("decode config %q: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("config %q: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	applyDefaults(&cfg)
	ApplyEnvOverrides(&cfg)
	resolvePaths(&cfg, filepath.Dir(path))

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if strings.TrimSpace(cfg.Tokenizer.Backend) == "" {
		cfg.Tokenizer.Backend = BackendNative
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = []string{"php"}
	}
	if len(cfg.Exclude.Dirs) == 0 {
		cfg.Exclude.Dirs = []string{".git", "vendor", "node_modules"}
	}
	if cfg.Cache.Capacity <= 0 {
		cfg.Cache.Capacity = 512
	}
	if strings.TrimSpace(cfg.DB.Path) == "" {
		cfg.DB.Path = filepath.Join(".nsref", "modules.db")
	}
	if cfg.DB.BusyTimeout <= 0 {
		cfg.DB.BusyTimeout = 5 * time.Second
	}
	if strings.TrimSpace(cfg.DB.ProjectKey) == "" {
		cfg.DB.ProjectKey = "default"
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.RescanPerSecond == 0 {
		cfg.Watch.RescanPerSecond = 20
	}
	if cfg.Watch.RescanBurst <= 0 {
		cfg.Watch.RescanBurst = 10
	}
	if strings.TrimSpace(cfg.Output.Format) == "" {
		cfg.Output.Format = FormatText
	}
}

// resolvePaths makes the relative paths of a loaded file relative to the
// file's directory instead of the working directory.
func resolvePaths(cfg *Config, base string) {
	if base == "" || base == "." {
		return
	}
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	for i := range cfg.Namespaces {
		for j, dir := range cfg.Namespaces[i].Dirs {
			cfg.Namespaces[i].Dirs[j] = abs(dir)
		}
	}
	cfg.Composer = abs(cfg.Composer)
	cfg.DB.Path = abs(cfg.DB.Path)
}
