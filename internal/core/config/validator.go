package config

import (
	"fmt"
	"strings"

	"nsref/internal/shared/util"
)

// Validate checks a configuration after defaults have been applied.
func Validate(cfg *Config) error {
	validators := []func(*Config) error{
		validateVersion,
		validateTokenizer,
		validateNamespaces,
		validateExtensions,
		validateExclude,
		validateDatabase,
		validateWatch,
		validateOutput,
	}
	for _, v := range validators {
		if err := v(cfg); err != nil {
			return err
		}
	}
	return nil
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateTokenizer(cfg *Config) error {
	switch strings.ToLower(strings.TrimSpace(cfg.Tokenizer.Backend)) {
	case BackendNative, BackendTreeSitter:
		return nil
	}
	return fmt.Errorf("tokenizer.backend must be one of: %s, %s; got %q", BackendNative, BackendTreeSitter, cfg.Tokenizer.Backend)
}

func validateNamespaces(cfg *Config) error {
	for i, ns := range cfg.Namespaces {
		ref := fmt.Sprintf("namespaces[%d]", i)
		if len(ns.Dirs) == 0 {
			return fmt.Errorf("%s (prefix %q) must list at least one dir", ref, ns.Prefix)
		}
		for j, dir := range ns.Dirs {
			if strings.TrimSpace(dir) == "" {
				return fmt.Errorf("%s.dirs[%d] must not be empty", ref, j)
			}
		}
	}
	return nil
}

func validateExtensions(cfg *Config) error {
	for i, ext := range cfg.Extensions {
		ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
		if ext == "" {
			return fmt.Errorf("extensions[%d] must not be empty", i)
		}
		if strings.ContainsAny(ext, `/\`) {
			return fmt.Errorf("extensions[%d] %q must not contain path separators", i, ext)
		}
	}
	return nil
}

func validateExclude(cfg *Config) error {
	if _, err := util.CompileGlobs(cfg.Exclude.Dirs, "exclude.dirs"); err != nil {
		return err
	}
	if _, err := util.CompileGlobs(cfg.Exclude.Files, "exclude.files"); err != nil {
		return err
	}
	return nil
}

func validateDatabase(cfg *Config) error {
	if !cfg.DB.Enabled {
		return nil
	}
	if strings.TrimSpace(cfg.DB.Path) == "" {
		return fmt.Errorf("db.path must not be empty when db.enabled is true")
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %s", cfg.Watch.Debounce)
	}
	return nil
}

func validateOutput(cfg *Config) error {
	switch strings.ToLower(strings.TrimSpace(cfg.Output.Format)) {
	case FormatText, FormatJSON, FormatYAML:
		return nil
	}
	return fmt.Errorf("output.format must be one of: text, json, yaml; got %q", cfg.Output.Format)
}
