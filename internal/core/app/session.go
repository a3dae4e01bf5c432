package app

import (
	"fmt"
	"log/slog"
	"strings"

	"nsref/internal/core/config"
	"nsref/internal/core/errors"
	"nsref/internal/core/ports"
	"nsref/internal/data/store"
	"nsref/internal/engine/imports"
	"nsref/internal/engine/lexer"
	"nsref/internal/engine/namespace"
	"nsref/internal/engine/parser"
	"nsref/internal/engine/types"
	"nsref/internal/shared/cache"
	"nsref/internal/shared/observability"

	"github.com/google/uuid"
)

// cachedModule is a scanned module together with the hash of the content it
// was scanned from.
type cachedModule struct {
	hash   string
	module *imports.Module
}

// Session owns the registries and caches shared by every analysis of one
// project: the type registry, the namespace directory registry, the module
// table cache and the optional persistent store. A Session is safe for
// concurrent use.
type Session struct {
	id         string
	cfg        *config.Config
	log        *slog.Logger
	tokenizer  ports.Tokenizer
	types      *types.Registry
	namespaces *namespace.Registry
	modules    *cache.LRU[string, cachedModule]
	store      ports.ModuleStore
}

// NewSession builds a session from cfg; a nil cfg means DefaultConfig.
func NewSession(cfg *config.Config) (*Session, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	id := uuid.NewString()

	tokenizer, err := newTokenizer(cfg.Tokenizer.Backend)
	if err != nil {
		return nil, err
	}

	namespaces, err := newNamespaceRegistry(cfg)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:         id,
		cfg:        cfg,
		log:        slog.With("session", id),
		tokenizer:  tokenizer,
		types:      types.NewRegistry(),
		namespaces: namespaces,
		modules:    cache.NewLRU[string, cachedModule](cfg.Cache.Capacity, nil),
	}

	if cfg.DB.Enabled {
		st, err := store.OpenWithTimeout(cfg.DB.Path, cfg.DB.ProjectKey, cfg.DB.BusyTimeout)
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeStorage, "open module store"), errors.CtxPath, cfg.DB.Path)
		}
		s.store = st
	}

	s.log.Debug("session started", "tokenizer", tokenizer.Name(), "store", s.store != nil, "cache_capacity", s.modules.Cap())
	return s, nil
}

func newTokenizer(backend string) (ports.Tokenizer, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", config.BackendNative:
		return lexer.New(), nil
	case config.BackendTreeSitter:
		return parser.NewTokenizer(), nil
	}
	return nil, errors.New(errors.CodeValidationError, fmt.Sprintf("unknown tokenizer backend %q", backend))
}

func newNamespaceRegistry(cfg *config.Config) (*namespace.Registry, error) {
	reg := namespace.NewRegistry()
	if len(cfg.Extensions) > 0 {
		reg.SetExtensions(cfg.Extensions)
	}
	if err := reg.SetExcludes(cfg.Exclude.Dirs, cfg.Exclude.Files); err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, "compile exclude patterns")
	}
	for _, mapping := range cfg.Namespaces {
		for _, dir := range mapping.Dirs {
			reg.Register(mapping.Prefix, dir)
		}
	}
	if cfg.Composer != "" {
		if err := reg.RegisterComposer(cfg.Composer); err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeValidationError, "register composer autoload"), errors.CtxPath, cfg.Composer)
		}
	}
	return reg, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Config() *config.Config {
	return s.cfg
}

func (s *Session) Types() *types.Registry {
	return s.types
}

func (s *Session) Namespaces() *namespace.Registry {
	return s.namespaces
}

// CacheStats reports module cache traffic.
func (s *Session) CacheStats() cache.Stats {
	return s.modules.Stats()
}

// Close releases the persistent store. The session must not be used
// afterwards.
func (s *Session) Close() error {
	observability.ModuleCacheEntries.Set(0)
	if s.store == nil {
		return nil
	}
	if err := s.store.Close(); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "close module store")
	}
	return nil
}
