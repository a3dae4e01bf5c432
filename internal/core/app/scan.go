package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"nsref/internal/core/errors"
	"nsref/internal/engine/imports"
	"nsref/internal/shared/observability"
	"nsref/internal/shared/util"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// FoundDeclaration is a declaration located by a namespace scan.
type FoundDeclaration struct {
	Path string                  `json:"path" yaml:"path"`
	Kind imports.DeclarationKind `json:"kind" yaml:"kind"`
	Name string                  `json:"name" yaml:"name"` // fully qualified
	Line int                     `json:"line" yaml:"line"`
}

// NamespaceScan is the result of ScanNamespace.
type NamespaceScan struct {
	Namespace    string             `json:"namespace" yaml:"namespace"`
	Files        []string           `json:"files" yaml:"files"`
	Declarations []FoundDeclaration `json:"declarations" yaml:"declarations"`
	Warnings     []string           `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// ScanFile returns the import tables of the module at path. A module whose
// content is unchanged is served from memory or from the store; otherwise it
// is tokenized and scanned, and both tiers are refreshed.
func (s *Session) ScanFile(ctx context.Context, path string) (*imports.Module, error) {
	ctx, span := s.startSpan(ctx, "Session.ScanFile", attribute.String("path", path))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "read module"), errors.CtxPath, abs)
		}
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "read module"), errors.CtxPath, abs)
	}
	hash := contentHash(content)

	if cached, ok := s.modules.Get(abs); ok && cached.hash == hash {
		observability.ModuleCacheHitsTotal.WithLabelValues("memory").Inc()
		span.SetAttributes(attribute.String("tier", "memory"))
		return cached.module, nil
	}

	if mod, ok := s.loadStored(abs, hash); ok {
		observability.ModuleCacheHitsTotal.WithLabelValues("store").Inc()
		span.SetAttributes(attribute.String("tier", "store"))
		s.remember(abs, hash, mod)
		return mod, nil
	}

	observability.ModuleCacheMissesTotal.Inc()
	span.SetAttributes(attribute.String("tier", "scan"))
	mod, err := s.scanContent(abs, content)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.remember(abs, hash, mod)
	if s.store != nil {
		if err := s.store.Save(abs, hash, mod); err != nil {
			observability.StoreErrorsTotal.Inc()
			s.log.Warn("failed to persist module tables", "path", abs, "error", err)
		}
	}
	return mod, nil
}

func (s *Session) scanContent(path string, content []byte) (*imports.Module, error) {
	start := time.Now()
	toks, err := s.tokenizer.Tokenize(content)
	observability.TokenizeDuration.WithLabelValues(s.tokenizer.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "tokenize module"), errors.CtxPath, path)
	}

	mod, err := imports.Scan(path, toks)
	if err != nil {
		kind := errors.KindOf(err)
		observability.ParseErrorsTotal.WithLabelValues(kind.String()).Inc()
		s.log.Debug("module scan failed", "path", path, "kind", kind.String(), "error", err)
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeParse, "scan module"), errors.CtxPath, path)
	}
	observability.ModulesScannedTotal.Inc()
	return mod, nil
}

func (s *Session) loadStored(path, hash string) (*imports.Module, bool) {
	if s.store == nil {
		return nil, false
	}
	mod, ok, err := s.store.Load(path, hash)
	if err != nil {
		observability.StoreErrorsTotal.Inc()
		s.log.Warn("failed to load stored module tables", "path", path, "error", err)
		return nil, false
	}
	return mod, ok
}

func (s *Session) remember(path, hash string, mod *imports.Module) {
	s.modules.Put(path, cachedModule{hash: hash, module: mod})
	observability.ModuleCacheEntries.Set(float64(s.modules.Len()))
}

// ScanNamespace scans every file listed for ns in parallel and returns the
// class-like declarations made in exactly that namespace. Files that fail
// to scan become warnings.
func (s *Session) ScanNamespace(ctx context.Context, ns string) (*NamespaceScan, error) {
	ctx, span := s.startSpan(ctx, "Session.ScanNamespace", attribute.String("namespace", ns))
	defer span.End()
	start := time.Now()
	defer func() {
		observability.ScanDuration.WithLabelValues("namespace").Observe(time.Since(start).Seconds())
	}()

	files, err := s.namespaces.Files(ns)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "list namespace files"), errors.CtxNamespace, ns)
	}
	want := imports.NormalizeNamespace(ns)
	result := &NamespaceScan{Namespace: want, Files: files}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, file := range files {
		file := file
		g.Go(func() error {
			mod, err := s.ScanFile(gctx, file)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", file, err))
				return nil
			}
			result.Declarations = append(result.Declarations, classesIn(mod, want)...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.AddContext(err, errors.CtxNamespace, ns)
	}

	sort.Slice(result.Declarations, func(i, j int) bool {
		a, b := result.Declarations[i], result.Declarations[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Path < b.Path
	})
	sort.Strings(result.Warnings)
	span.SetAttributes(attribute.Int("files", len(files)), attribute.Int("declarations", len(result.Declarations)))
	return result, nil
}

func classesIn(mod *imports.Module, ns string) []FoundDeclaration {
	table := mod.Table(ns)
	if table == nil {
		return nil
	}
	var out []FoundDeclaration
	for _, d := range table.Declarations {
		if d.Kind == imports.DeclFunction {
			continue
		}
		out = append(out, FoundDeclaration{Path: mod.Path, Kind: d.Kind, Name: table.Qualify(d.Name), Line: d.Line})
	}
	return out
}

// SourceFiles walks every registered namespace root and lists the source
// files below it, honouring the configured extensions and exclude globs.
func (s *Session) SourceFiles() ([]string, error) {
	dirGlobs, err := util.CompileGlobs(s.cfg.Exclude.Dirs, "exclude dir")
	if err != nil {
		return nil, err
	}
	fileGlobs, err := util.CompileGlobs(s.cfg.Exclude.Files, "exclude file")
	if err != nil {
		return nil, err
	}
	exts := make(map[string]bool)
	for _, e := range s.namespaces.Extensions() {
		exts["."+e] = true
	}

	var files []string
	seen := make(map[string]bool)
	for _, root := range s.namespaces.Roots() {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) && path == root {
					return filepath.SkipDir
				}
				return err
			}
			base := filepath.Base(path)
			if d.IsDir() {
				if path != root && util.MatchAny(dirGlobs, base) {
					return filepath.SkipDir
				}
				return nil
			}
			if !exts[strings.ToLower(filepath.Ext(base))] || util.MatchAny(fileGlobs, base) {
				return nil
			}
			if !seen[path] {
				seen[path] = true
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, errors.AddContext(err, errors.CtxPath, root)
		}
	}
	sort.Strings(files)
	return files, nil
}

// SyncResult summarizes a Sync.
type SyncResult struct {
	Files    int      `json:"files" yaml:"files"`
	Modules  int      `json:"modules" yaml:"modules"`
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Sync scans every source file under the namespace roots and prunes stored
// tables of files that no longer exist.
func (s *Session) Sync(ctx context.Context) (SyncResult, error) {
	ctx, span := s.startSpan(ctx, "Session.Sync")
	defer span.End()
	start := time.Now()
	defer func() {
		observability.ScanDuration.WithLabelValues("sync").Observe(time.Since(start).Seconds())
	}()

	files, err := s.SourceFiles()
	if err != nil {
		return SyncResult{}, errors.AddContext(err, errors.CtxOperation, "list_source_files")
	}
	res := SyncResult{Files: len(files)}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if _, err := s.ScanFile(ctx, file); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", file, err))
			continue
		}
		res.Modules++
	}
	if s.store != nil {
		if err := s.store.Prune(files); err != nil {
			s.log.Warn("failed to prune stored module tables", "error", err)
		}
	}
	return res, nil
}

// Invalidate forgets everything cached for path and the namespace file
// listings, which may have changed with it.
func (s *Session) Invalidate(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.AddContext(err, errors.CtxPath, path)
	}
	s.modules.Remove(abs)
	observability.ModuleCacheEntries.Set(float64(s.modules.Len()))
	s.namespaces.ClearCache("")
	if s.store != nil {
		if err := s.store.Delete(abs); err != nil {
			return errors.AddContext(errors.Wrap(err, errors.CodeStorage, "delete stored module"), errors.CtxPath, abs)
		}
	}
	s.log.Debug("module invalidated", "path", abs)
	return nil
}

// InvalidateAll empties the module cache, the namespace listings and the
// project's stored tables.
func (s *Session) InvalidateAll() error {
	s.modules.Purge()
	observability.ModuleCacheEntries.Set(0)
	s.namespaces.ClearCache("")
	if s.store != nil {
		if err := s.store.Prune(nil); err != nil {
			return errors.Wrap(err, errors.CodeStorage, "clear stored modules")
		}
	}
	return nil
}

func (s *Session) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("session", s.id))
	return observability.Tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
