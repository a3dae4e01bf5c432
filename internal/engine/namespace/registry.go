package namespace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"nsref/internal/shared/util"

	"github.com/gobwas/glob"
	"github.com/spf13/cast"
)

const separator = `\`

// DefaultExtensions lists the source file extensions recognised when none are
// configured.
var DefaultExtensions = []string{"php"}

// Registry maps namespace prefixes to the directories holding their source
// files, the way a PSR-4 autoloader lays them out. File listings are cached
// per namespace until ClearCache.
type Registry struct {
	mu           sync.Mutex
	prefixes     []string
	dirs         map[string][]string
	extensions   []string
	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob
	files        map[string][]string
}

func NewRegistry() *Registry {
	return &Registry{
		dirs:       make(map[string][]string),
		extensions: append([]string(nil), DefaultExtensions...),
		files:      make(map[string][]string),
	}
}

// Normalize strips surrounding separators and appends one, so "\App\" and
// "App" both become "App\". The global namespace normalizes to "".
func Normalize(ns string) string {
	trimmed := strings.Trim(strings.TrimSpace(ns), separator)
	if trimmed == "" {
		return ""
	}
	return trimmed + separator
}

// Register adds dir as a root for prefix. The empty prefix registers a
// fallback root that serves every namespace.
func (r *Registry) Register(prefix, dir string) {
	prefix = Normalize(prefix)
	dir = filepath.Clean(dir)

	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.dirs[prefix]
	if !ok {
		r.prefixes = append(r.prefixes, prefix)
	}
	for _, d := range existing {
		if d == dir {
			return
		}
	}
	r.dirs[prefix] = append(existing, dir)
	r.files = make(map[string][]string)
}

type composerAutoload struct {
	PSR4 map[string]any `json:"psr-4"`
}

type composerManifest struct {
	Autoload    composerAutoload `json:"autoload"`
	AutoloadDev composerAutoload `json:"autoload-dev"`
}

// RegisterComposer registers the psr-4 prefixes of a composer.json manifest,
// from both autoload and autoload-dev. Directories are relative to the
// manifest.
func (r *Registry) RegisterComposer(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read composer manifest %q: %w", path, err)
	}
	var manifest composerManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("decode composer manifest %q: %w", path, err)
	}

	base := filepath.Dir(path)
	for _, section := range []composerAutoload{manifest.Autoload, manifest.AutoloadDev} {
		for _, prefix := range util.SortedStringKeys(section.PSR4) {
			dirs, err := composerDirs(section.PSR4[prefix])
			if err != nil {
				return fmt.Errorf("composer manifest %q, prefix %q: %w", path, prefix, err)
			}
			for _, dir := range dirs {
				if !filepath.IsAbs(dir) {
					dir = filepath.Join(base, filepath.FromSlash(dir))
				}
				r.Register(prefix, dir)
			}
		}
	}
	return nil
}

// composerDirs accepts the single-string and list forms of a psr-4 entry.
func composerDirs(v any) ([]string, error) {
	if s, ok := v.(string); ok {
		return []string{s}, nil
	}
	list, err := cast.ToSliceE(v)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, err := cast.ToStringE(item)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *Registry) AddExtension(ext string) {
	ext = strings.TrimPrefix(ext, ".")
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.extensions {
		if e == ext {
			return
		}
	}
	r.extensions = append(r.extensions, ext)
	r.files = make(map[string][]string)
}

func (r *Registry) SetExtensions(exts []string) {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		out = append(out, strings.TrimPrefix(e, "."))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extensions = out
	r.files = make(map[string][]string)
}

func (r *Registry) Extensions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.extensions...)
}

// SetExcludes installs glob patterns matched against directory and file base
// names.
func (r *Registry) SetExcludes(dirs, files []string) error {
	dirGlobs, err := util.CompileGlobs(dirs, "exclude dir")
	if err != nil {
		return err
	}
	fileGlobs, err := util.CompileGlobs(files, "exclude file")
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.excludeDirs, r.excludeFiles = dirGlobs, fileGlobs
	r.files = make(map[string][]string)
	return nil
}

// Roots returns every registered directory.
func (r *Registry) Roots() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, prefix := range r.prefixes {
		out = append(out, r.dirs[prefix]...)
	}
	return util.UniqueRoots(out)
}

// Dirs returns the directories that may hold the classes of ns. Every prefix
// that is empty or leads ns contributes each of its roots joined with the
// rest of ns, in registration order.
func (r *Registry) Dirs(ns string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dirsLocked(Normalize(ns))
}

func (r *Registry) dirsLocked(ns string) []string {
	var out []string
	for _, prefix := range r.prefixes {
		if prefix != "" && !strings.HasPrefix(ns, prefix) {
			continue
		}
		rest := strings.ReplaceAll(ns[len(prefix):], separator, "/")
		for _, dir := range r.dirs[prefix] {
			out = append(out, filepath.Join(dir, filepath.FromSlash(rest)))
		}
	}
	return out
}

// Files lists the source files directly inside the directories of ns,
// filtered by extension and the exclude patterns, sorted. Missing
// directories are skipped.
func (r *Registry) Files(ns string) ([]string, error) {
	ns = Normalize(ns)

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.files[ns]; ok {
		return append([]string(nil), cached...), nil
	}

	exts := make(map[string]bool, len(r.extensions))
	for _, e := range r.extensions {
		exts[e] = true
	}

	seen := make(map[string]bool)
	var out []string
	for _, dir := range r.dirsLocked(ns) {
		if util.MatchAny(r.excludeDirs, filepath.Base(dir)) {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("list namespace %q dir %q: %w", ns, dir, err)
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !exts[strings.TrimPrefix(filepath.Ext(name), ".")] {
				continue
			}
			if util.MatchAny(r.excludeFiles, name) {
				continue
			}
			path := filepath.Join(dir, name)
			if !seen[path] {
				seen[path] = true
				out = append(out, path)
			}
		}
	}
	sort.Strings(out)
	r.files[ns] = out
	return append([]string(nil), out...), nil
}

// ClearCache drops the cached listing of ns, or every listing when ns is "".
func (r *Registry) ClearCache(ns string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ns == "" {
		r.files = make(map[string][]string)
		return
	}
	delete(r.files, Normalize(ns))
}
