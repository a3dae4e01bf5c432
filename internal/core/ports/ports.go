package ports

import (
	"nsref/internal/engine/imports"
	"nsref/internal/engine/token"
)

// Tokenizer turns module source into the token sequence consumed by the
// import grammar. Implementations must cover every byte of the source.
type Tokenizer interface {
	Name() string
	Tokenize(source []byte) ([]token.Token, error)
}

// ModuleStore persists scanned module tables between runs. Load reports
// false when nothing is stored for path or the stored hash differs.
type ModuleStore interface {
	Load(path, hash string) (*imports.Module, bool, error)
	Save(path, hash string, module *imports.Module) error
	Delete(path string) error
	Prune(paths []string) error
	Close() error
}
