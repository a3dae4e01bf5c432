package ports_test

import (
	"nsref/internal/core/ports"
	"nsref/internal/data/store"
	"nsref/internal/engine/lexer"
	"nsref/internal/engine/parser"
)

var (
	_ ports.Tokenizer   = (*lexer.Lexer)(nil)
	_ ports.Tokenizer   = (*parser.Tokenizer)(nil)
	_ ports.ModuleStore = (*store.Store)(nil)
)
