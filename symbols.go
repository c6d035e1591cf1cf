// symbols.go: per-interpreter symbol and keyword interning.
//
// Symbols are interned in a persistent sorted map so that identity comparison
// implements symbolic equality, and so that tooling (REPL completion, the
// `symbols` primitive) can list names in order without a separate index.
// Keywords live in their own table: the keyword `foo:` is never eq? to the
// symbol `foo`.
package scheme

import (
	"strconv"
	"strings"

	"github.com/benbjohnson/immutable"
)

type nameComparer struct{}

func (nameComparer) Compare(a, b string) int { return strings.Compare(a, b) }

// Interner owns the symbol and keyword tables of one interpreter.
type Interner struct {
	symbols  *immutable.SortedMap[string, *Symbol]
	keywords *immutable.SortedMap[string, *Symbol]
	gensyms  int
}

func NewInterner() *Interner {
	return &Interner{
		symbols:  immutable.NewSortedMap[string, *Symbol](nameComparer{}),
		keywords: immutable.NewSortedMap[string, *Symbol](nameComparer{}),
	}
}

// Intern returns the unique symbol for name.
func (in *Interner) Intern(name string) *Symbol {
	if s, ok := in.symbols.Get(name); ok {
		return s
	}
	s := &Symbol{Name: name}
	in.symbols = in.symbols.Set(name, s)
	return s
}

// Keyword returns the unique keyword for name (without the trailing colon).
func (in *Interner) Keyword(name string) *Symbol {
	if s, ok := in.keywords.Get(name); ok {
		return s
	}
	s := &Symbol{Name: name}
	in.keywords = in.keywords.Set(name, s)
	return s
}

// Gensym returns a fresh symbol that is not in the table, so no symbol read
// from source can ever be eq? to it.
func (in *Interner) Gensym(prefix string) *Symbol {
	if prefix == "" {
		prefix = "g"
	}
	for {
		in.gensyms++
		name := prefix + strconv.Itoa(in.gensyms)
		if _, taken := in.symbols.Get(name); !taken {
			return &Symbol{Name: name, uninterned: true}
		}
	}
}

// Names lists every interned symbol name in sorted order.
func (in *Interner) Names() []string {
	out := make([]string, 0, in.symbols.Len())
	itr := in.symbols.Iterator()
	for !itr.Done() {
		k, _, _ := itr.Next()
		out = append(out, k)
	}
	return out
}

func (in *Interner) Len() int { return in.symbols.Len() }

// wellKnown caches the symbols the compiler and expander compare against.
type wellKnown struct {
	quote, quasiquote, unquote, unquoteSplicing *Symbol
	lambda, define, begin, set, if_, let        *Symbol
	else_, arrow, ellipsis, underscore          *Symbol
}

func newWellKnown(in *Interner) wellKnown {
	return wellKnown{
		quote:           in.Intern("quote"),
		quasiquote:      in.Intern("quasiquote"),
		unquote:         in.Intern("unquote"),
		unquoteSplicing: in.Intern("unquote-splicing"),
		lambda:          in.Intern("lambda"),
		define:          in.Intern("define"),
		begin:           in.Intern("begin"),
		set:             in.Intern("set!"),
		if_:             in.Intern("if"),
		let:             in.Intern("let"),
		else_:           in.Intern("else"),
		arrow:           in.Intern("=>"),
		ellipsis:        in.Intern("..."),
		underscore:      in.Intern("_"),
	}
}
