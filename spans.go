// spans.go: sidecar source positions for datums.
//
// WHAT THIS MODULE DOES
// =====================
// Datums are plain Values with no room for positions, so the parser records
// positions in a *sidecar* index instead of in the data itself:
//
//   - Top: the start of every top-level datum, in order.
//   - pairs: the start of every list, keyed by the identity of its first pair.
//
// The compiler looks up the pair of each combination it compiles and stores
// the span in the Code, so runtime errors can point a caret at the call that
// failed rather than at the enclosing top-level form.
//
// Identity keys make the index immune to structural sharing: two lists that
// print the same but were read at different places keep different spans.
// Datums built at runtime (eval, macro output) simply have no entry.
package scheme

////////////////////////////////////////////////////////////////////////////////
//                                  PUBLIC API
////////////////////////////////////////////////////////////////////////////////

// Span is a 1-based line/column position in the source text.
type Span struct {
	Line int
	Col  int
}

func (s Span) IsZero() bool { return s.Line == 0 }

// SpanIndex maps datums read from one source to their positions.
type SpanIndex struct {
	Top   []Span
	pairs map[*Pair]Span
}

func newSpanIndex() *SpanIndex { return &SpanIndex{pairs: map[*Pair]Span{}} }

// Of returns the recorded position of a list datum.
func (si *SpanIndex) Of(v Value) (Span, bool) {
	if si == nil || v.Tag != VTPair {
		return Span{}, false
	}
	s, ok := si.pairs[v.Data.(*Pair)]
	return s, ok
}

// SourceRef names a source text and carries its index.
type SourceRef struct {
	Name  string
	Src   string
	Spans *SpanIndex
}

//// END_OF_PUBLIC

func (si *SpanIndex) record(v Value, t Token) {
	if si != nil && v.Tag == VTPair {
		si.pairs[v.Data.(*Pair)] = Span{Line: t.Line, Col: t.Col + 1}
	}
}
