// Package errs defines the error taxonomy of §7: fatal compile-time errors
// raised by the parser/analyzer/projector, and runtime errors raised by the
// effect-handler runtime. Keeping both in one package lets every stage
// return errors a caller can discriminate with errors.As regardless of
// which pipeline stage produced them.
package errs

import "fmt"

// CompileKind discriminates the fatal, compile-time error taxonomy.
type CompileKind int

const (
	SyntaxError CompileKind = iota
	UnknownRole
	DuplicateRole
	UnboundVar
	NonProductiveLoop
	UncoordinatedChoice
	InconsistentChoice
	InconsistentParallel
)

func (k CompileKind) String() string {
	switch k {
	case SyntaxError:
		return "SyntaxError"
	case UnknownRole:
		return "UnknownRole"
	case DuplicateRole:
		return "DuplicateRole"
	case UnboundVar:
		return "UnboundVar"
	case NonProductiveLoop:
		return "NonProductiveLoop"
	case UncoordinatedChoice:
		return "UncoordinatedChoice"
	case InconsistentChoice:
		return "InconsistentChoice"
	case InconsistentParallel:
		return "InconsistentParallel"
	default:
		return "UnknownCompileError"
	}
}

// Pos is a source position, 1-indexed, with Col measured in grapheme
// clusters rather than bytes or runes (see the dsl package's lexer).
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string {
	if p.Line == 0 {
		return "?"
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// CompileError is the single fatal error type surfaced by the parser,
// analyzer, and projector. It is never retried and always aborts the
// pipeline.
type CompileError struct {
	Kind    CompileKind
	Pos     Pos
	Message string
}

func (e *CompileError) Error() string {
	if e.Pos.Line == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s at %s: %s", e.Kind, e.Pos, e.Message)
}

// NewCompileError constructs a CompileError at the given position.
func NewCompileError(kind CompileKind, pos Pos, format string, a ...any) *CompileError {
	return &CompileError{Kind: kind, Pos: pos, Message: fmt.Sprintf(format, a...)}
}

// Is reports whether target is a CompileError of the same Kind, so callers
// can write errors.Is(err, &CompileError{Kind: errs.UnboundVar}).
func (e *CompileError) Is(target error) bool {
	other, ok := target.(*CompileError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}
