// Package dsl implements the surface `.choreography` text format: a lexer
// and recursive-descent parser producing an *ast.Choreography, plus
// directory loading of multiple source files. The grammar is this
// implementation's own concrete syntax for the AST contract spec.md
// leaves unspecified (spec.md scopes only the AST in/out contract, not a
// surface grammar).
package dsl

import (
	"fmt"
	"os"
	"strconv"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/coatyio/choreo/ast"
	"github.com/coatyio/choreo/errs"
)

// Result is the outcome of parsing: either a complete Choreography or a
// *errs.CompileError with Kind SyntaxError/UnknownRole/DuplicateRole/
// UnboundVar.
type Result struct {
	Choreography *ast.Choreography
	Err          error
}

// ParseString parses choreography source text held entirely in memory.
func ParseString(text string) Result {
	p := &parser{lex: newLexer(text), recVars: map[string]bool{}}
	c, err := p.parseFile()
	return Result{Choreography: c, Err: err}
}

// ParseFile reads and parses a single `.choreography` file.
func ParseFile(path string) Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{Err: errs.NewCompileError(errs.SyntaxError, errs.Pos{}, "cannot read %s: %v", path, err)}
	}
	return ParseString(string(data))
}

// LoadDir parses every file matching the given doublestar glob pattern
// (relative to dir), e.g. "**/*.choreography", returning one Result per
// matched file, keyed by its path relative to dir. Grounded on the teacher's
// registry/wf word-frequency computation, which globs a document set with
// doublestar the same way.
func LoadDir(dir, pattern string) (map[string]Result, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
	}
	results := make(map[string]Result, len(matches))
	for _, m := range matches {
		results[m] = ParseFile(dir + "/" + m)
	}
	return results, nil
}

type parser struct {
	lex     *lexer
	cur     token
	roles   []ast.Role
	byName  map[string]ast.Role
	recVars map[string]bool // names of Rec variables in lexical scope
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *parser) expect(k tokenKind, what string) (token, error) {
	if p.cur.kind != k {
		return token{}, errs.NewCompileError(errs.SyntaxError, p.cur.pos, "expected %s, got %q", what, p.cur.text)
	}
	tok := p.cur
	if err := p.advance(); err != nil {
		return token{}, err
	}
	return tok, nil
}

func (p *parser) expectKeyword(kw string) error {
	if p.cur.kind != tokIdent || p.cur.text != kw {
		return errs.NewCompileError(errs.SyntaxError, p.cur.pos, "expected keyword %q, got %q", kw, p.cur.text)
	}
	return p.advance()
}

func (p *parser) atKeyword(kw string) bool {
	return p.cur.kind == tokIdent && p.cur.text == kw
}

func (p *parser) parseFile() (*ast.Choreography, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}

	if err := p.expectKeyword("protocol"); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(tokIdent, "protocol name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLBrace, "'{'"); err != nil {
		return nil, err
	}

	if err := p.expectKeyword("roles"); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokColon, "':'"); err != nil {
		return nil, err
	}
	if err := p.parseRoleList(); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokSemi, "';'"); err != nil {
		return nil, err
	}

	proto, err := p.parseStmtList(true)
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(tokRBrace, "'}'"); err != nil {
		return nil, err
	}

	return &ast.Choreography{Name: nameTok.text, Roles: p.roles, Protocol: proto}, nil
}

func (p *parser) parseRoleList() error {
	p.byName = map[string]ast.Role{}
	for {
		tok, err := p.expect(tokIdent, "role name")
		if err != nil {
			return err
		}
		if _, dup := p.byName[tok.text]; dup {
			return errs.NewCompileError(errs.DuplicateRole, tok.pos, "role %q declared more than once", tok.text)
		}
		r := ast.NewRole(tok.text, len(p.roles))
		p.roles = append(p.roles, r)
		p.byName[tok.text] = r
		if p.cur.kind != tokComma {
			break
		}
		if err := p.advance(); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) resolveRole(tok token) (ast.Role, error) {
	r, ok := p.byName[tok.text]
	if !ok {
		return ast.Role{}, errs.NewCompileError(errs.UnknownRole, tok.pos, "role %q was not declared", tok.text)
	}
	return r, nil
}

// parseStmtList parses a sequence of statements up to (but not consuming) a
// closing '}' or EOF (when atTop is true, the outermost block has no
// enclosing braces consumed here - the caller consumes the final '}').
// Send statements chain via Cont; Choice, Loop, Parallel, Rec, bare
// variable references and End are terminal and must be the last statement
// of their block (a deliberate grammar restriction: Choice/Loop/Parallel
// carry no continuation field in the AST, so nesting trailing statements
// inside every leaf would be required otherwise - this grammar avoids
// that by construction).
func (p *parser) parseStmtList(atTop bool) (*ast.Protocol, error) {
	var sends []*ast.Protocol // partially built Send nodes awaiting Cont

	for {
		if p.cur.kind == tokRBrace || p.cur.kind == tokEOF {
			return chainSends(sends, ast.EndNode), nil
		}

		terminal, isTerminal, err := p.parseOneTerminalOrNil()
		if err != nil {
			return nil, err
		}
		if isTerminal {
			if p.cur.kind != tokRBrace && p.cur.kind != tokEOF {
				return nil, errs.NewCompileError(errs.SyntaxError, p.cur.pos, "no statements may follow a terminal construct in the same block")
			}
			return chainSends(sends, terminal), nil
		}

		sendNode, err := p.parseSendStmt()
		if err != nil {
			return nil, err
		}
		sends = append(sends, sendNode)
	}
}

func chainSends(sends []*ast.Protocol, tail *ast.Protocol) *ast.Protocol {
	cont := tail
	for i := len(sends) - 1; i >= 0; i-- {
		sends[i].Cont = cont
		cont = sends[i]
	}
	return cont
}

// parseOneTerminalOrNil consumes and returns a Choice/Loop/Parallel/Rec/
// Var-reference/End statement if the next tokens begin one; otherwise it
// consumes nothing and returns isTerminal=false so the caller can parse a
// Send statement instead.
func (p *parser) parseOneTerminalOrNil() (*ast.Protocol, bool, error) {
	switch {
	case p.atKeyword("choice"):
		n, err := p.parseChoice()
		return n, true, err
	case p.atKeyword("loop"):
		n, err := p.parseLoop()
		return n, true, err
	case p.atKeyword("par"):
		n, err := p.parsePar()
		return n, true, err
	case p.atKeyword("rec"):
		n, err := p.parseRec()
		return n, true, err
	case p.atKeyword("end"):
		if err := p.advance(); err != nil {
			return nil, true, err
		}
		if _, err := p.expect(tokSemi, "';'"); err != nil {
			return nil, true, err
		}
		return ast.EndNode, true, nil
	case p.cur.kind == tokIdent:
		// Could be "X;" (Var reference) or "A -> B: ..." (Send). Peek past
		// the identifier for a following ';' to disambiguate without
		// committing to either parse.
		if p.peekIsSemi() {
			name := p.cur.text
			pos := p.cur.pos
			if err := p.advance(); err != nil {
				return nil, true, err
			}
			if err := p.advance(); err != nil { // consume ';'
				return nil, true, err
			}
			if !p.recVars[name] {
				return nil, true, errs.NewCompileError(errs.UnboundVar, pos, "%q does not refer to an enclosing 'rec %s { ... }'", name, name)
			}
			return ast.VarNode(name), true, nil
		}
	}
	return nil, false, nil
}

// peekIsSemi reports whether the token following the current identifier is
// ';', without consuming any input. It clones the lexer (a small value
// type) to look ahead.
func (p *parser) peekIsSemi() bool {
	clone := *p.lex
	tok, err := clone.next()
	return err == nil && tok.kind == tokSemi
}

func (p *parser) parseSendStmt() (*ast.Protocol, error) {
	fromTok, err := p.expect(tokIdent, "sender role")
	if err != nil {
		return nil, err
	}
	from, err := p.resolveRole(fromTok)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokArrow, "'->'"); err != nil {
		return nil, err
	}
	toTok, err := p.expect(tokIdent, "receiver role")
	if err != nil {
		return nil, err
	}
	to, err := p.resolveRole(toTok)
	if err != nil {
		return nil, err
	}
	if from.Equal(to) {
		return nil, errs.NewCompileError(errs.SyntaxError, toTok.pos, "a role cannot send to itself (%q)", from.Name)
	}
	if _, err := p.expect(tokColon, "':'"); err != nil {
		return nil, err
	}
	msg, err := p.parseMessageType()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokSemi, "';'"); err != nil {
		return nil, err
	}
	return &ast.Protocol{Kind: ast.KindSend, From: from, To: to, Message: msg}, nil
}

func (p *parser) parseMessageType() (ast.MessageType, error) {
	nameTok, err := p.expect(tokIdent, "message name")
	if err != nil {
		return ast.MessageType{}, err
	}
	msg := ast.MessageType{Name: nameTok.text}
	if p.cur.kind != tokLParen {
		return msg, nil
	}
	if err := p.advance(); err != nil {
		return ast.MessageType{}, err
	}
	if p.cur.kind != tokRParen {
		for {
			fTok, err := p.expect(tokIdent, "field type")
			if err != nil {
				return ast.MessageType{}, err
			}
			msg.Fields = append(msg.Fields, ast.Field{Name: fmt.Sprintf("f%d", len(msg.Fields)), Type: fTok.text})
			if p.cur.kind != tokComma {
				break
			}
			if err := p.advance(); err != nil {
				return ast.MessageType{}, err
			}
		}
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return ast.MessageType{}, err
	}
	return msg, nil
}

func (p *parser) parseChoice() (*ast.Protocol, error) {
	if err := p.advance(); err != nil { // "choice"
		return nil, err
	}
	deciderTok, err := p.expect(tokIdent, "deciding role")
	if err != nil {
		return nil, err
	}
	decider, err := p.resolveRole(deciderTok)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLBrace, "'{'"); err != nil {
		return nil, err
	}

	seen := map[ast.Label]bool{}
	var branches []ast.Branch
	for p.cur.kind == tokIdent {
		labelTok, err := p.expect(tokIdent, "branch label")
		if err != nil {
			return nil, err
		}
		label := ast.Label(labelTok.text)
		if seen[label] {
			return nil, errs.NewCompileError(errs.SyntaxError, labelTok.pos, "duplicate branch label %q in choice", label)
		}
		seen[label] = true
		if _, err := p.expect(tokFatArrow, "'=>'"); err != nil {
			return nil, err
		}
		if _, err := p.expect(tokLBrace, "'{'"); err != nil {
			return nil, err
		}
		body, err := p.parseStmtList(false)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRBrace, "'}'"); err != nil {
			return nil, err
		}
		branches = append(branches, ast.Branch{Label: label, Protocol: body})
	}
	if len(branches) == 0 {
		return nil, errs.NewCompileError(errs.SyntaxError, p.cur.pos, "choice requires at least one branch")
	}
	if _, err := p.expect(tokRBrace, "'}'"); err != nil {
		return nil, err
	}
	return ast.Choice(decider, branches...), nil
}

func (p *parser) parseLoop() (*ast.Protocol, error) {
	if err := p.advance(); err != nil { // "loop"
		return nil, err
	}
	cond := ast.Condition{Kind: ast.CondNone}
	if p.cur.kind == tokLParen {
		if err := p.advance(); err != nil {
			return nil, err
		}
		c, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		cond = c
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(tokLBrace, "'{'"); err != nil {
		return nil, err
	}
	body, err := p.parseStmtList(false)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRBrace, "'}'"); err != nil {
		return nil, err
	}
	return ast.Loop(cond, body), nil
}

func (p *parser) parseCondition() (ast.Condition, error) {
	switch {
	case p.atKeyword("count"):
		if err := p.advance(); err != nil {
			return ast.Condition{}, err
		}
		if _, err := p.expect(tokLParen, "'('"); err != nil {
			return ast.Condition{}, err
		}
		numTok, err := p.expect(tokNumber, "iteration count")
		if err != nil {
			return ast.Condition{}, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return ast.Condition{}, err
		}
		n, _ := strconv.Atoi(numTok.text)
		return ast.Condition{Kind: ast.CondCount, Count: n}, nil
	case p.atKeyword("role"):
		if err := p.advance(); err != nil {
			return ast.Condition{}, err
		}
		if _, err := p.expect(tokLParen, "'('"); err != nil {
			return ast.Condition{}, err
		}
		roleTok, err := p.expect(tokIdent, "role name")
		if err != nil {
			return ast.Condition{}, err
		}
		r, err := p.resolveRole(roleTok)
		if err != nil {
			return ast.Condition{}, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return ast.Condition{}, err
		}
		return ast.Condition{Kind: ast.CondRoleDecides, Role: r}, nil
	case p.atKeyword("custom"):
		if err := p.advance(); err != nil {
			return ast.Condition{}, err
		}
		if _, err := p.expect(tokLParen, "'('"); err != nil {
			return ast.Condition{}, err
		}
		exprTok, err := p.expect(tokString, "custom condition expression")
		if err != nil {
			return ast.Condition{}, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return ast.Condition{}, err
		}
		// Open Question resolution (SPEC_FULL.md §6): Condition::Custom must
		// name its evaluating role explicitly; never inferred.
		if err := p.expectKeyword("by"); err != nil {
			return ast.Condition{}, errs.NewCompileError(errs.SyntaxError, p.cur.pos, "custom loop condition requires an explicit 'by <role>' clause")
		}
		deciderTok, err := p.expect(tokIdent, "deciding role")
		if err != nil {
			return ast.Condition{}, err
		}
		decider, err := p.resolveRole(deciderTok)
		if err != nil {
			return ast.Condition{}, err
		}
		return ast.Condition{Kind: ast.CondCustom, Expr: exprTok.text, Decider: decider}, nil
	default:
		return ast.Condition{}, errs.NewCompileError(errs.SyntaxError, p.cur.pos, "expected loop condition (count/role/custom), got %q", p.cur.text)
	}
}

func (p *parser) parsePar() (*ast.Protocol, error) {
	if err := p.advance(); err != nil { // "par"
		return nil, err
	}
	var children []*ast.Protocol
	for {
		if _, err := p.expect(tokLBrace, "'{'"); err != nil {
			return nil, err
		}
		child, err := p.parseStmtList(false)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRBrace, "'}'"); err != nil {
			return nil, err
		}
		children = append(children, child)
		if !p.atKeyword("and") {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if len(children) < 2 {
		return nil, errs.NewCompileError(errs.SyntaxError, p.cur.pos, "par requires at least two branches joined by 'and'")
	}
	return ast.Parallel(children...), nil
}

func (p *parser) parseRec() (*ast.Protocol, error) {
	if err := p.advance(); err != nil { // "rec"
		return nil, err
	}
	nameTok, err := p.expect(tokIdent, "recursion variable name")
	if err != nil {
		return nil, err
	}
	if p.recVars[nameTok.text] {
		return nil, errs.NewCompileError(errs.SyntaxError, nameTok.pos, "recursion variable %q is already bound in this scope", nameTok.text)
	}
	p.recVars[nameTok.text] = true
	defer delete(p.recVars, nameTok.text)

	if _, err := p.expect(tokLBrace, "'{'"); err != nil {
		return nil, err
	}
	body, err := p.parseStmtList(false)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRBrace, "'}'"); err != nil {
		return nil, err
	}
	return ast.RecNode(nameTok.text, body), nil
}
