// Package filter compiles boolean keyword expressions and evaluates them
// against listing text. Expressions support AND, OR, NOT, parenthesized
// grouping and quoted phrases, with precedence NOT > AND > OR. Matching is
// case-insensitive substring containment.
package filter

import (
	"fmt"
	"strings"
)

// ExprError reports a malformed keyword expression. It is raised at compile
// time only; a compiled expression never fails during evaluation.
type ExprError struct {
	Expr     string // full expression text
	Fragment string // offending fragment
	Reason   string
}

// Error returns a description naming the offending fragment.
// Parameters: none.
// Returns:
//   - string: formatted error message.
func (e *ExprError) Error() string {
	if e.Fragment == "" {
		return fmt.Sprintf("invalid filter expression %q: %s", e.Expr, e.Reason)
	}
	return fmt.Sprintf("invalid filter expression %q near %q: %s", e.Expr, e.Fragment, e.Reason)
}

// Expr is a compiled keyword expression. Evaluation is pure and total.
type Expr struct {
	src  string
	root node
}

// String returns the source text the expression was compiled from.
func (e *Expr) String() string {
	return e.src
}

// Match evaluates the expression against the given text.
// Parameters:
//   - text: searchable listing text (title, optionally plus description).
// Returns:
//   - bool: true when the expression matches.
func (e *Expr) Match(text string) bool {
	return e.root.match(strings.ToLower(text))
}

// Compile parses an expression into its evaluable form.
// Parameters:
//   - src: expression text, e.g. "(Kubota OR 'John Deere') AND NOT toy".
// Returns:
//   - *Expr: compiled expression.
//   - error: *ExprError if the syntax is invalid.
func Compile(src string) (*Expr, error) {
	tokens, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, tokens: tokens}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.eof() {
		return nil, &ExprError{Expr: src, Fragment: p.peek().text, Reason: "unexpected trailing input"}
	}
	return &Expr{src: src, root: root}, nil
}

type node interface {
	match(lowered string) bool
}

type termNode struct{ term string }

func (n termNode) match(lowered string) bool { return strings.Contains(lowered, n.term) }

type notNode struct{ inner node }

func (n notNode) match(lowered string) bool { return !n.inner.match(lowered) }

type andNode struct{ children []node }

func (n andNode) match(lowered string) bool {
	for _, c := range n.children {
		if !c.match(lowered) {
			return false
		}
	}
	return true
}

type orNode struct{ children []node }

func (n orNode) match(lowered string) bool {
	for _, c := range n.children {
		if c.match(lowered) {
			return true
		}
	}
	return false
}

type parser struct {
	src    string
	tokens []token
	pos    int
}

func (p *parser) eof() bool   { return p.pos >= len(p.tokens) }
func (p *parser) peek() token { return p.tokens[p.pos] }
func (p *parser) advance() token {
	t := p.tokens[p.pos]
	p.pos++
	return t
}

// parseOr handles the lowest-precedence level: and-groups joined by OR.
func (p *parser) parseOr() (node, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	children := []node{first}
	for !p.eof() && p.peek().kind == tokOr {
		p.advance()
		next, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, next)
	}
	if len(children) == 1 {
		return first, nil
	}
	return orNode{children: children}, nil
}

// parseAnd handles AND chains. Adjacent terms without an operator are joined
// with an implicit AND, so "Kubota tractor" means Kubota AND tractor.
func (p *parser) parseAnd() (node, error) {
	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	children := []node{first}
	for !p.eof() {
		switch p.peek().kind {
		case tokAnd:
			p.advance()
		case tokTerm, tokNot, tokLParen:
			// implicit AND
		default:
			if len(children) == 1 {
				return first, nil
			}
			return andNode{children: children}, nil
		}
		next, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		children = append(children, next)
	}
	if len(children) == 1 {
		return first, nil
	}
	return andNode{children: children}, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.eof() {
		return nil, &ExprError{Expr: p.src, Reason: "unexpected end of expression"}
	}
	t := p.advance()
	switch t.kind {
	case tokNot:
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{inner: inner}, nil
	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.eof() || p.peek().kind != tokRParen {
			return nil, &ExprError{Expr: p.src, Fragment: t.text, Reason: "missing closing parenthesis"}
		}
		p.advance()
		return inner, nil
	case tokTerm:
		return termNode{term: strings.ToLower(t.text)}, nil
	default:
		return nil, &ExprError{Expr: p.src, Fragment: t.text, Reason: "unexpected token"}
	}
}
