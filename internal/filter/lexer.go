package filter

import "strings"

type tokenKind int

const (
	tokTerm tokenKind = iota
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
}

// lex splits an expression into tokens. Quoted phrases ('...' or "...") become
// single terms; bare words AND, OR and NOT (any case) are operators.
func lex(src string) ([]token, error) {
	var tokens []token
	runes := []rune(src)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			i++
		case r == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "("})
			i++
		case r == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")"})
			i++
		case r == '\'' || r == '"':
			quote := r
			j := i + 1
			for j < len(runes) && runes[j] != quote {
				j++
			}
			if j >= len(runes) {
				return nil, &ExprError{Expr: src, Fragment: string(runes[i:]), Reason: "unterminated quote"}
			}
			phrase := string(runes[i+1 : j])
			if phrase == "" {
				return nil, &ExprError{Expr: src, Fragment: string(quote) + string(quote), Reason: "empty phrase"}
			}
			tokens = append(tokens, token{kind: tokTerm, text: phrase})
			i = j + 1
		default:
			j := i
			for j < len(runes) && !isDelimiter(runes[j]) {
				j++
			}
			word := string(runes[i:j])
			switch strings.ToUpper(word) {
			case "AND":
				tokens = append(tokens, token{kind: tokAnd, text: word})
			case "OR":
				tokens = append(tokens, token{kind: tokOr, text: word})
			case "NOT":
				tokens = append(tokens, token{kind: tokNot, text: word})
			default:
				tokens = append(tokens, token{kind: tokTerm, text: word})
			}
			i = j
		}
	}
	if len(tokens) == 0 {
		return nil, &ExprError{Expr: src, Reason: "empty expression"}
	}
	return tokens, nil
}

func isDelimiter(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '(', ')', '\'', '"':
		return true
	}
	return false
}
