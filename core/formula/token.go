// Package formula turns backend-authored formula token sequences into plain
// arithmetic and evaluates it.
//
// A formula is an ordered list of tokens as produced by the formula builder:
// operator glyphs ("×", "÷", "^"), ASCII operators, parentheses, numeric
// literals and variable identifiers. Identifiers are backend-assigned keys;
// their values are supplied per pricing tier as bindings.
package formula

import (
	"strconv"
	"strings"
)

// Token is one element of a formula
type Token string

// glyphs maps builder operator glyphs to their ASCII form
var glyphs = map[Token]string{
	"×": "*",
	"÷": "/",
	"^": "**",
	"−": "-",
}

var asciiOperators = map[Token]bool{
	"+":  true,
	"-":  true,
	"*":  true,
	"/":  true,
	"**": true,
	"(":  true,
	")":  true,
}

// Tokens converts raw strings into a formula
func Tokens(raw ...string) []Token {
	out := make([]Token, len(raw))
	for i, s := range raw {
		out[i] = Token(s)
	}
	return out
}

// IsOperator reports whether t is an operator glyph, an ASCII operator or a
// parenthesis.
func IsOperator(t Token) bool {
	if asciiOperators[t] {
		return true
	}
	_, ok := glyphs[t]
	return ok
}

// IsLiteral reports whether t is an unsigned decimal literal such as "2",
// "0.8" or ".5".
func IsLiteral(t Token) bool {
	s := string(t)
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
		default:
			return false
		}
	}
	if digits == 0 {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// IsReference reports whether t names a variable
func IsReference(t Token) bool {
	if strings.TrimSpace(string(t)) == "" {
		return false
	}
	return !IsOperator(t) && !IsLiteral(t)
}

// References returns the distinct variable identifiers in order of first use
func References(tokens []Token) []string {
	seen := make(map[string]bool)
	var refs []string
	for _, t := range tokens {
		if !IsReference(t) || seen[string(t)] {
			continue
		}
		seen[string(t)] = true
		refs = append(refs, string(t))
	}
	return refs
}

// FormatValue renders a bound value as a literal the evaluator accepts.
// Non-finite values render as "NaN"/"+Inf" and are rejected downstream.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Normalize rewrites tokens into a space-separated arithmetic expression.
// Bound identifiers become their values, glyphs become ASCII operators and
// everything else passes through unchanged.
func Normalize(tokens []Token, bindings map[string]float64) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		if v, ok := bindings[string(t)]; ok {
			parts[i] = FormatValue(v)
			continue
		}
		if op, ok := glyphs[t]; ok {
			parts[i] = op
			continue
		}
		parts[i] = string(t)
	}
	return strings.Join(parts, " ")
}

// Bind is Normalize with a completeness check: every identifier the formula
// references must be bound.
func Bind(tokens []Token, bindings map[string]float64) (string, error) {
	for _, ref := range References(tokens) {
		if _, ok := bindings[ref]; !ok {
			return "", &UnresolvedVariableError{Identifier: ref}
		}
	}
	return Normalize(tokens, bindings), nil
}

// Display renders the formula for people, replacing identifiers with their
// variable names. Glyphs are kept as authored.
func Display(tokens []Token, names map[string]string) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		if name, ok := names[string(t)]; ok {
			parts[i] = name
			continue
		}
		parts[i] = string(t)
	}
	return strings.Join(parts, " ")
}
