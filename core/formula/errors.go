package formula

import (
	"errors"
	"fmt"
)

// Kind classifies why a formula could not be turned into a price
type Kind string

const (
	KindUnresolvedVariable Kind = "unresolved_variable"
	KindAmbiguousExternal  Kind = "ambiguous_external_variable"
	KindUnsafeExpression   Kind = "unsafe_expression"
	KindNonFiniteResult    Kind = "non_finite_result"
)

// UnresolvedVariableError reports a formula reference with no usable binding.
type UnresolvedVariableError struct {
	// Identifier is the backend-assigned variable key
	Identifier string

	// Name is the semantic variable name, when known
	Name string
}

func (e *UnresolvedVariableError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("variable %q (%s) has no value", e.Name, e.Identifier)
	}
	return fmt.Sprintf("formula references unbound variable %q", e.Identifier)
}

// Kind returns KindUnresolvedVariable
func (e *UnresolvedVariableError) Kind() Kind { return KindUnresolvedVariable }

// AmbiguousExternalVariableError reports a shipper-supplied variable that is
// neither distance nor tonnage.
type AmbiguousExternalVariableError struct {
	Name       string
	Identifier string
}

func (e *AmbiguousExternalVariableError) Error() string {
	return fmt.Sprintf("variable %q (%s) is marked as shipper-supplied but is not distance or tonnage", e.Name, e.Identifier)
}

// Kind returns KindAmbiguousExternal
func (e *AmbiguousExternalVariableError) Kind() Kind { return KindAmbiguousExternal }

// UnsafeExpressionError reports an expression outside the arithmetic grammar.
// Offset is -1 when the characters were all allowed but the syntax was not.
type UnsafeExpressionError struct {
	Expression string
	Offset     int
	Char       rune
	Reason     string
}

func (e *UnsafeExpressionError) Error() string {
	if e.Offset >= 0 && e.Reason == "" {
		return fmt.Sprintf("expression contains disallowed character %q at offset %d", e.Char, e.Offset)
	}
	return fmt.Sprintf("malformed expression %q: %s", e.Expression, e.Reason)
}

// Kind returns KindUnsafeExpression
func (e *UnsafeExpressionError) Kind() Kind { return KindUnsafeExpression }

// NonFiniteResultError reports NaN or infinity, including division by zero.
type NonFiniteResultError struct {
	Expression string
	Operation  string
}

func (e *NonFiniteResultError) Error() string {
	return fmt.Sprintf("expression %q is not finite (%s)", e.Expression, e.Operation)
}

// Kind returns KindNonFiniteResult
func (e *NonFiniteResultError) Kind() Kind { return KindNonFiniteResult }

// KindOf reports the Kind of a formula error, or "" for anything else.
func KindOf(err error) Kind {
	var k interface{ Kind() Kind }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return ""
}
