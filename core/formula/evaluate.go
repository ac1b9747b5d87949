package formula

import (
	"math"
	"strconv"
	"unicode/utf8"
)

// maxDepth bounds parenthesis and unary nesting
const maxDepth = 128

// Allowed reports whether r may appear in an expression
func Allowed(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r == ' ', r == '+', r == '-', r == '*', r == '/', r == '(', r == ')', r == '.':
		return true
	}
	return false
}

// CheckSafe returns an *UnsafeExpressionError for the first character outside
// the arithmetic whitelist.
func CheckSafe(expression string) error {
	for i, r := range expression {
		if r == utf8.RuneError || !Allowed(r) {
			return &UnsafeExpressionError{Expression: expression, Offset: i, Char: r}
		}
	}
	return nil
}

// Evaluate computes an arithmetic expression over + - * / ** and parentheses
// with the usual precedence. The character whitelist is checked before any
// parsing happens.
func Evaluate(expression string) (float64, error) {
	if err := CheckSafe(expression); err != nil {
		return 0, err
	}

	p := &parser{src: expression}
	p.next()
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	if p.tok.kind != tokEOF {
		return 0, p.malformed("unexpected " + p.tok.text)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &NonFiniteResultError{Expression: expression, Operation: "result"}
	}
	return v, nil
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokNumber
	tokPlus
	tokMinus
	tokStar
	tokPow
	tokSlash
	tokLParen
	tokRParen
)

type lexeme struct {
	kind tokKind
	text string
	num  float64
}

type parser struct {
	src   string
	pos   int
	depth int
	tok   lexeme
	err   error
}

func (p *parser) malformed(reason string) error {
	return &UnsafeExpressionError{Expression: p.src, Offset: -1, Reason: reason}
}

// next advances to the following lexeme. Only whitelisted ASCII reaches here.
func (p *parser) next() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
	if p.pos >= len(p.src) {
		p.tok = lexeme{kind: tokEOF, text: "end of expression"}
		return
	}

	c := p.src[p.pos]
	switch c {
	case '+':
		p.tok = lexeme{kind: tokPlus, text: "+"}
	case '-':
		p.tok = lexeme{kind: tokMinus, text: "-"}
	case '/':
		p.tok = lexeme{kind: tokSlash, text: "/"}
	case '(':
		p.tok = lexeme{kind: tokLParen, text: "("}
	case ')':
		p.tok = lexeme{kind: tokRParen, text: ")"}
	case '*':
		if p.pos+1 < len(p.src) && p.src[p.pos+1] == '*' {
			p.tok = lexeme{kind: tokPow, text: "**"}
			p.pos += 2
			return
		}
		p.tok = lexeme{kind: tokStar, text: "*"}
	default:
		start := p.pos
		for p.pos < len(p.src) && (p.src[p.pos] == '.' || (p.src[p.pos] >= '0' && p.src[p.pos] <= '9')) {
			p.pos++
		}
		text := p.src[start:p.pos]
		num, err := strconv.ParseFloat(text, 64)
		if math.IsInf(num, 0) {
			p.tok = lexeme{kind: tokNumber, text: text}
			if p.err == nil {
				p.err = &NonFiniteResultError{Expression: p.src, Operation: "literal out of range"}
			}
			return
		}
		if err != nil || text == "." {
			p.tok = lexeme{kind: tokNumber, text: text}
			if p.err == nil {
				p.err = p.malformed("invalid number " + strconv.Quote(text))
			}
			return
		}
		p.tok = lexeme{kind: tokNumber, text: text, num: num}
		return
	}
	p.pos++
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > maxDepth {
		return p.malformed("nesting too deep")
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

// expr := term (('+'|'-') term)*
func (p *parser) expr() (float64, error) {
	left, err := p.term()
	if err != nil {
		return 0, err
	}
	for p.tok.kind == tokPlus || p.tok.kind == tokMinus {
		op := p.tok.kind
		p.next()
		right, err := p.term()
		if err != nil {
			return 0, err
		}
		if op == tokPlus {
			left, err = p.finite(left+right, "addition")
		} else {
			left, err = p.finite(left-right, "subtraction")
		}
		if err != nil {
			return 0, err
		}
	}
	return left, nil
}

// term := unary (('*'|'/') unary)*
func (p *parser) term() (float64, error) {
	left, err := p.unary()
	if err != nil {
		return 0, err
	}
	for p.tok.kind == tokStar || p.tok.kind == tokSlash {
		op := p.tok.kind
		p.next()
		right, err := p.unary()
		if err != nil {
			return 0, err
		}
		if op == tokStar {
			left, err = p.finite(left*right, "multiplication")
		} else {
			if right == 0 {
				return 0, &NonFiniteResultError{Expression: p.src, Operation: "division by zero"}
			}
			left, err = p.finite(left/right, "division")
		}
		if err != nil {
			return 0, err
		}
	}
	return left, nil
}

// unary := ('+'|'-') unary | power
func (p *parser) unary() (float64, error) {
	if p.tok.kind != tokPlus && p.tok.kind != tokMinus {
		return p.power()
	}
	if err := p.enter(); err != nil {
		return 0, err
	}
	defer p.leave()

	neg := p.tok.kind == tokMinus
	p.next()
	v, err := p.unary()
	if err != nil {
		return 0, err
	}
	if neg {
		return -v, nil
	}
	return v, nil
}

// power := primary ('**' unary)?
func (p *parser) power() (float64, error) {
	base, err := p.primary()
	if err != nil {
		return 0, err
	}
	if p.tok.kind != tokPow {
		return base, nil
	}
	p.next()
	if err := p.enter(); err != nil {
		return 0, err
	}
	defer p.leave()

	exp, err := p.unary()
	if err != nil {
		return 0, err
	}
	return p.finite(math.Pow(base, exp), "exponentiation")
}

// primary := number | '(' expr ')'
func (p *parser) primary() (float64, error) {
	if p.err != nil {
		return 0, p.err
	}
	switch p.tok.kind {
	case tokNumber:
		v := p.tok.num
		p.next()
		return v, nil
	case tokLParen:
		if err := p.enter(); err != nil {
			return 0, err
		}
		defer p.leave()

		p.next()
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		if p.tok.kind != tokRParen {
			return 0, p.malformed("missing closing parenthesis")
		}
		p.next()
		return v, nil
	case tokEOF:
		return 0, p.malformed("unexpected end of expression")
	default:
		return 0, p.malformed("unexpected " + p.tok.text)
	}
}

func (p *parser) finite(v float64, op string) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &NonFiniteResultError{Expression: p.src, Operation: op}
	}
	return v, nil
}
