package formula

import (
	"go/constant"
	"go/token"
	"math"
	"math/rand"
	"strconv"
	"testing"
)

// exprGen builds random arithmetic over small integers and computes the
// exact value alongside the rendered text.
type exprGen struct {
	rng *rand.Rand
	// maxAbs tracks the largest intermediate magnitude for the tolerance
	maxAbs float64
	// rejected is set when a divisor is too small to compare against floats
	rejected bool
}

func (g *exprGen) note(v constant.Value) {
	f, _ := constant.Float64Val(v)
	if a := math.Abs(f); a > g.maxAbs {
		g.maxAbs = a
	}
}

func (g *exprGen) gen(depth int) (string, constant.Value) {
	if depth == 0 || g.rng.Intn(4) == 0 {
		n := int64(g.rng.Intn(99) + 1)
		if g.rng.Intn(5) == 0 {
			return "( -" + strconv.FormatInt(n, 10) + " )", constant.MakeInt64(-n)
		}
		return strconv.FormatInt(n, 10), constant.MakeInt64(n)
	}

	ls, lv := g.gen(depth - 1)
	rs, rv := g.gen(depth - 1)

	ops := []struct {
		text string
		tok  token.Token
	}{
		{"+", token.ADD},
		{"-", token.SUB},
		{"*", token.MUL},
		{"/", token.QUO},
	}
	op := ops[g.rng.Intn(len(ops))]

	if op.tok == token.QUO {
		f, _ := constant.Float64Val(rv)
		if math.Abs(f) < 1 {
			g.rejected = true
			return "1", constant.MakeInt64(1)
		}
	}

	v := constant.BinaryOp(lv, op.tok, rv)
	g.note(v)
	return "( " + ls + " " + op.text + " " + rs + " )", v
}

func TestEvaluateMatchesExactArithmetic(t *testing.T) {
	rng := rand.New(rand.NewSource(20240601))

	checked := 0
	for i := 0; checked < 2000 && i < 10000; i++ {
		g := &exprGen{rng: rng, maxAbs: 1}
		src, want := g.gen(4)
		if g.rejected {
			continue
		}
		checked++

		wantF, _ := constant.Float64Val(want)
		got, err := Evaluate(src)
		if err != nil {
			t.Fatalf("Evaluate(%q) failed: %v", src, err)
		}
		if diff := math.Abs(got - wantF); diff > 1e-9*g.maxAbs {
			t.Fatalf("Evaluate(%q) = %v, want %v", src, got, wantF)
		}
	}
	if checked < 1000 {
		t.Fatalf("only %d expressions generated", checked)
	}
}
