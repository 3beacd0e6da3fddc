package curve

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestSpotPrice(t *testing.T) {
	price, err := SpotPrice(dec("1000000000"), dec("30"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := dec("0.00000003")
	if !price.Equal(expected) {
		t.Errorf("expected %s, got %s", expected, price)
	}
}

func TestSpotPriceInvalidCurve(t *testing.T) {
	if _, err := SpotPrice(decimal.Zero, dec("30")); !errors.Is(err, ErrInvalidCurve) {
		t.Errorf("expected ErrInvalidCurve, got %v", err)
	}
	if _, err := SpotPrice(dec("-1"), dec("30")); !errors.Is(err, ErrInvalidCurve) {
		t.Errorf("expected ErrInvalidCurve for negative reserve, got %v", err)
	}
}

func TestTokensOut(t *testing.T) {
	// 1 SOL into (1e9 tokens, 30 SOL): out = 1e9 - 30e9/31 = 1e9/31
	out, err := TokensOut(dec("1"), dec("1000000000"), dec("30"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := dec("1000000000").Div(dec("31"))
	if !out.Sub(expected).Abs().LessThan(dec("0.000001")) {
		t.Errorf("expected ~%s, got %s", expected, out)
	}
}

func TestTokensOutInvalidInput(t *testing.T) {
	cases := []struct {
		name              string
		solIn, vTok, vSol decimal.Decimal
	}{
		{"zero sol", decimal.Zero, dec("1000"), dec("30")},
		{"zero tokens", dec("1"), decimal.Zero, dec("30")},
		{"zero vsol", dec("1"), dec("1000"), decimal.Zero},
		{"negative sol", dec("-1"), dec("1000"), dec("30")},
	}
	for _, tc := range cases {
		if _, err := TokensOut(tc.solIn, tc.vTok, tc.vSol); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", tc.name, err)
		}
	}
}

func TestSolOut(t *testing.T) {
	// Selling 1e9/31 tokens into (1e9/31 + rest, y) is exercised end to end
	// in the executor tests; here just verify the invariant shape.
	out, err := SolOut(dec("100"), dec("1000"), dec("30"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// out = 30 - 30000/1100 = 30*100/1100
	expected := dec("30").Mul(dec("100")).Div(dec("1100"))
	if !out.Sub(expected).Abs().LessThan(dec("0.000000001")) {
		t.Errorf("expected ~%s, got %s", expected, out)
	}
}

// Buying tokens for s SOL and selling them straight back can never return
// more than s; the gap is decimal rounding only.
func TestRoundTripNeverProfits(t *testing.T) {
	x := dec("1000000000")
	y := dec("30")
	for _, s := range []string{"0.001", "0.5", "1", "5", "29.999"} {
		solIn := dec(s)
		tokens, err := TokensOut(solIn, x, y)
		if err != nil {
			t.Fatalf("tokens_out(%s): %v", s, err)
		}
		back, err := SolOut(tokens, x.Sub(tokens), y.Add(solIn))
		if err != nil {
			t.Fatalf("sol_out(%s): %v", s, err)
		}
		if back.GreaterThan(solIn.Add(dec("0.000000001"))) {
			t.Errorf("round trip of %s SOL returned %s", solIn, back)
		}
	}
}
