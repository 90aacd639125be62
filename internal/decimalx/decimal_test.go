package decimalx

import "testing"

func TestAddExact(t *testing.T) {
	a := MustParse("2.0001")
	b := MustParse("0.0001")
	got := a.Add(b)
	if got.String() != "2.0002" {
		t.Fatalf("got %s, want 2.0002", got.String())
	}
}

func TestWeightedAverageCost(t *testing.T) {
	// 2 @ 50.00 then 2 @ 60.00 -> avg 55.00
	qty1, price1 := MustParse("2"), MustParse("50.00")
	qty2, price2 := MustParse("2"), MustParse("60.00")

	totalCost := qty1.Mul(price1).Add(qty2.Mul(price2))
	totalQty := qty1.Add(qty2)

	avg, err := totalCost.Quo(totalQty)
	if err != nil {
		t.Fatal(err)
	}
	if avg.Cmp(MustParse("55")) != 0 {
		t.Fatalf("got %s, want 55", avg.String())
	}
}

func TestQuoByZero(t *testing.T) {
	if _, err := MustParse("1").Quo(Zero()); err == nil {
		t.Fatal("expected division by zero error")
	}
}

func TestCmpAndSign(t *testing.T) {
	if !MustParse("1.5").GreaterThan(MustParse("1.4")) {
		t.Fatal("expected 1.5 > 1.4")
	}
	if MustParse("0").Sign() != 0 {
		t.Fatal("expected zero sign 0")
	}
	if MustParse("-3").Sign() != -1 {
		t.Fatal("expected negative sign -1")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	d := MustParse("123.4500")
	b, err := d.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	var got Decimal
	if err := got.UnmarshalJSON(b); err != nil {
		t.Fatal(err)
	}
	if got.Cmp(d) != 0 {
		t.Fatalf("round trip mismatch: %s vs %s", got.String(), d.String())
	}
}

func TestScanValue(t *testing.T) {
	d := MustParse("9.99")
	v, err := d.Value()
	if err != nil {
		t.Fatal(err)
	}
	var got Decimal
	if err := got.Scan(v); err != nil {
		t.Fatal(err)
	}
	if got.Cmp(d) != 0 {
		t.Fatalf("scan/value mismatch: %s vs %s", got.String(), d.String())
	}
}
