package types

import "testing"

func TestJSONRoundTripThroughDriver(t *testing.T) {
	col := NewJSON(map[string]float64{"couche": 1.2})
	v, err := col.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}

	var out JSON[map[string]float64]
	if err := out.Scan(v); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if out.V["couche"] != 1.2 {
		t.Fatalf("unexpected scanned value %v", out.V)
	}
}

func TestJSONScanNilResets(t *testing.T) {
	out := NewJSON([]string{"a"})
	if err := out.Scan(nil); err != nil {
		t.Fatalf("scan nil: %v", err)
	}
	if out.V != nil {
		t.Fatalf("expected nil slice, got %v", out.V)
	}
	if err := out.Scan(42); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}
