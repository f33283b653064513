package types

import (
	"encoding/json"
	"testing"
)

func TestNullableUnmarshal(t *testing.T) {
	type payload struct {
		Waste Nullable[float64] `json:"waste_pct"`
	}

	var got payload
	if err := json.Unmarshal([]byte(`{"waste_pct": 0.15}`), &got); err != nil {
		t.Fatalf("unmarshal value: %v", err)
	}
	if !got.Waste.Valid || got.Waste.Value == nil {
		t.Fatalf("expected valid value, got %+v", got.Waste)
	}
	if *got.Waste.Value != 0.15 {
		t.Fatalf("unexpected value %v", *got.Waste.Value)
	}

	got = payload{}
	if err := json.Unmarshal([]byte(`{"waste_pct": null}`), &got); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if !got.Waste.Valid || got.Waste.Value != nil {
		t.Fatalf("expected null to be valid but nil, got %+v", got.Waste)
	}

	got = payload{}
	if err := json.Unmarshal([]byte(`{}`), &got); err != nil {
		t.Fatalf("unmarshal missing: %v", err)
	}
	if got.Waste.Valid {
		t.Fatalf("expected invalid flag for missing field, got %+v", got.Waste)
	}

	if err := json.Unmarshal([]byte(`{"waste_pct": "high"}`), &got); err == nil {
		t.Fatal("expected type error")
	}
}

func TestNullableClone(t *testing.T) {
	original := Set(int64(1250))
	clone := original.Clone()
	*clone.Value = 99
	if *original.Value != 1250 {
		t.Fatalf("clone shares storage with original")
	}

	null := Null[int64]().Clone()
	if !null.Valid || null.Value != nil {
		t.Fatalf("expected explicit null to survive clone, got %+v", null)
	}
}
