package abi

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jns4u/viperc/binder"
	"github.com/jns4u/viperc/types"
)

func TestEmitFunction(t *testing.T) {
	bound := []*binder.Bound{
		{
			Name:      "transfer",
			Signature: "transfer(address,int128)",
			Selector:  0xa9059cbb,
			Args: []*binder.Param{
				{Name: "to", Type: types.NewBase(types.Address, nil, false)},
				{Name: "amount", Type: types.NewBase(types.Num, nil, false)},
			},
			ReturnType: types.NewBase(types.Bool, nil, false),
			Const:      false,
			IsCtor:     false,
		},
	}
	descs, err := Emit(bound)
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	want := []*Descriptor{
		{
			Name:      "transfer",
			Signature: "transfer(address,int128)",
			Selector:  0xa9059cbb,
			Inputs: []Param{
				{Name: "to", Type: "address"},
				{Name: "amount", Type: "int128"},
			},
			Outputs: []Param{{Name: "out", Type: "bool"}},
			Const:   false,
			Kind:    "function",
		},
	}
	if diff := cmp.Diff(want, descs); diff != "" {
		t.Errorf("Emit() mismatch (-want +got):\n%s", diff)
	}
}

func TestEmitConstructorHasNoOutputsByDefault(t *testing.T) {
	bound := []*binder.Bound{
		{Name: "__init__", IsCtor: true},
	}
	descs, err := Emit(bound)
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	if descs[0].Kind != "constructor" {
		t.Errorf("Kind = %q, want %q", descs[0].Kind, "constructor")
	}
	if descs[0].Outputs != nil {
		t.Errorf("Outputs = %+v, want nil for a function with no declared return", descs[0].Outputs)
	}
}

func TestEmitPreservesOrder(t *testing.T) {
	bound := []*binder.Bound{
		{Name: "a"},
		{Name: "b"},
		{Name: "c"},
	}
	descs, err := Emit(bound)
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	for i, want := range []string{"a", "b", "c"} {
		if descs[i].Name != want {
			t.Errorf("descs[%d].Name = %q, want %q", i, descs[i].Name, want)
		}
	}
}
