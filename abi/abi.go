// Package abi implements the ABI emitter (spec.md §4.I): producing
// the externally visible descriptor list from a module's bound
// functions. Grounded on binder.Bound's already-computed signature/
// selector/constancy fields; this package only reshapes them into
// the descriptor spec.md §4.I names.
package abi

import (
	"github.com/jns4u/viperc/binder"
	"github.com/jns4u/viperc/types"
)

// Param is one input or output entry in a Descriptor.
type Param struct {
	Name string
	Type string // canonical ABI spelling
}

// Descriptor is one function's externally visible entry (spec.md
// §4.I): canonical signature, declared inputs, a single declared
// output (field name fixed to "out"), constancy, and kind.
type Descriptor struct {
	Name      string
	Signature string
	Selector  uint32
	Inputs    []Param
	Outputs   []Param
	Const     bool
	Kind      string // "constructor" or "function"
}

// Emit builds one Descriptor per bound function, preserving source
// order (spec.md §5, "Ordering guarantees").
func Emit(bound []*binder.Bound) ([]*Descriptor, error) {
	descriptors := make([]*Descriptor, len(bound))
	for i, b := range bound {
		d, err := emitOne(b)
		if err != nil {
			return nil, err
		}
		descriptors[i] = d
	}
	return descriptors, nil
}

func emitOne(b *binder.Bound) (*Descriptor, error) {
	inputs := make([]Param, len(b.Args))
	for i, p := range b.Args {
		c, err := types.CanonicalizeType(p.Type)
		if err != nil {
			return nil, err
		}
		inputs[i] = Param{Name: p.Name, Type: c}
	}

	var outputs []Param
	if b.ReturnType != nil {
		c, err := types.CanonicalizeType(b.ReturnType)
		if err != nil {
			return nil, err
		}
		outputs = []Param{{Name: "out", Type: c}}
	}

	kind := "function"
	if b.IsCtor {
		kind = "constructor"
	}

	return &Descriptor{
		Name:      b.Name,
		Signature: b.Signature,
		Selector:  b.Selector,
		Inputs:    inputs,
		Outputs:   outputs,
		Const:     b.Const,
		Kind:      kind,
	}, nil
}
