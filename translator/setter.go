// Setter synthesizer (spec.md §4.H): turns a resolved assignment
// target address and an RHS value into the valency-0 LIR subtree that
// writes it, recursing structurally for List and Struct targets.
package translator

import (
	"github.com/jns4u/viperc/lir"
	"github.com/jns4u/viperc/types"
	"github.com/jns4u/viperc/xerrs"
)

// MakeSetter builds the store subtree for target (a located address
// of type typ) given rhs. Mapping is not directly assignable as a
// whole value (spec.md §4.H): only its individual entries are,
// through a Subscript target already resolved to a Base/composite
// element address by resolveTarget.
func (t *Translator) MakeSetter(target *lir.Node, typ *types.Type, rhs *lir.Node) (*lir.Node, error) {
	switch typ.Kind {
	case types.KindBase:
		return t.makeBaseSetter(target, typ, rhs)
	case types.KindByteArray:
		return t.makeByteArraySetter(target, typ, rhs)
	case types.KindMapping:
		return nil, xerrs.At(xerrs.Structure, nil, "cannot assign a whole mapping; assign to one of its entries")
	case types.KindList:
		return t.makeListSetter(target, typ, rhs)
	case types.KindStruct:
		return t.makeStructSetter(target, typ, rhs)
	default:
		return nil, xerrs.At(xerrs.Structure, nil, "cannot assign a value of kind %v", typ.Kind)
	}
}

func storeOpcodeFor(loc lir.Location) (string, error) {
	switch loc {
	case lir.LocStorage:
		return "sstore", nil
	case lir.LocMemory:
		return "mstore", nil
	default:
		return "", xerrs.At(xerrs.Structure, nil, "cannot assign to a %v-located target", loc)
	}
}

func (t *Translator) makeBaseSetter(target *lir.Node, typ *types.Type, rhs *lir.Node) (*lir.Node, error) {
	converted, err := t.convertBase(rhs, typ)
	if err != nil {
		return nil, err
	}
	storeOp, err := storeOpcodeFor(target.Loc)
	if err != nil {
		return nil, err
	}
	return t.opLoc(storeOp, nil, lir.LocNone, target, converted), nil
}

// loadWord/storeWord read or write one 32-byte word at base+byteOffset,
// picking the load/store opcode for base's location. base is itself a
// located address value (valency 1), never re-evaluated.
func (t *Translator) loadWord(base *lir.Node, byteOffset int64) *lir.Node {
	loadOp := "mload"
	switch base.Loc {
	case lir.LocStorage:
		loadOp = "sload"
	case lir.LocCalldata:
		loadOp = "calldataload"
	case lir.LocCode:
		loadOp = "codeload"
	}
	addr := t.op("add", nil, base, lir.Int(byteOffset, nil))
	return t.op(loadOp, nil, addr)
}

func (t *Translator) storeWord(base *lir.Node, byteOffset int64, val *lir.Node) *lir.Node {
	storeOp := "mstore"
	if base.Loc == lir.LocStorage {
		storeOp = "sstore"
	}
	addr := t.op("add", nil, base, lir.Int(byteOffset, nil))
	return t.opLoc(storeOp, nil, lir.LocNone, addr, val)
}

// makeByteArraySetter copies a byte array's length word and every
// body word from rhs into target, or zero-fills it on a Null rhs
// (spec.md §4.H). Dynamic lengths are out of scope (spec.md §5): the
// copy always spans the target's full declared capacity.
func (t *Translator) makeByteArraySetter(target *lir.Node, typ *types.Type, rhs *lir.Node) (*lir.Node, error) {
	words := (typ.MaxLen+31)/32 + 1

	if types.Equal(rhs.Typ, types.NullType) {
		stmts := make([]*lir.Node, 0, words)
		for w := 0; w < words; w++ {
			stmts = append(stmts, t.storeWord(target, int64(32*w), lir.Int(0, nil)))
		}
		return lir.SeqNode(stmts...), nil
	}
	if rhs.Typ == nil || rhs.Typ.Kind != types.KindByteArray {
		return nil, xerrs.At(xerrs.TypeMismatch, nil, "byte-array assignment requires a byte-array value")
	}
	stmts := make([]*lir.Node, 0, words)
	for w := 0; w < words; w++ {
		stmts = append(stmts, t.storeWord(target, int64(32*w), t.loadWord(rhs, int64(32*w))))
	}
	return lir.SeqNode(stmts...), nil
}

// constListElementAddr computes a list element's address for a
// translate-time-known index, bypassing the runtime range clamp that
// listElementAddress applies for a dynamic index (spec.md §4.H: the
// setter always knows every element's index statically).
func (t *Translator) constListElementAddr(base *lir.Node, listType *types.Type, idx int) (*lir.Node, error) {
	if base.Loc == lir.LocStorage {
		h := t.op("sha3_32", nil, base)
		return t.opLoc("add", listType.Elem, lir.LocStorage, h, lir.Int(int64(idx), nil)), nil
	}
	elemSize, err := types.GetSizeOfType(listType.Elem)
	if err != nil {
		return nil, err
	}
	return t.opLoc("add", listType.Elem, base.Loc, base, lir.Int(int64(idx)*32*int64(elemSize), nil)), nil
}

// makeListSetter recurses element by element (spec.md §4.H): a Null
// rhs zero-fills every element, a `multi` literal assigns its i-th
// element to target's i-th slot, and any other (located, same-type)
// rhs is copied element by element.
func (t *Translator) makeListSetter(target *lir.Node, typ *types.Type, rhs *lir.Node) (*lir.Node, error) {
	if types.Equal(rhs.Typ, types.NullType) {
		stmts := make([]*lir.Node, 0, typ.Count)
		for i := 0; i < typ.Count; i++ {
			addr, err := t.constListElementAddr(target, typ, i)
			if err != nil {
				return nil, err
			}
			s, err := t.MakeSetter(addr, typ.Elem, lir.NullNode())
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, s)
		}
		return lir.SeqNode(stmts...), nil
	}
	if rhs.Typ == nil || rhs.Typ.Kind != types.KindList || rhs.Typ.Count != typ.Count {
		return nil, xerrs.At(xerrs.TypeMismatch, nil, "list assignment requires a matching list value")
	}
	if rhs.Typ.Elem == types.Mixed {
		return nil, xerrs.At(xerrs.TypeMismatch, nil, "list literal elements must share a common type")
	}

	if rhs.Mnemonic() == "multi" {
		stmts := make([]*lir.Node, 0, typ.Count)
		for i, elem := range rhs.Args {
			addr, err := t.constListElementAddr(target, typ, i)
			if err != nil {
				return nil, err
			}
			s, err := t.MakeSetter(addr, typ.Elem, elem)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, s)
		}
		return lir.SeqNode(stmts...), nil
	}

	stmts := make([]*lir.Node, 0, typ.Count)
	for i := 0; i < typ.Count; i++ {
		srcAddr, err := t.constListElementAddr(rhs, rhs.Typ, i)
		if err != nil {
			return nil, err
		}
		dstAddr, err := t.constListElementAddr(target, typ, i)
		if err != nil {
			return nil, err
		}
		s, err := t.MakeSetter(dstAddr, typ.Elem, srcAddr)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return lir.SeqNode(stmts...), nil
}

func sameFieldNames(a, b *types.Type) bool {
	an, bn := types.StructFieldNames(a), types.StructFieldNames(b)
	if len(an) != len(bn) {
		return false
	}
	for i := range an {
		if an[i] != bn[i] {
			return false
		}
	}
	return true
}

// makeStructSetter mirrors makeListSetter field by field, in the same
// sorted field order used for storage layout (spec.md §4.H).
func (t *Translator) makeStructSetter(target *lir.Node, typ *types.Type, rhs *lir.Node) (*lir.Node, error) {
	names := types.StructFieldNames(typ)

	if types.Equal(rhs.Typ, types.NullType) {
		stmts := make([]*lir.Node, 0, len(names))
		for _, name := range names {
			addr, err := t.structFieldAddress(target, typ, name)
			if err != nil {
				return nil, err
			}
			s, err := t.MakeSetter(addr, typ.Members[name], lir.NullNode())
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, s)
		}
		return lir.SeqNode(stmts...), nil
	}
	if rhs.Typ == nil || rhs.Typ.Kind != types.KindStruct || !sameFieldNames(rhs.Typ, typ) {
		return nil, xerrs.At(xerrs.TypeMismatch, nil, "struct assignment requires a matching struct value")
	}

	if rhs.Mnemonic() == "multi" {
		stmts := make([]*lir.Node, 0, len(names))
		for i, name := range names {
			addr, err := t.structFieldAddress(target, typ, name)
			if err != nil {
				return nil, err
			}
			s, err := t.MakeSetter(addr, typ.Members[name], rhs.Args[i])
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, s)
		}
		return lir.SeqNode(stmts...), nil
	}

	stmts := make([]*lir.Node, 0, len(names))
	for _, name := range names {
		srcAddr, err := t.structFieldAddress(rhs, rhs.Typ, name)
		if err != nil {
			return nil, err
		}
		dstAddr, err := t.structFieldAddress(target, typ, name)
		if err != nil {
			return nil, err
		}
		s, err := t.MakeSetter(dstAddr, typ.Members[name], srcAddr)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return lir.SeqNode(stmts...), nil
}
