// Package translator implements the expression translator (spec.md
// §4.F), statement translator (§4.G), and setter synthesizer (§4.H).
// This file carries the shared per-translation state and the small
// helpers (clamps, located-value loads, element addressing) every
// form in expr.go/stmt.go/setter.go builds on.
//
// Grounded on lang/ysem/ir.go's IRGen (mutable generation state
// threaded through genExpr/genStmt) and lang/ysem/analyzer.go's
// typeCheckExpr/typeCheckStmt switch-over-node-kind dispatch.
package translator

import (
	"go.uber.org/zap"

	tctx "github.com/jns4u/viperc/context"
	"github.com/jns4u/viperc/lir"
	"github.com/jns4u/viperc/opcodes"
	"github.com/jns4u/viperc/selector"
	"github.com/jns4u/viperc/types"
	"github.com/jns4u/viperc/xerrs"
)

// DecimalScale is the fixed decimal scale factor: a decimal value x
// is represented as floor(x * DecimalScale) (spec.md §3, §6).
const DecimalScale int64 = 10_000_000_000

// maxExprDepth bounds AST recursion as defense-in-depth (spec.md §5;
// SPEC_FULL.md §4, Open Question decision). Not part of the public
// contract.
const maxExprDepth = 250

// Fixed memory prelude slot offsets holding the runtime-observable
// numeric bound constants (spec.md §3).
const (
	slotAddressBound = 32
	slotMaxNum       = 64
	slotMinNum       = 96
	slotMaxDecimal   = 128
	slotMinDecimal   = 160
)

// Prelude constant values (spec.md §3's memory layout invariants),
// each a full 32-byte big-endian hex word: 2^160, 2^128-1,
// -(2^128-1), (2^128-1)*10^10, and -(2^128-1)*10^10, the last two in
// 256-bit two's complement.
const (
	hexAddressBound = "0x0000000000000000000000010000000000000000000000000000000000000000"
	hexMaxNum       = "0x00000000000000000000000000000000ffffffffffffffffffffffffffffffff"
	hexMinNum       = "0xffffffffffffffffffffffffffffffff00000000000000000000000000000001"
	hexMaxDecimal   = "0x000000000000000000000002540be3fffffffffffffffffffffffffdabf41c00"
	hexMinDecimal   = "0xfffffffffffffffffffffffdabf41c00000000000000000000000002540be400"
)

// BuildPrelude builds the fixed sequence of stores every entry point
// runs first (spec.md §3, §4.J "prelude"): it captures the method
// selector into memory slot 0 by writing the first calldata word at
// offset 28 (so calldata's first 4 bytes, the selector, land at
// [28,32), the low-order end of the word mload(0) reads, and the bound
// constants below overwrite the rest of that word's span), then lays
// down the address-bound and num/decimal range constants at their
// fixed offsets.
func BuildPrelude(table opcodes.Table) *lir.Node {
	mstore := func(offset int64, val *lir.Node) *lir.Node {
		n, err := lir.New(table, "mstore", nil, lir.LocNone, lir.Int(offset, nil), val)
		if err != nil {
			panic(err)
		}
		return n
	}
	calldataload0, err := lir.New(table, "calldataload", nil, lir.LocNone, lir.Int(0, nil))
	if err != nil {
		panic(err)
	}
	return lir.SeqNode(
		mstore(28, calldataload0),
		mstore(slotAddressBound, lir.BigLiteral(hexAddressBound, nil)),
		mstore(slotMaxNum, lir.BigLiteral(hexMaxNum, nil)),
		mstore(slotMinNum, lir.BigLiteral(hexMinNum, nil)),
		mstore(slotMaxDecimal, lir.BigLiteral(hexMaxDecimal, nil)),
		mstore(slotMinDecimal, lir.BigLiteral(hexMinDecimal, nil)),
	)
}

// Translator lowers one function's AST to LIR against a single
// Context. It is not safe for concurrent use by multiple goroutines;
// translating multiple functions concurrently means giving each its
// own Translator and Context (spec.md §5).
type Translator struct {
	Table  opcodes.Table
	Hasher selector.Hasher
	Logger *zap.Logger
	Ctx    *tctx.Context

	depth      int
	loopDepth  int
	tempSuffix int
}

// New builds a Translator for one function's Context. A nil logger
// defaults to zap.NewNop() (SPEC_FULL.md §1).
func New(table opcodes.Table, hasher selector.Hasher, logger *zap.Logger, ctx *tctx.Context) *Translator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Translator{Table: table, Hasher: hasher, Logger: logger, Ctx: ctx}
}

func (t *Translator) enter() error {
	t.depth++
	if t.depth > maxExprDepth {
		return xerrs.At(xerrs.Structure, nil, "expression or statement nesting exceeds the translator's recursion depth limit")
	}
	return nil
}

func (t *Translator) leave() { t.depth-- }

// freshName returns a unique symbolic binder name, avoiding
// accidental capture under nested setters (spec.md §9).
func (t *Translator) freshName(prefix string) string {
	t.tempSuffix++
	return prefix + "_" + itoa(t.tempSuffix)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// op builds a none-located opcode/pseudo-opcode application. It
// panics only on an internal arity/valency mismatch, which is a
// translator bug, never a consequence of user input (every call site
// supplies exactly the opcode's declared arity).
func (t *Translator) op(mnemonic string, typ *types.Type, args ...*lir.Node) *lir.Node {
	return t.opLoc(mnemonic, typ, lir.LocNone, args...)
}

func (t *Translator) opLoc(mnemonic string, typ *types.Type, loc lir.Location, args ...*lir.Node) *lir.Node {
	n, err := lir.New(t.Table, mnemonic, typ, loc, args...)
	if err != nil {
		panic(err)
	}
	return n
}

func (t *Translator) clampNum(val *lir.Node, typ *types.Type) *lir.Node {
	lo := t.op("mload", nil, lir.Int(slotMinNum, nil))
	hi := t.op("mload", nil, lir.Int(slotMaxNum, nil))
	return t.op("clamp", typ, lo, hi, val)
}

func (t *Translator) clampDecimal(val *lir.Node, typ *types.Type) *lir.Node {
	lo := t.op("mload", nil, lir.Int(slotMinDecimal, nil))
	hi := t.op("mload", nil, lir.Int(slotMaxDecimal, nil))
	return t.op("clamp", typ, lo, hi, val)
}

func (t *Translator) clampBool(val *lir.Node) *lir.Node {
	return t.op("uclamplt", types.NewBase(types.Bool, nil, false), val, lir.Int(2, nil))
}

func (t *Translator) clampAddress(val *lir.Node) *lir.Node {
	bound := t.op("mload", nil, lir.Int(slotAddressBound, nil))
	return t.op("uclamplt", types.NewBase(types.Address, nil, false), val, bound)
}

// finishNum wraps a freshly constructed num/decimal value in its
// range clamp (spec.md §4.F, "After construction, if the node has no
// location and is num or decimal, wrap it in the appropriate range
// clamp; bool passes through"). Called at every point that
// materializes a new arithmetic result or loads a located scalar.
func (t *Translator) finishNum(n *lir.Node) *lir.Node {
	if n.Loc != lir.LocNone || !types.IsBaseType(n.Typ) {
		return n
	}
	switch n.Typ.BaseKind {
	case types.Num:
		return t.clampNum(n, n.Typ)
	case types.Decimal:
		return t.clampDecimal(n, n.Typ)
	default:
		return n
	}
}

// loadIfNeeded turns a located scalar (storage/memory/calldata/code
// address) into a none-located stack value, applying the type's
// safety clamp (spec.md §4.F's argument-load bullet, generalized to
// every located scalar read). A none-located node passes through
// unchanged. Composite-typed located nodes are a TypeMismatch: the
// caller wanted a scalar.
func (t *Translator) loadIfNeeded(n *lir.Node) (*lir.Node, error) {
	if n.Loc == lir.LocNone {
		return n, nil
	}
	if !types.IsBaseType(n.Typ) {
		return nil, xerrs.At(xerrs.TypeMismatch, nil, "expected a scalar value, found a located %v", n.Typ.Kind)
	}
	var loadOp string
	switch n.Loc {
	case lir.LocStorage:
		loadOp = "sload"
	case lir.LocMemory:
		loadOp = "mload"
	case lir.LocCalldata:
		loadOp = "calldataload"
	case lir.LocCode:
		loadOp = "codeload"
	default:
		return nil, xerrs.At(xerrs.Structure, nil, "unknown location %v", n.Loc)
	}
	loaded := t.op(loadOp, n.Typ, n)
	switch n.Typ.BaseKind {
	case types.Bool:
		return t.clampBool(loaded), nil
	case types.Address:
		return t.clampAddress(loaded), nil
	case types.Num, types.Decimal:
		return t.finishNum(loaded), nil
	default:
		// raw 256-bit kinds (num256, signed256, bytes32): no clamp.
		return loaded, nil
	}
}

// structFieldAddress computes the address of structType's fieldName
// member within base (spec.md §4.F's struct-field-access bullet):
// SHA3_32(base)+field_index in storage, base+preceding-sizes*32 in
// memory/calldata/code.
func (t *Translator) structFieldAddress(base *lir.Node, structType *types.Type, fieldName string) (*lir.Node, error) {
	fieldType, ok := structType.Members[fieldName]
	if !ok {
		return nil, xerrs.At(xerrs.TypeMismatch, nil, "struct has no field %q", fieldName)
	}
	idx, _ := types.FieldIndex(structType, fieldName)
	if base.Valency() != 1 {
		return nil, xerrs.At(xerrs.TypeMismatch, nil, "field access requires a single struct address")
	}

	if base.Loc == lir.LocStorage {
		h := t.op("sha3_32", nil, base)
		return t.opLoc("add", fieldType, lir.LocStorage, h, lir.Int(int64(idx), nil)), nil
	}
	byteOffset, err := precedingFieldBytes(structType, fieldName)
	if err != nil {
		return nil, err
	}
	return t.opLoc("add", fieldType, base.Loc, base, lir.Int(byteOffset, nil)), nil
}

func precedingFieldBytes(t *types.Type, fieldName string) (int64, error) {
	total := int64(0)
	for _, n := range types.StructFieldNames(t) {
		if n == fieldName {
			return total, nil
		}
		sz, err := types.GetSizeOfType(t.Members[n])
		if err != nil {
			return 0, err
		}
		total += 32 * int64(sz)
	}
	return 0, xerrs.At(xerrs.TypeMismatch, nil, "struct has no field %q", fieldName)
}

// listElementAddress computes the address of listType's index-th
// element within base (spec.md §4.F's list-index bullet): the index
// is range-clamped against count, then SHA3_32(base)+clamped_index in
// storage or base+index*(32*element_size) in memory/calldata/code.
func (t *Translator) listElementAddress(base *lir.Node, listType *types.Type, index *lir.Node) (*lir.Node, error) {
	loadedIdx, err := t.loadIfNeeded(index)
	if err != nil {
		return nil, err
	}
	if base.Valency() != 1 || loadedIdx.Valency() != 1 {
		return nil, xerrs.At(xerrs.TypeMismatch, nil, "list indexing requires a single list address and a single index value")
	}
	clamped := t.op("uclamplt", nil, loadedIdx, lir.Int(int64(listType.Count), nil))

	if base.Loc == lir.LocStorage {
		h := t.op("sha3_32", nil, base)
		return t.opLoc("add", listType.Elem, lir.LocStorage, h, clamped), nil
	}
	elemSize, err := types.GetSizeOfType(listType.Elem)
	if err != nil {
		return nil, err
	}
	delta := t.op("mul", nil, clamped, lir.Int(32*int64(elemSize), nil))
	return t.opLoc("add", listType.Elem, base.Loc, base, delta), nil
}

// mappingKeyAddress computes the storage address of mapType's value
// for key (spec.md §4.F's mapping-index bullet). Mappings are
// storage-only.
func (t *Translator) mappingKeyAddress(base *lir.Node, mapType *types.Type, key *lir.Node) (*lir.Node, error) {
	if base.Loc != lir.LocStorage {
		return nil, xerrs.At(xerrs.TypeMismatch, nil, "mapping access is storage-only")
	}
	converted, err := t.convertBase(key, mapType.KeyType)
	if err != nil {
		return nil, err
	}
	h := t.op("sha3_32", nil, base)
	return t.opLoc("add", mapType.ValueType, lir.LocStorage, h, converted), nil
}

// convertBase loads val if necessary and converts it to target's
// base kind: identity when kinds already match (after a unit
// compatibility check), num<->decimal rescaling, and the num->num256/
// signed256 widenings named in spec.md §4.G's return-statement bullet
// (reused here since assignment and return share the same
// conversion). types.NullType always converts to target's zero
// value.
func (t *Translator) convertBase(val *lir.Node, target *types.Type) (*lir.Node, error) {
	if types.Equal(val.Typ, types.NullType) {
		return lir.Int(0, target), nil
	}
	loaded, err := t.loadIfNeeded(val)
	if err != nil {
		return nil, err
	}
	if !types.IsBaseType(loaded.Typ) {
		return nil, xerrs.At(xerrs.TypeMismatch, nil, "cannot convert a %v value to %v", loaded.Typ.Kind, target.BaseKind)
	}
	src := loaded.Typ

	if src.BaseKind == target.BaseKind {
		if !types.AreUnitsCompatible(src.Unit, target.Unit) {
			return nil, xerrs.At(xerrs.TypeMismatch, nil, "incompatible units in conversion to %v", target.BaseKind)
		}
		return loaded, nil
	}
	if src.BaseKind == types.Num && target.BaseKind == types.Decimal {
		return t.finishNum(t.op("mul", target, loaded, lir.Int(DecimalScale, nil))), nil
	}
	if src.BaseKind == types.Decimal && target.BaseKind == types.Num {
		return t.finishNum(t.op("sdiv", target, loaded, lir.Int(DecimalScale, nil))), nil
	}
	if src.BaseKind == types.Num && target.BaseKind == types.Num256 {
		asserted := t.op("assert", nil, t.op("sge", nil, loaded, lir.Int(0, nil)))
		return lir.Retype(lir.SeqNode(asserted, loaded), target), nil
	}
	if src.BaseKind == types.Num && target.BaseKind == types.Signed256 {
		return lir.Retype(loaded, target), nil
	}
	return nil, xerrs.At(xerrs.TypeMismatch, nil, "cannot convert %v to %v", src.BaseKind, target.BaseKind)
}
