// Package types implements the type system (spec.md §4.A): a tagged
// variant of base, list, mapping, struct, byte-array, mixed and null
// types, unit algebra over base types, canonical ABI type spellings,
// and storage/memory word-size computation.
//
// Grounded on lang/yparse/types.go's tagged Type struct and Size/
// Equal methods, generalized from YAPL's fixed base-type enum to this
// module's unit-and-positional-carrying Base kind.
package types

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jns4u/viperc/ast"
	"github.com/jns4u/viperc/xerrs"
)

// Kind discriminates the tagged Type variants (spec.md §3).
type Kind int

const (
	KindBase Kind = iota
	KindList
	KindMapping
	KindStruct
	KindByteArray
	KindMixed
	KindNull
)

// BaseKind enumerates the base scalar kinds.
type BaseKind int

const (
	Num BaseKind = iota
	Decimal
	Bool
	Address
	Bytes32
	Num256
	Signed256
)

func (b BaseKind) String() string {
	switch b {
	case Num:
		return "num"
	case Decimal:
		return "decimal"
	case Bool:
		return "bool"
	case Address:
		return "address"
	case Bytes32:
		return "bytes32"
	case Num256:
		return "num256"
	case Signed256:
		return "signed256"
	default:
		return "<invalid base kind>"
	}
}

// Unit is a vector of integer exponents over symbolic base units. A
// nil or empty Unit is "absent" (spec.md §3, GLOSSARY "Unit").
type Unit map[string]int

// IsAbsent reports whether u carries no units at all.
func (u Unit) IsAbsent() bool { return len(u) == 0 }

// Equal reports whether two unit vectors carry exactly the same
// exponents (absent vectors of length zero compare equal).
func (u Unit) Equal(v Unit) bool {
	if len(u) != len(v) {
		return false
	}
	for k, e := range u {
		if v[k] != e {
			return false
		}
	}
	return true
}

// Type is the tagged variant described in spec.md §3.
type Type struct {
	Kind Kind

	// KindBase
	BaseKind   BaseKind
	Unit       Unit
	Positional bool

	// KindList
	Elem  *Type
	Count int

	// KindMapping
	KeyType   *Type // always KindBase
	ValueType *Type

	// KindStruct
	Members map[string]*Type

	// KindByteArray
	MaxLen int
}

// NewBase constructs a Base type. unit may be nil for "absent".
func NewBase(kind BaseKind, unit Unit, positional bool) *Type {
	return &Type{Kind: KindBase, BaseKind: kind, Unit: unit, Positional: positional}
}

// NewList constructs a fixed-length homogeneous sequence type.
func NewList(subtype *Type, count int) *Type {
	return &Type{Kind: KindList, Elem: subtype, Count: count}
}

// NewMapping constructs a storage-only associative type.
func NewMapping(keytype, valuetype *Type) *Type {
	return &Type{Kind: KindMapping, KeyType: keytype, ValueType: valuetype}
}

// NewStruct constructs an ordered-by-name struct type.
func NewStruct(members map[string]*Type) *Type {
	return &Type{Kind: KindStruct, Members: members}
}

// NewByteArray constructs a bounded byte-sequence type.
func NewByteArray(maxlen int) *Type {
	return &Type{Kind: KindByteArray, MaxLen: maxlen}
}

// Mixed is the internal placeholder for a list literal with
// heterogeneous element types; it is disallowed at use sites.
var Mixed = &Type{Kind: KindMixed}

// NullType is the literal-null type; assignable to any base type
// (zero-initializes).
var NullType = &Type{Kind: KindNull}

// IsBaseType reports whether t is a Base variant.
func IsBaseType(t *Type) bool {
	return t != nil && t.Kind == KindBase
}

// IsNumericType reports whether t is a numeric Base kind.
func IsNumericType(t *Type) bool {
	if !IsBaseType(t) {
		return false
	}
	switch t.BaseKind {
	case Num, Decimal, Num256, Signed256:
		return true
	default:
		return false
	}
}

// IsDecimal reports whether t is the decimal base kind.
func IsDecimal(t *Type) bool { return IsBaseType(t) && t.BaseKind == Decimal }

// StructFieldNames returns a struct's field names in the sorted order
// used for layout (spec.md §3, "field order for layout is sorted
// alphabetically by name").
func StructFieldNames(t *Type) []string {
	names := make([]string, 0, len(t.Members))
	for name := range t.Members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FieldIndex returns the rank of name in the sorted field order,
// used for storage slot addressing (spec.md §4.F).
func FieldIndex(t *Type, name string) (int, bool) {
	for i, n := range StructFieldNames(t) {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// Equal reports whether two types are structurally identical,
// including unit vectors and positional flags for Base types.
func Equal(a, b *Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindBase:
		return a.BaseKind == b.BaseKind && a.Unit.Equal(b.Unit) && a.Positional == b.Positional
	case KindList:
		return a.Count == b.Count && Equal(a.Elem, b.Elem)
	case KindMapping:
		return Equal(a.KeyType, b.KeyType) && Equal(a.ValueType, b.ValueType)
	case KindStruct:
		an, bn := StructFieldNames(a), StructFieldNames(b)
		if len(an) != len(bn) {
			return false
		}
		for i, n := range an {
			if n != bn[i] || !Equal(a.Members[n], b.Members[bn[i]]) {
				return false
			}
		}
		return true
	case KindByteArray:
		return a.MaxLen == b.MaxLen
	case KindMixed, KindNull:
		return true
	default:
		return false
	}
}

// CombineUnits adds (or, if div, subtracts) exponents per unit name;
// absent vectors are the identity, and an all-zero result collapses
// to absent (spec.md §4.A).
func CombineUnits(a, b Unit, div bool) Unit {
	if a.IsAbsent() && b.IsAbsent() {
		return nil
	}
	out := make(Unit)
	for k, e := range a {
		out[k] += e
	}
	for k, e := range b {
		if div {
			out[k] -= e
		} else {
			out[k] += e
		}
	}
	for k, e := range out {
		if e == 0 {
			delete(out, k)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// UnitsCompatible implements the symmetric unit-compatibility test
// of spec.md §3 invariant 7: equal, or either side absent.
func UnitsCompatible(a, b Unit) bool {
	if a.IsAbsent() || b.IsAbsent() {
		return true
	}
	return a.Equal(b)
}

// AreUnitsCompatible implements the directional conversion test of
// spec.md §4.A: true iff src.Unit == dst.Unit, or src.Unit is absent
// (any dst), or both are absent.
func AreUnitsCompatible(src, dst Unit) bool {
	if src.IsAbsent() {
		return true
	}
	return src.Equal(dst)
}

// SetDefaultUnits returns a copy of t with all Base units stripped to
// absent (and positional cleared), recursing into List/Struct
// members. Used when a plain assignment introduces a new variable
// from an RHS type (spec.md §4.G).
func SetDefaultUnits(t *Type) *Type {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case KindBase:
		return NewBase(t.BaseKind, nil, false)
	case KindList:
		return NewList(SetDefaultUnits(t.Elem), t.Count)
	case KindStruct:
		members := make(map[string]*Type, len(t.Members))
		for k, v := range t.Members {
			members[k] = SetDefaultUnits(v)
		}
		return NewStruct(members)
	default:
		return t
	}
}

// GetSizeOfType returns the storage/memory word count for t
// (spec.md §4.A): base = 1, list = count * subtype size, struct =
// sum of member sizes. Mapping has no size in memory (storage-only).
// Byte arrays are sized as a length-prefixed, 32-byte-rounded buffer;
// their size is not required for storage layout (spec.md §4.A).
func GetSizeOfType(t *Type) (int, error) {
	if t == nil {
		return 0, xerrs.At(xerrs.InvalidType, nil, "no size for nil type")
	}
	switch t.Kind {
	case KindBase:
		return 1, nil
	case KindList:
		sub, err := GetSizeOfType(t.Elem)
		if err != nil {
			return 0, err
		}
		return t.Count * sub, nil
	case KindStruct:
		total := 0
		for _, name := range StructFieldNames(t) {
			sz, err := GetSizeOfType(t.Members[name])
			if err != nil {
				return 0, err
			}
			total += sz
		}
		return total, nil
	case KindByteArray:
		return (t.MaxLen+31)/32 + 1, nil
	case KindMapping:
		return 0, xerrs.At(xerrs.InvalidType, nil, "mapping has no size in memory")
	default:
		return 0, xerrs.At(xerrs.InvalidType, nil, "no size for %v", t.Kind)
	}
}

// IsVarnameValid reports whether name is usable as a variable,
// parameter, or struct field name: not empty, not a language keyword,
// and not starting with "_" (spec.md §4.A). Opcode, pseudo-opcode and
// control-form mnemonics are rejected only through reserved, which is
// called with the lower-cased name; with a nil reserved no mnemonic
// is rejected.
func IsVarnameValid(name string, reserved func(string) bool) bool {
	if name == "" {
		return false
	}
	if strings.HasPrefix(name, "_") {
		return false
	}
	if keywords[name] {
		return false
	}
	if reserved != nil && reserved(strings.ToLower(name)) {
		return false
	}
	return true
}

var keywords = map[string]bool{
	"if": true, "else": true, "for": true, "in": true, "range": true,
	"return": true, "pass": true, "break": true, "assert": true,
	"self": true, "msg": true, "block": true, "tx": true,
	"true": true, "false": true, "null": true, "none": true,
	"def": true, "const": true,
}

// ParseType parses a type annotation AST node into a Type. It takes
// no location, so "mapping in memory" is not rejected here; it is
// only an error at the size-computation stage.
func ParseType(node ast.Node) (*Type, error) {
	switch n := node.(type) {
	case *ast.Name:
		bk, ok := baseKindByName[n.Id]
		if !ok {
			return nil, xerrs.At(xerrs.InvalidType, n, "unknown type name %q", n.Id)
		}
		return NewBase(bk, nil, false), nil

	case *ast.Call:
		fname, ok := n.Func.(*ast.Name)
		if !ok {
			return nil, xerrs.At(xerrs.InvalidType, n, "malformed type annotation")
		}
		bk, ok := baseKindByName[fname.Id]
		if !ok {
			return nil, xerrs.At(xerrs.InvalidType, n, "unknown type name %q", fname.Id)
		}
		var unit Unit
		positional := false
		for _, a := range n.Args {
			if nm, ok := a.(*ast.Name); ok {
				unit = CombineUnits(unit, Unit{nm.Id: 1}, false)
				continue
			}
			return nil, xerrs.At(xerrs.InvalidType, n, "malformed unit in type annotation")
		}
		for _, kw := range n.Keywords {
			switch kw.Arg {
			case "unit":
				d, ok := kw.Value.(*ast.Dict)
				if !ok {
					return nil, xerrs.At(xerrs.InvalidType, n, "unit= must be a dict literal")
				}
				parsed, err := parseUnitDict(d)
				if err != nil {
					return nil, err
				}
				unit = CombineUnits(unit, parsed, false)
			case "positional":
				nc, ok := kw.Value.(*ast.NameConstant)
				if !ok {
					return nil, xerrs.At(xerrs.InvalidType, n, "positional= must be a boolean")
				}
				b, _ := nc.Value.(bool)
				positional = b
			default:
				return nil, xerrs.At(xerrs.InvalidType, n, "unknown type annotation keyword %q", kw.Arg)
			}
		}
		return NewBase(bk, unit, positional), nil

	case *ast.Subscript:
		if lit, ok := n.Index.(*ast.NumLit); ok && !lit.IsFloat {
			if fname, ok := n.Value.(*ast.Name); ok && fname.Id == "bytes" {
				return NewByteArray(int(lit.IntVal)), nil
			}
			sub, err := ParseType(n.Value)
			if err != nil {
				return nil, err
			}
			if lit.IntVal < 1 {
				return nil, xerrs.At(xerrs.InvalidType, n, "list count must be >= 1")
			}
			return NewList(sub, int(lit.IntVal)), nil
		}
		valtype, err := ParseType(n.Value)
		if err != nil {
			return nil, err
		}
		keytype, err := ParseType(n.Index)
		if err != nil {
			return nil, err
		}
		if !IsBaseType(keytype) {
			return nil, xerrs.At(xerrs.InvalidType, n, "mapping key type must be a base type")
		}
		return NewMapping(keytype, valtype), nil

	case *ast.Dict:
		members := make(map[string]*Type, len(n.Keys))
		for i, k := range n.Keys {
			name, ok := k.(*ast.Name)
			if !ok {
				return nil, xerrs.At(xerrs.InvalidType, n, "struct field name must be an identifier")
			}
			if _, dup := members[name.Id]; dup {
				return nil, xerrs.At(xerrs.VariableDeclaration, n, "duplicate struct field %q", name.Id)
			}
			ft, err := ParseType(n.Values[i])
			if err != nil {
				return nil, err
			}
			members[name.Id] = ft
		}
		return NewStruct(members), nil

	default:
		return nil, xerrs.At(xerrs.InvalidType, node, "malformed type annotation")
	}
}

func parseUnitDict(d *ast.Dict) (Unit, error) {
	out := make(Unit, len(d.Keys))
	for i, k := range d.Keys {
		var name string
		switch kk := k.(type) {
		case *ast.Name:
			name = kk.Id
		case *ast.StrLit:
			name = kk.S
		default:
			return nil, xerrs.At(xerrs.InvalidType, d, "unit dict keys must be names or strings")
		}
		lit, ok := d.Values[i].(*ast.NumLit)
		if !ok || lit.IsFloat {
			return nil, xerrs.At(xerrs.InvalidType, d, "unit exponents must be integer literals")
		}
		out[name] = int(lit.IntVal)
	}
	return CombineUnits(nil, out, false), nil
}

var baseKindByName = map[string]BaseKind{
	"num":       Num,
	"decimal":   Decimal,
	"bool":      Bool,
	"address":   Address,
	"bytes32":   Bytes32,
	"num256":    Num256,
	"signed256": Signed256,
}

// CanonicalizeType yields the type's stable ABI spelling (spec.md
// §4.A). Exact spellings follow original_source/viper/parser.py
// (SPEC_FULL.md §3/§4).
func CanonicalizeType(t *Type) (string, error) {
	if t == nil {
		return "", xerrs.At(xerrs.InvalidType, nil, "cannot canonicalize nil type")
	}
	switch t.Kind {
	case KindBase:
		switch t.BaseKind {
		case Num:
			return "int128", nil
		case Decimal:
			return "real128x10", nil
		case Bool:
			return "bool", nil
		case Address:
			return "address", nil
		case Bytes32:
			return "bytes32", nil
		case Num256:
			return "uint256", nil
		case Signed256:
			return "int256", nil
		default:
			return "", xerrs.At(xerrs.InvalidType, nil, "unknown base kind %v", t.BaseKind)
		}
	case KindList:
		sub, err := CanonicalizeType(t.Elem)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s[%d]", sub, t.Count), nil
	case KindByteArray:
		return "bytes", nil
	case KindStruct:
		names := StructFieldNames(t)
		parts := make([]string, len(names))
		for i, n := range names {
			c, err := CanonicalizeType(t.Members[n])
			if err != nil {
				return "", err
			}
			parts[i] = fmt.Sprintf("%s:%s", n, c)
		}
		return "(" + strings.Join(parts, ",") + ")", nil
	case KindMapping:
		k, err := CanonicalizeType(t.KeyType)
		if err != nil {
			return "", err
		}
		v, err := CanonicalizeType(t.ValueType)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("map(%s,%s)", k, v), nil
	default:
		return "", xerrs.At(xerrs.InvalidType, nil, "%v has no canonical ABI spelling", t.Kind)
	}
}
