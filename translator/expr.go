// Expression translator (spec.md §4.F): AST expression nodes lowered
// to LIR value-producing nodes, dispatching on concrete *ast.Node
// type the way lang/ysem/analyzer.go's typeCheckExpr switches over
// its expression node kinds.
package translator

import (
	"math"
	"strings"

	"github.com/jns4u/viperc/ast"
	"github.com/jns4u/viperc/lir"
	"github.com/jns4u/viperc/types"
	"github.com/jns4u/viperc/xerrs"
)

func isBool(t *types.Type) bool { return types.IsBaseType(t) && t.BaseKind == types.Bool }

// TranslateExpr lowers one expression node to an LIR value-producing
// node, guarding against unbounded AST recursion (spec.md §5).
func (t *Translator) TranslateExpr(node ast.Node) (*lir.Node, error) {
	if err := t.enter(); err != nil {
		return nil, err
	}
	defer t.leave()

	switch n := node.(type) {
	case *ast.NumLit:
		return t.translateNumLit(n)
	case *ast.StrLit:
		return t.translateStrLit(n)
	case *ast.NameConstant:
		return t.translateNameConstant(n)
	case *ast.Name:
		return t.translateName(n)
	case *ast.Attribute:
		return t.translateAttribute(n)
	case *ast.Subscript:
		return t.translateSubscript(n)
	case *ast.BinOp:
		return t.translateBinOp(n)
	case *ast.BoolOp:
		return t.translateBoolOp(n)
	case *ast.UnaryOp:
		return t.translateUnaryOp(n)
	case *ast.Compare:
		return t.translateCompare(n)
	case *ast.Call:
		return t.translateCall(n)
	case *ast.List:
		return t.translateList(n)
	case *ast.Dict:
		return t.translateDict(n)
	default:
		return nil, xerrs.At(xerrs.Structure, node, "unsupported expression form %T", node)
	}
}

func (t *Translator) translateNumLit(n *ast.NumLit) (*lir.Node, error) {
	if !n.IsFloat {
		if n.IntVal == math.MinInt64 {
			return nil, xerrs.At(xerrs.InvalidType, n, "integer literal out of range")
		}
		return lir.Int(n.IntVal, types.NewBase(types.Num, nil, false)), nil
	}
	scaled := int64(math.Floor(n.FloatVal * float64(DecimalScale)))
	return lir.Int(scaled, types.NewBase(types.Decimal, nil, false)), nil
}

func (t *Translator) translateStrLit(n *ast.StrLit) (*lir.Node, error) {
	s := n.S
	switch {
	case len(s) == 42 && strings.HasPrefix(s, "0x"):
		return lir.BigLiteral(s, types.NewBase(types.Address, nil, false)), nil
	case len(s) == 66 && strings.HasPrefix(s, "0x"):
		return lir.BigLiteral(s, types.NewBase(types.Bytes32, nil, false)), nil
	default:
		return nil, xerrs.At(xerrs.InvalidType, n, "string literal must be a 0x-prefixed address (42 chars) or bytes32 (66 chars) literal")
	}
}

func (t *Translator) translateNameConstant(n *ast.NameConstant) (*lir.Node, error) {
	if n.Value == nil {
		return lir.NullNode(), nil
	}
	b, ok := n.Value.(bool)
	if !ok {
		return nil, xerrs.At(xerrs.InvalidType, n, "malformed boolean constant")
	}
	v := int64(0)
	if b {
		v = 1
	}
	return lir.Int(v, types.NewBase(types.Bool, nil, false)), nil
}

// translateName resolves a bare identifier (spec.md §4.F, "Name"):
// self is the address() opcode; args/vars are looked up through the
// Context, eagerly loaded and clamped when they are Base-typed, left
// as a located address node otherwise (composite values are only ever
// consumed through a subscript/attribute/setter, never loaded whole).
func (t *Translator) translateName(n *ast.Name) (*lir.Node, error) {
	if n.Id == "self" {
		return t.op("address", types.NewBase(types.Address, nil, false)), nil
	}
	slot, table := t.Ctx.Lookup(n.Id)
	if table != "arg" && table != "var" {
		return nil, xerrs.At(xerrs.VariableDeclaration, n, "undeclared identifier %q", n.Id)
	}

	loc := lir.LocMemory
	if table == "arg" {
		if slot.Offset < 0 {
			loc = lir.LocCode
		} else {
			loc = lir.LocCalldata
		}
	}
	addr := lir.Int(slot.Offset, slot.Type)
	addr.Loc = loc

	if !types.IsBaseType(slot.Type) {
		return addr, nil
	}
	return t.loadIfNeeded(addr)
}

// translateAttribute resolves msg/block/tx builtins, .balance, the
// "self" storage namespace, and general struct-field access, in that
// priority order. Because .balance comes first, self.balance is
// always the contract's own balance; a storage field named "balance"
// is not readable through self.balance.
func (t *Translator) translateAttribute(n *ast.Attribute) (*lir.Node, error) {
	if ns, ok := n.Value.(*ast.Name); ok {
		if builtin, err, handled := t.translateBuiltinAttribute(ns.Id, n); handled {
			return builtin, err
		}
	}

	if n.Attr == "balance" {
		addrExpr, err := t.TranslateExpr(n.Value)
		if err != nil {
			return nil, err
		}
		loaded, err := t.loadIfNeeded(addrExpr)
		if err != nil {
			return nil, err
		}
		if !types.IsBaseType(loaded.Typ) || loaded.Typ.BaseKind != types.Address {
			return nil, xerrs.At(xerrs.TypeMismatch, n, ".balance requires an address value")
		}
		return t.finishNum(t.op("balance", types.NewBase(types.Num, types.Unit{"wei": 1}, false), loaded)), nil
	}

	if selfName, ok := n.Value.(*ast.Name); ok && selfName.Id == "self" {
		field, ok := t.Ctx.Globals[n.Attr]
		if !ok {
			return nil, xerrs.At(xerrs.VariableDeclaration, n, "undeclared storage field %q", n.Attr)
		}
		addr := lir.Int(field.Offset, field.Type)
		addr.Loc = lir.LocStorage
		if !types.IsBaseType(field.Type) {
			return addr, nil
		}
		return t.loadIfNeeded(addr)
	}

	base, err := t.TranslateExpr(n.Value)
	if err != nil {
		return nil, err
	}
	if base.Typ == nil || base.Typ.Kind != types.KindStruct {
		return nil, xerrs.At(xerrs.TypeMismatch, n, "attribute access requires a struct value")
	}
	addr, err := t.structFieldAddress(base, base.Typ, n.Attr)
	if err != nil {
		return nil, err
	}
	if !types.IsBaseType(addr.Typ) {
		return addr, nil
	}
	return t.loadIfNeeded(addr)
}

func (t *Translator) translateBuiltinAttribute(ns string, n *ast.Attribute) (*lir.Node, error, bool) {
	switch ns {
	case "msg":
		switch n.Attr {
		case "sender":
			return t.op("caller", types.NewBase(types.Address, nil, false)), nil, true
		case "value":
			return t.finishNum(t.op("callvalue", types.NewBase(types.Num, types.Unit{"wei": 1}, false))), nil, true
		default:
			return nil, xerrs.At(xerrs.InvalidType, n, "unknown msg attribute %q", n.Attr), true
		}
	case "block":
		switch n.Attr {
		case "difficulty":
			return t.finishNum(t.op("difficulty", types.NewBase(types.Num, nil, false))), nil, true
		case "timestamp":
			return t.finishNum(t.op("timestamp", types.NewBase(types.Num, types.Unit{"sec": 1}, true))), nil, true
		case "coinbase":
			return t.op("coinbase", types.NewBase(types.Address, nil, false)), nil, true
		case "number":
			return t.finishNum(t.op("number", types.NewBase(types.Num, nil, false))), nil, true
		default:
			return nil, xerrs.At(xerrs.InvalidType, n, "unknown block attribute %q", n.Attr), true
		}
	case "tx":
		if n.Attr == "origin" {
			return t.op("origin", types.NewBase(types.Address, nil, false)), nil, true
		}
		return nil, xerrs.At(xerrs.InvalidType, n, "unknown tx attribute %q", n.Attr), true
	default:
		return nil, nil, false
	}
}

func (t *Translator) translateSubscript(n *ast.Subscript) (*lir.Node, error) {
	base, err := t.TranslateExpr(n.Value)
	if err != nil {
		return nil, err
	}
	switch {
	case base.Typ != nil && base.Typ.Kind == types.KindList:
		idx, err := t.TranslateExpr(n.Index)
		if err != nil {
			return nil, err
		}
		addr, err := t.listElementAddress(base, base.Typ, idx)
		if err != nil {
			return nil, err
		}
		if !types.IsBaseType(addr.Typ) {
			return addr, nil
		}
		return t.loadIfNeeded(addr)

	case base.Typ != nil && base.Typ.Kind == types.KindMapping:
		key, err := t.TranslateExpr(n.Index)
		if err != nil {
			return nil, err
		}
		addr, err := t.mappingKeyAddress(base, base.Typ, key)
		if err != nil {
			return nil, err
		}
		if !types.IsBaseType(addr.Typ) {
			return addr, nil
		}
		return t.loadIfNeeded(addr)

	default:
		return nil, xerrs.At(xerrs.TypeMismatch, n, "subscript requires a list or mapping value")
	}
}

// alignNumDecimal reconciles mismatched num/decimal operand kinds by
// scaling the num side up by DecimalScale (spec.md §4.F: "Cross-kind
// (num<->decimal) scales the num side first"). Same-kind operands
// (including raw num256/signed256/bytes32) pass through unchanged.
// Shared by add/sub/mod and by the ordered/eq comparisons.
func (t *Translator) alignNumDecimal(left, right *lir.Node, n ast.Node) (*lir.Node, *lir.Node, *types.Type, error) {
	lk, rk := left.Typ.BaseKind, right.Typ.BaseKind
	if lk == rk {
		return left, right, types.NewBase(lk, nil, false), nil
	}
	if lk == types.Num && rk == types.Decimal {
		scaled := t.finishNum(t.op("mul", types.NewBase(types.Decimal, nil, false), left, lir.Int(DecimalScale, nil)))
		return scaled, right, types.NewBase(types.Decimal, nil, false), nil
	}
	if lk == types.Decimal && rk == types.Num {
		scaled := t.finishNum(t.op("mul", types.NewBase(types.Decimal, nil, false), right, lir.Int(DecimalScale, nil)))
		return left, scaled, types.NewBase(types.Decimal, nil, false), nil
	}
	return nil, nil, nil, xerrs.At(xerrs.TypeMismatch, n, "cannot combine %v and %v", lk, rk)
}

func (t *Translator) translateBinOp(n *ast.BinOp) (*lir.Node, error) {
	left, err := t.TranslateExpr(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := t.TranslateExpr(n.Right)
	if err != nil {
		return nil, err
	}
	left, err = t.loadIfNeeded(left)
	if err != nil {
		return nil, err
	}
	right, err = t.loadIfNeeded(right)
	if err != nil {
		return nil, err
	}
	if !types.IsNumericType(left.Typ) || !types.IsNumericType(right.Typ) {
		return nil, xerrs.At(xerrs.TypeMismatch, n, "%s requires numeric operands", n.Op)
	}
	switch n.Op {
	case "add":
		return t.translateAdd(n, left, right)
	case "sub":
		return t.translateSub(n, left, right)
	case "mul":
		return t.translateMul(n, left, right)
	case "div":
		return t.translateDiv(n, left, right)
	case "mod":
		return t.translateMod(n, left, right)
	default:
		return nil, xerrs.At(xerrs.Structure, n, "unknown binary operator %q", n.Op)
	}
}

func (t *Translator) translateAdd(n ast.Node, left, right *lir.Node) (*lir.Node, error) {
	if left.Typ.Positional && right.Typ.Positional {
		return nil, xerrs.At(xerrs.TypeMismatch, n, "cannot add two positional values")
	}
	if !types.UnitsCompatible(left.Typ.Unit, right.Typ.Unit) {
		return nil, xerrs.At(xerrs.TypeMismatch, n, "incompatible units in addition")
	}
	l, r, resultType, err := t.alignNumDecimal(left, right, n)
	if err != nil {
		return nil, err
	}
	resultType.Positional = left.Typ.Positional || right.Typ.Positional
	resultType.Unit = left.Typ.Unit
	if resultType.Unit.IsAbsent() {
		resultType.Unit = right.Typ.Unit
	}
	return t.finishNum(t.op("add", resultType, l, r)), nil
}

func (t *Translator) translateSub(n ast.Node, left, right *lir.Node) (*lir.Node, error) {
	if !types.UnitsCompatible(left.Typ.Unit, right.Typ.Unit) {
		return nil, xerrs.At(xerrs.TypeMismatch, n, "incompatible units in subtraction")
	}
	l, r, resultType, err := t.alignNumDecimal(left, right, n)
	if err != nil {
		return nil, err
	}
	resultType.Positional = left.Typ.Positional != right.Typ.Positional
	resultType.Unit = left.Typ.Unit
	if resultType.Unit.IsAbsent() {
		resultType.Unit = right.Typ.Unit
	}
	return t.finishNum(t.op("sub", resultType, l, r)), nil
}

func (t *Translator) translateMul(n ast.Node, left, right *lir.Node) (*lir.Node, error) {
	if left.Typ.Positional || right.Typ.Positional {
		return nil, xerrs.At(xerrs.TypeMismatch, n, "cannot multiply a positional value")
	}
	unit := types.CombineUnits(left.Typ.Unit, right.Typ.Unit, false)
	lk, rk := left.Typ.BaseKind, right.Typ.BaseKind
	if lk != types.Decimal && rk != types.Decimal {
		return t.finishNum(t.op("mul", types.NewBase(types.Num, unit, false), left, right)), nil
	}
	return t.guardedDecimalMul(left, right, unit)
}

// guardedDecimalMul implements the overflow-checked multiply pattern
// for any operand pair involving a decimal (spec.md §4.F): bind both
// operands and their product, assert the product divides back evenly
// by the left operand (or the left operand is zero), then rescale by
// DecimalScale when both operands were decimal.
func (t *Translator) guardedDecimalMul(left, right *lir.Node, unit types.Unit) (*lir.Node, error) {
	lName, rName, ansName := t.freshName("_L"), t.freshName("_R"), t.freshName("_ans")
	lVar := lir.Var(lName, left.Typ)
	rVar := lir.Var(rName, right.Typ)

	bothDecimal := left.Typ.BaseKind == types.Decimal && right.Typ.BaseKind == types.Decimal
	resultType := types.NewBase(types.Decimal, unit, false)

	mulNode := t.op("mul", nil, lVar, rVar)
	ansVar := lir.Var(ansName, nil)

	guard := t.op("or", nil,
		t.op("eq", nil, t.op("sdiv", nil, ansVar, lVar), rVar),
		t.op("eq", nil, lVar, lir.Int(0, nil)),
	)
	assertNode := t.op("assert", nil, guard)

	var result *lir.Node
	if bothDecimal {
		result = t.finishNum(lir.Retype(t.op("sdiv", nil, ansVar, lir.Int(DecimalScale, nil)), resultType))
	} else {
		result = t.finishNum(lir.Retype(ansVar, resultType))
	}

	body := lir.SeqNode(assertNode, result)
	withAns, err := lir.WithNode(ansName, mulNode, body)
	if err != nil {
		return nil, err
	}
	withR, err := lir.WithNode(rName, right, withAns)
	if err != nil {
		return nil, err
	}
	return lir.WithNode(lName, left, withR)
}

func (t *Translator) translateDiv(n ast.Node, left, right *lir.Node) (*lir.Node, error) {
	if left.Typ.Positional || right.Typ.Positional {
		return nil, xerrs.At(xerrs.TypeMismatch, n, "cannot divide a positional value")
	}
	unit := types.CombineUnits(left.Typ.Unit, right.Typ.Unit, true)
	lk, rk := left.Typ.BaseKind, right.Typ.BaseKind

	guardedRight := t.op("clamp_nonzero", right.Typ, right)

	var scaledLeft *lir.Node
	resultKind := types.Num
	switch {
	case rk == types.Decimal && lk == types.Decimal:
		scaledLeft = t.finishNum(t.op("mul", nil, left, lir.Int(DecimalScale, nil)))
		resultKind = types.Decimal
	case rk == types.Decimal && lk == types.Num:
		onceScaled := t.finishNum(t.op("mul", nil, left, lir.Int(DecimalScale, nil)))
		scaledLeft = t.finishNum(t.op("mul", nil, onceScaled, lir.Int(DecimalScale, nil)))
		resultKind = types.Decimal
	default:
		scaledLeft = left
		if lk == types.Decimal {
			resultKind = types.Decimal
		}
	}
	resultType := types.NewBase(resultKind, unit, false)
	return t.finishNum(t.op("sdiv", resultType, scaledLeft, guardedRight)), nil
}

func (t *Translator) translateMod(n ast.Node, left, right *lir.Node) (*lir.Node, error) {
	if !types.UnitsCompatible(left.Typ.Unit, right.Typ.Unit) {
		return nil, xerrs.At(xerrs.TypeMismatch, n, "incompatible units in modulo")
	}
	l, r, resultType, err := t.alignNumDecimal(left, right, n)
	if err != nil {
		return nil, err
	}
	resultType.Unit = left.Typ.Unit
	if resultType.Unit.IsAbsent() {
		resultType.Unit = right.Typ.Unit
	}
	guardedR := t.op("clamp_nonzero", r.Typ, r)
	return t.finishNum(t.op("smod", resultType, l, guardedR)), nil
}

var compareMnemonics = map[string]string{"gt": "sgt", "ge": "sge", "le": "sle", "lt": "slt"}

func (t *Translator) translateCompare(n *ast.Compare) (*lir.Node, error) {
	if len(n.Ops) != 1 {
		return nil, xerrs.At(xerrs.Structure, n, "chained comparisons are not supported")
	}
	left, err := t.TranslateExpr(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := t.TranslateExpr(n.Comparators[0])
	if err != nil {
		return nil, err
	}
	left, err = t.loadIfNeeded(left)
	if err != nil {
		return nil, err
	}
	right, err = t.loadIfNeeded(right)
	if err != nil {
		return nil, err
	}

	op := n.Ops[0]
	boolType := types.NewBase(types.Bool, nil, false)

	if mnemonic, ok := compareMnemonics[op]; ok {
		if !types.IsNumericType(left.Typ) || !types.IsNumericType(right.Typ) {
			return nil, xerrs.At(xerrs.TypeMismatch, n, "%s requires numeric operands", op)
		}
		l, r, _, err := t.alignNumDecimal(left, right, n)
		if err != nil {
			return nil, err
		}
		return t.op(mnemonic, boolType, l, r), nil
	}

	switch op {
	case "eq", "ne":
		var l, r *lir.Node
		if types.IsNumericType(left.Typ) && types.IsNumericType(right.Typ) {
			l, r, _, err = t.alignNumDecimal(left, right, n)
			if err != nil {
				return nil, err
			}
		} else {
			if !types.IsBaseType(left.Typ) || !types.IsBaseType(right.Typ) || left.Typ.BaseKind != right.Typ.BaseKind {
				return nil, xerrs.At(xerrs.TypeMismatch, n, "eq/ne requires operands of the same base kind")
			}
			l, r = left, right
		}
		eqNode := t.op("eq", boolType, l, r)
		if op == "eq" {
			return eqNode, nil
		}
		return t.op("iszero", boolType, eqNode), nil
	default:
		return nil, xerrs.At(xerrs.Structure, n, "unknown comparator %q", op)
	}
}

func (t *Translator) translateBoolOp(n *ast.BoolOp) (*lir.Node, error) {
	if len(n.Values) != 2 {
		return nil, xerrs.At(xerrs.Structure, n, "%s requires exactly two operands", n.Op)
	}
	left, err := t.TranslateExpr(n.Values[0])
	if err != nil {
		return nil, err
	}
	right, err := t.TranslateExpr(n.Values[1])
	if err != nil {
		return nil, err
	}
	left, err = t.loadIfNeeded(left)
	if err != nil {
		return nil, err
	}
	right, err = t.loadIfNeeded(right)
	if err != nil {
		return nil, err
	}
	if !isBool(left.Typ) || !isBool(right.Typ) {
		return nil, xerrs.At(xerrs.TypeMismatch, n, "%s requires boolean operands", n.Op)
	}
	return t.op(n.Op, types.NewBase(types.Bool, nil, false), left, right), nil
}

func (t *Translator) translateUnaryOp(n *ast.UnaryOp) (*lir.Node, error) {
	operand, err := t.TranslateExpr(n.Operand)
	if err != nil {
		return nil, err
	}
	operand, err = t.loadIfNeeded(operand)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case "not":
		if !isBool(operand.Typ) {
			return nil, xerrs.At(xerrs.TypeMismatch, n, "not requires a boolean operand")
		}
		return t.op("iszero", types.NewBase(types.Bool, nil, false), operand), nil
	case "neg", "-":
		if !types.IsNumericType(operand.Typ) {
			return nil, xerrs.At(xerrs.TypeMismatch, n, "unary - requires a numeric operand")
		}
		zero := lir.Int(0, types.NewBase(operand.Typ.BaseKind, nil, false))
		return t.translateSub(n, zero, operand)
	default:
		return nil, xerrs.At(xerrs.Structure, n, "unknown unary operator %q", n.Op)
	}
}

// translateCall dispatches the fixed set of builtin coercion/helper
// calls named in spec.md §4.F and SPEC_FULL.md §3 (as_wei_value,
// concat, the struct-access helpers already handled via Attribute).
// Nested/dynamic calls are out of scope (spec.md §5 Non-goals).
func (t *Translator) translateCall(n *ast.Call) (*lir.Node, error) {
	fname, ok := n.Func.(*ast.Name)
	if !ok {
		return nil, xerrs.At(xerrs.Structure, n, "call target must be a builtin name")
	}
	switch fname.Id {
	case "floor":
		return t.translateFloor(n)
	case "decimal":
		return t.translateDecimalCoercion(n)
	case "as_number":
		return t.translateAsNumber(n)
	case "as_wei_value":
		return t.translateAsWeiValue(n)
	case "concat":
		return t.translateConcat(n)
	default:
		return nil, xerrs.At(xerrs.Structure, n, "unsupported call %q: nested/dynamic calls are not supported", fname.Id)
	}
}

func (t *Translator) translateFloor(n *ast.Call) (*lir.Node, error) {
	if len(n.Args) != 1 {
		return nil, xerrs.At(xerrs.Structure, n, "floor expects exactly one argument")
	}
	arg, err := t.TranslateExpr(n.Args[0])
	if err != nil {
		return nil, err
	}
	arg, err = t.loadIfNeeded(arg)
	if err != nil {
		return nil, err
	}
	if !types.IsNumericType(arg.Typ) {
		return nil, xerrs.At(xerrs.TypeMismatch, n, "floor requires a numeric argument")
	}
	if arg.Typ.BaseKind != types.Decimal {
		return arg, nil
	}
	resultType := types.NewBase(types.Num, arg.Typ.Unit, arg.Typ.Positional)
	return t.finishNum(t.op("sdiv", resultType, arg, lir.Int(DecimalScale, nil))), nil
}

func (t *Translator) translateDecimalCoercion(n *ast.Call) (*lir.Node, error) {
	if len(n.Args) != 1 {
		return nil, xerrs.At(xerrs.Structure, n, "decimal expects exactly one argument")
	}
	arg, err := t.TranslateExpr(n.Args[0])
	if err != nil {
		return nil, err
	}
	arg, err = t.loadIfNeeded(arg)
	if err != nil {
		return nil, err
	}
	if !types.IsNumericType(arg.Typ) {
		return nil, xerrs.At(xerrs.TypeMismatch, n, "decimal() requires a numeric argument")
	}
	if arg.Typ.BaseKind == types.Decimal {
		return arg, nil
	}
	resultType := types.NewBase(types.Decimal, arg.Typ.Unit, arg.Typ.Positional)
	return t.finishNum(t.op("mul", resultType, arg, lir.Int(DecimalScale, nil))), nil
}

func (t *Translator) translateAsNumber(n *ast.Call) (*lir.Node, error) {
	if len(n.Args) != 1 {
		return nil, xerrs.At(xerrs.Structure, n, "as_number expects exactly one argument")
	}
	arg, err := t.TranslateExpr(n.Args[0])
	if err != nil {
		return nil, err
	}
	arg, err = t.loadIfNeeded(arg)
	if err != nil {
		return nil, err
	}
	if !types.IsNumericType(arg.Typ) {
		return nil, xerrs.At(xerrs.TypeMismatch, n, "as_number requires a numeric argument")
	}
	return lir.Retype(arg, types.NewBase(arg.Typ.BaseKind, nil, arg.Typ.Positional)), nil
}

// weiUnits is the as_wei_value unit table (SPEC_FULL.md §3,
// original_source/viper/parser.py's denominations).
var weiUnits = map[string]int64{
	"wei":    1,
	"szabo":  1_000_000_000_000,
	"finney": 1_000_000_000_000_000,
	"ether":  1_000_000_000_000_000_000,
}

func (t *Translator) translateAsWeiValue(n *ast.Call) (*lir.Node, error) {
	if len(n.Args) != 2 {
		return nil, xerrs.At(xerrs.Structure, n, "as_wei_value expects two arguments")
	}
	amount, err := t.TranslateExpr(n.Args[0])
	if err != nil {
		return nil, err
	}
	amount, err = t.loadIfNeeded(amount)
	if err != nil {
		return nil, err
	}
	if !types.IsNumericType(amount.Typ) || amount.Typ.BaseKind == types.Decimal {
		return nil, xerrs.At(xerrs.TypeMismatch, n, "as_wei_value requires an unscaled numeric amount")
	}
	unitName, ok := n.Args[1].(*ast.Name)
	if !ok {
		return nil, xerrs.At(xerrs.InvalidType, n, "as_wei_value's second argument must be a unit name")
	}
	factor, ok := weiUnits[unitName.Id]
	if !ok {
		return nil, xerrs.At(xerrs.InvalidType, n, "unknown wei-denominated unit %q", unitName.Id)
	}
	resultType := types.NewBase(types.Num, types.Unit{"wei": 1}, false)
	return t.finishNum(t.op("mul", resultType, amount, lir.Int(factor, nil))), nil
}

// translateConcat lowers the supplemented concat() byte-array builtin
// (SPEC_FULL.md §3, original_source/viper/parser.py's `concat`): it
// allocates a fresh memory byte array sized to the sum of its
// arguments' declared maximum lengths and copies each source in,
// word by word. Source lengths are taken as their full declared
// maxlen; dynamic runtime lengths are out of scope (spec.md §5).
func (t *Translator) translateConcat(n *ast.Call) (*lir.Node, error) {
	if len(n.Args) < 2 {
		return nil, xerrs.At(xerrs.Structure, n, "concat expects at least two byte-array arguments")
	}
	parts := make([]*lir.Node, len(n.Args))
	totalMax := 0
	for i, a := range n.Args {
		p, err := t.TranslateExpr(a)
		if err != nil {
			return nil, err
		}
		if p.Typ == nil || p.Typ.Kind != types.KindByteArray {
			return nil, xerrs.At(xerrs.TypeMismatch, n, "concat requires byte-array arguments")
		}
		parts[i] = p
		totalMax += p.Typ.MaxLen
	}
	resultType := types.NewByteArray(totalMax)
	dstOffset, err := t.Ctx.NewVariable(t.freshName("_concat"), resultType)
	if err != nil {
		return nil, err
	}
	dst := lir.Int(dstOffset, resultType)
	dst.Loc = lir.LocMemory

	copies := make([]*lir.Node, 0, len(parts)+2)
	copies = append(copies, t.opLoc("mstore", nil, lir.LocNone, lir.Int(dstOffset, nil), lir.Int(int64(totalMax), nil)))
	runningOffset := int64(32)
	for _, p := range parts {
		copies = append(copies, t.copyByteArray(p, dstOffset+runningOffset))
		runningOffset += 32 * int64((p.Typ.MaxLen+31)/32)
	}
	copies = append(copies, dst)
	return lir.SeqNode(copies...), nil
}

func (t *Translator) copyByteArray(src *lir.Node, dstByteOffset int64) *lir.Node {
	words := (src.Typ.MaxLen + 31) / 32
	stores := make([]*lir.Node, 0, words)
	loadOp := "mload"
	switch src.Loc {
	case lir.LocCalldata:
		loadOp = "calldataload"
	case lir.LocCode:
		loadOp = "codeload"
	}
	for w := 0; w < words; w++ {
		srcAddr := t.op("add", nil, src, lir.Int(int64(32+32*w), nil))
		word := t.op(loadOp, nil, srcAddr)
		dstAddr := lir.Int(dstByteOffset+int64(32*w), nil)
		stores = append(stores, t.opLoc("mstore", nil, lir.LocNone, dstAddr, word))
	}
	return lir.SeqNode(stores...)
}

func (t *Translator) translateList(n *ast.List) (*lir.Node, error) {
	if len(n.Elts) == 0 {
		return nil, xerrs.At(xerrs.Structure, n, "list literal must have at least one element")
	}
	elems := make([]*lir.Node, len(n.Elts))
	var common *types.Type
	mixed := false
	for i, e := range n.Elts {
		v, err := t.TranslateExpr(e)
		if err != nil {
			return nil, err
		}
		v, err = t.loadIfNeeded(v)
		if err != nil {
			return nil, err
		}
		elems[i] = v
		if i == 0 {
			common = v.Typ
		} else if !types.Equal(common, v.Typ) {
			mixed = true
		}
	}
	elemType := common
	if mixed {
		elemType = types.Mixed
	}
	return lir.MultiNode(types.NewList(elemType, len(elems)), elems...)
}

func (t *Translator) translateDict(n *ast.Dict) (*lir.Node, error) {
	if len(n.Keys) == 0 {
		return nil, xerrs.At(xerrs.Structure, n, "struct literal must have at least one field")
	}
	values := make(map[string]*lir.Node, len(n.Keys))
	members := make(map[string]*types.Type, len(n.Keys))
	for i, k := range n.Keys {
		name, ok := k.(*ast.Name)
		if !ok || !types.IsVarnameValid(name.Id, nil) {
			return nil, xerrs.At(xerrs.VariableDeclaration, n, "struct literal key must be a valid identifier")
		}
		if _, dup := values[name.Id]; dup {
			return nil, xerrs.At(xerrs.VariableDeclaration, n, "duplicate struct literal key %q", name.Id)
		}
		v, err := t.TranslateExpr(n.Values[i])
		if err != nil {
			return nil, err
		}
		v, err = t.loadIfNeeded(v)
		if err != nil {
			return nil, err
		}
		values[name.Id] = v
		members[name.Id] = v.Typ
	}
	structType := types.NewStruct(members)
	ordered := make([]*lir.Node, 0, len(values))
	for _, name := range types.StructFieldNames(structType) {
		ordered = append(ordered, values[name])
	}
	return lir.MultiNode(structType, ordered...)
}
