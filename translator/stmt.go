// Statement translator (spec.md §4.G): AST statement nodes lowered
// to valency-0 LIR nodes. Grounded on the same dispatch idiom as
// expr.go (lang/ysem/analyzer.go's typeCheckStmt switch).
package translator

import (
	"github.com/jns4u/viperc/ast"
	"github.com/jns4u/viperc/lir"
	"github.com/jns4u/viperc/types"
	"github.com/jns4u/viperc/xerrs"
)

// TranslateStmt lowers one statement node to a valency-0 LIR node.
func (t *Translator) TranslateStmt(node ast.Node) (*lir.Node, error) {
	if err := t.enter(); err != nil {
		return nil, err
	}
	defer t.leave()

	switch n := node.(type) {
	case *ast.Expr:
		return t.translateExprStmt(n)
	case *ast.Pass:
		return t.opForm("pass"), nil
	case *ast.Break:
		if t.loopDepth == 0 {
			return nil, xerrs.At(xerrs.Structure, n, "break outside of a loop")
		}
		return t.opForm("break"), nil
	case *ast.AnnAssign:
		return t.translateLocalDecl(n)
	case *ast.Assign:
		return t.translateAssign(n)
	case *ast.AugAssign:
		return t.translateAugAssign(n)
	case *ast.If:
		return t.translateIf(n)
	case *ast.For:
		return t.translateFor(n)
	case *ast.Assert:
		return t.translateAssert(n)
	case *ast.Return:
		return t.translateReturn(n)
	default:
		return nil, xerrs.At(xerrs.Structure, node, "unsupported statement form %T", node)
	}
}

func (t *Translator) opForm(mnemonic string) *lir.Node {
	n, err := lir.New(t.Table, mnemonic, nil, lir.LocNone)
	if err != nil {
		panic(err)
	}
	return n
}

// translateExprStmt handles an expression used for its side effects
// only: the builtin statement forms send/selfdestruct (spec.md §4.G),
// rejected in a constant function, plus the degenerate case of a
// bare valency-1 expression discarded via seq (its value unused).
func (t *Translator) translateExprStmt(n *ast.Expr) (*lir.Node, error) {
	call, ok := n.Value.(*ast.Call)
	if ok {
		if fname, ok := call.Func.(*ast.Name); ok {
			switch fname.Id {
			case "send":
				return t.translateSend(n, call)
			case "selfdestruct", "suicide":
				return t.translateSelfdestruct(n, call)
			}
		}
	}
	v, err := t.TranslateExpr(n.Value)
	if err != nil {
		return nil, err
	}
	if v.Valency() == 0 {
		return v, nil
	}
	return lir.SeqNode(v, t.opForm("pass")), nil
}

func (t *Translator) translateSend(n ast.Node, call *ast.Call) (*lir.Node, error) {
	if t.Ctx.IsConstant {
		return nil, xerrs.At(xerrs.ConstancyViolation, n, "send is not allowed in a constant function")
	}
	if len(call.Args) != 2 {
		return nil, xerrs.At(xerrs.Structure, n, "send expects (to, value)")
	}
	to, err := t.TranslateExpr(call.Args[0])
	if err != nil {
		return nil, err
	}
	to, err = t.loadIfNeeded(to)
	if err != nil {
		return nil, err
	}
	if !types.IsBaseType(to.Typ) || to.Typ.BaseKind != types.Address {
		return nil, xerrs.At(xerrs.TypeMismatch, n, "send's first argument must be an address")
	}
	value, err := t.TranslateExpr(call.Args[1])
	if err != nil {
		return nil, err
	}
	value, err = t.loadIfNeeded(value)
	if err != nil {
		return nil, err
	}
	if !types.IsNumericType(value.Typ) || value.Typ.BaseKind == types.Decimal {
		return nil, xerrs.At(xerrs.TypeMismatch, n, "send's second argument must be an unscaled numeric amount")
	}
	gasStipend := lir.Int(0, nil)
	outSize := lir.Int(0, nil)
	outOff := lir.Int(0, nil)
	inSize := lir.Int(0, nil)
	inOff := lir.Int(0, nil)
	call7 := t.op("call", nil, gasStipend, to, value, inOff, inSize, outOff, outSize)
	return lir.SeqNode(call7, t.opForm("pass")), nil
}

func (t *Translator) translateSelfdestruct(n ast.Node, call *ast.Call) (*lir.Node, error) {
	if t.Ctx.IsConstant {
		return nil, xerrs.At(xerrs.ConstancyViolation, n, "selfdestruct is not allowed in a constant function")
	}
	if len(call.Args) != 1 {
		return nil, xerrs.At(xerrs.Structure, n, "selfdestruct expects one argument")
	}
	to, err := t.TranslateExpr(call.Args[0])
	if err != nil {
		return nil, err
	}
	to, err = t.loadIfNeeded(to)
	if err != nil {
		return nil, err
	}
	if !types.IsBaseType(to.Typ) || to.Typ.BaseKind != types.Address {
		return nil, xerrs.At(xerrs.TypeMismatch, n, "selfdestruct requires an address argument")
	}
	return t.op("selfdestruct", nil, to), nil
}

// translateLocalDecl handles an in-function `name: type [= value]`
// declaration (spec.md §4.G): allocate the variable, then either
// zero-initialize it or run it through the same setter path as a
// plain assignment.
func (t *Translator) translateLocalDecl(n *ast.AnnAssign) (*lir.Node, error) {
	if !types.IsVarnameValid(n.Target.Id, nil) {
		return nil, xerrs.At(xerrs.VariableDeclaration, n, "invalid variable name %q", n.Target.Id)
	}
	typ, err := types.ParseType(n.Annotation)
	if err != nil {
		return nil, err
	}
	offset, err := t.Ctx.NewVariable(n.Target.Id, typ)
	if err != nil {
		return nil, err
	}
	target := lir.Int(offset, typ)
	target.Loc = lir.LocMemory

	if n.Value == nil {
		return t.MakeSetter(target, typ, lir.NullNode())
	}
	rhs, err := t.TranslateExpr(n.Value)
	if err != nil {
		return nil, err
	}
	return t.MakeSetter(target, typ, rhs)
}

// translateAssign handles `target = value` (spec.md §4.G): a bare
// Name target that isn't yet declared introduces a new variable
// (type taken from the RHS, units/positional stripped); any other
// target is resolved to its located address and run through the
// setter.
func (t *Translator) translateAssign(n *ast.Assign) (*lir.Node, error) {
	if len(n.Targets) != 1 {
		return nil, xerrs.At(xerrs.Structure, n, "multi-target assignment is not supported")
	}
	target := n.Targets[0]

	if name, ok := target.(*ast.Name); ok {
		if _, table := t.Ctx.Lookup(name.Id); table == "" {
			if !types.IsVarnameValid(name.Id, nil) {
				return nil, xerrs.At(xerrs.VariableDeclaration, n, "invalid variable name %q", name.Id)
			}
			rhs, err := t.TranslateExpr(n.Value)
			if err != nil {
				return nil, err
			}
			if rhs.Typ == nil || rhs.Typ.Kind == types.KindNull {
				return nil, xerrs.At(xerrs.VariableDeclaration, n, "cannot infer a type for %q from a null value", name.Id)
			}
			typ := types.SetDefaultUnits(rhs.Typ)
			offset, err := t.Ctx.NewVariable(name.Id, typ)
			if err != nil {
				return nil, err
			}
			addr := lir.Int(offset, typ)
			addr.Loc = lir.LocMemory
			return t.MakeSetter(addr, typ, rhs)
		}
	}

	addr, typ, err := t.resolveTarget(target)
	if err != nil {
		return nil, err
	}
	rhs, err := t.TranslateExpr(n.Value)
	if err != nil {
		return nil, err
	}
	return t.MakeSetter(addr, typ, rhs)
}

// resolveTarget computes an already-declared assignment target's
// address and type, without loading it (spec.md §4.G/§4.H): a bare
// Name (arg or var), self.field, or a subscript/attribute chain
// rooted at one of those.
func (t *Translator) resolveTarget(node ast.Node) (*lir.Node, *types.Type, error) {
	switch n := node.(type) {
	case *ast.Name:
		slot, table := t.Ctx.Lookup(n.Id)
		if table != "arg" && table != "var" {
			return nil, nil, xerrs.At(xerrs.VariableDeclaration, n, "undeclared identifier %q", n.Id)
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
		return addr, slot.Type, nil

	case *ast.Attribute:
		if self, ok := n.Value.(*ast.Name); ok && self.Id == "self" {
			field, ok := t.Ctx.Globals[n.Attr]
			if !ok {
				return nil, nil, xerrs.At(xerrs.VariableDeclaration, n, "undeclared storage field %q", n.Attr)
			}
			addr := lir.Int(field.Offset, field.Type)
			addr.Loc = lir.LocStorage
			return addr, field.Type, nil
		}
		base, baseType, err := t.resolveTarget(n.Value)
		if err != nil {
			return nil, nil, err
		}
		if baseType.Kind != types.KindStruct {
			return nil, nil, xerrs.At(xerrs.TypeMismatch, n, "attribute assignment target requires a struct")
		}
		addr, err := t.structFieldAddress(base, baseType, n.Attr)
		if err != nil {
			return nil, nil, err
		}
		return addr, baseType.Members[n.Attr], nil

	case *ast.Subscript:
		base, baseType, err := t.resolveTarget(n.Value)
		if err != nil {
			return nil, nil, err
		}
		switch baseType.Kind {
		case types.KindList:
			idx, err := t.TranslateExpr(n.Index)
			if err != nil {
				return nil, nil, err
			}
			addr, err := t.listElementAddress(base, baseType, idx)
			if err != nil {
				return nil, nil, err
			}
			return addr, baseType.Elem, nil
		case types.KindMapping:
			key, err := t.TranslateExpr(n.Index)
			if err != nil {
				return nil, nil, err
			}
			addr, err := t.mappingKeyAddress(base, baseType, key)
			if err != nil {
				return nil, nil, err
			}
			return addr, baseType.ValueType, nil
		default:
			return nil, nil, xerrs.At(xerrs.TypeMismatch, n, "subscript assignment target requires a list or mapping")
		}

	default:
		return nil, nil, xerrs.At(xerrs.Structure, node, "unsupported assignment target %T", node)
	}
}

// translateAugAssign lowers `target op= value` by binding the target
// address once to a fresh symbolic name so the address expression is
// never evaluated twice (spec.md §4.G).
func (t *Translator) translateAugAssign(n *ast.AugAssign) (*lir.Node, error) {
	addr, typ, err := t.resolveTarget(n.Target)
	if err != nil {
		return nil, err
	}
	if !types.IsBaseType(typ) {
		return nil, xerrs.At(xerrs.TypeMismatch, n, "compound assignment requires a base-typed target")
	}
	addrName := t.freshName("_aug")
	addrVar := lir.Var(addrName, addr.Typ)
	addrVar.Loc = addr.Loc

	current, err := t.loadIfNeeded(addrVar)
	if err != nil {
		return nil, err
	}
	rhs, err := t.TranslateExpr(n.Value)
	if err != nil {
		return nil, err
	}
	rhs, err = t.loadIfNeeded(rhs)
	if err != nil {
		return nil, err
	}

	var combined *lir.Node
	switch n.Op {
	case "add":
		combined, err = t.translateAdd(n, current, rhs)
	case "sub":
		combined, err = t.translateSub(n, current, rhs)
	case "mul":
		combined, err = t.translateMul(n, current, rhs)
	case "div":
		combined, err = t.translateDiv(n, current, rhs)
	case "mod":
		combined, err = t.translateMod(n, current, rhs)
	default:
		return nil, xerrs.At(xerrs.Structure, n, "unknown compound-assignment operator %q", n.Op)
	}
	if err != nil {
		return nil, err
	}

	setter, err := t.MakeSetter(addrVar, typ, combined)
	if err != nil {
		return nil, err
	}
	return lir.WithNode(addrName, addr, setter)
}

// translateIf lowers `if test: body [else: orelse]` into `if`
// (spec.md §4.G): the test must be boolean; with an else branch the
// node's valency is the (equal) valency of both translated bodies,
// otherwise 0.
func (t *Translator) translateIf(n *ast.If) (*lir.Node, error) {
	test, err := t.TranslateExpr(n.Test)
	if err != nil {
		return nil, err
	}
	test, err = t.loadIfNeeded(test)
	if err != nil {
		return nil, err
	}
	if !isBool(test.Typ) {
		return nil, xerrs.At(xerrs.TypeMismatch, n, "if test must be boolean")
	}
	body, err := t.translateBlock(n.Body)
	if err != nil {
		return nil, err
	}
	if len(n.Orelse) == 0 {
		return lir.New(t.Table, "if", nil, lir.LocNone, test, body)
	}
	orelse, err := t.translateBlock(n.Orelse)
	if err != nil {
		return nil, err
	}
	return lir.New(t.Table, "if", body.Typ, lir.LocNone, test, body, orelse)
}

func (t *Translator) translateBlock(stmts []ast.Node) (*lir.Node, error) {
	if len(stmts) == 0 {
		return t.opForm("pass"), nil
	}
	translated := make([]*lir.Node, len(stmts))
	for i, s := range stmts {
		n, err := t.TranslateStmt(s)
		if err != nil {
			return nil, err
		}
		translated[i] = n
	}
	return lir.SeqNode(translated...), nil
}

// translateFor lowers `for target in range(...): body` into `repeat`
// (spec.md §4.G), covering the three shapes named there: range(N)
// (0..N-1), range(A, B) with A and B constant literals (A..B-1), and
// range(x, x+N) (x..x+N-1, N constant). The loop index is pushed into
// ForVars for the duration of the body, per spec.md §4.E.
func (t *Translator) translateFor(n *ast.For) (*lir.Node, error) {
	call, ok := n.Iter.(*ast.Call)
	if !ok {
		return nil, xerrs.At(xerrs.Structure, n, "for-loop iterable must be a range(...) call")
	}
	if fname, ok := call.Func.(*ast.Name); !ok || fname.Id != "range" {
		return nil, xerrs.At(xerrs.Structure, n, "for-loop iterable must be a range(...) call")
	}

	var startLit int64
	var rounds int64

	switch len(call.Args) {
	case 1:
		bound, ok := call.Args[0].(*ast.NumLit)
		if !ok || bound.IsFloat || bound.IntVal <= 0 {
			return nil, xerrs.At(xerrs.Structure, n, "range(N) requires a positive constant N")
		}
		startLit, rounds = 0, bound.IntVal

	case 2:
		a, aConst := call.Args[0].(*ast.NumLit)
		b, bConst := call.Args[1].(*ast.NumLit)
		if aConst && bConst {
			if a.IsFloat || b.IsFloat || b.IntVal <= a.IntVal {
				return nil, xerrs.At(xerrs.Structure, n, "range(A, B) requires constant integers with B > A")
			}
			startLit, rounds = a.IntVal, b.IntVal-a.IntVal
			break
		}
		// range(x, x+N): the second argument must literally be `x + N`
		// with N a positive constant, and the x subtrees must match.
		binop, ok := call.Args[1].(*ast.BinOp)
		if !ok || binop.Op != "add" {
			return nil, xerrs.At(xerrs.Structure, n, "range(x, y) requires y shaped as x + N with N a positive constant")
		}
		n2, ok := binop.Right.(*ast.NumLit)
		if !ok || n2.IsFloat || n2.IntVal <= 0 || !sameExprShape(call.Args[0], binop.Left) {
			return nil, xerrs.At(xerrs.Structure, n, "range(x, y) requires y shaped as x + N with N a positive constant")
		}
		start, err := t.TranslateExpr(call.Args[0])
		if err != nil {
			return nil, err
		}
		start, err = t.loadIfNeeded(start)
		if err != nil {
			return nil, err
		}
		return t.finishForLoop(n, start, n2.IntVal)

	default:
		return nil, xerrs.At(xerrs.Structure, n, "range() takes 1 or 2 arguments")
	}

	return t.finishForLoop(n, lir.Int(startLit, types.NewBase(types.Num, nil, false)), rounds)
}

func (t *Translator) finishForLoop(n *ast.For, start *lir.Node, rounds int64) (*lir.Node, error) {
	if !types.IsVarnameValid(n.Target.Id, nil) {
		return nil, xerrs.At(xerrs.VariableDeclaration, n, "invalid loop variable name %q", n.Target.Id)
	}
	memOffset, err := t.Ctx.NewVariable(n.Target.Id, types.NewBase(types.Num, nil, false))
	if err != nil {
		return nil, err
	}
	t.Ctx.PushForVar(n.Target.Id)
	t.loopDepth++
	body, err := t.translateBlock(n.Body)
	t.loopDepth--
	t.Ctx.PopForVar(n.Target.Id)
	if err != nil {
		return nil, err
	}
	if body.Valency() != 0 {
		return nil, xerrs.At(xerrs.Structure, n, "for-loop body must not leave a value on the stack")
	}
	memloc := lir.Int(memOffset, nil)
	return lir.RepeatNode(memloc, start, rounds, body)
}

// sameExprShape is a shallow structural check used only to recognize
// `range(x, x+N)`'s repeated x subtree; it compares Name identifiers
// and Attribute chains, the only shapes that bound a loop start.
func sameExprShape(a, b ast.Node) bool {
	switch av := a.(type) {
	case *ast.Name:
		bv, ok := b.(*ast.Name)
		return ok && av.Id == bv.Id
	case *ast.Attribute:
		bv, ok := b.(*ast.Attribute)
		return ok && av.Attr == bv.Attr && sameExprShape(av.Value, bv.Value)
	default:
		return false
	}
}

func (t *Translator) translateAssert(n *ast.Assert) (*lir.Node, error) {
	test, err := t.TranslateExpr(n.Test)
	if err != nil {
		return nil, err
	}
	test, err = t.loadIfNeeded(test)
	if err != nil {
		return nil, err
	}
	if !isBool(test.Typ) {
		return nil, xerrs.At(xerrs.TypeMismatch, n, "assert requires a boolean test")
	}
	return t.op("assert", nil, test), nil
}

// translateReturn lowers `return [value]` (spec.md §4.G): bare return
// is valency-0; a base-typed return goes through convertBase against
// the function's declared return type, then stores the result at
// memory slot 0 and returns that word; a byte-array return targets the
// located value's length-prefix word and returns prefix-plus-payload.
func (t *Translator) translateReturn(n *ast.Return) (*lir.Node, error) {
	if n.Value == nil {
		if t.Ctx.ReturnType != nil {
			return nil, xerrs.At(xerrs.TypeMismatch, n, "function must return a value")
		}
		return t.op("return", nil, lir.Int(0, nil), lir.Int(0, nil)), nil
	}
	if t.Ctx.ReturnType == nil {
		return nil, xerrs.At(xerrs.TypeMismatch, n, "function has no declared return type")
	}
	val, err := t.TranslateExpr(n.Value)
	if err != nil {
		return nil, err
	}
	if t.Ctx.ReturnType.Kind == types.KindByteArray {
		if val.Typ == nil || val.Typ.Kind != types.KindByteArray {
			return nil, xerrs.At(xerrs.TypeMismatch, n, "function must return a byte array")
		}
		if val.Loc != lir.LocMemory {
			return nil, xerrs.At(xerrs.TypeMismatch, n, "byte-array return requires a memory-located value")
		}
		// The located value points at the payload; its length-prefix word
		// sits 32 bytes below it (spec.md §4.G: "assume the prefix
		// precedes the payload"), so the returned region starts there and
		// runs for prefix+payload, read back from the prefix itself.
		prefix := t.op("sub", nil, val, lir.Int(32, nil))
		size := t.op("add", nil, t.op("mload", nil, val), lir.Int(32, nil))
		return t.op("return", nil, prefix, size), nil
	}
	if !types.IsBaseType(t.Ctx.ReturnType) {
		return nil, xerrs.At(xerrs.TypeMismatch, n, "returning composite types directly is not supported")
	}
	converted, err := t.convertBase(val, t.Ctx.ReturnType)
	if err != nil {
		return nil, err
	}
	// convertBase may have wrapped the value in a seq ending with a
	// safety assert (the num->num256 non-negativity check); that assert
	// belongs as a sibling statement here, not nested inside the stored
	// value (spec.md §4.G; original_source/viper/parser.py:951-955).
	var pre []*lir.Node
	value := converted
	if converted.Mnemonic() == "seq" && len(converted.Args) > 0 {
		pre, value = converted.Args[:len(converted.Args)-1], converted.Args[len(converted.Args)-1]
	}
	store := t.op("mstore", nil, lir.Int(0, nil), value)
	ret := t.op("return", nil, lir.Int(0, nil), lir.Int(32, nil))
	stmts := append(append([]*lir.Node{}, pre...), store, ret)
	return lir.SeqNode(stmts...), nil
}
