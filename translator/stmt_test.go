package translator

import (
	"testing"

	"github.com/jns4u/viperc/ast"
	"github.com/jns4u/viperc/types"
)

func TestTranslateStmtPassAndBreakOutsideLoop(t *testing.T) {
	tr := newTestTranslator()
	n, err := tr.TranslateStmt(ast.NewPass(1))
	if err != nil {
		t.Fatalf("TranslateStmt(pass) error = %v", err)
	}
	mustMnemonic(t, n, "pass")

	if _, err := tr.TranslateStmt(ast.NewBreak(1)); err == nil {
		t.Error("expected an error: break outside of a loop")
	}
}

func TestTranslateLocalDeclAllocatesAndZeroFills(t *testing.T) {
	tr := newTestTranslator()
	decl := ast.NewAnnAssign(1, ast.NewName(1, "x"), ast.NewName(1, "num"), nil)
	n, err := tr.TranslateStmt(decl)
	if err != nil {
		t.Fatalf("TranslateStmt(x: num) error = %v", err)
	}
	mustMnemonic(t, n, "mstore")
	if _, table := tr.Ctx.Lookup("x"); table != "var" {
		t.Errorf("Lookup(x) table = %q, want var", table)
	}
}

func TestTranslateAssignIntroducesVariableFromRHS(t *testing.T) {
	tr := newTestTranslator()
	assign := ast.NewAssign(1, ast.NewInt(1, 7), ast.NewName(1, "balance"))
	n, err := tr.TranslateStmt(assign)
	if err != nil {
		t.Fatalf("TranslateStmt(balance = 7) error = %v", err)
	}
	mustMnemonic(t, n, "mstore")
	slot, table := tr.Ctx.Lookup("balance")
	if table != "var" || slot.Type.BaseKind != types.Num {
		t.Errorf("Lookup(balance) = (%+v, %q), want a var of type num", slot, table)
	}
}

func TestTranslateAssignRejectsMultiTarget(t *testing.T) {
	tr := newTestTranslator()
	assign := ast.NewAssign(1, ast.NewInt(1, 1), ast.NewName(1, "a"), ast.NewName(1, "b"))
	if _, err := tr.TranslateStmt(assign); err == nil {
		t.Error("expected an error: multi-target assignment")
	}
}

func TestTranslateAssignRejectsNullTypeInference(t *testing.T) {
	tr := newTestTranslator()
	assign := ast.NewAssign(1, ast.NewNameConstant(1, nil), ast.NewName(1, "x"))
	if _, err := tr.TranslateStmt(assign); err == nil {
		t.Error("expected an error: cannot infer a type from a null RHS")
	}
}

func TestTranslateAugAssignBindsAddressOnce(t *testing.T) {
	tr := newTestTranslator()
	tr.Ctx.Globals["balance"] = slotPtr(0, types.NewBase(types.Num, nil, false))
	target := ast.NewAttribute(1, ast.NewName(1, "self"), "balance")
	aug := ast.NewAugAssign(1, target, "add", ast.NewInt(1, 1))
	n, err := tr.TranslateStmt(aug)
	if err != nil {
		t.Fatalf("TranslateStmt(self.balance += 1) error = %v", err)
	}
	mustMnemonic(t, n, "with")
	if !containsMnemonic(n, "sstore") {
		t.Error("augmented assignment to a storage field should emit sstore")
	}
}

func TestTranslateIfRequiresBooleanTest(t *testing.T) {
	tr := newTestTranslator()
	ifStmt := ast.NewIf(1, ast.NewInt(1, 1), []ast.Node{ast.NewPass(1)}, nil)
	if _, err := tr.TranslateStmt(ifStmt); err == nil {
		t.Error("expected an error: if test must be boolean")
	}
}

func TestTranslateIfTwoBranch(t *testing.T) {
	tr := newTestTranslator()
	test := ast.NewNameConstant(1, true)
	ifStmt := ast.NewIf(1, test, []ast.Node{ast.NewPass(1)}, []ast.Node{ast.NewPass(1)})
	n, err := tr.TranslateStmt(ifStmt)
	if err != nil {
		t.Fatalf("TranslateStmt(if) error = %v", err)
	}
	mustMnemonic(t, n, "if")
	if len(n.Args) != 3 {
		t.Errorf("if with an else clause should carry 3 args, got %d", len(n.Args))
	}
}

func TestTranslateForRangeN(t *testing.T) {
	tr := newTestTranslator()
	target := ast.NewName(1, "i")
	iter := ast.NewCall(1, ast.NewName(1, "range"), []ast.Node{ast.NewInt(1, 10)})
	forStmt := ast.NewFor(1, target, iter, []ast.Node{ast.NewPass(1)})
	n, err := tr.TranslateStmt(forStmt)
	if err != nil {
		t.Fatalf("TranslateStmt(for i in range(10)) error = %v", err)
	}
	mustMnemonic(t, n, "repeat")
	if n.Args[2].Value != int64(10) {
		t.Errorf("rounds = %v, want 10", n.Args[2].Value)
	}
}

func TestTranslateForRangeABConstant(t *testing.T) {
	tr := newTestTranslator()
	target := ast.NewName(1, "i")
	iter := ast.NewCall(1, ast.NewName(1, "range"), []ast.Node{ast.NewInt(1, 3), ast.NewInt(1, 8)})
	forStmt := ast.NewFor(1, target, iter, []ast.Node{ast.NewPass(1)})
	n, err := tr.TranslateStmt(forStmt)
	if err != nil {
		t.Fatalf("TranslateStmt(for i in range(3,8)) error = %v", err)
	}
	if n.Args[1].Value != int64(3) || n.Args[2].Value != int64(5) {
		t.Errorf("start/rounds = %v/%v, want 3/5", n.Args[1].Value, n.Args[2].Value)
	}
}

func TestTranslateForRejectsNonRangeIterable(t *testing.T) {
	tr := newTestTranslator()
	forStmt := ast.NewFor(1, ast.NewName(1, "i"), ast.NewInt(1, 5), []ast.Node{ast.NewPass(1)})
	if _, err := tr.TranslateStmt(forStmt); err == nil {
		t.Error("expected an error: for-loop iterable must be range(...)")
	}
}

func TestTranslateForAllowsBreakInsideLoop(t *testing.T) {
	tr := newTestTranslator()
	target := ast.NewName(1, "i")
	iter := ast.NewCall(1, ast.NewName(1, "range"), []ast.Node{ast.NewInt(1, 3)})
	forStmt := ast.NewFor(1, target, iter, []ast.Node{ast.NewBreak(1)})
	if _, err := tr.TranslateStmt(forStmt); err != nil {
		t.Errorf("break inside a for-loop body should be allowed: %v", err)
	}
}

func TestTranslateAssertRequiresBoolean(t *testing.T) {
	tr := newTestTranslator()
	assertStmt := ast.NewAssert(1, ast.NewNameConstant(1, true))
	n, err := tr.TranslateStmt(assertStmt)
	if err != nil {
		t.Fatalf("TranslateStmt(assert True) error = %v", err)
	}
	mustMnemonic(t, n, "assert")

	bad := ast.NewAssert(1, ast.NewInt(1, 1))
	if _, err := tr.TranslateStmt(bad); err == nil {
		t.Error("expected an error: assert requires a boolean test")
	}
}

func TestTranslateReturnBareWithDeclaredReturnTypeIsError(t *testing.T) {
	tr := newTestTranslator()
	tr.Ctx.ReturnType = types.NewBase(types.Bool, nil, false)
	if _, err := tr.TranslateStmt(ast.NewReturn(1, nil)); err == nil {
		t.Error("expected an error: bare return from a function with a declared return type")
	}
}

func TestTranslateReturnConvertsToDeclaredType(t *testing.T) {
	tr := newTestTranslator()
	tr.Ctx.ReturnType = types.NewBase(types.Signed256, nil, false)
	ret := ast.NewReturn(1, ast.NewInt(1, 5))
	n, err := tr.TranslateStmt(ret)
	if err != nil {
		t.Fatalf("TranslateStmt(return 5) error = %v", err)
	}
	mustMnemonic(t, n, "seq")
	if len(n.Args) != 2 {
		t.Fatalf("return seq arg count = %d, want 2 (mstore, return)", len(n.Args))
	}
	mustMnemonic(t, n.Args[0], "mstore")
	mustMnemonic(t, n.Args[1], "return")
	if n.Args[1].Args[1].Value != int64(32) {
		t.Errorf("return size = %v, want 32", n.Args[1].Args[1].Value)
	}
}

func TestTranslateReturnNum256FlattensNonNegativityAssert(t *testing.T) {
	tr := newTestTranslator()
	tr.Ctx.ReturnType = types.NewBase(types.Num256, nil, false)
	ret := ast.NewReturn(1, ast.NewInt(1, 5))
	n, err := tr.TranslateStmt(ret)
	if err != nil {
		t.Fatalf("TranslateStmt(return 5) error = %v", err)
	}
	mustMnemonic(t, n, "seq")
	if len(n.Args) != 3 {
		t.Fatalf("return seq arg count = %d, want 3 (assert, mstore, return)", len(n.Args))
	}
	mustMnemonic(t, n.Args[0], "assert")
	mustMnemonic(t, n.Args[1], "mstore")
	mustMnemonic(t, n.Args[2], "return")
}

func TestTranslateReturnByteArrayTargetsLengthPrefix(t *testing.T) {
	tr := newTestTranslator()
	bt := types.NewByteArray(32)
	tr.Ctx.ReturnType = bt
	if _, err := tr.Ctx.NewVariable("buf", bt); err != nil {
		t.Fatalf("NewVariable() error = %v", err)
	}
	ret := ast.NewReturn(1, ast.NewName(1, "buf"))
	n, err := tr.TranslateStmt(ret)
	if err != nil {
		t.Fatalf("TranslateStmt(return buf) error = %v", err)
	}
	mustMnemonic(t, n, "return")
	mustMnemonic(t, n.Args[0], "sub")
	if n.Args[0].Args[1].Value != int64(32) {
		t.Errorf("prefix offset subtrahend = %v, want 32", n.Args[0].Args[1].Value)
	}
	mustMnemonic(t, n.Args[1], "add")
	mustMnemonic(t, n.Args[1].Args[0], "mload")
}

func TestTranslateSendRejectedInConstFunction(t *testing.T) {
	tr := newConstTestTranslator()
	call := ast.NewCall(1, ast.NewName(1, "send"), []ast.Node{
		ast.NewStr(1, "0x"+stringsRepeat("a", 40)), ast.NewInt(1, 1),
	})
	stmt := ast.NewExpr(1, call)
	if _, err := tr.TranslateStmt(stmt); err == nil {
		t.Error("expected a ConstancyViolation: send is not allowed in a const function")
	}
}

func TestTranslateSendLowersToCall(t *testing.T) {
	tr := newTestTranslator()
	call := ast.NewCall(1, ast.NewName(1, "send"), []ast.Node{
		ast.NewStr(1, "0x"+stringsRepeat("a", 40)), ast.NewInt(1, 100),
	})
	stmt := ast.NewExpr(1, call)
	n, err := tr.TranslateStmt(stmt)
	if err != nil {
		t.Fatalf("TranslateStmt(send(addr, 100)) error = %v", err)
	}
	if !containsMnemonic(n, "call") {
		t.Error("send should lower through the call opcode")
	}
}

func TestTranslateExprStmtDiscardsValencyOneResult(t *testing.T) {
	tr := newTestTranslator()
	stmt := ast.NewExpr(1, ast.NewInt(1, 42))
	n, err := tr.TranslateStmt(stmt)
	if err != nil {
		t.Fatalf("TranslateStmt(42) error = %v", err)
	}
	mustMnemonic(t, n, "seq")
	if n.Valency() != 0 {
		t.Errorf("bare expression statement valency = %d, want 0", n.Valency())
	}
}
