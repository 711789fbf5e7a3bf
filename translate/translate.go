// Package translate implements the top-level assembly (spec.md §4.J):
// wiring the module reader, function binder, translation context, and
// expression/statement translators into one LIR tree plus an ABI
// descriptor list for a whole source module.
package translate

import (
	"go.uber.org/zap"

	"github.com/jns4u/viperc/abi"
	"github.com/jns4u/viperc/ast"
	"github.com/jns4u/viperc/binder"
	tctx "github.com/jns4u/viperc/context"
	"github.com/jns4u/viperc/lir"
	"github.com/jns4u/viperc/modreader"
	"github.com/jns4u/viperc/opcodes"
	"github.com/jns4u/viperc/selector"
	"github.com/jns4u/viperc/translator"
	"github.com/jns4u/viperc/types"
	"github.com/jns4u/viperc/xerrs"
)

// Options carries this package's dependencies, all optional
// (SPEC_FULL.md §0): a nil Table defaults to opcodes.Default, a nil
// Hasher to selector.Default (real Keccak-256), and a nil Logger to
// zap.NewNop().
type Options struct {
	Table  opcodes.Table
	Hasher selector.Hasher
	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Table == nil {
		o.Table = opcodes.Default
	}
	if o.Hasher == nil {
		o.Hasher = selector.Default
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Result is this package's output (spec.md §6): the assembled LIR
// tree and the module's ABI descriptor list.
type Result struct {
	LIR *lir.Node
	ABI []*abi.Descriptor
}

// Module translates a whole parsed source module (spec.md §4.J) in
// the teacher's three-phase shape (lang/ysem/analyzer.go's Analyze:
// build symbol tables, type-check/bind, generate IR), logging at each
// phase boundary.
func Module(mod *ast.Module, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	rmod, err := modreader.Read(mod)
	if err != nil {
		return nil, err
	}
	opts.Logger.Debug("module read", zap.Int("fields", len(rmod.FieldsMap)), zap.Int("functions", len(rmod.Functions)))

	var ctor *binder.Bound
	var regular []*binder.Bound
	for _, fn := range rmod.Functions {
		b, err := binder.Bind(opts.Hasher, fn)
		if err != nil {
			return nil, err
		}
		if b.IsCtor {
			ctor = b
		} else {
			regular = append(regular, b)
		}
	}
	opts.Logger.Debug("functions bound", zap.Bool("hasConstructor", ctor != nil), zap.Int("regular", len(regular)))

	descriptorOrder := regular
	if ctor != nil {
		descriptorOrder = append([]*binder.Bound{ctor}, regular...)
	}
	descriptors, err := abi.Emit(descriptorOrder)
	if err != nil {
		return nil, err
	}

	tree, err := assemble(opts, rmod, ctor, regular)
	if err != nil {
		return nil, err
	}
	opts.Logger.Debug("LIR assembled", zap.String("shape", tree.Mnemonic()))

	return &Result{LIR: tree, ABI: descriptors}, nil
}

// assemble implements spec.md §4.J's four top-level shapes.
func assemble(opts Options, rmod *modreader.Module, ctor *binder.Bound, regular []*binder.Bound) (*lir.Node, error) {
	switch {
	case ctor == nil && len(regular) == 0:
		pass, err := lir.New(opts.Table, "pass", nil, lir.LocNone)
		if err != nil {
			return nil, err
		}
		return lir.LLLNode(pass), nil

	case ctor != nil && len(regular) == 0:
		body, err := translateBody(opts, rmod, ctor)
		if err != nil {
			return nil, err
		}
		selfAddr, err := lir.New(opts.Table, "address", types.NewBase(types.Address, nil, false), lir.LocNone)
		if err != nil {
			return nil, err
		}
		kill, err := lir.New(opts.Table, "selfdestruct", nil, lir.LocNone, selfAddr)
		if err != nil {
			return nil, err
		}
		return lir.LLLNode(translator.BuildPrelude(opts.Table), body, kill), nil

	case ctor == nil:
		dispatch, err := buildDispatchChain(opts, rmod, regular)
		if err != nil {
			return nil, err
		}
		runtime := lir.LLLNode(translator.BuildPrelude(opts.Table), dispatch)
		return lir.DeployReturn(runtime), nil

	default:
		ctorBody, err := translateBody(opts, rmod, ctor)
		if err != nil {
			return nil, err
		}
		dispatch, err := buildDispatchChain(opts, rmod, regular)
		if err != nil {
			return nil, err
		}
		runtime := lir.LLLNode(translator.BuildPrelude(opts.Table), dispatch)
		return lir.LLLNode(translator.BuildPrelude(opts.Table), ctorBody, lir.DeployReturn(runtime)), nil
	}
}

// buildDispatchChain chains an `if eq(mload(0), selector) then
// seq(stmts...)` for each regular function in source order (spec.md
// §4.J): sibling branches are independent. A selector that repeats an
// earlier one is logged at Warn and still gets its own branch; nothing
// beyond the module reader's duplicate-name rejection stops it.
func buildDispatchChain(opts Options, rmod *modreader.Module, regular []*binder.Bound) (*lir.Node, error) {
	if len(regular) == 0 {
		return lir.New(opts.Table, "pass", nil, lir.LocNone)
	}
	seenSelectors := make(map[uint32]string, len(regular))
	branches := make([]*lir.Node, len(regular))
	for i, b := range regular {
		if prev, dup := seenSelectors[b.Selector]; dup {
			opts.Logger.Warn("selector collision: dispatch will always match the earlier branch first",
				zap.String("function", b.Name), zap.String("shadowedBy", prev), zap.Uint32("selector", b.Selector))
		}
		seenSelectors[b.Selector] = b.Name

		body, err := translateBody(opts, rmod, b)
		if err != nil {
			return nil, err
		}
		mload0, err := lir.New(opts.Table, "mload", nil, lir.LocNone, lir.Int(0, nil))
		if err != nil {
			return nil, err
		}
		test, err := lir.New(opts.Table, "eq", types.NewBase(types.Bool, nil, false), lir.LocNone, mload0, lir.Int(int64(b.Selector), nil))
		if err != nil {
			return nil, err
		}
		branch, err := lir.New(opts.Table, "if", nil, lir.LocNone, test, body)
		if err != nil {
			return nil, err
		}
		branches[i] = branch
	}
	return lir.SeqNode(branches...), nil
}

// translateBody lowers one function's statement list under its own
// Context and Translator (spec.md §4.E/§4.G), validating the
// constant-function purity property (spec.md §8.6) before returning.
func translateBody(opts Options, rmod *modreader.Module, b *binder.Bound) (*lir.Node, error) {
	opts.Logger.Debug("translating function body", zap.String("function", b.Name), zap.Bool("const", b.Const))
	ctx := tctx.New(b, rmod.FieldsMap)
	tr := translator.New(opts.Table, opts.Hasher, opts.Logger, ctx)

	stmts := make([]*lir.Node, 0, len(b.Node.Body))
	for _, s := range b.Node.Body {
		n, err := tr.TranslateStmt(s)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, n)
	}
	body := lir.SeqNode(stmts...)
	if b.Const {
		if violatesConstancy(body) {
			return nil, xerrs.At(xerrs.ConstancyViolation, b.Node, "function %q is declared const but mutates state", b.Name)
		}
	}
	return body, nil
}

// violatesConstancy walks a translated body for the state-mutating
// forms a const function must never emit (spec.md §8.6): sstore,
// the value-sending form of call, and selfdestruct. This is the
// synthesizer's own belt-and-suspenders check; the constancy errors
// raised inline in stmt.go (send/selfdestruct calls) are expected to
// catch these first.
func violatesConstancy(n *lir.Node) bool {
	if n == nil {
		return false
	}
	switch n.Mnemonic() {
	case "sstore", "selfdestruct", "call":
		return true
	}
	for _, a := range n.Args {
		if violatesConstancy(a) {
			return true
		}
	}
	return false
}
