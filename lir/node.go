// Package lir implements the LIR node (spec.md §4.B): a uniform tree
// node with value/args/typ/location attributes and valency derived
// from, and validated against, the opcode table (spec.md §3).
//
// Grounded on lang/ysem/ir.go's IRInstr (op + args, built through a
// constructor that knows each opcode's arity) generalized from a flat
// instruction list to a tree, since this module's target IR (spec.md
// §3) is itself a tree of control forms, not a linear instruction
// stream.
package lir

import (
	"github.com/jns4u/viperc/opcodes"
	"github.com/jns4u/viperc/types"
	"github.com/jns4u/viperc/xerrs"
)

// Location is where an LIR node's value semantically resides
// (spec.md §3, GLOSSARY "Location").
type Location int

const (
	LocNone Location = iota
	LocStorage
	LocMemory
	LocCalldata
	// LocCode is the constructor's argument area: parameters appended
	// after the contract's code, read with a code-copy rather than
	// CALLDATALOAD (spec.md §3, args table).
	LocCode
)

func (l Location) String() string {
	switch l {
	case LocStorage:
		return "storage"
	case LocMemory:
		return "memory"
	case LocCalldata:
		return "calldata"
	case LocCode:
		return "code"
	default:
		return "none"
	}
}

// Node is the homogeneous LIR tree node of spec.md §3.
type Node struct {
	// Value is one of: int64 (non-negative integer literal), string
	// (opcode/pseudo-opcode/control-form/variable name), or nil.
	Value interface{}
	Args  []*Node
	Typ   *types.Type // optional; nil means "no value"
	Loc   Location

	valency int
}

// Valency returns 0 or 1: whether this node leaves a value on the VM
// stack.
func (n *Node) Valency() int { return n.valency }

// Mnemonic returns Value as a string, or "" if Value isn't a string.
func (n *Node) Mnemonic() string {
	s, _ := n.Value.(string)
	return s
}

// leaf builds a node with no structural validation: integer and
// string literals, and bare variable references, which aren't
// opcode/control-form applications.
func leaf(value interface{}, typ *types.Type, loc Location, valency int) *Node {
	return &Node{Value: value, Typ: typ, Loc: loc, valency: valency}
}

// Int builds an integer literal node. It has valency 1 and no
// location: it is already a value on the stack.
func Int(n int64, typ *types.Type) *Node {
	return leaf(n, typ, LocNone, 1)
}

// Var builds a bare symbolic-name reference node (an opaque binder
// introduced by a `with` scope, spec.md §9). It has valency 1.
func Var(name string, typ *types.Type) *Node {
	return leaf(name, typ, LocNone, 1)
}

// NullNode builds the literal-null value: Null-typed, valency 0, no
// location. It carries no stack value; its only purpose is to signal
// a zero-fill to the setter synthesizer (spec.md §4.H).
func NullNode() *Node {
	return leaf(nil, types.NullType, LocNone, 0)
}

// BigLiteral builds a constant too wide for an int64 (address and
// bytes32 string literals, spec.md §4.F): its Value is the literal's
// "0x..."-prefixed hex text, a symbolic string by convention distinct
// from an opcode/variable-name string only in that it starts with
// "0x".
func BigLiteral(hex string, typ *types.Type) *Node {
	return leaf(hex, typ, LocNone, 1)
}

// NilValue builds a typeless, valueless node (location-only; e.g. a
// storage/memory address prior to a load).
func NilValue(loc Location) *Node {
	return leaf(nil, nil, loc, 0)
}

// New builds an opcode, pseudo-opcode, or control-form application
// node and validates it against table per spec.md §3's invariants.
// typ/loc describe the node's own declared value, not its children.
func New(table opcodes.Table, mnemonic string, typ *types.Type, loc Location, args ...*Node) (*Node, error) {
	if table.IsControlForm(mnemonic) {
		return newControlForm(mnemonic, typ, loc, args...)
	}
	entry, ok := table.Lookup(mnemonic)
	if !ok {
		return nil, xerrs.At(xerrs.Structure, nil, "unknown opcode or pseudo-opcode %q", mnemonic)
	}
	if len(args) != entry.Arity {
		return nil, xerrs.At(xerrs.Structure, nil, "%s expects %d args, got %d", mnemonic, entry.Arity, len(args))
	}
	for i, a := range args {
		if a.valency != 1 {
			return nil, xerrs.At(xerrs.Structure, nil, "%s: argument %d is valency-0", mnemonic, i)
		}
	}
	return &Node{Value: mnemonic, Args: args, Typ: typ, Loc: loc, valency: entry.Valency}, nil
}

func newControlForm(mnemonic string, typ *types.Type, loc Location, args ...*Node) (*Node, error) {
	switch mnemonic {
	case "if":
		return newIf(typ, loc, args...)
	case "with":
		return nil, xerrs.At(xerrs.Structure, nil, "use WithNode to build a with-scope")
	case "repeat":
		return nil, xerrs.At(xerrs.Structure, nil, "use RepeatNode to build a repeat loop")
	case "seq":
		return SeqNode(args...), nil
	case "multi":
		return MultiNode(typ, args...)
	case "lll":
		return LLLNode(args...), nil
	case "pass":
		return &Node{Value: "pass", Loc: LocNone, valency: 0}, nil
	case "break":
		return &Node{Value: "break", Loc: LocNone, valency: 0}, nil
	default:
		return nil, xerrs.At(xerrs.Structure, nil, "unknown control form %q", mnemonic)
	}
}

func newIf(typ *types.Type, loc Location, args ...*Node) (*Node, error) {
	if len(args) != 2 && len(args) != 3 {
		return nil, xerrs.At(xerrs.Structure, nil, "if expects 2 or 3 args, got %d", len(args))
	}
	if args[0].valency != 1 {
		return nil, xerrs.At(xerrs.Structure, nil, "if: test must be valency-1")
	}
	v := 0
	if len(args) == 3 {
		if args[1].valency != args[2].valency {
			return nil, xerrs.At(xerrs.Structure, nil, "if: branch valencies differ")
		}
		v = args[1].valency
	} else {
		if args[1].valency != 0 {
			return nil, xerrs.At(xerrs.Structure, nil, "if: 2-arg body must be valency-0")
		}
	}
	return &Node{Value: "if", Args: args, Typ: typ, Loc: loc, valency: v}, nil
}

// WithNode builds `with v init body`, binding the symbolic name v to
// the valency-1 value init within body (spec.md §3 invariant 3).
func WithNode(v string, init, body *Node) (*Node, error) {
	if init.valency != 1 {
		return nil, xerrs.At(xerrs.Structure, nil, "with: init must be valency-1")
	}
	name := Var(v, init.Typ)
	return &Node{Value: "with", Args: []*Node{name, init, body}, Typ: body.Typ, Loc: body.Loc, valency: body.valency}, nil
}

// RepeatNode builds `repeat memloc start rounds body` (spec.md §3
// invariant 4): rounds must be a positive constant integer and body
// valency-0; memloc and start are valency-1.
func RepeatNode(memloc, start *Node, rounds int64, body *Node) (*Node, error) {
	if rounds <= 0 {
		return nil, xerrs.At(xerrs.Structure, nil, "repeat: rounds must be a positive constant")
	}
	if memloc.valency != 1 || start.valency != 1 {
		return nil, xerrs.At(xerrs.Structure, nil, "repeat: memloc and start must be valency-1")
	}
	if body.valency != 0 {
		return nil, xerrs.At(xerrs.Structure, nil, "repeat: body must be valency-0")
	}
	return &Node{Value: "repeat", Args: []*Node{memloc, start, Int(rounds, nil), body}, valency: 0}, nil
}

// SeqNode builds `seq ...`: valency of the last child, or 0 if empty
// (spec.md §3 invariant 5).
func SeqNode(stmts ...*Node) *Node {
	v := 0
	if len(stmts) > 0 {
		v = stmts[len(stmts)-1].valency
	}
	var typ *types.Type
	if len(stmts) > 0 {
		typ = stmts[len(stmts)-1].Typ
	}
	return &Node{Value: "seq", Args: stmts, Typ: typ, valency: v}
}

// MultiNode builds `multi x1 ... xn`: every child must be valency-1;
// overall valency is the sum (spec.md §3 invariant 6).
func MultiNode(typ *types.Type, elems ...*Node) (*Node, error) {
	total := 0
	for i, e := range elems {
		if e.valency != 1 {
			return nil, xerrs.At(xerrs.Structure, nil, "multi: element %d is valency-0", i)
		}
		total += e.valency
	}
	return &Node{Value: "multi", Args: elems, Typ: typ, valency: total}, nil
}

// LLLNode sequences top-level forms the same way SeqNode does; kept
// distinct because "lll" denotes the compilation unit's outermost
// wrapper rather than an inner sequencing point.
func LLLNode(forms ...*Node) *Node {
	n := SeqNode(forms...)
	n.Value = "lll"
	return n
}

// DeployReturn builds the deployer's `return 0, lll(...)` wrapper
// (spec.md §4.J): it returns code's generated bytes as the runtime
// code. code is a nested compilation unit, not a stack value, so this
// bypasses the ordinary opcode arity/valency check that New performs
// for "return" — the only LIR shape whose second operand denotes a
// nested code blob rather than a value, a packaging detail that
// LIR->bytecode lowering (out of scope, spec.md §1) resolves.
func DeployReturn(code *Node) *Node {
	return &Node{Value: "return", Args: []*Node{Int(0, nil), code}, valency: 0}
}

// Retype returns a shallow copy of n with a different declared type.
// Used for kind-preserving base coercions (e.g. widening num into
// signed256) that need no new opcode, only a different Typ.
func Retype(n *Node, typ *types.Type) *Node {
	c := *n
	c.Typ = typ
	return &c
}

// FromLiteral recursively rewrites a nested literal ([]interface{} of
// int64/*Node) into a `multi` LIR tree, the convenience constructor
// named in spec.md §4.B.
func FromLiteral(v interface{}, typ *types.Type) (*Node, error) {
	switch vv := v.(type) {
	case *Node:
		return vv, nil
	case int64:
		return Int(vv, typ), nil
	case []interface{}:
		elems := make([]*Node, len(vv))
		for i, e := range vv {
			elemTyp := typ
			if typ != nil && typ.Kind == types.KindList {
				elemTyp = typ.Elem
			}
			n, err := FromLiteral(e, elemTyp)
			if err != nil {
				return nil, err
			}
			elems[i] = n
		}
		return MultiNode(typ, elems...)
	default:
		return nil, xerrs.At(xerrs.Structure, nil, "cannot build LIR from literal of type %T", v)
	}
}
