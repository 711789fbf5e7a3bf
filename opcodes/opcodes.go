// Package opcodes is the stand-in for the "fixed registries of VM
// opcodes and synthetic pseudo-opcodes" collaborator (spec.md §6).
// Lowering LIR to bytecode is out of scope; this package only carries
// the arity/valency metadata the LIR node constructor needs to
// validate the structural contract in spec.md §3.
package opcodes

// Entry is one opcode or pseudo-opcode's metadata.
type Entry struct {
	Hex     string
	Arity   int
	Valency int
	Gas     int
}

// Table looks up opcode and pseudo-opcode metadata by mnemonic. The
// LIR constructor consults it through this interface (not a concrete
// map) so tests can substitute a fixture, per spec.md §9's "Global
// opcode tables become immutable static registries ... through an
// interface".
type Table interface {
	Lookup(mnemonic string) (Entry, bool)
	IsControlForm(mnemonic string) bool
}

// staticTable is the module's real, immutable registry.
type staticTable struct {
	entries      map[string]Entry
	controlForms map[string]bool
}

func (t staticTable) Lookup(mnemonic string) (Entry, bool) {
	e, ok := t.entries[mnemonic]
	return e, ok
}

func (t staticTable) IsControlForm(mnemonic string) bool {
	return t.controlForms[mnemonic]
}

// Default is the registry this module's translator emits against. It
// is seeded with real VM opcodes plus the synthetic pseudo-opcodes
// named in spec.md §3 invariant 1 and §9.
var Default Table = staticTable{
	entries: map[string]Entry{
		// arithmetic / bitwise — valency 1, arity 2 unless noted
		"add":  {"0x01", 2, 1, 3},
		"mul":  {"0x02", 2, 1, 5},
		"sub":  {"0x03", 2, 1, 3},
		"div":  {"0x04", 2, 1, 5},
		"sdiv": {"0x05", 2, 1, 5},
		"mod":  {"0x06", 2, 1, 5},
		"smod": {"0x07", 2, 1, 5},
		"exp":  {"0x0a", 2, 1, 10},

		// comparisons — arity 2, valency 1
		"lt":  {"0x10", 2, 1, 3},
		"gt":  {"0x11", 2, 1, 3},
		"slt": {"0x12", 2, 1, 3},
		"sgt": {"0x13", 2, 1, 3},
		"sle": {"", 2, 1, 3},
		"sge": {"", 2, 1, 3},
		"eq":  {"0x14", 2, 1, 3},

		// boolean / unary
		"iszero": {"0x15", 1, 1, 3},
		"and":    {"0x16", 2, 1, 3},
		"or":     {"0x17", 2, 1, 3},
		"not":    {"0x19", 1, 1, 3},

		// environment
		"address":      {"0x30", 0, 1, 2},
		"balance":      {"0x31", 1, 1, 20},
		"caller":       {"0x33", 0, 1, 2},
		"callvalue":    {"0x34", 0, 1, 2},
		"calldataload": {"0x35", 1, 1, 3},
		"codesize":     {"0x38", 0, 1, 2},
		"codecopy":     {"0x39", 3, 0, 3},
		// codeload is a synthetic single-operand read of the
		// constructor's post-code argument area; LIR->bytecode
		// lowering (out of scope, spec.md §1) expands it into the
		// real codecopy+mload pair.
		"codeload": {"", 1, 1, 0},
		"difficulty":   {"0x44", 0, 1, 2},
		"number":       {"0x43", 0, 1, 2},
		"timestamp":    {"0x42", 0, 1, 2},
		"coinbase":     {"0x41", 0, 1, 2},
		"origin":       {"0x32", 0, 1, 2},

		// memory / storage
		"mload":  {"0x51", 1, 1, 3},
		"mstore": {"0x52", 2, 0, 3},
		"sload":  {"0x54", 1, 1, 50},
		"sstore": {"0x55", 2, 0, 100},

		// hashing
		"sha3": {"0x20", 2, 1, 30},

		// control / terminators
		"jump":         {"0x56", 1, 0, 8},
		"return":       {"0xf3", 2, 0, 0},
		"call":         {"0xf1", 7, 1, 40},
		"selfdestruct": {"0xff", 1, 0, 5000},

		// pseudo-opcodes (synthetic; no VM hex encoding)
		"clamp":         {"", 3, 1, 0},
		"uclamplt":      {"", 2, 1, 0},
		"clamp_nonzero": {"", 1, 1, 0},
		"sha3_32":       {"", 1, 1, 0},
		"ceil32":        {"", 1, 1, 0},
		"assert":        {"", 1, 0, 0},
	},
	controlForms: map[string]bool{
		"if":     true,
		"with":   true,
		"repeat": true,
		"seq":    true,
		"multi":  true,
		"lll":    true,
		"pass":   true,
		"break":  true,
	},
}
